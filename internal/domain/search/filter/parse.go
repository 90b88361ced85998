package filter

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

const amount = `[¥$]?\s*(\d{1,3}(?:,\d{3})+|\d+(?:\.\d+)?)\s*(k)?\b`

var (
	betweenRe = regexp.MustCompile(`(?i)\bbetween\s+` + amount + `\s*(?:yen|jpy|円)?\s+and\s+` + amount)
	// One pass so "no more than" is consumed whole and never re-read as "more than".
	boundRe = regexp.MustCompile(`(?i)\b(?:` +
		`(?P<max>no\s+more\s+than|under|below|less\s+than|cheaper\s+than|up\s+to|at\s+most|max(?:imum)?)|` +
		`(?P<min>no\s+less\s+than|over|above|more\s+than|at\s+least|min(?:imum)?)` +
		`)\s+` + amount)

	// Tokyo municipality suffixes in neighbourhood_cleansed ("Shinjuku Ku", "Hachioji Shi").
	hoodSuffixRe = regexp.MustCompile(`(?i)\s+(?:ku|shi|machi|mura|cho)$`)
)

// Parse extracts a predicate from free text with regular expressions.
// Neighbourhoods are matched as whole words against the known catalog names,
// without their municipality suffix; the longest match wins.
func Parse(text string, neighbourhoods []string) (Predicate, error) {
	var minPrice, maxPrice *float64

	if m := betweenRe.FindStringSubmatch(text); m != nil {
		lo, okLo := parseAmount(m[1], m[2])
		hi, okHi := parseAmount(m[3], m[4])
		if okLo && okHi {
			minPrice, maxPrice = &lo, &hi
		}
	} else {
		minPrice, maxPrice = parseBounds(text)
	}

	return New(minPrice, maxPrice, matchNeighbourhood(text, neighbourhoods))
}

// parseBounds keeps the first bound of each direction.
func parseBounds(text string) (minPrice, maxPrice *float64) {
	maxIdx, minIdx := boundRe.SubexpIndex("max"), boundRe.SubexpIndex("min")
	for _, m := range boundRe.FindAllStringSubmatch(text, -1) {
		v, ok := parseAmount(m[len(m)-2], m[len(m)-1])
		if !ok {
			continue
		}
		switch {
		case m[maxIdx] != "" && maxPrice == nil:
			maxPrice = &v
		case m[minIdx] != "" && minPrice == nil:
			minPrice = &v
		}
	}
	return minPrice, maxPrice
}

func parseAmount(digits, thousands string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.ReplaceAll(digits, ",", ""), 64)
	if err != nil {
		return 0, false
	}
	if thousands != "" {
		v *= 1000
	}
	return v, true
}

func matchNeighbourhood(text string, neighbourhoods []string) string {
	bases := make([]string, 0, len(neighbourhoods))
	for _, n := range neighbourhoods {
		if b := strings.TrimSpace(hoodSuffixRe.ReplaceAllString(n, "")); b != "" {
			bases = append(bases, b)
		}
	}
	sort.SliceStable(bases, func(i, j int) bool { return len(bases[i]) > len(bases[j]) })

	for _, b := range bases {
		re, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(b) + `\b`)
		if err != nil {
			continue
		}
		if re.MatchString(text) {
			return b
		}
	}
	return ""
}
