package answer

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/kailas-cloud/staysearch/internal/domain/search/result"
)

const (
	defaultCurrency = "¥"
	defaultLocale   = "ja"
)

// PriceFormatter renders nightly prices with a currency symbol and locale digit grouping.
type PriceFormatter struct {
	symbol  string
	printer *message.Printer
}

// NewPriceFormatter parses locale as a BCP 47 tag. Empty values fall back to yen and Japanese grouping.
func NewPriceFormatter(symbol, locale string) (*PriceFormatter, error) {
	if symbol == "" {
		symbol = defaultCurrency
	}
	if locale == "" {
		locale = defaultLocale
	}
	tag, err := language.Parse(locale)
	if err != nil {
		return nil, fmt.Errorf("parse locale %q: %w", locale, err)
	}
	return &PriceFormatter{symbol: symbol, printer: message.NewPrinter(tag)}, nil
}

// Format renders price, e.g. 12000 -> "¥12,000". Fractional prices keep two decimals.
func (f *PriceFormatter) Format(price float64) string {
	if price == math.Trunc(price) {
		return f.symbol + f.printer.Sprintf("%d", int64(price))
	}
	return f.symbol + f.printer.Sprintf("%.2f", price)
}

var markdownLinkRe = regexp.MustCompile(`\[[^\]]*\]\([^)]*\)`)

// Linkify rewrites each listing name in text as a markdown link to its URL.
// Occurrences already inside link syntax are left alone. Longer names are
// linked first so a name contained in another is not linked twice.
func Linkify(text string, set result.ContextSet) string {
	type target struct{ name, url string }
	var targets []target
	seen := make(map[string]bool)
	for _, r := range set.Results() {
		l := r.Listing()
		name := strings.TrimSpace(l.Name())
		if name == "" || l.URL() == "" || seen[name] {
			continue
		}
		seen[name] = true
		targets = append(targets, target{name: name, url: l.URL()})
	}
	sort.SliceStable(targets, func(i, j int) bool {
		return len(targets[i].name) > len(targets[j].name)
	})

	for _, t := range targets {
		text = linkName(text, t.name, t.url)
	}
	return text
}

func linkName(text, name, url string) string {
	protected := markdownLinkRe.FindAllStringIndex(text, -1)
	inLink := func(start, end int) bool {
		for _, p := range protected {
			if start < p[1] && end > p[0] {
				return true
			}
		}
		return false
	}

	var b strings.Builder
	pos := 0
	for {
		i := strings.Index(text[pos:], name)
		if i < 0 {
			break
		}
		start := pos + i
		end := start + len(name)
		b.WriteString(text[pos:start])
		if inLink(start, end) || !wordBounded(text, start, end) {
			b.WriteString(name)
		} else {
			b.WriteString("[" + name + "](" + url + ")")
		}
		pos = end
	}
	if pos == 0 {
		return text
	}
	b.WriteString(text[pos:])
	return b.String()
}

// wordBounded reports whether text[start:end] is not part of a longer word.
func wordBounded(text string, start, end int) bool {
	if start > 0 {
		r, _ := utf8.DecodeLastRuneInString(text[:start])
		if isWordRune(r) {
			return false
		}
	}
	if end < len(text) {
		r, _ := utf8.DecodeRuneInString(text[end:])
		if isWordRune(r) {
			return false
		}
	}
	return true
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
