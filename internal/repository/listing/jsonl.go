// Package listing loads the pre-embedded catalog from the ingestion output file.
package listing

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/staysearch/internal/domain/listing"
)

// maxLineBytes fits a 4096-dim embedding with generous room for the document.
const maxLineBytes = 8 << 20

// record mirrors one line of clean_listings.jsonl plus the embedding column.
type record struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	ListingURL    string    `json:"listing_url"`
	Latitude      float64   `json:"latitude"`
	Longitude     float64   `json:"longitude"`
	Price         float64   `json:"price_cleaned"`
	Neighbourhood string    `json:"neighbourhood_cleansed"`
	RoomType      string    `json:"room_type"`
	Accommodates  int       `json:"accommodates"`
	Document      string    `json:"rag_document"`
	Embedding     []float32 `json:"embedding"`
}

// FileSource reads listings from a JSONL file.
type FileSource struct {
	path   string
	logger *zap.Logger
}

// NewFileSource creates a JSONL catalog source.
func NewFileSource(path string, logger *zap.Logger) *FileSource {
	return &FileSource{path: path, logger: logger}
}

// LoadAll reads every valid listing. Rows that fail validation are skipped
// with a warning; malformed JSON aborts the load.
func (s *FileSource) LoadAll(ctx context.Context) ([]listing.Listing, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer func() { _ = f.Close() }()

	return Decode(ctx, f, s.logger)
}

// Decode parses JSONL from r.
func Decode(ctx context.Context, r io.Reader, logger *zap.Logger) ([]listing.Listing, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64<<10), maxLineBytes)

	var (
		out     []listing.Listing
		line    int
		skipped int
	)
	for sc.Scan() {
		line++
		if line%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("load catalog: %w", err)
			}
		}
		raw := strings.TrimSpace(sc.Text())
		if raw == "" {
			continue
		}

		var rec record
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		l, err := listing.New(listing.Fields{
			ID:            rec.ID,
			Name:          rec.Name,
			URL:           rec.ListingURL,
			Latitude:      rec.Latitude,
			Longitude:     rec.Longitude,
			Price:         rec.Price,
			Neighbourhood: rec.Neighbourhood,
			RoomType:      rec.RoomType,
			Accommodates:  rec.Accommodates,
			Document:      rec.Document,
			Embedding:     rec.Embedding,
		})
		if err != nil {
			skipped++
			logger.Warn("Skipping catalog row", zap.Int("line", line), zap.Error(err))
			continue
		}
		out = append(out, l)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}

	if skipped > 0 {
		logger.Warn("Catalog rows skipped", zap.Int("skipped", skipped), zap.Int("loaded", len(out)))
	}
	return out, nil
}
