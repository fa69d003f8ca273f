// Package extract adapts extraction pipeline output into batch load input.
package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Veraticus/receipt-review/internal/model"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Errors returned while reading extraction output.
var (
	ErrUnsupportedFormat = errors.New("unsupported extraction file format")
	ErrDuplicateID       = errors.New("duplicate receipt id")
	ErrInvalidDate       = errors.New("invalid receipt date")
)

// Format identifies an extraction file encoding.
type Format string

// Supported formats.
const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFromPath guesses the format from a file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}

// batchFile is the on-disk shape written by the extraction pipeline.
type batchFile struct {
	Receipts []receiptRecord `json:"receipts" yaml:"receipts"`
}

type receiptRecord struct {
	Receipt *receiptFields `json:"receipt,omitempty" yaml:"receipt,omitempty"`
	ID      string         `json:"id" yaml:"id"`
	Error   string         `json:"error,omitempty" yaml:"error,omitempty"`
	Success bool           `json:"success" yaml:"success"`
}

// receiptFields keeps the date as text so partial dates from OCR don't fail the whole file.
type receiptFields struct {
	Merchant  string           `json:"merchant" yaml:"merchant"`
	Date      string           `json:"date" yaml:"date"`
	Category  string           `json:"category,omitempty" yaml:"category,omitempty"`
	Currency  string           `json:"currency,omitempty" yaml:"currency,omitempty"`
	LineItems []model.LineItem `json:"line_items,omitempty" yaml:"line_items,omitempty"`
	Total     float64          `json:"total" yaml:"total"`
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02",
	"01/02/2006",
	"2006/01/02",
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
}

// LoadFile reads an extraction batch from disk.
func LoadFile(ctx context.Context, path string) ([]model.ExtractionResult, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path) //nolint:gosec // path comes from the CLI user
	if err != nil {
		return nil, fmt.Errorf("failed to open extraction file: %w", err)
	}
	defer func() { _ = f.Close() }()

	return Decode(ctx, f, format)
}

// Decode parses an extraction batch. Results keep file order and receive
// their display index from it; records without an id get a generated one.
func Decode(ctx context.Context, r io.Reader, format Format) ([]model.ExtractionResult, error) {
	var file batchFile

	switch format {
	case FormatJSON:
		if err := json.NewDecoder(r).Decode(&file); err != nil {
			return nil, fmt.Errorf("failed to decode JSON extraction file: %w", err)
		}
	case FormatYAML:
		if err := yaml.NewDecoder(r).Decode(&file); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("failed to decode YAML extraction file: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}

	results := make([]model.ExtractionResult, 0, len(file.Receipts))
	seen := make(map[string]struct{}, len(file.Receipts))

	for i, rec := range file.Receipts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		id := strings.TrimSpace(rec.ID)
		if id == "" {
			id = uuid.NewString()
		}
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateID, id)
		}
		seen[id] = struct{}{}

		results = append(results, toResult(rec, id, i))
	}

	return results, nil
}

func toResult(rec receiptRecord, id string, index int) model.ExtractionResult {
	result := model.ExtractionResult{
		ID:            id,
		Index:         index,
		Success:       rec.Success,
		FailureReason: strings.TrimSpace(rec.Error),
	}
	if !rec.Success {
		return result
	}
	if rec.Receipt == nil {
		result.Success = false
		result.FailureReason = "extraction reported success without receipt data"
		return result
	}

	date, err := parseDate(rec.Receipt.Date)
	if err != nil {
		// Keep the candidate; the missing date lowers confidence and sends it to review.
		date = time.Time{}
	}

	result.Receipt = &model.Receipt{
		Merchant:  strings.TrimSpace(rec.Receipt.Merchant),
		Date:      date,
		Total:     rec.Receipt.Total,
		Category:  rec.Receipt.Category,
		Currency:  rec.Receipt.Currency,
		LineItems: rec.Receipt.LineItems,
	}
	return result
}
