// Package chunker splits document text into overlapping character windows
// used as the retrieval granularity.
package chunker

import (
	"errors"
	"fmt"
	"iter"
	"strconv"
)

// DefaultUnitSize and DefaultOverlap match the ingestion defaults.
const (
	DefaultUnitSize = 500
	DefaultOverlap  = 100
)

// ErrInvalidConfig indicates unusable chunking parameters.
var ErrInvalidConfig = errors.New("invalid chunker configuration")

// TextUnit is a bounded, positioned slice of a document's text.
// Start and End are rune offsets into the source document, with
// Start inclusive and End exclusive. Units are immutable once created.
type TextUnit struct {
	ID         string `json:"id"`
	DocumentID string `json:"document_id"`
	Index      int    `json:"index"` // Position in document (0, 1, 2...)
	Start      int    `json:"start"`
	End        int    `json:"end"`
	Text       string `json:"text"`
}

// Chunker produces overlapping fixed-size text units. It is a pure function
// of its configuration and the input text; the same input always yields the
// same units.
type Chunker struct {
	size    int
	overlap int
}

// NewChunker creates a chunker with the given unit size and overlap, both in
// characters. Overlap must be strictly less than size.
func NewChunker(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: unit size must be positive, got %d", ErrInvalidConfig, size)
	}
	if overlap < 0 {
		return nil, fmt.Errorf("%w: overlap must be non-negative, got %d", ErrInvalidConfig, overlap)
	}
	if overlap >= size {
		return nil, fmt.Errorf("%w: overlap %d must be less than unit size %d", ErrInvalidConfig, overlap, size)
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

// Units returns a lazy, restartable sequence of text units covering the whole
// document text with no gaps. Consecutive units overlap by the configured
// amount and the trailing partial unit is kept. A document shorter than the
// unit size yields exactly one unit; an empty document yields none.
func (c *Chunker) Units(docID, text string) iter.Seq[TextUnit] {
	return func(yield func(TextUnit) bool) {
		runes := []rune(text)
		n := len(runes)
		if n == 0 {
			return
		}
		step := c.size - c.overlap
		for start, idx := 0, 0; start < n; start, idx = start+step, idx+1 {
			end := start + c.size
			if end > n {
				end = n
			}
			unit := TextUnit{
				ID:         docID + ":" + strconv.Itoa(idx),
				DocumentID: docID,
				Index:      idx,
				Start:      start,
				End:        end,
				Text:       string(runes[start:end]),
			}
			if !yield(unit) {
				return
			}
			if end == n {
				return
			}
		}
	}
}

// Split materializes Units into a slice.
func (c *Chunker) Split(docID, text string) []TextUnit {
	var units []TextUnit
	for unit := range c.Units(docID, text) {
		units = append(units, unit)
	}
	return units
}

// Size returns the configured unit size in characters.
func (c *Chunker) Size() int { return c.size }

// Overlap returns the configured overlap in characters.
func (c *Chunker) Overlap() int { return c.overlap }
