// Package chunk splits extracted text into overlapping fixed-size windows.
package chunk

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig is returned for a chunk geometry that cannot make progress.
var ErrInvalidConfig = errors.New("invalid chunking config")

// Chunk is an ordered text span of a document. Start and End are rune
// offsets into the extracted text; Ordinal is the position in split order.
type Chunk struct {
	Text    string `json:"text"`
	Start   int    `json:"start"`
	End     int    `json:"end"`
	Ordinal int    `json:"ordinal"`
}

// Chunker produces fixed-size windows of Size runes, each overlapping its
// predecessor by exactly Overlap runes (the last window may be shorter).
type Chunker struct {
	size    int
	overlap int
}

func New(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: size must be > 0, got %d", ErrInvalidConfig, size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("%w: overlap must be in [0, size), got %d", ErrInvalidConfig, overlap)
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

// Split windows the text. Offsets advance by size-overlap until they reach
// the end of the text; text no longer than one window yields a single chunk
// equal to the whole text. Empty text yields no chunks.
func (c *Chunker) Split(text string) []Chunk {
	runes := []rune(text)
	n := len(runes)
	if n == 0 {
		return nil
	}

	stride := c.size - c.overlap
	var chunks []Chunk
	for off := 0; off < n; off += stride {
		end := off + c.size
		if end > n {
			end = n
		}
		chunks = append(chunks, Chunk{
			Text:    string(runes[off:end]),
			Start:   off,
			End:     end,
			Ordinal: len(chunks),
		})
		if end == n {
			break
		}
	}
	return chunks
}

// Size and Overlap expose the configured geometry.
func (c *Chunker) Size() int    { return c.size }
func (c *Chunker) Overlap() int { return c.overlap }
