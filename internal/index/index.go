// Package index adapts chromem-go as a session-scoped vector index. An
// index is built once per document and never updated; loading a new
// document means building a new index.
package index

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"strconv"

	"github.com/philippgille/chromem-go"

	"docchat/internal/chunk"
)

// ErrEmpty is returned when Build receives zero entries.
var ErrEmpty = errors.New("cannot build index from zero entries")

// Entry pairs a chunk with its embedding vector.
type Entry struct {
	Chunk  chunk.Chunk
	Vector []float32
}

// Result is a retrieved chunk with its cosine similarity to the query.
type Result struct {
	Chunk      chunk.Chunk
	Similarity float32
}

// Index answers k-nearest-chunk queries. Immutable once built.
type Index struct {
	collection *chromem.Collection
	chunks     []chunk.Chunk
}

// Build constructs the index from all entries at once. Embeddings are the
// caller's, so chromem never reaches out to an embedding endpoint.
func Build(ctx context.Context, entries []Entry) (*Index, error) {
	if len(entries) == 0 {
		return nil, ErrEmpty
	}

	db := chromem.NewDB()
	collection, err := db.CreateCollection("document", nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create collection: %v", err)
	}

	docs := make([]chromem.Document, len(entries))
	chunks := make([]chunk.Chunk, len(entries))
	for i, e := range entries {
		docs[i] = chromem.Document{
			ID:        strconv.Itoa(e.Chunk.Ordinal),
			Content:   e.Chunk.Text,
			Embedding: e.Vector,
			Metadata: map[string]string{
				"start": strconv.Itoa(e.Chunk.Start),
				"end":   strconv.Itoa(e.Chunk.End),
			},
		}
		chunks[i] = e.Chunk
	}
	if err := collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return nil, fmt.Errorf("failed to add documents: %v", err)
	}

	return &Index{collection: collection, chunks: chunks}, nil
}

// Len reports the number of indexed chunks.
func (idx *Index) Len() int { return len(idx.chunks) }

// Search returns up to k chunks ordered by descending cosine similarity.
// k greater than the index size returns everything. Equal similarities are
// ordered by original chunk position.
func (idx *Index) Search(ctx context.Context, query []float32, k int) ([]Result, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k must be > 0, got %d", k)
	}
	if k > len(idx.chunks) {
		k = len(idx.chunks)
	}

	found, err := idx.collection.QueryEmbedding(ctx, query, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query index: %v", err)
	}

	results := make([]Result, 0, len(found))
	for _, r := range found {
		ordinal, err := strconv.Atoi(r.ID)
		if err != nil || ordinal < 0 || ordinal >= len(idx.chunks) {
			return nil, fmt.Errorf("unexpected result id %q", r.ID)
		}
		results = append(results, Result{Chunk: idx.chunks[ordinal], Similarity: r.Similarity})
	}

	// chromem orders by similarity but leaves ties unspecified; pin them to
	// original chunk order.
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Similarity != results[j].Similarity {
			return results[i].Similarity > results[j].Similarity
		}
		return results[i].Chunk.Ordinal < results[j].Chunk.Ordinal
	})
	return results, nil
}
