package memory

import (
	"context"
	"fmt"
)

// Retriever is the read side of the pipeline: it embeds a query once and
// delegates the similarity search to the vector store. No query embeddings
// or results are cached.
type Retriever struct {
	// embedder converts the query text to a dense vector.
	embedder Embedder

	// store performs the filtered similarity search.
	store VectorStore
}

// NewRetriever constructs a Retriever from the given Embedder and VectorStore.
func NewRetriever(embedder Embedder, store VectorStore) (*Retriever, error) {
	if embedder == nil {
		return nil, fmt.Errorf("memory: embedder must not be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("memory: store must not be nil")
	}
	return &Retriever{embedder: embedder, store: store}, nil
}

// Search embeds the query and returns prior messages of the given user that
// are semantically relevant to it, ranked by descending similarity. Filters
// in opts further narrow the result; every hit clears the score threshold.
func (r *Retriever) Search(ctx context.Context, query, userID string, opts SearchOptions) ([]SearchHit, error) {
	if query == "" {
		return nil, fmt.Errorf("memory: query must not be empty")
	}
	if userID == "" {
		return nil, fmt.Errorf("memory: user id must not be empty")
	}

	vector, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("memory: embedding query failed: %w", err)
	}

	hits, err := r.store.Search(ctx, vector, userID, opts)
	if err != nil {
		return nil, fmt.Errorf("memory: vector search failed: %w", err)
	}
	return hits, nil
}
