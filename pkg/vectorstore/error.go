package vectorstore

import "errors"

var (
	// ErrNoEmbedder is returned when an upsert needs to compute an
	// embedding but no embedding client has been injected. This is a fatal
	// precondition, not a recoverable fallback.
	ErrNoEmbedder = errors.New("no embedding client configured")

	// ErrEmbedding is returned when embedding generation fails.
	ErrEmbedding = errors.New("embedding failed")
)
