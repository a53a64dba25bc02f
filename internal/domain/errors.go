package domain

import "errors"

var (
	// ErrInvalidQuery signals a missing or empty query parameter.
	ErrInvalidQuery = errors.New("invalid query")
	// ErrRateLimited signals a rate limit hit.
	ErrRateLimited = errors.New("rate limited")
	// ErrUpstream signals an embedding, vector backend, or generative
	// provider failure. It is recovered locally via the fallback path and
	// never surfaces to the API caller as an error.
	ErrUpstream = errors.New("upstream service error")
	// ErrEmptyCorpus signals a corpus that produced no chunks. Indexing only.
	ErrEmptyCorpus = errors.New("empty corpus")
)
