package domain

import "context"

// Retriever fetches the result of one archive request into a local file.
type Retriever interface {
	// Retrieve blocks until target holds the complete result or the request
	// fails. A failed call never leaves a partial file at target.
	Retrieve(ctx context.Context, req Request, target string) error
}
