package ports

import "context"

type ReingestResult struct {
	RecordsIngested       int `json:"recordsIngested"`
	LambdaInvocationCount int `json:"lambdaInvocationCount"`
}

// Reingester asks the ingestion service to process one source document again.
type Reingester interface {
	ReingestDocument(ctx context.Context, documentID string) (ReingestResult, error)
}

// ResolveLocker serializes resolution of one composite id across processes.
// Release must be safe to call after the lock expired.
type ResolveLocker interface {
	Acquire(ctx context.Context, key string) (release func(context.Context) error, err error)
}
