package pipeline

import "errors"

var (
	// ErrInvalidOpportunity marks input rejected at the pipeline boundary
	// before any cache or graph state changes.
	ErrInvalidOpportunity = errors.New("invalid opportunity")

	// ErrStoragePermanent marks a merge that failed in a way a retry will
	// not fix. The notice is marked error in the cache and picked up by a
	// future run.
	ErrStoragePermanent = errors.New("merge failed permanently")
)
