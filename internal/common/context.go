package common

import (
	"context"
)

// Context keys for storing values in context
type contextKey string

const (
	ContextKeyRunID       contextKey = "run_id"
	ContextKeyContentHash contextKey = "content_hash"
)

// WithRunID adds a processing-run ID to the context
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, ContextKeyRunID, runID)
}

// RunIDFromContext extracts the processing-run ID from context
func RunIDFromContext(ctx context.Context) string {
	if runID, ok := ctx.Value(ContextKeyRunID).(string); ok {
		return runID
	}
	return ""
}

// WithContentHash adds the source document's content hash to the context
func WithContentHash(ctx context.Context, hashHex string) context.Context {
	return context.WithValue(ctx, ContextKeyContentHash, hashHex)
}

// ContentHashFromContext extracts the content hash from context
func ContentHashFromContext(ctx context.Context) string {
	if h, ok := ctx.Value(ContextKeyContentHash).(string); ok {
		return h
	}
	return ""
}
