package core

import "context"

// Context keys for collect options
type contextKey string

const runIDKey contextKey = "runID"

// withRunID attaches the run history id to the context
func withRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey, runID)
}

// getRunID returns the run history id from context, if any
func getRunID(ctx context.Context) (string, bool) {
	runID, ok := ctx.Value(runIDKey).(string)
	return runID, ok && runID != ""
}
