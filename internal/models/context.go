package models

import (
	"context"
)

type captureContextKey struct{}

// CaptureContext carries the session that produced an earning through context
// so ledger backends can record it as metadata without widening LedgerStore.
type CaptureContext struct {
	SessionId      string
	ScheduleId     *int64
	ConsentVersion *int64
	StorageKey     string
}

// WithCaptureContext attaches capture data to a context.
func WithCaptureContext(ctx context.Context, cc *CaptureContext) context.Context {
	return context.WithValue(ctx, captureContextKey{}, cc)
}

// GetCaptureContext retrieves capture data from context, or nil if absent.
func GetCaptureContext(ctx context.Context) *CaptureContext {
	cc, _ := ctx.Value(captureContextKey{}).(*CaptureContext)
	return cc
}
