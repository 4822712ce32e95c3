// Package trace generates request trace ids.
package trace

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NewID returns "<uuid4>-<unix ms>".
func NewID(now time.Time) string {
	return fmt.Sprintf("%s-%d", uuid.NewString(), now.UnixMilli())
}

type ctxKey struct{}

// WithID returns a copy of ctx carrying the trace id.
func WithID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the trace id stored by WithID, or "" when there is none.
func FromContext(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}
