package middleware

import (
	"context"
	"net/http"

	"github.com/rs/xid"
)

const (
	CorrelationIDHeader = "X-Correlation-ID"

	// maxCorrelationIDLength bounds ids accepted from clients.
	maxCorrelationIDLength = 64
)

type ctxKey struct{}

// WithCorrelationID returns a context carrying the correlation ID.
// Platform calls and audit entries made with this context carry the same id.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// CorrelationCtx returns the correlation ID of ctx, or "".
func CorrelationCtx(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

// CorrelationIDMiddleware reuses the client's X-Correlation-ID or assigns a new
// xid, and echoes it on the response.
func CorrelationIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(CorrelationIDHeader)
		if id == "" || len(id) > maxCorrelationIDLength {
			id = xid.New().String()
		}
		w.Header().Set(CorrelationIDHeader, id)
		next.ServeHTTP(w, r.WithContext(WithCorrelationID(r.Context(), id)))
	})
}
