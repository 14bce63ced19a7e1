// Package middleware carries request-scoped identity and correlation
// metadata. The HTTP layer and the bus consumer both stash the acting
// identity and the ambient correlation/request/command ids here; the
// integration event translator reads them back when stamping outbound
// events.
package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

type contextKey string

const (
	contextKeyUserID        contextKey = "user_id"
	contextKeyCorrelationID contextKey = "correlation_id"
	contextKeyRequestID     contextKey = "request_id"
	contextKeyCommandID     contextKey = "command_id"
)

// Header names recognized on inbound requests and bus messages. The acting
// identity comes from HeaderUserID, falling back to HeaderExternalID.
const (
	HeaderUserID        = "X-User-Id"
	HeaderExternalID    = "X-External-Id"
	HeaderCorrelationID = "X-Correlation-Id"
	HeaderRequestID     = "X-Request-Id"
)

// WithUserID stores the acting identity in the context.
func WithUserID(ctx context.Context, userID uuid.UUID) context.Context {
	return context.WithValue(ctx, contextKeyUserID, userID)
}

// GetUserID returns the acting identity, or false when none was set.
func GetUserID(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(contextKeyUserID).(uuid.UUID)
	return id, ok
}

// WithCorrelationID stores the correlation id in the context.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, contextKeyCorrelationID, id)
}

// GetCorrelationID returns the ambient correlation id, or empty.
func GetCorrelationID(ctx context.Context) string {
	id, _ := ctx.Value(contextKeyCorrelationID).(string)
	return id
}

// WithRequestID stores the request id in the context.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, contextKeyRequestID, id)
}

// GetRequestID returns the ambient request id, or empty.
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(contextKeyRequestID).(string)
	return id
}

// WithCommandID stores the command id in the context.
func WithCommandID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, contextKeyCommandID, id.String())
}

// GetCommandID returns the ambient command id, or empty.
func GetCommandID(ctx context.Context) string {
	id, _ := ctx.Value(contextKeyCommandID).(string)
	return id
}

// Identity extracts caller identity and correlation metadata from request
// headers into the context. Requests without an identity header are
// rejected; the write surface always acts on behalf of someone.
func Identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get(HeaderUserID)
		if raw == "" {
			raw = r.Header.Get(HeaderExternalID)
		}
		if raw == "" {
			http.Error(w, "missing identity header", http.StatusUnauthorized)
			return
		}

		userID, err := uuid.Parse(raw)
		if err != nil {
			http.Error(w, "identity header must be a valid UUID", http.StatusUnauthorized)
			return
		}

		ctx := WithUserID(r.Context(), userID)
		if cid := r.Header.Get(HeaderCorrelationID); cid != "" {
			ctx = WithCorrelationID(ctx, cid)
		}
		if rid := r.Header.Get(HeaderRequestID); rid != "" {
			ctx = WithRequestID(ctx, rid)
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
