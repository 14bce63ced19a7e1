// Package bus receives externally published command messages, maps their
// versioned wire schemas onto the internal command set, and feeds them to
// the command handlers.
package bus

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/taskrelay/taskrelay/internal/domain"
)

// Message header keys. The acting identity comes from HeaderUserID,
// falling back to HeaderExternalID.
const (
	HeaderUserID        = "x-user-id"
	HeaderExternalID    = "x-external-id"
	HeaderCorrelationID = "x-correlation-id"
	HeaderRequestID     = "x-request-id"
)

// Envelope is the typed inbound message: a type tag naming the wire
// schema version, string headers, and the raw body. Adapters read named
// header keys through Header instead of reflecting over payload shapes.
type Envelope struct {
	Type    string            `json:"type"`
	Headers map[string]string `json:"headers"`
	Body    json.RawMessage   `json:"body"`
}

// Header returns a header value, matching keys case-insensitively.
func (e Envelope) Header(key string) string {
	if v, ok := e.Headers[key]; ok {
		return v
	}
	for k, v := range e.Headers {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return ""
}

// Identity extracts the acting identity from the message headers.
func (e Envelope) Identity() (uuid.UUID, error) {
	raw := e.Header(HeaderUserID)
	if raw == "" {
		raw = e.Header(HeaderExternalID)
	}
	if raw == "" {
		return uuid.Nil, fmt.Errorf("%w: message has no identity header", domain.ErrValidation)
	}

	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: identity header is not a UUID: %v", domain.ErrValidation, err)
	}
	return id, nil
}
