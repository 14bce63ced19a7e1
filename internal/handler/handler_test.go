package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskrelay/taskrelay/internal/domain"
	"github.com/taskrelay/taskrelay/internal/events"
	"github.com/taskrelay/taskrelay/internal/handler/dto"
)

type stubNotifier struct{ err error }

func (s stubNotifier) Send(ctx context.Context, event events.IntegrationEvent, subject string) error {
	return s.err
}

type stubStream struct{ err error }

func (s stubStream) Send(ctx context.Context, event events.IntegrationEvent) error {
	return s.err
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) dto.ErrorResponse {
	t.Helper()
	var resp dto.ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestRespondCommandError(t *testing.T) {
	t.Run("maps the error when the failure event publishes", func(t *testing.T) {
		h := &Handler{dispatcher: events.NewDispatcher(stubNotifier{}, stubStream{})}
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/tasks", nil)

		h.respondCommandError(rec, req, "FinalizeTask", uuid.New(), domain.ErrTaskFinalized)

		assert.Equal(t, http.StatusConflict, rec.Code)
		resp := decodeError(t, rec)
		assert.Equal(t, "CANNOT_MODIFY_FINALIZED", resp.Error.Code)
	})

	t.Run("surfaces a failed publish instead of the mapped error", func(t *testing.T) {
		sinkErr := errors.New("redis connection refused")
		h := &Handler{dispatcher: events.NewDispatcher(stubNotifier{err: sinkErr}, stubStream{err: sinkErr})}
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/tasks", nil)

		h.respondCommandError(rec, req, "FinalizeTask", uuid.New(), domain.ErrTaskFinalized)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		resp := decodeError(t, rec)
		assert.Equal(t, "EVENT_PUBLISH_FAILURE", resp.Error.Code)
	})
}

func TestExtractTaskID(t *testing.T) {
	mux := http.NewServeMux()
	var got uuid.UUID
	mux.HandleFunc("GET /tasks/{id}", func(w http.ResponseWriter, r *http.Request) {
		id, ok := extractTaskID(w, r)
		if ok {
			got = id
			w.WriteHeader(http.StatusOK)
		}
	})

	t.Run("valid uuid", func(t *testing.T) {
		id := uuid.New()
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/tasks/"+id.String(), nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, id, got)
	})

	t.Run("malformed uuid", func(t *testing.T) {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/tasks/not-a-uuid", nil))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		resp := decodeError(t, rec)
		assert.Equal(t, "INVALID_REQUEST", resp.Error.Code)
	})
}
