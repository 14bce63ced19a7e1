package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/taskrelay/taskrelay/internal/domain"
)

// HTTPCallback posts task snapshots to the callback URL configured on a
// task. It is invoked by the finalize and full-update handlers.
type HTTPCallback struct {
	client *http.Client
}

// NewHTTPCallback creates a callback sink with a bounded request timeout.
func NewHTTPCallback() *HTTPCallback {
	return &HTTPCallback{
		client: &http.Client{Timeout: 15 * time.Second},
	}
}

// callbackPayload is the body posted to the callback target.
type callbackPayload struct {
	ID     uuid.UUID `json:"id"`
	Status string    `json:"status"`
	Data   string    `json:"data"`
}

// Callback delivers the task snapshot. Non-2xx responses are logged and
// not raised; only transport-level failures surface to the caller.
func (c *HTTPCallback) Callback(ctx context.Context, target *domain.Callback, task *domain.Task) error {
	body, err := json.Marshal(callbackPayload{
		ID:     task.ID,
		Status: task.Status,
		Data:   task.Data,
	})
	if err != nil {
		return fmt.Errorf("marshal callback payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build callback request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("post callback: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		slog.Warn("callback target returned non-2xx",
			"task_id", task.ID,
			"callback_url", target.URL,
			"status_code", resp.StatusCode,
		)
	}

	return nil
}
