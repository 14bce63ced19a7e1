package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/taskrelay/taskrelay/internal/command"
	"github.com/taskrelay/taskrelay/internal/domain"
	"github.com/taskrelay/taskrelay/internal/events"
	"github.com/taskrelay/taskrelay/internal/middleware"
	"github.com/taskrelay/taskrelay/internal/service"
)

// Consumer reads command envelopes off the Redis stream through a consumer
// group and feeds them to the command handlers. Handler failures are
// terminal for the message: the failure fans out as a *Failed integration
// event and the message is acknowledged, never redelivered.
type Consumer struct {
	rdb        *goredis.Client
	service    *service.TaskService
	registry   *Registry
	dispatcher *events.Dispatcher
	stream     string
	group      string
	consumer   string
}

// NewConsumer creates a Consumer.
func NewConsumer(rdb *goredis.Client, svc *service.TaskService, registry *Registry,
	dispatcher *events.Dispatcher, stream, group, consumer string,
) *Consumer {
	return &Consumer{
		rdb:        rdb,
		service:    svc,
		registry:   registry,
		dispatcher: dispatcher,
		stream:     stream,
		group:      group,
		consumer:   consumer,
	}
}

// Run consumes until the context is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	err := c.rdb.XGroupCreateMkStream(ctx, c.stream, c.group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("create consumer group: %w", err)
	}

	slog.Info("command consumer started",
		"stream", c.stream,
		"group", c.group,
		"consumer", c.consumer,
	)

	for {
		streams, err := c.rdb.XReadGroup(ctx, &goredis.XReadGroupArgs{
			Group:    c.group,
			Consumer: c.consumer,
			Streams:  []string{c.stream, ">"},
			Count:    16,
			Block:    5 * time.Second,
		}).Result()
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled) {
				slog.Info("command consumer stopped")
				return nil
			}
			if errors.Is(err, goredis.Nil) {
				continue
			}
			return fmt.Errorf("read command stream: %w", err)
		}

		for _, stream := range streams {
			for _, msg := range stream.Messages {
				c.process(ctx, msg)
				if err := c.rdb.XAck(ctx, c.stream, c.group, msg.ID).Err(); err != nil {
					slog.Error("ack failed", "message_id", msg.ID, "error", err)
				}
			}
		}
	}
}

// process handles one stream entry. Malformed entries are logged and
// skipped; command failures publish a *Failed event.
func (c *Consumer) process(ctx context.Context, msg goredis.XMessage) {
	env, err := decodeEnvelope(msg)
	if err != nil {
		slog.Warn("malformed command message", "message_id", msg.ID, "error", err)
		return
	}

	if cid := env.Header(HeaderCorrelationID); cid != "" {
		ctx = middleware.WithCorrelationID(ctx, cid)
	}
	if rid := env.Header(HeaderRequestID); rid != "" {
		ctx = middleware.WithRequestID(ctx, rid)
	}

	if err := c.handle(ctx, env); err != nil {
		slog.Error("command handling failed",
			"message_id", msg.ID,
			"message_type", env.Type,
			"error", err,
		)
	}
}

// decodeEnvelope rebuilds the typed envelope from the stream entry values.
func decodeEnvelope(msg goredis.XMessage) (Envelope, error) {
	raw, ok := msg.Values["envelope"].(string)
	if !ok {
		return Envelope{}, fmt.Errorf("stream entry has no envelope value")
	}

	var env Envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Type == "" {
		return Envelope{}, fmt.Errorf("envelope has no type tag")
	}
	return env, nil
}

// handle maps the envelope to a command and runs the matching handler. A
// handler failure fans out through the sinks as a *Failed event before
// propagating; a failure of that publish itself is not suppressed and
// becomes the message outcome.
func (c *Consumer) handle(ctx context.Context, env Envelope) error {
	cmd, err := c.registry.Map(env)
	if err != nil {
		return err
	}

	operation, taskID, target, err := c.execute(ctx, cmd)
	if err != nil {
		if pubErr := c.publishFailure(ctx, operation, taskID, target, err); pubErr != nil {
			return fmt.Errorf("publish failure event for %s: %w", operation, pubErr)
		}
		return err
	}
	return nil
}

// execute routes the mapped command to its handler. It returns the
// operation name and target so a failure can be reported with context.
func (c *Consumer) execute(ctx context.Context, cmd any) (operation string, taskID uuid.UUID, target string, err error) {
	switch cmd := cmd.(type) {
	case *command.CreateTask:
		_, err = c.service.CreateTask(ctx, cmd)
		return "CreateTask", cmd.TaskID, cmd.SourceID, err
	case *command.UpdateTaskStatus:
		_, err = c.service.UpdateStatus(ctx, cmd)
		return "UpdateStatus", cmd.TaskID, cmd.TaskID.String(), err
	case *command.FinalizeTask:
		_, err = c.service.Finalize(ctx, cmd)
		return "FinalizeTask", cmd.TaskID, cmd.TaskID.String(), err
	case *command.UpdateTaskData:
		_, err = c.service.UpdateData(ctx, cmd)
		return "UpdateData", cmd.TaskID, cmd.TaskID.String(), err
	case *command.UpdateTask:
		_, err = c.service.Update(ctx, cmd)
		return "UpdateTask", cmd.TaskID, cmd.TaskID.String(), err
	case *command.AssignTask:
		_, err = c.service.Assign(ctx, cmd)
		return "AssignTask", cmd.TaskID, cmd.TaskID.String(), err
	case *command.UnassignTask:
		_, err = c.service.Unassign(ctx, cmd)
		return "UnassignTask", cmd.TaskID, cmd.TaskID.String(), err
	case *command.RelateTask:
		_, err = c.service.Relate(ctx, cmd)
		return "RelateTask", cmd.TaskID, cmd.EntityID, err
	case *command.StoreComment:
		_, err = c.service.StoreComment(ctx, cmd)
		return "StoreComment", cmd.TaskID, cmd.TaskID.String(), err
	default:
		return "Unknown", uuid.Nil, "", fmt.Errorf("%w: unroutable command %T", domain.ErrValidation, cmd)
	}
}

// publishFailure fans a handler failure out through the same sinks the
// succeeded events use. This is a one-shot publish, never retried; a
// failure of the publish itself propagates to the caller.
func (c *Consumer) publishFailure(ctx context.Context, operation string, taskID uuid.UUID, target string, cause error) error {
	failed := domain.OperationFailed{
		Operation: operation,
		TaskID:    taskID,
		Code:      errorCode(cause),
		Message:   cause.Error(),
		Target:    target,
	}
	return c.dispatcher.Dispatch(ctx, []domain.Event{failed})
}

// errorCode maps a handler error to the wire-level failure code.
func errorCode(err error) string {
	switch {
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrNilCommand):
		return "VALIDATION_FAILURE"
	case errors.Is(err, domain.ErrTaskNotFound):
		return "NOT_FOUND"
	case errors.Is(err, domain.ErrTaskFinalized):
		return "CANNOT_MODIFY_FINALIZED"
	case errors.Is(err, domain.ErrFourEyeViolation):
		return "FOUR_EYE_VIOLATION"
	case errors.Is(err, domain.ErrTaskNotAssigned):
		return "TASK_NOT_ASSIGNED"
	default:
		return "INTERNAL_ERROR"
	}
}
