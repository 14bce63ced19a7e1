package events

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/taskrelay/taskrelay/internal/domain"
	"github.com/taskrelay/taskrelay/internal/middleware"
)

// NotificationSink delivers a single integration event to the point
// notification channel, addressed by subject.
type NotificationSink interface {
	Send(ctx context.Context, event IntegrationEvent, subject string) error
}

// StreamSink appends a single integration event to the broadcast stream.
type StreamSink interface {
	Send(ctx context.Context, event IntegrationEvent) error
}

// HandlerFunc translates one domain event into integration events and
// delivers them.
type HandlerFunc func(ctx context.Context, event domain.Event) error

// Dispatcher routes domain events to their registered handlers. The store
// calls Dispatch after a successful save; a sink failure propagates to the
// caller, so the save can fail even though the store write already
// committed. That limitation is deliberate: retries belong to the clients,
// not to this core.
type Dispatcher struct {
	notifier NotificationSink
	stream   StreamSink
	handlers map[domain.EventKind]HandlerFunc
}

// NewDispatcher builds a dispatcher with the full event mapping table
// registered.
func NewDispatcher(notifier NotificationSink, stream StreamSink) *Dispatcher {
	d := &Dispatcher{
		notifier: notifier,
		stream:   stream,
		handlers: make(map[domain.EventKind]HandlerFunc),
	}

	d.Register(domain.EventTaskCreated, d.handleTaskCreated)
	d.Register(domain.EventStatusUpdated, d.taskHandler("UpdateStatusSucceededEvent", succeededEvents))
	d.Register(domain.EventDataUpdated, d.taskHandler("UpdateDataSucceededEvent", succeededEvents))
	d.Register(domain.EventTaskFinalized, d.taskHandler("FinalizeTaskSucceededEvent", succeededEvents))
	d.Register(domain.EventTaskUpdated, d.taskHandler("UpdateTaskSucceededEvent", v2OnlyEvent))
	d.Register(domain.EventTaskAssigned, d.taskHandler("AssignTaskSucceededEvent", v2OnlyEvent))
	d.Register(domain.EventTaskUnassigned, d.taskHandler("UnassignTaskSucceededEvent", v2OnlyEvent))
	d.Register(domain.EventTaskRelated, d.taskHandler("RelateTaskSucceededEvent", v2OnlyEvent))
	d.Register(domain.EventCommentAdded, d.handleCommentAdded)
	d.Register(domain.EventOperationFailed, d.handleOperationFailed)

	return d
}

// Register binds a handler to a domain event kind, replacing any previous
// binding.
func (d *Dispatcher) Register(kind domain.EventKind, handler HandlerFunc) {
	d.handlers[kind] = handler
}

// Dispatch delivers every buffered event to its registered handler in
// order. Events without a handler are logged and skipped; handler failures
// stop the dispatch and propagate.
func (d *Dispatcher) Dispatch(ctx context.Context, events []domain.Event) error {
	for _, event := range events {
		handler, ok := d.handlers[event.Kind()]
		if !ok {
			slog.Warn("no handler registered for domain event", "event_kind", event.Kind())
			continue
		}
		if err := handler(ctx, event); err != nil {
			return fmt.Errorf("dispatch %s: %w", event.Kind(), err)
		}
	}
	return nil
}

// metadata reads the ambient correlation identifiers for outbound stamping.
func metadata(ctx context.Context) Metadata {
	return Metadata{
		CorrelationID: middleware.GetCorrelationID(ctx),
		RequestID:     middleware.GetRequestID(ctx),
		CommandID:     middleware.GetCommandID(ctx),
	}
}

// taskSubject is the correlation subject notifications are addressed to.
func taskSubject(task *domain.Task) string {
	return fmt.Sprintf("api/tasks/%s", task.ID)
}

// send delivers one integration event to both sinks. Each sink call is
// awaited independently and a failure from either propagates unwrapped of
// any retry.
func (d *Dispatcher) send(ctx context.Context, event IntegrationEvent, subject string) error {
	if err := d.notifier.Send(ctx, event, subject); err != nil {
		return fmt.Errorf("notification sink: %w", err)
	}
	if err := d.stream.Send(ctx, event); err != nil {
		return fmt.Errorf("stream sink: %w", err)
	}
	return nil
}

type builderFunc func(name string, task *domain.Task, meta Metadata) []IntegrationEvent

// eventTask extracts the aggregate snapshot from a task-carrying event.
func eventTask(event domain.Event) (*domain.Task, bool) {
	switch e := event.(type) {
	case domain.TaskCreated:
		return e.Task, true
	case domain.StatusUpdated:
		return e.Task, true
	case domain.DataUpdated:
		return e.Task, true
	case domain.TaskUpdated:
		return e.Task, true
	case domain.TaskAssigned:
		return e.Task, true
	case domain.TaskUnassigned:
		return e.Task, true
	case domain.TaskRelated:
		return e.Task, true
	case domain.TaskFinalized:
		return e.Task, true
	default:
		return nil, false
	}
}

// taskHandler builds a handler that fans a task-carrying domain event out
// through the given shape builder and pushes every resulting integration
// event to both sinks under the task subject.
func (d *Dispatcher) taskHandler(name string, build builderFunc) HandlerFunc {
	return func(ctx context.Context, event domain.Event) error {
		task, ok := eventTask(event)
		if !ok {
			return fmt.Errorf("unexpected event payload for %s: %T", name, event)
		}
		for _, integration := range build(name, task, metadata(ctx)) {
			if err := d.send(ctx, integration, taskSubject(task)); err != nil {
				return err
			}
		}
		return nil
	}
}

// handleTaskCreated sends a compact creation notification without a
// subject (there is no caller waiting on a task address yet) and fans the
// full create-succeeded shapes out on the stream.
func (d *Dispatcher) handleTaskCreated(ctx context.Context, event domain.Event) error {
	created, ok := event.(domain.TaskCreated)
	if !ok {
		return fmt.Errorf("unexpected event payload for TaskCreated: %T", event)
	}

	meta := metadata(ctx)
	notification := TaskEventV2{
		Name:     "CreateTaskSucceededNotificationEvent",
		Task:     payloadV2(created.Task),
		Metadata: meta,
	}
	if err := d.notifier.Send(ctx, notification, ""); err != nil {
		return fmt.Errorf("notification sink: %w", err)
	}

	for _, integration := range succeededEvents("CreateTaskSucceededEvent", created.Task, meta) {
		if err := d.stream.Send(ctx, integration); err != nil {
			return fmt.Errorf("stream sink: %w", err)
		}
	}
	return nil
}

func (d *Dispatcher) handleCommentAdded(ctx context.Context, event domain.Event) error {
	added, ok := event.(domain.CommentAdded)
	if !ok {
		return fmt.Errorf("unexpected event payload for CommentAdded: %T", event)
	}

	integration := CommentEvent{
		Name:      "StoreCommentSucceededEvent",
		TaskID:    added.Task.ID,
		CommentID: added.Comment.ID,
		Text:      added.Comment.Text,
		CreatedBy: added.Comment.CreatedBy,
		Metadata:  metadata(ctx),
	}
	return d.send(ctx, integration, taskSubject(added.Task))
}

func (d *Dispatcher) handleOperationFailed(ctx context.Context, event domain.Event) error {
	failed, ok := event.(domain.OperationFailed)
	if !ok {
		return fmt.Errorf("unexpected event payload for OperationFailed: %T", event)
	}

	integration := FailedEvent{
		Name:     failed.Operation + "FailedEvent",
		Code:     failed.Code,
		Message:  failed.Message,
		Target:   failed.Target,
		Metadata: metadata(ctx),
	}

	subject := ""
	if failed.TaskID != uuid.Nil {
		subject = fmt.Sprintf("api/tasks/%s", failed.TaskID)
	}
	return d.send(ctx, integration, subject)
}
