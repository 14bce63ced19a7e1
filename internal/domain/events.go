package domain

import "github.com/google/uuid"

// EventKind identifies a domain event type for dispatch registration.
type EventKind string

const (
	EventTaskCreated     EventKind = "TaskCreated"
	EventStatusUpdated   EventKind = "StatusUpdated"
	EventDataUpdated     EventKind = "DataUpdated"
	EventTaskUpdated     EventKind = "TaskUpdated"
	EventTaskAssigned    EventKind = "TaskAssigned"
	EventTaskUnassigned  EventKind = "TaskUnassigned"
	EventTaskRelated     EventKind = "TaskRelated"
	EventCommentAdded    EventKind = "CommentAdded"
	EventTaskFinalized   EventKind = "TaskFinalized"
	EventOperationFailed EventKind = "OperationFailed"
)

// Event is an in-process notification raised by an aggregate mutation.
// Mutation methods return the events they raise; nothing is buffered on
// the aggregate. The store dispatches the collected events after a
// successful save.
type Event interface {
	Kind() EventKind
}

// TaskCreated is raised once per task creation. Creation-time assignment,
// relations, and the seed comment are folded into this single event.
type TaskCreated struct {
	Task        *Task
	InitiatedBy uuid.UUID
}

func (TaskCreated) Kind() EventKind { return EventTaskCreated }

// StatusUpdated is raised on every status change, including the one a
// finalize delegates to.
type StatusUpdated struct {
	Task        *Task
	InitiatedBy uuid.UUID
}

func (StatusUpdated) Kind() EventKind { return EventStatusUpdated }

// DataUpdated is raised when the opaque data payload is replaced.
type DataUpdated struct {
	Task        *Task
	InitiatedBy uuid.UUID
}

func (DataUpdated) Kind() EventKind { return EventDataUpdated }

// TaskUpdated is raised on the combined data+subject update.
type TaskUpdated struct {
	Task        *Task
	InitiatedBy uuid.UUID
}

func (TaskUpdated) Kind() EventKind { return EventTaskUpdated }

// TaskAssigned is raised when an existing task gets a new assignment.
// Creation-time assignment does not raise it.
type TaskAssigned struct {
	Task        *Task
	InitiatedBy uuid.UUID
}

func (TaskAssigned) Kind() EventKind { return EventTaskAssigned }

// TaskUnassigned is raised when the current assignee is removed.
type TaskUnassigned struct {
	Task        *Task
	InitiatedBy uuid.UUID
}

func (TaskUnassigned) Kind() EventKind { return EventTaskUnassigned }

// TaskRelated is raised on a direct single-relation addition. Bulk
// creation-time relations do not raise it.
type TaskRelated struct {
	Task        *Task
	Relation    Relation
	InitiatedBy uuid.UUID
}

func (TaskRelated) Kind() EventKind { return EventTaskRelated }

// CommentAdded is raised when a comment is stored on an existing task.
type CommentAdded struct {
	Task        *Task
	Comment     Comment
	InitiatedBy uuid.UUID
}

func (CommentAdded) Kind() EventKind { return EventCommentAdded }

// TaskFinalized is raised when a task is closed. It always follows the
// StatusUpdated event of the same finalize call.
type TaskFinalized struct {
	Task        *Task
	InitiatedBy uuid.UUID
}

func (TaskFinalized) Kind() EventKind { return EventTaskFinalized }

// OperationFailed is raised by the transport layer, not the aggregate,
// when a command handler fails. Operation names the failed command kind;
// Target is the identifier the command addressed.
type OperationFailed struct {
	Operation string
	TaskID    uuid.UUID
	Code      string
	Message   string
	Target    string
}

func (OperationFailed) Kind() EventKind { return EventOperationFailed }
