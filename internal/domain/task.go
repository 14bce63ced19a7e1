package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Change records the kind of the last mutation applied to a task.
type Change string

const (
	ChangeInitial    Change = "Initial"
	ChangeStatus     Change = "Status"
	ChangeData       Change = "Data"
	ChangeAssignment Change = "Assignment"
	ChangeFinal      Change = "Final"
	ChangeUpdate     Change = "Update"
)

// AssignmentTypeUnassigned is the sentinel assignment type set when a task
// is explicitly unassigned.
const AssignmentTypeUnassigned = "Unassigned"

// Source identifies the system a task originated from.
type Source struct {
	ID   string
	Name string
}

// Callback is the notification target invoked on finalize and full update.
// Only the HTTP URL variant exists today.
type Callback struct {
	URL string
}

// Assignment is the current assignee of a task. It is an immutable value
// replaced wholesale on every assignment change; AssignedToID is nil when
// the task has never been assigned or was unassigned.
type Assignment struct {
	AssignedToID *uuid.UUID
	Type         string
}

// IsAssigned reports whether the assignment points at an assignee.
func (a Assignment) IsAssigned() bool {
	return a.AssignedToID != nil
}

// Task is the aggregate root tracking a unit of cross-system work through
// its lifecycle. All mutations go through its methods; each mutation stamps
// the audit fields, records the change kind, and returns the domain events
// it raised so the caller can hand them to the store for dispatch.
type Task struct {
	ID               uuid.UUID
	TaskType         string
	Callback         *Callback
	FourEyeSubjectID uuid.UUID
	Subject          string
	Source           Source
	Status           string
	Data             string
	Change           Change
	IsFinal          bool
	Assignment       Assignment
	Relations        []Relation
	Comments         []Comment
	CreatedBy        uuid.UUID
	CreatedDate      time.Time
	ChangedBy        uuid.UUID
	ChangedDate      time.Time
}

// CreateTaskParams carries the full creation payload for NewTask.
type CreateTaskParams struct {
	ID               uuid.UUID
	TaskType         string
	Callback         *Callback
	FourEyeSubjectID uuid.UUID
	Subject          string
	Source           Source
	Status           string
	Data             string
	Assignment       Assignment
	Relations        []Relation
	InitialComment   string
	InitiatedBy      uuid.UUID
}

// NewTask constructs a fresh task aggregate. The initial assignment,
// relations, and optional seed comment are applied without raising their
// own events; the single TaskCreated event returned here represents the
// whole creation. The first relation is flagged as the main relation.
func NewTask(p CreateTaskParams) (*Task, Event) {
	now := time.Now().UTC()
	t := &Task{
		ID:               p.ID,
		TaskType:         p.TaskType,
		Callback:         p.Callback,
		FourEyeSubjectID: p.FourEyeSubjectID,
		Subject:          p.Subject,
		Source:           p.Source,
		Status:           p.Status,
		Data:             p.Data,
		Change:           ChangeInitial,
		Assignment:       p.Assignment,
		CreatedBy:        p.InitiatedBy,
		CreatedDate:      now,
		ChangedBy:        p.InitiatedBy,
		ChangedDate:      now,
	}

	for i, r := range p.Relations {
		t.addRelation(r.EntityID, r.EntityType, i == 0)
	}

	if p.InitialComment != "" {
		t.addComment(p.InitialComment, p.InitiatedBy)
	}

	return t, TaskCreated{Task: t, InitiatedBy: p.InitiatedBy}
}

// touch stamps the audit fields and records the change kind.
func (t *Task) touch(change Change, initiatedBy uuid.UUID) {
	t.Change = change
	t.ChangedBy = initiatedBy
	t.ChangedDate = time.Now().UTC()
}

// UpdateStatus sets the status. The finalized guard lives in the handler
// layer, not here; Finalize reuses this method for its status change.
func (t *Task) UpdateStatus(status string, initiatedBy uuid.UUID) Event {
	t.Status = status
	t.touch(ChangeStatus, initiatedBy)
	return StatusUpdated{Task: t, InitiatedBy: initiatedBy}
}

// Finalize closes the task. The four-eye check runs strictly before any
// state change: the party recorded as the four-eye subject cannot finalize
// the task themselves. When finalState is false only the status changes
// and the task stays open; otherwise the task carries both the status
// change and the final flag, and both events are returned in order.
func (t *Task) Finalize(status string, finalState bool, initiatedBy uuid.UUID) ([]Event, error) {
	if initiatedBy == t.FourEyeSubjectID {
		return nil, fmt.Errorf("%w: subject %s", ErrFourEyeViolation, initiatedBy)
	}

	statusEvent := t.UpdateStatus(status, initiatedBy)
	if !finalState {
		return []Event{statusEvent}, nil
	}

	t.Change = ChangeFinal
	t.IsFinal = true

	return []Event{statusEvent, TaskFinalized{Task: t, InitiatedBy: initiatedBy}}, nil
}

// UpdateData replaces the opaque data payload.
func (t *Task) UpdateData(data string, initiatedBy uuid.UUID) Event {
	t.Data = data
	t.touch(ChangeData, initiatedBy)
	return DataUpdated{Task: t, InitiatedBy: initiatedBy}
}

// Update replaces data and subject in one combined mutation.
func (t *Task) Update(data, subject string, initiatedBy uuid.UUID) Event {
	t.Data = data
	t.Subject = subject
	t.touch(ChangeUpdate, initiatedBy)
	return TaskUpdated{Task: t, InitiatedBy: initiatedBy}
}

// Assign replaces the assignment wholesale.
func (t *Task) Assign(assignment Assignment, initiatedBy uuid.UUID) Event {
	t.Assignment = assignment
	t.touch(ChangeAssignment, initiatedBy)
	return TaskAssigned{Task: t, InitiatedBy: initiatedBy}
}

// Unassign clears the current assignee, replacing the assignment with the
// explicit unassigned sentinel. Fails when nobody is assigned.
func (t *Task) Unassign(initiatedBy uuid.UUID) (Event, error) {
	if !t.Assignment.IsAssigned() {
		return nil, fmt.Errorf("%w: task %s", ErrTaskNotAssigned, t.ID)
	}

	t.Assignment = Assignment{Type: AssignmentTypeUnassigned}
	t.touch(ChangeAssignment, initiatedBy)
	return TaskUnassigned{Task: t, InitiatedBy: initiatedBy}, nil
}

// RelateTo appends a single relation and raises TaskRelated. Used for
// direct relation additions after creation; bulk creation-time relations
// go through AddRelations. Relations are append-only and persisted through
// their own repository, so the task's change kind is left untouched.
func (t *Task) RelateTo(entityID, entityType string, isMain bool, initiatedBy uuid.UUID) (Relation, Event) {
	relation := t.addRelation(entityID, entityType, isMain)
	return relation, TaskRelated{Task: t, Relation: relation, InitiatedBy: initiatedBy}
}

// AddRelations appends relations in bulk without raising events. The first
// relation of an empty task is flagged as main.
func (t *Task) AddRelations(relations []Relation) {
	for _, r := range relations {
		t.addRelation(r.EntityID, r.EntityType, len(t.Relations) == 0)
	}
}

func (t *Task) addRelation(entityID, entityType string, isMain bool) Relation {
	relation := Relation{
		ID:         uuid.New(),
		TaskID:     t.ID,
		EntityID:   entityID,
		EntityType: entityType,
		IsMain:     isMain,
	}
	t.Relations = append(t.Relations, relation)
	return relation
}

// AddComment appends a comment and raises CommentAdded. The creation path
// seeds its initial comment through NewTask instead, which suppresses the
// event so a create does not fan out a duplicate commented pair.
func (t *Task) AddComment(text string, initiatedBy uuid.UUID) (Comment, Event) {
	comment := t.addComment(text, initiatedBy)
	return comment, CommentAdded{Task: t, Comment: comment, InitiatedBy: initiatedBy}
}

func (t *Task) addComment(text string, initiatedBy uuid.UUID) Comment {
	comment := Comment{
		ID:          uuid.New(),
		TaskID:      t.ID,
		Text:        text,
		CreatedBy:   initiatedBy,
		CreatedDate: time.Now().UTC(),
	}
	t.Comments = append(t.Comments, comment)
	return comment
}

// MainRelation returns the relation flagged as main, or nil.
func (t *Task) MainRelation() *Relation {
	for i := range t.Relations {
		if t.Relations[i].IsMain {
			return &t.Relations[i]
		}
	}
	return nil
}
