package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/taskrelay/taskrelay/internal/domain"
)

// TaskStore is the persistence contract the command handlers need. Save is
// the flush point: it commits pending writes and dispatches every domain
// event handed to it, exactly once per call.
//
// UpdatePartial writes only the masked columns plus the audit fields. The
// aggregate is loaded from a plain snapshot with no row-version check, so
// two concurrent commands touching disjoint masks both succeed; conflict
// detection is column-subset last-write-wins.
type TaskStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error)
	Create(ctx context.Context, task *domain.Task) error
	Update(ctx context.Context, task *domain.Task) error
	UpdatePartial(ctx context.Context, task *domain.Task, mask domain.FieldMask) error
	FindByRange(ctx context.Context, from, to *time.Time) ([]*domain.Task, error)
	Save(ctx context.Context, events []domain.Event) error
}

// CommentStore persists comments directly when the task row itself is not
// rewritten.
type CommentStore interface {
	Create(ctx context.Context, comment domain.Comment) error
	Save(ctx context.Context, events []domain.Event) error
}

// RelationStore persists relations directly when the task row itself is
// not rewritten.
type RelationStore interface {
	Create(ctx context.Context, relation domain.Relation) error
	Save(ctx context.Context, events []domain.Event) error
}

// CallbackSink delivers a task snapshot to the task's configured callback
// target. Non-2xx responses are logged by the implementation, not raised.
type CallbackSink interface {
	Callback(ctx context.Context, target *domain.Callback, task *domain.Task) error
}
