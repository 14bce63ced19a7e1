package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taskrelay/taskrelay/internal/domain"
	"github.com/taskrelay/taskrelay/internal/events"
)

// CommentRepository persists comments directly, for the path where the
// task row itself is not rewritten.
type CommentRepository struct {
	pool       *pgxpool.Pool
	dispatcher *events.Dispatcher
}

// NewCommentRepository creates a new CommentRepository.
func NewCommentRepository(pool *pgxpool.Pool, dispatcher *events.Dispatcher) *CommentRepository {
	return &CommentRepository{pool: pool, dispatcher: dispatcher}
}

// insertComment writes one comment row through a pool or transaction.
func insertComment(ctx context.Context, db execer, comment domain.Comment) error {
	query, args, err := psql.
		Insert("task_comments").
		Columns("id", "task_id", "text", "created_by", "created_date").
		Values(comment.ID, comment.TaskID, comment.Text, comment.CreatedBy, comment.CreatedDate).
		ToSql()
	if err != nil {
		return fmt.Errorf("build comment insert: %w", err)
	}
	if _, err := db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("create comment: %w", err)
	}
	return nil
}

// Create inserts a single comment.
func (r *CommentRepository) Create(ctx context.Context, comment domain.Comment) error {
	return insertComment(ctx, r.pool, comment)
}

// Save dispatches the collected domain events after the comment write.
func (r *CommentRepository) Save(ctx context.Context, domainEvents []domain.Event) error {
	return r.dispatcher.Dispatch(ctx, domainEvents)
}
