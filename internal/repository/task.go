package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taskrelay/taskrelay/internal/domain"
	"github.com/taskrelay/taskrelay/internal/events"
)

// taskColumns is the shared list of columns for task queries.
var taskColumns = []string{
	"id", "task_type", "callback_url", "four_eye_subject_id", "subject",
	"source_id", "source_name", "status", "data", "change", "is_final",
	"assigned_to_id", "assignment_type",
	"created_by", "created_date", "changed_by", "changed_date",
}

// TaskRepository handles database operations for tasks and is the flush
// point for domain events: Save dispatches the events collected by a
// handler after the row writes have gone through.
type TaskRepository struct {
	pool       *pgxpool.Pool
	dispatcher *events.Dispatcher
}

// NewTaskRepository creates a new TaskRepository.
func NewTaskRepository(pool *pgxpool.Pool, dispatcher *events.Dispatcher) *TaskRepository {
	return &TaskRepository{pool: pool, dispatcher: dispatcher}
}

// scanTask scans a single row into a Task struct.
func scanTask(row pgx.Row) (*domain.Task, error) {
	var (
		task        domain.Task
		callbackURL *string
	)
	err := row.Scan(
		&task.ID,
		&task.TaskType,
		&callbackURL,
		&task.FourEyeSubjectID,
		&task.Subject,
		&task.Source.ID,
		&task.Source.Name,
		&task.Status,
		&task.Data,
		&task.Change,
		&task.IsFinal,
		&task.Assignment.AssignedToID,
		&task.Assignment.Type,
		&task.CreatedBy,
		&task.CreatedDate,
		&task.ChangedBy,
		&task.ChangedDate,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTaskNotFound
		}
		return nil, fmt.Errorf("scan task: %w", err)
	}
	if callbackURL != nil {
		task.Callback = &domain.Callback{URL: *callbackURL}
	}
	return &task, nil
}

// GetByID retrieves a task with its relations and comments.
func (r *TaskRepository) GetByID(ctx context.Context, taskID uuid.UUID) (*domain.Task, error) {
	query, args, err := psql.
		Select(taskColumns...).
		From("tasks").
		Where(sq.Eq{"id": taskID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build GetByID query for task: %w", err)
	}

	task, err := scanTask(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, err
	}

	task.Relations, err = r.loadRelations(ctx, taskID)
	if err != nil {
		return nil, err
	}

	task.Comments, err = r.loadComments(ctx, taskID)
	if err != nil {
		return nil, err
	}

	return task, nil
}

func (r *TaskRepository) loadRelations(ctx context.Context, taskID uuid.UUID) ([]domain.Relation, error) {
	query, args, err := psql.
		Select("id", "task_id", "entity_id", "entity_type", "is_main").
		From("task_relations").
		Where(sq.Eq{"task_id": taskID}).
		OrderBy("created_at ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build relations query: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query relations: %w", err)
	}
	defer rows.Close()

	var relations []domain.Relation
	for rows.Next() {
		var rel domain.Relation
		if err := rows.Scan(&rel.ID, &rel.TaskID, &rel.EntityID, &rel.EntityType, &rel.IsMain); err != nil {
			return nil, fmt.Errorf("scan relation: %w", err)
		}
		relations = append(relations, rel)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate relations: %w", err)
	}
	return relations, nil
}

func (r *TaskRepository) loadComments(ctx context.Context, taskID uuid.UUID) ([]domain.Comment, error) {
	query, args, err := psql.
		Select("id", "task_id", "text", "created_by", "created_date").
		From("task_comments").
		Where(sq.Eq{"task_id": taskID}).
		OrderBy("created_date ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build comments query: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query comments: %w", err)
	}
	defer rows.Close()

	var comments []domain.Comment
	for rows.Next() {
		var c domain.Comment
		if err := rows.Scan(&c.ID, &c.TaskID, &c.Text, &c.CreatedBy, &c.CreatedDate); err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate comments: %w", err)
	}
	return comments, nil
}

// Create inserts the task row plus its creation-time relations and seed
// comment inside one transaction.
func (r *TaskRepository) Create(ctx context.Context, task *domain.Task) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var callbackURL *string
	if task.Callback != nil {
		callbackURL = &task.Callback.URL
	}

	query, args, err := psql.
		Insert("tasks").
		Columns(taskColumns...).
		Values(
			task.ID, task.TaskType, callbackURL, task.FourEyeSubjectID, task.Subject,
			task.Source.ID, task.Source.Name, task.Status, task.Data, task.Change, task.IsFinal,
			task.Assignment.AssignedToID, task.Assignment.Type,
			task.CreatedBy, task.CreatedDate, task.ChangedBy, task.ChangedDate,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build Create query for task: %w", err)
	}

	if _, err := tx.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("create task: %w", err)
	}

	for _, rel := range task.Relations {
		if err := insertRelation(ctx, tx, rel); err != nil {
			return err
		}
	}
	for _, c := range task.Comments {
		if err := insertComment(ctx, tx, c); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Update rewrites the whole mutable row.
func (r *TaskRepository) Update(ctx context.Context, task *domain.Task) error {
	var callbackURL *string
	if task.Callback != nil {
		callbackURL = &task.Callback.URL
	}

	query, args, err := psql.
		Update("tasks").
		Set("callback_url", callbackURL).
		Set("subject", task.Subject).
		Set("status", task.Status).
		Set("data", task.Data).
		Set("change", task.Change).
		Set("is_final", task.IsFinal).
		Set("assigned_to_id", task.Assignment.AssignedToID).
		Set("assignment_type", task.Assignment.Type).
		Set("changed_by", task.ChangedBy).
		Set("changed_date", task.ChangedDate).
		Where(sq.Eq{"id": task.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build Update query for task %s: %w", task.ID, err)
	}

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTaskNotFound
	}
	return nil
}

// UpdatePartial writes only the masked columns plus the audit fields.
// Unmasked columns are never SET, so a mapping gap cannot null them out.
// There is no row-version check: concurrent commands with disjoint masks
// both succeed, column-subset last-write-wins.
func (r *TaskRepository) UpdatePartial(ctx context.Context, task *domain.Task, mask domain.FieldMask) error {
	q := psql.
		Update("tasks").
		Set("change", task.Change).
		Set("changed_by", task.ChangedBy).
		Set("changed_date", task.ChangedDate)

	if mask.Contains(domain.FieldStatus) {
		q = q.Set("status", task.Status)
	}
	if mask.Contains(domain.FieldData) {
		q = q.Set("data", task.Data)
	}
	if mask.Contains(domain.FieldSubject) {
		q = q.Set("subject", task.Subject)
	}
	if mask.Contains(domain.FieldIsFinal) {
		q = q.Set("is_final", task.IsFinal)
	}
	if mask.Contains(domain.FieldAssignment) {
		q = q.Set("assigned_to_id", task.Assignment.AssignedToID).
			Set("assignment_type", task.Assignment.Type)
	}

	query, args, err := q.Where(sq.Eq{"id": task.ID}).ToSql()
	if err != nil {
		return fmt.Errorf("build UpdatePartial query for task %s: %w", task.ID, err)
	}

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("partial update task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTaskNotFound
	}
	return nil
}

// FindByRange returns tasks whose last change falls inside the range; nil
// bounds are open.
func (r *TaskRepository) FindByRange(ctx context.Context, from, to *time.Time) ([]*domain.Task, error) {
	q := psql.Select(taskColumns...).From("tasks")
	if from != nil {
		q = q.Where(sq.GtOrEq{"changed_date": *from})
	}
	if to != nil {
		q = q.Where(sq.Lt{"changed_date": *to})
	}

	query, args, err := q.OrderBy("changed_date ASC").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build FindByRange query: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query tasks by range: %w", err)
	}
	defer rows.Close()

	var tasks []*domain.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return tasks, nil
}

// Save flushes the handler's collected domain events. The row writes have
// already committed by the time Save runs, so a sink failure here fails
// the command even though the store write went through. That is the
// documented trade-off of keeping the sinks outside the transaction.
func (r *TaskRepository) Save(ctx context.Context, domainEvents []domain.Event) error {
	return r.dispatcher.Dispatch(ctx, domainEvents)
}
