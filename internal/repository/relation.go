package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taskrelay/taskrelay/internal/domain"
	"github.com/taskrelay/taskrelay/internal/events"
)

// RelationRepository persists relations directly, for the path where the
// task row itself is not rewritten.
type RelationRepository struct {
	pool       *pgxpool.Pool
	dispatcher *events.Dispatcher
}

// NewRelationRepository creates a new RelationRepository.
func NewRelationRepository(pool *pgxpool.Pool, dispatcher *events.Dispatcher) *RelationRepository {
	return &RelationRepository{pool: pool, dispatcher: dispatcher}
}

// insertRelation writes one relation row through a pool or transaction.
func insertRelation(ctx context.Context, db execer, relation domain.Relation) error {
	query, args, err := psql.
		Insert("task_relations").
		Columns("id", "task_id", "entity_id", "entity_type", "is_main").
		Values(relation.ID, relation.TaskID, relation.EntityID, relation.EntityType, relation.IsMain).
		ToSql()
	if err != nil {
		return fmt.Errorf("build relation insert: %w", err)
	}
	if _, err := db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("create relation: %w", err)
	}
	return nil
}

// Create inserts a single relation.
func (r *RelationRepository) Create(ctx context.Context, relation domain.Relation) error {
	return insertRelation(ctx, r.pool, relation)
}

// Save dispatches the collected domain events after the relation write.
func (r *RelationRepository) Save(ctx context.Context, domainEvents []domain.Event) error {
	return r.dispatcher.Dispatch(ctx, domainEvents)
}
