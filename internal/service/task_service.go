package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/taskrelay/taskrelay/internal/command"
	"github.com/taskrelay/taskrelay/internal/domain"
	"github.com/taskrelay/taskrelay/internal/middleware"
)

// TaskService hosts the command handlers. Every handler follows the same
// shape: validate the command, load the aggregate, guard against finalized
// tasks, apply the mutation, persist the touched column subset, and hand
// the raised domain events to the store's Save, which dispatches them.
type TaskService struct {
	tasks     TaskStore
	comments  CommentStore
	relations RelationStore
	callback  CallbackSink
}

// NewTaskService creates a new TaskService.
func NewTaskService(tasks TaskStore, comments CommentStore, relations RelationStore, callback CallbackSink) *TaskService {
	return &TaskService{
		tasks:     tasks,
		comments:  comments,
		relations: relations,
		callback:  callback,
	}
}

// load fetches the aggregate and applies the finalized guard shared by
// every mutating handler except create.
func (s *TaskService) load(ctx context.Context, taskID uuid.UUID) (*domain.Task, error) {
	task, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task.IsFinal {
		return nil, fmt.Errorf("%w: task %s", domain.ErrTaskFinalized, task.ID)
	}
	return task, nil
}

// CreateTask builds a fresh aggregate from the creation payload. The
// initial assignment, relations (first one flagged main), and optional
// seed comment are applied without their own events; the single
// TaskCreated event represents the whole creation.
func (s *TaskService) CreateTask(ctx context.Context, cmd *command.CreateTask) (*domain.Task, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	ctx = middleware.WithCommandID(ctx, cmd.CommandID)

	taskID := cmd.TaskID
	if taskID == uuid.Nil {
		taskID = uuid.New()
	}

	var callback *domain.Callback
	if cmd.CallbackURL != "" {
		callback = &domain.Callback{URL: cmd.CallbackURL}
	}

	task, created := domain.NewTask(domain.CreateTaskParams{
		ID:               taskID,
		TaskType:         cmd.TaskType,
		Callback:         callback,
		FourEyeSubjectID: cmd.FourEyeSubjectID,
		Subject:          cmd.Subject,
		Source:           domain.Source{ID: cmd.SourceID, Name: cmd.SourceName},
		Status:           cmd.Status,
		Data:             cmd.Data,
		Assignment:       cmd.Assignment.Assignment(),
		Relations:        command.DomainRelations(cmd.Relations),
		InitialComment:   cmd.InitialComment,
		InitiatedBy:      cmd.InitiatedBy,
	})

	if err := s.tasks.Create(ctx, task); err != nil {
		return nil, err
	}
	if err := s.tasks.Save(ctx, []domain.Event{created}); err != nil {
		return nil, err
	}

	slog.Info("task created",
		"task_id", task.ID,
		"task_type", task.TaskType,
		"initiated_by", cmd.InitiatedBy,
	)

	return task, nil
}

// UpdateStatus sets a new status on a non-finalized task.
func (s *TaskService) UpdateStatus(ctx context.Context, cmd *command.UpdateTaskStatus) (*domain.Task, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	ctx = middleware.WithCommandID(ctx, cmd.CommandID)

	task, err := s.load(ctx, cmd.TaskID)
	if err != nil {
		return nil, err
	}

	event := task.UpdateStatus(cmd.Status, cmd.InitiatedBy)

	if err := s.tasks.UpdatePartial(ctx, task, domain.MaskStatus); err != nil {
		return nil, err
	}
	if err := s.tasks.Save(ctx, []domain.Event{event}); err != nil {
		return nil, err
	}

	slog.Info("task status updated",
		"task_id", task.ID,
		"status", task.Status,
		"initiated_by", cmd.InitiatedBy,
	)

	return task, nil
}

// Finalize closes a task, or just applies the closing status change when the
// command carries FinalState false. The four-eye guard runs inside the aggregate
// strictly before any state change. The callback, when configured, fires
// before Save: a callback can observe a change that a failing Save rolls
// back. Consumers may depend on that ordering, so it is kept.
func (s *TaskService) Finalize(ctx context.Context, cmd *command.FinalizeTask) (*domain.Task, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	ctx = middleware.WithCommandID(ctx, cmd.CommandID)

	task, err := s.load(ctx, cmd.TaskID)
	if err != nil {
		return nil, err
	}

	finalized, err := task.Finalize(cmd.Status, cmd.FinalState, cmd.InitiatedBy)
	if err != nil {
		return nil, err
	}

	if err := s.tasks.UpdatePartial(ctx, task, domain.MaskFinalize); err != nil {
		return nil, err
	}

	if task.IsFinal {
		s.invokeCallback(ctx, task)
	}

	if err := s.tasks.Save(ctx, finalized); err != nil {
		return nil, err
	}

	slog.Info("task finalized",
		"task_id", task.ID,
		"status", task.Status,
		"is_final", task.IsFinal,
		"initiated_by", cmd.InitiatedBy,
	)

	return task, nil
}

// UpdateData replaces the opaque data payload of a non-finalized task.
func (s *TaskService) UpdateData(ctx context.Context, cmd *command.UpdateTaskData) (*domain.Task, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	ctx = middleware.WithCommandID(ctx, cmd.CommandID)

	task, err := s.load(ctx, cmd.TaskID)
	if err != nil {
		return nil, err
	}

	event := task.UpdateData(cmd.Data, cmd.InitiatedBy)

	if err := s.tasks.UpdatePartial(ctx, task, domain.MaskData); err != nil {
		return nil, err
	}
	if err := s.tasks.Save(ctx, []domain.Event{event}); err != nil {
		return nil, err
	}

	slog.Info("task data updated", "task_id", task.ID, "initiated_by", cmd.InitiatedBy)

	return task, nil
}

// Update is the v2 combined data+subject update. Like Finalize it fires
// the configured callback before Save.
func (s *TaskService) Update(ctx context.Context, cmd *command.UpdateTask) (*domain.Task, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	ctx = middleware.WithCommandID(ctx, cmd.CommandID)

	task, err := s.load(ctx, cmd.TaskID)
	if err != nil {
		return nil, err
	}

	event := task.Update(cmd.Data, cmd.Subject, cmd.InitiatedBy)

	if err := s.tasks.UpdatePartial(ctx, task, domain.MaskUpdate); err != nil {
		return nil, err
	}

	s.invokeCallback(ctx, task)

	if err := s.tasks.Save(ctx, []domain.Event{event}); err != nil {
		return nil, err
	}

	slog.Info("task updated", "task_id", task.ID, "initiated_by", cmd.InitiatedBy)

	return task, nil
}

// Assign replaces the current assignment wholesale.
func (s *TaskService) Assign(ctx context.Context, cmd *command.AssignTask) (*domain.Task, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	ctx = middleware.WithCommandID(ctx, cmd.CommandID)

	task, err := s.load(ctx, cmd.TaskID)
	if err != nil {
		return nil, err
	}

	assignedTo := cmd.AssignedToID
	event := task.Assign(domain.Assignment{
		AssignedToID: &assignedTo,
		Type:         cmd.AssignmentType,
	}, cmd.InitiatedBy)

	if err := s.tasks.UpdatePartial(ctx, task, domain.MaskAssignment); err != nil {
		return nil, err
	}
	if err := s.tasks.Save(ctx, []domain.Event{event}); err != nil {
		return nil, err
	}

	slog.Info("task assigned",
		"task_id", task.ID,
		"assigned_to", cmd.AssignedToID,
		"initiated_by", cmd.InitiatedBy,
	)

	return task, nil
}

// Unassign removes the current assignee; fails when nobody is assigned.
func (s *TaskService) Unassign(ctx context.Context, cmd *command.UnassignTask) (*domain.Task, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	ctx = middleware.WithCommandID(ctx, cmd.CommandID)

	task, err := s.load(ctx, cmd.TaskID)
	if err != nil {
		return nil, err
	}

	event, err := task.Unassign(cmd.InitiatedBy)
	if err != nil {
		return nil, err
	}

	if err := s.tasks.UpdatePartial(ctx, task, domain.MaskAssignment); err != nil {
		return nil, err
	}
	if err := s.tasks.Save(ctx, []domain.Event{event}); err != nil {
		return nil, err
	}

	slog.Info("task unassigned", "task_id", task.ID, "initiated_by", cmd.InitiatedBy)

	return task, nil
}

// Relate links a task to an external entity through the direct relation
// path; the task row itself is not rewritten. The first relation a task
// ever receives becomes the main relation.
func (s *TaskService) Relate(ctx context.Context, cmd *command.RelateTask) (*domain.Task, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	ctx = middleware.WithCommandID(ctx, cmd.CommandID)

	task, err := s.load(ctx, cmd.TaskID)
	if err != nil {
		return nil, err
	}

	isMain := len(task.Relations) == 0
	relation, event := task.RelateTo(cmd.EntityID, cmd.EntityType, isMain, cmd.InitiatedBy)

	if err := s.relations.Create(ctx, relation); err != nil {
		return nil, err
	}
	if err := s.relations.Save(ctx, []domain.Event{event}); err != nil {
		return nil, err
	}

	slog.Info("task related",
		"task_id", task.ID,
		"entity_id", cmd.EntityID,
		"entity_type", cmd.EntityType,
	)

	return task, nil
}

// StoreComment attaches a comment through the direct comment path; the
// task row itself is not rewritten.
func (s *TaskService) StoreComment(ctx context.Context, cmd *command.StoreComment) (*domain.Task, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	ctx = middleware.WithCommandID(ctx, cmd.CommandID)

	task, err := s.load(ctx, cmd.TaskID)
	if err != nil {
		return nil, err
	}

	comment, event := task.AddComment(cmd.Text, cmd.InitiatedBy)

	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, err
	}
	if err := s.comments.Save(ctx, []domain.Event{event}); err != nil {
		return nil, err
	}

	slog.Info("comment stored", "task_id", task.ID, "comment_id", comment.ID)

	return task, nil
}

// Report is the result of a CreateReport command.
type Report struct {
	From        *time.Time
	To          *time.Time
	GeneratedAt time.Time
	Tasks       []*domain.Task
}

// CreateReport collects tasks changed inside the requested range. A store
// failure surfaces as ErrReporting carrying the full request context.
func (s *TaskService) CreateReport(ctx context.Context, cmd *command.CreateReport) (*Report, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	ctx = middleware.WithCommandID(ctx, cmd.CommandID)

	tasks, err := s.tasks.FindByRange(ctx, cmd.FromDatetime, cmd.ToDatetime)
	if err != nil {
		return nil, fmt.Errorf("%w: command %s, from %v, to %v: %v",
			domain.ErrReporting, cmd.CommandID, cmd.FromDatetime, cmd.ToDatetime, err)
	}

	slog.Info("report created", "task_count", len(tasks), "initiated_by", cmd.InitiatedBy)

	return &Report{
		From:        cmd.FromDatetime,
		To:          cmd.ToDatetime,
		GeneratedAt: time.Now().UTC(),
		Tasks:       tasks,
	}, nil
}

// invokeCallback posts the task snapshot to its configured callback
// target. Delivery problems are logged, never raised: callback consumers
// are best-effort observers.
func (s *TaskService) invokeCallback(ctx context.Context, task *domain.Task) {
	if task.Callback == nil {
		return
	}
	if err := s.callback.Callback(ctx, task.Callback, task); err != nil {
		slog.Error("callback delivery failed",
			"task_id", task.ID,
			"callback_url", task.Callback.URL,
			"error", err,
		)
	}
}
