package service_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"github.com/taskrelay/taskrelay/internal/command"
	"github.com/taskrelay/taskrelay/internal/domain"
	"github.com/taskrelay/taskrelay/internal/service"
)

// memTaskStore keeps aggregates in a map and records every event batch
// handed to Save.
type memTaskStore struct {
	tasks   map[uuid.UUID]*domain.Task
	saved   [][]domain.Event
	masks   []domain.FieldMask
	saveErr error
}

func newMemTaskStore() *memTaskStore {
	return &memTaskStore{tasks: make(map[uuid.UUID]*domain.Task)}
}

func (m *memTaskStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Task, error) {
	task, ok := m.tasks[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrTaskNotFound, id)
	}
	return task, nil
}

func (m *memTaskStore) Create(_ context.Context, task *domain.Task) error {
	m.tasks[task.ID] = task
	return nil
}

func (m *memTaskStore) Update(_ context.Context, task *domain.Task) error {
	m.tasks[task.ID] = task
	return nil
}

func (m *memTaskStore) UpdatePartial(_ context.Context, task *domain.Task, mask domain.FieldMask) error {
	if _, ok := m.tasks[task.ID]; !ok {
		return fmt.Errorf("%w: %s", domain.ErrTaskNotFound, task.ID)
	}
	m.masks = append(m.masks, mask)
	m.tasks[task.ID] = task
	return nil
}

func (m *memTaskStore) FindByRange(_ context.Context, from, to *time.Time) ([]*domain.Task, error) {
	var out []*domain.Task
	for _, task := range m.tasks {
		if from != nil && task.ChangedDate.Before(*from) {
			continue
		}
		if to != nil && !task.ChangedDate.Before(*to) {
			continue
		}
		out = append(out, task)
	}
	return out, nil
}

func (m *memTaskStore) Save(_ context.Context, events []domain.Event) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saved = append(m.saved, events)
	return nil
}

type memCommentStore struct {
	comments []domain.Comment
	saved    [][]domain.Event
}

func (m *memCommentStore) Create(_ context.Context, comment domain.Comment) error {
	m.comments = append(m.comments, comment)
	return nil
}

func (m *memCommentStore) Save(_ context.Context, events []domain.Event) error {
	m.saved = append(m.saved, events)
	return nil
}

type memRelationStore struct {
	relations []domain.Relation
	saved     [][]domain.Event
}

func (m *memRelationStore) Create(_ context.Context, relation domain.Relation) error {
	m.relations = append(m.relations, relation)
	return nil
}

func (m *memRelationStore) Save(_ context.Context, events []domain.Event) error {
	m.saved = append(m.saved, events)
	return nil
}

type recordingCallback struct {
	calls []uuid.UUID
	err   error
}

func (r *recordingCallback) Callback(_ context.Context, _ *domain.Callback, task *domain.Task) error {
	r.calls = append(r.calls, task.ID)
	return r.err
}

type TaskServiceTestSuite struct {
	suite.Suite
	tasks     *memTaskStore
	comments  *memCommentStore
	relations *memRelationStore
	callback  *recordingCallback
	service   *service.TaskService
	actor     uuid.UUID
}

func (s *TaskServiceTestSuite) SetupTest() {
	s.tasks = newMemTaskStore()
	s.comments = &memCommentStore{}
	s.relations = &memRelationStore{}
	s.callback = &recordingCallback{}
	s.service = service.NewTaskService(s.tasks, s.comments, s.relations, s.callback)
	s.actor = uuid.New()
}

func (s *TaskServiceTestSuite) createTask(callbackURL string) *domain.Task {
	cmd := command.NewCreateTask(
		"src-1", "SourceName", "CreateTask", "New", "{}",
		callbackURL, "Subject",
		uuid.Nil, uuid.New(), s.actor,
		nil, nil, "",
	)
	task, err := s.service.CreateTask(context.Background(), cmd)
	s.Require().NoError(err)
	return task
}

func (s *TaskServiceTestSuite) lastEvents() []domain.Event {
	s.Require().NotEmpty(s.tasks.saved)
	return s.tasks.saved[len(s.tasks.saved)-1]
}

func (s *TaskServiceTestSuite) TestCreateTask() {
	taskID := uuid.New()
	assignee := uuid.New()
	cmd := command.NewCreateTask(
		"src-1", "SourceName", "CreateTask", "New", "{}",
		"http://cb.example/x", "Subject",
		uuid.Nil, uuid.New(), s.actor,
		&command.AssignmentSpec{AssignedToID: assignee, Type: "User"},
		[]command.RelationSpec{{EntityID: taskID.String(), EntityType: "Person"}},
		"first comment",
	)

	task, err := s.service.CreateTask(context.Background(), cmd)
	s.Require().NoError(err)

	s.NotEqual(uuid.Nil, task.ID)
	s.Equal(domain.ChangeInitial, task.Change)
	s.Require().Len(task.Relations, 1)
	s.True(task.Relations[0].IsMain)
	s.Require().Len(task.Comments, 1)
	s.Equal("first comment", task.Comments[0].Text)
	s.Require().NotNil(task.Callback)
	s.Equal("http://cb.example/x", task.Callback.URL)

	// Creation fans out one TaskCreated, not a created+commented pair.
	events := s.lastEvents()
	s.Require().Len(events, 1)
	s.Equal(domain.EventTaskCreated, events[0].Kind())
}

func (s *TaskServiceTestSuite) TestCreateTaskKeepsProvidedID() {
	taskID := uuid.New()
	cmd := command.NewCreateTask(
		"src-1", "SourceName", "CreateTask", "New", "",
		"", "",
		taskID, uuid.New(), s.actor,
		nil, nil, "",
	)

	task, err := s.service.CreateTask(context.Background(), cmd)
	s.Require().NoError(err)
	s.Equal(taskID, task.ID)
}

func (s *TaskServiceTestSuite) TestCreateTaskValidationFailure() {
	cmd := command.NewCreateTask(
		"src-1", "SourceName", "CreateTask", "New", "not json",
		"", "",
		uuid.Nil, uuid.New(), s.actor,
		nil, nil, "",
	)

	_, err := s.service.CreateTask(context.Background(), cmd)
	s.Require().ErrorIs(err, domain.ErrValidation)
	s.Empty(s.tasks.tasks)
	s.Empty(s.tasks.saved)
}

func (s *TaskServiceTestSuite) TestUpdateStatus() {
	task := s.createTask("")

	updated, err := s.service.UpdateStatus(context.Background(),
		command.NewUpdateTaskStatus(task.ID, "InProgress", s.actor))
	s.Require().NoError(err)

	s.Equal("InProgress", updated.Status)
	s.Equal(domain.ChangeStatus, updated.Change)
	s.Require().Len(s.tasks.masks, 1)
	s.Equal(domain.MaskStatus, s.tasks.masks[0])

	events := s.lastEvents()
	s.Require().Len(events, 1)
	s.Equal(domain.EventStatusUpdated, events[0].Kind())
}

func (s *TaskServiceTestSuite) TestUpdateStatusNotFound() {
	_, err := s.service.UpdateStatus(context.Background(),
		command.NewUpdateTaskStatus(uuid.New(), "InProgress", s.actor))
	s.Require().ErrorIs(err, domain.ErrTaskNotFound)
}

func (s *TaskServiceTestSuite) TestFinalize() {
	task := s.createTask("http://cb.example/x")

	finalized, err := s.service.Finalize(context.Background(),
		command.NewFinalizeTask(task.ID, "Done", s.actor))
	s.Require().NoError(err)

	s.True(finalized.IsFinal)
	s.Equal("Done", finalized.Status)
	s.Equal(domain.ChangeFinal, finalized.Change)
	s.Equal(domain.MaskFinalize, s.tasks.masks[len(s.tasks.masks)-1])

	// The configured callback fires once per finalize.
	s.Equal([]uuid.UUID{task.ID}, s.callback.calls)

	events := s.lastEvents()
	s.Require().Len(events, 2)
	s.Equal(domain.EventStatusUpdated, events[0].Kind())
	s.Equal(domain.EventTaskFinalized, events[1].Kind())
}

func (s *TaskServiceTestSuite) TestFinalizeWithoutFinalState() {
	task := s.createTask("http://cb.example/x")

	cmd := command.NewFinalizeTask(task.ID, "Done", s.actor)
	cmd.FinalState = false

	updated, err := s.service.Finalize(context.Background(), cmd)
	s.Require().NoError(err)

	s.False(updated.IsFinal)
	s.Equal("Done", updated.Status)
	s.Equal(domain.ChangeStatus, updated.Change)

	// Only a closing finalize notifies the callback.
	s.Empty(s.callback.calls)

	events := s.lastEvents()
	s.Require().Len(events, 1)
	s.Equal(domain.EventStatusUpdated, events[0].Kind())
}

func (s *TaskServiceTestSuite) TestFinalizeFourEyeViolation() {
	cmd := command.NewCreateTask(
		"src-1", "SourceName", "CreateTask", "New", "",
		"", "",
		uuid.Nil, uuid.New(), s.actor,
		nil, nil, "",
	)
	task, err := s.service.CreateTask(context.Background(), cmd)
	s.Require().NoError(err)

	_, err = s.service.Finalize(context.Background(),
		command.NewFinalizeTask(task.ID, "Done", task.FourEyeSubjectID))
	s.Require().ErrorIs(err, domain.ErrFourEyeViolation)

	s.False(task.IsFinal)
	s.Equal("New", task.Status)
	s.Empty(s.callback.calls)
}

func (s *TaskServiceTestSuite) TestFinalizeCallbackFailureIsSwallowed() {
	task := s.createTask("http://cb.example/x")
	s.callback.err = errors.New("callback host down")

	finalized, err := s.service.Finalize(context.Background(),
		command.NewFinalizeTask(task.ID, "Done", s.actor))
	s.Require().NoError(err)
	s.True(finalized.IsFinal)
}

func (s *TaskServiceTestSuite) TestFinalizedGuard() {
	task := s.createTask("")
	_, err := s.service.Finalize(context.Background(),
		command.NewFinalizeTask(task.ID, "Done", s.actor))
	s.Require().NoError(err)

	assignee := uuid.New()
	mutations := []func() error{
		func() error {
			_, err := s.service.UpdateStatus(context.Background(),
				command.NewUpdateTaskStatus(task.ID, "Reopened", s.actor))
			return err
		},
		func() error {
			_, err := s.service.Finalize(context.Background(),
				command.NewFinalizeTask(task.ID, "Done", s.actor))
			return err
		},
		func() error {
			_, err := s.service.UpdateData(context.Background(),
				command.NewUpdateTaskData(task.ID, "{}", s.actor))
			return err
		},
		func() error {
			_, err := s.service.Update(context.Background(),
				command.NewUpdateTask(task.ID, "{}", "subject", s.actor))
			return err
		},
		func() error {
			_, err := s.service.Assign(context.Background(),
				command.NewAssignTask(task.ID, assignee, "User", s.actor))
			return err
		},
		func() error {
			_, err := s.service.Unassign(context.Background(),
				command.NewUnassignTask(task.ID, s.actor))
			return err
		},
		func() error {
			_, err := s.service.Relate(context.Background(),
				command.NewRelateTask(task.ID, "order-1", "order", s.actor))
			return err
		},
		func() error {
			_, err := s.service.StoreComment(context.Background(),
				command.NewStoreComment(task.ID, "late note", time.Now().UTC(), s.actor))
			return err
		},
	}

	for i, mutate := range mutations {
		s.Require().ErrorIs(mutate(), domain.ErrTaskFinalized, "mutation %d", i)
	}
}

func (s *TaskServiceTestSuite) TestUpdateData() {
	task := s.createTask("")

	updated, err := s.service.UpdateData(context.Background(),
		command.NewUpdateTaskData(task.ID, `{"k":"v"}`, s.actor))
	s.Require().NoError(err)

	s.Equal(`{"k":"v"}`, updated.Data)
	s.Equal(domain.MaskData, s.tasks.masks[len(s.tasks.masks)-1])
}

func (s *TaskServiceTestSuite) TestUpdate() {
	task := s.createTask("http://cb.example/x")

	updated, err := s.service.Update(context.Background(),
		command.NewUpdateTask(task.ID, `{"k":"v"}`, "new subject", s.actor))
	s.Require().NoError(err)

	s.Equal(`{"k":"v"}`, updated.Data)
	s.Equal("new subject", updated.Subject)
	s.Equal(domain.MaskUpdate, s.tasks.masks[len(s.tasks.masks)-1])
	s.Equal([]uuid.UUID{task.ID}, s.callback.calls)
}

func (s *TaskServiceTestSuite) TestAssignAndUnassign() {
	task := s.createTask("")
	assignee := uuid.New()

	assigned, err := s.service.Assign(context.Background(),
		command.NewAssignTask(task.ID, assignee, "User", s.actor))
	s.Require().NoError(err)
	s.Require().True(assigned.Assignment.IsAssigned())
	s.Equal(assignee, *assigned.Assignment.AssignedToID)
	s.Equal(domain.MaskAssignment, s.tasks.masks[len(s.tasks.masks)-1])

	unassigned, err := s.service.Unassign(context.Background(),
		command.NewUnassignTask(task.ID, s.actor))
	s.Require().NoError(err)
	s.False(unassigned.Assignment.IsAssigned())
	s.Equal(domain.AssignmentTypeUnassigned, unassigned.Assignment.Type)

	_, err = s.service.Unassign(context.Background(),
		command.NewUnassignTask(task.ID, s.actor))
	s.Require().ErrorIs(err, domain.ErrTaskNotAssigned)
}

func (s *TaskServiceTestSuite) TestRelate() {
	task := s.createTask("")

	related, err := s.service.Relate(context.Background(),
		command.NewRelateTask(task.ID, "order-1", "order", s.actor))
	s.Require().NoError(err)

	// First relation ever becomes the main one; only the relation store
	// is written, the task row stays untouched.
	s.Require().Len(s.relations.relations, 1)
	s.True(s.relations.relations[0].IsMain)
	s.Equal("order-1", s.relations.relations[0].EntityID)
	s.Len(s.tasks.masks, 0)

	_, err = s.service.Relate(context.Background(),
		command.NewRelateTask(task.ID, "order-2", "order", s.actor))
	s.Require().NoError(err)
	s.Require().Len(s.relations.relations, 2)
	s.False(s.relations.relations[1].IsMain)

	s.Require().Len(s.relations.saved, 2)
	s.Equal(domain.EventTaskRelated, s.relations.saved[0][0].Kind())
	s.Len(related.Relations, 1)
}

func (s *TaskServiceTestSuite) TestStoreComment() {
	task := s.createTask("")

	commented, err := s.service.StoreComment(context.Background(),
		command.NewStoreComment(task.ID, "note", time.Now().UTC(), s.actor))
	s.Require().NoError(err)

	s.Require().Len(s.comments.comments, 1)
	s.Equal("note", s.comments.comments[0].Text)
	s.Equal(task.ID, s.comments.comments[0].TaskID)
	s.Require().Len(s.comments.saved, 1)
	s.Equal(domain.EventCommentAdded, s.comments.saved[0][0].Kind())
	s.Len(commented.Comments, 1)
}

func (s *TaskServiceTestSuite) TestCreateReport() {
	s.createTask("")
	s.createTask("")

	report, err := s.service.CreateReport(context.Background(),
		command.NewCreateReport(nil, nil, s.actor))
	s.Require().NoError(err)

	s.Len(report.Tasks, 2)
	s.Nil(report.From)
	s.Nil(report.To)
	s.False(report.GeneratedAt.IsZero())
}

func (s *TaskServiceTestSuite) TestCreateReportRange() {
	task := s.createTask("")

	from := task.ChangedDate.Add(-time.Hour)
	to := task.ChangedDate.Add(time.Hour)
	report, err := s.service.CreateReport(context.Background(),
		command.NewCreateReport(&from, &to, s.actor))
	s.Require().NoError(err)
	s.Len(report.Tasks, 1)

	pastFrom := task.ChangedDate.Add(-2 * time.Hour)
	pastTo := task.ChangedDate.Add(-time.Hour)
	report, err = s.service.CreateReport(context.Background(),
		command.NewCreateReport(&pastFrom, &pastTo, s.actor))
	s.Require().NoError(err)
	s.Empty(report.Tasks)
}

func (s *TaskServiceTestSuite) TestSaveFailurePropagates() {
	task := s.createTask("")
	saveErr := errors.New("stream sink: connection refused")
	s.tasks.saveErr = saveErr

	_, err := s.service.UpdateStatus(context.Background(),
		command.NewUpdateTaskStatus(task.ID, "InProgress", s.actor))
	s.Require().ErrorIs(err, saveErr)
}

func TestTaskServiceTestSuite(t *testing.T) {
	suite.Run(t, new(TaskServiceTestSuite))
}
