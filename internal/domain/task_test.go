package domain_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskrelay/taskrelay/internal/domain"
)

func newTestTask(t *testing.T) (*domain.Task, uuid.UUID) {
	t.Helper()
	creator := uuid.New()
	task, event := domain.NewTask(domain.CreateTaskParams{
		ID:               uuid.New(),
		TaskType:         "review",
		FourEyeSubjectID: uuid.New(),
		Subject:          "quarterly review",
		Source:           domain.Source{ID: "crm-42", Name: "crm"},
		Status:           "Open",
		Data:             `{"priority":"high"}`,
		InitiatedBy:      creator,
	})
	require.Equal(t, domain.EventTaskCreated, event.Kind())
	return task, creator
}

func TestNewTask(t *testing.T) {
	creator := uuid.New()
	fourEye := uuid.New()
	assignee := uuid.New()

	task, event := domain.NewTask(domain.CreateTaskParams{
		ID:               uuid.New(),
		TaskType:         "review",
		FourEyeSubjectID: fourEye,
		Source:           domain.Source{ID: "crm-42", Name: "crm"},
		Status:           "Open",
		Assignment:       domain.Assignment{AssignedToID: &assignee, Type: "user"},
		Relations: []domain.Relation{
			{EntityID: "order-1", EntityType: "order"},
			{EntityID: "customer-7", EntityType: "customer"},
		},
		InitialComment: "first comment",
		InitiatedBy:    creator,
	})

	created, ok := event.(domain.TaskCreated)
	require.True(t, ok)
	assert.Same(t, task, created.Task)
	assert.Equal(t, creator, created.InitiatedBy)

	assert.Equal(t, domain.ChangeInitial, task.Change)
	assert.False(t, task.IsFinal)
	assert.Equal(t, creator, task.CreatedBy)
	assert.Equal(t, creator, task.ChangedBy)
	assert.True(t, task.Assignment.IsAssigned())

	// Creation-time relations and comment ride inside TaskCreated; they
	// raise no events of their own.
	require.Len(t, task.Relations, 2)
	assert.True(t, task.Relations[0].IsMain)
	assert.False(t, task.Relations[1].IsMain)
	require.Len(t, task.Comments, 1)
	assert.Equal(t, "first comment", task.Comments[0].Text)

	main := task.MainRelation()
	require.NotNil(t, main)
	assert.Equal(t, "order-1", main.EntityID)
}

func TestUpdateStatus(t *testing.T) {
	task, _ := newTestTask(t)
	actor := uuid.New()

	event := task.UpdateStatus("InProgress", actor)

	assert.Equal(t, domain.EventStatusUpdated, event.Kind())
	assert.Equal(t, "InProgress", task.Status)
	assert.Equal(t, domain.ChangeStatus, task.Change)
	assert.Equal(t, actor, task.ChangedBy)
}

func TestFinalize(t *testing.T) {
	t.Run("returns status and finalized events in order", func(t *testing.T) {
		task, _ := newTestTask(t)
		actor := uuid.New()

		events, err := task.Finalize("Done", true, actor)
		require.NoError(t, err)

		require.Len(t, events, 2)
		assert.Equal(t, domain.EventStatusUpdated, events[0].Kind())
		assert.Equal(t, domain.EventTaskFinalized, events[1].Kind())

		assert.Equal(t, "Done", task.Status)
		assert.True(t, task.IsFinal)
		assert.Equal(t, domain.ChangeFinal, task.Change)
	})

	t.Run("final state false leaves the task open", func(t *testing.T) {
		task, _ := newTestTask(t)
		actor := uuid.New()

		events, err := task.Finalize("Done", false, actor)
		require.NoError(t, err)

		require.Len(t, events, 1)
		assert.Equal(t, domain.EventStatusUpdated, events[0].Kind())

		assert.Equal(t, "Done", task.Status)
		assert.False(t, task.IsFinal)
		assert.Equal(t, domain.ChangeStatus, task.Change)
	})

	t.Run("four eye subject cannot finalize", func(t *testing.T) {
		task, _ := newTestTask(t)
		statusBefore := task.Status
		changedBefore := task.ChangedDate

		events, err := task.Finalize("Done", true, task.FourEyeSubjectID)

		require.ErrorIs(t, err, domain.ErrFourEyeViolation)
		assert.Nil(t, events)

		// The check runs before any state change.
		assert.Equal(t, statusBefore, task.Status)
		assert.False(t, task.IsFinal)
		assert.Equal(t, domain.ChangeInitial, task.Change)
		assert.Equal(t, changedBefore, task.ChangedDate)
	})
}

func TestUpdateData(t *testing.T) {
	task, _ := newTestTask(t)
	actor := uuid.New()

	event := task.UpdateData(`{"priority":"low"}`, actor)

	assert.Equal(t, domain.EventDataUpdated, event.Kind())
	assert.Equal(t, `{"priority":"low"}`, task.Data)
	assert.Equal(t, domain.ChangeData, task.Change)
}

func TestUpdate(t *testing.T) {
	task, _ := newTestTask(t)
	actor := uuid.New()

	event := task.Update(`{"v":2}`, "renamed subject", actor)

	assert.Equal(t, domain.EventTaskUpdated, event.Kind())
	assert.Equal(t, `{"v":2}`, task.Data)
	assert.Equal(t, "renamed subject", task.Subject)
	assert.Equal(t, domain.ChangeUpdate, task.Change)
}

func TestAssign(t *testing.T) {
	task, _ := newTestTask(t)
	actor := uuid.New()
	assignee := uuid.New()

	event := task.Assign(domain.Assignment{AssignedToID: &assignee, Type: "user"}, actor)

	assert.Equal(t, domain.EventTaskAssigned, event.Kind())
	require.True(t, task.Assignment.IsAssigned())
	assert.Equal(t, assignee, *task.Assignment.AssignedToID)
	assert.Equal(t, domain.ChangeAssignment, task.Change)
}

func TestUnassign(t *testing.T) {
	t.Run("clears the assignee", func(t *testing.T) {
		task, _ := newTestTask(t)
		actor := uuid.New()
		assignee := uuid.New()
		task.Assign(domain.Assignment{AssignedToID: &assignee, Type: "user"}, actor)

		event, err := task.Unassign(actor)
		require.NoError(t, err)

		assert.Equal(t, domain.EventTaskUnassigned, event.Kind())
		assert.False(t, task.Assignment.IsAssigned())
		assert.Equal(t, domain.AssignmentTypeUnassigned, task.Assignment.Type)
	})

	t.Run("fails when nobody is assigned", func(t *testing.T) {
		task, _ := newTestTask(t)

		_, err := task.Unassign(uuid.New())
		require.ErrorIs(t, err, domain.ErrTaskNotAssigned)

		// A second unassign after a successful one fails the same way.
		actor := uuid.New()
		assignee := uuid.New()
		task.Assign(domain.Assignment{AssignedToID: &assignee, Type: "user"}, actor)
		_, err = task.Unassign(actor)
		require.NoError(t, err)
		_, err = task.Unassign(actor)
		require.ErrorIs(t, err, domain.ErrTaskNotAssigned)
	})
}

func TestRelateTo(t *testing.T) {
	task, _ := newTestTask(t)
	actor := uuid.New()
	changeBefore := task.Change

	relation, event := task.RelateTo("invoice-9", "invoice", true, actor)

	related, ok := event.(domain.TaskRelated)
	require.True(t, ok)
	assert.Equal(t, relation, related.Relation)
	assert.Equal(t, "invoice-9", relation.EntityID)
	assert.Equal(t, task.ID, relation.TaskID)
	assert.True(t, relation.IsMain)
	require.Len(t, task.Relations, 1)

	// Relations are append-only and do not count as a task mutation.
	assert.Equal(t, changeBefore, task.Change)
}

func TestAddComment(t *testing.T) {
	task, _ := newTestTask(t)
	actor := uuid.New()

	comment, event := task.AddComment("looks good", actor)

	added, ok := event.(domain.CommentAdded)
	require.True(t, ok)
	assert.Equal(t, comment, added.Comment)
	assert.Equal(t, "looks good", comment.Text)
	assert.Equal(t, actor, comment.CreatedBy)
	assert.WithinDuration(t, time.Now().UTC(), comment.CreatedDate, time.Minute)
	require.Len(t, task.Comments, 1)
}

func TestEntityUUID(t *testing.T) {
	id := uuid.New()

	r := domain.Relation{EntityID: id.String()}
	got, ok := r.EntityUUID()
	require.True(t, ok)
	assert.Equal(t, id, got)

	r = domain.Relation{EntityID: "order-1"}
	_, ok = r.EntityUUID()
	assert.False(t, ok)
}
