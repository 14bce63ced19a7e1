package bus_test

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskrelay/taskrelay/internal/bus"
	"github.com/taskrelay/taskrelay/internal/command"
	"github.com/taskrelay/taskrelay/internal/domain"
)

func envelope(msgType string, headers map[string]string, body string) bus.Envelope {
	return bus.Envelope{Type: msgType, Headers: headers, Body: json.RawMessage(body)}
}

func userHeaders(id uuid.UUID) map[string]string {
	return map[string]string{bus.HeaderUserID: id.String()}
}

func TestEnvelopeIdentity(t *testing.T) {
	userID := uuid.New()

	t.Run("user id header", func(t *testing.T) {
		env := envelope("UnassignTaskMessage", userHeaders(userID), `{}`)
		got, err := env.Identity()
		require.NoError(t, err)
		assert.Equal(t, userID, got)
	})

	t.Run("falls back to external id", func(t *testing.T) {
		env := envelope("UnassignTaskMessage", map[string]string{bus.HeaderExternalID: userID.String()}, `{}`)
		got, err := env.Identity()
		require.NoError(t, err)
		assert.Equal(t, userID, got)
	})

	t.Run("user id wins over external id", func(t *testing.T) {
		other := uuid.New()
		env := envelope("UnassignTaskMessage", map[string]string{
			bus.HeaderUserID:     userID.String(),
			bus.HeaderExternalID: other.String(),
		}, `{}`)
		got, err := env.Identity()
		require.NoError(t, err)
		assert.Equal(t, userID, got)
	})

	t.Run("headers match case insensitively", func(t *testing.T) {
		env := envelope("UnassignTaskMessage", map[string]string{"X-User-Id": userID.String()}, `{}`)
		got, err := env.Identity()
		require.NoError(t, err)
		assert.Equal(t, userID, got)
	})

	t.Run("missing identity", func(t *testing.T) {
		env := envelope("UnassignTaskMessage", nil, `{}`)
		_, err := env.Identity()
		require.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("non uuid identity", func(t *testing.T) {
		env := envelope("UnassignTaskMessage", map[string]string{bus.HeaderUserID: "alice"}, `{}`)
		_, err := env.Identity()
		require.ErrorIs(t, err, domain.ErrValidation)
	})
}

func TestRegistryUnknownType(t *testing.T) {
	r := bus.NewRegistry()
	_, err := r.Map(envelope("DeleteTaskMessage", userHeaders(uuid.New()), `{}`))
	require.ErrorIs(t, err, domain.ErrValidation)
	assert.Contains(t, err.Error(), "DeleteTaskMessage")
}

func TestAdaptCreateTask(t *testing.T) {
	r := bus.NewRegistry()
	userID := uuid.New()
	taskID := uuid.New()
	fourEye := uuid.New()
	entityID := uuid.New()

	t.Run("v1 converts uuid entity ids to strings", func(t *testing.T) {
		body := fmt.Sprintf(`{
			"taskId": %q, "taskType": "review", "status": "New",
			"fourEyeSubjectId": %q, "sourceId": "src-1", "sourceName": "crm",
			"relations": [{"entityId": %q, "entityType": "Person"}],
			"comment": "first comment"
		}`, taskID, fourEye, entityID)

		got, err := r.Map(envelope("CreateTaskMessage", userHeaders(userID), body))
		require.NoError(t, err)

		cmd, ok := got.(*command.CreateTask)
		require.True(t, ok)
		assert.Equal(t, taskID, cmd.TaskID)
		assert.Equal(t, userID, cmd.InitiatedBy)
		assert.NotEqual(t, uuid.Nil, cmd.CommandID)
		require.Len(t, cmd.Relations, 1)
		assert.Equal(t, entityID.String(), cmd.Relations[0].EntityID)
		assert.Equal(t, "first comment", cmd.InitialComment)
		require.NoError(t, cmd.Validate())
	})

	t.Run("v1 rejects non uuid entity ids", func(t *testing.T) {
		body := fmt.Sprintf(`{
			"taskId": %q, "fourEyeSubjectId": %q,
			"relations": [{"entityId": "order-1", "entityType": "order"}]
		}`, taskID, fourEye)

		_, err := r.Map(envelope("CreateTaskMessage", userHeaders(userID), body))
		require.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("v2 keeps opaque entity ids", func(t *testing.T) {
		body := fmt.Sprintf(`{
			"taskId": %q, "taskType": "review", "status": "New",
			"fourEyeSubjectId": %q, "sourceId": "src-1", "sourceName": "crm",
			"assignment": {"assignedToId": %q, "type": "User"},
			"relations": [{"entityId": "order-1", "entityType": "order"}]
		}`, taskID, fourEye, userID)

		got, err := r.Map(envelope("CreateTaskMessageV2", userHeaders(userID), body))
		require.NoError(t, err)

		cmd, ok := got.(*command.CreateTask)
		require.True(t, ok)
		require.Len(t, cmd.Relations, 1)
		assert.Equal(t, "order-1", cmd.Relations[0].EntityID)
		require.NotNil(t, cmd.Assignment)
		assert.Equal(t, userID, cmd.Assignment.AssignedToID)
	})
}

func TestAdaptStatusMessages(t *testing.T) {
	r := bus.NewRegistry()
	userID := uuid.New()
	taskID := uuid.New()
	body := fmt.Sprintf(`{"taskId": %q, "status": "Done"}`, taskID)

	// The legacy and v2 tags share one body shape.
	for _, msgType := range []string{"UpdateStatusMessage", "UpdateStatusMessageV2"} {
		got, err := r.Map(envelope(msgType, userHeaders(userID), body))
		require.NoError(t, err, msgType)

		cmd, ok := got.(*command.UpdateTaskStatus)
		require.True(t, ok, msgType)
		assert.Equal(t, taskID, cmd.TaskID)
		assert.Equal(t, "Done", cmd.Status)
	}

	for _, msgType := range []string{"FinalizeTaskMessage", "FinalizeTaskMessageV2"} {
		got, err := r.Map(envelope(msgType, userHeaders(userID), body))
		require.NoError(t, err, msgType)

		cmd, ok := got.(*command.FinalizeTask)
		require.True(t, ok, msgType)
		assert.Equal(t, "Done", cmd.Status)
		assert.True(t, cmd.FinalState)
	}

	// An explicit finalState false overrides the default.
	openBody := fmt.Sprintf(`{"taskId": %q, "status": "Done", "finalState": false}`, taskID)
	got, err := r.Map(envelope("FinalizeTaskMessage", userHeaders(userID), openBody))
	require.NoError(t, err)
	cmd, ok := got.(*command.FinalizeTask)
	require.True(t, ok)
	assert.False(t, cmd.FinalState)
}

func TestAdaptUpdateMessages(t *testing.T) {
	r := bus.NewRegistry()
	userID := uuid.New()
	taskID := uuid.New()

	t.Run("update data", func(t *testing.T) {
		body := fmt.Sprintf(`{"taskId": %q, "data": "{\"k\":\"v\"}"}`, taskID)
		got, err := r.Map(envelope("UpdateDataMessage", userHeaders(userID), body))
		require.NoError(t, err)

		cmd, ok := got.(*command.UpdateTaskData)
		require.True(t, ok)
		assert.Equal(t, `{"k":"v"}`, cmd.Data)
	})

	t.Run("update v2", func(t *testing.T) {
		body := fmt.Sprintf(`{"taskId": %q, "data": "{}", "subject": "renamed"}`, taskID)
		got, err := r.Map(envelope("UpdateTaskMessageV2", userHeaders(userID), body))
		require.NoError(t, err)

		cmd, ok := got.(*command.UpdateTask)
		require.True(t, ok)
		assert.Equal(t, "renamed", cmd.Subject)
	})
}

func TestAdaptAssignmentMessages(t *testing.T) {
	r := bus.NewRegistry()
	userID := uuid.New()
	taskID := uuid.New()
	assignee := uuid.New()

	body := fmt.Sprintf(`{"taskId": %q, "assignedToId": %q, "assignmentType": "User"}`, taskID, assignee)
	got, err := r.Map(envelope("AssignTaskMessage", userHeaders(userID), body))
	require.NoError(t, err)

	assignCmd, ok := got.(*command.AssignTask)
	require.True(t, ok)
	assert.Equal(t, assignee, assignCmd.AssignedToID)
	assert.Equal(t, "User", assignCmd.AssignmentType)

	got, err = r.Map(envelope("UnassignTaskMessage", userHeaders(userID), fmt.Sprintf(`{"taskId": %q}`, taskID)))
	require.NoError(t, err)

	unassignCmd, ok := got.(*command.UnassignTask)
	require.True(t, ok)
	assert.Equal(t, taskID, unassignCmd.TaskID)
}

func TestAdaptRelateMessage(t *testing.T) {
	r := bus.NewRegistry()
	taskID := uuid.New()

	body := fmt.Sprintf(`{"taskId": %q, "entityId": "order-1", "entityType": "order"}`, taskID)
	got, err := r.Map(envelope("RelateTaskMessage", userHeaders(uuid.New()), body))
	require.NoError(t, err)

	cmd, ok := got.(*command.RelateTask)
	require.True(t, ok)
	assert.Equal(t, "order-1", cmd.EntityID)
	assert.Equal(t, "order", cmd.EntityType)
}

func TestAdaptStoreCommentMessage(t *testing.T) {
	r := bus.NewRegistry()
	taskID := uuid.New()

	t.Run("with created date", func(t *testing.T) {
		body := fmt.Sprintf(`{"taskId": %q, "text": "note", "createdDate": "2026-08-30T10:00:00Z"}`, taskID)
		got, err := r.Map(envelope("StoreCommentMessage", userHeaders(uuid.New()), body))
		require.NoError(t, err)

		cmd, ok := got.(*command.StoreComment)
		require.True(t, ok)
		assert.Equal(t, "note", cmd.Text)
		assert.Equal(t, 2026, cmd.CreatedDate.Year())
	})

	t.Run("missing created date defaults to now", func(t *testing.T) {
		body := fmt.Sprintf(`{"taskId": %q, "text": "note"}`, taskID)
		got, err := r.Map(envelope("StoreCommentMessage", userHeaders(uuid.New()), body))
		require.NoError(t, err)

		cmd, ok := got.(*command.StoreComment)
		require.True(t, ok)
		assert.False(t, cmd.CreatedDate.IsZero())
		require.NoError(t, cmd.Validate())
	})

	t.Run("identity required before decoding", func(t *testing.T) {
		_, err := r.Map(envelope("StoreCommentMessage", nil, `{broken`))
		require.ErrorIs(t, err, domain.ErrValidation)
	})
}

func TestAdaptMalformedBody(t *testing.T) {
	r := bus.NewRegistry()
	_, err := r.Map(envelope("UpdateStatusMessage", userHeaders(uuid.New()), `{broken`))
	require.ErrorIs(t, err, domain.ErrValidation)
}
