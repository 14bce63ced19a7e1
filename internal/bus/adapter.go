package bus

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/taskrelay/taskrelay/internal/command"
	"github.com/taskrelay/taskrelay/internal/domain"
)

// AdapterFunc maps one wire-message version onto an internal command. Each
// adapter is a pure function; new message versions are added by
// registering a new function, not by duplicating mapping blocks.
type AdapterFunc func(env Envelope) (any, error)

// Registry holds the version adapters keyed by message-type tag.
type Registry struct {
	adapters map[string]AdapterFunc
}

// NewRegistry builds a registry with every known message version bound.
func NewRegistry() *Registry {
	r := &Registry{adapters: make(map[string]AdapterFunc)}

	r.Register("CreateTaskMessage", adaptCreateTaskV1)
	r.Register("CreateTaskMessageV2", adaptCreateTaskV2)
	r.Register("UpdateStatusMessage", adaptUpdateStatus)
	r.Register("UpdateStatusMessageV2", adaptUpdateStatus)
	r.Register("FinalizeTaskMessage", adaptFinalizeTask)
	r.Register("FinalizeTaskMessageV2", adaptFinalizeTask)
	r.Register("UpdateDataMessage", adaptUpdateData)
	r.Register("UpdateDataMessageV2", adaptUpdateData)
	r.Register("UpdateTaskMessageV2", adaptUpdateTask)
	r.Register("AssignTaskMessage", adaptAssignTask)
	r.Register("UnassignTaskMessage", adaptUnassignTask)
	r.Register("RelateTaskMessage", adaptRelateTask)
	r.Register("StoreCommentMessage", adaptStoreComment)

	return r
}

// Register binds an adapter to a message-type tag.
func (r *Registry) Register(messageType string, adapter AdapterFunc) {
	r.adapters[messageType] = adapter
}

// Map translates an envelope into an internal command, or fails for
// unknown message types.
func (r *Registry) Map(env Envelope) (any, error) {
	adapter, ok := r.adapters[env.Type]
	if !ok {
		return nil, fmt.Errorf("%w: unknown message type %q", domain.ErrValidation, env.Type)
	}
	return adapter(env)
}

// createTaskBodyV1 is the legacy creation wire shape; relation entity ids
// are UUID-typed.
type createTaskBodyV1 struct {
	TaskID           uuid.UUID `json:"taskId"`
	TaskType         string    `json:"taskType"`
	Status           string    `json:"status"`
	Data             string    `json:"data"`
	Callback         string    `json:"callback"`
	FourEyeSubjectID uuid.UUID `json:"fourEyeSubjectId"`
	Subject          string    `json:"subject"`
	SourceID         string    `json:"sourceId"`
	SourceName       string    `json:"sourceName"`
	Assignment       *struct {
		AssignedToID uuid.UUID `json:"assignedToId"`
		Type         string    `json:"type"`
	} `json:"assignment"`
	Relations []struct {
		EntityID   uuid.UUID `json:"entityId"`
		EntityType string    `json:"entityType"`
	} `json:"relations"`
	Comment string `json:"comment"`
}

// createTaskBodyV2 is the current creation wire shape; relation entity ids
// are opaque strings.
type createTaskBodyV2 struct {
	TaskID           uuid.UUID `json:"taskId"`
	TaskType         string    `json:"taskType"`
	Status           string    `json:"status"`
	Data             string    `json:"data"`
	Callback         string    `json:"callback"`
	FourEyeSubjectID uuid.UUID `json:"fourEyeSubjectId"`
	Subject          string    `json:"subject"`
	SourceID         string    `json:"sourceId"`
	SourceName       string    `json:"sourceName"`
	Assignment       *struct {
		AssignedToID uuid.UUID `json:"assignedToId"`
		Type         string    `json:"type"`
	} `json:"assignment"`
	Relations []struct {
		EntityID   string `json:"entityId"`
		EntityType string `json:"entityType"`
	} `json:"relations"`
	Comment string `json:"comment"`
}

func adaptCreateTaskV1(env Envelope) (any, error) {
	initiatedBy, err := env.Identity()
	if err != nil {
		return nil, err
	}

	var body createTaskBodyV1
	if err := json.Unmarshal(env.Body, &body); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", domain.ErrValidation, env.Type, err)
	}

	var assignment *command.AssignmentSpec
	if body.Assignment != nil {
		assignment = &command.AssignmentSpec{
			AssignedToID: body.Assignment.AssignedToID,
			Type:         body.Assignment.Type,
		}
	}

	relations := make([]command.RelationSpec, 0, len(body.Relations))
	for _, rel := range body.Relations {
		relations = append(relations, command.RelationSpec{
			EntityID:   rel.EntityID.String(),
			EntityType: rel.EntityType,
		})
	}

	return command.NewCreateTask(
		body.SourceID, body.SourceName, body.TaskType, body.Status, body.Data,
		body.Callback, body.Subject,
		body.TaskID, body.FourEyeSubjectID, initiatedBy,
		assignment, relations, body.Comment,
	), nil
}

func adaptCreateTaskV2(env Envelope) (any, error) {
	initiatedBy, err := env.Identity()
	if err != nil {
		return nil, err
	}

	var body createTaskBodyV2
	if err := json.Unmarshal(env.Body, &body); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", domain.ErrValidation, env.Type, err)
	}

	var assignment *command.AssignmentSpec
	if body.Assignment != nil {
		assignment = &command.AssignmentSpec{
			AssignedToID: body.Assignment.AssignedToID,
			Type:         body.Assignment.Type,
		}
	}

	relations := make([]command.RelationSpec, 0, len(body.Relations))
	for _, rel := range body.Relations {
		relations = append(relations, command.RelationSpec{
			EntityID:   rel.EntityID,
			EntityType: rel.EntityType,
		})
	}

	return command.NewCreateTask(
		body.SourceID, body.SourceName, body.TaskType, body.Status, body.Data,
		body.Callback, body.Subject,
		body.TaskID, body.FourEyeSubjectID, initiatedBy,
		assignment, relations, body.Comment,
	), nil
}

type statusBody struct {
	TaskID uuid.UUID `json:"taskId"`
	Status string    `json:"status"`
}

func adaptUpdateStatus(env Envelope) (any, error) {
	initiatedBy, err := env.Identity()
	if err != nil {
		return nil, err
	}
	var body statusBody
	if err := json.Unmarshal(env.Body, &body); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", domain.ErrValidation, env.Type, err)
	}
	return command.NewUpdateTaskStatus(body.TaskID, body.Status, initiatedBy), nil
}

type finalizeBody struct {
	TaskID     uuid.UUID `json:"taskId"`
	Status     string    `json:"status"`
	FinalState *bool     `json:"finalState"`
}

func adaptFinalizeTask(env Envelope) (any, error) {
	initiatedBy, err := env.Identity()
	if err != nil {
		return nil, err
	}
	var body finalizeBody
	if err := json.Unmarshal(env.Body, &body); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", domain.ErrValidation, env.Type, err)
	}
	cmd := command.NewFinalizeTask(body.TaskID, body.Status, initiatedBy)
	if body.FinalState != nil {
		cmd.FinalState = *body.FinalState
	}
	return cmd, nil
}

type dataBody struct {
	TaskID uuid.UUID `json:"taskId"`
	Data   string    `json:"data"`
}

func adaptUpdateData(env Envelope) (any, error) {
	initiatedBy, err := env.Identity()
	if err != nil {
		return nil, err
	}
	var body dataBody
	if err := json.Unmarshal(env.Body, &body); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", domain.ErrValidation, env.Type, err)
	}
	return command.NewUpdateTaskData(body.TaskID, body.Data, initiatedBy), nil
}

type updateBody struct {
	TaskID  uuid.UUID `json:"taskId"`
	Data    string    `json:"data"`
	Subject string    `json:"subject"`
}

func adaptUpdateTask(env Envelope) (any, error) {
	initiatedBy, err := env.Identity()
	if err != nil {
		return nil, err
	}
	var body updateBody
	if err := json.Unmarshal(env.Body, &body); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", domain.ErrValidation, env.Type, err)
	}
	return command.NewUpdateTask(body.TaskID, body.Data, body.Subject, initiatedBy), nil
}

type assignBody struct {
	TaskID         uuid.UUID `json:"taskId"`
	AssignedToID   uuid.UUID `json:"assignedToId"`
	AssignmentType string    `json:"assignmentType"`
}

func adaptAssignTask(env Envelope) (any, error) {
	initiatedBy, err := env.Identity()
	if err != nil {
		return nil, err
	}
	var body assignBody
	if err := json.Unmarshal(env.Body, &body); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", domain.ErrValidation, env.Type, err)
	}
	return command.NewAssignTask(body.TaskID, body.AssignedToID, body.AssignmentType, initiatedBy), nil
}

type taskIDBody struct {
	TaskID uuid.UUID `json:"taskId"`
}

func adaptUnassignTask(env Envelope) (any, error) {
	initiatedBy, err := env.Identity()
	if err != nil {
		return nil, err
	}
	var body taskIDBody
	if err := json.Unmarshal(env.Body, &body); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", domain.ErrValidation, env.Type, err)
	}
	return command.NewUnassignTask(body.TaskID, initiatedBy), nil
}

type relateBody struct {
	TaskID     uuid.UUID `json:"taskId"`
	EntityID   string    `json:"entityId"`
	EntityType string    `json:"entityType"`
}

func adaptRelateTask(env Envelope) (any, error) {
	initiatedBy, err := env.Identity()
	if err != nil {
		return nil, err
	}
	var body relateBody
	if err := json.Unmarshal(env.Body, &body); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", domain.ErrValidation, env.Type, err)
	}
	return command.NewRelateTask(body.TaskID, body.EntityID, body.EntityType, initiatedBy), nil
}

type commentBody struct {
	TaskID      uuid.UUID `json:"taskId"`
	Text        string    `json:"text"`
	CreatedDate time.Time `json:"createdDate"`
}

func adaptStoreComment(env Envelope) (any, error) {
	initiatedBy, err := env.Identity()
	if err != nil {
		return nil, err
	}
	var body commentBody
	if err := json.Unmarshal(env.Body, &body); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", domain.ErrValidation, env.Type, err)
	}
	created := body.CreatedDate
	if created.IsZero() {
		created = time.Now().UTC()
	}
	return command.NewStoreComment(body.TaskID, body.Text, created, initiatedBy), nil
}
