package command

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/taskrelay/taskrelay/internal/domain"
)

// requireID rejects zero UUIDs, naming the offending field.
func requireID(field string, id uuid.UUID) error {
	if id == uuid.Nil {
		return fmt.Errorf("%w: %s must not be empty", domain.ErrValidation, field)
	}
	return nil
}

// validateData requires the string to be syntactically valid JSON with an
// object or array at the top level. Contract validation against a schema is
// the consumer's concern, not the aggregate's.
func validateData(field, data string) error {
	trimmed := bytes.TrimSpace([]byte(data))
	if len(trimmed) == 0 || (trimmed[0] != '{' && trimmed[0] != '[') || !json.Valid(trimmed) {
		return fmt.Errorf("%w: %s must be a JSON object or array", domain.ErrValidation, field)
	}
	return nil
}

// validateCallback requires an absolute http/https URL when a callback is
// present.
func validateCallback(callbackURL string) error {
	if callbackURL == "" {
		return nil
	}
	u, err := url.Parse(callbackURL)
	if err != nil || !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: callback must be an absolute http or https URL", domain.ErrValidation)
	}
	return nil
}

// Validate checks the creation payload. A nil command fails fast with
// ErrNilCommand, distinct from a validation failure.
func (c *CreateTask) Validate() error {
	if c == nil {
		return domain.ErrNilCommand
	}
	if err := requireID("command_id", c.CommandID); err != nil {
		return err
	}
	if err := requireID("initiated_by", c.InitiatedBy); err != nil {
		return err
	}
	if err := requireID("four_eye_subject_id", c.FourEyeSubjectID); err != nil {
		return err
	}
	if c.Data != "" {
		if err := validateData("data", c.Data); err != nil {
			return err
		}
	}
	if err := validateCallback(c.CallbackURL); err != nil {
		return err
	}
	if c.Assignment != nil {
		if err := requireID("assignment.assigned_to_id", c.Assignment.AssignedToID); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks the assignment payload.
func (c *AssignTask) Validate() error {
	if c == nil {
		return domain.ErrNilCommand
	}
	if err := requireID("command_id", c.CommandID); err != nil {
		return err
	}
	if err := requireID("task_id", c.TaskID); err != nil {
		return err
	}
	if err := requireID("assigned_to_id", c.AssignedToID); err != nil {
		return err
	}
	return requireID("initiated_by", c.InitiatedBy)
}

// Validate checks the unassign payload.
func (c *UnassignTask) Validate() error {
	if c == nil {
		return domain.ErrNilCommand
	}
	if err := requireID("command_id", c.CommandID); err != nil {
		return err
	}
	if err := requireID("task_id", c.TaskID); err != nil {
		return err
	}
	return requireID("initiated_by", c.InitiatedBy)
}

// Validate checks the data update payload, requiring valid JSON data.
func (c *UpdateTaskData) Validate() error {
	if c == nil {
		return domain.ErrNilCommand
	}
	if err := requireID("command_id", c.CommandID); err != nil {
		return err
	}
	if err := requireID("task_id", c.TaskID); err != nil {
		return err
	}
	if err := requireID("initiated_by", c.InitiatedBy); err != nil {
		return err
	}
	return validateData("data", c.Data)
}

// Validate checks the status update payload.
func (c *UpdateTaskStatus) Validate() error {
	if c == nil {
		return domain.ErrNilCommand
	}
	if err := requireID("command_id", c.CommandID); err != nil {
		return err
	}
	if err := requireID("task_id", c.TaskID); err != nil {
		return err
	}
	if err := requireID("initiated_by", c.InitiatedBy); err != nil {
		return err
	}
	if c.Status == "" {
		return fmt.Errorf("%w: status must not be empty", domain.ErrValidation)
	}
	return nil
}

// Validate checks the finalize payload.
func (c *FinalizeTask) Validate() error {
	if c == nil {
		return domain.ErrNilCommand
	}
	if err := requireID("command_id", c.CommandID); err != nil {
		return err
	}
	if err := requireID("task_id", c.TaskID); err != nil {
		return err
	}
	if err := requireID("initiated_by", c.InitiatedBy); err != nil {
		return err
	}
	if c.Status == "" {
		return fmt.Errorf("%w: status must not be empty", domain.ErrValidation)
	}
	return nil
}

// Validate checks the relate payload.
func (c *RelateTask) Validate() error {
	if c == nil {
		return domain.ErrNilCommand
	}
	if err := requireID("command_id", c.CommandID); err != nil {
		return err
	}
	if err := requireID("task_id", c.TaskID); err != nil {
		return err
	}
	if err := requireID("initiated_by", c.InitiatedBy); err != nil {
		return err
	}
	if c.EntityID == "" {
		return fmt.Errorf("%w: entity_id must not be empty", domain.ErrValidation)
	}
	if c.EntityType == "" {
		return fmt.Errorf("%w: entity_type must not be empty", domain.ErrValidation)
	}
	return nil
}

// Validate checks the comment payload. The created date must not lie in
// the future; the comparison is date-only so comments stamped later the
// same day pass.
func (c *StoreComment) Validate() error {
	if c == nil {
		return domain.ErrNilCommand
	}
	if err := requireID("command_id", c.CommandID); err != nil {
		return err
	}
	if err := requireID("task_id", c.TaskID); err != nil {
		return err
	}
	if err := requireID("initiated_by", c.InitiatedBy); err != nil {
		return err
	}
	if c.Text == "" {
		return fmt.Errorf("%w: text must not be empty", domain.ErrValidation)
	}
	today := time.Now().UTC().Truncate(24 * time.Hour)
	created := c.CreatedDate.UTC().Truncate(24 * time.Hour)
	if created.After(today) {
		return fmt.Errorf("%w: created_date must not be in the future", domain.ErrValidation)
	}
	return nil
}

// Validate checks the v2 combined update payload.
func (c *UpdateTask) Validate() error {
	if c == nil {
		return domain.ErrNilCommand
	}
	if err := requireID("command_id", c.CommandID); err != nil {
		return err
	}
	if err := requireID("task_id", c.TaskID); err != nil {
		return err
	}
	if err := requireID("initiated_by", c.InitiatedBy); err != nil {
		return err
	}
	return validateData("data", c.Data)
}

// Validate checks the report range. Accepted: no dates, a past from date
// alone, or from strictly before to. Rejected: to alone, or from at or
// after to.
func (c *CreateReport) Validate() error {
	if c == nil {
		return domain.ErrNilCommand
	}
	if err := requireID("command_id", c.CommandID); err != nil {
		return err
	}
	if err := requireID("initiated_by", c.InitiatedBy); err != nil {
		return err
	}

	switch {
	case c.FromDatetime == nil && c.ToDatetime == nil:
		return nil
	case c.FromDatetime != nil && c.ToDatetime == nil:
		if c.FromDatetime.After(time.Now()) {
			return fmt.Errorf("%w: invalid datetime range", domain.ErrValidation)
		}
		return nil
	case c.FromDatetime == nil && c.ToDatetime != nil:
		return fmt.Errorf("%w: invalid datetime range", domain.ErrValidation)
	default:
		if !c.FromDatetime.Before(*c.ToDatetime) {
			return fmt.Errorf("%w: invalid datetime range", domain.ErrValidation)
		}
		return nil
	}
}
