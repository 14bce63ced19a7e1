package domain

import "errors"

// Domain-specific errors for business logic validation.
var (
	// Task errors
	ErrTaskNotFound  = errors.New("task not found")
	ErrTaskFinalized = errors.New("task is finalized and cannot be modified")

	// Guard errors
	ErrFourEyeViolation = errors.New("four-eye violation: initiator cannot finalize own task")
	ErrTaskNotAssigned  = errors.New("task has no current assignee")

	// Command errors
	ErrNilCommand = errors.New("command is nil")
	ErrValidation = errors.New("command validation failed")

	// Sub-entity errors
	ErrCommentNotFound  = errors.New("comment not found")
	ErrRelationNotFound = errors.New("relation not found")

	// Reporting errors
	ErrReporting = errors.New("report creation failed")
)
