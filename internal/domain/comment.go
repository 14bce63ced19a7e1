package domain

import (
	"time"

	"github.com/google/uuid"
)

// Comment is a remark attached to a task.
type Comment struct {
	ID          uuid.UUID
	TaskID      uuid.UUID
	Text        string
	CreatedBy   uuid.UUID
	CreatedDate time.Time
}
