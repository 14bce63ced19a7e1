package domain

import "github.com/google/uuid"

// Relation links a task to an entity in another system. EntityID is an
// opaque string: legacy consumers require it to be a UUID, newer ones do
// not, which drives the legacy/v2 integration event fan-out.
type Relation struct {
	ID         uuid.UUID
	TaskID     uuid.UUID
	EntityID   string
	EntityType string
	IsMain     bool
}

// EntityUUID parses the entity id as a UUID for legacy event shapes.
func (r Relation) EntityUUID() (uuid.UUID, bool) {
	id, err := uuid.Parse(r.EntityID)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}
