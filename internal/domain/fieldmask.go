package domain

// Field identifies a task attribute for partial persistence. Each command
// kind touches a known column subset; the mask makes that subset explicit
// at the single partial-update call site instead of one bespoke store
// method per mutation.
type Field string

const (
	FieldStatus     Field = "status"
	FieldData       Field = "data"
	FieldSubject    Field = "subject"
	FieldAssignment Field = "assignment"
	FieldIsFinal    Field = "is_final"
)

// FieldMask is the set of fields a partial update marks as modified. The
// audit fields (changed_by, changed_date) are always written alongside.
type FieldMask []Field

// Contains reports whether the mask includes the field.
func (m FieldMask) Contains(field Field) bool {
	for _, f := range m {
		if f == field {
			return true
		}
	}
	return false
}

// Masks for each mutation kind.
var (
	MaskStatus     = FieldMask{FieldStatus}
	MaskFinalize   = FieldMask{FieldStatus, FieldIsFinal}
	MaskData       = FieldMask{FieldData}
	MaskUpdate     = FieldMask{FieldData, FieldSubject}
	MaskAssignment = FieldMask{FieldAssignment}
)
