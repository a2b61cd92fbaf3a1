package ids

import "github.com/google/uuid"

// New returns a time-ordered identifier (UUIDv7) so that ids sort by creation.
func New() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
