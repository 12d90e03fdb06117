package services

import (
	"fmt"

	"github.com/google/uuid"
)

// parseID rejects anything that is not a UUID. The literal "new" is the chapter
// editor's route segment and reaches the API when a client links to it directly.
func parseID(kind, id string) error {
	if id == "" || id == "new" {
		return fmt.Errorf("%w: invalid %s id %q", ErrValidation, kind, id)
	}
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w: invalid %s id %q", ErrValidation, kind, id)
	}
	return nil
}
