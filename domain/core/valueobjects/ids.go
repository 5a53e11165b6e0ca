package valueobjects

import (
	"strings"

	pkgerrors "socialcore/pkg/errors"

	"github.com/google/uuid"
)

// NewID mints a random identifier for posts, comments, chats, messages and albums.
func NewID() string {
	return uuid.New().String()
}

// ValidateID rejects empty identifiers and identifiers that would break key layout.
func ValidateID(field, id string) error {
	if id == "" {
		return pkgerrors.NewValidationError(field + " cannot be empty")
	}
	if strings.ContainsAny(id, "#:") {
		return pkgerrors.NewValidationError(field + " contains reserved characters")
	}
	return nil
}
