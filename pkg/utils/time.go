package utils

import (
	"time"

	pkgerrors "socialcore/pkg/errors"
)

// ParseOptionalTime parses an RFC3339 timestamp. An empty string means no time.
func ParseOptionalTime(field, s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, pkgerrors.NewValidationError(field + " must be an RFC3339 timestamp").WithCause(err)
	}
	t = t.UTC()
	return &t, nil
}
