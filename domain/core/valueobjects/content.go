package valueobjects

import (
	"fmt"
	"strings"
	"unicode/utf8"

	pkgerrors "socialcore/pkg/errors"
)

// NormalizeText trims user text and enforces a length limit counted in runes.
// An empty result is allowed only when required is false.
func NormalizeText(field, text string, maxLength int, required bool) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		if required {
			return "", pkgerrors.NewValidationError(fmt.Sprintf("%s cannot be empty", field))
		}
		return "", nil
	}
	if !utf8.ValidString(text) {
		return "", pkgerrors.NewValidationError(fmt.Sprintf("%s must be valid UTF-8", field))
	}
	if maxLength > 0 && utf8.RuneCountInString(text) > maxLength {
		return "", pkgerrors.NewValidationError(
			fmt.Sprintf("%s cannot exceed %d characters", field, maxLength))
	}
	return text, nil
}
