package core

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidRange = errors.New("value out of range")
	ErrInvalidDate  = errors.New("invalid date")
	ErrConflict     = errors.New("conflicting concurrent update")
	ErrForbidden    = errors.New("forbidden")

	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidType        = errors.New("invalid transaction type")
	ErrEmptyDescription   = errors.New("empty description")
	ErrDescriptionTooLong = errors.New("description too long (max 200 characters)")
	ErrMissingClient      = errors.New("missing client id")
)

// IsValidation reports whether err is caused by bad input rather than state.
func IsValidation(err error) bool {
	for _, target := range []error{
		ErrInvalidRange, ErrInvalidDate, ErrInvalidAmount, ErrInvalidType,
		ErrEmptyDescription, ErrDescriptionTooLong, ErrMissingClient,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
