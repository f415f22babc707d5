package apperr

import "errors"

var (
	ErrNotFound = errors.New("not found")

	// Publishing run outcomes.
	ErrNoCandidates          = errors.New("no note to publish")
	ErrDuplicateSlug         = errors.New("duplicate slug")
	ErrDuplicateTitle        = errors.New("duplicate title")
	ErrInvalidPlatformConfig = errors.New("invalid publishing platform configuration")
	ErrPlatformDisabled      = errors.New("publishing platform disabled")
	ErrRunInProgress         = errors.New("publish run already in progress")
)
