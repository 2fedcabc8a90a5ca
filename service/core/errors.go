package core

import (
	"errors"

	m "stockdash/data/models"
)

// the sentinels live in the data layer so providers and repos can wrap them too
var (
	ErrInvalidInput     = m.ErrInvalidInput
	ErrInvalidParameter = m.ErrInvalidParameter
	ErrNoData           = m.ErrNoData
)

// ErrNotConfigured is returned when an operation needs a collaborator the service was started without
var ErrNotConfigured = errors.New("not configured")
