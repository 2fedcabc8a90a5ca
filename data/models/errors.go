package models

import "errors"

var (
	// ErrNoData is returned when an upstream source or the store yields no observations
	ErrNoData = errors.New("no data found")

	// ErrInvalidInput marks a malformed or insufficient series or request
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidParameter marks a bad window, span or annualization factor
	ErrInvalidParameter = errors.New("invalid parameter")
)
