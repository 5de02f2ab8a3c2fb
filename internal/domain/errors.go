package domain

import "errors"

// Failure taxonomy. Every user-triggered operation surfaces exactly one of
// these at the boundary; none of them is fatal to the process.
var (
	ErrNotFound         = errors.New("not found")
	ErrDuplicateAddress = errors.New("address already registered")
	ErrGeocodeFailed    = errors.New("geocode failed")
	ErrNoResult         = errors.New("geocode: no result")
	ErrUploadFailed     = errors.New("upload failed")
	ErrPartialUpload    = errors.New("some uploads failed")
	ErrNormalization    = errors.New("image normalization failed")
	ErrUnresizable      = errors.New("image cannot be resized under byte cap")
	ErrApproveFailed    = errors.New("approve failed")
	ErrAuthFailed       = errors.New("authentication failed")
)
