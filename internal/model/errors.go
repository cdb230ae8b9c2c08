package model

import "errors"

var (
	// ErrPackageNotFound indicates that the index has no releases for the requested name.
	ErrPackageNotFound = errors.New("package not found")
)
