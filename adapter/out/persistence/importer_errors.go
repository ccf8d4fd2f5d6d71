package persistence

import (
	"errors"

	"importer_server/core/port/out"
)

// Common persistence errors
var (
	ErrNotFound  = out.ErrNotFound
	ErrDuplicate = errors.New("duplicate entry")
)
