package repository

import (
	"database/sql"
	"errors"
)

// ErrNoRows is returned by writes that matched nothing, mirroring reads.
var ErrNoRows = sql.ErrNoRows

// ErrCapacityBelowEnrollment is returned when a parallel update would leave more members than
// its new capacity.
var ErrCapacityBelowEnrollment = errors.New("capacity below current enrollment")
