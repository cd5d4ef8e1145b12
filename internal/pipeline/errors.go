package pipeline

import (
	"errors"
	"fmt"
)

// Error kinds recorded in the run summary.
const (
	KindFetch     = "FetchError"
	KindMalformed = "MalformedCandleError"
)

// ErrEmptyResult means no symbol produced a single valid record.
// No snapshot is written or replaced.
var ErrEmptyResult = errors.New("no records produced by any symbol")

// PersistenceError means a snapshot could not be written or replaced.
// Existing snapshots are left untouched.
type PersistenceError struct {
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist %s: %v", e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
