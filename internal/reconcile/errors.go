package reconcile

import (
	"errors"
	"fmt"
	"io/fs"
)

var (
	ErrMalformedRecord    = errors.New("malformed pose record")
	ErrMalformedReference = errors.New("malformed pose reference")
	ErrMalformedSequence  = errors.New("malformed motion sequence")
	ErrMalformedLibrary   = errors.New("malformed pose library")

	ErrUnknownFamily        = errors.New("unknown sequence family")
	ErrSequenceNotFound     = fmt.Errorf("motion sequence not found: %w", fs.ErrNotExist)
	ErrMirroredUnsupported  = errors.New("mirrored sequence references are not supported")
	ErrUnsupportedFrameRate = errors.New("sequence frame rate is below the resampling target")
	ErrFrameOutOfRange      = errors.New("frame index out of range")
	ErrRowOutOfRange        = errors.New("pose library row out of range")
	ErrNoPoseLibrary        = errors.New("no pose library loaded")
)

// ResolutionError is returned when a symbolic entry of a record
// could not be resolved. The underlying cause is one of the errors
// declared above and can be tested for with errors.Is.
type ResolutionError struct {
	Path  string
	Index int
	Ref   string
	Err   error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("failed to resolve pose[%d] %q of %s: %s", e.Index, e.Ref, e.Path, e.Err.Error())
}

func (e *ResolutionError) Unwrap() error { return e.Err }
