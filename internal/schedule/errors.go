package schedule

import (
	"github.com/cockroachdb/errors"
)

var (
	// ErrValidation marks malformed schedule requests. Never retried.
	ErrValidation = errors.New("invalid schedule request")
	// ErrNotFound marks cancellation of an unknown or already retired job.
	ErrNotFound = errors.New("job not found")
	// ErrNoBackend is returned by New when no delivery backend is configured.
	ErrNoBackend = errors.New("delivery backend required")
)

func validationf(format string, args ...any) error {
	return errors.Mark(errors.Newf(format, args...), ErrValidation)
}

func notFound(id string) error {
	return errors.Mark(errors.Newf("job %s not found", id), ErrNotFound)
}
