// Package external defines the error kind shared by every collaborator that
// lives outside the process: the event model and the text generator.
package external

import (
	"errors"
	"fmt"
)

// ServiceError wraps a failed call to an external service
type ServiceError struct {
	Service string // "event_model", "text_generator"
	Op      string
	Err     error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Service, e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// Wrap returns err as a ServiceError, or nil for a nil err
func Wrap(service, op string, err error) error {
	if err == nil {
		return nil
	}
	return &ServiceError{Service: service, Op: op, Err: err}
}

// IsServiceError reports whether err originated from an external service
func IsServiceError(err error) bool {
	var se *ServiceError
	return errors.As(err, &se)
}
