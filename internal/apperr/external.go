// Package apperr holds error types shared across package boundaries.
package apperr

import "fmt"

// ExternalError marks a failure of a third-party service (image model, hosted
// auth, notification webhooks). Handlers use it to pick 502 over 500.
type ExternalError struct {
	Service string
	Err     error
}

func (e *ExternalError) Error() string {
	return fmt.Sprintf("%s: %v", e.Service, e.Err)
}

func (e *ExternalError) Unwrap() error {
	return e.Err
}

func External(service string, err error) error {
	if err == nil {
		return nil
	}
	return &ExternalError{Service: service, Err: err}
}
