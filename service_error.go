package main

import "fmt"

// ServiceError is the unified error type for startup and service wiring.
type ServiceError struct {
	Service   string
	Operation string
	Err       error
}

// Error returns the formatted message: [Service.Operation] error message
func (e *ServiceError) Error() string {
	return fmt.Sprintf("[%s.%s] %v", e.Service, e.Operation, e.Err)
}

// Unwrap returns the original error so errors.Is/errors.As chains work.
func (e *ServiceError) Unwrap() error {
	return e.Err
}

// WrapError creates an error carrying service context. Returns nil for a nil
// err.
func WrapError(service, operation string, err error) error {
	if err == nil {
		return nil
	}
	return &ServiceError{Service: service, Operation: operation, Err: err}
}
