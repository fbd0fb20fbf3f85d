package models

import (
	"errors"
	"fmt"
)

// ServiceErrorCategory classifies failures of the generation service so the
// flow controller can surface a stable human-readable message.
type ServiceErrorCategory string

const (
	// ServiceErrorTimeout indicates the request exceeded the configured timeout.
	ServiceErrorTimeout ServiceErrorCategory = "timeout"
	// ServiceErrorBadRequest maps HTTP 400 responses.
	ServiceErrorBadRequest ServiceErrorCategory = "bad_request"
	// ServiceErrorUnauthorized maps HTTP 401 responses.
	ServiceErrorUnauthorized ServiceErrorCategory = "unauthorized"
	// ServiceErrorForbidden maps HTTP 403 responses.
	ServiceErrorForbidden ServiceErrorCategory = "forbidden"
	// ServiceErrorNotFound maps HTTP 404 responses.
	ServiceErrorNotFound ServiceErrorCategory = "not_found"
	// ServiceErrorServer maps HTTP 500 responses.
	ServiceErrorServer ServiceErrorCategory = "server_error"
	// ServiceErrorNetwork indicates the service could not be reached at all.
	ServiceErrorNetwork ServiceErrorCategory = "network_unreachable"
	// ServiceErrorMalformed indicates the response did not match the expected shape.
	ServiceErrorMalformed ServiceErrorCategory = "malformed_response"
	// ServiceErrorUnknown covers any other failure, carrying the HTTP status.
	ServiceErrorUnknown ServiceErrorCategory = "unknown"
)

// ServiceError wraps a generation service failure with its category. It is
// never fatal: the flow controller converts it to a user-facing error message
// and leaves the phase unchanged.
type ServiceError struct {
	Category ServiceErrorCategory
	Status   int   // HTTP status when known, 0 otherwise
	Err      error // underlying cause, may be nil
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("generation service %s: %v", e.Category, e.Err)
	}
	return fmt.Sprintf("generation service %s", e.Category)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// NewServiceError builds a ServiceError with a category and cause.
func NewServiceError(category ServiceErrorCategory, err error) *ServiceError {
	return &ServiceError{Category: category, Err: err}
}

// NewServiceErrorStatus builds a ServiceError for an HTTP status failure.
func NewServiceErrorStatus(category ServiceErrorCategory, status int, err error) *ServiceError {
	return &ServiceError{Category: category, Status: status, Err: err}
}

// UserMessage returns the stable human-readable text for the error category.
func (e *ServiceError) UserMessage() string {
	switch e.Category {
	case ServiceErrorTimeout:
		return "The request took too long. Please try again."
	case ServiceErrorBadRequest:
		return "The submitted data was not valid."
	case ServiceErrorUnauthorized:
		return "Access was not authorized."
	case ServiceErrorForbidden:
		return "Access to the service is forbidden."
	case ServiceErrorNotFound:
		return "The service endpoint was not found."
	case ServiceErrorServer:
		return "The server encountered an error. Please try again."
	case ServiceErrorNetwork:
		return "Could not reach the server. Check your connection."
	case ServiceErrorMalformed:
		return "The service returned an unexpected response. Please try again."
	default:
		if e.Status != 0 {
			return fmt.Sprintf("An error occurred (%d). Please try again.", e.Status)
		}
		return "An unexpected error occurred. Please try again."
	}
}

// CategorizeHTTPStatus maps an HTTP status code to a service error category.
func CategorizeHTTPStatus(status int) ServiceErrorCategory {
	switch status {
	case 400:
		return ServiceErrorBadRequest
	case 401:
		return ServiceErrorUnauthorized
	case 403:
		return ServiceErrorForbidden
	case 404:
		return ServiceErrorNotFound
	case 500:
		return ServiceErrorServer
	default:
		return ServiceErrorUnknown
	}
}

// ServiceErrorMessage extracts the user-facing message from any error,
// preferring the categorized text when the error is a ServiceError.
func ServiceErrorMessage(err error) string {
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		return svcErr.UserMessage()
	}
	return err.Error()
}
