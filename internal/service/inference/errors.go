package inference

import "fmt"

const defaultServiceMessage = "Failed to fetch results"

// NetworkError means the endpoint could not be reached or answered with
// something that is not a detection response.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("inference network error: %v", e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ServiceError means the endpoint answered but reported a failure.
type ServiceError struct {
	StatusCode int
	Message    string
}

func (e *ServiceError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("inference service error (%d): %s", e.StatusCode, e.UserMessage())
	}
	return "inference service error: " + e.UserMessage()
}

// UserMessage is the service-provided text shown to the user verbatim.
func (e *ServiceError) UserMessage() string {
	if e.Message == "" {
		return defaultServiceMessage
	}
	return e.Message
}
