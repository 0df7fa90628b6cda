package client

import (
	"fmt"
	"net/http"
)

// ErrRemote is a non-successful reply of the server.
type ErrRemote struct {
	StatusCode int
	Message    string

	// Code is the upload error code, if the server replied one.
	Code *int
}

func (err ErrRemote) Error() string {
	result := fmt.Sprintf("server replied %d %s", err.StatusCode, http.StatusText(err.StatusCode))
	if err.Message != "" {
		result += ": " + err.Message
	}
	if err.Code != nil {
		result += fmt.Sprintf(" (code %d)", *err.Code)
	}
	return result
}

// IsUnauthorized returns true if the server rejected the API key.
func (err ErrRemote) IsUnauthorized() bool {
	return err.StatusCode == http.StatusUnauthorized
}

// ErrRequest is a failure to reach the server or to read its reply.
type ErrRequest struct {
	URL string
	Err error
}

func (err ErrRequest) Error() string {
	return fmt.Sprintf("request to '%s' failed: %v", err.URL, err.Err)
}

func (err ErrRequest) Unwrap() error {
	return err.Err
}
