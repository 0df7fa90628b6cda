package publish

import (
	"fmt"
	"net/http"
)

// Kind is a category of a failed request.
type Kind int

const (
	KindUndefined = Kind(iota)
	KindUnauthorized
	KindBadRequest
	KindInternal
	KindMethodNotAllowed
)

func (kind Kind) String() string {
	switch kind {
	case KindUndefined:
		return "undefined"
	case KindUnauthorized:
		return "unauthorized"
	case KindBadRequest:
		return "bad_request"
	case KindInternal:
		return "internal"
	case KindMethodNotAllowed:
		return "method_not_allowed"
	}
	return fmt.Sprintf("unknown_kind_%d", int(kind))
}

// StatusCode returns the HTTP status code replied for the kind.
func (kind Kind) StatusCode() int {
	switch kind {
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindBadRequest:
		return http.StatusBadRequest
	case KindMethodNotAllowed:
		return http.StatusMethodNotAllowed
	}
	return http.StatusInternalServerError
}

// Error messages replied to clients.
const (
	MessageUnauthorized           = "unauthorized"
	MessageMissingFirmwareVersion = "missing firmware_version"
	MessageEmptyFirmwareVersion   = "empty firmware_version"
	MessageMissingFile            = "missing file"
	MessageUploadError            = "upload error"
	MessageInvalidUpload          = "invalid upload"
	MessageSaveFirmware           = "failed to save firmware.bin"
	MessageWriteVersion           = "failed to write version.txt"
	MessageMethodNotAllowed       = "method not allowed"
)

// Failure is the reason a request was rejected.
type Failure struct {
	Kind    Kind
	Message string

	// Code is the upload error code, if the failure is about an upload.
	Code *UploadErrorCode

	// Err is the internal cause, it is logged but never replied.
	Err error
}

func newFailure(kind Kind, message string) *Failure {
	return &Failure{Kind: kind, Message: message}
}

func (f *Failure) Error() string {
	result := fmt.Sprintf("%s: %s", f.Kind, f.Message)
	if f.Code != nil {
		result += fmt.Sprintf(" (code %d: %s)", int(*f.Code), *f.Code)
	}
	if f.Err != nil {
		result += fmt.Sprintf(": %v", f.Err)
	}
	return result
}

func (f *Failure) Unwrap() error {
	return f.Err
}
