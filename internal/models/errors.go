package models

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures raised while serving a page context. The kind
// is diagnostic only: every kind reaches the page as the same error message.
type ErrorKind string

const (
	KindMissingCredential  ErrorKind = "missing_credential"
	KindTransportFailure   ErrorKind = "transport_failure"
	KindProviderRejected   ErrorKind = "provider_rejected"
	KindEmptyResult        ErrorKind = "empty_result"
	KindCaptureFailure     ErrorKind = "capture_failure"
	KindCropFailure        ErrorKind = "crop_failure"
	KindOcrProcessingError ErrorKind = "ocr_processing_error"
	KindOcrEmptyResult     ErrorKind = "ocr_empty_result"
	KindInternal           ErrorKind = "internal"
)

// Error carries a kind and a human-readable message suitable for the page.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func NewError(kind ErrorKind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// UserMessage returns the text shown to the user for err.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
