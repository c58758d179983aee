// Package apperr classifies failures of a post request so the HTTP layer can
// pick a status code without knowing which component failed.
package apperr

import (
	"errors"
	"net/http"
)

type Kind int

const (
	KindUnexpected Kind = iota
	KindValidation
	KindNotFound
	KindAuthentication
	KindDownload
	KindUpload
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindAuthentication:
		return "authentication"
	case KindDownload:
		return "download"
	case KindUpload:
		return "upload"
	default:
		return "unexpected"
	}
}

// Status maps a kind to the HTTP status returned to the caller.
func (k Kind) Status() int {
	switch k {
	case KindValidation, KindNotFound:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Error is a classified failure. Message is what the caller sees; Err keeps
// the underlying cause for errors.Is/As.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Message
	}
	if e.Message == "" {
		return e.Err.Error()
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func Validation(message string) *Error {
	return New(KindValidation, message, nil)
}

func NotFound(message string) *Error {
	return New(KindNotFound, message, nil)
}

func Authentication(err error) *Error {
	return New(KindAuthentication, "login failed", err)
}

func Download(message string, err error) *Error {
	return New(KindDownload, message, err)
}

func Upload(err error) *Error {
	return New(KindUpload, "upload failed", err)
}

// KindOf returns the kind of the outermost classified error in the chain,
// or KindUnexpected when there is none.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindUnexpected
}

func Status(err error) int {
	return KindOf(err).Status()
}
