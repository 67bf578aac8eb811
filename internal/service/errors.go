package service

import (
	"database/sql"
	"errors"
	"fmt"
)

// Kind classifies a service failure so the transport layer can pick a status
// code without inspecting error strings.
type Kind string

const (
	KindNotAuthenticated Kind = "not_authenticated"
	KindNotAuthorized    Kind = "not_authorized"
	KindNotFound         Kind = "not_found"
	KindConflict         Kind = "conflict"
	KindQuotaExceeded    Kind = "quota_exceeded"
	KindInvalidInput     Kind = "invalid_input"
	KindInferenceFailure Kind = "inference_failure"
	KindInferenceTimeout Kind = "inference_timeout"
	KindInternal         Kind = "internal"
)

type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s", e.Msg, e.Err.Error())
	}

	return e.Msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func E(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

func wrapErr(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf extracts the failure kind from any error returned by the service.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}

	return KindInternal
}

// dbErr converts a repository error into a service error; sql.ErrNoRows
// becomes a not-found with the given message.
func dbErr(err error, notFoundMsg string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return E(KindNotFound, notFoundMsg)
	}

	return wrapErr(KindInternal, "internal server error", err)
}
