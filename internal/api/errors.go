package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/geoping/geoping-server/internal/service"
)

type ApiError struct {
	StatusCode int    `json:"status_code"`
	Message    string `json:"message"`
	Err        error  `json:"-"`
}

func (e *ApiError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s", e.Message, e.Err.Error())
	}

	return e.Message
}

func (e *ApiError) Unwrap() error {
	return e.Err
}

func lower(s string) string {
	return strings.ToLower(s)
}

func NewBadRequestError() *ApiError {
	return &ApiError{
		StatusCode: http.StatusBadRequest,
		Message:    lower(http.StatusText(http.StatusBadRequest)),
	}
}

func NewNotFoundError() *ApiError {
	return &ApiError{
		StatusCode: http.StatusNotFound,
		Message:    lower(http.StatusText(http.StatusNotFound)),
	}
}

func NewInternalServerError(err error) *ApiError {
	return &ApiError{
		StatusCode: http.StatusInternalServerError,
		Message:    lower(http.StatusText(http.StatusInternalServerError)),
		Err:        err,
	}
}

func NewUnauthorizedError() *ApiError {
	return &ApiError{
		StatusCode: http.StatusUnauthorized,
		Message:    lower(http.StatusText(http.StatusUnauthorized)),
	}
}

func NewForbiddenError() *ApiError {
	return &ApiError{
		StatusCode: http.StatusForbidden,
		Message:    lower(http.StatusText(http.StatusForbidden)),
	}
}

func NewConflictError(msg string) *ApiError {
	return &ApiError{
		StatusCode: http.StatusConflict,
		Message:    msg,
	}
}

// statusForKind maps a service failure classification to an HTTP status.
func statusForKind(kind service.Kind) int {
	switch kind {
	case service.KindNotAuthenticated:
		return http.StatusUnauthorized
	case service.KindNotAuthorized, service.KindQuotaExceeded:
		return http.StatusForbidden
	case service.KindNotFound:
		return http.StatusNotFound
	case service.KindConflict:
		return http.StatusConflict
	case service.KindInvalidInput:
		return http.StatusBadRequest
	case service.KindInferenceFailure:
		return http.StatusBadGateway
	case service.KindInferenceTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// NewServiceError converts a service-layer error into the JSON error
// envelope. Internal failures keep the underlying error for logging but
// never leak its text to the client.
func NewServiceError(err error) *ApiError {
	statusCode := statusForKind(service.KindOf(err))
	if statusCode == http.StatusInternalServerError {
		return NewInternalServerError(err)
	}

	var se *service.Error
	message := lower(http.StatusText(statusCode))
	if errors.As(err, &se) && se.Msg != "" {
		message = se.Msg
	}

	return &ApiError{
		StatusCode: statusCode,
		Message:    message,
	}
}
