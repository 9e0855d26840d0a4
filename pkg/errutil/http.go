package errutil

import "net/http"

// CoreStatus is the transport-agnostic status carried by BaseError.
type CoreStatus string

const (
	StatusBadRequest   CoreStatus = "bad_request"
	StatusUnauthorized CoreStatus = "unauthorized"
	StatusForbidden    CoreStatus = "forbidden"
	StatusNotFound     CoreStatus = "not_found"
	StatusConflict     CoreStatus = "conflict"
	StatusInternal     CoreStatus = "internal"
	StatusUnknown      CoreStatus = "unknown"
)

// HTTPStatus converts the CoreStatus to its closest HTTP status code equivalent.
func (s CoreStatus) HTTPStatus() int {
	switch s {
	case StatusBadRequest:
		return http.StatusBadRequest
	case StatusUnauthorized:
		return http.StatusUnauthorized
	case StatusForbidden:
		return http.StatusForbidden
	case StatusNotFound:
		return http.StatusNotFound
	case StatusConflict:
		return http.StatusConflict
	case StatusInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
