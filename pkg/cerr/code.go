package cerr

import (
	"net/http"
	"strconv"
)

// Code classifies an error for the API surface. The set mirrors the
// canonical RPC status codes so the JSON error bodies stay recognizable
// to clients that know that vocabulary.
type Code int

const (
	OK Code = iota
	Canceled
	Unknown
	InvalidArgument
	DeadlineExceeded
	NotFound
	AlreadyExists
	PermissionDenied
	ResourceExhausted
	FailedPrecondition
	Aborted
	OutOfRange
	Unimplemented
	Internal
	Unavailable
	DataLoss
	Unauthenticated
)

var codeInfo = map[Code]struct {
	name       string
	httpStatus int
}{
	OK:                 {"OK", http.StatusOK},
	Canceled:           {"Canceled", 499},
	Unknown:            {"Unknown", http.StatusInternalServerError},
	InvalidArgument:    {"InvalidArgument", http.StatusBadRequest},
	DeadlineExceeded:   {"DeadlineExceeded", http.StatusGatewayTimeout},
	NotFound:           {"NotFound", http.StatusNotFound},
	AlreadyExists:      {"AlreadyExists", http.StatusConflict},
	PermissionDenied:   {"PermissionDenied", http.StatusForbidden},
	ResourceExhausted:  {"ResourceExhausted", http.StatusTooManyRequests},
	FailedPrecondition: {"FailedPrecondition", http.StatusPreconditionFailed},
	Aborted:            {"Aborted", http.StatusConflict},
	OutOfRange:         {"OutOfRange", http.StatusBadRequest},
	Unimplemented:      {"Unimplemented", http.StatusNotImplemented},
	Internal:           {"Internal", http.StatusInternalServerError},
	Unavailable:        {"Unavailable", http.StatusServiceUnavailable},
	DataLoss:           {"DataLoss", http.StatusInternalServerError},
	Unauthenticated:    {"Unauthenticated", http.StatusUnauthorized},
}

// String returns the canonical code name used in JSON error bodies.
func (c Code) String() string {
	if info, ok := codeInfo[c]; ok {
		return info.name
	}
	return "Code(" + strconv.Itoa(int(c)) + ")"
}

// HTTPCode maps the code to the response status line.
func (c Code) HTTPCode() int {
	if info, ok := codeInfo[c]; ok {
		return info.httpStatus
	}
	return http.StatusInternalServerError
}
