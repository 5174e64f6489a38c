package errs

import "fmt"

// Status is a legacy compatibility status code, retained alongside Code
// because the original storage layer's return values predate the closed
// Code enum and some callers still branch on it directly.
type Status int

// ErrorInfo is attached to a request context once a statement or
// transaction fails. It is never constructed with a zero Code unless it
// represents the absence of an error.
type ErrorInfo struct {
	Code         Code
	Status       Status
	Message      string
	Supplemental string
}

func (e ErrorInfo) Error() string {
	if e.Supplemental == "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Supplemental)
}

// IsZero reports whether e represents "no error".
func (e ErrorInfo) IsZero() bool { return e.Code == CodeNone }

// New builds an ErrorInfo with the given code and formatted message.
func New(code Code, format string, args ...interface{}) ErrorInfo {
	return ErrorInfo{Code: code, Message: fmt.Sprintf(format, args...)}
}

// First implements the "first error wins" propagation rule of spec §7:
// once a request context carries a non-ok error, subsequent attempts to
// overwrite it are no-ops, except that an existing CodeNone entry is
// always overwritable.
func First(existing, incoming ErrorInfo) ErrorInfo {
	if existing.Code == CodeNone {
		return incoming
	}
	return existing
}
