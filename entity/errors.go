package entity

import (
	"errors"
	"fmt"
)

// ErrorKind tags a core error so the boundary layer can translate it to a
// transport response without inspecting messages.
type ErrorKind string

const (
	KindUnauthorized       ErrorKind = "unauthorized"
	KindBanned             ErrorKind = "banned"
	KindInsufficientScope  ErrorKind = "insufficient_scope"
	KindValidation         ErrorKind = "validation"
	KindNotFound           ErrorKind = "not_found"
	KindConflict           ErrorKind = "conflict"
	KindInsufficientCredit ErrorKind = "insufficient_credit"
	KindInternal           ErrorKind = "internal"
)

type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func E(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Ef(kind ErrorKind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf extracts the kind of an error; untagged errors report KindInternal.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
