package store

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

// ErrorKind classifies store failures so callers can decide whether to retry.
type ErrorKind string

const (
	KindNotFound  ErrorKind = "NOT_FOUND"
	KindConflict  ErrorKind = "CONFLICT"
	KindDBFailure ErrorKind = "DB_FAILURE"
)

// Error is returned by every Store method that fails.
type Error struct {
	Kind ErrorKind
	msg  string
	err  error
}

func (e *Error) Error() string {
	if e.err != nil {
		return string(e.Kind) + ": " + e.msg + ": " + e.err.Error()
	}
	return string(e.Kind) + ": " + e.msg
}

func (e *Error) Unwrap() error {
	return e.err
}

// IsKind reports whether err is a store Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

func wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: classify(err), msg: msg, err: err}
}

func notFound(msg string) error {
	return &Error{Kind: KindNotFound, msg: msg}
}

func conflict(msg string) error {
	return &Error{Kind: KindConflict, msg: msg}
}

func classify(err error) ErrorKind {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return KindNotFound
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return KindConflict
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"unique constraint failed", // sqlite
		"duplicate key value",      // postgres 23505
		"sqlstate 23505",
		"could not serialize access", // postgres 40001
		"sqlstate 40001",
		"database is locked",
	} {
		if strings.Contains(msg, marker) {
			return KindConflict
		}
	}
	return KindDBFailure
}
