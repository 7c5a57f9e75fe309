package client

import (
	"fmt"

	"github.com/pingcap/errors"
)

// Code classifies an error the way callers are expected to react to it:
// only not-found is ever recoverable, everything else is fatal to a
// single-shot program.
type Code int

const (
	CodeUnknown Code = iota
	CodeNotFound
	CodeAlreadyExists
	CodeInvalidArgument
	CodeTimedOut
	CodeIOError
)

func (c Code) String() string {
	switch c {
	case CodeNotFound:
		return "not found"
	case CodeAlreadyExists:
		return "already exists"
	case CodeInvalidArgument:
		return "invalid argument"
	case CodeTimedOut:
		return "timed out"
	case CodeIOError:
		return "IO error"
	}
	return "unknown"
}

// Error is a classified client error.
type Error struct {
	code Code
	msg  string
}

func (e *Error) Error() string { return e.msg }

// Code returns the error's classification.
func (e *Error) Code() Code { return e.code }

func newError(code Code, format string, args ...interface{}) error {
	return errors.WithStack(&Error{code: code, msg: fmt.Sprintf(format, args...)})
}

func NotFoundf(format string, args ...interface{}) error {
	return newError(CodeNotFound, format, args...)
}

func AlreadyExistsf(format string, args ...interface{}) error {
	return newError(CodeAlreadyExists, format, args...)
}

func InvalidArgumentf(format string, args ...interface{}) error {
	return newError(CodeInvalidArgument, format, args...)
}

func TimedOutf(format string, args ...interface{}) error {
	return newError(CodeTimedOut, format, args...)
}

func IOErrorf(format string, args ...interface{}) error {
	return newError(CodeIOError, format, args...)
}

// CodeOf extracts the classification of err, seeing through wrapping.
// Unclassified errors report CodeUnknown.
func CodeOf(err error) Code {
	if e, ok := errors.Cause(err).(*Error); ok {
		return e.code
	}
	return CodeUnknown
}

func IsNotFound(err error) bool        { return CodeOf(err) == CodeNotFound }
func IsAlreadyExists(err error) bool   { return CodeOf(err) == CodeAlreadyExists }
func IsInvalidArgument(err error) bool { return CodeOf(err) == CodeInvalidArgument }
func IsTimedOut(err error) bool        { return CodeOf(err) == CodeTimedOut }
func IsIOError(err error) bool         { return CodeOf(err) == CodeIOError }
