package common

import (
	"errors"
	"fmt"
)

// Classification of pipeline failures, numeric value is reported to the user
// as diagnostic code.
// ENUM(corrupt-archive=1, extraction, key-derivation, generation, unsupported-format)
type ErrorKind int

// Code returns short diagnostic code printed with user visible errors.
func (x ErrorKind) Code() string {
	return fmt.Sprintf("E%03d", int(x))
}

// Error carries failure kind through wrapping chains. Op names pipeline step
// which failed.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

// Sentinels to be used with errors.Is.
var (
	ErrCorruptArchive    = &Error{Kind: ErrorKindCorruptArchive}
	ErrExtraction        = &Error{Kind: ErrorKindExtraction}
	ErrKeyDerivation     = &Error{Kind: ErrorKindKeyDerivation}
	ErrGeneration        = &Error{Kind: ErrorKindGeneration}
	ErrUnsupportedFormat = &Error{Kind: ErrorKindUnsupportedFormat}
)

// NewError wraps err with kind, op is optional.
func NewError(kind ErrorKind, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s (%s)", e.Kind, e.Kind.Code())
	if e.Op != "" {
		msg += ": " + e.Op
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any classified error of the same kind.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind && t.Op == "" && t.Err == nil
}

// KindOf returns kind of the outermost classified error in the chain or 0.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
