package models

import (
	"errors"
	"fmt"
	"reflect"
)

var (
	// ErrTypeMismatch is matched by every *TypeMismatchError.
	ErrTypeMismatch = errors.New("type mismatch")
	// ErrMissingField is matched by every *MissingFieldError.
	ErrMissingField = errors.New("missing field")
)

// TypeMismatchError reports a value that cannot be represented by the requested Go type.
type TypeMismatchError struct {
	// Path locates the value inside the decoded document, e.g. "items[2].price".
	Path     string
	Expected string
	Found    Kind
	Detail   string
}

func (e *TypeMismatchError) Error() string {
	msg := fmt.Sprintf("cannot decode %s into %s", e.Found, e.Expected)
	if e.Path != "" {
		msg += " at " + e.Path
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *TypeMismatchError) Is(target error) bool {
	return target == ErrTypeMismatch
}

type MissingFieldError struct {
	Field string
	Path  string
}

func (e *MissingFieldError) Error() string {
	if e.Path != "" && e.Path != e.Field {
		return fmt.Sprintf("missing field %q at %s", e.Field, e.Path)
	}
	return fmt.Sprintf("missing field %q", e.Field)
}

func (e *MissingFieldError) Is(target error) bool {
	return target == ErrMissingField
}

// InvalidDecodeError is returned when Decode is given something other than a non-nil pointer.
type InvalidDecodeError struct {
	Type reflect.Type
}

func (e *InvalidDecodeError) Error() string {
	if e.Type == nil {
		return "models: Decode(nil)"
	}
	if e.Type.Kind() != reflect.Pointer {
		return "models: Decode(non-pointer " + e.Type.String() + ")"
	}
	return "models: Decode(nil " + e.Type.String() + ")"
}
