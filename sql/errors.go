// Copyright 2020-2021 Dolthub, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package sql

import (
	"fmt"

	"gopkg.in/src-d/go-errors.v1"
)

var (
	// ErrSecurity is returned when the raw query text is rejected before
	// tokenization, or when the parser exceeds the nesting limit.
	ErrSecurity = errors.NewKind("security error: %s")

	// ErrParse is returned by tokenizers and parsers. The cause chain always
	// reaches a *ParseError carrying the source position.
	ErrParse = errors.NewKind("%s parse error%s")

	// ErrValue is returned for invalid operator arguments, oversized
	// results and generator incompatibilities in strict mode.
	ErrValue = errors.NewKind("value error: %s")

	// ErrExecution is returned when an operator fails while computing.
	ErrExecution = errors.NewKind("execution error in %s: %s")

	// ErrUnsupportedOperation is returned when no executor can serve the
	// action, or when the input shape is not accepted by the executor.
	ErrUnsupportedOperation = errors.NewKind("unsupported operation %s: %s")

	// ErrUnknownOperation is returned when an action type is not part of
	// the known operation set.
	ErrUnknownOperation = errors.NewKind("unknown operation: %s%s")
)

// ParseError describes why and where a dialect parser rejected its input.
type ParseError struct {
	Dialect  string
	Message  string
	Line     int
	Column   int
	Expected string
	Actual   string
	// ActualKind is the kind of the offending token.
	ActualKind string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s parse error%s: %s", e.Dialect, e.position(), e.detail())
}

func (e *ParseError) position() string {
	if e.Line > 0 {
		return fmt.Sprintf(" at line %d, column %d", e.Line, e.Column)
	}
	return ""
}

func (e *ParseError) detail() string {
	var msg string
	if e.Message != "" {
		msg = e.Message
	}

	if e.Expected != "" {
		if msg != "" {
			msg += ": "
		}
		msg += fmt.Sprintf("expected %s but got %s", e.Expected, e.describeActual())
	}

	if msg == "" {
		return "invalid syntax"
	}
	return msg
}

func (e *ParseError) describeActual() string {
	if e.ActualKind == "" {
		return fmt.Sprintf("%q", e.Actual)
	}
	return fmt.Sprintf("%s %q", e.ActualKind, e.Actual)
}

// NewParseError returns an ErrParse error wrapping the given details.
func NewParseError(pe *ParseError) error {
	return ErrParse.Wrap(parseDetail{pe}, pe.Dialect, pe.position())
}

// parseDetail prints the part of a ParseError that follows its position,
// which is what ErrParse appends to its own message.
type parseDetail struct{ pe *ParseError }

func (d parseDetail) Error() string { return d.pe.detail() }

func (d parseDetail) Cause() error { return d.pe }

// AsParseError returns the *ParseError carried by err, if any.
func AsParseError(err error) (*ParseError, bool) {
	for err != nil {
		if pe, ok := err.(*ParseError); ok {
			return pe, true
		}

		c, ok := err.(interface{ Cause() error })
		if !ok {
			return nil, false
		}
		err = c.Cause()
	}

	return nil, false
}

// ErrorKindName returns the taxonomy name of the given error, or
// "ExecutionError" for errors produced outside of it.
func ErrorKindName(err error) string {
	switch {
	case ErrSecurity.Is(err):
		return "SecurityError"
	case ErrParse.Is(err):
		return "ParseError"
	case ErrValue.Is(err):
		return "ValueError"
	case ErrUnsupportedOperation.Is(err):
		return "UnsupportedOperation"
	case ErrUnknownOperation.Is(err):
		return "UnknownOperation"
	default:
		return "ExecutionError"
	}
}
