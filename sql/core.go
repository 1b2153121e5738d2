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
	"reflect"
	"strings"
)

// Nameable is something that has a name.
type Nameable interface {
	// Name returns the name.
	Name() string
}

// Expression is a node of the expression AST carried inside action params.
// Expressions are immutable once built.
type Expression interface {
	fmt.Stringer
	// Eval evaluates the expression against a single record.
	Eval(ctx *Context, record interface{}) (interface{}, error)
	// Children returns the sub-expressions.
	Children() []Expression
}

// ExpressionsEqual reports whether two expressions have the same structure.
// Expressions are equal when they have the same type, render the same way
// and their children are equal.
func ExpressionsEqual(a, b Expression) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	if reflect.TypeOf(a) != reflect.TypeOf(b) || a.String() != b.String() {
		return false
	}

	ac, bc := a.Children(), b.Children()
	if len(ac) != len(bc) {
		return false
	}

	for i := range ac {
		if !ExpressionsEqual(ac[i], bc[i]) {
			return false
		}
	}
	return true
}

// InspectExpression traverses the expression in depth-first order. If f
// returns false the children are skipped.
func InspectExpression(e Expression, f func(Expression) bool) {
	if e == nil || !f(e) {
		return
	}

	for _, c := range e.Children() {
		InspectExpression(c, f)
	}
}

// Shape is the structural shape of an input value.
type Shape byte

const (
	// ShapeScalar is a single non-collection value.
	ShapeScalar Shape = iota
	// ShapeLinear is an ordered list of records.
	ShapeLinear
	// ShapeTree is a mapping, possibly nested.
	ShapeTree
)

func (s Shape) String() string {
	switch s {
	case ShapeScalar:
		return "scalar"
	case ShapeLinear:
		return "linear"
	case ShapeTree:
		return "tree"
	default:
		return fmt.Sprintf("Shape(%d)", byte(s))
	}
}

// InferShape returns the shape of v. A nil value is an empty list.
func InferShape(v interface{}) Shape {
	if v == nil {
		return ShapeLinear
	}

	switch v.(type) {
	case []interface{}, []map[string]interface{}:
		return ShapeLinear
	case map[string]interface{}, map[interface{}]interface{}:
		return ShapeTree
	}

	switch reflect.TypeOf(v).Kind() {
	case reflect.Slice, reflect.Array:
		return ShapeLinear
	case reflect.Map, reflect.Struct:
		return ShapeTree
	case reflect.Ptr:
		if reflect.TypeOf(v).Elem().Kind() == reflect.Struct {
			return ShapeTree
		}
	}

	return ShapeScalar
}

// ConversionMode governs how parsers and generators deal with constructs
// the target dialect cannot represent.
type ConversionMode byte

const (
	// Strict fails on any incompatible construct.
	Strict ConversionMode = iota
	// Flexible reformulates the construct with the best available
	// equivalent and never drops it.
	Flexible
	// Lenient skips the construct, leaving a comment placeholder in
	// generated text.
	Lenient
)

// DefaultConversionMode is used when no mode has been configured.
const DefaultConversionMode = Flexible

func (m ConversionMode) String() string {
	switch m {
	case Strict:
		return "STRICT"
	case Flexible:
		return "FLEXIBLE"
	case Lenient:
		return "LENIENT"
	default:
		return fmt.Sprintf("ConversionMode(%d)", byte(m))
	}
}

// ParseConversionMode parses a mode name, case insensitively.
func ParseConversionMode(s string) (ConversionMode, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "STRICT":
		return Strict, nil
	case "FLEXIBLE", "":
		return Flexible, nil
	case "LENIENT":
		return Lenient, nil
	default:
		return Flexible, ErrValue.New(fmt.Sprintf("unknown conversion mode %q", s))
	}
}
