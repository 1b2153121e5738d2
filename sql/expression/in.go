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

package expression

import (
	"fmt"
	"strings"

	"github.com/exonware/go-xwquery/sql"
)

// In checks the membership of the left value in a list. When every value
// is a literal a hash set is built once and used for lists at least as
// long as the in-set threshold of the context.
type In struct {
	Left   sql.Expression
	Values []sql.Expression
	set    *valueSet
}

// NewIn creates a new IN expression.
func NewIn(left sql.Expression, values ...sql.Expression) *In {
	in := &In{Left: left, Values: values}

	literals := make([]interface{}, 0, len(values))
	for _, v := range values {
		l, ok := v.(*Literal)
		if !ok {
			return in
		}
		literals = append(literals, l.Value())
	}

	in.set = newValueSet(literals)
	return in
}

// Children implements the Expression interface.
func (in *In) Children() []sql.Expression {
	return append([]sql.Expression{in.Left}, in.Values...)
}

// Eval implements the Expression interface.
func (in *In) Eval(ctx *sql.Context, record interface{}) (interface{}, error) {
	left, err := in.Left.Eval(ctx, record)
	if err != nil {
		return nil, err
	}

	if left == nil {
		return false, nil
	}

	threshold := sql.DefaultInSetThreshold
	if ctx != nil && ctx.Options.InSetThreshold > 0 {
		threshold = ctx.Options.InSetThreshold
	}

	if in.set != nil && len(in.Values) >= threshold {
		return in.set.contains(left), nil
	}

	values, err := in.evalValues(ctx, record)
	if err != nil {
		return nil, err
	}

	if len(values) >= threshold {
		return newValueSet(values).contains(left), nil
	}

	for _, v := range values {
		if v != nil && sql.Equals(left, v) {
			return true, nil
		}
	}
	return false, nil
}

// evalValues evaluates the right hand side. A single value evaluating to a
// list is the list of values.
func (in *In) evalValues(ctx *sql.Context, record interface{}) ([]interface{}, error) {
	values := make([]interface{}, 0, len(in.Values))
	for _, e := range in.Values {
		v, err := e.Eval(ctx, record)
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}

	if len(values) == 1 {
		if list, ok := values[0].([]interface{}); ok {
			return list, nil
		}
	}
	return values, nil
}

func (in *In) String() string {
	parts := make([]string, len(in.Values))
	for i, v := range in.Values {
		parts[i] = v.String()
	}
	return fmt.Sprintf("%s IN (%s)", operand(in.Left), strings.Join(parts, ", "))
}

// valueSet is a hash set of values where numbers and numeric strings are
// keyed by their numeric value, so membership agrees with sql.Equals.
type valueSet struct {
	buckets  map[uint64][]interface{}
	unhashed []interface{}
}

func newValueSet(values []interface{}) *valueSet {
	s := &valueSet{buckets: make(map[uint64][]interface{}, len(values))}
	for _, v := range values {
		if v != nil {
			s.add(v)
		}
	}
	return s
}

func (s *valueSet) add(v interface{}) {
	k, err := setKey(v)
	if err != nil {
		s.unhashed = append(s.unhashed, v)
		return
	}
	s.buckets[k] = append(s.buckets[k], v)
}

func (s *valueSet) contains(v interface{}) bool {
	if k, err := setKey(v); err == nil {
		for _, c := range s.buckets[k] {
			if sql.Equals(v, c) {
				return true
			}
		}
	}

	for _, c := range s.unhashed {
		if sql.Equals(v, c) {
			return true
		}
	}
	return false
}

func setKey(v interface{}) (uint64, error) {
	if f, ok := sql.ToFloat(v); ok {
		return sql.HashKey(f)
	}
	return sql.HashKey(v)
}

// Between checks value >= lower and value <= upper. Null anywhere is false.
type Between struct {
	Val   sql.Expression
	Lower sql.Expression
	Upper sql.Expression
}

// NewBetween creates a new BETWEEN expression.
func NewBetween(val, lower, upper sql.Expression) *Between {
	return &Between{val, lower, upper}
}

// Children implements the Expression interface.
func (b *Between) Children() []sql.Expression {
	return []sql.Expression{b.Val, b.Lower, b.Upper}
}

// Eval implements the Expression interface.
func (b *Between) Eval(ctx *sql.Context, record interface{}) (interface{}, error) {
	val, err := b.Val.Eval(ctx, record)
	if err != nil {
		return nil, err
	}

	lower, upper, err := evalBoth(ctx, record, b.Lower, b.Upper)
	if err != nil {
		return nil, err
	}

	if val == nil || lower == nil || upper == nil {
		return false, nil
	}

	return sql.Compare(val, lower) >= 0 && sql.Compare(val, upper) <= 0, nil
}

func (b *Between) String() string {
	return fmt.Sprintf("%s BETWEEN %s AND %s", operand(b.Val), operand(b.Lower), operand(b.Upper))
}
