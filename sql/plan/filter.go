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

package plan

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/exonware/go-xwquery/sql"
	"github.com/exonware/go-xwquery/sql/expression"
)

// Where keeps the records for which the condition holds. FILTER is the
// same operation that can first navigate into the input with a path.
type Where struct {
	descriptor
}

// NewWhere returns the executor of WHERE or FILTER.
func NewWhere(op string) *Where {
	return &Where{descriptor{name: op}}
}

// Execute implements the Executor interface.
func (w *Where) Execute(ctx *sql.Context, a *sql.Action) (*sql.ExecutionResult, error) {
	cond, err := condition(a, "condition")
	if err != nil {
		return nil, err
	}

	input := ctx.Input
	if path := a.Params.GetString("path"); path != "" {
		v, ok := sql.FieldValue(input, path)
		if !ok {
			return nil, sql.ErrValue.New(fmt.Sprintf("%s: path %q not found", a.Type, path))
		}
		input = v
	}

	return filterResult(ctx, a.Type, sql.ExtractItems(input), cond)
}

func filterResult(
	ctx *sql.Context,
	op string,
	items []interface{},
	cond sql.Expression,
) (*sql.ExecutionResult, error) {
	result, err := filterItems(ctx, items, cond)
	if err != nil {
		return nil, err
	}

	var rendered interface{}
	if cond != nil {
		rendered = cond.String()
	}

	return sql.NewResult(op, result, map[string]interface{}{
		"filtered_count": len(result),
		"total_items":    len(items),
		"condition":      rendered,
	}), nil
}

// Having keeps or drops whole groups produced by GROUP BY. The condition
// is evaluated against the group record, so aggregates compute over the
// items of the group and plain names read the grouping key.
type Having struct {
	descriptor
}

// NewHaving returns the HAVING executor.
func NewHaving() *Having {
	return &Having{descriptor{name: sql.OpHaving}}
}

// Execute implements the Executor interface.
func (h *Having) Execute(ctx *sql.Context, a *sql.Action) (*sql.ExecutionResult, error) {
	cond, err := condition(a, "condition")
	if err != nil {
		return nil, err
	}

	items := sql.ExtractItems(ctx.Input)
	res, err := filterResult(ctx, a.Type, items, cond)
	if err != nil {
		return nil, err
	}

	res.Metadata["groups_kept"] = res.Metadata["filtered_count"]
	return res, nil
}

// fieldFilter builds the condition of a filter operation that is sugar
// over an expression on a single field.
type fieldFilter struct {
	descriptor
	build func(a *sql.Action, field sql.Expression) (sql.Expression, error)
}

// Execute implements the Executor interface.
func (f *fieldFilter) Execute(ctx *sql.Context, a *sql.Action) (*sql.ExecutionResult, error) {
	field := a.Params.GetString("field")
	if field == "" {
		return nil, sql.ErrValue.New(fmt.Sprintf("%s needs a field", a.Type))
	}

	cond, err := f.build(a, expression.NewIdentifier(field))
	if err != nil {
		return nil, err
	}

	return filterResult(ctx, a.Type, sql.ExtractItems(ctx.Input), cond)
}

func literalParam(a *sql.Action, key string) (sql.Expression, bool) {
	v, ok := a.Params[key]
	if !ok {
		return nil, false
	}
	if e, ok := v.(sql.Expression); ok {
		return e, true
	}
	return expression.NewLiteral(v), true
}

// NewLike returns the LIKE executor: params field and pattern.
func NewLike() Executor {
	return &fieldFilter{descriptor{name: sql.OpLike}, func(a *sql.Action, field sql.Expression) (sql.Expression, error) {
		pattern, ok := literalParam(a, "pattern")
		if !ok {
			return nil, sql.ErrValue.New("LIKE needs a pattern")
		}

		cond := sql.Expression(expression.NewLike(field, pattern))
		if a.Params.GetBool("negate") {
			cond = expression.NewNot(cond)
		}
		return cond, nil
	}}
}

// NewIn returns the IN executor: params field and values.
func NewIn() Executor {
	return &fieldFilter{descriptor{name: sql.OpIn}, func(a *sql.Action, field sql.Expression) (sql.Expression, error) {
		raw, ok := a.Params["values"]
		if !ok {
			return nil, sql.ErrValue.New("IN needs values")
		}

		var values []sql.Expression
		for _, v := range sql.ExtractItems(raw) {
			if e, ok := v.(sql.Expression); ok {
				values = append(values, e)
			} else {
				values = append(values, expression.NewLiteral(v))
			}
		}

		cond := sql.Expression(expression.NewIn(field, values...))
		if a.Params.GetBool("negate") {
			cond = expression.NewNot(cond)
		}
		return cond, nil
	}}
}

// NewBetween returns the BETWEEN executor: params field, lower and upper,
// both inclusive.
func NewBetween() Executor {
	return &fieldFilter{descriptor{name: sql.OpBetween}, func(a *sql.Action, field sql.Expression) (sql.Expression, error) {
		lower, lok := literalParam(a, "lower")
		upper, uok := literalParam(a, "upper")
		if !lok || !uok {
			return nil, sql.ErrValue.New("BETWEEN needs lower and upper")
		}
		return expression.NewBetween(field, lower, upper), nil
	}}
}

// NewRange returns the RANGE executor: params field, min and max, any of
// the bounds may be missing. Bounds are inclusive unless inclusive is
// false.
func NewRange() Executor {
	return &fieldFilter{descriptor{name: sql.OpRange}, func(a *sql.Action, field sql.Expression) (sql.Expression, error) {
		inclusive := true
		if a.Params.Has("inclusive") {
			inclusive = a.Params.GetBool("inclusive")
		}

		var conds []sql.Expression
		if min, ok := literalParam(a, "min"); ok {
			op := expression.Gt
			if inclusive {
				op = expression.GtEq
			}
			conds = append(conds, expression.NewBinary(op, field, min))
		}

		if max, ok := literalParam(a, "max"); ok {
			op := expression.Lt
			if inclusive {
				op = expression.LtEq
			}
			conds = append(conds, expression.NewBinary(op, field, max))
		}

		if len(conds) == 0 {
			return nil, sql.ErrValue.New("RANGE needs min or max")
		}
		return expression.JoinAnd(conds...), nil
	}}
}

// Has keeps the records that have the field. With a value, the field must
// also contain it: as an element of a list, a key of a mapping or a
// substring of a string.
type Has struct {
	descriptor
}

// NewHas returns the HAS executor.
func NewHas() *Has {
	return &Has{descriptor{name: sql.OpHas}}
}

// Execute implements the Executor interface.
func (h *Has) Execute(ctx *sql.Context, a *sql.Action) (*sql.ExecutionResult, error) {
	field := a.Params.GetString("field")
	if field == "" {
		return nil, sql.ErrValue.New("HAS needs a field")
	}
	value, hasValue := a.Params["value"]

	items := sql.ExtractItems(ctx.Input)
	result := make([]interface{}, 0, len(items))
	for _, item := range items {
		v, ok := sql.FieldValue(item, field)
		if !ok {
			continue
		}

		if !hasValue || contains(v, value) {
			result = append(result, item)
		}
	}

	return sql.NewResult(a.Type, result, map[string]interface{}{
		"filtered_count": len(result),
		"total_items":    len(items),
		"field":          field,
	}), nil
}

func contains(container, value interface{}) bool {
	switch c := container.(type) {
	case nil:
		return false
	case string:
		return strings.Contains(c, fmt.Sprint(value))
	case map[string]interface{}:
		_, ok := c[fmt.Sprint(value)]
		return ok
	}

	rv := reflect.ValueOf(container)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			if sql.ItemsEqual(rv.Index(i).Interface(), value) {
				return true
			}
		}
		return false
	case reflect.Map:
		_, ok := sql.FieldValue(container, fmt.Sprint(value))
		return ok
	}

	return sql.ItemsEqual(container, value)
}
