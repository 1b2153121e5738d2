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

// Aggregate function names.
const (
	Count = "COUNT"
	Sum   = "SUM"
	Avg   = "AVG"
	Min   = "MIN"
	Max   = "MAX"
)

// IsAggregateName reports whether name is an aggregate function.
func IsAggregateName(name string) bool {
	switch strings.ToUpper(name) {
	case Count, Sum, Avg, Min, Max:
		return true
	default:
		return false
	}
}

// Aggregate is a call to an aggregate function. Evaluated on a group
// record it aggregates the items of the group; on a list it aggregates
// the list and on any other record the record alone.
type Aggregate struct {
	Name     string
	Arg      sql.Expression
	Distinct bool
}

// NewAggregate creates a new aggregate call.
func NewAggregate(name string, arg sql.Expression, distinct bool) *Aggregate {
	return &Aggregate{Name: strings.ToUpper(name), Arg: arg, Distinct: distinct}
}

// NewCountStar returns COUNT(*).
func NewCountStar() *Aggregate {
	return NewAggregate(Count, NewLiteral("*"), false)
}

// IsStar reports whether the argument is *.
func (a *Aggregate) IsStar() bool {
	switch arg := a.Arg.(type) {
	case nil, *Star:
		return true
	case *Literal:
		return arg.Value() == "*"
	default:
		return false
	}
}

// Children implements the Expression interface.
func (a *Aggregate) Children() []sql.Expression {
	if a.Arg == nil {
		return nil
	}
	return []sql.Expression{a.Arg}
}

// Eval implements the Expression interface.
func (a *Aggregate) Eval(ctx *sql.Context, record interface{}) (interface{}, error) {
	items, ok := sql.GroupItems(record)
	if !ok {
		if list, isList := record.([]interface{}); isList {
			items = list
		} else {
			items = []interface{}{record}
		}
	}

	values, err := a.values(ctx, items)
	if err != nil {
		return nil, err
	}

	return a.Compute(values)
}

func (a *Aggregate) values(ctx *sql.Context, items []interface{}) ([]interface{}, error) {
	if a.IsStar() {
		return items, nil
	}

	values := make([]interface{}, 0, len(items))
	for _, item := range items {
		v, err := a.Arg.Eval(ctx, item)
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, nil
}

// Compute returns the aggregate of already evaluated values.
func (a *Aggregate) Compute(values []interface{}) (interface{}, error) {
	if a.Distinct {
		values = distinctValues(values)
	}

	aggs := sql.ComputeAggregates(values, "")
	switch a.Name {
	case Count:
		return aggs[sql.AggCount], nil
	case Sum:
		return aggs[sql.AggSum], nil
	case Avg:
		return aggs[sql.AggAvg], nil
	case Min:
		return aggs[sql.AggMin], nil
	case Max:
		return aggs[sql.AggMax], nil
	default:
		return nil, sql.ErrValue.New(fmt.Sprintf("unknown aggregate %s", a.Name))
	}
}

func (a *Aggregate) String() string {
	arg := "*"
	if !a.IsStar() {
		arg = a.Arg.String()
	}
	if a.Distinct {
		arg = "DISTINCT " + arg
	}
	return fmt.Sprintf("%s(%s)", a.Name, arg)
}

func distinctValues(values []interface{}) []interface{} {
	var (
		result = make([]interface{}, 0, len(values))
		seen   = newValueSet(nil)
	)

	for _, v := range values {
		if v == nil || seen.contains(v) {
			continue
		}
		result = append(result, v)
		seen.add(v)
	}
	return result
}
