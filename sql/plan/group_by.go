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
	"github.com/exonware/go-xwquery/sql"
	"github.com/exonware/go-xwquery/sql/expression"
)

// GroupBy partitions the records by the values of the given fields. It
// emits one record per group, in order of first appearance:
//
//	{key: {f1: v1, ...}, _items: [...], _count: N}
//
// Aggregates given in the aggregates param are computed for every group
// and stored under their column name.
type GroupBy struct {
	descriptor
}

// NewGroupBy returns the executor of GROUP_BY or GROUP.
func NewGroupBy(op string) *GroupBy {
	return &GroupBy{descriptor{name: op}}
}

// Execute implements the Executor interface.
func (g *GroupBy) Execute(ctx *sql.Context, a *sql.Action) (*sql.ExecutionResult, error) {
	fields := fieldList(a.Params, "fields")
	aggs, err := projections(a.Params["aggregates"])
	if err != nil {
		return nil, err
	}

	items := sql.ExtractItems(ctx.Input)
	groups := groupItems(items, fields)

	for _, group := range groups {
		for _, agg := range aggs {
			if agg.star {
				continue
			}

			v, err := agg.expr.Eval(ctx, group)
			if err != nil {
				return nil, err
			}
			group[agg.name] = v
		}
	}

	result := make([]interface{}, len(groups))
	for i, group := range groups {
		result[i] = group
	}

	return sql.NewResult(a.Type, result, map[string]interface{}{
		"group_count": len(groups),
		"total_items": len(items),
		"fields":      fields,
	}), nil
}

// groupItems partitions items by the values of fields. No fields is a
// single group holding every item, none at all for no items.
func groupItems(items []interface{}, fields []string) []map[string]interface{} {
	var (
		keys   = newKeyIndex()
		groups []map[string]interface{}
	)

	for _, item := range items {
		values := fieldValues(item, fields)
		i, added := keys.add(values)
		if added {
			key := make(map[string]interface{}, len(fields))
			for j, f := range fields {
				key[f] = values[j]
			}

			groups = append(groups, map[string]interface{}{
				sql.GroupKeyField:   key,
				sql.GroupItemsField: []interface{}{},
				sql.GroupCountField: int64(0),
			})
		}

		group := groups[i]
		group[sql.GroupItemsField] = append(group[sql.GroupItemsField].([]interface{}), item)
		group[sql.GroupCountField] = group[sql.GroupCountField].(int64) + 1
	}

	return groups
}

// Distinct removes duplicated records keeping the first occurrence. With
// fields only those are compared.
type Distinct struct {
	descriptor
}

// NewDistinct returns the DISTINCT executor.
func NewDistinct() *Distinct {
	return &Distinct{descriptor{name: sql.OpDistinct}}
}

// Execute implements the Executor interface.
func (d *Distinct) Execute(ctx *sql.Context, a *sql.Action) (*sql.ExecutionResult, error) {
	items := sql.ExtractItems(ctx.Input)
	result := distinctItems(items, fieldList(a.Params, "fields"))

	return sql.NewResult(a.Type, result, map[string]interface{}{
		"unique_count":       len(result),
		"duplicates_removed": len(items) - len(result),
	}), nil
}

func distinctItems(items []interface{}, fields []string) []interface{} {
	seen := newKeyIndex()
	result := make([]interface{}, 0, len(items))
	for _, item := range items {
		var key interface{} = item
		if len(fields) > 0 {
			key = fieldValues(item, fields)
		}

		if _, added := seen.add(key); added {
			result = append(result, item)
		}
	}
	return result
}

// AggregateFunc computes a single aggregate of a field over the input:
// COUNT, SUM, AVG, MIN or MAX. The result data is the value itself.
type AggregateFunc struct {
	descriptor
}

// NewAggregateFunc returns the executor of the given aggregate operation.
func NewAggregateFunc(op string) *AggregateFunc {
	return &AggregateFunc{descriptor{name: op}}
}

var aggregateKeys = map[string]string{
	sql.OpCount: sql.AggCount,
	sql.OpSum:   sql.AggSum,
	sql.OpAvg:   sql.AggAvg,
	sql.OpMin:   sql.AggMin,
	sql.OpMax:   sql.AggMax,
}

// Execute implements the Executor interface.
func (f *AggregateFunc) Execute(ctx *sql.Context, a *sql.Action) (*sql.ExecutionResult, error) {
	field := a.Params.GetString("field")
	items := sql.ExtractItems(ctx.Input)

	if a.Params.GetBool("distinct") {
		values := make([]interface{}, 0, len(items))
		for _, item := range items {
			v := item
			if field != "" && field != "*" {
				v, _ = sql.FieldValue(item, field)
			}
			values = append(values, v)
		}
		items, field = distinctItems(values, nil), ""
	}

	aggs := sql.ComputeAggregates(items, field)
	return sql.NewResult(a.Type, aggs[aggregateKeys[a.Type]], map[string]interface{}{
		"field":       field,
		"total_items": aggs[sql.AggTotalItems],
	}), nil
}

// Summarize returns every aggregate of a field at once.
type Summarize struct {
	descriptor
}

// NewSummarize returns the SUMMARIZE executor.
func NewSummarize() *Summarize {
	return &Summarize{descriptor{name: sql.OpSummarize}}
}

// Execute implements the Executor interface.
func (s *Summarize) Execute(ctx *sql.Context, a *sql.Action) (*sql.ExecutionResult, error) {
	field := a.Params.GetString("field")
	aggs := sql.ComputeAggregates(sql.ExtractItems(ctx.Input), field)
	return sql.NewResult(a.Type, aggs, map[string]interface{}{"field": field}), nil
}

// Aggregate computes aggregate columns over the whole input and returns a
// single record. Over the output of GROUP BY it computes them per group.
type Aggregate struct {
	descriptor
}

// NewAggregate returns the AGGREGATE executor.
func NewAggregate() *Aggregate {
	return &Aggregate{descriptor{name: sql.OpAggregate}}
}

// Execute implements the Executor interface.
func (ag *Aggregate) Execute(ctx *sql.Context, a *sql.Action) (*sql.ExecutionResult, error) {
	raw, ok := a.Params["aggregates"]
	if !ok {
		raw = a.Params["columns"]
	}

	ps, err := projections(raw)
	if err != nil {
		return nil, err
	}

	for _, p := range ps {
		if !p.star && !expression.HasAggregate(p.expr) && !a.Params.Has("columns") {
			return nil, sql.ErrValue.New("AGGREGATE: not an aggregate: " + p.expr.String())
		}
	}

	items := sql.ExtractItems(ctx.Input)
	if len(items) > 0 && allGroups(items) {
		result := make([]interface{}, len(items))
		for i, group := range items {
			out := sql.CloneRecord(group).(map[string]interface{})
			for _, p := range ps {
				if p.star {
					continue
				}
				v, err := p.expr.Eval(ctx, group)
				if err != nil {
					return nil, err
				}
				out[p.name] = v
			}
			result[i] = out
		}
		return sql.NewResult(a.Type, result, map[string]interface{}{"group_count": len(items)}), nil
	}

	record, err := aggregateRecord(ctx, items, ps)
	if err != nil {
		return nil, err
	}

	return sql.NewResult(a.Type, []interface{}{record}, map[string]interface{}{
		"total_items": len(items),
	}), nil
}

func allGroups(items []interface{}) bool {
	for _, item := range items {
		if !sql.IsGroup(item) {
			return false
		}
	}
	return true
}
