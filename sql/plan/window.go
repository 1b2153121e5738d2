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
	"sort"
	"strings"

	"github.com/exonware/go-xwquery/sql"
)

// Window functions.
const (
	RowNumber = "ROW_NUMBER"
	Rank      = "RANK"
	DenseRank = "DENSE_RANK"
	Lag       = "LAG"
	Lead      = "LEAD"
)

// Window computes a window function over the partitions of the input and
// stores its value in a new field of every record. Records keep their
// input order. Aggregates are running aggregates when the window is
// ordered and cover the whole partition otherwise.
type Window struct {
	descriptor
}

// NewWindow returns the WINDOW executor.
func NewWindow() *Window {
	return &Window{descriptor{name: sql.OpWindow, shapes: []sql.Shape{sql.ShapeLinear, sql.ShapeTree}}}
}

type windowSpec struct {
	function  string
	field     string
	as        string
	partition []string
	order     []SortKey
	offset    int
	fallback  interface{}
}

func newWindowSpec(a *sql.Action) (*windowSpec, error) {
	s := &windowSpec{
		function:  upper(a.Params.GetString("function")),
		field:     a.Params.GetString("field"),
		as:        a.Params.GetString("as"),
		partition: fieldList(a.Params, "partition_by"),
		offset:    1,
		fallback:  a.Params["default"],
	}

	if s.function == "" {
		s.function = RowNumber
	}

	switch s.function {
	case RowNumber, Rank, DenseRank:
	case Lag, Lead, sql.OpSum, sql.OpAvg, sql.OpMin, sql.OpMax:
		if s.field == "" {
			return nil, sql.ErrValue.New(fmt.Sprintf("window function %s needs a field", s.function))
		}
	case sql.OpCount:
	default:
		return nil, sql.ErrValue.New(fmt.Sprintf("unknown window function %s", s.function))
	}

	if a.Params.Has("keys") {
		keys, err := SortKeys(sql.Params{"keys": a.Params["keys"]})
		if err != nil {
			return nil, err
		}
		s.order = keys
	} else {
		for _, f := range fieldList(a.Params, "order_by") {
			s.order = append(s.order, SortKey{Column: f})
		}
	}

	if n, ok, err := intParam(a, "offset"); err != nil {
		return nil, err
	} else if ok {
		s.offset = int(n)
	}

	if s.as == "" {
		s.as = strings.ToLower(s.function)
		if s.field != "" {
			s.as += "_" + s.field
		}
	}

	return s, nil
}

// Execute implements the Executor interface.
func (w *Window) Execute(ctx *sql.Context, a *sql.Action) (*sql.ExecutionResult, error) {
	s, err := newWindowSpec(a)
	if err != nil {
		return nil, err
	}

	items := sql.ExtractItems(ctx.Input)
	values := make([][]interface{}, len(items))
	for i, item := range items {
		row := make([]interface{}, len(s.order))
		for j, k := range s.order {
			if row[j], err = k.value(ctx, item); err != nil {
				return nil, err
			}
		}
		values[i] = row
	}

	partitions := newKeyIndex()
	var members [][]int
	for i, item := range items {
		p, added := partitions.add(fieldValues(item, s.partition))
		if added {
			members = append(members, nil)
		}
		members[p] = append(members[p], i)
	}

	result := make([]interface{}, len(items))
	for _, rows := range members {
		sort.SliceStable(rows, func(x, y int) bool {
			return s.compare(values[rows[x]], values[rows[y]]) < 0
		})

		computed := s.compute(rows, items, values)
		for n, i := range rows {
			record, ok := recordFor(sql.CloneRecord(items[i]))
			if !ok {
				record = map[string]interface{}{"value": items[i]}
			}
			record[s.as] = computed[n]
			result[i] = record
		}
	}

	return sql.NewResult(a.Type, result, map[string]interface{}{
		"function":        s.function,
		"partition_count": len(members),
		"field":           s.as,
	}), nil
}

func (s *windowSpec) compare(a, b []interface{}) int {
	for i, k := range s.order {
		if c := compareKey(k, a[i], b[i]); c != 0 {
			return c
		}
	}
	return 0
}

// compute returns the value of the function for every row of an ordered
// partition.
func (s *windowSpec) compute(rows []int, items []interface{}, values [][]interface{}) []interface{} {
	out := make([]interface{}, len(rows))
	switch s.function {
	case RowNumber:
		for n := range rows {
			out[n] = int64(n + 1)
		}
	case Rank, DenseRank:
		var rank, dense int64
		for n := range rows {
			if n == 0 || s.compare(values[rows[n-1]], values[rows[n]]) != 0 {
				rank = int64(n + 1)
				dense++
			}
			if s.function == Rank {
				out[n] = rank
			} else {
				out[n] = dense
			}
		}
	case Lag, Lead:
		step := -s.offset
		if s.function == Lead {
			step = s.offset
		}
		for n := range rows {
			out[n] = s.fallback
			if m := n + step; m >= 0 && m < len(rows) {
				if v, ok := sql.FieldValue(items[rows[m]], s.field); ok {
					out[n] = v
				}
			}
		}
	default:
		partition := make([]interface{}, len(rows))
		for n, i := range rows {
			partition[n] = items[i]
		}

		key := aggregateKeys[s.function]
		if len(s.order) == 0 {
			v := sql.ComputeAggregates(partition, s.field)[key]
			for n := range rows {
				out[n] = v
			}
			break
		}

		for n := range rows {
			out[n] = sql.ComputeAggregates(partition[:n+1], s.field)[key]
		}
	}
	return out
}
