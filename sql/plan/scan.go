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
	"sort"
	"strings"

	"github.com/exonware/go-xwquery/sql"
	"github.com/exonware/go-xwquery/sql/expression"
)

// scanSource returns the collection a scan reads: a variable or a field
// of the input named after the table, or the input itself.
func scanSource(ctx *sql.Context, from string) (interface{}, string) {
	if from == "" {
		return ctx.Input, "input"
	}

	if v, source, ok := resolveName(ctx, from); ok {
		return v, source
	}

	if m, ok := ctx.Input.(map[string]interface{}); ok && len(m) > 0 && isCatalog(m) {
		return nil, "missing"
	}
	return ctx.Input, "input"
}

// scan materializes the records of a scan-like action: the source, the
// pushed down filter and the pruned columns.
func scan(ctx *sql.Context, a *sql.Action, items []interface{}, total int, source string) (*sql.ExecutionResult, error) {
	cond, err := condition(a, "filter")
	if err != nil {
		return nil, err
	}

	items, err = filterItems(ctx, items, cond)
	if err != nil {
		return nil, err
	}

	if required := a.Params.GetStrings("required"); len(required) > 0 {
		items = pruneColumns(items, required)
	}

	return sql.NewResult(a.Type, items, map[string]interface{}{
		"table":       a.Params.GetString("from"),
		"source":      source,
		"total_items": total,
		"row_count":   len(items),
	}), nil
}

// pruneColumns keeps only the given top level fields of every mapping
// record.
func pruneColumns(items []interface{}, fields []string) []interface{} {
	result := make([]interface{}, len(items))
	for i, item := range items {
		m, ok := item.(map[string]interface{})
		if !ok {
			result[i] = item
			continue
		}

		pruned := make(map[string]interface{}, len(fields))
		for _, f := range fields {
			if v, ok := m[f]; ok {
				pruned[f] = v
			}
		}
		result[i] = pruned
	}
	return result
}

// SequentialScan reads every record of its source.
type SequentialScan struct {
	descriptor
}

// NewSequentialScan returns the SEQUENTIAL_SCAN executor.
func NewSequentialScan() *SequentialScan {
	return &SequentialScan{descriptor{name: sql.OpSequentialScan}}
}

// Execute implements the Executor interface.
func (s *SequentialScan) Execute(ctx *sql.Context, a *sql.Action) (*sql.ExecutionResult, error) {
	data, source := scanSource(ctx, a.Params.GetString("from"))
	items := sql.ExtractItems(data)
	return scan(ctx, a, items, len(items), source)
}

// IndexScan reads the records of its source whose indexed column matches
// the equality of the filter, then applies the rest of the filter.
// Records keep the order of the source.
type IndexScan struct {
	descriptor
}

// NewIndexScan returns the INDEX_SCAN executor.
func NewIndexScan() *IndexScan {
	return &IndexScan{descriptor{name: sql.OpIndexScan}}
}

// Execute implements the Executor interface.
func (s *IndexScan) Execute(ctx *sql.Context, a *sql.Action) (*sql.ExecutionResult, error) {
	data, source := scanSource(ctx, a.Params.GetString("from"))
	items := sql.ExtractItems(data)

	cond, err := condition(a, "filter")
	if err != nil {
		return nil, err
	}

	column := a.Params.GetString("index")
	values, ok := IndexLookupValues(cond, column, a.Params.GetString("alias"), a.Params.GetString("from"))
	if !ok {
		return scan(ctx, a, items, len(items), source)
	}

	index := make(map[int][]int)
	keys := newKeyIndex()
	for i, item := range items {
		v, ok := sql.FieldValue(item, column)
		if !ok || v == nil {
			continue
		}
		k, _ := keys.add(v)
		index[k] = append(index[k], i)
	}

	var positions []int
	for _, v := range values {
		if k := keys.find(v); k >= 0 {
			positions = append(positions, index[k]...)
		}
	}
	sort.Ints(positions)

	candidates := make([]interface{}, 0, len(positions))
	last := -1
	for _, p := range positions {
		if p != last {
			candidates = append(candidates, items[p])
		}
		last = p
	}

	res, err := scan(ctx, a, candidates, len(items), source)
	if err != nil {
		return nil, err
	}
	res.Metadata["index"] = column
	res.Metadata["candidates"] = len(candidates)
	return res, nil
}

// IndexLookupValues returns the constant values the column is compared
// for equality with in a conjunct of cond, with = or IN. Qualifiers
// matching the alias or table of the scan are ignored.
func IndexLookupValues(cond sql.Expression, column, alias, table string) ([]interface{}, bool) {
	if column == "" {
		return nil, false
	}

	matches := func(e sql.Expression) bool {
		id, ok := e.(*expression.Identifier)
		if !ok {
			return false
		}
		if strings.EqualFold(id.Name, column) {
			return true
		}
		q := id.Table()
		return (q != "" && (strings.EqualFold(q, alias) || strings.EqualFold(q, table))) &&
			strings.EqualFold(id.Column(), column)
	}

	for _, c := range expression.SplitConjunction(cond) {
		switch e := c.(type) {
		case *expression.Binary:
			if e.Op != expression.Eq {
				continue
			}
			if l, ok := e.Right.(*expression.Literal); ok && matches(e.Left) {
				return []interface{}{l.Value()}, true
			}
			if l, ok := e.Left.(*expression.Literal); ok && matches(e.Right) {
				return []interface{}{l.Value()}, true
			}
		case *expression.In:
			if !matches(e.Left) {
				continue
			}
			values := make([]interface{}, 0, len(e.Values))
			for _, v := range e.Values {
				l, ok := v.(*expression.Literal)
				if !ok {
					values = nil
					break
				}
				values = append(values, l.Value())
			}
			if values != nil {
				return values, true
			}
		}
	}
	return nil, false
}

// Select executes a SELECT action on its own: it scans the source, then
// applies the columns and DISTINCT. Analyzed trees replace SELECT with a
// scan followed by separate actions, so this only runs for trees built
// by hand or executed without analysis.
type Select struct {
	descriptor
}

// NewSelect returns the SELECT executor.
func NewSelect() *Select {
	return &Select{descriptor{name: sql.OpSelect}}
}

// Execute implements the Executor interface.
func (s *Select) Execute(ctx *sql.Context, a *sql.Action) (*sql.ExecutionResult, error) {
	data, source := scanSource(ctx, a.Params.GetString("from"))
	items := sql.ExtractItems(data)

	res, err := scan(ctx, a, items, len(items), source)
	if err != nil {
		return nil, err
	}
	items = res.Items()

	columns, err := projections(a.Params["columns"])
	if err != nil {
		return nil, err
	}

	if hasAggregates(columns) {
		record, err := aggregateRecord(ctx, items, columns)
		if err != nil {
			return nil, err
		}
		res.Data = []interface{}{record}
		return res, nil
	}

	if !isStarProjection(columns) {
		if items, err = projectItems(ctx, items, columns); err != nil {
			return nil, err
		}
	}

	if a.Params.GetBool("distinct") {
		items = distinctItems(items, nil)
	}

	res.Data = items
	res.Metadata["row_count"] = len(items)
	return res, nil
}
