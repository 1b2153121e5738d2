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
	"github.com/exonware/go-xwquery/sql/expression"
)

// projection is a single output column.
type projection struct {
	name string
	expr sql.Expression
	star bool
	// qualified is the full dotted path of an unaliased column such as
	// u.name, used when two columns would share a name.
	qualified string
}

// projections reads a list of field specs. A spec is an expression, a
// name, "name AS alias", "name:alias" or "*"; a mapping renames its
// source paths to its keys. Unaliased qualified columns keep their full
// path when their short names collide.
func projections(raw interface{}) ([]projection, error) {
	ps, err := readProjections(raw)
	if err != nil {
		return nil, err
	}
	return disambiguate(ps), nil
}

func readProjections(raw interface{}) ([]projection, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case []sql.Expression:
		result := make([]projection, len(v))
		for i, e := range v {
			result[i] = exprProjection(e)
		}
		return result, nil
	case map[string]interface{}:
		aliases := make([]string, 0, len(v))
		for k := range v {
			aliases = append(aliases, k)
		}
		sort.Strings(aliases)

		result := make([]projection, 0, len(v))
		for _, alias := range aliases {
			var e sql.Expression
			switch src := v[alias].(type) {
			case sql.Expression:
				e = src
			case string:
				e = expression.NewIdentifier(strings.TrimPrefix(src, "$"))
			default:
				e = expression.NewLiteral(src)
			}
			result = append(result, projection{name: alias, expr: e})
		}
		return result, nil
	case string, sql.Expression:
		return readProjections([]interface{}{v})
	}

	var result []projection
	for _, item := range sql.ExtractItems(raw) {
		switch f := item.(type) {
		case sql.Expression:
			result = append(result, exprProjection(f))
		case string:
			result = append(result, stringProjection(f))
		default:
			return nil, sql.ErrValue.New(fmt.Sprintf("invalid field spec %v of type %T", item, item))
		}
	}
	return result, nil
}

func exprProjection(e sql.Expression) projection {
	if _, ok := e.(*expression.Star); ok {
		return projection{name: "*", star: true}
	}
	p := projection{name: expression.ColumnName(e), expr: expression.Unalias(e)}
	if id, ok := e.(*expression.Identifier); ok && strings.Contains(id.Name, ".") {
		p.qualified = id.Name
	}
	return p
}

func disambiguate(ps []projection) []projection {
	seen := make(map[string]int, len(ps))
	for _, p := range ps {
		if !p.star {
			seen[p.name]++
		}
	}

	for i, p := range ps {
		if p.qualified != "" && seen[p.name] > 1 {
			ps[i].name = p.qualified
		}
	}
	return ps
}

func stringProjection(spec string) projection {
	spec = strings.TrimSpace(spec)
	if spec == "*" {
		return projection{name: "*", star: true}
	}

	if idx := strings.Index(strings.ToUpper(spec), " AS "); idx > 0 {
		return projection{
			name: strings.TrimSpace(spec[idx+4:]),
			expr: expression.NewIdentifier(strings.TrimSpace(spec[:idx])),
		}
	}

	if idx := strings.Index(spec, ":"); idx > 0 {
		return projection{
			name: strings.TrimSpace(spec[idx+1:]),
			expr: expression.NewIdentifier(strings.TrimSpace(spec[:idx])),
		}
	}

	return exprProjection(expression.NewIdentifier(spec))
}

func isStarProjection(ps []projection) bool {
	if len(ps) == 0 {
		return true
	}
	for _, p := range ps {
		if !p.star {
			return false
		}
	}
	return true
}

func hasAggregates(ps []projection) bool {
	for _, p := range ps {
		if p.expr != nil && expression.HasAggregate(p.expr) {
			return true
		}
	}
	return false
}

// projectRecord builds the output record of item. Columns reading a
// missing field are omitted.
func projectRecord(ctx *sql.Context, item interface{}, ps []projection) (interface{}, error) {
	out := make(map[string]interface{}, len(ps))
	for _, p := range ps {
		if p.star {
			if fields, ok := sql.RecordFields(item); ok {
				for k, v := range fields {
					out[k] = v
				}
			}
			continue
		}

		if id, ok := p.expr.(*expression.Identifier); ok {
			if v, ok := sql.ResolveField(item, id.Name); ok {
				out[p.name] = v
			}
			continue
		}

		v, err := p.expr.Eval(ctx, item)
		if err != nil {
			return nil, err
		}
		out[p.name] = v
	}
	return out, nil
}

func projectItems(ctx *sql.Context, items []interface{}, ps []projection) ([]interface{}, error) {
	result := make([]interface{}, len(items))
	for i, item := range items {
		r, err := projectRecord(ctx, item, ps)
		if err != nil {
			return nil, err
		}
		result[i] = r
	}
	return result, nil
}

// aggregateRecord evaluates the columns over the whole list: aggregates
// aggregate every item and other columns read the first item.
func aggregateRecord(ctx *sql.Context, items []interface{}, ps []projection) (map[string]interface{}, error) {
	var first interface{}
	if len(items) > 0 {
		first = items[0]
	}

	out := make(map[string]interface{}, len(ps))
	for _, p := range ps {
		if p.star {
			continue
		}

		var (
			v   interface{}
			err error
		)
		if expression.HasAggregate(p.expr) {
			v, err = evalOverList(ctx, p.expr, items)
		} else if first != nil {
			v, err = p.expr.Eval(ctx, first)
		}
		if err != nil {
			return nil, err
		}
		out[p.name] = v
	}
	return out, nil
}

// evalOverList evaluates an expression containing aggregates with the
// list as the group.
func evalOverList(ctx *sql.Context, e sql.Expression, items []interface{}) (interface{}, error) {
	group := map[string]interface{}{
		sql.GroupKeyField:   map[string]interface{}{},
		sql.GroupItemsField: items,
		sql.GroupCountField: int64(len(items)),
	}
	return e.Eval(ctx, group)
}

// Project keeps the given fields of every record.
type Project struct {
	descriptor
}

// NewProject returns the PROJECT executor.
func NewProject() *Project {
	return &Project{descriptor{name: sql.OpProject}}
}

// Execute implements the Executor interface.
func (p *Project) Execute(ctx *sql.Context, a *sql.Action) (*sql.ExecutionResult, error) {
	raw, ok := a.Params["fields"]
	if !ok {
		raw = a.Params["columns"]
	}

	ps, err := projections(raw)
	if err != nil {
		return nil, err
	}

	items := sql.ExtractItems(ctx.Input)
	if isStarProjection(ps) {
		return sql.NewResult(a.Type, items, map[string]interface{}{
			"fields": []string{"*"},
		}), nil
	}

	result, err := projectItems(ctx, items, ps)
	if err != nil {
		return nil, err
	}

	names := make([]string, len(ps))
	for i, p := range ps {
		names[i] = p.name
	}

	return sql.NewResult(a.Type, result, map[string]interface{}{
		"fields": names,
	}), nil
}

// Extend adds computed fields to every record, keeping the existing ones.
type Extend struct {
	descriptor
}

// NewExtend returns the EXTEND executor.
func NewExtend() *Extend {
	return &Extend{descriptor{name: sql.OpExtend}}
}

// extension is a computed field of EXTEND.
type extension struct {
	name  string
	value func(ctx *sql.Context, record interface{}) (interface{}, error)
}

func extensions(raw interface{}) ([]extension, error) {
	m, ok := raw.(map[string]interface{})
	if !ok {
		ps, err := projections(raw)
		if err != nil {
			return nil, err
		}

		result := make([]extension, 0, len(ps))
		for _, p := range ps {
			if p.star {
				continue
			}
			result = append(result, extension{p.name, p.expr.Eval})
		}
		return result, nil
	}

	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)

	result := make([]extension, 0, len(m))
	for _, name := range names {
		result = append(result, extension{name, computedValue(m[name])})
	}
	return result, nil
}

// computedValue returns how a computed field of a mapping spec gets its
// value: expressions are evaluated, "$path" strings read a field, other
// strings read the field of that name when the record has it, functions
// are called with the record and anything else is a constant.
func computedValue(v interface{}) func(*sql.Context, interface{}) (interface{}, error) {
	switch v := v.(type) {
	case sql.Expression:
		return v.Eval
	case func(interface{}) interface{}:
		return func(_ *sql.Context, record interface{}) (interface{}, error) {
			return v(record), nil
		}
	case func(interface{}) (interface{}, error):
		return func(_ *sql.Context, record interface{}) (interface{}, error) {
			return v(record)
		}
	case string:
		return func(_ *sql.Context, record interface{}) (interface{}, error) {
			if strings.HasPrefix(v, "$") {
				f, _ := sql.ResolveField(record, v[1:])
				return f, nil
			}
			if f, ok := sql.ResolveField(record, v); ok {
				return f, nil
			}
			return v, nil
		}
	default:
		return func(*sql.Context, interface{}) (interface{}, error) {
			return v, nil
		}
	}
}

// Execute implements the Executor interface.
func (e *Extend) Execute(ctx *sql.Context, a *sql.Action) (*sql.ExecutionResult, error) {
	exts, err := extensions(a.Params["fields"])
	if err != nil {
		return nil, err
	}

	items := sql.ExtractItems(ctx.Input)
	result := make([]interface{}, len(items))
	names := make([]string, len(exts))
	for i, ext := range exts {
		names[i] = ext.name
	}

	for i, item := range items {
		fields, ok := sql.RecordFields(item)
		if !ok {
			fields = map[string]interface{}{"value": item}
		}
		out := sql.CloneRecord(fields).(map[string]interface{})

		for _, ext := range exts {
			v, err := ext.value(ctx, item)
			if err != nil {
				return nil, err
			}
			out[ext.name] = v
		}
		result[i] = out
	}

	return sql.NewResult(a.Type, result, map[string]interface{}{
		"fields": names,
	}), nil
}
