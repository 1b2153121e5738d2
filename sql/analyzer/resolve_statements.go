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

package analyzer

import (
	"fmt"

	errors "gopkg.in/src-d/go-errors.v1"

	"github.com/exonware/go-xwquery/sql"
	"github.com/exonware/go-xwquery/sql/expression"
	"github.com/exonware/go-xwquery/sql/plan"
)

// ErrInvalidCTE is returned when the column list of a common table
// expression does not match its query.
var ErrInvalidCTE = errors.NewKind("invalid common table expression %s: %s")

var statementHeads = map[string]bool{
	sql.OpSelect: true,
	sql.OpInsert: true,
	sql.OpUpdate: true,
	sql.OpDelete: true,
}

// resolveStatements splits the statements of the root and turns every
// statement into an executable pipeline. A single statement stays as the
// children of the root; several statements become one PROGRAM each.
func resolveStatements(ctx *sql.Context, a *Analyzer, n *sql.Action) (*sql.Action, error) {
	span, ctx := ctx.Span("resolve_statements")
	defer span.Finish()

	if !n.IsContainer() {
		return n, nil
	}

	dialect := dialectOf(n)
	statements := splitStatements(n.Children)

	resolved := make([]*sql.Action, 0, len(statements))
	for _, stmt := range statements {
		if len(stmt) == 1 && stmt[0].Type == sql.Program {
			children, err := a.resolvePipeline(ctx, stmt[0].Children, dialect)
			if err != nil {
				return nil, err
			}
			p := *stmt[0]
			p.Children = children
			resolved = append(resolved, &p)
			continue
		}

		children, err := a.resolvePipeline(ctx, stmt, dialect)
		if err != nil {
			return nil, err
		}
		resolved = append(resolved, sql.NewAction(sql.Program, nil, children...))
	}

	result := *n
	if len(resolved) == 1 {
		result.Children = resolved[0].Children
	} else {
		result.Children = resolved
	}

	a.Log("resolved %d statement(s)", len(resolved))
	return &result, nil
}

// splitStatements groups the children of a container by statement. A
// statement begins with the second statement head of the current group
// or with a PROGRAM, which is a statement on its own.
func splitStatements(children []*sql.Action) [][]*sql.Action {
	var (
		statements [][]*sql.Action
		current    []*sql.Action
		hasHead    bool
	)

	flush := func() {
		if len(current) > 0 {
			statements = append(statements, current)
		}
		current, hasHead = nil, false
	}

	for _, c := range children {
		switch {
		case c.Type == sql.Program:
			flush()
			statements = append(statements, []*sql.Action{c})
			continue
		case statementHeads[c.Type]:
			if hasHead {
				flush()
			}
			hasHead = true
		}
		current = append(current, c)
	}
	flush()

	return statements
}

// resolvePipeline makes the flat action sequence of a statement
// executable. The SELECT becomes a scan preceded by one LET for every
// common table expression, its columns become PROJECT, DISTINCT or
// aggregates, and the clauses that follow keep their order.
func (a *Analyzer) resolvePipeline(ctx *sql.Context, actions []*sql.Action, dialect string) ([]*sql.Action, error) {
	idx := -1
	for i, act := range actions {
		if act.Type == sql.OpSelect {
			idx = i
			break
		}
	}

	if idx < 0 {
		return normalizeClauses(actions, nil)
	}

	sel := actions[idx]
	columns, err := selectColumns(sel.Params["columns"])
	if err != nil {
		return nil, err
	}

	lets, err := a.resolveCTEs(ctx, sel, dialect)
	if err != nil {
		return nil, err
	}

	scan := sql.NewAction(sql.OpSequentialScan, nil).At(sel.Line, sel.Column)
	scan.ID = sel.ID
	if from := sel.Params.GetString("from"); from != "" {
		scan.Params["from"] = from
	}
	if alias := sel.Params.GetString("alias"); alias != "" {
		scan.Params["alias"] = alias
	}
	if filter, ok := sel.Params["filter"]; ok {
		scan.Params["filter"] = filter
	}

	rest, err := normalizeClauses(actions[idx+1:], columns)
	if err != nil {
		return nil, err
	}
	rest = assignJoinPrefixes(scan, rest)
	rest = placeColumns(rest, columns, sel.Params.GetBool("distinct"))

	result := make([]*sql.Action, 0, len(actions)+len(lets)+2)
	result = append(result, actions[:idx]...)
	result = append(result, lets...)
	result = append(result, scan)
	return append(result, rest...), nil
}

// resolveCTEs returns a LET for every common table expression of the
// select. The body of each LET is the resolved pipeline of the query.
func (a *Analyzer) resolveCTEs(ctx *sql.Context, sel *sql.Action, dialect string) ([]*sql.Action, error) {
	ctes := sql.ExtractItems(sel.Params["ctes"])
	if len(ctes) == 0 {
		return nil, nil
	}

	if sel.Params.GetBool("recursive") {
		return nil, sql.ErrUnsupportedOperation.New(sql.OpWith, "recursive common table expressions are not supported")
	}

	lets := make([]*sql.Action, 0, len(ctes))
	for _, raw := range ctes {
		cte, ok := raw.(map[string]interface{})
		if !ok {
			return nil, ErrInAnalysis.New(fmt.Sprintf("invalid common table expression %v", raw))
		}

		p := sql.Params(cte)
		name := p.GetString("name")
		if name == "" {
			return nil, ErrInAnalysis.New("common table expression without a name")
		}

		parsed, err := a.Parse(ctx, dialect, p.GetString("query"))
		if err != nil {
			return nil, err
		}

		body, err := a.resolvePipeline(ctx, parsed, dialect)
		if err != nil {
			return nil, err
		}

		if names := p.GetStrings("columns"); len(names) > 0 {
			rename, err := renameColumns(name, parsed, names)
			if err != nil {
				return nil, err
			}
			body = append(body, rename)
		}

		a.Log("common table expression %s resolved", name)
		lets = append(lets, sql.NewAction(sql.OpLet, sql.Params{"name": name},
			sql.NewAction(sql.Program, nil, body...)))
	}

	return lets, nil
}

// renameColumns returns the PROJECT giving the columns of the query the
// names of the column list.
func renameColumns(cte string, query []*sql.Action, names []string) (*sql.Action, error) {
	var columns []sql.Expression
	for _, act := range query {
		if act.Type == sql.OpSelect {
			var err error
			if columns, err = selectColumns(act.Params["columns"]); err != nil {
				return nil, err
			}
			break
		}
	}

	if isStar(columns) {
		return nil, ErrInvalidCTE.New(cte, "a column list needs explicit columns in the query")
	}
	if len(columns) != len(names) {
		return nil, ErrInvalidCTE.New(cte, fmt.Sprintf("%d column names for %d columns", len(names), len(columns)))
	}

	fields := make([]sql.Expression, len(columns))
	for i, c := range columns {
		fields[i] = expression.NewAlias(expression.NewIdentifier(expression.ColumnName(c)), names[i])
	}
	return sql.NewAction(sql.OpProject, sql.Params{"fields": fields}), nil
}

// normalizeClauses collapses consecutive ORDER_BY actions into a single
// multi-key sort and moves OFFSET in front of a LIMIT it directly
// follows. Sort keys naming an aliased column sort by its expression.
func normalizeClauses(actions []*sql.Action, columns []sql.Expression) ([]*sql.Action, error) {
	aliases := make(map[string]sql.Expression)
	for _, c := range columns {
		if al, ok := c.(*expression.Alias); ok {
			aliases[al.Name()] = al.Child
		}
	}

	result := make([]*sql.Action, 0, len(actions))
	for i := 0; i < len(actions); i++ {
		act := actions[i]
		if act.Type != sql.OpOrderBy || len(act.Children) > 0 {
			result = append(result, act)
			continue
		}

		var keys []interface{}
		for ; i < len(actions) && actions[i].Type == sql.OpOrderBy && len(actions[i].Children) == 0; i++ {
			ks, err := plan.SortKeys(actions[i].Params)
			if err != nil {
				return nil, err
			}
			for _, k := range ks {
				if e, ok := aliases[k.Column]; ok && k.Expression == nil {
					k.Expression = e
				}
				keys = append(keys, k.Params())
			}
		}
		i--

		order := sql.NewAction(sql.OpOrderBy, sql.Params{"keys": keys}).At(act.Line, act.Column)
		order.ID = act.ID
		result = append(result, order)
	}

	for i := 0; i+1 < len(result); i++ {
		if result[i].Type == sql.OpLimit && result[i+1].Type == sql.OpOffset {
			result[i], result[i+1] = result[i+1], result[i]
			i++
		}
	}

	return result, nil
}

// assignJoinPrefixes qualifies the fields of joined records with the
// names of their tables. The first join prefixes the scanned records,
// later joins receive records that are already qualified.
func assignJoinPrefixes(scan *sql.Action, actions []*sql.Action) []*sql.Action {
	table := scan.Params.GetString("alias")
	if table == "" {
		table = scan.Params.GetString("from")
	}
	if table == "" {
		return actions
	}

	first := true
	result := make([]*sql.Action, len(actions))
	for i, act := range actions {
		result[i] = act
		if act.Type != sql.OpJoin {
			continue
		}

		j := withParams(act)
		if !j.Params.Has("left_prefix") {
			if first {
				j.Params["left_prefix"] = table + "."
			} else {
				j.Params["left_prefix"] = ""
			}
		}
		if !j.Params.Has("right_prefix") {
			right := j.Params.GetString("alias")
			if right == "" {
				right = j.Params.GetString("right")
			}
			if right != "" {
				j.Params["right_prefix"] = right + "."
			}
		}
		first = false
		result[i] = j
	}

	return result
}

// placeColumns adds the actions computing the select columns. Aggregates
// go into GROUP_BY, or into an AGGREGATE over the whole input without
// one. Plain columns become a PROJECT at the end of the pipeline, or in
// front of DISTINCT and the sort when the select is distinct.
func placeColumns(actions []*sql.Action, columns []sql.Expression, distinct bool) []*sql.Action {
	hasAgg := false
	for _, c := range columns {
		if expression.HasAggregate(c) {
			hasAgg = true
			break
		}
	}

	switch {
	case hasAgg:
		if i := indexOf(actions, sql.OpGroupBy, sql.OpGroup); i >= 0 {
			if actions[i].Params.Has("aggregates") {
				return actions
			}
			g := withParams(actions[i])
			g.Params["aggregates"] = columns
			result := append([]*sql.Action(nil), actions...)
			result[i] = g
			return result
		}

		agg := sql.NewAction(sql.OpAggregate, sql.Params{"columns": columns})
		return insertBefore(actions, []*sql.Action{agg}, sql.OpHaving, sql.OpOrderBy, sql.OpOffset, sql.OpLimit)
	case isStar(columns):
		if distinct {
			return insertBefore(actions, []*sql.Action{sql.NewAction(sql.OpDistinct, nil)},
				sql.OpOrderBy, sql.OpOffset, sql.OpLimit)
		}
		return actions
	case distinct:
		return insertBefore(actions, []*sql.Action{
			sql.NewAction(sql.OpProject, sql.Params{"fields": columns}),
			sql.NewAction(sql.OpDistinct, nil),
		}, sql.OpOrderBy, sql.OpOffset, sql.OpLimit)
	default:
		return append(append([]*sql.Action(nil), actions...),
			sql.NewAction(sql.OpProject, sql.Params{"fields": columns}))
	}
}

func indexOf(actions []*sql.Action, types ...string) int {
	for i, act := range actions {
		for _, t := range types {
			if act.Type == t {
				return i
			}
		}
	}
	return -1
}

// insertBefore inserts the actions in front of the first action of the
// given types, or at the end.
func insertBefore(actions []*sql.Action, insert []*sql.Action, types ...string) []*sql.Action {
	i := indexOf(actions, types...)
	if i < 0 {
		i = len(actions)
	}

	result := make([]*sql.Action, 0, len(actions)+len(insert))
	result = append(result, actions[:i]...)
	result = append(result, insert...)
	return append(result, actions[i:]...)
}

func selectColumns(raw interface{}) ([]sql.Expression, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case []sql.Expression:
		return v, nil
	case sql.Expression:
		return []sql.Expression{v}, nil
	}

	var columns []sql.Expression
	for _, item := range sql.ExtractItems(raw) {
		switch c := item.(type) {
		case sql.Expression:
			columns = append(columns, c)
		case string:
			if c == "*" {
				columns = append(columns, expression.NewStar())
			} else {
				columns = append(columns, expression.NewIdentifier(c))
			}
		default:
			return nil, ErrInAnalysis.New(fmt.Sprintf("invalid select column %v", item))
		}
	}
	return columns, nil
}

// isStar reports whether the columns select the records unchanged.
func isStar(columns []sql.Expression) bool {
	for _, c := range columns {
		if _, ok := c.(*expression.Star); !ok {
			return false
		}
	}
	return true
}
