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

package xwquery

import (
	"context"
	"strings"

	"github.com/exonware/go-xwquery/sql"
	"github.com/exonware/go-xwquery/sql/generate"
	"github.com/exonware/go-xwquery/sql/parse"
)

// SelectQuery describes the query built by BuildSelect.
type SelectQuery struct {
	Table  string
	Fields []string
	// Where is a SQL condition without the WHERE keyword.
	Where string
	// OrderBy is a comma separated list of "column [ASC|DESC]".
	OrderBy string
	Limit   int
}

// BuildSelect returns the SQL text of the query.
func BuildSelect(q SelectQuery) (string, error) {
	fields := q.Fields
	if len(fields) == 0 {
		fields = []string{"*"}
	}

	actions := []*sql.Action{
		sql.NewAction(sql.OpSelect, sql.Params{"columns": fields, "from": q.Table}),
	}

	if q.Where != "" {
		actions = append(actions, sql.NewAction(sql.OpWhere, sql.Params{"condition": q.Where}))
	}

	for _, key := range strings.Split(q.OrderBy, ",") {
		parts := strings.Fields(key)
		if len(parts) == 0 {
			continue
		}

		direction := parse.Ascending
		if len(parts) > 1 && strings.EqualFold(parts[1], parse.Descending) {
			direction = parse.Descending
		}
		actions = append(actions, sql.NewAction(sql.OpOrderBy, sql.Params{
			"column":    parts[0],
			"direction": direction,
		}))
	}

	if q.Limit > 0 {
		actions = append(actions, sql.NewAction(sql.OpLimit, sql.Params{"count": int64(q.Limit)}))
	}

	return buildSQL(actions...)
}

// BuildInsert returns the SQL text inserting one record.
func BuildInsert(table string, values map[string]interface{}) (string, error) {
	return buildSQL(sql.NewAction(sql.OpInsert, sql.Params{"target": table, "values": values}))
}

// BuildUpdate returns the SQL text setting the values on the records
// matching where.
func BuildUpdate(table string, values map[string]interface{}, where string) (string, error) {
	params := sql.Params{"target": table, "set": values}
	if where != "" {
		params["where"] = where
	}
	return buildSQL(sql.NewAction(sql.OpUpdate, params))
}

// BuildDelete returns the SQL text deleting the records matching where.
func BuildDelete(table, where string) (string, error) {
	params := sql.Params{"target": table}
	if where != "" {
		params["where"] = where
	}
	return buildSQL(sql.NewAction(sql.OpDelete, params))
}

func buildSQL(actions ...*sql.Action) (string, error) {
	opts := generate.DefaultOptions()
	opts.Mode = sql.Strict
	return generate.Generate(sql.NewEmptyContext(), "SQL", actions, opts)
}

// QuickSelect selects the given fields of the records of data matching
// where. No fields selects whole records.
func (e *Engine) QuickSelect(
	ctx context.Context,
	data interface{},
	where string,
	fields ...string,
) (*sql.ExecutionResult, error) {
	text, err := BuildSelect(SelectQuery{Table: "data", Fields: fields, Where: where})
	if err != nil {
		return e.failed("parse", err)
	}
	return e.Execute(ctx, text, data, WithDialect("SQL"))
}

// QuickAggregate applies the aggregate function to the field, grouping by
// groupBy when given.
func (e *Engine) QuickAggregate(
	ctx context.Context,
	data interface{},
	function, field, groupBy string,
) (*sql.ExecutionResult, error) {
	text := "SELECT " + strings.ToUpper(function) + "(" + field + ") FROM data"
	if groupBy != "" {
		text = "SELECT " + groupBy + ", " + strings.ToUpper(function) + "(" + field + ") FROM data GROUP BY " + groupBy
	}
	return e.Execute(ctx, text, data, WithDialect("SQL"))
}
