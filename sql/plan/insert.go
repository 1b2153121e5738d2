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

	"github.com/exonware/go-xwquery/sql"
)

// Insert appends records to the target collection. When the input is a
// mapping of collections the target field is updated in place and the
// mapping is returned; otherwise the result is the input list with the
// new records.
type Insert struct {
	descriptor
}

// NewInsert returns the INSERT executor.
func NewInsert() *Insert {
	return &Insert{descriptor{name: sql.OpInsert}}
}

// Execute implements the Executor interface.
func (i *Insert) Execute(ctx *sql.Context, a *sql.Action) (*sql.ExecutionResult, error) {
	raw, ok := a.Params["values"]
	if !ok {
		return nil, sql.ErrValue.New("INSERT needs values")
	}

	columns := a.Params.GetStrings("columns")
	var rows []interface{}
	if m, ok := raw.(map[string]interface{}); ok {
		rows = []interface{}{m}
	} else {
		rows = sql.ExtractItems(raw)
	}

	records := make([]interface{}, len(rows))
	for n, row := range rows {
		r, err := insertRecord(row, columns)
		if err != nil {
			return nil, err
		}
		records[n] = r
	}

	t := resolveTarget(ctx, a.Params.GetString("target"))
	items := make([]interface{}, 0, len(t.items)+len(records))
	items = append(items, t.items...)
	items = append(items, records...)

	return sql.NewResult(a.Type, t.store(items), map[string]interface{}{
		"inserted_count": len(records),
		"target":         a.Params.GetString("target"),
	}), nil
}

func insertRecord(row interface{}, columns []string) (interface{}, error) {
	if _, ok := sql.RecordFields(row); ok {
		return sql.CloneRecord(row), nil
	}

	values, ok := row.([]interface{})
	if !ok || len(columns) == 0 {
		return row, nil
	}

	if len(values) != len(columns) {
		return nil, sql.ErrValue.New(fmt.Sprintf(
			"column count %d does not match value count %d", len(columns), len(values),
		))
	}

	record := make(map[string]interface{}, len(columns))
	for i, c := range columns {
		record[c] = values[i]
	}
	return record, nil
}
