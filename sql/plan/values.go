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
)

// Values produces the literal rows of the action, ignoring its input.
type Values struct {
	descriptor
}

// NewValues returns the VALUES executor.
func NewValues() *Values {
	return &Values{descriptor{name: sql.OpValues}}
}

// Execute implements the Executor interface.
func (v *Values) Execute(ctx *sql.Context, a *sql.Action) (*sql.ExecutionResult, error) {
	raw, ok := a.Params["values"]
	if !ok {
		raw = a.Params["rows"]
	}

	columns := a.Params.GetStrings("columns")
	rows := sql.ExtractItems(raw)
	items := make([]interface{}, len(rows))
	for i, row := range rows {
		r, err := insertRecord(row, columns)
		if err != nil {
			return nil, err
		}
		items[i] = r
	}

	return sql.NewResult(a.Type, items, map[string]interface{}{
		"row_count": len(items),
	}), nil
}
