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

// Union appends the records of another collection to the input. The
// other collection is the data of the last child or the right param. With
// distinct set duplicates are removed, keeping the first occurrence.
type Union struct {
	descriptor
}

// NewUnion returns the UNION executor.
func NewUnion() *Union {
	return &Union{descriptor{name: sql.OpUnion}}
}

// Execute implements the Executor interface.
func (u *Union) Execute(ctx *sql.Context, a *sql.Action) (*sql.ExecutionResult, error) {
	right, err := collection(ctx, a, "right")
	if err != nil {
		return nil, err
	}

	left := sql.ExtractItems(ctx.Input)
	others := sql.ExtractItems(right)
	items := make([]interface{}, 0, len(left)+len(others))
	items = append(items, left...)
	items = append(items, others...)

	distinct := a.Params.GetBool("distinct")
	if distinct {
		items = distinctItems(items, nil)
	}

	return sql.NewResult(a.Type, items, map[string]interface{}{
		"left_count":   len(left),
		"right_count":  len(others),
		"result_count": len(items),
		"distinct":     distinct,
	}), nil
}
