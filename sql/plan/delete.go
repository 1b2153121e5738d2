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

// Delete removes the records of the target collection matching the where
// condition. Without a condition every record is removed.
type Delete struct {
	descriptor
}

// NewDelete returns the DELETE executor.
func NewDelete() *Delete {
	return &Delete{descriptor{name: sql.OpDelete}}
}

// Execute implements the Executor interface.
func (d *Delete) Execute(ctx *sql.Context, a *sql.Action) (*sql.ExecutionResult, error) {
	cond, err := condition(a, "where")
	if err != nil {
		return nil, err
	}

	limit, _, err := intParam(a, "limit")
	if err != nil {
		return nil, err
	}

	t := resolveTarget(ctx, a.Params.GetString("target"))
	kept := make([]interface{}, 0, len(t.items))
	deleted := 0
	for _, item := range t.items {
		if limit > 0 && int64(deleted) >= limit {
			kept = append(kept, item)
			continue
		}

		ok, err := expression.IsTrue(ctx, cond, item)
		if err != nil {
			return nil, err
		}

		if ok {
			deleted++
		} else {
			kept = append(kept, item)
		}
	}

	return sql.NewResult(a.Type, t.store(kept), map[string]interface{}{
		"deleted_count": deleted,
		"target":        a.Params.GetString("target"),
	}), nil
}
