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

// Let binds a value to a variable of the context. The value is the value
// param or the data of the last child, so a LET with a sub-pipeline binds
// the result of that pipeline. The input is handed on unchanged.
type Let struct {
	descriptor
}

// NewLet returns the executor of LET or WITH.
func NewLet(op string) *Let {
	return &Let{descriptor{name: op}}
}

// Execute implements the Executor interface.
func (l *Let) Execute(ctx *sql.Context, a *sql.Action) (*sql.ExecutionResult, error) {
	name := a.Params.GetString("name")
	if name == "" {
		name = a.Params.GetString("variable")
	}
	if name == "" {
		return nil, sql.ErrValue.New(fmt.Sprintf("%s needs a name", a.Type))
	}

	var value interface{}
	if results := ctx.ChildResults(); len(results) > 0 {
		value = results[len(results)-1].Data
	} else if v, ok := a.Params["value"]; ok {
		if e, ok := v.(sql.Expression); ok {
			var err error
			if value, err = e.Eval(ctx, ctx.Input); err != nil {
				return nil, err
			}
		} else {
			value = v
		}
	} else {
		return nil, sql.ErrValue.New(fmt.Sprintf("%s %s has no value", a.Type, name))
	}

	ctx.SetVariable(name, value)
	return sql.NewResult(a.Type, ctx.Input, map[string]interface{}{
		"variable": name,
		"shape":    sql.InferShape(value).String(),
	}), nil
}
