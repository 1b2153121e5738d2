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

package expression

import (
	"fmt"
	"strings"

	"github.com/exonware/go-xwquery/sql"
	"github.com/exonware/go-xwquery/sql/expression/function"
)

// Function is a call to a scalar function resolved by name at evaluation
// time.
type Function struct {
	Name string
	Args []sql.Expression
}

// NewFunction creates a new function call expression.
func NewFunction(name string, args ...sql.Expression) *Function {
	return &Function{Name: strings.ToUpper(name), Args: args}
}

// Children implements the Expression interface.
func (f *Function) Children() []sql.Expression {
	return f.Args
}

// Eval implements the Expression interface.
func (f *Function) Eval(ctx *sql.Context, record interface{}) (interface{}, error) {
	fn, err := function.Lookup(f.Name)
	if err != nil {
		return nil, err
	}

	args := make([]interface{}, len(f.Args))
	for i, a := range f.Args {
		v, err := a.Eval(ctx, record)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}

	return fn.Call(args...)
}

func (f *Function) String() string {
	args := make([]string, len(f.Args))
	for i, a := range f.Args {
		args[i] = a.String()
	}
	return fmt.Sprintf("%s(%s)", f.Name, strings.Join(args, ", "))
}
