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
	"strings"

	"github.com/exonware/go-xwquery/sql"
)

// Identifier is a reference to a field of the record, possibly a dotted
// path.
type Identifier struct {
	Name string
}

// NewIdentifier creates a new Identifier expression.
func NewIdentifier(name string) *Identifier {
	return &Identifier{Name: name}
}

// Table returns the qualifier of the identifier, if any.
func (i *Identifier) Table() string {
	if idx := strings.Index(i.Name, "."); idx > 0 {
		return i.Name[:idx]
	}
	return ""
}

// Column returns the name without its qualifier.
func (i *Identifier) Column() string {
	if idx := strings.Index(i.Name, "."); idx > 0 {
		return i.Name[idx+1:]
	}
	return i.Name
}

// Eval implements the Expression interface. Missing fields are null.
func (i *Identifier) Eval(ctx *sql.Context, record interface{}) (interface{}, error) {
	v, ok := sql.ResolveField(record, i.Name)
	if !ok {
		return nil, nil
	}
	return v, nil
}

// Children implements the Expression interface.
func (*Identifier) Children() []sql.Expression {
	return nil
}

func (i *Identifier) String() string {
	return i.Name
}

// Star is the * column reference.
type Star struct{}

// NewStar returns a new Star expression.
func NewStar() *Star { return &Star{} }

// Eval implements the Expression interface. It returns the record itself.
func (*Star) Eval(ctx *sql.Context, record interface{}) (interface{}, error) {
	return record, nil
}

// Children implements the Expression interface.
func (*Star) Children() []sql.Expression {
	return nil
}

func (*Star) String() string {
	return "*"
}

// Alias is a node that gives a name to an expression.
type Alias struct {
	UnaryExpression
	name string
}

// NewAlias returns a new Alias node.
func NewAlias(expr sql.Expression, name string) *Alias {
	return &Alias{UnaryExpression{expr}, name}
}

// Name implements the Nameable interface.
func (e *Alias) Name() string { return e.name }

// Eval implements the Expression interface.
func (e *Alias) Eval(ctx *sql.Context, record interface{}) (interface{}, error) {
	return e.Child.Eval(ctx, record)
}

func (e *Alias) String() string {
	return e.Child.String() + " AS " + e.name
}

// ColumnName returns the output name of a column expression: the alias,
// the column of an identifier or the rendering of anything else.
func ColumnName(e sql.Expression) string {
	switch e := e.(type) {
	case *Alias:
		return e.name
	case *Identifier:
		if idx := strings.LastIndex(e.Name, "."); idx >= 0 {
			return e.Name[idx+1:]
		}
		return e.Name
	default:
		return e.String()
	}
}

// Unalias returns the aliased expression, or e itself.
func Unalias(e sql.Expression) sql.Expression {
	if a, ok := e.(*Alias); ok {
		return a.Child
	}
	return e
}
