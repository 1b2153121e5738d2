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
	"github.com/exonware/go-xwquery/sql"
)

// UnaryExpression is an expression that has only one child.
type UnaryExpression struct {
	Child sql.Expression
}

// Children implements the Expression interface.
func (p *UnaryExpression) Children() []sql.Expression {
	return []sql.Expression{p.Child}
}

// BinaryExpression is an expression that has two children.
type BinaryExpression struct {
	Left  sql.Expression
	Right sql.Expression
}

// Children implements the Expression interface.
func (p *BinaryExpression) Children() []sql.Expression {
	if p.Right == nil {
		return []sql.Expression{p.Left}
	}
	return []sql.Expression{p.Left, p.Right}
}

func evalBoth(ctx *sql.Context, record interface{}, l, r sql.Expression) (interface{}, interface{}, error) {
	left, err := l.Eval(ctx, record)
	if err != nil {
		return nil, nil, err
	}

	right, err := r.Eval(ctx, record)
	if err != nil {
		return nil, nil, err
	}

	return left, right, nil
}

// Identifiers returns the distinct identifier names referenced by e in
// order of appearance. Identifiers inside aggregates are included.
func Identifiers(e sql.Expression) []string {
	var (
		names []string
		seen  = make(map[string]bool)
	)

	sql.InspectExpression(e, func(e sql.Expression) bool {
		if id, ok := e.(*Identifier); ok && !seen[id.Name] {
			seen[id.Name] = true
			names = append(names, id.Name)
		}
		return true
	})

	return names
}

// HasAggregate reports whether e contains an aggregate call.
func HasAggregate(e sql.Expression) bool {
	var found bool
	sql.InspectExpression(e, func(e sql.Expression) bool {
		if _, ok := e.(*Aggregate); ok {
			found = true
		}
		return !found
	})
	return found
}

// IsTrue evaluates e as a condition.
func IsTrue(ctx *sql.Context, e sql.Expression, record interface{}) (bool, error) {
	if e == nil {
		return true, nil
	}

	v, err := e.Eval(ctx, record)
	if err != nil {
		return false, err
	}
	return sql.Truthy(v), nil
}

// JoinAnd joins the given expressions with AND. Nil expressions are
// ignored; it returns nil when there is nothing to join.
func JoinAnd(exprs ...sql.Expression) sql.Expression {
	var result sql.Expression
	for _, e := range exprs {
		if e == nil {
			continue
		}
		if result == nil {
			result = e
			continue
		}
		result = NewAnd(result, e)
	}
	return result
}

// SplitConjunction breaks AND expressions into their operands.
func SplitConjunction(e sql.Expression) []sql.Expression {
	if b, ok := e.(*Binary); ok && b.Op == And {
		return append(SplitConjunction(b.Left), SplitConjunction(b.Right)...)
	}
	if e == nil {
		return nil
	}
	return []sql.Expression{e}
}
