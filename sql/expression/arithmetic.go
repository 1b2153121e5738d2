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
	"math"

	"github.com/exonware/go-xwquery/sql"
)

// arithmetic applies an arithmetic operator. Null operands and division by
// zero yield null. + concatenates when either side is a non numeric string.
func arithmetic(op string, left, right interface{}) (interface{}, error) {
	if left == nil || right == nil {
		return nil, nil
	}

	lf, lok := sql.ToFloat(left)
	rf, rok := sql.ToFloat(right)
	if !lok || !rok {
		if op == Plus {
			ls, lstr := left.(string)
			rs, rstr := right.(string)
			if lstr || rstr {
				if !lstr {
					ls = fmt.Sprint(left)
				}
				if !rstr {
					rs = fmt.Sprint(right)
				}
				return ls + rs, nil
			}
		}
		return nil, sql.ErrValue.New(fmt.Sprintf("cannot apply %s to %v and %v", op, left, right))
	}

	var result float64
	switch op {
	case Plus:
		result = lf + rf
	case Minus:
		result = lf - rf
	case Mult:
		result = lf * rf
	case Div:
		if rf == 0 {
			return nil, nil
		}
		result = lf / rf
	case Mod:
		if rf == 0 {
			return nil, nil
		}
		result = math.Mod(lf, rf)
	default:
		return nil, sql.ErrValue.New(fmt.Sprintf("unknown arithmetic operator %q", op))
	}

	return sql.Normalize(result), nil
}

// Unary operators.
const (
	Not    = "NOT"
	Negate = "-"
)

// Unary is a prefix operation on a single expression.
type Unary struct {
	UnaryExpression
	Op string
}

// NewUnary creates a new unary expression.
func NewUnary(op string, child sql.Expression) *Unary {
	if op == "!" {
		op = Not
	}
	return &Unary{UnaryExpression{child}, op}
}

// NewNot returns a new NOT expression.
func NewNot(child sql.Expression) *Unary { return NewUnary(Not, child) }

// NewNegate returns a new arithmetic negation.
func NewNegate(child sql.Expression) *Unary { return NewUnary(Negate, child) }

// Eval implements the Expression interface.
func (u *Unary) Eval(ctx *sql.Context, record interface{}) (interface{}, error) {
	v, err := u.Child.Eval(ctx, record)
	if err != nil {
		return nil, err
	}

	switch u.Op {
	case Not:
		return !sql.Truthy(v), nil
	case Negate:
		if v == nil {
			return nil, nil
		}
		f, ok := sql.ToFloat(v)
		if !ok {
			return nil, sql.ErrValue.New(fmt.Sprintf("cannot negate %v", v))
		}
		return sql.Normalize(-f), nil
	default:
		return nil, sql.ErrValue.New(fmt.Sprintf("unknown unary operator %q", u.Op))
	}
}

func (u *Unary) String() string {
	if u.Op == Negate {
		return "-" + operand(u.Child)
	}
	return u.Op + " " + operand(u.Child)
}
