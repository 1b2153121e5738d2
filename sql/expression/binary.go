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
)

// Binary operators.
const (
	Eq        = "="
	NotEq     = "!="
	Lt        = "<"
	LtEq      = "<="
	Gt        = ">"
	GtEq      = ">="
	Plus      = "+"
	Minus     = "-"
	Mult      = "*"
	Div       = "/"
	Mod       = "%"
	And       = "AND"
	Or        = "OR"
	LikeOp    = "LIKE"
	IsNull    = "IS NULL"
	IsNotNull = "IS NOT NULL"
)

var binaryOps = map[string]bool{
	Eq: true, NotEq: true, Lt: true, LtEq: true, Gt: true, GtEq: true,
	Plus: true, Minus: true, Mult: true, Div: true, Mod: true,
	And: true, Or: true, LikeOp: true, IsNull: true, IsNotNull: true,
}

// IsBinaryOp reports whether op is a binary operator.
func IsBinaryOp(op string) bool {
	return binaryOps[op]
}

// IsComparison reports whether op is a comparison operator.
func IsComparison(op string) bool {
	switch op {
	case Eq, NotEq, Lt, LtEq, Gt, GtEq, LikeOp:
		return true
	default:
		return false
	}
}

// Binary is an operation between two expressions. IS NULL and IS NOT NULL
// have no right operand.
type Binary struct {
	BinaryExpression
	Op string
}

// NewBinary creates a new binary expression. The operator is normalized:
// <> and == are accepted for != and =.
func NewBinary(op string, left, right sql.Expression) *Binary {
	op = strings.ToUpper(strings.TrimSpace(op))
	switch op {
	case "<>":
		op = NotEq
	case "==":
		op = Eq
	}
	return &Binary{BinaryExpression{left, right}, op}
}

// NewEquals returns a new = expression.
func NewEquals(left, right sql.Expression) *Binary { return NewBinary(Eq, left, right) }

// NewNotEquals returns a new != expression.
func NewNotEquals(left, right sql.Expression) *Binary { return NewBinary(NotEq, left, right) }

// NewLessThan returns a new < expression.
func NewLessThan(left, right sql.Expression) *Binary { return NewBinary(Lt, left, right) }

// NewLessThanOrEqual returns a new <= expression.
func NewLessThanOrEqual(left, right sql.Expression) *Binary { return NewBinary(LtEq, left, right) }

// NewGreaterThan returns a new > expression.
func NewGreaterThan(left, right sql.Expression) *Binary { return NewBinary(Gt, left, right) }

// NewGreaterThanOrEqual returns a new >= expression.
func NewGreaterThanOrEqual(left, right sql.Expression) *Binary {
	return NewBinary(GtEq, left, right)
}

// NewAnd returns a new AND expression.
func NewAnd(left, right sql.Expression) *Binary { return NewBinary(And, left, right) }

// NewOr returns a new OR expression.
func NewOr(left, right sql.Expression) *Binary { return NewBinary(Or, left, right) }

// NewLike returns a new LIKE expression.
func NewLike(left, pattern sql.Expression) *Binary { return NewBinary(LikeOp, left, pattern) }

// NewIsNull returns a new IS NULL expression.
func NewIsNull(child sql.Expression) *Binary { return NewBinary(IsNull, child, nil) }

// NewIsNotNull returns a new IS NOT NULL expression.
func NewIsNotNull(child sql.Expression) *Binary { return NewBinary(IsNotNull, child, nil) }

// Eval implements the Expression interface.
func (b *Binary) Eval(ctx *sql.Context, record interface{}) (interface{}, error) {
	switch b.Op {
	case And, Or:
		return b.evalLogic(ctx, record)
	case IsNull, IsNotNull:
		v, err := b.Left.Eval(ctx, record)
		if err != nil {
			return nil, err
		}
		return (v == nil) == (b.Op == IsNull), nil
	}

	if b.Right == nil {
		return nil, sql.ErrValue.New(fmt.Sprintf("operator %s needs two operands", b.Op))
	}

	left, right, err := evalBoth(ctx, record, b.Left, b.Right)
	if err != nil {
		return nil, err
	}

	switch b.Op {
	case Eq, NotEq, Lt, LtEq, Gt, GtEq:
		return compare(b.Op, left, right), nil
	case LikeOp:
		return like(left, right)
	case Plus, Minus, Mult, Div, Mod:
		return arithmetic(b.Op, left, right)
	default:
		return nil, sql.ErrValue.New(fmt.Sprintf("unknown binary operator %q", b.Op))
	}
}

func (b *Binary) evalLogic(ctx *sql.Context, record interface{}) (interface{}, error) {
	left, err := b.Left.Eval(ctx, record)
	if err != nil {
		return nil, err
	}

	lv := sql.Truthy(left)
	if b.Op == And && !lv {
		return false, nil
	}
	if b.Op == Or && lv {
		return true, nil
	}

	right, err := b.Right.Eval(ctx, record)
	if err != nil {
		return nil, err
	}
	return sql.Truthy(right), nil
}

func (b *Binary) String() string {
	if b.Right == nil {
		return fmt.Sprintf("%s %s", operand(b.Left), b.Op)
	}
	return fmt.Sprintf("%s %s %s", operand(b.Left), b.Op, operand(b.Right))
}

func operand(e sql.Expression) string {
	if e == nil {
		return "NULL"
	}
	if _, ok := e.(*Binary); ok {
		return "(" + e.String() + ")"
	}
	return e.String()
}

// compare applies a comparison operator. Any comparison with null is false.
func compare(op string, left, right interface{}) bool {
	if left == nil || right == nil {
		return false
	}

	switch op {
	case Eq:
		return sql.Equals(left, right)
	case NotEq:
		return !sql.Equals(left, right)
	}

	cmp := sql.Compare(left, right)
	switch op {
	case Lt:
		return cmp < 0
	case LtEq:
		return cmp <= 0
	case Gt:
		return cmp > 0
	default:
		return cmp >= 0
	}
}
