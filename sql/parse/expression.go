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

package parse

import (
	"strconv"
	"strings"

	"github.com/exonware/go-xwquery/sql"
	"github.com/exonware/go-xwquery/sql/expression"
)

// comparisonFunc builds the expression of a dialect specific comparison
// word, such as KQL's contains.
type comparisonFunc func(left, right sql.Expression) sql.Expression

// exprConfig holds the dialect extension points of the expression parser.
type exprConfig struct {
	// attributes accepts @name as an identifier.
	attributes bool
	// comparisons are extra infix comparison words, lowercased.
	comparisons map[string]comparisonFunc
	// arithmetic maps operator words, like XPath's div, to operators.
	arithmetic map[string]string
	// functions renames dialect functions to registry names, lowercased.
	functions map[string]string
	// paths reads a/b as the nested field a.b instead of a division.
	paths bool
}

var comparisonSymbols = map[string]bool{
	"=": true, "==": true, "!=": true, "<>": true,
	"<": true, "<=": true, ">": true, ">=": true,
}

// parseExpression parses an expression with the following precedence,
// lowest first: OR, AND, NOT, comparisons, additive, multiplicative,
// unary and primary expressions.
func (p *parser) parseExpression() (sql.Expression, error) {
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()

	return p.parseOr()
}

func (p *parser) parseOr() (sql.Expression, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}

	for p.acceptKeyword("OR") {
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = expression.NewOr(left, right)
	}

	return left, nil
}

func (p *parser) parseAnd() (sql.Expression, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}

	for p.acceptKeyword("AND") {
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = expression.NewAnd(left, right)
	}

	return left, nil
}

func (p *parser) parseNot() (sql.Expression, error) {
	if !p.isKeyword("NOT") && !p.isSymbol("!") {
		return p.parseComparison()
	}

	p.next()
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()

	child, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	return expression.NewNot(child), nil
}

func (p *parser) parseComparison() (sql.Expression, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}

	tok := p.peek()
	if tok.Kind == Operator && comparisonSymbols[tok.Value] {
		p.next()
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		return expression.NewBinary(tok.Value, left, right), nil
	}

	if p.acceptKeyword("IS") {
		not := p.acceptKeyword("NOT")
		if _, err := p.expectKeyword("NULL"); err != nil {
			return nil, err
		}

		if not {
			return expression.NewIsNotNull(left), nil
		}
		return expression.NewIsNull(left), nil
	}

	not := false
	if p.isKeyword("NOT") {
		next := p.peekN(1)
		if next.Is("LIKE") || next.Is("IN") || next.Is("BETWEEN") {
			p.next()
			not = true
		}
	}

	var e sql.Expression
	switch {
	case p.acceptKeyword("LIKE"):
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		e = expression.NewLike(left, right)
	case p.acceptKeyword("IN"):
		values, err := p.parseExpressionList()
		if err != nil {
			return nil, err
		}
		e = expression.NewIn(left, values...)
	case p.acceptKeyword("BETWEEN"):
		e, err = p.parseBetween(left)
		if err != nil {
			return nil, err
		}
	default:
		if f, ok := p.comparisonWord(); ok {
			word := p.next()
			// matches regex "pattern"
			if next := p.peek(); strings.EqualFold(word.Value, "matches") &&
				next.Kind == Identifier && next.Quote == 0 && strings.EqualFold(next.Value, "regex") {
				p.next()
			}

			right, err := p.parseAdditive()
			if err != nil {
				return nil, err
			}
			return f(left, right), nil
		}
		return left, nil
	}

	if not {
		e = expression.NewNot(e)
	}
	return e, nil
}

func (p *parser) comparisonWord() (comparisonFunc, bool) {
	tok := p.peek()
	if p.expr.comparisons == nil || (tok.Kind != Identifier && tok.Kind != Keyword) || tok.Quote != 0 {
		return nil, false
	}

	f, ok := p.expr.comparisons[strings.ToLower(tok.Value)]
	return f, ok
}

// parseBetween parses "lower AND upper", or "(lower .. upper)".
func (p *parser) parseBetween(val sql.Expression) (sql.Expression, error) {
	if p.acceptSymbol("(") {
		lower, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		if _, err := p.expectSymbol(".."); err != nil {
			return nil, err
		}
		upper, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		if _, err := p.expectSymbol(")"); err != nil {
			return nil, err
		}
		return expression.NewBetween(val, lower, upper), nil
	}

	lower, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	if _, err := p.expectKeyword("AND"); err != nil {
		return nil, err
	}
	upper, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	return expression.NewBetween(val, lower, upper), nil
}

// parseExpressionList parses '(' expr {',' expr} ')'.
func (p *parser) parseExpressionList() ([]sql.Expression, error) {
	open, err := p.expectSymbol("(")
	if err != nil {
		return nil, err
	}

	if p.isKeyword("SELECT") {
		if _, err := p.incompatible(open, "subquery"); err != nil {
			return nil, err
		}
		p.skipParenthesized()
		return nil, nil
	}

	var values []sql.Expression
	for {
		v, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		values = append(values, v)

		if !p.acceptSymbol(",") {
			break
		}
	}

	if _, err := p.expectSymbol(")"); err != nil {
		return nil, err
	}
	return values, nil
}

// skipParenthesized consumes tokens up to the parenthesis closing an
// already consumed one.
func (p *parser) skipParenthesized() {
	depth := 1
	for !p.atEOF() && depth > 0 {
		switch {
		case p.isSymbol("("):
			depth++
		case p.isSymbol(")"):
			depth--
		}
		p.next()
	}
}

func (p *parser) parseAdditive() (sql.Expression, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}

	for {
		tok := p.peek()
		switch {
		case tok.Kind == Punct && (tok.Value == "+" || tok.Value == "-"):
			p.next()
			right, err := p.parseMultiplicative()
			if err != nil {
				return nil, err
			}
			left = expression.NewBinary(tok.Value, left, right)
		case tok.Kind == Operator && tok.Value == "||":
			p.next()
			right, err := p.parseMultiplicative()
			if err != nil {
				return nil, err
			}
			left = expression.NewFunction("CONCAT", left, right)
		default:
			return left, nil
		}
	}
}

func (p *parser) parseMultiplicative() (sql.Expression, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}

	for {
		op, ok := p.multiplicativeOp()
		if !ok {
			return left, nil
		}

		p.next()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = expression.NewBinary(op, left, right)
	}
}

func (p *parser) multiplicativeOp() (string, bool) {
	tok := p.peek()
	if tok.Kind == Punct && (tok.Value == "*" || tok.Value == "%") {
		return tok.Value, true
	}
	if tok.Kind == Punct && tok.Value == "/" && !p.expr.paths {
		return tok.Value, true
	}

	if (tok.Kind == Identifier || tok.Kind == Keyword) && tok.Quote == 0 && p.expr.arithmetic != nil {
		op, ok := p.expr.arithmetic[strings.ToLower(tok.Value)]
		return op, ok
	}
	return "", false
}

func (p *parser) parseUnary() (sql.Expression, error) {
	tok := p.peek()
	if tok.Kind != Punct || (tok.Value != "-" && tok.Value != "+") {
		return p.parsePrimary()
	}

	p.next()
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()

	if tok.Value == "+" {
		return p.parseUnary()
	}

	if num := p.peek(); num.Kind == Number {
		p.next()
		v, err := p.number(num)
		if err != nil {
			return nil, err
		}
		return expression.NewLiteral(negate(v)), nil
	}

	child, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	return expression.NewNegate(child), nil
}

func negate(v interface{}) interface{} {
	switch v := v.(type) {
	case int64:
		return -v
	case float64:
		return -v
	default:
		return v
	}
}

func (p *parser) parsePrimary() (sql.Expression, error) {
	tok := p.peek()
	switch tok.Kind {
	case Number:
		p.next()
		v, err := p.number(tok)
		if err != nil {
			return nil, err
		}
		return expression.NewLiteral(v), nil
	case String:
		p.next()
		return expression.NewLiteral(tok.Value), nil
	case Keyword:
		switch tok.Value {
		case "NULL":
			p.next()
			return expression.NewLiteral(nil), nil
		case "TRUE":
			p.next()
			return expression.NewLiteral(true), nil
		case "FALSE":
			p.next()
			return expression.NewLiteral(false), nil
		case "CASE", "EXISTS":
			return nil, p.errorAt(tok, "feature not supported: "+tok.Value+" expression")
		}

		if clauseWords.has(tok.Value) {
			return nil, p.unexpected(tok, "expression")
		}
		return p.parseReference()
	case Identifier:
		return p.parseReference()
	case Punct:
		switch tok.Value {
		case "(":
			p.next()
			if p.isKeyword("SELECT") {
				if _, err := p.incompatible(tok, "subquery"); err != nil {
					return nil, err
				}
				p.skipParenthesized()
				return expression.NewLiteral(nil), nil
			}

			e, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			if _, err := p.expectSymbol(")"); err != nil {
				return nil, err
			}
			return e, nil
		case "*":
			p.next()
			return expression.NewStar(), nil
		case "@":
			if p.expr.attributes {
				p.next()
				name, _, err := p.parseName("attribute name")
				if err != nil {
					return nil, err
				}
				return expression.NewIdentifier(name), nil
			}
		}
	}

	return nil, p.unexpected(tok, "expression")
}

// parseReference parses a dotted identifier, a function call or an
// aggregate call.
func (p *parser) parseReference() (sql.Expression, error) {
	first := p.next()
	name := p.name(first)
	if p.isSymbol("(") && first.Quote == 0 {
		return p.parseCall(first, name)
	}

	parts := []string{name}
	for p.isSymbol(".") || p.expr.paths && p.isSymbol("/") {
		next := p.peekN(1)
		if next.Kind == Punct && next.Value == "*" {
			p.next()
			p.next()
			return expression.NewStar(), nil
		}

		if !isName(next) {
			break
		}
		p.next()
		p.next()
		parts = append(parts, p.name(next))
	}

	return expression.NewIdentifier(strings.Join(parts, ".")), nil
}

func (p *parser) parseCall(tok Token, name string) (sql.Expression, error) {
	if _, err := p.expectSymbol("("); err != nil {
		return nil, err
	}

	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()

	upper := strings.ToUpper(name)
	if expression.IsAggregateName(upper) {
		return p.parseAggregate(tok, upper)
	}

	if renamed, ok := p.expr.functions[strings.ToLower(name)]; ok {
		name = renamed
	}

	var args []sql.Expression
	if !p.acceptSymbol(")") {
		for {
			arg, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)

			if !p.acceptSymbol(",") {
				break
			}
		}

		if _, err := p.expectSymbol(")"); err != nil {
			return nil, err
		}
	}

	if strings.EqualFold(name, "not") && len(args) == 1 {
		return expression.NewNot(args[0]), nil
	}
	return expression.NewFunction(name, args...), nil
}

func (p *parser) parseAggregate(tok Token, name string) (sql.Expression, error) {
	if name == expression.Count && (p.isSymbol("*") || p.isSymbol(")")) {
		p.acceptSymbol("*")
		if _, err := p.expectSymbol(")"); err != nil {
			return nil, err
		}
		return expression.NewCountStar(), nil
	}

	distinct := p.acceptKeyword("DISTINCT")
	if !distinct {
		p.acceptKeyword("ALL")
	}

	arg, err := p.parseExpression()
	if err != nil {
		return nil, err
	}

	if _, err := p.expectSymbol(")"); err != nil {
		return nil, err
	}
	return expression.NewAggregate(name, arg, distinct), nil
}

// number converts a numeric token to int64, or float64 when it has a
// fraction, an exponent or does not fit.
func (p *parser) number(tok Token) (interface{}, error) {
	if !strings.ContainsAny(tok.Value, ".eE") {
		if i, err := strconv.ParseInt(tok.Value, 10, 64); err == nil {
			return i, nil
		}
	}

	f, err := strconv.ParseFloat(tok.Value, 64)
	if err != nil {
		return nil, p.errorAt(tok, "invalid number "+tok.Value)
	}
	return f, nil
}
