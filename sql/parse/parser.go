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
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/exonware/go-xwquery/sql"
)

// parser is the token cursor shared by the recursive descent parsers of
// every dialect.
type parser struct {
	dialect string
	text    string
	tokens  []Token
	pos     int
	depth   int
	opts    Options
	expr    exprConfig
}

func newParser(dialect, text string, tokens []Token, opts Options) *parser {
	return &parser{
		dialect: dialect,
		text:    text,
		tokens:  tokens,
		opts:    opts,
	}
}

func (p *parser) peek() Token {
	return p.peekN(0)
}

func (p *parser) peekN(n int) Token {
	if p.pos+n < len(p.tokens) {
		return p.tokens[p.pos+n]
	}
	return p.tokens[len(p.tokens)-1]
}

func (p *parser) next() Token {
	tok := p.peek()
	if tok.Kind != EOF {
		p.pos++
	}
	return tok
}

func (p *parser) atEOF() bool {
	return p.peek().Kind == EOF
}

func (p *parser) isKeyword(words ...string) bool {
	tok := p.peek()
	if tok.Kind != Keyword {
		return false
	}

	for _, w := range words {
		if tok.Value == w {
			return true
		}
	}
	return false
}

func (p *parser) acceptKeyword(words ...string) bool {
	if p.isKeyword(words...) {
		p.next()
		return true
	}
	return false
}

func (p *parser) expectKeyword(word string) (Token, error) {
	if !p.isKeyword(word) {
		return Token{}, p.unexpected(p.peek(), word)
	}
	return p.next(), nil
}

func (p *parser) isSymbol(value string) bool {
	tok := p.peek()
	return (tok.Kind == Punct || tok.Kind == Operator) && tok.Value == value
}

func (p *parser) acceptSymbol(value string) bool {
	if p.isSymbol(value) {
		p.next()
		return true
	}
	return false
}

func (p *parser) expectSymbol(value string) (Token, error) {
	if !p.isSymbol(value) {
		return Token{}, p.unexpected(p.peek(), "'"+value+"'")
	}
	return p.next(), nil
}

// isWord reports whether the next token is the given keyword or bare
// identifier, ignoring case.
func (p *parser) isWord(word string) bool {
	tok := p.peek()
	return (tok.Kind == Keyword || tok.Kind == Identifier && tok.Quote == 0) &&
		strings.EqualFold(tok.Value, word)
}

func (p *parser) acceptWord(word string) bool {
	if p.isWord(word) {
		p.next()
		return true
	}
	return false
}

// unexpected returns a parse error at tok saying what was expected.
func (p *parser) unexpected(tok Token, expected string) error {
	actual := tok.Value
	if tok.Kind == EOF {
		actual = "end of input"
	}

	return sql.NewParseError(&sql.ParseError{
		Dialect:    p.dialect,
		Line:       tok.Line,
		Column:     tok.Column,
		Expected:   expected,
		Actual:     actual,
		ActualKind: tok.Kind.String(),
	})
}

func (p *parser) errorAt(tok Token, msg string) error {
	return sql.NewParseError(&sql.ParseError{
		Dialect: p.dialect,
		Message: msg,
		Line:    tok.Line,
		Column:  tok.Column,
	})
}

// enter increments the nesting depth, failing with ErrSecurity once it
// goes over the limit.
func (p *parser) enter() error {
	p.depth++
	max := p.opts.MaxNesting
	if max <= 0 {
		max = DefaultMaxNesting
	}

	if p.depth > max {
		return nestingError(p.peek(), max)
	}
	return nil
}

func nestingError(tok Token, max int) error {
	return sql.ErrSecurity.New(fmt.Sprintf(
		"nesting exceeds the maximum depth of %d at line %d, column %d",
		max, tok.Line, tok.Column,
	))
}

func (p *parser) leave() {
	p.depth--
}

// incompatible applies the conversion mode to a construct the action tree
// cannot represent. In lenient mode the caller must skip the construct; in
// any other mode an error is returned. Callers with an equivalent
// reformulation apply it before calling this.
func (p *parser) incompatible(tok Token, feature string) (skip bool, err error) {
	if p.opts.Mode == sql.Lenient {
		logrus.WithFields(logrus.Fields{
			"dialect": p.dialect,
			"feature": feature,
			"line":    tok.Line,
			"column":  tok.Column,
		}).Debug("skipping unsupported construct")
		return true, nil
	}

	return false, p.errorAt(tok, "feature not supported: "+feature)
}

// isName reports whether tok can be used as a bare name.
func isName(tok Token) bool {
	switch tok.Kind {
	case Identifier:
		return true
	case Keyword:
		return !clauseWords.has(tok.Value)
	case String:
		return tok.Quote == '"'
	default:
		return false
	}
}

// name returns the text of a name token. Keywords used as names keep the
// case they were written in.
func (p *parser) name(tok Token) string {
	if tok.Kind == Keyword {
		end := tok.Pos + len(tok.Value)
		if end <= len(p.text) {
			return p.text[tok.Pos:end]
		}
	}
	return tok.Value
}

func (p *parser) parseName(expected string) (string, Token, error) {
	tok := p.peek()
	if !isName(tok) {
		return "", tok, p.unexpected(tok, expected)
	}
	p.next()
	return p.name(tok), tok, nil
}

// parseQualifiedName parses name {'.' name}.
func (p *parser) parseQualifiedName(expected string) (string, Token, error) {
	name, tok, err := p.parseName(expected)
	if err != nil {
		return "", tok, err
	}

	parts := []string{name}
	for p.isSymbol(".") && isName(p.peekN(1)) {
		p.next()
		part, _, err := p.parseName(expected)
		if err != nil {
			return "", tok, err
		}
		parts = append(parts, part)
	}

	return strings.Join(parts, "."), tok, nil
}

// sourceBetween returns the source text from the start of tok to the start
// of the current token.
func (p *parser) sourceBetween(tok Token) string {
	end := len(p.text)
	if cur := p.peek(); cur.Kind != EOF {
		end = cur.Pos
	}
	return strings.TrimSpace(p.text[tok.Pos:end])
}

// skipStatement consumes tokens up to the end of the statement, keeping
// track of parentheses.
func (p *parser) skipStatement() {
	depth := 0
	for !p.atEOF() {
		if depth == 0 && p.isSymbol(";") {
			return
		}

		switch {
		case p.isSymbol("("):
			depth++
		case p.isSymbol(")"):
			depth--
		}
		p.next()
	}
}
