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
	"unicode"
	"unicode/utf8"

	istrings "github.com/exonware/go-xwquery/internal/strings"
	"github.com/exonware/go-xwquery/sql"
)

// lexicon configures the tokenizer for a dialect.
type lexicon struct {
	keywords      wordSet
	lineComments  []string
	blockComments bool
	// bracketQuotes makes [name] a quoted identifier instead of
	// punctuation.
	bracketQuotes bool
	// dashedNames allows '-' inside names, as XPath does.
	dashedNames bool
}

var sqlLexicon = &lexicon{
	keywords:      sqlKeywords,
	lineComments:  []string{"--"},
	blockComments: true,
	bracketQuotes: true,
}

// multi-character symbols, longest first.
var symbols = []string{"<=", ">=", "!=", "<>", "==", "||", "//", "..", "::"}

const punctuation = ",().;*+-/%[]{}|:@?!&^~#"

// Tokenizer splits query text into tokens. It is restartable: Reset
// rewinds it to the beginning of the text.
type Tokenizer struct {
	dialect string
	lex     *lexicon
	text    string
	pos     int
	line    int
	col     int
}

// NewTokenizer creates a tokenizer for the SQL family with the given
// dialect name, used in error messages.
func NewTokenizer(dialect, text string) *Tokenizer {
	return newTokenizer(dialect, text, sqlLexicon)
}

func newTokenizer(dialect, text string, lex *lexicon) *Tokenizer {
	return &Tokenizer{dialect: dialect, lex: lex, text: text, line: 1, col: 1}
}

// Tokenize returns every token of the SQL text, the last one being EOF.
func Tokenize(dialect, text string) ([]Token, error) {
	return NewTokenizer(dialect, text).All()
}

// Reset rewinds the tokenizer.
func (t *Tokenizer) Reset() {
	t.pos, t.line, t.col = 0, 1, 1
}

// All returns the remaining tokens, the last one being EOF.
func (t *Tokenizer) All() ([]Token, error) {
	var tokens []Token
	for {
		tok, err := t.Next()
		if err != nil {
			return nil, err
		}

		tokens = append(tokens, tok)
		if tok.Kind == EOF {
			return tokens, nil
		}
	}
}

type mark struct {
	pos, line, col int
}

func (t *Tokenizer) mark() mark {
	return mark{t.pos, t.line, t.col}
}

func (t *Tokenizer) token(m mark, kind TokenKind, value string) Token {
	return Token{Kind: kind, Value: value, Pos: m.pos, Line: m.line, Column: m.col}
}

// advance moves n bytes forward, keeping line and column up to date.
func (t *Tokenizer) advance(n int) {
	end := t.pos + n
	if end > len(t.text) {
		end = len(t.text)
	}

	for t.pos < end {
		r, size := utf8.DecodeRuneInString(t.text[t.pos:])
		t.pos += size
		if r == '\n' {
			t.line++
			t.col = 1
		} else {
			t.col++
		}
	}
}

func (t *Tokenizer) errorf(m mark, format string, args ...interface{}) error {
	return sql.NewParseError(&sql.ParseError{
		Dialect: t.dialect,
		Message: fmt.Sprintf(format, args...),
		Line:    m.line,
		Column:  m.col,
	})
}

// Next returns the next token.
func (t *Tokenizer) Next() (Token, error) {
	if err := t.skip(); err != nil {
		return Token{}, err
	}

	m := t.mark()
	if t.pos >= len(t.text) {
		return t.token(m, EOF, ""), nil
	}

	c := t.text[t.pos]
	switch {
	case c == '\'' || c == '"':
		return t.quoted(m, String, c, c)
	case c == '`':
		return t.quoted(m, Identifier, c, c)
	case c == '[' && t.lex.bracketQuotes:
		return t.quoted(m, Identifier, '[', ']')
	case isDigit(c) || (c == '.' && isDigit(t.at(1))):
		return t.number(m), nil
	}

	r, _ := utf8.DecodeRuneInString(t.text[t.pos:])
	if isNameStart(r) {
		return t.name(m), nil
	}

	return t.symbol(m)
}

func (t *Tokenizer) at(offset int) byte {
	if t.pos+offset < len(t.text) {
		return t.text[t.pos+offset]
	}
	return 0
}

// skip consumes whitespace and comments.
func (t *Tokenizer) skip() error {
	for t.pos < len(t.text) {
		r, size := utf8.DecodeRuneInString(t.text[t.pos:])
		if unicode.IsSpace(r) {
			t.advance(size)
			continue
		}

		rest := t.text[t.pos:]
		if t.lineComment(rest) {
			end := strings.IndexByte(rest, '\n')
			if end < 0 {
				end = len(rest)
			}
			t.advance(end)
			continue
		}

		if t.lex.blockComments && strings.HasPrefix(rest, "/*") {
			m := t.mark()
			end := strings.Index(rest[2:], "*/")
			if end < 0 {
				return t.errorf(m, "unterminated comment")
			}
			t.advance(end + 4)
			continue
		}

		return nil
	}

	return nil
}

func (t *Tokenizer) lineComment(rest string) bool {
	for _, prefix := range t.lex.lineComments {
		if strings.HasPrefix(rest, prefix) {
			return true
		}
	}
	return false
}

func (t *Tokenizer) quoted(m mark, kind TokenKind, open, close byte) (Token, error) {
	escapes := open == '\'' || open == '"'
	end := -1
	for i := t.pos + 1; i < len(t.text); i++ {
		c := t.text[i]
		if escapes && c == '\\' {
			i++
			continue
		}

		if c == close {
			if open == close && i+1 < len(t.text) && t.text[i+1] == close {
				i++
				continue
			}
			end = i
			break
		}
	}

	if end < 0 {
		if kind == String {
			return Token{}, t.errorf(m, "unterminated string literal")
		}
		return Token{}, t.errorf(m, "unterminated quoted identifier")
	}

	raw := t.text[t.pos+1 : end]
	var value string
	switch {
	case escapes:
		var err error
		value, err = istrings.Unescape(raw, open)
		if err != nil {
			return Token{}, t.errorf(m, "%s", err)
		}
	case open == close:
		value = strings.Replace(raw, string([]byte{close, close}), string(close), -1)
	default:
		value = raw
	}

	t.advance(end + 1 - t.pos)
	tok := t.token(m, kind, value)
	tok.Quote = open
	return tok, nil
}

func (t *Tokenizer) number(m mark) Token {
	i := t.pos
	for i < len(t.text) && isDigit(t.text[i]) {
		i++
	}

	if i < len(t.text) && t.text[i] == '.' && (i+1 >= len(t.text) || t.text[i+1] != '.') {
		i++
		for i < len(t.text) && isDigit(t.text[i]) {
			i++
		}
	}

	if i < len(t.text) && (t.text[i] == 'e' || t.text[i] == 'E') {
		j := i + 1
		if j < len(t.text) && (t.text[j] == '+' || t.text[j] == '-') {
			j++
		}
		if j < len(t.text) && isDigit(t.text[j]) {
			for j < len(t.text) && isDigit(t.text[j]) {
				j++
			}
			i = j
		}
	}

	value := t.text[t.pos:i]
	t.advance(i - t.pos)
	return t.token(m, Number, value)
}

func (t *Tokenizer) name(m mark) Token {
	i := t.pos
	for i < len(t.text) {
		r, size := utf8.DecodeRuneInString(t.text[i:])
		if isNameChar(r) {
			i += size
			continue
		}

		if r == '-' && t.lex.dashedNames && i+1 < len(t.text) {
			next, _ := utf8.DecodeRuneInString(t.text[i+1:])
			if isNameStart(next) {
				i += size
				continue
			}
		}
		break
	}

	word := t.text[t.pos:i]
	t.advance(i - t.pos)
	if t.lex.keywords.has(word) {
		return t.token(m, Keyword, strings.ToUpper(word))
	}
	return t.token(m, Identifier, word)
}

func (t *Tokenizer) symbol(m mark) (Token, error) {
	rest := t.text[t.pos:]
	for _, s := range symbols {
		if strings.HasPrefix(rest, s) {
			t.advance(len(s))
			return t.token(m, symbolKind(s), s), nil
		}
	}

	c := rest[0]
	if c == '=' || c == '<' || c == '>' {
		t.advance(1)
		return t.token(m, Operator, string(c)), nil
	}

	if strings.IndexByte(punctuation, c) >= 0 {
		t.advance(1)
		return t.token(m, Punct, string(c)), nil
	}

	r, _ := utf8.DecodeRuneInString(rest)
	return Token{}, t.errorf(m, "unexpected character %q", r)
}

func symbolKind(s string) TokenKind {
	switch s {
	case "//", "..", "::":
		return Punct
	default:
		return Operator
	}
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isNameStart(r rune) bool {
	return r == '_' || r == '$' || unicode.IsLetter(r)
}

func isNameChar(r rune) bool {
	return isNameStart(r) || unicode.IsDigit(r)
}
