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
	"strings"

	"github.com/jinzhu/inflection"

	"github.com/exonware/go-xwquery/sql"
	"github.com/exonware/go-xwquery/sql/expression"
)

var xpathLexicon = &lexicon{
	keywords:    newWordSet("AND", "OR", "DIV", "MOD"),
	dashedNames: true,
}

var xpathExpr = exprConfig{
	attributes: true,
	paths:      true,
	arithmetic: map[string]string{"div": expression.Div, "mod": expression.Mod},
	functions: map[string]string{
		"starts-with":     "STARTSWITH",
		"ends-with":       "ENDSWITH",
		"string-length":   "LENGTH",
		"contains":        "CONTAINS",
		"upper-case":      "UPPER",
		"lower-case":      "LOWER",
		"normalize-space": "TRIM",
		"concat":          "CONCAT",
	},
}

// XPathParser parses XPath location paths. A path selects the rows of a
// table: //users/user[age > 18]/name reads the name of every user in
// users older than 18.
type XPathParser struct{}

// NewXPathParser creates a new XPath parser.
func NewXPathParser() *XPathParser {
	return &XPathParser{}
}

// Dialect implements the Parser interface.
func (*XPathParser) Dialect() string { return "XPath" }

// Parse implements the Parser interface.
func (x *XPathParser) Parse(ctx *sql.Context, text string, opts Options) ([]*sql.Action, error) {
	tokens, err := newTokenizer(x.Dialect(), text, xpathLexicon).All()
	if err != nil {
		return nil, err
	}

	p := &xpathParser{parser: newParser(x.Dialect(), text, tokens, opts)}
	p.expr = xpathExpr
	return p.parse()
}

type xpathParser struct {
	*parser
}

// step is a location step with its predicates.
type step struct {
	tok        Token
	name       string
	attribute  bool
	predicates []sql.Expression
	position   int64
}

// location is a path resolved to a table, its filter and a column.
type location struct {
	table    string
	column   string
	where    sql.Expression
	position int64
}

func (p *xpathParser) parse() ([]*sql.Action, error) {
	var locs []*location
	for {
		tok := p.peek()
		steps, err := p.parsePath()
		if err != nil {
			return nil, err
		}

		loc, err := p.resolve(tok, steps)
		if err != nil {
			return nil, err
		}
		if loc != nil {
			locs = append(locs, loc)
		}

		if !p.acceptSymbol("|") {
			break
		}
	}

	if !p.atEOF() {
		return nil, p.unexpected(p.peek(), "'/' or '|'")
	}

	if len(locs) == 0 {
		return nil, nil
	}
	return p.actions(locs)
}

// actions merges the locations of a union, which must only differ in the
// selected column.
func (p *xpathParser) actions(locs []*location) ([]*sql.Action, error) {
	first := locs[0]

	var columns []sql.Expression
	for _, loc := range locs {
		if loc.table != first.table || !sql.ExpressionsEqual(loc.where, first.where) {
			if _, err := p.incompatible(p.peek(), "union of different paths"); err != nil {
				return nil, err
			}
			continue
		}

		if loc.column == "" {
			columns = []sql.Expression{expression.NewStar()}
			break
		}
		columns = append(columns, expression.NewIdentifier(loc.column))
	}

	actions := []*sql.Action{
		sql.NewAction(sql.OpSelect, sql.Params{
			"columns":  columns,
			"distinct": false,
			"from":     first.table,
		}),
	}

	if first.where != nil {
		actions = append(actions, sql.NewAction(sql.OpWhere, sql.Params{"condition": first.where}))
	}

	if first.position > 0 {
		actions = append(actions,
			sql.NewAction(sql.OpLimit, sql.Params{"count": int64(1)}),
			sql.NewAction(sql.OpOffset, sql.Params{"count": first.position - 1}),
		)
	}

	return actions, nil
}

// parsePath parses ['/' | '//'] step {('/' | '//') step}.
func (p *xpathParser) parsePath() ([]*step, error) {
	p.acceptSymbol("//")
	p.acceptSymbol("/")

	var steps []*step
	for {
		s, err := p.parseStep()
		if err != nil {
			return nil, err
		}
		if s != nil {
			steps = append(steps, s)
		}

		if !p.acceptSymbol("/") && !p.acceptSymbol("//") {
			return steps, nil
		}
	}
}

func (p *xpathParser) parseStep() (*step, error) {
	tok := p.peek()
	s := &step{tok: tok}

	switch {
	case p.acceptSymbol("@"):
		name, _, err := p.parseName("attribute name")
		if err != nil {
			return nil, err
		}
		s.name = name
		s.attribute = true
	case p.acceptSymbol("*"):
		s.name = "*"
	case p.acceptSymbol("."):
		return nil, nil
	case p.isSymbol(".."):
		p.next()
		if _, err := p.incompatible(tok, "parent axis"); err != nil {
			return nil, err
		}
		return nil, nil
	default:
		name, _, err := p.parseName("location step")
		if err != nil {
			return nil, err
		}

		if p.acceptSymbol("::") {
			if _, err := p.incompatible(tok, "axis "+name); err != nil {
				return nil, err
			}
			name, _, err = p.parseName("location step")
			if err != nil {
				return nil, err
			}
		}

		if p.isSymbol("(") {
			if _, err := p.expectSymbol("("); err != nil {
				return nil, err
			}
			if _, err := p.expectSymbol(")"); err != nil {
				return nil, err
			}
			// node tests such as text() select the step itself
			return nil, nil
		}
		s.name = name
	}

	for p.isSymbol("[") {
		if err := p.parsePredicate(s); err != nil {
			return nil, err
		}
	}

	return s, nil
}

func (p *xpathParser) parsePredicate(s *step) error {
	open, err := p.expectSymbol("[")
	if err != nil {
		return err
	}

	if err := p.enter(); err != nil {
		return err
	}
	defer p.leave()

	if tok := p.peek(); tok.Kind == Number && p.peekN(1).Is("]") {
		p.next()
		v, err := p.number(tok)
		if err != nil {
			return err
		}

		n, ok := v.(int64)
		if !ok || n < 1 {
			return p.errorAt(tok, "position must be a positive integer")
		}
		s.position = n
	} else {
		e, err := p.parseExpression()
		if err != nil {
			return err
		}

		if f, ok := e.(*expression.Function); ok && (f.Name == "LAST" || f.Name == "POSITION") {
			if _, err := p.incompatible(open, strings.ToLower(f.Name)+"()"); err != nil {
				return err
			}
		} else {
			s.predicates = append(s.predicates, e)
		}
	}

	_, err = p.expectSymbol("]")
	return err
}

// resolve finds the table and row steps of a path. The row step is the
// first one named after the singular of the previous step, as in
// users/user. Otherwise it is the last step carrying a predicate or a
// position, as in inventory/stock[qty > 5]. Without either, the last step
// is the column and the others name the table.
func (p *xpathParser) resolve(tok Token, steps []*step) (*location, error) {
	if len(steps) == 0 {
		return nil, p.unexpected(tok, "location path")
	}

	table, rest := -1, steps
	for i := 0; i+1 < len(steps); i++ {
		name := steps[i].name
		if name != steps[i+1].name && inflection.Singular(name) == steps[i+1].name {
			table = i
			rest = steps[i+2:]
			break
		}
	}

	for i := len(steps) - 1; table < 0 && i > 0; i-- {
		if len(steps[i].predicates) > 0 || steps[i].position > 0 {
			table = i - 1
			rest = steps[i+1:]
		}
	}

	var scope []*step
	if table >= 0 {
		scope = steps[:table+2]
	} else if len(steps) == 1 {
		scope, rest = steps, nil
	} else {
		scope, rest = steps[:len(steps)-1], steps[len(steps)-1:]
	}

	loc := &location{}
	var names []string
	var conds []sql.Expression
	for i, s := range scope {
		if s.attribute {
			return nil, p.errorAt(s.tok, "attribute @"+s.name+" cannot name a table")
		}

		if table < 0 || i <= table {
			names = append(names, s.name)
		}
		conds = append(conds, s.predicates...)
		if s.position > 0 {
			loc.position = s.position
		}
	}
	loc.table = strings.Join(names, ".")
	loc.where = expression.JoinAnd(conds...)

	var columns []string
	for _, s := range rest {
		if len(s.predicates) > 0 || s.position > 0 {
			if _, err := p.incompatible(s.tok, "predicate on a column step"); err != nil {
				return nil, err
			}
		}
		if s.name != "*" {
			columns = append(columns, s.name)
		}
	}
	loc.column = strings.Join(columns, ".")

	return loc, nil
}
