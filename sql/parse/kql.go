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

	"github.com/exonware/go-xwquery/sql"
	"github.com/exonware/go-xwquery/sql/expression"
)

var kqlLexicon = &lexicon{
	keywords: newWordSet(
		"AND", "OR", "IN", "BETWEEN", "BY", "ASC", "DESC",
		"TRUE", "FALSE", "NULLS", "FIRST", "LAST",
	),
	lineComments: []string{"//"},
}

var kqlExpr = exprConfig{
	comparisons: map[string]comparisonFunc{
		"contains":   kqlFunction("CONTAINS"),
		"has":        kqlFunction("CONTAINS"),
		"startswith": kqlFunction("STARTSWITH"),
		"endswith":   kqlFunction("ENDSWITH"),
		"matches":    kqlMatches,
	},
	functions: map[string]string{
		"strlen":    "LENGTH",
		"toupper":   "UPPER",
		"tolower":   "LOWER",
		"strcat":    "CONCAT",
		"substring": "SUBSTRING",
		"trim":      "TRIM",
		"abs":       "ABS",
		"round":     "ROUND",
		"floor":     "FLOOR",
		"ceiling":   "CEIL",
		"isnull":    "ISNULL",
		"isnotnull": "ISNOTNULL",
		"isempty":   "ISEMPTY",
	},
}

func kqlFunction(name string) comparisonFunc {
	return func(left, right sql.Expression) sql.Expression {
		return expression.NewFunction(name, left, right)
	}
}

// kqlMatches parses the right side of "matches regex".
func kqlMatches(left, right sql.Expression) sql.Expression {
	return expression.NewFunction("REGEXP_LIKE", left, right)
}

// kqlAggregates maps KQL aggregation functions to aggregate names.
var kqlAggregates = map[string]string{
	"count":  expression.Count,
	"sum":    expression.Sum,
	"avg":    expression.Avg,
	"min":    expression.Min,
	"max":    expression.Max,
	"dcount": expression.Count,
}

// KQLParser parses Kusto queries: a table followed by tabular operators
// separated by pipes.
type KQLParser struct{}

// NewKQLParser creates a new KQL parser.
func NewKQLParser() *KQLParser {
	return &KQLParser{}
}

// Dialect implements the Parser interface.
func (*KQLParser) Dialect() string { return "KQL" }

// Parse implements the Parser interface.
func (k *KQLParser) Parse(ctx *sql.Context, text string, opts Options) ([]*sql.Action, error) {
	tokens, err := newTokenizer(k.Dialect(), text, kqlLexicon).All()
	if err != nil {
		return nil, err
	}

	p := &kqlParser{parser: newParser(k.Dialect(), text, tokens, opts)}
	p.expr = kqlExpr
	return p.parse()
}

type kqlParser struct {
	*parser
}

type kqlOperator func(p *kqlParser, tok Token) ([]*sql.Action, error)

var kqlOperators map[string]kqlOperator

func init() {
	kqlOperators = map[string]kqlOperator{
		"where":     (*kqlParser).parseWhere,
		"filter":    (*kqlParser).parseWhere,
		"project":   (*kqlParser).parseProject,
		"extend":    (*kqlParser).parseExtend,
		"sort":      (*kqlParser).parseSort,
		"order":     (*kqlParser).parseSort,
		"take":      (*kqlParser).parseTake,
		"limit":     (*kqlParser).parseTake,
		"top":       (*kqlParser).parseTop,
		"summarize": (*kqlParser).parseSummarize,
		"distinct":  (*kqlParser).parseDistinct,
		"count":     (*kqlParser).parseCount,
	}
}

func (p *kqlParser) parse() ([]*sql.Action, error) {
	if p.atEOF() {
		return nil, nil
	}

	if tok := p.peek(); tok.Kind == Identifier && strings.EqualFold(tok.Value, "let") {
		skip, err := p.incompatible(tok, "let statement")
		if err != nil {
			return nil, err
		}
		if skip {
			p.skipStatement()
			p.acceptSymbol(";")
		}
	}

	table, _, err := p.parseQualifiedName("table name")
	if err != nil {
		return nil, err
	}

	actions := []*sql.Action{
		sql.NewAction(sql.OpSelect, sql.Params{
			"columns":  []sql.Expression{expression.NewStar()},
			"distinct": false,
			"from":     table,
		}),
	}

	for p.acceptSymbol("|") {
		tok := p.peek()
		if tok.Kind != Identifier && tok.Kind != Keyword {
			return nil, p.unexpected(tok, "tabular operator")
		}
		p.next()

		op, ok := kqlOperators[strings.ToLower(tok.Value)]
		if !ok {
			skip, err := p.incompatible(tok, "operator "+tok.Value)
			if err != nil {
				return nil, err
			}
			if skip {
				p.skipOperator()
			}
			continue
		}

		acts, err := op(p, tok)
		if err != nil {
			return nil, err
		}
		actions = append(actions, acts...)
	}

	p.acceptSymbol(";")
	if !p.atEOF() {
		return nil, p.unexpected(p.peek(), "'|'")
	}

	return actions, nil
}

// skipOperator consumes tokens up to the next pipe.
func (p *kqlParser) skipOperator() {
	depth := 0
	for !p.atEOF() {
		switch {
		case depth == 0 && (p.isSymbol("|") || p.isSymbol(";")):
			return
		case p.isSymbol("("):
			depth++
		case p.isSymbol(")"):
			depth--
		}
		p.next()
	}
}

func (p *kqlParser) parseWhere(Token) ([]*sql.Action, error) {
	cond, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	return []*sql.Action{sql.NewAction(sql.OpWhere, sql.Params{"condition": cond})}, nil
}

// parseAssignments parses [name '='] expr {',' [name '='] expr}.
func (p *kqlParser) parseAssignments() ([]sql.Expression, error) {
	var fields []sql.Expression
	for {
		var alias string
		if isName(p.peek()) && p.peekN(1).Kind == Operator && p.peekN(1).Value == "=" {
			alias = p.name(p.next())
			p.next()
		}

		e, err := p.parseExpression()
		if err != nil {
			return nil, err
		}

		if alias != "" {
			e = expression.NewAlias(e, alias)
		}
		fields = append(fields, e)

		if !p.acceptSymbol(",") {
			return fields, nil
		}
	}
}

func (p *kqlParser) parseProject(tok Token) ([]*sql.Action, error) {
	if strings.EqualFold(tok.Value, "project") && p.isSymbol("-") {
		if _, err := p.incompatible(tok, "project-away"); err != nil {
			return nil, err
		}
		p.skipOperator()
		return nil, nil
	}

	fields, err := p.parseAssignments()
	if err != nil {
		return nil, err
	}
	return []*sql.Action{sql.NewAction(sql.OpProject, sql.Params{"fields": fields})}, nil
}

func (p *kqlParser) parseExtend(tok Token) ([]*sql.Action, error) {
	fields, err := p.parseAssignments()
	if err != nil {
		return nil, err
	}

	for _, f := range fields {
		if _, ok := f.(*expression.Alias); !ok {
			if _, ok := f.(*expression.Identifier); !ok {
				return nil, p.errorAt(tok, "extend needs a column name for "+f.String())
			}
		}
	}
	return []*sql.Action{sql.NewAction(sql.OpExtend, sql.Params{"fields": fields})}, nil
}

// parseSort parses "by" key [asc | desc] [nulls first | last] {',' ...}.
// Keys sort in descending order by default.
func (p *kqlParser) parseSort(Token) ([]*sql.Action, error) {
	if _, err := p.expectKeyword("BY"); err != nil {
		return nil, err
	}

	var actions []*sql.Action
	for {
		a, err := p.parseSortKey()
		if err != nil {
			return nil, err
		}
		actions = append(actions, a)

		if !p.acceptSymbol(",") {
			return actions, nil
		}
	}
}

func (p *kqlParser) parseSortKey() (*sql.Action, error) {
	e, err := p.parseExpression()
	if err != nil {
		return nil, err
	}

	direction := Descending
	if p.acceptKeyword("ASC") {
		direction = Ascending
	} else {
		p.acceptKeyword("DESC")
	}

	params := sql.Params{"direction": direction}
	if id, ok := e.(*expression.Identifier); ok {
		params["column"] = id.Name
	} else {
		params["column"] = e.String()
		params["expression"] = e
	}

	if p.acceptKeyword("NULLS") {
		if p.acceptKeyword("FIRST") {
			params["nulls"] = "FIRST"
		} else if _, err := p.expectKeyword("LAST"); err != nil {
			return nil, err
		} else {
			params["nulls"] = "LAST"
		}
	}

	return sql.NewAction(sql.OpOrderBy, params), nil
}

func (p *kqlParser) parseTake(Token) ([]*sql.Action, error) {
	n, err := p.parseRowCount()
	if err != nil {
		return nil, err
	}
	return []*sql.Action{sql.NewAction(sql.OpLimit, sql.Params{"count": n})}, nil
}

func (p *kqlParser) parseRowCount() (int64, error) {
	tok := p.peek()
	if tok.Kind != Number {
		return 0, p.unexpected(tok, "row count")
	}
	p.next()

	v, err := p.number(tok)
	if err != nil {
		return 0, err
	}

	n, ok := v.(int64)
	if !ok || n < 0 {
		return 0, p.errorAt(tok, "row count must be a non-negative integer")
	}
	return n, nil
}

// parseTop parses "top n by key [asc | desc]".
func (p *kqlParser) parseTop(Token) ([]*sql.Action, error) {
	n, err := p.parseRowCount()
	if err != nil {
		return nil, err
	}

	if _, err := p.expectKeyword("BY"); err != nil {
		return nil, err
	}

	order, err := p.parseSortKey()
	if err != nil {
		return nil, err
	}

	return []*sql.Action{order, sql.NewAction(sql.OpLimit, sql.Params{"count": n})}, nil
}

// parseSummarize parses "summarize [name =] agg(...) {, ...} [by key {, key}]".
// With keys it groups the rows, otherwise it aggregates them into one.
func (p *kqlParser) parseSummarize(tok Token) ([]*sql.Action, error) {
	var aggs []sql.Expression
	if !p.isKeyword("BY") {
		fields, err := p.parseAssignments()
		if err != nil {
			return nil, err
		}

		for _, f := range fields {
			agg, err := p.aggregate(tok, f)
			if err != nil {
				return nil, err
			}
			aggs = append(aggs, agg)
		}
	}

	if !p.acceptKeyword("BY") {
		if len(aggs) == 0 {
			return nil, p.unexpected(p.peek(), "aggregation")
		}
		return []*sql.Action{sql.NewAction(sql.OpAggregate, sql.Params{"aggregates": aggs})}, nil
	}

	var keys []interface{}
	for {
		name, ktok, err := p.parseQualifiedName("grouping column")
		if err != nil {
			return nil, err
		}

		if p.isSymbol("(") {
			if _, err := p.incompatible(ktok, "grouping by "+name+"()"); err != nil {
				return nil, err
			}
			p.next()
			p.skipParenthesized()
		} else {
			keys = append(keys, name)
		}

		if !p.acceptSymbol(",") {
			break
		}
	}

	params := sql.Params{"fields": keys}
	if len(aggs) > 0 {
		params["aggregates"] = aggs
	}
	return []*sql.Action{sql.NewAction(sql.OpGroupBy, params)}, nil
}

// aggregate converts a summarize column to an aggregate expression named
// the way KQL names its output columns.
func (p *kqlParser) aggregate(tok Token, e sql.Expression) (sql.Expression, error) {
	alias := ""
	if a, ok := e.(*expression.Alias); ok {
		alias = a.Name()
		e = a.Child
	}

	var agg *expression.Aggregate
	switch v := e.(type) {
	case *expression.Aggregate:
		agg = v
		if alias == "" {
			alias = kqlColumnName(strings.ToLower(v.Name), v)
		}
	case *expression.Function:
		name, ok := kqlAggregates[strings.ToLower(v.Name)]
		if !ok || len(v.Args) != 1 {
			return nil, p.errorAt(tok, "not an aggregation: "+v.String())
		}
		agg = expression.NewAggregate(name, v.Args[0], strings.EqualFold(v.Name, "dcount"))
		if alias == "" {
			alias = kqlColumnName(strings.ToLower(v.Name), agg)
		}
	default:
		return nil, p.errorAt(tok, "not an aggregation: "+e.String())
	}

	return expression.NewAlias(agg, alias), nil
}

// kqlColumnName returns count_ for count() and name_col for name(col).
func kqlColumnName(name string, agg *expression.Aggregate) string {
	if agg.IsStar() {
		return name + "_"
	}
	if id, ok := agg.Arg.(*expression.Identifier); ok {
		return name + "_" + strings.Replace(id.Name, ".", "_", -1)
	}
	return name + "_"
}

func (p *kqlParser) parseDistinct(Token) ([]*sql.Action, error) {
	fields, err := p.parseAssignments()
	if err != nil {
		return nil, err
	}

	var actions []*sql.Action
	if len(fields) != 1 || !isStar(fields[0]) {
		actions = append(actions, sql.NewAction(sql.OpProject, sql.Params{"fields": fields}))
	}
	return append(actions, sql.NewAction(sql.OpDistinct, sql.Params{})), nil
}

func (p *kqlParser) parseCount(Token) ([]*sql.Action, error) {
	agg := expression.NewAlias(expression.NewCountStar(), "Count")
	return []*sql.Action{
		sql.NewAction(sql.OpAggregate, sql.Params{"aggregates": []sql.Expression{agg}}),
	}, nil
}

func isStar(e sql.Expression) bool {
	_, ok := e.(*expression.Star)
	return ok
}
