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

	"github.com/exonware/go-xwquery/sql"
	"github.com/exonware/go-xwquery/sql/expression"
)

// Join types.
const (
	InnerJoin = "INNER"
	LeftJoin  = "LEFT"
	RightJoin = "RIGHT"
	FullJoin  = "FULL"
	CrossJoin = "CROSS"
)

// Sort directions.
const (
	Ascending  = "ASC"
	Descending = "DESC"
)

// clauseFunc parses a dialect specific clause starting at the current
// keyword and returns the actions it produces.
type clauseFunc func(p *sqlParser, sel *sql.Action) ([]*sql.Action, error)

// sqlDialect is a member of the SQL family: a dialect name, its lexicon
// and the extra clauses it understands.
type sqlDialect struct {
	name    string
	lex     *lexicon
	clauses map[string]clauseFunc
	// implicitSelect allows statements starting with FROM, which select
	// every column.
	implicitSelect bool
}

// SQLParser is the recursive descent parser of the SQL family of dialects.
type SQLParser struct {
	dialect *sqlDialect
}

// NewSQLParser returns the parser of standard SQL.
func NewSQLParser() *SQLParser {
	return &SQLParser{dialect: &sqlDialect{name: "SQL", lex: sqlLexicon}}
}

func newSQLFamilyParser(d *sqlDialect) *SQLParser {
	return &SQLParser{dialect: d}
}

// Dialect implements the Parser interface.
func (s *SQLParser) Dialect() string {
	return s.dialect.name
}

// Parse implements the Parser interface. Every statement is turned into a
// flat sequence of actions, see parseSelect.
func (s *SQLParser) Parse(ctx *sql.Context, text string, opts Options) ([]*sql.Action, error) {
	tokens, err := newTokenizer(s.dialect.name, text, s.dialect.lex).All()
	if err != nil {
		return nil, err
	}

	p := &sqlParser{
		parser:  newParser(s.dialect.name, text, tokens, opts),
		dialect: s.dialect,
	}
	return p.parseStatements()
}

type sqlParser struct {
	*parser
	dialect *sqlDialect
}

func (p *sqlParser) parseStatements() ([]*sql.Action, error) {
	var actions []*sql.Action
	for {
		for p.acceptSymbol(";") {
		}

		if p.atEOF() {
			return actions, nil
		}

		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		actions = append(actions, stmt...)

		if !p.atEOF() && !p.isSymbol(";") {
			return nil, p.unexpected(p.peek(), "end of statement")
		}
	}
}

func (p *sqlParser) parseStatement() ([]*sql.Action, error) {
	tok := p.peek()
	switch {
	case tok.Is("SELECT"), tok.Is("FROM") && p.dialect.implicitSelect:
		return p.parseSelect(nil, false)
	case tok.Is("WITH"):
		return p.parseWith()
	case tok.Is("INSERT"):
		return p.parseInsert()
	case tok.Is("UPDATE"):
		return p.parseUpdate()
	case tok.Is("DELETE"):
		return p.parseDelete()
	case tok.Is("CREATE"), tok.Is("DROP"), tok.Is("ALTER"), tok.Is("TRUNCATE"):
		if _, err := p.incompatible(tok, tok.Value+" statement"); err != nil {
			return nil, err
		}
		p.skipStatement()
		return nil, nil
	default:
		return nil, p.unexpected(tok, "SELECT, INSERT, UPDATE, DELETE or WITH")
	}
}

// parseWith parses WITH [RECURSIVE] name [(columns)] AS (query) {, ...}
// followed by a SELECT, attaching the CTE descriptors to the SELECT.
func (p *sqlParser) parseWith() ([]*sql.Action, error) {
	if _, err := p.expectKeyword("WITH"); err != nil {
		return nil, err
	}
	recursive := p.acceptKeyword("RECURSIVE")

	var ctes []interface{}
	for {
		name, _, err := p.parseName("CTE name")
		if err != nil {
			return nil, err
		}

		cte := map[string]interface{}{"name": name}
		if p.acceptSymbol("(") {
			cols, err := p.parseNameList("column name")
			if err != nil {
				return nil, err
			}
			cte["columns"] = cols
			if _, err := p.expectSymbol(")"); err != nil {
				return nil, err
			}
		}

		if _, err := p.expectKeyword("AS"); err != nil {
			return nil, err
		}

		query, err := p.parseSubquery()
		if err != nil {
			return nil, err
		}
		cte["query"] = query
		ctes = append(ctes, cte)

		if !p.acceptSymbol(",") {
			break
		}
	}

	if !p.isKeyword("SELECT") {
		return nil, p.unexpected(p.peek(), "SELECT")
	}
	return p.parseSelect(ctes, recursive)
}

// parseSubquery parses '(' SELECT ... ')' and returns the source text of
// the query.
func (p *sqlParser) parseSubquery() (string, error) {
	if _, err := p.expectSymbol("("); err != nil {
		return "", err
	}

	if err := p.enter(); err != nil {
		return "", err
	}
	defer p.leave()

	start := p.peek()
	var err error
	if start.Is("WITH") {
		_, err = p.parseWith()
	} else if start.Is("SELECT") {
		_, err = p.parseSelect(nil, false)
	} else {
		err = p.unexpected(start, "SELECT")
	}
	if err != nil {
		return "", err
	}

	query := p.sourceBetween(start)
	if _, err := p.expectSymbol(")"); err != nil {
		return "", err
	}
	return query, nil
}

func (p *sqlParser) parseNameList(expected string) ([]interface{}, error) {
	var names []interface{}
	for {
		name, _, err := p.parseQualifiedName(expected)
		if err != nil {
			return nil, err
		}
		names = append(names, name)

		if !p.acceptSymbol(",") {
			return names, nil
		}
	}
}

// parseSelect parses a SELECT statement into the sequence SELECT, JOIN*,
// WHERE, GROUP_BY, HAVING, ORDER_BY*, LIMIT, OFFSET.
func (p *sqlParser) parseSelect(ctes []interface{}, recursive bool) ([]*sql.Action, error) {
	selTok := p.peek()
	var (
		distinct bool
		top      *sql.Action
		columns  []sql.Expression
		err      error
	)

	if p.dialect.implicitSelect && selTok.Is("FROM") {
		columns = []sql.Expression{expression.NewStar()}
	} else {
		if _, err := p.expectKeyword("SELECT"); err != nil {
			return nil, err
		}

		distinct = p.acceptKeyword("DISTINCT")
		if !distinct {
			p.acceptKeyword("ALL")
		}

		if p.isKeyword("TOP") && p.peekN(1).Kind == Number {
			topTok := p.next()
			n, err := p.parseCount()
			if err != nil {
				return nil, err
			}

			// TOP n is LIMIT n everywhere but in strict mode.
			if p.opts.Mode == sql.Strict {
				return nil, p.errorAt(topTok, "feature not supported: TOP")
			}
			top = sql.NewAction(sql.OpLimit, sql.Params{"count": n}).At(topTok.Line, topTok.Column)
		}

		columns, err = p.parseSelectList()
		if err != nil {
			return nil, err
		}
	}

	params := sql.Params{}

	params["columns"] = columns
	params["distinct"] = distinct
	if len(ctes) > 0 {
		params["ctes"] = ctes
		params["recursive"] = recursive
	}

	sel := sql.NewAction(sql.OpSelect, params).At(selTok.Line, selTok.Column)
	actions := []*sql.Action{sel}

	if p.acceptKeyword("FROM") {
		table, alias, err := p.parseTableRef(sel)
		if err != nil {
			return nil, err
		}

		params["from"] = table
		if alias != "" {
			params["alias"] = alias
		}

		for {
			join, err := p.parseJoin(sel)
			if err != nil {
				return nil, err
			}
			if join == nil {
				break
			}
			actions = append(actions, join)
		}
	}

	extra, err := p.dialectClauses(sel)
	if err != nil {
		return nil, err
	}
	actions = append(actions, extra...)

	if tok := p.peek(); p.acceptKeyword("WHERE") {
		cond, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		actions = append(actions, newCondition(sql.OpWhere, cond, tok))
	}

	if tok := p.peek(); p.acceptKeyword("GROUP") {
		if _, err := p.expectKeyword("BY"); err != nil {
			return nil, err
		}

		fields, err := p.parseGroupFields()
		if err != nil {
			return nil, err
		}

		actions = append(actions, sql.NewAction(
			sql.OpGroupBy,
			sql.Params{"fields": fields},
		).At(tok.Line, tok.Column))
	}

	if tok := p.peek(); p.acceptKeyword("HAVING") {
		cond, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		actions = append(actions, newCondition(sql.OpHaving, cond, tok))
	}

	if tok := p.peek(); p.acceptKeyword("ORDER") {
		if _, err := p.expectKeyword("BY"); err != nil {
			return nil, err
		}

		orders, err := p.parseOrderItems(tok)
		if err != nil {
			return nil, err
		}
		actions = append(actions, orders...)
	}

	extra, err = p.dialectClauses(sel)
	if err != nil {
		return nil, err
	}
	actions = append(actions, extra...)

	limit, offset, err := p.parseLimitOffset()
	if err != nil {
		return nil, err
	}

	if limit == nil {
		limit = top
	}
	if limit != nil {
		actions = append(actions, limit)
	}
	if offset != nil {
		actions = append(actions, offset)
	}

	if tok := p.peek(); tok.Is("UNION") || tok.Is("INTERSECT") || tok.Is("EXCEPT") {
		if _, err := p.incompatible(tok, tok.Value); err != nil {
			return nil, err
		}
		p.skipStatement()
	}

	return actions, nil
}

func newCondition(typ string, cond sql.Expression, tok Token) *sql.Action {
	return sql.NewAction(typ, sql.Params{"condition": cond}).At(tok.Line, tok.Column)
}

func (p *sqlParser) parseSelectList() ([]sql.Expression, error) {
	var columns []sql.Expression
	for {
		col, err := p.parseSelectItem()
		if err != nil {
			return nil, err
		}
		columns = append(columns, col)

		if !p.acceptSymbol(",") {
			return columns, nil
		}
	}
}

func (p *sqlParser) parseSelectItem() (sql.Expression, error) {
	var e sql.Expression
	tok := p.peek()
	if tok.Kind == String && tok.Quote == '"' && endsSelectItem(p.peekN(1)) {
		p.next()
		e = expression.NewIdentifier(tok.Value)
	} else {
		var err error
		e, err = p.parseExpression()
		if err != nil {
			return nil, err
		}
	}

	if p.acceptKeyword("AS") {
		alias, _, err := p.parseName("alias")
		if err != nil {
			return nil, err
		}
		return expression.NewAlias(e, alias), nil
	}

	if next := p.peek(); isAlias(next) {
		p.next()
		return expression.NewAlias(e, next.Value), nil
	}

	return e, nil
}

func endsSelectItem(tok Token) bool {
	return tok.Kind == EOF || tok.Is(",") || tok.Is("FROM") || tok.Is("AS") || tok.Is(";")
}

// isAlias reports whether tok is an alias written without AS.
func isAlias(tok Token) bool {
	return tok.Kind == Identifier || (tok.Kind == String && tok.Quote == '"')
}

// parseTableRef parses a table name or a subquery, with an optional alias.
// Subqueries are attached to the SELECT as CTEs named after their alias.
func (p *sqlParser) parseTableRef(sel *sql.Action) (string, string, error) {
	if p.isSymbol("(") && p.peekN(1).Is("SELECT") {
		query, err := p.parseSubquery()
		if err != nil {
			return "", "", err
		}

		p.acceptKeyword("AS")
		alias, _, err := p.parseName("subquery alias")
		if err != nil {
			return "", "", err
		}

		ctes, _ := sel.Params["ctes"].([]interface{})
		sel.Params["ctes"] = append(ctes, map[string]interface{}{"name": alias, "query": query})
		if _, ok := sel.Params["recursive"]; !ok {
			sel.Params["recursive"] = false
		}
		return alias, "", nil
	}

	table, _, err := p.parseQualifiedName("table name")
	if err != nil {
		return "", "", err
	}

	if p.acceptKeyword("AS") {
		alias, _, err := p.parseName("alias")
		if err != nil {
			return "", "", err
		}
		return table, alias, nil
	}

	if next := p.peek(); isAlias(next) {
		p.next()
		return table, next.Value, nil
	}

	return table, "", nil
}

// parseJoin parses a comma separated table or a JOIN clause. It returns
// nil when there is no join at the current position.
func (p *sqlParser) parseJoin(sel *sql.Action) (*sql.Action, error) {
	tok := p.peek()
	typ := ""
	switch {
	case p.acceptSymbol(","):
		typ = CrossJoin
	case p.acceptKeyword("JOIN"):
		typ = InnerJoin
	case p.acceptKeyword("INNER"):
		typ = InnerJoin
	case p.acceptKeyword("LEFT"):
		typ = LeftJoin
		p.acceptKeyword("OUTER")
	case p.acceptKeyword("RIGHT"):
		typ = RightJoin
		p.acceptKeyword("OUTER")
	case p.acceptKeyword("FULL"):
		typ = FullJoin
		p.acceptKeyword("OUTER")
	case p.acceptKeyword("CROSS"):
		typ = CrossJoin
	case p.isKeyword("NATURAL"):
		return nil, p.errorAt(tok, "feature not supported: NATURAL JOIN")
	default:
		return nil, nil
	}

	if !tok.Is(",") && !tok.Is("JOIN") {
		if _, err := p.expectKeyword("JOIN"); err != nil {
			return nil, err
		}
	}

	table, alias, err := p.parseTableRef(sel)
	if err != nil {
		return nil, err
	}

	params := sql.Params{"right": table, "type": typ}
	if alias != "" {
		params["alias"] = alias
	}

	if typ == CrossJoin {
		if p.isKeyword("ON") || p.isKeyword("USING") {
			return nil, p.errorAt(p.peek(), "CROSS JOIN cannot have a join condition")
		}
		return sql.NewAction(sql.OpJoin, params).At(tok.Line, tok.Column), nil
	}

	switch {
	case p.acceptKeyword("ON"):
		cond, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		params["on"] = cond
	case p.acceptKeyword("USING"):
		if _, err := p.expectSymbol("("); err != nil {
			return nil, err
		}
		names, err := p.parseNameList("column name")
		if err != nil {
			return nil, err
		}
		if _, err := p.expectSymbol(")"); err != nil {
			return nil, err
		}
		params["using"] = names
	default:
		return nil, p.unexpected(p.peek(), "ON or USING")
	}

	return sql.NewAction(sql.OpJoin, params).At(tok.Line, tok.Column), nil
}

func (p *sqlParser) parseGroupFields() ([]interface{}, error) {
	var fields []interface{}
	for {
		tok := p.peek()
		e, err := p.parseExpression()
		if err != nil {
			return nil, err
		}

		if id, ok := e.(*expression.Identifier); ok {
			fields = append(fields, id.Name)
		} else if _, err := p.incompatible(tok, "GROUP BY expression "+e.String()); err != nil {
			return nil, err
		}

		if !p.acceptSymbol(",") {
			return fields, nil
		}
	}
}

// parseOrderItems parses the sort keys of an ORDER BY clause, one
// ORDER_BY action each.
func (p *sqlParser) parseOrderItems(orderTok Token) ([]*sql.Action, error) {
	var actions []*sql.Action
	for {
		e, err := p.parseExpression()
		if err != nil {
			return nil, err
		}

		direction := Ascending
		if p.acceptKeyword("DESC") {
			direction = Descending
		} else {
			p.acceptKeyword("ASC")
		}

		params := sql.Params{"direction": direction}
		if id, ok := e.(*expression.Identifier); ok {
			params["column"] = id.Name
		} else {
			params["column"] = e.String()
			params["expression"] = e
		}

		if p.acceptKeyword("NULLS") {
			switch {
			case p.acceptKeyword("FIRST"):
				params["nulls"] = "FIRST"
			case p.acceptKeyword("LAST"):
				params["nulls"] = "LAST"
			default:
				return nil, p.unexpected(p.peek(), "FIRST or LAST")
			}
		}

		actions = append(actions, sql.NewAction(sql.OpOrderBy, params).At(orderTok.Line, orderTok.Column))
		if !p.acceptSymbol(",") {
			return actions, nil
		}
	}
}

// parseLimitOffset parses LIMIT n [OFFSET m], LIMIT m, n, OFFSET m [ROWS]
// and FETCH FIRST n ROWS ONLY in any order.
func (p *sqlParser) parseLimitOffset() (limit, offset *sql.Action, err error) {
	for {
		tok := p.peek()
		switch {
		case limit == nil && p.acceptKeyword("LIMIT"):
			n, err := p.parseCount()
			if err != nil {
				return nil, nil, err
			}

			if p.acceptSymbol(",") {
				m, err := p.parseCount()
				if err != nil {
					return nil, nil, err
				}
				offset = sql.NewAction(sql.OpOffset, sql.Params{"count": n}).At(tok.Line, tok.Column)
				n = m
			}
			limit = sql.NewAction(sql.OpLimit, sql.Params{"count": n}).At(tok.Line, tok.Column)
		case offset == nil && p.acceptKeyword("OFFSET"):
			n, err := p.parseCount()
			if err != nil {
				return nil, nil, err
			}
			p.acceptKeyword("ROW")
			p.acceptKeyword("ROWS")
			offset = sql.NewAction(sql.OpOffset, sql.Params{"count": n}).At(tok.Line, tok.Column)
		case limit == nil && p.acceptKeyword("FETCH"):
			if !p.acceptKeyword("FIRST") && !p.acceptKeyword("NEXT") {
				return nil, nil, p.unexpected(p.peek(), "FIRST or NEXT")
			}
			n, err := p.parseCount()
			if err != nil {
				return nil, nil, err
			}
			if !p.acceptKeyword("ROWS") && !p.acceptKeyword("ROW") {
				return nil, nil, p.unexpected(p.peek(), "ROWS")
			}
			if _, err := p.expectKeyword("ONLY"); err != nil {
				return nil, nil, err
			}
			limit = sql.NewAction(sql.OpLimit, sql.Params{"count": n}).At(tok.Line, tok.Column)
		default:
			return limit, offset, nil
		}
	}
}

func (p *sqlParser) parseCount() (int64, error) {
	tok := p.peek()
	if tok.Kind != Number {
		return 0, p.unexpected(tok, "non-negative integer")
	}

	v, err := p.number(tok)
	if err != nil {
		return 0, err
	}

	n, ok := v.(int64)
	if !ok || n < 0 {
		return 0, p.unexpected(tok, "non-negative integer")
	}

	p.next()
	return n, nil
}

// dialectClauses parses the dialect specific clauses found at the current
// position.
func (p *sqlParser) dialectClauses(sel *sql.Action) ([]*sql.Action, error) {
	var actions []*sql.Action
	for {
		tok := p.peek()
		if tok.Kind != Keyword {
			return actions, nil
		}

		f, ok := p.dialect.clauses[tok.Value]
		if !ok {
			return actions, nil
		}

		as, err := f(p, sel)
		if err != nil {
			return nil, err
		}
		actions = append(actions, as...)
	}
}

func (p *sqlParser) parseInsert() ([]*sql.Action, error) {
	tok, err := p.expectKeyword("INSERT")
	if err != nil {
		return nil, err
	}
	if _, err := p.expectKeyword("INTO"); err != nil {
		return nil, err
	}

	target, _, err := p.parseQualifiedName("table name")
	if err != nil {
		return nil, err
	}

	params := sql.Params{"target": target}
	var columns []interface{}
	if p.acceptSymbol("(") {
		columns, err = p.parseNameList("column name")
		if err != nil {
			return nil, err
		}
		if _, err := p.expectSymbol(")"); err != nil {
			return nil, err
		}
		params["columns"] = columns
	}

	if sel := p.peek(); sel.Is("SELECT") {
		if _, err := p.incompatible(sel, "INSERT ... SELECT"); err != nil {
			return nil, err
		}
		p.skipStatement()
		return nil, nil
	}

	if _, err := p.expectKeyword("VALUES"); err != nil {
		return nil, err
	}

	var rows []interface{}
	for {
		rowTok := p.peek()
		values, err := p.parseExpressionList()
		if err != nil {
			return nil, err
		}

		row, err := p.constantRow(rowTok, columns, values)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)

		if !p.acceptSymbol(",") {
			break
		}
	}

	params["values"] = rows
	return []*sql.Action{sql.NewAction(sql.OpInsert, params).At(tok.Line, tok.Column)}, nil
}

// constantRow evaluates the expressions of a VALUES tuple. With column
// names the row is a record, otherwise a list.
func (p *sqlParser) constantRow(tok Token, columns []interface{}, values []sql.Expression) (interface{}, error) {
	if len(columns) > 0 && len(columns) != len(values) {
		return nil, p.errorAt(tok, fmt.Sprintf(
			"column count %d does not match value count %d", len(columns), len(values),
		))
	}

	ctx := sql.NewEmptyContext()
	evaluated := make([]interface{}, len(values))
	for i, e := range values {
		if ids := expression.Identifiers(e); len(ids) > 0 {
			return nil, p.errorAt(tok, "VALUES cannot reference columns: "+strings.Join(ids, ", "))
		}

		v, err := e.Eval(ctx, nil)
		if err != nil {
			return nil, p.errorAt(tok, err.Error())
		}
		evaluated[i] = v
	}

	if len(columns) == 0 {
		return evaluated, nil
	}

	record := make(map[string]interface{}, len(columns))
	for i, c := range columns {
		record[c.(string)] = evaluated[i]
	}
	return record, nil
}

func (p *sqlParser) parseUpdate() ([]*sql.Action, error) {
	tok, err := p.expectKeyword("UPDATE")
	if err != nil {
		return nil, err
	}

	target, _, err := p.parseQualifiedName("table name")
	if err != nil {
		return nil, err
	}

	if _, err := p.expectKeyword("SET"); err != nil {
		return nil, err
	}

	set := map[string]interface{}{}
	for {
		column, _, err := p.parseQualifiedName("column name")
		if err != nil {
			return nil, err
		}
		if _, err := p.expectSymbol("="); err != nil {
			return nil, err
		}

		value, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		set[column] = value

		if !p.acceptSymbol(",") {
			break
		}
	}

	params := sql.Params{"target": target, "set": set}
	if p.acceptKeyword("WHERE") {
		cond, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		params["where"] = cond
	}

	return []*sql.Action{sql.NewAction(sql.OpUpdate, params).At(tok.Line, tok.Column)}, nil
}

func (p *sqlParser) parseDelete() ([]*sql.Action, error) {
	tok, err := p.expectKeyword("DELETE")
	if err != nil {
		return nil, err
	}
	if _, err := p.expectKeyword("FROM"); err != nil {
		return nil, err
	}

	target, _, err := p.parseQualifiedName("table name")
	if err != nil {
		return nil, err
	}

	params := sql.Params{"target": target}
	if p.acceptKeyword("WHERE") {
		cond, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		params["where"] = cond
	}

	return []*sql.Action{sql.NewAction(sql.OpDelete, params).At(tok.Line, tok.Column)}, nil
}
