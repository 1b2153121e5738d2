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

package generate

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	istrings "github.com/exonware/go-xwquery/internal/strings"
	"github.com/exonware/go-xwquery/sql"
	"github.com/exonware/go-xwquery/sql/expression"
	"github.com/exonware/go-xwquery/sql/parse"
)

// SQLGenerator renders actions as SQL. Members of the SQL family share it
// under their own names.
type SQLGenerator struct {
	dialect string
	// implicitSelect writes SELECT * FROM t as FROM t.
	implicitSelect bool
}

var _ Generator = (*SQLGenerator)(nil)

// NewSQLGenerator creates a generator of standard SQL.
func NewSQLGenerator() *SQLGenerator {
	return &SQLGenerator{dialect: "SQL"}
}

func newSQLFamilyGenerator(dialect string, implicitSelect bool) *SQLGenerator {
	return &SQLGenerator{dialect: dialect, implicitSelect: implicitSelect}
}

// Dialect implements the Generator interface.
func (g *SQLGenerator) Dialect() string { return g.dialect }

// Generate implements the Generator interface. Statements are separated by
// semicolons.
func (g *SQLGenerator) Generate(ctx *sql.Context, actions []*sql.Action, opts Options) (string, error) {
	s := &state{
		dialect: g.dialect,
		opts:    opts,
		comment: func(text string) string { return "/* " + strings.Replace(text, "*/", "* /", -1) + " */" },
	}

	var out []string
	for _, stmt := range statements(actions) {
		s.comments = nil
		text, err := g.statement(s, stmt)
		if err != nil {
			return "", err
		}

		text = appendComments(text, s.comments, opts.Pretty)
		if text != "" {
			out = append(out, text)
		}
	}

	sep := "; "
	if opts.Pretty {
		sep = ";\n"
	}
	return strings.Join(out, sep), nil
}

func appendComments(text string, comments []string, pretty bool) string {
	if len(comments) == 0 {
		return text
	}

	sep := " "
	if pretty {
		sep = "\n"
	}
	if text == "" {
		return strings.Join(comments, sep)
	}
	return text + sep + strings.Join(comments, sep)
}

func (g *SQLGenerator) statement(s *state, stmt []*sql.Action) (string, error) {
	switch stmt[0].Type {
	case sql.OpInsert, sql.OpUpdate, sql.OpDelete:
		text, err := g.write(s, stmt[0])
		if err != nil {
			return "", err
		}
		for _, a := range stmt[1:] {
			if _, err := s.unsupportedAction(a, nil); err != nil {
				return "", err
			}
		}
		return text, nil
	}

	b := &sqlBuilder{g: g, s: s, q: newSelectQuery()}
	for _, a := range stmt {
		if err := b.add(a); err != nil {
			return "", err
		}
	}
	return b.q.render(g, s.opts), nil
}

// Clause stages of a SELECT, in evaluation order.
const (
	stageSource = iota
	stageJoin
	stageWhere
	stageGroup
	stageHaving
	stageOrder
	stageLimit
)

type cte struct {
	name    string
	columns []string
	query   string
}

// selectQuery is a SELECT under construction.
type selectQuery struct {
	ctes      []cte
	recursive bool
	distinct  bool
	columns   []sql.Expression
	from      string
	alias     string
	joins     []string
	where     sql.Expression
	groupBy   []string
	having    sql.Expression
	orderBy   []string
	limit     int64
	offset    int64
	stage     int
	// projected is set once the column list is fixed by a projection,
	// an aggregation or an extension.
	projected bool
}

func newSelectQuery() *selectQuery {
	return &selectQuery{limit: -1, offset: -1}
}

// sqlBuilder folds a statement into a selectQuery. An action that cannot
// be added at the current stage wraps the query as a derived table and
// continues on the outer query.
type sqlBuilder struct {
	g     *SQLGenerator
	s     *state
	q     *selectQuery
	wraps int
}

func (b *sqlBuilder) wrap() {
	b.wraps++
	inner := b.q
	outer := newSelectQuery()
	outer.ctes, outer.recursive = inner.ctes, inner.recursive
	inner.ctes, inner.recursive = nil, false

	name := fmt.Sprintf("q%d", b.wraps)
	outer.ctes = append(outer.ctes, cte{name: name, query: inner.render(b.g, Options{Indent: b.s.opts.Indent})})
	outer.from = name
	b.q = outer
}

func (b *sqlBuilder) add(a *sql.Action) error {
	q := b.q
	switch a.Type {
	case sql.OpSelect, sql.OpSequentialScan, sql.OpIndexScan:
		if q.from != "" || len(q.columns) > 0 {
			b.wrap()
		}
		return b.source(a)
	case sql.OpJoin:
		if q.stage > stageJoin || q.projected {
			b.wrap()
		}
		join, err := b.join(a)
		if err != nil {
			return err
		}
		b.q.joins = append(b.q.joins, join)
		b.q.stage = stageJoin
	case sql.OpWhere, sql.OpFilter:
		cond, err := condition(a, "condition", "path", "expression")
		if err != nil {
			return err
		}
		if q.stage > stageWhere || q.projected {
			b.wrap()
		}
		b.q.where = expression.JoinAnd(b.q.where, cond)
		b.q.stage = stageWhere
	case sql.OpGroupBy, sql.OpGroup:
		if q.stage > stageWhere || q.projected || q.distinct {
			b.wrap()
			q = b.q
		}
		fields := a.Params.GetStrings("fields")
		if len(fields) == 0 {
			fields = a.Params.GetStrings("by")
		}
		q.groupBy = fields
		q.stage = stageGroup

		aggs, err := fieldExpressions(a.Params["aggregates"])
		if err != nil {
			return err
		}
		if len(aggs) > 0 {
			columns := make([]sql.Expression, 0, len(fields)+len(aggs))
			for _, f := range fields {
				columns = append(columns, expression.NewIdentifier(f))
			}
			q.columns = append(columns, aggs...)
			q.projected = true
		}
	case sql.OpAggregate, sql.OpSummarize:
		aggs, err := fieldExpressions(a.Params["aggregates"])
		if err != nil {
			return err
		}
		if q.stage >= stageGroup || q.projected || q.distinct {
			b.wrap()
			q = b.q
		}
		by := a.Params.GetStrings("by")
		columns := make([]sql.Expression, 0, len(by)+len(aggs))
		for _, f := range by {
			columns = append(columns, expression.NewIdentifier(f))
		}
		q.columns = append(columns, aggs...)
		q.groupBy = by
		q.projected = true
		q.stage = stageGroup
	case sql.OpHaving:
		cond, err := condition(a, "condition")
		if err != nil {
			return err
		}
		if q.stage > stageHaving {
			b.wrap()
			b.q.where = cond
			b.q.stage = stageWhere
			return nil
		}
		q.having = expression.JoinAnd(q.having, cond)
		q.stage = stageHaving
	case sql.OpOrderBy, sql.OpOrder:
		if q.stage > stageOrder {
			b.wrap()
			q = b.q
		}
		key, err := b.orderKey(a)
		if err != nil {
			return err
		}
		q.orderBy = append(q.orderBy, key)
		q.stage = stageOrder
	case sql.OpLimit:
		n, ok := a.Params.GetInt("count")
		if !ok {
			return sql.ErrValue.New("LIMIT requires a count")
		}
		switch {
		case q.limit < 0:
			q.limit = n
		case n < q.limit:
			q.limit = n
		}
		q.stage = stageLimit
	case sql.OpOffset:
		n, ok := a.Params.GetInt("count")
		if !ok {
			return sql.ErrValue.New("OFFSET requires a count")
		}
		if q.offset >= 0 {
			b.wrap()
			q = b.q
		}
		q.offset = n
		q.stage = stageLimit
	case sql.OpProject:
		fields, err := fieldExpressions(a.Params["fields"])
		if err != nil {
			return err
		}
		if q.projected || q.distinct || len(q.groupBy) > 0 || !allStar(q.columns) {
			b.wrap()
			q = b.q
		}
		q.columns = fields
		q.projected = true
	case sql.OpExtend:
		fields, err := fieldExpressions(a.Params["fields"])
		if err != nil {
			return err
		}
		if q.distinct || len(q.groupBy) > 0 || q.stage == stageLimit {
			b.wrap()
			q = b.q
		}
		if len(q.columns) == 0 {
			q.columns = []sql.Expression{expression.NewStar()}
		}
		q.columns = append(q.columns, fields...)
		q.projected = true
	case sql.OpDistinct:
		if q.stage == stageLimit {
			b.wrap()
			q = b.q
		}
		q.distinct = true
	case sql.OpUnion:
		query := a.Params.GetString("query")
		text, err := b.s.unsupportedAction(a, func() (string, error) {
			if query == "" {
				return "", nil
			}
			return "UNION " + query, nil
		})
		if err != nil {
			return err
		}
		if text != "" {
			b.wrap()
			b.q.ctes[len(b.q.ctes)-1].query += " " + text
		}
	default:
		_, err := b.s.unsupportedAction(a, nil)
		return err
	}
	return nil
}

func (b *sqlBuilder) source(a *sql.Action) error {
	q := b.q
	columns, err := fieldExpressions(a.Params["columns"])
	if err != nil {
		return err
	}
	q.columns = columns
	q.distinct = a.Params.GetBool("distinct")
	q.from = a.Params.GetString("from")
	q.alias = a.Params.GetString("alias")
	q.recursive = q.recursive || a.Params.GetBool("recursive")

	if ctes, ok := a.Params["ctes"].([]interface{}); ok {
		for _, c := range ctes {
			m, ok := c.(map[string]interface{})
			if !ok {
				return sql.ErrValue.New(fmt.Sprintf("invalid common table expression %v", c))
			}
			def := cte{name: fmt.Sprint(m["name"])}
			def.query, _ = m["query"].(string)
			def.columns = sql.Params(m).GetStrings("columns")
			q.ctes = append(q.ctes, def)
		}
	}
	return nil
}

func (b *sqlBuilder) join(a *sql.Action) (string, error) {
	typ := strings.ToUpper(a.Params.GetString("type"))
	var sb strings.Builder
	switch typ {
	case "", parse.InnerJoin:
		sb.WriteString("JOIN ")
	default:
		sb.WriteString(typ + " JOIN ")
	}

	sb.WriteString(quoteName(a.Params.GetString("right")))
	if alias := a.Params.GetString("alias"); alias != "" {
		sb.WriteString(" AS " + quoteIdent(alias))
	}

	if typ == parse.CrossJoin {
		return sb.String(), nil
	}

	if using := a.Params.GetStrings("using"); len(using) > 0 {
		names := make([]string, len(using))
		for i, u := range using {
			names[i] = quoteName(u)
		}
		sb.WriteString(" USING (" + strings.Join(names, ", ") + ")")
		return sb.String(), nil
	}

	on, using, err := joinCondition(a.Params["on"])
	if err != nil {
		return "", err
	}
	switch {
	case on != nil:
		sb.WriteString(" ON " + b.g.expr(on))
	case using != "":
		sb.WriteString(" USING (" + quoteName(using) + ")")
	default:
		return "", sql.ErrValue.New(fmt.Sprintf("%s JOIN requires a condition", typ))
	}
	return sb.String(), nil
}

// joinCondition reads the on param of a join: an expression, a column name
// shared by both sides, a [left, right] pair or a mapping from left to
// right columns.
func joinCondition(on interface{}) (sql.Expression, string, error) {
	switch on := on.(type) {
	case nil:
		return nil, "", nil
	case sql.Expression:
		return on, "", nil
	case string:
		if isSimpleName(on) {
			return nil, on, nil
		}
		e, err := parse.ParseExpression(on)
		return e, "", err
	case []interface{}:
		if len(on) != 2 {
			return nil, "", sql.ErrValue.New(fmt.Sprintf("join pair must have two columns, got %d", len(on)))
		}
		return expression.NewEquals(
			expression.NewIdentifier(fmt.Sprint(on[0])),
			expression.NewIdentifier(fmt.Sprint(on[1])),
		), "", nil
	case map[string]interface{}:
		keys := make([]string, 0, len(on))
		for k := range on {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		var e sql.Expression
		for _, k := range keys {
			e = expression.JoinAnd(e, expression.NewEquals(
				expression.NewIdentifier(k),
				expression.NewIdentifier(fmt.Sprint(on[k])),
			))
		}
		return e, "", nil
	default:
		return nil, "", sql.ErrValue.New(fmt.Sprintf("invalid join condition of type %T", on))
	}
}

func (b *sqlBuilder) orderKey(a *sql.Action) (string, error) {
	var key string
	if e, ok := a.Params["expression"].(sql.Expression); ok {
		key = b.g.expr(e)
	} else {
		column := a.Params.GetString("column")
		if column == "" {
			column = a.Params.GetString("field")
		}
		if column == "" {
			return "", sql.ErrValue.New("ORDER BY requires a column")
		}
		key = quoteName(column)
	}

	if strings.EqualFold(a.Params.GetString("direction"), parse.Descending) {
		key += " DESC"
	}
	if nulls := strings.ToUpper(a.Params.GetString("nulls")); nulls != "" {
		key += " NULLS " + nulls
	}
	return key, nil
}

func (q *selectQuery) render(g *SQLGenerator, opts Options) string {
	var clauses []string
	if len(q.ctes) > 0 {
		defs := make([]string, len(q.ctes))
		for i, c := range q.ctes {
			def := quoteIdent(c.name)
			if len(c.columns) > 0 {
				cols := make([]string, len(c.columns))
				for j, col := range c.columns {
					cols[j] = quoteName(col)
				}
				def += " (" + strings.Join(cols, ", ") + ")"
			}
			defs[i] = def + " AS (" + c.query + ")"
		}

		with := "WITH "
		if q.recursive {
			with += "RECURSIVE "
		}
		clauses = append(clauses, with+strings.Join(defs, ", "))
	}

	implicit := g.implicitSelect && !q.distinct && allStar(q.columns) && q.from != ""
	if !implicit {
		sel := "SELECT "
		if q.distinct {
			sel += "DISTINCT "
		}
		clauses = append(clauses, sel+g.columns(q.columns))
	}

	if q.from != "" {
		from := "FROM " + quoteName(q.from)
		if q.alias != "" {
			from += " AS " + quoteIdent(q.alias)
		}
		clauses = append(clauses, from)
	}

	for _, j := range q.joins {
		if opts.Pretty {
			j = opts.indent() + j
		}
		clauses = append(clauses, j)
	}

	if q.where != nil {
		clauses = append(clauses, "WHERE "+g.expr(q.where))
	}

	if len(q.groupBy) > 0 {
		fields := make([]string, len(q.groupBy))
		for i, f := range q.groupBy {
			fields[i] = quoteName(f)
		}
		clauses = append(clauses, "GROUP BY "+strings.Join(fields, ", "))
	}

	if q.having != nil {
		clauses = append(clauses, "HAVING "+g.expr(q.having))
	}

	if len(q.orderBy) > 0 {
		clauses = append(clauses, "ORDER BY "+strings.Join(q.orderBy, ", "))
	}

	if q.limit >= 0 {
		clauses = append(clauses, "LIMIT "+strconv.FormatInt(q.limit, 10))
	}
	if q.offset >= 0 {
		clauses = append(clauses, "OFFSET "+strconv.FormatInt(q.offset, 10))
	}

	sep := " "
	if opts.Pretty {
		sep = "\n"
	}
	return strings.Join(clauses, sep)
}

func (g *SQLGenerator) columns(columns []sql.Expression) string {
	if len(columns) == 0 {
		return "*"
	}

	parts := make([]string, len(columns))
	for i, c := range columns {
		parts[i] = g.expr(c)
	}
	return strings.Join(parts, ", ")
}

func (g *SQLGenerator) write(s *state, a *sql.Action) (string, error) {
	target := quoteName(a.Params.GetString("target"))
	if target == "" {
		return "", sql.ErrValue.New(a.Type + " requires a target")
	}

	var sb strings.Builder
	switch a.Type {
	case sql.OpInsert:
		columns, rows, err := insertRows(a)
		if err != nil {
			return "", err
		}

		sb.WriteString("INSERT INTO " + target)
		if len(columns) > 0 {
			names := make([]string, len(columns))
			for i, c := range columns {
				names[i] = quoteName(c)
			}
			sb.WriteString(" (" + strings.Join(names, ", ") + ")")
		}

		tuples := make([]string, len(rows))
		for i, row := range rows {
			values := make([]string, len(row))
			for j, v := range row {
				text, err := g.value(s, v)
				if err != nil {
					return "", err
				}
				values[j] = text
			}
			tuples[i] = "(" + strings.Join(values, ", ") + ")"
		}
		sb.WriteString(" VALUES " + strings.Join(tuples, ", "))
	case sql.OpUpdate:
		set, _ := a.Params["set"].(map[string]interface{})
		if len(set) == 0 {
			return "", sql.ErrValue.New("UPDATE requires values to set")
		}
		keys := make([]string, 0, len(set))
		for k := range set {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		assignments := make([]string, len(keys))
		for i, k := range keys {
			var text string
			if e, ok := set[k].(sql.Expression); ok {
				text = g.expr(e)
			} else {
				var err error
				if text, err = g.value(s, set[k]); err != nil {
					return "", err
				}
			}
			assignments[i] = quoteName(k) + " = " + text
		}
		sb.WriteString("UPDATE " + target + " SET " + strings.Join(assignments, ", "))
	case sql.OpDelete:
		sb.WriteString("DELETE FROM " + target)
	}

	if a.Type != sql.OpInsert {
		where, err := condition(a, "where")
		if err != nil {
			return "", err
		}
		if where != nil {
			sb.WriteString(" WHERE " + g.expr(where))
		}

		if n, ok := a.Params.GetInt("limit"); ok {
			if _, err := s.incompatible(fmt.Sprintf("%s with limit %d", a.Type, n), nil); err != nil {
				return "", err
			}
		}
	}
	return sb.String(), nil
}

// insertRows returns the column names and value rows of an INSERT. Rows
// of records are aligned on the declared columns, or on the sorted union
// of their keys.
func insertRows(a *sql.Action) ([]string, [][]interface{}, error) {
	columns := a.Params.GetStrings("columns")

	var values []interface{}
	switch v := a.Params["values"].(type) {
	case []interface{}:
		values = v
	case []map[string]interface{}:
		for _, r := range v {
			values = append(values, r)
		}
	case map[string]interface{}:
		values = []interface{}{v}
	case nil:
		return nil, nil, sql.ErrValue.New("INSERT requires values")
	default:
		return nil, nil, sql.ErrValue.New(fmt.Sprintf("invalid INSERT values of type %T", v))
	}

	if len(columns) == 0 {
		seen := make(map[string]bool)
		for _, v := range values {
			if m, ok := v.(map[string]interface{}); ok {
				for k := range m {
					if !seen[k] {
						seen[k] = true
						columns = append(columns, k)
					}
				}
			}
		}
		sort.Strings(columns)
	}

	rows := make([][]interface{}, len(values))
	for i, v := range values {
		switch v := v.(type) {
		case map[string]interface{}:
			row := make([]interface{}, len(columns))
			for j, c := range columns {
				row[j] = v[c]
			}
			rows[i] = row
		case []interface{}:
			if len(columns) > 0 && len(v) != len(columns) {
				return nil, nil, sql.ErrValue.New(fmt.Sprintf(
					"column count %d does not match value count %d", len(columns), len(v),
				))
			}
			rows[i] = v
		default:
			rows[i] = []interface{}{v}
		}
	}
	return columns, rows, nil
}

// value renders a constant. Nested documents have no SQL literal and are
// written as JSON strings in flexible mode.
func (g *SQLGenerator) value(s *state, v interface{}) (string, error) {
	switch v := v.(type) {
	case sql.Expression:
		return g.expr(v), nil
	case map[string]interface{}, []interface{}:
		text, err := s.incompatible("nested value in "+g.dialect, func() (string, error) {
			b, err := json.Marshal(v)
			if err != nil {
				return "", sql.ErrValue.New(err.Error())
			}
			return sqlLiteral(string(b)), nil
		})
		if err != nil {
			return "", err
		}
		if text == "" {
			return "NULL", nil
		}
		return text, nil
	default:
		return sqlLiteral(v), nil
	}
}

func sqlLiteral(v interface{}) string {
	if s, ok := v.(string); ok {
		return istrings.Quote(strings.Replace(s, `\`, `\\`, -1), '\'')
	}
	return expression.FormatLiteral(v)
}

func (g *SQLGenerator) expr(e sql.Expression) string {
	switch e := e.(type) {
	case nil:
		return "NULL"
	case *expression.Literal:
		return sqlLiteral(e.Value())
	case *expression.Identifier:
		return quoteName(e.Name)
	case *expression.Star:
		return "*"
	case *expression.Alias:
		return g.expr(e.Child) + " AS " + quoteIdent(e.Name())
	case *expression.Binary:
		if e.Right == nil {
			return g.operand(e.Left) + " " + e.Op
		}
		return g.operand(e.Left) + " " + e.Op + " " + g.operand(e.Right)
	case *expression.Unary:
		if e.Op == expression.Not {
			return "NOT " + g.operand(e.Child)
		}
		return e.Op + g.operand(e.Child)
	case *expression.In:
		values := make([]string, len(e.Values))
		for i, v := range e.Values {
			values[i] = g.expr(v)
		}
		return g.operand(e.Left) + " IN (" + strings.Join(values, ", ") + ")"
	case *expression.Between:
		return g.operand(e.Val) + " BETWEEN " + g.operand(e.Lower) + " AND " + g.operand(e.Upper)
	case *expression.Function:
		args := make([]string, len(e.Args))
		for i, a := range e.Args {
			args[i] = g.expr(a)
		}
		return e.Name + "(" + strings.Join(args, ", ") + ")"
	case *expression.Aggregate:
		if e.IsStar() {
			return e.Name + "(*)"
		}
		if e.Distinct {
			return e.Name + "(DISTINCT " + g.expr(e.Arg) + ")"
		}
		return e.Name + "(" + g.expr(e.Arg) + ")"
	default:
		return e.String()
	}
}

// operand renders an operand of an operator, parenthesizing compound
// expressions.
func (g *SQLGenerator) operand(e sql.Expression) string {
	switch e := e.(type) {
	case *expression.Binary, *expression.In, *expression.Between:
		return "(" + g.expr(e) + ")"
	case *expression.Unary:
		if e.Op == expression.Not {
			return "(" + g.expr(e) + ")"
		}
	}
	return g.expr(e)
}

var simpleName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func isSimpleName(s string) bool {
	return simpleName.MatchString(s)
}

// quoteIdent quotes a name with backticks unless it is a plain identifier
// that is not a keyword.
func quoteIdent(name string) string {
	if name == "*" || isSimpleName(name) && !parse.IsKeyword(name) {
		return name
	}
	return istrings.Quote(name, '`')
}

// quoteName quotes every part of a dotted name.
func quoteName(name string) string {
	if name == "" {
		return ""
	}
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = quoteIdent(p)
	}
	return strings.Join(parts, ".")
}
