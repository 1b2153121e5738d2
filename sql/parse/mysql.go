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
	"strconv"
	"strings"

	"gopkg.in/src-d/go-vitess.v1/vt/sqlparser"

	"github.com/exonware/go-xwquery/sql"
	"github.com/exonware/go-xwquery/sql/expression"
)

// MySQLParser parses the MySQL dialect with the vitess SQL parser and
// converts its syntax tree into actions.
type MySQLParser struct{}

// NewMySQLParser creates a new MySQL parser.
func NewMySQLParser() *MySQLParser {
	return &MySQLParser{}
}

// Dialect implements the Parser interface.
func (*MySQLParser) Dialect() string { return "MySQL" }

// Parse implements the Parser interface.
func (m *MySQLParser) Parse(ctx *sql.Context, text string, opts Options) ([]*sql.Action, error) {
	s := strings.TrimSpace(text)
	for strings.HasSuffix(s, ";") {
		s = strings.TrimSpace(s[:len(s)-1])
	}

	stmt, err := sqlparser.Parse(s)
	if err != nil {
		return nil, m.syntaxError(s, err)
	}

	c := &mysqlConverter{opts: opts}
	return c.convert(stmt)
}

// syntaxError turns a vitess syntax error into a parse error located at
// the reported position.
func (m *MySQLParser) syntaxError(text string, err error) error {
	pe := &sql.ParseError{Dialect: m.Dialect(), Message: err.Error()}

	msg := err.Error()
	if i := strings.Index(msg, "at position "); i >= 0 {
		var pos int
		if _, serr := fmt.Sscanf(msg[i:], "at position %d", &pos); serr == nil {
			pe.Line, pe.Column = lineColumn(text, pos-1)
		}
	}

	return sql.NewParseError(pe)
}

// lineColumn returns the 1-based line and column of the byte offset.
func lineColumn(text string, offset int) (int, int) {
	if offset < 0 {
		offset = 0
	}
	if offset > len(text) {
		offset = len(text)
	}

	line, col := 1, 1
	for _, r := range text[:offset] {
		if r == '\n' {
			line++
			col = 1
		} else {
			col++
		}
	}
	return line, col
}

type mysqlConverter struct {
	opts Options
}

func (c *mysqlConverter) unsupported(feature string) error {
	return sql.NewParseError(&sql.ParseError{
		Dialect: "MySQL",
		Message: ErrUnsupportedFeature.New(feature).Error(),
	})
}

func (c *mysqlConverter) convert(stmt sqlparser.Statement) ([]*sql.Action, error) {
	switch n := stmt.(type) {
	default:
		if c.opts.Mode == sql.Lenient {
			return nil, nil
		}
		return nil, ErrUnsupportedSyntax.New(sqlparser.String(n))
	case *sqlparser.Select:
		return c.convertSelect(n)
	case *sqlparser.Insert:
		return c.convertInsert(n)
	case *sqlparser.Update:
		return c.convertUpdate(n)
	case *sqlparser.Delete:
		return c.convertDelete(n)
	}
}

func (c *mysqlConverter) convertSelect(s *sqlparser.Select) ([]*sql.Action, error) {
	columns, err := c.selectExprsToExpressions(s.SelectExprs)
	if err != nil {
		return nil, err
	}

	params := sql.Params{
		"columns":  columns,
		"distinct": s.Distinct != "",
	}
	sel := sql.NewAction(sql.OpSelect, params)
	actions := []*sql.Action{sel}

	joins, err := c.tableExprsToJoins(sel, s.From)
	if err != nil {
		return nil, err
	}
	actions = append(actions, joins...)

	if s.Where != nil {
		cond, err := c.exprToExpression(s.Where.Expr)
		if err != nil {
			return nil, err
		}
		actions = append(actions, sql.NewAction(sql.OpWhere, sql.Params{"condition": cond}))
	}

	if len(s.GroupBy) > 0 {
		var fields []interface{}
		for _, g := range s.GroupBy {
			col, ok := g.(*sqlparser.ColName)
			if !ok {
				if c.opts.Mode == sql.Lenient {
					continue
				}
				return nil, c.unsupported("GROUP BY expression " + sqlparser.String(g))
			}
			fields = append(fields, colName(col))
		}
		actions = append(actions, sql.NewAction(sql.OpGroupBy, sql.Params{"fields": fields}))
	}

	if s.Having != nil {
		cond, err := c.exprToExpression(s.Having.Expr)
		if err != nil {
			return nil, err
		}
		actions = append(actions, sql.NewAction(sql.OpHaving, sql.Params{"condition": cond}))
	}

	orders, err := c.orderByToActions(s.OrderBy)
	if err != nil {
		return nil, err
	}
	actions = append(actions, orders...)

	if s.Limit != nil {
		if s.Limit.Rowcount != nil {
			n, err := c.count(s.Limit.Rowcount, "LIMIT")
			if err != nil {
				return nil, err
			}
			actions = append(actions, sql.NewAction(sql.OpLimit, sql.Params{"count": n}))
		}

		if s.Limit.Offset != nil {
			n, err := c.count(s.Limit.Offset, "OFFSET")
			if err != nil {
				return nil, err
			}
			actions = append(actions, sql.NewAction(sql.OpOffset, sql.Params{"count": n}))
		}
	}

	return actions, nil
}

// tableExprsToJoins sets the FROM table of the SELECT and returns one JOIN
// action per joined table. Comma separated tables are cross joined.
func (c *mysqlConverter) tableExprsToJoins(sel *sql.Action, te sqlparser.TableExprs) ([]*sql.Action, error) {
	var joins []*sql.Action
	for i, t := range te {
		js, err := c.tableExprToJoins(sel, t, i == 0)
		if err != nil {
			return nil, err
		}
		joins = append(joins, js...)
	}
	return joins, nil
}

func (c *mysqlConverter) tableExprToJoins(sel *sql.Action, te sqlparser.TableExpr, first bool) ([]*sql.Action, error) {
	switch t := te.(type) {
	default:
		return nil, ErrUnsupportedSyntax.New(sqlparser.String(te))
	case *sqlparser.AliasedTableExpr:
		name, err := c.tableName(t)
		if err != nil {
			return nil, err
		}

		if first {
			if name == "dual" {
				return nil, nil
			}
			sel.Params["from"] = name
			if !t.As.IsEmpty() {
				sel.Params["alias"] = t.As.String()
			}
			return nil, nil
		}

		params := sql.Params{"right": name, "type": CrossJoin}
		if !t.As.IsEmpty() {
			params["alias"] = t.As.String()
		}
		return []*sql.Action{sql.NewAction(sql.OpJoin, params)}, nil
	case *sqlparser.ParenTableExpr:
		return c.tableExprsToJoins(sel, t.Exprs)
	case *sqlparser.JoinTableExpr:
		left, err := c.tableExprToJoins(sel, t.LeftExpr, first)
		if err != nil {
			return nil, err
		}

		right, ok := t.RightExpr.(*sqlparser.AliasedTableExpr)
		if !ok {
			return nil, ErrUnsupportedSyntax.New(sqlparser.String(t.RightExpr))
		}

		name, err := c.tableName(right)
		if err != nil {
			return nil, err
		}

		typ, err := c.joinType(t)
		if err != nil {
			return nil, err
		}

		params := sql.Params{"right": name, "type": typ}
		if !right.As.IsEmpty() {
			params["alias"] = right.As.String()
		}

		switch {
		case t.Condition.On != nil:
			cond, err := c.exprToExpression(t.Condition.On)
			if err != nil {
				return nil, err
			}
			params["on"] = cond
		case len(t.Condition.Using) > 0:
			var using []interface{}
			for _, col := range t.Condition.Using {
				using = append(using, col.String())
			}
			params["using"] = using
		default:
			params["type"] = CrossJoin
		}

		return append(left, sql.NewAction(sql.OpJoin, params)), nil
	}
}

func (c *mysqlConverter) joinType(t *sqlparser.JoinTableExpr) (string, error) {
	switch t.Join {
	case sqlparser.JoinStr, sqlparser.StraightJoinStr:
		return InnerJoin, nil
	case sqlparser.LeftJoinStr:
		return LeftJoin, nil
	case sqlparser.RightJoinStr:
		return RightJoin, nil
	default:
		return "", c.unsupported(t.Join)
	}
}

func (c *mysqlConverter) tableName(t *sqlparser.AliasedTableExpr) (string, error) {
	switch e := t.Expr.(type) {
	case sqlparser.TableName:
		if e.Qualifier.IsEmpty() {
			return e.Name.String(), nil
		}
		return e.Qualifier.String() + "." + e.Name.String(), nil
	case *sqlparser.Subquery:
		return "", c.unsupported("subquery in FROM")
	default:
		return "", ErrUnsupportedSyntax.New(sqlparser.String(t))
	}
}

func (c *mysqlConverter) orderByToActions(ob sqlparser.OrderBy) ([]*sql.Action, error) {
	var actions []*sql.Action
	for _, o := range ob {
		e, err := c.exprToExpression(o.Expr)
		if err != nil {
			return nil, err
		}

		var direction string
		switch o.Direction {
		default:
			return nil, ErrInvalidSortOrder.New(o.Direction)
		case sqlparser.AscScr:
			direction = Ascending
		case sqlparser.DescScr:
			direction = Descending
		}

		params := sql.Params{"direction": direction}
		if id, ok := e.(*expression.Identifier); ok {
			params["column"] = id.Name
		} else {
			params["column"] = e.String()
			params["expression"] = e
		}
		actions = append(actions, sql.NewAction(sql.OpOrderBy, params))
	}
	return actions, nil
}

func (c *mysqlConverter) count(e sqlparser.Expr, clause string) (int64, error) {
	v, ok := e.(*sqlparser.SQLVal)
	if !ok || v.Type != sqlparser.IntVal {
		return 0, c.unsupported(clause + " with non-integer literal")
	}
	return strconv.ParseInt(string(v.Val), 10, 64)
}

func (c *mysqlConverter) convertInsert(i *sqlparser.Insert) ([]*sql.Action, error) {
	if i.Action != sqlparser.InsertStr {
		return nil, c.unsupported(i.Action)
	}

	params := sql.Params{"target": tableNameString(i.Table)}
	var columns []interface{}
	for _, col := range i.Columns {
		columns = append(columns, col.String())
	}
	if len(columns) > 0 {
		params["columns"] = columns
	}

	values, ok := i.Rows.(sqlparser.Values)
	if !ok {
		return nil, c.unsupported("INSERT ... SELECT")
	}

	ctx := sql.NewEmptyContext()
	var rows []interface{}
	for _, tuple := range values {
		if len(columns) > 0 && len(tuple) != len(columns) {
			return nil, sql.ErrValue.New(fmt.Sprintf(
				"column count %d does not match value count %d", len(columns), len(tuple),
			))
		}

		row := make([]interface{}, len(tuple))
		for j, ve := range tuple {
			e, err := c.exprToExpression(ve)
			if err != nil {
				return nil, err
			}

			row[j], err = e.Eval(ctx, nil)
			if err != nil {
				return nil, err
			}
		}

		if len(columns) == 0 {
			rows = append(rows, row)
			continue
		}

		record := make(map[string]interface{}, len(row))
		for j, col := range columns {
			record[col.(string)] = row[j]
		}
		rows = append(rows, record)
	}

	params["values"] = rows
	return []*sql.Action{sql.NewAction(sql.OpInsert, params)}, nil
}

func (c *mysqlConverter) convertUpdate(u *sqlparser.Update) ([]*sql.Action, error) {
	target, err := c.singleTable(u.TableExprs)
	if err != nil {
		return nil, err
	}

	set := make(map[string]interface{}, len(u.Exprs))
	for _, ue := range u.Exprs {
		e, err := c.exprToExpression(ue.Expr)
		if err != nil {
			return nil, err
		}
		set[colName(ue.Name)] = e
	}

	params := sql.Params{"target": target, "set": set}
	if u.Where != nil {
		cond, err := c.exprToExpression(u.Where.Expr)
		if err != nil {
			return nil, err
		}
		params["where"] = cond
	}

	return []*sql.Action{sql.NewAction(sql.OpUpdate, params)}, nil
}

func (c *mysqlConverter) convertDelete(d *sqlparser.Delete) ([]*sql.Action, error) {
	target, err := c.singleTable(d.TableExprs)
	if err != nil {
		return nil, err
	}

	params := sql.Params{"target": target}
	if d.Where != nil {
		cond, err := c.exprToExpression(d.Where.Expr)
		if err != nil {
			return nil, err
		}
		params["where"] = cond
	}

	return []*sql.Action{sql.NewAction(sql.OpDelete, params)}, nil
}

func (c *mysqlConverter) singleTable(te sqlparser.TableExprs) (string, error) {
	if len(te) != 1 {
		return "", c.unsupported("multiple tables")
	}

	t, ok := te[0].(*sqlparser.AliasedTableExpr)
	if !ok {
		return "", ErrUnsupportedSyntax.New(sqlparser.String(te[0]))
	}
	return c.tableName(t)
}

func tableNameString(t sqlparser.TableName) string {
	if t.Qualifier.IsEmpty() {
		return t.Name.String()
	}
	return t.Qualifier.String() + "." + t.Name.String()
}

func colName(c *sqlparser.ColName) string {
	if c.Qualifier.IsEmpty() {
		return c.Name.String()
	}
	return tableNameString(c.Qualifier) + "." + c.Name.String()
}

func (c *mysqlConverter) selectExprsToExpressions(se sqlparser.SelectExprs) ([]sql.Expression, error) {
	var exprs []sql.Expression
	for _, e := range se {
		pe, err := c.selectExprToExpression(e)
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, pe)
	}
	return exprs, nil
}

func (c *mysqlConverter) selectExprToExpression(se sqlparser.SelectExpr) (sql.Expression, error) {
	switch e := se.(type) {
	default:
		return nil, ErrUnsupportedSyntax.New(sqlparser.String(e))
	case *sqlparser.StarExpr:
		return expression.NewStar(), nil
	case *sqlparser.AliasedExpr:
		expr, err := c.exprToExpression(e.Expr)
		if err != nil {
			return nil, err
		}

		if e.As.IsEmpty() {
			return expr, nil
		}
		return expression.NewAlias(expr, e.As.String()), nil
	}
}

func (c *mysqlConverter) exprToExpression(e sqlparser.Expr) (sql.Expression, error) {
	switch v := e.(type) {
	default:
		return nil, ErrUnsupportedSyntax.New(sqlparser.String(e))
	case *sqlparser.ComparisonExpr:
		return c.comparisonExprToExpression(v)
	case *sqlparser.IsExpr:
		return c.isExprToExpression(v)
	case *sqlparser.NotExpr:
		child, err := c.exprToExpression(v.Expr)
		if err != nil {
			return nil, err
		}
		return expression.NewNot(child), nil
	case *sqlparser.SQLVal:
		return convertVal(v)
	case sqlparser.BoolVal:
		return expression.NewLiteral(bool(v)), nil
	case *sqlparser.NullVal:
		return expression.NewLiteral(nil), nil
	case *sqlparser.ColName:
		return expression.NewIdentifier(colName(v)), nil
	case *sqlparser.FuncExpr:
		exprs, err := c.funcArgs(v.Exprs)
		if err != nil {
			return nil, err
		}

		name := strings.ToUpper(v.Name.String())
		if expression.IsAggregateName(name) {
			if len(exprs) == 1 {
				if _, ok := exprs[0].(*expression.Star); ok && name == expression.Count {
					return expression.NewCountStar(), nil
				}
			}
			if len(exprs) != 1 {
				return nil, c.unsupported(fmt.Sprintf("%s with %d arguments", name, len(exprs)))
			}
			return expression.NewAggregate(name, exprs[0], v.Distinct), nil
		}
		return expression.NewFunction(name, exprs...), nil
	case *sqlparser.ParenExpr:
		return c.exprToExpression(v.Expr)
	case *sqlparser.AndExpr:
		lhs, err := c.exprToExpression(v.Left)
		if err != nil {
			return nil, err
		}
		rhs, err := c.exprToExpression(v.Right)
		if err != nil {
			return nil, err
		}
		return expression.NewAnd(lhs, rhs), nil
	case *sqlparser.OrExpr:
		lhs, err := c.exprToExpression(v.Left)
		if err != nil {
			return nil, err
		}
		rhs, err := c.exprToExpression(v.Right)
		if err != nil {
			return nil, err
		}
		return expression.NewOr(lhs, rhs), nil
	case *sqlparser.RangeCond:
		val, err := c.exprToExpression(v.Left)
		if err != nil {
			return nil, err
		}
		lower, err := c.exprToExpression(v.From)
		if err != nil {
			return nil, err
		}
		upper, err := c.exprToExpression(v.To)
		if err != nil {
			return nil, err
		}

		switch v.Operator {
		case sqlparser.BetweenStr:
			return expression.NewBetween(val, lower, upper), nil
		case sqlparser.NotBetweenStr:
			return expression.NewNot(expression.NewBetween(val, lower, upper)), nil
		default:
			return nil, c.unsupported("RangeCond with operator: " + v.Operator)
		}
	case *sqlparser.UnaryExpr:
		child, err := c.exprToExpression(v.Expr)
		if err != nil {
			return nil, err
		}

		switch v.Operator {
		case sqlparser.UMinusStr:
			if l, ok := child.(*expression.Literal); ok {
				return expression.NewLiteral(negate(l.Value())), nil
			}
			return expression.NewNegate(child), nil
		case sqlparser.UPlusStr:
			return child, nil
		case sqlparser.BangStr:
			return expression.NewNot(child), nil
		default:
			return nil, c.unsupported("unary operator " + v.Operator)
		}
	case *sqlparser.BinaryExpr:
		return c.binaryExprToExpression(v)
	}
}

func (c *mysqlConverter) funcArgs(se sqlparser.SelectExprs) ([]sql.Expression, error) {
	exprs := make([]sql.Expression, 0, len(se))
	for _, e := range se {
		pe, err := c.selectExprToExpression(e)
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, pe)
	}
	return exprs, nil
}

func convertVal(v *sqlparser.SQLVal) (sql.Expression, error) {
	switch v.Type {
	case sqlparser.StrVal:
		return expression.NewLiteral(string(v.Val)), nil
	case sqlparser.IntVal:
		val, err := strconv.ParseInt(string(v.Val), 10, 64)
		if err != nil {
			f, ferr := strconv.ParseFloat(string(v.Val), 64)
			if ferr != nil {
				return nil, err
			}
			return expression.NewLiteral(f), nil
		}
		return expression.NewLiteral(val), nil
	case sqlparser.FloatVal:
		val, err := strconv.ParseFloat(string(v.Val), 64)
		if err != nil {
			return nil, err
		}
		return expression.NewLiteral(val), nil
	case sqlparser.HexNum:
		s := strings.ToLower(string(v.Val))
		if strings.HasPrefix(s, "0x") {
			s = s[2:]
		} else if strings.HasPrefix(s, "x") {
			s = strings.Trim(s[1:], "'")
		}

		val, err := strconv.ParseInt(s, 16, 64)
		if err != nil {
			return nil, err
		}
		return expression.NewLiteral(val), nil
	case sqlparser.HexVal:
		val, err := v.HexDecode()
		if err != nil {
			return nil, err
		}
		return expression.NewLiteral(string(val)), nil
	case sqlparser.BitVal:
		return expression.NewLiteral(len(v.Val) > 0 && v.Val[0] == '1'), nil
	}

	return nil, ErrInvalidSQLValType.New(v.Type)
}

func (c *mysqlConverter) isExprToExpression(e *sqlparser.IsExpr) (sql.Expression, error) {
	child, err := c.exprToExpression(e.Expr)
	if err != nil {
		return nil, err
	}

	switch e.Operator {
	case sqlparser.IsNullStr:
		return expression.NewIsNull(child), nil
	case sqlparser.IsNotNullStr:
		return expression.NewIsNotNull(child), nil
	case sqlparser.IsTrueStr:
		return expression.NewEquals(child, expression.NewLiteral(true)), nil
	case sqlparser.IsFalseStr:
		return expression.NewEquals(child, expression.NewLiteral(false)), nil
	default:
		return nil, ErrUnsupportedSyntax.New(sqlparser.String(e))
	}
}

func (c *mysqlConverter) comparisonExprToExpression(e *sqlparser.ComparisonExpr) (sql.Expression, error) {
	left, err := c.exprToExpression(e.Left)
	if err != nil {
		return nil, err
	}

	if e.Operator == sqlparser.InStr || e.Operator == sqlparser.NotInStr {
		tuple, ok := e.Right.(sqlparser.ValTuple)
		if !ok {
			return nil, c.unsupported("IN with " + sqlparser.String(e.Right))
		}

		values := make([]sql.Expression, len(tuple))
		for i, v := range tuple {
			values[i], err = c.exprToExpression(v)
			if err != nil {
				return nil, err
			}
		}

		in := expression.NewIn(left, values...)
		if e.Operator == sqlparser.NotInStr {
			return expression.NewNot(in), nil
		}
		return in, nil
	}

	right, err := c.exprToExpression(e.Right)
	if err != nil {
		return nil, err
	}

	switch e.Operator {
	default:
		return nil, c.unsupported(e.Operator)
	case sqlparser.EqualStr, sqlparser.NullSafeEqualStr:
		return expression.NewEquals(left, right), nil
	case sqlparser.LessThanStr:
		return expression.NewLessThan(left, right), nil
	case sqlparser.LessEqualStr:
		return expression.NewLessThanOrEqual(left, right), nil
	case sqlparser.GreaterThanStr:
		return expression.NewGreaterThan(left, right), nil
	case sqlparser.GreaterEqualStr:
		return expression.NewGreaterThanOrEqual(left, right), nil
	case sqlparser.NotEqualStr:
		return expression.NewNotEquals(left, right), nil
	case sqlparser.LikeStr:
		return expression.NewLike(left, right), nil
	case sqlparser.NotLikeStr:
		return expression.NewNot(expression.NewLike(left, right)), nil
	case sqlparser.RegexpStr:
		return expression.NewFunction("REGEXP_LIKE", left, right), nil
	case sqlparser.NotRegexpStr:
		return expression.NewNot(expression.NewFunction("REGEXP_LIKE", left, right)), nil
	}
}

func (c *mysqlConverter) binaryExprToExpression(be *sqlparser.BinaryExpr) (sql.Expression, error) {
	var op string
	switch be.Operator {
	case sqlparser.PlusStr:
		op = expression.Plus
	case sqlparser.MinusStr:
		op = expression.Minus
	case sqlparser.MultStr:
		op = expression.Mult
	case sqlparser.DivStr:
		op = expression.Div
	case sqlparser.ModStr:
		op = expression.Mod
	default:
		return nil, c.unsupported(be.Operator)
	}

	l, err := c.exprToExpression(be.Left)
	if err != nil {
		return nil, err
	}
	r, err := c.exprToExpression(be.Right)
	if err != nil {
		return nil, err
	}
	return expression.NewBinary(op, l, r), nil
}
