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
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/jinzhu/inflection"

	istrings "github.com/exonware/go-xwquery/internal/strings"
	"github.com/exonware/go-xwquery/sql"
	"github.com/exonware/go-xwquery/sql/expression"
)

// xpathFunctions maps function names to their XPath spelling.
var xpathFunctions = map[string]string{
	"STARTSWITH":  "starts-with",
	"ENDSWITH":    "ends-with",
	"LENGTH":      "string-length",
	"LEN":         "string-length",
	"CONTAINS":    "contains",
	"UPPER":       "upper-case",
	"LOWER":       "lower-case",
	"TRIM":        "normalize-space",
	"CONCAT":      "concat",
	"SUBSTRING":   "substring",
	"SUBSTR":      "substring",
	"REPLACE":     "replace",
	"ROUND":       "round",
	"FLOOR":       "floor",
	"CEIL":        "ceiling",
	"CEILING":     "ceiling",
	"ABS":         "abs",
	"REGEXP_LIKE": "matches",
}

var xpathOperators = map[string]string{
	expression.Eq:    "=",
	expression.NotEq: "!=",
	expression.Lt:    "<",
	expression.LtEq:  "<=",
	expression.Gt:    ">",
	expression.GtEq:  ">=",
	expression.Plus:  "+",
	expression.Minus: "-",
	expression.Mult:  "*",
	expression.Div:   "div",
	expression.Mod:   "mod",
	expression.And:   "and",
	expression.Or:    "or",
}

// XPathGenerator renders SELECT statements as location paths over the
// rows of a table.
type XPathGenerator struct{}

var _ Generator = (*XPathGenerator)(nil)

// NewXPathGenerator creates a new XPath generator.
func NewXPathGenerator() *XPathGenerator {
	return &XPathGenerator{}
}

// Dialect implements the Generator interface.
func (*XPathGenerator) Dialect() string { return "XPath" }

// Generate implements the Generator interface. Every statement becomes one
// path expression on its own line.
func (g *XPathGenerator) Generate(ctx *sql.Context, actions []*sql.Action, opts Options) (string, error) {
	s := &state{
		dialect: g.Dialect(),
		opts:    opts,
		comment: func(text string) string { return "(: " + strings.Replace(text, ":)", ": )", -1) + " :)" },
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
	return strings.Join(out, "\n"), nil
}

// xpathQuery is the location path of a statement under construction.
type xpathQuery struct {
	table      string
	columns    []sql.Expression
	predicates []string
	distinct   bool
	limit      int64
	offset     int64
}

func (g *XPathGenerator) statement(s *state, stmt []*sql.Action) (string, error) {
	q := &xpathQuery{limit: -1, offset: -1}
	for _, a := range stmt {
		if err := g.add(s, q, a); err != nil {
			return "", err
		}
	}

	if q.table == "" {
		if len(s.comments) > 0 {
			return "", nil
		}
		return "", sql.ErrValue.New("XPath requires a source table")
	}
	return g.render(s, q)
}

func (g *XPathGenerator) add(s *state, q *xpathQuery, a *sql.Action) error {
	switch a.Type {
	case sql.OpSelect, sql.OpSequentialScan, sql.OpIndexScan:
		columns, err := fieldExpressions(a.Params["columns"])
		if err != nil {
			return err
		}
		q.table = a.Params.GetString("from")
		q.columns = columns
		q.distinct = a.Params.GetBool("distinct")

		if _, ok := a.Params["ctes"]; ok {
			_, err := s.incompatible("common table expressions", nil)
			return err
		}
	case sql.OpWhere, sql.OpFilter:
		cond, err := condition(a, "condition", "path", "expression")
		if err != nil {
			return err
		}
		if q.limit >= 0 || q.offset >= 0 {
			_, err := s.incompatible("filter after a position", nil)
			return err
		}

		for _, c := range expression.SplitConjunction(cond) {
			text, err := g.expr(s, c)
			if err != nil {
				return err
			}
			if text != "" {
				q.predicates = append(q.predicates, text)
			}
		}
	case sql.OpLimit:
		n, ok := a.Params.GetInt("count")
		if !ok {
			return sql.ErrValue.New("LIMIT requires a count")
		}
		if q.limit < 0 || n < q.limit {
			q.limit = n
		}
	case sql.OpOffset:
		n, ok := a.Params.GetInt("count")
		if !ok {
			return sql.ErrValue.New("OFFSET requires a count")
		}
		if q.offset < 0 {
			q.offset = 0
		}
		q.offset += n
	case sql.OpProject:
		fields, err := fieldExpressions(a.Params["fields"])
		if err != nil {
			return err
		}
		if !allStar(q.columns) {
			_, err := s.unsupportedAction(a, nil)
			return err
		}
		q.columns = fields
	case sql.OpAggregate:
		aggs, err := fieldExpressions(a.Params["aggregates"])
		if err != nil {
			return err
		}
		if !allStar(q.columns) || len(a.Params.GetStrings("by")) > 0 {
			_, err := s.unsupportedAction(a, nil)
			return err
		}
		q.columns = aggs
	case sql.OpDistinct:
		q.distinct = true
	default:
		_, err := s.unsupportedAction(a, nil)
		return err
	}
	return nil
}

func (g *XPathGenerator) render(s *state, q *xpathQuery) (string, error) {
	path := xpathRowPath(q.table)
	for _, p := range q.predicates {
		path += "[" + p + "]"
	}

	position, err := g.position(s, q)
	if err != nil {
		return "", err
	}
	path += position

	if allStar(q.columns) {
		return g.distinct(s, q, path)
	}

	// A single aggregate wraps the path.
	if len(q.columns) == 1 {
		if agg, ok := expression.Unalias(q.columns[0]).(*expression.Aggregate); ok {
			return g.aggregate(s, agg, path)
		}
	}

	var paths []string
	for _, c := range q.columns {
		col := expression.Unalias(c)
		if _, ok := c.(*expression.Alias); ok {
			if err := s.approximate("column alias " + c.String()); err != nil {
				return "", err
			}
		}

		id, ok := col.(*expression.Identifier)
		if !ok {
			if _, err := s.incompatible("column expression "+col.String(), nil); err != nil {
				return "", err
			}
			continue
		}
		paths = append(paths, path+"/"+xpathName(id.Name))
	}

	if len(paths) > 1 {
		text, err := s.incompatible("selecting several columns", func() (string, error) {
			return strings.Join(paths, " | "), nil
		})
		if err != nil || text == "" {
			return text, err
		}
		return g.distinct(s, q, text)
	}
	if len(paths) == 0 {
		return g.distinct(s, q, path)
	}
	return g.distinct(s, q, paths[0])
}

func (g *XPathGenerator) distinct(s *state, q *xpathQuery, path string) (string, error) {
	if !q.distinct {
		return path, nil
	}

	text, err := s.incompatible("DISTINCT", func() (string, error) {
		return "distinct-values(" + path + ")", nil
	})
	if err != nil {
		return "", err
	}
	if text == "" {
		return path, nil
	}
	return text, nil
}

// position renders LIMIT and OFFSET as positional predicates. A single
// row is its position, anything else needs position().
func (g *XPathGenerator) position(s *state, q *xpathQuery) (string, error) {
	offset := q.offset
	if offset < 0 {
		offset = 0
	}

	switch {
	case q.limit < 0 && offset == 0:
		return "", nil
	case q.limit == 1:
		return "[" + strconv.FormatInt(offset+1, 10) + "]", nil
	}

	var cond string
	switch {
	case q.limit < 0:
		cond = fmt.Sprintf("position() > %d", offset)
	case offset == 0:
		cond = fmt.Sprintf("position() <= %d", q.limit)
	default:
		cond = fmt.Sprintf("position() > %d and position() <= %d", offset, offset+q.limit)
	}

	text, err := s.incompatible("row range", func() (string, error) { return "[" + cond + "]", nil })
	if err != nil {
		return "", err
	}
	return text, nil
}

func (g *XPathGenerator) aggregate(s *state, agg *expression.Aggregate, path string) (string, error) {
	if agg.Distinct {
		if err := s.approximate("DISTINCT aggregate"); err != nil {
			return "", err
		}
	}

	name := strings.ToLower(agg.Name)
	if agg.IsStar() {
		return name + "(" + path + ")", nil
	}

	id, ok := agg.Arg.(*expression.Identifier)
	if !ok {
		_, err := s.incompatible("aggregate of "+agg.Arg.String(), nil)
		return path, err
	}
	return name + "(" + path + "/" + xpathName(id.Name) + ")", nil
}

// xpathRowPath returns //table/row, the row step being the singular of the
// last table part. It is omitted when the singular is the table name.
func xpathRowPath(table string) string {
	parts := strings.Split(table, ".")
	for i, p := range parts {
		parts[i] = xpathStep(p)
	}

	last := strings.Split(table, ".")
	row := inflection.Singular(last[len(last)-1])
	path := "//" + strings.Join(parts, "/")
	if row != last[len(last)-1] {
		path += "/" + xpathStep(row)
	}
	return path
}

var xpathSimpleName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_-]*$`)

func xpathStep(name string) string {
	if xpathSimpleName.MatchString(name) && !xpathReserved(name) {
		return name
	}
	return istrings.Quote(name, '`')
}

func xpathReserved(name string) bool {
	switch strings.ToLower(name) {
	case "and", "or", "div", "mod":
		return true
	}
	return false
}

// xpathName renders a dotted field name as a relative path.
func xpathName(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = xpathStep(p)
	}
	return strings.Join(parts, "/")
}

func xpathLiteral(s *state, v interface{}) (string, error) {
	switch v := v.(type) {
	case nil:
		return s.incompatible("NULL literal", func() (string, error) { return "''", nil })
	case bool:
		if v {
			return "true()", nil
		}
		return "false()", nil
	case string:
		return istrings.Quote(strings.Replace(v, `\`, `\\`, -1), '\''), nil
	case []interface{}:
		return s.incompatible("list literal", nil)
	default:
		return expression.FormatLiteral(v), nil
	}
}

// expr renders a predicate expression. An empty result means the
// expression was replaced by a placeholder.
func (g *XPathGenerator) expr(s *state, e sql.Expression) (string, error) {
	switch e := e.(type) {
	case *expression.Literal:
		return xpathLiteral(s, e.Value())
	case *expression.Identifier:
		return xpathName(e.Name), nil
	case *expression.Alias:
		return g.expr(s, e.Child)
	case *expression.Binary:
		return g.binary(s, e)
	case *expression.Unary:
		child, err := g.expr(s, e.Child)
		if err != nil || child == "" {
			return "", err
		}
		if e.Op == expression.Not {
			return "not(" + child + ")", nil
		}
		return "-" + g.wrap(e.Child, child), nil
	case *expression.In:
		left, err := g.expr(s, e.Left)
		if err != nil || left == "" {
			return "", err
		}

		var terms []string
		for _, v := range e.Values {
			text, err := g.expr(s, v)
			if err != nil {
				return "", err
			}
			if text != "" {
				terms = append(terms, g.wrap(e.Left, left)+" = "+text)
			}
		}
		if len(terms) == 0 {
			return "false()", nil
		}
		if len(terms) == 1 {
			return terms[0], nil
		}
		return "(" + strings.Join(terms, " or ") + ")", nil
	case *expression.Between:
		parts := make([]string, 3)
		for i, c := range []sql.Expression{e.Val, e.Lower, e.Upper} {
			text, err := g.expr(s, c)
			if err != nil || text == "" {
				return "", err
			}
			parts[i] = g.wrap(c, text)
		}
		return "(" + parts[0] + " >= " + parts[1] + " and " + parts[0] + " <= " + parts[2] + ")", nil
	case *expression.Function:
		args := make([]string, len(e.Args))
		for i, a := range e.Args {
			text, err := g.expr(s, a)
			if err != nil || text == "" {
				return "", err
			}
			args[i] = text
		}

		name, ok := xpathFunctions[e.Name]
		if !ok {
			name = strings.ToLower(e.Name)
		}
		return name + "(" + strings.Join(args, ", ") + ")", nil
	case *expression.Aggregate:
		return s.incompatible("aggregate in a predicate", nil)
	default:
		return s.incompatible("expression "+e.String(), nil)
	}
}

func (g *XPathGenerator) binary(s *state, e *expression.Binary) (string, error) {
	left, err := g.expr(s, e.Left)
	if err != nil || left == "" {
		return "", err
	}

	switch e.Op {
	case expression.IsNull:
		return "not(" + left + ")", nil
	case expression.IsNotNull:
		return left, nil
	case expression.LikeOp:
		return g.like(s, e, left)
	}

	op, ok := xpathOperators[e.Op]
	if !ok {
		return s.incompatible("operator "+e.Op, nil)
	}

	right, err := g.expr(s, e.Right)
	if err != nil || right == "" {
		return "", err
	}
	return g.wrap(e.Left, left) + " " + op + " " + g.wrap(e.Right, right), nil
}

// like turns LIKE patterns with a single wildcard run at either end into
// string functions.
func (g *XPathGenerator) like(s *state, e *expression.Binary, left string) (string, error) {
	lit, ok := e.Right.(*expression.Literal)
	pattern, isString := "", false
	if ok {
		pattern, isString = lit.Value().(string)
	}
	if !isString {
		return s.incompatible("LIKE with a non constant pattern", nil)
	}

	body := strings.Trim(pattern, "%")
	if strings.ContainsAny(body, "%_") {
		return s.incompatible("LIKE pattern "+pattern, nil)
	}

	quoted, err := xpathLiteral(s, body)
	if err != nil {
		return "", err
	}

	prefix, suffix := strings.HasPrefix(pattern, "%"), strings.HasSuffix(pattern, "%")
	switch {
	case prefix && suffix:
		return "contains(" + left + ", " + quoted + ")", nil
	case suffix:
		return "starts-with(" + left + ", " + quoted + ")", nil
	case prefix:
		return "ends-with(" + left + ", " + quoted + ")", nil
	default:
		return left + " = " + quoted, nil
	}
}

// wrap parenthesizes the rendering of compound operands.
func (g *XPathGenerator) wrap(e sql.Expression, text string) string {
	switch e := e.(type) {
	case *expression.Binary:
		if e.Op != expression.IsNotNull {
			return "(" + text + ")"
		}
	}
	return text
}
