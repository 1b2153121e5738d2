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
	"strconv"
	"strings"

	istrings "github.com/exonware/go-xwquery/internal/strings"
	"github.com/exonware/go-xwquery/sql"
	"github.com/exonware/go-xwquery/sql/expression"
	"github.com/exonware/go-xwquery/sql/parse"
)

// kqlFunctions maps function names to their KQL spelling.
var kqlFunctions = map[string]string{
	"LENGTH":    "strlen",
	"LEN":       "strlen",
	"UPPER":     "toupper",
	"LOWER":     "tolower",
	"CONCAT":    "strcat",
	"SUBSTRING": "substring",
	"SUBSTR":    "substring",
	"TRIM":      "trim",
	"ABS":       "abs",
	"ROUND":     "round",
	"FLOOR":     "floor",
	"CEIL":      "ceiling",
	"CEILING":   "ceiling",
	"ISNULL":    "isnull",
	"ISNOTNULL": "isnotnull",
	"ISEMPTY":   "isempty",
}

// kqlInfix are the functions written as infix string operators.
var kqlInfix = map[string]string{
	"CONTAINS":    "contains",
	"STARTSWITH":  "startswith",
	"ENDSWITH":    "endswith",
	"REGEXP_LIKE": "matches regex",
}

var kqlOperators = map[string]string{
	expression.Eq:    "==",
	expression.NotEq: "!=",
	expression.Lt:    "<",
	expression.LtEq:  "<=",
	expression.Gt:    ">",
	expression.GtEq:  ">=",
	expression.Plus:  "+",
	expression.Minus: "-",
	expression.Mult:  "*",
	expression.Div:   "/",
	expression.Mod:   "%",
	expression.And:   "and",
	expression.Or:    "or",
}

var kqlReserved = map[string]bool{
	"and": true, "or": true, "in": true, "between": true, "by": true,
	"asc": true, "desc": true, "true": true, "false": true, "nulls": true,
	"first": true, "last": true, "contains": true, "has": true,
	"startswith": true, "endswith": true, "matches": true,
}

var kqlJoinKinds = map[string]string{
	parse.InnerJoin: "inner",
	parse.LeftJoin:  "leftouter",
	parse.RightJoin: "rightouter",
	parse.FullJoin:  "fullouter",
}

// KQLGenerator renders actions as Kusto queries: the table followed by
// tabular operators.
type KQLGenerator struct{}

var _ Generator = (*KQLGenerator)(nil)

// NewKQLGenerator creates a new KQL generator.
func NewKQLGenerator() *KQLGenerator {
	return &KQLGenerator{}
}

// Dialect implements the Generator interface.
func (*KQLGenerator) Dialect() string { return "KQL" }

// Generate implements the Generator interface. Queries are separated by
// semicolons and placeholders are line comments.
func (g *KQLGenerator) Generate(ctx *sql.Context, actions []*sql.Action, opts Options) (string, error) {
	s := &state{
		dialect: g.Dialect(),
		opts:    opts,
		comment: func(text string) string { return "// " + strings.Replace(text, "\n", " ", -1) },
	}

	var out []string
	for _, stmt := range statements(actions) {
		s.comments = nil
		b := newKQLBuilder(s)
		text, err := b.build(stmt)
		if err != nil {
			return "", err
		}

		if len(s.comments) > 0 {
			text = strings.TrimSpace(text + "\n" + strings.Join(s.comments, "\n"))
		}
		if text != "" {
			out = append(out, text)
		}
	}
	return strings.Join(out, ";\n"), nil
}

// kqlBuilder turns a statement into a pipeline. The columns of a SELECT
// are projected last, unless DISTINCT or aggregation needs them earlier.
type kqlBuilder struct {
	s      *state
	prefix []string
	table  string
	ops    []string

	columns  []sql.Expression
	distinct bool
	// extra are aggregates the statement uses outside its columns.
	extra []*expression.Aggregate
	// aggregated maps aggregate calls to their output columns once the
	// rows are summarized.
	aggregated map[string]string

	limit     int64
	lastType  string
	projectAt int
}

func newKQLBuilder(s *state) *kqlBuilder {
	return &kqlBuilder{s: s, limit: -1, projectAt: -1}
}

func (b *kqlBuilder) build(stmt []*sql.Action) (string, error) {
	b.extra = b.outsideAggregates(stmt)

	for _, a := range stmt {
		if b.limit >= 0 && a.Type != sql.OpOffset {
			b.flushLimit()
		}
		if err := b.add(a); err != nil {
			return "", err
		}
		b.lastType = a.Type
	}

	b.flushLimit()
	if err := b.flushColumns(); err != nil {
		return "", err
	}

	if b.table == "" {
		if len(b.ops) > 0 {
			return "", sql.ErrValue.New("KQL requires a source table")
		}
		return strings.Join(b.prefix, "\n"), nil
	}

	sep := " | "
	if b.s.opts.Pretty {
		sep = "\n| "
	}

	query := strings.Join(append([]string{kqlName(b.table)}, b.ops...), sep)
	return strings.Join(append(b.prefix, query), "\n"), nil
}

// outsideAggregates returns the aggregates of HAVING and ORDER BY.
func (b *kqlBuilder) outsideAggregates(stmt []*sql.Action) []*expression.Aggregate {
	var exprs []sql.Expression
	for _, a := range stmt {
		switch a.Type {
		case sql.OpHaving:
			if cond, err := condition(a, "condition"); err == nil {
				exprs = append(exprs, cond)
			}
		case sql.OpOrderBy, sql.OpOrder:
			if e, ok := a.Params["expression"].(sql.Expression); ok {
				exprs = append(exprs, e)
			}
		}
	}
	return aggregates(exprs...)
}

func (b *kqlBuilder) op(text string) {
	b.ops = append(b.ops, text)
}

func (b *kqlBuilder) add(a *sql.Action) error {
	switch a.Type {
	case sql.OpSelect, sql.OpSequentialScan, sql.OpIndexScan:
		columns, err := fieldExpressions(a.Params["columns"])
		if err != nil {
			return err
		}
		b.table = a.Params.GetString("from")
		if !allStar(columns) {
			b.columns = columns
		}
		b.distinct = a.Params.GetBool("distinct")

		if _, ok := a.Params["ctes"]; ok {
			_, err := b.s.incompatible("common table expressions", nil)
			return err
		}
	case sql.OpWhere, sql.OpFilter:
		cond, err := condition(a, "condition", "path", "expression")
		if err != nil {
			return err
		}
		text, err := b.expr(cond)
		if err != nil || text == "" {
			return err
		}
		b.op("where " + text)
	case sql.OpGroupBy, sql.OpGroup:
		fields := a.Params.GetStrings("fields")
		if len(fields) == 0 {
			fields = a.Params.GetStrings("by")
		}
		aggs, err := fieldExpressions(a.Params["aggregates"])
		if err != nil {
			return err
		}
		return b.summarize(aggs, fields)
	case sql.OpAggregate, sql.OpSummarize:
		aggs, err := fieldExpressions(a.Params["aggregates"])
		if err != nil {
			return err
		}
		by := a.Params.GetStrings("by")
		if len(aggs) == 1 && len(by) == 0 && len(b.columns) == 0 {
			if alias, ok := aggs[0].(*expression.Alias); ok && alias.Name() == "Count" {
				if agg, ok := alias.Child.(*expression.Aggregate); ok && agg.IsStar() {
					b.op("count")
					b.aggregated = map[string]string{agg.String(): "Count"}
					return nil
				}
			}
		}
		return b.summarize(aggs, by)
	case sql.OpHaving:
		if err := b.flushAggregates(); err != nil {
			return err
		}
		cond, err := condition(a, "condition")
		if err != nil {
			return err
		}
		text, err := b.expr(cond)
		if err != nil || text == "" {
			return err
		}
		b.op("where " + text)
	case sql.OpProject:
		if err := b.flushColumns(); err != nil {
			return err
		}
		fields, err := fieldExpressions(a.Params["fields"])
		if err != nil {
			return err
		}
		list, err := b.fieldList(fields)
		if err != nil {
			return err
		}
		b.op("project " + list)
		b.projectAt = len(b.ops) - 1
	case sql.OpExtend:
		fields, err := fieldExpressions(a.Params["fields"])
		if err != nil {
			return err
		}
		list, err := b.fieldList(fields)
		if err != nil {
			return err
		}
		b.op("extend " + list)
	case sql.OpDistinct:
		switch {
		case b.lastType == sql.OpProject && b.projectAt == len(b.ops)-1:
			b.ops[b.projectAt] = "distinct " + strings.TrimPrefix(b.ops[b.projectAt], "project ")
		case len(b.columns) > 0:
			b.distinct = true
		default:
			b.op("distinct *")
		}
	case sql.OpOrderBy, sql.OpOrder:
		return b.orderBy(a)
	case sql.OpLimit:
		if err := b.flushBeforeSlice(); err != nil {
			return err
		}
		n, ok := a.Params.GetInt("count")
		if !ok {
			return sql.ErrValue.New("LIMIT requires a count")
		}
		if b.limit < 0 || n < b.limit {
			b.limit = n
		}
	case sql.OpOffset:
		if err := b.flushBeforeSlice(); err != nil {
			return err
		}
		n, ok := a.Params.GetInt("count")
		if !ok {
			return sql.ErrValue.New("OFFSET requires a count")
		}
		_, err := b.s.incompatible(fmt.Sprintf("OFFSET %d", n), func() (string, error) {
			b.op("serialize _row = row_number()")
			b.op(fmt.Sprintf("where _row > %d", n))
			b.op("project-away _row")
			return "-", nil
		})
		if err != nil {
			return err
		}
		b.flushLimit()
	case sql.OpJoin:
		return b.join(a)
	case sql.OpUnion:
		query := a.Params.GetString("query")
		if query == "" {
			query = a.Params.GetString("table")
		}
		if query == "" {
			_, err := b.s.unsupportedAction(a, nil)
			return err
		}
		b.op("union (" + query + ")")
	case sql.OpLet:
		return b.let(a)
	case sql.OpInsert:
		return b.insert(a)
	case sql.OpDelete:
		return b.delete(a)
	default:
		_, err := b.s.unsupportedAction(a, nil)
		return err
	}
	return nil
}

func (b *kqlBuilder) flushLimit() {
	if b.limit >= 0 {
		b.op("take " + strconv.FormatInt(b.limit, 10))
		b.limit = -1
	}
}

// summarize aggregates the rows by the given keys. Without explicit
// aggregates the ones of the columns are used.
func (b *kqlBuilder) summarize(aggs []sql.Expression, by []string) error {
	if len(aggs) == 0 {
		for _, agg := range aggregates(b.columns...) {
			aggs = append(aggs, b.aggregateColumn(agg))
		}
	}
	for _, agg := range b.extra {
		if _, ok := b.columnOf(aggs, agg); !ok {
			aggs = append(aggs, agg)
		}
	}

	b.aggregated = make(map[string]string)
	parts := make([]string, 0, len(aggs))
	names := make([]string, 0, len(by)+len(aggs))
	names = append(names, by...)
	for _, e := range aggs {
		text, name, err := b.aggregate(e)
		if err != nil {
			return err
		}
		if text != "" {
			parts = append(parts, text)
			names = append(names, name)
		}
	}

	text := "summarize"
	if len(parts) > 0 {
		text += " " + strings.Join(parts, ", ")
	}
	if len(by) > 0 {
		keys := make([]string, len(by))
		for i, k := range by {
			keys[i] = kqlName(k)
		}
		text += " by " + strings.Join(keys, ", ")
	}
	b.op(text)

	return b.replaceColumns(names)
}

// aggregateColumn finds the column of an aggregate in the SELECT list,
// keeping its alias.
func (b *kqlBuilder) aggregateColumn(agg *expression.Aggregate) sql.Expression {
	for _, c := range b.columns {
		if alias, ok := c.(*expression.Alias); ok && sql.ExpressionsEqual(alias.Child, agg) {
			return alias
		}
	}
	return agg
}

func (b *kqlBuilder) columnOf(aggs []sql.Expression, agg *expression.Aggregate) (string, bool) {
	for _, e := range aggs {
		if sql.ExpressionsEqual(expression.Unalias(e), agg) {
			return expression.ColumnName(e), true
		}
	}
	return "", false
}

// replaceColumns rewrites the pending columns in terms of the summarized
// ones. They are dropped when they are exactly the summarized columns.
func (b *kqlBuilder) replaceColumns(summarized []string) error {
	if len(b.columns) == 0 {
		return nil
	}

	columns := make([]sql.Expression, len(b.columns))
	for i, c := range b.columns {
		if alias, ok := c.(*expression.Alias); ok {
			if _, isAgg := alias.Child.(*expression.Aggregate); isAgg {
				columns[i] = expression.NewIdentifier(alias.Name())
				continue
			}
		}

		e, ok := replaceAggregates(c, b.aggregated)
		if !ok {
			if _, err := b.s.incompatible("column "+c.String(), nil); err != nil {
				return err
			}
			continue
		}
		columns[i] = e
	}

	var kept []sql.Expression
	for _, c := range columns {
		if c != nil {
			kept = append(kept, c)
		}
	}

	if names, ok := columnNames(kept); ok && equalStrings(names, summarized) && allPlain(kept) {
		b.columns = nil
		return nil
	}
	b.columns = kept
	return nil
}

func allPlain(columns []sql.Expression) bool {
	for _, c := range columns {
		if _, ok := c.(*expression.Identifier); !ok {
			return false
		}
	}
	return true
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// aggregate renders a summarize column and returns the name of its output.
func (b *kqlBuilder) aggregate(e sql.Expression) (string, string, error) {
	alias := ""
	if a, ok := e.(*expression.Alias); ok {
		alias = a.Name()
		e = a.Child
	}

	agg, ok := e.(*expression.Aggregate)
	if !ok {
		_, err := b.s.incompatible("aggregation "+e.String(), nil)
		return "", "", err
	}

	var call string
	fn := strings.ToLower(agg.Name)
	switch {
	case agg.IsStar():
		call = "count()"
	case agg.Distinct && agg.Name == expression.Count:
		fn = "dcount"
		fallthrough
	default:
		if agg.Distinct && fn != "dcount" {
			if err := b.s.approximate("DISTINCT in " + agg.String()); err != nil {
				return "", "", err
			}
		}
		arg, err := b.expr(agg.Arg)
		if err != nil {
			return "", "", err
		}
		call = fn + "(" + arg + ")"
	}

	name := kqlDefaultColumn(fn, agg)
	if alias == "" || alias == name {
		b.aggregated[agg.String()] = name
		return call, name, nil
	}

	b.aggregated[agg.String()] = alias
	return kqlName(alias) + " = " + call, alias, nil
}

// kqlDefaultColumn is the name KQL gives to an unnamed aggregation.
func kqlDefaultColumn(fn string, agg *expression.Aggregate) string {
	if agg.IsStar() {
		return "count_"
	}
	if id, ok := agg.Arg.(*expression.Identifier); ok {
		return fn + "_" + strings.Replace(id.Name, ".", "_", -1)
	}
	return fn + "_"
}

// flushAggregates summarizes the rows when the columns aggregate without
// a GROUP BY.
func (b *kqlBuilder) flushAggregates() error {
	if b.aggregated != nil || len(aggregates(b.columns...)) == 0 {
		return nil
	}
	return b.summarize(nil, nil)
}

// flushBeforeSlice applies the pending DISTINCT or aggregation, which
// come before LIMIT and OFFSET.
func (b *kqlBuilder) flushBeforeSlice() error {
	if b.distinct {
		return b.flushColumns()
	}
	return b.flushAggregates()
}

// flushColumns projects the pending SELECT columns.
func (b *kqlBuilder) flushColumns() error {
	if err := b.flushAggregates(); err != nil {
		return err
	}
	if len(b.columns) == 0 {
		if b.distinct {
			b.op("distinct *")
			b.distinct = false
		}
		return nil
	}

	list, err := b.fieldList(b.columns)
	if err != nil {
		return err
	}

	if b.distinct {
		b.op("distinct " + list)
	} else {
		b.op("project " + list)
	}
	b.columns, b.distinct = nil, false
	return nil
}

func (b *kqlBuilder) orderBy(a *sql.Action) error {
	if b.distinct || b.orderUsesAlias(a) {
		if err := b.flushColumns(); err != nil {
			return err
		}
	} else if err := b.flushAggregates(); err != nil {
		return err
	}

	var key string
	if e, ok := a.Params["expression"].(sql.Expression); ok {
		text, err := b.expr(e)
		if err != nil || text == "" {
			return err
		}
		key = text
	} else {
		column := a.Params.GetString("column")
		if column == "" {
			column = a.Params.GetString("field")
		}
		if column == "" {
			return sql.ErrValue.New("ORDER BY requires a column")
		}
		key = kqlName(column)
	}

	if strings.EqualFold(a.Params.GetString("direction"), parse.Descending) {
		key += " desc"
	} else {
		key += " asc"
	}
	if nulls := a.Params.GetString("nulls"); nulls != "" {
		key += " nulls " + strings.ToLower(nulls)
	}

	last := len(b.ops) - 1
	if (b.lastType == sql.OpOrderBy || b.lastType == sql.OpOrder) && last >= 0 && strings.HasPrefix(b.ops[last], "sort by ") {
		b.ops[last] += ", " + key
		return nil
	}
	b.op("sort by " + key)
	return nil
}

func (b *kqlBuilder) orderUsesAlias(a *sql.Action) bool {
	column := a.Params.GetString("column")
	for _, c := range b.columns {
		if alias, ok := c.(*expression.Alias); ok && alias.Name() == column {
			return true
		}
	}
	return false
}

func (b *kqlBuilder) fieldList(fields []sql.Expression) (string, error) {
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		if isStar(f) {
			continue
		}

		var (
			text string
			err  error
		)
		if alias, ok := f.(*expression.Alias); ok {
			text, err = b.expr(alias.Child)
			if text != "" {
				text = kqlName(alias.Name()) + " = " + text
			}
		} else {
			text, err = b.expr(f)
		}
		if err != nil {
			return "", err
		}
		if text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, ", "), nil
}

func (b *kqlBuilder) join(a *sql.Action) error {
	typ := strings.ToUpper(a.Params.GetString("type"))
	if typ == "" {
		typ = parse.InnerJoin
	}
	right := kqlName(a.Params.GetString("right"))

	kind, ok := kqlJoinKinds[typ]
	if !ok {
		_, err := b.s.incompatible(typ+" JOIN", nil)
		return err
	}

	var keys []string
	if using := a.Params.GetStrings("using"); len(using) > 0 {
		for _, u := range using {
			keys = append(keys, kqlName(u))
		}
	} else {
		on, shared, err := joinCondition(a.Params["on"])
		if err != nil {
			return err
		}
		if shared != "" {
			keys = append(keys, kqlName(shared))
		}
		for _, c := range expression.SplitConjunction(on) {
			key, err := b.joinKey(c)
			if err != nil {
				return err
			}
			if key != "" {
				keys = append(keys, key)
			}
		}
	}

	if len(keys) == 0 {
		return sql.ErrValue.New("JOIN requires a condition")
	}
	b.op("join kind=" + kind + " (" + right + ") on " + strings.Join(keys, ", "))
	return nil
}

// joinKey renders an equality of the join condition as $left.a == $right.b.
func (b *kqlBuilder) joinKey(e sql.Expression) (string, error) {
	eq, ok := e.(*expression.Binary)
	if ok && eq.Op == expression.Eq {
		l, lok := eq.Left.(*expression.Identifier)
		r, rok := eq.Right.(*expression.Identifier)
		if lok && rok {
			return "$left." + kqlName(l.Column()) + " == $right." + kqlName(r.Column()), nil
		}
	}
	return b.s.incompatible("join condition "+e.String(), nil)
}

// let renders a variable binding as a let statement before the query.
func (b *kqlBuilder) let(a *sql.Action) error {
	name := a.Params.GetString("name")
	if name == "" {
		return sql.ErrValue.New("LET requires a name")
	}

	var (
		text string
		err  error
	)
	switch v := a.Params["value"].(type) {
	case sql.Expression:
		text, err = b.expr(v)
	default:
		text, err = b.literal(v)
	}
	if err != nil || text == "" {
		return err
	}
	b.prefix = append(b.prefix, "let "+kqlName(name)+" = "+text+";")
	return nil
}

// insert renders an INSERT as an inline ingestion command.
func (b *kqlBuilder) insert(a *sql.Action) error {
	_, err := b.s.unsupportedAction(a, func() (string, error) {
		columns, rows, err := insertRows(a)
		if err != nil {
			return "", err
		}

		lines := make([]string, len(rows))
		for i, row := range rows {
			values := make([]string, len(row))
			for j, v := range row {
				switch v := v.(type) {
				case nil:
				case string:
					values[j] = istrings.Quote(v, '"')
				default:
					values[j] = fmt.Sprint(v)
				}
			}
			lines[i] = strings.Join(values, ",")
		}

		if len(columns) > 0 {
			lines = append([]string{strings.Join(columns, ",")}, lines...)
		}
		cmd := ".ingest inline into table " + kqlName(a.Params.GetString("target"))
		if len(columns) > 0 {
			cmd += ` with (format="csv", ignoreFirstRecord=true)`
		}
		b.prefix = append(b.prefix, cmd+" <|\n"+strings.Join(lines, "\n"))
		return "-", nil
	})
	return err
}

// delete renders a DELETE as a soft delete command.
func (b *kqlBuilder) delete(a *sql.Action) error {
	target := kqlName(a.Params.GetString("target"))
	where, err := condition(a, "where")
	if err != nil {
		return err
	}

	query := target
	if where != nil {
		text, err := b.expr(where)
		if err != nil {
			return err
		}
		query += " | where " + text
	}
	b.prefix = append(b.prefix, ".delete table "+target+" records <| "+query)
	return nil
}

func kqlName(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		if p == "*" || isSimpleName(p) && !kqlReserved[strings.ToLower(p)] {
			continue
		}
		parts[i] = istrings.Quote(p, '`')
	}
	return strings.Join(parts, ".")
}

func (b *kqlBuilder) literal(v interface{}) (string, error) {
	switch v := v.(type) {
	case nil:
		return b.s.incompatible("NULL literal", nil)
	case bool:
		return strconv.FormatBool(v), nil
	case string:
		r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`, "\t", `\t`)
		return `"` + r.Replace(v) + `"`, nil
	case []interface{}:
		parts := make([]string, len(v))
		for i, e := range v {
			text, err := b.literal(e)
			if err != nil {
				return "", err
			}
			parts[i] = text
		}
		return "dynamic([" + strings.Join(parts, ", ") + "])", nil
	default:
		return expression.FormatLiteral(v), nil
	}
}

// expr renders an expression. Aggregates are read from their summarized
// columns. An empty result means a placeholder was recorded.
func (b *kqlBuilder) expr(e sql.Expression) (string, error) {
	switch e := e.(type) {
	case nil:
		return "", nil
	case *expression.Literal:
		return b.literal(e.Value())
	case *expression.Identifier:
		return kqlName(e.Name), nil
	case *expression.Star:
		return "*", nil
	case *expression.Alias:
		return b.expr(e.Child)
	case *expression.Aggregate:
		if name, ok := b.aggregated[e.String()]; ok {
			return kqlName(name), nil
		}
		return b.s.incompatible("aggregate "+e.String()+" outside summarize", nil)
	case *expression.Binary:
		return b.binary(e)
	case *expression.Unary:
		child, err := b.expr(e.Child)
		if err != nil || child == "" {
			return "", err
		}
		if e.Op == expression.Not {
			return "not(" + child + ")", nil
		}
		return "-" + b.wrap(e.Child, child), nil
	case *expression.In:
		left, err := b.expr(e.Left)
		if err != nil || left == "" {
			return "", err
		}
		values, err := b.list(e.Values)
		if err != nil {
			return "", err
		}
		return b.wrap(e.Left, left) + " in (" + values + ")", nil
	case *expression.Between:
		parts := make([]string, 3)
		for i, c := range []sql.Expression{e.Val, e.Lower, e.Upper} {
			text, err := b.expr(c)
			if err != nil || text == "" {
				return "", err
			}
			parts[i] = b.wrap(c, text)
		}
		return parts[0] + " between (" + parts[1] + " .. " + parts[2] + ")", nil
	case *expression.Function:
		args := make([]string, len(e.Args))
		for i, a := range e.Args {
			text, err := b.expr(a)
			if err != nil || text == "" {
				return "", err
			}
			args[i] = b.wrap(a, text)
		}

		if op, ok := kqlInfix[e.Name]; ok && len(args) == 2 {
			return args[0] + " " + op + " " + args[1], nil
		}

		name, ok := kqlFunctions[e.Name]
		if !ok {
			name = strings.ToLower(e.Name)
		}
		return name + "(" + strings.Join(args, ", ") + ")", nil
	default:
		return b.s.incompatible("expression "+e.String(), nil)
	}
}

func (b *kqlBuilder) list(values []sql.Expression) (string, error) {
	parts := make([]string, 0, len(values))
	for _, v := range values {
		text, err := b.expr(v)
		if err != nil {
			return "", err
		}
		if text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, ", "), nil
}

func (b *kqlBuilder) binary(e *expression.Binary) (string, error) {
	left, err := b.expr(e.Left)
	if err != nil || left == "" {
		return "", err
	}

	switch e.Op {
	case expression.IsNull:
		return "isnull(" + left + ")", nil
	case expression.IsNotNull:
		return "isnotnull(" + left + ")", nil
	case expression.LikeOp:
		return b.like(e, left)
	}

	op, ok := kqlOperators[e.Op]
	if !ok {
		return b.s.incompatible("operator "+e.Op, nil)
	}

	right, err := b.expr(e.Right)
	if err != nil || right == "" {
		return "", err
	}
	return b.wrap(e.Left, left) + " " + op + " " + b.wrap(e.Right, right), nil
}

// like maps LIKE patterns to string operators, and any other pattern to a
// regular expression.
func (b *kqlBuilder) like(e *expression.Binary, left string) (string, error) {
	lit, ok := e.Right.(*expression.Literal)
	pattern, isString := "", false
	if ok {
		pattern, isString = lit.Value().(string)
	}
	if !isString {
		return b.s.incompatible("LIKE with a non constant pattern", nil)
	}

	left = b.wrap(e.Left, left)
	body := strings.Trim(pattern, "%")
	if !strings.ContainsAny(body, "%_") {
		quoted, _ := b.literal(body)
		prefix, suffix := strings.HasPrefix(pattern, "%"), strings.HasSuffix(pattern, "%")
		switch {
		case prefix && suffix:
			return left + " contains " + quoted, nil
		case suffix:
			return left + " startswith " + quoted, nil
		case prefix:
			return left + " endswith " + quoted, nil
		default:
			return left + " == " + quoted, nil
		}
	}

	quoted, _ := b.literal(likeToRegexp(pattern))
	return left + " matches regex " + quoted, nil
}

// likeToRegexp converts a LIKE pattern to an anchored regular expression.
func likeToRegexp(pattern string) string {
	var sb strings.Builder
	sb.WriteString("^")
	for _, r := range pattern {
		switch r {
		case '%':
			sb.WriteString(".*")
		case '_':
			sb.WriteString(".")
		default:
			if strings.ContainsRune(`\.+*?()|[]{}^$`, r) {
				sb.WriteRune('\\')
			}
			sb.WriteRune(r)
		}
	}
	sb.WriteString("$")
	return sb.String()
}

func (b *kqlBuilder) wrap(e sql.Expression, text string) string {
	switch e := e.(type) {
	case *expression.Binary:
		if e.Op != expression.IsNull && e.Op != expression.IsNotNull && e.Op != expression.LikeOp {
			return "(" + text + ")"
		}
	case *expression.In, *expression.Between:
		return "(" + text + ")"
	case *expression.Function:
		if _, ok := kqlInfix[e.Name]; ok && len(e.Args) == 2 {
			return "(" + text + ")"
		}
	}
	return text
}
