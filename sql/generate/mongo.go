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
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/exonware/go-xwquery/sql"
	"github.com/exonware/go-xwquery/sql/expression"
	"github.com/exonware/go-xwquery/sql/parse"
)

// mdoc is a document with ordered keys.
type mdoc []mfield

type mfield struct {
	key   string
	value interface{}
}

func (d mdoc) get(key string) (interface{}, bool) {
	for _, f := range d {
		if f.key == key {
			return f.value, true
		}
	}
	return nil, false
}

func (d mdoc) operators() bool {
	if len(d) == 0 {
		return false
	}
	for _, f := range d {
		if !strings.HasPrefix(f.key, "$") {
			return false
		}
	}
	return true
}

var (
	mongoComparisons = map[string]string{
		expression.Eq:    "$eq",
		expression.NotEq: "$ne",
		expression.Lt:    "$lt",
		expression.LtEq:  "$lte",
		expression.Gt:    "$gt",
		expression.GtEq:  "$gte",
	}

	mongoArithmetic = map[string]string{
		expression.Plus:  "$add",
		expression.Minus: "$subtract",
		expression.Mult:  "$multiply",
		expression.Div:   "$divide",
		expression.Mod:   "$mod",
	}

	mongoFunctions = map[string]string{
		"UPPER":     "$toUpper",
		"LOWER":     "$toLower",
		"LENGTH":    "$strLenCP",
		"LEN":       "$strLenCP",
		"CONCAT":    "$concat",
		"SUBSTRING": "$substrCP",
		"SUBSTR":    "$substrCP",
		"ABS":       "$abs",
		"CEIL":      "$ceil",
		"CEILING":   "$ceil",
		"FLOOR":     "$floor",
		"ROUND":     "$round",
		"SQRT":      "$sqrt",
		"POWER":     "$pow",
		"POW":       "$pow",
		"COALESCE":  "$ifNull",
		"IFNULL":    "$ifNull",
		"REVERSE":   "$reverseArray",
	}

	mongoAccumulators = map[string]string{
		expression.Sum: "$sum",
		expression.Avg: "$avg",
		expression.Min: "$min",
		expression.Max: "$max",
	}
)

// MongoGenerator renders actions as MongoDB shell calls.
type MongoGenerator struct{}

var _ Generator = (*MongoGenerator)(nil)

// NewMongoGenerator creates a new MongoDB generator.
func NewMongoGenerator() *MongoGenerator {
	return &MongoGenerator{}
}

// Dialect implements the Generator interface.
func (*MongoGenerator) Dialect() string { return "MongoDB" }

// Generate implements the Generator interface. A statement is a find,
// countDocuments or distinct call when it fits one, and an aggregation
// pipeline otherwise.
func (g *MongoGenerator) Generate(ctx *sql.Context, actions []*sql.Action, opts Options) (string, error) {
	s := &state{
		dialect: g.Dialect(),
		opts:    opts,
		comment: func(text string) string { return "/* " + strings.Replace(text, "*/", "* /", -1) + " */" },
	}

	var out []string
	for _, stmt := range statements(actions) {
		s.comments = nil
		b := &mongoBuilder{s: s, limit: -1}
		text, err := b.statement(stmt)
		if err != nil {
			return "", err
		}

		text = appendComments(text, s.comments, opts.Pretty)
		if text != "" {
			out = append(out, text)
		}
	}
	return strings.Join(out, ";\n"), nil
}

type mongoBuilder struct {
	s          *state
	collection string

	stages     []mdoc
	columns    []sql.Expression
	distinct   bool
	extra      []*expression.Aggregate
	aggregated map[string]string
	limit      int64
	lastType   string

	// rest are the actions after the one being added.
	rest []*sql.Action
}

func (b *mongoBuilder) statement(stmt []*sql.Action) (string, error) {
	switch stmt[0].Type {
	case sql.OpInsert, sql.OpUpdate, sql.OpDelete:
		text, err := b.write(stmt[0])
		if err != nil {
			return "", err
		}
		for _, a := range stmt[1:] {
			if _, err := b.s.unsupportedAction(a, nil); err != nil {
				return "", err
			}
		}
		return text, nil
	}

	if text, ok, err := b.find(stmt); ok || err != nil {
		return text, err
	}
	if text, ok, err := b.count(stmt); ok || err != nil {
		return text, err
	}
	if text, ok, err := b.distinctCall(stmt); ok || err != nil {
		return text, err
	}
	return b.pipeline(stmt)
}

func (b *mongoBuilder) source(a *sql.Action) bool {
	switch a.Type {
	case sql.OpSelect, sql.OpSequentialScan, sql.OpIndexScan:
	default:
		return false
	}
	if _, ok := a.Params["ctes"]; ok {
		return false
	}
	b.collection = a.Params.GetString("from")
	return b.collection != ""
}

func (b *mongoBuilder) call(method string, args ...string) string {
	return collectionRef(b.collection) + "." + method + "(" + strings.Join(args, ", ") + ")"
}

func collectionRef(name string) string {
	if isSimpleName(name) {
		return "db." + name
	}
	return "db.getCollection(" + mongoString(name) + ")"
}

// whereConditions joins the conditions of the leading WHERE actions.
func whereConditions(rest []*sql.Action) (sql.Expression, int, error) {
	var (
		cond sql.Expression
		i    int
	)
	for ; i < len(rest); i++ {
		a := rest[i]
		if a.Type != sql.OpWhere && a.Type != sql.OpFilter {
			break
		}
		c, err := condition(a, "condition", "path", "expression")
		if err != nil {
			return nil, 0, err
		}
		cond = expression.JoinAnd(cond, c)
	}
	return cond, i, nil
}

// find renders SELECT columns FROM c WHERE ... ORDER BY ... LIMIT OFFSET
// as a find call.
func (b *mongoBuilder) find(stmt []*sql.Action) (string, bool, error) {
	sel := stmt[0]
	if !b.source(sel) || sel.Params.GetBool("distinct") {
		return "", false, nil
	}

	columns, err := fieldExpressions(sel.Params["columns"])
	if err != nil {
		return "", false, err
	}
	var names []string
	if !allStar(columns) {
		for _, c := range columns {
			id, ok := c.(*expression.Identifier)
			if !ok {
				return "", false, nil
			}
			names = append(names, id.Name)
		}
	}

	cond, i, err := whereConditions(stmt[1:])
	if err != nil {
		return "", false, err
	}
	if cond != nil && expression.HasAggregate(cond) {
		return "", false, nil
	}

	var (
		sort          mdoc
		limit, offset = int64(-1), int64(-1)
	)
	for _, a := range stmt[1+i:] {
		switch a.Type {
		case sql.OpOrderBy, sql.OpOrder:
			if limit >= 0 || offset >= 0 || a.Params.Has("expression") || a.Params.Has("nulls") {
				return "", false, nil
			}
			sort = append(sort, mfield{a.Params.GetString("column"), sortDirection(a)})
		case sql.OpLimit:
			if limit >= 0 {
				return "", false, nil
			}
			limit, _ = a.Params.GetInt("count")
		case sql.OpOffset:
			if offset >= 0 {
				return "", false, nil
			}
			offset, _ = a.Params.GetInt("count")
		default:
			return "", false, nil
		}
	}

	filter, err := b.filter(cond)
	if err != nil {
		return "", true, err
	}

	args := []string{}
	if len(filter) > 0 || len(names) > 0 {
		args = append(args, mongoValue(filter))
	}
	if len(names) > 0 {
		projection := mdoc{}
		hasID := false
		for _, n := range names {
			projection = append(projection, mfield{n, 1})
			hasID = hasID || n == "_id"
		}
		if !hasID {
			projection = append(projection, mfield{"_id", 0})
		}
		args = append(args, mongoValue(projection))
	}

	text := b.call("find", args...)
	if len(sort) > 0 {
		text += ".sort(" + mongoValue(sort) + ")"
	}
	if offset >= 0 {
		text += fmt.Sprintf(".skip(%d)", offset)
	}
	if limit >= 0 {
		text += fmt.Sprintf(".limit(%d)", limit)
	}
	return text, true, nil
}

func sortDirection(a *sql.Action) int {
	if strings.EqualFold(a.Params.GetString("direction"), parse.Descending) {
		return -1
	}
	return 1
}

// count renders a filtered COUNT(*) as a countDocuments call.
func (b *mongoBuilder) count(stmt []*sql.Action) (string, bool, error) {
	sel := stmt[0]
	if !b.source(sel) || sel.Params.GetBool("distinct") {
		return "", false, nil
	}

	columns, err := fieldExpressions(sel.Params["columns"])
	if err != nil {
		return "", false, err
	}

	cond, i, err := whereConditions(stmt[1:])
	if err != nil {
		return "", false, err
	}
	rest := stmt[1+i:]

	switch {
	case allStar(columns) && len(rest) == 1 && rest[0].Type == sql.OpAggregate:
		aggs, err := fieldExpressions(rest[0].Params["aggregates"])
		if err != nil || len(aggs) != 1 || !isCountStar(aggs[0]) {
			return "", false, err
		}
	case len(rest) == 0 && len(columns) == 1 && isCountStar(columns[0]):
	default:
		return "", false, nil
	}

	filter, err := b.filter(cond)
	if err != nil {
		return "", true, err
	}
	if len(filter) == 0 {
		return b.call("countDocuments"), true, nil
	}
	return b.call("countDocuments", mongoValue(filter)), true, nil
}

// isCountStar reports whether e is COUNT(*), unnamed or named count.
func isCountStar(e sql.Expression) bool {
	if alias, ok := e.(*expression.Alias); ok {
		if alias.Name() != "count" {
			return false
		}
		e = alias.Child
	}
	agg, ok := e.(*expression.Aggregate)
	return ok && agg.IsStar()
}

// distinctCall renders SELECT DISTINCT column as a distinct call.
func (b *mongoBuilder) distinctCall(stmt []*sql.Action) (string, bool, error) {
	sel := stmt[0]
	if !b.source(sel) || !sel.Params.GetBool("distinct") {
		return "", false, nil
	}

	columns, err := fieldExpressions(sel.Params["columns"])
	if err != nil || len(columns) != 1 {
		return "", false, err
	}
	id, ok := columns[0].(*expression.Identifier)
	if !ok {
		return "", false, nil
	}

	cond, i, err := whereConditions(stmt[1:])
	if err != nil {
		return "", false, err
	}
	if i != len(stmt)-1 {
		return "", false, nil
	}

	filter, err := b.filter(cond)
	if err != nil {
		return "", true, err
	}

	args := []string{mongoString(id.Name)}
	if len(filter) > 0 {
		args = append(args, mongoValue(filter))
	}
	return b.call("distinct", args...), true, nil
}

// pipeline renders the statement as an aggregation pipeline.
func (b *mongoBuilder) pipeline(stmt []*sql.Action) (string, error) {
	b.extra = b.outsideAggregates(stmt)

	for i, a := range stmt {
		if b.limit >= 0 && a.Type != sql.OpOffset {
			b.flushLimit()
		}
		b.rest = stmt[i+1:]
		if err := b.add(a); err != nil {
			return "", err
		}
		b.lastType = a.Type
	}

	b.flushLimit()
	if err := b.flushColumns(); err != nil {
		return "", err
	}

	if b.collection == "" {
		return "", sql.ErrValue.New("MongoDB requires a source collection")
	}

	stages := make([]string, len(b.stages))
	for i, st := range b.stages {
		stages[i] = mongoValue(st)
	}

	if b.s.opts.Pretty && len(stages) > 0 {
		indent := b.s.opts.indent()
		return b.call("aggregate", "[\n"+indent+strings.Join(stages, ",\n"+indent)+"\n]"), nil
	}
	return b.call("aggregate", "["+strings.Join(stages, ", ")+"]"), nil
}

func (b *mongoBuilder) outsideAggregates(stmt []*sql.Action) []*expression.Aggregate {
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

func (b *mongoBuilder) stage(name string, value interface{}) {
	b.stages = append(b.stages, mdoc{{name, value}})
}

func (b *mongoBuilder) add(a *sql.Action) error {
	switch a.Type {
	case sql.OpSelect, sql.OpSequentialScan, sql.OpIndexScan:
		if !b.source(a) {
			_, err := b.s.unsupportedAction(a, nil)
			return err
		}
		columns, err := fieldExpressions(a.Params["columns"])
		if err != nil {
			return err
		}
		if !allStar(columns) {
			b.columns = columns
		}
		b.distinct = a.Params.GetBool("distinct")
	case sql.OpWhere, sql.OpFilter, sql.OpHaving:
		if a.Type == sql.OpHaving {
			if err := b.flushAggregates(); err != nil {
				return err
			}
		}
		cond, err := condition(a, "condition", "path", "expression")
		if err != nil {
			return err
		}
		if b.aggregated != nil {
			replaced, ok := replaceAggregates(cond, b.aggregated)
			if !ok {
				_, err := b.s.incompatible("condition "+cond.String(), nil)
				return err
			}
			cond = replaced
		}
		filter, err := b.filter(cond)
		if err != nil {
			return err
		}
		if len(filter) > 0 {
			b.stage("$match", filter)
		}
	case sql.OpGroupBy, sql.OpGroup:
		fields := a.Params.GetStrings("fields")
		if len(fields) == 0 {
			fields = a.Params.GetStrings("by")
		}
		aggs, err := fieldExpressions(a.Params["aggregates"])
		if err != nil {
			return err
		}
		return b.group(aggs, fields)
	case sql.OpAggregate, sql.OpSummarize:
		aggs, err := fieldExpressions(a.Params["aggregates"])
		if err != nil {
			return err
		}
		by := a.Params.GetStrings("by")
		if len(aggs) == 1 && len(by) == 0 && len(b.columns) == 0 {
			if alias, ok := aggs[0].(*expression.Alias); ok {
				if agg, ok := alias.Child.(*expression.Aggregate); ok && agg.IsStar() {
					b.stage("$count", alias.Name())
					b.aggregated = map[string]string{agg.String(): alias.Name()}
					return nil
				}
			}
		}
		return b.group(aggs, by)
	case sql.OpProject:
		if err := b.flushColumns(); err != nil {
			return err
		}
		fields, err := fieldExpressions(a.Params["fields"])
		if err != nil {
			return err
		}
		return b.project(fields)
	case sql.OpExtend:
		fields, err := fieldExpressions(a.Params["fields"])
		if err != nil {
			return err
		}
		doc := mdoc{}
		for _, f := range fields {
			v, err := b.aggExpr(expression.Unalias(f))
			if err != nil {
				return err
			}
			doc = append(doc, mfield{expression.ColumnName(f), v})
		}
		b.stage("$addFields", doc)
	case sql.OpDistinct:
		if len(b.columns) > 0 {
			b.distinct = true
			return nil
		}
		b.distinctStages(nil)
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
		b.stage("$skip", n)
		b.flushLimit()
	case sql.OpJoin:
		return b.join(a)
	case sql.OpUnion:
		coll := a.Params.GetString("table")
		if coll == "" {
			_, err := b.s.unsupportedAction(a, nil)
			return err
		}
		b.stage("$unionWith", coll)
	default:
		_, err := b.s.unsupportedAction(a, nil)
		return err
	}
	return nil
}

func (b *mongoBuilder) flushLimit() {
	if b.limit >= 0 {
		b.stage("$limit", b.limit)
		b.limit = -1
	}
}

func (b *mongoBuilder) flushBeforeSlice() error {
	if b.distinct {
		return b.flushColumns()
	}
	return b.flushAggregates()
}

func (b *mongoBuilder) flushAggregates() error {
	if b.aggregated != nil || len(aggregates(b.columns...)) == 0 {
		return nil
	}
	return b.group(nil, nil)
}

func (b *mongoBuilder) flushColumns() error {
	if err := b.flushAggregates(); err != nil {
		return err
	}
	if len(b.columns) == 0 {
		if b.distinct {
			b.distinctStages(nil)
			b.distinct = false
		}
		return nil
	}

	columns, distinct := b.columns, b.distinct
	b.columns, b.distinct = nil, false
	if err := b.project(columns); err != nil {
		return err
	}
	if distinct {
		names := make([]string, len(columns))
		for i, c := range columns {
			names[i] = expression.ColumnName(c)
		}
		b.distinctStages(names)
	}
	return nil
}

// distinctStages groups the documents by the given fields, or by the
// whole document, and promotes the key back to the root.
func (b *mongoBuilder) distinctStages(fields []string) {
	var id interface{} = "$$ROOT"
	if len(fields) > 0 {
		doc := mdoc{}
		for _, f := range fields {
			doc = append(doc, mfield{groupKey(f), "$" + f})
		}
		id = doc
	}
	b.stage("$group", mdoc{{"_id", id}})
	b.stage("$replaceRoot", mdoc{{"newRoot", "$_id"}})
}

func groupKey(field string) string {
	return strings.Replace(field, ".", "_", -1)
}

// group renders a $group stage. Without explicit aggregates the ones of
// the columns are used. The keys are restored as fields when a later
// stage reads them.
func (b *mongoBuilder) group(aggs []sql.Expression, by []string) error {
	if len(aggs) == 0 {
		for _, agg := range aggregates(b.columns...) {
			aggs = append(aggs, b.aggregateColumn(agg))
		}
	}
	for _, agg := range b.extra {
		found := false
		for _, e := range aggs {
			if sql.ExpressionsEqual(expression.Unalias(e), agg) {
				found = true
				break
			}
		}
		if !found {
			aggs = append(aggs, agg)
		}
	}

	var id interface{}
	switch len(by) {
	case 0:
	case 1:
		id = "$" + by[0]
	default:
		doc := mdoc{}
		for _, f := range by {
			doc = append(doc, mfield{groupKey(f), "$" + f})
		}
		id = doc
	}

	b.aggregated = make(map[string]string)
	spec := mdoc{{"_id", id}}
	var (
		names []string
		sizes mdoc
	)
	for _, e := range aggs {
		name, acc, size, err := b.accumulator(e)
		if err != nil {
			return err
		}
		if acc == nil {
			continue
		}
		spec = append(spec, mfield{name, acc})
		names = append(names, name)
		if size {
			sizes = append(sizes, mfield{name, mdoc{{"$size", "$" + name}}})
		}
	}
	b.stage("$group", spec)
	if len(sizes) > 0 {
		b.stage("$addFields", sizes)
	}

	if len(by) > 0 && (len(b.columns) > 0 || b.readsAny(by)) {
		restore := mdoc{{"_id", 0}}
		for _, f := range by {
			if len(by) == 1 {
				restore = append(restore, mfield{f, "$_id"})
			} else {
				restore = append(restore, mfield{f, "$_id." + groupKey(f)})
			}
		}
		for _, n := range names {
			restore = append(restore, mfield{n, 1})
		}
		b.stage("$project", restore)
	}

	return b.replaceColumns(append(append([]string{}, by...), names...))
}

// readsAny reports whether a later action reads one of the fields.
func (b *mongoBuilder) readsAny(fields []string) bool {
	want := make(map[string]bool, len(fields))
	for _, f := range fields {
		want[f] = true
	}

	for _, a := range b.rest {
		if want[a.Params.GetString("column")] {
			return true
		}
		var exprs []sql.Expression
		for _, key := range []string{"condition", "expression"} {
			if e, ok := a.Params[key].(sql.Expression); ok {
				exprs = append(exprs, e)
			}
		}
		if fs, err := fieldExpressions(a.Params["fields"]); err == nil {
			exprs = append(exprs, fs...)
		}
		for _, e := range exprs {
			for _, id := range expression.Identifiers(e) {
				if want[id] {
					return true
				}
			}
		}
	}
	return false
}

func (b *mongoBuilder) aggregateColumn(agg *expression.Aggregate) sql.Expression {
	for _, c := range b.columns {
		if alias, ok := c.(*expression.Alias); ok && sql.ExpressionsEqual(alias.Child, agg) {
			return alias
		}
	}
	return agg
}

// accumulator returns the output name and the accumulator of an
// aggregation. size is set for distinct counts, which collect a set whose
// size is the count.
func (b *mongoBuilder) accumulator(e sql.Expression) (string, interface{}, bool, error) {
	alias := ""
	if a, ok := e.(*expression.Alias); ok {
		alias = a.Name()
		e = a.Child
	}

	agg, ok := e.(*expression.Aggregate)
	if !ok {
		_, err := b.s.incompatible("aggregation "+e.String(), nil)
		return "", nil, false, err
	}

	name := alias
	if name == "" {
		name = mongoAggregateName(agg)
	}
	b.aggregated[agg.String()] = name

	if agg.IsStar() {
		return name, mdoc{{"$sum", 1}}, false, nil
	}

	arg, err := b.aggExpr(agg.Arg)
	if err != nil {
		return "", nil, false, err
	}

	if agg.Name == expression.Count {
		if agg.Distinct {
			return name, mdoc{{"$addToSet", arg}}, true, nil
		}
		cond := mdoc{{"$cond", []interface{}{mdoc{{"$ne", []interface{}{arg, nil}}}, 1, 0}}}
		return name, mdoc{{"$sum", cond}}, false, nil
	}

	if agg.Distinct {
		if err := b.s.approximate("DISTINCT in " + agg.String()); err != nil {
			return "", nil, false, err
		}
	}
	return name, mdoc{{mongoAccumulators[agg.Name], arg}}, false, nil
}

func mongoAggregateName(agg *expression.Aggregate) string {
	if agg.IsStar() {
		return "count"
	}
	name := strings.ToLower(agg.Name)
	if id, ok := agg.Arg.(*expression.Identifier); ok {
		return name + "_" + groupKey(id.Name)
	}
	return name
}

func (b *mongoBuilder) replaceColumns(grouped []string) error {
	if len(b.columns) == 0 {
		return nil
	}

	var columns []sql.Expression
	for _, c := range b.columns {
		if alias, ok := c.(*expression.Alias); ok {
			if _, isAgg := alias.Child.(*expression.Aggregate); isAgg {
				columns = append(columns, expression.NewIdentifier(alias.Name()))
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
		columns = append(columns, e)
	}

	if names, ok := columnNames(columns); ok && allPlain(columns) && equalStrings(names, grouped) {
		b.columns = nil
		return nil
	}
	b.columns = columns
	return nil
}

// project renders a $project stage. Plain fields are included, renamed
// fields read their source and anything else is computed.
func (b *mongoBuilder) project(fields []sql.Expression) error {
	doc := mdoc{}
	hasID := false
	for _, f := range fields {
		if isStar(f) {
			continue
		}

		name := expression.ColumnName(f)
		hasID = hasID || name == "_id"

		switch e := expression.Unalias(f).(type) {
		case *expression.Identifier:
			if e.Name == name {
				doc = append(doc, mfield{name, 1})
			} else {
				doc = append(doc, mfield{name, "$" + e.Name})
			}
		case *expression.Literal:
			doc = append(doc, mfield{name, projectLiteral(e.Value())})
		default:
			v, err := b.aggExpr(e)
			if err != nil {
				return err
			}
			doc = append(doc, mfield{name, v})
		}
	}

	if len(doc) == 0 {
		return nil
	}
	if !hasID {
		doc = append(doc, mfield{"_id", 0})
	}
	b.stage("$project", doc)
	return nil
}

// projectLiteral wraps constants that $project would read as inclusion
// flags or field paths.
func projectLiteral(v interface{}) interface{} {
	switch v := v.(type) {
	case bool, int, int64, float64:
		return mdoc{{"$literal", v}}
	case string:
		if strings.HasPrefix(v, "$") {
			return mdoc{{"$literal", v}}
		}
	}
	return v
}

func (b *mongoBuilder) orderBy(a *sql.Action) error {
	if b.distinct || b.orderUsesAlias(a) {
		if err := b.flushColumns(); err != nil {
			return err
		}
	} else if err := b.flushAggregates(); err != nil {
		return err
	}

	column := a.Params.GetString("column")
	if e, ok := a.Params["expression"].(sql.Expression); ok {
		if b.aggregated != nil {
			if replaced, ok := replaceAggregates(e, b.aggregated); ok {
				e = replaced
			}
		}
		id, ok := e.(*expression.Identifier)
		if !ok {
			_, err := b.s.incompatible("ORDER BY "+e.String(), nil)
			return err
		}
		column = id.Name
	}
	if column == "" {
		return sql.ErrValue.New("ORDER BY requires a column")
	}

	if a.Params.Has("nulls") {
		if err := b.s.approximate("NULLS " + a.Params.GetString("nulls")); err != nil {
			return err
		}
	}

	key := mfield{column, sortDirection(a)}
	last := len(b.stages) - 1
	if (b.lastType == sql.OpOrderBy || b.lastType == sql.OpOrder) && last >= 0 && b.stages[last][0].key == "$sort" {
		b.stages[last][0].value = append(b.stages[last][0].value.(mdoc), key)
		return nil
	}
	b.stage("$sort", mdoc{key})
	return nil
}

func (b *mongoBuilder) orderUsesAlias(a *sql.Action) bool {
	column := a.Params.GetString("column")
	for _, c := range b.columns {
		if alias, ok := c.(*expression.Alias); ok && alias.Name() == column {
			return true
		}
	}
	return false
}

// join renders an equi-join as $lookup followed by $unwind.
func (b *mongoBuilder) join(a *sql.Action) error {
	typ := strings.ToUpper(a.Params.GetString("type"))
	if typ == "" {
		typ = parse.InnerJoin
	}
	right := a.Params.GetString("right")
	as := a.Params.GetString("alias")
	if as == "" {
		as = right
	}

	if typ != parse.InnerJoin && typ != parse.LeftJoin {
		_, err := b.s.incompatible(typ+" JOIN", nil)
		return err
	}

	var local, foreign string
	if using := a.Params.GetStrings("using"); len(using) == 1 {
		local, foreign = using[0], using[0]
	} else {
		on, shared, err := joinCondition(a.Params["on"])
		if err != nil {
			return err
		}
		if shared != "" {
			local, foreign = shared, shared
		} else if eq, ok := on.(*expression.Binary); ok && eq.Op == expression.Eq {
			l, lok := eq.Left.(*expression.Identifier)
			r, rok := eq.Right.(*expression.Identifier)
			if lok && rok {
				local, foreign = l.Name, r.Name
				if l.Table() == right || l.Table() == as {
					local, foreign = foreign, local
				}
				local = stripQualifier(local, b.collection)
				foreign = stripQualifier(foreign, right, as)
			}
		}
	}

	if local == "" {
		_, err := b.s.incompatible("join condition", nil)
		return err
	}

	b.stage("$lookup", mdoc{
		{"from", right},
		{"localField", local},
		{"foreignField", foreign},
		{"as", as},
	})
	if typ == parse.LeftJoin {
		b.stage("$unwind", mdoc{{"path", "$" + as}, {"preserveNullAndEmptyArrays", true}})
	} else {
		b.stage("$unwind", "$"+as)
	}
	return nil
}

func stripQualifier(name string, qualifiers ...string) string {
	for _, q := range qualifiers {
		if q != "" && strings.HasPrefix(name, q+".") {
			return strings.TrimPrefix(name, q+".")
		}
	}
	return name
}

func (b *mongoBuilder) write(a *sql.Action) (string, error) {
	b.collection = a.Params.GetString("target")
	if b.collection == "" {
		return "", sql.ErrValue.New(a.Type + " requires a target")
	}

	limit, hasLimit := a.Params.GetInt("limit")
	if hasLimit && limit != 1 {
		if _, err := b.s.incompatible(fmt.Sprintf("%s with limit %d", a.Type, limit), nil); err != nil {
			return "", err
		}
	}
	one := hasLimit && limit == 1

	switch a.Type {
	case sql.OpInsert:
		columns, rows, err := insertRows(a)
		if err != nil {
			return "", err
		}
		if len(columns) == 0 {
			return "", sql.ErrValue.New("INSERT into a collection requires column names")
		}

		docs := make([]interface{}, len(rows))
		for i, row := range rows {
			doc := mdoc{}
			for j, c := range columns {
				if row[j] != nil {
					doc = append(doc, mfield{c, insertValue(row[j])})
				}
			}
			docs[i] = doc
		}

		if len(docs) == 1 {
			return b.call("insertOne", mongoValue(docs[0])), nil
		}
		return b.call("insertMany", mongoValue(docs)), nil
	case sql.OpUpdate:
		where, err := condition(a, "where")
		if err != nil {
			return "", err
		}
		filter, err := b.filter(where)
		if err != nil {
			return "", err
		}

		update, err := b.update(a)
		if err != nil {
			return "", err
		}

		method := "updateMany"
		if one {
			method = "updateOne"
		}
		return b.call(method, mongoValue(filter), update), nil
	default:
		where, err := condition(a, "where")
		if err != nil {
			return "", err
		}
		filter, err := b.filter(where)
		if err != nil {
			return "", err
		}

		method := "deleteMany"
		if one {
			method = "deleteOne"
		}
		return b.call(method, mongoValue(filter)), nil
	}
}

func insertValue(v interface{}) interface{} {
	if l, ok := v.(*expression.Literal); ok {
		return l.Value()
	}
	return v
}

// update renders the update document: constants go to $set, x = x + n to
// $inc. Other computed values need an update pipeline.
func (b *mongoBuilder) update(a *sql.Action) (string, error) {
	set, _ := a.Params["set"].(map[string]interface{})
	if len(set) == 0 {
		return "", sql.ErrValue.New("UPDATE requires values to set")
	}

	var sets, incs mdoc
	computed := false
	for _, k := range sortedKeys(set) {
		switch v := set[k].(type) {
		case *expression.Literal:
			sets = append(sets, mfield{k, v.Value()})
		case *expression.Binary:
			if n, ok := increment(k, v); ok {
				incs = append(incs, mfield{k, n})
				continue
			}
			computed = true
		case sql.Expression:
			computed = true
		default:
			sets = append(sets, mfield{k, v})
		}
	}

	if !computed {
		doc := mdoc{}
		if len(sets) > 0 {
			doc = append(doc, mfield{"$set", sets})
		}
		if len(incs) > 0 {
			doc = append(doc, mfield{"$inc", incs})
		}
		return mongoValue(doc), nil
	}

	doc := mdoc{}
	for _, k := range sortedKeys(set) {
		var v interface{}
		if e, ok := set[k].(sql.Expression); ok {
			var err error
			if v, err = b.aggExpr(e); err != nil {
				return "", err
			}
		} else {
			v = projectLiteral(set[k])
		}
		doc = append(doc, mfield{k, v})
	}
	return mongoValue([]interface{}{mdoc{{"$set", doc}}}), nil
}

// increment matches field + n and field - n.
func increment(field string, e *expression.Binary) (interface{}, bool) {
	if e.Op != expression.Plus && e.Op != expression.Minus {
		return nil, false
	}
	id, ok := e.Left.(*expression.Identifier)
	if !ok || id.Name != field {
		return nil, false
	}
	lit, ok := e.Right.(*expression.Literal)
	if !ok || !sql.IsNumber(lit.Value()) {
		return nil, false
	}
	if e.Op == expression.Minus {
		f, _ := sql.ToFloat(lit.Value())
		return sql.Normalize(-f), true
	}
	return lit.Value(), true
}

// filter renders a condition as a query document. Conditions on distinct
// fields share the document, the others are joined with $and.
func (b *mongoBuilder) filter(e sql.Expression) (mdoc, error) {
	result := mdoc{}
	if e == nil {
		return result, nil
	}

	var and []interface{}
	for _, c := range expression.SplitConjunction(e) {
		d, err := b.condition(c)
		if err != nil {
			return nil, err
		}
		if d == nil {
			continue
		}

		for _, f := range d {
			if !result.merge(f) {
				and = append(and, mdoc{f})
			}
		}
	}

	if len(and) > 0 {
		result = append(result, mfield{"$and", and})
	}
	return result, nil
}

// merge adds f to the document. Operator documents on the same field are
// merged when their operators differ.
func (d *mdoc) merge(f mfield) bool {
	for i, existing := range *d {
		if existing.key != f.key {
			continue
		}

		a, aok := existing.value.(mdoc)
		c, cok := f.value.(mdoc)
		if !aok || !cok || !a.operators() || !c.operators() || strings.HasPrefix(f.key, "$") {
			return false
		}
		for _, op := range c {
			if _, dup := a.get(op.key); dup {
				return false
			}
		}
		(*d)[i].value = append(append(mdoc{}, a...), c...)
		return true
	}

	*d = append(*d, f)
	return true
}

func fieldLiteral(left, right sql.Expression) (string, interface{}, bool, bool) {
	if id, ok := left.(*expression.Identifier); ok {
		if lit, ok := right.(*expression.Literal); ok {
			return id.Name, lit.Value(), false, true
		}
	}
	if id, ok := right.(*expression.Identifier); ok {
		if lit, ok := left.(*expression.Literal); ok {
			return id.Name, lit.Value(), true, true
		}
	}
	return "", nil, false, false
}

var flipped = map[string]string{
	expression.Lt:   expression.Gt,
	expression.LtEq: expression.GtEq,
	expression.Gt:   expression.Lt,
	expression.GtEq: expression.LtEq,
}

// condition renders one conjunct. A nil document means a placeholder was
// recorded.
func (b *mongoBuilder) condition(e sql.Expression) (mdoc, error) {
	switch e := e.(type) {
	case *expression.Literal:
		if sql.Truthy(e.Value()) {
			return mdoc{}, nil
		}
		return mdoc{{"$expr", false}}, nil
	case *expression.Binary:
		switch e.Op {
		case expression.And:
			return b.filter(e)
		case expression.Or:
			var docs []interface{}
			for _, c := range splitDisjunction(e) {
				d, err := b.filter(c)
				if err != nil {
					return nil, err
				}
				docs = append(docs, d)
			}
			return mdoc{{"$or", docs}}, nil
		case expression.IsNull:
			if id, ok := e.Left.(*expression.Identifier); ok {
				return mdoc{{id.Name, nil}}, nil
			}
		case expression.IsNotNull:
			if id, ok := e.Left.(*expression.Identifier); ok {
				return mdoc{{id.Name, mdoc{{"$exists", true}}}}, nil
			}
		case expression.LikeOp:
			if field, v, swapped, ok := fieldLiteral(e.Left, e.Right); ok && !swapped {
				if pattern, ok := v.(string); ok {
					return regexCondition(field, likeToRegexp(pattern)), nil
				}
			}
		default:
			op, ok := mongoComparisons[e.Op]
			if !ok {
				break
			}
			field, v, swapped, ok := fieldLiteral(e.Left, e.Right)
			if !ok {
				break
			}
			if swapped {
				if f, ok := flipped[e.Op]; ok {
					op = mongoComparisons[f]
				}
			}
			if op == "$eq" && v != nil {
				if _, isDoc := v.(map[string]interface{}); !isDoc {
					return mdoc{{field, v}}, nil
				}
			}
			return mdoc{{field, mdoc{{op, v}}}}, nil
		}
	case *expression.In:
		if field, values, ok := inLiterals(e); ok {
			return mdoc{{field, mdoc{{"$in", values}}}}, nil
		}
	case *expression.Between:
		id, ok := e.Val.(*expression.Identifier)
		lower, lok := e.Lower.(*expression.Literal)
		upper, uok := e.Upper.(*expression.Literal)
		if ok && lok && uok {
			return mdoc{{id.Name, mdoc{{"$gte", lower.Value()}, {"$lte", upper.Value()}}}}, nil
		}
	case *expression.Unary:
		if e.Op != expression.Not {
			break
		}
		if in, ok := e.Child.(*expression.In); ok {
			if field, values, ok := inLiterals(in); ok {
				return mdoc{{field, mdoc{{"$nin", values}}}}, nil
			}
		}

		child, err := b.condition(e.Child)
		if err != nil || child == nil {
			return nil, err
		}
		if len(child) == 1 && !strings.HasPrefix(child[0].key, "$") {
			if ops, ok := child[0].value.(mdoc); ok && ops.operators() {
				return mdoc{{child[0].key, mdoc{{"$not", ops}}}}, nil
			}
			if child[0].value != nil {
				return mdoc{{child[0].key, mdoc{{"$ne", child[0].value}}}}, nil
			}
		}
		return mdoc{{"$nor", []interface{}{child}}}, nil
	case *expression.Function:
		if len(e.Args) == 2 {
			if field, v, swapped, ok := fieldLiteral(e.Args[0], e.Args[1]); ok && !swapped {
				if s, ok := v.(string); ok {
					switch e.Name {
					case "REGEXP_LIKE":
						return regexCondition(field, s), nil
					case "CONTAINS":
						return regexCondition(field, regexp.QuoteMeta(s)), nil
					case "STARTSWITH":
						return regexCondition(field, "^"+regexp.QuoteMeta(s)), nil
					case "ENDSWITH":
						return regexCondition(field, regexp.QuoteMeta(s)+"$"), nil
					}
				}
			}
		}
	}

	v, err := b.aggExpr(e)
	if err != nil || v == nil {
		return nil, err
	}
	return mdoc{{"$expr", v}}, nil
}

func regexCondition(field, pattern string) mdoc {
	if strings.HasPrefix(pattern, "(?i)") {
		return mdoc{{field, mdoc{{"$regex", strings.TrimPrefix(pattern, "(?i)")}, {"$options", "i"}}}}
	}
	return mdoc{{field, mdoc{{"$regex", pattern}}}}
}

func inLiterals(in *expression.In) (string, []interface{}, bool) {
	id, ok := in.Left.(*expression.Identifier)
	if !ok {
		return "", nil, false
	}
	values := make([]interface{}, len(in.Values))
	for i, v := range in.Values {
		lit, ok := v.(*expression.Literal)
		if !ok {
			return "", nil, false
		}
		values[i] = lit.Value()
	}
	return id.Name, values, true
}

func splitDisjunction(e sql.Expression) []sql.Expression {
	if b, ok := e.(*expression.Binary); ok && b.Op == expression.Or {
		return append(splitDisjunction(b.Left), splitDisjunction(b.Right)...)
	}
	return []sql.Expression{e}
}

// aggExpr renders an aggregation expression, where "$field" reads a field.
// A nil result with no error means a placeholder was recorded.
func (b *mongoBuilder) aggExpr(e sql.Expression) (interface{}, error) {
	switch e := e.(type) {
	case *expression.Literal:
		if s, ok := e.Value().(string); ok && strings.HasPrefix(s, "$") {
			return mdoc{{"$literal", s}}, nil
		}
		return e.Value(), nil
	case *expression.Identifier:
		return "$" + e.Name, nil
	case *expression.Alias:
		return b.aggExpr(e.Child)
	case *expression.Aggregate:
		if name, ok := b.aggregated[e.String()]; ok {
			return "$" + name, nil
		}
		return b.placeholder("aggregate " + e.String() + " outside $group")
	case *expression.Binary:
		left, err := b.aggExpr(e.Left)
		if err != nil {
			return nil, err
		}
		switch e.Op {
		case expression.IsNull:
			return mdoc{{"$eq", []interface{}{left, nil}}}, nil
		case expression.IsNotNull:
			return mdoc{{"$ne", []interface{}{left, nil}}}, nil
		}

		right, err := b.aggExpr(e.Right)
		if err != nil {
			return nil, err
		}
		if op, ok := mongoComparisons[e.Op]; ok {
			return mdoc{{op, []interface{}{left, right}}}, nil
		}
		if op, ok := mongoArithmetic[e.Op]; ok {
			return mdoc{{op, []interface{}{left, right}}}, nil
		}
		switch e.Op {
		case expression.And:
			return mdoc{{"$and", []interface{}{left, right}}}, nil
		case expression.Or:
			return mdoc{{"$or", []interface{}{left, right}}}, nil
		case expression.LikeOp:
			if lit, ok := e.Right.(*expression.Literal); ok {
				if pattern, ok := lit.Value().(string); ok {
					return mdoc{{"$regexMatch", mdoc{{"input", left}, {"regex", likeToRegexp(pattern)}}}}, nil
				}
			}
		}
		return b.placeholder("operator " + e.Op)
	case *expression.Unary:
		child, err := b.aggExpr(e.Child)
		if err != nil {
			return nil, err
		}
		if e.Op == expression.Not {
			return mdoc{{"$not", []interface{}{child}}}, nil
		}
		return mdoc{{"$multiply", []interface{}{-1, child}}}, nil
	case *expression.In:
		left, err := b.aggExpr(e.Left)
		if err != nil {
			return nil, err
		}
		values := make([]interface{}, len(e.Values))
		for i, v := range e.Values {
			if values[i], err = b.aggExpr(v); err != nil {
				return nil, err
			}
		}
		return mdoc{{"$in", []interface{}{left, values}}}, nil
	case *expression.Between:
		parts := make([]interface{}, 3)
		for i, c := range []sql.Expression{e.Val, e.Lower, e.Upper} {
			v, err := b.aggExpr(c)
			if err != nil {
				return nil, err
			}
			parts[i] = v
		}
		return mdoc{{"$and", []interface{}{
			mdoc{{"$gte", []interface{}{parts[0], parts[1]}}},
			mdoc{{"$lte", []interface{}{parts[0], parts[2]}}},
		}}}, nil
	case *expression.Function:
		args := make([]interface{}, len(e.Args))
		for i, a := range e.Args {
			v, err := b.aggExpr(a)
			if err != nil {
				return nil, err
			}
			args[i] = v
		}
		return b.function(e, args)
	default:
		return b.placeholder("expression " + e.String())
	}
}

func (b *mongoBuilder) function(e *expression.Function, args []interface{}) (interface{}, error) {
	switch e.Name {
	case "TRIM":
		if len(args) == 1 {
			return mdoc{{"$trim", mdoc{{"input", args[0]}}}}, nil
		}
	case "REGEXP_LIKE":
		if len(args) == 2 {
			return mdoc{{"$regexMatch", mdoc{{"input", args[0]}, {"regex", args[1]}}}}, nil
		}
	case "CONTAINS":
		if len(args) == 2 {
			return mdoc{{"$gte", []interface{}{mdoc{{"$indexOfCP", args}}, 0}}}, nil
		}
	case "STARTSWITH", "ENDSWITH":
		if len(args) != 2 {
			break
		}
		if s, ok := literalString(e.Args[1]); ok {
			pattern := "^" + regexp.QuoteMeta(s)
			if e.Name == "ENDSWITH" {
				pattern = regexp.QuoteMeta(s) + "$"
			}
			return mdoc{{"$regexMatch", mdoc{{"input", args[0]}, {"regex", pattern}}}}, nil
		}
	case "ISNULL":
		if len(args) == 1 {
			return mdoc{{"$eq", []interface{}{args[0], nil}}}, nil
		}
	case "ISNOTNULL":
		if len(args) == 1 {
			return mdoc{{"$ne", []interface{}{args[0], nil}}}, nil
		}
	default:
		op, ok := mongoFunctions[e.Name]
		if !ok {
			break
		}
		if len(args) == 1 && op != "$concat" && op != "$ifNull" {
			return mdoc{{op, args[0]}}, nil
		}
		return mdoc{{op, args}}, nil
	}
	return b.placeholder("function " + e.Name)
}

func literalString(e sql.Expression) (string, bool) {
	if lit, ok := e.(*expression.Literal); ok {
		s, ok := lit.Value().(string)
		return s, ok
	}
	return "", false
}

func (b *mongoBuilder) placeholder(what string) (interface{}, error) {
	_, err := b.s.incompatible(what, nil)
	return nil, err
}

var mongoBareKey = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)

// mongoKey quotes keys that are not identifiers.
func mongoKey(key string) string {
	if mongoBareKey.MatchString(key) {
		return key
	}
	return mongoString(key)
}

func mongoString(s string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return `""`
	}
	return strings.TrimSuffix(buf.String(), "\n")
}

// mongoValue renders a value in the shell syntax.
func mongoValue(v interface{}) string {
	switch v := v.(type) {
	case nil:
		return "null"
	case mdoc:
		parts := make([]string, len(v))
		for i, f := range v {
			parts[i] = mongoKey(f.key) + ": " + mongoValue(f.value)
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case map[string]interface{}:
		doc := make(mdoc, 0, len(v))
		for _, k := range sortedKeys(v) {
			doc = append(doc, mfield{k, v[k]})
		}
		return mongoValue(doc)
	case []interface{}:
		parts := make([]string, len(v))
		for i, e := range v {
			parts[i] = mongoValue(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case string:
		return mongoString(v)
	case bool:
		if v {
			return "true"
		}
		return "false"
	case *expression.Literal:
		return mongoValue(v.Value())
	default:
		return expression.FormatLiteral(v)
	}
}
