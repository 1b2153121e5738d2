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

	yaml "gopkg.in/yaml.v2"

	"github.com/exonware/go-xwquery/sql"
	"github.com/exonware/go-xwquery/sql/expression"
)

var mongoLexicon = &lexicon{
	lineComments:  []string{"//"},
	blockComments: true,
}

// MongoParser parses MongoDB shell queries such as
// db.users.find({age: {$gt: 30}}).sort({name: 1}).limit(10). Method
// arguments are read as YAML flow documents, so keys keep their order.
type MongoParser struct{}

// NewMongoParser creates a new MongoDB parser.
func NewMongoParser() *MongoParser {
	return &MongoParser{}
}

// Dialect implements the Parser interface.
func (*MongoParser) Dialect() string { return "MongoDB" }

// Parse implements the Parser interface.
func (m *MongoParser) Parse(ctx *sql.Context, text string, opts Options) ([]*sql.Action, error) {
	tokens, err := newTokenizer(m.Dialect(), text, mongoLexicon).All()
	if err != nil {
		return nil, err
	}

	p := &mongoParser{parser: newParser(m.Dialect(), text, tokens, opts)}
	return p.parse()
}

type mongoParser struct {
	*parser
	collection string
}

// call is a method call with its decoded arguments.
type call struct {
	tok  Token
	name string
	args []interface{}
}

func (p *mongoParser) parse() ([]*sql.Action, error) {
	if p.atEOF() {
		return nil, nil
	}

	if !p.acceptWord("db") {
		return nil, p.unexpected(p.peek(), "'db'")
	}
	if _, err := p.expectSymbol("."); err != nil {
		return nil, err
	}

	calls, err := p.parseCalls()
	if err != nil {
		return nil, err
	}

	p.acceptSymbol(";")
	if !p.atEOF() {
		return nil, p.unexpected(p.peek(), "'.'")
	}

	if len(calls) == 0 {
		return nil, p.unexpected(p.peek(), "method call")
	}
	return p.convert(calls[0], calls[1:])
}

// parseCalls parses the collection and the chain of method calls.
func (p *mongoParser) parseCalls() ([]*call, error) {
	name, tok, err := p.parseName("collection name")
	if err != nil {
		return nil, err
	}

	if name == "getCollection" && p.isSymbol("(") {
		c, err := p.parseArgs(tok, name)
		if err != nil {
			return nil, err
		}

		coll, ok := argAt(c.args, 0).(string)
		if !ok {
			return nil, p.errorAt(tok, "getCollection expects a collection name")
		}
		p.collection = coll
	} else {
		p.collection = name
	}

	var calls []*call
	for p.acceptSymbol(".") {
		name, tok, err := p.parseName("method name")
		if err != nil {
			return nil, err
		}

		c, err := p.parseArgs(tok, name)
		if err != nil {
			return nil, err
		}
		calls = append(calls, c)
	}

	return calls, nil
}

// parseArgs decodes the arguments between the parentheses following the
// method name.
func (p *mongoParser) parseArgs(tok Token, name string) (*call, error) {
	open, err := p.expectSymbol("(")
	if err != nil {
		return nil, err
	}

	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()

	depth := 1
	for depth > 0 {
		if p.atEOF() {
			return nil, p.unexpected(p.peek(), "')'")
		}

		switch {
		case p.isSymbol("(") || p.isSymbol("[") || p.isSymbol("{"):
			depth++
			if max := p.maxNesting(); p.depth+depth > max {
				return nil, nestingError(p.peek(), max)
			}
		case p.isSymbol(")") || p.isSymbol("]") || p.isSymbol("}"):
			depth--
		}
		if depth > 0 {
			p.next()
		}
	}

	end := p.next()
	raw := strings.TrimSpace(p.text[open.Pos+1 : end.Pos])

	c := &call{tok: tok, name: name}
	if raw == "" {
		return c, nil
	}

	var wrapper yaml.MapSlice
	if err := yaml.Unmarshal([]byte("{args: ["+flowText(raw)+"]}"), &wrapper); err != nil {
		return nil, p.errorAt(open, fmt.Sprintf("invalid arguments of %s: %s", name, err))
	}

	if len(wrapper) == 1 {
		if args, ok := wrapper[0].Value.([]interface{}); ok {
			c.args = args
		}
	}
	return c, nil
}

func (p *mongoParser) maxNesting() int {
	if p.opts.MaxNesting > 0 {
		return p.opts.MaxNesting
	}
	return DefaultMaxNesting
}

// flowText rewrites shell arguments into YAML flow syntax. Bare keys are
// double quoted so YAML 1.1 does not read n, y, on or off as booleans, and
// {a:1} gets the space YAML needs after the colon. Quoted strings are left
// untouched.
func flowText(s string) string {
	var sb strings.Builder
	var quote byte
	// last is the last byte written outside whitespace.
	last := byte(0)
	for i := 0; i < len(s); i++ {
		c := s[i]

		if quote == 0 && isKeyByte(c) && (last == '{' || last == ',') {
			j := i
			for j < len(s) && isKeyByte(s[j]) {
				j++
			}
			k := j
			for k < len(s) && (s[k] == ' ' || s[k] == '\t') {
				k++
			}
			if k < len(s) && s[k] == ':' {
				sb.WriteByte('"')
				sb.WriteString(s[i:j])
				sb.WriteString("\": ")
				i, last = k, ':'
				continue
			}
			sb.WriteString(s[i:j])
			i, last = j-1, s[j-1]
			continue
		}

		sb.WriteByte(c)
		if c != ' ' && c != '\t' && c != '\r' && c != '\n' {
			last = c
		}

		switch {
		case quote != 0:
			if c == '\\' && i+1 < len(s) {
				i++
				sb.WriteByte(s[i])
			} else if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case c == ':' && i+1 < len(s) && s[i+1] != ' ':
			sb.WriteByte(' ')
		}
	}
	return sb.String()
}

func isKeyByte(c byte) bool {
	return c == '_' || c == '$' || c == '.' ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

func argAt(args []interface{}, i int) interface{} {
	if i < len(args) {
		return args[i]
	}
	return nil
}

func (p *mongoParser) convert(method *call, chain []*call) ([]*sql.Action, error) {
	switch method.name {
	case "find", "findOne":
		return p.convertFind(method, chain)
	case "count", "countDocuments", "estimatedDocumentCount":
		actions, err := p.scan(method, argAt(method.args, 0), nil)
		if err != nil {
			return nil, err
		}
		return append(actions, countAction("count")), nil
	case "distinct":
		return p.convertDistinct(method)
	case "aggregate":
		return p.convertAggregate(method)
	case "insertOne", "insert", "insertMany":
		return p.convertInsert(method)
	case "updateOne", "updateMany", "update":
		return p.convertUpdate(method)
	case "deleteOne", "deleteMany", "remove":
		return p.convertDelete(method)
	default:
		skip, err := p.incompatible(method.tok, "method "+method.name)
		if skip {
			return nil, nil
		}
		return nil, err
	}
}

// scan returns the SELECT over the collection and the WHERE of filter.
func (p *mongoParser) scan(method *call, filter, projection interface{}) ([]*sql.Action, error) {
	columns, err := p.projection(method, projection)
	if err != nil {
		return nil, err
	}

	actions := []*sql.Action{
		sql.NewAction(sql.OpSelect, sql.Params{
			"columns":  columns,
			"distinct": false,
			"from":     p.collection,
		}),
	}

	cond, err := p.condition(method.tok, filter)
	if err != nil {
		return nil, err
	}
	if cond != nil {
		actions = append(actions, sql.NewAction(sql.OpWhere, sql.Params{"condition": cond}))
	}

	return actions, nil
}

func (p *mongoParser) convertFind(method *call, chain []*call) ([]*sql.Action, error) {
	actions, err := p.scan(method, argAt(method.args, 0), argAt(method.args, 1))
	if err != nil {
		return nil, err
	}

	var (
		orders        []*sql.Action
		limit, offset *sql.Action
		count         bool
	)

	if method.name == "findOne" {
		limit = sql.NewAction(sql.OpLimit, sql.Params{"count": int64(1)})
	}

	for _, c := range chain {
		switch c.name {
		case "sort":
			orders, err = p.sortActions(c, argAt(c.args, 0))
		case "limit":
			var n int64
			n, err = p.count(c, argAt(c.args, 0))
			limit = sql.NewAction(sql.OpLimit, sql.Params{"count": n})
		case "skip":
			var n int64
			n, err = p.count(c, argAt(c.args, 0))
			offset = sql.NewAction(sql.OpOffset, sql.Params{"count": n})
		case "count", "size":
			count = true
		case "pretty", "toArray":
		default:
			var skip bool
			skip, err = p.incompatible(c.tok, "cursor method "+c.name)
			if skip {
				err = nil
			}
		}

		if err != nil {
			return nil, err
		}
	}

	actions = append(actions, orders...)
	if limit != nil {
		actions = append(actions, limit)
	}
	if offset != nil {
		actions = append(actions, offset)
	}
	if count {
		actions = append(actions, countAction("count"))
	}

	return actions, nil
}

func (p *mongoParser) convertDistinct(method *call) ([]*sql.Action, error) {
	field, ok := argAt(method.args, 0).(string)
	if !ok {
		return nil, p.errorAt(method.tok, "distinct expects a field name")
	}

	actions, err := p.scan(method, argAt(method.args, 1), nil)
	if err != nil {
		return nil, err
	}

	actions[0].Params["columns"] = []sql.Expression{expression.NewIdentifier(field)}
	actions[0].Params["distinct"] = true
	return actions, nil
}

func (p *mongoParser) convertAggregate(method *call) ([]*sql.Action, error) {
	stages, ok := argAt(method.args, 0).([]interface{})
	if !ok && len(method.args) > 0 {
		stages = method.args
	}

	actions, err := p.scan(method, nil, nil)
	if err != nil {
		return nil, err
	}

	for _, s := range stages {
		stage, ok := s.(yaml.MapSlice)
		if !ok || len(stage) != 1 {
			return nil, p.errorAt(method.tok, "a pipeline stage must have exactly one operator")
		}

		acts, err := p.stage(method, fmt.Sprint(stage[0].Key), stage[0].Value)
		if err != nil {
			return nil, err
		}
		actions = append(actions, acts...)
	}

	return actions, nil
}

func (p *mongoParser) stage(method *call, name string, value interface{}) ([]*sql.Action, error) {
	switch name {
	case "$match":
		cond, err := p.condition(method.tok, value)
		if err != nil || cond == nil {
			return nil, err
		}
		return []*sql.Action{sql.NewAction(sql.OpWhere, sql.Params{"condition": cond})}, nil
	case "$project":
		fields, err := p.fields(method, value, true)
		if err != nil {
			return nil, err
		}
		return []*sql.Action{sql.NewAction(sql.OpProject, sql.Params{"fields": fields})}, nil
	case "$addFields", "$set":
		fields, err := p.fields(method, value, false)
		if err != nil {
			return nil, err
		}
		return []*sql.Action{sql.NewAction(sql.OpExtend, sql.Params{"fields": fields})}, nil
	case "$sort":
		return p.sortActions(method, value)
	case "$limit":
		n, err := p.count(method, value)
		if err != nil {
			return nil, err
		}
		return []*sql.Action{sql.NewAction(sql.OpLimit, sql.Params{"count": n})}, nil
	case "$skip":
		n, err := p.count(method, value)
		if err != nil {
			return nil, err
		}
		return []*sql.Action{sql.NewAction(sql.OpOffset, sql.Params{"count": n})}, nil
	case "$count":
		alias, ok := value.(string)
		if !ok {
			return nil, p.errorAt(method.tok, "$count expects a field name")
		}
		return []*sql.Action{countAction(alias)}, nil
	case "$group":
		return p.group(method, value)
	default:
		skip, err := p.incompatible(method.tok, "stage "+name)
		if skip {
			return nil, nil
		}
		return nil, err
	}
}

// group converts {_id: key, name: {$op: arg}, ...}. The key is a field
// reference, a mapping of field references or null for a single group.
func (p *mongoParser) group(method *call, value interface{}) ([]*sql.Action, error) {
	spec, ok := value.(yaml.MapSlice)
	if !ok {
		return nil, p.errorAt(method.tok, "$group expects a document")
	}

	var keys []interface{}
	var aggs []sql.Expression
	for _, item := range spec {
		name := fmt.Sprint(item.Key)
		if name == "_id" {
			switch id := item.Value.(type) {
			case nil:
			case string:
				keys = append(keys, fieldRef(id))
			case yaml.MapSlice:
				for _, k := range id {
					ref, ok := k.Value.(string)
					if !ok {
						return nil, p.errorAt(method.tok, "$group keys must be field references")
					}
					keys = append(keys, fieldRef(ref))
				}
			default:
				return nil, p.errorAt(method.tok, "$group keys must be field references")
			}
			continue
		}

		agg, err := p.accumulator(method, item.Value)
		if err != nil {
			return nil, err
		}
		aggs = append(aggs, expression.NewAlias(agg, name))
	}

	if len(keys) == 0 {
		return []*sql.Action{sql.NewAction(sql.OpAggregate, sql.Params{"aggregates": aggs})}, nil
	}

	params := sql.Params{"fields": keys}
	if len(aggs) > 0 {
		params["aggregates"] = aggs
	}
	return []*sql.Action{sql.NewAction(sql.OpGroupBy, params)}, nil
}

var accumulators = map[string]string{
	"$sum": expression.Sum,
	"$avg": expression.Avg,
	"$min": expression.Min,
	"$max": expression.Max,
}

func (p *mongoParser) accumulator(method *call, value interface{}) (sql.Expression, error) {
	acc, ok := value.(yaml.MapSlice)
	if !ok || len(acc) != 1 {
		return nil, p.errorAt(method.tok, "an accumulator must have exactly one operator")
	}

	op := fmt.Sprint(acc[0].Key)
	if op == "$count" {
		return expression.NewCountStar(), nil
	}

	name, ok := accumulators[op]
	if !ok {
		return nil, p.errorAt(method.tok, "unsupported accumulator "+op)
	}

	switch arg := acc[0].Value.(type) {
	case string:
		if strings.HasPrefix(arg, "$") {
			return expression.NewAggregate(name, expression.NewIdentifier(fieldRef(arg)), false), nil
		}
	case int:
		if name == expression.Sum && arg == 1 {
			return expression.NewCountStar(), nil
		}
	}

	return nil, p.errorAt(method.tok, fmt.Sprintf("unsupported %s argument %v", op, acc[0].Value))
}

func fieldRef(s string) string {
	return strings.TrimPrefix(s, "$")
}

// projection converts an inclusion projection to columns. Excluding _id is
// allowed and ignored; other exclusions select every field.
func (p *mongoParser) projection(method *call, value interface{}) ([]sql.Expression, error) {
	star := []sql.Expression{expression.NewStar()}
	if value == nil {
		return star, nil
	}

	fields, err := p.fields(method, value, true)
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return star, nil
	}
	return fields, nil
}

// fields converts a $project or $addFields document. In projections 1 and
// true include the field and 0 or false exclude it; a "$field" value reads
// another field and anything else is a literal.
func (p *mongoParser) fields(method *call, value interface{}, projection bool) ([]sql.Expression, error) {
	doc, ok := value.(yaml.MapSlice)
	if !ok {
		return nil, p.errorAt(method.tok, "expected a document of fields")
	}

	var fields []sql.Expression
	for _, item := range doc {
		name := fmt.Sprint(item.Key)
		if projection {
			if include, ok := inclusion(item.Value); ok {
				if include {
					fields = append(fields, expression.NewIdentifier(name))
					continue
				}

				if name != "_id" {
					skip, err := p.incompatible(method.tok, "field exclusion")
					if err != nil {
						return nil, err
					}
					if skip {
						return nil, nil
					}
				}
				continue
			}
		}

		if ref, ok := item.Value.(string); ok && strings.HasPrefix(ref, "$") {
			fields = append(fields, expression.NewAlias(expression.NewIdentifier(fieldRef(ref)), name))
			continue
		}

		if _, ok := item.Value.(yaml.MapSlice); ok {
			skip, err := p.incompatible(method.tok, "computed field "+name)
			if err != nil {
				return nil, err
			}
			if skip {
				continue
			}
		}

		fields = append(fields, expression.NewAlias(expression.NewLiteral(plain(item.Value)), name))
	}

	return fields, nil
}

func inclusion(v interface{}) (bool, bool) {
	switch v := v.(type) {
	case bool:
		return v, true
	case int:
		return v != 0, true
	default:
		return false, false
	}
}

func (p *mongoParser) sortActions(method *call, value interface{}) ([]*sql.Action, error) {
	doc, ok := value.(yaml.MapSlice)
	if !ok {
		return nil, p.errorAt(method.tok, "sort expects a document")
	}

	var actions []*sql.Action
	for _, item := range doc {
		direction := Ascending
		if n, ok := item.Value.(int); ok && n < 0 {
			direction = Descending
		}

		actions = append(actions, sql.NewAction(sql.OpOrderBy, sql.Params{
			"column":    fmt.Sprint(item.Key),
			"direction": direction,
		}))
	}
	return actions, nil
}

func (p *mongoParser) count(method *call, value interface{}) (int64, error) {
	n, ok := value.(int)
	if !ok || n < 0 {
		return 0, p.errorAt(method.tok, method.name+" expects a non-negative integer")
	}
	return int64(n), nil
}

// condition converts a filter document, keeping the order of its keys.
func (p *mongoParser) condition(tok Token, filter interface{}) (sql.Expression, error) {
	if filter == nil {
		return nil, nil
	}

	doc, ok := filter.(yaml.MapSlice)
	if !ok {
		return nil, p.errorAt(tok, "a filter must be a document")
	}

	var conds []sql.Expression
	for _, item := range doc {
		e, err := expression.FromCondition(map[string]interface{}{
			fmt.Sprint(item.Key): plain(item.Value),
		})
		if err != nil {
			return nil, p.errorAt(tok, err.Error())
		}
		conds = append(conds, e)
	}

	return expression.JoinAnd(conds...), nil
}

func (p *mongoParser) convertInsert(method *call) ([]*sql.Action, error) {
	var docs []interface{}
	switch v := argAt(method.args, 0).(type) {
	case yaml.MapSlice:
		docs = []interface{}{plain(v)}
	case []interface{}:
		for _, d := range v {
			docs = append(docs, plain(d))
		}
	default:
		return nil, p.errorAt(method.tok, method.name+" expects documents")
	}

	return []*sql.Action{
		sql.NewAction(sql.OpInsert, sql.Params{"target": p.collection, "values": docs}),
	}, nil
}

// convertUpdate supports the $set and $inc update operators.
func (p *mongoParser) convertUpdate(method *call) ([]*sql.Action, error) {
	update, ok := argAt(method.args, 1).(yaml.MapSlice)
	if !ok {
		return nil, p.errorAt(method.tok, method.name+" expects an update document")
	}

	set := make(map[string]interface{})
	for _, item := range update {
		op := fmt.Sprint(item.Key)
		fields, ok := item.Value.(yaml.MapSlice)
		if !ok {
			return nil, p.errorAt(method.tok, op+" expects a document")
		}

		for _, f := range fields {
			name := fmt.Sprint(f.Key)
			switch op {
			case "$set":
				set[name] = expression.NewLiteral(plain(f.Value))
			case "$inc":
				set[name] = expression.NewBinary(expression.Plus,
					expression.NewIdentifier(name), expression.NewLiteral(plain(f.Value)))
			default:
				skip, err := p.incompatible(method.tok, "update operator "+op)
				if err != nil {
					return nil, err
				}
				if skip {
					continue
				}
			}
		}
	}

	params := sql.Params{"target": p.collection, "set": set}
	if err := p.where(method, params); err != nil {
		return nil, err
	}
	if method.name == "updateOne" {
		params["limit"] = int64(1)
	}
	return []*sql.Action{sql.NewAction(sql.OpUpdate, params)}, nil
}

func (p *mongoParser) convertDelete(method *call) ([]*sql.Action, error) {
	params := sql.Params{"target": p.collection}
	if err := p.where(method, params); err != nil {
		return nil, err
	}
	if method.name == "deleteOne" {
		params["limit"] = int64(1)
	}
	return []*sql.Action{sql.NewAction(sql.OpDelete, params)}, nil
}

func (p *mongoParser) where(method *call, params sql.Params) error {
	cond, err := p.condition(method.tok, argAt(method.args, 0))
	if err != nil {
		return err
	}
	if cond != nil {
		params["where"] = cond
	}
	return nil
}

func countAction(alias string) *sql.Action {
	agg := expression.NewAlias(expression.NewCountStar(), alias)
	return sql.NewAction(sql.OpAggregate, sql.Params{"aggregates": []sql.Expression{agg}})
}

// plain converts decoded YAML into records: ordered mappings become maps
// and numbers are normalized.
func plain(v interface{}) interface{} {
	switch v := v.(type) {
	case yaml.MapSlice:
		m := make(map[string]interface{}, len(v))
		for _, item := range v {
			m[fmt.Sprint(item.Key)] = plain(item.Value)
		}
		return m
	case []interface{}:
		l := make([]interface{}, len(v))
		for i, e := range v {
			l[i] = plain(e)
		}
		return l
	default:
		return sql.Normalize(v)
	}
}
