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
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	opentracing "github.com/opentracing/opentracing-go"
	errors "gopkg.in/src-d/go-errors.v1"

	"github.com/exonware/go-xwquery/sql"
	"github.com/exonware/go-xwquery/sql/expression"
	"github.com/exonware/go-xwquery/sql/parse"
)

var (
	// ErrActionNotSupported is the cause of the value error returned in
	// strict mode for actions the target dialect cannot express.
	ErrActionNotSupported = errors.NewKind("action not supported by %s: %s")

	// ErrNoGenerator is returned for known dialects without a generator.
	ErrNoGenerator = errors.NewKind("dialect %s has no generator, supported dialects are %s")

	// ErrGeneratorAlreadyRegistered is returned when a generator is
	// registered twice for the same dialect.
	ErrGeneratorAlreadyRegistered = errors.NewKind("a generator for dialect %s is already registered")
)

// DefaultIndent is the indentation of pretty printed output.
const DefaultIndent = "  "

// Options of a generate call.
type Options struct {
	// Mode is the conversion mode applied to actions the dialect cannot
	// express.
	Mode sql.ConversionMode
	// Pretty puts every clause on its own line.
	Pretty bool
	// Indent is the indentation of nested lines in pretty mode.
	Indent string
}

// DefaultOptions returns the options used when none are given.
func DefaultOptions() Options {
	return Options{Mode: sql.DefaultConversionMode, Indent: DefaultIndent}
}

func (o Options) indent() string {
	if o.Indent == "" {
		return DefaultIndent
	}
	return o.Indent
}

// Generator turns a sequence of actions into the text of a dialect.
type Generator interface {
	// Dialect returns the name of the target dialect.
	Dialect() string
	// Generate renders the actions.
	Generate(ctx *sql.Context, actions []*sql.Action, opts Options) (string, error)
}

// Stats are the accumulated statistics of a generator.
type Stats struct {
	Count     uint64
	Errors    uint64
	TotalTime time.Duration
}

// Monitored wraps a generator with per call statistics and a tracing span.
type Monitored struct {
	Generator

	count  uint64
	errors uint64
	nanos  int64
}

// NewMonitored wraps the given generator.
func NewMonitored(g Generator) *Monitored {
	return &Monitored{Generator: g}
}

// Generate implements the Generator interface.
func (m *Monitored) Generate(ctx *sql.Context, actions []*sql.Action, opts Options) (text string, err error) {
	span, ctx := ctx.Span("generate", opentracing.Tag{Key: "dialect", Value: m.Dialect()})
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = sql.ErrValue.New(fmt.Sprintf("%s generator failed: %v", m.Dialect(), r))
		}

		atomic.AddUint64(&m.count, 1)
		atomic.AddInt64(&m.nanos, int64(time.Since(start)))
		if err != nil {
			atomic.AddUint64(&m.errors, 1)
		}
		span.Finish()
	}()

	return m.Generator.Generate(ctx, actions, opts)
}

// Stats returns the statistics of the generator so far.
func (m *Monitored) Stats() Stats {
	return Stats{
		Count:     atomic.LoadUint64(&m.count),
		Errors:    atomic.LoadUint64(&m.errors),
		TotalTime: time.Duration(atomic.LoadInt64(&m.nanos)),
	}
}

// Registry maps dialect names to generators. Names are resolved the way
// the parse registry resolves them, aliases included.
type Registry struct {
	mu         sync.RWMutex
	generators map[string]*Monitored
	dialects   *parse.Registry
}

// NewRegistry returns an empty registry resolving names with the given
// dialect registry.
func NewRegistry(dialects *parse.Registry) *Registry {
	return &Registry{
		generators: make(map[string]*Monitored),
		dialects:   dialects,
	}
}

// Register adds a generator for its dialect.
func (r *Registry) Register(g Generator) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := strings.ToUpper(g.Dialect())
	if _, ok := r.generators[key]; ok {
		return ErrGeneratorAlreadyRegistered.New(g.Dialect())
	}

	r.generators[key] = NewMonitored(g)
	return nil
}

// Generator returns the generator of the given dialect.
func (r *Registry) Generator(dialect string) (*Monitored, error) {
	name, err := r.dialects.Canonical(dialect)
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if g, ok := r.generators[strings.ToUpper(name)]; ok {
		return g, nil
	}

	supported := strings.Join(r.names(), ", ")
	return nil, sql.ErrUnsupportedOperation.Wrap(ErrNoGenerator.New(name, supported), "generate", name)
}

// Dialects returns the sorted names of the dialects with a generator.
func (r *Registry) Dialects() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.names()
}

func (r *Registry) names() []string {
	names := make([]string, 0, len(r.generators))
	for _, g := range r.generators {
		names = append(names, g.Dialect())
	}
	sort.Strings(names)
	return names
}

// Generate renders the actions in the given dialect.
func (r *Registry) Generate(ctx *sql.Context, dialect string, actions []*sql.Action, opts Options) (string, error) {
	g, err := r.Generator(dialect)
	if err != nil {
		return "", err
	}
	return g.Generate(ctx, actions, opts)
}

// DefaultRegistry holds the generators of every built-in dialect.
var DefaultRegistry = newDefaultRegistry()

func newDefaultRegistry() *Registry {
	r := NewRegistry(parse.DefaultRegistry)
	generators := []Generator{
		NewSQLGenerator(),
		newSQLFamilyGenerator("HQL", true),
		newSQLFamilyGenerator("HiveQL", false),
		newSQLFamilyGenerator("N1QL", false),
		newSQLFamilyGenerator("PartiQL", false),
		newSQLFamilyGenerator("MySQL", false),
		NewXPathGenerator(),
		NewKQLGenerator(),
		NewMongoGenerator(),
	}

	for _, g := range generators {
		if err := r.Register(g); err != nil {
			panic(err)
		}
	}
	return r
}

// Generate renders the actions in the given dialect with the default
// registry.
func Generate(ctx *sql.Context, dialect string, actions []*sql.Action, opts Options) (string, error) {
	return DefaultRegistry.Generate(ctx, dialect, actions, opts)
}

// Dialects returns the dialects of the default registry.
func Dialects() []string {
	return DefaultRegistry.Dialects()
}

// state is the conversion state shared by the generators of a call.
type state struct {
	dialect string
	opts    Options
	// comment renders a placeholder in the comment syntax of the dialect.
	comment func(text string) string
	// comments collects the placeholders of skipped actions.
	comments []string
}

// incompatible applies the conversion mode to a construct the dialect
// cannot express. In strict mode it fails. In flexible mode it returns the
// substitute, falling back to a placeholder when there is none, and in
// lenient mode it records a placeholder. An empty result means the
// construct was replaced by a placeholder.
func (s *state) incompatible(what string, substitute func() (string, error)) (string, error) {
	switch s.opts.Mode {
	case sql.Strict:
		return "", sql.ErrValue.Wrap(ErrActionNotSupported.New(s.dialect, what), "strict mode")
	case sql.Flexible:
		if substitute != nil {
			text, err := substitute()
			if err != nil {
				return "", err
			}
			if text != "" {
				return text, nil
			}
		}
	}

	s.comments = append(s.comments, s.comment("unsupported: "+what))
	return "", nil
}

// approximate is incompatible for constructs that flexible mode drops
// silently, such as a column alias.
func (s *state) approximate(what string) error {
	_, err := s.incompatible(what, func() (string, error) { return what, nil })
	return err
}

// unsupportedAction is incompatible for a whole action.
func (s *state) unsupportedAction(a *sql.Action, substitute func() (string, error)) (string, error) {
	return s.incompatible(describe(a), substitute)
}

func describe(a *sql.Action) string {
	if len(a.Params) == 0 {
		return a.Type
	}
	return a.Type + fmt.Sprintf("%v", a.Params)
}

// statements flattens the action trees into execution order, children
// before their parent and containers dissolved, and splits the result into
// statements. A statement starts at every SELECT, scan, INSERT, UPDATE or
// DELETE.
func statements(actions []*sql.Action) [][]*sql.Action {
	var flat []*sql.Action
	var walk func(a *sql.Action)
	walk = func(a *sql.Action) {
		if a == nil {
			return
		}
		for _, c := range a.Children {
			walk(c)
		}
		if !a.IsContainer() {
			n := *a
			n.Children = nil
			flat = append(flat, &n)
		}
	}

	for _, a := range actions {
		walk(a)
	}

	var result [][]*sql.Action
	for _, a := range flat {
		if len(result) == 0 || startsStatement(a.Type) {
			result = append(result, nil)
		}
		last := len(result) - 1
		result[last] = append(result[last], a)
	}
	return result
}

func startsStatement(typ string) bool {
	switch typ {
	case sql.OpSelect, sql.OpSequentialScan, sql.OpIndexScan,
		sql.OpInsert, sql.OpUpdate, sql.OpDelete:
		return true
	default:
		return false
	}
}

// condition returns the condition param of the action as an expression.
func condition(a *sql.Action, keys ...string) (sql.Expression, error) {
	v, ok := a.Params.Get(keys...)
	if !ok {
		return nil, nil
	}
	return parse.ParseCondition(v)
}

// fieldExpressions converts a fields param, a list of expressions or of
// "name", "name AS alias" and "name:alias" specs, or a mapping from alias
// to source path, into expressions.
func fieldExpressions(v interface{}) ([]sql.Expression, error) {
	switch v := v.(type) {
	case nil:
		return nil, nil
	case []sql.Expression:
		return v, nil
	case string:
		return fieldExpressions([]interface{}{v})
	case []string:
		items := make([]interface{}, len(v))
		for i, s := range v {
			items[i] = s
		}
		return fieldExpressions(items)
	case []interface{}:
		result := make([]sql.Expression, 0, len(v))
		for _, item := range v {
			e, err := fieldExpression(item)
			if err != nil {
				return nil, err
			}
			result = append(result, e)
		}
		return result, nil
	case map[string]interface{}:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		result := make([]sql.Expression, 0, len(v))
		for _, k := range keys {
			e, err := fieldExpression(v[k])
			if err != nil {
				return nil, err
			}
			result = append(result, aliased(e, k))
		}
		return result, nil
	default:
		return nil, sql.ErrValue.New(fmt.Sprintf("invalid fields of type %T", v))
	}
}

func fieldExpression(item interface{}) (sql.Expression, error) {
	switch item := item.(type) {
	case sql.Expression:
		return item, nil
	case string:
		name, alias := splitFieldSpec(item)
		var e sql.Expression = identifierOrStar(name)
		if alias != "" {
			e = aliased(e, alias)
		}
		return e, nil
	default:
		return nil, sql.ErrValue.New(fmt.Sprintf("invalid field of type %T", item))
	}
}

func identifierOrStar(name string) sql.Expression {
	if name == "*" {
		return expression.NewStar()
	}
	return expression.NewIdentifier(name)
}

// aliased names e unless it already reads a column of that name.
func aliased(e sql.Expression, name string) sql.Expression {
	if id, ok := e.(*expression.Identifier); ok && id.Name == name {
		return e
	}
	return expression.NewAlias(e, name)
}

// splitFieldSpec splits "name AS alias" and "name:alias".
func splitFieldSpec(spec string) (string, string) {
	spec = strings.TrimSpace(spec)
	upper := strings.ToUpper(spec)
	if idx := strings.Index(upper, " AS "); idx > 0 {
		return strings.TrimSpace(spec[:idx]), strings.TrimSpace(spec[idx+4:])
	}
	if idx := strings.Index(spec, ":"); idx > 0 {
		return strings.TrimSpace(spec[:idx]), strings.TrimSpace(spec[idx+1:])
	}
	return spec, ""
}

func isStar(e sql.Expression) bool {
	return e != nil && e.String() == "*"
}

func allStar(columns []sql.Expression) bool {
	return len(columns) == 0 || len(columns) == 1 && isStar(columns[0])
}

// aggregates returns the distinct aggregate calls found in the given
// expressions, in order of appearance.
func aggregates(exprs ...sql.Expression) []*expression.Aggregate {
	var (
		result []*expression.Aggregate
		seen   = make(map[string]bool)
	)
	for _, e := range exprs {
		sql.InspectExpression(e, func(e sql.Expression) bool {
			if agg, ok := e.(*expression.Aggregate); ok {
				if !seen[agg.String()] {
					seen[agg.String()] = true
					result = append(result, agg)
				}
				return false
			}
			return true
		})
	}
	return result
}

// replaceAggregates returns e with every aggregate call replaced by the
// column holding its result. ok is false when an aggregate has no column.
func replaceAggregates(e sql.Expression, columns map[string]string) (result sql.Expression, ok bool) {
	ok = true
	var replace func(e sql.Expression) sql.Expression
	replace = func(e sql.Expression) sql.Expression {
		switch e := e.(type) {
		case *expression.Aggregate:
			name, found := columns[e.String()]
			if !found {
				ok = false
				return e
			}
			return expression.NewIdentifier(name)
		case *expression.Alias:
			return expression.NewAlias(replace(e.Child), e.Name())
		case *expression.Binary:
			var right sql.Expression
			if e.Right != nil {
				right = replace(e.Right)
			}
			return expression.NewBinary(e.Op, replace(e.Left), right)
		case *expression.Unary:
			return expression.NewUnary(e.Op, replace(e.Child))
		case *expression.In:
			values := make([]sql.Expression, len(e.Values))
			for i, v := range e.Values {
				values[i] = replace(v)
			}
			return expression.NewIn(replace(e.Left), values...)
		case *expression.Between:
			return expression.NewBetween(replace(e.Val), replace(e.Lower), replace(e.Upper))
		case *expression.Function:
			args := make([]sql.Expression, len(e.Args))
			for i, a := range e.Args {
				args[i] = replace(a)
			}
			return expression.NewFunction(e.Name, args...)
		default:
			return e
		}
	}

	return replace(e), ok
}

// columnNames returns the names of the given columns, or false when one of
// them is not a plain or aliased column.
func columnNames(columns []sql.Expression) ([]string, bool) {
	names := make([]string, len(columns))
	for i, c := range columns {
		switch c := c.(type) {
		case *expression.Identifier:
			names[i] = c.Name
		case *expression.Alias:
			if _, ok := c.Child.(*expression.Identifier); !ok {
				return nil, false
			}
			names[i] = c.Name()
		default:
			return nil, false
		}
	}
	return names, true
}

// sortedKeys returns the keys of m in order.
func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
