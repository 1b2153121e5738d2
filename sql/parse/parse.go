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
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	opentracing "github.com/opentracing/opentracing-go"
	"github.com/sirupsen/logrus"
	errors "gopkg.in/src-d/go-errors.v1"

	"github.com/exonware/go-xwquery/internal/similartext"
	"github.com/exonware/go-xwquery/sql"
	"github.com/exonware/go-xwquery/sql/expression"
)

var (
	// ErrUnsupportedSyntax is returned when a statement has a syntax that
	// cannot be turned into actions.
	ErrUnsupportedSyntax = errors.NewKind("unsupported syntax: %s")

	// ErrUnsupportedFeature is returned when a feature is not supported.
	ErrUnsupportedFeature = errors.NewKind("unsupported feature: %s")

	// ErrInvalidSQLValType is returned when a SQLVal type is not valid.
	ErrInvalidSQLValType = errors.NewKind("invalid SQLVal of type: %d")

	// ErrInvalidSortOrder is returned when a sort order is not valid.
	ErrInvalidSortOrder = errors.NewKind("invalid sort order: %s")

	// ErrUnknownDialect is returned for dialect names nobody registered.
	ErrUnknownDialect = errors.NewKind("unknown dialect %q%s")

	// ErrUnsupportedDialect is returned for known dialects that have no
	// parser yet.
	ErrUnsupportedDialect = errors.NewKind("dialect %s has no parser, supported dialects are %s")

	// ErrDialectAlreadyRegistered is returned when a parser is registered
	// twice for the same dialect.
	ErrDialectAlreadyRegistered = errors.NewKind("a parser for dialect %s is already registered")
)

// Options of a parse call.
type Options struct {
	// Mode is the conversion mode applied to unsupported constructs.
	Mode sql.ConversionMode
	// MaxNesting is the maximum recursion depth of the parser.
	MaxNesting int
	// AssignIDs assigns a random identifier to every produced action.
	AssignIDs bool
	// MaxTextLength overrides the text length limit of the validator.
	MaxTextLength int
}

// DefaultOptions returns the options used when none are given.
func DefaultOptions() Options {
	return Options{Mode: sql.DefaultConversionMode, MaxNesting: DefaultMaxNesting}
}

// Parser turns the text of a dialect into a sequence of actions.
type Parser interface {
	// Dialect returns the name of the dialect, used in error messages.
	Dialect() string
	// Parse parses the text. It never returns partial results.
	Parse(ctx *sql.Context, text string, opts Options) ([]*sql.Action, error)
}

// Stats are the accumulated statistics of a parser.
type Stats struct {
	Count     uint64
	Errors    uint64
	TotalTime time.Duration
}

// Validated wraps a parser with the security validator, per call
// statistics and error normalization.
type Validated struct {
	Parser
	Validator *Validator

	count  uint64
	errors uint64
	nanos  int64
}

// NewValidated wraps the given parser. A nil validator uses the default
// limits.
func NewValidated(p Parser, v *Validator) *Validated {
	if v == nil {
		v = NewValidator()
	}
	return &Validated{Parser: p, Validator: v}
}

// Parse validates the text and parses it. Errors that are not part of the
// error taxonomy, panics included, are returned as parse errors.
func (v *Validated) Parse(ctx *sql.Context, text string, opts Options) (actions []*sql.Action, err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			actions = nil
			err = sql.NewParseError(&sql.ParseError{
				Dialect: v.Dialect(),
				Message: fmt.Sprintf("internal error: %v", r),
			})
		}

		atomic.AddUint64(&v.count, 1)
		atomic.AddInt64(&v.nanos, int64(time.Since(start)))
		if err != nil {
			atomic.AddUint64(&v.errors, 1)
		}
	}()

	validator := v.Validator
	if opts.MaxTextLength > 0 {
		validator = &Validator{MaxTextLength: opts.MaxTextLength}
	}

	if err := validator.Validate(text); err != nil {
		return nil, err
	}

	actions, err = v.Parser.Parse(ctx, text, opts)
	if err != nil {
		return nil, normalizeError(v.Dialect(), err)
	}

	if opts.AssignIDs {
		for _, a := range actions {
			a.Inspect(func(a *sql.Action) bool {
				if a.ID == "" {
					a.ID = sql.NewActionID()
				}
				return true
			})
		}
	}

	return actions, nil
}

// Stats returns the statistics of the parser so far.
func (v *Validated) Stats() Stats {
	return Stats{
		Count:     atomic.LoadUint64(&v.count),
		Errors:    atomic.LoadUint64(&v.errors),
		TotalTime: time.Duration(atomic.LoadInt64(&v.nanos)),
	}
}

func normalizeError(dialect string, err error) error {
	switch {
	case sql.ErrSecurity.Is(err),
		sql.ErrParse.Is(err),
		sql.ErrValue.Is(err),
		sql.ErrUnsupportedOperation.Is(err),
		sql.ErrUnknownOperation.Is(err):
		return err
	default:
		return sql.NewParseError(&sql.ParseError{Dialect: dialect, Message: err.Error()})
	}
}

// Registry maps dialect names to parsers. Names are case insensitive.
type Registry struct {
	mu      sync.RWMutex
	parsers map[string]*Validated
	known   map[string]string
	aliases map[string]string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		parsers: make(map[string]*Validated),
		known:   make(map[string]string),
		aliases: make(map[string]string),
	}
}

// Register adds a parser for its dialect.
func (r *Registry) Register(p Parser) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := strings.ToUpper(p.Dialect())
	if _, ok := r.parsers[key]; ok {
		return ErrDialectAlreadyRegistered.New(p.Dialect())
	}

	r.parsers[key] = NewValidated(p, nil)
	r.known[key] = p.Dialect()
	return nil
}

// Declare makes a dialect known by name without a parser. Parsing it fails
// with ErrUnsupportedDialect until a parser is registered.
func (r *Registry) Declare(names ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, n := range names {
		key := strings.ToUpper(n)
		if _, ok := r.known[key]; !ok {
			r.known[key] = n
		}
	}
}

// Alias makes alias another name of the dialect.
func (r *Registry) Alias(alias, dialect string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.aliases[strings.ToUpper(alias)] = strings.ToUpper(dialect)
}

// Canonical returns the registered name of a dialect, resolving aliases.
func (r *Registry) Canonical(dialect string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	key := r.key(dialect)
	name, ok := r.known[key]
	if !ok {
		return "", r.unknown(dialect)
	}
	return name, nil
}

func (r *Registry) key(dialect string) string {
	key := strings.ToUpper(strings.TrimSpace(dialect))
	if target, ok := r.aliases[key]; ok {
		return target
	}
	return key
}

func (r *Registry) unknown(dialect string) error {
	names := make([]string, 0, len(r.known))
	for _, n := range r.known {
		names = append(names, n)
	}
	sort.Strings(names)

	return sql.ErrValue.Wrap(ErrUnknownDialect.New(dialect, similartext.FindFold(names, dialect)), "dialect lookup")
}

// Parser returns the parser of the given dialect.
func (r *Registry) Parser(dialect string) (*Validated, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	key := r.key(dialect)
	if p, ok := r.parsers[key]; ok {
		return p, nil
	}

	name, ok := r.known[key]
	if !ok {
		return nil, r.unknown(dialect)
	}

	supported := strings.Join(r.dialects(), ", ")
	return nil, sql.ErrUnsupportedOperation.Wrap(ErrUnsupportedDialect.New(name, supported), "parse", name)
}

// Dialects returns the sorted names of the dialects that have a parser.
func (r *Registry) Dialects() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.dialects()
}

func (r *Registry) dialects() []string {
	names := make([]string, 0, len(r.parsers))
	for _, p := range r.parsers {
		names = append(names, p.Dialect())
	}
	sort.Strings(names)
	return names
}

// Known returns the sorted names of every known dialect, with or without
// a parser.
func (r *Registry) Known() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.known))
	for _, n := range r.known {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Parse parses the text with the parser of the given dialect.
func (r *Registry) Parse(ctx *sql.Context, dialect, text string, opts Options) ([]*sql.Action, error) {
	p, err := r.Parser(dialect)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(text) == "" {
		logrus.WithField("query", text).
			Infof("query became empty, so it will be ignored")
		return nil, nil
	}

	return p.Parse(ctx, text, opts)
}

// DefaultRegistry holds the parsers of every built-in dialect.
var DefaultRegistry = newDefaultRegistry()

// Parse parses the given text of the given dialect and returns the
// sequence of actions it describes.
func Parse(ctx *sql.Context, dialect, text string, opts Options) ([]*sql.Action, error) {
	span, ctx := ctx.Span("parse",
		opentracing.Tag{Key: "query", Value: text},
		opentracing.Tag{Key: "dialect", Value: dialect},
	)
	defer span.Finish()

	return DefaultRegistry.Parse(ctx, dialect, text, opts)
}

// Dialects returns the dialects of the default registry that have a
// parser.
func Dialects() []string {
	return DefaultRegistry.Dialects()
}

// ParseExpression parses a standalone SQL expression, such as the text of
// a condition given as a string.
func ParseExpression(text string) (sql.Expression, error) {
	if err := NewValidator().Validate(text); err != nil {
		return nil, err
	}

	tokens, err := Tokenize("SQL", text)
	if err != nil {
		return nil, err
	}

	p := newParser("SQL", text, tokens, DefaultOptions())
	e, err := p.parseExpression()
	if err != nil {
		return nil, err
	}

	if !p.atEOF() {
		return nil, p.unexpected(p.peek(), "end of expression")
	}
	return e, nil
}

// ParseCondition turns a condition parameter into an expression: an
// expression is returned as is, strings are parsed as SQL expressions and
// mappings are read as dict-form conditions.
func ParseCondition(cond interface{}) (sql.Expression, error) {
	switch c := cond.(type) {
	case nil:
		return nil, nil
	case sql.Expression:
		return c, nil
	case string:
		return ParseExpression(c)
	default:
		return expression.FromCondition(c)
	}
}
