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

// Package xwquery translates queries between dialects and executes them
// against in-memory data.
package xwquery

import (
	"context"
	"time"

	opentracing "github.com/opentracing/opentracing-go"
	"github.com/sirupsen/logrus"

	"github.com/exonware/go-xwquery/sql"
	"github.com/exonware/go-xwquery/sql/analyzer"
	"github.com/exonware/go-xwquery/sql/generate"
	"github.com/exonware/go-xwquery/sql/parse"
	"github.com/exonware/go-xwquery/sql/plan"
	"github.com/exonware/go-xwquery/sql/rowexec"
	"github.com/exonware/go-xwquery/sql/stats"
)

// Engine parses, analyzes and executes queries.
type Engine struct {
	Config      *Config
	Analyzer    *analyzer.Analyzer
	Builder     *rowexec.BaseBuilder
	Parsers     *parse.Registry
	Generators  *generate.Registry
	Detector    *parse.Detector
	ProcessList *ProcessList

	cache  *sql.ActionCache
	slow   *SlowQueryLog
	tracer opentracing.Tracer
	store  *stats.BoltProvider
}

// Option configures an Engine.
type Option func(*engineOptions)

type engineOptions struct {
	stats    stats.Provider
	registry *plan.Registry
	tracer   opentracing.Tracer
	debug    bool
}

// WithStats sets the statistics provider of the optimizer.
func WithStats(p stats.Provider) Option {
	return func(o *engineOptions) { o.stats = p }
}

// WithRegistry sets the executor registry.
func WithRegistry(r *plan.Registry) Option {
	return func(o *engineOptions) { o.registry = r }
}

// WithTracer sets the tracer of the spans of every query.
func WithTracer(t opentracing.Tracer) Option {
	return func(o *engineOptions) { o.tracer = t }
}

// WithDebug logs every analyzer step.
func WithDebug() Option {
	return func(o *engineOptions) { o.debug = true }
}

// New creates a new Engine. A nil configuration uses the defaults.
func New(cfg *Config, opts ...Option) *Engine {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	var o engineOptions
	for _, opt := range opts {
		opt(&o)
	}

	if o.registry == nil {
		o.registry = plan.NewDefaultRegistry()
	}
	if o.tracer == nil {
		o.tracer = opentracing.NoopTracer{}
	}

	var store *stats.BoltProvider
	if o.stats == nil && cfg.StatsDir != "" {
		store = stats.NewBoltProvider(cfg.StatsDir)
		o.stats = store
	}

	e := &Engine{
		Config:      cfg,
		Builder:     rowexec.NewBuilder(o.registry, rowexec.DefaultHistorySize),
		Parsers:     parse.DefaultRegistry,
		Generators:  generate.DefaultRegistry,
		Detector:    parse.NewDetector(parse.DefaultConfidenceThreshold),
		ProcessList: NewProcessList(),
		slow:        NewSlowQueryLog(cfg.SlowQueryThreshold(), cfg.SlowQueryLogSize),
		tracer:      o.tracer,
		store:       store,
	}

	if cfg.EnableQueryCaching {
		e.cache = sql.NewActionCache(cfg.QueryCacheSize)
	} else {
		e.cache = sql.NewActionCache(0)
	}

	ab := analyzer.NewBuilder(o.stats).
		WithMaxIterations(cfg.MaxAnalysisIterations).
		WithParser(func(ctx *sql.Context, dialect, text string) ([]*sql.Action, error) {
			return e.Parsers.Parse(ctx, dialect, text, e.parseOptions(cfg.Mode()))
		})
	if !cfg.EnableOptimizer {
		ab = ab.WithoutOptimizer()
	}
	if o.debug {
		ab = ab.WithDebug()
	}
	e.Analyzer = ab.Build()

	return e
}

// QueryOption configures a single call.
type QueryOption func(*queryOptions)

type queryOptions struct {
	dialect string
	mode    *sql.ConversionMode
	vars    map[string]interface{}
}

// WithDialect sets the dialect of the query text. Without it the dialect
// is detected.
func WithDialect(d string) QueryOption {
	return func(o *queryOptions) { o.dialect = d }
}

// WithMode overrides the configured conversion mode.
func WithMode(m sql.ConversionMode) QueryOption {
	return func(o *queryOptions) { o.mode = &m }
}

// WithVariables makes the given variables visible to the query.
func WithVariables(vars map[string]interface{}) QueryOption {
	return func(o *queryOptions) { o.vars = vars }
}

func (e *Engine) queryOptions(opts []QueryOption) queryOptions {
	var o queryOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (e *Engine) mode(o queryOptions) sql.ConversionMode {
	if o.mode != nil {
		return *o.mode
	}
	return e.Config.Mode()
}

func (e *Engine) parseOptions(mode sql.ConversionMode) parse.Options {
	return parse.Options{
		Mode:          mode,
		MaxNesting:    e.Config.MaxNestingDepth,
		AssignIDs:     e.Config.AssignIDs,
		MaxTextLength: e.Config.MaxTextLength,
	}
}

func (e *Engine) generateOptions(mode sql.ConversionMode) generate.Options {
	return generate.Options{
		Mode:   mode,
		Pretty: e.Config.PrettyPrint,
		Indent: e.Config.Indent,
	}
}

func (e *Engine) newContext(ctx context.Context, input interface{}, o queryOptions) *sql.Context {
	return sql.NewContext(ctx,
		sql.WithInput(input),
		sql.WithTracer(e.tracer),
		sql.WithVariables(o.vars),
		sql.WithOptions(sql.Options{
			MaxResultSize:  e.Config.MaxResultSize,
			InSetThreshold: e.Config.InSetThreshold,
			Mode:           e.mode(o),
		}),
	)
}

// Detect returns the dialect of the text. Guesses below the confidence
// threshold fall back to the configured default dialect.
func (e *Engine) Detect(text string) (string, float64) {
	dialect, confidence := e.Detector.Detect(text)
	if !e.Detector.IsConfident(text) && e.Config.DefaultDialect != "" {
		return e.Config.DefaultDialect, confidence
	}
	return dialect, confidence
}

func (e *Engine) dialect(text string, o queryOptions) (string, error) {
	if o.dialect == "" {
		d, _ := e.Detect(text)
		return d, nil
	}
	return e.Parsers.Canonical(o.dialect)
}

// Parse returns the tree of the text as a ROOT action whose metadata holds
// the dialect.
func (e *Engine) Parse(ctx context.Context, text string, opts ...QueryOption) (*sql.Action, error) {
	o := e.queryOptions(opts)
	return e.parse(e.newContext(ctx, nil, o), text, o)
}

func (e *Engine) parse(ctx *sql.Context, text string, o queryOptions) (*sql.Action, error) {
	dialect, err := e.dialect(text, o)
	if err != nil {
		return nil, err
	}

	mode := e.mode(o)
	key := sql.CacheKey(dialect, mode.String(), text)
	if tree, err := e.cache.Get(key); err == nil {
		return tree, nil
	}

	actions, err := e.Parsers.Parse(ctx, dialect, text, e.parseOptions(mode))
	if err != nil {
		return nil, err
	}

	tree := sql.NewRoot(actions...)
	tree.Metadata = map[string]interface{}{analyzer.DialectKey: dialect}
	e.cache.Put(key, tree)
	return tree, nil
}

// Execute parses the text, analyzes it and runs it against input. The
// result is never nil; on failure the returned error is the error of the
// result.
func (e *Engine) Execute(
	ctx context.Context,
	text string,
	input interface{},
	opts ...QueryOption,
) (*sql.ExecutionResult, error) {
	start := time.Now()
	o := e.queryOptions(opts)

	if timeout := e.Config.QueryTimeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	sctx := e.newContext(ctx, input, o)
	dialect, err := e.dialect(text, o)
	if err != nil {
		return e.failed("parse", err)
	}
	o.dialect = dialect

	sctx, id := e.ProcessList.AddProcess(sctx, text, dialect)
	defer e.ProcessList.Done(id)

	span, sctx := sctx.Span("query", opentracing.Tags{"query": text, "dialect": dialect})
	defer span.Finish()

	tree, err := e.parse(sctx, text, o)
	if err != nil {
		span.SetTag("error", true)
		return e.failed("parse", err)
	}

	res := e.run(sctx, tree)

	elapsed := time.Since(start)
	e.slow.Observe(text, dialect, elapsed)
	res.Metadata["dialect"] = dialect
	res.Metadata["duration_ms"] = float64(elapsed) / float64(time.Millisecond)

	if !res.Success {
		span.SetTag("error", true)
		logrus.WithFields(logrus.Fields{
			"query":   text,
			"dialect": dialect,
		}).Debugf("query failed: %s", res.Error)
	}
	return res, res.Err()
}

// Run analyzes and executes an already built tree against input.
func (e *Engine) Run(
	ctx context.Context,
	tree *sql.Action,
	input interface{},
	opts ...QueryOption,
) (*sql.ExecutionResult, error) {
	o := e.queryOptions(opts)
	res := e.run(e.newContext(ctx, input, o), tree)
	return res, res.Err()
}

func (e *Engine) run(ctx *sql.Context, tree *sql.Action) *sql.ExecutionResult {
	analyzed, err := e.Analyzer.Analyze(ctx, tree)
	if err != nil {
		return sql.NewFailure("analyze", err)
	}
	return e.Builder.Build(ctx, analyzed)
}

func (e *Engine) failed(op string, err error) (*sql.ExecutionResult, error) {
	res := sql.NewFailure(op, err)
	return res, res.Err()
}

// Generate renders the actions in the given dialect.
func (e *Engine) Generate(
	ctx context.Context,
	actions []*sql.Action,
	dialect string,
	opts ...QueryOption,
) (string, error) {
	o := e.queryOptions(opts)
	sctx := e.newContext(ctx, nil, o)
	return e.Generators.Generate(sctx, dialect, unwrap(actions), e.generateOptions(e.mode(o)))
}

// Translate parses the text and renders it in the target dialect. The
// source dialect is detected when empty.
func (e *Engine) Translate(
	ctx context.Context,
	text, from, to string,
	opts ...QueryOption,
) (string, error) {
	o := e.queryOptions(opts)
	o.dialect = from
	sctx := e.newContext(ctx, nil, o)

	tree, err := e.parse(sctx, text, o)
	if err != nil {
		return "", err
	}
	return e.Generators.Generate(sctx, to, tree.Children, e.generateOptions(e.mode(o)))
}

// Explain returns the analyzed tree of the text as printed by the tree
// printer.
func (e *Engine) Explain(ctx context.Context, text string, opts ...QueryOption) (string, error) {
	o := e.queryOptions(opts)
	sctx := e.newContext(ctx, nil, o)

	tree, err := e.parse(sctx, text, o)
	if err != nil {
		return "", err
	}

	analyzed, err := e.Analyzer.Analyze(sctx, tree)
	if err != nil {
		return "", err
	}
	return analyzed.String(), nil
}

// RegisterExecutor adds or replaces the executor of an operation.
func (e *Engine) RegisterExecutor(x plan.Executor) error {
	return e.Builder.Registry().Register(x)
}

// Kill cancels a running query.
func (e *Engine) Kill(id uint64) error {
	return e.ProcessList.Kill(id)
}

// SlowQueries returns the last queries slower than the configured
// threshold, oldest first.
func (e *Engine) SlowQueries() []SlowQuery {
	return e.slow.Queries()
}

// History returns the last executed actions, oldest first.
func (e *Engine) History() []rowexec.Record {
	return e.Builder.History()
}

// StatsStore returns the statistics persisted under the configured
// stats_dir, or nil when there is none.
func (e *Engine) StatsStore() *stats.BoltProvider {
	return e.store
}

// Close releases the statistics store.
func (e *Engine) Close() error {
	if e.store == nil {
		return nil
	}
	return e.store.Close()
}

// Stats are the counters of an engine.
type Stats struct {
	Parsers     map[string]parse.Stats
	Generators  map[string]generate.Stats
	Executors   map[string]uint64
	CacheHits   uint64
	CacheMisses uint64
}

// Stats returns the counters of the parsers, generators and executors.
func (e *Engine) Stats() Stats {
	s := Stats{
		Parsers:    make(map[string]parse.Stats),
		Generators: make(map[string]generate.Stats),
		Executors:  e.Builder.Registry().Stats(),
	}

	for _, d := range e.Parsers.Dialects() {
		if p, err := e.Parsers.Parser(d); err == nil {
			s.Parsers[d] = p.Stats()
		}
	}

	for _, d := range e.Generators.Dialects() {
		if g, err := e.Generators.Generator(d); err == nil {
			s.Generators[d] = g.Stats()
		}
	}

	s.CacheHits, s.CacheMisses = e.cache.Stats()
	return s
}

// unwrap returns the statements of a single ROOT action.
func unwrap(actions []*sql.Action) []*sql.Action {
	if len(actions) == 1 && actions[0].Type == sql.Root {
		return actions[0].Children
	}
	return actions
}
