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

package analyzer

import (
	"fmt"
	"os"
	"strings"

	opentracing "github.com/opentracing/opentracing-go"
	"github.com/sirupsen/logrus"
	errors "gopkg.in/src-d/go-errors.v1"

	"github.com/exonware/go-xwquery/sql"
	"github.com/exonware/go-xwquery/sql/parse"
	"github.com/exonware/go-xwquery/sql/stats"
)

const debugAnalyzerKey = "DEBUG_ANALYZER"

// DefaultMaxIterations is the number of times a batch runs at most before
// it is considered not to converge.
const DefaultMaxIterations = 1000

// DialectKey is the metadata key of the root action holding the dialect
// the statements were parsed from. Nested queries are parsed with it.
const DialectKey = "dialect"

// ErrMaxAnalysisIters is thrown when the analysis iterations are exceeded
var ErrMaxAnalysisIters = errors.NewKind("exceeded max analysis iterations (%d)")

// ErrInAnalysis is thrown for generic analyzer errors
var ErrInAnalysis = errors.NewKind("error in analysis: %s")

// ErrValidationFailed is returned when a validation rule rejects the tree.
var ErrValidationFailed = errors.NewKind("plan is not valid: %s")

// ParseFunc parses the text of a nested query, such as the body of a
// common table expression.
type ParseFunc func(ctx *sql.Context, dialect, text string) ([]*sql.Action, error)

func defaultParse(ctx *sql.Context, dialect, text string) ([]*sql.Action, error) {
	return parse.Parse(ctx, dialect, text, parse.DefaultOptions())
}

// Builder provides an easy way to generate Analyzer with custom rules and options.
type Builder struct {
	preAnalyzeRules     []Rule
	postAnalyzeRules    []Rule
	preValidationRules  []ValidationRule
	postValidationRules []ValidationRule
	stats               stats.Provider
	parse               ParseFunc
	debug               bool
	optimize            bool
	maxIterations       int
}

// NewBuilder creates a new Builder using the given statistics provider.
// This builder allow us add custom Rules and modify some internal properties.
func NewBuilder(p stats.Provider) *Builder {
	return &Builder{
		stats:         p,
		parse:         defaultParse,
		optimize:      true,
		maxIterations: DefaultMaxIterations,
	}
}

// WithDebug activates debug on the Analyzer.
func (ab *Builder) WithDebug() *Builder {
	ab.debug = true

	return ab
}

// WithoutOptimizer disables the rewrite rules. Statements are still
// resolved and validated.
func (ab *Builder) WithoutOptimizer() *Builder {
	ab.optimize = false

	return ab
}

// WithMaxIterations sets the maximum number of iterations of the batches
// that run until the tree stops changing.
func (ab *Builder) WithMaxIterations(n int) *Builder {
	if n > 0 {
		ab.maxIterations = n
	}
	return ab
}

// WithParser sets the function used to parse nested queries.
func (ab *Builder) WithParser(fn ParseFunc) *Builder {
	ab.parse = fn
	return ab
}

// AddPreAnalyzeRule adds a new rule to the analyze before the standard analyzer rules.
func (ab *Builder) AddPreAnalyzeRule(name string, fn RuleFunc) *Builder {
	ab.preAnalyzeRules = append(ab.preAnalyzeRules, Rule{name, fn})

	return ab
}

// AddPostAnalyzeRule adds a new rule to the analyzer after standard analyzer rules.
func (ab *Builder) AddPostAnalyzeRule(name string, fn RuleFunc) *Builder {
	ab.postAnalyzeRules = append(ab.postAnalyzeRules, Rule{name, fn})

	return ab
}

// AddPreValidationRule adds a new rule to the analyzer before standard validation rules.
func (ab *Builder) AddPreValidationRule(name string, fn ValidateFunc) *Builder {
	ab.preValidationRules = append(ab.preValidationRules, ValidationRule{name, fn})

	return ab
}

// AddPostValidationRule adds a new rule to the analyzer after standard validation rules.
func (ab *Builder) AddPostValidationRule(name string, fn ValidateFunc) *Builder {
	ab.postValidationRules = append(ab.postValidationRules, ValidationRule{name, fn})

	return ab
}

// Build creates a new Analyzer using all previous data setted to the Builder
func (ab *Builder) Build() *Analyzer {
	_, debug := os.LookupEnv(debugAnalyzerKey)

	var defaultRules []Rule
	if ab.optimize {
		defaultRules = DefaultRules
	}

	var batches = []*Batch{
		{
			Desc:       "pre-analyzer",
			Iterations: ab.maxIterations,
			Rules:      ab.preAnalyzeRules,
		},
		{
			Desc:       "once-before",
			Iterations: 1,
			Rules:      OnceBeforeDefault,
		},
		{
			Desc:       "default-rules",
			Iterations: ab.maxIterations,
			Rules:      defaultRules,
		},
		{
			Desc:       "post-analyzer",
			Iterations: ab.maxIterations,
			Rules:      ab.postAnalyzeRules,
		},
	}

	var validation []ValidationRule
	validation = append(validation, ab.preValidationRules...)
	validation = append(validation, DefaultValidationRules...)
	validation = append(validation, ab.postValidationRules...)

	parseFn := ab.parse
	if parseFn == nil {
		parseFn = defaultParse
	}

	return &Analyzer{
		Debug:           debug || ab.debug,
		debugCtx:        make([]string, 0),
		Batches:         batches,
		ValidationRules: validation,
		Stats:           ab.stats,
		Parse:           parseFn,
	}
}

// Analyzer turns the parsed statements into executable pipelines and
// rewrites them with the optimizer rules.
type Analyzer struct {
	// Whether to log various debugging messages
	Debug bool
	// Whether to output the plan at each step of the analyzer
	Verbose  bool
	debugCtx []string
	// Batches of Rules to apply.
	Batches []*Batch
	// ValidationRules run once after every batch.
	ValidationRules []ValidationRule
	// Stats provides row counts and declared indexes. It may be nil.
	Stats stats.Provider
	// Parse parses nested queries.
	Parse ParseFunc
}

// NewDefault creates a default Analyzer instance with all default Rules and configuration.
// To add custom rules, the easiest way is use the Builder.
func NewDefault(p stats.Provider) *Analyzer {
	return NewBuilder(p).Build()
}

// Log prints an INFO message to stdout with the given message and args
// if the analyzer is in debug mode.
func (a *Analyzer) Log(msg string, args ...interface{}) {
	if a != nil && a.Debug {
		if len(a.debugCtx) > 0 {
			ctx := strings.Join(a.debugCtx, "/")
			logrus.Infof("%s: "+msg, append([]interface{}{ctx}, args...)...)
		} else {
			logrus.Infof(msg, args...)
		}
	}
}

// LogAction prints the action given if Verbose logging is enabled.
func (a *Analyzer) LogAction(n *sql.Action) {
	if a != nil && n != nil && a.Verbose {
		if len(a.debugCtx) > 0 {
			ctx := strings.Join(a.debugCtx, "/")
			fmt.Printf("%s: %s", ctx, n.String())
		} else {
			fmt.Printf("%s", n.String())
		}
	}
}

// PushDebugContext pushes the given context string onto the context stack, to use when logging debug messages.
func (a *Analyzer) PushDebugContext(msg string) {
	if a != nil && a.Debug {
		a.debugCtx = append(a.debugCtx, msg)
	}
}

// PopDebugContext pops a context message off the context stack.
func (a *Analyzer) PopDebugContext() {
	if a != nil && len(a.debugCtx) > 0 {
		a.debugCtx = a.debugCtx[:len(a.debugCtx)-1]
	}
}

// Analyze resolves, optimizes and validates the tree. The tree given is
// not modified. A tree that is not a container is analyzed as the only
// statement of a ROOT.
func (a *Analyzer) Analyze(ctx *sql.Context, n *sql.Action) (*sql.Action, error) {
	span, ctx := ctx.Span("analyze", opentracing.Tags{
		"plan": n.String(),
	})
	defer span.Finish()

	prev := n.Clone()
	if !prev.IsContainer() {
		prev = sql.NewRoot(prev)
	}

	var err error
	a.Log("starting analysis of action of type: %s", prev.Type)
	for _, batch := range a.Batches {
		a.PushDebugContext(batch.Desc)
		prev, err = batch.Eval(ctx, a, prev)
		a.PopDebugContext()
		if ErrMaxAnalysisIters.Is(err) {
			a.Log("%s", err)
			continue
		}
		if err != nil {
			return nil, err
		}
	}

	a.PushDebugContext("validation")
	defer a.PopDebugContext()
	for _, rule := range a.ValidationRules {
		if err := rule.Apply(a, prev); err != nil {
			span.SetTag("error", true)
			return nil, err
		}
	}

	return prev, nil
}

// dialectOf returns the dialect the tree was parsed from.
func dialectOf(n *sql.Action) string {
	if d, ok := n.Metadata[DialectKey].(string); ok && d != "" {
		return d
	}
	return "SQL"
}
