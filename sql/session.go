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

package sql

import (
	"context"
	"fmt"
	"time"

	opentracing "github.com/opentracing/opentracing-go"
)

// Default execution limits.
const (
	DefaultMaxResultSize  = 1000000
	DefaultInSetThreshold = 8
)

// Options are the per call options visible to every executor.
type Options struct {
	// MaxResultSize caps the number of records an operator may produce.
	MaxResultSize int
	// InSetThreshold is the list size from which IN builds a hash set.
	InSetThreshold int
	// Mode is the conversion mode of the call.
	Mode ConversionMode
}

// DefaultOptions returns the options used when none are given.
func DefaultOptions() Options {
	return Options{
		MaxResultSize:  DefaultMaxResultSize,
		InSetThreshold: DefaultInSetThreshold,
		Mode:           DefaultConversionMode,
	}
}

// Context of the execution of a single action tree. Contexts form a chain:
// every pipeline step runs in a child of the previous context whose input
// is the data produced by that step. Variable lookups walk the chain.
type Context struct {
	context.Context
	// Input is the value the executors operate on.
	Input interface{}
	// Options of the call.
	Options Options

	parent       *Context
	vars         map[string]interface{}
	childResults []*ExecutionResult
	tracer       opentracing.Tracer
	queryTime    time.Time
}

// ContextOption is a function to configure the context.
type ContextOption func(*Context)

// WithTracer adds the given tracer to the context.
func WithTracer(t opentracing.Tracer) ContextOption {
	return func(ctx *Context) {
		ctx.tracer = t
	}
}

// WithInput sets the input value of the context.
func WithInput(v interface{}) ContextOption {
	return func(ctx *Context) {
		ctx.Input = v
	}
}

// WithOptions sets the call options of the context.
func WithOptions(o Options) ContextOption {
	return func(ctx *Context) {
		ctx.Options = o
	}
}

// WithVariables seeds the variables of the context.
func WithVariables(vars map[string]interface{}) ContextOption {
	return func(ctx *Context) {
		for k, v := range vars {
			ctx.vars[k] = v
		}
	}
}

// NewContext creates a new execution context. By default it has a noop
// tracer, no input and the default options.
func NewContext(ctx context.Context, opts ...ContextOption) *Context {
	c := &Context{
		Context:   ctx,
		Options:   DefaultOptions(),
		vars:      make(map[string]interface{}),
		tracer:    opentracing.NoopTracer{},
		queryTime: time.Now(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// NewEmptyContext returns a default context with default values.
func NewEmptyContext() *Context { return NewContext(context.TODO()) }

// QueryTime returns the time the root context was created.
func (c *Context) QueryTime() time.Time {
	return c.queryTime
}

// Span creates a new tracing span with the given context.
// It will return the span and a new context that should be passed to all
// children of this span.
func (c *Context) Span(
	opName string,
	opts ...opentracing.StartSpanOption,
) (opentracing.Span, *Context) {
	parentSpan := opentracing.SpanFromContext(c.Context)
	if parentSpan != nil {
		opts = append(opts, opentracing.ChildOf(parentSpan.Context()))
	}
	span := c.tracer.StartSpan(opName, opts...)
	ctx := opentracing.ContextWithSpan(c.Context, span)

	return span, c.WithContext(ctx)
}

// WithContext returns a new context with the given underlying context.
// Variables are shared with the receiver.
func (c *Context) WithContext(ctx context.Context) *Context {
	nc := *c
	nc.Context = ctx
	return &nc
}

// NewChild returns a context whose input is the given value. Variables set
// on the child are not visible to the parent.
func (c *Context) NewChild(input interface{}) *Context {
	return &Context{
		Context:   c.Context,
		Input:     input,
		Options:   c.Options,
		parent:    c,
		vars:      make(map[string]interface{}),
		tracer:    c.tracer,
		queryTime: c.queryTime,
	}
}

// Parent returns the parent context, or nil for the root.
func (c *Context) Parent() *Context { return c.parent }

// RootInput returns the input value of the root context.
func (c *Context) RootInput() interface{} {
	root := c
	for root.parent != nil {
		root = root.parent
	}
	return root.Input
}

// SetVariable binds a variable in this context.
func (c *Context) SetVariable(name string, value interface{}) {
	c.vars[name] = value
}

// Variable looks up a variable walking the context chain.
func (c *Context) Variable(name string) (interface{}, bool) {
	for ctx := c; ctx != nil; ctx = ctx.parent {
		if v, ok := ctx.vars[name]; ok {
			return v, true
		}
	}
	return nil, false
}

// SetChildResults stores the results of the children of the action about
// to be dispatched.
func (c *Context) SetChildResults(results []*ExecutionResult) {
	c.childResults = results
}

// ChildResults returns the results of the children of the current action.
func (c *Context) ChildResults() []*ExecutionResult {
	return c.childResults
}

// CheckResultSize returns an error when n exceeds the configured maximum
// result size.
func (c *Context) CheckResultSize(n int) error {
	if c.Options.MaxResultSize > 0 && n > c.Options.MaxResultSize {
		return ErrValue.New(fmt.Sprintf("result too large: %d records, limit is %d", n, c.Options.MaxResultSize))
	}
	return nil
}
