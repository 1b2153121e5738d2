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

package rowexec

import (
	"fmt"
	"time"

	opentracing "github.com/opentracing/opentracing-go"
	"github.com/sirupsen/logrus"

	"github.com/exonware/go-xwquery/sql"
	"github.com/exonware/go-xwquery/sql/plan"
)

// DefaultHistorySize is the number of executed actions kept by a builder.
const DefaultHistorySize = 100

// DefaultBuilder runs trees with the default executors.
var DefaultBuilder = NewBuilder(plan.NewDefaultRegistry(), DefaultHistorySize)

// BaseBuilder executes action trees. Containers run as pipelines: the
// data of every statement is the input of the next one. Any other action
// first runs its children against its own input, depth-first, and is
// then dispatched to the executor of its operation.
type BaseBuilder struct {
	registry *plan.Registry
	history  *History
}

// NewBuilder returns a builder running actions with the executors of the
// registry. It remembers the last historySize executed actions.
func NewBuilder(r *plan.Registry, historySize int) *BaseBuilder {
	if r == nil {
		r = plan.NewDefaultRegistry()
	}
	return &BaseBuilder{registry: r, history: NewHistory(historySize)}
}

// Registry returns the executors used by the builder.
func (b *BaseBuilder) Registry() *plan.Registry {
	return b.registry
}

// History returns the executed actions, oldest first.
func (b *BaseBuilder) History() []Record {
	return b.history.Records()
}

// Build executes the tree against the input of the context. Failures are
// returned as unsuccessful results; the first failure stops the
// execution.
func (b *BaseBuilder) Build(ctx *sql.Context, n *sql.Action) *sql.ExecutionResult {
	if n == nil {
		return sql.NewResult(sql.Root, nil, nil)
	}
	return b.buildNode(ctx, n)
}

func (b *BaseBuilder) buildNode(ctx *sql.Context, n *sql.Action) *sql.ExecutionResult {
	if n.IsContainer() {
		return b.buildContainer(ctx, n)
	}
	return b.buildAction(ctx, n)
}

// buildContainer runs the statements of a container. A container of
// programs holds independent statements, each of them runs against the
// input of the container and the result is the one of the last.
func (b *BaseBuilder) buildContainer(ctx *sql.Context, n *sql.Action) *sql.ExecutionResult {
	span, ctx := ctx.Span("plan."+n.Type, opentracing.Tag{Key: "statements", Value: len(n.Children)})
	defer span.Finish()

	if !isStatementList(n) {
		return b.buildPipeline(ctx, n.Type, n.Children)
	}

	last := sql.NewResult(n.Type, nil, nil)
	for i, stmt := range n.Children {
		res := b.buildContainer(ctx, stmt)
		if !res.Success {
			span.SetTag("error", true)
			return res
		}
		res.Metadata["statement"] = i
		last = res
	}
	last.Metadata["statement_count"] = len(n.Children)
	return last
}

// isStatementList reports whether the container only holds programs.
func isStatementList(n *sql.Action) bool {
	if len(n.Children) < 2 {
		return false
	}
	for _, c := range n.Children {
		if c.Type != sql.Program {
			return false
		}
	}
	return true
}

// buildPipeline runs the actions in order. Every action producing data
// runs the rest of the pipeline in a child context whose input is that
// data.
func (b *BaseBuilder) buildPipeline(ctx *sql.Context, op string, actions []*sql.Action) *sql.ExecutionResult {
	current := ctx
	last := sql.NewResult(op, nil, nil)
	for _, a := range actions {
		res := b.buildNode(current, a)
		if !res.Success {
			return res
		}

		if res.Data != nil {
			current = current.NewChild(res.Data)
		}
		last = res
	}
	return last
}

// buildAction runs the children of the action and then the action
// itself. Executor errors and panics become failed results.
func (b *BaseBuilder) buildAction(ctx *sql.Context, a *sql.Action) (res *sql.ExecutionResult) {
	span, ctx := ctx.Span("plan."+a.Type, opentracing.Tag{Key: "children", Value: len(a.Children)})
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			res = b.fail(a, sql.ErrExecution.New(a.Type, fmt.Sprintf("panic: %v", r)))
		}

		if !res.Success {
			span.SetTag("error", true)
		}
		span.Finish()
		b.history.Add(Record{Operation: a.Type, Success: res.Success, Duration: time.Since(start)})
	}()

	if err := ctx.Err(); err != nil {
		return b.fail(a, sql.ErrExecution.New(a.Type, err.Error()))
	}

	results := make([]*sql.ExecutionResult, 0, len(a.Children))
	for _, c := range a.Children {
		r := b.buildNode(ctx, c)
		if !r.Success {
			return r
		}
		results = append(results, r)
	}
	ctx.SetChildResults(results)

	r, err := b.registry.Execute(ctx, a)
	if err != nil {
		return b.fail(a, err)
	}

	if r.Metadata == nil {
		r.Metadata = make(map[string]interface{})
	}
	if a.ID != "" {
		r.Metadata["action_id"] = a.ID
	}
	return r
}

func (b *BaseBuilder) fail(a *sql.Action, err error) *sql.ExecutionResult {
	logrus.WithFields(logrus.Fields{
		"operation": a.Type,
		"line":      a.Line,
		"column":    a.Column,
	}).Debugf("action failed: %s", err)

	return sql.NewFailure(a.Type, err)
}
