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
	"testing"

	opentracing "github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/mocktracer"
	"github.com/stretchr/testify/require"
)

func TestContextChain(t *testing.T) {
	require := require.New(t)

	root := NewContext(context.Background(),
		WithInput([]interface{}{1}),
		WithVariables(map[string]interface{}{"x": 1}),
	)
	root.SetVariable("y", 2)

	child := root.NewChild([]interface{}{2})
	child.SetVariable("x", 10)

	v, ok := child.Variable("x")
	require.True(ok)
	require.Equal(10, v)

	v, ok = child.Variable("y")
	require.True(ok)
	require.Equal(2, v)

	v, _ = root.Variable("x")
	require.Equal(1, v)

	_, ok = child.Variable("z")
	require.False(ok)

	require.Equal(root, child.Parent())
	require.Equal([]interface{}{1}, child.RootInput())
	require.Equal(root.QueryTime(), child.QueryTime())
	require.Equal(DefaultOptions(), child.Options)
}

func TestContextResultSize(t *testing.T) {
	require := require.New(t)

	ctx := NewContext(context.Background(), WithOptions(Options{MaxResultSize: 2}))
	require.NoError(ctx.CheckResultSize(2))
	err := ctx.CheckResultSize(3)
	require.True(ErrValue.Is(err))

	unlimited := NewContext(context.Background(), WithOptions(Options{}))
	require.NoError(unlimited.CheckResultSize(1 << 30))
}

func TestContextSpan(t *testing.T) {
	require := require.New(t)

	tracer := mocktracer.New()
	ctx := NewContext(context.Background(), WithTracer(tracer))

	parent, pctx := ctx.Span("parse")
	child, _ := pctx.Span("plan.WHERE", opentracing.Tag{Key: "n", Value: 1})
	child.Finish()
	parent.Finish()

	spans := tracer.FinishedSpans()
	require.Len(spans, 2)
	require.Equal("plan.WHERE", spans[0].OperationName)
	require.Equal(spans[1].SpanContext.SpanID, spans[0].ParentID)
}

func TestChildResults(t *testing.T) {
	require := require.New(t)

	ctx := NewEmptyContext()
	require.Nil(ctx.ChildResults())

	results := []*ExecutionResult{NewResult(OpSelect, nil, nil)}
	ctx.SetChildResults(results)
	require.Equal(results, ctx.ChildResults())
}
