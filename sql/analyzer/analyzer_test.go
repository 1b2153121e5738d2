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
	"bytes"
	"fmt"
	"os"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/exonware/go-xwquery/sql"
	"github.com/exonware/go-xwquery/sql/stats"
)

func TestBatchEval(t *testing.T) {
	require := require.New(t)
	ctx := sql.NewEmptyContext()
	a := NewDefault(nil)

	counter := func(ctx *sql.Context, a *Analyzer, n *sql.Action) (*sql.Action, error) {
		c := withParams(n)
		v, _ := c.Params.GetInt("n")
		c.Params["n"] = v + 1
		return c, nil
	}

	b := &Batch{Desc: "counter", Iterations: 3, Rules: []Rule{{"count", counter}}}
	n, err := b.Eval(ctx, a, sql.NewRoot())
	require.Error(err)
	require.True(ErrMaxAnalysisIters.Is(err))
	require.NotNil(n)

	once := &Batch{Desc: "once", Iterations: 1, Rules: []Rule{{"count", counter}}}
	n, err = once.Eval(ctx, a, sql.NewRoot())
	require.NoError(err)
	v, _ := n.Params.GetInt("n")
	require.Equal(int64(1), v)

	failing := &Batch{Iterations: 5, Rules: []Rule{{"fail", func(*sql.Context, *Analyzer, *sql.Action) (*sql.Action, error) {
		return nil, fmt.Errorf("boom")
	}}}}
	_, err = failing.Eval(ctx, a, sql.NewRoot())
	require.EqualError(err, "boom")
}

func TestBuilder(t *testing.T) {
	require := require.New(t)

	var calls []string
	rule := func(name string) RuleFunc {
		return func(ctx *sql.Context, a *Analyzer, n *sql.Action) (*sql.Action, error) {
			calls = append(calls, name)
			return n, nil
		}
	}

	a := NewBuilder(nil).
		AddPreAnalyzeRule("pre", rule("pre")).
		AddPostAnalyzeRule("post", rule("post")).
		WithMaxIterations(2).
		Build()

	_, err := a.Analyze(sql.NewEmptyContext(), parseSQL(t, `SELECT * FROM users`))
	require.NoError(err)
	require.Equal([]string{"pre", "post"}, calls)
	require.Equal(2, a.Batches[0].Iterations)
}

func TestBuilderValidationRules(t *testing.T) {
	require := require.New(t)

	reject := func(a *Analyzer, n *sql.Action) error {
		return ErrValidationFailed.New("rejected")
	}

	a := NewBuilder(nil).AddPostValidationRule("reject", reject).Build()
	_, err := a.Analyze(sql.NewEmptyContext(), parseSQL(t, `SELECT * FROM users`))
	require.Error(err)
	require.True(ErrValidationFailed.Is(err))
}

func TestWithoutOptimizer(t *testing.T) {
	require := require.New(t)

	a := NewBuilder(nil).WithoutOptimizer().Build()
	n := analyze(t, a, `SELECT name FROM users WHERE age > 30`)
	require.Equal([]string{sql.OpSequentialScan, sql.OpWhere, sql.OpProject}, types(n.Children))
	require.False(n.Children[0].Params.Has("filter"))
}

func TestAnalyzeNonContainer(t *testing.T) {
	require := require.New(t)

	n, err := NewDefault(nil).Analyze(sql.NewEmptyContext(), sql.NewAction(sql.OpLimit, sql.Params{"count": int64(1)}))
	require.NoError(err)
	require.Equal(sql.Root, n.Type)
	require.Equal([]string{sql.OpLimit}, types(n.Children))
}

func TestAnalyzeDialect(t *testing.T) {
	require := require.New(t)

	var dialects []string
	a := NewBuilder(nil).WithParser(func(ctx *sql.Context, dialect, text string) ([]*sql.Action, error) {
		dialects = append(dialects, dialect)
		return defaultParse(ctx, "SQL", text)
	}).Build()

	root := parseSQL(t, `WITH c AS (SELECT * FROM t) SELECT * FROM c`)
	root.Metadata = map[string]interface{}{DialectKey: "PartiQL"}

	_, err := a.Analyze(sql.NewEmptyContext(), root)
	require.NoError(err)
	require.Equal([]string{"PartiQL"}, dialects)
}

func TestAnalyzeIdempotent(t *testing.T) {
	p := stats.NewMemoryProvider()
	p.DeclareIndex("users", "id")

	queries := []string{
		`SELECT name, age FROM users WHERE age > 30`,
		`SELECT dept, COUNT(*) FROM emp GROUP BY dept HAVING COUNT(*) > 1 ORDER BY COUNT(*) DESC`,
		`SELECT DISTINCT city FROM users ORDER BY city LIMIT 2 OFFSET 1`,
		`SELECT u.name, o.total FROM users u LEFT JOIN orders o ON u.id = o.uid WHERE o.total > 10`,
		`SELECT * FROM users WHERE id = 3 ORDER BY name, age`,
		`WITH adults AS (SELECT name FROM users WHERE age >= 18) SELECT * FROM adults LIMIT 1`,
		`SELECT COUNT(*) AS n, MAX(age) FROM users`,
	}

	for _, q := range queries {
		t.Run(q, func(t *testing.T) {
			require := require.New(t)
			a := NewDefault(p)

			first := analyze(t, a, q)
			second, err := a.Analyze(sql.NewEmptyContext(), first)
			require.NoError(err)
			require.Truef(first.Equal(second), "first:\n%s\nsecond:\n%s", first, second)
		})
	}
}

func TestDebugContext(t *testing.T) {
	require := require.New(t)

	a := NewBuilder(nil).WithDebug().Build()
	a.PushDebugContext("a")
	a.PushDebugContext("b")
	require.Equal([]string{"a", "b"}, a.debugCtx)
	a.PopDebugContext()
	require.Equal([]string{"a"}, a.debugCtx)
	a.PopDebugContext()
	a.PopDebugContext()
	require.Empty(a.debugCtx)
}

func TestDebugLogsMaxIterations(t *testing.T) {
	require := require.New(t)

	var buf bytes.Buffer
	logrus.SetOutput(&buf)
	defer logrus.SetOutput(os.Stderr)
	level := logrus.GetLevel()
	logrus.SetLevel(logrus.InfoLevel)
	defer logrus.SetLevel(level)

	counter := func(ctx *sql.Context, a *Analyzer, n *sql.Action) (*sql.Action, error) {
		c := withParams(n)
		v, _ := c.Params.GetInt("n")
		c.Params["n"] = v + 1
		return c, nil
	}

	a := NewBuilder(nil).WithDebug().Build()
	a.Batches = []*Batch{{Desc: "100% counter", Iterations: 2, Rules: []Rule{{"count", counter}}}}
	a.ValidationRules = nil

	n, err := a.Analyze(sql.NewEmptyContext(), sql.NewRoot())
	require.NoError(err)
	v, _ := n.Params.GetInt("n")
	require.Equal(int64(2), v)

	require.Contains(buf.String(), ErrMaxAnalysisIters.New(2).Error())
	require.NotContains(buf.String(), "%!")
}
