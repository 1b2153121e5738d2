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

package plan

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/exonware/go-xwquery/sql"
)

func TestRegistryLookup(t *testing.T) {
	require := require.New(t)
	r := NewDefaultRegistry()

	e, err := r.Lookup(sql.OpWhere)
	require.NoError(err)
	require.Equal(sql.OpWhere, e.Operation())

	_, err = r.Lookup("WHERRE")
	require.Error(err)
	require.True(sql.ErrUnknownOperation.Is(err))
	require.Contains(err.Error(), "maybe you mean WHERE")

	_, err = r.Lookup(sql.OpMerge)
	require.True(sql.ErrUnsupportedOperation.Is(err))

	for _, op := range r.Operations() {
		require.True(sql.IsKnownOperation(op), op)
	}
}

func TestRegistryRegister(t *testing.T) {
	require := require.New(t)
	r := NewRegistry()

	require.True(ErrInvalidExecutor.Is(r.Register(nil)))

	err := r.Register(NewExecutor("FROBNICATE", nil))
	require.True(sql.ErrUnknownOperation.Is(err))

	called := 0
	require.NoError(r.Register(NewExecutor(sql.OpMerge, func(ctx *sql.Context, a *sql.Action) (*sql.ExecutionResult, error) {
		called++
		return sql.NewResult(a.Type, ctx.Input, nil), nil
	})))

	res, err := r.Execute(newContext(numbers(2)), sql.NewAction(sql.OpMerge, nil))
	require.NoError(err)
	require.Equal(numbers(2), res.Data)
	require.Equal(1, called)
	require.Equal(uint64(1), r.Stats()[sql.OpMerge])
}

func TestRegistryShapes(t *testing.T) {
	require := require.New(t)
	r := NewDefaultRegistry()

	_, err := r.Execute(newContext(map[string]interface{}{"a": 1}), sql.NewAction(sql.OpSlicing, sql.Params{"start": 1}))
	require.Error(err)
	require.True(sql.ErrUnsupportedOperation.Is(err))
	require.Contains(err.Error(), "tree input is not supported")

	_, err = r.Execute(newContext(numbers(3)), sql.NewAction(sql.OpSlicing, sql.Params{"start": 1}))
	require.NoError(err)
}

func TestRegistryResultSize(t *testing.T) {
	require := require.New(t)
	r := NewDefaultRegistry()

	opts := sql.DefaultOptions()
	opts.MaxResultSize = 2
	ctx := sql.NewContext(context.Background(), sql.WithInput(numbers(5)), sql.WithOptions(opts))

	_, err := r.Execute(ctx, sql.NewAction(sql.OpWhere, nil))
	require.True(sql.ErrValue.Is(err))

	res, err := r.Execute(ctx, sql.NewAction(sql.OpLimit, sql.Params{"count": 2}))
	require.NoError(err)
	require.Len(res.Data, 2)
}

func TestRegistryNilResult(t *testing.T) {
	require := require.New(t)
	r := NewRegistry()
	require.NoError(r.Register(NewExecutor(sql.OpMerge, func(*sql.Context, *sql.Action) (*sql.ExecutionResult, error) {
		return nil, nil
	})))

	_, err := r.Execute(newContext(nil), sql.NewAction(sql.OpMerge, nil))
	require.True(sql.ErrExecution.Is(err))
}
