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

package xwquery

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/exonware/go-xwquery/sql"
)

func TestProcessList(t *testing.T) {
	require := require.New(t)

	p := NewProcessList()
	ctx, id := p.AddProcess(sql.NewEmptyContext(), "SELECT foo", "SQL")
	require.Equal(uint64(1), id)
	require.Len(p.procs, 1)

	_, id2 := p.AddProcess(sql.NewEmptyContext(), "SELECT bar", "SQL")
	require.Equal(uint64(2), id2)

	procs := p.Processes()
	require.Len(procs, 2)
	require.Equal("SELECT foo", procs[0].Query)
	require.Equal("SELECT bar", procs[1].Query)
	require.Nil(procs[0].Kill)

	require.NoError(p.Kill(id))
	require.Error(ctx.Err())
	require.Len(p.procs, 1)

	require.True(ErrProcessNotFound.Is(p.Kill(id)))

	p.Done(id2)
	require.Len(p.procs, 0)
	p.Done(id2)
}
