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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCacheKey(t *testing.T) {
	require := require.New(t)

	require.Equal(CacheKey("SQL", "SELECT 1"), CacheKey("SQL", "SELECT 1"))
	require.NotEqual(CacheKey("SQL", "SELECT 1"), CacheKey("MySQL", "SELECT 1"))
	require.NotEqual(CacheKey("ab", "c"), CacheKey("a", "bc"))
}

func TestActionCache(t *testing.T) {
	require := require.New(t)

	c := NewActionCache(2)
	a := sampleTree()

	_, err := c.Get(1)
	require.True(ErrKeyNotFound.Is(err))

	c.Put(1, a)
	got, err := c.Get(1)
	require.NoError(err)
	require.True(a.Equal(got))

	got.Children[0].Params["from"] = "changed"
	again, err := c.Get(1)
	require.NoError(err)
	require.Equal("users", again.Children[0].Params["from"])

	c.Put(2, a)
	c.Put(3, a)
	require.Equal(2, c.Len())
	_, err = c.Get(1)
	require.Error(err)

	hits, misses := c.Stats()
	require.Equal(uint64(2), hits)
	require.Equal(uint64(2), misses)

	c.Purge()
	require.Equal(0, c.Len())
}

func TestActionCacheDisabled(t *testing.T) {
	require := require.New(t)

	c := NewActionCache(0)
	c.Put(1, sampleTree())
	require.Equal(0, c.Len())

	_, err := c.Get(1)
	require.True(ErrKeyNotFound.Is(err))
	c.Purge()
}
