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

const expectedTree = `ROOT
 ├─ SELECT(name, age)
 │    ├─ FROM users
 │    └─ WHERE age > 18
 └─ LIMIT 10
`

func TestTreePrinter(t *testing.T) {
	require := require.New(t)

	sel := NewTreePrinter()
	require.NoError(sel.WriteNode("SELECT(%s, %s)", "name", "age"))
	require.NoError(sel.WriteChildren(
		"FROM users",
		"WHERE age > 18",
	))

	p := NewTreePrinter()
	require.NoError(p.WriteNode("ROOT"))
	require.NoError(p.WriteChildren(
		sel.String(),
		"LIMIT 10",
	))

	require.Equal(expectedTree, p.String())
}

func TestTreePrinterErrors(t *testing.T) {
	require := require.New(t)

	p := NewTreePrinter()
	require.True(ErrNodeNotWritten.Is(p.WriteChildren("a")))

	require.NoError(p.WriteNode("ROOT"))
	require.True(ErrNodeAlreadyWritten.Is(p.WriteNode("ROOT")))

	require.NoError(p.WriteChildren("a"))
	require.True(ErrChildrenAlreadyWritten.Is(p.WriteChildren("b")))
}
