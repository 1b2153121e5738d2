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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHistory(t *testing.T) {
	require := require.New(t)

	h := NewHistory(3)
	require.Empty(h.Records())

	for _, op := range []string{"A", "B"} {
		h.Add(Record{Operation: op, Success: true})
	}
	require.Equal(2, h.Len())
	require.Equal("A", h.Records()[0].Operation)

	for _, op := range []string{"C", "D", "E"} {
		h.Add(Record{Operation: op})
	}

	var ops []string
	for _, r := range h.Records() {
		ops = append(ops, r.Operation)
	}
	require.Equal([]string{"C", "D", "E"}, ops)
	require.Equal(3, h.Len())

	empty := NewHistory(0)
	empty.Add(Record{Operation: "A"})
	require.Empty(empty.Records())
}
