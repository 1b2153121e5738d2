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
	"fmt"

	"github.com/exonware/go-xwquery/sql"
)

// Limit keeps the first count records. A non positive count keeps them
// all.
type Limit struct {
	descriptor
}

// NewLimit returns the LIMIT executor.
func NewLimit() *Limit {
	return &Limit{descriptor{name: sql.OpLimit, ordered: true}}
}

// Execute implements the Executor interface.
func (l *Limit) Execute(ctx *sql.Context, a *sql.Action) (*sql.ExecutionResult, error) {
	n, ok, err := intParam(a, "count", "limit", "n")
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, sql.ErrValue.New("LIMIT needs a count")
	}

	items := sql.ExtractItems(ctx.Input)
	result := items
	if n > 0 && int(n) < len(items) {
		result = items[:n]
	}

	return sql.NewResult(a.Type, result, map[string]interface{}{
		"limit":       n,
		"total_items": len(items),
	}), nil
}

// Offset skips the first count records.
type Offset struct {
	descriptor
}

// NewOffset returns the OFFSET executor.
func NewOffset() *Offset {
	return &Offset{descriptor{name: sql.OpOffset, ordered: true}}
}

// Execute implements the Executor interface.
func (o *Offset) Execute(ctx *sql.Context, a *sql.Action) (*sql.ExecutionResult, error) {
	n, ok, err := intParam(a, "count", "offset", "n")
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, sql.ErrValue.New("OFFSET needs a count")
	}

	items := sql.ExtractItems(ctx.Input)
	result := items
	switch {
	case n >= int64(len(items)):
		result = []interface{}{}
	case n > 0:
		result = items[n:]
	}

	return sql.NewResult(a.Type, result, map[string]interface{}{
		"offset":      n,
		"total_items": len(items),
	}), nil
}

// Slicing returns the records from start (inclusive) to end (exclusive).
// Negative positions count from the end and step may skip records.
type Slicing struct {
	descriptor
}

// NewSlicing returns the SLICING executor.
func NewSlicing() *Slicing {
	return &Slicing{descriptor{
		name:    sql.OpSlicing,
		shapes:  []sql.Shape{sql.ShapeLinear},
		ordered: true,
	}}
}

// Execute implements the Executor interface.
func (s *Slicing) Execute(ctx *sql.Context, a *sql.Action) (*sql.ExecutionResult, error) {
	items := sql.ExtractItems(ctx.Input)
	size := int64(len(items))

	step, ok, err := intParam(a, "step")
	if err != nil {
		return nil, err
	}
	if !ok {
		step = 1
	}
	if step == 0 {
		return nil, sql.ErrValue.New("SLICING step cannot be zero")
	}

	start, hasStart, err := intParam(a, "start")
	if err != nil {
		return nil, err
	}
	end, hasEnd, err := intParam(a, "end", "stop")
	if err != nil {
		return nil, err
	}

	var result []interface{}
	if step > 0 {
		from, to := int64(0), size
		if hasStart {
			from = clampIndex(start, size, 0)
		}
		if hasEnd {
			to = clampIndex(end, size, 0)
		}
		for i := from; i < to; i += step {
			result = append(result, items[i])
		}
	} else {
		from, to := size-1, int64(-1)
		if hasStart {
			from = clampIndex(start, size, -1)
		}
		if hasEnd {
			to = clampIndex(end, size, -1)
		}
		for i := from; i > to; i += step {
			result = append(result, items[i])
		}
	}

	if result == nil {
		result = []interface{}{}
	}

	return sql.NewResult(a.Type, result, map[string]interface{}{
		"total_items": len(items),
	}), nil
}

// clampIndex resolves a negative position and clamps it to the list. low
// is the smallest valid result: 0 for ascending slices and -1 for
// descending ones.
func clampIndex(i, size, low int64) int64 {
	if i < 0 {
		i += size
	}
	if i < low {
		return low
	}
	if low == 0 && i > size {
		return size
	}
	if low == -1 && i > size-1 {
		return size - 1
	}
	return i
}

// Indexing returns the record at a position. Negative positions count
// from the end.
type Indexing struct {
	descriptor
}

// NewIndexing returns the INDEXING executor.
func NewIndexing() *Indexing {
	return &Indexing{descriptor{
		name:    sql.OpIndexing,
		shapes:  []sql.Shape{sql.ShapeLinear},
		ordered: true,
	}}
}

// Execute implements the Executor interface.
func (ix *Indexing) Execute(ctx *sql.Context, a *sql.Action) (*sql.ExecutionResult, error) {
	i, ok, err := intParam(a, "index", "position")
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, sql.ErrValue.New("INDEXING needs an index")
	}

	items := sql.ExtractItems(ctx.Input)
	pos := i
	if pos < 0 {
		pos += int64(len(items))
	}
	if pos < 0 || pos >= int64(len(items)) {
		return nil, sql.ErrValue.New(fmt.Sprintf("index %d out of range for %d items", i, len(items)))
	}

	return sql.NewResult(a.Type, items[pos], map[string]interface{}{
		"index": i,
	}), nil
}
