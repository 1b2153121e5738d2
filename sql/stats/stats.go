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

package stats

import (
	"sort"
	"strings"
	"sync"

	"github.com/exonware/go-xwquery/sql"
	"github.com/exonware/go-xwquery/sql/expression"
)

// Default selectivities used when nothing better is known about a
// predicate.
const (
	DefaultEqualitySelectivity = 0.1
	DefaultRangeSelectivity    = 1.0 / 3.0
	DefaultSelectivity         = 0.5
)

// Provider gives the optimizer what it knows about the collections a
// query reads.
type Provider interface {
	// RowCount returns the number of records of the table.
	RowCount(table string) (uint64, error)
	// HasIndex reports whether column of table is declared as indexed.
	HasIndex(table, column string) bool
	// Selectivity estimates the fraction of records of table that match
	// the predicate.
	Selectivity(table string, predicate sql.Expression) float64
}

// TableStats are the statistics kept for a single table.
type TableStats struct {
	Name     string            `msgpack:"name" yaml:"name"`
	RowCount uint64            `msgpack:"row_count" yaml:"row_count"`
	Indexes  []string          `msgpack:"indexes" yaml:"indexes,omitempty"`
	Distinct map[string]uint64 `msgpack:"distinct" yaml:"distinct,omitempty"`
}

// NewTableStats returns empty statistics for the named table.
func NewTableStats(name string) *TableStats {
	return &TableStats{Name: name, Distinct: make(map[string]uint64)}
}

// HasIndex reports whether the column is indexed.
func (t *TableStats) HasIndex(column string) bool {
	for _, c := range t.Indexes {
		if strings.EqualFold(c, column) {
			return true
		}
	}
	return false
}

// AddIndex declares the given columns as indexed.
func (t *TableStats) AddIndex(columns ...string) {
	for _, c := range columns {
		if !t.HasIndex(c) {
			t.Indexes = append(t.Indexes, c)
		}
	}
	sort.Strings(t.Indexes)
}

// Analyze recomputes the row count and the number of distinct values of
// every field seen in items.
func (t *TableStats) Analyze(items []interface{}) {
	t.RowCount = uint64(len(items))
	t.Distinct = make(map[string]uint64)

	seen := make(map[string]map[uint64]struct{})
	for _, item := range items {
		fields, ok := sql.RecordFields(item)
		if !ok {
			continue
		}

		for k, v := range fields {
			h, err := sql.HashKey(v)
			if err != nil {
				continue
			}

			values, ok := seen[k]
			if !ok {
				values = make(map[uint64]struct{})
				seen[k] = values
			}
			values[h] = struct{}{}
		}
	}

	for k, values := range seen {
		t.Distinct[k] = uint64(len(values))
	}
}

// Selectivity estimates the fraction of the rows of the table matching
// the predicate. Equalities use the number of distinct values of the
// column when it is known.
func (t *TableStats) Selectivity(predicate sql.Expression) float64 {
	switch e := predicate.(type) {
	case nil:
		return 1
	case *expression.Binary:
		switch e.Op {
		case expression.And:
			return t.Selectivity(e.Left) * t.Selectivity(e.Right)
		case expression.Or:
			l, r := t.Selectivity(e.Left), t.Selectivity(e.Right)
			return l + r - l*r
		case expression.Eq:
			if column, ok := comparedColumn(e); ok {
				if d := t.distinct(column); d > 0 {
					return 1 / float64(d)
				}
			}
			return DefaultEqualitySelectivity
		case expression.NotEq:
			return 1 - t.Selectivity(expression.NewEquals(e.Left, e.Right))
		case expression.Lt, expression.LtEq, expression.Gt, expression.GtEq:
			return DefaultRangeSelectivity
		}
	case *expression.Unary:
		if e.Op == expression.Not {
			return 1 - t.Selectivity(e.Child)
		}
	case *expression.In:
		if column, ok := e.Left.(*expression.Identifier); ok {
			if d := t.distinct(column.Name); d > 0 {
				return clamp(float64(len(e.Values)) / float64(d))
			}
		}
		return clamp(DefaultEqualitySelectivity * float64(len(e.Values)))
	case *expression.Between:
		return DefaultRangeSelectivity
	}
	return DefaultSelectivity
}

func (t *TableStats) distinct(column string) uint64 {
	if t.Distinct == nil {
		return 0
	}
	return t.Distinct[column]
}

func clamp(f float64) float64 {
	if f > 1 {
		return 1
	}
	return f
}

// comparedColumn returns the column of a comparison between a column and
// a constant.
func comparedColumn(b *expression.Binary) (string, bool) {
	if id, ok := b.Left.(*expression.Identifier); ok {
		if _, ok := b.Right.(*expression.Literal); ok {
			return id.Name, true
		}
	}
	if id, ok := b.Right.(*expression.Identifier); ok {
		if _, ok := b.Left.(*expression.Literal); ok {
			return id.Name, true
		}
	}
	return "", false
}

// MemoryProvider keeps table statistics in memory.
type MemoryProvider struct {
	mu     sync.RWMutex
	tables map[string]*TableStats
}

var _ Provider = (*MemoryProvider)(nil)

// NewMemoryProvider returns an empty provider.
func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{tables: make(map[string]*TableStats)}
}

func (p *MemoryProvider) table(name string) *TableStats {
	key := strings.ToLower(name)
	t, ok := p.tables[key]
	if !ok {
		t = NewTableStats(name)
		p.tables[key] = t
	}
	return t
}

// DeclareIndex declares the columns of the table as indexed.
func (p *MemoryProvider) DeclareIndex(table string, columns ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.table(table).AddIndex(columns...)
}

// Analyze computes the statistics of table from its records.
func (p *MemoryProvider) Analyze(table string, items []interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.table(table).Analyze(items)
}

// Put replaces the statistics of a table.
func (p *MemoryProvider) Put(t *TableStats) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tables[strings.ToLower(t.Name)] = t
}

// Table returns the statistics of the named table.
func (p *MemoryProvider) Table(name string) (*TableStats, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	t, ok := p.tables[strings.ToLower(name)]
	return t, ok
}

// RowCount implements the Provider interface.
func (p *MemoryProvider) RowCount(table string) (uint64, error) {
	t, ok := p.Table(table)
	if !ok {
		return 0, ErrTableNotFound.New(table)
	}
	return t.RowCount, nil
}

// HasIndex implements the Provider interface.
func (p *MemoryProvider) HasIndex(table, column string) bool {
	t, ok := p.Table(table)
	return ok && t.HasIndex(column)
}

// Selectivity implements the Provider interface.
func (p *MemoryProvider) Selectivity(table string, predicate sql.Expression) float64 {
	t, ok := p.Table(table)
	if !ok {
		t = NewTableStats(table)
	}
	return t.Selectivity(predicate)
}
