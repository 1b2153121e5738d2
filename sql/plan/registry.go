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
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	errors "gopkg.in/src-d/go-errors.v1"

	"github.com/exonware/go-xwquery/internal/similartext"
	"github.com/exonware/go-xwquery/sql"
)

// ErrInvalidExecutor is returned when an executor cannot be registered.
var ErrInvalidExecutor = errors.NewKind("invalid executor: %s")

// Registry maps operation names to their executors. It is populated at
// startup and only read afterwards.
type Registry struct {
	mu        sync.RWMutex
	executors map[string]Executor
	counts    map[string]*uint64
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		executors: make(map[string]Executor),
		counts:    make(map[string]*uint64),
	}
}

// NewDefaultRegistry returns a registry with every built-in executor.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	for _, e := range Defaults {
		if err := r.Register(e); err != nil {
			panic(err)
		}
	}
	return r
}

// Defaults are the built-in executors.
var Defaults = []Executor{
	NewSelect(),
	NewSequentialScan(),
	NewIndexScan(),
	NewWhere(sql.OpWhere),
	NewWhere(sql.OpFilter),
	NewHaving(),
	NewLike(),
	NewIn(),
	NewBetween(),
	NewHas(),
	NewRange(),
	NewGroupBy(sql.OpGroupBy),
	NewGroupBy(sql.OpGroup),
	NewDistinct(),
	NewAggregateFunc(sql.OpCount),
	NewAggregateFunc(sql.OpSum),
	NewAggregateFunc(sql.OpAvg),
	NewAggregateFunc(sql.OpMin),
	NewAggregateFunc(sql.OpMax),
	NewSummarize(),
	NewAggregate(),
	NewJoin(),
	NewUnion(),
	NewOrderBy(sql.OpOrderBy),
	NewOrderBy(sql.OpOrder),
	NewLimit(),
	NewOffset(),
	NewSlicing(),
	NewIndexing(),
	NewProject(),
	NewExtend(),
	NewInsert(),
	NewUpdate(),
	NewDelete(),
	NewLet(sql.OpLet),
	NewLet(sql.OpWith),
	NewValues(),
	NewWindow(),
}

// Register adds the executor, replacing any executor registered for the
// same operation. Only operations of the known set can be registered.
func (r *Registry) Register(e Executor) error {
	if e == nil {
		return ErrInvalidExecutor.New("nil executor")
	}

	name := e.Operation()
	if !sql.IsKnownOperation(name) {
		return sql.ErrUnknownOperation.New(name, similartext.Find(sql.Operations(), name))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.executors[name]; ok {
		logrus.WithField("operation", name).
			Debugf("replacing executor %T with %T", prev, e)
	}

	r.executors[name] = e
	if _, ok := r.counts[name]; !ok {
		r.counts[name] = new(uint64)
	}
	return nil
}

// Lookup returns the executor of the operation. Names outside the known
// operation set fail with ErrUnknownOperation, known operations without
// an executor with ErrUnsupportedOperation.
func (r *Registry) Lookup(op string) (Executor, error) {
	r.mu.RLock()
	e, ok := r.executors[op]
	r.mu.RUnlock()
	if ok {
		return e, nil
	}

	if !sql.IsKnownOperation(op) {
		return nil, sql.ErrUnknownOperation.New(op, similartext.FindFold(sql.Operations(), op))
	}
	return nil, sql.ErrUnsupportedOperation.New(op, "no executor for "+op)
}

// Execute checks the shape of the input against the executor of the
// action and runs it.
func (r *Registry) Execute(ctx *sql.Context, a *sql.Action) (*sql.ExecutionResult, error) {
	e, err := r.Lookup(a.Type)
	if err != nil {
		return nil, err
	}

	if err := checkShape(e, ctx.Input); err != nil {
		return nil, err
	}

	r.mu.RLock()
	if c, ok := r.counts[a.Type]; ok {
		atomic.AddUint64(c, 1)
	}
	r.mu.RUnlock()

	res, err := e.Execute(ctx, a)
	if err != nil {
		return nil, err
	}

	if res == nil {
		return nil, sql.ErrExecution.New(a.Type, "executor returned no result")
	}

	if res.Success && sql.InferShape(res.Data) == sql.ShapeLinear {
		if err := ctx.CheckResultSize(len(sql.ExtractItems(res.Data))); err != nil {
			return nil, err
		}
	}

	return res, nil
}

func checkShape(e Executor, input interface{}) error {
	shapes := e.SupportedShapes()
	if len(shapes) == 0 {
		return nil
	}

	shape := sql.InferShape(input)
	names := make([]string, len(shapes))
	for i, s := range shapes {
		if s == shape {
			return nil
		}
		names[i] = s.String()
	}

	return sql.ErrUnsupportedOperation.New(e.Operation(), fmt.Sprintf(
		"%s input is not supported, convert it to %s first",
		shape, strings.Join(names, " or "),
	))
}

// Operations returns the sorted names of the registered operations.
func (r *Registry) Operations() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.executors))
	for n := range r.executors {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Stats returns how many times every operation has been executed.
func (r *Registry) Stats() map[string]uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := make(map[string]uint64, len(r.counts))
	for n, c := range r.counts {
		stats[n] = atomic.LoadUint64(c)
	}
	return stats
}
