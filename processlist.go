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
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	errors "gopkg.in/src-d/go-errors.v1"

	"github.com/exonware/go-xwquery/sql"
)

// ErrProcessNotFound is returned when killing a query that is not running.
var ErrProcessNotFound = errors.NewKind("no running query with id %d")

// Process is a query being executed.
type Process struct {
	ID        uint64
	Query     string
	Dialect   string
	StartedAt time.Time
	Kill      context.CancelFunc
}

// Done cancels the context of the process.
func (p *Process) Done() {
	if p != nil && p.Kill != nil {
		p.Kill()
	}
}

// Seconds returns the number of seconds the query has been running.
func (p *Process) Seconds() uint64 {
	return uint64(time.Since(p.StartedAt) / time.Second)
}

// ProcessList keeps track of the queries being executed.
type ProcessList struct {
	mu     sync.RWMutex
	procs  map[uint64]*Process
	lastID uint64
}

// NewProcessList creates a new process list.
func NewProcessList() *ProcessList {
	return &ProcessList{
		procs: make(map[uint64]*Process),
	}
}

// Processes returns a copy of the running processes ordered by id.
func (pl *ProcessList) Processes() []Process {
	pl.mu.RLock()
	defer pl.mu.RUnlock()

	result := make([]Process, 0, len(pl.procs))
	for _, proc := range pl.procs {
		p := *proc
		p.Kill = nil
		result = append(result, p)
	}

	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

// AddProcess registers a new query and returns its id together with a
// context that is canceled when the query is killed.
func (pl *ProcessList) AddProcess(ctx *sql.Context, query, dialect string) (*sql.Context, uint64) {
	id := atomic.AddUint64(&pl.lastID, 1)

	newCtx, cancel := context.WithCancel(ctx)
	ctx = ctx.WithContext(newCtx)

	pl.mu.Lock()
	pl.procs[id] = &Process{
		ID:        id,
		Query:     query,
		Dialect:   dialect,
		StartedAt: time.Now(),
		Kill:      cancel,
	}
	pl.mu.Unlock()

	return ctx, id
}

// Kill cancels the query with the given id.
func (pl *ProcessList) Kill(id uint64) error {
	pl.mu.Lock()
	defer pl.mu.Unlock()

	proc, ok := pl.procs[id]
	if !ok {
		return ErrProcessNotFound.New(id)
	}

	logrus.Infof("kill query: id %d", id)
	proc.Done()
	delete(pl.procs, id)
	return nil
}

// Done removes the finished process with the given id from the process
// list. If the process does not exist, it will do nothing.
func (pl *ProcessList) Done(id uint64) {
	pl.mu.Lock()
	defer pl.mu.Unlock()

	if proc, ok := pl.procs[id]; ok {
		proc.Done()
	}

	delete(pl.procs, id)
}
