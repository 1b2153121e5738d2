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
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// SlowQuery is an execution that took longer than the configured
// threshold.
type SlowQuery struct {
	Query    string
	Dialect  string
	Duration time.Duration
	At       time.Time
}

// SlowQueryLog logs slow queries and keeps the last of them.
type SlowQueryLog struct {
	mu        sync.Mutex
	threshold time.Duration
	entries   []SlowQuery
	next      int
	full      bool
}

// NewSlowQueryLog keeps at most size queries slower than threshold.
func NewSlowQueryLog(threshold time.Duration, size int) *SlowQueryLog {
	if size < 0 {
		size = 0
	}
	return &SlowQueryLog{threshold: threshold, entries: make([]SlowQuery, size)}
}

// Observe records the query if it is slow and reports whether it was.
func (l *SlowQueryLog) Observe(query, dialect string, d time.Duration) bool {
	if d <= l.threshold {
		return false
	}

	logrus.WithFields(logrus.Fields{
		"query":       query,
		"dialect":     dialect,
		"duration_ms": float64(d) / float64(time.Millisecond),
	}).Warn("slow query")

	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.entries) == 0 {
		return true
	}

	l.entries[l.next] = SlowQuery{Query: query, Dialect: dialect, Duration: d, At: time.Now()}
	l.next = (l.next + 1) % len(l.entries)
	if l.next == 0 {
		l.full = true
	}
	return true
}

// Queries returns the kept slow queries, oldest first.
func (l *SlowQueryLog) Queries() []SlowQuery {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.full {
		return append([]SlowQuery(nil), l.entries[:l.next]...)
	}

	result := make([]SlowQuery, 0, len(l.entries))
	result = append(result, l.entries[l.next:]...)
	return append(result, l.entries[:l.next]...)
}
