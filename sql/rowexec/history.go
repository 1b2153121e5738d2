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
	"sync"
	"time"
)

// Record describes an executed action.
type Record struct {
	Operation string
	Success   bool
	Duration  time.Duration
}

// History keeps the last executed actions in a ring.
type History struct {
	mu      sync.Mutex
	records []Record
	next    int
	full    bool
}

// NewHistory returns a history keeping at most size records. A non
// positive size keeps nothing.
func NewHistory(size int) *History {
	if size < 0 {
		size = 0
	}
	return &History{records: make([]Record, size)}
}

// Add appends a record, dropping the oldest one when the history is full.
func (h *History) Add(r Record) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.records) == 0 {
		return
	}

	h.records[h.next] = r
	h.next = (h.next + 1) % len(h.records)
	if h.next == 0 {
		h.full = true
	}
}

// Records returns the kept records, oldest first.
func (h *History) Records() []Record {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.full {
		return append([]Record(nil), h.records[:h.next]...)
	}

	result := make([]Record, 0, len(h.records))
	result = append(result, h.records[h.next:]...)
	return append(result, h.records[:h.next]...)
}

// Len returns the number of kept records.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.full {
		return len(h.records)
	}
	return h.next
}
