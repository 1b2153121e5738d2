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
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/boltdb/bolt"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/exonware/go-xwquery/sql"
)

const (
	// BoltFileName is the name of the statistics file inside the directory
	// of a BoltProvider.
	BoltFileName = "xwquery-stats.db"

	tablesBucket = "tables"
)

// BoltProvider persists table statistics in a bolt database so index
// declarations and row counts survive between runs.
type BoltProvider struct {
	dir string

	mut sync.RWMutex
	db  *bolt.DB
}

var _ Provider = (*BoltProvider)(nil)

// NewBoltProvider returns a provider storing its data in dir. The database
// is opened on first use.
func NewBoltProvider(dir string) *BoltProvider {
	return &BoltProvider{dir: dir}
}

// Close closes the underlying database.
func (p *BoltProvider) Close() error {
	p.mut.Lock()
	defer p.mut.Unlock()

	if p.db != nil {
		if err := p.db.Close(); err != nil {
			return err
		}
		p.db = nil
	}
	return nil
}

func (p *BoltProvider) query(fn func(db *bolt.DB) error) error {
	p.mut.Lock()
	if p.db == nil {
		if err := os.MkdirAll(p.dir, 0750); err != nil {
			p.mut.Unlock()
			return err
		}

		var err error
		p.db, err = bolt.Open(filepath.Join(p.dir, BoltFileName), 0640, &bolt.Options{Timeout: time.Second})
		if err != nil {
			p.mut.Unlock()
			return err
		}
	}
	p.mut.Unlock()

	p.mut.RLock()
	defer p.mut.RUnlock()
	return fn(p.db)
}

// Put stores the statistics of a table, replacing any previous ones.
func (p *BoltProvider) Put(t *TableStats) error {
	data, err := msgpack.Marshal(t)
	if err != nil {
		return err
	}

	return p.query(func(db *bolt.DB) error {
		return db.Update(func(tx *bolt.Tx) error {
			b, err := tx.CreateBucketIfNotExists([]byte(tablesBucket))
			if err != nil {
				return err
			}
			return b.Put(tableKey(t.Name), data)
		})
	})
}

// Table returns the stored statistics of a table.
func (p *BoltProvider) Table(name string) (*TableStats, error) {
	var data []byte
	err := p.query(func(db *bolt.DB) error {
		return db.View(func(tx *bolt.Tx) error {
			b := tx.Bucket([]byte(tablesBucket))
			if b == nil {
				return nil
			}

			if v := b.Get(tableKey(name)); v != nil {
				data = make([]byte, len(v))
				copy(data, v)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	if data == nil {
		return nil, ErrTableNotFound.New(name)
	}

	var t TableStats
	if err := msgpack.Unmarshal(data, &t); err != nil {
		return nil, ErrCorruptedStats.New(name, err)
	}
	return &t, nil
}

// Tables returns the names of the tables with statistics.
func (p *BoltProvider) Tables() ([]string, error) {
	var names []string
	err := p.query(func(db *bolt.DB) error {
		return db.View(func(tx *bolt.Tx) error {
			b := tx.Bucket([]byte(tablesBucket))
			if b == nil {
				return nil
			}
			return b.ForEach(func(k, _ []byte) error {
				names = append(names, string(k))
				return nil
			})
		})
	})
	return names, err
}

// update loads the statistics of a table, applies fn and stores them.
func (p *BoltProvider) update(name string, fn func(*TableStats)) error {
	t, err := p.Table(name)
	if ErrTableNotFound.Is(err) {
		t, err = NewTableStats(name), nil
	}
	if err != nil {
		return err
	}

	fn(t)
	return p.Put(t)
}

// DeclareIndex declares the columns of the table as indexed.
func (p *BoltProvider) DeclareIndex(table string, columns ...string) error {
	return p.update(table, func(t *TableStats) {
		t.AddIndex(columns...)
	})
}

// Analyze computes and stores the statistics of table from its records.
// Declared indexes are kept.
func (p *BoltProvider) Analyze(table string, items []interface{}) error {
	return p.update(table, func(t *TableStats) {
		t.Analyze(items)
	})
}

// RowCount implements the Provider interface.
func (p *BoltProvider) RowCount(table string) (uint64, error) {
	t, err := p.Table(table)
	if err != nil {
		return 0, err
	}
	return t.RowCount, nil
}

// HasIndex implements the Provider interface. Storage errors are treated
// as no index.
func (p *BoltProvider) HasIndex(table, column string) bool {
	t, err := p.Table(table)
	return err == nil && t.HasIndex(column)
}

// Selectivity implements the Provider interface.
func (p *BoltProvider) Selectivity(table string, predicate sql.Expression) float64 {
	t, err := p.Table(table)
	if err != nil {
		t = NewTableStats(table)
	}
	return t.Selectivity(predicate)
}

func tableKey(name string) []byte {
	return []byte(strings.ToLower(name))
}
