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

// Package regex compiles the patterns used by LIKE, regexp_like, the
// security validator and the dialect detector. Compiled matchers are
// shared through a bounded cache keyed by engine and pattern.
package regex

import (
	"bytes"
	"regexp"
	"sort"
	"sync"

	lru "github.com/hashicorp/golang-lru"
	errors "gopkg.in/src-d/go-errors.v1"

	"github.com/exonware/go-xwquery/internal/similartext"
)

var (
	// ErrEngineExists is returned when an engine is registered twice.
	ErrEngineExists = errors.NewKind("regex engine %q is already registered")
	// ErrEngineName is returned when an engine is registered without a name.
	ErrEngineName = errors.NewKind("regex engine name cannot be empty")
	// ErrUnknownEngine is returned when selecting an engine that was never
	// registered.
	ErrUnknownEngine = errors.NewKind("unknown regex engine %q%s")
	// ErrInvalidPattern wraps the compile error of a pattern.
	ErrInvalidPattern = errors.NewKind("invalid pattern %q")
)

// DefaultEngine is the engine used until Use selects another one.
const DefaultEngine = "go"

// CacheSize is the number of compiled patterns kept around.
const CacheSize = 512

// Matcher reports whether a text matches a compiled pattern.
type Matcher interface {
	Match(text string) bool
	// String returns the pattern the matcher was compiled from.
	String() string
}

// Compiler turns a pattern into a Matcher.
type Compiler func(pattern string) (Matcher, error)

var (
	mu      sync.RWMutex
	engines = map[string]Compiler{}
	current = DefaultEngine
	cache   *lru.Cache
)

func init() {
	cache, _ = lru.New(CacheSize)
}

// Register adds a named engine.
func Register(name string, c Compiler) error {
	if name == "" {
		return ErrEngineName.New()
	}

	mu.Lock()
	defer mu.Unlock()
	if _, ok := engines[name]; ok {
		return ErrEngineExists.New(name)
	}
	engines[name] = c
	return nil
}

// Engines returns the sorted names of the registered engines.
func Engines() []string {
	mu.RLock()
	defer mu.RUnlock()

	names := make([]string, 0, len(engines))
	for n := range engines {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Engine returns the name of the engine Compile uses.
func Engine() string {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

// Use selects the engine Compile uses. An empty name selects the default
// engine.
func Use(name string) error {
	if name == "" {
		name = DefaultEngine
	}

	mu.Lock()
	defer mu.Unlock()
	if _, ok := engines[name]; !ok {
		names := make([]string, 0, len(engines))
		for n := range engines {
			names = append(names, n)
		}
		sort.Strings(names)
		return ErrUnknownEngine.New(name, similartext.Find(names, name))
	}
	current = name
	return nil
}

// Compile returns the matcher of the pattern for the current engine.
func Compile(pattern string) (Matcher, error) {
	mu.RLock()
	name := current
	compile := engines[name]
	mu.RUnlock()

	key := name + "\x00" + pattern
	if m, ok := cache.Get(key); ok {
		return m.(Matcher), nil
	}

	if compile == nil {
		return nil, ErrUnknownEngine.New(name, "")
	}

	m, err := compile(pattern)
	if err != nil {
		return nil, ErrInvalidPattern.Wrap(err, pattern)
	}
	cache.Add(key, m)
	return m, nil
}

// MustCompile is Compile for patterns known to be valid.
func MustCompile(pattern string) Matcher {
	m, err := Compile(pattern)
	if err != nil {
		panic(err)
	}
	return m
}

// Fold makes the pattern case insensitive.
func Fold(pattern string) string {
	return "(?i)" + pattern
}

// Purge empties the cache of compiled patterns.
func Purge() {
	cache.Purge()
}

// Like returns the matcher of a SQL LIKE pattern.
func Like(pattern string) (Matcher, error) {
	return Compile(LikeToRegex(pattern))
}

// LikeToRegex translates a SQL LIKE pattern into an anchored, case
// insensitive regular expression. % matches any sequence, _ a single
// character and a backslash escapes the next character.
func LikeToRegex(pattern string) string {
	var buf bytes.Buffer
	buf.WriteString("(?is)^")

	escaped := false
	for _, r := range pattern {
		if escaped {
			buf.WriteString(regexp.QuoteMeta(string(r)))
			escaped = false
			continue
		}

		switch r {
		case '\\':
			escaped = true
		case '%':
			buf.WriteString(".*")
		case '_':
			buf.WriteString(".")
		default:
			buf.WriteString(regexp.QuoteMeta(string(r)))
		}
	}

	if escaped {
		buf.WriteString(regexp.QuoteMeta(`\`))
	}

	buf.WriteString("$")
	return buf.String()
}
