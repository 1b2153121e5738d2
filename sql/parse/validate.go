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

package parse

import (
	"fmt"
	"strings"
	"sync"

	"github.com/exonware/go-xwquery/internal/regex"
	"github.com/exonware/go-xwquery/sql"
)

// Default limits of the validator and the parsers.
const (
	DefaultMaxTextLength = 1000000
	DefaultMaxNesting    = 100
)

// dangerousPatterns are matched against the uppercased query text.
var dangerousPatterns = []string{
	`;\s*DROP\s+TABLE`,
	`;\s*DELETE\s+FROM`,
	`;\s*TRUNCATE\s+TABLE`,
	`;\s*ALTER\s+TABLE`,
	`;\s*EXEC(UTE)?\s*\(`,
	`XP_CMDSHELL`,
	`SP_EXECUTESQL`,
}

var (
	compileOnce sync.Once
	matchers    []regex.Matcher
	compileErr  error
)

func dangerousMatchers() ([]regex.Matcher, error) {
	compileOnce.Do(func() {
		for _, p := range dangerousPatterns {
			m, err := regex.Compile(p)
			if err != nil {
				compileErr = err
				return
			}
			matchers = append(matchers, m)
		}
	})
	return matchers, compileErr
}

// Validator rejects obviously hostile query text before it is tokenized.
// It is a conservative pre-filter, not a semantic check.
type Validator struct {
	// MaxTextLength is the maximum length of the text in bytes.
	MaxTextLength int
}

// NewValidator returns a validator with the default limits.
func NewValidator() *Validator {
	return &Validator{MaxTextLength: DefaultMaxTextLength}
}

// Validate returns an ErrSecurity error if the text is too long or
// contains a dangerous pattern.
func (v *Validator) Validate(text string) error {
	max := v.MaxTextLength
	if max <= 0 {
		max = DefaultMaxTextLength
	}

	if len(text) > max {
		return sql.ErrSecurity.New(fmt.Sprintf("too long: %d bytes, maximum is %d", len(text), max))
	}

	ms, err := dangerousMatchers()
	if err != nil {
		return err
	}

	upper := strings.ToUpper(text)
	for i, m := range ms {
		if m.Match(upper) {
			return sql.ErrSecurity.New("dangerous pattern " + dangerousPatterns[i])
		}
	}

	return nil
}
