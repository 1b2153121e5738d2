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

package function

import (
	"strings"

	"github.com/exonware/go-xwquery/internal/regex"
)

// stringPredicate returns a function of two strings reporting whether the
// first matches the second. Null arguments yield null.
func stringPredicate(name string, fn func(s, sub string) bool) func(a, b interface{}) (interface{}, error) {
	return func(a, b interface{}) (interface{}, error) {
		if a == nil || b == nil {
			return nil, nil
		}

		s, err := toString(name, a)
		if err != nil {
			return nil, err
		}
		sub, err := toString(name, b)
		if err != nil {
			return nil, err
		}
		return fn(s, sub), nil
	}
}

var (
	contains   = stringPredicate("contains", strings.Contains)
	startsWith = stringPredicate("startswith", strings.HasPrefix)
	endsWith   = stringPredicate("endswith", strings.HasSuffix)
)

func regexpLike(a, b interface{}) (interface{}, error) {
	if a == nil || b == nil {
		return nil, nil
	}

	s, err := toString("regexp_like", a)
	if err != nil {
		return nil, err
	}
	pattern, err := toString("regexp_like", b)
	if err != nil {
		return nil, err
	}

	m, err := regex.Compile(pattern)
	if err != nil {
		return nil, ErrInvalidArgumentType.Wrap(err, "regexp_like")
	}
	return m.Match(s), nil
}

func isNull(v interface{}) (interface{}, error) {
	return v == nil, nil
}

func isNotNull(v interface{}) (interface{}, error) {
	return v != nil, nil
}

// isEmpty reports whether v is null, an empty string, list or mapping.
func isEmpty(v interface{}) (interface{}, error) {
	switch v := v.(type) {
	case nil:
		return true, nil
	case string:
		return v == "", nil
	case []interface{}:
		return len(v) == 0, nil
	case map[string]interface{}:
		return len(v) == 0, nil
	default:
		return false, nil
	}
}
