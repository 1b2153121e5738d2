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

package expression

import (
	"fmt"

	"github.com/exonware/go-xwquery/internal/regex"
)

// like matches the left value against a SQL pattern. Null on either side
// never matches.
func like(left, pattern interface{}) (interface{}, error) {
	if left == nil || pattern == nil {
		return false, nil
	}

	p, ok := pattern.(string)
	if !ok {
		p = fmt.Sprint(pattern)
	}

	m, err := regex.Like(p)
	if err != nil {
		return nil, err
	}

	s, ok := left.(string)
	if !ok {
		s = fmt.Sprint(left)
	}

	return m.Match(s), nil
}
