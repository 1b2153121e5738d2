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

package regex

import "regexp"

// goMatcher matches with the standard library engine. The posix variant
// uses leftmost-longest semantics.
type goMatcher struct {
	re *regexp.Regexp
}

func (m goMatcher) Match(text string) bool { return m.re.MatchString(text) }

func (m goMatcher) String() string { return m.re.String() }

func compileGo(pattern string) (Matcher, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	return goMatcher{re}, nil
}

func compilePOSIX(pattern string) (Matcher, error) {
	re, err := regexp.CompilePOSIX(pattern)
	if err != nil {
		return nil, err
	}
	return goMatcher{re}, nil
}

func init() {
	if err := Register(DefaultEngine, compileGo); err != nil {
		panic(err)
	}
	if err := Register("posix", compilePOSIX); err != nil {
		panic(err)
	}
}
