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
	"fmt"
	"strings"

	"github.com/spf13/cast"
)

func toString(name string, v interface{}) (string, error) {
	if s, ok := v.(string); ok {
		return s, nil
	}

	s, err := cast.ToStringE(v)
	if err != nil {
		return "", ErrInvalidArgumentType.New(name)
	}
	return s, nil
}

func stringFunc(name string, fn func(string) interface{}) func(interface{}) (interface{}, error) {
	return func(v interface{}) (interface{}, error) {
		if v == nil {
			return nil, nil
		}
		s, err := toString(name, v)
		if err != nil {
			return nil, err
		}
		return fn(s), nil
	}
}

var (
	upper = stringFunc("upper", func(s string) interface{} { return strings.ToUpper(s) })
	lower = stringFunc("lower", func(s string) interface{} { return strings.ToLower(s) })

	reverse = stringFunc("reverse", func(s string) interface{} {
		r := []rune(s)
		for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
			r[i], r[j] = r[j], r[i]
		}
		return string(r)
	})
)

// length returns the number of characters of a string or the number of
// elements of a list or mapping.
func length(v interface{}) (interface{}, error) {
	switch v := v.(type) {
	case nil:
		return nil, nil
	case []interface{}:
		return int64(len(v)), nil
	case map[string]interface{}:
		return int64(len(v)), nil
	}

	s, err := toString("length", v)
	if err != nil {
		return nil, err
	}
	return int64(len([]rune(s))), nil
}

func trimFunc(fn func(string) string) func(interface{}) (interface{}, error) {
	return stringFunc("trim", func(s string) interface{} { return fn(s) })
}

func concat(args ...interface{}) (interface{}, error) {
	var sb strings.Builder
	for _, a := range args {
		if a == nil {
			return nil, nil
		}
		s, err := toString("concat", a)
		if err != nil {
			return nil, err
		}
		sb.WriteString(s)
	}
	return sb.String(), nil
}

// substring is 1-indexed; a negative start counts from the end.
func substring(args ...interface{}) (interface{}, error) {
	for _, a := range args {
		if a == nil {
			return nil, nil
		}
	}

	s, err := toString("substring", args[0])
	if err != nil {
		return nil, err
	}
	text := []rune(s)
	runeCount := int64(len(text))

	start, err := cast.ToInt64E(args[1])
	if err != nil {
		return nil, ErrInvalidArgumentType.New("substring")
	}

	length := runeCount
	if len(args) == 3 {
		length, err = cast.ToInt64E(args[2])
		if err != nil {
			return nil, ErrInvalidArgumentType.New("substring")
		}
	}

	var startIdx int64
	if start < 0 {
		startIdx = runeCount + start
	} else {
		startIdx = start - 1
	}

	if startIdx < 0 || startIdx >= runeCount || length <= 0 {
		return "", nil
	}

	if startIdx+length > runeCount {
		length = runeCount - startIdx
	}

	return string(text[startIdx : startIdx+length]), nil
}

func replace(args ...interface{}) (interface{}, error) {
	strs := make([]string, len(args))
	for i, a := range args {
		if a == nil {
			return nil, nil
		}
		s, err := toString("replace", a)
		if err != nil {
			return nil, err
		}
		strs[i] = s
	}

	if strs[1] == "" {
		return strs[0], nil
	}
	return strings.Replace(strs[0], strs[1], strs[2], -1), nil
}

func coalesce(args ...interface{}) (interface{}, error) {
	for _, a := range args {
		if a != nil {
			return a, nil
		}
	}
	return nil, nil
}

func ifnull(v, def interface{}) (interface{}, error) {
	if v == nil {
		return def, nil
	}
	return v, nil
}

func nullif(a, b interface{}) (interface{}, error) {
	if a != nil && b != nil && fmt.Sprint(a) == fmt.Sprint(b) {
		return nil, nil
	}
	return a, nil
}
