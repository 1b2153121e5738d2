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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	testCases := []struct {
		name     string
		args     []interface{}
		expected interface{}
	}{
		{"upper", []interface{}{"abc"}, "ABC"},
		{"UPPER", []interface{}{nil}, nil},
		{"lower", []interface{}{"AbC"}, "abc"},
		{"length", []interface{}{"héllo"}, int64(5)},
		{"length", []interface{}{[]interface{}{1, 2}}, int64(2)},
		{"trim", []interface{}{"  a  "}, "a"},
		{"ltrim", []interface{}{"  a  "}, "a  "},
		{"rtrim", []interface{}{"  a  "}, "  a"},
		{"reverse", []interface{}{"abc"}, "cba"},
		{"concat", []interface{}{"a", 1, "b"}, "a1b"},
		{"concat", []interface{}{"a", nil}, nil},
		{"substring", []interface{}{"foobar", 4}, "bar"},
		{"substring", []interface{}{"foobar", 1, 3}, "foo"},
		{"substring", []interface{}{"foobar", -3, 2}, "ba"},
		{"substring", []interface{}{"foobar", 10}, ""},
		{"replace", []interface{}{"a-b-c", "-", "+"}, "a+b+c"},
		{"abs", []interface{}{-3}, int64(3)},
		{"abs", []interface{}{-3.5}, 3.5},
		{"round", []interface{}{2.5}, int64(3)},
		{"round", []interface{}{2.346, 2}, 2.35},
		{"ceil", []interface{}{1.2}, int64(2)},
		{"floor", []interface{}{1.8}, int64(1)},
		{"sqrt", []interface{}{16}, int64(4)},
		{"sqrt", []interface{}{-1}, nil},
		{"power", []interface{}{2, 10}, int64(1024)},
		{"coalesce", []interface{}{nil, nil, "x"}, "x"},
		{"coalesce", []interface{}{nil}, nil},
		{"ifnull", []interface{}{nil, 1}, 1},
		{"nullif", []interface{}{"a", "a"}, nil},
		{"nullif", []interface{}{"a", "b"}, "a"},
		{"contains", []interface{}{"foobar", "oba"}, true},
		{"contains", []interface{}{"foobar", nil}, nil},
		{"startswith", []interface{}{"foobar", "foo"}, true},
		{"endswith", []interface{}{"foobar", "foo"}, false},
		{"regexp_like", []interface{}{"foobar", "^fo+b"}, true},
		{"regexp_like", []interface{}{"Foobar", "(?i)^foo"}, true},
		{"isnull", []interface{}{nil}, true},
		{"isnotnull", []interface{}{1}, true},
		{"isempty", []interface{}{""}, true},
		{"isempty", []interface{}{[]interface{}{1}}, false},
	}

	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			require := require.New(t)
			f, err := Lookup(tt.name)
			require.NoError(err)

			result, err := f.Call(tt.args...)
			require.NoError(err)
			require.Equal(tt.expected, result)
		})
	}
}

func TestArity(t *testing.T) {
	require := require.New(t)

	f, err := Lookup("substring")
	require.NoError(err)

	_, err = f.Call("a")
	require.True(ErrInvalidArgumentNumber.Is(err))

	_, err = f.Call("a", 1, 2, 3)
	require.True(ErrInvalidArgumentNumber.Is(err))
}

func TestRegistry(t *testing.T) {
	require := require.New(t)

	r := NewRegistry()
	_, err := r.Function("uppr")
	require.True(ErrFunctionNotFound.Is(err))
	require.Contains(err.Error(), "maybe you mean upper?")

	err = r.Register(Function1("upper", upper))
	require.True(ErrFunctionAlreadyRegistered.Is(err))

	err = r.Register(Function1("double", func(v interface{}) (interface{}, error) {
		return v.(int) * 2, nil
	}))
	require.NoError(err)

	f, err := r.Function("DOUBLE")
	require.NoError(err)
	v, err := f.Call(21)
	require.NoError(err)
	require.Equal(42, v)
	require.Contains(r.Names(), "double")

	_, err = Lookup("double")
	require.Error(err)
}

func TestInvalidArgumentType(t *testing.T) {
	require := require.New(t)

	f, err := Lookup("abs")
	require.NoError(err)

	_, err = f.Call("abc")
	require.True(ErrInvalidArgumentType.Is(err))
}
