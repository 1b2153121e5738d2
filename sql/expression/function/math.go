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
	"math"

	"github.com/exonware/go-xwquery/sql"
)

func mathFunc(name string, fn func(float64) float64) func(interface{}) (interface{}, error) {
	return func(v interface{}) (interface{}, error) {
		if v == nil {
			return nil, nil
		}
		f, ok := sql.ToFloat(v)
		if !ok {
			return nil, ErrInvalidArgumentType.New(name)
		}
		return sql.Normalize(fn(f)), nil
	}
}

var (
	abs   = mathFunc("abs", math.Abs)
	ceil  = mathFunc("ceil", math.Ceil)
	floor = mathFunc("floor", math.Floor)
)

func sqrt(v interface{}) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	f, ok := sql.ToFloat(v)
	if !ok {
		return nil, ErrInvalidArgumentType.New("sqrt")
	}
	if f < 0 {
		return nil, nil
	}
	return sql.Normalize(math.Sqrt(f)), nil
}

func power(base, exp interface{}) (interface{}, error) {
	if base == nil || exp == nil {
		return nil, nil
	}
	b, ok1 := sql.ToFloat(base)
	e, ok2 := sql.ToFloat(exp)
	if !ok1 || !ok2 {
		return nil, ErrInvalidArgumentType.New("power")
	}
	return sql.Normalize(math.Pow(b, e)), nil
}

// round rounds half away from zero to the given number of decimals.
func round(args ...interface{}) (interface{}, error) {
	if args[0] == nil {
		return nil, nil
	}
	f, ok := sql.ToFloat(args[0])
	if !ok {
		return nil, ErrInvalidArgumentType.New("round")
	}

	var decimals float64
	if len(args) == 2 {
		if args[1] == nil {
			return nil, nil
		}
		d, ok := sql.ToFloat(args[1])
		if !ok {
			return nil, ErrInvalidArgumentType.New("round")
		}
		decimals = math.Trunc(d)
	}

	p := math.Pow(10, decimals)
	return sql.Normalize(math.Round(f*p) / p), nil
}
