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
	"sort"
	"strings"
	"sync"

	errors "gopkg.in/src-d/go-errors.v1"

	"github.com/exonware/go-xwquery/internal/similartext"
)

var (
	// ErrFunctionNotFound is thrown when a function is not found.
	ErrFunctionNotFound = errors.NewKind("function: '%s' not found%s")
	// ErrFunctionAlreadyRegistered is thrown when a function is already
	// registered.
	ErrFunctionAlreadyRegistered = errors.NewKind("function '%s' is already registered")
	// ErrInvalidArgumentNumber is returned when the number of arguments to
	// call a function is different from the function arity.
	ErrInvalidArgumentNumber = errors.NewKind("function '%s' expected %s arguments, %d received")
	// ErrInvalidArgumentType is returned when an argument has a type the
	// function cannot work with.
	ErrInvalidArgumentType = errors.NewKind("function '%s' received invalid argument types")
)

// Func is a scalar function over already evaluated arguments.
type Func func(args ...interface{}) (interface{}, error)

// Function is a named scalar function with its arity. A negative MaxArgs
// means the function is variadic.
type Function struct {
	Name    string
	MinArgs int
	MaxArgs int
	Fn      Func
}

// Function0 returns a function without arguments.
func Function0(name string, fn func() (interface{}, error)) Function {
	return Function{name, 0, 0, func(...interface{}) (interface{}, error) { return fn() }}
}

// Function1 returns a function of one argument.
func Function1(name string, fn func(interface{}) (interface{}, error)) Function {
	return Function{name, 1, 1, func(args ...interface{}) (interface{}, error) { return fn(args[0]) }}
}

// Function2 returns a function of two arguments.
func Function2(name string, fn func(a, b interface{}) (interface{}, error)) Function {
	return Function{name, 2, 2, func(args ...interface{}) (interface{}, error) { return fn(args[0], args[1]) }}
}

// FunctionN returns a function taking between min and max arguments.
func FunctionN(name string, min, max int, fn Func) Function {
	return Function{name, min, max, fn}
}

// Call checks the arity and calls the function.
func (f Function) Call(args ...interface{}) (interface{}, error) {
	if len(args) < f.MinArgs || (f.MaxArgs >= 0 && len(args) > f.MaxArgs) {
		return nil, ErrInvalidArgumentNumber.New(f.Name, f.arity(), len(args))
	}
	return f.Fn(args...)
}

func (f Function) arity() string {
	switch {
	case f.MaxArgs < 0:
		return fmt.Sprintf("at least %d", f.MinArgs)
	case f.MinArgs == f.MaxArgs:
		return fmt.Sprint(f.MinArgs)
	default:
		return fmt.Sprintf("%d to %d", f.MinArgs, f.MaxArgs)
	}
}

// Registry is used to register functions. Names are case insensitive.
type Registry struct {
	mu    sync.RWMutex
	funcs map[string]Function
}

// NewRegistry creates a new Registry with the default functions.
func NewRegistry() *Registry {
	r := &Registry{funcs: make(map[string]Function)}
	if err := r.Register(Defaults...); err != nil {
		panic(err)
	}
	return r
}

// Register registers functions. It fails if a name is already taken.
func (r *Registry) Register(fns ...Function) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, f := range fns {
		name := strings.ToLower(f.Name)
		if _, ok := r.funcs[name]; ok {
			return ErrFunctionAlreadyRegistered.New(f.Name)
		}
		r.funcs[name] = f
	}
	return nil
}

// Function returns the function with the given name.
func (r *Registry) Function(name string) (Function, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if f, ok := r.funcs[strings.ToLower(name)]; ok {
		return f, nil
	}

	return Function{}, ErrFunctionNotFound.New(name, similartext.FindFromMap(r.funcs, strings.ToLower(name)))
}

// Names returns the sorted names of the registered functions.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.funcs))
	for n := range r.funcs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry is the registry used to resolve function calls.
var DefaultRegistry = NewRegistry()

// Lookup finds a function in the default registry.
func Lookup(name string) (Function, error) {
	return DefaultRegistry.Function(name)
}

// Defaults is the function map with all the default functions.
var Defaults = []Function{
	Function1("upper", upper),
	Function1("lower", lower),
	Function1("length", length),
	Function1("len", length),
	Function1("trim", trimFunc(strings.TrimSpace)),
	Function1("ltrim", trimFunc(func(s string) string { return strings.TrimLeft(s, " \t\r\n") })),
	Function1("rtrim", trimFunc(func(s string) string { return strings.TrimRight(s, " \t\r\n") })),
	Function1("reverse", reverse),
	FunctionN("concat", 1, -1, concat),
	FunctionN("substring", 2, 3, substring),
	FunctionN("substr", 2, 3, substring),
	FunctionN("replace", 3, 3, replace),
	Function2("contains", contains),
	Function2("startswith", startsWith),
	Function2("endswith", endsWith),
	Function2("regexp_like", regexpLike),
	Function1("isnull", isNull),
	Function1("isnotnull", isNotNull),
	Function1("isempty", isEmpty),
	Function1("abs", abs),
	FunctionN("round", 1, 2, round),
	Function1("ceil", ceil),
	Function1("ceiling", ceil),
	Function1("floor", floor),
	Function1("sqrt", sqrt),
	Function2("power", power),
	Function2("pow", power),
	FunctionN("coalesce", 1, -1, coalesce),
	Function2("ifnull", ifnull),
	Function2("nullif", nullif),
	Function0("true", func() (interface{}, error) { return true, nil }),
	Function0("false", func() (interface{}, error) { return false, nil }),
}
