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

package plan

import (
	"fmt"
	"strings"

	"github.com/exonware/go-xwquery/sql"
	"github.com/exonware/go-xwquery/sql/expression"
	"github.com/exonware/go-xwquery/sql/parse"
)

// Executor computes a single operation of the action tree.
type Executor interface {
	// Operation returns the name of the operation the executor serves.
	Operation() string
	// SupportedShapes returns the input shapes the executor accepts. An
	// empty list accepts any input.
	SupportedShapes() []sql.Shape
	// RequiresOrder reports whether the result depends on the order of
	// the input.
	RequiresOrder() bool
	// Execute runs the action against the input of the context.
	Execute(ctx *sql.Context, a *sql.Action) (*sql.ExecutionResult, error)
}

// descriptor implements the static part of the Executor interface.
type descriptor struct {
	name    string
	shapes  []sql.Shape
	ordered bool
}

// Operation implements the Executor interface.
func (d descriptor) Operation() string { return d.name }

// SupportedShapes implements the Executor interface.
func (d descriptor) SupportedShapes() []sql.Shape { return d.shapes }

// RequiresOrder implements the Executor interface.
func (d descriptor) RequiresOrder() bool { return d.ordered }

// ExecutorFunc runs an action.
type ExecutorFunc func(ctx *sql.Context, a *sql.Action) (*sql.ExecutionResult, error)

type funcExecutor struct {
	descriptor
	fn ExecutorFunc
}

// NewExecutor returns an executor of the named operation that runs fn.
func NewExecutor(name string, fn ExecutorFunc, shapes ...sql.Shape) Executor {
	return &funcExecutor{descriptor{name: name, shapes: shapes}, fn}
}

func (e *funcExecutor) Execute(ctx *sql.Context, a *sql.Action) (*sql.ExecutionResult, error) {
	return e.fn(ctx, a)
}

// condition returns the condition param of the action as an expression.
func condition(a *sql.Action, key string) (sql.Expression, error) {
	raw, ok := a.Params.Get(key)
	if !ok {
		return nil, nil
	}

	cond, err := parse.ParseCondition(raw)
	if err != nil {
		if sql.ErrValue.Is(err) || sql.ErrParse.Is(err) {
			return nil, err
		}
		return nil, sql.ErrValue.Wrap(err, fmt.Sprintf("invalid %s of %s", key, a.Type))
	}
	return cond, nil
}

// filterItems returns the items for which cond holds.
func filterItems(ctx *sql.Context, items []interface{}, cond sql.Expression) ([]interface{}, error) {
	if cond == nil {
		return items, nil
	}

	result := make([]interface{}, 0, len(items))
	for _, item := range items {
		ok, err := expression.IsTrue(ctx, cond, item)
		if err != nil {
			return nil, err
		}
		if ok {
			result = append(result, item)
		}
	}
	return result, nil
}

// fieldList returns a param holding a list of field names. A single string
// is a list of one field.
func fieldList(p sql.Params, key string) []string {
	switch v := p[key].(type) {
	case nil:
		return nil
	case string:
		if v == "" {
			return nil
		}
		return []string{v}
	case []sql.Expression:
		names := make([]string, 0, len(v))
		for _, e := range v {
			if id, ok := e.(*expression.Identifier); ok {
				names = append(names, id.Name)
			} else {
				names = append(names, e.String())
			}
		}
		return names
	default:
		return p.GetStrings(key)
	}
}

// resolveName finds the value bound to name: a variable of the context,
// then a field of the input and last a field of the root input.
func resolveName(ctx *sql.Context, name string) (interface{}, string, bool) {
	if v, ok := ctx.Variable(name); ok {
		return v, "variable", true
	}

	if sql.InferShape(ctx.Input) == sql.ShapeTree {
		if v, ok := sql.FieldValue(ctx.Input, name); ok {
			return v, "input_field", true
		}
	}

	if root := ctx.RootInput(); sql.InferShape(root) == sql.ShapeTree {
		if v, ok := sql.FieldValue(root, name); ok {
			return v, "root_field", true
		}
	}

	return nil, "", false
}

// collection returns the value an action refers to by the given param:
// the data of the last child when the action has children, a literal
// collection, or a name resolved with resolveName.
func collection(ctx *sql.Context, a *sql.Action, key string) (interface{}, error) {
	if results := ctx.ChildResults(); len(results) > 0 {
		return results[len(results)-1].Data, nil
	}

	switch v := a.Params[key].(type) {
	case nil:
		return nil, sql.ErrValue.New(fmt.Sprintf("%s needs a %s", a.Type, key))
	case string:
		value, _, ok := resolveName(ctx, v)
		if !ok {
			return nil, sql.ErrValue.New(fmt.Sprintf("%s: unknown collection %q", a.Type, v))
		}
		return value, nil
	case *sql.Action:
		return nil, sql.ErrValue.New(fmt.Sprintf("%s: %s must be executed as a child", a.Type, key))
	default:
		return v, nil
	}
}

// target is a collection that write operations modify in place: either
// a field of the input mapping or the input itself.
type target struct {
	container map[string]interface{}
	field     string
	items     []interface{}
}

func resolveTarget(ctx *sql.Context, name string) *target {
	if m, ok := ctx.Input.(map[string]interface{}); ok && name != "" {
		if v, ok := m[name]; ok {
			return &target{container: m, field: name, items: sql.ExtractItems(v)}
		}
		if isCatalog(m) {
			return &target{container: m, field: name}
		}
	}

	return &target{items: sql.ExtractItems(ctx.Input)}
}

// isCatalog reports whether every field of the mapping holds a list,
// which makes it a set of named collections rather than a record.
func isCatalog(m map[string]interface{}) bool {
	for _, v := range m {
		if sql.InferShape(v) != sql.ShapeLinear {
			return false
		}
	}
	return true
}

// store saves the items back and returns the value to hand on.
func (t *target) store(items []interface{}) interface{} {
	if t.container == nil {
		return items
	}
	t.container[t.field] = items
	return t.container
}

// recordFor returns a mutable mapping for the record. Mappings are
// returned as they are; anything else is converted to a new mapping.
func recordFor(item interface{}) (map[string]interface{}, bool) {
	if m, ok := item.(map[string]interface{}); ok {
		return m, true
	}

	fields, ok := sql.RecordFields(item)
	if !ok {
		return nil, false
	}
	return sql.CloneRecord(fields).(map[string]interface{}), true
}

// prefixed copies the fields of a record into dst with the given prefix.
// Non record values are stored as prefix + "value".
func prefixed(dst map[string]interface{}, prefix string, item interface{}) {
	fields, ok := sql.RecordFields(item)
	if !ok {
		dst[prefix+"value"] = item
		return
	}

	for k, v := range fields {
		dst[prefix+k] = v
	}
}

// keyIndex groups values by equality. Hashable values are found through
// their hash, the rest with a linear search.
type keyIndex struct {
	hashed     map[uint64][]int
	unhashable []int
	keys       []interface{}
}

func newKeyIndex() *keyIndex {
	return &keyIndex{hashed: make(map[uint64][]int)}
}

// find returns the position of the key, or -1.
func (k *keyIndex) find(key interface{}) int {
	h, err := sql.HashKey(key)
	candidates := k.unhashable
	if err == nil {
		candidates = k.hashed[h]
	}

	for _, i := range candidates {
		if sql.ItemsEqual(k.keys[i], key) {
			return i
		}
	}
	return -1
}

// add inserts the key if missing and returns its position and whether it
// was added.
func (k *keyIndex) add(key interface{}) (int, bool) {
	if i := k.find(key); i >= 0 {
		return i, false
	}

	i := len(k.keys)
	k.keys = append(k.keys, key)
	if h, err := sql.HashKey(key); err == nil {
		k.hashed[h] = append(k.hashed[h], i)
	} else {
		k.unhashable = append(k.unhashable, i)
	}
	return i, true
}

func (k *keyIndex) len() int { return len(k.keys) }

// fieldValues returns the values of the fields in item, as a list.
func fieldValues(item interface{}, fields []string) []interface{} {
	values := make([]interface{}, len(fields))
	for i, f := range fields {
		values[i], _ = sql.ResolveField(item, f)
	}
	return values
}

// intParam reads an integer param, trying every key in order.
func intParam(a *sql.Action, keys ...string) (int64, bool, error) {
	for _, k := range keys {
		if !a.Params.Has(k) {
			continue
		}

		if e, ok := a.Params[k].(sql.Expression); ok {
			v, err := e.Eval(sql.NewEmptyContext(), nil)
			if err != nil {
				return 0, false, err
			}
			f, ok := sql.ToFloat(v)
			if !ok {
				return 0, false, sql.ErrValue.New(fmt.Sprintf("%s: %s is not a number", a.Type, k))
			}
			return int64(f), true, nil
		}

		n, ok := a.Params.GetInt(k)
		if !ok {
			return 0, false, sql.ErrValue.New(fmt.Sprintf("%s: %s is not an integer: %v", a.Type, k, a.Params[k]))
		}
		return n, true, nil
	}
	return 0, false, nil
}

func upper(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
