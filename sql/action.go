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

package sql

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	uuid "github.com/satori/go.uuid"
	"github.com/spf13/cast"
)

// Action is a node of the dialect-neutral action tree. Every parser
// produces actions, every generator consumes them and every executor is
// dispatched on Type.
type Action struct {
	// Type is the operation name, or one of the container types.
	Type string
	// Params of the operation. Values are nil, bool, int64, float64,
	// string, []interface{}, map[string]interface{} or Expression.
	Params Params
	// Children are executed before the action, in order.
	Children []*Action
	// ID is an optional stable identifier.
	ID string
	// Line and Column locate the token that produced the action, or are
	// zero for synthetic actions.
	Line   int
	Column int
	// Metadata holds optimizer hints. It never alters semantics.
	Metadata map[string]interface{}
}

// NewAction creates a new action with the given params and children.
func NewAction(typ string, params Params, children ...*Action) *Action {
	if params == nil {
		params = Params{}
	}

	return &Action{Type: typ, Params: params, Children: children}
}

// NewRoot wraps a statement sequence into a ROOT container.
func NewRoot(statements ...*Action) *Action {
	return NewAction(Root, nil, statements...)
}

// NewActionID returns a new random action identifier.
func NewActionID() string {
	return uuid.NewV4().String()
}

// At sets the source location of the action and returns it.
func (a *Action) At(line, column int) *Action {
	a.Line = line
	a.Column = column
	return a
}

// IsContainer reports whether the action only holds statements.
func (a *Action) IsContainer() bool {
	return IsContainer(a.Type)
}

// Clone returns a deep copy of the action. Expressions are immutable and
// are shared between the copies.
func (a *Action) Clone() *Action {
	if a == nil {
		return nil
	}

	c := &Action{
		Type:   a.Type,
		Params: a.Params.Clone(),
		ID:     a.ID,
		Line:   a.Line,
		Column: a.Column,
	}

	if a.Metadata != nil {
		c.Metadata = make(map[string]interface{}, len(a.Metadata))
		for k, v := range a.Metadata {
			c.Metadata[k] = cloneValue(v)
		}
	}

	if len(a.Children) > 0 {
		c.Children = make([]*Action, len(a.Children))
		for i, child := range a.Children {
			c.Children[i] = child.Clone()
		}
	}

	return c
}

// Equal reports whether both actions are structurally equal: same type,
// params and children. IDs, source positions and metadata are ignored.
func (a *Action) Equal(b *Action) bool {
	if a == nil || b == nil {
		return a == b
	}

	if a.Type != b.Type || len(a.Children) != len(b.Children) {
		return false
	}

	if len(a.Params) != len(b.Params) {
		return false
	}

	for k, v := range a.Params {
		w, ok := b.Params[k]
		if !ok || !paramValuesEqual(v, w) {
			return false
		}
	}

	for i := range a.Children {
		if !a.Children[i].Equal(b.Children[i]) {
			return false
		}
	}

	return true
}

func paramValuesEqual(a, b interface{}) bool {
	switch a := a.(type) {
	case *Action:
		b, ok := b.(*Action)
		return ok && a.Equal(b)
	case []*Action:
		b, ok := b.([]*Action)
		if !ok || len(a) != len(b) {
			return false
		}
		for i := range a {
			if !a[i].Equal(b[i]) {
				return false
			}
		}
		return true
	case Expression:
		b, ok := b.(Expression)
		return ok && ExpressionsEqual(a, b)
	case []Expression:
		b, ok := b.([]Expression)
		if !ok || len(a) != len(b) {
			return false
		}
		for i := range a {
			if !ExpressionsEqual(a[i], b[i]) {
				return false
			}
		}
		return true
	case []interface{}:
		b, ok := b.([]interface{})
		if !ok || len(a) != len(b) {
			return false
		}
		for i := range a {
			if !paramValuesEqual(a[i], b[i]) {
				return false
			}
		}
		return true
	case map[string]interface{}:
		b, ok := b.(map[string]interface{})
		if !ok || len(a) != len(b) {
			return false
		}
		for k, v := range a {
			w, ok := b[k]
			if !ok || !paramValuesEqual(v, w) {
				return false
			}
		}
		return true
	default:
		return reflect.DeepEqual(a, b)
	}
}

// TransformActionFunc is a function that transforms an action.
type TransformActionFunc func(*Action) (*Action, error)

// TransformUp applies f to the children first and then to the action
// itself. The original tree is not modified.
func (a *Action) TransformUp(f TransformActionFunc) (*Action, error) {
	n := *a
	if len(a.Children) > 0 {
		n.Children = make([]*Action, len(a.Children))
		for i, c := range a.Children {
			tc, err := c.TransformUp(f)
			if err != nil {
				return nil, err
			}
			n.Children[i] = tc
		}
	}

	return f(&n)
}

// Inspect traverses the tree in depth-first order. If f returns false the
// children of the action are skipped.
func (a *Action) Inspect(f func(*Action) bool) {
	if a == nil || !f(a) {
		return
	}

	for _, c := range a.Children {
		c.Inspect(f)
	}
}

func (a *Action) String() string {
	p := NewTreePrinter()
	_ = p.WriteNode("%s%s", a.Type, a.Params)

	if len(a.Children) > 0 {
		var children = make([]string, len(a.Children))
		for i, c := range a.Children {
			children[i] = c.String()
		}
		_ = p.WriteChildren(children...)
	}

	return p.String()
}

// Params of an action.
type Params map[string]interface{}

// Has reports whether the key is present, even with a nil value.
func (p Params) Has(key string) bool {
	_, ok := p[key]
	return ok
}

// Get returns the value of the first present key.
func (p Params) Get(keys ...string) (interface{}, bool) {
	for _, k := range keys {
		if v, ok := p[k]; ok {
			return v, true
		}
	}
	return nil, false
}

// GetString returns the value of key as a string, or "" when missing.
func (p Params) GetString(key string) string {
	v, ok := p[key]
	if !ok || v == nil {
		return ""
	}

	if s, ok := v.(string); ok {
		return s
	}
	return cast.ToString(v)
}

// GetBool returns the value of key as a bool.
func (p Params) GetBool(key string) bool {
	return cast.ToBool(p[key])
}

// GetInt returns the value of key as an int64, and false when the key is
// missing or is not a number.
func (p Params) GetInt(key string) (int64, bool) {
	v, ok := p[key]
	if !ok || v == nil {
		return 0, false
	}

	if e, ok := v.(interface{ Value() interface{} }); ok {
		v = e.Value()
	}

	n, err := cast.ToInt64E(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

// GetStrings returns the value of key as a list of strings. A single
// string is returned as a one element list.
func (p Params) GetStrings(key string) []string {
	v, ok := p[key]
	if !ok || v == nil {
		return nil
	}

	switch v := v.(type) {
	case string:
		return []string{v}
	case []string:
		return v
	case []interface{}:
		var result = make([]string, 0, len(v))
		for _, e := range v {
			result = append(result, cast.ToString(e))
		}
		return result
	default:
		return []string{fmt.Sprint(v)}
	}
}

// Clone returns a deep copy of the params.
func (p Params) Clone() Params {
	if p == nil {
		return nil
	}

	c := make(Params, len(p))
	for k, v := range p {
		c[k] = cloneValue(v)
	}
	return c
}

func (p Params) format() string {
	if len(p) == 0 {
		return ""
	}

	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var parts = make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s: %s", k, FormatValue(p[k]))
	}

	return "(" + strings.Join(parts, ", ") + ")"
}

// Format implements fmt.Formatter so actions print their params sorted.
func (p Params) Format(f fmt.State, verb rune) {
	_, _ = f.Write([]byte(p.format()))
}

func cloneValue(v interface{}) interface{} {
	switch v := v.(type) {
	case []interface{}:
		c := make([]interface{}, len(v))
		for i, e := range v {
			c[i] = cloneValue(e)
		}
		return c
	case []string:
		c := make([]string, len(v))
		copy(c, v)
		return c
	case map[string]interface{}:
		c := make(map[string]interface{}, len(v))
		for k, e := range v {
			c[k] = cloneValue(e)
		}
		return c
	case Params:
		return v.Clone()
	case []*Action:
		c := make([]*Action, len(v))
		for i, a := range v {
			c[i] = a.Clone()
		}
		return c
	case *Action:
		return v.Clone()
	default:
		return v
	}
}

// FormatValue renders a param value for printing.
func FormatValue(v interface{}) string {
	switch v := v.(type) {
	case nil:
		return "NULL"
	case string:
		return fmt.Sprintf("%q", v)
	case fmt.Stringer:
		return v.String()
	case []interface{}:
		parts := make([]string, len(v))
		for i, e := range v {
			parts[i] = FormatValue(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case []*Action:
		parts := make([]string, len(v))
		for i, a := range v {
			parts[i] = a.Type
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case map[string]interface{}:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = fmt.Sprintf("%s: %s", k, FormatValue(v[k]))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		return fmt.Sprint(v)
	}
}
