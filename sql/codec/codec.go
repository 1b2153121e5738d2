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

// Package codec encodes action trees, expressions included, as JSON or
// msgpack.
package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"github.com/vmihailenco/msgpack/v5"
	errors "gopkg.in/src-d/go-errors.v1"

	"github.com/exonware/go-xwquery/sql"
	"github.com/exonware/go-xwquery/sql/expression"
)

// Format of an encoded tree.
type Format string

// Supported formats.
const (
	JSON    Format = "json"
	Msgpack Format = "msgpack"
)

var (
	// ErrUnsupportedFormat is returned for an unknown encoding format.
	ErrUnsupportedFormat = errors.NewKind("codec: unsupported format %q")

	// ErrUnsupportedValue is returned when a param holds a value that has
	// no encoding.
	ErrUnsupportedValue = errors.NewKind("codec: cannot encode value of type %T")

	// ErrInvalidEncoding is returned when decoded data is not a valid tree.
	ErrInvalidEncoding = errors.NewKind("codec: invalid encoding: %s")
)

// Markers of the values that plain JSON and msgpack cannot tell apart
// from lists and mappings.
const (
	exprKey    = "@expr"
	exprsKey   = "@exprs"
	stringsKey = "@strings"
	actionKey  = "@action"
	actionsKey = "@actions"
	floatKey   = "@float"
)

// Expression kinds.
const (
	kindIdentifier = "identifier"
	kindStar       = "star"
	kindAlias      = "alias"
	kindLiteral    = "literal"
	kindBinary     = "binary"
	kindUnary      = "unary"
	kindIn         = "in"
	kindBetween    = "between"
	kindAggregate  = "aggregate"
	kindFunction   = "function"
)

type wireAction struct {
	Type     string                 `json:"type" msgpack:"type"`
	ID       string                 `json:"id,omitempty" msgpack:"id,omitempty"`
	Line     int                    `json:"line,omitempty" msgpack:"line,omitempty"`
	Column   int                    `json:"column,omitempty" msgpack:"column,omitempty"`
	Params   map[string]interface{} `json:"params,omitempty" msgpack:"params,omitempty"`
	Children []*wireAction          `json:"children,omitempty" msgpack:"children,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty" msgpack:"metadata,omitempty"`
}

// Marshal encodes the tree in the given format.
func Marshal(a *sql.Action, f Format) ([]byte, error) {
	w, err := toWire(a)
	if err != nil {
		return nil, err
	}

	switch f {
	case JSON:
		return json.Marshal(w)
	case Msgpack:
		return msgpack.Marshal(w)
	default:
		return nil, ErrUnsupportedFormat.New(f)
	}
}

// Unmarshal decodes a tree encoded with Marshal.
func Unmarshal(data []byte, f Format) (*sql.Action, error) {
	var w wireAction
	switch f {
	case JSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		if err := dec.Decode(&w); err != nil {
			return nil, ErrInvalidEncoding.Wrap(err, "json")
		}
	case Msgpack:
		if err := msgpack.Unmarshal(data, &w); err != nil {
			return nil, ErrInvalidEncoding.Wrap(err, "msgpack")
		}
	default:
		return nil, ErrUnsupportedFormat.New(f)
	}

	return fromWire(&w)
}

func toWire(a *sql.Action) (*wireAction, error) {
	if a == nil {
		return nil, ErrInvalidEncoding.New("nil action")
	}

	w := &wireAction{Type: a.Type, ID: a.ID, Line: a.Line, Column: a.Column}

	if len(a.Params) > 0 {
		w.Params = make(map[string]interface{}, len(a.Params))
		for k, v := range a.Params {
			ev, err := EncodeValue(v)
			if err != nil {
				return nil, err
			}
			w.Params[k] = ev
		}
	}

	if len(a.Metadata) > 0 {
		w.Metadata = make(map[string]interface{}, len(a.Metadata))
		for k, v := range a.Metadata {
			ev, err := EncodeValue(v)
			if err != nil {
				return nil, err
			}
			w.Metadata[k] = ev
		}
	}

	for _, c := range a.Children {
		wc, err := toWire(c)
		if err != nil {
			return nil, err
		}
		w.Children = append(w.Children, wc)
	}

	return w, nil
}

func fromWire(w *wireAction) (*sql.Action, error) {
	if w == nil || w.Type == "" {
		return nil, ErrInvalidEncoding.New("action without a type")
	}

	params := make(sql.Params, len(w.Params))
	for k, v := range w.Params {
		dv, err := DecodeValue(v)
		if err != nil {
			return nil, err
		}
		params[k] = dv
	}

	a := sql.NewAction(w.Type, params)
	a.ID = w.ID
	a.Line, a.Column = w.Line, w.Column

	if len(w.Metadata) > 0 {
		a.Metadata = make(map[string]interface{}, len(w.Metadata))
		for k, v := range w.Metadata {
			dv, err := DecodeValue(v)
			if err != nil {
				return nil, err
			}
			a.Metadata[k] = dv
		}
	}

	for _, wc := range w.Children {
		c, err := fromWire(wc)
		if err != nil {
			return nil, err
		}
		a.Children = append(a.Children, c)
	}

	return a, nil
}

// EncodeValue turns a param value into lists, mappings and scalars.
// Expressions, actions, string lists and integral floats are wrapped in
// single key mappings so they decode back to the same Go types.
func EncodeValue(v interface{}) (interface{}, error) {
	switch v := v.(type) {
	case nil, bool, string, int64:
		return v, nil
	case int, int8, int16, int32, uint8, uint16, uint32, uint64, uint:
		return sql.Normalize(v), nil
	case float32:
		return EncodeValue(float64(v))
	case float64:
		if v == math.Trunc(v) && !math.IsInf(v, 0) {
			return map[string]interface{}{floatKey: v}, nil
		}
		return v, nil
	case sql.Expression:
		e, err := EncodeExpression(v)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{exprKey: e}, nil
	case []sql.Expression:
		list := make([]interface{}, len(v))
		for i, e := range v {
			ee, err := EncodeExpression(e)
			if err != nil {
				return nil, err
			}
			list[i] = ee
		}
		return map[string]interface{}{exprsKey: list}, nil
	case []string:
		list := make([]interface{}, len(v))
		for i, s := range v {
			list[i] = s
		}
		return map[string]interface{}{stringsKey: list}, nil
	case *sql.Action:
		w, err := toWire(v)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{actionKey: w}, nil
	case []*sql.Action:
		list := make([]*wireAction, len(v))
		for i, a := range v {
			w, err := toWire(a)
			if err != nil {
				return nil, err
			}
			list[i] = w
		}
		return map[string]interface{}{actionsKey: list}, nil
	case []interface{}:
		list := make([]interface{}, len(v))
		for i, e := range v {
			ev, err := EncodeValue(e)
			if err != nil {
				return nil, err
			}
			list[i] = ev
		}
		return list, nil
	case sql.Params:
		return EncodeValue(map[string]interface{}(v))
	case map[string]interface{}:
		m := make(map[string]interface{}, len(v))
		for k, e := range v {
			ev, err := EncodeValue(e)
			if err != nil {
				return nil, err
			}
			m[k] = ev
		}
		return m, nil
	default:
		return nil, ErrUnsupportedValue.New(v)
	}
}

// DecodeValue reverses EncodeValue on decoded JSON or msgpack data.
func DecodeValue(v interface{}) (interface{}, error) {
	switch v := v.(type) {
	case nil, bool, string, int64, float64:
		return v, nil
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n, nil
		}
		f, err := v.Float64()
		if err != nil {
			return nil, ErrInvalidEncoding.New(fmt.Sprintf("invalid number %s", v))
		}
		return f, nil
	case int, int8, int16, int32, uint8, uint16, uint32, uint64, uint:
		return sql.Normalize(v), nil
	case float32:
		return float64(v), nil
	case []interface{}:
		list := make([]interface{}, len(v))
		for i, e := range v {
			dv, err := DecodeValue(e)
			if err != nil {
				return nil, err
			}
			list[i] = dv
		}
		return list, nil
	case map[string]interface{}:
		if len(v) == 1 {
			if dv, ok, err := decodeMarked(v); ok || err != nil {
				return dv, err
			}
		}

		m := make(map[string]interface{}, len(v))
		for k, e := range v {
			dv, err := DecodeValue(e)
			if err != nil {
				return nil, err
			}
			m[k] = dv
		}
		return m, nil
	case map[interface{}]interface{}:
		m := make(map[string]interface{}, len(v))
		for k, e := range v {
			m[fmt.Sprint(k)] = e
		}
		return DecodeValue(m)
	default:
		return nil, ErrInvalidEncoding.New(fmt.Sprintf("unexpected value of type %T", v))
	}
}

func decodeMarked(m map[string]interface{}) (interface{}, bool, error) {
	for k, raw := range m {
		switch k {
		case floatKey:
			f, err := toFloat(raw)
			return f, true, err
		case exprKey:
			e, err := DecodeExpression(raw)
			return e, true, err
		case exprsKey:
			items, ok := raw.([]interface{})
			if !ok {
				return nil, true, ErrInvalidEncoding.New("expression list is not a list")
			}
			list := make([]sql.Expression, len(items))
			for i, item := range items {
				e, err := DecodeExpression(item)
				if err != nil {
					return nil, true, err
				}
				list[i] = e
			}
			return list, true, nil
		case stringsKey:
			items, ok := raw.([]interface{})
			if !ok {
				return nil, true, ErrInvalidEncoding.New("string list is not a list")
			}
			list := make([]string, len(items))
			for i, item := range items {
				s, ok := item.(string)
				if !ok {
					return nil, true, ErrInvalidEncoding.New(fmt.Sprintf("%v is not a string", item))
				}
				list[i] = s
			}
			return list, true, nil
		case actionKey:
			a, err := decodeWireValue(raw)
			return a, true, err
		case actionsKey:
			items, ok := raw.([]interface{})
			if !ok {
				return nil, true, ErrInvalidEncoding.New("action list is not a list")
			}
			list := make([]*sql.Action, len(items))
			for i, item := range items {
				a, err := decodeWireValue(item)
				if err != nil {
					return nil, true, err
				}
				list[i] = a
			}
			return list, true, nil
		}
	}
	return nil, false, nil
}

// decodeWireValue decodes an action nested in a param, which the
// decoders hand over as a generic mapping.
func decodeWireValue(raw interface{}) (*sql.Action, error) {
	m, ok := raw.(map[string]interface{})
	if !ok {
		return nil, ErrInvalidEncoding.New("nested action is not a mapping")
	}

	w := &wireAction{}
	w.Type, _ = m["type"].(string)
	w.ID, _ = m["id"].(string)
	if v, ok := m["line"]; ok {
		n, err := toInt(v)
		if err != nil {
			return nil, err
		}
		w.Line = n
	}
	if v, ok := m["column"]; ok {
		n, err := toInt(v)
		if err != nil {
			return nil, err
		}
		w.Column = n
	}
	w.Params, _ = m["params"].(map[string]interface{})
	w.Metadata, _ = m["metadata"].(map[string]interface{})

	a, err := fromWire(w)
	if err != nil {
		return nil, err
	}

	children, _ := m["children"].([]interface{})
	for _, c := range children {
		child, err := decodeWireValue(c)
		if err != nil {
			return nil, err
		}
		a.Children = append(a.Children, child)
	}
	return a, nil
}

func toFloat(v interface{}) (float64, error) {
	dv, err := DecodeValue(v)
	if err != nil {
		return 0, err
	}
	switch n := dv.(type) {
	case int64:
		return float64(n), nil
	case float64:
		return n, nil
	}
	return 0, ErrInvalidEncoding.New(fmt.Sprintf("%v is not a number", v))
}

func toInt(v interface{}) (int, error) {
	f, err := toFloat(v)
	return int(f), err
}

// EncodeExpression turns an expression into a mapping tagged with its
// kind.
func EncodeExpression(e sql.Expression) (map[string]interface{}, error) {
	if e == nil {
		return nil, nil
	}

	m := make(map[string]interface{})
	var err error
	switch e := e.(type) {
	case *expression.Identifier:
		m["kind"] = kindIdentifier
		m["name"] = e.Name
	case *expression.Star:
		m["kind"] = kindStar
	case *expression.Alias:
		m["kind"] = kindAlias
		m["name"] = e.Name()
		m["child"], err = encodeChild(e.Child)
	case *expression.Literal:
		m["kind"] = kindLiteral
		m["value"], err = EncodeValue(e.Value())
	case *expression.Binary:
		m["kind"] = kindBinary
		m["op"] = e.Op
		if m["left"], err = encodeChild(e.Left); err == nil {
			m["right"], err = encodeChild(e.Right)
		}
	case *expression.Unary:
		m["kind"] = kindUnary
		m["op"] = e.Op
		m["child"], err = encodeChild(e.Child)
	case *expression.In:
		m["kind"] = kindIn
		if m["left"], err = encodeChild(e.Left); err == nil {
			m["values"], err = encodeChildren(e.Values)
		}
	case *expression.Between:
		m["kind"] = kindBetween
		if m["value"], err = encodeChild(e.Val); err == nil {
			if m["lower"], err = encodeChild(e.Lower); err == nil {
				m["upper"], err = encodeChild(e.Upper)
			}
		}
	case *expression.Aggregate:
		m["kind"] = kindAggregate
		m["name"] = e.Name
		m["distinct"] = e.Distinct
		m["arg"], err = encodeChild(e.Arg)
	case *expression.Function:
		m["kind"] = kindFunction
		m["name"] = e.Name
		m["args"], err = encodeChildren(e.Args)
	default:
		return nil, ErrUnsupportedValue.New(e)
	}

	if err != nil {
		return nil, err
	}
	return m, nil
}

// encodeChild returns nil for a nil expression so absent operands stay
// absent.
func encodeChild(e sql.Expression) (interface{}, error) {
	if e == nil {
		return nil, nil
	}
	return EncodeExpression(e)
}

func encodeChildren(exprs []sql.Expression) ([]interface{}, error) {
	list := make([]interface{}, len(exprs))
	for i, e := range exprs {
		ee, err := EncodeExpression(e)
		if err != nil {
			return nil, err
		}
		list[i] = ee
	}
	return list, nil
}

// DecodeExpression builds the expression encoded by EncodeExpression.
func DecodeExpression(v interface{}) (sql.Expression, error) {
	if v == nil {
		return nil, nil
	}

	if mi, ok := v.(map[interface{}]interface{}); ok {
		m := make(map[string]interface{}, len(mi))
		for k, e := range mi {
			m[fmt.Sprint(k)] = e
		}
		v = m
	}

	m, ok := v.(map[string]interface{})
	if !ok {
		return nil, ErrInvalidEncoding.New(fmt.Sprintf("expression is a %T", v))
	}

	p := sql.Params(m)
	child := func(key string) (sql.Expression, error) {
		return DecodeExpression(m[key])
	}

	switch kind := p.GetString("kind"); kind {
	case kindIdentifier:
		return expression.NewIdentifier(p.GetString("name")), nil
	case kindStar:
		return expression.NewStar(), nil
	case kindAlias:
		c, err := child("child")
		if err != nil {
			return nil, err
		}
		return expression.NewAlias(c, p.GetString("name")), nil
	case kindLiteral:
		value, err := DecodeValue(m["value"])
		if err != nil {
			return nil, err
		}
		return expression.NewLiteral(value), nil
	case kindBinary:
		left, err := child("left")
		if err != nil {
			return nil, err
		}
		right, err := child("right")
		if err != nil {
			return nil, err
		}
		return expression.NewBinary(p.GetString("op"), left, right), nil
	case kindUnary:
		c, err := child("child")
		if err != nil {
			return nil, err
		}
		return expression.NewUnary(p.GetString("op"), c), nil
	case kindIn:
		left, err := child("left")
		if err != nil {
			return nil, err
		}
		values, err := decodeChildren(m["values"])
		if err != nil {
			return nil, err
		}
		return expression.NewIn(left, values...), nil
	case kindBetween:
		val, err := child("value")
		if err != nil {
			return nil, err
		}
		lower, err := child("lower")
		if err != nil {
			return nil, err
		}
		upper, err := child("upper")
		if err != nil {
			return nil, err
		}
		return expression.NewBetween(val, lower, upper), nil
	case kindAggregate:
		arg, err := child("arg")
		if err != nil {
			return nil, err
		}
		return expression.NewAggregate(p.GetString("name"), arg, p.GetBool("distinct")), nil
	case kindFunction:
		args, err := decodeChildren(m["args"])
		if err != nil {
			return nil, err
		}
		return expression.NewFunction(p.GetString("name"), args...), nil
	default:
		return nil, ErrInvalidEncoding.New(fmt.Sprintf("unknown expression kind %q", kind))
	}
}

func decodeChildren(v interface{}) ([]sql.Expression, error) {
	items, ok := v.([]interface{})
	if !ok && v != nil {
		return nil, ErrInvalidEncoding.New("expression list is not a list")
	}

	exprs := make([]sql.Expression, len(items))
	for i, item := range items {
		e, err := DecodeExpression(item)
		if err != nil {
			return nil, err
		}
		exprs[i] = e
	}
	return exprs, nil
}

// Keys returns the sorted param names of the action. Encoded mappings do
// not keep an order, so printers use it to stay deterministic.
func Keys(a *sql.Action) []string {
	keys := make([]string, 0, len(a.Params))
	for k := range a.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
