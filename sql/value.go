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
	"math"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/hashstructure"
	"github.com/spf13/cast"
)

// ExtractItems normalizes any input value into an ordered list of records.
// nil is the empty list, lists are returned as they are, a mapping is a
// single record and any other value is a one element list.
func ExtractItems(v interface{}) []interface{} {
	switch v := v.(type) {
	case nil:
		return []interface{}{}
	case []interface{}:
		return v
	case []map[string]interface{}:
		items := make([]interface{}, len(v))
		for i, m := range v {
			items[i] = m
		}
		return items
	case map[string]interface{}, string, []byte:
		return []interface{}{v}
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		items := make([]interface{}, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			items[i] = rv.Index(i).Interface()
		}
		return items
	}

	return []interface{}{v}
}

// FieldValue returns the value at path inside item. The full path is tried
// as a key first; a dotted path then walks nested mappings and struct
// fields one segment at a time.
func FieldValue(item interface{}, path string) (interface{}, bool) {
	if item == nil || path == "" {
		return nil, false
	}

	if v, ok := lookupKey(item, path); ok {
		return v, true
	}

	if !strings.Contains(path, ".") {
		return nil, false
	}

	cur := item
	for _, part := range strings.Split(path, ".") {
		v, ok := lookupKey(cur, part)
		if !ok {
			return nil, false
		}
		cur = v
	}

	return cur, true
}

func lookupKey(item interface{}, key string) (interface{}, bool) {
	switch m := item.(type) {
	case nil:
		return nil, false
	case map[string]interface{}:
		v, ok := m[key]
		return v, ok
	case map[interface{}]interface{}:
		v, ok := m[key]
		return v, ok
	case Params:
		v, ok := m[key]
		return v, ok
	}

	rv := reflect.ValueOf(item)
	for rv.Kind() == reflect.Ptr || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil, false
		}
		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, false
		}
		v := rv.MapIndex(reflect.ValueOf(key).Convert(rv.Type().Key()))
		if !v.IsValid() {
			return nil, false
		}
		return v.Interface(), true
	case reflect.Struct:
		f := rv.FieldByNameFunc(func(name string) bool {
			return strings.EqualFold(name, key)
		})
		if !f.IsValid() || !f.CanInterface() {
			return nil, false
		}
		return f.Interface(), true
	}

	return nil, false
}

// Normalize converts numbers to int64 when they have no fractional part and
// to float64 otherwise, recursively inside lists and mappings, so values
// decoded from different sources compare and hash the same way.
func Normalize(v interface{}) interface{} {
	switch v := v.(type) {
	case int:
		return int64(v)
	case int8:
		return int64(v)
	case int16:
		return int64(v)
	case int32:
		return int64(v)
	case uint:
		return Normalize(uint64(v))
	case uint8:
		return int64(v)
	case uint16:
		return int64(v)
	case uint32:
		return int64(v)
	case uint64:
		if v > math.MaxInt64 {
			return float64(v)
		}
		return int64(v)
	case float32:
		return Normalize(float64(v))
	case float64:
		if v == math.Trunc(v) && math.Abs(v) < 1<<53 {
			return int64(v)
		}
		return v
	case []interface{}:
		c := make([]interface{}, len(v))
		for i, e := range v {
			c[i] = Normalize(e)
		}
		return c
	case map[string]interface{}:
		c := make(map[string]interface{}, len(v))
		for k, e := range v {
			c[k] = Normalize(e)
		}
		return c
	case map[interface{}]interface{}:
		c := make(map[string]interface{}, len(v))
		for k, e := range v {
			c[fmt.Sprint(k)] = Normalize(e)
		}
		return c
	default:
		return v
	}
}

// HashKey returns the hash of the normalized value. Values for which it
// returns an error are not hashable and must be compared with ItemsEqual.
func HashKey(v interface{}) (uint64, error) {
	return hashstructure.Hash(Normalize(v), nil)
}

// ItemsEqual reports whether both values are equal after normalization.
func ItemsEqual(a, b interface{}) bool {
	return reflect.DeepEqual(Normalize(a), Normalize(b))
}

// IsNumber reports whether v has a numeric Go type.
func IsNumber(v interface{}) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return true
	default:
		return false
	}
}

// ToFloat converts numbers and numeric strings to float64. Booleans and
// any other value are not numeric.
func ToFloat(v interface{}) (float64, bool) {
	switch v := v.(type) {
	case nil, bool:
		return 0, false
	case string:
		f, err := cast.ToFloat64E(strings.TrimSpace(v))
		if err != nil || strings.TrimSpace(v) == "" {
			return 0, false
		}
		return f, true
	}

	if !IsNumber(v) {
		return 0, false
	}

	f, err := cast.ToFloat64E(v)
	if err != nil {
		return 0, false
	}
	return f, true
}

// Compare returns -1, 0 or 1 comparing two non-nil values. Numbers compare
// numerically, also against numeric strings; strings, booleans and times
// use their natural order; anything else compares by its rendering.
func Compare(a, b interface{}) int {
	if IsNumber(a) && IsNumber(b) {
		return compareNumbers(a, b)
	}

	switch av := a.(type) {
	case string:
		if bv, ok := b.(string); ok {
			return strings.Compare(av, bv)
		}
	case bool:
		if bv, ok := b.(bool); ok {
			switch {
			case av == bv:
				return 0
			case !av:
				return -1
			default:
				return 1
			}
		}
	case time.Time:
		if bv, ok := b.(time.Time); ok {
			switch {
			case av.Before(bv):
				return -1
			case av.After(bv):
				return 1
			default:
				return 0
			}
		}
	}

	if af, ok := ToFloat(a); ok {
		if bf, ok := ToFloat(b); ok {
			return compareFloats(af, bf)
		}
	}

	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func compareNumbers(a, b interface{}) int {
	an, aIsInt := Normalize(a).(int64)
	bn, bIsInt := Normalize(b).(int64)
	if aIsInt && bIsInt {
		switch {
		case an < bn:
			return -1
		case an > bn:
			return 1
		default:
			return 0
		}
	}

	af, _ := ToFloat(a)
	bf, _ := ToFloat(b)
	return compareFloats(af, bf)
}

func compareFloats(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Equals reports whether two non-nil values are equal under the same
// coercions Compare applies. Lists and mappings compare structurally.
func Equals(a, b interface{}) bool {
	switch a.(type) {
	case []interface{}, map[string]interface{}, map[interface{}]interface{}:
		return ItemsEqual(a, b)
	}

	switch b.(type) {
	case []interface{}, map[string]interface{}, map[interface{}]interface{}:
		return false
	}

	return Compare(a, b) == 0
}

// Truthy returns the boolean value of a condition result.
func Truthy(v interface{}) bool {
	switch v := v.(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		return v != ""
	}

	if f, ok := ToFloat(v); ok {
		return f != 0
	}

	return true
}

// CloneRecord returns a shallow copy of a mapping record. Any other value is
// returned unchanged.
func CloneRecord(item interface{}) interface{} {
	switch m := item.(type) {
	case map[string]interface{}:
		c := make(map[string]interface{}, len(m))
		for k, v := range m {
			c[k] = v
		}
		return c
	case map[interface{}]interface{}:
		c := make(map[string]interface{}, len(m))
		for k, v := range m {
			c[fmt.Sprint(k)] = v
		}
		return c
	default:
		return item
	}
}

// RecordFields returns a record as a mapping. Structs are converted using
// their exported fields; non record values return false.
func RecordFields(item interface{}) (map[string]interface{}, bool) {
	switch m := item.(type) {
	case map[string]interface{}:
		return m, true
	case map[interface{}]interface{}:
		return CloneRecord(m).(map[string]interface{}), true
	}

	rv := reflect.ValueOf(item)
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil, false
		}
		rv = rv.Elem()
	}

	if rv.Kind() != reflect.Struct {
		return nil, false
	}

	fields := make(map[string]interface{}, rv.NumField())
	for i := 0; i < rv.NumField(); i++ {
		f := rv.Type().Field(i)
		if f.PkgPath != "" {
			continue
		}
		fields[f.Name] = rv.Field(i).Interface()
	}
	return fields, true
}

// Group record fields produced by GROUP BY.
const (
	GroupKeyField   = "key"
	GroupItemsField = "_items"
	GroupCountField = "_count"
)

// IsGroup reports whether the record was produced by GROUP BY.
func IsGroup(record interface{}) bool {
	m, ok := record.(map[string]interface{})
	if !ok {
		return false
	}
	_, hasItems := m[GroupItemsField]
	_, hasKey := m[GroupKeyField]
	return hasItems && hasKey
}

// GroupItems returns the items of a group record.
func GroupItems(record interface{}) ([]interface{}, bool) {
	if !IsGroup(record) {
		return nil, false
	}
	return ExtractItems(record.(map[string]interface{})[GroupItemsField]), true
}

// ResolveField looks name up in record the way identifiers are resolved.
// After the exact key and the dotted walk, a qualified name falls back to
// its unqualified part, an unqualified name to the single key qualified
// with it, and on group records to the grouping key.
func ResolveField(record interface{}, name string) (interface{}, bool) {
	if v, ok := FieldValue(record, name); ok {
		return v, true
	}

	if idx := strings.Index(name, "."); idx > 0 {
		if v, ok := FieldValue(record, name[idx+1:]); ok {
			return v, true
		}
	}

	m, ok := record.(map[string]interface{})
	if !ok {
		return nil, false
	}

	if !strings.Contains(name, ".") {
		var (
			found interface{}
			n     int
		)
		suffix := "." + name
		for k, v := range m {
			if strings.HasSuffix(k, suffix) {
				found = v
				n++
			}
		}
		if n == 1 {
			return found, true
		}
	}

	if IsGroup(m) {
		return ResolveField(m[GroupKeyField], name)
	}

	return nil, false
}
