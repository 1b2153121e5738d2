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
	"sort"
	"strings"

	"github.com/exonware/go-xwquery/sql"
)

// Operators of dict-form conditions.
var dictOperators = map[string]string{
	"$eq":  Eq,
	"$ne":  NotEq,
	"$gt":  Gt,
	"$gte": GtEq,
	"$lt":  Lt,
	"$lte": LtEq,
}

// DictOperator returns the $-operator of a binary comparison, or "".
func DictOperator(op string) string {
	for k, v := range dictOperators {
		if v == op {
			return k
		}
	}
	return ""
}

// FromCondition converts a condition param into an expression. Expressions
// are returned as they are, nil is no condition and mappings are dict-form
// conditions: every key is conjoined, a plain value is an equality and a
// mapping of $-operators ($eq, $ne, $gt, $gte, $lt, $lte, $in, $nin) maps
// to the matching comparisons. $exists, $regex and $not are also accepted.
// $and and $or take a list of conditions.
func FromCondition(cond interface{}) (sql.Expression, error) {
	switch c := cond.(type) {
	case nil:
		return nil, nil
	case sql.Expression:
		return c, nil
	case bool:
		return NewLiteral(c), nil
	case map[string]interface{}:
		return fromDict(c)
	case map[interface{}]interface{}:
		m := make(map[string]interface{}, len(c))
		for k, v := range c {
			m[fmt.Sprint(k)] = v
		}
		return fromDict(m)
	case sql.Params:
		return fromDict(map[string]interface{}(c))
	default:
		return nil, sql.ErrValue.New(fmt.Sprintf("unsupported condition of type %T", cond))
	}
}

func fromDict(m map[string]interface{}) (sql.Expression, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var exprs []sql.Expression
	for _, k := range keys {
		e, err := fromDictEntry(k, m[k])
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, e)
	}

	if len(exprs) == 0 {
		return NewLiteral(true), nil
	}
	return JoinAnd(exprs...), nil
}

func fromDictEntry(field string, value interface{}) (sql.Expression, error) {
	switch strings.ToLower(field) {
	case "$and", "$or":
		list, ok := value.([]interface{})
		if !ok {
			return nil, sql.ErrValue.New(fmt.Sprintf("%s expects a list of conditions", field))
		}

		var result sql.Expression
		for _, c := range list {
			e, err := FromCondition(c)
			if err != nil {
				return nil, err
			}
			switch {
			case result == nil:
				result = e
			case strings.ToLower(field) == "$and":
				result = NewAnd(result, e)
			default:
				result = NewOr(result, e)
			}
		}

		if result == nil {
			return NewLiteral(strings.ToLower(field) == "$and"), nil
		}
		return result, nil
	}

	id := NewIdentifier(field)
	ops, ok := operatorMap(value)
	if !ok {
		if value == nil {
			return NewIsNull(id), nil
		}
		return NewEquals(id, NewLiteral(value)), nil
	}

	keys := make([]string, 0, len(ops))
	for k := range ops {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var exprs []sql.Expression
	for _, op := range keys {
		v := ops[op]
		switch op {
		case "$in", "$nin":
			values := sql.ExtractItems(v)
			lits := make([]sql.Expression, len(values))
			for i, lv := range values {
				lits[i] = NewLiteral(lv)
			}
			var e sql.Expression = NewIn(id, lits...)
			if op == "$nin" {
				e = NewNot(e)
			}
			exprs = append(exprs, e)
		case "$exists":
			if sql.Truthy(v) {
				exprs = append(exprs, NewIsNotNull(id))
			} else {
				exprs = append(exprs, NewIsNull(id))
			}
		case "$regex":
			pattern := fmt.Sprint(v)
			if opts, ok := ops["$options"].(string); ok && strings.Contains(opts, "i") {
				pattern = "(?i)" + pattern
			}
			exprs = append(exprs, NewFunction("REGEXP_LIKE", id, NewLiteral(pattern)))
		case "$options":
		case "$not":
			e, err := fromDictEntry(field, v)
			if err != nil {
				return nil, err
			}
			exprs = append(exprs, NewNot(e))
		default:
			bop, ok := dictOperators[op]
			if !ok {
				return nil, sql.ErrValue.New(fmt.Sprintf("unknown condition operator %s", op))
			}
			exprs = append(exprs, NewBinary(bop, id, NewLiteral(v)))
		}
	}

	return JoinAnd(exprs...), nil
}

// operatorMap returns value as a mapping when every key is a $-operator.
func operatorMap(value interface{}) (map[string]interface{}, bool) {
	var m map[string]interface{}
	switch v := value.(type) {
	case map[string]interface{}:
		m = v
	case map[interface{}]interface{}:
		m = make(map[string]interface{}, len(v))
		for k, e := range v {
			m[fmt.Sprint(k)] = e
		}
	default:
		return nil, false
	}

	if len(m) == 0 {
		return nil, false
	}

	for k := range m {
		if !strings.HasPrefix(k, "$") {
			return nil, false
		}
	}
	return m, true
}
