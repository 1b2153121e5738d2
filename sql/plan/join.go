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
	"sort"
	"strings"

	"github.com/exonware/go-xwquery/sql"
	"github.com/exonware/go-xwquery/sql/expression"
)

// Join types.
const (
	InnerJoin = "INNER"
	LeftJoin  = "LEFT"
	RightJoin = "RIGHT"
	FullJoin  = "FULL"
	CrossJoin = "CROSS"
)

// Default prefixes of the fields of joined records.
const (
	DefaultLeftPrefix  = "left_"
	DefaultRightPrefix = "right_"
)

// MatchedField is set to false on the records of an outer join that had
// no match on the other side.
const MatchedField = "_matched"

// Join joins the input with the collection given by the right param or
// the last child. Equi-joins are hash joins; other conditions are
// evaluated on every pair of records.
type Join struct {
	descriptor
}

// NewJoin returns the JOIN executor.
func NewJoin() *Join {
	return &Join{descriptor{name: sql.OpJoin}}
}

// joinSpec is a join ready to be run.
type joinSpec struct {
	typ         string
	leftPrefix  string
	rightPrefix string
	// leftKeys and rightKeys are the fields compared for equality.
	leftKeys  []string
	rightKeys []string
	// cond is evaluated on the merged record when the join is not an
	// equi-join.
	cond sql.Expression
}

// Execute implements the Executor interface.
func (j *Join) Execute(ctx *sql.Context, a *sql.Action) (*sql.ExecutionResult, error) {
	right, err := collection(ctx, a, "right")
	if err != nil {
		return nil, err
	}

	spec, err := newJoinSpec(a)
	if err != nil {
		return nil, err
	}

	left := sql.ExtractItems(ctx.Input)
	rightItems := sql.ExtractItems(right)

	var (
		result   []interface{}
		strategy string
	)
	switch {
	case spec.typ == CrossJoin:
		strategy = "cross"
		result = spec.cross(left, rightItems)
	case len(spec.leftKeys) > 0:
		strategy = "hash"
		result = spec.hash(left, rightItems)
	default:
		strategy = "nested_loop"
		result, err = spec.nestedLoop(ctx, left, rightItems)
		if err != nil {
			return nil, err
		}
	}

	return sql.NewResult(a.Type, result, map[string]interface{}{
		"join_type":    spec.typ,
		"strategy":     strategy,
		"left_count":   len(left),
		"right_count":  len(rightItems),
		"result_count": len(result),
	}), nil
}

func newJoinSpec(a *sql.Action) (*joinSpec, error) {
	spec := &joinSpec{
		typ:         upper(a.Params.GetString("type")),
		leftPrefix:  DefaultLeftPrefix,
		rightPrefix: DefaultRightPrefix,
	}
	if spec.typ == "" {
		spec.typ = InnerJoin
	}

	switch spec.typ {
	case InnerJoin, LeftJoin, RightJoin, FullJoin, CrossJoin:
	default:
		return nil, sql.ErrValue.New(fmt.Sprintf("unknown join type %q", spec.typ))
	}

	if a.Params.Has("left_prefix") {
		spec.leftPrefix = a.Params.GetString("left_prefix")
	}
	if a.Params.Has("right_prefix") {
		spec.rightPrefix = a.Params.GetString("right_prefix")
	}

	if spec.typ == CrossJoin {
		return spec, nil
	}

	if using := a.Params.GetStrings("using"); len(using) > 0 {
		spec.leftKeys, spec.rightKeys = using, using
		return spec, nil
	}

	switch on := a.Params["on"].(type) {
	case nil:
		return nil, sql.ErrValue.New(spec.typ + " JOIN needs a join condition")
	case string:
		spec.leftKeys, spec.rightKeys = []string{on}, []string{on}
	case map[string]interface{}:
		keys := make([]string, 0, len(on))
		for k := range on {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			spec.leftKeys = append(spec.leftKeys, k)
			spec.rightKeys = append(spec.rightKeys, fmt.Sprint(on[k]))
		}
	case sql.Expression:
		if !spec.equiKeys(on) {
			spec.cond = on
		}
	default:
		names := a.Params.GetStrings("on")
		if len(names) != 2 {
			return nil, sql.ErrValue.New(fmt.Sprintf("invalid join condition %v", on))
		}
		spec.leftKeys, spec.rightKeys = names[:1], names[1:]
	}

	return spec, nil
}

// equiKeys fills the key fields when cond is a conjunction of equalities
// between a field of each side. A qualified name belongs to the side
// whose prefix it carries; otherwise the left operand reads the left
// record.
func (s *joinSpec) equiKeys(cond sql.Expression) bool {
	var left, right []string
	for _, c := range expression.SplitConjunction(cond) {
		b, ok := c.(*expression.Binary)
		if !ok || b.Op != expression.Eq {
			return false
		}

		l, lok := b.Left.(*expression.Identifier)
		r, rok := b.Right.(*expression.Identifier)
		if !lok || !rok {
			return false
		}

		lname, rname := l.Name, r.Name
		if s.isRight(lname) && !s.isRight(rname) {
			lname, rname = rname, lname
		}

		left = append(left, s.strip(lname, s.leftPrefix))
		right = append(right, s.strip(rname, s.rightPrefix))
	}

	s.leftKeys, s.rightKeys = left, right
	return len(left) > 0
}

func (s *joinSpec) isRight(name string) bool {
	return qualifier(s.rightPrefix) != "" && strings.HasPrefix(name, s.rightPrefix)
}

// strip removes a qualifying prefix from a field name.
func (s *joinSpec) strip(name, prefix string) string {
	if qualifier(prefix) != "" && strings.HasPrefix(name, prefix) {
		return name[len(prefix):]
	}
	return name
}

// qualifier returns the table name of a "table." prefix.
func qualifier(prefix string) string {
	if strings.HasSuffix(prefix, ".") {
		return strings.TrimSuffix(prefix, ".")
	}
	return ""
}

func (s *joinSpec) merge(left, right interface{}) map[string]interface{} {
	out := make(map[string]interface{})
	if left != nil {
		prefixed(out, s.leftPrefix, left)
	}
	if right != nil {
		prefixed(out, s.rightPrefix, right)
	}
	return out
}

func (s *joinSpec) unmatched(left, right interface{}) map[string]interface{} {
	out := s.merge(left, right)
	out[MatchedField] = false
	return out
}

func (s *joinSpec) cross(left, right []interface{}) []interface{} {
	result := make([]interface{}, 0, len(left)*len(right))
	for _, l := range left {
		for _, r := range right {
			result = append(result, s.merge(l, r))
		}
	}
	return result
}

// joinKey returns the values of the key fields, and false when any of
// them is null: nulls never match.
func joinKey(item interface{}, fields []string) ([]interface{}, bool) {
	values := fieldValues(item, fields)
	for _, v := range values {
		if v == nil {
			return nil, false
		}
	}
	return values, true
}

func (s *joinSpec) hash(left, right []interface{}) []interface{} {
	keys := newKeyIndex()
	buckets := make(map[int][]int)
	for i, r := range right {
		key, ok := joinKey(r, s.rightKeys)
		if !ok {
			continue
		}
		k, _ := keys.add(key)
		buckets[k] = append(buckets[k], i)
	}

	var result []interface{}
	matched := make([]bool, len(right))
	for _, l := range left {
		var bucket []int
		if key, ok := joinKey(l, s.leftKeys); ok {
			if k := keys.find(key); k >= 0 {
				bucket = buckets[k]
			}
		}

		for _, i := range bucket {
			matched[i] = true
			result = append(result, s.merge(l, right[i]))
		}

		if len(bucket) == 0 && (s.typ == LeftJoin || s.typ == FullJoin) {
			result = append(result, s.unmatched(l, nil))
		}
	}

	return s.appendUnmatchedRight(result, right, matched)
}

func (s *joinSpec) nestedLoop(ctx *sql.Context, left, right []interface{}) ([]interface{}, error) {
	var result []interface{}
	matched := make([]bool, len(right))
	for _, l := range left {
		found := false
		for i, r := range right {
			merged := s.merge(l, r)
			ok, err := expression.IsTrue(ctx, s.cond, merged)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}

			found, matched[i] = true, true
			result = append(result, merged)
		}

		if !found && (s.typ == LeftJoin || s.typ == FullJoin) {
			result = append(result, s.unmatched(l, nil))
		}
	}

	return s.appendUnmatchedRight(result, right, matched), nil
}

func (s *joinSpec) appendUnmatchedRight(result, right []interface{}, matched []bool) []interface{} {
	if s.typ != RightJoin && s.typ != FullJoin {
		return result
	}

	for i, r := range right {
		if !matched[i] {
			result = append(result, s.unmatched(nil, r))
		}
	}
	return result
}
