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

package analyzer

import (
	"github.com/exonware/go-xwquery/sql"
)

// RuleFunc is the function to be applied in a rule.
type RuleFunc func(*sql.Context, *Analyzer, *sql.Action) (*sql.Action, error)

// Rule to transform actions.
type Rule struct {
	// Name of the rule.
	Name string
	// Apply transforms an action.
	Apply RuleFunc
}

// ValidateFunc checks an analyzed tree.
type ValidateFunc func(*Analyzer, *sql.Action) error

// ValidationRule validates the analyzed tree.
type ValidationRule struct {
	// Name of the rule.
	Name string
	// Apply validates the tree.
	Apply ValidateFunc
}

// Batch executes a set of rules a specific number of times.
// When this number of times is reached, the actual action
// and ErrMaxAnalysisIters is returned.
type Batch struct {
	Desc       string
	Iterations int
	Rules      []Rule
}

// Eval executes the actual rules the specified number of times on the Batch.
// If max number of iterations is reached, this method will return the actual
// processed Action and ErrMaxAnalysisIters error.
func (b *Batch) Eval(ctx *sql.Context, a *Analyzer, n *sql.Action) (*sql.Action, error) {
	if b.Iterations == 0 || len(b.Rules) == 0 {
		return n, nil
	}

	prev := n
	cur, err := b.evalOnce(ctx, a, n)
	if err != nil {
		return nil, err
	}

	if b.Iterations == 1 {
		return cur, nil
	}

	for i := 1; !prev.Equal(cur); {
		a.Log("tree changed, running the batch again")
		prev = cur
		cur, err = b.evalOnce(ctx, a, cur)
		if err != nil {
			return nil, err
		}

		i++
		if i >= b.Iterations {
			return cur, ErrMaxAnalysisIters.New(b.Iterations)
		}
	}

	return cur, nil
}

func (b *Batch) evalOnce(ctx *sql.Context, a *Analyzer, n *sql.Action) (*sql.Action, error) {
	result := n
	for _, rule := range b.Rules {
		var err error
		a.PushDebugContext(rule.Name)
		result, err = rule.Apply(ctx, a, result)
		a.PopDebugContext()
		if err != nil {
			return nil, err
		}
		a.LogAction(result)
	}

	return result, nil
}
