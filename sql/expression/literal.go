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
	"strconv"
	"strings"

	"github.com/exonware/go-xwquery/sql"
)

// Literal represents a constant value.
type Literal struct {
	value interface{}
}

// NewLiteral creates a new Literal expression.
func NewLiteral(value interface{}) *Literal {
	return &Literal{value: value}
}

// Value returns the literal value.
func (p *Literal) Value() interface{} {
	return p.value
}

// Eval implements the Expression interface.
func (p *Literal) Eval(ctx *sql.Context, record interface{}) (interface{}, error) {
	return p.value, nil
}

// Children implements the Expression interface.
func (*Literal) Children() []sql.Expression {
	return nil
}

func (p *Literal) String() string {
	return FormatLiteral(p.value)
}

// FormatLiteral renders a value the way it is written in SQL.
func FormatLiteral(v interface{}) string {
	switch v := v.(type) {
	case nil:
		return "NULL"
	case bool:
		if v {
			return "TRUE"
		}
		return "FALSE"
	case string:
		return "'" + strings.Replace(v, "'", "''", -1) + "'"
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case []interface{}:
		parts := make([]string, len(v))
		for i, e := range v {
			parts[i] = FormatLiteral(e)
		}
		return "(" + strings.Join(parts, ", ") + ")"
	default:
		return fmt.Sprint(v)
	}
}
