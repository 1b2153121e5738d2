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

package parse

import (
	"github.com/exonware/go-xwquery/sql"
)

// Dialects that are known by name but have no parser.
var declaredDialects = []string{
	"Cypher", "GraphQL", "SPARQL", "PromQL", "JMESPath", "JQ", "Gremlin",
	"JSONPath", "XQuery", "LogQL", "Datalog", "EQL", "Flux", "GQL", "CQL",
	"Pig", "LINQ",
}

var dialectAliases = map[string]string{
	"Mongo":     "MongoDB",
	"Hive":      "HiveQL",
	"Kusto":     "KQL",
	"Hibernate": "HQL",
	"Couchbase": "N1QL",
}

var hqlDialect = &sqlDialect{
	name:           "HQL",
	lex:            sqlLexicon,
	implicitSelect: true,
}

var hiveDialect = &sqlDialect{
	name: "HiveQL",
	lex: &lexicon{
		keywords:      sqlKeywords.with("SORT", "DISTRIBUTE", "CLUSTER"),
		lineComments:  []string{"--"},
		blockComments: true,
	},
	clauses: map[string]clauseFunc{
		"SORT":       sortByClause,
		"DISTRIBUTE": unsupportedClause("DISTRIBUTE BY", "BY"),
		"CLUSTER":    unsupportedClause("CLUSTER BY", "BY"),
	},
}

var n1qlDialect = &sqlDialect{
	name: "N1QL",
	lex: &lexicon{
		keywords:      sqlKeywords.with("USE", "KEYS", "NEST"),
		lineComments:  []string{"--"},
		blockComments: true,
	},
	clauses: map[string]clauseFunc{
		"USE":    unsupportedClause("USE KEYS", "KEYS"),
		"UNNEST": unsupportedClause("UNNEST", ""),
		"NEST":   unsupportedClause("NEST", ""),
	},
}

var partiqlDialect = &sqlDialect{
	name: "PartiQL",
	lex: &lexicon{
		keywords:      sqlKeywords.with("PIVOT", "UNPIVOT"),
		lineComments:  []string{"--"},
		blockComments: true,
	},
}

// sortByClause parses HiveQL's SORT BY, which sorts like ORDER BY.
func sortByClause(p *sqlParser, sel *sql.Action) ([]*sql.Action, error) {
	tok := p.next()
	if _, err := p.expectKeyword("BY"); err != nil {
		return nil, err
	}
	return p.parseOrderItems(tok)
}

// unsupportedClause returns a clause that has no action equivalent. In
// lenient mode its expression list is skipped.
func unsupportedClause(feature, second string) clauseFunc {
	return func(p *sqlParser, sel *sql.Action) ([]*sql.Action, error) {
		tok := p.next()
		if second != "" {
			if _, err := p.expectKeyword(second); err != nil {
				return nil, err
			}
		}

		if _, err := p.incompatible(tok, feature); err != nil {
			return nil, err
		}

		for {
			if _, err := p.parseExpression(); err != nil {
				return nil, err
			}
			if p.acceptKeyword("AS") {
				if _, _, err := p.parseName("alias"); err != nil {
					return nil, err
				}
			}
			if !p.acceptSymbol(",") {
				return nil, nil
			}
		}
	}
}

func newDefaultRegistry() *Registry {
	r := NewRegistry()
	parsers := []Parser{
		NewSQLParser(),
		newSQLFamilyParser(hqlDialect),
		newSQLFamilyParser(hiveDialect),
		newSQLFamilyParser(n1qlDialect),
		newSQLFamilyParser(partiqlDialect),
		NewMySQLParser(),
		NewXPathParser(),
		NewKQLParser(),
		NewMongoParser(),
	}

	for _, p := range parsers {
		if err := r.Register(p); err != nil {
			panic(err)
		}
	}

	r.Declare(declaredDialects...)
	for alias, dialect := range dialectAliases {
		r.Alias(alias, dialect)
	}

	return r
}
