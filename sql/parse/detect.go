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
	"sort"
	"strings"
	"unicode"

	"github.com/exonware/go-xwquery/internal/regex"
)

// DefaultConfidenceThreshold is the confidence from which a detected
// dialect is used without asking.
const DefaultConfidenceThreshold = 0.8

// Weights of the detection stages.
const (
	patternWeight = 0.6
	keywordWeight = 0.4
)

// keywordWeights rate how specific a keyword is to a dialect.
var keywordWeights = map[string]map[string]int{
	"SQL": {
		"SELECT": 10, "FROM": 10, "WHERE": 8, "INSERT": 10,
		"UPDATE": 10, "DELETE": 10, "CREATE": 9, "ALTER": 9,
		"DROP": 9, "JOIN": 9, "INNER": 8, "LEFT": 7, "RIGHT": 7,
		"OUTER": 7, "ON": 6, "AS": 5, "GROUP": 8, "BY": 6,
		"HAVING": 9, "ORDER": 7, "LIMIT": 8, "OFFSET": 8,
		"UNION": 9, "DISTINCT": 8, "COUNT": 7, "SUM": 7,
		"AVG": 7, "MIN": 7, "MAX": 7, "INTO": 8, "VALUES": 7,
	},
	"GraphQL": {
		"QUERY": 10, "MUTATION": 10, "SUBSCRIPTION": 10,
		"FRAGMENT": 9, "ON": 5, "TYPE": 6, "INTERFACE": 7,
		"UNION": 6, "ENUM": 6, "INPUT": 6, "SCHEMA": 8,
		"EXTEND": 7, "IMPLEMENTS": 8, "DIRECTIVE": 8,
	},
	"Cypher": {
		"MATCH": 10, "RETURN": 10, "CREATE": 9, "MERGE": 9,
		"DELETE": 8, "DETACH": 9, "SET": 7, "REMOVE": 8,
		"WITH": 7, "UNWIND": 9, "FOREACH": 9, "CALL": 8,
		"YIELD": 8, "UNION": 7, "WHERE": 6, "AND": 5,
		"OR": 5, "NOT": 5, "IN": 5, "STARTS": 8, "ENDS": 8,
		"CONTAINS": 7, "OPTIONAL": 8,
	},
	"SPARQL": {
		"PREFIX": 10, "SELECT": 9, "CONSTRUCT": 10, "DESCRIBE": 10,
		"ASK": 10, "WHERE": 7, "FILTER": 8, "OPTIONAL": 8,
		"UNION": 7, "GRAPH": 9, "SERVICE": 9, "BIND": 9,
		"VALUES": 7, "LIMIT": 7, "OFFSET": 7, "ORDER": 7,
	},
	"Gremlin": {
		"V": 9, "E": 9, "HAS": 8, "HASLABEL": 9, "HASID": 9,
		"OUT": 7, "IN": 7, "BOTH": 8, "OUTE": 8, "INE": 8,
		"BOTHE": 8, "VALUES": 7, "PROPERTIES": 7, "PATH": 8,
		"UNTIL": 8, "REPEAT": 8, "EMIT": 8, "TIMES": 8,
		"AGGREGATE": 7, "GROUP": 7, "COUNT": 6, "SUM": 6,
	},
	"JMESPath": {
		"LENGTH": 7, "SORT_BY": 9, "REVERSE": 7, "CONTAINS": 6,
		"STARTS_WITH": 8, "ENDS_WITH": 8, "JOIN": 6, "KEYS": 7,
		"VALUES": 6, "TYPE": 6, "TO_STRING": 8, "TO_NUMBER": 8,
		"ABS": 7, "CEIL": 7, "FLOOR": 7, "MAX": 6, "MIN": 6,
		"SUM": 6, "AVG": 7, "FLATTEN": 8, "UNIQUE": 8,
	},
	"MongoDB": {
		"$MATCH": 10, "$GROUP": 10, "$PROJECT": 10, "$SORT": 9,
		"$LIMIT": 9, "$SKIP": 9, "$LOOKUP": 10, "$UNWIND": 10,
		"$OUT": 9, "$MERGE": 9, "$REPLACEROOT": 9, "$ADDFIELDS": 9,
		"$COUNT": 8, "$SUM": 7, "$AVG": 7, "$MIN": 7, "$MAX": 7,
		"FIND": 9, "AGGREGATE": 9, "INSERT": 8, "UPDATE": 8,
	},
	"KQL": {
		"SUMMARIZE": 10, "PROJECT": 9, "EXTEND": 8, "TAKE": 9,
		"WHERE": 5, "TOP": 6, "DCOUNT": 10, "STRLEN": 9,
		"TOLOWER": 8, "TOUPPER": 8,
	},
}

type pattern struct {
	expr   string
	weight float64
}

// structurePatterns are matched ignoring case.
var structurePatterns = map[string][]pattern{
	"SQL": {
		{`\bSELECT\s+.+\s+FROM\s+`, 0.95},
		{`\bINSERT\s+INTO\s+`, 0.95},
		{`\bUPDATE\s+.+\s+SET\s+`, 0.95},
		{`\bDELETE\s+FROM\s+`, 0.95},
		{`\bCREATE\s+TABLE\s+`, 0.95},
		{`\bJOIN\s+`, 0.85},
		{`\bGROUP\s+BY\s+`, 0.85},
		{`\bORDER\s+BY\s+`, 0.85},
	},
	"GraphQL": {
		{`^\s*query\s+\w+\s*\{`, 0.95},
		{`^\s*mutation\s+\w+\s*\{`, 0.95},
		{`^\s*subscription\s+\w+\s*\{`, 0.95},
		{`\{\s*\w+\s*\([^)]*\)\s*\{`, 0.90},
		{`fragment\s+\w+\s+on\s+`, 0.90},
	},
	"Cypher": {
		{`\bMATCH\s+\([^)]*\)`, 0.95},
		{`\([^)]*\)-\[[^\]]*\]->\([^)]*\)`, 0.95},
		{`\bRETURN\s+`, 0.85},
		{`\bCREATE\s+\([^)]*\)`, 0.90},
		{`\bMERGE\s+\([^)]*\)`, 0.90},
	},
	"SPARQL": {
		{`^\s*PREFIX\s+\w+:\s*<`, 0.95},
		{`\bCONSTRUCT\s+\{`, 0.95},
		{`\bDESCRIBE\s+`, 0.90},
		{`\bASK\s+\{`, 0.95},
		{`\?[a-zA-Z]\w*\s`, 0.80},
	},
	"Gremlin": {
		{`g\.V\(\)`, 0.95},
		{`g\.E\(\)`, 0.95},
		{`\.has\(`, 0.85},
		{`\.out\(\)`, 0.85},
		{`\.in\(\)`, 0.85},
	},
	"JMESPath": {
		{`\[\?\s*.+\s*\]`, 0.90},
		{`\|`, 0.75},
		{`sort_by\(`, 0.90},
		{`\[\*\]`, 0.80},
	},
	"JSONPath": {
		{`^\$\.`, 0.95},
		{`\$\[`, 0.90},
		{`\.\.\w+`, 0.85},
		{`\[@\.`, 0.85},
	},
	"XPath": {
		{`^/`, 0.90},
		{`//`, 0.85},
		{`@\w+`, 0.80},
		{`\[position\(\)`, 0.90},
	},
	"MongoDB": {
		{`\$match\s*:`, 0.95},
		{`\$group\s*:`, 0.95},
		{`\$project\s*:`, 0.95},
		{`\.find\(`, 0.90},
		{`\.aggregate\(\[`, 0.90},
		{`^\s*db\.\w+\.\w+\(`, 0.95},
	},
	"KQL": {
		{`^\s*\w+\s*\|\s*(where|project|summarize|extend|take|top)\b`, 0.95},
		{`\|\s*summarize\b`, 0.90},
	},
}

// Detector guesses the dialect of a query. Detection runs a quick check
// for unambiguous prefixes first, then combines structural patterns with
// keyword frequencies.
type Detector struct {
	threshold float64
	patterns  map[string][]compiledPattern
}

type compiledPattern struct {
	m      regex.Matcher
	weight float64
}

// NewDetector creates a detector with the given confidence threshold.
func NewDetector(threshold float64) *Detector {
	d := &Detector{threshold: threshold, patterns: make(map[string][]compiledPattern)}
	for dialect, ps := range structurePatterns {
		for _, p := range ps {
			m := regex.MustCompile(regex.Fold(p.expr))
			d.patterns[dialect] = append(d.patterns[dialect], compiledPattern{m, p.weight})
		}
	}
	return d
}

var defaultDetector = NewDetector(DefaultConfidenceThreshold)

// DetectFormat returns the most likely dialect of the query and the
// confidence of the guess, between 0 and 1. An empty query is SQL with a
// confidence of 0.5.
func DetectFormat(query string) (string, float64) {
	return defaultDetector.Detect(query)
}

// Detect implements DetectFormat.
func (d *Detector) Detect(query string) (string, float64) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "SQL", 0.5
	}

	if dialect, confidence, ok := quickCheck(query); ok && confidence >= 0.90 {
		return dialect, confidence
	}

	candidates := d.Candidates(query)
	if len(candidates) == 0 {
		return "SQL", 0.5
	}
	return candidates[0].Dialect, candidates[0].Confidence
}

// Candidate is a dialect with its detection confidence.
type Candidate struct {
	Dialect    string
	Confidence float64
}

// Candidates returns every dialect the query could be written in, most
// likely first.
func (d *Detector) Candidates(query string) []Candidate {
	patterns := d.patternScores(query)
	keywords := keywordScores(query)

	combined := make(map[string]float64)
	for dialect, s := range patterns {
		combined[dialect] += s * patternWeight
	}
	for dialect, s := range keywords {
		combined[dialect] += s * keywordWeight
	}

	candidates := make([]Candidate, 0, len(combined))
	for dialect, c := range combined {
		candidates = append(candidates, Candidate{dialect, c})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Confidence != candidates[j].Confidence {
			return candidates[i].Confidence > candidates[j].Confidence
		}
		return candidates[i].Dialect < candidates[j].Dialect
	})
	return candidates
}

// IsConfident reports whether the query is detected with at least the
// threshold confidence.
func (d *Detector) IsConfident(query string) bool {
	_, confidence := d.Detect(query)
	return confidence >= d.threshold
}

func quickCheck(query string) (string, float64, bool) {
	upper := strings.ToUpper(query)

	switch {
	case strings.Contains(upper, "SELECT") && strings.Contains(upper, "FROM"):
		return "SQL", 0.95, true
	case hasAnyPrefix(upper, "INSERT ", "UPDATE ", "DELETE FROM"):
		return "SQL", 0.95, true
	case strings.Contains(upper, "MATCH") && strings.Contains(upper, "RETURN"):
		return "Cypher", 0.95, true
	case strings.HasPrefix(upper, "MATCH (") && strings.Contains(query, "-["):
		return "Cypher", 0.95, true
	case hasAnyPrefix(query, "query ", "mutation ", "subscription "):
		return "GraphQL", 0.95, true
	case strings.HasPrefix(upper, "PREFIX ") || strings.Contains(upper, "CONSTRUCT {"):
		return "SPARQL", 0.95, true
	case hasAnyPrefix(query, "g.V(", "g.E("):
		return "Gremlin", 0.95, true
	case strings.HasPrefix(query, "db."):
		return "MongoDB", 0.95, true
	case strings.HasPrefix(query, "{") && strings.Contains(query, "$match"):
		return "MongoDB", 0.90, true
	case strings.HasPrefix(query, "$."):
		return "JSONPath", 0.90, true
	case strings.HasPrefix(query, "/") && !strings.Contains(prefix(query[1:], 2), "/"):
		return "XPath", 0.85, true
	}

	return "", 0, false
}

func hasAnyPrefix(s string, prefixes ...string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

func prefix(s string, n int) string {
	if len(s) < n {
		return s
	}
	return s[:n]
}

func (d *Detector) patternScores(query string) map[string]float64 {
	scores := make(map[string]float64)
	for dialect, ps := range d.patterns {
		for _, p := range ps {
			if p.weight > scores[dialect] && p.m.Match(query) {
				scores[dialect] = p.weight
			}
		}
	}
	return scores
}

// keywordScores sums the weights of the distinct words of the query per
// dialect, normalized by the best score.
func keywordScores(query string) map[string]float64 {
	words := make(map[string]bool)
	for _, w := range strings.FieldsFunc(strings.ToUpper(query), func(r rune) bool {
		return !(r == '_' || r == '$' || unicode.IsLetter(r) || unicode.IsDigit(r))
	}) {
		if r := rune(w[0]); r == '_' || r == '$' || unicode.IsLetter(r) {
			words[w] = true
		}
	}

	scores := make(map[string]float64)
	var max float64
	for dialect, weights := range keywordWeights {
		var score float64
		for w := range words {
			score += float64(weights[w])
		}

		if score > 0 {
			scores[dialect] = score
			if score > max {
				max = score
			}
		}
	}

	for dialect := range scores {
		scores[dialect] /= max
	}
	return scores
}
