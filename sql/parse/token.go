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
	"fmt"
	"strings"
)

// TokenKind is the lexical class of a token.
type TokenKind byte

const (
	// EOF marks the end of the token stream.
	EOF TokenKind = iota
	// Keyword is a reserved word of the dialect.
	Keyword
	// Identifier is a bare or quoted name.
	Identifier
	// String is a quoted string literal.
	String
	// Number is an integer or decimal literal.
	Number
	// Operator is a comparison or concatenation operator.
	Operator
	// Punct is a punctuation character.
	Punct
)

func (k TokenKind) String() string {
	switch k {
	case EOF:
		return "EOF"
	case Keyword:
		return "keyword"
	case Identifier:
		return "identifier"
	case String:
		return "string"
	case Number:
		return "number"
	case Operator:
		return "operator"
	case Punct:
		return "punctuation"
	default:
		return fmt.Sprintf("TokenKind(%d)", byte(k))
	}
}

// Token is a lexical unit with its source position.
type Token struct {
	Kind TokenKind
	// Value is the unescaped text of the token. Keywords are uppercased.
	Value string
	// Quote is the quote character of quoted strings and identifiers.
	Quote byte
	// Pos is the byte offset of the token in the source text.
	Pos int
	// Line and Column are 1-based. Columns count runes.
	Line   int
	Column int
}

// Is reports whether the token is the keyword, operator or punctuation
// with the given value.
func (t Token) Is(value string) bool {
	switch t.Kind {
	case Keyword:
		return t.Value == strings.ToUpper(value)
	case Operator, Punct:
		return t.Value == value
	default:
		return false
	}
}

func (t Token) String() string {
	if t.Kind == EOF {
		return "EOF"
	}
	return fmt.Sprintf("%s %q", t.Kind, t.Value)
}

// reservedWords are the SQL:2016 reserved words. The generators quote
// identifiers that collide with them.
var reservedWords = newWordSet(
	"ABS", "ALL", "ALLOCATE", "ALTER", "AND", "ANY", "ARE", "ARRAY",
	"ARRAY_AGG", "ARRAY_MAX_CARDINALITY", "AS", "ASENSITIVE", "ASYMMETRIC",
	"AT", "ATOMIC", "AUTHORIZATION", "AVG", "BEGIN", "BEGIN_FRAME",
	"BEGIN_PARTITION", "BETWEEN", "BIGINT", "BINARY", "BLOB", "BOOLEAN",
	"BOTH", "BY", "CALL", "CALLED", "CARDINALITY", "CASCADED", "CASE", "CAST",
	"CEIL", "CEILING", "CHAR", "CHAR_LENGTH", "CHARACTER", "CHARACTER_LENGTH",
	"CHECK", "CLASSIFIER", "CLOB", "CLOSE", "COALESCE", "COLLATE", "COLLECT",
	"COLUMN", "COMMIT", "CONDITION", "CONNECT", "CONSTRAINT", "CONTAINS",
	"CONVERT", "COPY", "CORR", "CORRESPONDING", "COS", "COSH", "COUNT",
	"COVAR_POP", "COVAR_SAMP", "CREATE", "CROSS", "CUBE", "CUME_DIST",
	"CURRENT", "CURRENT_CATALOG", "CURRENT_DATE",
	"CURRENT_DEFAULT_TRANSFORM_GROUP", "CURRENT_PATH", "CURRENT_ROLE",
	"CURRENT_ROW", "CURRENT_SCHEMA", "CURRENT_TIME", "CURRENT_TIMESTAMP",
	"CURRENT_TRANSFORM_GROUP_FOR_TYPE", "CURRENT_USER", "CURSOR", "CYCLE",
	"DATE", "DAY", "DEALLOCATE", "DEC", "DECIMAL", "DECFLOAT", "DECLARE",
	"DEFAULT", "DEFINE", "DELETE", "DENSE_RANK", "DEREF", "DESCRIBE",
	"DETERMINISTIC", "DISCONNECT", "DISTINCT", "DOUBLE", "DROP", "DYNAMIC",
	"EACH", "ELEMENT", "ELSE", "EMPTY", "END", "END_FRAME", "END_PARTITION",
	"END-EXEC", "EQUALS", "ESCAPE", "EVERY", "EXCEPT", "EXEC", "EXECUTE",
	"EXISTS", "EXP", "EXTERNAL", "EXTRACT", "FALSE", "FETCH", "FILTER",
	"FIRST_VALUE", "FLOAT", "FLOOR", "FOR", "FOREIGN", "FRAME_ROW", "FREE",
	"FROM", "FULL", "FUNCTION", "FUSION", "GET", "GLOBAL", "GRANT", "GROUP",
	"GROUPING", "GROUPS", "HAVING", "HOLD", "HOUR", "IDENTITY", "IN",
	"INDICATOR", "INITIAL", "INNER", "INOUT", "INSENSITIVE", "INSERT", "INT",
	"INTEGER", "INTERSECT", "INTERSECTION", "INTERVAL", "INTO", "IS", "JOIN",
	"JSON_ARRAY", "JSON_ARRAYAGG", "JSON_EXISTS", "JSON_OBJECT",
	"JSON_OBJECTAGG", "JSON_QUERY", "JSON_TABLE", "JSON_TABLE_PRIMITIVE",
	"JSON_VALUE", "LAG", "LANGUAGE", "LARGE", "LAST_VALUE", "LATERAL", "LEAD",
	"LEADING", "LEFT", "LIKE", "LIKE_REGEX", "LISTAGG", "LN", "LOCAL",
	"LOCALTIME", "LOCALTIMESTAMP", "LOG", "LOG10", "LOWER", "MATCH",
	"MATCH_NUMBER", "MATCH_RECOGNIZE", "MATCHES", "MAX", "MEMBER", "MERGE",
	"METHOD", "MIN", "MINUTE", "MOD", "MODIFIES", "MODULE", "MONTH",
	"MULTISET", "NATIONAL", "NATURAL", "NCHAR", "NCLOB", "NEW", "NO", "NONE",
	"NORMALIZE", "NOT", "NTH_VALUE", "NTILE", "NULL", "NULLIF", "NUMERIC",
	"OCCURRENCES_REGEX", "OCTET_LENGTH", "OF", "OFFSET", "OLD", "OMIT", "ON",
	"ONE", "ONLY", "OPEN", "OR", "ORDER", "OUT", "OUTER", "OVER", "OVERLAPS",
	"OVERLAY", "PARAMETER", "PARTITION", "PATTERN", "PER", "PERCENT",
	"PERCENT_RANK", "PERCENTILE_CONT", "PERCENTILE_DISC", "PERIOD", "PORTION",
	"POSITION", "POSITION_REGEX", "POWER", "PRECEDES", "PRECISION", "PREPARE",
	"PRIMARY", "PROCEDURE", "PTF", "RANGE", "RANK", "READS", "REAL",
	"RECURSIVE", "REF", "REFERENCES", "REFERENCING", "REGR_AVGX", "REGR_AVGY",
	"REGR_COUNT", "REGR_INTERCEPT", "REGR_R2", "REGR_SLOPE", "REGR_SXX",
	"REGR_SXY", "REGR_SYY", "RELEASE", "RESULT", "RETURN", "RETURNS", "REVOKE",
	"RIGHT", "ROLLBACK", "ROLLUP", "ROW", "ROW_NUMBER", "ROWS", "RUNNING",
	"SAVEPOINT", "SCOPE", "SCROLL", "SEARCH", "SECOND", "SEEK", "SELECT",
	"SENSITIVE", "SESSION_USER", "SET", "SHOW", "SIMILAR", "SIN", "SINH",
	"SKIP", "SMALLINT", "SOME", "SPECIFIC", "SPECIFICTYPE", "SQL",
	"SQLEXCEPTION", "SQLSTATE", "SQLWARNING", "SQRT", "START", "STATIC",
	"STDDEV_POP", "STDDEV_SAMP", "SUBMULTISET", "SUBSET", "SUBSTRING",
	"SUBSTRING_REGEX", "SUCCEEDS", "SUM", "SYMMETRIC", "SYSTEM", "SYSTEM_TIME",
	"SYSTEM_USER", "TABLE", "TABLESAMPLE", "TAN", "TANH", "THEN", "TIME",
	"TIMESTAMP", "TIMEZONE_HOUR", "TIMEZONE_MINUTE", "TO", "TRAILING",
	"TRANSLATE", "TRANSLATE_REGEX", "TRANSLATION", "TREAT", "TRIGGER", "TRIM",
	"TRIM_ARRAY", "TRUE", "TRUNCATE", "UESCAPE", "UNION", "UNIQUE", "UNKNOWN",
	"UNNEST", "UPDATE", "UPPER", "USER", "USING", "VALUE", "VALUES",
	"VAR_POP", "VAR_SAMP", "VARBINARY", "VARCHAR", "VARYING", "VERSIONING",
	"WHEN", "WHENEVER", "WHERE", "WIDTH_BUCKET", "WINDOW", "WITH", "WITHIN",
	"WITHOUT", "YEAR",
)

// sqlKeywords are the words the SQL tokenizer reports as keywords: the
// reserved words plus the clause words used by the parser.
var sqlKeywords = reservedWords.with("LIMIT", "ASC", "DESC", "TOP", "NULLS",
	"LAST", "FIRST", "NEXT")

// clauseWords can never be used as bare identifiers, since they start or
// delimit a clause or an expression.
var clauseWords = newWordSet(
	"SELECT", "FROM", "WHERE", "GROUP", "BY", "HAVING", "ORDER", "LIMIT",
	"OFFSET", "FETCH", "JOIN", "INNER", "LEFT", "RIGHT", "FULL", "OUTER",
	"CROSS", "NATURAL", "ON", "USING", "UNION", "INTERSECT", "EXCEPT",
	"INSERT", "INTO", "VALUES", "UPDATE", "SET", "DELETE", "WITH", "AS",
	"AND", "OR", "NOT", "IN", "IS", "LIKE", "BETWEEN", "NULL", "TRUE",
	"FALSE", "DISTINCT", "ALL", "ASC", "DESC", "CASE", "WHEN", "THEN",
	"ELSE", "END", "EXISTS",
)

// IsReserved reports whether the given word is an SQL:2016 reserved word.
func IsReserved(word string) bool {
	return reservedWords.has(word)
}

// IsKeyword reports whether the SQL tokenizer reads word as a keyword, so
// it must be quoted to be used as a name.
func IsKeyword(word string) bool {
	return sqlKeywords.has(word)
}

type wordSet map[string]struct{}

func newWordSet(words ...string) wordSet {
	s := make(wordSet, len(words))
	for _, w := range words {
		s[strings.ToUpper(w)] = struct{}{}
	}
	return s
}

func (s wordSet) has(word string) bool {
	_, ok := s[strings.ToUpper(word)]
	return ok
}

// with returns a copy of the set including the given words.
func (s wordSet) with(words ...string) wordSet {
	r := make(wordSet, len(s)+len(words))
	for w := range s {
		r[w] = struct{}{}
	}
	for _, w := range words {
		r[strings.ToUpper(w)] = struct{}{}
	}
	return r
}
