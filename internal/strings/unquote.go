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

package strings

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"unicode/utf8"
)

// Unescape resolves the backslash escapes of the body of a quoted literal.
// A doubled quote character stands for a single one.
func Unescape(s string, quote byte) (string, error) {
	ret := new(bytes.Buffer)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == quote && quote != 0 && i+1 < len(s) && s[i+1] == quote {
			ret.WriteByte(quote)
			i++
			continue
		}

		if c != '\\' {
			ret.WriteByte(c)
			continue
		}

		i++
		if i == len(s) {
			return "", fmt.Errorf("dangling escape at the end of %q", s)
		}

		switch s[i] {
		case 'b':
			ret.WriteByte('\b')
		case 'f':
			ret.WriteByte('\f')
		case 'n':
			ret.WriteByte('\n')
		case 'r':
			ret.WriteByte('\r')
		case 't':
			ret.WriteByte('\t')
		case '0':
			ret.WriteByte(0)
		case 'u':
			if i+4 >= len(s) {
				return "", fmt.Errorf("invalid unicode escape: %s", s[i+1:])
			}
			r, err := decodeEscapedUnicode(s[i+1 : i+5])
			if err != nil {
				return "", err
			}
			ret.WriteRune(r)
			i += 4
		default:
			// For all other escape sequences, backslash is ignored.
			ret.WriteByte(s[i])
		}
	}

	return ret.String(), nil
}

// Unquote removes the surrounding quotes of s, if any, and unescapes the
// body.
func Unquote(s string) (string, error) {
	if len(s) > 1 {
		head, tail := s[0], s[len(s)-1]
		if (head == '"' || head == '\'' || head == '`') && head == tail {
			return Unescape(s[1:len(s)-1], head)
		}
	}
	return Unescape(s, 0)
}

// Quote wraps s in the given quote character, doubling any occurrence of it.
func Quote(s string, quote byte) string {
	ret := new(bytes.Buffer)
	ret.WriteByte(quote)
	for i := 0; i < len(s); i++ {
		if s[i] == quote {
			ret.WriteByte(quote)
		}
		ret.WriteByte(s[i])
	}
	ret.WriteByte(quote)
	return ret.String()
}

func decodeEscapedUnicode(s string) (rune, error) {
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != 2 {
		return utf8.RuneError, fmt.Errorf("invalid unicode escape: %s", s)
	}
	return rune(b[0])<<8 | rune(b[1]), nil
}
