// Copyright 2023 the eql authors
//
//  Licensed under the Apache License, Version 2.0 (the "License");
//  you may not use this file except in compliance with the License.
//  You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
//  Unless required by applicable law or agreed to in writing, software
//  distributed under the License is distributed on an "AS IS" BASIS,
//  WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//  See the License for the specific language governing permissions and
//  limitations under the License.

package expr

import (
	"fmt"
	"strings"
)

// escape sequences recognized inside
// double-quoted string literals
var unescapes = map[byte]byte{
	'\\': '\\',
	'b':  '\b',
	't':  '\t',
	'r':  '\r',
	'n':  '\n',
	'f':  '\f',
	'"':  '"',
	'\'': '\'',
}

var escapes = map[byte]byte{
	'\\': '\\',
	'\b': 'b',
	'\t': 't',
	'\r': 'r',
	'\n': 'n',
	'\f': 'f',
	'"':  '"',
	'\'': '\'',
}

// quote writes s into dst as a
// double-quoted string literal.
func quote(dst *strings.Builder, s string) {
	dst.WriteByte('"')
	for i := 0; i < len(s); i++ {
		if e, ok := escapes[s[i]]; ok {
			dst.WriteByte('\\')
			dst.WriteByte(e)
			continue
		}
		dst.WriteByte(s[i])
	}
	dst.WriteByte('"')
}

// Quote renders s as a double-quoted
// string literal with the recognized
// escape sequences applied.
func Quote(s string) string {
	var dst strings.Builder
	quote(&dst, s)
	return dst.String()
}

// Unquote reverses Quote: it strips the
// surrounding double quotes and decodes
// the escape sequences.
func Unquote(s string) (string, error) {
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return "", fmt.Errorf("unquote: %q is not a quoted string", s)
	}
	s = s[1 : len(s)-1]
	var dst strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' {
			dst.WriteByte(s[i])
			continue
		}
		i++
		if i == len(s) {
			return "", fmt.Errorf("unquote: trailing backslash")
		}
		u, ok := unescapes[s[i]]
		if !ok {
			return "", fmt.Errorf("unquote: unknown escape sequence \\%c", s[i])
		}
		dst.WriteByte(u)
	}
	return dst.String(), nil
}
