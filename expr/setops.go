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
	"strings"
)

// setKey is the identity of a literal within an
// InSet container: values compare case-insensitively
// and never across primitive kinds.
func setKey(l Literal) string {
	switch l := l.(type) {
	case String:
		return "s\x00" + strings.ToLower(string(l))
	case Number:
		return "n\x00" + formatNumber(float64(l))
	case Bool:
		if l {
			return "b\x00t"
		}
		return "b\x00f"
	default:
		return "z\x00"
	}
}

// stabilize partitions a container into its
// deduplicated literal members followed by its
// deduplicated non-literal members, keeping the
// first occurrence of each distinct member.
func stabilize(container []Node) []Node {
	out := make([]Node, 0, len(container))
	seen := make(map[string]struct{}, len(container))
	for _, m := range container {
		l, ok := m.(Literal)
		if !ok {
			continue
		}
		k := setKey(l)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, m)
	}
	for _, m := range container {
		if IsLiteral(m) {
			continue
		}
		dup := false
		for _, prev := range out {
			if !IsLiteral(prev) && prev.Equals(m) {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, m)
		}
	}
	return out
}

// SplitLiterals partitions the container into its
// literal and non-literal members, preserving order.
func (s *InSet) SplitLiterals() ([]Literal, []Node) {
	var lits []Literal
	var rest []Node
	for _, m := range s.Container {
		if l, ok := m.(Literal); ok {
			lits = append(lits, l)
		} else {
			rest = append(rest, m)
		}
	}
	return lits, rest
}

func litKeys(container []Node) map[string]struct{} {
	keys := make(map[string]struct{}, len(container))
	for _, m := range container {
		if l, ok := m.(Literal); ok {
			keys[setKey(l)] = struct{}{}
		}
	}
	return keys
}

// containsLiteral reports whether the container
// holds a literal equal to l.
func containsLiteral(container []Node, l Literal) bool {
	_, ok := litKeys(container)[setKey(l)]
	return ok
}

// intersectLiterals keeps the members of a that
// also appear in b, in a's order.
func intersectLiterals(a, b []Node) []Node {
	keys := litKeys(b)
	out := make([]Node, 0, len(a))
	for _, m := range a {
		if l, ok := m.(Literal); ok {
			if _, hit := keys[setKey(l)]; hit {
				out = append(out, m)
			}
		}
	}
	return out
}

// unionLiterals appends the members of b not
// already in a.
func unionLiterals(a, b []Node) []Node {
	return stabilize(append(append([]Node{}, a...), b...))
}

// subtractLiterals removes the members of b from a.
func subtractLiterals(a, b []Node) []Node {
	keys := litKeys(b)
	out := make([]Node, 0, len(a))
	for _, m := range a {
		if l, ok := m.(Literal); ok {
			if _, hit := keys[setKey(l)]; hit {
				continue
			}
		}
		out = append(out, m)
	}
	return out
}
