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
	"testing"
)

func TestEquals(t *testing.T) {
	testcases := []struct {
		a, b Node
		want bool
	}{
		{String("a"), String("a"), true},
		{String("a"), String("A"), false},
		{String("1"), Number(1), false},
		{Number(1), Number(1), true},
		{Number(1), Number(1.5), false},
		{Bool(true), Bool(true), true},
		{Bool(true), Bool(false), false},
		{Null{}, Null{}, true},
		{Null{}, Bool(false), false},
		{Seconds(60), Seconds(60), true},
		{Seconds(60), Seconds(61), false},
		{NewField("a"), NewField("a"), true},
		{NewField("a"), NewField("b"), false},
		{NewField("a", Key("b")), NewField("a", Key("b")), true},
		{NewField("a", Key("b")), NewField("a"), false},
		{NewField("a", Idx(0)), NewField("a", Idx(1)), false},
		{Call("f", NewField("a")), Call("f", NewField("a")), true},
		{Call("f", NewField("a")), Call("g", NewField("a")), false},
		{Call("f", NewField("a")), Call("f"), false},
		{
			NewMath(NewField("a"), OpAdd, Number(1)),
			NewMath(NewField("a"), OpAdd, Number(1)),
			true,
		},
		{
			NewMath(NewField("a"), OpAdd, Number(1)),
			NewMath(NewField("a"), OpSub, Number(1)),
			false,
		},
		{
			Compare(Equals, NewField("a"), Number(1)),
			Compare(Equals, NewField("a"), Number(1)),
			true,
		},
		{
			Compare(Equals, NewField("a"), Number(1)),
			Compare(NotEquals, NewField("a"), Number(1)),
			false,
		},
		{
			In(NewField("a"), Number(1), Number(2)),
			In(NewField("a"), Number(1), Number(2)),
			true,
		},
		{
			// container order matters
			In(NewField("a"), Number(1), Number(2)),
			In(NewField("a"), Number(2), Number(1)),
			false,
		},
		{
			NewAnd(Bool(true), Bool(false)),
			NewAnd(Bool(true), Bool(false)),
			true,
		},
		{
			NewAnd(Bool(true), Bool(false)),
			NewOr(Bool(true), Bool(false)),
			false,
		},
		{
			NewNot(NewField("a")),
			NewNot(NewField("a")),
			true,
		},
		{
			&NamedSubquery{Relation: Descendant, Query: &EventQuery{EventType: "process", Condition: Bool(true)}},
			&NamedSubquery{Relation: Descendant, Query: &EventQuery{EventType: "process", Condition: Bool(true)}},
			true,
		},
		{
			&NamedSubquery{Relation: Descendant, Query: &EventQuery{EventType: "process", Condition: Bool(true)}},
			&NamedSubquery{Relation: Child, Query: &EventQuery{EventType: "process", Condition: Bool(true)}},
			false,
		},
		{
			&EventQuery{EventType: "process", Condition: Bool(true)},
			&EventQuery{EventType: "network", Condition: Bool(true)},
			false,
		},
	}
	for i := range testcases {
		a, b := testcases[i].a, testcases[i].b
		if got := a.Equals(b); got != testcases[i].want {
			t.Errorf("case %d: Equals = %v, want %v", i, got, testcases[i].want)
		}
		// symmetry
		if got := b.Equals(a); got != testcases[i].want {
			t.Errorf("case %d: reversed Equals = %v, want %v", i, got, testcases[i].want)
		}
		// reflexivity
		if !a.Equals(a) || !b.Equals(b) {
			t.Errorf("case %d: node not equal to itself", i)
		}
	}
}
