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
	"errors"
	"fmt"
	"testing"
)

func TestOptimize(t *testing.T) {
	f := NewField
	testcases := []struct {
		before, after Node
	}{
		// literals are canonical
		{Bool(true), Bool(true)},
		{String("x"), String("x")},
		// negated literals follow truthiness
		{NewNot(Bool(true)), Bool(false)},
		{NewNot(String("")), Bool(true)},
		{NewNot(Number(0)), Bool(true)},
		{NewNot(Null{}), Bool(true)},
		// double negation
		{
			NewNot(NewNot(Compare(Less, f("a"), Number(1)))),
			Compare(Less, f("a"), Number(1)),
		},
		// equality comparisons flip under not
		{
			NewNot(Compare(Equals, f("a"), Number(1))),
			Compare(NotEquals, f("a"), Number(1)),
		},
		{
			NewNot(Compare(NotEquals, f("a"), Number(1))),
			Compare(Equals, f("a"), Number(1)),
		},
		// ordinal comparisons keep the generic form
		{
			NewNot(Compare(Less, f("a"), Number(1))),
			NewNot(Compare(Less, f("a"), Number(1))),
		},
		// De Morgan
		{
			NewNot(NewAnd(
				Compare(Equals, f("a"), Number(1)),
				Compare(Less, f("b"), Number(2)),
			)),
			NewOr(
				Compare(NotEquals, f("a"), Number(1)),
				NewNot(Compare(Less, f("b"), Number(2))),
			),
		},
		// boolean absorption
		{
			NewAnd(Bool(true), Compare(Equals, f("a"), Number(1))),
			Compare(Equals, f("a"), Number(1)),
		},
		{
			NewAnd(Compare(Equals, f("a"), Number(1)), Bool(false)),
			Bool(false),
		},
		{
			NewOr(Compare(Equals, f("a"), Number(1)), Bool(true)),
			Bool(true),
		},
		{
			NewOr(Bool(false), Compare(Equals, f("a"), Number(1))),
			Compare(Equals, f("a"), Number(1)),
		},
		// non-boolean literals absorb as booleans
		{
			NewAnd(Compare(Equals, f("a"), Number(1)), String("")),
			Bool(false),
		},
		{
			NewOr(Compare(Equals, f("a"), Number(1)), String("str")),
			Bool(true),
		},
		{NewAnd(String("x"), String("y")), Bool(true)},
		{NewOr(String(""), Number(0)), Bool(false)},
		// duplicate terms collapse
		{
			NewAnd(Compare(Less, f("a"), Number(1)), Compare(Less, f("a"), Number(1))),
			Compare(Less, f("a"), Number(1)),
		},
		// nested compounds splice
		{
			NewAnd(
				NewAnd(Compare(Equals, f("a"), Number(1)), Compare(Equals, f("b"), Number(2))),
				Compare(Equals, f("c"), Number(3)),
			),
			NewAnd(
				Compare(Equals, f("a"), Number(1)),
				Compare(Equals, f("b"), Number(2)),
				Compare(Equals, f("c"), Number(3)),
			),
		},
		// equality comparisons merge into sets
		{
			NewOr(
				Compare(Equals, f("a"), String("x")),
				Compare(Equals, f("a"), String("y")),
			),
			In(f("a"), String("x"), String("y")),
		},
		// set intersection
		{
			NewAnd(
				In(f("a"), Number(1), Number(2), Number(3)),
				In(f("a"), Number(2), Number(3), Number(4)),
			),
			In(f("a"), Number(2), Number(3)),
		},
		// set difference via '!='
		{
			NewAnd(
				In(f("a"), Number(1), Number(2), Number(3)),
				Compare(NotEquals, f("a"), Number(2)),
			),
			In(f("a"), Number(1), Number(3)),
		},
		// set difference via a negated set
		{
			NewAnd(
				In(f("a"), Number(1), Number(2), Number(3)),
				NewNot(In(f("a"), Number(2), Number(3))),
			),
			Compare(Equals, f("a"), Number(1)),
		},
		// set union
		{
			NewOr(
				In(f("a"), String("x"), String("y")),
				In(f("a"), String("y"), String("z")),
			),
			In(f("a"), String("x"), String("y"), String("z")),
		},
		// ordinal comparisons never merge into sets
		{
			NewOr(
				Compare(Less, f("a"), Number(3)),
				In(f("a"), Number(3)),
			),
			NewOr(
				Compare(Less, f("a"), Number(3)),
				Compare(Equals, f("a"), Number(3)),
			),
		},
		// container dedup is case-insensitive, first wins
		{
			In(f("a"), String("x"), String("X"), String("y")),
			In(f("a"), String("x"), String("y")),
		},
		// values of different kinds never collide
		{
			In(f("a"), Number(1), String("1")),
			In(f("a"), Number(1), String("1")),
		},
		// literal members sort ahead of dynamic ones
		{
			In(f("a"), f("dyn"), String("x"), String("y")),
			In(f("a"), String("x"), String("y"), f("dyn")),
		},
		// literal membership resolves
		{In(String("a"), String("A"), String("b")), Bool(true)},
		{In(String("c"), String("a"), String("b")), Bool(false)},
		{In(f("a")), Bool(false)},
		{In(f("a"), String("x")), Compare(Equals, f("a"), String("x"))},
		{In(f("a"), f("a")), Bool(true)},
		// comparison folding
		{Compare(Less, Number(1), Number(2)), Bool(true)},
		{Compare(GreaterEquals, Number(1), Number(2)), Bool(false)},
		{Compare(Equals, String("Abc"), String("abc")), Bool(true)},
		{Compare(Less, String("abc"), String("abd")), Bool(true)},
		{Compare(Equals, Number(1), String("1")), Bool(false)},
		{Compare(NotEquals, Number(1), String("1")), Bool(true)},
		{Compare(Less, Bool(false), Bool(true)), Bool(true)},
		{Compare(Equals, Null{}, Null{}), Bool(true)},
		// identical non-literal operands
		{Compare(Equals, f("a"), f("a")), Bool(true)},
		{Compare(LessEquals, f("a"), f("a")), Bool(true)},
		{Compare(Less, f("a"), f("a")), Bool(false)},
		{Compare(NotEquals, f("a"), f("a")), Bool(false)},
		// math folding
		{NewMath(Number(2), OpAdd, NewMath(Number(3), OpMul, Number(4))), Number(14)},
		{NewMath(Number(7), OpMod, Number(4)), Number(3)},
		{NewMath(Number(1), OpDiv, Number(2)), Number(0.5)},
		// division by zero stays unevaluated
		{NewMath(Number(1), OpDiv, Number(0)), NewMath(Number(1), OpDiv, Number(0))},
		{NewMath(Number(1), OpMod, Number(0)), NewMath(Number(1), OpMod, Number(0))},
		// a + (-b) resynthesis
		{
			NewMath(f("a"), OpAdd, NewMath(Number(0), OpSub, f("b"))),
			NewMath(f("a"), OpSub, f("b")),
		},
		{
			NewMath(f("a"), OpSub, NewMath(Number(0), OpSub, f("b"))),
			NewMath(f("a"), OpAdd, f("b")),
		},
		// function folding
		{Call("add", Number(1), Number(2)), Number(3)},
		{Call("multiply", Number(6), Number(7)), Number(42)},
		{Call("length", String("abc")), Number(3)},
		{Call("concat", String("a"), Number(1), Bool(true)), String("a1true")},
		{Call("between", String("a-b-c"), String("-"), String("-")), String("b")},
		// non-constant arguments stay unevaluated
		{Call("add", f("a"), Number(2)), Call("add", f("a"), Number(2))},
		// folding outside the constant domain stays unevaluated
		{Call("divide", Number(1), Number(0)), Call("divide", Number(1), Number(0))},
		{Call("add", String("a"), Number(2)), Call("add", String("a"), Number(2))},
		// unregistered calls stay unevaluated
		{Call("nosuch", Number(1)), Call("nosuch", Number(1))},
		// queries optimize their conditions
		{
			&EventQuery{EventType: "process", Condition: NewAnd(Bool(true), Compare(Equals, f("a"), Number(1)))},
			&EventQuery{EventType: "process", Condition: Compare(Equals, f("a"), Number(1))},
		},
		{
			&NamedSubquery{Relation: Child, Query: &EventQuery{EventType: "process", Condition: NewNot(Bool(false))}},
			&NamedSubquery{Relation: Child, Query: &EventQuery{EventType: "process", Condition: Bool(true)}},
		},
	}
	opt := NewOptimizer(DefaultFunctions())
	for i := range testcases {
		before, after := testcases[i].before, testcases[i].after
		got, err := opt.Optimize(before)
		if err != nil {
			t.Errorf("case %d: %s: %v", i, ToString(before), err)
			continue
		}
		if !got.Equals(after) {
			t.Errorf("case %d: %s -> %s, want %s",
				i, ToString(before), ToString(got), ToString(after))
			continue
		}
		// optimization is idempotent
		again, err := opt.Optimize(got)
		if err != nil {
			t.Errorf("case %d: re-optimize: %v", i, err)
			continue
		}
		if !again.Equals(got) {
			t.Errorf("case %d: not idempotent: %s -> %s",
				i, ToString(got), ToString(again))
		}
	}
}

func TestOptimizeDoesNotMutate(t *testing.T) {
	before := NewAnd(
		Bool(true),
		In(NewField("a"), String("x"), String("X")),
	)
	snapshot := Copy(before)
	opt := NewOptimizer(nil)
	if _, err := opt.Optimize(before); err != nil {
		t.Fatal(err)
	}
	if !before.Equals(snapshot) {
		t.Errorf("input was mutated: %s", ToString(before))
	}
}

func TestOptimizeFoldError(t *testing.T) {
	r, err := NewFuncRegistry(&Function{
		Name: "fail",
		Min:  1,
		Max:  1,
		Fold: func(args []Literal) (interface{}, error) {
			return nil, fmt.Errorf("fail: bad argument %s", ToString(args[0]))
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	opt := NewOptimizer(r)
	_, err = opt.Optimize(Call("fail", Number(1)))
	if err == nil {
		t.Fatal("expected an error")
	}
	if errors.Is(err, ErrNotFoldable) {
		t.Fatal("a real evaluation error should not look like ErrNotFoldable")
	}
	// calls inside a larger expression fail the same way
	_, err = opt.Optimize(NewAnd(Bool(true), Call("fail", Number(1))))
	if err == nil {
		t.Fatal("expected an error from a nested call")
	}
}

func TestNegateCombinator(t *testing.T) {
	opt := NewOptimizer(nil)
	got, err := opt.Negate(Compare(Equals, NewField("a"), Number(1)))
	if err != nil {
		t.Fatal(err)
	}
	want := Compare(NotEquals, NewField("a"), Number(1))
	if !got.Equals(want) {
		t.Errorf("got %s, want %s", ToString(got), ToString(want))
	}
}

func TestAndWithOrWith(t *testing.T) {
	opt := NewOptimizer(nil)
	a := In(NewField("x"), Number(1), Number(2))
	b := Compare(Equals, NewField("x"), Number(3))
	got, err := opt.OrWith(a, b)
	if err != nil {
		t.Fatal(err)
	}
	want := In(NewField("x"), Number(1), Number(2), Number(3))
	if !got.Equals(want) {
		t.Errorf("OrWith: got %s, want %s", ToString(got), ToString(want))
	}
	got, err = opt.AndWith(a, b)
	if err != nil {
		t.Fatal(err)
	}
	// {1, 2} has no member equal to 3
	if !got.Equals(Bool(false)) {
		t.Errorf("AndWith: got %s, want false", ToString(got))
	}
}
