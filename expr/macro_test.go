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
	"testing"
)

func testPreProcessor(t *testing.T, defs ...Definition) *PreProcessor {
	t.Helper()
	p, err := NewPreProcessor(NewOptimizer(DefaultFunctions()), defs...)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func TestMacroExpand(t *testing.T) {
	p := testPreProcessor(t,
		&Macro{
			Name:       "DOUBLE",
			Parameters: []string{"x"},
			Body:       NewMath(NewField("x"), OpAdd, NewField("x")),
		},
	)
	got, err := p.Expand(Call("DOUBLE", Number(3)))
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equals(Number(6)) {
		t.Errorf("got %s, want 6", ToString(got))
	}
	// non-constant arguments substitute structurally
	got, err = p.Expand(Call("DOUBLE", NewField("a")))
	if err != nil {
		t.Fatal(err)
	}
	want := NewMath(NewField("a"), OpAdd, NewField("a"))
	if !got.Equals(want) {
		t.Errorf("got %s, want %s", ToString(got), ToString(want))
	}
}

func TestMacroArity(t *testing.T) {
	p := testPreProcessor(t,
		&Macro{
			Name:       "DOUBLE",
			Parameters: []string{"x"},
			Body:       NewMath(NewField("x"), OpAdd, NewField("x")),
		},
	)
	_, err := p.Expand(Call("DOUBLE", Number(1), Number(2)))
	if err == nil {
		t.Fatal("expected an arity error")
	}
	var arity *ArityError
	if !errors.As(err, &arity) {
		t.Fatalf("expected *ArityError, got %T: %v", err, err)
	}
	if arity.Name != "DOUBLE" || arity.Min != 1 || arity.Got != 2 {
		t.Errorf("unexpected arity error: %+v", arity)
	}
}

func TestMacroOnlyBareReferences(t *testing.T) {
	p := testPreProcessor(t,
		&Macro{
			Name:       "NAMED",
			Parameters: []string{"x"},
			// x.name is not a bare reference to x
			Body: Compare(Equals, NewField("x", Key("name")), NewField("x")),
		},
	)
	got, err := p.Expand(Call("NAMED", String("cmd.exe")))
	if err != nil {
		t.Fatal(err)
	}
	want := Compare(Equals, NewField("x", Key("name")), String("cmd.exe"))
	if !got.Equals(want) {
		t.Errorf("got %s, want %s", ToString(got), ToString(want))
	}
}

func TestMacroEagerExpansion(t *testing.T) {
	p := testPreProcessor(t,
		&Macro{
			Name:       "INC",
			Parameters: []string{"x"},
			Body:       NewMath(NewField("x"), OpAdd, Number(1)),
		},
	)
	// OUTER calls INC, which is inlined at definition time
	err := p.AddDefinition(&Macro{
		Name:       "OUTER",
		Parameters: []string{"x"},
		Body:       NewMath(Call("INC", NewField("x")), OpMul, Number(2)),
	})
	if err != nil {
		t.Fatal(err)
	}
	got, err := p.Expand(Call("OUTER", Number(3)))
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equals(Number(8)) {
		t.Errorf("got %s, want 8", ToString(got))
	}
}

func TestConstantSubstitution(t *testing.T) {
	p := testPreProcessor(t,
		&Constant{Name: "WINDOWS", Value: String("windows")},
	)
	got, err := p.Expand(Compare(Equals, NewField("os"), NewField("WINDOWS")))
	if err != nil {
		t.Fatal(err)
	}
	want := Compare(Equals, NewField("os"), String("windows"))
	if !got.Equals(want) {
		t.Errorf("got %s, want %s", ToString(got), ToString(want))
	}
	// a reference with a path is not the constant
	keep := Compare(Equals, NewField("WINDOWS", Key("version")), Number(10))
	got, err = p.Expand(keep)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equals(keep) {
		t.Errorf("got %s, want %s", ToString(got), ToString(keep))
	}
}

func TestDuplicateConstant(t *testing.T) {
	p := testPreProcessor(t, &Constant{Name: "N", Value: Number(1)})
	if err := p.AddDefinition(&Constant{Name: "N", Value: Number(2)}); err == nil {
		t.Fatal("expected a duplicate-constant error")
	}
}

func TestCustomMacro(t *testing.T) {
	p := testPreProcessor(t,
		&CustomMacro{
			Name: "IS_PROC",
			Expand: func(args []Node) (Node, error) {
				return Compare(Equals, NewField("process", Key("name")), args[0]), nil
			},
		},
	)
	got, err := p.Expand(Call("IS_PROC", String("cmd.exe")))
	if err != nil {
		t.Fatal(err)
	}
	want := Compare(Equals, NewField("process", Key("name")), String("cmd.exe"))
	if !got.Equals(want) {
		t.Errorf("got %s, want %s", ToString(got), ToString(want))
	}
}

func TestPreProcessorCopy(t *testing.T) {
	p := testPreProcessor(t, &Constant{Name: "N", Value: Number(1)})
	cp := p.Copy()
	if err := cp.AddDefinition(&Constant{Name: "M", Value: Number(2)}); err != nil {
		t.Fatal(err)
	}
	// the original does not see M
	got, err := p.Expand(NewField("M"))
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equals(NewField("M")) {
		t.Errorf("original preprocessor saw the copied definition: %s", ToString(got))
	}
	got, err = cp.Expand(NewField("M"))
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equals(Number(2)) {
		t.Errorf("copy did not expand M: %s", ToString(got))
	}
}

func TestExpandInsideQuery(t *testing.T) {
	p := testPreProcessor(t,
		&Macro{
			Name:       "IS_CMD",
			Parameters: nil,
			Body:       Compare(Equals, NewField("process", Key("name")), String("cmd.exe")),
		},
	)
	q := &EventQuery{EventType: "process", Condition: Call("IS_CMD")}
	got, err := p.Expand(q)
	if err != nil {
		t.Fatal(err)
	}
	want := &EventQuery{
		EventType: "process",
		Condition: Compare(Equals, NewField("process", Key("name")), String("cmd.exe")),
	}
	if !got.Equals(want) {
		t.Errorf("got %s, want %s", ToString(got), ToString(want))
	}
}
