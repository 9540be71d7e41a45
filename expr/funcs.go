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
	"strings"
	"unicode/utf8"
)

// ErrNotFoldable is returned (possibly wrapped)
// by a Function's Fold hook when the arguments
// are outside the function's constant domain.
// The optimizer keeps the call unevaluated
// instead of failing.
var ErrNotFoldable = errors.New("arguments cannot be folded")

// ArityError indicates a call with the
// wrong number of arguments.
type ArityError struct {
	Name     string
	Min, Max int // Max < 0 means variadic
	Got      int
}

func (e *ArityError) Error() string {
	switch {
	case e.Max < 0:
		return fmt.Sprintf("%s: expected at least %d arguments; found %d", e.Name, e.Min, e.Got)
	case e.Min == e.Max:
		return fmt.Sprintf("%s: expected %d arguments; found %d", e.Name, e.Min, e.Got)
	default:
		return fmt.Sprintf("%s: expected %d to %d arguments; found %d", e.Name, e.Min, e.Max, e.Got)
	}
}

// Function describes one callable function.
type Function struct {
	Name string

	// Min and Max bound the argument count;
	// Max < 0 means no upper bound.
	Min, Max int

	// Fold evaluates a call whose arguments
	// are all literal, returning the value of
	// the resulting literal. A nil Fold means
	// calls are never folded. Returning an
	// error wrapping ErrNotFoldable keeps the
	// call unevaluated; any other error aborts
	// optimization.
	Fold func(args []Literal) (interface{}, error)

	// AltRender, when non-nil, may substitute
	// an equivalent node for rendering a call
	// in shorthand form (for example as a
	// comparison). The substitute participates
	// in ordinary precedence handling.
	AltRender func(args []Node) (Node, bool)
}

// CheckArity returns an *ArityError if a call
// with n arguments is out of bounds.
func (f *Function) CheckArity(n int) error {
	if n < f.Min || (f.Max >= 0 && n > f.Max) {
		return &ArityError{Name: f.Name, Min: f.Min, Max: f.Max, Got: n}
	}
	return nil
}

// FuncRegistry maps function names to their
// descriptions. Registries are append-only;
// construct one per deployment and share it.
type FuncRegistry struct {
	funcs map[string]*Function
}

// NewFuncRegistry builds a registry holding fns.
func NewFuncRegistry(fns ...*Function) (*FuncRegistry, error) {
	r := &FuncRegistry{funcs: make(map[string]*Function, len(fns))}
	for _, fn := range fns {
		if err := r.Register(fn); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds fn to the registry. Registering
// a name twice is an error that names both the
// existing and the new entry.
func (r *FuncRegistry) Register(fn *Function) error {
	if prev, ok := r.funcs[fn.Name]; ok {
		return fmt.Errorf("function %q already registered (existing %p, new %p)", fn.Name, prev, fn)
	}
	r.funcs[fn.Name] = fn
	return nil
}

// Lookup returns the function registered under
// name, or nil if there is none.
func (r *FuncRegistry) Lookup(name string) *Function {
	if r == nil {
		return nil
	}
	return r.funcs[name]
}

func foldNumbers(name string, op MathOp) func([]Literal) (interface{}, error) {
	return func(args []Literal) (interface{}, error) {
		left, lok := args[0].(Number)
		right, rok := args[1].(Number)
		if !lok || !rok {
			return nil, fmt.Errorf("%s: %w", name, ErrNotFoldable)
		}
		if right == 0 && (op == OpDiv || op == OpMod) {
			return nil, fmt.Errorf("%s by zero: %w", name, ErrNotFoldable)
		}
		return op.apply(float64(left), float64(right)), nil
	}
}

func foldConcat(args []Literal) (interface{}, error) {
	var dst strings.Builder
	for i := range args {
		switch a := args[i].(type) {
		case String:
			dst.WriteString(string(a))
		case Number:
			dst.WriteString(formatNumber(float64(a)))
		case Bool:
			if a {
				dst.WriteString("true")
			} else {
				dst.WriteString("false")
			}
		default:
			return nil, fmt.Errorf("concat: %w", ErrNotFoldable)
		}
	}
	return dst.String(), nil
}

func foldLength(args []Literal) (interface{}, error) {
	s, ok := args[0].(String)
	if !ok {
		return nil, fmt.Errorf("length: %w", ErrNotFoldable)
	}
	return utf8.RuneCountInString(string(s)), nil
}

func foldBetween(args []Literal) (interface{}, error) {
	src, sok := args[0].(String)
	left, lok := args[1].(String)
	right, rok := args[2].(String)
	if !sok || !lok || !rok {
		return nil, fmt.Errorf("between: %w", ErrNotFoldable)
	}
	s := string(src)
	i := strings.Index(s, string(left))
	if i < 0 {
		return "", nil
	}
	s = s[i+len(left):]
	j := strings.Index(s, string(right))
	if j < 0 {
		return "", nil
	}
	return s[:j], nil
}

// wildcard calls against a single pattern render
// back as their comparison shorthand.
func wildcardAlt(args []Node) (Node, bool) {
	if len(args) != 2 {
		return nil, false
	}
	if _, ok := args[1].(String); !ok {
		return nil, false
	}
	return Compare(Equals, args[0], args[1]), true
}

// DefaultFunctions returns a registry holding
// the built-in function catalog.
func DefaultFunctions() *FuncRegistry {
	r, err := NewFuncRegistry(
		&Function{Name: "add", Min: 2, Max: 2, Fold: foldNumbers("add", OpAdd)},
		&Function{Name: "subtract", Min: 2, Max: 2, Fold: foldNumbers("subtract", OpSub)},
		&Function{Name: "multiply", Min: 2, Max: 2, Fold: foldNumbers("multiply", OpMul)},
		&Function{Name: "divide", Min: 2, Max: 2, Fold: foldNumbers("divide", OpDiv)},
		&Function{Name: "modulo", Min: 2, Max: 2, Fold: foldNumbers("modulo", OpMod)},
		&Function{Name: "concat", Min: 1, Max: -1, Fold: foldConcat},
		&Function{Name: "length", Min: 1, Max: 1, Fold: foldLength},
		&Function{Name: "between", Min: 3, Max: 3, Fold: foldBetween},
		&Function{Name: "wildcard", Min: 2, Max: -1, AltRender: wildcardAlt},
	)
	if err != nil {
		// the catalog above has no duplicates
		panic(err)
	}
	return r
}
