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
	"strings"
)

// Optimizer rewrites an AST into an equivalent
// canonical form: constants are folded, boolean
// absorption and De Morgan's laws are applied,
// and set membership is reduced algebraically.
//
// Optimization never mutates its input; it
// reconstructs nodes as needed and may share
// unchanged sub-trees with the input.
type Optimizer struct {
	// Funcs resolves function calls for
	// constant folding. A nil Funcs means
	// calls are never folded.
	Funcs *FuncRegistry
}

// NewOptimizer constructs an Optimizer that
// folds calls through funcs.
func NewOptimizer(funcs *FuncRegistry) *Optimizer {
	return &Optimizer{Funcs: funcs}
}

// Optimize returns the canonical form of n.
// Optimization is idempotent: optimizing an
// already-optimized tree returns an equivalent
// tree. The only errors returned are those
// surfaced by registry Fold hooks.
func (o *Optimizer) Optimize(n Node) (Node, error) {
	switch n := n.(type) {
	case *Not:
		term, err := o.Optimize(n.Term)
		if err != nil {
			return nil, err
		}
		return o.Negate(term)
	case *And:
		return o.compound(n.Terms, true)
	case *Or:
		return o.compound(n.Terms, false)
	case *Comparison:
		return o.comparison(n)
	case *MathOperation:
		return o.math(n)
	case *FunctionCall:
		return o.call(n)
	case *InSet:
		return o.inset(n)
	case *EventQuery:
		cond, err := o.Optimize(n.Condition)
		if err != nil {
			return nil, err
		}
		return &EventQuery{EventType: n.EventType, Condition: cond}, nil
	case *NamedSubquery:
		q, err := o.Optimize(n.Query)
		if err != nil {
			return nil, err
		}
		return &NamedSubquery{Relation: n.Relation, Query: q.(*EventQuery)}, nil
	case *NamedParams:
		params := make([]NamedParam, len(n.Params))
		for i := range n.Params {
			v, err := o.Optimize(n.Params[i].Value)
			if err != nil {
				return nil, err
			}
			params[i] = NamedParam{Name: n.Params[i].Name, Value: v}
		}
		return &NamedParams{Params: params}, nil
	case *SubqueryBy:
		return o.subqueryBy(n)
	case *Join:
		out := &Join{Queries: make([]*SubqueryBy, len(n.Queries))}
		for i := range n.Queries {
			q, err := o.subqueryBy(n.Queries[i])
			if err != nil {
				return nil, err
			}
			out.Queries[i] = q
		}
		if n.Until != nil {
			u, err := o.subqueryBy(n.Until)
			if err != nil {
				return nil, err
			}
			out.Until = u
		}
		return out, nil
	case *Sequence:
		out := &Sequence{Queries: make([]*SubqueryBy, len(n.Queries))}
		if n.Params != nil {
			p, err := o.Optimize(n.Params)
			if err != nil {
				return nil, err
			}
			out.Params = p.(*NamedParams)
		}
		for i := range n.Queries {
			q, err := o.subqueryBy(n.Queries[i])
			if err != nil {
				return nil, err
			}
			out.Queries[i] = q
		}
		if n.Until != nil {
			u, err := o.subqueryBy(n.Until)
			if err != nil {
				return nil, err
			}
			out.Until = u
		}
		return out, nil
	case *PipeCommand:
		args := make([]Node, len(n.Args))
		for i := range n.Args {
			a, err := o.Optimize(n.Args[i])
			if err != nil {
				return nil, err
			}
			args[i] = a
		}
		return &PipeCommand{Name: n.Name, Args: args}, nil
	case *PipedQuery:
		first, err := o.Optimize(n.First)
		if err != nil {
			return nil, err
		}
		out := &PipedQuery{First: first, Pipes: make([]*PipeCommand, len(n.Pipes))}
		for i := range n.Pipes {
			p, err := o.Optimize(n.Pipes[i])
			if err != nil {
				return nil, err
			}
			out.Pipes[i] = p.(*PipeCommand)
		}
		return out, nil
	case *EqlAnalytic:
		q, err := o.Optimize(n.Query)
		if err != nil {
			return nil, err
		}
		return &EqlAnalytic{Query: q, Metadata: n.Metadata}, nil
	default:
		// literals, fields, and time ranges
		// are already canonical
		return n, nil
	}
}

func (o *Optimizer) subqueryBy(s *SubqueryBy) (*SubqueryBy, error) {
	q, err := o.Optimize(s.Query)
	if err != nil {
		return nil, err
	}
	out := &SubqueryBy{Query: q.(*EventQuery)}
	if s.Params != nil {
		p, err := o.Optimize(s.Params)
		if err != nil {
			return nil, err
		}
		out.Params = p.(*NamedParams)
	}
	out.JoinValues = make([]Node, len(s.JoinValues))
	for i := range s.JoinValues {
		v, err := o.Optimize(s.JoinValues[i])
		if err != nil {
			return nil, err
		}
		out.JoinValues[i] = v
	}
	return out, nil
}

// compound optimizes the terms of an And (conj)
// or Or compound, then folds adjacent pairs.
func (o *Optimizer) compound(terms []Node, conj bool) (Node, error) {
	// optimize and splice nested compounds
	// of the same connective
	flat := make([]Node, 0, len(terms))
	for i := range terms {
		t, err := o.Optimize(terms[i])
		if err != nil {
			return nil, err
		}
		if conj {
			if a, ok := t.(*And); ok {
				flat = append(flat, a.Terms...)
				continue
			}
		} else {
			if or, ok := t.(*Or); ok {
				flat = append(flat, or.Terms...)
				continue
			}
		}
		flat = append(flat, t)
	}
	if len(flat) == 0 {
		return Bool(conj), nil
	}
	current := flat[0]
	var done []Node
	for _, term := range flat[1:] {
		var combined Node
		var err error
		if conj {
			combined, err = o.AndWith(current, term)
		} else {
			combined, err = o.OrWith(current, term)
		}
		if err != nil {
			return nil, err
		}
		merged := true
		if conj {
			_, unmerged := combined.(*And)
			merged = !unmerged
		} else {
			_, unmerged := combined.(*Or)
			merged = !unmerged
		}
		if merged {
			current = combined
		} else {
			done = append(done, current)
			current = term
		}
	}
	if len(done) == 0 {
		return current, nil
	}
	done = append(done, current)
	if conj {
		return &And{Terms: done}, nil
	}
	return &Or{Terms: done}, nil
}

// membership views a term as (expr, container,
// negated): an InSet or its negation directly,
// or a comparison against a literal as a
// singleton set.
func membership(n Node) (expr Node, container []Node, negated, ok bool) {
	switch n := n.(type) {
	case *InSet:
		if n.IsLiteral() {
			return n.Expr, n.Container, false, true
		}
	case *Not:
		if s, isSet := n.Term.(*InSet); isSet && s.IsLiteral() {
			return s.Expr, s.Container, true, true
		}
	case *Comparison:
		if !IsLiteral(n.Right) || IsLiteral(n.Left) {
			return nil, nil, false, false
		}
		switch n.Op {
		case Equals:
			return n.Left, []Node{n.Right}, false, true
		case NotEquals:
			return n.Left, []Node{n.Right}, true, true
		}
	}
	return nil, nil, false, false
}

// AndWith combines two optimized terms under
// boolean AND, merging them when an algebraic
// rule applies; otherwise it returns the
// two-term And.
func (o *Optimizer) AndWith(a, b Node) (Node, error) {
	if l, ok := a.(Literal); ok {
		if bl, ok := b.(Literal); ok {
			return Bool(truthy(l) && truthy(bl)), nil
		}
		if truthy(l) {
			return b, nil
		}
		return Bool(false), nil
	}
	if l, ok := b.(Literal); ok {
		if truthy(l) {
			return a, nil
		}
		return Bool(false), nil
	}
	if a.Equals(b) {
		return a, nil
	}
	ae, ac, aneg, aok := membership(a)
	be, bc, bneg, bok := membership(b)
	if aok && bok && ae.Equals(be) {
		switch {
		case !aneg && !bneg:
			return o.inset(&InSet{Expr: ae, Container: intersectLiterals(ac, bc)})
		case !aneg && bneg:
			return o.inset(&InSet{Expr: ae, Container: subtractLiterals(ac, bc)})
		case aneg && !bneg:
			return o.inset(&InSet{Expr: ae, Container: subtractLiterals(bc, ac)})
		}
	}
	return &And{Terms: []Node{a, b}}, nil
}

// OrWith combines two optimized terms under
// boolean OR; otherwise it returns the
// two-term Or.
func (o *Optimizer) OrWith(a, b Node) (Node, error) {
	if l, ok := a.(Literal); ok {
		if bl, ok := b.(Literal); ok {
			return Bool(truthy(l) || truthy(bl)), nil
		}
		if truthy(l) {
			return Bool(true), nil
		}
		return b, nil
	}
	if l, ok := b.(Literal); ok {
		if truthy(l) {
			return Bool(true), nil
		}
		return a, nil
	}
	if a.Equals(b) {
		return a, nil
	}
	ae, ac, aneg, aok := membership(a)
	be, bc, bneg, bok := membership(b)
	if aok && bok && !aneg && !bneg && ae.Equals(be) {
		return o.inset(&InSet{Expr: ae, Container: unionLiterals(ac, bc)})
	}
	return &Or{Terms: []Node{a, b}}, nil
}

// Negate returns the canonical negation of an
// already-optimized term.
func (o *Optimizer) Negate(n Node) (Node, error) {
	switch n := n.(type) {
	case Literal:
		return Bool(!truthy(n)), nil
	case *Not:
		// double negation
		return n.Term, nil
	case *Comparison:
		switch n.Op {
		case Equals:
			return o.comparison(&Comparison{Left: n.Left, Op: NotEquals, Right: n.Right})
		case NotEquals:
			return o.comparison(&Comparison{Left: n.Left, Op: Equals, Right: n.Right})
		}
		return &Not{Term: n}, nil
	case *And:
		terms := make([]Node, len(n.Terms))
		for i := range n.Terms {
			t, err := o.Negate(n.Terms[i])
			if err != nil {
				return nil, err
			}
			terms[i] = t
		}
		return o.compound(terms, false)
	case *Or:
		terms := make([]Node, len(n.Terms))
		for i := range n.Terms {
			t, err := o.Negate(n.Terms[i])
			if err != nil {
				return nil, err
			}
			terms[i] = t
		}
		return o.compound(terms, true)
	default:
		return &Not{Term: n}, nil
	}
}

// litCompare orders two literals of the same
// primitive kind: strings case-insensitively,
// false before true, null equal to null.
func litCompare(a, b Literal) (int, bool) {
	switch a := a.(type) {
	case String:
		b, ok := b.(String)
		if !ok {
			return 0, false
		}
		return strings.Compare(strings.ToLower(string(a)), strings.ToLower(string(b))), true
	case Number:
		b, ok := b.(Number)
		if !ok {
			return 0, false
		}
		switch {
		case a < b:
			return -1, true
		case a > b:
			return 1, true
		}
		return 0, true
	case Bool:
		b, ok := b.(Bool)
		if !ok {
			return 0, false
		}
		av, bv := 0, 0
		if a {
			av = 1
		}
		if b {
			bv = 1
		}
		return av - bv, true
	default:
		_, ok := b.(Null)
		return 0, ok
	}
}

func cmpResult(op CmpOp, rel int) bool {
	switch op {
	case Less:
		return rel < 0
	case LessEquals:
		return rel <= 0
	case Equals:
		return rel == 0
	case NotEquals:
		return rel != 0
	case GreaterEquals:
		return rel >= 0
	default:
		return rel > 0
	}
}

func (o *Optimizer) comparison(c *Comparison) (Node, error) {
	left, err := o.Optimize(c.Left)
	if err != nil {
		return nil, err
	}
	right, err := o.Optimize(c.Right)
	if err != nil {
		return nil, err
	}
	ll, lok := left.(Literal)
	rl, rok := right.(Literal)
	if lok && rok {
		rel, comparable := litCompare(ll, rl)
		if !comparable {
			// values of different primitive kinds
			// are never equal and never ordered
			return Bool(c.Op == NotEquals), nil
		}
		return Bool(cmpResult(c.Op, rel)), nil
	}
	if !lok && left.Equals(right) {
		// x <op> x for any reflexive operator
		switch c.Op {
		case Equals, LessEquals, GreaterEquals:
			return Bool(true), nil
		case NotEquals, Less, Greater:
			return Bool(false), nil
		}
	}
	return &Comparison{Left: left, Op: c.Op, Right: right}, nil
}

func (o *Optimizer) math(m *MathOperation) (Node, error) {
	left, err := o.Optimize(m.Left)
	if err != nil {
		return nil, err
	}
	right, err := o.Optimize(m.Right)
	if err != nil {
		return nil, err
	}
	ln, lok := left.(Number)
	rn, rok := right.(Number)
	if lok && rok {
		if rn == 0 && (m.Op == OpDiv || m.Op == OpMod) {
			// division by zero stays unevaluated
			return &MathOperation{Left: left, Op: m.Op, Right: right}, nil
		}
		return Number(m.Op.apply(float64(ln), float64(rn))), nil
	}
	// a + (-b) and a - (-b) resynthesis:
	// the right operand is a unary minus
	// written as (0 - x)
	if rm, ok := right.(*MathOperation); ok &&
		(m.Op == OpAdd || m.Op == OpSub) &&
		(rm.Op == OpAdd || rm.Op == OpSub) {
		if z, ok := rm.Left.(Number); ok && z == 0 && rm.Op == OpSub {
			op := OpAdd
			if m.Op == OpAdd {
				op = OpSub
			}
			return o.math(&MathOperation{Left: left, Op: op, Right: rm.Right})
		}
	}
	return &MathOperation{Left: left, Op: m.Op, Right: right}, nil
}

func (o *Optimizer) call(f *FunctionCall) (Node, error) {
	args := make([]Node, len(f.Args))
	lits := make([]Literal, 0, len(f.Args))
	for i := range f.Args {
		a, err := o.Optimize(f.Args[i])
		if err != nil {
			return nil, err
		}
		args[i] = a
		if l, ok := a.(Literal); ok {
			lits = append(lits, l)
		}
	}
	out := &FunctionCall{Name: f.Name, Args: args, AsMethod: f.AsMethod}
	if len(lits) != len(args) {
		return out, nil
	}
	fn := o.Funcs.Lookup(f.Name)
	if fn == nil || fn.Fold == nil || fn.CheckArity(len(args)) != nil {
		return out, nil
	}
	v, err := fn.Fold(lits)
	if err != nil {
		if errors.Is(err, ErrNotFoldable) {
			return out, nil
		}
		return nil, err
	}
	return NewLiteral(v)
}

func (o *Optimizer) inset(s *InSet) (Node, error) {
	expr, err := o.Optimize(s.Expr)
	if err != nil {
		return nil, err
	}
	container := make([]Node, len(s.Container))
	for i := range s.Container {
		m, err := o.Optimize(s.Container[i])
		if err != nil {
			return nil, err
		}
		container[i] = m
	}
	container = stabilize(container)
	if el, ok := expr.(Literal); ok {
		if containsLiteral(container, el) {
			return Bool(true), nil
		}
		// literal members can no longer match
		var dynamic []Node
		for _, m := range container {
			if !IsLiteral(m) {
				dynamic = append(dynamic, m)
			}
		}
		container = dynamic
	} else {
		for _, m := range container {
			if !IsLiteral(m) && expr.Equals(m) {
				return Bool(true), nil
			}
		}
	}
	switch len(container) {
	case 0:
		return Bool(false), nil
	case 1:
		return o.comparison(&Comparison{Left: expr, Op: Equals, Right: container[0]})
	}
	return &InSet{Expr: expr, Container: container}, nil
}
