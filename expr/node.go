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
	"math"
	"strings"
	"time"

	"golang.org/x/exp/slices"
)

// Kind identifies the concrete type of a Node.
// Every node type maps to exactly one Kind;
// RewriteTable uses Kinds to dispatch per-type
// callbacks during tree rewriting.
type Kind int

const (
	KindString Kind = iota
	KindNumber
	KindBool
	KindNull
	KindTimeRange
	KindField
	KindFunctionCall
	KindMathOperation
	KindComparison
	KindInSet
	KindAnd
	KindOr
	KindNot
	KindNamedSubquery
	KindEventQuery
	KindNamedParams
	KindSubqueryBy
	KindJoin
	KindSequence
	KindPipeCommand
	KindPipedQuery
	KindEqlAnalytic
	KindConstant
	KindMacro
)

// Node is an expression AST node
type Node interface {
	// Equals returns whether this node
	// is structurally equivalent to another node.
	// Nodes are Equal if they have the same
	// concrete type and their attributes are
	// pairwise equal (order matters for lists).
	Equals(Node) bool

	kind() Kind

	walk(Visitor)

	text(dst *strings.Builder, r *renderer)
}

// NodeKind returns the Kind tag of n,
// for use as a RewriteTable key.
func NodeKind(n Node) Kind { return n.kind() }

// Equal returns whether a and b are equivalent.
// a or b may be nil.
func Equal(a, b Node) bool {
	if a == nil {
		return b == nil
	}
	return b != nil && a.Equals(b)
}

// TypeHint is a set of primitive value types
// that a literal (or an expression) may produce.
type TypeHint uint8

const (
	StringHint TypeHint = 1 << iota
	NumberHint
	BooleanHint
	NullHint

	// PrimitiveHints is the TypeHint carried by
	// a literal whose concrete type is not known.
	PrimitiveHints = StringHint | NumberHint | BooleanHint | NullHint
)

// Literal is a Node that is a constant primitive value.
type Literal interface {
	Node
	// Value returns the underlying Go value.
	Value() interface{}
	// TypeHint returns the primitive type tag of the literal.
	TypeHint() TypeHint
}

var (
	// these are all the Literal types
	_ Literal = String("")
	_ Literal = Number(0)
	_ Literal = Bool(true)
	_ Literal = Null{}
)

// IsLiteral returns true if node is a literal value
func IsLiteral(e Node) bool {
	_, ok := e.(Literal)
	return ok
}

// NewLiteral converts a Go value into the
// corresponding Literal node. Only nil, bool,
// string, and numeric values convert; anything
// else is a construction error.
func NewLiteral(v interface{}) (Literal, error) {
	switch v := v.(type) {
	case nil:
		return Null{}, nil
	case bool:
		return Bool(v), nil
	case string:
		return String(v), nil
	case int:
		return Number(v), nil
	case int64:
		return Number(v), nil
	case float64:
		return Number(v), nil
	default:
		return nil, fmt.Errorf("cannot convert %T into a literal", v)
	}
}

// truthy returns whether a literal is truthy:
// non-empty strings, non-zero numbers, and true
// are truthy; null is always falsy.
func truthy(l Literal) bool {
	switch l := l.(type) {
	case String:
		return l != ""
	case Number:
		return l != 0
	case Bool:
		return bool(l)
	default:
		return false
	}
}

// String is a literal string AST node
type String string

func (s String) kind() Kind            { return KindString }
func (s String) walk(v Visitor)        {}
func (s String) Value() interface{}    { return string(s) }
func (s String) TypeHint() TypeHint    { return StringHint }

func (s String) Equals(e Node) bool {
	es, ok := e.(String)
	return ok && s == es
}

// Number is a literal numeric AST node.
// Numbers are stored as float64; integral
// values render without a fractional part.
type Number float64

func (n Number) kind() Kind            { return KindNumber }
func (n Number) walk(v Visitor)        {}
func (n Number) Value() interface{}    { return float64(n) }
func (n Number) TypeHint() TypeHint    { return NumberHint }

func (n Number) Equals(e Node) bool {
	en, ok := e.(Number)
	return ok && n == en
}

// Bool is a literal boolean AST node
type Bool bool

func (b Bool) kind() Kind            { return KindBool }
func (b Bool) walk(v Visitor)        {}
func (b Bool) Value() interface{}    { return bool(b) }
func (b Bool) TypeHint() TypeHint    { return BooleanHint }

func (b Bool) Equals(e Node) bool {
	eb, ok := e.(Bool)
	return ok && b == eb
}

// Null is the literal null AST node
type Null struct{}

func (n Null) kind() Kind            { return KindNull }
func (n Null) walk(v Visitor)        {}
func (n Null) Value() interface{}    { return nil }
func (n Null) TypeHint() TypeHint    { return NullHint }

func (n Null) Equals(e Node) bool {
	_, ok := e.(Null)
	return ok
}

// TimeRange is an interval of time, used as an
// argument to join/sequence timing parameters.
type TimeRange struct {
	Delta time.Duration
}

func (t TimeRange) kind() Kind     { return KindTimeRange }
func (t TimeRange) walk(v Visitor) {}

func (t TimeRange) Equals(e Node) bool {
	et, ok := e.(TimeRange)
	return ok && t.Delta == et.Delta
}

// Seconds produces the TimeRange spanning n seconds.
func Seconds(n float64) TimeRange {
	return TimeRange{Delta: time.Duration(n * float64(time.Second))}
}

// ToTimeRange converts a Number of seconds into a
// TimeRange; a TimeRange converts to itself.
func ToTimeRange(n Node) (TimeRange, bool) {
	switch n := n.(type) {
	case TimeRange:
		return n, true
	case Number:
		return Seconds(float64(n)), true
	default:
		return TimeRange{}, false
	}
}

// EventsRoot is the reserved Field base name that
// addresses the array of correlated events within
// a multi-event (join/sequence) match.
const EventsRoot = "events"

// PathPart is one component of a Field path:
// either a sub-field Key or an array Idx.
type PathPart interface {
	part()
}

// Key is a sub-field name path component.
type Key string

// Idx is an array index path component.
type Idx int

func (Key) part() {}
func (Idx) part() {}

// Field is a root identifier plus a path of
// sub-field keys and array indices into event data.
type Field struct {
	Base string
	Path []PathPart
}

// NewField constructs a field from a base
// identifier and optional path components.
func NewField(base string, path ...PathPart) *Field {
	return &Field{Base: base, Path: path}
}

func (f *Field) kind() Kind     { return KindField }
func (f *Field) walk(v Visitor) {}

func (f *Field) rewrite(r Rewriter) Node {
	return &Field{Base: f.Base, Path: slices.Clone(f.Path)}
}

func (f *Field) Equals(e Node) bool {
	ef, ok := e.(*Field)
	return ok && f.Base == ef.Base && slices.Equal(f.Path, ef.Path)
}

// FullPath returns the base followed by every
// path component, with indices formatted in decimal.
func (f *Field) FullPath() []string {
	full := make([]string, 0, len(f.Path)+1)
	full = append(full, f.Base)
	for _, p := range f.Path {
		switch p := p.(type) {
		case Key:
			full = append(full, string(p))
		case Idx:
			full = append(full, fmt.Sprintf("%d", int(p)))
		}
	}
	return full
}

// EventField decodes a field that addresses one event
// of a multi-event match: events[i].rest decodes as
// (i, rest). Any other field decodes as (0, f).
func (f *Field) EventField() (int, *Field) {
	if f.Base == EventsRoot && len(f.Path) >= 2 {
		idx, iok := f.Path[0].(Idx)
		key, kok := f.Path[1].(Key)
		if iok && kok {
			return int(idx), &Field{Base: string(key), Path: f.Path[2:]}
		}
	}
	return 0, f
}

// FunctionCall is a call into a named function
// with a list of argument expressions.
type FunctionCall struct {
	Name string
	Args []Node
	// AsMethod marks method-call style rendering:
	// the first argument renders as the receiver.
	AsMethod bool
}

// Call yields 'name(args...)'
func Call(name string, args ...Node) *FunctionCall {
	return &FunctionCall{Name: name, Args: args}
}

func (f *FunctionCall) kind() Kind { return KindFunctionCall }

func (f *FunctionCall) walk(v Visitor) {
	for i := range f.Args {
		Walk(v, f.Args[i])
	}
}

func (f *FunctionCall) rewrite(r Rewriter) Node {
	args := make([]Node, len(f.Args))
	for i := range f.Args {
		args[i] = Rewrite(r, f.Args[i])
	}
	return &FunctionCall{Name: f.Name, Args: args, AsMethod: f.AsMethod}
}

func (f *FunctionCall) Equals(e Node) bool {
	ef, ok := e.(*FunctionCall)
	return ok && f.Name == ef.Name && f.AsMethod == ef.AsMethod &&
		slices.EqualFunc(f.Args, ef.Args, Equal)
}

// MathOp is one of the binary arithmetic operations
type MathOp int

const (
	OpMul MathOp = iota
	OpDiv
	OpMod
	OpAdd
	OpSub
)

func (o MathOp) String() string {
	switch o {
	case OpMul:
		return "*"
	case OpDiv:
		return "/"
	case OpMod:
		return "%"
	case OpAdd:
		return "+"
	case OpSub:
		return "-"
	default:
		return fmt.Sprintf("<MathOp=%d>", int(o))
	}
}

// FuncName returns the equivalent function-call
// name for the operator.
func (o MathOp) FuncName() string {
	switch o {
	case OpMul:
		return "multiply"
	case OpDiv:
		return "divide"
	case OpMod:
		return "modulo"
	case OpAdd:
		return "add"
	case OpSub:
		return "subtract"
	default:
		return ""
	}
}

func (o MathOp) multiplicative() bool { return o <= OpMod }

func (o MathOp) apply(left, right float64) float64 {
	switch o {
	case OpMul:
		return left * right
	case OpDiv:
		return left / right
	case OpMod:
		return math.Mod(left, right)
	case OpAdd:
		return left + right
	default:
		return left - right
	}
}

// MathOperation is a binary arithmetic expression
type MathOperation struct {
	Left  Node
	Op    MathOp
	Right Node
}

// NewMath yields '<left> <op> <right>'
func NewMath(left Node, op MathOp, right Node) *MathOperation {
	return &MathOperation{Left: left, Op: op, Right: right}
}

func (m *MathOperation) kind() Kind { return KindMathOperation }

func (m *MathOperation) walk(v Visitor) {
	Walk(v, m.Left)
	Walk(v, m.Right)
}

func (m *MathOperation) rewrite(r Rewriter) Node {
	return &MathOperation{Left: Rewrite(r, m.Left), Op: m.Op, Right: Rewrite(r, m.Right)}
}

func (m *MathOperation) Equals(e Node) bool {
	em, ok := e.(*MathOperation)
	return ok && m.Op == em.Op && m.Left.Equals(em.Left) && m.Right.Equals(em.Right)
}

// ToFunctionCall converts the operation into the
// equivalent named function call.
func (m *MathOperation) ToFunctionCall() *FunctionCall {
	return Call(m.Op.FuncName(), m.Left, m.Right)
}

// CmpOp is a comparison operation type
type CmpOp int

const (
	Less CmpOp = iota
	LessEquals
	Equals
	NotEquals
	GreaterEquals
	Greater
)

func (c CmpOp) String() string {
	switch c {
	case Less:
		return "<"
	case LessEquals:
		return "<="
	case Equals:
		return "=="
	case NotEquals:
		return "!="
	case GreaterEquals:
		return ">="
	case Greater:
		return ">"
	default:
		return "<unknown cmp op>"
	}
}

// Comparison represents '<left> <op> <right>'
type Comparison struct {
	Left  Node
	Op    CmpOp
	Right Node
}

// Compare generates a comparison operation
// of the given type and with the given arguments
func Compare(op CmpOp, left, right Node) *Comparison {
	return &Comparison{Left: left, Op: op, Right: right}
}

func (c *Comparison) kind() Kind { return KindComparison }

func (c *Comparison) walk(v Visitor) {
	Walk(v, c.Left)
	Walk(v, c.Right)
}

func (c *Comparison) rewrite(r Rewriter) Node {
	return &Comparison{Left: Rewrite(r, c.Left), Op: c.Op, Right: Rewrite(r, c.Right)}
}

func (c *Comparison) Equals(e Node) bool {
	ec, ok := e.(*Comparison)
	return ok && c.Op == ec.Op && c.Left.Equals(ec.Left) && c.Right.Equals(ec.Right)
}

// InSet is set membership: '<expr> in (<container>...)'
type InSet struct {
	Expr      Node
	Container []Node
}

// In yields '<expr> in (values...)'
func In(e Node, values ...Node) *InSet {
	return &InSet{Expr: e, Container: values}
}

func (s *InSet) kind() Kind { return KindInSet }

func (s *InSet) walk(v Visitor) {
	Walk(v, s.Expr)
	for i := range s.Container {
		Walk(v, s.Container[i])
	}
}

func (s *InSet) rewrite(r Rewriter) Node {
	container := make([]Node, len(s.Container))
	for i := range s.Container {
		container[i] = Rewrite(r, s.Container[i])
	}
	return &InSet{Expr: Rewrite(r, s.Expr), Container: container}
}

func (s *InSet) Equals(e Node) bool {
	es, ok := e.(*InSet)
	return ok && s.Expr.Equals(es.Expr) &&
		slices.EqualFunc(s.Container, es.Container, Equal)
}

// IsLiteral returns whether every container member is a literal.
func (s *InSet) IsLiteral() bool {
	for i := range s.Container {
		if !IsLiteral(s.Container[i]) {
			return false
		}
	}
	return true
}

// IsDynamic returns whether no container member is a literal.
func (s *InSet) IsDynamic() bool {
	for i := range s.Container {
		if IsLiteral(s.Container[i]) {
			return false
		}
	}
	return true
}

// Synonym returns the equivalent OR-of-equals expression.
func (s *InSet) Synonym() *Or {
	terms := make([]Node, len(s.Container))
	for i := range s.Container {
		terms[i] = Compare(Equals, s.Expr, s.Container[i])
	}
	return &Or{Terms: terms}
}

// And performs a boolean 'and' on a list of terms.
// Canonical (optimized) compounds always hold at
// least two terms.
type And struct {
	Terms []Node
}

// NewAnd yields '<terms[0]> and <terms[1]> and ...'
func NewAnd(terms ...Node) *And { return &And{Terms: terms} }

func (a *And) kind() Kind { return KindAnd }

func (a *And) walk(v Visitor) {
	for i := range a.Terms {
		Walk(v, a.Terms[i])
	}
}

func (a *And) rewrite(r Rewriter) Node {
	terms := make([]Node, len(a.Terms))
	for i := range a.Terms {
		terms[i] = Rewrite(r, a.Terms[i])
	}
	return &And{Terms: terms}
}

func (a *And) Equals(e Node) bool {
	ea, ok := e.(*And)
	return ok && slices.EqualFunc(a.Terms, ea.Terms, Equal)
}

// Or performs a boolean 'or' on a list of terms.
type Or struct {
	Terms []Node
}

// NewOr yields '<terms[0]> or <terms[1]> or ...'
func NewOr(terms ...Node) *Or { return &Or{Terms: terms} }

func (o *Or) kind() Kind { return KindOr }

func (o *Or) walk(v Visitor) {
	for i := range o.Terms {
		Walk(v, o.Terms[i])
	}
}

func (o *Or) rewrite(r Rewriter) Node {
	terms := make([]Node, len(o.Terms))
	for i := range o.Terms {
		terms[i] = Rewrite(r, o.Terms[i])
	}
	return &Or{Terms: terms}
}

func (o *Or) Equals(e Node) bool {
	eo, ok := e.(*Or)
	return ok && slices.EqualFunc(o.Terms, eo.Terms, Equal)
}

// Not negates a boolean expression.
type Not struct {
	Term Node
}

// NewNot yields 'not <term>'
func NewNot(term Node) *Not { return &Not{Term: term} }

func (n *Not) kind() Kind { return KindNot }

func (n *Not) walk(v Visitor) {
	Walk(v, n.Term)
}

func (n *Not) rewrite(r Rewriter) Node {
	return &Not{Term: Rewrite(r, n.Term)}
}

func (n *Not) Equals(e Node) bool {
	en, ok := e.(*Not)
	return ok && n.Term.Equals(en.Term)
}

// Relation is the cross-event relationship tested
// by a NamedSubquery.
type Relation string

const (
	Descendant Relation = "descendant"
	Child      Relation = "child"
	Event      Relation = "event"
)

// NamedSubquery is a relationship predicate over a
// nested event query: '<relation> of [<query>]'.
type NamedSubquery struct {
	Relation Relation
	Query    *EventQuery
}

func (n *NamedSubquery) kind() Kind { return KindNamedSubquery }

func (n *NamedSubquery) walk(v Visitor) {
	Walk(v, n.Query)
}

func (n *NamedSubquery) rewrite(r Rewriter) Node {
	return &NamedSubquery{Relation: n.Relation, Query: Rewrite(r, n.Query).(*EventQuery)}
}

func (n *NamedSubquery) Equals(e Node) bool {
	en, ok := e.(*NamedSubquery)
	return ok && n.Relation == en.Relation && n.Query.Equals(en.Query)
}
