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
	"math"
	"strconv"
	"strings"
)

// expression ranks; a child is parenthesized
// when its rank is strictly greater than the
// slot it renders into
const (
	rankNone = iota
	rankLiteral
	rankCall
	rankMul
	rankAdd
	rankCmp
	rankNot
	rankAnd
	rankOr
)

func rankOf(n Node) int {
	switch n := n.(type) {
	case String, Number, Bool, Null:
		return rankLiteral
	case *FunctionCall:
		return rankCall
	case *NamedSubquery:
		return rankCall
	case *MathOperation:
		if n.Op.multiplicative() {
			return rankMul
		}
		return rankAdd
	case *Comparison:
		return rankCmp
	case *InSet:
		return rankCmp
	case *Not:
		// 'not in' renders at comparison rank
		if _, ok := n.Term.(*InSet); ok {
			return rankCmp
		}
		return rankNot
	case *And:
		return rankAnd
	case *Or:
		return rankOr
	default:
		return rankNone
	}
}

type renderer struct {
	funcs  *FuncRegistry
	redact bool
}

// resolve substitutes render shorthand: calls
// with an alternate rendering become their
// substitute node, and a negated substitute
// comparison flips to '!='.
func (r *renderer) resolve(n Node) Node {
	switch n := n.(type) {
	case *FunctionCall:
		if fn := r.funcs.Lookup(n.Name); fn != nil && fn.AltRender != nil {
			if sub, ok := fn.AltRender(n.Args); ok {
				return sub
			}
		}
	case *Not:
		if fc, ok := n.Term.(*FunctionCall); ok {
			if cmp, ok := r.resolve(fc).(*Comparison); ok && cmp.Op == Equals {
				return &Comparison{Left: cmp.Left, Op: NotEquals, Right: cmp.Right}
			}
		}
	}
	return n
}

// childString renders n for a slot of the given
// rank, parenthesizing when necessary.
func (r *renderer) childString(n Node, prec int) string {
	n = r.resolve(n)
	var b strings.Builder
	n.text(&b, r)
	if rankOf(n) > prec {
		return "(" + b.String() + ")"
	}
	return b.String()
}

func (r *renderer) child(dst *strings.Builder, n Node, prec int) {
	dst.WriteString(r.childString(n, prec))
}

func (r *renderer) render(n Node) string {
	var b strings.Builder
	r.resolve(n).text(&b, r)
	return b.String()
}

// indent prefixes every line of s with two
// spaces, keeping blank lines blank.
func indent(s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight("  "+line, " \t")
	}
	return strings.Join(lines, "\n")
}

func formatNumber(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// ToString returns the unredacted query text of n.
//
// NOTE: nodes deliberately do not implement
// fmt.Stringer so that query text is never
// printed unredacted by accident.
func ToString(n Node) string {
	r := &renderer{}
	return r.render(n)
}

// ToRedacted returns the query text of n with
// every string and number literal replaced by a
// deterministic redaction of its value.
func ToRedacted(n Node) string {
	r := &renderer{redact: true}
	return r.render(n)
}

// Renderer renders query text with registry-aware
// shorthand: calls whose Function carries an
// AltRender hook render in their shorthand form.
type Renderer struct {
	Funcs  *FuncRegistry
	Redact bool
}

// Render returns the query text of n.
func (r *Renderer) Render(n Node) string {
	inner := &renderer{funcs: r.Funcs, redact: r.Redact}
	return inner.render(n)
}

func (s String) text(dst *strings.Builder, r *renderer) {
	v := string(s)
	if r.redact {
		v = redactString(v)
	}
	quote(dst, v)
}

func (n Number) text(dst *strings.Builder, r *renderer) {
	v := float64(n)
	if r.redact {
		v = redactNumber(v)
	}
	dst.WriteString(formatNumber(v))
}

func (b Bool) text(dst *strings.Builder, r *renderer) {
	if b {
		dst.WriteString("true")
	} else {
		dst.WriteString("false")
	}
}

func (n Null) text(dst *strings.Builder, r *renderer) {
	dst.WriteString("null")
}

func (t TimeRange) text(dst *strings.Builder, r *renderer) {
	const (
		second = 1
		minute = 60 * second
		hour   = 60 * minute
		day    = 24 * hour
	)
	interval := t.Delta.Seconds()
	decimal := interval
	unit := "s"
	switch {
	case interval >= day:
		decimal, unit = interval/day, "d"
	case interval >= hour:
		decimal, unit = interval/hour, "h"
	case interval >= minute && (math.Mod(interval, minute) == 0 || math.Mod(interval, second) != 0):
		decimal, unit = interval/minute, "m"
	}
	if decimal == math.Trunc(decimal) {
		dst.WriteString(strconv.FormatInt(int64(decimal), 10))
	} else {
		dst.WriteString(strconv.FormatFloat(decimal, 'g', -1, 64))
	}
	dst.WriteString(unit)
}

func (f *Field) text(dst *strings.Builder, r *renderer) {
	dst.WriteString(f.Base)
	for _, p := range f.Path {
		switch p := p.(type) {
		case Key:
			dst.WriteByte('.')
			dst.WriteString(string(p))
		case Idx:
			dst.WriteByte('[')
			dst.WriteString(strconv.Itoa(int(p)))
			dst.WriteByte(']')
		}
	}
}

func (f *FunctionCall) text(dst *strings.Builder, r *renderer) {
	args := f.Args
	if f.AsMethod && len(args) > 0 {
		r.child(dst, args[0], rankCall)
		dst.WriteByte(':')
		args = args[1:]
	}
	dst.WriteString(f.Name)
	dst.WriteByte('(')
	for i := range args {
		if i > 0 {
			dst.WriteString(", ")
		}
		r.child(dst, args[i], rankOr)
	}
	dst.WriteByte(')')
}

func (m *MathOperation) text(dst *strings.Builder, r *renderer) {
	rank := rankOf(m)
	if z, ok := m.Left.(Number); ok && z == 0 && m.Op == OpSub {
		// unary minus
		dst.WriteString("-")
		r.child(dst, m.Right, rank-1)
		return
	}
	r.child(dst, m.Left, rank)
	dst.WriteByte(' ')
	dst.WriteString(m.Op.String())
	dst.WriteByte(' ')
	r.child(dst, m.Right, rank-1)
}

func (c *Comparison) text(dst *strings.Builder, r *renderer) {
	r.child(dst, c.Left, rankCmp-1)
	dst.WriteByte(' ')
	dst.WriteString(c.Op.String())
	dst.WriteByte(' ')
	r.child(dst, c.Right, rankCmp-1)
}

func (s *InSet) text(dst *strings.Builder, r *renderer) {
	s.textOp(dst, r, "in")
}

func (s *InSet) textOp(dst *strings.Builder, r *renderer, op string) {
	members := make([]string, len(s.Container))
	width := 0
	for i := range s.Container {
		members[i] = r.childString(s.Container[i], rankOr)
		width += len(members[i])
	}
	head := r.childString(s.Expr, rankCmp-1) + " " + op + " "
	// the block layout triggers on the members alone
	if len(s.Container) <= 3 || width <= 40 {
		dst.WriteString(head)
		dst.WriteString("(" + strings.Join(members, ", ") + ")")
		return
	}
	dst.WriteString(head)
	dst.WriteString("(\n")
	dst.WriteString(indent(strings.Join(members, ",\n")))
	dst.WriteString("\n)")
}

func compoundText(dst *strings.Builder, r *renderer, terms []Node, op string, rank int) {
	parts := make([]string, len(terms))
	block := len(terms) > 4
	for i := range terms {
		parts[i] = r.childString(terms[i], rank)
		switch r.resolve(terms[i]).(type) {
		case *And, *Or, *NamedSubquery, *InSet:
			block = true
		}
	}
	if !block {
		dst.WriteString(strings.Join(parts, " "+op+" "))
		return
	}
	for i := range parts {
		parts[i] = indent(parts[i])
	}
	dst.WriteString(strings.TrimLeft(strings.Join(parts, " "+op+"\n"), " \t\n"))
}

func (a *And) text(dst *strings.Builder, r *renderer) {
	compoundText(dst, r, a.Terms, "and", rankAnd)
}

func (o *Or) text(dst *strings.Builder, r *renderer) {
	compoundText(dst, r, o.Terms, "or", rankOr)
}

func (n *Not) text(dst *strings.Builder, r *renderer) {
	if s, ok := n.Term.(*InSet); ok {
		s.textOp(dst, r, "not in")
		return
	}
	dst.WriteString("not ")
	r.child(dst, n.Term, rankNot)
}

func (n *NamedSubquery) text(dst *strings.Builder, r *renderer) {
	dst.WriteString(string(n.Relation))
	dst.WriteString(" of [")
	dst.WriteString(r.render(n.Query))
	dst.WriteByte(']')
}

func (q *EventQuery) text(dst *strings.Builder, r *renderer) {
	etype := q.EventType
	if etype == "" {
		etype = AnyEventType
	}
	dst.WriteString(etype)
	cond := r.childString(q.Condition, rankOr)
	if strings.Contains(cond, "\n") {
		dst.WriteString(" where\n")
		dst.WriteString(indent(cond))
		return
	}
	dst.WriteString(" where ")
	dst.WriteString(cond)
}

func (p *NamedParams) text(dst *strings.Builder, r *renderer) {
	for i := range p.Params {
		if i > 0 {
			dst.WriteByte(' ')
		}
		dst.WriteString(p.Params[i].Name)
		dst.WriteByte('=')
		r.child(dst, p.Params[i].Value, rankLiteral)
	}
}

func (s *SubqueryBy) text(dst *strings.Builder, r *renderer) {
	dst.WriteByte('[')
	dst.WriteString(r.render(s.Query))
	dst.WriteByte(']')
	if s.Params != nil && len(s.Params.Params) > 0 {
		dst.WriteByte(' ')
		s.Params.text(dst, r)
	}
	if len(s.JoinValues) > 0 {
		dst.WriteString(" by ")
		for i := range s.JoinValues {
			if i > 0 {
				dst.WriteString(", ")
			}
			r.child(dst, s.JoinValues[i], rankOr)
		}
	}
}

func queriesBlock(r *renderer, queries []*SubqueryBy) string {
	parts := make([]string, len(queries))
	for i := range queries {
		parts[i] = r.render(queries[i])
	}
	return indent(strings.Join(parts, "\n"))
}

func (j *Join) text(dst *strings.Builder, r *renderer) {
	dst.WriteString("join\n")
	dst.WriteString(queriesBlock(r, j.Queries))
	if j.Until != nil {
		dst.WriteString("\nuntil\n")
		dst.WriteString(indent(r.render(j.Until)))
	}
}

func (s *Sequence) text(dst *strings.Builder, r *renderer) {
	dst.WriteString("sequence")
	if s.Params != nil && len(s.Params.Params) > 0 {
		dst.WriteString(" with ")
		s.Params.text(dst, r)
	}
	dst.WriteByte('\n')
	dst.WriteString(queriesBlock(r, s.Queries))
	if s.Until != nil {
		dst.WriteString("\nuntil\n")
		dst.WriteString(indent(r.render(s.Until)))
	}
}

func (p *PipeCommand) text(dst *strings.Builder, r *renderer) {
	dst.WriteString(p.Name)
	for i := range p.Args {
		if i > 0 {
			dst.WriteString(",")
		}
		dst.WriteByte(' ')
		r.child(dst, p.Args[i], rankOr)
	}
}

func (q *PipedQuery) text(dst *strings.Builder, r *renderer) {
	dst.WriteString(r.render(q.First))
	for i := range q.Pipes {
		dst.WriteString("\n| ")
		q.Pipes[i].text(dst, r)
	}
}

func (a *EqlAnalytic) text(dst *strings.Builder, r *renderer) {
	dst.WriteString(r.render(a.Query))
}
