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
	"reflect"

	"golang.org/x/exp/slices"
)

// AnyEventType is the event type of a query
// that matches events of every type.
const AnyEventType = "any"

// EventQuery is a single-event query: an event
// type plus a boolean condition over one event.
type EventQuery struct {
	EventType string
	Condition Node
}

func (q *EventQuery) kind() Kind { return KindEventQuery }

func (q *EventQuery) walk(v Visitor) {
	Walk(v, q.Condition)
}

func (q *EventQuery) rewrite(r Rewriter) Node {
	return &EventQuery{EventType: q.EventType, Condition: Rewrite(r, q.Condition)}
}

func (q *EventQuery) Equals(e Node) bool {
	eq, ok := e.(*EventQuery)
	return ok && q.EventType == eq.EventType && q.Condition.Equals(eq.Condition)
}

// NamedParam is a single 'name=value' pair.
type NamedParam struct {
	Name  string
	Value Node
}

// NamedParams is an ordered list of 'name=value'
// pairs attached to a sequence, join, or subquery.
type NamedParams struct {
	Params []NamedParam
}

func (p *NamedParams) kind() Kind { return KindNamedParams }

func (p *NamedParams) walk(v Visitor) {
	for i := range p.Params {
		Walk(v, p.Params[i].Value)
	}
}

func (p *NamedParams) rewrite(r Rewriter) Node {
	params := make([]NamedParam, len(p.Params))
	for i := range p.Params {
		params[i] = NamedParam{Name: p.Params[i].Name, Value: Rewrite(r, p.Params[i].Value)}
	}
	return &NamedParams{Params: params}
}

func (p *NamedParams) Equals(e Node) bool {
	ep, ok := e.(*NamedParams)
	return ok && slices.EqualFunc(p.Params, ep.Params, func(a, b NamedParam) bool {
		return a.Name == b.Name && a.Value.Equals(b.Value)
	})
}

// SubqueryBy is one arm of a join or sequence:
// an event query, optional parameters, and the
// list of join-key expressions.
type SubqueryBy struct {
	Query      *EventQuery
	Params     *NamedParams
	JoinValues []Node
}

func (s *SubqueryBy) kind() Kind { return KindSubqueryBy }

func (s *SubqueryBy) walk(v Visitor) {
	Walk(v, s.Query)
	if s.Params != nil {
		Walk(v, s.Params)
	}
	for i := range s.JoinValues {
		Walk(v, s.JoinValues[i])
	}
}

func (s *SubqueryBy) rewrite(r Rewriter) Node {
	out := &SubqueryBy{Query: Rewrite(r, s.Query).(*EventQuery)}
	if s.Params != nil {
		out.Params = Rewrite(r, s.Params).(*NamedParams)
	}
	out.JoinValues = make([]Node, len(s.JoinValues))
	for i := range s.JoinValues {
		out.JoinValues[i] = Rewrite(r, s.JoinValues[i])
	}
	return out
}

func (s *SubqueryBy) Equals(e Node) bool {
	es, ok := e.(*SubqueryBy)
	if !ok || !s.Query.Equals(es.Query) ||
		!slices.EqualFunc(s.JoinValues, es.JoinValues, Equal) {
		return false
	}
	if s.Params == nil {
		return es.Params == nil
	}
	return es.Params != nil && s.Params.Equals(es.Params)
}

// Join matches when every sub-query matches,
// in any order, correlated on the join keys.
type Join struct {
	Queries []*SubqueryBy
	Until   *SubqueryBy
}

func (j *Join) kind() Kind { return KindJoin }

func (j *Join) walk(v Visitor) {
	for i := range j.Queries {
		Walk(v, j.Queries[i])
	}
	if j.Until != nil {
		Walk(v, j.Until)
	}
}

func (j *Join) rewrite(r Rewriter) Node {
	out := &Join{Queries: make([]*SubqueryBy, len(j.Queries))}
	for i := range j.Queries {
		out.Queries[i] = Rewrite(r, j.Queries[i]).(*SubqueryBy)
	}
	if j.Until != nil {
		out.Until = Rewrite(r, j.Until).(*SubqueryBy)
	}
	return out
}

func (j *Join) Equals(e Node) bool {
	ej, ok := e.(*Join)
	if !ok || !slices.EqualFunc(j.Queries, ej.Queries, func(a, b *SubqueryBy) bool {
		return a.Equals(b)
	}) {
		return false
	}
	if j.Until == nil {
		return ej.Until == nil
	}
	return ej.Until != nil && j.Until.Equals(ej.Until)
}

// Sequence matches when every sub-query matches
// in order, correlated on the join keys, with
// optional timing parameters.
type Sequence struct {
	Queries []*SubqueryBy
	Params  *NamedParams
	Until   *SubqueryBy
}

func (s *Sequence) kind() Kind { return KindSequence }

func (s *Sequence) walk(v Visitor) {
	if s.Params != nil {
		Walk(v, s.Params)
	}
	for i := range s.Queries {
		Walk(v, s.Queries[i])
	}
	if s.Until != nil {
		Walk(v, s.Until)
	}
}

func (s *Sequence) rewrite(r Rewriter) Node {
	out := &Sequence{Queries: make([]*SubqueryBy, len(s.Queries))}
	if s.Params != nil {
		out.Params = Rewrite(r, s.Params).(*NamedParams)
	}
	for i := range s.Queries {
		out.Queries[i] = Rewrite(r, s.Queries[i]).(*SubqueryBy)
	}
	if s.Until != nil {
		out.Until = Rewrite(r, s.Until).(*SubqueryBy)
	}
	return out
}

func (s *Sequence) Equals(e Node) bool {
	es, ok := e.(*Sequence)
	if !ok || !slices.EqualFunc(s.Queries, es.Queries, func(a, b *SubqueryBy) bool {
		return a.Equals(b)
	}) {
		return false
	}
	if s.Params == nil && es.Params != nil || s.Params != nil && es.Params == nil {
		return false
	}
	if s.Params != nil && !s.Params.Equals(es.Params) {
		return false
	}
	if s.Until == nil {
		return es.Until == nil
	}
	return es.Until != nil && s.Until.Equals(es.Until)
}

// PipeCommand is one post-processing stage:
// a pipe name plus its argument expressions.
type PipeCommand struct {
	Name string
	Args []Node
}

func (p *PipeCommand) kind() Kind { return KindPipeCommand }

func (p *PipeCommand) walk(v Visitor) {
	for i := range p.Args {
		Walk(v, p.Args[i])
	}
}

func (p *PipeCommand) rewrite(r Rewriter) Node {
	args := make([]Node, len(p.Args))
	for i := range p.Args {
		args[i] = Rewrite(r, p.Args[i])
	}
	return &PipeCommand{Name: p.Name, Args: args}
}

func (p *PipeCommand) Equals(e Node) bool {
	ep, ok := e.(*PipeCommand)
	return ok && p.Name == ep.Name && slices.EqualFunc(p.Args, ep.Args, Equal)
}

// PipedQuery is a base query (event query,
// sequence, or join) followed by a pipeline
// of post-processing stages.
type PipedQuery struct {
	First Node
	Pipes []*PipeCommand
}

func (q *PipedQuery) kind() Kind { return KindPipedQuery }

func (q *PipedQuery) walk(v Visitor) {
	Walk(v, q.First)
	for i := range q.Pipes {
		Walk(v, q.Pipes[i])
	}
}

func (q *PipedQuery) rewrite(r Rewriter) Node {
	out := &PipedQuery{First: Rewrite(r, q.First)}
	out.Pipes = make([]*PipeCommand, len(q.Pipes))
	for i := range q.Pipes {
		out.Pipes[i] = Rewrite(r, q.Pipes[i]).(*PipeCommand)
	}
	return out
}

func (q *PipedQuery) Equals(e Node) bool {
	eq, ok := e.(*PipedQuery)
	return ok && q.First.Equals(eq.First) &&
		slices.EqualFunc(q.Pipes, eq.Pipes, func(a, b *PipeCommand) bool {
			return a.Equals(b)
		})
}

// EqlAnalytic is a query bundled with free-form
// metadata for persistence and distribution.
type EqlAnalytic struct {
	Query    Node
	Metadata map[string]interface{}
}

func (a *EqlAnalytic) kind() Kind { return KindEqlAnalytic }

func (a *EqlAnalytic) walk(v Visitor) {
	Walk(v, a.Query)
}

func (a *EqlAnalytic) rewrite(r Rewriter) Node {
	meta := make(map[string]interface{}, len(a.Metadata))
	for k, v := range a.Metadata {
		meta[k] = v
	}
	return &EqlAnalytic{Query: Rewrite(r, a.Query), Metadata: meta}
}

func (a *EqlAnalytic) Equals(e Node) bool {
	ea, ok := e.(*EqlAnalytic)
	// metadata values may hold yaml lists and maps,
	// so deep equality is the right relation here
	return ok && a.Query.Equals(ea.Query) &&
		reflect.DeepEqual(a.Metadata, ea.Metadata)
}

func (a *EqlAnalytic) metaString(key string) string {
	if v, ok := a.Metadata[key].(string); ok {
		return v
	}
	return ""
}

// ID returns the analytic's metadata id,
// or "" if none is set.
func (a *EqlAnalytic) ID() string { return a.metaString("id") }

// Name returns the analytic's metadata name,
// or "" if none is set.
func (a *EqlAnalytic) Name() string { return a.metaString("name") }
