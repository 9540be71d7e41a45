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

	"golang.org/x/exp/slices"
)

// Definition is a preprocessor definition:
// a *Constant, a *Macro, or a *CustomMacro.
type Definition interface {
	definitionName() string
}

// macroDef is a callable definition.
type macroDef interface {
	Definition
	expandCall(o *Optimizer, args []Node) (Node, error)
}

// Constant binds a name to a literal value.
// Bare field references to the name substitute
// to the value during preprocessing.
type Constant struct {
	Name  string
	Value Literal
}

func (c *Constant) definitionName() string { return c.Name }

func (c *Constant) kind() Kind { return KindConstant }

func (c *Constant) walk(v Visitor) {
	Walk(v, c.Value)
}

func (c *Constant) Equals(e Node) bool {
	ec, ok := e.(*Constant)
	return ok && c.Name == ec.Name && c.Value.Equals(ec.Value)
}

func (c *Constant) text(dst *strings.Builder, r *renderer) {
	dst.WriteString("const ")
	dst.WriteString(c.Name)
	dst.WriteString(" = ")
	c.Value.text(dst, r)
}

// Macro is a user-defined macro: calls to Name
// expand to Body with each bare parameter
// reference replaced by the matching argument.
type Macro struct {
	Name       string
	Parameters []string
	Body       Node
}

func (m *Macro) definitionName() string { return m.Name }

func (m *Macro) kind() Kind { return KindMacro }

func (m *Macro) walk(v Visitor) {
	Walk(v, m.Body)
}

func (m *Macro) rewrite(r Rewriter) Node {
	return &Macro{Name: m.Name, Parameters: slices.Clone(m.Parameters), Body: Rewrite(r, m.Body)}
}

func (m *Macro) Equals(e Node) bool {
	em, ok := e.(*Macro)
	return ok && m.Name == em.Name &&
		slices.Equal(m.Parameters, em.Parameters) && m.Body.Equals(em.Body)
}

func (m *Macro) text(dst *strings.Builder, r *renderer) {
	dst.WriteString("macro ")
	dst.WriteString(m.Name)
	dst.WriteByte('(')
	dst.WriteString(strings.Join(m.Parameters, ", "))
	dst.WriteByte(')')
	body := r.render(m.Body)
	if len(body) <= 40 && !strings.Contains(body, "\n") {
		dst.WriteByte(' ')
		dst.WriteString(body)
		return
	}
	dst.WriteByte('\n')
	dst.WriteString(indent(body))
}

func (m *Macro) expandCall(o *Optimizer, args []Node) (Node, error) {
	if len(args) != len(m.Parameters) {
		return nil, &ArityError{
			Name: m.Name,
			Min:  len(m.Parameters),
			Max:  len(m.Parameters),
			Got:  len(args),
		}
	}
	subst := make(map[string]Node, len(args))
	for i, p := range m.Parameters {
		a, err := o.Optimize(args[i])
		if err != nil {
			return nil, err
		}
		subst[p] = a
	}
	body := Rewrite(RewriteTable{
		KindField: func(n Node) Node {
			f := n.(*Field)
			if len(f.Path) == 0 {
				if v, ok := subst[f.Base]; ok {
					return v
				}
			}
			return n
		},
	}, m.Body)
	return o.Optimize(body)
}

// CustomMacro is a macro whose expansion is
// computed by a callback rather than by
// parameter substitution.
type CustomMacro struct {
	Name   string
	Expand func(args []Node) (Node, error)
}

func (c *CustomMacro) definitionName() string { return c.Name }

func (c *CustomMacro) expandCall(o *Optimizer, args []Node) (Node, error) {
	opt := make([]Node, len(args))
	for i := range args {
		a, err := o.Optimize(args[i])
		if err != nil {
			return nil, err
		}
		opt[i] = a
	}
	out, err := c.Expand(opt)
	if err != nil {
		return nil, err
	}
	return o.Optimize(out)
}

// PreProcessor expands constants and macros
// within a query. Definitions are loaded up
// front; expansion afterwards is read-only and
// safe for concurrent use.
type PreProcessor struct {
	opt       *Optimizer
	constants map[string]*Constant
	macros    map[string]macroDef
}

// NewPreProcessor builds a preprocessor that
// re-optimizes expansions through opt. A nil
// opt gets a default registry-less optimizer.
func NewPreProcessor(opt *Optimizer, defs ...Definition) (*PreProcessor, error) {
	if opt == nil {
		opt = NewOptimizer(nil)
	}
	p := &PreProcessor{
		opt:       opt,
		constants: make(map[string]*Constant),
		macros:    make(map[string]macroDef),
	}
	for _, d := range defs {
		if err := p.AddDefinition(d); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// AddDefinition loads one definition. A macro
// body is expanded eagerly against the
// definitions already loaded, so later macros
// may call earlier ones. Redefining a constant
// is an error; redefining a macro replaces it.
func (p *PreProcessor) AddDefinition(d Definition) error {
	switch d := d.(type) {
	case *Constant:
		if _, ok := p.constants[d.Name]; ok {
			return fmt.Errorf("constant %q already defined", d.Name)
		}
		p.constants[d.Name] = d
	case *Macro:
		body, err := p.Expand(d.Body)
		if err != nil {
			return fmt.Errorf("macro %q: %w", d.Name, err)
		}
		p.macros[d.Name] = &Macro{Name: d.Name, Parameters: d.Parameters, Body: body}
	case *CustomMacro:
		p.macros[d.Name] = d
	default:
		return fmt.Errorf("unsupported definition type %T", d)
	}
	return nil
}

// Expand returns root with every constant
// reference and macro call replaced by its
// expansion. The input is not modified.
func (p *PreProcessor) Expand(root Node) (Node, error) {
	if len(p.constants) == 0 && len(p.macros) == 0 {
		return root, nil
	}
	var ferr error
	table := RewriteTable{
		KindField: func(n Node) Node {
			f := n.(*Field)
			if len(f.Path) == 0 {
				if c, ok := p.constants[f.Base]; ok {
					return c.Value
				}
			}
			return n
		},
		KindFunctionCall: func(n Node) Node {
			if ferr != nil {
				return n
			}
			call := n.(*FunctionCall)
			d, ok := p.macros[call.Name]
			if !ok {
				return n
			}
			out, err := d.expandCall(p.opt, call.Args)
			if err != nil {
				ferr = err
				return n
			}
			return out
		},
	}
	out := Rewrite(table, root)
	if ferr != nil {
		return nil, ferr
	}
	return out, nil
}

// Copy returns a preprocessor holding the same
// definitions; definitions added to the copy do
// not affect the original.
func (p *PreProcessor) Copy() *PreProcessor {
	out := &PreProcessor{
		opt:       p.opt,
		constants: make(map[string]*Constant, len(p.constants)),
		macros:    make(map[string]macroDef, len(p.macros)),
	}
	for k, v := range p.constants {
		out.constants[k] = v
	}
	for k, v := range p.macros {
		out.macros[k] = v
	}
	return out
}
