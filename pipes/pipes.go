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

// Package pipes describes the post-processing
// stages that may follow a query. The package
// holds pipe descriptions only; executing a
// pipeline over matched events is up to the
// engine hosting the queries.
package pipes

import (
	"fmt"

	"github.com/itsnotapt/eql/expr"
)

// Schema describes the shape of the events
// flowing between pipes: field name to type tag.
type Schema map[string]string

// Kind describes one pipe command.
type Kind struct {
	Name string

	// MinArgs and MaxArgs bound the argument
	// count; MaxArgs < 0 means no upper bound.
	MinArgs, MaxArgs int

	// OutputSchemas, when non-nil, derives the
	// output event schemas from the command
	// arguments and the input schemas.
	OutputSchemas func(args []expr.Node, inputs []Schema) []Schema
}

// CheckArity returns an error if a command
// with n arguments is out of bounds.
func (k *Kind) CheckArity(n int) error {
	bad := n < k.MinArgs || (k.MaxArgs >= 0 && n > k.MaxArgs)
	if !bad {
		return nil
	}
	switch {
	case k.MaxArgs < 0:
		return fmt.Errorf("pipe %s: expected at least %d arguments; found %d", k.Name, k.MinArgs, n)
	case k.MinArgs == k.MaxArgs:
		return fmt.Errorf("pipe %s: expected %d arguments; found %d", k.Name, k.MinArgs, n)
	default:
		return fmt.Errorf("pipe %s: expected %d to %d arguments; found %d", k.Name, k.MinArgs, k.MaxArgs, n)
	}
}

// Registry maps pipe names to their kinds.
// Registries are append-only; construct one per
// deployment and share it.
type Registry struct {
	kinds map[string]*Kind
}

// NewRegistry builds a registry holding kinds.
func NewRegistry(kinds ...*Kind) (*Registry, error) {
	r := &Registry{kinds: make(map[string]*Kind, len(kinds))}
	for _, k := range kinds {
		if err := r.Register(k); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds k to the registry. Registering a
// name twice is an error that names both the
// existing and the new kind.
func (r *Registry) Register(k *Kind) error {
	if prev, ok := r.kinds[k.Name]; ok {
		return fmt.Errorf("pipe %q already registered (existing %p, new %p)", k.Name, prev, k)
	}
	r.kinds[k.Name] = k
	return nil
}

// Lookup returns the kind registered under name,
// or nil if there is none.
func (r *Registry) Lookup(name string) *Kind {
	if r == nil {
		return nil
	}
	return r.kinds[name]
}

// Validate checks that cmd names a registered
// pipe and carries an acceptable argument count.
func (r *Registry) Validate(cmd *expr.PipeCommand) error {
	k := r.Lookup(cmd.Name)
	if k == nil {
		return fmt.Errorf("unknown pipe %q", cmd.Name)
	}
	return k.CheckArity(len(cmd.Args))
}

func passthrough(args []expr.Node, inputs []Schema) []Schema {
	return inputs
}

// Standard returns a registry holding the
// standard pipe kinds.
func Standard() *Registry {
	r, err := NewRegistry(
		&Kind{Name: "count", MinArgs: 0, MaxArgs: -1,
			OutputSchemas: func(args []expr.Node, inputs []Schema) []Schema {
				out := Schema{"count": "number", "percent": "number"}
				if len(args) > 0 {
					out["key"] = "string"
				}
				return []Schema{out}
			},
		},
		&Kind{Name: "filter", MinArgs: 1, MaxArgs: 1, OutputSchemas: passthrough},
		&Kind{Name: "head", MinArgs: 0, MaxArgs: 1, OutputSchemas: passthrough},
		&Kind{Name: "tail", MinArgs: 0, MaxArgs: 1, OutputSchemas: passthrough},
		&Kind{Name: "sort", MinArgs: 1, MaxArgs: -1, OutputSchemas: passthrough},
		&Kind{Name: "unique", MinArgs: 1, MaxArgs: -1, OutputSchemas: passthrough},
	)
	if err != nil {
		// the catalog above has no duplicates
		panic(err)
	}
	return r
}
