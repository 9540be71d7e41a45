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

// Visitor is an interface that must
// be satisfied by the argument to Walk.
type Visitor interface {
	// Visit is called with the node
	// currently being visited.
	// If the returned Visitor is nil,
	// then walking terminates; otherwise
	// each of the child nodes of the visited
	// node is visited with the returned Visitor.
	Visit(Node) Visitor
}

// Walk performs a preorder traversal
// of the AST given by n, calling
// v.Visit on each node. If any call
// to v.Visit returns nil, the
// sub-tree of the current node is not
// traversed.
func Walk(v Visitor, n Node) {
	if n == nil {
		return
	}
	v = v.Visit(n)
	if v == nil {
		return
	}
	n.walk(v)
}

type walkfn func(Node) bool

func (w walkfn) Visit(n Node) Visitor {
	if w(n) {
		return w
	}
	return nil
}

// Visit calls fn on every node in n
// in preorder. If fn returns false,
// the children of the current node
// are not visited.
func Visit(n Node, fn func(Node) bool) {
	Walk(walkfn(fn), n)
}

// Flatten returns every node in n
// in preorder traversal order,
// beginning with n itself.
// The slice is materialized up front;
// use Walk to visit nodes without
// allocating the whole traversal.
func Flatten(n Node) []Node {
	var out []Node
	Visit(n, func(n Node) bool {
		out = append(out, n)
		return true
	})
	return out
}

// Rewriter is an interface to be used
// to rewrite AST nodes.
type Rewriter interface {
	// Rewrite is applied to AST nodes
	// in depth-first order, and each node
	// is replaced with the returned node.
	Rewrite(Node) Node

	// Walk is called during AST traversal,
	// and the returned Rewriter is used for
	// the child nodes of n; if the returned
	// value is nil, the child nodes are
	// not rewritten.
	Walk(Node) Rewriter
}

// nonleaf is implemented by every node
// type that has child nodes. rewrite
// reconstructs the node with each child
// replaced by Rewrite(r, child); it never
// mutates the receiver.
type nonleaf interface {
	Node
	rewrite(r Rewriter) Node
}

// Rewrite recursively applies a Rewriter
// to an AST in depth-first order. Nodes
// are reconstructed rather than modified,
// so the input tree is left intact and may
// be shared with the result.
func Rewrite(r Rewriter, n Node) Node {
	if inner := r.Walk(n); inner != nil {
		if nl, ok := n.(nonleaf); ok {
			n = nl.rewrite(inner)
		}
	}
	return r.Rewrite(n)
}

// RewriteFunc is a per-kind rewrite callback.
type RewriteFunc func(Node) Node

// RewriteTable is a Rewriter that dispatches
// to a registered callback based on the Kind
// of each visited node. Kinds with no entry
// are passed through unchanged.
type RewriteTable map[Kind]RewriteFunc

// Rewrite implements Rewriter.Rewrite.
func (t RewriteTable) Rewrite(n Node) Node {
	if fn, ok := t[n.kind()]; ok {
		return fn(n)
	}
	return n
}

// Walk implements Rewriter.Walk.
func (t RewriteTable) Walk(n Node) Rewriter { return t }

// Copy returns a deep copy of n.
func Copy(n Node) Node {
	return Rewrite(RewriteTable{}, n)
}
