// Copyright Consensys Software Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with
// the License. You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on
// an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the License for the
// specific language governing permissions and limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0
package symbol

import (
	"github.com/consensys/go-kscript/pkg/kscript/ast"
)

// Binding records the (possibly renamed) identifier to which an original
// identifier refers, along with the node which introduced it.
type Binding struct {
	Name string
	Site ast.Node
}

// Scope represents a region of a function (or expanded macro) body in which
// identifiers can be bound locally.  Scopes are chained, such that a nested
// scope sees every binding of its enclosing scopes unless shadowed.  The
// outermost scope is rooted in a global environment, against which
// identifiers not bound locally are resolved.
//
// A scope is owned by a single expansion and is not safe for concurrent
// modification.
type Scope struct {
	// Enclosing scope, or nil for the outermost scope.
	enclosing *Scope
	// Bindings made in this frame.
	frame map[string]Binding
	// Global environment in which this scope is rooted.
	global *Environment
}

// NewScope constructs an outermost scope rooted in a given global environment.
func NewScope(global *Environment) *Scope {
	return &Scope{nil, make(map[string]Binding), global}
}

// Nested constructs a scope nested within this scope.
func (p *Scope) Nested() *Scope {
	return &Scope{p, make(map[string]Binding), p.global}
}

// Enclosing returns the enclosing scope, or nil if this is the outermost.
func (p *Scope) Enclosing() *Scope {
	return p.enclosing
}

// Global returns the environment in which this scope is rooted.
func (p *Scope) Global() *Environment {
	return p.global
}

// Declare binds an identifier in this frame, shadowing any binding of the same
// identifier in enclosing scopes.
func (p *Scope) Declare(name string, binding Binding) {
	p.frame[name] = binding
}

// DeclareLocal binds an identifier to itself, as happens for ordinary
// (unrenamed) assignments and loop variables.
func (p *Scope) DeclareLocal(name string, site ast.Node) {
	p.Declare(name, Binding{name, site})
}

// IsLocal checks whether an identifier is bound in this frame (ignoring
// enclosing scopes).
func (p *Scope) IsLocal(name string) bool {
	_, ok := p.frame[name]
	return ok
}

// Lookup determines the local binding for an identifier, searching outwards
// through enclosing scopes.  The global environment is not consulted.
func (p *Scope) Lookup(name string) (Binding, bool) {
	for s := p; s != nil; s = s.enclosing {
		if b, ok := s.frame[name]; ok {
			return b, true
		}
	}
	//
	return Binding{}, false
}

// Resolve determines the global value for an identifier which is not bound
// locally.  If the identifier is bound locally, this returns false.
func (p *Scope) Resolve(name string) (Value, bool) {
	if _, ok := p.Lookup(name); ok {
		return Value{}, false
	}
	//
	return p.global.Lookup(name)
}
