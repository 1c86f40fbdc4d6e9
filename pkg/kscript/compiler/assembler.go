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
package compiler

import (
	"slices"

	log "github.com/sirupsen/logrus"

	"github.com/consensys/go-kscript/pkg/kscript/ast"
	"github.com/consensys/go-kscript/pkg/kscript/diag"
	"github.com/consensys/go-kscript/pkg/kscript/expand"
	"github.com/consensys/go-kscript/pkg/kscript/macro"
	"github.com/consensys/go-kscript/pkg/kscript/symbol"
	"github.com/consensys/go-kscript/pkg/kscript/types"
)

// DEFAULT_MAX_DEPTH is the default limit on nested macro expansion.
const DEFAULT_MAX_DEPTH = 64

// Splice replaces the statement at a given index of an enclosing sequence with
// a sequence of expanded statements.  The enclosing sequence is not modified.
func Splice(enclosing []ast.Stmt, site int, expanded []ast.Stmt) []ast.Stmt {
	return slices.Concat(enclosing[:site:site], expanded, enclosing[site+1:])
}

// Assembler expands every macro invocation within a function body, repeatedly
// until no invocations remain.  An assembler is used by one assembly at a
// time, though any number of assemblers can share the same (sealed) macro
// definitions.
type Assembler struct {
	maxDepth uint
	expander *expand.Expander
	resolver *types.Resolver
	trace    func(from ast.Node, to ast.Node)
}

// NewAssembler constructs an assembler with a given expansion depth limit.
// The trace function (which may be nil) is informed of every node produced
// along with the node from which it was produced.
func NewAssembler(maxDepth uint, resolver *types.Resolver, trace func(from ast.Node, to ast.Node)) *Assembler {
	return &Assembler{maxDepth, &expand.Expander{Trace: trace}, resolver, trace}
}

// Assemble a sequence of statements within a given scope, producing a new
// sequence with every macro invocation expanded.  Identifiers bound by the
// statements are declared in the scope as they are encountered, such that
// later invocations see them.
func (p *Assembler) Assemble(body []ast.Stmt, scope *symbol.Scope) ([]ast.Stmt, error) {
	return p.assemble(body, scope, 0)
}

func (p *Assembler) assemble(stmts []ast.Stmt, scope *symbol.Scope, depth uint) ([]ast.Stmt, error) {
	var body = slices.Clone(stmts)
	//
	for i := 0; i < len(body); {
		if call, def, ok := invocation(body[i], scope); ok {
			expanded, err := p.invoke(call, def, scope, depth)
			if err != nil {
				return nil, err
			}
			//
			body = Splice(body, i, expanded)
			// Expanded statements are already assembled
			i += len(expanded)
		} else if stmt, err := p.stmt(body[i], scope, depth); err != nil {
			return nil, err
		} else {
			body[i] = stmt
			i++
		}
	}
	//
	return body, nil
}

// Expand a single invocation, and then everything within the expansion.
func (p *Assembler) invoke(call *ast.Call, def *macro.Definition, scope *symbol.Scope,
	depth uint) ([]ast.Stmt, error) {
	//
	if depth >= p.maxDepth {
		return nil, diag.RecursionLimitf(call, "macro expansion of %s exceeds depth limit (%d)", def.Name(),
			p.maxDepth)
	}
	// Arguments are resolved at the call site, though macros they mention are
	// left for expansion.
	norm := p.arguments(scope)
	//
	args, err := norm.Exprs(call.Args)
	if err != nil {
		return nil, err
	}
	//
	kwargs, err := norm.Keywords(call.Keywords)
	if err != nil {
		return nil, err
	}
	//
	inv, err := macro.NewInvocation(call, &ast.Call{Fn: call.Fn, Args: args, Keywords: kwargs})
	if err != nil {
		return nil, err
	}
	//
	binding, err := macro.Bind(def, inv)
	if err != nil {
		return nil, err
	}
	//
	expanded, escope, err := p.expander.Expand(def, binding, scope)
	if err != nil {
		return nil, err
	}
	//
	log.Debugf("expanding %s at depth %d", def.Name(), depth)
	//
	return p.assemble(expanded, escope, depth+1)
}

// Assemble a statement which is not itself an invocation, though it may
// contain invocations in nested bodies.
//
// nolint
func (p *Assembler) stmt(stmt ast.Stmt, scope *symbol.Scope, depth uint) (ast.Stmt, error) {
	var (
		norm = p.normaliser(scope)
		ns   ast.Stmt
		errs [4]error
	)
	//
	switch s := stmt.(type) {
	case *ast.ExprStmt:
		value, err := norm.Expr(s.Value)
		ns, errs[0] = &ast.ExprStmt{Value: value}, err
	case *ast.Assign:
		n := &ast.Assign{}
		n.Value, errs[0] = optional(norm, s.Value)
		n.Annotation, errs[1] = optional(norm, s.Annotation)
		n.Target, errs[2] = p.target(s.Target, scope)
		ns = n
	case *ast.AugAssign:
		n := &ast.AugAssign{Op: s.Op}
		n.Value, errs[0] = norm.Expr(s.Value)
		n.Target, errs[1] = p.target(s.Target, scope)
		ns = n
	case *ast.For:
		var inner = scope.Nested()
		//
		n := &ast.For{}
		n.Iter, errs[0] = norm.Expr(s.Iter)
		n.Target, errs[1] = p.target(s.Target, inner)
		n.Body, errs[2] = p.assemble(s.Body, inner, depth)
		canonicaliseLoop(n)
		ns = n
	case *ast.While:
		n := &ast.While{}
		n.Test, errs[0] = norm.Expr(s.Test)
		n.Body, errs[1] = p.assemble(s.Body, scope.Nested(), depth)
		ns = n
	case *ast.If:
		n := &ast.If{}
		n.Test, errs[0] = norm.Expr(s.Test)
		n.Body, errs[1] = p.assemble(s.Body, scope.Nested(), depth)
		n.OrElse, errs[2] = p.assemble(s.OrElse, scope.Nested(), depth)
		ns = n
	case *ast.With:
		var inner = scope.Nested()
		//
		n := &ast.With{}
		n.Context, errs[0] = norm.Expr(s.Context)
		//
		if s.Target != nil {
			n.Target, errs[1] = p.target(s.Target, inner)
		}
		//
		n.Body, errs[2] = p.assemble(s.Body, inner, depth)
		ns = n
	case *ast.Return:
		value, err := optional(norm, s.Value)
		ns, errs[0] = &ast.Return{Value: value}, err
	case *ast.Assert:
		n := &ast.Assert{}
		n.Test, errs[0] = norm.Expr(s.Test)
		n.Msg, errs[1] = optional(norm, s.Msg)
		ns = n
	case *ast.Pass, *ast.Break, *ast.Continue:
		return stmt, nil
	case *ast.FuncDef:
		return nil, diag.Definitionf(s, "nested function definition %s not permitted", s.Name)
	default:
		return nil, diag.Definitionf(stmt, "unexpected statement %s", stmt.String())
	}
	//
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	//
	if p.trace != nil {
		p.trace(stmt, ns)
	}
	//
	return ns, nil
}

// Assemble an assignment target, declaring any identifiers it binds.
func (p *Assembler) target(target ast.Expr, scope *symbol.Scope) (ast.Expr, error) {
	switch t := target.(type) {
	case *ast.Name:
		scope.DeclareLocal(t.Id, t)
		return p.traced(t, &ast.Name{Id: t.Id}), nil
	case *ast.Tuple:
		elems, err := p.targets(t.Elems, scope)
		if err != nil {
			return nil, err
		}
		//
		return p.traced(t, &ast.Tuple{Elems: elems}), nil
	case *ast.List:
		elems, err := p.targets(t.Elems, scope)
		if err != nil {
			return nil, err
		}
		//
		return p.traced(t, &ast.List{Elems: elems}), nil
	case *ast.Starred:
		value, err := p.target(t.Value, scope)
		if err != nil {
			return nil, err
		}
		//
		return p.traced(t, &ast.Starred{Value: value}), nil
	}
	// Subscripts and attributes bind nothing
	return p.normaliser(scope).Expr(target)
}

func (p *Assembler) targets(targets []ast.Expr, scope *symbol.Scope) ([]ast.Expr, error) {
	var ntargets = make([]ast.Expr, len(targets))
	//
	for i, t := range targets {
		var err error
		//
		if ntargets[i], err = p.target(t, scope); err != nil {
			return nil, err
		}
	}
	//
	return ntargets, nil
}

// Construct a strict normaliser for expressions at a given point.
func (p *Assembler) normaliser(scope *symbol.Scope) *normaliser {
	return newNormaliser(p.resolver, true, func(e ast.Expr) (ast.Expr, error) {
		return p.reference(e, scope, false)
	}, p.trace)
}

// Construct a strict normaliser for the arguments of an invocation.  Since
// binding is lazy, an argument may mention macros (e.g. "run(store(A))") which
// only become invocations once spliced into statement position.
func (p *Assembler) arguments(scope *symbol.Scope) *normaliser {
	return newNormaliser(p.resolver, true, func(e ast.Expr) (ast.Expr, error) {
		return p.reference(e, scope, true)
	}, p.trace)
}

// Resolve an identifier (or macro reference) used in expression position.
// Identifiers bound locally are left alone, whilst those bound to host
// constants are replaced by them.  Macros are only permitted when lazy, in
// which case names bound to macros become macro references.
func (p *Assembler) reference(e ast.Expr, scope *symbol.Scope, lazy bool) (ast.Expr, error) {
	switch e := e.(type) {
	case *ast.MacroRef:
		if !lazy {
			return nil, diag.Definitionf(e, "macro %s used in expression position", e.Macro.MacroName())
		}
	case *ast.Name:
		value, ok := scope.Resolve(e.Id)
		//
		switch {
		case !ok:
			return nil, nil
		case value.Kind == symbol.EXPR:
			return p.clone(e, value.Expr), nil
		case value.Kind == symbol.MACRO && lazy:
			return p.traced(e, &ast.MacroRef{Macro: value.Macro}), nil
		case value.Kind == symbol.MACRO:
			return nil, diag.Definitionf(e, "macro %s used in expression position", e.Id)
		}
	}
	//
	return nil, nil
}

// Clone a host constant for use at a given name, attributing it to that name.
func (p *Assembler) clone(at ast.Node, e ast.Expr) ast.Expr {
	return p.traced(at, ast.CloneExpr(e))
}

func (p *Assembler) traced(from ast.Node, to ast.Expr) ast.Expr {
	if p.trace != nil {
		p.trace(from, to)
	}
	//
	return to
}

// Determine whether a given statement is a macro invocation, as either a call
// of a resolved macro reference or a call of a (non-local) name bound to a
// macro.
func invocation(stmt ast.Stmt, scope *symbol.Scope) (*ast.Call, *macro.Definition, bool) {
	s, ok := stmt.(*ast.ExprStmt)
	if !ok {
		return nil, nil, false
	}
	//
	call, ok := s.Value.(*ast.Call)
	if !ok {
		return nil, nil, false
	}
	//
	var m ast.Macro
	//
	switch fn := call.Fn.(type) {
	case *ast.MacroRef:
		m = fn.Macro
	case *ast.Name:
		if value, ok := scope.Resolve(fn.Id); ok && value.Kind == symbol.MACRO {
			m = value.Macro
		}
	}
	//
	def, ok := m.(*macro.Definition)
	//
	return call, def, ok
}

func optional(norm *normaliser, e ast.Expr) (ast.Expr, error) {
	if e == nil {
		return nil, nil
	}
	//
	return norm.Expr(e)
}
