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
package macro

import (
	"maps"

	"go.uber.org/multierr"

	"github.com/consensys/go-kscript/pkg/kscript/ast"
	"github.com/consensys/go-kscript/pkg/kscript/diag"
)

// Determine the identifiers bound within a macro body (i.e. its macro-locals),
// in order of first binding.  This is purely structural: a name is local if it
// is the target of an assignment, loop or with statement anywhere in the body.
// Every use of a local must be preceded on all paths by a binding of it, since
// otherwise the use could refer to either the local or a free identifier of
// the same name.  Bodies which rebind a parameter, or which contain nested
// function definitions, are rejected.
func analyse(params []Parameter, body []ast.Stmt) ([]string, error) {
	var a = analyser{params: make(map[string]bool), locals: make(map[string]bool), reported: make(map[string]bool)}
	//
	for _, p := range params {
		a.params[p.Name] = true
	}
	// Pass 1: collect locals
	a.collect(body)
	//
	if a.errs != nil {
		return nil, a.errs
	}
	// Pass 2: check every use of a local is definitely bound
	a.stmts(body, make(map[string]bool))
	//
	return a.order, a.errs
}

type analyser struct {
	params   map[string]bool
	locals   map[string]bool
	order    []string
	reported map[string]bool
	errs     error
}

func (a *analyser) collect(stmts []ast.Stmt) {
	for _, stmt := range stmts {
		switch s := stmt.(type) {
		case *ast.Assign:
			a.declare(s.Target)
		case *ast.AugAssign:
			a.declare(s.Target)
		case *ast.For:
			a.declare(s.Target)
			a.collect(s.Body)
		case *ast.While:
			a.collect(s.Body)
		case *ast.If:
			a.collect(s.Body)
			a.collect(s.OrElse)
		case *ast.With:
			if s.Target != nil {
				a.declare(s.Target)
			}
			//
			a.collect(s.Body)
		case *ast.FuncDef:
			a.errs = multierr.Append(a.errs, diag.Definitionf(s, "nested function %s not permitted in macro", s.Name))
		}
	}
}

func (a *analyser) declare(target ast.Expr) {
	for _, name := range ast.BoundNames(target) {
		if a.params[name] {
			a.errs = multierr.Append(a.errs, diag.Definitionf(target, "macro body rebinds parameter %s", name))
		} else if !a.locals[name] {
			a.locals[name] = true
			a.order = append(a.order, name)
		}
	}
}

// Check a sequence of statements given the set of definitely bound locals on
// entry, returning the set on exit.
func (a *analyser) stmts(stmts []ast.Stmt, bound map[string]bool) map[string]bool {
	for _, stmt := range stmts {
		bound = a.stmt(stmt, bound)
	}
	//
	return bound
}

func (a *analyser) stmt(stmt ast.Stmt, bound map[string]bool) map[string]bool {
	switch s := stmt.(type) {
	case *ast.ExprStmt:
		a.uses(s.Value, bound)
	case *ast.Assign:
		a.uses(s.Value, bound)
		a.uses(s.Annotation, bound)
		a.target(s.Target, bound)
	case *ast.AugAssign:
		a.uses(s.Value, bound)
		a.uses(s.Target, bound)
	case *ast.For:
		a.uses(s.Iter, bound)
		inner := maps.Clone(bound)
		a.target(s.Target, inner)
		a.stmts(s.Body, inner)
	case *ast.While:
		a.uses(s.Test, bound)
		a.stmts(s.Body, maps.Clone(bound))
	case *ast.If:
		a.uses(s.Test, bound)
		lhs := a.stmts(s.Body, maps.Clone(bound))
		rhs := a.stmts(s.OrElse, maps.Clone(bound))
		// Only names bound on both branches are definitely bound
		bound = make(map[string]bool)
		//
		for name := range lhs {
			if rhs[name] {
				bound[name] = true
			}
		}
	case *ast.With:
		a.uses(s.Context, bound)
		//
		if s.Target != nil {
			a.target(s.Target, bound)
		}
		//
		bound = a.stmts(s.Body, bound)
	case *ast.Return:
		a.uses(s.Value, bound)
	case *ast.Assert:
		a.uses(s.Test, bound)
		a.uses(s.Msg, bound)
	}
	//
	return bound
}

func (a *analyser) target(target ast.Expr, bound map[string]bool) {
	switch t := target.(type) {
	case *ast.Name:
		bound[t.Id] = true
	case *ast.Tuple:
		for _, e := range t.Elems {
			a.target(e, bound)
		}
	case *ast.List:
		for _, e := range t.Elems {
			a.target(e, bound)
		}
	case *ast.Starred:
		a.target(t.Value, bound)
	default:
		a.uses(target, bound)
	}
}

func (a *analyser) uses(e ast.Expr, bound map[string]bool) {
	if e == nil {
		return
	}
	//
	visitNames(e, func(n *ast.Name) {
		if a.locals[n.Id] && !bound[n.Id] && !a.reported[n.Id] {
			a.reported[n.Id] = true
			a.errs = multierr.Append(a.errs, diag.Definitionf(n,
				"identifier %s may refer to either a macro-local or a free identifier", n.Id))
		}
	})
}

// Visit every name used within an expression.
func visitNames(e ast.Expr, fn func(*ast.Name)) {
	var r = ast.Rewriter{Expr: func(e ast.Expr) (ast.Expr, error) {
		if n, ok := e.(*ast.Name); ok {
			fn(n)
		}
		//
		return nil, nil
	}}
	// Cannot fail
	_, _ = r.Rewrite(e)
}
