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
package expand

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/consensys/go-kscript/pkg/kscript/ast"
	"github.com/consensys/go-kscript/pkg/kscript/diag"
	"github.com/consensys/go-kscript/pkg/kscript/macro"
	"github.com/consensys/go-kscript/pkg/kscript/symbol"
)

// Expander inlines macro invocations.  An expander holds no state of its own
// beyond its configuration, and may be used by concurrent expansions.
type Expander struct {
	// Trace (if set) is informed of every node produced during expansion
	// together with the node it was produced from, such that source mappings
	// can be carried over.  When used concurrently, this must be safe for
	// concurrent use.
	Trace func(from ast.Node, to ast.Node)
}

// NewExpander constructs an expander which records no source mappings.
func NewExpander() *Expander {
	return &Expander{}
}

// Expand a macro definition for a given argument binding at a given call site.
// Every macro-local identifier is renamed to a fresh name.  Parameters are
// replaced by their bound expressions (which are not renamed, since they are
// already valid at the call site).  Free identifiers resolve against the
// definition scope for hygienic macros, or against the call-site scope for
// non-hygienic macros.  This returns the expanded statements along with the
// scope in which they live, which is a child of the call-site scope.
func (p *Expander) Expand(def *macro.Definition, binding *macro.ArgumentBinding,
	site *symbol.Scope) ([]ast.Stmt, *symbol.Scope, error) {
	//
	var e = &expansion{def: def, binding: binding, site: site, scope: site.Nested(),
		renames: make(map[string]string), trace: p.Trace}
	// Allocate fresh names for locals
	for _, local := range def.Locals() {
		fresh := symbol.Fresh(local)
		e.renames[local] = fresh
		e.scope.Declare(local, symbol.Binding{Name: fresh, Site: binding.Site()})
	}
	//
	e.rewriter = ast.Rewriter{Expr: e.expr, Bind: e.bind, Trace: p.Trace}
	//
	stmts, err := e.rewriter.Stmts(def.Body())
	if err != nil {
		return nil, nil, err
	}
	//
	log.Debugf("expanded %s(%s) into %d statements", def.Name(), binding.String(), len(stmts))
	//
	return stmts, e.scope, nil
}

// State of a single expansion.
type expansion struct {
	def     *macro.Definition
	binding *macro.ArgumentBinding
	// Scope of the call site
	site *symbol.Scope
	// Scope of the expanded statements
	scope    *symbol.Scope
	renames  map[string]string
	rewriter ast.Rewriter
	trace    func(from ast.Node, to ast.Node)
}

func (p *expansion) expr(e ast.Expr) (ast.Expr, error) {
	switch e := e.(type) {
	case *ast.Name:
		return p.name(e)
	case *ast.Subscript:
		return p.subscript(e)
	case *ast.Call:
		return p.call(e)
	}
	// Default
	return nil, nil
}

func (p *expansion) bind(n *ast.Name) (ast.Expr, error) {
	if fresh, ok := p.renames[n.Id]; ok {
		return p.traced(n, &ast.Name{Id: fresh}), nil
	}
	// Should be unreachable for a definition which passed analysis.
	return nil, diag.Definitionf(n, "cannot assign to %s in macro %s", n.Id, p.def.Name())
}

func (p *expansion) name(n *ast.Name) (ast.Expr, error) {
	if param, ok := p.def.Parameter(n.Id); ok {
		return p.splice(n, p.value(param)), nil
	} else if fresh, ok := p.renames[n.Id]; ok {
		return p.traced(n, &ast.Name{Id: fresh}), nil
	}
	//
	return p.free(n)
}

// Resolve a free identifier.
func (p *expansion) free(n *ast.Name) (ast.Expr, error) {
	var (
		value symbol.Value
		ok    bool
	)
	//
	if p.def.Hygienic() {
		value, ok = p.def.Scope().Lookup(n.Id)
	} else if b, local := p.site.Lookup(n.Id); local {
		return p.traced(n, &ast.Name{Id: b.Name}), nil
	} else {
		value, ok = p.site.Global().Lookup(n.Id)
	}
	//
	if !ok {
		return nil, diag.Unboundf(n, "unbound identifier %s in macro %s", n.Id, p.def.Name())
	}
	//
	switch value.Kind {
	case symbol.EXPR:
		return p.clone(value.Expr), nil
	case symbol.MACRO:
		return p.traced(n, &ast.MacroRef{Macro: value.Macro}), nil
	}
	// Builtins are referred to by name, which a local at the call site would
	// capture.
	if b, local := p.site.Lookup(n.Id); local && b.Name == n.Id {
		return nil, diag.Definitionf(n, "%s in hygienic macro %s is shadowed at the call site", n.Id,
			p.def.Name())
	}
	//
	return p.traced(n, &ast.Name{Id: n.Id}), nil
}

// Resolve constant indexing of a variadic parameter, such as "args[0]" or
// "kwargs["key"]".
func (p *expansion) subscript(e *ast.Subscript) (ast.Expr, error) {
	n, ok := e.Value.(*ast.Name)
	if !ok {
		return nil, nil
	}
	//
	param, ok := p.def.Parameter(n.Id)
	if !ok || !param.IsVariadic() {
		return nil, nil
	}
	//
	value := p.value(param)
	//
	if index, ok := constantIndex(e.Index); ok && param.Kind == ast.VAR_POSITIONAL {
		if elem, ok := value.Index(index); ok {
			return p.clone(elem), nil
		}
		//
		return nil, diag.Arityf(e, "index %d out of range for %s (%d arguments given)", index, param.Name,
			len(value.Sequence))
	} else if key, ok := e.Index.(*ast.StrLit); ok && param.Kind == ast.VAR_KEYWORD {
		if elem, ok := value.Key(key.Value); ok {
			return p.clone(elem), nil
		}
		//
		return nil, diag.Arityf(e, "missing keyword argument %q for %s", key.Value, param.Name)
	}
	//
	return nil, nil
}

// Forward spreads of variadic parameters, as in "f(*args, **kwargs)".
func (p *expansion) call(e *ast.Call) (ast.Expr, error) {
	if !p.hasVariadicSpread(e) {
		return nil, nil
	}
	//
	fn, err := p.rewriter.Rewrite(e.Fn)
	if err != nil {
		return nil, err
	}
	//
	call := &ast.Call{Fn: fn}
	//
	for _, arg := range e.Args {
		if s, ok := p.variadic(arg, ast.VAR_POSITIONAL); ok {
			for _, elem := range p.value(s).Sequence {
				call.Args = append(call.Args, p.clone(elem))
			}
		} else if narg, err := p.rewriter.Rewrite(arg); err != nil {
			return nil, err
		} else {
			call.Args = append(call.Args, narg)
		}
	}
	//
	for _, kw := range e.Keywords {
		if s, ok := p.variadic(kw, ast.VAR_KEYWORD); ok {
			for _, entry := range p.value(s).Mapping {
				call.Keywords = append(call.Keywords, &ast.Keyword{Name: entry.Name, Value: p.clone(entry.Value)})
			}
		} else if nkws, err := p.rewriter.Keywords([]*ast.Keyword{kw}); err != nil {
			return nil, err
		} else {
			call.Keywords = append(call.Keywords, nkws...)
		}
	}
	//
	return p.traced(e, call), nil
}

func (p *expansion) hasVariadicSpread(e *ast.Call) bool {
	for _, arg := range e.Args {
		if _, ok := p.variadic(arg, ast.VAR_POSITIONAL); ok {
			return true
		}
	}
	//
	for _, kw := range e.Keywords {
		if _, ok := p.variadic(kw, ast.VAR_KEYWORD); ok {
			return true
		}
	}
	//
	return false
}

// Check whether a given call argument spreads a variadic parameter of a given
// kind (i.e. "*args" or "**kwargs").
func (p *expansion) variadic(arg ast.Node, kind ast.ParamKind) (macro.Parameter, bool) {
	var spread ast.Expr
	//
	switch arg := arg.(type) {
	case *ast.Starred:
		spread = arg.Value
	case *ast.Keyword:
		if arg.Name == "" {
			spread = arg.Value
		}
	}
	//
	if n, ok := spread.(*ast.Name); ok {
		if param, ok := p.def.Parameter(n.Id); ok && param.Kind == kind {
			return param, true
		}
	}
	//
	return macro.Parameter{}, false
}

// Splice the value bound to a parameter.  Bare variadic parameters become
// tuple or dictionary literals.
func (p *expansion) splice(n *ast.Name, value macro.Value) ast.Expr {
	switch value.Kind {
	case macro.SEQUENCE:
		var elems = make([]ast.Expr, len(value.Sequence))
		//
		for i, e := range value.Sequence {
			elems[i] = p.clone(e)
		}
		//
		return p.traced(n, &ast.Tuple{Elems: elems})
	case macro.MAPPING:
		var dict = &ast.Dict{}
		//
		for _, kw := range value.Mapping {
			dict.Keys = append(dict.Keys, p.traced(kw, &ast.StrLit{Value: kw.Name}))
			dict.Values = append(dict.Values, p.clone(kw.Value))
		}
		//
		return p.traced(n, dict)
	default:
		return p.clone(value.Expr)
	}
}

func (p *expansion) value(param macro.Parameter) macro.Value {
	value, ok := p.binding.Get(param.Name)
	//
	if !ok {
		panic(fmt.Sprintf("parameter %s of macro %s missing from binding", param.Name, p.def.Name()))
	}
	//
	return value
}

// Clone an expression given at the call site (or in the definition scope),
// retaining its source mappings.
func (p *expansion) clone(e ast.Expr) ast.Expr {
	var r = ast.Rewriter{Trace: p.trace}
	// Cannot fail without hooks
	ne, _ := r.Rewrite(e)
	//
	return ne
}

func (p *expansion) traced(from ast.Node, to ast.Expr) ast.Expr {
	if p.trace != nil {
		p.trace(from, to)
	}
	//
	return to
}

// Determine the value of a constant (possibly negative) integer index.
func constantIndex(e ast.Expr) (int64, bool) {
	switch e := e.(type) {
	case *ast.IntLit:
		return e.Value, true
	case *ast.UnaryOp:
		if lit, ok := e.Operand.(*ast.IntLit); ok && e.Op == "-" {
			return -lit.Value, true
		}
	}
	//
	return 0, false
}
