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
	"fmt"
	"strings"

	"github.com/consensys/go-kscript/pkg/kscript/ast"
	"github.com/consensys/go-kscript/pkg/kscript/diag"
	"github.com/consensys/go-kscript/pkg/kscript/macro"
	"github.com/consensys/go-kscript/pkg/kscript/symbol"
	"github.com/consensys/go-kscript/pkg/kscript/types"
	"github.com/consensys/go-kscript/pkg/util"
)

// Param is a typed parameter of a prim func.  The type is either a scalar
// (types.PrimType), a buffer (*types.BufferType) or a pointer
// (*types.PointerType, or types.Handle when unannotated).
type Param struct {
	Name string
	Type ast.Type
}

func (p Param) String() string {
	if t, ok := p.Type.(types.PrimType); ok {
		return fmt.Sprintf("%s: T.%s", p.Name, t.String())
	}
	//
	return fmt.Sprintf("%s: %s", p.Name, p.Type.String())
}

// PrimFunc is a DSL program whose parameter annotations have been resolved,
// and whose body has (once assembled) no remaining macro invocations.
type PrimFunc struct {
	Name    string
	Params  []Param
	Returns ast.Expr
	Body    []ast.Stmt
	// Declaration from which this was lowered.
	node *ast.FuncDef
	// Global environment at the point of declaration.
	env *symbol.Environment
}

func (p *PrimFunc) String() string {
	var builder strings.Builder
	//
	builder.WriteString("@T.prim_func\ndef ")
	builder.WriteString(p.Name)
	builder.WriteString("(")
	//
	for i, param := range p.Params {
		if i != 0 {
			builder.WriteString(", ")
		}
		//
		builder.WriteString(param.String())
	}
	//
	builder.WriteString(")")
	//
	if p.Returns != nil {
		builder.WriteString(" -> ")
		builder.WriteString(p.Returns.String())
	}
	//
	builder.WriteString(":\n")
	builder.WriteString(ast.StmtsString(p.Body, ast.INDENT))
	//
	return builder.String()
}

// Equivalent determines whether two prim funcs are alpha-equivalent, meaning
// their parameter types and bodies coincide up to a consistent renaming of
// parameters and local identifiers.  Function names are ignored.
func Equivalent(f, g *PrimFunc) bool {
	return CheckEquivalent(f, g) == nil
}

// CheckEquivalent is as for Equivalent, but reports the first difference found.
func CheckEquivalent(f, g *PrimFunc) error {
	var eq = ast.NewEquivalence()
	//
	if len(f.Params) != len(g.Params) {
		return fmt.Errorf("parameter counts differ (%d vs %d)", len(f.Params), len(g.Params))
	}
	//
	for i := range f.Params {
		lhs, rhs := f.Params[i], g.Params[i]
		// Shapes may refer to earlier parameters
		if !lhs.Type.Equal(rhs.Type, eq.Expr) {
			return fmt.Errorf("parameter %d differs (%s vs %s)", i+1, lhs.String(), rhs.String())
		}
		//
		eq.Bind(lhs.Name, rhs.Name)
	}
	//
	if (f.Returns == nil) != (g.Returns == nil) || (f.Returns != nil && !eq.Expr(f.Returns, g.Returns)) {
		return fmt.Errorf("return annotations differ")
	}
	//
	for i := range min(len(f.Body), len(g.Body)) {
		if !eq.Stmt(f.Body[i], g.Body[i]) {
			return fmt.Errorf("statement %d differs:\n%s\n---\n%s", i+1, ast.StmtString(f.Body[i]),
				ast.StmtString(g.Body[i]))
		}
	}
	//
	if len(f.Body) != len(g.Body) {
		return fmt.Errorf("statement counts differ (%d vs %d)", len(f.Body), len(g.Body))
	}
	//
	return nil
}

// ============================================================================
// Front end
// ============================================================================

// Builds macro definitions and prim funcs from function declarations.
type frontend struct {
	resolver *types.Resolver
	trace    func(from ast.Node, to ast.Node)
}

// Construct a macro definition from a declaration.  Defaults are resolved
// against host constants, and proxies in the body are resolved as far as
// possible.
func (p *frontend) defineMacro(fn *ast.FuncDef, dec macro.Decorator, env *symbol.Environment) (*macro.Definition,
	error) {
	//
	var (
		params = make([]macro.Parameter, len(fn.Params))
		norm   = newNormaliser(p.resolver, false, nil, p.trace)
		consts = newNormaliser(p.resolver, true, hostConstants(env, nil, p.trace), p.trace)
	)
	//
	for i, param := range fn.Params {
		params[i] = macro.Parameter{Name: param.Name, Kind: param.Kind, Default: util.None[ast.Expr](), Node: param}
		//
		if param.Default != nil {
			def, err := consts.Expr(param.Default)
			if err != nil {
				return nil, err
			}
			//
			params[i].Default = util.Some(def)
		}
	}
	//
	body, err := norm.Stmts(fn.Body)
	if err != nil {
		return nil, err
	}
	//
	return dec.Define(fn.Name, params, body, env)
}

// Lower a prim func declaration by resolving its parameter annotations.  The
// body is normalised, but not assembled.
func (p *frontend) lowerPrimFunc(fn *ast.FuncDef, env *symbol.Environment) (*PrimFunc, error) {
	var (
		params = make([]Param, len(fn.Params))
		names  = make(map[string]bool)
		norm   = newNormaliser(p.resolver, false, nil, p.trace)
	)
	//
	for _, param := range fn.Params {
		names[param.Name] = true
	}
	//
	annotations := newNormaliser(p.resolver, true, hostConstants(env, names, p.trace), p.trace)
	//
	for i, param := range fn.Params {
		switch {
		case param.Kind != ast.POSITIONAL:
			return nil, diag.Definitionf(param, "unsupported %s parameter %s", param.Kind.String(), param.Name)
		case param.Default != nil:
			return nil, diag.Definitionf(param, "unsupported default for parameter %s", param.Name)
		case param.Annotation == nil:
			return nil, diag.Definitionf(param, "missing type annotation for parameter %s", param.Name)
		}
		//
		annotation, err := annotations.Expr(param.Annotation)
		if err != nil {
			return nil, err
		}
		//
		t, err := p.paramType(annotation)
		if err != nil {
			return nil, err
		}
		//
		params[i] = Param{param.Name, t}
	}
	//
	body, err := norm.Stmts(fn.Body)
	if err != nil {
		return nil, err
	}
	//
	return &PrimFunc{fn.Name, params, fn.Returns, body, fn, env}, nil
}

// Determine the type given by a (resolved) annotation.
func (p *frontend) paramType(annotation ast.Expr) (ast.Type, error) {
	if t, ok := annotation.(*ast.TypeValue); ok {
		return t.Type, nil
	} else if name, ok := ast.QualifiedName(annotation); ok && name == HANDLE {
		return types.Handle, nil
	} else if ok && strings.HasPrefix(name, "T.") && strings.Count(name, ".") == 1 {
		return p.resolver.Scalar(strings.TrimPrefix(name, "T."), annotation)
	}
	//
	return nil, diag.Definitionf(annotation, "unsupported type annotation %s", annotation.String())
}

// Construct a reference resolver which substitutes host constants, except for
// those shadowed by a given set of names.  Names bound to nothing are
// unbound.
func hostConstants(env *symbol.Environment, shadowed map[string]bool,
	trace func(from ast.Node, to ast.Node)) func(ast.Expr) (ast.Expr, error) {
	//
	return func(e ast.Expr) (ast.Expr, error) {
		n, ok := e.(*ast.Name)
		//
		if !ok || shadowed[n.Id] {
			return nil, nil
		}
		//
		value, ok := env.Lookup(n.Id)
		//
		switch {
		case !ok:
			return nil, diag.Unboundf(n, "unbound identifier %s", n.Id)
		case value.Kind == symbol.EXPR:
			ne := ast.CloneExpr(value.Expr)
			//
			if trace != nil {
				trace(n, ne)
			}
			//
			return ne, nil
		case value.Kind == symbol.MACRO:
			return nil, diag.Definitionf(n, "macro %s used in expression position", n.Id)
		}
		//
		return nil, nil
	}
}
