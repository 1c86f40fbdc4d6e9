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
	"strings"

	"github.com/consensys/go-kscript/pkg/kscript/ast"
	"github.com/consensys/go-kscript/pkg/kscript/diag"
	"github.com/consensys/go-kscript/pkg/kscript/types"
)

const (
	// BUFFER constructs a buffer type, as in "T.Buffer((128, 128), "float32")".
	BUFFER = "T.Buffer"
	// HANDLE constructs a pointer type, as in "T.handle("int32", "shared")".
	HANDLE = "T.handle"
	// MATCH_BUFFER binds a buffer to a handle, as in "T.match_buffer(a, (128,
	// 128))".
	MATCH_BUFFER = "T.match_buffer"
	// SERIAL is the canonical form of a "range" loop.
	SERIAL = "T.serial"
)

// DEFAULT_DTYPE is the element type of buffers which do not specify one.
const DEFAULT_DTYPE = "float32"

// Normaliser rewrites statements into canonical form, by resolving type
// proxies into types and turning "range" loops into "T.serial" loops.  In
// strict mode, every proxy must be resolvable.  Otherwise, proxies whose
// arguments are not (yet) constant are left as they are.
type normaliser struct {
	resolver *types.Resolver
	strict   bool
	// Applied to every name and macro reference (may be nil).
	refs     func(ast.Expr) (ast.Expr, error)
	trace    func(from ast.Node, to ast.Node)
	rewriter ast.Rewriter
}

func newNormaliser(resolver *types.Resolver, strict bool, refs func(ast.Expr) (ast.Expr, error),
	trace func(from ast.Node, to ast.Node)) *normaliser {
	//
	n := &normaliser{resolver: resolver, strict: strict, refs: refs, trace: trace}
	n.rewriter = ast.Rewriter{Expr: n.expr, Trace: trace}
	//
	return n
}

// Stmts normalises a sequence of statements.
func (p *normaliser) Stmts(stmts []ast.Stmt) ([]ast.Stmt, error) {
	nstmts, err := p.rewriter.Stmts(stmts)
	if err != nil {
		return nil, err
	}
	//
	canonicaliseLoops(nstmts)
	//
	return nstmts, nil
}

// Expr normalises a single expression.
func (p *normaliser) Expr(e ast.Expr) (ast.Expr, error) {
	return p.rewriter.Rewrite(e)
}

// Exprs normalises a sequence of expressions.
func (p *normaliser) Exprs(exprs []ast.Expr) ([]ast.Expr, error) {
	return p.rewriter.Exprs(exprs)
}

// Keywords normalises a sequence of keyword arguments.
func (p *normaliser) Keywords(keywords []*ast.Keyword) ([]*ast.Keyword, error) {
	return p.rewriter.Keywords(keywords)
}

func (p *normaliser) expr(e ast.Expr) (ast.Expr, error) {
	switch e := e.(type) {
	case *ast.Name, *ast.MacroRef:
		if p.refs != nil {
			return p.refs(e)
		}
	case *ast.Call:
		if name, ok := ast.QualifiedName(e.Fn); ok && (name == BUFFER || name == HANDLE || name == MATCH_BUFFER) {
			return p.proxy(name, e)
		}
	}
	//
	return nil, nil
}

func (p *normaliser) proxy(name string, e *ast.Call) (ast.Expr, error) {
	var (
		call = &ast.Call{}
		t    ast.Type
		err  error
	)
	//
	if call.Fn, err = p.rewriter.Rewrite(e.Fn); err != nil {
		return nil, err
	} else if call.Args, err = p.rewriter.Exprs(e.Args); err != nil {
		return nil, err
	} else if call.Keywords, err = p.rewriter.Keywords(e.Keywords); err != nil {
		return nil, err
	}
	//
	p.traced(e, call)
	//
	switch name {
	case BUFFER:
		t, err = p.buffer(call, call.Args, call.Keywords)
	case HANDLE:
		t, err = p.pointer(call)
	default:
		return p.matchBuffer(call)
	}
	//
	if err != nil {
		return nil, err
	} else if t == nil {
		return call, nil
	}
	//
	return p.traced(e, &ast.TypeValue{Type: t}), nil
}

// Resolve the arguments "(shape, dtype="float32", *, scope="global",
// strides=None)" of a buffer proxy.
func (p *normaliser) buffer(call *ast.Call, args []ast.Expr, keywords []*ast.Keyword) (ast.Type, error) {
	vals, err := arguments(call, []string{"shape", "dtype", "scope", "strides"}, 2, args, keywords)
	if err != nil {
		return nil, err
	} else if vals[0] == nil {
		return nil, diag.Definitionf(call, "buffer requires a shape")
	}
	//
	dtype, ok := p.dtypeOf(vals[1], DEFAULT_DTYPE)
	if !ok {
		return p.unresolvable(vals[1], "dtype")
	}
	//
	scope, ok := stringOf(vals[2], types.GLOBAL)
	if !ok {
		return p.unresolvable(vals[2], "scope")
	}
	//
	var strides []ast.Expr
	//
	if vals[3] != nil {
		if _, none := vals[3].(*ast.NoneLit); !none {
			strides = sequenceOf(vals[3])
		}
	}
	//
	buf, err := p.resolver.ResolveBuffer(types.BufferProxy{
		Shape: sequenceOf(vals[0]), DType: dtype, Scope: scope, Strides: strides, Node: call})
	if err != nil {
		return nil, err
	}
	//
	return buf, nil
}

// Resolve the arguments "(dtype="", scope="global")" of a pointer proxy.
func (p *normaliser) pointer(call *ast.Call) (ast.Type, error) {
	vals, err := arguments(call, []string{"dtype", "scope"}, 2, call.Args, call.Keywords)
	if err != nil {
		return nil, err
	}
	//
	dtype, ok := p.dtypeOf(vals[0], "")
	if !ok {
		return p.unresolvable(vals[0], "dtype")
	}
	//
	scope, ok := stringOf(vals[1], types.GLOBAL)
	if !ok {
		return p.unresolvable(vals[1], "scope")
	}
	//
	ptr, err := p.resolver.ResolvePointer(types.PointerProxy{DType: dtype, Scope: scope, Node: call})
	if err != nil {
		return nil, err
	}
	//
	return ptr.Type(), nil
}

// Resolve "T.match_buffer(handle, shape, dtype, ...)" into the canonical form
// "T.match_buffer(handle, T.Buffer(shape, dtype, ...))".
func (p *normaliser) matchBuffer(call *ast.Call) (ast.Expr, error) {
	if len(call.Args) == 0 {
		return nil, diag.Definitionf(call, "match_buffer requires a handle")
	} else if len(call.Args) == 2 && len(call.Keywords) == 0 {
		if _, ok := call.Args[1].(*ast.TypeValue); ok {
			// already canonical
			return call, nil
		}
	}
	//
	t, err := p.buffer(call, call.Args[1:], call.Keywords)
	if err != nil || t == nil {
		return call, err
	}
	//
	ncall := &ast.Call{Fn: call.Fn, Args: []ast.Expr{call.Args[0], p.traced(call, &ast.TypeValue{Type: t})}}
	//
	return p.traced(call, ncall), nil
}

func (p *normaliser) unresolvable(e ast.Expr, what string) (ast.Type, error) {
	if p.strict {
		return nil, diag.Definitionf(e, "%s must be a string constant (found %s)", what, e.String())
	}
	// Defer until constants are known
	return nil, nil
}

// Determine a primitive type name from either a string constant, a resolved
// primitive type or a name such as "T.int32".
func (p *normaliser) dtypeOf(e ast.Expr, def string) (string, bool) {
	if t, ok := e.(*ast.TypeValue); ok {
		if prim, ok := t.Type.(types.PrimType); ok {
			return prim.String(), true
		}
	} else if name, ok := ast.QualifiedName(e); ok && strings.HasPrefix(name, "T.") {
		return strings.TrimPrefix(name, "T."), true
	}
	//
	return stringOf(e, def)
}

func (p *normaliser) traced(from ast.Node, to ast.Expr) ast.Expr {
	if p.trace != nil {
		p.trace(from, to)
	}
	//
	return to
}

// Match the arguments of a call against a list of parameter names, of which
// the first n may be given by position.  Absent arguments are nil.
func arguments(call *ast.Call, names []string, n int, args []ast.Expr, keywords []*ast.Keyword) ([]ast.Expr,
	error) {
	var vals = make([]ast.Expr, len(names))
	//
	if len(args) > n {
		return nil, diag.Definitionf(call, "too many positional arguments (expected at most %d)", n)
	}
	//
	copy(vals, args)
	//
	for _, kw := range keywords {
		i := indexOf(names, kw.Name)
		//
		if i < 0 {
			return nil, diag.Definitionf(kw, "unsupported argument %s", kw.Name)
		} else if vals[i] != nil {
			return nil, diag.Definitionf(kw, "multiple values for argument %s", kw.Name)
		}
		//
		vals[i] = kw.Value
	}
	//
	return vals, nil
}

func indexOf(names []string, name string) int {
	for i, n := range names {
		if n == name {
			return i
		}
	}
	//
	return -1
}

func stringOf(e ast.Expr, def string) (string, bool) {
	switch e := e.(type) {
	case nil:
		return def, true
	case *ast.StrLit:
		return e.Value, true
	}
	//
	return "", false
}

// A shape (or strides) is either a tuple or list of dimensions, or a single
// dimension.
func sequenceOf(e ast.Expr) []ast.Expr {
	switch e := e.(type) {
	case *ast.Tuple:
		return e.Elems
	case *ast.List:
		return e.Elems
	}
	//
	return []ast.Expr{e}
}

// Turn "for i in range(n)" into "for i in T.serial(n)", such that both forms
// coincide.
func canonicaliseLoops(stmts []ast.Stmt) {
	for _, stmt := range stmts {
		switch s := stmt.(type) {
		case *ast.For:
			canonicaliseLoop(s)
			canonicaliseLoops(s.Body)
		case *ast.While:
			canonicaliseLoops(s.Body)
		case *ast.If:
			canonicaliseLoops(s.Body)
			canonicaliseLoops(s.OrElse)
		case *ast.With:
			canonicaliseLoops(s.Body)
		}
	}
}

func canonicaliseLoop(s *ast.For) {
	if call, ok := s.Iter.(*ast.Call); ok {
		if name, ok := call.Fn.(*ast.Name); ok && name.Id == "range" {
			call.Fn = ast.NewQualifiedName("T", "serial")
		}
	}
}
