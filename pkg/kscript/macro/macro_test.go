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
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/consensys/go-kscript/pkg/kscript/ast"
	"github.com/consensys/go-kscript/pkg/kscript/diag"
	"github.com/consensys/go-kscript/pkg/kscript/parser"
	"github.com/consensys/go-kscript/pkg/kscript/symbol"
	"github.com/consensys/go-kscript/pkg/util"
	"github.com/consensys/go-kscript/pkg/util/source"
)

// ==================================================================
// Definitions
// ==================================================================

func Test_Define_01(t *testing.T) {
	def := checkDefine(t, `
@T.macro
def assign(i, *args, t1, **kwargs):
    vi, vj, vk = T.axis.remap("SSR", [i, args[0], args[1]])
    kwargs["t3"][vi, vj] = kwargs["t3"][vi, vj] + t1[vi, vk] * kwargs["t2"][vj, vk]
`)
	//
	assert.Equal(t, "assign(i, *args, t1, **kwargs)", def.Signature())
	assert.Equal(t, []string{"vi", "vj", "vk"}, def.Locals())
	assert.True(t, def.Hygienic())
	assert.Len(t, def.Body(), 2)
}

func Test_Define_02(t *testing.T) {
	def := checkDefine(t, `
@T.macro
def fill(A, n, *, value=0):
    for i in range(n):
        tmp = value
        A[i] = tmp
`)
	//
	assert.Equal(t, "fill(A, n, *, value=0)", def.Signature())
	assert.Equal(t, []string{"i", "tmp"}, def.Locals())
}

func Test_Define_03(t *testing.T) {
	// Bound on both branches
	def := checkDefine(t, `
@T.macro
def select(A, c):
    if c:
        x = 1
    else:
        x = 2
    A[0] = x
`)
	//
	assert.Equal(t, []string{"x"}, def.Locals())
}

func Test_Define_04(t *testing.T) {
	// With targets remain bound after the with statement
	def := checkDefine(t, `
@T.macro
def block(A):
    with T.block("b") as b:
        v = A[0]
    A[1] = v
`)
	//
	assert.Equal(t, []string{"b", "v"}, def.Locals())
}

func Test_Define_05(t *testing.T) {
	// Definitions can see themselves
	var (
		def = checkDefine(t, "@T.macro\ndef f():\n    f()\n")
		v   = lookup(t, def.Scope(), "f")
	)
	//
	assert.Equal(t, symbol.MACRO, v.Kind)
	assert.Same(t, def, v.Macro)
}

func Test_Define_Invalid_01(t *testing.T) {
	params := []Parameter{NewParameter("kwargs", ast.VAR_KEYWORD), NewParameter("args", ast.VAR_POSITIONAL)}
	checkDefineError(t, 1, params, nil)
}

func Test_Define_Invalid_02(t *testing.T) {
	params := []Parameter{NewParameter("x", ast.POSITIONAL), NewParameter("x", ast.KEYWORD_ONLY)}
	checkDefineError(t, 1, params, nil)
}

func Test_Define_Invalid_03(t *testing.T) {
	params := []Parameter{NewParameter("a", ast.VAR_POSITIONAL), NewParameter("b", ast.VAR_POSITIONAL)}
	checkDefineError(t, 1, params, nil)
}

func Test_Define_Invalid_04(t *testing.T) {
	// All problems are reported together
	params := []Parameter{
		NewParameter("x", ast.VAR_KEYWORD),
		NewParameter("x", ast.POSITIONAL),
		NewParameter("y", ast.VAR_KEYWORD),
	}
	checkDefineError(t, 3, params, nil)
}

func Test_Define_Invalid_05(t *testing.T) {
	withDefault := Parameter{"a", ast.POSITIONAL, util.Some[ast.Expr](&ast.IntLit{Value: 1}), nil}
	params := []Parameter{withDefault, NewParameter("b", ast.POSITIONAL)}
	checkDefineError(t, 1, params, nil)
}

func Test_Define_Invalid_06(t *testing.T) {
	// Parameter rebinding
	checkDefineSourceError(t, "@T.macro\ndef f(A, i):\n    for i in range(4):\n        A[i] = 0\n")
}

func Test_Define_Invalid_07(t *testing.T) {
	// Nested definition
	checkDefineSourceError(t, "@T.macro\ndef f(A):\n    @T.macro\n    def g():\n        pass\n")
}

func Test_Define_Invalid_08(t *testing.T) {
	// Bound on one branch only
	checkDefineSourceError(t, "@T.macro\ndef f(A, c):\n    if c:\n        x = 1\n    A[0] = x\n")
}

func Test_Define_Invalid_09(t *testing.T) {
	// Used before bound
	checkDefineSourceError(t, "@T.macro\ndef f(A):\n    A[0] = x\n    x = 1\n")
}

func Test_Define_Invalid_10(t *testing.T) {
	// Loop variables do not escape their loop
	checkDefineSourceError(t, "@T.macro\ndef f(A):\n    for i in range(4):\n        A[i] = 0\n    A[0] = i\n")
}

// ==================================================================
// Decorators
// ==================================================================

func Test_Configure_01(t *testing.T) {
	dec, err := Configure(nil, nil, symbol.Universe())
	//
	require.NoError(t, err)
	assert.True(t, dec.Options().Hygienic)
	assert.Equal(t, Bare(), dec)
}

func Test_Configure_02(t *testing.T) {
	dec, err := Configure(nil, keywords("hygienic", &ast.BoolLit{Value: false}), symbol.Universe())
	//
	require.NoError(t, err)
	assert.False(t, dec.Options().Hygienic)
}

func Test_Configure_03(t *testing.T) {
	// Host constant
	env := symbol.Universe().Extend("DYNAMIC", symbol.ExprValue(&ast.BoolLit{Value: false}))
	dec, err := Configure(nil, keywords("hygienic", &ast.Name{Id: "DYNAMIC"}), env)
	//
	require.NoError(t, err)
	assert.False(t, dec.Options().Hygienic)
}

func Test_Configure_Invalid_01(t *testing.T) {
	// Positional arguments are rejected
	_, err := Configure([]ast.Expr{&ast.BoolLit{Value: true}}, nil, symbol.Universe())
	assert.True(t, errors.Is(err, diag.ErrConfiguration))
}

func Test_Configure_Invalid_02(t *testing.T) {
	_, err := Configure(nil, keywords("hygenic", &ast.BoolLit{Value: true}), symbol.Universe())
	assert.True(t, errors.Is(err, diag.ErrConfiguration))
}

func Test_Configure_Invalid_03(t *testing.T) {
	_, err := Configure(nil, keywords("hygienic", &ast.IntLit{Value: 1}), symbol.Universe())
	assert.True(t, errors.Is(err, diag.ErrConfiguration))
}

func Test_Configure_Invalid_04(t *testing.T) {
	_, err := Configure(nil, keywords("hygienic", &ast.Name{Id: "undefined"}), symbol.Universe())
	assert.True(t, errors.Is(err, diag.ErrConfiguration))
}

// ==================================================================
// Binding
// ==================================================================

func Test_Bind_01(t *testing.T) {
	def := assignMacro(t)
	binding := checkBind(t, def, "assign(i, j, k, t1=A, t2=B, t3=C)")
	//
	assert.Equal(t, "i=i, args=(j, k), t1=A, kwargs={t2=B, t3=C}", binding.String())
}

func Test_Bind_02(t *testing.T) {
	// Keyword order is irrelevant
	def := assignMacro(t)
	binding := checkBind(t, def, "assign(t3=C, t1=A, t2=B, i=x)")
	//
	assert.Equal(t, "i=x, args=(), t1=A, kwargs={t3=C, t2=B}", binding.String())
	//
	kwargs, _ := binding.Get("kwargs")
	v, ok := kwargs.Key("t2")
	require.True(t, ok)
	assert.Equal(t, "B", v.String())
}

func Test_Bind_03(t *testing.T) {
	// Literal spreads are flattened
	def := assignMacro(t)
	binding := checkBind(t, def, `assign(*(i, j), k, t1=A, **{"t2": B})`)
	//
	assert.Equal(t, "i=i, args=(j, k), t1=A, kwargs={t2=B}", binding.String())
	//
	args, _ := binding.Get("args")
	last, ok := args.Index(-1)
	require.True(t, ok)
	assert.Equal(t, "k", last.String())
	_, ok = args.Index(2)
	assert.False(t, ok)
}

func Test_Bind_04(t *testing.T) {
	// Defaults
	def := checkDefine(t, "@T.macro\ndef f(A, n=4, *, value=0):\n    A[n] = value\n")
	binding := checkBind(t, def, "f(X, value=1)")
	//
	assert.Equal(t, "A=X, n=4, value=1", binding.String())
}

func Test_Bind_Invalid_01(t *testing.T) {
	// Too few positional arguments
	checkBindError(t, assignMacro(t), "assign(t1=A)")
}

func Test_Bind_Invalid_02(t *testing.T) {
	// Unknown keyword
	def := checkDefine(t, "@T.macro\ndef f(A, B):\n    B[()] = A[0]\n")
	checkBindError(t, def, "f(X, Y, C=Z)")
}

func Test_Bind_Invalid_03(t *testing.T) {
	// Too many positional arguments
	def := checkDefine(t, "@T.macro\ndef f(A, B):\n    B[()] = A[0]\n")
	checkBindError(t, def, "f(X, Y, Z)")
}

func Test_Bind_Invalid_04(t *testing.T) {
	// Multiple values
	def := checkDefine(t, "@T.macro\ndef f(A, B):\n    B[()] = A[0]\n")
	checkBindError(t, def, "f(X, Y, A=Z)")
}

func Test_Bind_Invalid_05(t *testing.T) {
	// Duplicate keyword (via spread)
	checkBindError(t, assignMacro(t), `assign(i, t1=A, **{"t1": B})`)
}

func Test_Bind_Invalid_06(t *testing.T) {
	// Keyword-only parameter given by position
	def := checkDefine(t, "@T.macro\ndef f(A, *, B):\n    B[()] = A[0]\n")
	checkBindError(t, def, "f(X, Y)")
}

func Test_Bind_Invalid_07(t *testing.T) {
	// Non-literal spread
	checkBindError(t, assignMacro(t), "assign(i, *rest, t1=A)")
}

// ==================================================================
// Registry
// ==================================================================

func Test_Registry_01(t *testing.T) {
	var (
		registry = NewRegistry()
		f1       = checkDefine(t, "@T.macro\ndef f():\n    T.evaluate(0)\n")
		g        = checkDefine(t, "@T.macro\ndef g():\n    T.evaluate(1)\n")
		f2       = checkDefine(t, "@T.macro\ndef f():\n    T.evaluate(2)\n")
	)
	//
	require.NoError(t, registry.Register(f1))
	require.NoError(t, registry.Register(g))
	require.NoError(t, registry.Register(f2))
	// Redefinition replaces in place
	defs := registry.Definitions()
	require.Len(t, defs, 2)
	assert.Same(t, f2, defs[0])
	assert.Same(t, g, defs[1])
	//
	registry.Seal()
	assert.True(t, registry.IsSealed())
	assert.ErrorIs(t, registry.Register(f1), ErrSealed)
}

func Test_Registry_02(t *testing.T) {
	var (
		registry = NewRegistry()
		def      = assignMacro(t)
		wg       sync.WaitGroup
	)
	//
	require.NoError(t, registry.Register(def))
	registry.Seal()
	// Concurrent readers
	for range 16 {
		wg.Add(1)
		//
		go func() {
			defer wg.Done()
			//
			d, ok := registry.Lookup("assign")
			assert.True(t, ok)
			assert.Same(t, def, d)
			_, ok = registry.Lookup("other")
			assert.False(t, ok)
		}()
	}
	//
	wg.Wait()
}

// ==================================================================
// Framework
// ==================================================================

func assignMacro(t *testing.T) *Definition {
	return checkDefine(t, `
@T.macro
def assign(i, *args, t1, **kwargs):
    vi, vj, vk = T.axis.remap("SSR", [i, args[0], args[1]])
    kwargs["t3"][vi, vj] = kwargs["t3"][vi, vj] + t1[vi, vk] * kwargs["t2"][vj, vk]
`)
}

func parseFunction(t *testing.T, src string) *ast.FuncDef {
	file, _, errs := parser.Parse(source.NewSourceFile("test.ks", []byte(src)))
	require.Empty(t, errs)
	//
	fns := file.Functions()
	require.Len(t, fns, 1)
	//
	return fns[0]
}

func parameters(fn *ast.FuncDef) []Parameter {
	params := make([]Parameter, len(fn.Params))
	//
	for i, p := range fn.Params {
		params[i] = Parameter{p.Name, p.Kind, util.None[ast.Expr](), p}
		//
		if p.Default != nil {
			params[i].Default = util.Some(p.Default)
		}
	}
	//
	return params
}

func defineSource(t *testing.T, src string) (*Definition, error) {
	fn := parseFunction(t, src)
	return Define(fn.Name, parameters(fn), fn.Body, DefaultOptions(), symbol.Universe())
}

func checkDefine(t *testing.T, src string) *Definition {
	def, err := defineSource(t, src)
	require.NoError(t, err)
	//
	return def
}

func checkDefineSourceError(t *testing.T, src string) {
	_, err := defineSource(t, src)
	//
	require.Error(t, err)
	assert.True(t, errors.Is(err, diag.ErrDefinition), "unexpected error %v", err)
}

func checkDefineError(t *testing.T, count int, params []Parameter, body []ast.Stmt) {
	_, err := Define("f", params, body, DefaultOptions(), symbol.Universe())
	//
	require.Error(t, err)
	//
	diags := diag.Flatten(err)
	assert.Len(t, diags, count, "unexpected errors %v", err)
	//
	for _, d := range diags {
		assert.ErrorIs(t, d, diag.ErrDefinition)
	}
}

func invocation(t *testing.T, src string) Invocation {
	stmts, errs := parser.ParseStmts("test.ks", src+"\n")
	require.Empty(t, errs)
	require.Len(t, stmts, 1)
	//
	call := stmts[0].(*ast.ExprStmt).Value.(*ast.Call)
	inv, err := NewInvocation(call, call)
	require.NoError(t, err)
	//
	return inv
}

func checkBind(t *testing.T, def *Definition, src string) *ArgumentBinding {
	binding, err := Bind(def, invocation(t, src))
	require.NoError(t, err)
	//
	return binding
}

func checkBindError(t *testing.T, def *Definition, src string) {
	stmts, errs := parser.ParseStmts("test.ks", src+"\n")
	require.Empty(t, errs)
	//
	call := stmts[0].(*ast.ExprStmt).Value.(*ast.Call)
	inv, err := NewInvocation(call, call)
	//
	if err == nil {
		_, err = Bind(def, inv)
	}
	//
	require.Error(t, err)
	assert.True(t, errors.Is(err, diag.ErrArity), "unexpected error %v", err)
}

func keywords(name string, value ast.Expr) []*ast.Keyword {
	return []*ast.Keyword{{Name: name, Value: value}}
}

func lookup(t *testing.T, env *symbol.Environment, name string) symbol.Value {
	v, ok := env.Lookup(name)
	require.True(t, ok, name)
	//
	return v
}
