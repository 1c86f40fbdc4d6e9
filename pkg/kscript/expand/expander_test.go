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
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/consensys/go-kscript/pkg/kscript/ast"
	"github.com/consensys/go-kscript/pkg/kscript/diag"
	"github.com/consensys/go-kscript/pkg/kscript/macro"
	"github.com/consensys/go-kscript/pkg/kscript/parser"
	"github.com/consensys/go-kscript/pkg/kscript/symbol"
	"github.com/consensys/go-kscript/pkg/util"
	"github.com/consensys/go-kscript/pkg/util/source"
)

const ASSIGN = `
@T.macro
def assign(i, *args, t1, **kwargs):
    vi, vj, vk = T.axis.remap("SSR", [i, args[0], args[1]])
    kwargs["t3"][vi, vj] = kwargs["t3"][vi, vj] + t1[vi, vk] * kwargs["t2"][vj, vk]
`

func Test_Expand_01(t *testing.T) {
	def := define(t, ASSIGN, true, symbol.Universe())
	//
	checkExpand(t, def, "assign(0, i, j, t1=B, t2=C, t3=A)", `
vi, vj, vk = T.axis.remap("SSR", [0, i, j])
A[vi, vj] = A[vi, vj] + B[vi, vk] * C[vj, vk]
`)
}

func Test_Expand_02(t *testing.T) {
	def := define(t, ASSIGN, true, symbol.Universe())
	// Keywords given in a different order
	checkExpand(t, def, "assign(k, 1, 2, t3=X, t2=Y, t1=Z)", `
vi, vj, vk = T.axis.remap("SSR", [k, 1, 2])
X[vi, vj] = X[vi, vj] + Z[vi, vk] * Y[vj, vk]
`)
}

func Test_Expand_03(t *testing.T) {
	def := define(t, `
@T.macro
def fill(A, n, *, value=0.0):
    for i in T.serial(n):
        tmp = value
        A[i] = tmp
`, true, symbol.Universe())
	//
	checkExpand(t, def, "fill(B, 16)", `
for k in T.serial(16):
    t = 0.0
    B[k] = t
`)
}

func Test_Expand_04(t *testing.T) {
	def := define(t, `
@T.macro
def pack(*args, **kwargs):
    T.evaluate(args, kwargs)
`, true, symbol.Universe())
	// Bare variadics become literals
	checkExpand(t, def, "pack(1, 2, a=3)", `T.evaluate((1, 2), {"a": 3})`)
}

func Test_Expand_05(t *testing.T) {
	def := define(t, `
@T.macro
def forward(*args, **kwargs):
    T.call(0, *args, **kwargs)
`, true, symbol.Universe())
	// Spreads are forwarded
	checkExpand(t, def, "forward(x, y, scale=2)", `T.call(0, x, y, scale=2)`)
}

func Test_Expand_06(t *testing.T) {
	def := define(t, `
@T.macro
def ends(*args):
    T.evaluate(args[0] + args[-1])
`, true, symbol.Universe())
	//
	checkExpand(t, def, "ends(a, b, c)", `T.evaluate(a + c)`)
}

// ==================================================================
// Hygiene
// ==================================================================

func Test_Hygiene_01(t *testing.T) {
	var (
		env   = symbol.Universe().Extend("x_value", symbol.ExprValue(&ast.IntLit{Value: 128}))
		def   = define(t, "@T.macro\ndef capture(A, B):\n    B[0] = A[x_value]\n", true, env)
		scope = symbol.NewScope(env)
	)
	// Shadowed at the call site
	scope.DeclareLocal("x_value", nil)
	//
	checkExpandIn(t, def, scope, "capture(P, Q)", "Q[0] = P[128]")
}

func Test_Hygiene_02(t *testing.T) {
	var (
		env   = symbol.Universe().Extend("x_value", symbol.ExprValue(&ast.IntLit{Value: 128}))
		def   = define(t, "@T.macro\ndef capture(A, B):\n    B[0] = A[x_value]\n", false, env)
		scope = symbol.NewScope(env)
	)
	//
	scope.DeclareLocal("x_value", nil)
	//
	checkExpandIn(t, def, scope, "capture(P, Q)", "Q[0] = P[x_value]")
}

func Test_Hygiene_03(t *testing.T) {
	var (
		env   = symbol.Universe().Extend("x_value", symbol.ExprValue(&ast.IntLit{Value: 128}))
		def   = define(t, "@T.macro\ndef capture(A, B):\n    B[0] = A[x_value]\n", false, env)
		scope = symbol.NewScope(env.Extend("x_value", symbol.ExprValue(&ast.IntLit{Value: 7})))
	)
	// Non-hygienic macros see the globals of the call site
	checkExpandIn(t, def, scope, "capture(P, Q)", "Q[0] = P[7]")
}

func Test_Hygiene_04(t *testing.T) {
	var (
		def   = define(t, "@T.macro\ndef local(A):\n    tmp = A[0]\n    A[1] = tmp\n", true, symbol.Universe())
		scope = symbol.NewScope(symbol.Universe())
	)
	// Locals cannot capture identifiers at the call site
	scope.DeclareLocal("tmp", nil)
	//
	stmts, escope, err := NewExpander().Expand(def, bind(t, def, "local(tmp)"), scope)
	require.NoError(t, err)
	require.Len(t, stmts, 2)
	//
	target := stmts[0].(*ast.Assign).Target.(*ast.Name)
	//
	assert.True(t, symbol.IsFresh(target.Id))
	assert.Equal(t, "tmp", symbol.Original(target.Id))
	assert.Equal(t, "tmp[0]", stmts[0].(*ast.Assign).Value.String())
	// Local visible within the expansion only
	binding, ok := escope.Lookup("tmp")
	require.True(t, ok)
	assert.Equal(t, target.Id, binding.Name)
	//
	binding, ok = scope.Lookup("tmp")
	require.True(t, ok)
	assert.Equal(t, "tmp", binding.Name)
}

func Test_Hygiene_05(t *testing.T) {
	var (
		def = define(t, "@T.macro\ndef local(A):\n    tmp = A[0]\n", true, symbol.Universe())
		lhs = expand(t, def, "local(B)")
		rhs = expand(t, def, "local(B)")
	)
	// Each expansion allocates its own names
	assert.NotEqual(t, lhs[0].String(), rhs[0].String())
	assert.True(t, ast.AlphaEqual(lhs, rhs))
}

func Test_Hygiene_06(t *testing.T) {
	var (
		inner = define(t, "@T.macro\ndef inner():\n    T.evaluate(0)\n", true, symbol.Universe())
		env   = symbol.Universe().Extend("inner", symbol.MacroValue(inner))
		outer = define(t, "@T.macro\ndef outer():\n    inner()\n", true, env)
	)
	// Free macro references are resolved
	stmts := expand(t, outer, "outer()")
	require.Len(t, stmts, 1)
	//
	call := stmts[0].(*ast.ExprStmt).Value.(*ast.Call)
	ref, ok := call.Fn.(*ast.MacroRef)
	//
	require.True(t, ok)
	assert.Same(t, inner, ref.Macro)
}

func Test_Hygiene_07(t *testing.T) {
	var (
		def   = define(t, "@T.macro\ndef least(A):\n    A[0] = min(1, 2)\n", true, symbol.Universe())
		scope = symbol.NewScope(symbol.Universe())
	)
	// Builtins are unaffected by renamed locals of an enclosing expansion
	scope.Declare("min", symbol.Binding{Name: symbol.Fresh("min")})
	//
	checkExpandIn(t, def, scope, "least(B)", "B[0] = min(1, 2)")
}

func Test_Hygiene_08(t *testing.T) {
	var (
		def   = define(t, "@T.macro\ndef least(A):\n    A[0] = min(1, 2)\n", true, symbol.Universe())
		scope = symbol.NewScope(symbol.Universe()).Nested()
	)
	// Builtin shadowed by a loop variable at the call site
	scope.DeclareLocal("min", nil)
	//
	_, _, err := NewExpander().Expand(def, bind(t, def, "least(B)"), scope)
	require.Error(t, err)
	assert.True(t, errors.Is(err, diag.ErrDefinition))
	assert.ErrorContains(t, err, "shadowed")
}

func Test_Hygiene_09(t *testing.T) {
	var (
		def   = define(t, "@T.macro\ndef least(A):\n    A[0] = min(1, 2)\n", false, symbol.Universe())
		scope = symbol.NewScope(symbol.Universe())
	)
	// Non-hygienic macros deliberately see the call site
	scope.DeclareLocal("min", nil)
	//
	checkExpandIn(t, def, scope, "least(B)", "B[0] = min(1, 2)")
}

// ==================================================================
// Errors
// ==================================================================

func Test_Invalid_Expand_01(t *testing.T) {
	def := define(t, "@T.macro\ndef first(*args):\n    T.evaluate(args[2])\n", true, symbol.Universe())
	checkExpandError(t, def, "first(a, b)", diag.ErrArity)
}

func Test_Invalid_Expand_02(t *testing.T) {
	def := define(t, "@T.macro\ndef named(**kwargs):\n    T.evaluate(kwargs[\"z\"])\n", true, symbol.Universe())
	checkExpandError(t, def, "named(a=1)", diag.ErrArity)
}

func Test_Invalid_Expand_03(t *testing.T) {
	def := define(t, "@T.macro\ndef free(A):\n    A[0] = missing\n", true, symbol.Universe())
	checkExpandError(t, def, "free(B)", diag.ErrUnboundIdentifier)
}

func Test_Invalid_Expand_04(t *testing.T) {
	def := define(t, "@T.macro\ndef free(A):\n    A[0] = missing\n", false, symbol.Universe())
	checkExpandError(t, def, "free(B)", diag.ErrUnboundIdentifier)
}

// ==================================================================
// Tracing
// ==================================================================

func Test_Trace_01(t *testing.T) {
	var (
		def      = define(t, ASSIGN, true, symbol.Universe())
		mux      sync.Mutex
		produced = make(map[ast.Node]ast.Node)
		expander = &Expander{Trace: func(from ast.Node, to ast.Node) {
			mux.Lock()
			defer mux.Unlock()
			//
			produced[to] = from
		}}
	)
	//
	stmts, _, err := expander.Expand(def, bind(t, def, "assign(0, 1, 2, t1=B, t2=C, t3=A)"),
		symbol.NewScope(symbol.Universe()))
	require.NoError(t, err)
	// Every statement originates somewhere
	for _, stmt := range stmts {
		_, ok := produced[stmt]
		assert.True(t, ok, stmt.String())
	}
	// Original body is not reused
	for _, stmt := range def.Body() {
		_, ok := produced[stmt]
		assert.False(t, ok)
	}
}

func Test_Concurrent_01(t *testing.T) {
	var (
		def     = define(t, ASSIGN, true, symbol.Universe())
		results = make([][]ast.Stmt, 16)
		wg      sync.WaitGroup
	)
	//
	for i := range results {
		wg.Add(1)
		//
		go func() {
			defer wg.Done()
			//
			results[i] = expand(t, def, "assign(0, 1, 2, t1=B, t2=C, t3=A)")
		}()
	}
	//
	wg.Wait()
	//
	for _, r := range results[1:] {
		assert.True(t, ast.AlphaEqual(results[0], r))
	}
}

// ==================================================================
// Framework
// ==================================================================

func define(t *testing.T, src string, hygienic bool, env *symbol.Environment) *macro.Definition {
	file, _, errs := parser.Parse(source.NewSourceFile("test.ks", []byte(src)))
	require.Empty(t, errs)
	//
	fns := file.Functions()
	require.Len(t, fns, 1)
	//
	var (
		fn     = fns[0]
		params = make([]macro.Parameter, len(fn.Params))
	)
	//
	for i, p := range fn.Params {
		params[i] = macro.Parameter{Name: p.Name, Kind: p.Kind, Default: util.None[ast.Expr](), Node: p}
		//
		if p.Default != nil {
			params[i].Default = util.Some(p.Default)
		}
	}
	//
	def, err := macro.Define(fn.Name, params, fn.Body, macro.Options{Hygienic: hygienic}, env)
	require.NoError(t, err)
	//
	return def
}

func bind(t *testing.T, def *macro.Definition, src string) *macro.ArgumentBinding {
	stmts := parse(t, src)
	require.Len(t, stmts, 1)
	//
	call := stmts[0].(*ast.ExprStmt).Value.(*ast.Call)
	//
	inv, err := macro.NewInvocation(call, call)
	require.NoError(t, err)
	//
	binding, err := macro.Bind(def, inv)
	require.NoError(t, err)
	//
	return binding
}

func parse(t *testing.T, src string) []ast.Stmt {
	stmts, errs := parser.ParseStmts("test.ks", src+"\n")
	require.Empty(t, errs)
	//
	return stmts
}

func expand(t *testing.T, def *macro.Definition, call string) []ast.Stmt {
	stmts, _, err := NewExpander().Expand(def, bind(t, def, call), symbol.NewScope(symbol.Universe()))
	require.NoError(t, err)
	//
	return stmts
}

func checkExpand(t *testing.T, def *macro.Definition, call string, expected string) {
	checkExpandIn(t, def, symbol.NewScope(symbol.Universe()), call, expected)
}

func checkExpandIn(t *testing.T, def *macro.Definition, scope *symbol.Scope, call string, expected string) {
	stmts, _, err := NewExpander().Expand(def, bind(t, def, call), scope)
	require.NoError(t, err)
	//
	if err := ast.CheckAlphaEqual(stmts, parse(t, expected)); err != nil {
		t.Error(err)
	}
}

func checkExpandError(t *testing.T, def *macro.Definition, call string, kind error) {
	_, _, err := NewExpander().Expand(def, bind(t, def, call), symbol.NewScope(symbol.Universe()))
	//
	require.Error(t, err)
	assert.True(t, errors.Is(err, kind), "expected %v, got %v", kind, err)
}
