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
package ast_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/consensys/go-kscript/pkg/kscript/ast"
	"github.com/consensys/go-kscript/pkg/kscript/parser"
)

// ===================================================================
// Alpha Equivalence
// ===================================================================

func Test_AlphaEqual_01(t *testing.T) {
	checkAlphaEqual(t, "for i in range(n):\n    A[i] = i", "for j in range(n):\n    A[j] = j")
}

func Test_AlphaEqual_02(t *testing.T) {
	checkAlphaEqual(t,
		`vi, vj = T.axis.remap("SS", [i, j])`+"\nC[vi, vj] = 0.0",
		`a_1, b_2 = T.axis.remap("SS", [i, j])`+"\nC[a_1, b_2] = 0.0")
}

func Test_AlphaEqual_03(t *testing.T) {
	// Rebinding shadows earlier bindings
	checkAlphaEqual(t, "i = 0\ni = 1\nA[i] = 0", "a = 0\nb = 1\nA[b] = 0")
}

func Test_AlphaEqual_04(t *testing.T) {
	checkAlphaEqual(t, `with T.block("b") as blk:`+"\n    T.evaluate(blk)",
		`with T.block("b") as other:`+"\n    T.evaluate(other)")
}

func Test_AlphaEqual_05(t *testing.T) {
	// Right-hand side is evaluated before binding
	checkAlphaEqual(t, "x = x + 1", "x = x + 1")
}

func Test_NotAlphaEqual_01(t *testing.T) {
	// Free identifiers must match exactly
	checkNotAlphaEqual(t, "A[i] = 0", "B[i] = 0")
}

func Test_NotAlphaEqual_02(t *testing.T) {
	// Bound and free identifiers differ
	checkNotAlphaEqual(t, "for i in range(n):\n    A[i] = i", "for j in range(n):\n    A[j] = i")
}

func Test_NotAlphaEqual_03(t *testing.T) {
	// Renaming must be a bijection
	checkNotAlphaEqual(t, "i = 0\nj = 1\nA[i] = j", "a = 0\nb = 1\nA[b] = a")
}

func Test_NotAlphaEqual_04(t *testing.T) {
	checkNotAlphaEqual(t, "x = 1", "x = 1.0")
}

func Test_NotAlphaEqual_05(t *testing.T) {
	checkNotAlphaEqual(t, "pass", "pass\npass")
}

func Test_NotAlphaEqual_06(t *testing.T) {
	checkNotAlphaEqual(t, "x = f(a, k=1)", "x = f(a, k=2)")
}

func Test_CheckAlphaEqual_01(t *testing.T) {
	err := ast.CheckAlphaEqual(parse(t, "x = 1\ny = 2"), parse(t, "x = 1\ny = 3"))
	//
	require.Error(t, err)
	assert.Contains(t, err.Error(), "statement 2 differs")
}

func Test_CheckAlphaEqual_02(t *testing.T) {
	err := ast.CheckAlphaEqual(parse(t, "x = 1"), parse(t, "x = 1\nbreak"))
	//
	require.Error(t, err)
	assert.Contains(t, err.Error(), "statement counts differ (1 vs 2)")
}

// ===================================================================
// Rewriting
// ===================================================================

func Test_Clone_01(t *testing.T) {
	var (
		stmts  = parse(t, "for i in T.serial(8):\n    A[i] = B[i] * 2")
		cloned = ast.Clone(stmts)
	)
	//
	require.Len(t, cloned, 1)
	assert.NotSame(t, stmts[0], cloned[0])
	assert.NotSame(t, stmts[0].(*ast.For).Body[0], cloned[0].(*ast.For).Body[0])
	assert.Equal(t, ast.StmtsString(stmts, ""), ast.StmtsString(cloned, ""))
}

func Test_Rewrite_01(t *testing.T) {
	var (
		stmts = parse(t, "for i in range(n):\n    A[i] = n")
		r     = ast.Rewriter{Expr: func(e ast.Expr) (ast.Expr, error) {
			if name, ok := e.(*ast.Name); ok && name.Id == "n" {
				return &ast.IntLit{Value: 16}, nil
			}
			//
			return nil, nil
		}}
	)
	//
	nstmts, err := r.Stmts(stmts)
	//
	require.NoError(t, err)
	assert.Equal(t, "for i in range(16):\n    A[i] = 16", ast.StmtsString(nstmts, ""))
	// Original untouched
	assert.Equal(t, "for i in range(n):\n    A[i] = n", ast.StmtsString(stmts, ""))
}

func Test_Rewrite_02(t *testing.T) {
	var (
		stmts = parse(t, "x, y = f(x)\nx += y\nB[x] = y")
		r     = ast.Rewriter{Bind: func(n *ast.Name) (ast.Expr, error) {
			return &ast.Name{Id: n.Id + "_1"}, nil
		}}
	)
	// Only binding occurrences are affected
	nstmts, err := r.Stmts(stmts)
	//
	require.NoError(t, err)
	assert.Equal(t, "x_1, y_1 = f(x)\nx += y\nB[x] = y", ast.StmtsString(nstmts, ""))
}

func Test_Rewrite_03(t *testing.T) {
	var (
		stmts = parse(t, "A[i] = B[i] + 1")
		froms = make(map[ast.Node]bool)
		r     = ast.Rewriter{Trace: func(from ast.Node, to ast.Node) {
			assert.NotSame(t, from, to)
			froms[from] = true
		}}
	)
	//
	_, err := r.Stmts(stmts)
	//
	require.NoError(t, err)
	assert.True(t, froms[stmts[0]])
	assert.True(t, froms[stmts[0].(*ast.Assign).Value])
}

func Test_BoundNames_01(t *testing.T) {
	stmts := parse(t, "(a, [b, *c]), d = x")
	//
	assert.Equal(t, []string{"a", "b", "c", "d"}, ast.BoundNames(stmts[0].(*ast.Assign).Target))
}

func Test_QualifiedName_01(t *testing.T) {
	stmts := parse(t, "T.axis.remap(x)\nf()[0].x")
	//
	name, ok := ast.QualifiedName(stmts[0].(*ast.ExprStmt).Value.(*ast.Call).Fn)
	assert.True(t, ok)
	assert.Equal(t, "T.axis.remap", name)
	//
	_, ok = ast.QualifiedName(stmts[1].(*ast.ExprStmt).Value)
	assert.False(t, ok)
	//
	assert.Equal(t, "T.serial", ast.NewQualifiedName("T", "serial").String())
}

func Test_Print_01(t *testing.T) {
	assert.Equal(t, "pass", ast.StmtsString(nil, ""))
	assert.Equal(t, "    pass", ast.StmtsString(nil, ast.INDENT))
	assert.Equal(t, "1.0", (&ast.FloatLit{Value: 1}).String())
	assert.Equal(t, "(x,)", (&ast.Tuple{Elems: []ast.Expr{&ast.Name{Id: "x"}}}).String())
}

// ===================================================================
// Framework
// ===================================================================

func parse(t *testing.T, src string) []ast.Stmt {
	stmts, errs := parser.ParseStmts("test.ks", src+"\n")
	//
	for _, err := range errs {
		t.Error(err.Message())
	}
	//
	require.Empty(t, errs)
	//
	return stmts
}

func checkAlphaEqual(t *testing.T, lhs string, rhs string) {
	if err := ast.CheckAlphaEqual(parse(t, lhs), parse(t, rhs)); err != nil {
		t.Error(err)
	}
	// Symmetric
	if err := ast.CheckAlphaEqual(parse(t, rhs), parse(t, lhs)); err != nil {
		t.Error(err)
	}
}

func checkNotAlphaEqual(t *testing.T, lhs string, rhs string) {
	assert.False(t, ast.AlphaEqual(parse(t, lhs), parse(t, rhs)))
	assert.False(t, ast.AlphaEqual(parse(t, rhs), parse(t, lhs)))
}
