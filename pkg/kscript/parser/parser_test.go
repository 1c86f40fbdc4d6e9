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
package parser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/consensys/go-kscript/pkg/kscript/ast"
	"github.com/consensys/go-kscript/pkg/util/source"
)

// ===================================================================
// Files
// ===================================================================

func Test_File_01(t *testing.T) {
	file, srcmap := checkParse(t, `from tvm.script import tir as T

x_value = 128

@T.prim_func
def main(A: T.Buffer((128,), "float32")):
    A[0] = 1.0
`)
	//
	require.Len(t, file.Items, 3)
	//
	host0 := file.Items[0].(*ast.HostStmt)
	host1 := file.Items[1].(*ast.HostStmt)
	fn := file.Items[2].(*ast.FuncDef)
	//
	assert.Equal(t, "from tvm.script import tir as T", host0.Source)
	assert.Equal(t, 1, host0.Line)
	assert.Equal(t, "x_value = 128", host1.Source)
	assert.Equal(t, 3, host1.Line)
	assert.Equal(t, "main", fn.Name)
	// Definitions are mapped from their first decorator
	assert.True(t, srcmap.Has(fn))
	assert.Equal(t, "@T.prim_func", firstLine(srcmap, fn))
	assert.Equal(t, []*ast.FuncDef{fn}, file.Functions())
}

func Test_File_02(t *testing.T) {
	file, _ := checkParse(t, `def helper(n):
    if n > 0:
        return n
    else:
        return 0

N = helper(4)
`)
	// Undecorated definitions belong to the host
	require.Len(t, file.Items, 2)
	//
	host := file.Items[0].(*ast.HostStmt)
	//
	assert.True(t, strings.HasPrefix(host.Source, "def helper(n):"))
	assert.True(t, strings.HasSuffix(host.Source, "return 0"))
	assert.Equal(t, 1, host.Line)
	assert.Equal(t, 7, file.Items[1].(*ast.HostStmt).Line)
}

func Test_File_03(t *testing.T) {
	file, _ := checkParse(t, `# comment
@T.macro(hygienic=False)  # trailing
def m(a, b=1, *args, c, d=2, **kwargs) -> None:
    pass
`)
	//
	require.Len(t, file.Items, 1)
	//
	fn := file.Items[0].(*ast.FuncDef)
	kinds := []ast.ParamKind{ast.POSITIONAL, ast.POSITIONAL, ast.VAR_POSITIONAL, ast.KEYWORD_ONLY, ast.KEYWORD_ONLY,
		ast.VAR_KEYWORD}
	//
	require.Len(t, fn.Params, len(kinds))
	//
	for i, k := range kinds {
		assert.Equal(t, k, fn.Params[i].Kind, fn.Params[i].Name)
	}
	//
	assert.Equal(t, "T.macro(hygienic=False)", fn.Decorators[0].String())
	assert.Equal(t, "None", fn.Returns.String())
	assert.Equal(t, "1", fn.Params[1].Default.String())
}

func Test_File_04(t *testing.T) {
	file, _ := checkParse(t, `@T.macro
def m(a, *, b):
    pass
`)
	//
	fn := file.Items[0].(*ast.FuncDef)
	//
	require.Len(t, fn.Params, 2)
	assert.Equal(t, ast.POSITIONAL, fn.Params[0].Kind)
	assert.Equal(t, ast.KEYWORD_ONLY, fn.Params[1].Kind)
	assert.Equal(t, "@T.macro\ndef m(a, *, b):\n    pass", fn.String())
}

func Test_File_05(t *testing.T) {
	file, srcmap := checkParse(t, `@T.prim_func
def main(A: T.Buffer((4,), "int32")):
    A[0] = T.max(
        A[1],
        A[2])
`)
	// Newlines in brackets do not end lines
	fn := file.Items[0].(*ast.FuncDef)
	require.Len(t, fn.Body, 1)
	//
	assign := fn.Body[0].(*ast.Assign)
	//
	assert.Equal(t, "T.max(A[1], A[2])", assign.Value.String())
	assert.True(t, srcmap.Has(assign))
	assert.True(t, srcmap.Has(assign.Value))
}

// ===================================================================
// Round Trips
// ===================================================================

func Test_Print_01(t *testing.T) {
	checkRoundTrip(t, `vi, vj, vk = T.axis.remap("SSR", [i, j, k])`)
}

func Test_Print_02(t *testing.T) {
	checkRoundTrip(t, `C[vi, vj] = C[vi, vj] + A[vi, vk] * B[vj, vk]`)
}

func Test_Print_03(t *testing.T) {
	checkRoundTrip(t, "for i in T.serial(0, 128):\n    for j in range(n):\n        A[i, j] = 0.0")
}

func Test_Print_04(t *testing.T) {
	checkRoundTrip(t, "if a < b <= c:\n    x = 1\nelif not a and b or c:\n    x = 2\nelse:\n    x = 3")
}

func Test_Print_05(t *testing.T) {
	checkRoundTrip(t, "while i is not None:\n    i -= 1\n    break")
}

func Test_Print_06(t *testing.T) {
	checkRoundTrip(t, `with T.block("root") as blk:`+"\n    T.reads(A[0:n, ::2])")
}

func Test_Print_07(t *testing.T) {
	checkRoundTrip(t, "x = (a + b) * c - -d ** 2 ** e // f % g")
}

func Test_Print_08(t *testing.T) {
	checkRoundTrip(t, `f(1, *args, key=(1,), **{"a": [x, y]})`)
}

func Test_Print_09(t *testing.T) {
	checkRoundTrip(t, `B[()] = A[x_value] if flag else 0`)
}

func Test_Print_10(t *testing.T) {
	checkRoundTrip(t, `assert x not in xs, "message"`)
}

func Test_Print_11(t *testing.T) {
	checkRoundTrip(t, "x: T.int32 = 1\ny: T.float32")
}

func Test_Print_12(t *testing.T) {
	checkRoundTrip(t, "for x in xs:\n    continue")
}

func Test_Print_13(t *testing.T) {
	stmts := checkParseStmts(t, `s = 'single' "double"`)
	// Adjacent strings are concatenated
	assert.Equal(t, `s = "singledouble"`, ast.StmtsString(stmts, ""))
}

func Test_Print_14(t *testing.T) {
	stmts := checkParseStmts(t, "x = 1_000 + 0x10 + 1e3")
	//
	assert.Equal(t, "x = 1000 + 16 + 1000.0", ast.StmtsString(stmts, ""))
}

// ===================================================================
// Invalid
// ===================================================================

func Test_Invalid_01(t *testing.T) {
	checkParseError(t, "a = b = c", "chained assignment not supported")
}

func Test_Invalid_02(t *testing.T) {
	checkParseError(t, "f(a) = 1", "cannot assign to expression")
}

func Test_Invalid_03(t *testing.T) {
	checkParseError(t, "x = [i for i in xs]", "comprehensions not supported")
}

func Test_Invalid_04(t *testing.T) {
	checkParseError(t, "f(a=1, b)", "positional argument follows keyword argument")
}

func Test_Invalid_05(t *testing.T) {
	checkParseError(t, "if x:\n        a = 1\n    b = 2", "inconsistent indentation")
}

func Test_Invalid_06(t *testing.T) {
	checkFileError(t, "    x = 1\n", "unexpected indent")
}

func Test_Invalid_07(t *testing.T) {
	checkFileError(t, "x = 1 $ 2\n", "unknown text encountered")
}

// ===================================================================
// Framework
// ===================================================================

func checkParse(t *testing.T, src string) (*ast.File, *source.Map[ast.Node]) {
	file, srcmap, errs := Parse(source.NewSourceFile("test.ks", []byte(src)))
	//
	for _, err := range errs {
		t.Error(err.Message())
	}
	//
	require.Empty(t, errs)
	//
	return file, srcmap
}

func checkParseStmts(t *testing.T, src string) []ast.Stmt {
	stmts, errs := ParseStmts("test.ks", src+"\n")
	//
	for _, err := range errs {
		t.Error(err.Message())
	}
	//
	require.Empty(t, errs)
	//
	return stmts
}

func checkRoundTrip(t *testing.T, src string) {
	stmts := checkParseStmts(t, src)
	//
	assert.Equal(t, src, strings.TrimRight(ast.StmtsString(stmts, ""), "\n"))
}

func checkParseError(t *testing.T, src string, msg string) {
	_, errs := ParseStmts("test.ks", src+"\n")
	//
	require.NotEmpty(t, errs)
	assert.Contains(t, errs[0].Message(), msg)
}

func checkFileError(t *testing.T, src string, msg string) {
	_, _, errs := Parse(source.NewSourceFile("test.ks", []byte(src)))
	//
	require.NotEmpty(t, errs)
	assert.Contains(t, errs[0].Message(), msg)
}

func firstLine(srcmap *source.Map[ast.Node], node ast.Node) string {
	text := srcmap.Source().Text(srcmap.Get(node))
	//
	if i := strings.Index(text, "\n"); i >= 0 {
		return text[:i]
	}
	//
	return text
}
