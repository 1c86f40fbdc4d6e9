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
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/consensys/go-kscript/pkg/kscript/ast"
)

func Test_Fresh_01(t *testing.T) {
	x, y := Fresh("x"), Fresh("x")
	//
	assert.NotEqual(t, x, y)
	assert.True(t, IsFresh(x))
	assert.False(t, IsFresh("x"))
	assert.Equal(t, "x", Original(x))
}

func Test_Fresh_02(t *testing.T) {
	// Refreshing retains the original identifier
	x := Fresh(Fresh("vi"))
	//
	assert.Equal(t, "vi", Original(x))
	assert.Equal(t, 1, countSeparators(x))
}

func Test_Fresh_03(t *testing.T) {
	// Concurrent allocation never repeats
	const workers, n = 8, 1000
	//
	var (
		wg    sync.WaitGroup
		names = make([][]string, workers)
	)
	//
	for w := range workers {
		wg.Add(1)
		//
		go func() {
			defer wg.Done()
			//
			for range n {
				names[w] = append(names[w], Fresh("t"))
			}
		}()
	}
	//
	wg.Wait()
	//
	seen := make(map[string]bool)
	//
	for _, ns := range names {
		for _, name := range ns {
			require.False(t, seen[name], "duplicate fresh name %s", name)
			seen[name] = true
		}
	}
	//
	assert.Len(t, seen, workers*n)
}

func Test_Environment_01(t *testing.T) {
	env := Universe()
	//
	for _, name := range BUILTINS {
		v, ok := env.Lookup(name)
		assert.True(t, ok, name)
		assert.Equal(t, BUILTIN, v.Kind)
	}
	//
	_, ok := env.Lookup("x_value")
	assert.False(t, ok)
}

func Test_Environment_02(t *testing.T) {
	// Snapshots are unaffected by later extensions
	var (
		env1 = Universe().Extend("x", ExprValue(&ast.IntLit{Value: 1}))
		env2 = env1.Extend("x", ExprValue(&ast.IntLit{Value: 2}))
		env3 = env2.Extend("y", ExprValue(&ast.IntLit{Value: 3}))
	)
	//
	checkExprValue(t, env1, "x", "1")
	checkExprValue(t, env2, "x", "2")
	checkExprValue(t, env3, "x", "2")
	checkExprValue(t, env3, "y", "3")
	//
	_, ok := env2.Lookup("y")
	assert.False(t, ok)
	assert.Equal(t, len(BUILTINS)+2, len(env3.Names()))
}

func Test_Scope_01(t *testing.T) {
	var (
		root   = NewScope(Universe().Extend("x", ExprValue(&ast.IntLit{Value: 128})))
		nested = root.Nested()
	)
	// Global resolution
	v, ok := nested.Resolve("x")
	require.True(t, ok)
	assert.Equal(t, "128", v.String())
	// Local shadowing
	nested.DeclareLocal("x", nil)
	_, ok = nested.Resolve("x")
	assert.False(t, ok)
	_, ok = root.Resolve("x")
	assert.True(t, ok)
	assert.True(t, nested.IsLocal("x"))
	assert.False(t, root.IsLocal("x"))
}

func Test_Scope_02(t *testing.T) {
	var (
		root  = NewScope(Universe())
		inner = root.Nested().Nested()
	)
	//
	root.Declare("vi", Binding{"vi$1", nil})
	//
	b, ok := inner.Lookup("vi")
	require.True(t, ok)
	assert.Equal(t, "vi$1", b.Name)
	// Shadowed in the middle frame
	inner.Enclosing().Declare("vi", Binding{"vi$2", nil})
	b, _ = inner.Lookup("vi")
	assert.Equal(t, "vi$2", b.Name)
	assert.Equal(t, root.Global(), inner.Global())
}

// ==================================================================
// Framework
// ==================================================================

func checkExprValue(t *testing.T, env *Environment, name string, expected string) {
	v, ok := env.Lookup(name)
	//
	require.True(t, ok, name)
	require.Equal(t, EXPR, v.Kind)
	assert.Equal(t, expected, v.Expr.String())
}

func countSeparators(name string) int {
	count := 0
	//
	for _, c := range name {
		if string(c) == SEPARATOR {
			count++
		}
	}
	//
	return count
}
