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
package types

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/consensys/go-kscript/pkg/kscript/ast"
	"github.com/consensys/go-kscript/pkg/kscript/diag"
)

func Test_ResolveBuffer_01(t *testing.T) {
	buf := resolveBuffer(t, "float32", "", ints(128, 128)...)
	//
	assert.Equal(t, ints(128, 128), buf.Shape)
	assert.Equal(t, "float32", buf.DType.String())
	assert.Equal(t, GLOBAL, buf.Scope)
	assert.Equal(t, ints(128, 1), buf.Strides)
}

func Test_ResolveBuffer_02(t *testing.T) {
	buf := resolveBuffer(t, "int32", "shared", ints(64, 64, 64)...)
	//
	assert.Equal(t, ints(64, 64, 64), buf.Shape)
	assert.Equal(t, PrimType{INT, 32, 1}, buf.DType)
	assert.Equal(t, "shared", buf.Scope)
	assert.Equal(t, ints(4096, 64, 1), buf.Strides)
}

func Test_ResolveBuffer_03(t *testing.T) {
	// Symbolic shapes produce symbolic strides
	n, m := &ast.Name{Id: "n"}, &ast.Name{Id: "m"}
	buf := resolveBuffer(t, "float16", "", n, m, &ast.IntLit{Value: 4})
	//
	require.Len(t, buf.Strides, 3)
	assert.Equal(t, "4 * m", buf.Strides[0].String())
	assert.Equal(t, "4", buf.Strides[1].String())
	assert.Equal(t, "1", buf.Strides[2].String())
}

func Test_ResolveBuffer_04(t *testing.T) {
	// Scalar buffer
	buf := resolveBuffer(t, "float32", "")
	//
	assert.Empty(t, buf.Shape)
	assert.Empty(t, buf.Strides)
	assert.Equal(t, `T.Buffer((), "float32")`, buf.String())
}

func Test_ResolveBuffer_05(t *testing.T) {
	buf := resolveBuffer(t, "float32x4", "local", ints(8)...)
	//
	assert.Equal(t, uint(4), buf.DType.Lanes)
	assert.Equal(t, `T.Buffer((8,), "float32x4", scope="local")`, buf.String())
}

func Test_ResolveBuffer_Invalid_01(t *testing.T) {
	checkResolveError(t, diag.ErrUnknownDType, BufferProxy{Shape: ints(128), DType: "float31"})
}

func Test_ResolveBuffer_Invalid_02(t *testing.T) {
	checkResolveError(t, diag.ErrDefinition, BufferProxy{Shape: ints(-1), DType: "float32"})
}

func Test_ResolveBuffer_Invalid_03(t *testing.T) {
	shape := []ast.Expr{&ast.StrLit{Value: "x"}}
	checkResolveError(t, diag.ErrDefinition, BufferProxy{Shape: shape, DType: "float32"})
}

func Test_ResolveBuffer_Invalid_04(t *testing.T) {
	checkResolveError(t, diag.ErrUnknownDType, BufferProxy{Shape: ints(4), DType: "boolx4"})
}

func Test_ResolveBuffer_Invalid_05(t *testing.T) {
	checkResolveError(t, diag.ErrDefinition, BufferProxy{Shape: ints(4, 4), DType: "int8", Strides: ints(1)})
}

func Test_ResolvePointer_01(t *testing.T) {
	ptr := resolvePointer(t, "int32", "global")
	//
	assert.Equal(t, Handle, ptr.DType)
	require.NotNil(t, ptr.Annotation)
	assert.Equal(t, PrimType{INT, 32, 1}, ptr.Annotation.Element)
	assert.Equal(t, "global", ptr.Annotation.Scope)
}

func Test_ResolvePointer_02(t *testing.T) {
	ptr := resolvePointer(t, "float32", "shared")
	//
	assert.Equal(t, "handle", ptr.DType.String())
	require.NotNil(t, ptr.Annotation)
	assert.Equal(t, "float32", ptr.Annotation.Element.String())
	assert.Equal(t, "shared", ptr.Annotation.Scope)
	assert.Equal(t, `p: T.handle("float32", "shared")`, ptr.String())
}

func Test_ResolvePointer_03(t *testing.T) {
	// Bare handles are not annotated
	ptr := resolvePointer(t, "", "")
	//
	assert.Nil(t, ptr.Annotation)
	assert.Equal(t, Handle, ptr.Type())
}

func Test_ResolvePointer_Invalid_01(t *testing.T) {
	_, err := NewResolver(DefaultRegistry()).ResolvePointer(PointerProxy{Name: "p", DType: "int33"})
	//
	assert.True(t, errors.Is(err, diag.ErrUnknownDType))
}

func Test_Registry_01(t *testing.T) {
	r := DefaultRegistry()
	//
	for _, name := range []string{"int8", "int16", "int32", "int64", "uint8", "uint16", "uint32", "uint64",
		"float16", "float32", "float64", "bfloat16", "bool", "handle"} {
		dtype, ok := r.Lookup(name)
		//
		assert.True(t, ok, name)
		assert.Equal(t, name, dtype.String())
	}
	//
	assert.Len(t, r.Names(), 14)
}

func Test_Registry_02(t *testing.T) {
	r := DefaultRegistry()
	//
	for _, name := range []string{"", "int", "float", "int7", "float32x", "float32x1", "handlex2", "x4"} {
		_, ok := r.Lookup(name)
		assert.False(t, ok, name)
	}
}

func Test_BufferEqual_01(t *testing.T) {
	var (
		lhs = resolveBuffer(t, "float32", "", &ast.Name{Id: "n"}, &ast.IntLit{Value: 2})
		rhs = resolveBuffer(t, "float32", "", &ast.Name{Id: "m"}, &ast.IntLit{Value: 2})
	)
	// Equality of embedded expressions is delegated
	assert.True(t, lhs.Equal(rhs, func(l, r ast.Expr) bool { return true }))
	assert.False(t, lhs.Equal(rhs, func(l, r ast.Expr) bool { return l.String() == r.String() }))
	assert.False(t, lhs.Equal(PrimType{FLOAT, 32, 1}, nil))
}

// ==================================================================
// Framework
// ==================================================================

func ints(values ...int64) []ast.Expr {
	exprs := make([]ast.Expr, len(values))
	//
	for i, v := range values {
		exprs[i] = &ast.IntLit{Value: v}
	}
	//
	return exprs
}

func resolveBuffer(t *testing.T, dtype string, scope string, shape ...ast.Expr) *BufferType {
	buf, err := NewResolver(DefaultRegistry()).ResolveBuffer(BufferProxy{Shape: shape, DType: dtype, Scope: scope})
	require.NoError(t, err)
	//
	return buf
}

func resolvePointer(t *testing.T, dtype string, scope string) *PointerVar {
	ptr, err := NewResolver(DefaultRegistry()).ResolvePointer(PointerProxy{Name: "p", DType: dtype, Scope: scope})
	require.NoError(t, err)
	//
	return ptr
}

func checkResolveError(t *testing.T, kind error, proxy BufferProxy) {
	_, err := NewResolver(DefaultRegistry()).ResolveBuffer(proxy)
	//
	require.Error(t, err)
	assert.True(t, errors.Is(err, kind), "expected %v, got %v", kind, err)
}
