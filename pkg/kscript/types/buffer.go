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
	"fmt"
	"strings"

	"github.com/consensys/go-kscript/pkg/kscript/ast"
)

// GLOBAL is the default storage scope.
const GLOBAL = "global"

// BufferType describes a multi-dimensional buffer.  Shape (and stride)
// dimensions are expressions, which may be symbolic.
type BufferType struct {
	Shape   []ast.Expr
	DType   PrimType
	Strides []ast.Expr
	Scope   string
}

// Rank returns the number of dimensions of this buffer.
func (t *BufferType) Rank() int {
	return len(t.Shape)
}

func (t *BufferType) String() string {
	var builder strings.Builder
	//
	builder.WriteString("T.Buffer(")
	builder.WriteString(shapeString(t.Shape))
	fmt.Fprintf(&builder, ", %q", t.DType.String())
	//
	if t.Scope != GLOBAL {
		fmt.Fprintf(&builder, ", scope=%q", t.Scope)
	}
	//
	builder.WriteString(")")
	//
	return builder.String()
}

// Equal implementation for the ast.Type interface.
func (t *BufferType) Equal(other ast.Type, eq func(lhs, rhs ast.Expr) bool) bool {
	o, ok := other.(*BufferType)
	//
	return ok && t.DType == o.DType && t.Scope == o.Scope && exprsEqual(t.Shape, o.Shape, eq) &&
		exprsEqual(t.Strides, o.Strides, eq)
}

// Map implementation for the ast.Type interface.
func (t *BufferType) Map(fn func(ast.Expr) (ast.Expr, error)) (ast.Type, error) {
	shape, err := mapExprs(t.Shape, fn)
	if err != nil {
		return nil, err
	}
	//
	strides, err := mapExprs(t.Strides, fn)
	if err != nil {
		return nil, err
	}
	//
	return &BufferType{shape, t.DType, strides, t.Scope}, nil
}

// ContiguousStrides determines the default (row-major) strides for a given
// shape.  No simplification is performed, except that products of two integer
// literals are folded and multiplication by one is omitted.
func ContiguousStrides(shape []ast.Expr) []ast.Expr {
	var (
		n       = len(shape)
		strides = make([]ast.Expr, n)
	)
	//
	if n == 0 {
		return strides
	}
	//
	strides[n-1] = &ast.IntLit{Value: 1}
	//
	for i := n - 2; i >= 0; i-- {
		strides[i] = multiply(strides[i+1], shape[i+1])
	}
	//
	return strides
}

func multiply(lhs ast.Expr, rhs ast.Expr) ast.Expr {
	l, lok := lhs.(*ast.IntLit)
	r, rok := rhs.(*ast.IntLit)
	//
	switch {
	case lok && rok:
		return &ast.IntLit{Value: l.Value * r.Value}
	case lok && l.Value == 1:
		return ast.CloneExpr(rhs)
	}
	//
	return &ast.BinOp{Op: "*", Left: ast.CloneExpr(lhs), Right: ast.CloneExpr(rhs)}
}

// PointerType describes the target of a pointer variable.
type PointerType struct {
	Element PrimType
	Scope   string
}

func (t *PointerType) String() string {
	if t.Scope == GLOBAL {
		return fmt.Sprintf("T.handle(%q)", t.Element.String())
	}
	//
	return fmt.Sprintf("T.handle(%q, %q)", t.Element.String(), t.Scope)
}

// Equal implementation for the ast.Type interface.
func (t *PointerType) Equal(other ast.Type, _ func(lhs, rhs ast.Expr) bool) bool {
	o, ok := other.(*PointerType)
	return ok && *t == *o
}

// Map implementation for the ast.Type interface.
func (t *PointerType) Map(_ func(ast.Expr) (ast.Expr, error)) (ast.Type, error) {
	return &PointerType{t.Element, t.Scope}, nil
}

// PointerVar is a variable of handle type, optionally annotated with the type
// it points to.  A bare "T.handle" has no annotation.
type PointerVar struct {
	Name       string
	DType      PrimType
	Annotation *PointerType
}

// Type returns the type by which this variable is declared, which is either
// the pointer type (if annotated) or the plain handle type.
func (v *PointerVar) Type() ast.Type {
	if v.Annotation != nil {
		return v.Annotation
	}
	//
	return v.DType
}

func (v *PointerVar) String() string {
	return fmt.Sprintf("%s: %s", v.Name, v.Type().String())
}

func shapeString(shape []ast.Expr) string {
	var builder strings.Builder
	//
	builder.WriteString("(")
	//
	for i, e := range shape {
		if i != 0 {
			builder.WriteString(", ")
		}
		//
		builder.WriteString(ast.ExprString(e))
	}
	//
	if len(shape) == 1 {
		builder.WriteString(",")
	}
	//
	builder.WriteString(")")
	//
	return builder.String()
}

func exprsEqual(lhs, rhs []ast.Expr, eq func(lhs, rhs ast.Expr) bool) bool {
	if len(lhs) != len(rhs) {
		return false
	}
	//
	for i := range lhs {
		if !eq(lhs[i], rhs[i]) {
			return false
		}
	}
	//
	return true
}

func mapExprs(exprs []ast.Expr, fn func(ast.Expr) (ast.Expr, error)) ([]ast.Expr, error) {
	var (
		nexprs = make([]ast.Expr, len(exprs))
		err    error
	)
	//
	for i, e := range exprs {
		if nexprs[i], err = fn(e); err != nil {
			return nil, err
		}
	}
	//
	return nexprs, nil
}
