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
	"github.com/consensys/go-kscript/pkg/kscript/ast"
	"github.com/consensys/go-kscript/pkg/kscript/diag"
)

// BufferProxy is a declarative description of a buffer, as given by
// "T.Buffer(shape, dtype, scope)".  Strides are optional and default to a
// contiguous layout.
type BufferProxy struct {
	Shape   []ast.Expr
	DType   string
	Scope   string
	Strides []ast.Expr
	// Node from which this proxy originates (used for error reporting).
	Node ast.Node
}

// PointerProxy is a declarative description of a pointer variable, as given by
// "T.handle(dtype, scope)".  An empty DType gives a bare (unannotated) handle.
type PointerProxy struct {
	Name  string
	DType string
	Scope string
	// Node from which this proxy originates (used for error reporting).
	Node ast.Node
}

// Resolver converts proxies into resolved types, validating their primitive
// types against a given registry.
type Resolver struct {
	registry Registry
}

// NewResolver constructs a resolver for a given registry.
func NewResolver(registry Registry) *Resolver {
	return &Resolver{registry}
}

// Registry returns the primitive type registry used by this resolver.
func (r *Resolver) Registry() Registry {
	return r.registry
}

// ResolveBuffer resolves a buffer proxy into a buffer type.  Shape entries must
// be non-negative integer literals or symbolic expressions.
func (r *Resolver) ResolveBuffer(proxy BufferProxy) (*BufferType, error) {
	dtype, err := r.ResolveDType(proxy.DType, proxy.Node)
	if err != nil {
		return nil, err
	} else if dtype.IsHandle() {
		return nil, diag.Definitionf(proxy.Node, "buffer cannot have handle element type")
	}
	//
	shape := make([]ast.Expr, len(proxy.Shape))
	//
	for i, dim := range proxy.Shape {
		if err := checkDimension(dim, proxy.Node); err != nil {
			return nil, err
		}
		//
		shape[i] = dim
	}
	//
	strides := proxy.Strides
	//
	if len(strides) == 0 {
		strides = ContiguousStrides(shape)
	} else if len(strides) != len(shape) {
		return nil, diag.Definitionf(proxy.Node, "expected %d strides (found %d)", len(shape), len(strides))
	}
	//
	return &BufferType{shape, dtype, strides, scopeOf(proxy.Scope)}, nil
}

// ResolvePointer resolves a pointer proxy into a pointer variable.
func (r *Resolver) ResolvePointer(proxy PointerProxy) (*PointerVar, error) {
	if proxy.DType == "" {
		return &PointerVar{proxy.Name, Handle, nil}, nil
	}
	//
	dtype, err := r.ResolveDType(proxy.DType, proxy.Node)
	if err != nil {
		return nil, err
	}
	//
	return &PointerVar{proxy.Name, Handle, &PointerType{dtype, scopeOf(proxy.Scope)}}, nil
}

// ResolveDType resolves the name of a primitive type.
func (r *Resolver) ResolveDType(name string, node ast.Node) (PrimType, error) {
	if dtype, ok := r.registry.Lookup(name); ok {
		return dtype, nil
	}
	//
	return PrimType{}, diag.UnknownDTypef(node, "unknown dtype %q", name)
}

// Scalar resolves the name of a primitive type for use as a scalar
// annotation, such as "T.int32".
func (r *Resolver) Scalar(name string, node ast.Node) (PrimType, error) {
	return r.ResolveDType(name, node)
}

// Scalar resolves the name of a primitive type against the default registry.
func Scalar(name string) (PrimType, error) {
	return NewResolver(DefaultRegistry()).Scalar(name, nil)
}

func checkDimension(dim ast.Expr, node ast.Node) error {
	switch d := dim.(type) {
	case *ast.IntLit:
		if d.Value < 0 {
			return diag.Definitionf(node, "negative buffer dimension %d", d.Value)
		}
	case *ast.UnaryOp:
		if _, ok := d.Operand.(*ast.IntLit); ok && d.Op == "-" {
			return diag.Definitionf(node, "negative buffer dimension %s", d.String())
		}
	case *ast.Name, *ast.Attribute, *ast.BinOp, *ast.Call, *ast.Subscript:
		// symbolic
	default:
		return diag.Definitionf(node, "invalid buffer dimension %s", dim.String())
	}
	//
	return nil
}

func scopeOf(scope string) string {
	if scope == "" {
		return GLOBAL
	}
	//
	return scope
}
