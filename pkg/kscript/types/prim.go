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
	"slices"
	"strconv"
	"strings"

	"github.com/consensys/go-kscript/pkg/kscript/ast"
)

// TypeCode identifies the family of a primitive type.
type TypeCode uint8

const (
	// INT represents signed integers.
	INT TypeCode = iota
	// UINT represents unsigned integers.
	UINT
	// FLOAT represents IEEE floating point numbers.
	FLOAT
	// BFLOAT represents brain floating point numbers.
	BFLOAT
	// BOOL represents booleans.
	BOOL
	// HANDLE represents opaque pointers.
	HANDLE
)

// PrimType is a primitive (machine) type, possibly vectorised over a number of
// lanes.
type PrimType struct {
	Code  TypeCode
	Bits  uint
	Lanes uint
}

// Handle is the type of all pointer variables.
var Handle = PrimType{HANDLE, 64, 1}

// Bool is the boolean type.
var Bool = PrimType{BOOL, 1, 1}

// IsHandle checks whether this is the handle type.
func (t PrimType) IsHandle() bool {
	return t.Code == HANDLE
}

// Scalar returns the element type of this (possibly vector) type.
func (t PrimType) Scalar() PrimType {
	return PrimType{t.Code, t.Bits, 1}
}

func (t PrimType) String() string {
	var name string
	//
	switch t.Code {
	case INT:
		name = fmt.Sprintf("int%d", t.Bits)
	case UINT:
		name = fmt.Sprintf("uint%d", t.Bits)
	case FLOAT:
		name = fmt.Sprintf("float%d", t.Bits)
	case BFLOAT:
		name = fmt.Sprintf("bfloat%d", t.Bits)
	case BOOL:
		name = "bool"
	case HANDLE:
		name = "handle"
	default:
		name = "unknown"
	}
	//
	if t.Lanes > 1 {
		name = fmt.Sprintf("%sx%d", name, t.Lanes)
	}
	//
	return name
}

// Equal implementation for the ast.Type interface.
func (t PrimType) Equal(other ast.Type, _ func(lhs, rhs ast.Expr) bool) bool {
	o, ok := other.(PrimType)
	return ok && o == t
}

// Map implementation for the ast.Type interface.  Primitive types contain no
// expressions.
func (t PrimType) Map(_ func(ast.Expr) (ast.Expr, error)) (ast.Type, error) {
	return t, nil
}

// Registry enumerates the recognised primitive types by name.
type Registry interface {
	// Lookup a primitive type by name, such as "float32" or "int8x4".
	Lookup(name string) (PrimType, bool)
	// Names of all recognised scalar types in sorted order.
	Names() []string
}

// DefaultRegistry returns the registry of standard primitive types: fixed-width
// signed and unsigned integers, floats, bfloat16, bool and handle.  Any scalar
// other than bool and handle may be vectorised, as in "float32x4".
func DefaultRegistry() Registry {
	return defaultRegistry
}

// NewRegistry constructs a registry from a given set of scalar types.
func NewRegistry(scalars ...PrimType) Registry {
	var r = &registry{make(map[string]PrimType)}
	//
	for _, t := range scalars {
		r.scalars[t.String()] = t
	}
	//
	return r
}

var defaultRegistry = NewRegistry(
	PrimType{INT, 8, 1}, PrimType{INT, 16, 1}, PrimType{INT, 32, 1}, PrimType{INT, 64, 1},
	PrimType{UINT, 8, 1}, PrimType{UINT, 16, 1}, PrimType{UINT, 32, 1}, PrimType{UINT, 64, 1},
	PrimType{FLOAT, 16, 1}, PrimType{FLOAT, 32, 1}, PrimType{FLOAT, 64, 1},
	PrimType{BFLOAT, 16, 1},
	Bool,
	Handle,
)

type registry struct {
	scalars map[string]PrimType
}

func (r *registry) Lookup(name string) (PrimType, bool) {
	if t, ok := r.scalars[name]; ok {
		return t, true
	}
	// Check for vector type
	if i := strings.LastIndexByte(name, 'x'); i > 0 {
		lanes, err := strconv.ParseUint(name[i+1:], 10, 16)
		t, ok := r.scalars[name[:i]]
		//
		if err == nil && ok && lanes > 1 && t.Code != BOOL && t.Code != HANDLE {
			return PrimType{t.Code, t.Bits, uint(lanes)}, true
		}
	}
	//
	return PrimType{}, false
}

func (r *registry) Names() []string {
	var names []string
	//
	for name := range r.scalars {
		names = append(names, name)
	}
	//
	slices.Sort(names)
	//
	return names
}
