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
package ast

// Node is any element of a syntax tree which can be associated with a span of
// the original source text.  All nodes are pointers, such that they can be used
// as keys within a source map.
type Node interface {
	String() string
}

// Expr represents an arbitrary (unevaluated) expression.
type Expr interface {
	Node
	isExpr()
}

// Type is a resolved type descriptor embedded within an expression tree, such
// as a buffer type produced from a T.Buffer(...) proxy.  Types may themselves
// contain expressions (e.g. symbolic shape dimensions).
type Type interface {
	String() string
	// Equal determines whether this type is structurally equal to another,
	// using a given comparator for any embedded expressions.
	Equal(other Type, eq func(lhs, rhs Expr) bool) bool
	// Map rebuilds this type by applying a given function to every embedded
	// expression.
	Map(fn func(Expr) (Expr, error)) (Type, error)
}

// Macro is an opaque reference to a macro definition, as used by MacroRef
// nodes.
type Macro interface {
	MacroName() string
}

// Name represents a use of an identifier.
type Name struct {
	Id string
}

// IntLit represents an integer literal.
type IntLit struct {
	Value int64
}

// FloatLit represents a floating point literal.
type FloatLit struct {
	Value float64
}

// StrLit represents a string literal.
type StrLit struct {
	Value string
}

// BoolLit represents either True or False.
type BoolLit struct {
	Value bool
}

// NoneLit represents None.
type NoneLit struct {
	// Ensures distinct NoneLit nodes have distinct addresses.
	_ byte
}

// Tuple represents a tuple expression "(a, b, ...)", including the empty tuple
// "()".
type Tuple struct {
	Elems []Expr
}

// List represents a list expression "[a, b, ...]".
type List struct {
	Elems []Expr
}

// Dict represents a dictionary expression "{k: v, ...}".  Keys and values are
// held in matching order.
type Dict struct {
	Keys   []Expr
	Values []Expr
}

// Attribute represents an attribute access "x.attr".
type Attribute struct {
	Value Expr
	Attr  string
}

// Subscript represents an indexing operation "x[i]".  Multiple indices are
// represented with a Tuple index, such that "A[i, j]" and "A[(i, j)]" coincide.
type Subscript struct {
	Value Expr
	Index Expr
}

// Slice represents a slice "lo:hi:step" within a subscript.  Any component may
// be nil.
type Slice struct {
	Lower Expr
	Upper Expr
	Step  Expr
}

// Keyword represents a keyword argument "name=value" of a call.  A keyword with
// an empty name represents a mapping spread "**value".
type Keyword struct {
	Name  string
	Value Expr
}

// Call represents a function (or macro) call.  Sequence spreads "*x" appear as
// Starred arguments.
type Call struct {
	Fn       Expr
	Args     []Expr
	Keywords []*Keyword
}

// Starred represents a sequence spread "*x" within call arguments.
type Starred struct {
	Value Expr
}

// BinOp represents a binary arithmetic operation, such as "x + y".
type BinOp struct {
	Op    string
	Left  Expr
	Right Expr
}

// UnaryOp represents a unary operation "-x", "+x", "~x" or "not x".
type UnaryOp struct {
	Op      string
	Operand Expr
}

// Compare represents a (possibly chained) comparison "a < b <= c".
type Compare struct {
	Left        Expr
	Ops         []string
	Comparators []Expr
}

// BoolOp represents a short-circuiting "and" or "or" over two or more values.
type BoolOp struct {
	Op     string
	Values []Expr
}

// IfExp represents a conditional expression "x if c else y".
type IfExp struct {
	Test   Expr
	Body   Expr
	OrElse Expr
}

// TypeValue embeds a resolved type into an expression tree.
type TypeValue struct {
	Type Type
}

// MacroRef is a resolved reference to a macro definition.  These only arise
// through expansion, when a free identifier inside a macro body resolves to a
// macro.
type MacroRef struct {
	Macro Macro
}

func (*Name) isExpr()      {}
func (*IntLit) isExpr()    {}
func (*FloatLit) isExpr()  {}
func (*StrLit) isExpr()    {}
func (*BoolLit) isExpr()   {}
func (*NoneLit) isExpr()   {}
func (*Tuple) isExpr()     {}
func (*List) isExpr()      {}
func (*Dict) isExpr()      {}
func (*Attribute) isExpr() {}
func (*Subscript) isExpr() {}
func (*Slice) isExpr()     {}
func (*Call) isExpr()      {}
func (*Starred) isExpr()   {}
func (*BinOp) isExpr()     {}
func (*UnaryOp) isExpr()   {}
func (*Compare) isExpr()   {}
func (*BoolOp) isExpr()    {}
func (*IfExp) isExpr()     {}
func (*TypeValue) isExpr() {}
func (*MacroRef) isExpr()  {}

func (e *Name) String() string      { return ExprString(e) }
func (e *IntLit) String() string    { return ExprString(e) }
func (e *FloatLit) String() string  { return ExprString(e) }
func (e *StrLit) String() string    { return ExprString(e) }
func (e *BoolLit) String() string   { return ExprString(e) }
func (e *NoneLit) String() string   { return ExprString(e) }
func (e *Tuple) String() string     { return ExprString(e) }
func (e *List) String() string      { return ExprString(e) }
func (e *Dict) String() string      { return ExprString(e) }
func (e *Attribute) String() string { return ExprString(e) }
func (e *Subscript) String() string { return ExprString(e) }
func (e *Slice) String() string     { return ExprString(e) }
func (e *Call) String() string      { return ExprString(e) }
func (e *Starred) String() string   { return ExprString(e) }
func (e *BinOp) String() string     { return ExprString(e) }
func (e *UnaryOp) String() string   { return ExprString(e) }
func (e *Compare) String() string   { return ExprString(e) }
func (e *BoolOp) String() string    { return ExprString(e) }
func (e *IfExp) String() string     { return ExprString(e) }
func (e *TypeValue) String() string { return ExprString(e) }
func (e *MacroRef) String() string  { return ExprString(e) }

func (k *Keyword) String() string {
	if k.Name == "" {
		return "**" + ExprString(k.Value)
	}
	//
	return k.Name + "=" + ExprString(k.Value)
}

// QualifiedName returns the dotted name of an expression consisting only of
// names and attribute accesses (e.g. "T.axis.remap"), or false otherwise.
func QualifiedName(e Expr) (string, bool) {
	switch e := e.(type) {
	case *Name:
		return e.Id, true
	case *Attribute:
		if prefix, ok := QualifiedName(e.Value); ok {
			return prefix + "." + e.Attr, true
		}
	}
	//
	return "", false
}

// NewQualifiedName constructs an expression for a dotted name, such as
// "T.serial".
func NewQualifiedName(root string, attrs ...string) Expr {
	var e Expr = &Name{root}
	//
	for _, attr := range attrs {
		e = &Attribute{e, attr}
	}
	//
	return e
}

// IsLiteral checks whether a given expression is a constant literal (including
// tuples, lists and dictionaries of literals).
func IsLiteral(e Expr) bool {
	switch e := e.(type) {
	case *IntLit, *FloatLit, *StrLit, *BoolLit, *NoneLit:
		return true
	case *Tuple:
		return allLiterals(e.Elems)
	case *List:
		return allLiterals(e.Elems)
	case *Dict:
		return allLiterals(e.Keys) && allLiterals(e.Values)
	}
	//
	return false
}

func allLiterals(exprs []Expr) bool {
	for _, e := range exprs {
		if !IsLiteral(e) {
			return false
		}
	}
	//
	return true
}
