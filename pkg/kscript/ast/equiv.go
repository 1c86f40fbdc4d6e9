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

import (
	"fmt"
	"math"
	"slices"
)

// Equivalence determines whether two syntax trees are structurally equal up to
// a consistent renaming of bound identifiers (i.e. alpha-equivalent).  It
// maintains a bijection between identifiers bound on the left and those bound
// on the right.  Identifiers which are never bound (e.g. "T" or "range") must
// match exactly.
type Equivalence struct {
	left  map[string]string
	right map[string]string
}

// NewEquivalence constructs an equivalence with no bound identifiers.
func NewEquivalence() *Equivalence {
	return &Equivalence{make(map[string]string), make(map[string]string)}
}

// AlphaEqual determines whether two statement sequences are alpha-equivalent.
func AlphaEqual(lhs, rhs []Stmt) bool {
	return NewEquivalence().Stmts(lhs, rhs)
}

// CheckAlphaEqual determines whether two statement sequences are
// alpha-equivalent, returning an error describing the first mismatching
// statement if not.
func CheckAlphaEqual(lhs, rhs []Stmt) error {
	var eq = NewEquivalence()
	//
	for i := range min(len(lhs), len(rhs)) {
		if !eq.Stmt(lhs[i], rhs[i]) {
			return fmt.Errorf("statement %d differs:\n%s\n---\n%s", i+1,
				StmtString(lhs[i]), StmtString(rhs[i]))
		}
	}
	//
	if len(lhs) != len(rhs) {
		return fmt.Errorf("statement counts differ (%d vs %d):\n%s\n---\n%s", len(lhs), len(rhs),
			StmtsString(lhs, ""), StmtsString(rhs, ""))
	}
	//
	return nil
}

// Bind records a binding occurrence of identifier l on the left paired with
// identifier r on the right.  Any earlier pairing of either identifier is
// discarded, since a rebinding shadows what came before.
func (p *Equivalence) Bind(l, r string) {
	if old, ok := p.left[l]; ok {
		delete(p.right, old)
	}
	//
	if old, ok := p.right[r]; ok {
		delete(p.left, old)
	}
	//
	p.left[l] = r
	p.right[r] = l
}

// Use checks whether a use of identifier l on the left corresponds with a use
// of identifier r on the right.
func (p *Equivalence) Use(l, r string) bool {
	lr, lok := p.left[l]
	rl, rok := p.right[r]
	//
	switch {
	case lok && rok:
		return lr == r && rl == l
	case lok || rok:
		return false
	default:
		return l == r
	}
}

// Stmts checks whether two statement sequences are equivalent.
func (p *Equivalence) Stmts(lhs, rhs []Stmt) bool {
	if len(lhs) != len(rhs) {
		return false
	}
	//
	for i := range lhs {
		if !p.Stmt(lhs[i], rhs[i]) {
			return false
		}
	}
	//
	return true
}

// Stmt checks whether two statements are equivalent.
//
// nolint
func (p *Equivalence) Stmt(lhs, rhs Stmt) bool {
	switch l := lhs.(type) {
	case *ExprStmt:
		r, ok := rhs.(*ExprStmt)
		return ok && p.Expr(l.Value, r.Value)
	case *Assign:
		r, ok := rhs.(*Assign)
		// Right-hand side is evaluated before the target is bound.
		return ok && p.optional(l.Value, r.Value) && p.optional(l.Annotation, r.Annotation) &&
			p.Target(l.Target, r.Target)
	case *AugAssign:
		r, ok := rhs.(*AugAssign)
		return ok && l.Op == r.Op && p.Expr(l.Value, r.Value) && p.Expr(l.Target, r.Target)
	case *For:
		r, ok := rhs.(*For)
		return ok && p.Expr(l.Iter, r.Iter) && p.Target(l.Target, r.Target) && p.Stmts(l.Body, r.Body)
	case *While:
		r, ok := rhs.(*While)
		return ok && p.Expr(l.Test, r.Test) && p.Stmts(l.Body, r.Body)
	case *If:
		r, ok := rhs.(*If)
		return ok && p.Expr(l.Test, r.Test) && p.Stmts(l.Body, r.Body) && p.Stmts(l.OrElse, r.OrElse)
	case *With:
		r, ok := rhs.(*With)
		//
		if !ok || !p.Expr(l.Context, r.Context) || (l.Target == nil) != (r.Target == nil) {
			return false
		} else if l.Target != nil && !p.Target(l.Target, r.Target) {
			return false
		}
		//
		return p.Stmts(l.Body, r.Body)
	case *Return:
		r, ok := rhs.(*Return)
		return ok && p.optional(l.Value, r.Value)
	case *Assert:
		r, ok := rhs.(*Assert)
		return ok && p.Expr(l.Test, r.Test) && p.optional(l.Msg, r.Msg)
	case *Pass:
		_, ok := rhs.(*Pass)
		return ok
	case *Break:
		_, ok := rhs.(*Break)
		return ok
	case *Continue:
		_, ok := rhs.(*Continue)
		return ok
	case *FuncDef:
		r, ok := rhs.(*FuncDef)
		return ok && l.Name == r.Name && p.Exprs(l.Decorators, r.Decorators) && p.Params(l.Params, r.Params) &&
			p.optional(l.Returns, r.Returns) && p.Stmts(l.Body, r.Body)
	case *HostStmt:
		r, ok := rhs.(*HostStmt)
		return ok && l.Source == r.Source
	}
	//
	panic(fmt.Sprintf("unknown statement encountered (%T)", lhs))
}

// Params checks whether two parameter lists are equivalent, binding each pair
// of parameter names.  Annotations and defaults are compared before the names
// are bound.
func (p *Equivalence) Params(lhs, rhs []*Param) bool {
	if len(lhs) != len(rhs) {
		return false
	}
	//
	for i := range lhs {
		l, r := lhs[i], rhs[i]
		//
		if l.Kind != r.Kind || !p.optional(l.Annotation, r.Annotation) || !p.optional(l.Default, r.Default) {
			return false
		}
		//
		p.Bind(l.Name, r.Name)
	}
	//
	return true
}

// Target checks whether two assignment targets are equivalent, binding any
// names they introduce.
func (p *Equivalence) Target(lhs, rhs Expr) bool {
	switch l := lhs.(type) {
	case *Name:
		if r, ok := rhs.(*Name); ok {
			p.Bind(l.Id, r.Id)
			return true
		}
		//
		return false
	case *Tuple:
		r, ok := rhs.(*Tuple)
		return ok && p.targets(l.Elems, r.Elems)
	case *List:
		r, ok := rhs.(*List)
		return ok && p.targets(l.Elems, r.Elems)
	case *Starred:
		r, ok := rhs.(*Starred)
		return ok && p.Target(l.Value, r.Value)
	}
	//
	return p.Expr(lhs, rhs)
}

func (p *Equivalence) targets(lhs, rhs []Expr) bool {
	if len(lhs) != len(rhs) {
		return false
	}
	//
	for i := range lhs {
		if !p.Target(lhs[i], rhs[i]) {
			return false
		}
	}
	//
	return true
}

// Exprs checks whether two expression sequences are equivalent.
func (p *Equivalence) Exprs(lhs, rhs []Expr) bool {
	if len(lhs) != len(rhs) {
		return false
	}
	//
	for i := range lhs {
		if !p.Expr(lhs[i], rhs[i]) {
			return false
		}
	}
	//
	return true
}

// Expr checks whether two expressions are equivalent.
//
// nolint
func (p *Equivalence) Expr(lhs, rhs Expr) bool {
	switch l := lhs.(type) {
	case *Name:
		r, ok := rhs.(*Name)
		return ok && p.Use(l.Id, r.Id)
	case *IntLit:
		r, ok := rhs.(*IntLit)
		return ok && l.Value == r.Value
	case *FloatLit:
		r, ok := rhs.(*FloatLit)
		return ok && (l.Value == r.Value || (math.IsNaN(l.Value) && math.IsNaN(r.Value)))
	case *StrLit:
		r, ok := rhs.(*StrLit)
		return ok && l.Value == r.Value
	case *BoolLit:
		r, ok := rhs.(*BoolLit)
		return ok && l.Value == r.Value
	case *NoneLit:
		_, ok := rhs.(*NoneLit)
		return ok
	case *Tuple:
		r, ok := rhs.(*Tuple)
		return ok && p.Exprs(l.Elems, r.Elems)
	case *List:
		r, ok := rhs.(*List)
		return ok && p.Exprs(l.Elems, r.Elems)
	case *Dict:
		r, ok := rhs.(*Dict)
		return ok && p.Exprs(l.Keys, r.Keys) && p.Exprs(l.Values, r.Values)
	case *Attribute:
		r, ok := rhs.(*Attribute)
		return ok && l.Attr == r.Attr && p.Expr(l.Value, r.Value)
	case *Subscript:
		r, ok := rhs.(*Subscript)
		return ok && p.Expr(l.Value, r.Value) && p.Expr(l.Index, r.Index)
	case *Slice:
		r, ok := rhs.(*Slice)
		return ok && p.optional(l.Lower, r.Lower) && p.optional(l.Upper, r.Upper) && p.optional(l.Step, r.Step)
	case *Call:
		r, ok := rhs.(*Call)
		return ok && p.Expr(l.Fn, r.Fn) && p.Exprs(l.Args, r.Args) && p.keywords(l.Keywords, r.Keywords)
	case *Starred:
		r, ok := rhs.(*Starred)
		return ok && p.Expr(l.Value, r.Value)
	case *BinOp:
		r, ok := rhs.(*BinOp)
		return ok && l.Op == r.Op && p.Expr(l.Left, r.Left) && p.Expr(l.Right, r.Right)
	case *UnaryOp:
		r, ok := rhs.(*UnaryOp)
		return ok && l.Op == r.Op && p.Expr(l.Operand, r.Operand)
	case *Compare:
		r, ok := rhs.(*Compare)
		return ok && slices.Equal(l.Ops, r.Ops) && p.Expr(l.Left, r.Left) && p.Exprs(l.Comparators, r.Comparators)
	case *BoolOp:
		r, ok := rhs.(*BoolOp)
		return ok && l.Op == r.Op && p.Exprs(l.Values, r.Values)
	case *IfExp:
		r, ok := rhs.(*IfExp)
		return ok && p.Expr(l.Test, r.Test) && p.Expr(l.Body, r.Body) && p.Expr(l.OrElse, r.OrElse)
	case *TypeValue:
		r, ok := rhs.(*TypeValue)
		return ok && l.Type.Equal(r.Type, p.Expr)
	case *MacroRef:
		r, ok := rhs.(*MacroRef)
		return ok && l.Macro.MacroName() == r.Macro.MacroName()
	}
	//
	panic(fmt.Sprintf("unknown expression encountered (%T)", lhs))
}

func (p *Equivalence) keywords(lhs, rhs []*Keyword) bool {
	if len(lhs) != len(rhs) {
		return false
	}
	//
	for i := range lhs {
		if lhs[i].Name != rhs[i].Name || !p.Expr(lhs[i].Value, rhs[i].Value) {
			return false
		}
	}
	//
	return true
}

func (p *Equivalence) optional(lhs, rhs Expr) bool {
	if lhs == nil || rhs == nil {
		return lhs == nil && rhs == nil
	}
	//
	return p.Expr(lhs, rhs)
}
