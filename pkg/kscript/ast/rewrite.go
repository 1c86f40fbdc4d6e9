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

import "fmt"

// Rewriter rebuilds a syntax tree, producing fresh nodes throughout.  Hooks
// allow particular nodes to be replaced along the way.  With no hooks set, a
// Rewriter simply produces a deep copy.
type Rewriter struct {
	// Expr is applied to every expression before its children are visited.  If
	// it returns a non-nil expression, that replaces the original and its
	// children are not visited.
	Expr func(Expr) (Expr, error)
	// Bind is applied to every name bound by an assignment, loop or with
	// target.  If nil, bound names are rewritten via Expr like any other
	// expression.
	Bind func(*Name) (Expr, error)
	// Trace is informed of every node rebuilt from an original node, such that
	// source mappings can be carried over.
	Trace func(from Node, to Node)
}

// Clone produces a deep copy of a given sequence of statements.
func Clone(stmts []Stmt) []Stmt {
	var r Rewriter
	// Cannot fail without hooks
	nstmts, _ := r.Stmts(stmts)
	//
	return nstmts
}

// CloneExpr produces a deep copy of a given expression.
func CloneExpr(e Expr) Expr {
	var r Rewriter
	// Cannot fail without hooks
	ne, _ := r.Rewrite(e)
	//
	return ne
}

// Stmts rewrites a sequence of statements.
func (r *Rewriter) Stmts(stmts []Stmt) ([]Stmt, error) {
	nstmts := make([]Stmt, len(stmts))
	//
	for i, s := range stmts {
		var err error
		//
		if nstmts[i], err = r.Stmt(s); err != nil {
			return nil, err
		}
	}
	//
	return nstmts, nil
}

// Stmt rewrites a single statement.
//
// nolint
func (r *Rewriter) Stmt(s Stmt) (Stmt, error) {
	var (
		ns   Stmt
		errs [4]error
	)
	//
	switch s := s.(type) {
	case *ExprStmt:
		value, err := r.Rewrite(s.Value)
		ns, errs[0] = &ExprStmt{value}, err
	case *Assign:
		n := &Assign{}
		n.Value, errs[0] = r.optional(s.Value)
		n.Annotation, errs[1] = r.optional(s.Annotation)
		n.Target, errs[2] = r.target(s.Target)
		ns = n
	case *AugAssign:
		n := &AugAssign{Op: s.Op}
		n.Value, errs[0] = r.Rewrite(s.Value)
		n.Target, errs[1] = r.Rewrite(s.Target)
		ns = n
	case *For:
		n := &For{}
		n.Iter, errs[0] = r.Rewrite(s.Iter)
		n.Target, errs[1] = r.target(s.Target)
		n.Body, errs[2] = r.Stmts(s.Body)
		ns = n
	case *While:
		n := &While{}
		n.Test, errs[0] = r.Rewrite(s.Test)
		n.Body, errs[1] = r.Stmts(s.Body)
		ns = n
	case *If:
		n := &If{}
		n.Test, errs[0] = r.Rewrite(s.Test)
		n.Body, errs[1] = r.Stmts(s.Body)
		n.OrElse, errs[2] = r.Stmts(s.OrElse)
		ns = n
	case *With:
		n := &With{}
		n.Context, errs[0] = r.Rewrite(s.Context)
		//
		if s.Target != nil {
			n.Target, errs[1] = r.target(s.Target)
		}
		//
		n.Body, errs[2] = r.Stmts(s.Body)
		ns = n
	case *Return:
		value, err := r.optional(s.Value)
		ns, errs[0] = &Return{value}, err
	case *Assert:
		n := &Assert{}
		n.Test, errs[0] = r.Rewrite(s.Test)
		n.Msg, errs[1] = r.optional(s.Msg)
		ns = n
	case *Pass:
		ns = &Pass{}
	case *Break:
		ns = &Break{}
	case *Continue:
		ns = &Continue{}
	case *FuncDef:
		ns, errs[0] = r.funcDef(s)
	case *HostStmt:
		ns = &HostStmt{s.Source, s.Line}
	default:
		panic(fmt.Sprintf("unknown statement encountered (%T)", s))
	}
	//
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	//
	r.trace(s, ns)
	//
	return ns, nil
}

// Rewrite rewrites a single expression.
//
// nolint
func (r *Rewriter) Rewrite(e Expr) (Expr, error) {
	var (
		ne  Expr
		err error
	)
	//
	if r.Expr != nil {
		if ne, err = r.Expr(e); err != nil || ne != nil {
			return ne, err
		}
	}
	//
	switch e := e.(type) {
	case *Name:
		ne = &Name{e.Id}
	case *IntLit:
		ne = &IntLit{e.Value}
	case *FloatLit:
		ne = &FloatLit{e.Value}
	case *StrLit:
		ne = &StrLit{e.Value}
	case *BoolLit:
		ne = &BoolLit{e.Value}
	case *NoneLit:
		ne = &NoneLit{}
	case *Tuple:
		var elems []Expr
		elems, err = r.Exprs(e.Elems)
		ne = &Tuple{elems}
	case *List:
		var elems []Expr
		elems, err = r.Exprs(e.Elems)
		ne = &List{elems}
	case *Dict:
		ne, err = r.dict(e)
	case *Attribute:
		var value Expr
		value, err = r.Rewrite(e.Value)
		ne = &Attribute{value, e.Attr}
	case *Subscript:
		ne, err = r.subscript(e)
	case *Slice:
		ne, err = r.slice(e)
	case *Call:
		ne, err = r.call(e)
	case *Starred:
		var value Expr
		value, err = r.Rewrite(e.Value)
		ne = &Starred{value}
	case *BinOp:
		ne, err = r.binop(e)
	case *UnaryOp:
		var operand Expr
		operand, err = r.Rewrite(e.Operand)
		ne = &UnaryOp{e.Op, operand}
	case *Compare:
		ne, err = r.compare(e)
	case *BoolOp:
		var values []Expr
		values, err = r.Exprs(e.Values)
		ne = &BoolOp{e.Op, values}
	case *IfExp:
		ne, err = r.ifexp(e)
	case *TypeValue:
		var t Type
		t, err = e.Type.Map(r.Rewrite)
		ne = &TypeValue{t}
	case *MacroRef:
		ne = &MacroRef{e.Macro}
	default:
		panic(fmt.Sprintf("unknown expression encountered (%T)", e))
	}
	//
	if err != nil {
		return nil, err
	}
	//
	r.trace(e, ne)
	//
	return ne, nil
}

// Exprs rewrites a sequence of expressions.
func (r *Rewriter) Exprs(exprs []Expr) ([]Expr, error) {
	var (
		nexprs = make([]Expr, len(exprs))
		err    error
	)
	//
	for i, e := range exprs {
		if nexprs[i], err = r.Rewrite(e); err != nil {
			return nil, err
		}
	}
	//
	return nexprs, nil
}

// Keywords rewrites a sequence of keyword arguments.
func (r *Rewriter) Keywords(keywords []*Keyword) ([]*Keyword, error) {
	var nkeywords = make([]*Keyword, len(keywords))
	//
	for i, kw := range keywords {
		value, err := r.Rewrite(kw.Value)
		if err != nil {
			return nil, err
		}
		//
		nkeywords[i] = &Keyword{kw.Name, value}
		r.trace(kw, nkeywords[i])
	}
	//
	return nkeywords, nil
}

func (r *Rewriter) optional(e Expr) (Expr, error) {
	if e == nil {
		return nil, nil
	}
	//
	return r.Rewrite(e)
}

func (r *Rewriter) target(e Expr) (Expr, error) {
	var (
		nt  Expr
		err error
	)
	//
	switch e := e.(type) {
	case *Name:
		if r.Bind == nil {
			return r.Rewrite(e)
		} else if nt, err = r.Bind(e); err != nil {
			return nil, err
		}
	case *Tuple:
		var elems []Expr
		elems, err = r.targets(e.Elems)
		nt = &Tuple{elems}
	case *List:
		var elems []Expr
		elems, err = r.targets(e.Elems)
		nt = &List{elems}
	case *Starred:
		var value Expr
		value, err = r.target(e.Value)
		nt = &Starred{value}
	default:
		// Subscript and attribute targets are uses of their base.
		return r.Rewrite(e)
	}
	//
	if err != nil {
		return nil, err
	}
	//
	r.trace(e, nt)
	//
	return nt, nil
}

func (r *Rewriter) targets(targets []Expr) ([]Expr, error) {
	var (
		ntargets = make([]Expr, len(targets))
		err      error
	)
	//
	for i, t := range targets {
		if ntargets[i], err = r.target(t); err != nil {
			return nil, err
		}
	}
	//
	return ntargets, nil
}

func (r *Rewriter) funcDef(s *FuncDef) (*FuncDef, error) {
	var (
		n   = &FuncDef{Name: s.Name}
		err error
	)
	//
	if n.Decorators, err = r.Exprs(s.Decorators); err != nil {
		return nil, err
	}
	//
	for _, p := range s.Params {
		np := &Param{Name: p.Name, Kind: p.Kind}
		//
		if np.Annotation, err = r.optional(p.Annotation); err != nil {
			return nil, err
		} else if np.Default, err = r.optional(p.Default); err != nil {
			return nil, err
		}
		//
		r.trace(p, np)
		n.Params = append(n.Params, np)
	}
	//
	if n.Returns, err = r.optional(s.Returns); err != nil {
		return nil, err
	} else if n.Body, err = r.Stmts(s.Body); err != nil {
		return nil, err
	}
	//
	return n, nil
}

func (r *Rewriter) dict(e *Dict) (Expr, error) {
	keys, err := r.Exprs(e.Keys)
	if err != nil {
		return nil, err
	}
	//
	values, err := r.Exprs(e.Values)
	if err != nil {
		return nil, err
	}
	//
	return &Dict{keys, values}, nil
}

func (r *Rewriter) subscript(e *Subscript) (Expr, error) {
	value, err := r.Rewrite(e.Value)
	if err != nil {
		return nil, err
	}
	//
	index, err := r.Rewrite(e.Index)
	if err != nil {
		return nil, err
	}
	//
	return &Subscript{value, index}, nil
}

func (r *Rewriter) slice(e *Slice) (Expr, error) {
	var (
		n   = &Slice{}
		err error
	)
	//
	if n.Lower, err = r.optional(e.Lower); err != nil {
		return nil, err
	} else if n.Upper, err = r.optional(e.Upper); err != nil {
		return nil, err
	} else if n.Step, err = r.optional(e.Step); err != nil {
		return nil, err
	}
	//
	return n, nil
}

func (r *Rewriter) call(e *Call) (Expr, error) {
	fn, err := r.Rewrite(e.Fn)
	if err != nil {
		return nil, err
	}
	//
	args, err := r.Exprs(e.Args)
	if err != nil {
		return nil, err
	}
	//
	keywords, err := r.Keywords(e.Keywords)
	if err != nil {
		return nil, err
	}
	//
	return &Call{fn, args, keywords}, nil
}

func (r *Rewriter) binop(e *BinOp) (Expr, error) {
	left, err := r.Rewrite(e.Left)
	if err != nil {
		return nil, err
	}
	//
	right, err := r.Rewrite(e.Right)
	if err != nil {
		return nil, err
	}
	//
	return &BinOp{e.Op, left, right}, nil
}

func (r *Rewriter) compare(e *Compare) (Expr, error) {
	left, err := r.Rewrite(e.Left)
	if err != nil {
		return nil, err
	}
	//
	comparators, err := r.Exprs(e.Comparators)
	if err != nil {
		return nil, err
	}
	//
	return &Compare{left, append([]string(nil), e.Ops...), comparators}, nil
}

func (r *Rewriter) ifexp(e *IfExp) (Expr, error) {
	var (
		n   = &IfExp{}
		err error
	)
	//
	if n.Test, err = r.Rewrite(e.Test); err != nil {
		return nil, err
	} else if n.Body, err = r.Rewrite(e.Body); err != nil {
		return nil, err
	} else if n.OrElse, err = r.Rewrite(e.OrElse); err != nil {
		return nil, err
	}
	//
	return n, nil
}

func (r *Rewriter) trace(from Node, to Node) {
	if r.Trace != nil {
		r.Trace(from, to)
	}
}
