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
	"strings"
)

// Stmt represents an arbitrary statement.
type Stmt interface {
	Node
	isStmt()
}

// ExprStmt represents an expression evaluated for its effect, such as a call.
type ExprStmt struct {
	Value Expr
}

// Assign represents an assignment "target = value", an annotated assignment
// "target: annotation = value" or a bare declaration "target: annotation" (in
// which case Value is nil).
type Assign struct {
	Target     Expr
	Annotation Expr
	Value      Expr
}

// AugAssign represents an augmented assignment, such as "x += 1".  Op holds the
// underlying binary operator (e.g. "+").
type AugAssign struct {
	Target Expr
	Op     string
	Value  Expr
}

// For represents a loop "for target in iter: body".
type For struct {
	Target Expr
	Iter   Expr
	Body   []Stmt
}

// While represents a loop "while test: body".
type While struct {
	Test Expr
	Body []Stmt
}

// If represents a conditional "if test: body else: orelse".  An "elif" chain is
// represented as a nested If in OrElse.
type If struct {
	Test   Expr
	Body   []Stmt
	OrElse []Stmt
}

// With represents a context statement "with context as target: body", where
// Target may be nil.
type With struct {
	Context Expr
	Target  Expr
	Body    []Stmt
}

// Return represents "return value", where Value may be nil.
type Return struct {
	Value Expr
}

// Assert represents "assert test, msg", where Msg may be nil.
type Assert struct {
	Test Expr
	Msg  Expr
}

// Pass represents the empty statement.
type Pass struct {
	_ byte
}

// Break represents a loop exit.
type Break struct {
	_ byte
}

// Continue represents a jump to the next loop iteration.
type Continue struct {
	_ byte
}

// ParamKind identifies the kind of a function (or macro) parameter.
type ParamKind uint8

const (
	// POSITIONAL parameters can be given by position or by keyword.
	POSITIONAL ParamKind = iota
	// VAR_POSITIONAL is the "*args" parameter, collecting surplus positional
	// arguments.
	VAR_POSITIONAL
	// KEYWORD_ONLY parameters follow "*args" (or a bare "*") and can only be
	// given by keyword.
	KEYWORD_ONLY
	// VAR_KEYWORD is the "**kwargs" parameter, collecting surplus keyword
	// arguments.
	VAR_KEYWORD
)

func (k ParamKind) String() string {
	switch k {
	case POSITIONAL:
		return "positional"
	case VAR_POSITIONAL:
		return "var-positional"
	case KEYWORD_ONLY:
		return "keyword-only"
	case VAR_KEYWORD:
		return "var-keyword"
	}
	//
	return "unknown"
}

// Param represents a single declared parameter.  Annotation and Default may be
// nil.
type Param struct {
	Name       string
	Kind       ParamKind
	Annotation Expr
	Default    Expr
}

func (p *Param) String() string {
	var builder strings.Builder
	//
	switch p.Kind {
	case VAR_POSITIONAL:
		builder.WriteString("*")
	case VAR_KEYWORD:
		builder.WriteString("**")
	}
	//
	builder.WriteString(p.Name)
	//
	if p.Annotation != nil {
		builder.WriteString(": ")
		builder.WriteString(ExprString(p.Annotation))
	}
	//
	if p.Default != nil {
		if p.Annotation != nil {
			builder.WriteString(" = ")
		} else {
			builder.WriteString("=")
		}
		//
		builder.WriteString(ExprString(p.Default))
	}
	//
	return builder.String()
}

// FuncDef represents a (decorated) function definition.  Returns may be nil.
type FuncDef struct {
	Name       string
	Decorators []Expr
	Params     []*Param
	Returns    Expr
	Body       []Stmt
}

// HostStmt is an opaque top-level statement which is not part of any DSL
// function, such as "x_value = 128".  Such statements are evaluated by the
// host interpreter rather than compiled.
type HostStmt struct {
	// Source text of the statement.
	Source string
	// Line on which the statement begins (counting from 1).
	Line int
}

// File represents a parsed source file, consisting of function definitions
// and host statements in source order.
type File struct {
	Filename string
	Items    []Stmt
}

func (*ExprStmt) isStmt()  {}
func (*Assign) isStmt()    {}
func (*AugAssign) isStmt() {}
func (*For) isStmt()       {}
func (*While) isStmt()     {}
func (*If) isStmt()        {}
func (*With) isStmt()      {}
func (*Return) isStmt()    {}
func (*Assert) isStmt()    {}
func (*Pass) isStmt()      {}
func (*Break) isStmt()     {}
func (*Continue) isStmt()  {}
func (*FuncDef) isStmt()   {}
func (*HostStmt) isStmt()  {}

func (s *ExprStmt) String() string  { return StmtString(s) }
func (s *Assign) String() string    { return StmtString(s) }
func (s *AugAssign) String() string { return StmtString(s) }
func (s *For) String() string       { return StmtString(s) }
func (s *While) String() string     { return StmtString(s) }
func (s *If) String() string        { return StmtString(s) }
func (s *With) String() string      { return StmtString(s) }
func (s *Return) String() string    { return StmtString(s) }
func (s *Assert) String() string    { return StmtString(s) }
func (s *Pass) String() string      { return StmtString(s) }
func (s *Break) String() string     { return StmtString(s) }
func (s *Continue) String() string  { return StmtString(s) }
func (s *FuncDef) String() string   { return StmtString(s) }
func (s *HostStmt) String() string  { return StmtString(s) }

func (f *File) String() string {
	var builder strings.Builder
	//
	for i, item := range f.Items {
		if i != 0 {
			builder.WriteString("\n")
		}
		//
		builder.WriteString(StmtString(item))
	}
	//
	return builder.String()
}

// Functions returns all function definitions in this file.
func (f *File) Functions() []*FuncDef {
	var fns []*FuncDef
	//
	for _, item := range f.Items {
		if fn, ok := item.(*FuncDef); ok {
			fns = append(fns, fn)
		}
	}
	//
	return fns
}

// BoundNames returns the identifiers bound by a given assignment (or loop)
// target, in left-to-right order.  Subscript and attribute targets bind
// nothing.
func BoundNames(target Expr) []string {
	switch t := target.(type) {
	case *Name:
		return []string{t.Id}
	case *Tuple:
		return boundNamesOf(t.Elems)
	case *List:
		return boundNamesOf(t.Elems)
	case *Starred:
		return BoundNames(t.Value)
	}
	//
	return nil
}

func boundNamesOf(targets []Expr) []string {
	var names []string
	//
	for _, e := range targets {
		names = append(names, BoundNames(e)...)
	}
	//
	return names
}
