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
	"strconv"
	"strings"
)

// Binding strength of expression forms, from loosest to tightest.
const (
	precIfExp = iota + 1
	precOr
	precAnd
	precNot
	precCompare
	precBitOr
	precBitXor
	precBitAnd
	precShift
	precAdd
	precMul
	precUnary
	precPower
	precPostfix
	precAtom
)

// INDENT is the unit of indentation used when printing statements.
const INDENT = "    "

// BinaryPrecedence returns the binding strength of a given binary operator, or
// zero if it is not a binary operator.
func BinaryPrecedence(op string) int {
	switch op {
	case "|":
		return precBitOr
	case "^":
		return precBitXor
	case "&":
		return precBitAnd
	case "<<", ">>":
		return precShift
	case "+", "-":
		return precAdd
	case "*", "/", "//", "%", "@":
		return precMul
	case "**":
		return precPower
	}
	//
	return 0
}

// ExprString returns a source-level rendering of a given expression.
func ExprString(e Expr) string {
	var builder strings.Builder
	//
	writeExpr(&builder, e, 0)
	//
	return builder.String()
}

// StmtString returns a source-level rendering of a given statement, which may
// span multiple lines.
func StmtString(s Stmt) string {
	var builder strings.Builder
	//
	writeStmt(&builder, s, "")
	//
	return strings.TrimSuffix(builder.String(), "\n")
}

// StmtsString returns a source-level rendering of a sequence of statements at a
// given indentation.
func StmtsString(stmts []Stmt, indent string) string {
	var builder strings.Builder
	//
	writeBody(&builder, stmts, indent)
	//
	return strings.TrimSuffix(builder.String(), "\n")
}

func precedenceOf(e Expr) int {
	switch e := e.(type) {
	case *IfExp:
		return precIfExp
	case *BoolOp:
		if e.Op == "or" {
			return precOr
		}
		//
		return precAnd
	case *UnaryOp:
		if e.Op == "not" {
			return precNot
		}
		//
		return precUnary
	case *Compare:
		return precCompare
	case *BinOp:
		return BinaryPrecedence(e.Op)
	case *Attribute, *Subscript, *Call:
		return precPostfix
	}
	//
	return precAtom
}

func writeExpr(b *strings.Builder, e Expr, prec int) {
	paren := precedenceOf(e) < prec
	//
	if paren {
		b.WriteString("(")
	}
	//
	switch e := e.(type) {
	case *Name:
		b.WriteString(e.Id)
	case *IntLit:
		b.WriteString(strconv.FormatInt(e.Value, 10))
	case *FloatLit:
		b.WriteString(formatFloat(e.Value))
	case *StrLit:
		b.WriteString(strconv.Quote(e.Value))
	case *BoolLit:
		if e.Value {
			b.WriteString("True")
		} else {
			b.WriteString("False")
		}
	case *NoneLit:
		b.WriteString("None")
	case *Tuple:
		b.WriteString("(")
		writeExprs(b, e.Elems)
		//
		if len(e.Elems) == 1 {
			b.WriteString(",")
		}
		//
		b.WriteString(")")
	case *List:
		b.WriteString("[")
		writeExprs(b, e.Elems)
		b.WriteString("]")
	case *Dict:
		b.WriteString("{")
		//
		for i := range e.Keys {
			if i != 0 {
				b.WriteString(", ")
			}
			//
			writeExpr(b, e.Keys[i], 0)
			b.WriteString(": ")
			writeExpr(b, e.Values[i], 0)
		}
		//
		b.WriteString("}")
	case *Attribute:
		writeExpr(b, e.Value, precPostfix)
		b.WriteString(".")
		b.WriteString(e.Attr)
	case *Subscript:
		writeExpr(b, e.Value, precPostfix)
		b.WriteString("[")
		//
		if t, ok := e.Index.(*Tuple); ok && len(t.Elems) > 0 {
			writeExprs(b, t.Elems)
		} else {
			writeExpr(b, e.Index, 0)
		}
		//
		b.WriteString("]")
	case *Slice:
		writeOptional(b, e.Lower)
		b.WriteString(":")
		writeOptional(b, e.Upper)
		//
		if e.Step != nil {
			b.WriteString(":")
			writeExpr(b, e.Step, 0)
		}
	case *Call:
		writeExpr(b, e.Fn, precPostfix)
		b.WriteString("(")
		writeExprs(b, e.Args)
		//
		for i, kw := range e.Keywords {
			if i != 0 || len(e.Args) != 0 {
				b.WriteString(", ")
			}
			//
			if kw.Name == "" {
				b.WriteString("**")
			} else {
				b.WriteString(kw.Name)
				b.WriteString("=")
			}
			//
			writeExpr(b, kw.Value, 0)
		}
		//
		b.WriteString(")")
	case *Starred:
		b.WriteString("*")
		writeExpr(b, e.Value, precPostfix)
	case *BinOp:
		p := BinaryPrecedence(e.Op)
		// Power is right associative, all others are left associative.
		if e.Op == "**" {
			writeExpr(b, e.Left, p+1)
			fmt.Fprintf(b, " %s ", e.Op)
			writeExpr(b, e.Right, p)
		} else {
			writeExpr(b, e.Left, p)
			fmt.Fprintf(b, " %s ", e.Op)
			writeExpr(b, e.Right, p+1)
		}
	case *UnaryOp:
		if e.Op == "not" {
			b.WriteString("not ")
			writeExpr(b, e.Operand, precNot)
		} else {
			b.WriteString(e.Op)
			writeExpr(b, e.Operand, precUnary)
		}
	case *Compare:
		writeExpr(b, e.Left, precCompare+1)
		//
		for i, op := range e.Ops {
			fmt.Fprintf(b, " %s ", op)
			writeExpr(b, e.Comparators[i], precCompare+1)
		}
	case *BoolOp:
		p := precedenceOf(e)
		//
		for i, v := range e.Values {
			if i != 0 {
				fmt.Fprintf(b, " %s ", e.Op)
			}
			//
			writeExpr(b, v, p+1)
		}
	case *IfExp:
		writeExpr(b, e.Body, precIfExp+1)
		b.WriteString(" if ")
		writeExpr(b, e.Test, precIfExp+1)
		b.WriteString(" else ")
		writeExpr(b, e.OrElse, precIfExp)
	case *TypeValue:
		b.WriteString(e.Type.String())
	case *MacroRef:
		b.WriteString(e.Macro.MacroName())
	default:
		panic(fmt.Sprintf("unknown expression encountered (%T)", e))
	}
	//
	if paren {
		b.WriteString(")")
	}
}

func writeExprs(b *strings.Builder, exprs []Expr) {
	for i, e := range exprs {
		if i != 0 {
			b.WriteString(", ")
		}
		//
		writeExpr(b, e, 0)
	}
}

func writeOptional(b *strings.Builder, e Expr) {
	if e != nil {
		writeExpr(b, e, 0)
	}
}

// Targets are written without enclosing brackets, as in "i, j = ...".
func writeTarget(b *strings.Builder, e Expr) {
	if t, ok := e.(*Tuple); ok && len(t.Elems) > 1 {
		writeExprs(b, t.Elems)
	} else {
		writeExpr(b, e, 0)
	}
}

func writeBody(b *strings.Builder, body []Stmt, indent string) {
	if len(body) == 0 {
		b.WriteString(indent)
		b.WriteString("pass\n")
	}
	//
	for _, s := range body {
		writeStmt(b, s, indent)
	}
}

func writeStmt(b *strings.Builder, s Stmt, indent string) {
	if _, ok := s.(*HostStmt); !ok {
		b.WriteString(indent)
	}
	//
	switch s := s.(type) {
	case *ExprStmt:
		writeExpr(b, s.Value, 0)
	case *Assign:
		writeTarget(b, s.Target)
		//
		if s.Annotation != nil {
			b.WriteString(": ")
			writeExpr(b, s.Annotation, 0)
		}
		//
		if s.Value != nil {
			b.WriteString(" = ")
			writeTarget(b, s.Value)
		}
	case *AugAssign:
		writeExpr(b, s.Target, 0)
		fmt.Fprintf(b, " %s= ", s.Op)
		writeExpr(b, s.Value, 0)
	case *For:
		b.WriteString("for ")
		writeTarget(b, s.Target)
		b.WriteString(" in ")
		writeExpr(b, s.Iter, 0)
		b.WriteString(":\n")
		writeBody(b, s.Body, indent+INDENT)
		//
		return
	case *While:
		b.WriteString("while ")
		writeExpr(b, s.Test, 0)
		b.WriteString(":\n")
		writeBody(b, s.Body, indent+INDENT)
		//
		return
	case *If:
		writeIf(b, s, indent)
		return
	case *With:
		b.WriteString("with ")
		writeExpr(b, s.Context, 0)
		//
		if s.Target != nil {
			b.WriteString(" as ")
			writeTarget(b, s.Target)
		}
		//
		b.WriteString(":\n")
		writeBody(b, s.Body, indent+INDENT)
		//
		return
	case *Return:
		b.WriteString("return")
		//
		if s.Value != nil {
			b.WriteString(" ")
			writeTarget(b, s.Value)
		}
	case *Assert:
		b.WriteString("assert ")
		writeExpr(b, s.Test, 0)
		//
		if s.Msg != nil {
			b.WriteString(", ")
			writeExpr(b, s.Msg, 0)
		}
	case *Pass:
		b.WriteString("pass")
	case *Break:
		b.WriteString("break")
	case *Continue:
		b.WriteString("continue")
	case *FuncDef:
		writeFuncDef(b, s, indent)
		return
	case *HostStmt:
		b.WriteString(strings.TrimSuffix(s.Source, "\n"))
	default:
		panic(fmt.Sprintf("unknown statement encountered (%T)", s))
	}
	//
	b.WriteString("\n")
}

func writeIf(b *strings.Builder, s *If, indent string) {
	b.WriteString("if ")
	writeExpr(b, s.Test, 0)
	b.WriteString(":\n")
	writeBody(b, s.Body, indent+INDENT)
	//
	for len(s.OrElse) != 0 {
		// Collapse else-if chains
		if elif, ok := s.OrElse[0].(*If); ok && len(s.OrElse) == 1 {
			b.WriteString(indent)
			b.WriteString("elif ")
			writeExpr(b, elif.Test, 0)
			b.WriteString(":\n")
			writeBody(b, elif.Body, indent+INDENT)
			s = elif
			//
			continue
		}
		//
		b.WriteString(indent)
		b.WriteString("else:\n")
		writeBody(b, s.OrElse, indent+INDENT)
		//
		break
	}
}

func writeFuncDef(b *strings.Builder, s *FuncDef, indent string) {
	for i, d := range s.Decorators {
		if i != 0 {
			b.WriteString(indent)
		}
		//
		b.WriteString("@")
		writeExpr(b, d, 0)
		b.WriteString("\n")
	}
	//
	if len(s.Decorators) != 0 {
		b.WriteString(indent)
	}
	//
	b.WriteString("def ")
	b.WriteString(s.Name)
	b.WriteString("(")
	//
	starred := false
	//
	for i, p := range s.Params {
		if i != 0 {
			b.WriteString(", ")
		}
		// Keyword-only parameters without a preceding *args need a bare star.
		if p.Kind == VAR_POSITIONAL {
			starred = true
		} else if p.Kind == KEYWORD_ONLY && !starred {
			b.WriteString("*, ")
			starred = true
		}
		//
		b.WriteString(p.String())
	}
	//
	b.WriteString(")")
	//
	if s.Returns != nil {
		b.WriteString(" -> ")
		writeExpr(b, s.Returns, 0)
	}
	//
	b.WriteString(":\n")
	writeBody(b, s.Body, indent+INDENT)
}

func formatFloat(v float64) string {
	s := strconv.FormatFloat(v, 'g', -1, 64)
	//
	if !strings.ContainsAny(s, ".eEnN") {
		s += ".0"
	}
	//
	return s
}
