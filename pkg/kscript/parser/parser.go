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
package parser

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/consensys/go-kscript/pkg/kscript/ast"
	"github.com/consensys/go-kscript/pkg/util/source"
	"github.com/consensys/go-kscript/pkg/util/source/lex"
)

// Parse accepts a given kernel source file and parses it into a sequence of
// function definitions and host statements.  Every node of the resulting tree
// is recorded in the returned source map.
func Parse(srcfile *source.File) (*ast.File, *source.Map[ast.Node], []source.SyntaxError) {
	parser := NewParser(srcfile)
	// Parse items
	file, errs := parser.Parse()
	//
	return file, parser.srcmap, errs
}

// ParseStmts parses a sequence of statements from a given string, which is
// useful for constructing statements programmatically.
func ParseStmts(filename string, text string) ([]ast.Stmt, []source.SyntaxError) {
	var (
		parser = NewParser(source.NewSourceFile(filename, []byte(text)))
		stmts  []ast.Stmt
		errs   []source.SyntaxError
	)
	//
	if parser.tokens, errs = Lex(parser.srcfile); len(errs) > 0 {
		return nil, errs
	}
	//
	for !parser.follows(END_OF) {
		var stmt ast.Stmt
		//
		if stmt, errs = parser.parseStatement(); len(errs) > 0 {
			return nil, errs
		}
		//
		stmts = append(stmts, stmt)
	}
	//
	return stmts, nil
}

// ============================================================================
// Parser
// ============================================================================

// Parser is a recursive descent parser for kernel source files.
type Parser struct {
	srcfile *source.File
	tokens  []lex.Token
	// Source mapping
	srcmap *source.Map[ast.Node]
	// Position within the tokens
	index int
}

// NewParser constructs a new parser for a given source file.
func NewParser(srcfile *source.File) *Parser {
	// Construct (initially empty) source mapping
	srcmap := source.NewSourceMap[ast.Node](srcfile)
	//
	return &Parser{srcfile, nil, srcmap, 0}
}

// Parse the given source file into a sequence of zero or more items and/or
// some number of syntax errors.
func (p *Parser) Parse() (*ast.File, []source.SyntaxError) {
	var (
		file = &ast.File{Filename: p.srcfile.Filename()}
		errs []source.SyntaxError
		item ast.Stmt
	)
	// Convert source file into tokens
	if p.tokens, errs = Lex(p.srcfile); len(errs) > 0 {
		return nil, errs
	}
	// Continue going until all consumed
	for !p.follows(END_OF) {
		switch p.lookahead().Kind {
		case AT:
			item, errs = p.parseFunction()
		case INDENT:
			errs = p.syntaxErrors(p.lookahead(), "unexpected indent")
		default:
			item, errs = p.parseHostStatement()
		}
		//
		if len(errs) > 0 {
			return nil, errs
		}
		//
		file.Items = append(file.Items, item)
	}
	//
	log.Debugf("parsed %d items from %s", len(file.Items), p.srcfile.Filename())
	//
	return file, nil
}

// A host statement is skipped over, retaining only its source text.  This
// includes any indented block belonging to it, and any trailing clauses (e.g.
// "else:") at the same level.
func (p *Parser) parseHostStatement() (ast.Stmt, []source.SyntaxError) {
	var (
		start = p.index
		last  = p.index
	)
	//
	for {
		// Skip logical line
		for !p.follows(NEWLINE, END_OF) {
			last = p.index
			p.index++
		}
		//
		p.match(NEWLINE)
		// Skip indented block
		if p.follows(INDENT) {
			for depth := 0; ; {
				switch p.lookahead().Kind {
				case INDENT:
					depth++
				case DEDENT:
					depth--
				case NEWLINE:
				case END_OF:
					return nil, p.syntaxErrors(p.lookahead(), "unexpected end of file")
				default:
					last = p.index
				}
				//
				p.index++
				//
				if depth == 0 {
					break
				}
			}
		}
		// Continue with trailing clauses
		if !p.follows(KEYWORD_ELSE, KEYWORD_ELIF) && !p.followsName("except", "finally") {
			break
		}
	}
	//
	span := p.spanOf(start, last)
	line := p.srcfile.FindFirstEnclosingLine(span)
	stmt := &ast.HostStmt{Source: p.srcfile.Text(span), Line: line.Number()}
	p.srcmap.Put(stmt, span)
	//
	return stmt, nil
}

// Parse a (decorated) function definition.
func (p *Parser) parseFunction() (*ast.FuncDef, []source.SyntaxError) {
	var (
		start      = p.index
		decorators []ast.Expr
		params     []*ast.Param
		returns    ast.Expr
		body       []ast.Stmt
		name       string
		errs       []source.SyntaxError
	)
	// Parse decorators
	for p.match(AT) {
		var decorator ast.Expr
		//
		if decorator, errs = p.parseExpr(); len(errs) > 0 {
			return nil, errs
		} else if _, errs = p.expect(NEWLINE); len(errs) > 0 {
			return nil, errs
		}
		//
		decorators = append(decorators, decorator)
	}
	//
	if _, errs = p.expect(KEYWORD_DEF); len(errs) > 0 {
		return nil, errs
	} else if name, errs = p.parseIdentifier(); len(errs) > 0 {
		return nil, errs
	} else if params, errs = p.parseParams(); len(errs) > 0 {
		return nil, errs
	}
	// Optional return annotation
	if p.match(RIGHTARROW) {
		if returns, errs = p.parseExpr(); len(errs) > 0 {
			return nil, errs
		}
	}
	//
	end := p.index
	//
	if _, errs = p.expect(COLON); len(errs) > 0 {
		return nil, errs
	} else if body, errs = p.parseBlock(); len(errs) > 0 {
		return nil, errs
	}
	//
	fn := &ast.FuncDef{Name: name, Decorators: decorators, Params: params, Returns: returns, Body: body}
	p.srcmap.Put(fn, p.spanOf(start, end-1))
	//
	return fn, nil
}

// Parse a parameter list, such as "(i, *args, t1, **kwargs)".  Parameters
// following "*args" (or a bare "*") are keyword only.
func (p *Parser) parseParams() ([]*ast.Param, []source.SyntaxError) {
	var (
		params []*ast.Param
		kind   = ast.POSITIONAL
		errs   []source.SyntaxError
	)
	//
	if _, errs = p.expect(LBRACE); len(errs) > 0 {
		return nil, errs
	}
	//
	for !p.match(RBRACE) {
		var (
			start = p.index
			param = &ast.Param{Kind: kind}
		)
		//
		if len(params) > 0 || kind != ast.POSITIONAL {
			if _, errs = p.expect(COMMA); len(errs) > 0 {
				return nil, errs
			} else if p.match(RBRACE) {
				// trailing comma
				break
			}
			//
			start = p.index
		}
		//
		if p.match(MUL) {
			kind = ast.KEYWORD_ONLY
			// Bare star
			if p.follows(COMMA, RBRACE) {
				continue
			}
			//
			param.Kind = ast.VAR_POSITIONAL
		} else if p.match(POW) {
			param.Kind = ast.VAR_KEYWORD
		}
		//
		if param.Name, errs = p.parseIdentifier(); len(errs) > 0 {
			return nil, errs
		} else if p.match(COLON) {
			if param.Annotation, errs = p.parseExpr(); len(errs) > 0 {
				return nil, errs
			}
		}
		//
		if p.match(EQUALS) {
			if param.Default, errs = p.parseExpr(); len(errs) > 0 {
				return nil, errs
			}
		}
		//
		p.srcmap.Put(param, p.spanOf(start, p.index-1))
		params = append(params, param)
	}
	//
	return params, nil
}

// Parse a block following a colon.  This is either a sequence of simple
// statements on the same line, or an indented sequence of statements.
func (p *Parser) parseBlock() ([]ast.Stmt, []source.SyntaxError) {
	var (
		stmts []ast.Stmt
		errs  []source.SyntaxError
	)
	//
	if !p.match(NEWLINE) {
		return p.parseSimpleStatements()
	} else if _, errs = p.expect(INDENT); len(errs) > 0 {
		return nil, errs
	}
	//
	for !p.match(DEDENT) {
		var stmt []ast.Stmt
		//
		if p.follows(KEYWORD_FOR, KEYWORD_WHILE, KEYWORD_IF, KEYWORD_WITH, KEYWORD_DEF, AT) {
			var s ast.Stmt
			s, errs = p.parseStatement()
			stmt = []ast.Stmt{s}
		} else {
			stmt, errs = p.parseSimpleStatements()
		}
		//
		if len(errs) > 0 {
			return nil, errs
		}
		//
		stmts = append(stmts, stmt...)
	}
	//
	return stmts, nil
}

// Parse exactly one statement, where a line of simple statements separated by
// semi-colons must contain exactly one statement.
func (p *Parser) parseStatement() (ast.Stmt, []source.SyntaxError) {
	lookahead := p.lookahead()
	//
	switch lookahead.Kind {
	case KEYWORD_FOR:
		return p.parseFor()
	case KEYWORD_WHILE:
		return p.parseWhile()
	case KEYWORD_IF:
		return p.parseIf()
	case KEYWORD_WITH:
		return p.parseWith()
	case KEYWORD_DEF, AT:
		return p.parseFunction()
	}
	//
	stmts, errs := p.parseSimpleStatements()
	//
	if len(errs) > 0 {
		return nil, errs
	} else if len(stmts) != 1 {
		return nil, p.syntaxErrors(lookahead, "expected exactly one statement")
	}
	//
	return stmts[0], nil
}

// Parse one or more simple statements separated by semi-colons and terminated
// by a newline.
func (p *Parser) parseSimpleStatements() ([]ast.Stmt, []source.SyntaxError) {
	var stmts []ast.Stmt
	//
	for {
		stmt, errs := p.parseSimpleStatement()
		//
		if len(errs) > 0 {
			return nil, errs
		}
		//
		stmts = append(stmts, stmt)
		//
		if !p.match(SEMICOLON) || p.follows(NEWLINE) {
			break
		}
	}
	//
	if _, errs := p.expect(NEWLINE); len(errs) > 0 {
		return nil, errs
	}
	//
	return stmts, nil
}

func (p *Parser) parseSimpleStatement() (ast.Stmt, []source.SyntaxError) {
	var (
		start = p.index
		stmt  ast.Stmt
		errs  []source.SyntaxError
	)
	//
	switch p.lookahead().Kind {
	case KEYWORD_PASS:
		p.index++
		stmt = &ast.Pass{}
	case KEYWORD_BREAK:
		p.index++
		stmt = &ast.Break{}
	case KEYWORD_CONTINUE:
		p.index++
		stmt = &ast.Continue{}
	case KEYWORD_RETURN:
		var value ast.Expr
		//
		p.index++
		//
		if !p.follows(NEWLINE, SEMICOLON) {
			if value, errs = p.parseExprList(); len(errs) > 0 {
				return nil, errs
			}
		}
		//
		stmt = &ast.Return{Value: value}
	case KEYWORD_ASSERT:
		stmt, errs = p.parseAssert()
	case INDENT:
		return nil, p.syntaxErrors(p.lookahead(), "unexpected indent")
	default:
		stmt, errs = p.parseExprStatement()
	}
	//
	if len(errs) > 0 {
		return nil, errs
	}
	//
	p.srcmap.Put(stmt, p.spanOf(start, p.index-1))
	//
	return stmt, nil
}

func (p *Parser) parseAssert() (ast.Stmt, []source.SyntaxError) {
	var (
		stmt = &ast.Assert{}
		errs []source.SyntaxError
	)
	//
	p.index++
	//
	if stmt.Test, errs = p.parseExpr(); len(errs) > 0 {
		return nil, errs
	} else if p.match(COMMA) {
		if stmt.Msg, errs = p.parseExpr(); len(errs) > 0 {
			return nil, errs
		}
	}
	//
	return stmt, nil
}

// Parse an expression statement, assignment or augmented assignment.
func (p *Parser) parseExprStatement() (ast.Stmt, []source.SyntaxError) {
	var (
		lhs, rhs, annotation ast.Expr
		errs                 []source.SyntaxError
		lookahead            = p.lookahead()
	)
	//
	if lhs, errs = p.parseExprList(); len(errs) > 0 {
		return nil, errs
	}
	//
	switch p.lookahead().Kind {
	case COLON:
		p.index++
		//
		if annotation, errs = p.parseExpr(); len(errs) > 0 {
			return nil, errs
		} else if p.match(EQUALS) {
			if rhs, errs = p.parseExprList(); len(errs) > 0 {
				return nil, errs
			}
		}
		//
		return &ast.Assign{Target: lhs, Annotation: annotation, Value: rhs}, p.checkTarget(lhs, lookahead)
	case EQUALS:
		p.index++
		//
		if rhs, errs = p.parseExprList(); len(errs) > 0 {
			return nil, errs
		} else if p.follows(EQUALS) {
			return nil, p.syntaxErrors(p.lookahead(), "chained assignment not supported")
		}
		//
		return &ast.Assign{Target: lhs, Value: rhs}, p.checkTarget(lhs, lookahead)
	case AUGASSIGN:
		op := strings.TrimSuffix(p.string(p.lookahead()), "=")
		p.index++
		//
		if rhs, errs = p.parseExpr(); len(errs) > 0 {
			return nil, errs
		}
		//
		return &ast.AugAssign{Target: lhs, Op: op, Value: rhs}, p.checkTarget(lhs, lookahead)
	}
	//
	return &ast.ExprStmt{Value: lhs}, nil
}

// Check that an expression can be assigned to.
func (p *Parser) checkTarget(target ast.Expr, token lex.Token) []source.SyntaxError {
	switch t := target.(type) {
	case *ast.Name, *ast.Subscript, *ast.Attribute:
		return nil
	case *ast.Starred:
		return p.checkTarget(t.Value, token)
	case *ast.Tuple:
		for _, e := range t.Elems {
			if errs := p.checkTarget(e, token); len(errs) > 0 {
				return errs
			}
		}
		//
		return nil
	case *ast.List:
		return p.checkTarget(&ast.Tuple{Elems: t.Elems}, token)
	}
	//
	return p.syntaxErrors(token, "cannot assign to expression")
}

func (p *Parser) parseFor() (ast.Stmt, []source.SyntaxError) {
	var (
		start     = p.index
		stmt      = &ast.For{}
		lookahead lex.Token
		errs      []source.SyntaxError
	)
	//
	p.index++
	lookahead = p.lookahead()
	// Targets are parsed below comparisons, so that "in" is not consumed.
	if stmt.Target, errs = p.parseTargetList(); len(errs) > 0 {
		return nil, errs
	} else if errs = p.checkTarget(stmt.Target, lookahead); len(errs) > 0 {
		return nil, errs
	} else if _, errs = p.expect(KEYWORD_IN); len(errs) > 0 {
		return nil, errs
	} else if stmt.Iter, errs = p.parseExprList(); len(errs) > 0 {
		return nil, errs
	}
	//
	end := p.index
	//
	if _, errs = p.expect(COLON); len(errs) > 0 {
		return nil, errs
	} else if stmt.Body, errs = p.parseBlock(); len(errs) > 0 {
		return nil, errs
	}
	//
	p.srcmap.Put(stmt, p.spanOf(start, end-1))
	//
	return stmt, nil
}

func (p *Parser) parseWhile() (ast.Stmt, []source.SyntaxError) {
	var (
		start = p.index
		stmt  = &ast.While{}
		errs  []source.SyntaxError
	)
	//
	p.index++
	//
	if stmt.Test, errs = p.parseExpr(); len(errs) > 0 {
		return nil, errs
	}
	//
	end := p.index
	//
	if _, errs = p.expect(COLON); len(errs) > 0 {
		return nil, errs
	} else if stmt.Body, errs = p.parseBlock(); len(errs) > 0 {
		return nil, errs
	}
	//
	p.srcmap.Put(stmt, p.spanOf(start, end-1))
	//
	return stmt, nil
}

// Parse an if statement, where "elif" clauses become nested if statements.
func (p *Parser) parseIf() (ast.Stmt, []source.SyntaxError) {
	var (
		start = p.index
		stmt  = &ast.If{}
		errs  []source.SyntaxError
	)
	// Skip "if" or "elif"
	p.index++
	//
	if stmt.Test, errs = p.parseExpr(); len(errs) > 0 {
		return nil, errs
	}
	//
	end := p.index
	//
	if _, errs = p.expect(COLON); len(errs) > 0 {
		return nil, errs
	} else if stmt.Body, errs = p.parseBlock(); len(errs) > 0 {
		return nil, errs
	}
	//
	if p.follows(KEYWORD_ELIF) {
		var elif ast.Stmt
		//
		if elif, errs = p.parseIf(); len(errs) > 0 {
			return nil, errs
		}
		//
		stmt.OrElse = []ast.Stmt{elif}
	} else if p.match(KEYWORD_ELSE) {
		if _, errs = p.expect(COLON); len(errs) > 0 {
			return nil, errs
		} else if stmt.OrElse, errs = p.parseBlock(); len(errs) > 0 {
			return nil, errs
		}
	}
	//
	p.srcmap.Put(stmt, p.spanOf(start, end-1))
	//
	return stmt, nil
}

func (p *Parser) parseWith() (ast.Stmt, []source.SyntaxError) {
	var (
		start = p.index
		stmt  = &ast.With{}
		errs  []source.SyntaxError
	)
	//
	p.index++
	//
	if stmt.Context, errs = p.parseExpr(); len(errs) > 0 {
		return nil, errs
	} else if p.match(KEYWORD_AS) {
		lookahead := p.lookahead()
		//
		if stmt.Target, errs = p.parseTargetList(); len(errs) > 0 {
			return nil, errs
		} else if errs = p.checkTarget(stmt.Target, lookahead); len(errs) > 0 {
			return nil, errs
		}
	}
	//
	if p.follows(COMMA) {
		return nil, p.syntaxErrors(p.lookahead(), "multiple context managers not supported")
	}
	//
	end := p.index
	//
	if _, errs = p.expect(COLON); len(errs) > 0 {
		return nil, errs
	} else if stmt.Body, errs = p.parseBlock(); len(errs) > 0 {
		return nil, errs
	}
	//
	p.srcmap.Put(stmt, p.spanOf(start, end-1))
	//
	return stmt, nil
}

// ============================================================================
// Expressions
// ============================================================================

// Parse a comma-separated list of expressions, producing a tuple if there is
// more than one (or a trailing comma).
func (p *Parser) parseExprList() (ast.Expr, []source.SyntaxError) {
	return p.parseList(p.parseStarredExpr)
}

// Parse a comma-separated list of assignment targets.
func (p *Parser) parseTargetList() (ast.Expr, []source.SyntaxError) {
	return p.parseList(func() (ast.Expr, []source.SyntaxError) {
		var start = p.index
		//
		if p.match(MUL) {
			value, errs := p.parseBinary(precBitOr)
			if len(errs) > 0 {
				return nil, errs
			}
			//
			return p.mapped(&ast.Starred{Value: value}, start), nil
		}
		//
		return p.parseBinary(precBitOr)
	})
}

func (p *Parser) parseList(parseElem func() (ast.Expr, []source.SyntaxError)) (ast.Expr, []source.SyntaxError) {
	var (
		start = p.index
		elems []ast.Expr
		comma bool
	)
	//
	for {
		elem, errs := parseElem()
		//
		if len(errs) > 0 {
			return nil, errs
		}
		//
		elems = append(elems, elem)
		//
		if !p.match(COMMA) {
			break
		}
		//
		comma = true
		// Check for trailing comma
		if p.follows(EQUALS, NEWLINE, SEMICOLON, COLON, RBRACE, KEYWORD_IN, AUGASSIGN) {
			break
		}
	}
	//
	if !comma {
		return elems[0], nil
	}
	//
	return p.mapped(&ast.Tuple{Elems: elems}, start), nil
}

func (p *Parser) parseStarredExpr() (ast.Expr, []source.SyntaxError) {
	var start = p.index
	//
	if p.match(MUL) {
		value, errs := p.parseBinary(precBitOr)
		if len(errs) > 0 {
			return nil, errs
		}
		//
		return p.mapped(&ast.Starred{Value: value}, start), nil
	}
	//
	return p.parseExpr()
}

// Parse an arbitrary expression, including conditional expressions.
func (p *Parser) parseExpr() (ast.Expr, []source.SyntaxError) {
	var (
		start         = p.index
		body, test, e ast.Expr
		errs          []source.SyntaxError
	)
	//
	if p.follows(KEYWORD_LAMBDA) {
		return nil, p.syntaxErrors(p.lookahead(), "lambda expressions not supported")
	} else if body, errs = p.parseOr(); len(errs) > 0 {
		return nil, errs
	} else if !p.match(KEYWORD_IF) {
		return body, nil
	} else if test, errs = p.parseOr(); len(errs) > 0 {
		return nil, errs
	} else if _, errs = p.expect(KEYWORD_ELSE); len(errs) > 0 {
		return nil, errs
	} else if e, errs = p.parseExpr(); len(errs) > 0 {
		return nil, errs
	}
	//
	return p.mapped(&ast.IfExp{Test: test, Body: body, OrElse: e}, start), nil
}

func (p *Parser) parseOr() (ast.Expr, []source.SyntaxError) {
	return p.parseBoolOp(KEYWORD_OR, "or", p.parseAnd)
}

func (p *Parser) parseAnd() (ast.Expr, []source.SyntaxError) {
	return p.parseBoolOp(KEYWORD_AND, "and", p.parseNot)
}

func (p *Parser) parseBoolOp(kind uint, op string, operand func() (ast.Expr, []source.SyntaxError)) (ast.Expr,
	[]source.SyntaxError) {
	var start = p.index
	//
	lhs, errs := operand()
	if len(errs) > 0 {
		return nil, errs
	} else if !p.follows(kind) {
		return lhs, nil
	}
	//
	values := []ast.Expr{lhs}
	//
	for p.match(kind) {
		rhs, errs := operand()
		if len(errs) > 0 {
			return nil, errs
		}
		//
		values = append(values, rhs)
	}
	//
	return p.mapped(&ast.BoolOp{Op: op, Values: values}, start), nil
}

func (p *Parser) parseNot() (ast.Expr, []source.SyntaxError) {
	var start = p.index
	//
	if p.match(KEYWORD_NOT) {
		operand, errs := p.parseNot()
		if len(errs) > 0 {
			return nil, errs
		}
		//
		return p.mapped(&ast.UnaryOp{Op: "not", Operand: operand}, start), nil
	}
	//
	return p.parseComparison()
}

func (p *Parser) parseComparison() (ast.Expr, []source.SyntaxError) {
	var (
		start       = p.index
		ops         []string
		comparators []ast.Expr
	)
	//
	lhs, errs := p.parseBinary(precBitOr)
	if len(errs) > 0 {
		return nil, errs
	}
	//
	for op := p.parseComparator(); op != ""; op = p.parseComparator() {
		rhs, errs := p.parseBinary(precBitOr)
		if len(errs) > 0 {
			return nil, errs
		}
		//
		ops = append(ops, op)
		comparators = append(comparators, rhs)
	}
	//
	if len(ops) == 0 {
		return lhs, nil
	}
	//
	return p.mapped(&ast.Compare{Left: lhs, Ops: ops, Comparators: comparators}, start), nil
}

// Parse a comparison operator (if there is one), returning "" otherwise.
func (p *Parser) parseComparator() string {
	var lookahead = p.lookahead()
	//
	switch lookahead.Kind {
	case EQUALS_EQUALS, NOT_EQUALS, LESS_THAN, LESS_THAN_EQUALS, GREATER_THAN, GREATER_THAN_EQUALS:
		p.index++
		return p.string(lookahead)
	case KEYWORD_IN:
		p.index++
		return "in"
	case KEYWORD_IS:
		p.index++
		//
		if p.match(KEYWORD_NOT) {
			return "is not"
		}
		//
		return "is"
	case KEYWORD_NOT:
		if p.index+1 < len(p.tokens) && p.tokens[p.index+1].Kind == KEYWORD_IN {
			p.index += 2
			return "not in"
		}
	}
	//
	return ""
}

// Binding strength of the loosest binary operator.
var precBitOr = ast.BinaryPrecedence("|")

// binaryOperators maps tokens to binary operators.
var binaryOperators = map[uint]string{
	BAR: "|", CARET: "^", AMPERSAND: "&", SHL: "<<", SHR: ">>", ADD: "+", SUB: "-",
	MUL: "*", DIV: "/", FLOORDIV: "//", REM: "%", AT: "@",
}

// Parse binary operators of at least a given precedence, using precedence
// climbing.  All such operators are left associative.
func (p *Parser) parseBinary(minPrec int) (ast.Expr, []source.SyntaxError) {
	var start = p.index
	//
	lhs, errs := p.parseUnary()
	if len(errs) > 0 {
		return nil, errs
	}
	//
	for {
		op, ok := binaryOperators[p.lookahead().Kind]
		prec := ast.BinaryPrecedence(op)
		//
		if !ok || prec < minPrec {
			return lhs, nil
		}
		//
		p.index++
		//
		rhs, errs := p.parseBinary(prec + 1)
		if len(errs) > 0 {
			return nil, errs
		}
		//
		lhs = p.mapped(&ast.BinOp{Op: op, Left: lhs, Right: rhs}, start)
	}
}

func (p *Parser) parseUnary() (ast.Expr, []source.SyntaxError) {
	var (
		start     = p.index
		lookahead = p.lookahead()
	)
	//
	switch lookahead.Kind {
	case ADD, SUB, TILDE:
		p.index++
		//
		operand, errs := p.parseUnary()
		if len(errs) > 0 {
			return nil, errs
		}
		//
		return p.mapped(&ast.UnaryOp{Op: p.string(lookahead), Operand: operand}, start), nil
	}
	//
	return p.parsePower()
}

// Power binds tighter than unary operators on its left, but not on its right
// (i.e. "-x ** -y" is "-(x ** (-y))").
func (p *Parser) parsePower() (ast.Expr, []source.SyntaxError) {
	var start = p.index
	//
	lhs, errs := p.parsePostfix()
	if len(errs) > 0 {
		return nil, errs
	} else if !p.match(POW) {
		return lhs, nil
	}
	//
	rhs, errs := p.parseUnary()
	if len(errs) > 0 {
		return nil, errs
	}
	//
	return p.mapped(&ast.BinOp{Op: "**", Left: lhs, Right: rhs}, start), nil
}

// Parse an atom followed by zero or more calls, subscripts or attribute
// accesses.
func (p *Parser) parsePostfix() (ast.Expr, []source.SyntaxError) {
	var start = p.index
	//
	expr, errs := p.parseAtom()
	if len(errs) > 0 {
		return nil, errs
	}
	//
	for {
		switch {
		case p.match(DOT):
			var attr string
			//
			if attr, errs = p.parseIdentifier(); len(errs) > 0 {
				return nil, errs
			}
			//
			expr = &ast.Attribute{Value: expr, Attr: attr}
		case p.match(LBRACE):
			var (
				args     []ast.Expr
				keywords []*ast.Keyword
			)
			//
			if args, keywords, errs = p.parseArguments(); len(errs) > 0 {
				return nil, errs
			}
			//
			expr = &ast.Call{Fn: expr, Args: args, Keywords: keywords}
		case p.match(LSQUARE):
			var index ast.Expr
			//
			if index, errs = p.parseSubscript(); len(errs) > 0 {
				return nil, errs
			}
			//
			expr = &ast.Subscript{Value: expr, Index: index}
		default:
			return expr, nil
		}
		//
		p.mapped(expr, start)
	}
}

// Parse call arguments following an opening bracket, up to and including the
// closing bracket.
func (p *Parser) parseArguments() ([]ast.Expr, []*ast.Keyword, []source.SyntaxError) {
	var (
		args     []ast.Expr
		keywords []*ast.Keyword
	)
	//
	for !p.match(RBRACE) {
		var (
			start = p.index
			arg   ast.Expr
			errs  []source.SyntaxError
		)
		//
		if len(args)+len(keywords) > 0 {
			if _, errs = p.expect(COMMA); len(errs) > 0 {
				return nil, nil, errs
			} else if p.match(RBRACE) {
				break
			}
			//
			start = p.index
		}
		//
		switch {
		case p.match(POW):
			if arg, errs = p.parseExpr(); len(errs) > 0 {
				return nil, nil, errs
			}
			//
			keywords = append(keywords, p.keyword("", arg, start))
		case p.follows(IDENTIFIER) && p.tokens[p.index+1].Kind == EQUALS:
			name := p.string(p.lookahead())
			p.index += 2
			//
			if arg, errs = p.parseExpr(); len(errs) > 0 {
				return nil, nil, errs
			}
			//
			keywords = append(keywords, p.keyword(name, arg, start))
		default:
			if arg, errs = p.parseStarredExpr(); len(errs) > 0 {
				return nil, nil, errs
			} else if len(keywords) > 0 {
				if _, ok := arg.(*ast.Starred); !ok {
					return nil, nil, p.syntaxErrors(p.tokens[start], "positional argument follows keyword argument")
				}
			}
			//
			args = append(args, arg)
		}
	}
	//
	return args, keywords, nil
}

func (p *Parser) keyword(name string, value ast.Expr, start int) *ast.Keyword {
	kw := &ast.Keyword{Name: name, Value: value}
	p.srcmap.Put(kw, p.spanOf(start, p.index-1))
	//
	return kw
}

// Parse the contents of a subscript, up to and including the closing bracket.
// Multiple indices are combined into a tuple.
func (p *Parser) parseSubscript() (ast.Expr, []source.SyntaxError) {
	var (
		start   = p.index
		indices []ast.Expr
		comma   bool
	)
	//
	for !p.match(RSQUARE) {
		if len(indices) > 0 {
			if _, errs := p.expect(COMMA); len(errs) > 0 {
				return nil, errs
			}
			//
			comma = true
			//
			if p.match(RSQUARE) {
				break
			}
		}
		//
		index, errs := p.parseSliceOrExpr()
		if len(errs) > 0 {
			return nil, errs
		}
		//
		indices = append(indices, index)
	}
	//
	switch {
	case len(indices) == 0:
		return nil, p.syntaxErrors(p.tokens[start], "empty subscript")
	case len(indices) == 1 && !comma:
		return indices[0], nil
	}
	//
	return p.mappedTo(&ast.Tuple{Elems: indices}, start, p.index-2), nil
}

func (p *Parser) parseSliceOrExpr() (ast.Expr, []source.SyntaxError) {
	var (
		start = p.index
		slice = &ast.Slice{}
		errs  []source.SyntaxError
		lower ast.Expr
	)
	//
	if !p.follows(COLON) {
		if lower, errs = p.parseStarredExpr(); len(errs) > 0 {
			return nil, errs
		} else if !p.follows(COLON) {
			return lower, nil
		}
	}
	//
	slice.Lower = lower
	p.index++
	//
	if !p.follows(COLON, COMMA, RSQUARE) {
		if slice.Upper, errs = p.parseExpr(); len(errs) > 0 {
			return nil, errs
		}
	}
	//
	if p.match(COLON) && !p.follows(COMMA, RSQUARE) {
		if slice.Step, errs = p.parseExpr(); len(errs) > 0 {
			return nil, errs
		}
	}
	//
	return p.mapped(slice, start), nil
}

// nolint
func (p *Parser) parseAtom() (ast.Expr, []source.SyntaxError) {
	var (
		start     = p.index
		lookahead = p.lookahead()
		expr      ast.Expr
		errs      []source.SyntaxError
	)
	//
	switch lookahead.Kind {
	case IDENTIFIER:
		p.index++
		expr = &ast.Name{Id: p.string(lookahead)}
	case NUMBER:
		p.index++
		expr, errs = p.number(lookahead)
	case STRING:
		var builder strings.Builder
		// Adjacent strings are concatenated
		for p.follows(STRING) {
			builder.WriteString(unquote(p.string(p.lookahead())))
			p.index++
		}
		//
		expr = &ast.StrLit{Value: builder.String()}
	case KEYWORD_TRUE, KEYWORD_FALSE:
		p.index++
		expr = &ast.BoolLit{Value: lookahead.Kind == KEYWORD_TRUE}
	case KEYWORD_NONE:
		p.index++
		expr = &ast.NoneLit{}
	case LBRACE:
		p.index++
		//
		if p.match(RBRACE) {
			expr = &ast.Tuple{}
		} else if expr, errs = p.parseExprList(); len(errs) > 0 {
			return nil, errs
		} else if _, errs = p.expect(RBRACE); len(errs) > 0 {
			return nil, errs
		} else if t, ok := expr.(*ast.Tuple); ok {
			// Tuple spans include brackets
			expr = &ast.Tuple{Elems: t.Elems}
		} else {
			// Bracketed expression
			return expr, nil
		}
	case LSQUARE:
		p.index++
		expr, errs = p.parseListDisplay()
	case LCURLY:
		p.index++
		expr, errs = p.parseDictDisplay()
	default:
		return nil, p.syntaxErrors(lookahead, "unexpected token")
	}
	//
	if len(errs) > 0 {
		return nil, errs
	}
	//
	return p.mapped(expr, start), nil
}

func (p *Parser) parseListDisplay() (ast.Expr, []source.SyntaxError) {
	var elems []ast.Expr
	//
	for !p.match(RSQUARE) {
		if len(elems) > 0 {
			if _, errs := p.expect(COMMA); len(errs) > 0 {
				return nil, errs
			} else if p.match(RSQUARE) {
				break
			}
		}
		//
		elem, errs := p.parseStarredExpr()
		if len(errs) > 0 {
			return nil, errs
		} else if p.follows(KEYWORD_FOR) {
			return nil, p.syntaxErrors(p.lookahead(), "comprehensions not supported")
		}
		//
		elems = append(elems, elem)
	}
	//
	return &ast.List{Elems: elems}, nil
}

func (p *Parser) parseDictDisplay() (ast.Expr, []source.SyntaxError) {
	var dict = &ast.Dict{}
	//
	for !p.match(RCURLY) {
		if len(dict.Keys) > 0 {
			if _, errs := p.expect(COMMA); len(errs) > 0 {
				return nil, errs
			} else if p.match(RCURLY) {
				break
			}
		}
		//
		key, errs := p.parseExpr()
		if len(errs) > 0 {
			return nil, errs
		} else if _, errs = p.expect(COLON); len(errs) > 0 {
			return nil, errs
		}
		//
		value, errs := p.parseExpr()
		if len(errs) > 0 {
			return nil, errs
		}
		//
		dict.Keys = append(dict.Keys, key)
		dict.Values = append(dict.Values, value)
	}
	//
	return dict, nil
}

func (p *Parser) parseIdentifier() (string, []source.SyntaxError) {
	tok, errs := p.expect(IDENTIFIER)
	//
	if len(errs) > 0 {
		return "", errs
	}
	//
	return p.string(tok), nil
}

// Get the text representing the given token as a string.
func (p *Parser) string(token lex.Token) string {
	return p.srcfile.Text(token.Span)
}

// Convert a numeric token into either an integer or floating point literal.
func (p *Parser) number(token lex.Token) (ast.Expr, []source.SyntaxError) {
	var text = strings.ReplaceAll(p.string(token), "_", "")
	//
	if !strings.HasPrefix(text, "0x") && !strings.HasPrefix(text, "0X") && strings.ContainsAny(text, ".eE") {
		if val, err := strconv.ParseFloat(text, 64); err == nil {
			return &ast.FloatLit{Value: val}, nil
		}
	} else if val, err := strconv.ParseInt(text, 0, 64); err == nil {
		return &ast.IntLit{Value: val}, nil
	}
	//
	return nil, p.syntaxErrors(token, "malformed numeric literal")
}

// Strip quotes from a string literal and interpret escapes.
func unquote(text string) string {
	var (
		builder strings.Builder
		quotes  = 1
	)
	//
	if strings.HasPrefix(text, `"""`) || strings.HasPrefix(text, `'''`) {
		quotes = 3
	}
	//
	body := []rune(text[quotes : len(text)-quotes])
	//
	for i := 0; i < len(body); i++ {
		if body[i] != '\\' || i+1 == len(body) {
			builder.WriteRune(body[i])
			continue
		}
		//
		i++
		//
		switch body[i] {
		case 'n':
			builder.WriteRune('\n')
		case 't':
			builder.WriteRune('\t')
		case 'r':
			builder.WriteRune('\r')
		case '0':
			builder.WriteRune(0)
		case '\\', '\'', '"':
			builder.WriteRune(body[i])
		case '\n':
			// line continuation within string
		default:
			builder.WriteRune('\\')
			builder.WriteRune(body[i])
		}
	}
	//
	return builder.String()
}

// Lookahead returns the next token.  This must exist because EOF is always
// appended at the end of the token stream.
func (p *Parser) lookahead() lex.Token {
	return p.tokens[p.index]
}

// Expect returns an error if the next token is not what was expected.
func (p *Parser) expect(kind uint) (lex.Token, []source.SyntaxError) {
	lookahead := p.lookahead()
	//
	if lookahead.Kind != kind {
		errs := p.syntaxErrors(lookahead, fmt.Sprintf("expected %s", describe(kind)))
		return lookahead, errs
	}
	//
	p.index++
	//
	return lookahead, nil
}

// Match attempts to match the given token.
func (p *Parser) match(kind uint) bool {
	if p.lookahead().Kind == kind {
		p.index++
		return true
	}
	//
	return false
}

// Follows checks whether one of the given token kinds is next.
func (p *Parser) follows(options ...uint) bool {
	return slices.Contains(options, p.lookahead().Kind)
}

// FollowsName checks whether one of the given (soft keyword) names is next.
func (p *Parser) followsName(names ...string) bool {
	return p.follows(IDENTIFIER) && slices.Contains(names, p.string(p.lookahead()))
}

// Record the span of a newly constructed expression, which begins at a given
// token and ends with the previous token.
func (p *Parser) mapped(expr ast.Expr, start int) ast.Expr {
	return p.mappedTo(expr, start, p.index-1)
}

func (p *Parser) mappedTo(expr ast.Expr, start int, end int) ast.Expr {
	if !p.srcmap.Has(expr) {
		p.srcmap.Put(expr, p.spanOf(start, end))
	}
	//
	return expr
}

func (p *Parser) spanOf(firstToken, lastToken int) source.Span {
	start := p.tokens[firstToken].Span.Start()
	end := p.tokens[max(firstToken, lastToken)].Span.End()
	//
	return source.NewSpan(start, max(start, end))
}

func (p *Parser) syntaxErrors(token lex.Token, msg string) []source.SyntaxError {
	if token.Kind == END_OF {
		msg = "unexpected end of file"
	} else if token.Kind == INDENT || token.Kind == DEDENT || token.Kind == NEWLINE {
		msg = fmt.Sprintf("%s (found %s)", msg, describe(token.Kind))
	}
	//
	return []source.SyntaxError{*p.srcfile.SyntaxError(token.Span, msg)}
}

func describe(kind uint) string {
	switch kind {
	case NEWLINE:
		return "end of line"
	case INDENT:
		return "indented block"
	case DEDENT:
		return "end of block"
	case IDENTIFIER:
		return "identifier"
	case COLON:
		return "\":\""
	case COMMA:
		return "\",\""
	case EQUALS:
		return "\"=\""
	case LBRACE:
		return "\"(\""
	case RBRACE:
		return "\")\""
	case KEYWORD_DEF:
		return "\"def\""
	case KEYWORD_IN:
		return "\"in\""
	case KEYWORD_ELSE:
		return "\"else\""
	}
	//
	for name, k := range keywords {
		if k == kind {
			return fmt.Sprintf("%q", name)
		}
	}
	//
	return "token"
}
