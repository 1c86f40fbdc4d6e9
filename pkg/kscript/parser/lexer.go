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
	"slices"
	"unicode"

	"github.com/consensys/go-kscript/pkg/util/source"
	"github.com/consensys/go-kscript/pkg/util/source/lex"
)

// END_OF signals "end of file"
const END_OF uint = 0

// WHITESPACE signals whitespace (including explicit line continuations)
const WHITESPACE uint = 1

// COMMENT signals "# ... \n"
const COMMENT uint = 2

// NEWLINE signals the end of a logical line
const NEWLINE uint = 3

// INDENT signals an increase in indentation
const INDENT uint = 4

// DEDENT signals a decrease in indentation
const DEDENT uint = 5

// NUMBER signals an integer or floating point literal
const NUMBER uint = 6

// STRING signals a quoted string
const STRING uint = 7

// IDENTIFIER signals a name
const IDENTIFIER uint = 8

// Brackets and punctuation
const (
	// LBRACE signals "("
	LBRACE uint = 10 + iota
	// RBRACE signals ")"
	RBRACE
	// LSQUARE signals "["
	LSQUARE
	// RSQUARE signals "]"
	RSQUARE
	// LCURLY signals "{"
	LCURLY
	// RCURLY signals "}"
	RCURLY
	// COMMA signals ","
	COMMA
	// COLON signals ":"
	COLON
	// SEMICOLON signals ";"
	SEMICOLON
	// DOT signals "."
	DOT
	// EQUALS signals "="
	EQUALS
	// RIGHTARROW signals "->"
	RIGHTARROW
	// AUGASSIGN signals an augmented assignment, such as "+="
	AUGASSIGN
)

// Operators
const (
	// ADD signals "+"
	ADD uint = 30 + iota
	// SUB signals "-"
	SUB
	// MUL signals "*"
	MUL
	// DIV signals "/"
	DIV
	// FLOORDIV signals "//"
	FLOORDIV
	// REM signals "%"
	REM
	// POW signals "**"
	POW
	// AT signals "@", which is either a decorator or matrix multiplication.
	AT
	// AMPERSAND signals "&"
	AMPERSAND
	// BAR signals "|"
	BAR
	// CARET signals "^"
	CARET
	// TILDE signals "~"
	TILDE
	// SHL signals "<<"
	SHL
	// SHR signals ">>"
	SHR
	// EQUALS_EQUALS signals "=="
	EQUALS_EQUALS
	// NOT_EQUALS signals "!="
	NOT_EQUALS
	// LESS_THAN signals "<"
	LESS_THAN
	// LESS_THAN_EQUALS signals "<="
	LESS_THAN_EQUALS
	// GREATER_THAN signals ">"
	GREATER_THAN
	// GREATER_THAN_EQUALS signals ">="
	GREATER_THAN_EQUALS
)

// Keywords are lexed as identifiers and then classified.
const (
	// KEYWORD_DEF signals "def"
	KEYWORD_DEF uint = 60 + iota
	// KEYWORD_FOR signals "for"
	KEYWORD_FOR
	// KEYWORD_IN signals "in"
	KEYWORD_IN
	// KEYWORD_IF signals "if"
	KEYWORD_IF
	// KEYWORD_ELIF signals "elif"
	KEYWORD_ELIF
	// KEYWORD_ELSE signals "else"
	KEYWORD_ELSE
	// KEYWORD_WHILE signals "while"
	KEYWORD_WHILE
	// KEYWORD_WITH signals "with"
	KEYWORD_WITH
	// KEYWORD_AS signals "as"
	KEYWORD_AS
	// KEYWORD_RETURN signals "return"
	KEYWORD_RETURN
	// KEYWORD_PASS signals "pass"
	KEYWORD_PASS
	// KEYWORD_BREAK signals "break"
	KEYWORD_BREAK
	// KEYWORD_CONTINUE signals "continue"
	KEYWORD_CONTINUE
	// KEYWORD_ASSERT signals "assert"
	KEYWORD_ASSERT
	// KEYWORD_AND signals "and"
	KEYWORD_AND
	// KEYWORD_OR signals "or"
	KEYWORD_OR
	// KEYWORD_NOT signals "not"
	KEYWORD_NOT
	// KEYWORD_IS signals "is"
	KEYWORD_IS
	// KEYWORD_TRUE signals "True"
	KEYWORD_TRUE
	// KEYWORD_FALSE signals "False"
	KEYWORD_FALSE
	// KEYWORD_NONE signals "None"
	KEYWORD_NONE
	// KEYWORD_LAMBDA signals "lambda" (recognised only to be rejected)
	KEYWORD_LAMBDA
)

var keywords = map[string]uint{
	"def":      KEYWORD_DEF,
	"for":      KEYWORD_FOR,
	"in":       KEYWORD_IN,
	"if":       KEYWORD_IF,
	"elif":     KEYWORD_ELIF,
	"else":     KEYWORD_ELSE,
	"while":    KEYWORD_WHILE,
	"with":     KEYWORD_WITH,
	"as":       KEYWORD_AS,
	"return":   KEYWORD_RETURN,
	"pass":     KEYWORD_PASS,
	"break":    KEYWORD_BREAK,
	"continue": KEYWORD_CONTINUE,
	"assert":   KEYWORD_ASSERT,
	"and":      KEYWORD_AND,
	"or":       KEYWORD_OR,
	"not":      KEYWORD_NOT,
	"is":       KEYWORD_IS,
	"True":     KEYWORD_TRUE,
	"False":    KEYWORD_FALSE,
	"None":     KEYWORD_NONE,
	"lambda":   KEYWORD_LAMBDA,
}

// Width of a tab when measuring indentation.
const tabWidth = 8

var whitespace lex.Scanner[rune] = lex.Or(
	lex.Many(lex.Or(lex.Unit(' '), lex.Unit('\t'), lex.Unit('\f'), lex.Unit('\r'))),
	// Explicit line continuation
	lex.Sequence(lex.Unit('\\'), lex.Optional(lex.Unit('\r')), lex.Unit('\n')))

var newline lex.Scanner[rune] = lex.Or(lex.Unit('\r', '\n'), lex.Unit('\n'))

var comment lex.Scanner[rune] = lex.Sequence(lex.Unit('#'), lex.Optional(lex.Until('\n')))

var (
	digits = lex.Sequence(
		lex.Within('0', '9'),
		lex.Optional(lex.Many(lex.Or(lex.Within('0', '9'), lex.Unit('_')))))

	hexDigit = lex.Or(
		lex.Within('0', '9'),
		lex.Within('A', 'F'),
		lex.Within('a', 'f'),
		lex.Unit('_'),
	)

	exponent = lex.Sequence(
		lex.Or(lex.Unit('e'), lex.Unit('E')),
		lex.Optional(lex.Or(lex.Unit('+'), lex.Unit('-'))),
		digits)

	number = lex.Or(
		lex.Sequence(lex.Unit('0'), lex.Or(lex.Unit('x'), lex.Unit('X')), lex.Many(hexDigit)),
		lex.Sequence(digits, lex.Optional(lex.Sequence(lex.Unit('.'), lex.Optional(digits))), lex.Optional(exponent)),
		lex.Sequence(lex.Unit('.'), digits, lex.Optional(exponent)),
	)
)

var identifier lex.Scanner[rune] = lex.Sequence(
	lex.Satisfy(func(c rune) bool { return c == '_' || unicode.IsLetter(c) }),
	lex.Optional(lex.Many(lex.Satisfy(func(c rune) bool {
		return c == '_' || unicode.IsLetter(c) || unicode.IsDigit(c)
	}))))

var strung lex.Scanner[rune] = lex.Or(
	tripleQuoted('"'),
	tripleQuoted('\''),
	lex.Quoted('"'),
	lex.Quoted('\''))

// lexing rules
var rules []lex.LexRule[rune] = []lex.LexRule[rune]{
	lex.Rule(comment, COMMENT),
	lex.Rule(newline, NEWLINE),
	lex.Rule(whitespace, WHITESPACE),
	lex.Rule(lex.Unit('('), LBRACE),
	lex.Rule(lex.Unit(')'), RBRACE),
	lex.Rule(lex.Unit('['), LSQUARE),
	lex.Rule(lex.Unit(']'), RSQUARE),
	lex.Rule(lex.Unit('{'), LCURLY),
	lex.Rule(lex.Unit('}'), RCURLY),
	lex.Rule(lex.Unit(','), COMMA),
	lex.Rule(lex.Unit(':'), COLON),
	lex.Rule(lex.Unit(';'), SEMICOLON),
	lex.Rule(lex.Unit('='), EQUALS),
	lex.Rule(lex.String("->"), RIGHTARROW),
	lex.Rule(lex.Or(
		lex.String("+="), lex.String("-="), lex.String("*="), lex.String("/="),
		lex.String("//="), lex.String("%="), lex.String("**="), lex.String("@="),
		lex.String("&="), lex.String("|="), lex.String("^="), lex.String("<<="),
		lex.String(">>=")), AUGASSIGN),
	lex.Rule(lex.Unit('+'), ADD),
	lex.Rule(lex.Unit('-'), SUB),
	lex.Rule(lex.Unit('*'), MUL),
	lex.Rule(lex.Unit('/'), DIV),
	lex.Rule(lex.String("//"), FLOORDIV),
	lex.Rule(lex.Unit('%'), REM),
	lex.Rule(lex.String("**"), POW),
	lex.Rule(lex.Unit('@'), AT),
	lex.Rule(lex.Unit('&'), AMPERSAND),
	lex.Rule(lex.Unit('|'), BAR),
	lex.Rule(lex.Unit('^'), CARET),
	lex.Rule(lex.Unit('~'), TILDE),
	lex.Rule(lex.String("<<"), SHL),
	lex.Rule(lex.String(">>"), SHR),
	lex.Rule(lex.String("=="), EQUALS_EQUALS),
	lex.Rule(lex.String("!="), NOT_EQUALS),
	lex.Rule(lex.Unit('<'), LESS_THAN),
	lex.Rule(lex.String("<="), LESS_THAN_EQUALS),
	lex.Rule(lex.Unit('>'), GREATER_THAN),
	lex.Rule(lex.String(">="), GREATER_THAN_EQUALS),
	// Numbers before dot, so that ".5" is a number.
	lex.Rule(number, NUMBER),
	lex.Rule(lex.Unit('.'), DOT),
	lex.Rule(strung, STRING),
	lex.Rule(identifier, IDENTIFIER),
	lex.Rule(lex.Eof[rune](), END_OF),
}

// Lex a given source file into a sequence of zero or more tokens, along with
// any syntax errors arising.  The resulting token stream has whitespace and
// comments removed, keywords classified and the layout of the file made
// explicit through NEWLINE, INDENT and DEDENT tokens.
func Lex(srcfile *source.File) ([]lex.Token, []source.SyntaxError) {
	var (
		contents = srcfile.Contents()
		lexer    = lex.NewLexer(contents, rules...)
		// Lex as many tokens as possible
		tokens = lexer.Collect()
	)
	// Check whether anything was left (if so this is an error)
	if lexer.Remaining() != 0 {
		start := lexer.Index()
		err := srcfile.SyntaxError(source.NewSpan(int(start), int(start+1)), "unknown text encountered")
		// errors
		return nil, []source.SyntaxError{*err}
	}
	// Remove any whitespace and comments
	tokens = slices.DeleteFunc(tokens, func(t lex.Token) bool {
		return t.Kind == WHITESPACE || t.Kind == COMMENT
	})
	// Classify keywords
	for i, t := range tokens {
		if t.Kind == IDENTIFIER {
			if kind, ok := keywords[srcfile.Text(t.Span)]; ok {
				tokens[i].Kind = kind
			}
		}
	}
	//
	return layout(srcfile, tokens)
}

// Layout determines the logical lines of a token stream.  Newlines within
// brackets or on blank lines are dropped, and changes in the indentation of
// logical lines are signalled with INDENT and DEDENT tokens.
func layout(srcfile *source.File, tokens []lex.Token) ([]lex.Token, []source.SyntaxError) {
	var (
		contents  = srcfile.Contents()
		out       = make([]lex.Token, 0, len(tokens))
		stack     = []int{0}
		depth     = 0
		lineStart = true
	)
	//
	for _, t := range tokens {
		switch t.Kind {
		case NEWLINE:
			if depth == 0 && !lineStart {
				out = append(out, t)
				lineStart = true
			}
			//
			continue
		case END_OF:
			eof := source.NewSpan(t.Span.Start(), t.Span.Start())
			//
			if !lineStart {
				out = append(out, lex.Token{Kind: NEWLINE, Span: eof})
			}
			//
			for ; len(stack) > 1; stack = stack[:len(stack)-1] {
				out = append(out, lex.Token{Kind: DEDENT, Span: eof})
			}
			//
			out = append(out, t)
			//
			continue
		}
		//
		if lineStart {
			var (
				col  = column(contents, t.Span.Start())
				mark = source.NewSpan(t.Span.Start(), t.Span.Start())
			)
			//
			if col > stack[len(stack)-1] {
				stack = append(stack, col)
				out = append(out, lex.Token{Kind: INDENT, Span: mark})
			}
			//
			for col < stack[len(stack)-1] {
				stack = stack[:len(stack)-1]
				out = append(out, lex.Token{Kind: DEDENT, Span: mark})
			}
			//
			if col != stack[len(stack)-1] {
				return nil, []source.SyntaxError{*srcfile.SyntaxError(t.Span, "inconsistent indentation")}
			}
			//
			lineStart = false
		}
		//
		switch t.Kind {
		case LBRACE, LSQUARE, LCURLY:
			depth++
		case RBRACE, RSQUARE, RCURLY:
			depth = max(0, depth-1)
		}
		//
		out = append(out, t)
	}
	//
	return out, nil
}

// Determine the column of a given position, expanding tabs.
func column(contents []rune, index int) int {
	var start = index
	//
	for start > 0 && contents[start-1] != '\n' {
		start--
	}
	//
	col := 0
	//
	for _, c := range contents[start:index] {
		if c == '\t' {
			col = (col/tabWidth + 1) * tabWidth
		} else {
			col++
		}
	}
	//
	return col
}

// Matches a triple quoted string, which may span multiple lines.
func tripleQuoted(quote rune) lex.Scanner[rune] {
	delim := []rune{quote, quote, quote}
	//
	return func(items []rune) uint {
		if len(items) < 6 || !slices.Equal(items[:3], delim) {
			return 0
		}
		//
		for i := 3; i+3 <= len(items); i++ {
			if items[i] == '\\' {
				i++
			} else if slices.Equal(items[i:i+3], delim) {
				return uint(i + 3)
			}
		}
		// unterminated
		return 0
	}
}
