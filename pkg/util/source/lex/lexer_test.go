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
package lex

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/consensys/go-kscript/pkg/util/source"
)

func Test_Lexer_00(t *testing.T) {
	var tokens = []Token{
		{END_OF, source.NewSpan(0, 0)},
	}

	checkLexer(t, "", 0, tokens...)
}

func Test_Lexer_01(t *testing.T) {
	var tokens = []Token{
		{LBRACE, source.NewSpan(0, 1)},
		{END_OF, source.NewSpan(1, 1)},
	}

	checkLexer(t, "(", 0, tokens...)
}

func Test_Lexer_02(t *testing.T) {
	var tokens = []Token{
		{LBRACE, source.NewSpan(0, 1)},
		{RBRACE, source.NewSpan(1, 2)},
		{END_OF, source.NewSpan(2, 2)},
	}

	checkLexer(t, "()", 0, tokens...)
}

func Test_Lexer_03(t *testing.T) {
	var tokens = []Token{}

	checkLexer(t, "?", 1, tokens...)
}

func Test_Lexer_04(t *testing.T) {
	var tokens = []Token{
		{LBRACE, source.NewSpan(0, 1)},
		{WSPACE, source.NewSpan(1, 3)},
		{RBRACE, source.NewSpan(3, 4)},
		{END_OF, source.NewSpan(4, 4)},
	}

	checkLexer(t, "(  )", 0, tokens...)
}

func Test_Lexer_05(t *testing.T) {
	var tokens = []Token{
		{NUMBER, source.NewSpan(0, 3)},
		{WSPACE, source.NewSpan(3, 4)},
		{NAME, source.NewSpan(4, 7)},
		{END_OF, source.NewSpan(7, 7)},
	}

	checkLexer(t, "123 x_1", 0, tokens...)
}

func Test_Lexer_06(t *testing.T) {
	// Longest match wins over rule order.
	var tokens = []Token{
		{STARSTAR, source.NewSpan(0, 2)},
		{STAR, source.NewSpan(2, 3)},
		{END_OF, source.NewSpan(3, 3)},
	}

	checkLexer(t, "***", 0, tokens...)
}

func Test_Lexer_07(t *testing.T) {
	var tokens = []Token{
		{STRING, source.NewSpan(0, 6)},
		{STRING, source.NewSpan(6, 10)},
		{END_OF, source.NewSpan(10, 10)},
	}

	checkLexer(t, `"a\"b""cd"`, 0, tokens...)
}

func Test_Lexer_08(t *testing.T) {
	// Unterminated string
	var tokens = []Token{}

	checkLexer(t, `"ab`, 3, tokens...)
}

func Test_Lexer_09(t *testing.T) {
	var tokens = []Token{
		{NUMBER, source.NewSpan(0, 4)},
		{END_OF, source.NewSpan(4, 4)},
	}

	checkLexer(t, "1.25", 0, tokens...)
}

func Test_Lexer_Sequence(t *testing.T) {
	rule := Sequence(
		Unit('a'),
		Unit('b'),
		Optional(Unit('c')),
	)
	assert.Equal(t, uint(0), rule([]rune{'a', 'c', 'c'}))
	assert.Equal(t, uint(2), rule([]rune{'a', 'b', 'b'}))
	assert.Equal(t, uint(3), rule([]rune{'a', 'b', 'c'}))
}

func Test_Lexer_Not(t *testing.T) {
	rule := Many(Not('\n', '#'))
	assert.Equal(t, uint(3), rule([]rune("abc#d")))
	assert.Equal(t, uint(0), rule([]rune("\nabc")))
}

// ==================================================================
// Framework
// ==================================================================

const END_OF uint = 0
const WSPACE uint = 1
const LBRACE uint = 2
const RBRACE uint = 3
const NUMBER uint = 4
const NAME uint = 5
const STAR uint = 6
const STARSTAR uint = 7
const STRING uint = 8

var whitespace Scanner[rune] = Many(Or(Unit(' '), Unit('\t')))

var digits Scanner[rune] = Many(Within('0', '9'))

var number Scanner[rune] = Sequence(digits, Optional(Sequence(Unit('.'), digits)))

var name Scanner[rune] = Sequence(
	Or(Within('a', 'z'), Unit('_')),
	Optional(Many(Or(Within('a', 'z'), Within('0', '9'), Unit('_')))))

// lexing rules
var rules []LexRule[rune] = []LexRule[rune]{
	Rule(Unit('('), LBRACE),
	Rule(Unit(')'), RBRACE),
	Rule(Unit('*'), STAR),
	Rule(String("**"), STARSTAR),
	Rule(Quoted('"'), STRING),
	Rule(whitespace, WSPACE),
	Rule(number, NUMBER),
	Rule(name, NAME),
	Rule(Eof[rune](), END_OF),
}

func checkLexer(t *testing.T, input string, remainder uint, expected ...Token) {
	items := []rune(input)
	// Construct text lexer
	lexer := NewLexer[rune](items, rules...)
	// Apply lexer
	tokens := lexer.Collect()
	// Keep scanning
	if !slices.Equal(tokens, expected) {
		t.Errorf("got %v, expected %v", tokens, expected)
	} else if lexer.Remaining() != remainder {
		n := len(items) - int(lexer.Remaining())
		t.Errorf("unmatched items: %v", items[n:])
	}
}
