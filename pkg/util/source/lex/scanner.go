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
	"cmp"
)

// Scanner is a function which accepts zero or more items from the start of a
// given sequence.  It returns the number of items consumed, where zero
// indicates no match.
type Scanner[T any] func(items []T) uint

// And combines zero or more scanners such that the resulting scanner succeeds if
// all of the scanners succeed.  The longest match is returned.
func And[T any](scanners ...Scanner[T]) Scanner[T] {
	return func(items []T) uint {
		n := uint(0)

		for _, scanner := range scanners {
			m := scanner(items)
			if m == 0 {
				// fail
				return 0
			}
			//
			n = max(n, m)
		}
		//
		return n
	}
}

// Or combines zero or more scanners such that the resulting scanner succeeds if
// any of the scanners succeeds.  Observe, however, that there is an implicit
// left-to-right order of evaluation.
func Or[T any](scanners ...Scanner[T]) Scanner[T] {
	return func(items []T) uint {
		for _, scanner := range scanners {
			if n := scanner(items); n > 0 {
				return n
			}
		}
		// fail
		return 0
	}
}

// Unit accepts a given sequence of items.  That is, for this scanner to match,
// it must match all the given items (one after the other) in their given order.
func Unit[T comparable](chars ...T) Scanner[T] {
	return func(items []T) uint {
		if len(items) >= len(chars) {
			for i := 0; i < len(chars); i++ {
				if items[i] != chars[i] {
					// fail
					return 0
				}
			}
			// success
			return uint(len(chars))
		}
		// fail
		return 0
	}
}

// String expects a given string s.  It is equivalent to [Unit](s[0], s[1], ...)
func String(s string) Scanner[rune] {
	return Unit([]rune(s)...)
}

// Within accepts any item within a given (inclusive) range.
func Within[T cmp.Ordered](lowest T, highest T) Scanner[T] {
	return func(items []T) uint {
		if len(items) != 0 && lowest <= items[0] && items[0] <= highest {
			return 1
		}
		// fail
		return 0
	}
}

// Satisfy accepts a single item for which the given predicate holds.
func Satisfy[T any](predicate func(T) bool) Scanner[T] {
	return func(items []T) uint {
		if len(items) != 0 && predicate(items[0]) {
			return 1
		}
		// fail
		return 0
	}
}

// Not accepts any single item other than those given.
func Not[T comparable](chars ...T) Scanner[T] {
	return func(items []T) uint {
		if len(items) == 0 {
			return 0
		}
		//
		for _, c := range chars {
			if items[0] == c {
				return 0
			}
		}
		//
		return 1
	}
}

// Many matches zero or more of a given item.  Since a match of zero items
// signals failure, this only succeeds when at least one item is matched.
func Many[T any](acceptor Scanner[T]) Scanner[T] {
	return func(items []T) uint {
		index := uint(0)
		//
		for index < uint(len(items)) {
			if n := acceptor(items[index:]); n != 0 {
				index += n
				continue
			}
			//
			break
		}
		// done
		return index
	}
}

// Until matches everything until a particular item is matched (or the end of
// the sequence is reached).
func Until[T comparable](item T) Scanner[T] {
	return func(items []T) uint {
		index := uint(0)
		//
		for index < uint(len(items)) && items[index] != item {
			index = index + 1
		}
		// done
		return index
	}
}

// Eof matches the end of the input stream.
func Eof[T any]() Scanner[T] {
	return func(items []T) uint {
		if len(items) == 0 {
			return 1
		}
		//
		return 0
	}
}

// Sequence matches all the scanners in order.  Each scanner consumes the input
// right after the previous one ends.  Scanners wrapped with [Optional] may
// match nothing without failing the sequence.
func Sequence[T any](scanners ...Scanner[T]) Scanner[T] {
	return func(items []T) uint {
		n := uint(0)
		//
		for _, scanner := range scanners {
			m := scanner(items[n:])
			//
			if m == 0 {
				return 0
			} else if m != optional {
				n += m
			}
		}
		//
		return n
	}
}

// Optional marks a scanner within a [Sequence] as allowed to match nothing.
func Optional[T any](scanner Scanner[T]) Scanner[T] {
	return func(items []T) uint {
		if n := scanner(items); n > 0 {
			return n
		}
		//
		return optional
	}
}

// Quoted matches a string literal delimited by a given quote character,
// allowing backslash escapes.  The literal cannot span multiple lines.
func Quoted(quote rune) Scanner[rune] {
	return func(items []rune) uint {
		if len(items) == 0 || items[0] != quote {
			return 0
		}
		//
		for i := 1; i < len(items); i++ {
			switch items[i] {
			case '\\':
				i++
			case '\n':
				return 0
			case quote:
				return uint(i + 1)
			}
		}
		// unterminated
		return 0
	}
}

// optional is the sentinel match length used by Optional scanners which
// matched nothing.  Outside of a sequence it behaves like a (very long) match,
// hence Optional should only be used inside Sequence.
const optional = ^uint(0)
