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
package symbol

import (
	"fmt"
	"slices"

	"github.com/consensys/go-kscript/pkg/kscript/ast"
)

// ValueKind distinguishes the different kinds of global value.
type ValueKind uint8

const (
	// EXPR values are host constants, such as "x_value = 128", which are
	// spliced into the program as literals.
	EXPR ValueKind = iota
	// MACRO values are macro definitions.
	MACRO
	// BUILTIN values are names understood by the downstream lowering (e.g. "T"
	// or "range"), which are left as they are.
	BUILTIN
)

// Value is the meaning of a global name.
type Value struct {
	Kind  ValueKind
	Expr  ast.Expr
	Macro ast.Macro
}

// ExprValue constructs a value for a host constant.
func ExprValue(e ast.Expr) Value {
	return Value{EXPR, e, nil}
}

// MacroValue constructs a value for a macro definition.
func MacroValue(m ast.Macro) Value {
	return Value{MACRO, nil, m}
}

// BuiltinValue constructs a value for a builtin name.
func BuiltinValue() Value {
	return Value{BUILTIN, nil, nil}
}

func (v Value) String() string {
	switch v.Kind {
	case EXPR:
		return v.Expr.String()
	case MACRO:
		return fmt.Sprintf("<macro %s>", v.Macro.MacroName())
	default:
		return "<builtin>"
	}
}

// BUILTINS lists the names predeclared in the universe environment.
var BUILTINS = []string{"T", "range", "len", "min", "max", "float", "int", "bool"}

// Environment is a persistent mapping from global names to their values.  An
// environment is never modified once constructed; extending it produces a new
// environment which shares the original.  Hence, a snapshot of the global
// environment at any point is simply a reference to it.
type Environment struct {
	parent *Environment
	name   string
	value  Value
}

var universe = newUniverse()

func newUniverse() *Environment {
	var env *Environment
	//
	for _, name := range BUILTINS {
		env = env.Extend(name, BuiltinValue())
	}
	//
	return env
}

// Universe returns the environment in which only the builtins are declared.
func Universe() *Environment {
	return universe
}

// Extend returns a new environment in which a given name is bound to a given
// value, shadowing any existing binding.  Extending a nil environment is
// permitted.
func (p *Environment) Extend(name string, value Value) *Environment {
	return &Environment{p, name, value}
}

// Lookup the value of a given name in this environment.
func (p *Environment) Lookup(name string) (Value, bool) {
	for env := p; env != nil; env = env.parent {
		if env.name == name {
			return env.value, true
		}
	}
	//
	return Value{}, false
}

// Names returns all names visible in this environment in sorted order.
func (p *Environment) Names() []string {
	var (
		names []string
		seen  = make(map[string]bool)
	)
	//
	for env := p; env != nil; env = env.parent {
		if !seen[env.name] {
			seen[env.name] = true
			names = append(names, env.name)
		}
	}
	//
	slices.Sort(names)
	//
	return names
}
