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
package macro

import (
	"github.com/consensys/go-kscript/pkg/kscript/ast"
	"github.com/consensys/go-kscript/pkg/kscript/diag"
	"github.com/consensys/go-kscript/pkg/kscript/symbol"
)

// HYGIENIC is the only option recognised by a configured decorator.
const HYGIENIC = "hygienic"

// Decorator builds macro definitions with a fixed set of options.  There are
// three decorator shapes: bare ("@T.macro"), empty ("@T.macro()") and
// configured ("@T.macro(hygienic=False)").  All produce a Decorator, and all
// definitions are built by Define.
type Decorator struct {
	options Options
}

// Bare returns the decorator for "@T.macro" (or "@T.macro()").
func Bare() Decorator {
	return Decorator{DefaultOptions()}
}

// Configure returns the decorator for "@T.macro(...)", given the arguments of
// the decorator call.  Only the keyword "hygienic" is accepted, whose value
// must be a boolean literal or a name bound to a boolean constant in the given
// environment.  Any positional argument is rejected.
func Configure(positional []ast.Expr, keywords []*ast.Keyword, env *symbol.Environment) (Decorator, error) {
	var options = DefaultOptions()
	//
	if len(positional) > 0 {
		return Decorator{}, diag.Configurationf(positional[0],
			"macro decorator accepts only keyword arguments (found %d positional)", len(positional))
	}
	//
	seen := make(map[string]bool)
	//
	for _, kw := range keywords {
		switch {
		case kw.Name != HYGIENIC:
			return Decorator{}, diag.Configurationf(kw, "unknown macro option %q", kw.Name)
		case seen[kw.Name]:
			return Decorator{}, diag.Configurationf(kw, "duplicate macro option %q", kw.Name)
		}
		//
		seen[kw.Name] = true
		//
		hygienic, ok := constantBool(kw.Value, env)
		if !ok {
			return Decorator{}, diag.Configurationf(kw.Value, "option %s requires a boolean (found %s)", kw.Name,
				kw.Value.String())
		}
		//
		options.Hygienic = hygienic
	}
	//
	return Decorator{options}, nil
}

// Options returns the options used by this decorator.
func (p Decorator) Options() Options {
	return p.options
}

// Define constructs a macro definition using the options of this decorator.
func (p Decorator) Define(name string, params []Parameter, body []ast.Stmt,
	scope *symbol.Environment) (*Definition, error) {
	return Define(name, params, body, p.options, scope)
}

func constantBool(e ast.Expr, env *symbol.Environment) (bool, bool) {
	switch e := e.(type) {
	case *ast.BoolLit:
		return e.Value, true
	case *ast.Name:
		if v, ok := env.Lookup(e.Id); ok && v.Kind == symbol.EXPR {
			return constantBool(v.Expr, nil)
		}
	}
	//
	return false, false
}
