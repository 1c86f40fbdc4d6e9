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
	"strings"

	log "github.com/sirupsen/logrus"
	"go.uber.org/multierr"

	"github.com/consensys/go-kscript/pkg/kscript/ast"
	"github.com/consensys/go-kscript/pkg/kscript/diag"
	"github.com/consensys/go-kscript/pkg/kscript/symbol"
	"github.com/consensys/go-kscript/pkg/util"
)

// Parameter represents a formal parameter of a macro.
type Parameter struct {
	Name    string
	Kind    ast.ParamKind
	Default util.Option[ast.Expr]
	// Node which declared this parameter (used for error reporting).
	Node ast.Node
}

// NewParameter constructs a parameter without a default value.
func NewParameter(name string, kind ast.ParamKind) Parameter {
	return Parameter{name, kind, util.None[ast.Expr](), nil}
}

// IsVariadic checks whether this is either a var-positional or var-keyword
// parameter.
func (p Parameter) IsVariadic() bool {
	return p.Kind == ast.VAR_POSITIONAL || p.Kind == ast.VAR_KEYWORD
}

func (p Parameter) String() string {
	var builder strings.Builder
	//
	switch p.Kind {
	case ast.VAR_POSITIONAL:
		builder.WriteString("*")
	case ast.VAR_KEYWORD:
		builder.WriteString("**")
	}
	//
	builder.WriteString(p.Name)
	//
	if p.Default.HasValue() {
		builder.WriteString("=")
		builder.WriteString(p.Default.Unwrap().String())
	}
	//
	return builder.String()
}

// Options configures the construction of a macro definition.
type Options struct {
	// Hygienic determines whether free identifiers in the macro body resolve in
	// the definition scope (true) or the call-site scope (false).
	Hygienic bool
}

// DefaultOptions returns the options used by the bare decorator.
func DefaultOptions() Options {
	return Options{Hygienic: true}
}

// Definition represents a macro definition.  Definitions are immutable once
// constructed, and can be shared safely between concurrent expansions.
type Definition struct {
	name     string
	params   []Parameter
	body     []ast.Stmt
	hygienic bool
	// Global environment captured at the point of definition.
	scope *symbol.Environment
	// Identifiers bound within the body, in order of first binding.
	locals []string
}

// Define constructs a macro definition after checking its parameter list and
// body are well formed.  The definition is visible within its own definition
// scope, such that it may refer to itself.  All problems found with the
// parameter list are reported together.
func Define(name string, params []Parameter, body []ast.Stmt, opts Options,
	scope *symbol.Environment) (*Definition, error) {
	//
	if err := checkParameters(params); err != nil {
		return nil, err
	}
	//
	locals, err := analyse(params, body)
	if err != nil {
		return nil, err
	}
	//
	def := &Definition{name, params, body, opts.Hygienic, nil, locals}
	def.scope = scope.Extend(name, symbol.MacroValue(def))
	//
	log.Debugf("defined macro %s (hygienic=%t, locals=%v)", def.Signature(), opts.Hygienic, locals)
	//
	return def, nil
}

// MacroName implementation for the ast.Macro interface.
func (p *Definition) MacroName() string {
	return p.name
}

// Name returns the name of this macro.
func (p *Definition) Name() string {
	return p.name
}

// Parameters returns the formal parameters of this macro in declaration order.
func (p *Definition) Parameters() []Parameter {
	return p.params
}

// Parameter returns the formal parameter with the given name, if it exists.
func (p *Definition) Parameter(name string) (Parameter, bool) {
	for _, param := range p.params {
		if param.Name == name {
			return param, true
		}
	}
	//
	return Parameter{}, false
}

// Body returns the (unexpanded) body of this macro.
func (p *Definition) Body() []ast.Stmt {
	return p.body
}

// Hygienic indicates whether free identifiers are resolved in the definition
// scope or the call-site scope.
func (p *Definition) Hygienic() bool {
	return p.hygienic
}

// Scope returns the global environment captured when this macro was defined.
func (p *Definition) Scope() *symbol.Environment {
	return p.scope
}

// Locals returns the identifiers bound within the body of this macro.
func (p *Definition) Locals() []string {
	return p.locals
}

// IsLocal checks whether a given identifier is bound within the body of this
// macro.
func (p *Definition) IsLocal(name string) bool {
	for _, local := range p.locals {
		if local == name {
			return true
		}
	}
	//
	return false
}

// Signature renders the name and parameter list of this macro, such as
// "assign(i, *args, t1, **kwargs)".
func (p *Definition) Signature() string {
	var builder strings.Builder
	//
	builder.WriteString(p.name)
	builder.WriteString("(")
	//
	for i, param := range p.params {
		if i != 0 {
			builder.WriteString(", ")
		}
		// Bare star separator
		if param.Kind == ast.KEYWORD_ONLY && (i == 0 || p.params[i-1].Kind == ast.POSITIONAL) {
			builder.WriteString("*, ")
		}
		//
		builder.WriteString(param.String())
	}
	//
	builder.WriteString(")")
	//
	return builder.String()
}

func (p *Definition) String() string {
	return p.Signature()
}

// Check that parameters are in canonical order (positional, var-positional,
// keyword-only, var-keyword), that var-positional and var-keyword appear at
// most once, that names are unique and that no positional parameter without a
// default follows one with a default.
func checkParameters(params []Parameter) error {
	var (
		errs       error
		names      = make(map[string]bool)
		counts     [4]int
		last       ast.ParamKind
		defaulting bool
	)
	//
	for i, p := range params {
		if names[p.Name] {
			errs = multierr.Append(errs, diag.Definitionf(p.Node, "duplicate parameter %s", p.Name))
		}
		//
		names[p.Name] = true
		counts[p.Kind]++
		//
		if i > 0 && p.Kind < last {
			errs = multierr.Append(errs, diag.Definitionf(p.Node, "%s parameter %s follows %s parameter",
				p.Kind, p.Name, last))
		} else if p.IsVariadic() && counts[p.Kind] == 2 {
			errs = multierr.Append(errs, diag.Definitionf(p.Node, "duplicate %s parameter %s", p.Kind, p.Name))
		}
		//
		if p.IsVariadic() && p.Default.HasValue() {
			errs = multierr.Append(errs, diag.Definitionf(p.Node, "%s parameter %s cannot have a default",
				p.Kind, p.Name))
		}
		//
		if p.Kind == ast.POSITIONAL {
			if p.Default.HasValue() {
				defaulting = true
			} else if defaulting {
				errs = multierr.Append(errs, diag.Definitionf(p.Node,
					"parameter %s without default follows parameter with default", p.Name))
			}
		}
		//
		last = max(last, p.Kind)
	}
	//
	return errs
}
