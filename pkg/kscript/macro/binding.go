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

	"github.com/consensys/go-kscript/pkg/kscript/ast"
	"github.com/consensys/go-kscript/pkg/kscript/diag"
)

// Invocation represents a call of a macro with (unevaluated) actual arguments.
type Invocation struct {
	// Site of the invocation (used for error reporting).
	Site       ast.Node
	Positional []ast.Expr
	Keywords   []*ast.Keyword
}

// NewInvocation constructs an invocation from a call expression.  Spreads of
// literal sequences ("*(a, b)") and literal mappings ("**{"k": v}") are
// flattened into ordinary arguments.  Spreads of anything else cannot be
// matched against parameters, and are rejected.
func NewInvocation(site ast.Node, call *ast.Call) (Invocation, error) {
	var inv = Invocation{Site: site}
	//
	for _, arg := range call.Args {
		if s, ok := arg.(*ast.Starred); !ok {
			inv.Positional = append(inv.Positional, arg)
		} else if elems, ok := literalSequence(s.Value); ok {
			inv.Positional = append(inv.Positional, elems...)
		} else {
			return Invocation{}, diag.Arityf(arg, "cannot spread %s into macro arguments", s.Value.String())
		}
	}
	//
	for _, kw := range call.Keywords {
		if kw.Name != "" {
			inv.Keywords = append(inv.Keywords, kw)
		} else if kws, ok := literalMapping(kw.Value); ok {
			inv.Keywords = append(inv.Keywords, kws...)
		} else {
			return Invocation{}, diag.Arityf(kw, "cannot spread %s into macro keyword arguments", kw.Value.String())
		}
	}
	//
	return inv, nil
}

// ValueKind distinguishes the shapes of bound values.
type ValueKind uint8

const (
	// SINGLE values are bound to positional and keyword-only parameters.
	SINGLE ValueKind = iota
	// SEQUENCE values are bound to var-positional parameters.
	SEQUENCE
	// MAPPING values are bound to var-keyword parameters.
	MAPPING
)

// Value is the (unevaluated) value bound to a single parameter.
type Value struct {
	Kind     ValueKind
	Expr     ast.Expr
	Sequence []ast.Expr
	// Keyword arguments in call order.
	Mapping []*ast.Keyword
}

// Index returns the i'th element of a sequence value, where negative indices
// count from the end.
func (v Value) Index(i int64) (ast.Expr, bool) {
	n := int64(len(v.Sequence))
	//
	if i < 0 {
		i += n
	}
	//
	if i < 0 || i >= n {
		return nil, false
	}
	//
	return v.Sequence[i], true
}

// Key returns the value for a given key of a mapping value.
func (v Value) Key(key string) (ast.Expr, bool) {
	for _, kw := range v.Mapping {
		if kw.Name == key {
			return kw.Value, true
		}
	}
	//
	return nil, false
}

func (v Value) String() string {
	switch v.Kind {
	case SEQUENCE:
		return (&ast.Tuple{Elems: v.Sequence}).String()
	case MAPPING:
		var builder strings.Builder
		//
		builder.WriteString("{")
		//
		for i, kw := range v.Mapping {
			if i != 0 {
				builder.WriteString(", ")
			}
			//
			builder.WriteString(kw.String())
		}
		//
		builder.WriteString("}")
		//
		return builder.String()
	default:
		return v.Expr.String()
	}
}

// ArgumentBinding maps each formal parameter of a macro to its bound value.
type ArgumentBinding struct {
	site   ast.Node
	names  []string
	values map[string]Value
}

// Site returns the invocation site from which this binding arose.
func (p *ArgumentBinding) Site() ast.Node {
	return p.site
}

// Get returns the value bound to a given parameter.
func (p *ArgumentBinding) Get(name string) (Value, bool) {
	v, ok := p.values[name]
	return v, ok
}

// Names returns the bound parameters in declaration order.
func (p *ArgumentBinding) Names() []string {
	return p.names
}

func (p *ArgumentBinding) String() string {
	var builder strings.Builder
	//
	for i, name := range p.names {
		if i != 0 {
			builder.WriteString(", ")
		}
		//
		builder.WriteString(name)
		builder.WriteString("=")
		builder.WriteString(p.values[name].String())
	}
	//
	return builder.String()
}

// Bind matches the actual arguments of an invocation against the formal
// parameters of a macro.  Positional actuals fill the positional parameters in
// order, with any surplus collected by the var-positional parameter (if
// declared).  Keyword actuals fill positional or keyword-only parameters by
// name, with any surplus collected by the var-keyword parameter (if declared).
// Remaining parameters take their defaults.  Argument expressions are never
// evaluated.
func Bind(def *Definition, inv Invocation) (*ArgumentBinding, error) {
	var (
		values     = make(map[string]Value)
		positional []Parameter
		varpos     *Parameter
		varkw      *Parameter
		sequence   []ast.Expr
		mapping    []*ast.Keyword
	)
	//
	for i, p := range def.params {
		switch p.Kind {
		case ast.POSITIONAL:
			positional = append(positional, p)
		case ast.VAR_POSITIONAL:
			varpos = &def.params[i]
		case ast.VAR_KEYWORD:
			varkw = &def.params[i]
		}
	}
	// Positional actuals
	for i, arg := range inv.Positional {
		if i < len(positional) {
			values[positional[i].Name] = Value{Kind: SINGLE, Expr: arg}
		} else if varpos != nil {
			sequence = append(sequence, arg)
		} else {
			return nil, diag.Arityf(inv.Site, "%s takes at most %d positional arguments (found %d)", def.name,
				len(positional), len(inv.Positional))
		}
	}
	// Keyword actuals
	seen := make(map[string]bool)
	//
	for _, kw := range inv.Keywords {
		if seen[kw.Name] {
			return nil, diag.Arityf(kw, "duplicate keyword argument %s for %s", kw.Name, def.name)
		}
		//
		seen[kw.Name] = true
		//
		if p, ok := def.Parameter(kw.Name); ok && !p.IsVariadic() {
			if _, bound := values[p.Name]; bound {
				return nil, diag.Arityf(kw, "multiple values for parameter %s of %s", p.Name, def.name)
			}
			//
			values[p.Name] = Value{Kind: SINGLE, Expr: kw.Value}
		} else if varkw != nil {
			mapping = append(mapping, kw)
		} else {
			return nil, diag.Arityf(kw, "unexpected keyword argument %s for %s", kw.Name, def.name)
		}
	}
	// Defaults and variadics
	var (
		missing []string
		names   []string
	)
	//
	for _, p := range def.params {
		names = append(names, p.Name)
		//
		switch {
		case p.Kind == ast.VAR_POSITIONAL:
			values[p.Name] = Value{Kind: SEQUENCE, Sequence: sequence}
		case p.Kind == ast.VAR_KEYWORD:
			values[p.Name] = Value{Kind: MAPPING, Mapping: mapping}
		case values[p.Name].Expr != nil:
			// already bound
		case p.Default.HasValue():
			values[p.Name] = Value{Kind: SINGLE, Expr: p.Default.Unwrap()}
		default:
			missing = append(missing, p.Name)
		}
	}
	//
	if len(missing) > 0 {
		return nil, diag.Arityf(inv.Site, "%s missing required arguments: %s", def.name, strings.Join(missing, ", "))
	}
	//
	return &ArgumentBinding{inv.Site, names, values}, nil
}

func literalSequence(e ast.Expr) ([]ast.Expr, bool) {
	switch e := e.(type) {
	case *ast.Tuple:
		return e.Elems, true
	case *ast.List:
		return e.Elems, true
	}
	//
	return nil, false
}

func literalMapping(e ast.Expr) ([]*ast.Keyword, bool) {
	d, ok := e.(*ast.Dict)
	if !ok {
		return nil, false
	}
	//
	keywords := make([]*ast.Keyword, len(d.Keys))
	//
	for i, k := range d.Keys {
		key, ok := k.(*ast.StrLit)
		if !ok {
			return nil, false
		}
		//
		keywords[i] = &ast.Keyword{Name: key.Value, Value: d.Values[i]}
	}
	//
	return keywords, true
}
