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
package compiler

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	log "github.com/sirupsen/logrus"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
	"go.starlark.net/syntax"

	"github.com/consensys/go-kscript/pkg/kscript/ast"
	"github.com/consensys/go-kscript/pkg/kscript/diag"
	"github.com/consensys/go-kscript/pkg/kscript/symbol"
	"github.com/consensys/go-kscript/pkg/kscript/types"
)

// MODULE is the name under which the DSL module is visible to host code.
const MODULE = "T"

// Thread-local key under which builtins of the T module record the diagnostic
// behind a failure, such that its kind survives evaluation.
const diagnosticKey = "kscript.diagnostic"

// Host evaluates the host statements of a single source file, in order, using
// an embedded Starlark interpreter.  Every global produced by host code is
// exported into the global environment seen by subsequent definitions, where
// constants (numbers, strings, tuples, types, etc) become literals and
// anything else becomes an opaque builtin.
type host struct {
	filename string
	resolver *types.Resolver
	thread   *starlark.Thread
	options  *syntax.FileOptions
	globals  starlark.StringDict
	// Identifies the value of every exported global, such that only those
	// which change are exported again.
	exported map[string]string
}

func newHost(filename string, resolver *types.Resolver) *host {
	var (
		thread = &starlark.Thread{Name: filename, Print: func(_ *starlark.Thread, msg string) {
			log.Info(msg)
		}}
		options = &syntax.FileOptions{Set: true, While: true, TopLevelControl: true, GlobalReassign: true,
			Recursion: true}
	)
	// Module must be a global, since REPL chunks see no predeclared names.
	globals := starlark.StringDict{MODULE: newModule(resolver)}
	//
	return &host{filename, resolver, thread, options, globals, make(map[string]string)}
}

// Exec evaluates a host statement, returning the global environment extended
// with whatever the statement (re)defined.
func (p *host) Exec(stmt *ast.HostStmt, env *symbol.Environment) (*symbol.Environment, error) {
	if isImport(stmt.Source) {
		log.Debugf("ignoring host import at %s:%d", p.filename, stmt.Line)
		return env, nil
	}
	// Pad so that reported positions match the source file.
	src := strings.Repeat("\n", max(0, stmt.Line-1)) + stmt.Source + "\n"
	//
	f, err := p.options.Parse(p.filename, src, 0)
	if err != nil {
		return nil, diag.Hostf(stmt, "%s", hostMessage(err))
	}
	//
	p.thread.SetLocal(diagnosticKey, nil)
	//
	if err = starlark.ExecREPLChunk(f, p.thread, p.globals); err != nil {
		// Type proxies report their own kinds (e.g. unknown dtype)
		if d, ok := p.thread.Local(diagnosticKey).(*diag.Error); ok {
			return nil, diag.New(d.Kind, stmt, "%s", d.Msg)
		}
		//
		return nil, diag.Hostf(stmt, "%s", hostMessage(err))
	}
	//
	return p.export(env), nil
}

// Export every new or changed global into a given environment.
func (p *host) export(env *symbol.Environment) *symbol.Environment {
	var names = make([]string, 0, len(p.globals))
	//
	for name := range p.globals {
		if name != MODULE {
			names = append(names, name)
		}
	}
	// Deterministic environment order
	slices.Sort(names)
	//
	for _, name := range names {
		var (
			value = p.globals[name]
			key   = value.Type() + ":" + value.String()
		)
		//
		if p.exported[name] == key {
			continue
		}
		//
		p.exported[name] = key
		//
		if e, ok := toExpr(value); ok {
			log.Debugf("host constant %s = %s", name, e.String())
			env = env.Extend(name, symbol.ExprValue(e))
		} else {
			log.Debugf("host value %s (%s)", name, value.Type())
			env = env.Extend(name, symbol.BuiltinValue())
		}
	}
	//
	return env
}

// Convert a (constant) Starlark value into an expression.
func toExpr(value starlark.Value) (ast.Expr, bool) {
	switch v := value.(type) {
	case starlark.NoneType:
		return &ast.NoneLit{}, true
	case starlark.Bool:
		return &ast.BoolLit{Value: bool(v)}, true
	case starlark.Int:
		if i, ok := v.Int64(); ok {
			return &ast.IntLit{Value: i}, true
		}
	case starlark.Float:
		return &ast.FloatLit{Value: float64(v)}, true
	case starlark.String:
		return &ast.StrLit{Value: string(v)}, true
	case starlark.Tuple:
		if elems, ok := toExprs(v); ok {
			return &ast.Tuple{Elems: elems}, true
		}
	case *starlark.List:
		var items = make([]starlark.Value, v.Len())
		//
		for i := range items {
			items[i] = v.Index(i)
		}
		//
		if elems, ok := toExprs(items); ok {
			return &ast.List{Elems: elems}, true
		}
	case *starlark.Dict:
		var dict = &ast.Dict{}
		//
		for _, item := range v.Items() {
			key, kok := toExpr(item[0])
			val, vok := toExpr(item[1])
			//
			if !kok || !vok {
				return nil, false
			}
			//
			dict.Keys = append(dict.Keys, key)
			dict.Values = append(dict.Values, val)
		}
		//
		return dict, true
	case *typeValue:
		return &ast.TypeValue{Type: v.t}, true
	}
	//
	return nil, false
}

func toExprs(values []starlark.Value) ([]ast.Expr, bool) {
	var exprs = make([]ast.Expr, len(values))
	//
	for i, v := range values {
		e, ok := toExpr(v)
		if !ok {
			return nil, false
		}
		//
		exprs[i] = e
	}
	//
	return exprs, true
}

func isImport(src string) bool {
	return strings.HasPrefix(src, "import ") || strings.HasPrefix(src, "from ")
}

func hostMessage(err error) string {
	var (
		serr syntax.Error
		eerr *starlark.EvalError
	)
	//
	switch {
	case errors.As(err, &serr):
		return serr.Msg
	case errors.As(err, &eerr):
		return eerr.Msg
	}
	//
	return err.Error()
}

// ============================================================================
// The T module
// ============================================================================

// Construct the module through which host code builds types, such as
// "T.Buffer((128,), T.float32)" or "T.handle("int32")".
func newModule(resolver *types.Resolver) *starlarkstruct.Module {
	var members = starlark.StringDict{
		"Buffer": starlark.NewBuiltin("Buffer", func(thread *starlark.Thread, fn *starlark.Builtin,
			args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			return buffer(thread, resolver, fn, args, kwargs)
		}),
		"handle": starlark.NewBuiltin("handle", func(thread *starlark.Thread, fn *starlark.Builtin,
			args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			return handle(thread, resolver, fn, args, kwargs)
		}),
	}
	// Scalar types
	for _, name := range resolver.Registry().Names() {
		dtype, _ := resolver.Registry().Lookup(name)
		members[name] = &typeValue{dtype}
	}
	//
	return &starlarkstruct.Module{Name: MODULE, Members: members}
}

func buffer(thread *starlark.Thread, resolver *types.Resolver, fn *starlark.Builtin, args starlark.Tuple,
	kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		shape starlark.Value
		dtype starlark.Value = starlark.String(DEFAULT_DTYPE)
		scope                = types.GLOBAL
	)
	//
	if err := starlark.UnpackArgs(fn.Name(), args, kwargs, "shape", &shape, "dtype?", &dtype,
		"scope?", &scope); err != nil {
		return nil, err
	}
	//
	dims, err := shapeOf(shape)
	if err != nil {
		return nil, failure(thread, fn, err)
	}
	//
	name, err := dtypeName(dtype)
	if err != nil {
		return nil, failure(thread, fn, err)
	}
	//
	buf, err := resolver.ResolveBuffer(types.BufferProxy{Shape: dims, DType: name, Scope: scope})
	if err != nil {
		return nil, failure(thread, fn, err)
	}
	//
	return &typeValue{buf}, nil
}

func handle(thread *starlark.Thread, resolver *types.Resolver, fn *starlark.Builtin, args starlark.Tuple,
	kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		dtype starlark.Value = starlark.String("")
		scope                = types.GLOBAL
	)
	//
	if err := starlark.UnpackArgs(fn.Name(), args, kwargs, "dtype?", &dtype, "scope?", &scope); err != nil {
		return nil, err
	}
	//
	name, err := dtypeName(dtype)
	if err != nil {
		return nil, failure(thread, fn, err)
	}
	//
	ptr, err := resolver.ResolvePointer(types.PointerProxy{DType: name, Scope: scope})
	if err != nil {
		return nil, failure(thread, fn, err)
	}
	//
	return &typeValue{ptr.Type()}, nil
}

// Report the failure of a builtin, recording any diagnostic behind it.
func failure(thread *starlark.Thread, fn *starlark.Builtin, err error) error {
	var d *diag.Error
	//
	if errors.As(err, &d) {
		thread.SetLocal(diagnosticKey, d)
	}
	//
	return fmt.Errorf("%s: %w", fn.Name(), err)
}

func shapeOf(value starlark.Value) ([]ast.Expr, error) {
	var dims []starlark.Value
	//
	switch v := value.(type) {
	case starlark.Tuple:
		dims = v
	case *starlark.List:
		for i := range v.Len() {
			dims = append(dims, v.Index(i))
		}
	default:
		dims = []starlark.Value{v}
	}
	//
	exprs := make([]ast.Expr, len(dims))
	//
	for i, d := range dims {
		n, ok := d.(starlark.Int)
		if !ok {
			return nil, fmt.Errorf("shape dimension must be an int (found %s)", d.Type())
		}
		//
		if exprs[i], ok = toExpr(n); !ok {
			return nil, fmt.Errorf("shape dimension %s out of range", n.String())
		}
	}
	//
	return exprs, nil
}

func dtypeName(value starlark.Value) (string, error) {
	switch v := value.(type) {
	case starlark.String:
		return string(v), nil
	case *typeValue:
		if t, ok := v.t.(types.PrimType); ok {
			return t.String(), nil
		}
	}
	//
	return "", fmt.Errorf("dtype must be a string or scalar type (found %s)", value.String())
}

// A type (as constructed by host code) wrapped as a Starlark value.
type typeValue struct {
	t ast.Type
}

var _ starlark.Value = (*typeValue)(nil)

func (v *typeValue) String() string {
	if t, ok := v.t.(types.PrimType); ok {
		return "T." + t.String()
	}
	//
	return v.t.String()
}

// Type implementation for the starlark.Value interface.
func (v *typeValue) Type() string { return "T.type" }

// Freeze implementation for the starlark.Value interface.  Types are
// immutable.
func (v *typeValue) Freeze() {}

// Truth implementation for the starlark.Value interface.
func (v *typeValue) Truth() starlark.Bool { return starlark.True }

// Hash implementation for the starlark.Value interface.
func (v *typeValue) Hash() (uint32, error) {
	return starlark.String(v.String()).Hash()
}
