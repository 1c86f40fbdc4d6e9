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
	"fmt"
	"runtime"
	"slices"
	"sync"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/consensys/go-kscript/pkg/kscript/ast"
	"github.com/consensys/go-kscript/pkg/kscript/diag"
	"github.com/consensys/go-kscript/pkg/kscript/macro"
	"github.com/consensys/go-kscript/pkg/kscript/parser"
	"github.com/consensys/go-kscript/pkg/kscript/symbol"
	"github.com/consensys/go-kscript/pkg/kscript/types"
	"github.com/consensys/go-kscript/pkg/util"
	"github.com/consensys/go-kscript/pkg/util/source"
)

// Config determines the behaviour of the compiler.
type Config struct {
	// MaxDepth limits the nesting of macro expansions.
	MaxDepth uint
	// Workers limits how many functions are assembled concurrently (where zero
	// or less means no limit).
	Workers int
	// Registry of recognised primitive types.
	Registry types.Registry
}

// DefaultConfig returns the default compiler configuration.
func DefaultConfig() Config {
	return Config{DEFAULT_MAX_DEPTH, runtime.NumCPU(), types.DefaultRegistry()}
}

// Program is the result of compiling one or more source files.
type Program struct {
	functions []*PrimFunc
	macros    *macro.Registry
}

// Functions returns every prim func of this program in source order.
func (p *Program) Functions() []*PrimFunc {
	return p.functions
}

// Function returns the (last declared) prim func of a given name.
func (p *Program) Function(name string) (*PrimFunc, bool) {
	for i := len(p.functions) - 1; i >= 0; i-- {
		if p.functions[i].Name == name {
			return p.functions[i], true
		}
	}
	//
	return nil, false
}

// Macros returns the (sealed) macro registry of this program.
func (p *Program) Macros() *macro.Registry {
	return p.macros
}

// Compile a set of source files into a program.  Host statements are
// evaluated, macros are defined and prim funcs are lowered in a single pass
// over the files (in the order given).  Then, prim funcs are assembled
// concurrently.  Errors are reported against the source text from which they
// arose, in source order.
func Compile(config Config, srcfiles ...*source.File) (*Program, []source.SyntaxError) {
	var (
		c = &compilation{
			config:   config,
			resolver: types.NewResolver(config.Registry),
			srcmaps:  source.NewSourceMaps[ast.Node](),
			macros:   macro.NewRegistry(),
		}
		stats = util.NewPerfStats()
		files []*ast.File
	)
	// Parse
	for _, srcfile := range srcfiles {
		file, srcmap, errs := parser.Parse(srcfile)
		if len(errs) > 0 {
			return nil, errs
		}
		//
		c.srcmaps.Join(srcmap)
		files = append(files, file)
	}
	//
	stats.Log("Parsing")
	stats = util.NewPerfStats()
	//
	if errs := c.define(files); len(errs) > 0 {
		return nil, c.sort(srcfiles, errs)
	}
	//
	c.macros.Seal()
	stats.Log("Definition")
	stats = util.NewPerfStats()
	//
	if errs := c.assemble(); len(errs) > 0 {
		return nil, c.sort(srcfiles, errs)
	}
	//
	stats.Log("Assembly")
	//
	return &Program{c.functions, c.macros}, nil
}

// State of a single compilation.
type compilation struct {
	config    Config
	resolver  *types.Resolver
	srcmaps   *source.Maps[ast.Node]
	macros    *macro.Registry
	functions []*PrimFunc
	// Guards srcmaps during concurrent assembly.
	mux sync.Mutex
}

// Evaluate host statements, define macros and lower prim funcs, in order.
// Each function sees the environment as it was at the point of declaration.
func (p *compilation) define(files []*ast.File) []source.SyntaxError {
	var (
		env   = symbol.Universe()
		front = &frontend{p.resolver, p.trace}
		errs  []source.SyntaxError
	)
	//
	for _, file := range files {
		var host = newHost(file.Filename, p.resolver)
		//
		for _, item := range file.Items {
			var err error
			//
			switch item := item.(type) {
			case *ast.HostStmt:
				var nenv *symbol.Environment
				//
				if nenv, err = host.Exec(item, env); err == nil {
					env = nenv
				}
			case *ast.FuncDef:
				env, err = p.declare(front, item, env)
			}
			//
			errs = append(errs, p.syntaxErrors(err, item)...)
		}
	}
	//
	return errs
}

// Declare a single macro or prim func, returning the extended environment.
func (p *compilation) declare(front *frontend, fn *ast.FuncDef, env *symbol.Environment) (*symbol.Environment,
	error) {
	//
	kind, dec, err := decorator(fn, env)
	if err != nil {
		return env, err
	}
	//
	switch kind {
	case MACRO:
		def, err := front.defineMacro(fn, dec, env)
		if err != nil {
			return env, err
		} else if err = p.macros.Register(def); err != nil {
			return env, err
		}
		//
		return env.Extend(fn.Name, symbol.MacroValue(def)), nil
	default:
		f, err := front.lowerPrimFunc(fn, env)
		if err != nil {
			return env, err
		}
		//
		log.Debugf("lowered prim func %s", fn.Name)
		p.functions = append(p.functions, f)
		//
		return env, nil
	}
}

// Assemble all prim funcs concurrently.
func (p *compilation) assemble() []source.SyntaxError {
	var (
		group   errgroup.Group
		results = make([][]source.SyntaxError, len(p.functions))
	)
	//
	if p.config.Workers > 0 {
		group.SetLimit(p.config.Workers)
	}
	//
	for i, fn := range p.functions {
		group.Go(func() error {
			var (
				scope     = symbol.NewScope(fn.env)
				assembler = NewAssembler(p.config.MaxDepth, p.resolver, p.trace)
			)
			//
			for _, param := range fn.Params {
				scope.DeclareLocal(param.Name, fn.node)
			}
			//
			body, err := assembler.Assemble(fn.Body, scope)
			if err != nil {
				results[i] = p.syntaxErrors(err, fn.node)
			} else {
				fn.Body = body
			}
			//
			return nil
		})
	}
	// Errors are collected per function
	_ = group.Wait()
	//
	return slices.Concat(results...)
}

// Record that one node was produced from another.
func (p *compilation) trace(from ast.Node, to ast.Node) {
	p.mux.Lock()
	defer p.mux.Unlock()
	//
	p.srcmaps.Copy(from, to)
}

// Convert an error into syntax errors, reporting any whose node is unknown
// against a fallback node.
func (p *compilation) syntaxErrors(err error, fallback ast.Node) []source.SyntaxError {
	var errs []source.SyntaxError
	//
	if err == nil {
		return nil
	}
	//
	p.mux.Lock()
	defer p.mux.Unlock()
	//
	for _, d := range diag.Flatten(err) {
		var (
			node = d.Node
			msg  = d.Msg
		)
		//
		if node == nil || !p.srcmaps.Has(node) {
			node = fallback
		}
		//
		if d.Kind != nil {
			msg = fmt.Sprintf("%s: %s", d.Kind.Error(), d.Msg)
		}
		//
		errs = append(errs, *p.srcmaps.SyntaxError(node, msg))
	}
	//
	return errs
}

// Sort errors by file (in the order given) and then by position.
func (p *compilation) sort(srcfiles []*source.File, errs []source.SyntaxError) []source.SyntaxError {
	var order = make(map[*source.File]int)
	//
	for i, f := range srcfiles {
		order[f] = i
	}
	//
	slices.SortStableFunc(errs, func(l, r source.SyntaxError) int {
		if c := order[l.SourceFile()] - order[r.SourceFile()]; c != 0 {
			return c
		}
		//
		ls, rs := l.Span(), r.Span()
		//
		return ls.Start() - rs.Start()
	})
	//
	return errs
}

// ============================================================================
// Decorators
// ============================================================================

// FuncKind distinguishes the kinds of decorated function.
type FuncKind uint8

const (
	// MACRO is a function decorated with "@T.macro".
	MACRO FuncKind = iota
	// PRIM_FUNC is a function decorated with "@T.prim_func".
	PRIM_FUNC
)

func decorator(fn *ast.FuncDef, env *symbol.Environment) (FuncKind, macro.Decorator, error) {
	if len(fn.Decorators) != 1 {
		return 0, macro.Decorator{}, diag.Definitionf(fn, "expected exactly one decorator for %s (found %d)",
			fn.Name, len(fn.Decorators))
	}
	//
	var (
		d    = fn.Decorators[0]
		call *ast.Call
	)
	//
	if c, ok := d.(*ast.Call); ok {
		call, d = c, c.Fn
	}
	//
	name, _ := ast.QualifiedName(d)
	//
	switch {
	case name == "T.macro" && call == nil:
		return MACRO, macro.Bare(), nil
	case name == "T.macro":
		dec, err := macro.Configure(call.Args, call.Keywords, env)
		return MACRO, dec, err
	case name == "T.prim_func" && (call == nil || len(call.Args)+len(call.Keywords) == 0):
		return PRIM_FUNC, macro.Decorator{}, nil
	case name == "T.prim_func":
		return 0, macro.Decorator{}, diag.Definitionf(call, "prim_func decorator accepts no arguments")
	}
	//
	return 0, macro.Decorator{}, diag.Definitionf(fn.Decorators[0], "unsupported decorator %s",
		fn.Decorators[0].String())
}
