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
package diag

import (
	"errors"
	"fmt"

	"go.uber.org/multierr"

	"github.com/consensys/go-kscript/pkg/kscript/ast"
)

var (
	// ErrDefinition signals a malformed macro definition (e.g. parameters out of
	// order or duplicated).
	ErrDefinition = errors.New("definition error")
	// ErrConfiguration signals an invalid argument given to a macro decorator.
	ErrConfiguration = errors.New("configuration error")
	// ErrArity signals a mismatch between the arguments of a macro invocation
	// and the parameters of the macro.
	ErrArity = errors.New("arity error")
	// ErrUnboundIdentifier signals a free identifier in a macro body which does
	// not resolve in the chosen scope.
	ErrUnboundIdentifier = errors.New("unbound identifier")
	// ErrUnknownDType signals a type proxy with an unrecognised primitive type.
	ErrUnknownDType = errors.New("unknown dtype")
	// ErrRecursionLimit signals that nested macro expansion exceeded the
	// configured depth.
	ErrRecursionLimit = errors.New("recursion limit exceeded")
	// ErrHost signals a failure evaluating a host statement.
	ErrHost = errors.New("host error")
)

// Error is a diagnostic arising from a given node of the syntax tree.  The node
// (if known) allows the error to be reported against the original source text.
type Error struct {
	// Kind is one of the sentinel errors above.
	Kind error
	// Node where the error arose, or nil if unknown.
	Node ast.Node
	// Msg describes the problem.
	Msg string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Msg
}

// Unwrap allows errors.Is to match the error kind.
func (e *Error) Unwrap() error {
	return e.Kind
}

// New constructs a diagnostic of a given kind.
func New(kind error, node ast.Node, format string, args ...any) *Error {
	return &Error{kind, node, fmt.Sprintf(format, args...)}
}

// Definitionf constructs a definition error.
func Definitionf(node ast.Node, format string, args ...any) *Error {
	return New(ErrDefinition, node, format, args...)
}

// Configurationf constructs a configuration error.
func Configurationf(node ast.Node, format string, args ...any) *Error {
	return New(ErrConfiguration, node, format, args...)
}

// Arityf constructs an arity error.
func Arityf(node ast.Node, format string, args ...any) *Error {
	return New(ErrArity, node, format, args...)
}

// Unboundf constructs an unbound identifier error.
func Unboundf(node ast.Node, format string, args ...any) *Error {
	return New(ErrUnboundIdentifier, node, format, args...)
}

// UnknownDTypef constructs an unknown dtype error.
func UnknownDTypef(node ast.Node, format string, args ...any) *Error {
	return New(ErrUnknownDType, node, format, args...)
}

// RecursionLimitf constructs a recursion limit error.
func RecursionLimitf(node ast.Node, format string, args ...any) *Error {
	return New(ErrRecursionLimit, node, format, args...)
}

// Hostf constructs a host evaluation error.
func Hostf(node ast.Node, format string, args ...any) *Error {
	return New(ErrHost, node, format, args...)
}

// Flatten splits a (possibly combined) error into its constituent diagnostics.
// Errors which are not diagnostics are wrapped as having no originating node.
func Flatten(err error) []*Error {
	var diags []*Error
	//
	for _, e := range multierr.Errors(err) {
		var d *Error
		//
		if errors.As(e, &d) {
			diags = append(diags, d)
		} else {
			diags = append(diags, &Error{nil, nil, e.Error()})
		}
	}
	//
	return diags
}

// WithNode returns a copy of a diagnostic reported against a given node when
// the diagnostic has no node of its own.
func (e *Error) WithNode(node ast.Node) *Error {
	if e.Node != nil {
		return e
	}
	//
	return &Error{e.Kind, node, e.Msg}
}
