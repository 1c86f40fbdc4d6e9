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
	"errors"
	"sync"

	log "github.com/sirupsen/logrus"
)

// ErrSealed is returned when registering a macro after the registry is sealed.
var ErrSealed = errors.New("macro registry is sealed")

// Registry records the macro definitions of a program.  Definitions are
// registered during a single-threaded definition phase, after which the
// registry is sealed and can be read concurrently.
type Registry struct {
	mux sync.RWMutex
	// Definitions in order of (first) registration.
	defs   []*Definition
	index  map[string]int
	sealed bool
}

// NewRegistry constructs an initially empty registry.
func NewRegistry() *Registry {
	return &Registry{index: make(map[string]int)}
}

// Register a macro definition.  A definition with the same name as an existing
// definition replaces it, though macros already defined continue to refer to
// the earlier definition through their own definition scopes.
func (p *Registry) Register(def *Definition) error {
	p.mux.Lock()
	defer p.mux.Unlock()
	//
	if p.sealed {
		return ErrSealed
	}
	//
	if i, ok := p.index[def.name]; ok {
		log.Debugf("macro %s redefined", def.name)
		p.defs[i] = def
	} else {
		p.index[def.name] = len(p.defs)
		p.defs = append(p.defs, def)
	}
	//
	return nil
}

// Lookup the current definition of a macro by name.
func (p *Registry) Lookup(name string) (*Definition, bool) {
	p.mux.RLock()
	defer p.mux.RUnlock()
	//
	if i, ok := p.index[name]; ok {
		return p.defs[i], true
	}
	//
	return nil, false
}

// Definitions returns all registered definitions in order of registration.
func (p *Registry) Definitions() []*Definition {
	p.mux.RLock()
	defer p.mux.RUnlock()
	//
	return append([]*Definition(nil), p.defs...)
}

// Seal this registry, preventing further registrations.
func (p *Registry) Seal() {
	p.mux.Lock()
	defer p.mux.Unlock()
	//
	p.sealed = true
}

// IsSealed checks whether this registry has been sealed.
func (p *Registry) IsSealed() bool {
	p.mux.RLock()
	defer p.mux.RUnlock()
	//
	return p.sealed
}
