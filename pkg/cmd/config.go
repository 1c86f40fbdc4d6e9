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
package cmd

import (
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/consensys/go-kscript/pkg/kscript/compiler"
	"github.com/consensys/go-kscript/pkg/kscript/types"
)

// CONFIG_FILE is the configuration file picked up from the working directory
// when none is given explicitly.
const CONFIG_FILE = "kscript.yaml"

// ENV_PREFIX identifies environment variables which configure kscript, such as
// "KSCRIPT_MAX_DEPTH".
const ENV_PREFIX = "KSCRIPT_"

// DEFAULT_MAX_DEPTH is the default limit on nested macro expansion.
const DEFAULT_MAX_DEPTH = compiler.DEFAULT_MAX_DEPTH

// Config holds the settings shared by all commands.
type Config struct {
	Verbose  bool `koanf:"verbose"`
	MaxDepth uint `koanf:"max_depth"`
	// Number of prim funcs assembled in parallel, where zero means one per cpu.
	Workers int `koanf:"workers"`
}

// Compiler returns the compiler configuration determined by these settings.
func (p *Config) Compiler() compiler.Config {
	var workers = p.Workers
	//
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	//
	return compiler.Config{MaxDepth: p.MaxDepth, Workers: workers, Registry: types.DefaultRegistry()}
}

// LoadConfig determines the current settings.  In order of increasing
// priority, these come from: defaults; the configuration file; environment
// variables; and, finally, flags given explicitly on the command line.
func LoadConfig(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	var k = koanf.New(".")
	// Defaults
	if err := k.Load(confmap.Provider(map[string]any{
		"verbose":   false,
		"max_depth": DEFAULT_MAX_DEPTH,
		"workers":   0,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}
	// Configuration file
	if cfgFile == "" {
		if _, err := os.Stat(CONFIG_FILE); err == nil {
			cfgFile = CONFIG_FILE
		}
	}
	//
	if cfgFile != "" {
		if err := k.Load(file.Provider(cfgFile), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", cfgFile, err)
		}
	}
	// Environment (e.g. KSCRIPT_MAX_DEPTH => max_depth)
	if err := k.Load(env.Provider(ENV_PREFIX, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, ENV_PREFIX))
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}
	// Flags
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			// Only flags given explicitly override
			if !f.Changed || f.Name == "config" {
				return "", nil
			}
			//
			return strings.ReplaceAll(f.Name, "-", "_"), posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}
	//
	var config Config
	//
	if err := k.Unmarshal("", &config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	//
	return &config, nil
}
