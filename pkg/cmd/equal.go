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

	"github.com/spf13/cobra"

	"github.com/consensys/go-kscript/pkg/kscript/compiler"
)

var equalCmd = &cobra.Command{
	Use:   "equal [flags] file func1 func2",
	Short: "check two prim funcs are equivalent after expansion.",
	Long: `Compile a kernel script, and check that two of its prim funcs are
	equivalent after expansion (i.e. identical up to a consistent renaming of
	local variables).  Exits with a non-zero status if they are not.`,
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) != 3 {
			fmt.Println(cmd.UsageString())
			os.Exit(1)
		}
		//
		program := compileSourceFiles(args[0])
		lhs := lookupFunction(program, args[1])
		rhs := lookupFunction(program, args[2])
		//
		if err := compiler.CheckEquivalent(lhs, rhs); err != nil {
			fmt.Printf("%s and %s are not equivalent: %v\n", lhs.Name, rhs.Name, err)
			os.Exit(1)
		}
		//
		fmt.Printf("%s and %s are equivalent\n", lhs.Name, rhs.Name)
	},
}

func lookupFunction(program *compiler.Program, name string) *compiler.PrimFunc {
	fn, ok := program.Function(name)
	//
	if !ok {
		fmt.Printf("unknown prim func %s\n", name)
		os.Exit(1)
	}
	//
	return fn
}

func init() {
	rootCmd.AddCommand(equalCmd)
}
