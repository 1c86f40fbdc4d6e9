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
)

var expandCmd = &cobra.Command{
	Use:   "expand [flags] file1 file2 ...",
	Short: "print prim funcs after macro expansion.",
	Long: `Compile one or more kernel scripts, and print every prim func with its
	macro invocations inlined and its type proxies resolved.`,
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) < 1 {
			fmt.Println(cmd.UsageString())
			os.Exit(1)
		}
		//
		name := GetString(cmd, "func")
		program := compileSourceFiles(args...)
		//
		if name != "" {
			fn, ok := program.Function(name)
			if !ok {
				fmt.Printf("unknown prim func %s\n", name)
				os.Exit(1)
			}
			//
			fmt.Println(fn.String())
			//
			return
		}
		//
		for i, fn := range program.Functions() {
			if i != 0 {
				fmt.Println()
			}
			//
			fmt.Println(fn.String())
		}
	},
}

func init() {
	rootCmd.AddCommand(expandCmd)
	expandCmd.Flags().String("func", "", "print only the prim func of this name")
}
