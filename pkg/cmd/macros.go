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
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/consensys/go-kscript/pkg/kscript/macro"
)

var macrosCmd = &cobra.Command{
	Use:   "macros [flags] file1 file2 ...",
	Short: "list the macros defined by kernel scripts.",
	Long: `Compile one or more kernel scripts, and tabulate the signature, hygiene
	and local variables of every macro they define.`,
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) < 1 {
			fmt.Println(cmd.UsageString())
			os.Exit(1)
		}
		//
		program := compileSourceFiles(args...)
		//
		printMacros(program.Macros().Definitions())
	},
}

func printMacros(defs []*macro.Definition) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Macro", "Hygienic", "Locals"})
	//
	for _, def := range defs {
		t.AppendRow(table.Row{def.Signature(), def.Hygienic(), strings.Join(def.Locals(), ", ")})
	}
	//
	t.Render()
}

func init() {
	rootCmd.AddCommand(macrosCmd)
}
