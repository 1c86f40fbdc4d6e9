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

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check [flags] file1 file2 ...",
	Short: "check kernel scripts expand without errors.",
	Long: `Compile one or more kernel scripts, reporting any errors arising from
	host statements, macro definitions or macro expansion.`,
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) < 1 {
			fmt.Println(cmd.UsageString())
			os.Exit(1)
		}
		// Errors are reported (and the process exits) during compilation.
		program := compileSourceFiles(args...)
		//
		log.Infof("checked %d prim funcs and %d macros", len(program.Functions()),
			len(program.Macros().Definitions()))
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
