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

	"github.com/muesli/termenv"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/consensys/go-kscript/pkg/kscript/compiler"
	"github.com/consensys/go-kscript/pkg/util/source"
)

// GetFlag gets an expected flag, or exits if an error arises.
func GetFlag(cmd *cobra.Command, flag string) bool {
	r, err := cmd.Flags().GetBool(flag)
	if err != nil {
		fmt.Println(err)
		os.Exit(2)
	}
	//
	return r
}

// GetString gets an expected string flag, or exits if an error arises.
func GetString(cmd *cobra.Command, flag string) string {
	r, err := cmd.Flags().GetString(flag)
	if err != nil {
		fmt.Println(err)
		os.Exit(2)
	}
	//
	return r
}

// Read and compile a given set of source files, reporting any errors arising
// and then exiting.
func compileSourceFiles(filenames ...string) *compiler.Program {
	files, err := source.ReadFiles(filenames...)
	// Sanity check for errors
	if err != nil {
		fmt.Println(err)
		os.Exit(3)
	}
	//
	srcfiles := make([]*source.File, len(files))
	//
	for i := range files {
		log.Debug(fmt.Sprintf("including source file %s", files[i].Filename()))
		srcfiles[i] = &files[i]
	}
	// Compile source files
	program, errors := compiler.Compile(settings.Compiler(), srcfiles...)
	// Check for errors
	if len(errors) != 0 {
		printer := newErrorPrinter()
		// Report errors
		for _, err := range errors {
			printer.Print(&err)
		}
		// Fail
		os.Exit(4)
	}
	// Done
	return program
}

// Prints syntax errors with highlighting, where the highlight is coloured
// (when writing to a terminal) and lines are clipped to the terminal width.
type errorPrinter struct {
	output *termenv.Output
	// Maximum line width, or zero if unlimited.
	width int
}

func newErrorPrinter() *errorPrinter {
	var (
		fd    = int(os.Stdout.Fd())
		width = 0
	)
	//
	if term.IsTerminal(fd) {
		if w, _, err := term.GetSize(fd); err == nil {
			width = w
		}
	}
	//
	return &errorPrinter{termenv.NewOutput(os.Stdout), width}
}

// Print a syntax error with appropriate highlighting.
func (p *errorPrinter) Print(err *source.SyntaxError) {
	span := err.Span()
	line := err.FirstEnclosingLine()
	lineOffset := span.Start() - line.Start()
	// Calculate length (ensures don't overflow line)
	length := max(1, min(line.Length()-lineOffset, span.Length()))
	text := line.String()
	// Clip long lines
	if p.width > 0 && len(text) > p.width {
		text = text[:p.width]
		length = max(0, min(length, p.width-lineOffset))
	}
	// Print error + line number
	fmt.Printf("%s:%d:%d-%d %s\n", err.SourceFile().Filename(),
		line.Number(), 1+lineOffset, 1+lineOffset+length, err.Message())
	// Print separator line
	fmt.Println()
	// Print line
	fmt.Println(text)
	// Print indent (todo: account for tabs)
	fmt.Print(strings.Repeat(" ", min(lineOffset, len(text))))
	// Print highlight
	highlight := p.output.String(strings.Repeat("^", length)).Foreground(p.output.Color("1")).Bold()
	fmt.Println(highlight.String())
}
