// Copyright 2014-2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command s502-as assembles an S502 source file into an object file.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/golang/glog"
	"github.com/spf13/cobra"

	"github.com/calime/s502-tc/asm"
)

var (
	output  string
	verbose bool
)

var asCmd = &cobra.Command{
	Use:   "s502-as [flags] <source.65a>",
	Short: "Assemble an S502 source file into a .65o object",
	Long: `s502-as assembles a single .65a source file. The object is written
next to the source with the extension .65o unless -o is given. Nothing is
written if the source contains errors.`,
	Args:          cobra.ExactArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		var options asm.Option
		if verbose {
			options |= asm.Verbose
		}
		path, err := asm.AssembleFile(args[0], output, options, os.Stdout)
		if err != nil {
			return err
		}
		glog.V(1).Infof("wrote %s", path)
		return nil
	},
}

func init() {
	asCmd.Flags().StringVarP(&output, "output", "o", "", "object file path")
	asCmd.Flags().BoolVar(&verbose, "verbose", false, "trace each assembled line")
	asCmd.Flags().AddGoFlagSet(flag.CommandLine)
}

func main() {
	defer glog.Flush()
	if err := asCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		glog.Flush()
		os.Exit(1)
	}
}
