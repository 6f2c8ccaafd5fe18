// Copyright 2014-2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command s502-ln links S502 objects and symbol tables into a flat binary
// image according to a linker script.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/golang/glog"
	"github.com/spf13/cobra"

	"github.com/calime/s502-tc/link"
)

var opts link.Options

var lnCmd = &cobra.Command{
	Use:   "s502-ln [flags] <script> <input>...",
	Short: "Link S502 objects into a binary image",
	Long: `s502-ln places the sections of the given .65o objects as directed by
the linker script, resolves references against their labels and any .65s
symbol tables, and writes a flat binary image. The image is written next to
the script with the extension .bin unless -o is given.`,
	Args:          cobra.MinimumNArgs(2),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		img, err := link.LinkFiles(args[0], args[1:], opts)
		if err != nil {
			return err
		}

		output := opts.Output
		if output == "" {
			output = link.DefaultImagePath(args[0])
		}
		fmt.Printf("Linked %d object(s) to produce '%s' (%d bytes at $%04X).\n",
			len(img.Objects()), filepath.Base(output), len(img.Code), img.Origin)
		return nil
	},
}

func init() {
	f := lnCmd.Flags()
	f.StringVarP(&opts.Output, "output", "o", "", "image file path")
	f.BoolVarP(&opts.Symbols, "symbols", "s", false, "write a .65s symbol table for each object")
	f.StringVarP(&opts.CombinedSymbols, "combined-symbols", "c", "", "write one symbol table for all objects")
	f.AddGoFlagSet(flag.CommandLine)
}

func main() {
	defer glog.Flush()
	if err := lnCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		glog.Flush()
		os.Exit(1)
	}
}
