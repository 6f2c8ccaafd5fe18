// Copyright 2014-2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command s502 runs the S502 toolchain shell. Command files named on the
// command line are run first; the shell then reads commands from standard
// input, prompting for them when standard input is a terminal.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/beevik/term"
	"github.com/golang/glog"
	"github.com/spf13/cobra"

	"github.com/calime/s502-tc/host"
)

var rootCmd = &cobra.Command{
	Use:           "s502 [script]...",
	Short:         "Interactive shell for the S502 assembler and linker",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		h := host.New()

		// Run commands contained in command-line files.
		for _, filename := range args {
			file, err := os.Open(filename)
			if err != nil {
				return err
			}
			h.RunCommands(file, os.Stdout, false)
			file.Close()
		}

		fd := int(os.Stdin.Fd())
		interactive := term.IsTerminal(fd)
		if interactive {
			if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil {
				h.SetWidth(w)
			}
		}

		// Leave cleanly on Ctrl-C.
		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt)
		go handleInterrupt(c)

		// Run commands interactively.
		h.RunCommands(os.Stdin, os.Stdout, interactive)
		return nil
	},
}

func init() {
	rootCmd.Flags().AddGoFlagSet(flag.CommandLine)
}

func main() {
	defer glog.Flush()
	if err := rootCmd.Execute(); err != nil {
		exitOnError(err)
	}
}

func handleInterrupt(c chan os.Signal) {
	<-c
	fmt.Println()
	glog.Flush()
	os.Exit(0)
}

func exitOnError(err error) {
	fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
	glog.Flush()
	os.Exit(1)
}
