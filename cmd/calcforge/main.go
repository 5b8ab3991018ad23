// cmd/calcforge/main.go
//
// Entry point for the calcforge CLI. Every subcommand loads the project
// configuration from .calcforge/config.yaml under the project directory.
//
// Exit codes: 0 when the batch ran to completion or was interrupted cleanly,
// 1 on a fatal abort, 2 on a usage error.

package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const (
	exitFatal = 1
	exitUsage = 2
)

var projectDir string

var rootCmd = &cobra.Command{
	Use:           "calcforge",
	Short:         "Generate, verify and register calculator packages from a checklist",
	SilenceUsage:  true,
	SilenceErrors: true,
}

type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }

func (e *usageError) Unwrap() error { return e.err }

func init() {
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}
	rootCmd.PersistentFlags().StringVar(&projectDir, "project-dir", cwd, "Project directory holding .calcforge/")
	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &usageError{err: err}
	})
	rootCmd.AddCommand(initCmd, runCmd, backlogCmd, verifyCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		var usage *usageError
		if errors.As(err, &usage) {
			os.Exit(exitUsage)
		}
		os.Exit(exitFatal)
	}
}
