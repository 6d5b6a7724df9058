package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/nao1215/annoscan/internal/config"
	"github.com/nao1215/annoscan/internal/model"
	"github.com/spf13/cobra"
)

// Exit statuses.
const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

// errUsage marks errors caused by how annoscan was invoked: unknown flags,
// bad flag values or a wrong number of arguments.
var errUsage = errors.New("usage error")

// NewRootCmd creates the root command for annoscan.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "annoscan",
		Short: "Find classes carrying an annotation in compiled Java code",
		Long: `annoscan reads compiled class files under a package namespace and lists
every class whose class-level RuntimeVisibleAnnotations contain a given
annotation type. Directories and .jar/.zip archives can be used as class
path roots.

Scan results are kept in a local history database so that later scans of
the same namespace can be compared.

Exit status is 0 when the scan completes, even if some class files were
skipped, 2 for invalid usage or configuration, and 1 for other failures.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	// Subcommands inherit this unless they set their own.
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return fmt.Errorf("%w: %w", errUsage, err)
	})

	cmd.AddCommand(
		NewScanCmd(),
		NewHistoryCmd(),
		NewInitCmd(),
		NewVersionCmd(),
	)

	return cmd
}

// exitCode maps the error returned by the root command to an exit status.
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, errUsage),
		errors.Is(err, model.ErrInvalidNamespace),
		config.IsConfigError(err):
		return exitUsage
	default:
		return exitError
	}
}

// run executes the root command with args and reports errors to stderr.
// It returns the process exit status.
func run(args []string, stdout, stderr io.Writer) int {
	cmd := NewRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.Execute()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
	}
	return exitCode(err)
}

// Execute runs the root command and exits with its status.
func Execute() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}
