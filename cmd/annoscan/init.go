package main

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/nao1215/annoscan/internal/config"
	"github.com/spf13/cobra"
)

//go:embed templates/annoscan.yaml
var configTemplate embed.FS

// configFileName is the default configuration file name.
const configFileName = config.DefaultConfigFile

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a new annoscan configuration file",
		Long: `Initialize creates a new .annoscan configuration file in the current directory.

The generated file includes:
- A class path with a typical Gradle output directory
- Exclude patterns for package-info and module-info classes
- Commented examples for per-namespace overrides

Examples:
  # Create .annoscan in current directory
  annoscan init

  # Create config file at a specific path
  annoscan init -o myconfig.yaml

  # Force overwrite existing file
  annoscan init -f

  # Show the template without writing anything
  annoscan init --print`,
		Args: cobra.NoArgs,
		RunE: runInitCmd,
	}

	cmd.Flags().StringP("output", "o", configFileName,
		"Output file path for the configuration")
	cmd.Flags().BoolP("force", "f", false,
		"Overwrite existing configuration file")
	cmd.Flags().Bool("print", false,
		"Print the template to stdout instead of writing a file")

	return cmd
}

// runInitCmd executes the init command.
func runInitCmd(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()

	outputPath, err := flags.GetString("output")
	if err != nil {
		return err
	}
	force, err := flags.GetBool("force")
	if err != nil {
		return err
	}
	printOnly, err := flags.GetBool("print")
	if err != nil {
		return err
	}

	content, err := configTemplate.ReadFile("templates/annoscan.yaml")
	if err != nil {
		return fmt.Errorf("failed to read config template: %w", err)
	}

	out := cmd.OutOrStdout()
	if printOnly {
		_, err := out.Write(content)
		return err
	}

	if err := writeConfigFile(outputPath, content, force); err != nil {
		return err
	}

	fmt.Fprintf(out, "Created configuration file: %s\n", outputPath)
	fmt.Fprintln(out, "\nEdit this file to set:")
	fmt.Fprintln(out, "  - Class path roots (directories and jars)")
	fmt.Fprintln(out, "  - Class files to exclude")
	fmt.Fprintln(out, "  - Per-namespace settings")

	return nil
}

// writeConfigFile creates path with content. Without force an existing file
// is an error and is left untouched.
func writeConfigFile(path string, content []byte, force bool) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	flag := os.O_WRONLY | os.O_CREATE | os.O_EXCL
	if force {
		flag = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	}

	f, err := os.OpenFile(path, flag, 0600) //nolint:gosec // user-chosen output path
	if errors.Is(err, fs.ErrExist) {
		return fmt.Errorf("configuration file already exists: %s (use -f to overwrite)", path)
	}
	if err != nil {
		return fmt.Errorf("failed to create configuration file: %w", err)
	}

	if _, err := f.Write(content); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write configuration file: %w", err)
	}
	return f.Close()
}
