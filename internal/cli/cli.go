// Package cli builds the command-line surface, validates the input
// paths, and manages the per-run output directory.
package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// outputDirLayout names the default per-run output directory.
const outputDirLayout = "2006-01-02-15:04:05"

// Args holds the parsed and validated command-line inputs a run needs.
type Args struct {
	GroundTruthDir  string
	GroundTruthFile string
	ToolADB         string
	ToolBEvents     string
	CMDB            string
	OutputDir       string
}

// Build constructs the root cobra command bound to a. Execute() parses
// flags, defaults OutputDir, and validates every supplied path; the
// caller (cmd/idps-compare's thin main) decides what to do with the
// returned error, keeping the os.Exit call itself out of this package.
func Build(a *Args) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "idps-compare",
		Short:         "Compares ground-truth-labeled flows against two IDS/IDPS tools",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if a.OutputDir == "" {
				a.OutputDir = defaultOutputDir()
			}
			return validateInputs(a)
		},
	}

	bindFlags(cmd.Flags(), a)
	return cmd
}

func bindFlags(flags *pflag.FlagSet, a *Args) {
	flags.StringVar(&a.GroundTruthDir, "ground-truth-dir", "", "labeled Zeek conn.log directory")
	flags.StringVar(&a.GroundTruthFile, "ground-truth-file", "", "single labeled Zeek conn.log file")
	flags.StringVar(&a.ToolADB, "tool-a-db", "", "path/DSN of Tool-A's output store")
	flags.StringVar(&a.ToolBEvents, "tool-b-events", "", "path to Tool-B's event JSON stream")
	flags.StringVar(&a.CMDB, "cm-db", "", "skip parsing; read precomputed confusion matrices from this store")
	flags.StringVar(&a.OutputDir, "output-dir", "", "output directory (default output/<timestamp>/)")
}

func defaultOutputDir() string {
	return filepath.Join("output", time.Now().Format(outputDirLayout))
}

// validateInputs requires exactly one of GroundTruthDir/GroundTruthFile
// unless CMDB is given, and every supplied filesystem path must exist
// and be the right kind.
func validateInputs(a *Args) error {
	if a.CMDB == "" {
		if a.GroundTruthDir == "" && a.GroundTruthFile == "" {
			return fmt.Errorf("no ground truth file or dir was given")
		}
		if a.GroundTruthDir != "" && a.GroundTruthFile != "" {
			return fmt.Errorf("--ground-truth-dir and --ground-truth-file are mutually exclusive")
		}
		if a.GroundTruthDir != "" {
			if err := validateDir(a.GroundTruthDir); err != nil {
				return err
			}
		}
		if a.GroundTruthFile != "" {
			if err := validateFile(a.GroundTruthFile); err != nil {
				return err
			}
		}
	}
	if a.ToolBEvents != "" {
		if err := validateFile(a.ToolBEvents); err != nil {
			return err
		}
	}
	if err := os.MkdirAll(a.OutputDir, 0o755); err != nil {
		return fmt.Errorf("creating output dir %s: %w", a.OutputDir, err)
	}
	return nil
}

func validateDir(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("path %q doesn't exist", path)
	}
	if !info.IsDir() {
		return fmt.Errorf("invalid dir %q: ground truth has to be a dir", path)
	}
	return nil
}

func validateFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("path %q doesn't exist", path)
	}
	if info.IsDir() {
		return fmt.Errorf("invalid file %q: expected a file, not a dir", path)
	}
	return nil
}
