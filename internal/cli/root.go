// Package cli implements the Cobra command-line interface for NAINA.
package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/mindfulai/naina/internal/config"
	"github.com/mindfulai/naina/internal/httpapi"
	"github.com/mindfulai/naina/internal/output"
)

// Version information set by goreleaser
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// Global flag values
var (
	flagConfig  string
	flagOutput  string
	flagJSON    bool
	flagVerbose bool
	flagDataDir string
	flagProject string
)

// ExitError asks main to exit with Code without printing anything further.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

var rootCmd = &cobra.Command{
	Use:   "naina",
	Short: "NAINA - a mental-wellness companion with crisis detection",
	Long: `NAINA is a conversational mental-wellness companion.

Every message is screened for crisis language before anything else happens.
Messages are classified by distress severity:
  CRITICAL   - any single match: direct statements of intent or method
  SEVERE     - two or more matches: severe distress
  ELEVATED   - concern-level language, advisory only

Crisis turns get a supportive reply first; repeated crisis turns surface
hotline and emergency resources.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		format, err := output.ParseFormat(GetOutput())
		if err != nil {
			return err
		}
		output.SetOutputMode(format == output.FormatJSON)
		return nil
	},
	Run: func(cmd *cobra.Command, args []string) {
		showQuickReference(cmd.OutOrStdout())
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		goVersion := runtime.Version()
		configPath := flagConfig
		if configPath == "" {
			home, _ := os.UserHomeDir()
			configPath = filepath.Join(home, config.DirName, config.FileName)
		}

		payload := map[string]any{
			"version":      version,
			"commit":       commit,
			"build_date":   date,
			"go_version":   goVersion,
			"config_path":  configPath,
			"pattern_hash": newLibrary(config.DefaultConfig()).ComputeHash(),
		}

		switch GetOutput() {
		case "json", "yaml":
			return newWriter(cmd).Write(payload)
		default:
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "naina %s\n", version)
			fmt.Fprintf(w, "  commit:   %s\n", commit)
			fmt.Fprintf(w, "  built:    %s\n", date)
			fmt.Fprintf(w, "  go:       %s\n", goVersion)
			fmt.Fprintf(w, "  config:   %s\n", configPath)
			fmt.Fprintf(w, "  patterns: %s\n", payload["pattern_hash"])
			return nil
		}
	},
}

// Execute runs the root command.
func Execute() error {
	httpapi.Version = version
	return rootCmd.Execute()
}

// GetOutput returns the configured output format.
// Precedence: CLI flags > NAINA_OUTPUT_FORMAT env > default
func GetOutput() string {
	if flagJSON {
		return "json"
	}
	if flagOutput != "" && flagOutput != "text" {
		return flagOutput
	}
	if envFormat := os.Getenv("NAINA_OUTPUT_FORMAT"); envFormat != "" {
		switch envFormat {
		case "json", "yaml", "text":
			return envFormat
		}
	}
	return "text"
}

// newWriter returns an output writer bound to cmd's streams.
func newWriter(cmd *cobra.Command) *output.Writer {
	format, err := output.ParseFormat(GetOutput())
	if err != nil {
		format = output.FormatText
	}
	return output.New(format,
		output.WithOutput(cmd.OutOrStdout()),
		output.WithErrorOutput(cmd.ErrOrStderr()),
		output.WithColor(isTerminal(os.Stderr)),
	)
}

func isStructured() bool {
	return GetOutput() != "text"
}

func projectPath() (string, error) {
	if flagProject != "" {
		return flagProject, nil
	}
	pwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return pwd, nil
}

// loadConfig loads configuration with global flag overrides applied.
func loadConfig(overrides map[string]any) (config.Config, error) {
	project, err := projectPath()
	if err != nil {
		return config.Config{}, err
	}
	flags := map[string]any{}
	if flagDataDir != "" {
		flags["storage.data_dir"] = flagDataDir
	}
	if flagVerbose {
		flags["logging.level"] = "debug"
	}
	for k, v := range overrides {
		flags[k] = v
	}
	return config.Load(config.LoadOptions{
		ProjectDir:    project,
		ConfigPath:    flagConfig,
		FlagOverrides: flags,
	})
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "config file path (replaces ./.naina/config.toml)")
	rootCmd.PersistentFlags().StringVarP(&flagOutput, "output", "o", "text", "output format: text, json, yaml (env: NAINA_OUTPUT_FORMAT)")
	rootCmd.PersistentFlags().BoolVarP(&flagJSON, "json", "j", false, "shorthand for --output=json")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().StringVar(&flagDataDir, "data-dir", "", "data directory for transcripts and the database")
	rootCmd.PersistentFlags().StringVarP(&flagProject, "project", "C", "", "project directory")

	rootCmd.AddCommand(versionCmd)
}
