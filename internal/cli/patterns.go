package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/mindfulai/naina/internal/crisis"
)

var (
	flagPatternTier       string
	flagPatternFormat     string
	flagPatternOutputFile string
)

func init() {
	patternsListCmd.Flags().StringVarP(&flagPatternTier, "tier", "T", "", "only this tier (critical, severe, elevated)")

	patternsExportCmd.Flags().StringVarP(&flagPatternFormat, "format", "f", "json", "export format: json, yaml")
	patternsExportCmd.Flags().StringVar(&flagPatternOutputFile, "file", "", "output file (default: stdout)")

	patternsCmd.AddCommand(patternsListCmd)
	patternsCmd.AddCommand(patternsTestCmd)
	patternsCmd.AddCommand(patternsExportCmd)
	patternsCmd.AddCommand(patternsVersionCmd)

	rootCmd.AddCommand(patternsCmd)
}

var patternsCmd = &cobra.Command{
	Use:   "patterns",
	Short: "Inspect the crisis phrase library",
	Long: `Inspect the phrases used to detect crisis language.

Phrases are matched case-insensitively on word boundaries and scanned in
order: CRITICAL, SEVERE, ELEVATED. Extra phrases come from the [crisis]
section of the config file; a phrase listed in more than one tier is kept
only in the highest.`,
}

var patternsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List phrases grouped by tier",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(nil)
		if err != nil {
			return err
		}
		lib := newLibrary(cfg)

		tiers := crisis.Tiers
		if flagPatternTier != "" {
			tier, ok := crisis.ParseTier(flagPatternTier)
			if !ok {
				return fmt.Errorf("invalid tier: %s (must be critical, severe or elevated)", flagPatternTier)
			}
			tiers = []crisis.Tier{tier}
		}

		result := make(map[string][]patternJSON, len(tiers))
		for _, tier := range tiers {
			list := lib.Patterns(tier)
			plist := make([]patternJSON, 0, len(list))
			for _, p := range list {
				plist = append(plist, patternJSON{Phrase: p.Phrase, Source: p.Source})
			}
			result[tier.String()] = plist
		}

		if isStructured() {
			return newWriter(cmd).Write(result)
		}

		w := cmd.OutOrStdout()
		for _, tier := range tiers {
			list := result[tier.String()]
			fmt.Fprintf(w, "\n%s (%d phrases):\n", strings.ToUpper(tier.String()), len(list))
			for _, p := range list {
				if p.Source != "builtin" {
					fmt.Fprintf(w, "  %s  # %s\n", p.Phrase, p.Source)
					continue
				}
				fmt.Fprintf(w, "  %s\n", p.Phrase)
			}
		}
		fmt.Fprintln(w)
		return nil
	},
}

var patternsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the phrase library for external tools",
	Long: `Export every tier with its rule, phrases and a content hash.

Examples:
  naina patterns export                       # JSON to stdout
  naina patterns export -f yaml               # YAML to stdout
  naina patterns export --file patterns.json  # JSON to file`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(nil)
		if err != nil {
			return err
		}
		lib := newLibrary(cfg)

		var content []byte
		switch strings.ToLower(flagPatternFormat) {
		case "json":
			s, err := lib.ExportJSON()
			if err != nil {
				return fmt.Errorf("failed to export JSON: %w", err)
			}
			content = []byte(s + "\n")
		case "yaml", "yml":
			// Round-trip through JSON so YAML keys match the JSON field names.
			raw, err := json.Marshal(lib.Export())
			if err != nil {
				return fmt.Errorf("failed to export: %w", err)
			}
			var generic any
			if err := json.Unmarshal(raw, &generic); err != nil {
				return fmt.Errorf("failed to export: %w", err)
			}
			content, err = yaml.Marshal(generic)
			if err != nil {
				return fmt.Errorf("failed to export YAML: %w", err)
			}
		default:
			return fmt.Errorf("unknown format: %s (use json or yaml)", flagPatternFormat)
		}

		if flagPatternOutputFile != "" {
			if err := os.WriteFile(flagPatternOutputFile, content, 0o644); err != nil {
				return fmt.Errorf("failed to write file: %w", err)
			}
			return newWriter(cmd).Write(map[string]any{
				"status": "exported",
				"format": flagPatternFormat,
				"file":   flagPatternOutputFile,
				"hash":   lib.ComputeHash(),
				"count":  lib.Len(),
			})
		}

		_, err = cmd.OutOrStdout().Write(content)
		return err
	},
}

var patternsVersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show the phrase library hash for change detection",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(nil)
		if err != nil {
			return err
		}
		lib := newLibrary(cfg)
		export := lib.Export()

		if isStructured() {
			return newWriter(cmd).Write(map[string]any{
				"version":     export.Version,
				"sha256":      export.SHA256,
				"count":       export.Metadata.PatternCount,
				"tier_counts": export.Metadata.TierCounts,
				"duplicates":  lib.Duplicates(),
			})
		}

		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "Version: %s\n", export.Version)
		fmt.Fprintf(w, "SHA256:  %s\n", export.SHA256)
		fmt.Fprintf(w, "Phrases: %d\n", export.Metadata.PatternCount)
		for _, tier := range crisis.Tiers {
			fmt.Fprintf(w, "  %-9s %d\n", tier.String()+":", export.Metadata.TierCounts[tier.String()])
		}
		if dups := lib.Duplicates(); len(dups) > 0 {
			fmt.Fprintf(w, "Duplicates dropped: %s\n", strings.Join(dups, ", "))
		}
		return nil
	},
}

type patternJSON struct {
	Phrase string `json:"phrase"`
	Source string `json:"source"`
}
