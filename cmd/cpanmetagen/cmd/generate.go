package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/gitpan/cpanmetagen/internal/generate"
)

var (
	delta    bool
	formats  []string
	mirror   string
	upstream string
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Build or refresh the metadata database from the local mirror",
	Long: `Visit every release archive under the mirror's authors/id tree,
extract its META.yml, and persist the normalized records.

In delta mode the existing database is reconciled first: releases whose
backing archive disappeared are pruned, and releases already known are
skipped instead of reprocessed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if mirror != "" {
			cfg.Mirror.Root = mirror
		}
		if upstream != "" {
			cfg.Mirror.Upstream = upstream
		}
		if len(formats) > 0 {
			cfg.Publish.Formats = formats
		}

		result, err := generate.New(cfg, delta, logger).Run()
		if err != nil {
			return fmt.Errorf("generation failed: %w", err)
		}

		fmt.Println()
		fmt.Printf("Generation complete!\n")
		fmt.Printf("  Releases: %d\n", result.Releases)
		if delta {
			fmt.Printf("  Skipped:  %d\n", result.Skipped)
		}
		fmt.Printf("  Commits:  %d\n", result.Commits)
		fmt.Printf("  Duration: %s\n", result.Duration.Round(time.Millisecond))
		fmt.Printf("  Database: %s\n", result.DBPath)
		for _, artifact := range result.Artifacts {
			fmt.Printf("  Artifact: %s\n", artifact)
		}
		return nil
	},
}

func init() {
	generateCmd.Flags().BoolVar(&delta, "delta", false, "incremental run: reconcile and skip known releases")
	generateCmd.Flags().StringSliceVar(&formats, "publish", nil, "artifact formats to publish (gz, bz2)")
	generateCmd.Flags().StringVar(&mirror, "mirror", "", "local mirror root (overrides config)")
	generateCmd.Flags().StringVar(&upstream, "upstream", "", "upstream mirror URL to refresh from (overrides config)")
	rootCmd.AddCommand(generateCmd)
}
