package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ppiankov/regwatch/internal/seed"
)

// seedCmd represents the seed command
var seedCmd = &cobra.Command{
	Use:   "seed <file>",
	Short: "Register sources from a YAML, TOML or JSON file",
	Long: `Seed reads a list of sources and registers every URL that is not
already known. Running it again with the same file changes nothing.

File layout (YAML shown):
  sources:
    - name: Pleasanton STR Ordinance
      url: https://example.gov/str
      source_type: html        # html (default) or pdf
      jurisdiction: pleasanton
      category: ordinance
      css_selector: "#content" # optional`,
	Args: cobra.ExactArgs(1),
	RunE: runSeed,
}

func init() {
	rootCmd.AddCommand(seedCmd)
}

func runSeed(cmd *cobra.Command, args []string) error {
	sources, err := seed.Load(args[0])
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	s, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	res, err := seed.Apply(context.Background(), s, sources)
	if err != nil {
		return err
	}

	fmt.Printf("✓ %d sources added, %d already registered\n", res.Inserted, res.Skipped)
	return nil
}
