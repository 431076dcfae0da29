package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ppiankov/regwatch/internal/model"
)

// sourcesCmd represents the sources command
var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List registered sources",
	Args:  cobra.NoArgs,
	RunE:  runSources,
}

var sourcesEnableCmd = &cobra.Command{
	Use:   "enable <source-id>",
	Short: "Resume checking a source",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setSourceActive(args[0], true)
	},
}

var sourcesDisableCmd = &cobra.Command{
	Use:   "disable <source-id>",
	Short: "Stop checking a source",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setSourceActive(args[0], false)
	},
}

func init() {
	rootCmd.AddCommand(sourcesCmd)
	sourcesCmd.AddCommand(sourcesEnableCmd)
	sourcesCmd.AddCommand(sourcesDisableCmd)
}

func runSources(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	s, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	ctx := context.Background()
	sources, err := s.ListSources(ctx)
	if err != nil {
		return err
	}
	if len(sources) == 0 {
		fmt.Println("No sources registered. Add some with: regwatch seed <file>")
		return nil
	}

	results := make(map[string]string, len(sources))
	for _, src := range sources {
		attempts, err := s.RecentAttempts(ctx, src.ID, 1)
		if err != nil {
			return err
		}
		results[src.ID] = lastResult(attempts)
	}
	return printSources(os.Stdout, sources, results)
}

func printSources(out io.Writer, sources []model.Source, results map[string]string) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tNAME\tTYPE\tJURISDICTION\tACTIVE\tLAST CHECKED\tLAST RESULT")
	for _, src := range sources {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\t%s\t%s\n",
			src.ID, src.Label(), src.DocType, jurisdiction(src), src.Active, lastChecked(src), results[src.ID])
	}
	return w.Flush()
}

// lastResult summarizes the newest scrape attempt for the health column
func lastResult(attempts []model.ScrapeAttempt) string {
	if len(attempts) == 0 {
		return "-"
	}
	a := attempts[0]
	if a.Status == model.AttemptError {
		msg := []rune(a.Error)
		if len(msg) > 60 {
			msg = append(msg[:57], []rune("...")...)
		}
		return "error: " + string(msg)
	}
	if a.HasChange {
		return "changed"
	}
	return string(a.Status)
}

func lastChecked(src model.Source) string {
	if src.LastCheckedAt == nil {
		return "never"
	}
	return src.LastCheckedAt.Local().Format("2006-01-02 15:04")
}

func setSourceActive(id string, active bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	s, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	if err := s.SetActive(context.Background(), id, active); err != nil {
		return err
	}
	state := "disabled"
	if active {
		state = "enabled"
	}
	fmt.Printf("✓ Source %s %s\n", id, state)
	return nil
}
