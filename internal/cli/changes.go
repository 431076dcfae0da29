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

var showDiff bool

// changesCmd represents the changes command
var changesCmd = &cobra.Command{
	Use:   "changes",
	Short: "List changes awaiting review",
	Args:  cobra.NoArgs,
	RunE:  runChanges,
}

func init() {
	rootCmd.AddCommand(changesCmd)
	changesCmd.Flags().BoolVar(&showDiff, "diff", false, "print each change's unified diff")
}

func runChanges(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	s, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	changes, err := s.PendingChanges(context.Background())
	if err != nil {
		return err
	}
	if len(changes) == 0 {
		fmt.Println("No changes pending review.")
		return nil
	}

	return printChanges(os.Stdout, changes, showDiff)
}

func printChanges(out io.Writer, changes []model.PendingChange, withDiff bool) error {
	if withDiff {
		for _, c := range changes {
			if _, err := fmt.Fprintf(out, "== %s  %s (%s)  %s  %s\n%s\n\n",
				c.ID, c.Source.Label(), jurisdiction(c.Source), c.Severity, detected(c), c.DiffText); err != nil {
				return err
			}
		}
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tSOURCE\tJURISDICTION\tSEVERITY\tDETECTED")
	for _, c := range changes {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", c.ID, c.Source.Label(), jurisdiction(c.Source), c.Severity, detected(c))
	}
	return w.Flush()
}

func jurisdiction(src model.Source) string {
	if src.Jurisdiction == "" {
		return "-"
	}
	return src.Jurisdiction
}

func detected(c model.PendingChange) string {
	return c.DetectedAt.Local().Format("2006-01-02 15:04")
}
