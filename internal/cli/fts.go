package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/imgajeed76/sqlgit/internal/ui/styles"
)

func newFTSCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fts <on|off>",
		Short: "Enable or disable the full-text chunk index",
		Long: `Enable builds an FTS5 index over all text chunks (backfilling
existing ones) so 'search --words' uses word queries instead of a
full scan. Disable drops the index; search falls back to scanning.`,
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"on", "off"},
		RunE:      runFTS,
	}
}

func runFTS(cmd *cobra.Command, args []string) error {
	r, err := openRepo(cmd.Context(), cmd)
	if err != nil {
		return err
	}
	defer r.Close()

	switch args[0] {
	case "on":
		if err := r.EnableFTS(cmd.Context()); err != nil {
			return err
		}
		fmt.Println(styles.SuccessMsg("Full-text index enabled"))
	case "off":
		if err := r.DisableFTS(cmd.Context()); err != nil {
			return err
		}
		fmt.Println(styles.SuccessMsg("Full-text index disabled"))
	default:
		return fmt.Errorf("expected 'on' or 'off', got %q", args[0])
	}
	return nil
}
