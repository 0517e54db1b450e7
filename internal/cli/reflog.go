package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/imgajeed76/sqlgit/internal/ui/styles"
)

func newReflogCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reflog <ref>",
		Short: "Show the mutation log of a ref",
		Args:  cobra.ExactArgs(1),
		RunE:  runReflog,
	}
}

func runReflog(cmd *cobra.Command, args []string) error {
	r, err := openRepo(cmd.Context(), cmd)
	if err != nil {
		return err
	}
	defer r.Close()

	entries, err := r.Refs().LogEntries(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	for _, e := range entries {
		when := time.Unix(e.Timestamp, 0).UTC().Format(time.RFC3339)
		fmt.Printf("%s %s %s %s %s %s\n",
			styles.Hash(string(e.OldValue)),
			styles.SymbolArrow,
			styles.Hash(string(e.NewValue)),
			styles.Dim(when),
			e.Committer,
			e.Message)
	}
	return nil
}
