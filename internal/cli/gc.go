package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/imgajeed76/sqlgit/internal/ui/styles"
)

func newGCChunksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "gc-chunks",
		Short: "Delete chunks no object references",
		Long: `Replacing an object can strand its old chunks. This scans every
chunk reference list and deletes the chunks nothing points at. The
engine never does this on its own.`,
		Args: cobra.NoArgs,
		RunE: runGCChunks,
	}
}

func runGCChunks(cmd *cobra.Command, args []string) error {
	r, err := openRepo(cmd.Context(), cmd)
	if err != nil {
		return err
	}
	defer r.Close()

	deleted, err := r.SweepChunks(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Println(styles.SuccessMsg(fmt.Sprintf("Deleted %d orphaned chunks", deleted)))
	return nil
}
