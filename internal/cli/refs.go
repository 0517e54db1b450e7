package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/imgajeed76/sqlgit/internal/ui/styles"
)

func newRefsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refs",
		Short: "List all refs and their values",
		Args:  cobra.NoArgs,
		RunE:  runRefs,
	}
}

func runRefs(cmd *cobra.Command, args []string) error {
	r, err := openRepo(cmd.Context(), cmd)
	if err != nil {
		return err
	}
	defer r.Close()

	names, err := r.Refs().ListAll(cmd.Context())
	if err != nil {
		return err
	}

	for _, name := range names {
		value, err := r.Refs().Get(cmd.Context(), name)
		if err != nil {
			return err
		}
		fmt.Printf("%s %s\n", styles.Hash(string(value)), styles.Branch(name))
	}
	return nil
}
