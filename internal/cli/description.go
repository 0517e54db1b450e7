package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/imgajeed76/sqlgit/internal/ui/styles"
)

func newDescriptionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "description [text]",
		Short: "Show or set the repository description",
		Args:  cobra.ArbitraryArgs,
		RunE:  runDescription,
	}
}

func runDescription(cmd *cobra.Command, args []string) error {
	r, err := openRepo(cmd.Context(), cmd)
	if err != nil {
		return err
	}
	defer r.Close()

	if len(args) == 0 {
		desc, err := r.GetDescription(cmd.Context())
		if err != nil {
			return err
		}
		if desc == nil {
			fmt.Println(styles.Dim("(no description)"))
			return nil
		}
		fmt.Println(string(desc))
		return nil
	}

	return r.SetDescription(cmd.Context(), []byte(strings.Join(args, " ")))
}
