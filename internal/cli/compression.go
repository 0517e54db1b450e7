package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/imgajeed76/sqlgit/internal/codec"
	"github.com/imgajeed76/sqlgit/internal/ui/styles"
)

func newCompressionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "compression [none|zlib|zstd]",
		Short: "Show or set the compression method for new writes",
		Long: `Without an argument, print the active compression method. With one,
switch the method for future writes. Existing data keeps its recorded
method and stays readable; nothing is rewritten.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runCompression,
	}
}

func runCompression(cmd *cobra.Command, args []string) error {
	r, err := openRepo(cmd.Context(), cmd)
	if err != nil {
		return err
	}
	defer r.Close()

	if len(args) == 0 {
		fmt.Println(r.Compression())
		return nil
	}

	method, err := codec.ParseMethod(args[0])
	if err != nil {
		return err
	}
	if err := r.SetCompression(cmd.Context(), method); err != nil {
		return err
	}
	fmt.Println(styles.SuccessMsg(fmt.Sprintf("Compression set to %s for new writes", method)))
	return nil
}
