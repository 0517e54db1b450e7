package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newCatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cat <sha>",
		Short: "Print an object's content, type or size",
		Long: `Print the raw content of an object, like git cat-file.

Examples:
  sqlgit cat 8ab686eafeb1f44702738c8b0f24f2567c36da6d
  sqlgit cat -t 8ab686ea...   # type only
  sqlgit cat -s 8ab686ea...   # size only`,
		Args: cobra.ExactArgs(1),
		RunE: runCat,
	}

	cmd.Flags().BoolP("type", "t", false, "Show the object type instead of its content")
	cmd.Flags().BoolP("size", "s", false, "Show the object size instead of its content")

	return cmd
}

func runCat(cmd *cobra.Command, args []string) error {
	id, err := parseIDArg(args[0])
	if err != nil {
		return err
	}

	r, err := openRepo(cmd.Context(), cmd)
	if err != nil {
		return err
	}
	defer r.Close()

	showSize, _ := cmd.Flags().GetBool("size")
	if showSize {
		size, err := r.Objects().GetSize(cmd.Context(), id)
		if err != nil {
			return err
		}
		fmt.Println(size)
		return nil
	}

	typ, raw, err := r.Objects().GetRaw(cmd.Context(), id)
	if err != nil {
		return err
	}

	showType, _ := cmd.Flags().GetBool("type")
	if showType {
		fmt.Println(typ)
		return nil
	}

	_, err = os.Stdout.Write(raw)
	return err
}
