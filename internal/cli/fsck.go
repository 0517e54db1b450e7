package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/imgajeed76/sqlgit/internal/object"
	"github.com/imgajeed76/sqlgit/internal/ui/styles"
)

func newFsckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fsck",
		Short: "Verify the integrity of every stored object",
		Long: `Reassemble every object and check that its content hashes back to
its ID. Catches corrupted chunks, broken reference lists and
decompression failures.`,
		Args: cobra.NoArgs,
		RunE: runFsck,
	}
}

func runFsck(cmd *cobra.Command, args []string) error {
	r, err := openRepo(cmd.Context(), cmd)
	if err != nil {
		return err
	}
	defer r.Close()

	var checked, broken int
	for id, err := range r.Objects().IterIDs(cmd.Context()) {
		if err != nil {
			return err
		}
		checked++
		typ, raw, err := r.Objects().GetRaw(cmd.Context(), id)
		if err != nil {
			fmt.Println(styles.ErrorMsg(fmt.Sprintf("%s: %v", id.Hex(), err)))
			broken++
			continue
		}
		got := (&object.Object{Type: typ, Data: raw}).ID()
		if got != id {
			fmt.Println(styles.ErrorMsg(fmt.Sprintf("%s: content hashes to %s", id.Hex(), got.Hex())))
			broken++
		}
	}

	if broken > 0 {
		return fmt.Errorf("fsck: %d of %d objects are broken", broken, checked)
	}
	fmt.Println(styles.SuccessMsg(fmt.Sprintf("All %d objects verified", checked)))
	return nil
}
