package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/imgajeed76/sqlgit/internal/ui/styles"
)

func newTrainDictCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "train-dict",
		Short: "Train zstd dictionaries from the stored data",
		Long: `Train per-type zstd dictionaries (commits, trees, chunks) from the
data already in the repository and re-compress everything under them.
Types with too few samples are skipped. Most effective once the
repository holds a representative amount of history.`,
		Args: cobra.NoArgs,
		RunE: runTrainDict,
	}
}

func runTrainDict(cmd *cobra.Command, args []string) error {
	r, err := openRepo(cmd.Context(), cmd)
	if err != nil {
		return err
	}
	defer r.Close()

	if err := r.TrainDictionaries(cmd.Context()); err != nil {
		return err
	}
	fmt.Println(styles.SuccessMsg("Dictionaries trained and store recompressed"))
	return nil
}
