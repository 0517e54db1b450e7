package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/imgajeed76/sqlgit/internal/ui/styles"
)

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show storage statistics",
		Args:  cobra.NoArgs,
		RunE:  runStats,
	}
}

func runStats(cmd *cobra.Command, args []string) error {
	r, err := openRepo(cmd.Context(), cmd)
	if err != nil {
		return err
	}
	defer r.Close()

	st, err := r.Objects().Stats(cmd.Context())
	if err != nil {
		return err
	}

	fmt.Println(styles.Bold.Render("Repository: ") + r.Path())
	fmt.Printf("  compression:     %s\n", r.Compression())
	fmt.Printf("  objects:         %d (%d inline, %d chunked)\n",
		st.Objects, st.InlineObjects, st.ChunkedBlobs)
	fmt.Printf("  chunks:          %d unique, %d referenced\n", st.Chunks, st.ChunkRefs)
	if st.ChunkRefs > 0 && st.Chunks > 0 {
		saved := st.ChunkRefs - st.Chunks
		fmt.Printf("  dedup:           %d chunk references shared (%.1f%%)\n",
			saved, 100*float64(saved)/float64(st.ChunkRefs))
	}
	fmt.Printf("  raw bytes:       %d\n", st.TotalRawBytes)
	fmt.Printf("  stored bytes:    %d\n", st.StoredBytes)
	fmt.Printf("  refs:            %d\n", st.Refs)
	fmt.Printf("  reflog entries:  %d\n", st.ReflogEntries)
	return nil
}
