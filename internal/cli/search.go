package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/imgajeed76/sqlgit/internal/db"
	"github.com/imgajeed76/sqlgit/internal/object"
	"github.com/imgajeed76/sqlgit/internal/ui/styles"
)

func newSearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search blob contents",
		Long: `Search the raw content of every stored blob, inline or chunked,
compressed or not.

By default the query is a byte substring. With --words the query uses
full-text search over the chunk index when one exists (see 'sqlgit
fts'), supporting AND/OR/NOT, "phrases" and prefix*.

Examples:
  sqlgit search "TODO"
  sqlgit search --words "alpha AND beta"
  sqlgit search --words --ranked --limit 10 "needle"`,
		Args: cobra.ExactArgs(1),
		RunE: runSearch,
	}

	cmd.Flags().Bool("words", false, "Word search via the full-text index (falls back to substring)")
	cmd.Flags().Bool("ranked", false, "Skip sorting results by ID (full-text only; results are not ordered by relevance)")
	cmd.Flags().Bool("quote", false, "Treat AND/OR/NOT as literal words")
	cmd.Flags().IntP("limit", "n", 0, "Maximum number of results (0 = all)")

	return cmd
}

func runSearch(cmd *cobra.Command, args []string) error {
	r, err := openRepo(cmd.Context(), cmd)
	if err != nil {
		return err
	}
	defer r.Close()

	words, _ := cmd.Flags().GetBool("words")
	limit, _ := cmd.Flags().GetInt("limit")

	var ids []object.ID
	if words {
		ranked, _ := cmd.Flags().GetBool("ranked")
		quote, _ := cmd.Flags().GetBool("quote")
		ids, err = r.Objects().SearchText(cmd.Context(), args[0], &db.SearchOptions{
			Ranked: ranked,
			Limit:  limit,
			Quote:  quote,
		})
		if err != nil {
			return err
		}
	} else {
		ids, err = r.Objects().SearchContent(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if limit > 0 && len(ids) > limit {
			ids = ids[:limit]
		}
	}

	if len(ids) == 0 {
		fmt.Println(styles.Dim("no matches"))
		return nil
	}
	for _, id := range ids {
		fmt.Println(id.Hex())
	}
	return nil
}
