package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/imgajeed76/sqlgit/internal/object"
	"github.com/imgajeed76/sqlgit/internal/repo"
	"github.com/imgajeed76/sqlgit/internal/util"
)

func dbPath(cmd *cobra.Command) string {
	path, _ := cmd.Flags().GetString("db")
	return path
}

// openRepo opens the repository named by --db, mapping an
// uninitialized database to a friendly structured error.
func openRepo(ctx context.Context, cmd *cobra.Command) (*repo.Repository, error) {
	path := dbPath(cmd)
	r, err := repo.Open(ctx, path)
	if repo.IsNotExist(err) {
		return nil, util.NotARepoError(path)
	}
	return r, err
}

func parseIDArg(arg string) (object.ID, error) {
	return object.ParseID(arg)
}
