package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/imgajeed76/sqlgit/internal/codec"
	"github.com/imgajeed76/sqlgit/internal/config"
	"github.com/imgajeed76/sqlgit/internal/repo"
	"github.com/imgajeed76/sqlgit/internal/ui/styles"
)

func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a new bare repository database",
		Long: `Create a new bare repository in the database file named by --db.

Examples:
  sqlgit --db project.db init
  sqlgit --db project.db init --compression zstd`,
		Args: cobra.NoArgs,
		RunE: runInit,
	}

	cmd.Flags().String("compression", "", "Compression for new writes: none, zlib or zstd (default from global config)")

	return cmd
}

func runInit(cmd *cobra.Command, args []string) error {
	methodName, _ := cmd.Flags().GetString("compression")
	if methodName == "" {
		cfg, err := config.LoadGlobal()
		if err != nil {
			return err
		}
		methodName = cfg.Init.Compression
	}
	method, err := codec.ParseMethod(methodName)
	if err != nil {
		return err
	}

	path := dbPath(cmd)
	r, err := repo.InitBare(cmd.Context(), path, method)
	if err != nil {
		return err
	}
	defer r.Close()

	fmt.Println(styles.SuccessMsg(fmt.Sprintf("Initialized bare repository in %s (compression: %s)", path, method)))
	return nil
}
