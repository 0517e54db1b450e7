package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/imgajeed76/sqlgit/internal/config"
	"github.com/imgajeed76/sqlgit/internal/ui/styles"
	"github.com/imgajeed76/sqlgit/internal/util"
)

var (
	// Version information (set at build time)
	Version   = "dev"
	CommitSHA = "unknown"
	BuildDate = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "sqlgit",
	Short: "A bare git object store backed by a single SQLite file",
	Long: `sqlgit stores an entire bare git repository - objects, refs,
reflog, configuration - inside one SQLite database file. Large blobs
are deduplicated with content-defined chunking and optionally
compressed with zlib or zstd (including trained dictionaries).

The database file is the repository; point any command at it with
--db or the SQLGIT_DB environment variable.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	Version:       Version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// ui.no_color in the global config turns styled output off.
		if cfg, err := config.LoadGlobal(); err == nil && cfg.UI.NoColor {
			os.Setenv("SQLGIT_NO_COLOR", "1")
		}
	},
}

func init() {
	defaultDB := os.Getenv("SQLGIT_DB")
	if defaultDB == "" {
		defaultDB = "sqlgit.db"
	}
	rootCmd.PersistentFlags().String("db", defaultDB, "Path to the repository database file")

	rootCmd.AddCommand(
		newInitCmd(),
		newCatCmd(),
		newRefsCmd(),
		newReflogCmd(),
		newStatsCmd(),
		newSearchCmd(),
		newCompressionCmd(),
		newTrainDictCmd(),
		newFTSCmd(),
		newGCChunksCmd(),
		newFsckCmd(),
		newDescriptionCmd(),
	)
}

// Execute runs the CLI.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		var sgErr *util.SqlgitError
		if errors.As(err, &sgErr) {
			fmt.Fprintln(os.Stderr, sgErr.Format())
		} else {
			fmt.Fprintln(os.Stderr, styles.ErrorMsg(err.Error()))
		}
		return err
	}
	return nil
}
