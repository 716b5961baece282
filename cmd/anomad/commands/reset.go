package commands

import (
	"os"

	"github.com/spf13/cobra"

	cfg "github.com/Mukzid/anoma/config"
	"github.com/Mukzid/anoma/libs/log"
	tmos "github.com/Mukzid/anoma/libs/os"
)

// ResetAllCmd removes the database of this node, bringing it back to the
// configured initial round.
var ResetAllCmd = &cobra.Command{
	Use:     "unsafe-reset-all",
	Aliases: []string{"unsafe_reset_all"},
	Short:   "(unsafe) Remove all committed state and executor scratch data",
	RunE:    resetAll,
	PreRun:  deprecateSnakeCase,
}

func resetAll(cmd *cobra.Command, args []string) error {
	return ResetAll(config.DBDir(), logger)
}

// ResetAll removes the data directory and recreates it empty. Exported so
// other CLI tools can use it.
func ResetAll(dbDir string, logger log.Logger) error {
	if err := os.RemoveAll(dbDir); err != nil {
		logger.Error("failed to remove data directory", "dir", dbDir, "err", err)
		return err
	}
	logger.Info("Removed all committed state", "dir", dbDir)
	return tmos.EnsureDir(dbDir, cfg.DefaultDirPerm)
}
