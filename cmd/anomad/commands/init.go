package commands

import (
	"path/filepath"

	"github.com/spf13/cobra"

	cfg "github.com/Mukzid/anoma/config"
	tmos "github.com/Mukzid/anoma/libs/os"
)

// InitFilesCmd initializes a fresh node home directory.
var InitFilesCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize an anoma node",
	RunE:  initFiles,
}

func initFiles(cmd *cobra.Command, args []string) error {
	return initFilesWithConfig(config)
}

func initFilesWithConfig(config *cfg.Config) error {
	configFilePath := filepath.Join(config.RootDir, cfg.DefaultConfigDir, cfg.DefaultConfigFileName)
	if tmos.FileExists(configFilePath) {
		logger.Info("Found config file", "path", configFilePath)
	} else {
		cfg.WriteConfigFile(configFilePath, config)
		logger.Info("Generated config file", "path", configFilePath)
	}

	logger.Info("Initialized node", "node_id", config.NodeID, "root", config.RootDir)
	return nil
}
