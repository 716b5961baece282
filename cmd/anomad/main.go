package main

import (
	"os"
	"path/filepath"

	cmd "github.com/Mukzid/anoma/cmd/anomad/commands"
	cfg "github.com/Mukzid/anoma/config"
	"github.com/Mukzid/anoma/libs/cli"
	nm "github.com/Mukzid/anoma/node"
)

func main() {
	rootCmd := cmd.RootCmd
	rootCmd.AddCommand(
		cmd.InitFilesCmd,
		cmd.ResetAllCmd,
		cmd.ShowNodeIDCmd,
		cmd.VersionCmd,
	)

	// Users wishing to use an external database, an alternative execution
	// engine or a preloaded coordinator should construct their own node
	// provider around node.NewNode and node.WithMempoolOptions.
	nodeFunc := nm.DefaultNewNode

	rootCmd.AddCommand(cmd.NewRunNodeCmd(nodeFunc))

	baseCmd := cli.PrepareBaseCmd(rootCmd, "ANOMA",
		os.ExpandEnv(filepath.Join("$HOME", cfg.DefaultAnomaDir)))
	if err := baseCmd.Execute(); err != nil {
		panic(err)
	}
}
