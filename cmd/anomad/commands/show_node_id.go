package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// ShowNodeIDCmd dumps the configured node id to the standard output.
var ShowNodeIDCmd = &cobra.Command{
	Use:     "show-node-id",
	Aliases: []string{"show_node_id"},
	Short:   "Show this node's ID",
	RunE:    showNodeID,
	PreRun:  deprecateSnakeCase,
}

func showNodeID(cmd *cobra.Command, args []string) error {
	fmt.Println(config.NodeID)
	return nil
}
