package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	tmos "github.com/Mukzid/anoma/libs/os"
	nm "github.com/Mukzid/anoma/node"
)

// AddNodeFlags exposes some common configuration options on the command
// line. These are exposed for convenience of commands embedding a node.
func AddNodeFlags(cmd *cobra.Command) {
	cmd.Flags().String("node_id", config.NodeID, "node name, scopes events and committed state")
	cmd.Flags().String("db_backend", config.DBBackend, "database backend: goleveldb | badgerdb | memdb")
	cmd.Flags().String("db_dir", config.DBPath, "database directory")
	cmd.Flags().Uint64("initial_round", config.InitialRound,
		"round to start committing at when the commit store is empty")
	cmd.Flags().Int("executor.workers", config.Executor.Workers,
		"number of workers running transaction code concurrently")
	cmd.Flags().Bool("instrumentation.prometheus", config.Instrumentation.Prometheus,
		"serve prometheus metrics")
	cmd.Flags().String("instrumentation.prometheus_listen_addr", config.Instrumentation.PrometheusListenAddr,
		"prometheus metrics listen address")
}

// NewRunNodeCmd returns the command that allows the CLI to start a node. It
// can be used with a custom node provider, e.g. one seeding the coordinator
// with recovered transactions.
func NewRunNodeCmd(nodeProvider nm.Provider) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "start",
		Aliases: []string{"node", "run"},
		Short:   "Run the anoma node",
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := nodeProvider(config, logger)
			if err != nil {
				return fmt.Errorf("failed to create node: %w", err)
			}

			if err := n.Start(); err != nil {
				return fmt.Errorf("failed to start node: %w", err)
			}

			logger.Info("Started node", "node_id", n.NodeID())

			// Stop upon receiving SIGTERM or CTRL-C.
			tmos.TrapSignal(logger, func() {
				if n.IsRunning() {
					if err := n.Stop(); err != nil {
						logger.Error("failed to stop the node", "err", err)
					}
				}
			})

			// Run forever.
			select {}
		},
	}

	AddNodeFlags(cmd)
	return cmd
}
