package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Mukzid/anoma/version"
)

// VersionCmd ...
var VersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version info",
	Run: func(cmd *cobra.Command, args []string) {
		v := version.AnomaSemVer
		if version.GitCommitHash != "" {
			v += "-" + version.GitCommitHash
		}
		fmt.Println(v)
	},
}
