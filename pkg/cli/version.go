package cli

import (
	"runtime"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		info := map[string]string{
			"version": Version,
			"commit":  Commit,
			"go":      runtime.Version(),
		}
		if PrintStructured(info) {
			return
		}
		PrintKeyValue("Version", Version)
		PrintKeyValue("Commit", Commit)
		PrintKeyValue("Go", runtime.Version())
	},
}
