package cli

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/beam-cloud/runwatch/pkg/daemon"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run the watcher daemon in the foreground",
	Long: `Start the watcher daemon with the configuration given by --config or
CONFIG_PATH. Runs until interrupted.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		d, err := daemon.NewDaemon()
		if err != nil {
			exitError(err)
		}

		PrintInfo("Watching " + CodeStyle.Render(d.Addr()))
		if err := d.Start(); err != nil {
			exitError(err)
		}
		log.Info().Msg("watcher stopped")
	},
}
