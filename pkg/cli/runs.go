package cli

import (
	"context"

	"github.com/spf13/cobra"
)

var (
	runsAddr  string
	runsToken string
	runsPoll  string
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List runs tracked by a running daemon",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		if err := runRuns(cmd.Context()); err != nil {
			exitError(err)
		}
	},
}

func init() {
	runsCmd.Flags().StringVar(&runsAddr, "addr", getEnv("RUNWATCH_ADDR", defaultDaemonAddr), "Daemon HTTP address")
	runsCmd.Flags().StringVar(&runsToken, "token", getEnv("RUNWATCH_TOKEN", ""), "Daemon auth token")
	runsCmd.Flags().StringVar(&runsPoll, "poll", "", "Poll this run now before listing")
}

func runRuns(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	client, err := NewClient(runsAddr, runsToken)
	if err != nil {
		return err
	}

	if runsPoll != "" {
		if _, err := client.PollRun(ctx, runsPoll); err != nil {
			return err
		}
	}

	runs, err := client.ListRuns(ctx)
	if err != nil {
		return err
	}

	snapshots := make([]RunSnapshot, len(runs))
	for i, r := range runs {
		snapshots[i] = RunSnapshot{Name: r.Name, RunState: r.RunState}
	}

	if len(snapshots) == 0 && !IsStructuredOutput() {
		PrintInfo("No runs tracked")
		PrintHint("Add a root under watch.roots in the daemon config")
		return nil
	}
	printSnapshots(snapshots)
	return nil
}
