package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/beam-cloud/runwatch/pkg/runstate"
	"github.com/beam-cloud/runwatch/pkg/types"
)

var (
	pollCount    int
	pollInterval time.Duration
)

var pollCmd = &cobra.Command{
	Use:   "poll <run-dir>...",
	Short: "Poll run directories and print their state",
	Long: `Poll one or more run directories and print a snapshot of each after every
round. Stops after --count rounds or as soon as every run has finished.`,
	Example: `  runwatch poll /data/runs/20231231_foo_ABCXYZ
  runwatch poll --count 60 --interval 30s /data/runs/*`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := runPoll(args, pollCount, pollInterval); err != nil {
			exitError(err)
		}
	},
}

func init() {
	pollCmd.Flags().IntVarP(&pollCount, "count", "n", 1, "Number of polling rounds")
	pollCmd.Flags().DurationVarP(&pollInterval, "interval", "i", time.Second, "Delay between rounds")
}

// RunSnapshot is one run's state as printed by the CLI
type RunSnapshot struct {
	Name           string `json:"name" yaml:"name"`
	types.RunState `yaml:",inline"`
}

func runPoll(roots []string, count int, interval time.Duration) error {
	layout, err := loadLayout()
	if err != nil {
		return err
	}

	machines := make([]*runstate.Machine, len(roots))
	for i, root := range roots {
		machines[i] = runstate.NewMachine(root, runstate.WithLayout(layout))
	}

	for round := 1; count <= 0 || round <= count; round++ {
		if round > 1 {
			time.Sleep(interval)
		}

		snapshots := make([]RunSnapshot, len(machines))
		done := true
		for i, m := range machines {
			state := m.Poll()
			snapshots[i] = RunSnapshot{Name: state.Name(), RunState: state}
			done = done && state.Phase.IsTerminal()
		}

		printSnapshots(snapshots)
		if done {
			break
		}
	}
	return nil
}

func printSnapshots(snapshots []RunSnapshot) {
	if PrintStructured(snapshots) {
		return
	}

	table := NewTable("NAME", "PHASE", "AVAILABLE", "SINCE", "STATUS")
	for _, s := range snapshots {
		status := ""
		if s.Completion != nil {
			status = s.Completion.Code()
		}
		table.AddRow(s.Name, PhaseStyle(s.Phase).Render(s.Phase.String()), FormatBool(s.Available), FormatRelativeTime(s.Since), status)
	}
	PrintNewline()
	table.Print()
}
