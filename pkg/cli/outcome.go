package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/beam-cloud/runwatch/pkg/completion"
	"github.com/beam-cloud/runwatch/pkg/rundir"
	"github.com/beam-cloud/runwatch/pkg/types"
)

var outcomeVerify bool

var outcomeCmd = &cobra.Command{
	Use:   "outcome <run-dir|completion-file>",
	Short: "Show how a run ended",
	Long: `Parse a run's completion status file and print the outcome it records.

With --verify the argument must be a run directory. The command then fails
unless the run has been copied in full and, if a completion status file
exists, it records CompletedAsPlanned.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if outcomeVerify {
			if err := verifyOutcome(args[0]); err != nil {
				exitError(err)
			}
			return
		}
		status, err := readOutcome(args[0])
		if err != nil {
			exitError(err)
		}
		printOutcome(status)
	},
}

func init() {
	outcomeCmd.Flags().BoolVar(&outcomeVerify, "verify", false, "Fail unless the run finished as planned and was fully copied")
}

// verifyOutcome checks that a run directory is complete and successful
func verifyOutcome(root string) error {
	layout, err := loadLayout()
	if err != nil {
		return err
	}
	if err := rundir.VerifyCompleted(rundir.NewProbe(root, layout)); err != nil {
		return err
	}

	if PrintStructured(map[string]any{"root": root, "completed": true}) {
		return nil
	}
	PrintSuccess(types.RunName(root) + " completed as planned")
	return nil
}

// readOutcome accepts either a run directory or the completion file itself
func readOutcome(path string) (types.CompletionStatus, error) {
	info, err := os.Stat(path)
	if err != nil {
		return types.CompletionStatus{}, err
	}
	if !info.IsDir() {
		return completion.ParseFile(path)
	}

	layout, err := loadLayout()
	if err != nil {
		return types.CompletionStatus{}, err
	}
	file, ok := rundir.NewProbe(path, layout).CompletionFilePath()
	if !ok {
		return types.CompletionStatus{}, fmt.Errorf("%s: %w", filepath.Join(path, layout.CompletionFile), os.ErrNotExist)
	}
	return completion.ParseFile(file)
}

func printOutcome(status types.CompletionStatus) {
	if PrintStructured(status) {
		return
	}

	phase := status.Phase()
	PrintNewline()
	PrintKeyValue("Run", status.RunID)
	PrintKeyValue("Status", status.Code())
	PrintKeyValue("Phase", PhaseStyle(phase).Render(phase.String()))
	if status.Message != "" {
		PrintKeyValue("Message", status.Message)
	}
	if status.Status == types.CompletionUnrecognized {
		PrintHint("Unrecognized completion status, treated as failed")
	}
	PrintNewline()
}
