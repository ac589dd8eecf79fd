package cli

import (
	"fmt"
	"maps"
	"slices"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/beam-cloud/runwatch/pkg/rundir"
	"github.com/beam-cloud/runwatch/pkg/types"
)

var lanesKind string

var lanesCmd = &cobra.Command{
	Use:   "lanes <run-dir>",
	Short: "Show lanes, cycles and data files in a run",
	Long: `Summarize the base call output of a run per lane, or list the entries of one
kind with --kind (lanes, cycles, blocks, filters).`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := runLanes(args[0], lanesKind); err != nil {
			exitError(err)
		}
	},
}

func init() {
	lanesCmd.Flags().StringVarP(&lanesKind, "kind", "k", "", "List entries of one kind instead of a summary")
}

func runLanes(root, kind string) error {
	layout, err := loadLayout()
	if err != nil {
		return err
	}
	probe := rundir.NewProbe(root, layout)
	if !probe.IsAvailable() {
		return fmt.Errorf("run directory %s is not available", root)
	}

	if kind != "" {
		k, ok := types.ParseSubstructureKind(kind)
		if !ok {
			return fmt.Errorf("unknown kind %q", kind)
		}
		entries := slices.Collect(probe.Substructure(k))
		if entries == nil {
			entries = []string{}
		}
		if PrintStructured(entries) {
			return nil
		}
		for _, e := range entries {
			fmt.Fprintln(stdout, e)
		}
		return nil
	}

	summary := rundir.Summarize(probe)
	if PrintStructured(summary) {
		return nil
	}

	PrintHeader(types.RunName(root))
	for _, m := range types.MarkerKinds {
		PrintKeyValue(string(m), FormatBool(summary.Markers[m]))
	}
	for _, name := range slices.Sorted(maps.Keys(summary.Files)) {
		PrintKeyValue(name, summary.Files[name])
	}
	PrintNewline()

	if len(summary.Lanes) == 0 {
		PrintInfo("No lanes written yet")
		return nil
	}

	table := NewTable("LANE", "CYCLES", "LAST", "BLOCKS", "FILTERS")
	for _, l := range summary.Lanes {
		table.AddRow(l.Lane, strconv.Itoa(l.Cycles), strconv.Itoa(l.LastCycle), strconv.Itoa(l.DataBlocks), strconv.Itoa(l.Filters))
	}
	table.Print()
	return nil
}
