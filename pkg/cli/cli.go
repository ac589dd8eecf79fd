package cli

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/beam-cloud/runwatch/pkg/common"
	"github.com/beam-cloud/runwatch/pkg/rundir"
	"github.com/beam-cloud/runwatch/pkg/types"
)

// Build information (injected at compile time via ldflags)
var (
	Version = "dev"
	Commit  = "none"
)

const defaultDaemonAddr = "http://localhost:8740"

var (
	configPath string
	jsonOutput bool
	yamlOutput bool
)

// Custom help template with styled output
var helpTemplate = `{{with .Long}}{{. | trim}}

{{end}}{{if .HasAvailableSubCommands}}` + `{{.CommandPath}}` + ` ` + `<command>` + `

{{end}}{{if .HasAvailableSubCommands}}Commands:
{{range .Commands}}{{if .IsAvailableCommand}}  {{rpad .Name .NamePadding }}  {{.Short}}
{{end}}{{end}}{{end}}{{if .HasAvailableLocalFlags}}
Flags:
{{.LocalFlags.FlagUsages | trimTrailingWhitespaces}}{{end}}{{if .HasAvailableInheritedFlags}}

Global Flags:
{{.InheritedFlags.FlagUsages | trimTrailingWhitespaces}}{{end}}{{if .HasExample}}

Examples:
{{.Example}}{{end}}
`

var rootCmd = &cobra.Command{
	Use:   "runwatch",
	Short: "Watch sequencer run directories",
	Long: lipgloss.NewStyle().Foreground(ColorPrimary).Bold(true).Render("runwatch") + ` - Watch sequencer run directories

Track run folders written by a sequencing instrument, classify them as
not started, in progress, complete or failed, and inspect their contents.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if jsonOutput && yamlOutput {
			return fmt.Errorf("--json and --yaml are mutually exclusive")
		}
		SetJSONOutput(jsonOutput)
		SetYAMLOutput(yamlOutput)

		if configPath != "" {
			return os.Setenv(common.ConfigPathEnv, configPath)
		}
		return nil
	},
}

func init() {
	rootCmd.SetHelpTemplate(helpTemplate)
	rootCmd.SetVersionTemplate(fmt.Sprintf("  %s version %s\n", BrandStyle.Render("runwatch"), Version))

	rootCmd.PersistentFlags().StringVar(&configPath, "config", getEnv(common.ConfigPathEnv, ""), "Config file (yaml or json)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVar(&yamlOutput, "yaml", false, "Output in YAML format")

	rootCmd.AddCommand(pollCmd)
	rootCmd.AddCommand(outcomeCmd)
	rootCmd.AddCommand(lanesCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the CLI
func Execute() error {
	return rootCmd.Execute()
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// loadConfig reads the same configuration the daemon uses
func loadConfig() (types.AppConfig, error) {
	cm, err := common.NewConfigManager[types.AppConfig]()
	if err != nil {
		return types.AppConfig{}, err
	}
	return cm.GetConfig(), nil
}

func loadLayout() (rundir.Layout, error) {
	cfg, err := loadConfig()
	if err != nil {
		return rundir.Layout{}, err
	}
	return rundir.LayoutFromConfig(cfg.Layout), nil
}

func exitError(err error) {
	PrintFormattedError("Command failed", err)
	os.Exit(1)
}
