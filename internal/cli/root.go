// Package cli implements the modectl command line.
package cli

import (
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

// SetVersion sets the version reported by --version.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

// globalOptions are flags shared by every command.
type globalOptions struct {
	addr       string
	token      string
	jsonOutput bool
}

// NewRootCommand builds the modectl command tree.
func NewRootCommand() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:     "modectl",
		Version: version,
		Short:   "Run and control the mode orchestrator",
		Long: `modectl runs the mode orchestrator HTTP service and switches a running
instance between standard and game mode.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetVersionTemplate("{{.Version}}\n")

	root.PersistentFlags().StringVar(&opts.addr, "addr", envOr("MODE_ADDR", "http://localhost:8080"), "Address of a running orchestrator")
	root.PersistentFlags().StringVar(&opts.token, "token", os.Getenv("MODE_TOKEN"), "Bearer token for the API")
	root.PersistentFlags().BoolVar(&opts.jsonOutput, "json", false, "Output in JSON format")

	root.AddGroup(
		&cobra.Group{ID: "server", Title: "Server:"},
		&cobra.Group{ID: "control", Title: "Mode Control:"},
	)

	root.AddCommand(
		newServeCommand(),
		newStatusCommand(opts),
		newSwitchCommand(opts),
		newToggleCommand(opts),
	)
	return root
}

// Execute runs the root command.
func Execute() error {
	return NewRootCommand().Execute()
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
