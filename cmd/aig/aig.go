// Package aigcmder
package aigcmder

import (
	doctorcmder "github.com/aigolabs/aig/cmd/aig/doctor"
	versioncmder "github.com/aigolabs/aig/cmd/version"
	"github.com/spf13/cobra"
)

const aigLongDesc string = `aig is the persistence and telemetry layer for AI content pipelines.

Inspect the configured backends using:
  aig doctor    Check the health of every configured adapter`

const aigShortDesc string = "aig - pluggable persistence and telemetry"

func NewAigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "aig",
		Short: aigShortDesc,
		Long:  aigLongDesc,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().StringP("config", "c", "", "Directory holding config.toml")

	// Add subcommands
	cmd.AddCommand(doctorcmder.NewDoctorCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
