package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/ocswarm/internal/cli"
	"github.com/example/ocswarm/internal/version"
	"github.com/example/ocswarm/internal/wire"
)

func main() {
	var dbPath string
	var agentCommand string

	rootCmd := &cobra.Command{
		Use:     "ocswarm",
		Short:   "ocswarm - multi-agent run orchestration engine",
		Version: version.String(),
		Long: `ocswarm drives orchestration runs: an orchestrator agent plans and
dispatches tasks to worker agents executing in isolated git lanes, with
policy limits, evidence gating, and a durable event ledger.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if dbPath != "" {
				wire.Options.DBPath = dbPath
			}
			if agentCommand != "" {
				wire.Options.AgentCommand = agentCommand
			}
		},
	}
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "ledger database path (default ~/.ocswarm/ocswarm.db)")
	rootCmd.PersistentFlags().StringVar(&agentCommand, "agent", "", "agent command (default ocswarm-agent)")

	rootCmd.AddCommand(cli.RunCmd())
	rootCmd.AddCommand(cli.ServeCmd())
	rootCmd.AddCommand(cli.DoctorCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
