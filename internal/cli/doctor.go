package cli

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/example/ocswarm/internal/db"
)

// checkResult represents the outcome of a single check.
type checkResult struct {
	Name    string
	OK      bool
	Warn    bool
	Details string
}

// DoctorCmd returns the doctor command for environment validation.
func DoctorCmd() *cobra.Command {
	var quiet bool
	var agentCommand string

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Validate the ocswarm environment",
		Long: `Environment health check for ocswarm.

Validates:
- git binary on PATH (lane isolation and merge queue)
- tmux binary on PATH (preview hosting; optional)
- agent command on PATH (stage execution)
- ledger database can be opened and migrated

Examples:
  ocswarm doctor          # Run full health check
  ocswarm doctor --quiet  # Exit code only (0=healthy, 1=issues)`,
		RunE: func(cmd *cobra.Command, args []string) error {
			results := []checkResult{
				checkBinary("git", false),
				checkBinary("tmux", true),
				checkBinary(agentCommand, false),
				checkDatabase(),
			}

			hasErrors := false
			for _, r := range results {
				if !r.OK && !r.Warn {
					hasErrors = true
				}
			}

			if !quiet {
				fmt.Println()
				for _, r := range results {
					fmt.Printf("%-24s %s\n", r.Name, statusIcon(r))
					if !r.OK && r.Details != "" {
						fmt.Printf("  %s\n", r.Details)
					}
				}
				fmt.Println()
			}

			if hasErrors {
				os.Exit(1)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&quiet, "quiet", false, "exit code only")
	cmd.Flags().StringVar(&agentCommand, "agent", "ocswarm-agent", "agent command to check")
	return cmd
}

func statusIcon(r checkResult) string {
	switch {
	case r.OK:
		return color.New(color.FgGreen).Sprint("✓")
	case r.Warn:
		return color.New(color.FgYellow).Sprint("⚠")
	default:
		return color.New(color.FgRed).Sprint("✗")
	}
}

func checkBinary(name string, optional bool) checkResult {
	r := checkResult{Name: name}
	if _, err := exec.LookPath(name); err != nil {
		r.Warn = optional
		r.Details = fmt.Sprintf("%s not found on PATH", name)
		return r
	}
	r.OK = true
	return r
}

func checkDatabase() checkResult {
	r := checkResult{Name: "ledger database"}
	path, err := db.DefaultPath()
	if err != nil {
		r.Details = err.Error()
		return r
	}
	conn, err := db.Open(path)
	if err != nil {
		r.Details = fmt.Sprintf("cannot open %s: %v", path, err)
		return r
	}
	defer conn.Close()

	r.OK = true
	r.Name = "ledger database (" + filepath.Base(path) + ")"
	return r
}
