package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Probe every catalog endpoint once and report availability",
		Long: `Runs one full probe pass over the endpoint catalog. Each endpoint URL
is requested once, paced per origin, and endpoints are partitioned into
available and unavailable lists.`,
		RunE: runCheck,
	}
}

func runCheck(cmd *cobra.Command, _ []string) error {
	a, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}

	defs := a.Registry().Snapshot()
	if len(defs) == 0 {
		cmd.Println("no endpoints registered")
		return nil
	}

	report := a.Prober().Run(cmd.Context(), defs)
	cmd.Printf("probed %d endpoints in %d rounds\n", len(defs), report.Rounds)
	cmd.Printf("available (%d): %s\n", len(report.Available), joinOrDash(report.Available))
	cmd.Printf("unavailable (%d): %s\n", len(report.Unavailable), joinOrDash(report.Unavailable))

	if len(report.Unavailable) > 0 {
		return fmt.Errorf("%d endpoints unavailable", len(report.Unavailable))
	}
	return nil
}

func joinOrDash(names []string) string {
	if len(names) == 0 {
		return "-"
	}
	return strings.Join(names, ", ")
}
