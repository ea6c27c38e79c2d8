package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/marcus/dispatch/internal/scheduler"
)

var digestCmd = &cobra.Command{
	Use:   "digest",
	Short: "Print the work-queue digest once",
	Long: `Summarize the queue of each assignee in digest.assignees for the
window starting today and spanning digest.horizon.`,
	RunE: runDigest,
}

func init() {
	digestCmd.Flags().String("assignees", "", "Comma separated assignee ids (default: digest.assignees)")
	digestCmd.Flags().Bool("json", false, "Output as JSON")
	rootCmd.AddCommand(digestCmd)
}

func runDigest(cmd *cobra.Command, args []string) error {
	assigneesStr, _ := cmd.Flags().GetString("assignees")
	asJSON, _ := cmd.Flags().GetBool("json")

	b, cfg, err := setup(cmd)
	if err != nil {
		return err
	}
	defer b.Close()

	assignees := cfg.Digest.Assignees
	if assigneesStr != "" {
		assignees, err = parseIDList(assigneesStr)
		if err != nil {
			return err
		}
	}
	if len(assignees) == 0 {
		return fmt.Errorf("no assignees: pass --assignees or set digest.assignees")
	}
	loc, err := cfg.Digest.Location()
	if err != nil {
		return err
	}

	summaries, err := scheduler.NewDigest(b.svc, assignees, cfg.Digest.Horizon, loc).Build(cmd.Context())
	if err != nil {
		return err
	}
	if asJSON {
		return printJSON(cmd.OutOrStdout(), summaries)
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ASSIGNEE\tIN RANGE\tCARRIED OVER")
	for _, s := range summaries {
		fmt.Fprintf(tw, "%d\t%d\t%d\n", s.AssigneeID, s.InRange, s.CarryOver)
	}
	return tw.Flush()
}
