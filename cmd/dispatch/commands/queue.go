package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/marcus/dispatch/internal/tasks"
	"github.com/marcus/dispatch/internal/ui"
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Show the work queue of one or more assignees",
	Long: `Show the open tasks of the assignees for a time window.

Tasks due inside [from, to] are listed together with tasks already overdue
at the start of the window. Completed and cancelled tasks are left out.
The window defaults to today.`,
	RunE: runQueue,
}

func init() {
	queueCmd.Flags().String("assignees", "", "Comma separated assignee ids")
	queueCmd.Flags().String("from", "today", "Window start")
	queueCmd.Flags().String("to", "", "Window end (default: end of the --from day)")
	queueCmd.Flags().Bool("json", false, "Output as JSON")
	queueCmd.Flags().Bool("watch", false, "Open an interactive, refreshable view")
	_ = queueCmd.MarkFlagRequired("assignees")
	rootCmd.AddCommand(queueCmd)
}

// queueWindow resolves --from/--to into an inclusive millis window.
func queueWindow(fromStr, toStr string, loc *time.Location) (int64, int64, error) {
	from, err := parseTimeInput(fromStr, loc)
	if err != nil {
		return 0, 0, fmt.Errorf("--from: %w", err)
	}
	var to time.Time
	if toStr == "" {
		to = from.AddDate(0, 0, 1).Add(-time.Millisecond)
	} else {
		to, err = parseTimeInput(toStr, loc)
		if err != nil {
			return 0, 0, fmt.Errorf("--to: %w", err)
		}
	}
	if to.Before(from) {
		return 0, 0, fmt.Errorf("window end %s is before start %s", to.Format(time.RFC3339), from.Format(time.RFC3339))
	}
	return from.UnixMilli(), to.UnixMilli(), nil
}

func runQueue(cmd *cobra.Command, args []string) error {
	assigneesStr, _ := cmd.Flags().GetString("assignees")
	fromStr, _ := cmd.Flags().GetString("from")
	toStr, _ := cmd.Flags().GetString("to")
	asJSON, _ := cmd.Flags().GetBool("json")
	watch, _ := cmd.Flags().GetBool("watch")

	assignees, err := parseIDList(assigneesStr)
	if err != nil {
		return err
	}
	if len(assignees) == 0 {
		return fmt.Errorf("--assignees needs at least one id")
	}
	start, end, err := queueWindow(fromStr, toStr, time.Local)
	if err != nil {
		return err
	}

	b, _, err := setup(cmd)
	if err != nil {
		return err
	}
	defer b.Close()

	fetch := func(ctx context.Context) ([]*tasks.Task, error) {
		return b.svc.FetchTasksByDate(ctx, assignees, start, end)
	}

	if watch {
		title := fmt.Sprintf("Work queue: %s", assigneesStr)
		return ui.New(title, start, end, fetch).Run()
	}

	ts, err := fetch(cmd.Context())
	if err != nil {
		return err
	}
	if asJSON {
		return printJSON(cmd.OutOrStdout(), ts)
	}

	printTasks(cmd.OutOrStdout(), ts)
	if carried := countCarryOver(ts, start, end); carried > 0 {
		styles := ui.NewStyles()
		fmt.Fprintln(cmd.OutOrStdout(), styles.Overdue.Render(fmt.Sprintf("%d carried over", carried)))
	}
	return nil
}

func countCarryOver(ts []*tasks.Task, start, end int64) int {
	n := 0
	for _, t := range ts {
		if tasks.Place(t, start, end) == tasks.CarryOver {
			n++
		}
	}
	return n
}
