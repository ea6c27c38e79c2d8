package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marcus/dispatch/internal/tasks"
)

var assignCmd = &cobra.Command{
	Use:   "assign <ORDER|ENTITY> <reference-id>",
	Short: "Reassign every task slot of a reference",
	Long: `Reconcile the tasks of a reference against its slot table.

Each slot ends with exactly one ASSIGNED task owned by the assignee. The
lowest-id candidate survives, duplicates are cancelled, and missing slots
are created. Completed tasks are never touched.`,
	Args: cobra.ExactArgs(2),
	RunE: runAssign,
}

func init() {
	assignCmd.Flags().Int64("assignee", 0, "Assignee id")
	_ = assignCmd.MarkFlagRequired("assignee")
	rootCmd.AddCommand(assignCmd)
}

func runAssign(cmd *cobra.Command, args []string) error {
	refType, err := tasks.ParseReferenceType(args[0])
	if err != nil {
		return err
	}
	refID, err := parseID(args[1])
	if err != nil {
		return err
	}
	assignee, _ := cmd.Flags().GetInt64("assignee")

	b, _, err := setup(cmd)
	if err != nil {
		return err
	}
	defer b.Close()

	msg, err := b.svc.AssignByReference(cmd.Context(), refID, refType, assignee)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), msg)
	return nil
}
