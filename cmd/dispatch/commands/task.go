package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/marcus/dispatch/internal/service"
	"github.com/marcus/dispatch/internal/tasks"
	"github.com/marcus/dispatch/internal/ui"
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Create, update, and inspect tasks",
}

var taskCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an ASSIGNED task",
	Long: `Create a task attached to a reference.

The task starts ASSIGNED with the default description. Deadline accepts
epoch milliseconds, YYYY-MM-DD, "YYYY-MM-DD HH:MM", RFC3339, or
today/tomorrow.`,
	RunE: runTaskCreate,
}

var taskUpdateCmd = &cobra.Command{
	Use:   "update <task-id>",
	Short: "Change a task's status or description",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskUpdate,
}

var taskShowCmd = &cobra.Command{
	Use:   "show <task-id>",
	Short: "Show a task with its comments and activity history",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskShow,
}

var taskPriorityCmd = &cobra.Command{
	Use:   "priority <task-id> <LOW|MEDIUM|HIGH>",
	Short: "Set a task's priority",
	Args:  cobra.ExactArgs(2),
	RunE:  runTaskPriority,
}

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks with a given priority",
	RunE:  runTaskList,
}

func init() {
	taskCreateCmd.Flags().Int64("ref", 0, "Reference id")
	taskCreateCmd.Flags().String("ref-type", "", "Reference type (ORDER, ENTITY)")
	taskCreateCmd.Flags().String("type", "", "Task type (e.g. CREATE_INVOICE, ARRANGE_PICKUP)")
	taskCreateCmd.Flags().Int64("assignee", 0, "Assignee id")
	taskCreateCmd.Flags().String("priority", string(tasks.PriorityMedium), "Priority (LOW, MEDIUM, HIGH)")
	taskCreateCmd.Flags().String("deadline", "", "Deadline")
	taskCreateCmd.Flags().Bool("json", false, "Output as JSON")
	_ = taskCreateCmd.MarkFlagRequired("ref")
	_ = taskCreateCmd.MarkFlagRequired("ref-type")
	_ = taskCreateCmd.MarkFlagRequired("type")

	taskUpdateCmd.Flags().String("status", "", "New status (ASSIGNED, STARTED, COMPLETED, CANCELLED)")
	taskUpdateCmd.Flags().String("description", "", "New description")
	taskUpdateCmd.Flags().Bool("json", false, "Output as JSON")

	taskShowCmd.Flags().Bool("json", false, "Output as JSON")
	taskPriorityCmd.Flags().Bool("json", false, "Output as JSON")

	taskListCmd.Flags().String("priority", "", "Priority to list (LOW, MEDIUM, HIGH)")
	taskListCmd.Flags().Bool("json", false, "Output as JSON")
	_ = taskListCmd.MarkFlagRequired("priority")

	taskCmd.AddCommand(taskCreateCmd, taskUpdateCmd, taskShowCmd, taskPriorityCmd, taskListCmd)
	rootCmd.AddCommand(taskCmd)
}

func runTaskCreate(cmd *cobra.Command, args []string) error {
	refID, _ := cmd.Flags().GetInt64("ref")
	refTypeStr, _ := cmd.Flags().GetString("ref-type")
	typeStr, _ := cmd.Flags().GetString("type")
	assignee, _ := cmd.Flags().GetInt64("assignee")
	priorityStr, _ := cmd.Flags().GetString("priority")
	deadlineStr, _ := cmd.Flags().GetString("deadline")
	asJSON, _ := cmd.Flags().GetBool("json")

	refType, err := tasks.ParseReferenceType(refTypeStr)
	if err != nil {
		return err
	}
	taskType, err := tasks.ParseTaskType(typeStr)
	if err != nil {
		return err
	}
	priority, err := tasks.ParsePriority(priorityStr)
	if err != nil {
		return err
	}
	deadline, err := parseMillisInput(deadlineStr, time.Local)
	if err != nil {
		return err
	}

	b, _, err := setup(cmd)
	if err != nil {
		return err
	}
	defer b.Close()

	created, err := b.svc.CreateTasks(cmd.Context(), []service.CreateTaskRequest{{
		ReferenceID:   refID,
		ReferenceType: refType,
		Type:          taskType,
		AssigneeID:    assignee,
		Priority:      priority,
		Deadline:      deadline,
	}})
	if err != nil {
		return err
	}

	if asJSON {
		return printJSON(cmd.OutOrStdout(), created)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created task %d (%s for %s/%d)\n", created[0].ID, taskType, refType, refID)
	return nil
}

func runTaskUpdate(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	asJSON, _ := cmd.Flags().GetBool("json")

	req := service.UpdateTaskRequest{TaskID: id}
	if cmd.Flags().Changed("status") {
		statusStr, _ := cmd.Flags().GetString("status")
		status, err := tasks.ParseStatus(statusStr)
		if err != nil {
			return err
		}
		req.Status = &status
	}
	if cmd.Flags().Changed("description") {
		desc, _ := cmd.Flags().GetString("description")
		req.Description = &desc
	}
	if req.Status == nil && req.Description == nil {
		return fmt.Errorf("nothing to update: pass --status and/or --description")
	}

	b, _, err := setup(cmd)
	if err != nil {
		return err
	}
	defer b.Close()

	updated, err := b.svc.UpdateTasks(cmd.Context(), []service.UpdateTaskRequest{req})
	if err != nil {
		return err
	}

	if asJSON {
		return printJSON(cmd.OutOrStdout(), updated[0])
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Updated task %d: %s\n", updated[0].ID, updated[0].Status)
	return nil
}

func runTaskShow(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	asJSON, _ := cmd.Flags().GetBool("json")

	b, _, err := setup(cmd)
	if err != nil {
		return err
	}
	defer b.Close()

	details, err := b.svc.GetTaskDetails(cmd.Context(), id)
	if err != nil {
		return err
	}

	if asJSON {
		return printJSON(cmd.OutOrStdout(), details)
	}

	w := cmd.OutOrStdout()
	t := details.Task
	fmt.Fprintf(w, "Task %d\n", t.ID)
	fmt.Fprintf(w, "  Reference:   %s/%d\n", t.ReferenceType, t.ReferenceID)
	fmt.Fprintf(w, "  Type:        %s\n", t.Type)
	fmt.Fprintf(w, "  Assignee:    %d\n", t.AssigneeID)
	fmt.Fprintf(w, "  Priority:    %s\n", orDash(string(t.Priority)))
	fmt.Fprintf(w, "  Status:      %s\n", t.Status)
	fmt.Fprintf(w, "  Deadline:    %s\n", ui.FormatMillis(t.Deadline))
	fmt.Fprintf(w, "  Description: %s\n", t.Description)

	fmt.Fprintf(w, "\nComments (%d)\n", len(details.Comments))
	for _, c := range details.Comments {
		fmt.Fprintf(w, "  %s  %s: %s\n", ui.FormatMillis(c.Timestamp), c.Author, c.Text)
	}
	fmt.Fprintf(w, "\nActivity (%d)\n", len(details.Activities))
	for _, a := range details.Activities {
		fmt.Fprintf(w, "  %s  %s\n", ui.FormatMillis(a.Timestamp), a.Description)
	}
	return nil
}

func runTaskPriority(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	priority, err := tasks.ParsePriority(args[1])
	if err != nil {
		return err
	}
	asJSON, _ := cmd.Flags().GetBool("json")

	b, _, err := setup(cmd)
	if err != nil {
		return err
	}
	defer b.Close()

	t, err := b.svc.UpdateTaskPriority(cmd.Context(), id, priority)
	if err != nil {
		return err
	}
	if asJSON {
		return printJSON(cmd.OutOrStdout(), t)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Task %d priority set to %s\n", t.ID, t.Priority)
	return nil
}

func runTaskList(cmd *cobra.Command, args []string) error {
	priorityStr, _ := cmd.Flags().GetString("priority")
	asJSON, _ := cmd.Flags().GetBool("json")
	priority, err := tasks.ParsePriority(priorityStr)
	if err != nil {
		return err
	}

	b, _, err := setup(cmd)
	if err != nil {
		return err
	}
	defer b.Close()

	ts, err := b.svc.GetTasksByPriority(cmd.Context(), priority)
	if err != nil {
		return err
	}
	if asJSON {
		if ts == nil {
			ts = []*tasks.Task{}
		}
		return printJSON(cmd.OutOrStdout(), ts)
	}
	printTasks(cmd.OutOrStdout(), ts)
	return nil
}
