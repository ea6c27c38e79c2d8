package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var commentCmd = &cobra.Command{
	Use:   "comment <task-id> <text>",
	Short: "Add a comment to a task",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runComment,
}

func init() {
	commentCmd.Flags().String("author", "", "Comment author (default: $USER)")
	rootCmd.AddCommand(commentCmd)
}

func runComment(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	text := strings.Join(args[1:], " ")
	author, _ := cmd.Flags().GetString("author")
	if author == "" {
		author = os.Getenv("USER")
	}

	b, _, err := setup(cmd)
	if err != nil {
		return err
	}
	defer b.Close()

	if err := b.svc.AddComment(cmd.Context(), id, text, author); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Comment added to task %d\n", id)
	return nil
}
