package commands

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/marcus/dispatch/internal/logging"
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "View logs",
	Long: `View dispatch logs written under logging.path.

Displays the most recent entries across the dated log files.`,
	RunE: runLogs,
}

func init() {
	logsCmd.Flags().IntP("tail", "n", 50, "Number of log lines to show")
	rootCmd.AddCommand(logsCmd)
}

// logEntry represents a parsed JSON log line
type logEntry struct {
	Level     string    `json:"level"`
	Time      time.Time `json:"time"`
	Message   string    `json:"message"`
	Component string    `json:"component,omitempty"`
	Error     string    `json:"error,omitempty"`
}

func runLogs(cmd *cobra.Command, args []string) error {
	tail, _ := cmd.Flags().GetInt("tail")

	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if cfg.Logging.Path == "" {
		fmt.Fprintln(cmd.OutOrStdout(), "logging.path is not set; logs go to stderr.")
		return nil
	}
	if err := initLogging(cmd, cfg); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}

	files, err := logging.Get().LogFiles()
	if err != nil {
		return err
	}
	if len(files) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No log files found.")
		return nil
	}

	for _, line := range readLastLines(files, tail) {
		fmt.Fprintln(cmd.OutOrStdout(), formatLogLine(line))
	}
	return nil
}

// readLastLines returns the last n lines across files, which are ordered
// newest first.
func readLastLines(files []string, n int) []string {
	var lines []string
	for _, path := range files {
		if len(lines) >= n {
			break
		}
		f, err := os.Open(path)
		if err != nil {
			continue
		}
		fileLines := scanLines(f)
		_ = f.Close()
		lines = append(fileLines, lines...)
	}
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines
}

func scanLines(r io.Reader) []string {
	var out []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		out = append(out, scanner.Text())
	}
	return out
}

// formatLogLine renders a JSON entry on one line. Non-JSON lines pass
// through unchanged.
func formatLogLine(line string) string {
	var e logEntry
	if err := json.Unmarshal([]byte(line), &e); err != nil || e.Message == "" {
		return line
	}
	out := fmt.Sprintf("%s %-5s", e.Time.Local().Format("2006-01-02 15:04:05"), e.Level)
	if e.Component != "" {
		out += " [" + e.Component + "]"
	}
	out += " " + e.Message
	if e.Error != "" {
		out += ": " + e.Error
	}
	return out
}
