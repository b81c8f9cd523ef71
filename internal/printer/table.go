package printer

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/slok/deadliner/internal/model"
)

// TablePrinter prints task information in a table format.
type TablePrinter struct {
	writer io.Writer
}

// NewTablePrinter creates a new table printer.
func NewTablePrinter(w io.Writer) *TablePrinter {
	return &TablePrinter{writer: w}
}

// PrintList prints tasks in a table format.
func (t *TablePrinter) PrintList(tasks []model.Task) error {
	if len(tasks) == 0 {
		return nil
	}

	tw := tabwriter.NewWriter(t.writer, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	// Print header
	fmt.Fprintln(tw, "ID\tTASK\tSTATUS\tDEADLINE\tCHECKS")

	// Print rows
	for _, task := range tasks {
		checks := "off"
		if task.CheckpointsEnabled {
			checks = "on"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", task.ID, task.Text, task.Status, TimeUntil(task.Deadline), checks)
	}

	return nil
}

// PrintStatus prints detailed task status including the checkpoint plan.
func (t *TablePrinter) PrintStatus(task model.Task, checkpoints []model.Checkpoint) error {
	fmt.Fprintf(t.writer, "ID:          %s\n", task.ID)
	fmt.Fprintf(t.writer, "Task:        %s\n", task.Text)
	fmt.Fprintf(t.writer, "Status:      %s\n", task.Status)
	fmt.Fprintf(t.writer, "Creator:     %d\n", task.CreatorID)
	fmt.Fprintf(t.writer, "Assignee:    %d\n", task.AssigneeID)
	fmt.Fprintf(t.writer, "Created:     %s\n", FormatTimestamp(task.CreatedAt))
	fmt.Fprintf(t.writer, "Deadline:    %s (%s)\n", FormatTimestamp(task.Deadline), TimeUntil(task.Deadline))

	if task.LastCheckAt != nil {
		fmt.Fprintf(t.writer, "Last check:  %s\n", FormatTimestamp(*task.LastCheckAt))
	}

	if len(checkpoints) > 0 {
		fmt.Fprintf(t.writer, "\nCheckpoints:\n")
		for _, cp := range checkpoints {
			fmt.Fprintf(t.writer, "  %-16s %s\n", cp.Kind, FormatTimestamp(cp.FiresAt))
		}
	}

	return nil
}

// PrintMessage prints a simple text message.
func (t *TablePrinter) PrintMessage(msg string) error {
	fmt.Fprintln(t.writer, msg)
	return nil
}
