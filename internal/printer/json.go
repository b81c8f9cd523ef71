package printer

import (
	"encoding/json"
	"io"
	"time"

	"github.com/slok/deadliner/internal/model"
)

// JSONPrinter prints task information in JSON format.
type JSONPrinter struct {
	writer io.Writer
}

// NewJSONPrinter creates a new JSON printer.
func NewJSONPrinter(w io.Writer) *JSONPrinter {
	return &JSONPrinter{writer: w}
}

// listItem represents a task in the list output (subset of fields).
type listItem struct {
	ID                 string    `json:"id"`
	Text               string    `json:"text"`
	Status             string    `json:"status"`
	Deadline           time.Time `json:"deadline"`
	CheckpointsEnabled bool      `json:"checkpoints_enabled"`
}

// statusOutput represents the full task status output.
type statusOutput struct {
	ID                 string             `json:"id"`
	Text               string             `json:"text"`
	Status             string             `json:"status"`
	CreatorID          int64              `json:"creator_id"`
	AssigneeID         int64              `json:"assignee_id"`
	CreatedAt          time.Time          `json:"created_at"`
	Deadline           time.Time          `json:"deadline"`
	CheckpointsEnabled bool               `json:"checkpoints_enabled"`
	LastCheckAt        *time.Time         `json:"last_check_at"`
	Checkpoints        []checkpointOutput `json:"checkpoints"`
}

// checkpointOutput represents one scheduled check in the status output.
type checkpointOutput struct {
	Kind    string    `json:"kind"`
	FiresAt time.Time `json:"fires_at"`
}

// messageOutput represents a simple message output.
type messageOutput struct {
	Message string `json:"message"`
}

// PrintList prints tasks in JSON format with a subset of fields.
func (j *JSONPrinter) PrintList(tasks []model.Task) error {
	items := make([]listItem, len(tasks))
	for i, t := range tasks {
		items[i] = listItem{
			ID:                 t.ID,
			Text:               t.Text,
			Status:             string(t.Status),
			Deadline:           t.Deadline.UTC(),
			CheckpointsEnabled: t.CheckpointsEnabled,
		}
	}

	enc := json.NewEncoder(j.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(items)
}

// PrintStatus prints detailed task status in JSON format.
func (j *JSONPrinter) PrintStatus(task model.Task, checkpoints []model.Checkpoint) error {
	output := statusOutput{
		ID:                 task.ID,
		Text:               task.Text,
		Status:             string(task.Status),
		CreatorID:          task.CreatorID,
		AssigneeID:         task.AssigneeID,
		CreatedAt:          task.CreatedAt.UTC(),
		Deadline:           task.Deadline.UTC(),
		CheckpointsEnabled: task.CheckpointsEnabled,
		Checkpoints:        make([]checkpointOutput, len(checkpoints)),
	}

	if task.LastCheckAt != nil {
		utcTime := task.LastCheckAt.UTC()
		output.LastCheckAt = &utcTime
	}

	for i, cp := range checkpoints {
		output.Checkpoints[i] = checkpointOutput{
			Kind:    string(cp.Kind),
			FiresAt: cp.FiresAt.UTC(),
		}
	}

	enc := json.NewEncoder(j.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(output)
}

// PrintMessage prints a simple message in JSON format.
func (j *JSONPrinter) PrintMessage(msg string) error {
	output := messageOutput{Message: msg}
	enc := json.NewEncoder(j.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(output)
}
