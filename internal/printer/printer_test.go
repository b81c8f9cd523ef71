package printer_test

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/deadliner/internal/model"
	"github.com/slok/deadliner/internal/printer"
)

func taskFixture() model.Task {
	createdAt := time.Date(2026, 1, 30, 10, 0, 0, 0, time.UTC)
	return model.Task{
		ID:                 "01234567890ABCDEFGHIJKLMNOP",
		CreatorID:          100,
		AssigneeID:         200,
		Text:               "write the report",
		Status:             model.TaskStatusInProgress,
		CreatedAt:          createdAt,
		Deadline:           createdAt.Add(time.Hour),
		CheckpointsEnabled: true,
	}
}

func checkpointsFixture() []model.Checkpoint {
	createdAt := time.Date(2026, 1, 30, 10, 0, 0, 0, time.UTC)
	return []model.Checkpoint{
		{TaskID: "01234567890ABCDEFGHIJKLMNOP", Kind: model.CheckpointKindMidway, FiresAt: createdAt.Add(30 * time.Minute)},
		{TaskID: "01234567890ABCDEFGHIJKLMNOP", Kind: model.CheckpointKindLate, FiresAt: createdAt.Add(54 * time.Minute)},
		{TaskID: "01234567890ABCDEFGHIJKLMNOP", Kind: model.CheckpointKindFinal, FiresAt: createdAt.Add(time.Hour)},
	}
}

func TestTablePrinterPrintStatus(t *testing.T) {
	var buf bytes.Buffer
	p := printer.NewTablePrinter(&buf)

	err := p.PrintStatus(taskFixture(), checkpointsFixture())
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "Task:        write the report")
	assert.Contains(t, out, "Status:      in_progress")
	assert.Contains(t, out, "Checkpoints:")
	assert.Contains(t, out, "intermediate_50")
	assert.Contains(t, out, "2026-01-30 10:30:00 UTC")
	assert.Contains(t, out, "final")
}

func TestTablePrinterPrintList(t *testing.T) {
	var buf bytes.Buffer
	p := printer.NewTablePrinter(&buf)

	err := p.PrintList([]model.Task{taskFixture()})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "ID")
	assert.Contains(t, out, "write the report")
	assert.Contains(t, out, "in_progress")
}

func TestTablePrinterPrintListEmpty(t *testing.T) {
	var buf bytes.Buffer
	p := printer.NewTablePrinter(&buf)

	err := p.PrintList(nil)
	require.NoError(t, err)
	assert.Empty(t, buf.String())
}

func TestJSONPrinterPrintStatus(t *testing.T) {
	var buf bytes.Buffer
	p := printer.NewJSONPrinter(&buf)

	err := p.PrintStatus(taskFixture(), checkpointsFixture())
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, `"text": "write the report"`)
	assert.Contains(t, out, `"status": "in_progress"`)
	assert.Contains(t, out, `"kind": "intermediate_50"`)
	assert.Contains(t, out, `"checkpoints_enabled": true`)
}

func TestJSONPrinterPrintList(t *testing.T) {
	var buf bytes.Buffer
	p := printer.NewJSONPrinter(&buf)

	err := p.PrintList([]model.Task{taskFixture()})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, `"id": "01234567890ABCDEFGHIJKLMNOP"`)
	assert.Contains(t, out, `"text": "write the report"`)
}

func TestTablePrinterPrintMessage(t *testing.T) {
	var buf bytes.Buffer
	p := printer.NewTablePrinter(&buf)

	err := p.PrintMessage("ok")
	require.NoError(t, err)
	assert.Equal(t, "ok", strings.TrimSpace(buf.String()))
}

func TestJSONPrinterPrintMessage(t *testing.T) {
	var buf bytes.Buffer
	p := printer.NewJSONPrinter(&buf)

	err := p.PrintMessage("ok")
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `"message": "ok"`)
}
