package printer

import "github.com/slok/deadliner/internal/model"

// Printer knows how to print task information in different formats.
type Printer interface {
	PrintList(tasks []model.Task) error
	PrintStatus(task model.Task, checkpoints []model.Checkpoint) error
	PrintMessage(msg string) error
}
