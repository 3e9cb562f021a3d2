package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskOrphanScan reports student records left unlinked by partial writes.
	TaskOrphanScan = "students:orphan_scan"
)

// OrphanScanPayload describes why a scan was requested.
type OrphanScanPayload struct {
	Reason string `json:"reason"`
}

// NewOrphanScanTask constructs an Asynq task.
func NewOrphanScanTask(reason string) (*asynq.Task, error) {
	data, err := json.Marshal(OrphanScanPayload{Reason: reason})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskOrphanScan, data), nil
}
