package model

import "time"

type TaskStatus string

const (
	TaskPending TaskStatus = "pending"
	TaskRunning TaskStatus = "running"
	TaskSuccess TaskStatus = "success"
	TaskFailed  TaskStatus = "failed"
)

// Task is one execution of a crawl. It is append-once except for the
// progress fields, which only the engine running it may write.
type Task struct {
	ID             string     `json:"id"`
	SiteID         *string    `json:"site_id"`
	StartURL       string     `json:"start_url"`
	MaxDepth       int        `json:"max_depth"`
	MaxPages       int        `json:"max_pages"`
	SameDomainOnly bool       `json:"same_domain_only"`
	Status         TaskStatus `json:"status"`
	Progress       int        `json:"progress"`
	TotalPages     int        `json:"total_pages"`
	SuccessPages   int        `json:"success_pages"`
	FailedPages    int        `json:"failed_pages"`
	ErrorMessage   string     `json:"error_message,omitempty"`
	StartedAt      *time.Time `json:"started_at"`
	FinishedAt     *time.Time `json:"finished_at"`
	CreatedAt      time.Time  `json:"created_at"`
}

// TaskProgressPatch is the narrow set of fields patch_task accepts,
// per spec §4.1.
type TaskProgressPatch struct {
	Status       *TaskStatus
	Progress     *int
	TotalPages   *int
	SuccessPages *int
	FailedPages  *int
	ErrorMessage *string
	StartedAt    *time.Time
	FinishedAt   *time.Time
}

// ComputeProgress implements progress = floor((success+failed) / max_pages * 100).
func ComputeProgress(success, failed, maxPages int) int {
	if maxPages <= 0 {
		return 0
	}
	return (success + failed) * 100 / maxPages
}

func (t Task) IsTerminal() bool {
	return t.Status == TaskSuccess || t.Status == TaskFailed
}
