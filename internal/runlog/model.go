// Package runlog records ingestion and backfill job executions in a
// relational database for operational visibility.
package runlog

import "time"

// Job statuses.
const (
	StatusStarted   = "STARTED"
	StatusCompleted = "COMPLETED"
	StatusFailed    = "FAILED"
)

// Job names.
const (
	JobScrape   = "scrape"
	JobBackfill = "backfill"
)

// JobRun is one execution of a scheduled job.
type JobRun struct {
	ID          string     `gorm:"primaryKey;size:36"`
	JobName     string     `gorm:"size:64;index;not null"`
	Status      string     `gorm:"size:16;not null"`
	StartedAt   time.Time  `gorm:"not null"`
	FinishedAt  *time.Time `gorm:""`
	ItemCount   int        `gorm:"default:0"`
	DaysCount   int        `gorm:"default:0"`
	ExitMessage string     `gorm:"type:text"`
}

// TableName fixes the table name independent of gorm's pluralization.
func (JobRun) TableName() string {
	return "job_runs"
}
