package runlog

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/harborlight/townfeed/internal/support/exception"
)

// Repository persists JobRun rows.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a Repository over an open database.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Start records a new run in STARTED state and returns it.
func (r *Repository) Start(ctx context.Context, jobName string) (*JobRun, error) {
	run := &JobRun{
		ID:        uuid.NewString(),
		JobName:   jobName,
		Status:    StatusStarted,
		StartedAt: time.Now().UTC(),
	}
	if err := r.db.WithContext(ctx).Create(run).Error; err != nil {
		return nil, exception.New("runlog", fmt.Sprintf("failed to record start of job '%s'", jobName), err, false, true)
	}
	return run, nil
}

// Complete marks a run COMPLETED with its result counts.
func (r *Repository) Complete(ctx context.Context, run *JobRun, itemCount, daysCount int) error {
	now := time.Now().UTC()
	run.Status = StatusCompleted
	run.FinishedAt = &now
	run.ItemCount = itemCount
	run.DaysCount = daysCount
	if err := r.db.WithContext(ctx).Save(run).Error; err != nil {
		return exception.New("runlog", fmt.Sprintf("failed to record completion of job run '%s'", run.ID), err, false, true)
	}
	return nil
}

// Fail marks a run FAILED with the failure message.
func (r *Repository) Fail(ctx context.Context, run *JobRun, cause error) error {
	now := time.Now().UTC()
	run.Status = StatusFailed
	run.FinishedAt = &now
	if cause != nil {
		run.ExitMessage = cause.Error()
	}
	if err := r.db.WithContext(ctx).Save(run).Error; err != nil {
		return exception.New("runlog", fmt.Sprintf("failed to record failure of job run '%s'", run.ID), err, false, true)
	}
	return nil
}

// Recent returns the most recent runs, newest first.
func (r *Repository) Recent(ctx context.Context, limit int) ([]JobRun, error) {
	var runs []JobRun
	err := r.db.WithContext(ctx).
		Order("started_at DESC").
		Limit(limit).
		Find(&runs).Error
	if err != nil {
		return nil, exception.New("runlog", "failed to list recent job runs", err, false, true)
	}
	return runs, nil
}
