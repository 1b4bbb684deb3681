package handler

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yumyai/afscan/pkg/pipeline"
)

// ScanJobStatus represents the lifecycle of a scan request.
type ScanJobStatus string

const (
	ScanJobQueued    ScanJobStatus = "queued"
	ScanJobRunning   ScanJobStatus = "running"
	ScanJobCompleted ScanJobStatus = "completed"
	ScanJobFailed    ScanJobStatus = "failed"
)

// ScanJob keeps track of a scan submitted over HTTP.
type ScanJob struct {
	ID        string           `json:"job_id"`
	Sample    string           `json:"sample"`
	Status    ScanJobStatus    `json:"status"`
	Report    *pipeline.Report `json:"report,omitempty"`
	Error     string           `json:"error,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// ScanJobManager stores scan job states indexed by job ID.
type ScanJobManager struct {
	mu   sync.RWMutex
	jobs map[string]*ScanJob
}

// NewScanJobManager constructs a job manager with no jobs.
func NewScanJobManager() *ScanJobManager {
	return &ScanJobManager{
		jobs: make(map[string]*ScanJob),
	}
}

// NewJob registers a queued job for sample.
func (m *ScanJobManager) NewJob(sample string) ScanJob {
	now := time.Now()
	job := &ScanJob{
		ID:        uuid.NewString(),
		Sample:    sample,
		Status:    ScanJobQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}

	m.mu.Lock()
	m.jobs[job.ID] = job
	m.mu.Unlock()
	return *job
}

// SetRunning marks the job as running.
func (m *ScanJobManager) SetRunning(jobID string) {
	m.updateJob(jobID, func(job *ScanJob) {
		job.Status = ScanJobRunning
	})
}

// CompleteJob stores the run report and marks the job complete.
func (m *ScanJobManager) CompleteJob(jobID string, rep *pipeline.Report) {
	m.updateJob(jobID, func(job *ScanJob) {
		job.Status = ScanJobCompleted
		job.Report = rep
	})
}

// FailJob records a failure and attaches a user-facing error message.
func (m *ScanJobManager) FailJob(jobID string, err error) {
	m.updateJob(jobID, func(job *ScanJob) {
		job.Status = ScanJobFailed
		job.Error = err.Error()
	})
}

// GetJob returns a snapshot of the job.
func (m *ScanJobManager) GetJob(jobID string) (ScanJob, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[jobID]
	if !ok {
		return ScanJob{}, false
	}
	return *job, true
}

func (m *ScanJobManager) updateJob(jobID string, update func(job *ScanJob)) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[jobID]
	if !ok {
		return
	}

	update(job)
	job.UpdatedAt = time.Now()
}
