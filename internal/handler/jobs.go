package handler

import (
	"sync"
	"time"

	"github.com/gofiber/fiber/v3"
)

// JobStatus represents the current state of a background job.
type JobStatus struct {
	ID          string      `json:"id"`
	Kind        string      `json:"kind"`   // e.g. regenerate
	Status      string      `json:"status"` // running, complete, error
	Error       string      `json:"error,omitempty"`
	Result      interface{} `json:"result,omitempty"`
	StartedAt   time.Time   `json:"started_at"`
	CompletedAt time.Time   `json:"completed_at,omitempty"`
}

// JobTracker manages background jobs in memory. Jobs are fire-and-forget:
// the triggering request gets a job id back and polls for completion.
type JobTracker struct {
	mu   sync.RWMutex
	jobs map[string]*JobStatus
}

// NewJobTracker creates a new job tracker.
func NewJobTracker() *JobTracker {
	return &JobTracker{jobs: make(map[string]*JobStatus)}
}

// CreateJob registers a new running job.
func (t *JobTracker) CreateJob(id, kind string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.jobs[id] = &JobStatus{
		ID:        id,
		Kind:      kind,
		Status:    "running",
		StartedAt: time.Now(),
	}
}

// Complete marks a job finished with its result.
func (t *JobTracker) Complete(id string, result interface{}) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if job, ok := t.jobs[id]; ok {
		job.Status = "complete"
		job.Result = result
		job.CompletedAt = time.Now()
	}
}

// Fail marks a job as errored.
func (t *JobTracker) Fail(id string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if job, ok := t.jobs[id]; ok {
		job.Status = "error"
		job.Error = err.Error()
		job.CompletedAt = time.Now()
	}
}

// GetJob returns a snapshot of a job's status.
func (t *JobTracker) GetJob(id string) (*JobStatus, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	job, ok := t.jobs[id]
	if !ok {
		return nil, false
	}
	snapshot := *job
	return &snapshot, true
}

// JobsHandler handles job status endpoints.
type JobsHandler struct {
	tracker *JobTracker
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(tracker *JobTracker) *JobsHandler {
	return &JobsHandler{tracker: tracker}
}

// Register sets up job routes.
func (h *JobsHandler) Register(router fiber.Router) {
	router.Get("/jobs/:id", h.GetStatus)
}

// GetStatus returns the current job status.
func (h *JobsHandler) GetStatus(c fiber.Ctx) error {
	job, ok := h.tracker.GetJob(c.Params("id"))
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "job not found"})
	}
	return c.JSON(job)
}
