package scheduler

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/unitutor/pagetutor/pkg/models"
)

// run tracks one scheduling invocation. All mutable state lives behind a
// single mutex; readers only ever see immutable Snapshot copies.
type run struct {
	id         uuid.UUID
	documentID string
	startedAt  time.Time

	mu   sync.Mutex
	jobs map[int]*models.PageJob
}

func newRun(documentID string, pages []int) *run {
	jobs := make(map[int]*models.PageJob, len(pages))
	for _, p := range pages {
		jobs[p] = &models.PageJob{Page: p, Status: models.PageStatusPending}
	}
	return &run{
		id:         uuid.New(),
		documentID: documentID,
		startedAt:  time.Now().UTC(),
		jobs:       jobs,
	}
}

func (r *run) markProcessing(page int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if job, ok := r.jobs[page]; ok && !job.Terminal() {
		job.Status = models.PageStatusProcessing
	}
}

func (r *run) complete(page int) {
	r.finish(page, models.PageStatusCompleted, "")
}

func (r *run) fail(page int, msg string) {
	r.finish(page, models.PageStatusFailed, msg)
}

func (r *run) finish(page int, status, msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[page]
	if !ok || job.Terminal() {
		return
	}
	now := time.Now().UTC()
	job.Status = status
	job.ErrorMessage = msg
	job.CompletedAt = &now
}

// failRemaining marks every non-terminal job failed. Used when the run
// goroutine dies unexpectedly so the run cannot wedge in processing forever.
func (r *run) failRemaining(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	for _, job := range r.jobs {
		if !job.Terminal() {
			job.Status = models.PageStatusFailed
			job.ErrorMessage = msg
			job.CompletedAt = &now
		}
	}
}

func (r *run) terminal() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, job := range r.jobs {
		if !job.Terminal() {
			return false
		}
	}
	return true
}

// Snapshot is an immutable view of a run's state at one point in time.
type Snapshot struct {
	RunID         uuid.UUID
	DocumentID    string
	Status        string
	TotalSelected int
	Processed     int
	Percentage    float64
	Pages         map[int]models.PageJob
	StartedAt     time.Time
}

func (r *run) snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	pages := make(map[int]models.PageJob, len(r.jobs))
	processed, started, failed := 0, 0, 0
	for p, job := range r.jobs {
		pages[p] = *job
		if job.Status != models.PageStatusPending {
			started++
		}
		if job.Terminal() {
			processed++
		}
		if job.Status == models.PageStatusFailed {
			failed++
		}
	}

	total := len(r.jobs)
	status := models.RunStatusProcessing
	switch {
	case started == 0:
		status = models.RunStatusPending
	case processed == total && failed > 0:
		status = models.RunStatusFailed
	case processed == total:
		status = models.RunStatusCompleted
	}

	pct := 0.0
	if total > 0 {
		pct = float64(processed) / float64(total) * 100
	}

	return Snapshot{
		RunID:         r.id,
		DocumentID:    r.documentID,
		Status:        status,
		TotalSelected: total,
		Processed:     processed,
		Percentage:    pct,
		Pages:         pages,
		StartedAt:     r.startedAt,
	}
}
