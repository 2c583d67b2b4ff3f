package api

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	cserrors "github.com/FocuswithJustin/chordshift/core/errors"
	"github.com/FocuswithJustin/chordshift/core/transpose"
	"github.com/FocuswithJustin/chordshift/internal/chart"
	"github.com/FocuswithJustin/chordshift/internal/logging"
	"github.com/FocuswithJustin/chordshift/internal/validation"
)

// JobStatus represents the current state of a job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// Terminal reports whether no further transitions can happen.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// Job is an asynchronous chart transposition.
type Job struct {
	ID          string            `json:"id"`
	Status      JobStatus         `json:"status"`
	Progress    int               `json:"progress"` // 0-100
	Request     transpose.Request `json:"request"`
	Kind        string            `json:"kind"`
	Result      *chart.Result     `json:"result,omitempty"`
	Error       string            `json:"error,omitempty"`
	CreatedAt   string            `json:"created_at"`
	UpdatedAt   string            `json:"updated_at"`
	CompletedAt string            `json:"completed_at,omitempty"`

	text   string
	ctx    context.Context
	cancel context.CancelFunc
}

// JobStore manages transposition jobs in memory.
type JobStore struct {
	jobs map[string]*Job
	mu   sync.RWMutex
}

// NewJobStore creates a new job store.
func NewJobStore() *JobStore {
	return &JobStore{
		jobs: make(map[string]*Job),
	}
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// Create registers a pending job for text and returns a snapshot of it.
func (s *JobStore) Create(text string, req transpose.Request, kind string) Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	now := timestamp()

	job := &Job{
		ID:        uuid.NewString(),
		Status:    JobStatusPending,
		Request:   req,
		Kind:      kind,
		CreatedAt: now,
		UpdatedAt: now,
		text:      text,
		ctx:       ctx,
		cancel:    cancel,
	}

	s.jobs[job.ID] = job
	logging.JobEvent(job.ID, string(job.Status), "kind", kind)
	return *job
}

// Get returns a snapshot of the job with the given ID.
func (s *JobStore) Get(id string) (Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, exists := s.jobs[id]
	if !exists {
		return Job{}, false
	}
	return *job, true
}

// Update records a status change. Updates to a job that already reached a
// terminal state are ignored and reported as false.
func (s *JobStore) Update(id string, status JobStatus, progress int, result *chart.Result, errMsg string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, exists := s.jobs[id]
	if !exists {
		return false, cserrors.NewNotFound("job", id)
	}
	if job.Status.Terminal() {
		return false, nil
	}

	job.Status = status
	job.Progress = progress
	job.UpdatedAt = timestamp()

	if result != nil {
		job.Result = result
	}
	if errMsg != "" {
		job.Error = errMsg
	}
	if status.Terminal() {
		job.CompletedAt = job.UpdatedAt
		job.text = ""
		job.cancel()
	}

	logging.JobEvent(id, string(status), "progress", progress)
	return true, nil
}

// List returns snapshots of all jobs, oldest first.
func (s *JobStore) List() []Job {
	s.mu.RLock()
	defer s.mu.RUnlock()

	jobs := make([]Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		jobs = append(jobs, *job)
	}
	sort.Slice(jobs, func(i, j int) bool {
		if jobs[i].CreatedAt != jobs[j].CreatedAt {
			return jobs[i].CreatedAt < jobs[j].CreatedAt
		}
		return jobs[i].ID < jobs[j].ID
	})
	return jobs
}

// Cancel cancels a pending or running job.
func (s *JobStore) Cancel(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, exists := s.jobs[id]
	if !exists {
		return cserrors.NewNotFound("job", id)
	}

	if job.Status.Terminal() {
		return cserrors.NewValidation("status", "job cannot be cancelled (status: "+string(job.Status)+")")
	}

	job.cancel()
	job.Status = JobStatusCancelled
	job.Error = "Job cancelled by user"
	job.UpdatedAt = timestamp()
	job.CompletedAt = job.UpdatedAt
	job.text = ""

	logging.JobEvent(id, string(job.Status))
	return nil
}

// Prune removes terminal jobs that completed more than maxAge ago.
func (s *JobStore) Prune(maxAge time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-maxAge).UTC().Format(time.RFC3339)
	removed := 0
	for id, job := range s.jobs {
		if job.Status.Terminal() && job.CompletedAt < cutoff {
			delete(s.jobs, id)
			removed++
		}
	}
	return removed
}

// start marks a pending job running and returns a snapshot that still
// carries the job's input and context.
func (s *JobStore) start(id string) (Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, exists := s.jobs[id]
	if !exists || job.Status != JobStatusPending {
		return Job{}, false
	}
	job.Status = JobStatusRunning
	job.Progress = 10
	job.UpdatedAt = timestamp()
	logging.JobEvent(id, string(job.Status))
	return *job, true
}

// runJob transposes a job's chart in a goroutine, broadcasting progress.
func (s *Server) runJob(id string) {
	go func() {
		job, ok := s.jobs.start(id)
		if !ok {
			return
		}
		s.hub.BroadcastJob(id, JobStatusRunning, job.Progress, "")

		ctx := job.ctx
		res, err := s.transposer.Transpose(ctx, job.text, job.Request)
		switch {
		case errors.Is(err, context.Canceled):
			// Cancel already recorded and announced the new status.
		case err != nil:
			if updated, _ := s.jobs.Update(id, JobStatusFailed, 100, nil, err.Error()); updated {
				s.hub.BroadcastJob(id, JobStatusFailed, 100, err.Error())
			}
		default:
			if updated, _ := s.jobs.Update(id, JobStatusCompleted, 100, res, ""); updated {
				logging.Transposition(ctx, job.Kind, job.Request.Semitones, string(job.Request.Notation), res.Lines, "job_id", id)
				s.hub.BroadcastJob(id, JobStatusCompleted, 100, "")
			}
		}
	}()
}

// handleJobs handles GET /jobs (list) and POST /jobs (create).
func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		jobs := s.jobs.List()
		respondList(w, jobs, len(jobs))
	case http.MethodPost:
		s.createJobHandler(w, r)
	default:
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only GET and POST are allowed")
	}
}

func (s *Server) createJobHandler(w http.ResponseWriter, r *http.Request) {
	req, err := decodeTransposeRequest(w, r)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	if err := validation.ValidateChartText([]byte(req.Text)); err != nil {
		respondErr(w, r, err)
		return
	}

	tr, kind, err := s.resolve(req)
	if err != nil {
		respondErr(w, r, err)
		return
	}

	job := s.jobs.Create(req.Text, tr, kind)
	s.runJob(job.ID)

	respond(w, http.StatusCreated, job)
}

// handleJobByID handles GET /jobs/{id} and DELETE /jobs/{id}.
func (s *Server) handleJobByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/jobs/")
	if id == "" || strings.Contains(id, "/") {
		respondError(w, http.StatusBadRequest, "MISSING_ID", "Job ID is required")
		return
	}
	if _, err := uuid.Parse(id); err != nil {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "job not found: "+id)
		return
	}

	switch r.Method {
	case http.MethodGet:
		job, exists := s.jobs.Get(id)
		if !exists {
			respondErr(w, r, cserrors.NewNotFound("job", id))
			return
		}
		respond(w, http.StatusOK, job)
	case http.MethodDelete:
		if err := s.jobs.Cancel(id); err != nil {
			respondErr(w, r, err)
			return
		}
		s.hub.BroadcastJob(id, JobStatusCancelled, 0, "Job cancelled by user")
		respond(w, http.StatusOK, map[string]string{"message": "Job cancelled"})
	default:
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only GET and DELETE are allowed")
	}
}
