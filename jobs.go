package main

import (
	"context"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var (
	jobCancellersMu sync.Mutex
	jobCancellers   = make(map[string]context.CancelFunc)
)

// Job is an asynchronous annotate request
type Job struct {
	ID        string    `json:"id"`
	Source    string    `json:"source"`
	Status    string    `json:"status"` // "pending", "in_progress", "completed", "failed", "cancelled"
	Error     string    `json:"error,omitempty"`
	RunID     uint      `json:"run_id,omitempty"`
	Flagged   int       `json:"flagged"`
	Skipped   int       `json:"skipped"`
	Overflow  int       `json:"overflow"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	input     AnnotateInput
	annotated []byte
}

// JobStore manages jobs and their statuses
type JobStore struct {
	sync.RWMutex
	jobs map[string]*Job
}

var (
	logger = logrus.New()

	jobStore = &JobStore{
		jobs: make(map[string]*Job),
	}
	jobQueue = make(chan *Job, 100) // Buffered channel with capacity of 100 jobs
)

func init() {
	logger.SetOutput(os.Stdout)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	logger.SetLevel(logrus.InfoLevel)
}

func generateJobID() string {
	return uuid.New().String()
}

func (store *JobStore) addJob(job *Job) {
	store.Lock()
	defer store.Unlock()
	now := time.Now()
	job.CreatedAt, job.UpdatedAt = now, now
	if job.Status == "" {
		job.Status = "pending"
	}
	store.jobs[job.ID] = job
	logger.WithField("job_id", job.ID).Infof("Job added for %s", job.Source)
}

// getJob returns a snapshot of the job so callers never race the worker.
func (store *JobStore) getJob(jobID string) (Job, bool) {
	store.RLock()
	defer store.RUnlock()
	job, exists := store.jobs[jobID]
	if !exists {
		return Job{}, false
	}
	return *job, true
}

func (store *JobStore) GetAllJobs() []Job {
	store.RLock()
	defer store.RUnlock()

	jobs := make([]Job, 0, len(store.jobs))
	for _, job := range store.jobs {
		jobs = append(jobs, *job)
	}

	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})

	return jobs
}

func (store *JobStore) updateJobStatus(jobID, status, errMsg string) {
	store.Lock()
	defer store.Unlock()
	if job, exists := store.jobs[jobID]; exists {
		job.Status = status
		if errMsg != "" {
			job.Error = errMsg
		}
		job.UpdatedAt = time.Now()
		logger.WithFields(logrus.Fields{"job_id": jobID, "status": status}).Info("Job status updated")
	}
}

func (store *JobStore) completeJob(jobID string, out *AnnotateOutput) {
	store.Lock()
	defer store.Unlock()
	job, exists := store.jobs[jobID]
	if !exists {
		return
	}
	job.Status = "completed"
	job.annotated = out.PNG
	job.Flagged = out.Summary.Flagged()
	job.Skipped = out.Summary.Skipped
	job.Overflow = out.Summary.Overflow
	if out.Run != nil {
		job.RunID = out.Run.ID
	}
	job.input = AnnotateInput{}
	job.UpdatedAt = time.Now()
	logger.WithFields(logrus.Fields{"job_id": jobID, "flagged": job.Flagged}).Info("Job completed")
}

func startWorkerPool(app *App, numWorkers int) {
	for i := 0; i < numWorkers; i++ {
		go func(workerID int) {
			logger.Infof("Worker %d started", workerID)
			for job := range jobQueue {
				logger.Infof("Worker %d processing job: %s", workerID, job.ID)
				processJob(app, job)
			}
		}(i)
	}
}

func processJob(app *App, job *Job) {
	jobStore.updateJobStatus(job.ID, "in_progress", "")

	jobCtx, cancel := context.WithCancel(context.Background())
	jobCancellersMu.Lock()
	jobCancellers[job.ID] = cancel
	jobCancellersMu.Unlock()
	defer func() {
		cancel()
		jobCancellersMu.Lock()
		delete(jobCancellers, job.ID)
		jobCancellersMu.Unlock()
	}()

	out, err := app.annotate(jobCtx, job.input)
	if err != nil {
		if jobCtx.Err() == context.Canceled {
			jobStore.updateJobStatus(job.ID, "cancelled", "Job cancelled by user")
			logger.Infof("Job cancelled: %s", job.ID)
		} else {
			logger.Errorf("Error annotating job %s: %v", job.ID, err)
			jobStore.updateJobStatus(job.ID, "failed", err.Error())
		}
		return
	}

	jobStore.completeJob(job.ID, out)
}

// cancelJob stops a running job. It reports whether the job was running.
func cancelJob(jobID string) bool {
	jobCancellersMu.Lock()
	defer jobCancellersMu.Unlock()
	cancel, ok := jobCancellers[jobID]
	if ok {
		cancel()
	}
	return ok
}

// annotatedImage returns the PNG of a completed job.
func (store *JobStore) annotatedImage(jobID string) ([]byte, bool) {
	store.RLock()
	defer store.RUnlock()
	job, exists := store.jobs[jobID]
	if !exists || job.annotated == nil {
		return nil, false
	}
	return job.annotated, true
}
