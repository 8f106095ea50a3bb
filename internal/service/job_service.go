package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/cleanlists/api/internal/client"
	"github.com/cleanlists/api/internal/model"
	"github.com/cleanlists/api/internal/repository"
)

// TaskTypeCleanPlaylist is the asynq task type for job processing.
const TaskTypeCleanPlaylist = "job:clean_playlist"

// QueueCleanPlaylist is the asynq queue jobs are enqueued on.
const QueueCleanPlaylist = "cleanify"

var (
	ErrJobNotFound        = errors.New("job not found")
	ErrPlaylistNotVisible = errors.New("source playlist not found or not accessible")
)

// CleanPlaylistTaskPayload is what travels through the queue. The job row
// itself is the source of truth; the payload only identifies it.
type CleanPlaylistTaskPayload struct {
	JobID string `json:"jobId"`
}

// JobService owns job creation and reads. Processing happens in the worker.
type JobService struct {
	jobs        *repository.JobRepository
	tokens      *TokenService
	catalog     client.Catalog
	asynqClient *asynq.Client
	provider    string
}

func NewJobService(jobs *repository.JobRepository, tokens *TokenService, catalog client.Catalog, asynqClient *asynq.Client, provider string) *JobService {
	return &JobService{
		jobs:        jobs,
		tokens:      tokens,
		catalog:     catalog,
		asynqClient: asynqClient,
		provider:    provider,
	}
}

// Create validates the source playlist is visible to the user, inserts a
// pending job and enqueues it. Returns immediately; the caller does not
// block on processing.
func (s *JobService) Create(ctx context.Context, userID string, req *model.CreateJobRequest) (*model.CleanPlaylistJob, error) {
	accessToken, err := s.tokens.AccessToken(ctx, userID, s.provider)
	if err != nil {
		return nil, err
	}

	playlist, err := s.catalog.GetPlaylist(ctx, accessToken, req.SourcePlaylistID)
	if err != nil || playlist == nil {
		return nil, ErrPlaylistNotVisible
	}

	job := &model.CleanPlaylistJob{
		ID:                 uuid.New().String(),
		UserID:             userID,
		SourcePlaylistID:   playlist.ID,
		SourcePlaylistName: playlist.Name,
		Status:             model.JobStatusPending,
	}
	if req.TargetName != "" {
		name := req.TargetName
		job.TargetPlaylistName = &name
	}

	if err := s.jobs.Create(job); err != nil {
		return nil, fmt.Errorf("failed to save job: %w", err)
	}

	task, err := newCleanPlaylistTask(job.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	// The engine owns its own failure semantics; asynq must not re-run a
	// job that moved to a terminal state.
	_, err = s.asynqClient.Enqueue(task,
		asynq.Queue(QueueCleanPlaylist),
		asynq.MaxRetry(0),
		asynq.Retention(24*time.Hour),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue job: %w", err)
	}

	return job, nil
}

// Get returns a job owned by the user.
func (s *JobService) Get(ctx context.Context, userID, jobID string) (*model.CleanPlaylistJob, error) {
	job, err := s.jobs.FindByID(jobID)
	if err != nil {
		return nil, err
	}
	if job == nil || job.UserID != userID {
		return nil, ErrJobNotFound
	}
	return job, nil
}

// List returns the user's jobs, newest first.
func (s *JobService) List(ctx context.Context, userID string) ([]*model.CleanPlaylistJob, error) {
	return s.jobs.FindByUser(userID)
}

// Mappings returns the per-track outcomes of a job in source order.
func (s *JobService) Mappings(ctx context.Context, userID, jobID string) ([]*model.TrackMapping, error) {
	job, err := s.Get(ctx, userID, jobID)
	if err != nil {
		return nil, err
	}
	return s.jobs.MappingsByJob(job.ID)
}

func newCleanPlaylistTask(jobID string) (*asynq.Task, error) {
	data, err := json.Marshal(CleanPlaylistTaskPayload{JobID: jobID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeCleanPlaylist, data), nil
}
