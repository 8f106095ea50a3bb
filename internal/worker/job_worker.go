package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/hibiken/asynq"

	"github.com/cleanlists/api/internal/client"
	"github.com/cleanlists/api/internal/model"
	"github.com/cleanlists/api/internal/repository"
	"github.com/cleanlists/api/internal/service"
	ws "github.com/cleanlists/api/internal/websocket"
)

// JobWorker processes clean-playlist jobs pulled off the queue.
type JobWorker struct {
	jobs      *repository.JobRepository
	tokens    *service.TokenService
	catalog   client.Catalog
	matcher   client.Matcher
	hub       *ws.Hub
	provider  string
	batchSize int
}

func NewJobWorker(jobs *repository.JobRepository, tokens *service.TokenService, catalog client.Catalog, matcher client.Matcher, hub *ws.Hub, provider string, batchSize int) *JobWorker {
	if batchSize <= 0 {
		batchSize = 20
	}
	return &JobWorker{
		jobs:      jobs,
		tokens:    tokens,
		catalog:   catalog,
		matcher:   matcher,
		hub:       hub,
		provider:  provider,
		batchSize: batchSize,
	}
}

// ProcessTask handles one queued job.
func (w *JobWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload service.CleanPlaylistTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal task payload: %w", err)
	}

	jobID := payload.JobID

	// The pending -> processing transition is the mutual-exclusion gate:
	// a second delivery of the same job id claims nothing and stops here.
	claimed, err := w.jobs.ClaimPending(jobID)
	if err != nil {
		return fmt.Errorf("failed to claim job %s: %w", jobID, err)
	}
	if !claimed {
		log.Printf("[JobWorker] job %s not claimable, skipping", jobID)
		return nil
	}

	log.Printf("[JobWorker] starting job %s", jobID)

	job, err := w.jobs.FindByID(jobID)
	if err != nil || job == nil {
		w.failJob(jobID, "job record unavailable")
		return fmt.Errorf("failed to load job %s: %v", jobID, err)
	}

	if err := w.process(ctx, job); err != nil {
		w.failJob(jobID, err.Error())
		return nil
	}

	log.Printf("[JobWorker] job %s completed", jobID)
	return nil
}

func (w *JobWorker) process(ctx context.Context, job *model.CleanPlaylistJob) error {
	accessToken, err := w.tokens.AccessToken(ctx, job.UserID, w.provider)
	if err != nil {
		return err
	}

	tracks, err := w.catalog.ListTracks(ctx, accessToken, job.SourcePlaylistID)
	if err != nil {
		return fmt.Errorf("failed to fetch source tracks: %w", err)
	}

	job.TotalTracks = len(tracks)
	if err := w.jobs.SetTotalTracks(job.ID, job.TotalTracks); err != nil {
		return err
	}

	batches := partition(tracks, w.batchSize)
	matched := 0
	var targetIDs []string

	for i, batch := range batches {
		label := fmt.Sprintf("batch %d of %d", i+1, len(batches))

		mappings, batchMatched, batchTargets, err := w.processBatch(ctx, accessToken, job, batch)
		if err != nil {
			// One retry per batch before the whole job fails.
			if client.IsTransient(err) {
				log.Printf("[JobWorker] job %s %s hit transient error, retrying batch: %v", job.ID, label, err)
				mappings, batchMatched, batchTargets, err = w.processBatch(ctx, accessToken, job, batch)
			}
			if err != nil {
				return fmt.Errorf("%s failed: %w", label, err)
			}
		}

		if err := w.jobs.CreateMappings(mappings); err != nil {
			return fmt.Errorf("failed to save mappings: %w", err)
		}

		matched += batchMatched
		targetIDs = append(targetIDs, batchTargets...)

		job.ProcessedTracks += len(batch)
		job.MatchedTracks = matched
		job.CurrentBatch = label
		if err := w.jobs.UpdateProgress(job.ID, job.ProcessedTracks, matched, label); err != nil {
			return err
		}
		w.hub.BroadcastProgress(job, fmt.Sprintf("Processed %d of %d tracks", job.ProcessedTracks, job.TotalTracks))
	}

	// Materialize the target playlist only when something was cleaned up.
	var targetID, targetName *string
	if matched > 0 {
		name := job.SourcePlaylistName + " (Clean)"
		if job.TargetPlaylistName != nil && *job.TargetPlaylistName != "" {
			name = *job.TargetPlaylistName
		}

		createdID, err := w.catalog.CreatePlaylist(ctx, accessToken, name, "Clean version generated from "+job.SourcePlaylistName)
		if err != nil {
			return fmt.Errorf("failed to create target playlist: %w", err)
		}
		if err := w.catalog.AddTracks(ctx, accessToken, createdID, targetIDs); err != nil {
			return fmt.Errorf("failed to populate target playlist: %w", err)
		}

		targetID = &createdID
		targetName = &name
	}

	if err := w.jobs.MarkCompleted(job.ID, targetID, targetName, matched); err != nil {
		return err
	}

	job.Status = model.JobStatusCompleted
	job.TargetPlaylistID = targetID
	job.TargetPlaylistName = targetName
	job.MatchedTracks = matched
	w.hub.BroadcastCompleted(job)
	return nil
}

// processBatch maps one batch of source tracks. Non-explicit tracks pass
// through unchanged; explicit ones go through the matching port. The
// returned target ids preserve source order, keeping the original track
// when no clean alternative exists.
func (w *JobWorker) processBatch(ctx context.Context, accessToken string, job *model.CleanPlaylistJob, batch []client.Track) ([]*model.TrackMapping, int, []string, error) {
	mappings := make([]*model.TrackMapping, 0, len(batch))
	targetIDs := make([]string, 0, len(batch))
	matched := 0

	for i, track := range batch {
		mapping := &model.TrackMapping{
			JobID:            job.ID,
			Position:         job.ProcessedTracks + i,
			SourceTrackID:    track.ID,
			SourceTrackName:  track.Name,
			SourceArtistName: track.Artist(),
			IsExplicit:       track.Explicit,
		}

		if track.Explicit {
			candidate, err := w.matcher.FindCleanAlternative(ctx, accessToken, track)
			if err != nil {
				return nil, 0, nil, err
			}
			if candidate != nil {
				mapping.HasCleanMatch = true
				mapping.TargetTrackID = &candidate.ID
				mapping.TargetTrackName = &candidate.Name
				artist := candidate.Artist()
				mapping.TargetArtistName = &artist
				matched++
				targetIDs = append(targetIDs, candidate.ID)
			} else {
				targetIDs = append(targetIDs, track.ID)
			}
		} else {
			targetIDs = append(targetIDs, track.ID)
		}

		mappings = append(mappings, mapping)
	}

	return mappings, matched, targetIDs, nil
}

func (w *JobWorker) failJob(jobID, errMsg string) {
	if err := w.jobs.MarkFailed(jobID, errMsg); err != nil {
		log.Printf("[JobWorker] failed to mark job %s as failed: %v", jobID, err)
	}
	w.hub.BroadcastFailed(jobID, errMsg)
}

func partition(tracks []client.Track, size int) [][]client.Track {
	var batches [][]client.Track
	for len(tracks) > size {
		batches = append(batches, tracks[:size])
		tracks = tracks[size:]
	}
	if len(tracks) > 0 {
		batches = append(batches, tracks)
	}
	return batches
}
