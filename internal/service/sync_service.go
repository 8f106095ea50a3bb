package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/cleanlists/api/internal/client"
	"github.com/cleanlists/api/internal/model"
	"github.com/cleanlists/api/internal/repository"
)

var (
	ErrSyncNotFound         = errors.New("sync config not found")
	ErrJobNotEligible       = errors.New("job is not eligible for sync")
	ErrSubscriptionRequired = errors.New("active subscription required")
)

// SyncService owns recurring reconciliation of target playlists against
// their sources.
type SyncService struct {
	syncs         *repository.SyncRepository
	jobs          *repository.JobRepository
	subscriptions *repository.SubscriptionRepository
	tokens        *TokenService
	catalog       client.Catalog
	matcher       client.Matcher
	provider      string
}

func NewSyncService(
	syncs *repository.SyncRepository,
	jobs *repository.JobRepository,
	subscriptions *repository.SubscriptionRepository,
	tokens *TokenService,
	catalog client.Catalog,
	matcher client.Matcher,
	provider string,
) *SyncService {
	return &SyncService{
		syncs:         syncs,
		jobs:          jobs,
		subscriptions: subscriptions,
		tokens:        tokens,
		catalog:       catalog,
		matcher:       matcher,
		provider:      provider,
	}
}

// Enable registers recurring sync for a completed job. The subscription is
// checked here, at enable-time, and not continuously enforced afterwards.
func (s *SyncService) Enable(ctx context.Context, userID, jobID string, frequency model.SyncFrequency) (*model.SyncConfig, error) {
	job, err := s.jobs.FindByID(jobID)
	if err != nil {
		return nil, err
	}
	if job == nil || job.UserID != userID {
		return nil, ErrJobNotFound
	}
	if job.Status != model.JobStatusCompleted || job.TargetPlaylistID == nil {
		return nil, ErrJobNotEligible
	}

	sub, err := s.subscriptions.FindByUser(userID)
	if err != nil {
		return nil, err
	}
	if sub == nil || !sub.Active() {
		return nil, ErrSubscriptionRequired
	}

	if frequency == "" {
		frequency = model.SyncFrequencyDaily
	}

	// One config per (user, job); re-enabling a disabled one reactivates it.
	config, err := s.syncs.FindConfigByUserAndJob(userID, jobID)
	if err != nil {
		return nil, err
	}
	if config != nil {
		config.IsActive = true
		config.SyncFrequency = frequency
		config.NextScheduledSync = time.Now().Add(config.Interval())
		if err := s.syncs.SaveConfig(config); err != nil {
			return nil, err
		}
		return config, nil
	}

	config = &model.SyncConfig{
		UserID:           userID,
		JobID:            jobID,
		SourcePlaylistID: job.SourcePlaylistID,
		TargetPlaylistID: *job.TargetPlaylistID,
		IsActive:         true,
		SyncFrequency:    frequency,
	}
	config.NextScheduledSync = time.Now().Add(config.Interval())

	if err := s.syncs.CreateConfig(config); err != nil {
		return nil, err
	}
	return config, nil
}

// Disable is an ownership-checked soft disable; history is kept.
func (s *SyncService) Disable(ctx context.Context, userID, configID string) error {
	config, err := s.syncs.FindConfigByID(configID)
	if err != nil {
		return err
	}
	if config == nil || config.UserID != userID {
		return ErrSyncNotFound
	}
	return s.syncs.Disable(config.ID)
}

// List returns the user's sync configs.
func (s *SyncService) List(ctx context.Context, userID string) ([]*model.SyncConfig, error) {
	return s.syncs.ListConfigsByUser(userID)
}

// History returns recent attempts for an owned config.
func (s *SyncService) History(ctx context.Context, userID, configID string, limit int) ([]*model.SyncHistory, error) {
	config, err := s.syncs.FindConfigByID(configID)
	if err != nil {
		return nil, err
	}
	if config == nil || config.UserID != userID {
		return nil, ErrSyncNotFound
	}
	return s.syncs.HistoryByConfig(config.ID, limit)
}

// Due returns active configs whose scheduled time has passed.
func (s *SyncService) Due(now time.Time) ([]*model.SyncConfig, error) {
	return s.syncs.Due(now)
}

// RunForUser executes a manual sync after an ownership check.
func (s *SyncService) RunForUser(ctx context.Context, userID, configID string) (*model.SyncHistory, error) {
	config, err := s.syncs.FindConfigByID(configID)
	if err != nil {
		return nil, err
	}
	if config == nil || config.UserID != userID {
		return nil, ErrSyncNotFound
	}
	return s.Run(ctx, config)
}

// Run executes one sync attempt: open a history row, diff the clean set
// derived from the source against the live target, apply the difference,
// close the row. A failure closes the row as failed and still advances the
// schedule so a broken config cannot retry every tick.
func (s *SyncService) Run(ctx context.Context, config *model.SyncConfig) (*model.SyncHistory, error) {
	start := time.Now()
	history := &model.SyncHistory{
		SyncConfigID: config.ID,
		StartedAt:    start,
		Status:       model.SyncStatusRunning,
	}
	if err := s.syncs.CreateHistory(history); err != nil {
		return nil, err
	}

	added, removed, unchanged, err := s.reconcile(ctx, config)
	elapsed := time.Since(start).Milliseconds()

	if err != nil {
		msg := err.Error()
		if closeErr := s.syncs.CloseHistory(history.ID, model.SyncStatusFailed, 0, 0, 0, msg, elapsed); closeErr != nil {
			log.Printf("[SyncService] failed to close history %s: %v", history.ID, closeErr)
		}
		next := time.Now().Add(config.Interval())
		if updErr := s.syncs.UpdateAfterSync(config.ID, model.SyncStatusFailed, msg, next); updErr != nil {
			log.Printf("[SyncService] failed to update config %s: %v", config.ID, updErr)
		}
		history.Status = model.SyncStatusFailed
		history.ErrorMessage = msg
		history.ExecutionTimeMs = elapsed
		return history, err
	}

	if err := s.syncs.CloseHistory(history.ID, model.SyncStatusCompleted, added, removed, unchanged, "", elapsed); err != nil {
		return nil, err
	}
	next := time.Now().Add(config.Interval())
	if err := s.syncs.UpdateAfterSync(config.ID, model.SyncStatusCompleted, "", next); err != nil {
		return nil, err
	}

	history.Status = model.SyncStatusCompleted
	history.TracksAdded = added
	history.TracksRemoved = removed
	history.TracksUnchanged = unchanged
	history.ExecutionTimeMs = elapsed
	return history, nil
}

// reconcile computes and applies the diff. Identity is the clean-alternative
// track id, not the raw source id, which makes re-runs idempotent.
func (s *SyncService) reconcile(ctx context.Context, config *model.SyncConfig) (added, removed, unchanged int, err error) {
	accessToken, err := s.tokens.AccessToken(ctx, config.UserID, s.provider)
	if err != nil {
		return 0, 0, 0, err
	}

	sourceTracks, err := s.catalog.ListTracks(ctx, accessToken, config.SourcePlaylistID)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("failed to fetch source playlist: %w", err)
	}

	desired, err := s.deriveCleanSet(ctx, accessToken, sourceTracks)
	if err != nil {
		return 0, 0, 0, err
	}

	targetTracks, err := s.catalog.ListTracks(ctx, accessToken, config.TargetPlaylistID)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("failed to fetch target playlist: %w", err)
	}

	current := make(map[string]bool, len(targetTracks))
	for _, t := range targetTracks {
		current[t.ID] = true
	}

	var toAdd []string
	for _, id := range desired {
		if current[id] {
			unchanged++
		} else {
			toAdd = append(toAdd, id)
		}
	}

	desiredSet := make(map[string]bool, len(desired))
	for _, id := range desired {
		desiredSet[id] = true
	}
	var toRemove []string
	for _, t := range targetTracks {
		if !desiredSet[t.ID] {
			toRemove = append(toRemove, t.ID)
		}
	}

	if len(toAdd) > 0 {
		if err := s.catalog.AddTracks(ctx, accessToken, config.TargetPlaylistID, toAdd); err != nil {
			return 0, 0, 0, fmt.Errorf("failed to add tracks: %w", err)
		}
	}
	if len(toRemove) > 0 {
		if err := s.catalog.RemoveTracks(ctx, accessToken, config.TargetPlaylistID, toRemove); err != nil {
			return 0, 0, 0, fmt.Errorf("failed to remove tracks: %w", err)
		}
	}

	return len(toAdd), len(toRemove), unchanged, nil
}

// deriveCleanSet maps source tracks to the ids the target should contain:
// the clean alternative for matched explicit tracks, the original otherwise.
func (s *SyncService) deriveCleanSet(ctx context.Context, accessToken string, sourceTracks []client.Track) ([]string, error) {
	seen := make(map[string]bool, len(sourceTracks))
	ids := make([]string, 0, len(sourceTracks))

	for _, track := range sourceTracks {
		id := track.ID
		if track.Explicit {
			match, err := s.matcher.FindCleanAlternative(ctx, accessToken, track)
			if err != nil {
				return nil, fmt.Errorf("match lookup failed for %q: %w", track.Name, err)
			}
			if match != nil {
				id = match.ID
			}
		}
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}

	return ids, nil
}
