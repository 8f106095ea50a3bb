package repository

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/cleanlists/api/internal/model"
)

// JobRepository persists clean-playlist jobs and their track mappings.
type JobRepository struct {
	db *gorm.DB
}

func NewJobRepository(db *gorm.DB) *JobRepository {
	return &JobRepository{db: db}
}

func (r *JobRepository) Create(job *model.CleanPlaylistJob) error {
	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	return r.db.Create(job).Error
}

func (r *JobRepository) FindByID(id string) (*model.CleanPlaylistJob, error) {
	var job model.CleanPlaylistJob
	err := r.db.Where("id = ?", id).First(&job).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &job, nil
}

func (r *JobRepository) FindByUser(userID string) ([]*model.CleanPlaylistJob, error) {
	var jobs []*model.CleanPlaylistJob
	err := r.db.Where("user_id = ?", userID).Order("created_at DESC").Find(&jobs).Error
	return jobs, err
}

// ClaimPending atomically moves a job from pending to processing. The
// conditional update is the mutual-exclusion gate: when two workers race,
// only one sees a row affected.
func (r *JobRepository) ClaimPending(id string) (bool, error) {
	now := time.Now()
	result := r.db.Model(&model.CleanPlaylistJob{}).
		Where("id = ? AND status = ?", id, model.JobStatusPending).
		Updates(map[string]interface{}{
			"status":     model.JobStatusProcessing,
			"started_at": now,
			"updated_at": now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *JobRepository) SetTotalTracks(id string, total int) error {
	return r.db.Model(&model.CleanPlaylistJob{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"total_tracks": total,
			"updated_at":   time.Now(),
		}).Error
}

// UpdateProgress persists a batch checkpoint.
func (r *JobRepository) UpdateProgress(id string, processed, matched int, currentBatch string) error {
	return r.db.Model(&model.CleanPlaylistJob{}).
		Where("id = ? AND status = ?", id, model.JobStatusProcessing).
		Updates(map[string]interface{}{
			"processed_tracks": processed,
			"matched_tracks":   matched,
			"current_batch":    currentBatch,
			"updated_at":       time.Now(),
		}).Error
}

// MarkCompleted closes the job. Guarded on processing so a terminal state
// is never overwritten.
func (r *JobRepository) MarkCompleted(id string, targetID, targetName *string, matched int) error {
	now := time.Now()
	return r.db.Model(&model.CleanPlaylistJob{}).
		Where("id = ? AND status = ?", id, model.JobStatusProcessing).
		Updates(map[string]interface{}{
			"status":               model.JobStatusCompleted,
			"target_playlist_id":   targetID,
			"target_playlist_name": targetName,
			"matched_tracks":       matched,
			"completed_at":         now,
			"updated_at":           now,
		}).Error
}

func (r *JobRepository) MarkFailed(id, errorMessage string) error {
	now := time.Now()
	return r.db.Model(&model.CleanPlaylistJob{}).
		Where("id = ? AND status IN ?", id, []model.JobStatus{model.JobStatusPending, model.JobStatusProcessing}).
		Updates(map[string]interface{}{
			"status":        model.JobStatusFailed,
			"error_message": errorMessage,
			"completed_at":  now,
			"updated_at":    now,
		}).Error
}

func (r *JobRepository) CreateMappings(mappings []*model.TrackMapping) error {
	if len(mappings) == 0 {
		return nil
	}
	for _, m := range mappings {
		if m.ID == "" {
			m.ID = uuid.New().String()
		}
	}
	return r.db.Create(mappings).Error
}

func (r *JobRepository) MappingsByJob(jobID string) ([]*model.TrackMapping, error) {
	var mappings []*model.TrackMapping
	err := r.db.Where("job_id = ?", jobID).Order("position ASC").Find(&mappings).Error
	return mappings, err
}
