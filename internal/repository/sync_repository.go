package repository

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/cleanlists/api/internal/model"
)

// SyncRepository persists sync configs and their append-only history.
type SyncRepository struct {
	db *gorm.DB
}

func NewSyncRepository(db *gorm.DB) *SyncRepository {
	return &SyncRepository{db: db}
}

func (r *SyncRepository) CreateConfig(config *model.SyncConfig) error {
	if config.ID == "" {
		config.ID = uuid.New().String()
	}
	return r.db.Create(config).Error
}

func (r *SyncRepository) FindConfigByID(id string) (*model.SyncConfig, error) {
	var config model.SyncConfig
	err := r.db.Where("id = ?", id).First(&config).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &config, nil
}

func (r *SyncRepository) FindConfigByUserAndJob(userID, jobID string) (*model.SyncConfig, error) {
	var config model.SyncConfig
	err := r.db.Where("user_id = ? AND job_id = ?", userID, jobID).First(&config).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &config, nil
}

func (r *SyncRepository) ListConfigsByUser(userID string) ([]*model.SyncConfig, error) {
	var configs []*model.SyncConfig
	err := r.db.Where("user_id = ?", userID).Order("created_at DESC").Find(&configs).Error
	return configs, err
}

// Due returns active configs whose next scheduled sync has passed. This is
// the scheduler's single polling query.
func (r *SyncRepository) Due(now time.Time) ([]*model.SyncConfig, error) {
	var configs []*model.SyncConfig
	err := r.db.Where("is_active = ? AND next_scheduled_sync <= ?", true, now).Find(&configs).Error
	return configs, err
}

func (r *SyncRepository) SaveConfig(config *model.SyncConfig) error {
	return r.db.Save(config).Error
}

func (r *SyncRepository) Disable(id string) error {
	return r.db.Model(&model.SyncConfig{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"is_active":  false,
			"updated_at": time.Now(),
		}).Error
}

// UpdateAfterSync records the outcome of one sync run and advances the
// schedule. The schedule advances on failure too, so a broken config does
// not retry every tick.
func (r *SyncRepository) UpdateAfterSync(id string, status model.SyncStatus, syncError string, next time.Time) error {
	now := time.Now()
	return r.db.Model(&model.SyncConfig{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"last_synced_at":      now,
			"last_sync_status":    status,
			"last_sync_error":     syncError,
			"next_scheduled_sync": next,
			"updated_at":          now,
		}).Error
}

func (r *SyncRepository) CreateHistory(history *model.SyncHistory) error {
	if history.ID == "" {
		history.ID = uuid.New().String()
	}
	return r.db.Create(history).Error
}

func (r *SyncRepository) CloseHistory(id string, status model.SyncStatus, added, removed, unchanged int, errorMessage string, executionTimeMs int64) error {
	now := time.Now()
	return r.db.Model(&model.SyncHistory{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":            status,
			"tracks_added":      added,
			"tracks_removed":    removed,
			"tracks_unchanged":  unchanged,
			"error_message":     errorMessage,
			"execution_time_ms": executionTimeMs,
			"completed_at":      now,
		}).Error
}

func (r *SyncRepository) HistoryByConfig(configID string, limit int) ([]*model.SyncHistory, error) {
	var history []*model.SyncHistory
	query := r.db.Where("sync_config_id = ?", configID).Order("started_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&history).Error
	return history, err
}
