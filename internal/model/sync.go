package model

import "time"

// SyncConfig is a recurring reconciliation schedule for a completed job's
// source/target playlist pair. Unique per (user, job). Disabled softly via
// IsActive, never deleted.
type SyncConfig struct {
	ID                string        `json:"id" gorm:"primaryKey"`
	UserID            string        `json:"userId" gorm:"index;not null;uniqueIndex:ux_sync_configs_user_job,priority:1"`
	JobID             string        `json:"jobId" gorm:"not null;uniqueIndex:ux_sync_configs_user_job,priority:2"`
	SourcePlaylistID  string        `json:"sourcePlaylistId" gorm:"not null"`
	TargetPlaylistID  string        `json:"targetPlaylistId" gorm:"not null"`
	IsActive          bool          `json:"isActive" gorm:"index;default:true"`
	SyncFrequency     SyncFrequency `json:"syncFrequency" gorm:"default:daily"`
	LastSyncedAt      *time.Time    `json:"lastSyncedAt,omitempty"`
	LastSyncStatus    SyncStatus    `json:"lastSyncStatus,omitempty"`
	LastSyncError     string        `json:"lastSyncError,omitempty"`
	NextScheduledSync time.Time     `json:"nextScheduledSync" gorm:"index"`
	CreatedAt         time.Time     `json:"createdAt"`
	UpdatedAt         time.Time     `json:"updatedAt"`
}

// Interval converts the frequency into a scheduling offset.
func (c *SyncConfig) Interval() time.Duration {
	switch c.SyncFrequency {
	case SyncFrequencyWeekly:
		return 7 * 24 * time.Hour
	case SyncFrequencyMonthly:
		return 30 * 24 * time.Hour
	default:
		return 24 * time.Hour
	}
}

// SyncHistory is an append-only record of one sync attempt.
type SyncHistory struct {
	ID              string     `json:"id" gorm:"primaryKey"`
	SyncConfigID    string     `json:"syncConfigId" gorm:"index;not null"`
	StartedAt       time.Time  `json:"startedAt"`
	CompletedAt     *time.Time `json:"completedAt,omitempty"`
	Status          SyncStatus `json:"status" gorm:"default:running"`
	TracksAdded     int        `json:"tracksAdded"`
	TracksRemoved   int        `json:"tracksRemoved"`
	TracksUnchanged int        `json:"tracksUnchanged"`
	ErrorMessage    string     `json:"errorMessage,omitempty"`
	ExecutionTimeMs int64      `json:"executionTimeMs"`
	CreatedAt       time.Time  `json:"createdAt"`
}
