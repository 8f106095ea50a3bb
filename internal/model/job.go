package model

import "time"

// CleanPlaylistJob is a one-shot job that builds a clean version of a
// source playlist. Mutated only by the job engine; never deleted by it.
type CleanPlaylistJob struct {
	ID                 string     `json:"id" gorm:"primaryKey"`
	UserID             string     `json:"userId" gorm:"index;not null"`
	SourcePlaylistID   string     `json:"sourcePlaylistId" gorm:"not null"`
	SourcePlaylistName string     `json:"sourcePlaylistName"`
	TargetPlaylistID   *string    `json:"targetPlaylistId,omitempty"`
	TargetPlaylistName *string    `json:"targetPlaylistName,omitempty"`
	Status             JobStatus  `json:"status" gorm:"index;default:pending"`
	TotalTracks        int        `json:"totalTracks"`
	ProcessedTracks    int        `json:"processedTracks"`
	MatchedTracks      int        `json:"matchedTracks"`
	CurrentBatch       string     `json:"currentBatch,omitempty"`
	ErrorMessage       string     `json:"errorMessage,omitempty"`
	StartedAt          *time.Time `json:"startedAt,omitempty"`
	CompletedAt        *time.Time `json:"completedAt,omitempty"`
	CreatedAt          time.Time  `json:"createdAt"`
	UpdatedAt          time.Time  `json:"updatedAt"`
}

// Progress returns completion as a percentage in [0,100].
func (j *CleanPlaylistJob) Progress() int {
	if j.TotalTracks == 0 {
		return 0
	}
	return j.ProcessedTracks * 100 / j.TotalTracks
}

// TrackMapping records the outcome for one source track within a job.
// Rows are written in bulk during processing and immutable afterwards.
type TrackMapping struct {
	ID               string    `json:"id" gorm:"primaryKey"`
	JobID            string    `json:"jobId" gorm:"index;not null"`
	Position         int       `json:"position"`
	SourceTrackID    string    `json:"sourceTrackId" gorm:"not null"`
	SourceTrackName  string    `json:"sourceTrackName"`
	SourceArtistName string    `json:"sourceArtistName"`
	IsExplicit       bool      `json:"isExplicit"`
	TargetTrackID    *string   `json:"targetTrackId,omitempty"`
	TargetTrackName  *string   `json:"targetTrackName,omitempty"`
	TargetArtistName *string   `json:"targetArtistName,omitempty"`
	HasCleanMatch    bool      `json:"hasCleanMatch"`
	CreatedAt        time.Time `json:"createdAt"`
}
