package model

// WebSocket event types for the per-job progress stream.
const (
	EventTypeProgress  = "progress-update"
	EventTypeCompleted = "job-completed"
	EventTypeFailed    = "job-failed"
	EventTypeHeartbeat = "heartbeat"
)

// ProgressEvent is pushed after every processed batch.
type ProgressEvent struct {
	Type            string `json:"type"`
	JobID           string `json:"jobId"`
	Progress        int    `json:"progress"`
	ProcessedTracks int    `json:"processedTracks"`
	TotalTracks     int    `json:"totalTracks"`
	CurrentBatch    string `json:"currentBatch,omitempty"`
	Message         string `json:"message,omitempty"`
}

// CompletedEvent terminates the stream for a successful job.
type CompletedEvent struct {
	Type               string  `json:"type"`
	JobID              string  `json:"jobId"`
	TargetPlaylistID   *string `json:"targetPlaylistId,omitempty"`
	TargetPlaylistName *string `json:"targetPlaylistName,omitempty"`
	MatchedTracks      int     `json:"matchedTracks"`
	TotalTracks        int     `json:"totalTracks"`
}

// FailedEvent terminates the stream for a failed job.
type FailedEvent struct {
	Type  string `json:"type"`
	JobID string `json:"jobId"`
	Error string `json:"error"`
}

// HeartbeatEvent keeps long-lived connections able to detect silent failure.
type HeartbeatEvent struct {
	Type  string `json:"type"`
	JobID string `json:"jobId"`
}
