package model

import "time"

type AnalysisJobStatus string

const (
	AnalysisJobStatusPending    AnalysisJobStatus = "PENDING"
	AnalysisJobStatusStarted    AnalysisJobStatus = "STARTED"
	AnalysisJobStatusProcessing AnalysisJobStatus = "PROCESSING"
	AnalysisJobStatusRetry      AnalysisJobStatus = "RETRY"
	AnalysisJobStatusCompleted  AnalysisJobStatus = "COMPLETED"
	AnalysisJobStatusFailed     AnalysisJobStatus = "FAILED"
)

// AnalysisJob tracks one background fetch of video metadata + transcript.
// A single worker owns the instance for its whole lifetime; nothing else
// mutates it. Terminal states are COMPLETED and FAILED.
type AnalysisJob struct {
	ID        string
	VideoID   string
	Status    AnalysisJobStatus
	Attempts  int
	LastError string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func NewAnalysisJob(id, videoID string) *AnalysisJob {
	now := time.Now()
	return &AnalysisJob{
		ID:        id,
		VideoID:   videoID,
		Status:    AnalysisJobStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// AnalysisResult is the aggregated payload published on COMPLETED and
// returned to callers. Transcript is null when the stored copy was reused;
// the cache hit is a result property, not a skipped progress step.
type AnalysisResult struct {
	VideoInfo       *VideoInfo          `json:"video_info"`
	VideoTranscript []TranscriptSegment `json:"video_transcript"`
}
