package model

import "time"

// Video is a user-registered reference to a provider (YouTube) video.
// (provider_video_id, user_id) is unique at the store.
type Video struct {
	ID              string
	ProviderVideoID string
	UserID          string
	CreatedAt       time.Time
}

func NewVideo(id, providerVideoID, userID string) *Video {
	return &Video{
		ID:              id,
		ProviderVideoID: providerVideoID,
		UserID:          userID,
		CreatedAt:       time.Now(),
	}
}

// VideoInfo is the metadata snapshot fetched from the provider.
// It is never persisted; every consumer fetches it fresh.
type VideoInfo struct {
	Title        string  `json:"title"`
	Description  string  `json:"description"`
	Duration     string  `json:"duration"`
	ViewCount    int64   `json:"view_count"`
	LikeCount    int64   `json:"like_count"`
	CommentCount int64   `json:"comment_count"`
	PublishedAt  string  `json:"published_at"`
	Channel      Channel `json:"channel"`
}

type Channel struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// TranscriptSegment is one caption line with its start offset in seconds.
type TranscriptSegment struct {
	Text      string  `json:"text"`
	Timestamp float64 `json:"timestamp"`
}

// Transcript is the stored caption track for a video; one per video.
type Transcript struct {
	VideoID   string
	Segments  []TranscriptSegment
	CreatedAt time.Time
}

// GeneratedTitle is a title produced by the title model for a video.
type GeneratedTitle struct {
	ID        string
	VideoID   string
	Title     string
	CreatedAt time.Time
}

// GeneratedImage records a thumbnail uploaded to object storage.
// ObjectKey addresses the blob; URLs are presigned on demand.
type GeneratedImage struct {
	ID        string
	VideoID   string
	ObjectKey string
	CreatedAt time.Time
}
