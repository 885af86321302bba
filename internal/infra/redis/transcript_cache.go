package redis

import (
	"context"
	"encoding/json"
	"time"

	"vidboost/internal/domain/model"
)

// TranscriptCache keeps hot transcripts in Redis so agent tool calls do not
// hit Postgres (or the provider) on every turn. The durable copy lives in
// the transcript store; this is read-through only.
type TranscriptCache struct {
	client RedisClient
	ttl    time.Duration
}

func NewTranscriptCache(client RedisClient, ttl time.Duration) *TranscriptCache {
	return &TranscriptCache{
		client: client,
		ttl:    ttl,
	}
}

func (c *TranscriptCache) Store(ctx context.Context, videoID string, segments []model.TranscriptSegment) error {
	key := "transcript:" + videoID
	data, err := json.Marshal(segments)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, data, c.ttl)
}

func (c *TranscriptCache) Get(ctx context.Context, videoID string) ([]model.TranscriptSegment, error) {
	key := "transcript:" + videoID
	data, err := c.client.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	var segments []model.TranscriptSegment
	if err := json.Unmarshal([]byte(data), &segments); err != nil {
		return nil, err
	}
	return segments, nil
}

func (c *TranscriptCache) Delete(ctx context.Context, videoID string) error {
	return c.client.Del(ctx, "transcript:"+videoID)
}
