package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"vidboost/internal/domain"
	"vidboost/internal/domain/model"
	"vidboost/internal/domain/ports/adapter"
	"vidboost/internal/domain/ports/repository"
	"vidboost/internal/infra/broadcast"
	"vidboost/internal/infra/metrics"
	"vidboost/internal/infra/redis"
)

// AnalysisRunner executes video analysis jobs on the pool and publishes
// lifecycle events to the fabric. Each job is owned by exactly one worker;
// retries are an explicit bounded loop with a fixed backoff, not
// re-submission.
type AnalysisRunner struct {
	videos      repository.VideoRepository
	transcripts repository.TranscriptRepository
	jobs        repository.AnalysisJobRepository
	provider    adapter.VideoDataAdapter
	hub         *broadcast.Hub
	pool        *Pool
	cache       *redis.TranscriptCache // optional

	maxAttempts  int
	backoff      time.Duration
	fetchTimeout time.Duration
	log          *zerolog.Logger
}

func NewAnalysisRunner(
	videos repository.VideoRepository,
	transcripts repository.TranscriptRepository,
	jobs repository.AnalysisJobRepository,
	provider adapter.VideoDataAdapter,
	hub *broadcast.Hub,
	pool *Pool,
	cache *redis.TranscriptCache,
	maxAttempts int,
	backoff time.Duration,
	fetchTimeout time.Duration,
	log *zerolog.Logger,
) *AnalysisRunner {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if backoff <= 0 {
		backoff = 60 * time.Second
	}
	if fetchTimeout <= 0 {
		fetchTimeout = 30 * time.Second
	}
	return &AnalysisRunner{
		videos:       videos,
		transcripts:  transcripts,
		jobs:         jobs,
		provider:     provider,
		hub:          hub,
		pool:         pool,
		cache:        cache,
		maxAttempts:  maxAttempts,
		backoff:      backoff,
		fetchTimeout: fetchTimeout,
		log:          log,
	}
}

// Submit enqueues an analysis job for videoID and returns its id
// synchronously. Execution happens off the calling path; progress is
// observable on broadcast.TaskTopic(jobID).
func (r *AnalysisRunner) Submit(ctx context.Context, videoID string) (string, error) {
	job := model.NewAnalysisJob(ulid.Make().String(), videoID)
	if err := r.jobs.Save(ctx, nil, job); err != nil {
		return "", fmt.Errorf("persist job: %w", err)
	}
	if err := r.pool.Submit(func(ctx context.Context) error {
		r.run(ctx, job)
		return nil
	}); err != nil {
		return "", domain.ErrQueueSaturated
	}
	return job.ID, nil
}

func (r *AnalysisRunner) run(ctx context.Context, job *model.AnalysisJob) {
	topic := broadcast.TaskTopic(job.ID)
	start := time.Now()

	for {
		result, err := r.attempt(ctx, job)
		if err == nil {
			job.Status = model.AnalysisJobStatusCompleted
			job.LastError = ""
			r.saveJob(job)
			r.publish(topic, job.ID, "Video data fetched successfully", model.AnalysisJobStatusCompleted, result)
			metrics.ObserveJob("completed", job.Attempts+1, time.Since(start).Milliseconds())
			r.log.Info().Str("job_id", job.ID).Int("attempts", job.Attempts).Msg("analysis job completed")
			return
		}

		if errors.Is(err, domain.ErrNotFound) {
			// terminal: a missing video is never retried
			job.Status = model.AnalysisJobStatusFailed
			job.LastError = err.Error()
			r.saveJob(job)
			r.publish(topic, job.ID, err.Error(), model.AnalysisJobStatusFailed, nil)
			metrics.ObserveJob("failed", job.Attempts+1, time.Since(start).Milliseconds())
			r.log.Error().Str("job_id", job.ID).Str("video_id", job.VideoID).Msg("video does not exist")
			return
		}

		if job.Attempts >= r.maxAttempts {
			job.Status = model.AnalysisJobStatusFailed
			job.LastError = err.Error()
			r.saveJob(job)
			r.publish(topic, job.ID, "Video data fetch failed: "+err.Error(), model.AnalysisJobStatusFailed, nil)
			metrics.ObserveJob("failed", job.Attempts+1, time.Since(start).Milliseconds())
			r.log.Error().Err(err).Str("job_id", job.ID).Int("attempts", job.Attempts).Msg("analysis job exhausted retries")
			return
		}

		job.Attempts++
		job.Status = model.AnalysisJobStatusRetry
		job.LastError = err.Error()
		r.saveJob(job)
		r.publish(topic, job.ID, "Retry fetching video info: "+err.Error(), model.AnalysisJobStatusRetry, nil)
		r.log.Warn().Err(err).Str("job_id", job.ID).Int("attempt", job.Attempts).Msg("analysis attempt failed, retrying")

		select {
		case <-ctx.Done():
			return
		case <-time.After(r.backoff):
		}
	}
}

// attempt runs one full pass of the job's phases. A wrapped
// domain.ErrNotFound is terminal; any other error is transient.
func (r *AnalysisRunner) attempt(ctx context.Context, job *model.AnalysisJob) (*model.AnalysisResult, error) {
	topic := broadcast.TaskTopic(job.ID)

	job.Status = model.AnalysisJobStatusStarted
	r.saveJob(job)
	r.publish(topic, job.ID, "Starting video data fetch...", model.AnalysisJobStatusStarted, nil)

	video, err := r.videos.FindByID(ctx, nil, job.VideoID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("video with id %s does not exist: %w", job.VideoID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("load video: %w", err)
	}

	job.Status = model.AnalysisJobStatusProcessing
	r.saveJob(job)
	r.publish(topic, job.ID, "Fetching video information...", model.AnalysisJobStatusProcessing, nil)

	infoCtx, cancel := context.WithTimeout(ctx, r.fetchTimeout)
	info, err := r.provider.FetchVideoInfo(infoCtx, video.ProviderVideoID)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("fetch video info: %w", err)
	}

	// The transcript step is always reported, even when the stored copy is
	// reused; the cache hit shows up as a null transcript in the result.
	r.publish(topic, job.ID, "Fetching video transcript...", model.AnalysisJobStatusProcessing, nil)

	var segments []model.TranscriptSegment
	_, err = r.transcripts.FindTranscriptByVideoID(ctx, nil, video.ID)
	switch {
	case err == nil:
		// cached; segments stay nil
	case errors.Is(err, domain.ErrNotFound):
		fetchCtx, cancel := context.WithTimeout(ctx, r.fetchTimeout)
		segments, err = r.provider.FetchTranscript(fetchCtx, video.ProviderVideoID, []string{"en"})
		cancel()
		if err != nil {
			return nil, fmt.Errorf("fetch transcript: %w", err)
		}
		if err := r.transcripts.SaveTranscript(ctx, nil, &model.Transcript{VideoID: video.ID, Segments: segments}); err != nil {
			return nil, fmt.Errorf("persist transcript: %w", err)
		}
		if r.cache != nil {
			if cerr := r.cache.Store(ctx, video.ID, segments); cerr != nil {
				r.log.Warn().Err(cerr).Str("video_id", video.ID).Msg("transcript cache store failed")
			}
		}
	default:
		return nil, fmt.Errorf("lookup transcript: %w", err)
	}

	return &model.AnalysisResult{VideoInfo: info, VideoTranscript: segments}, nil
}

func (r *AnalysisRunner) publish(topic, jobID, message string, status model.AnalysisJobStatus, data any) {
	r.hub.Publish(topic, broadcast.Event{
		Type:    "task_update",
		TaskID:  jobID,
		Message: message,
		Status:  string(status),
		Data:    data,
	})
}

func (r *AnalysisRunner) saveJob(job *model.AnalysisJob) {
	// Job state writes use a background context so a cancelled worker
	// context cannot lose the terminal status.
	if err := r.jobs.Save(context.Background(), nil, job); err != nil {
		r.log.Error().Err(err).Str("job_id", job.ID).Msg("failed to persist job state")
	}
}
