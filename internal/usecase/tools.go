package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkoukk/tiktoken-go"
	"github.com/rs/zerolog"

	"vidboost/internal/domain"
	"vidboost/internal/domain/model"
	"vidboost/internal/domain/ports/adapter"
	"vidboost/internal/domain/ports/repository"
	"vidboost/internal/infra/metrics"
	"vidboost/internal/infra/redis"
)

const (
	toolGetVideoInfo  = "get_video_info"
	toolGetTranscript = "get_transcript"
	toolGenerateImage = "generate_image"
	toolGenerateTitle = "generate_title"

	metadataTimeout = 30 * time.Second
	titleTimeout    = 30 * time.Second
	imageTimeout    = 60 * time.Second

	// Transcripts can dwarf the context window; anything past this many
	// tokens is cut before the observation goes back to the model.
	transcriptTokenBudget = 6000
)

// ToolRegistry holds the agent's tools and executes model-requested calls.
// Execution failures are contained: Dispatch always returns an observation
// string, never an error, so one bad tool call cannot abort a turn.
type ToolRegistry struct {
	videos      repository.VideoRepository
	transcripts repository.TranscriptRepository
	titles      repository.TitleRepository
	images      repository.ImageRepository
	provider    adapter.VideoDataAdapter
	titleModel  adapter.TitleModelAdapter
	imageGen    adapter.ImageGenAdapter
	storage     adapter.ObjectStorageAdapter
	cache       *redis.TranscriptCache // optional
	log         *zerolog.Logger

	encOnce  sync.Once
	encoding *tiktoken.Tiktoken
}

func NewToolRegistry(
	videos repository.VideoRepository,
	transcripts repository.TranscriptRepository,
	titles repository.TitleRepository,
	images repository.ImageRepository,
	provider adapter.VideoDataAdapter,
	titleModel adapter.TitleModelAdapter,
	imageGen adapter.ImageGenAdapter,
	storage adapter.ObjectStorageAdapter,
	cache *redis.TranscriptCache,
	log *zerolog.Logger,
) *ToolRegistry {
	return &ToolRegistry{
		videos:      videos,
		transcripts: transcripts,
		titles:      titles,
		images:      images,
		provider:    provider,
		titleModel:  titleModel,
		imageGen:    imageGen,
		storage:     storage,
		cache:       cache,
		log:         log,
	}
}

// Decls returns the tool schema handed to the model each cycle.
func (t *ToolRegistry) Decls() []adapter.ToolDecl {
	return []adapter.ToolDecl{
		{
			Name:        toolGetVideoInfo,
			Description: "Fetch the video's current metadata: title, description, duration, view/like/comment counts, channel.",
		},
		{
			Name:        toolGetTranscript,
			Description: "Fetch the video's transcript as timestamped caption segments.",
		},
		{
			Name:        toolGenerateImage,
			Description: "Generate a thumbnail image from a text prompt and return a link to it.",
			Params: map[string]adapter.ParamDecl{
				"prompt": {Type: "string", Description: "Visual description of the image to generate.", Required: true},
			},
		},
		{
			Name:        toolGenerateTitle,
			Description: "Generate one catchy video title from a content summary.",
			Params: map[string]adapter.ParamDecl{
				"summary":        {Type: "string", Description: "Short summary of the video's content.", Required: true},
				"considerations": {Type: "string", Description: "Style constraints or keywords to honor.", Required: false},
			},
		},
	}
}

// Dispatch runs one requested tool against the session's video and returns
// the observation text for the model.
func (t *ToolRegistry) Dispatch(ctx context.Context, video *model.Video, call adapter.ToolCall) string {
	start := time.Now()
	observation, ok := t.run(ctx, video, call)
	metrics.IncToolCall(call.Name)
	t.log.Debug().
		Str("tool", call.Name).
		Str("video_id", video.ID).
		Bool("ok", ok).
		Dur("took", time.Since(start)).
		Msg("tool dispatched")
	return observation
}

func (t *ToolRegistry) run(ctx context.Context, video *model.Video, call adapter.ToolCall) (string, bool) {
	switch call.Name {
	case toolGetVideoInfo:
		return t.runVideoInfo(ctx, video)
	case toolGetTranscript:
		return t.runTranscript(ctx, video)
	case toolGenerateImage:
		return t.runGenerateImage(ctx, video, call.Args)
	case toolGenerateTitle:
		return t.runGenerateTitle(ctx, video, call.Args)
	default:
		return fmt.Sprintf("Error: unknown tool %q", call.Name), false
	}
}

func (t *ToolRegistry) runVideoInfo(ctx context.Context, video *model.Video) (string, bool) {
	ctx, cancel := context.WithTimeout(ctx, metadataTimeout)
	defer cancel()
	info, err := t.provider.FetchVideoInfo(ctx, video.ProviderVideoID)
	if err != nil {
		return fmt.Sprintf("Error fetching video info: %v", err), false
	}
	var b strings.Builder
	b.WriteString("Video Information:\n")
	fmt.Fprintf(&b, "- Title: %s\n", info.Title)
	fmt.Fprintf(&b, "- Description: %s\n", info.Description)
	fmt.Fprintf(&b, "- Duration: %s\n", info.Duration)
	fmt.Fprintf(&b, "- Views: %d\n", info.ViewCount)
	fmt.Fprintf(&b, "- Likes: %d\n", info.LikeCount)
	fmt.Fprintf(&b, "- Comments: %d\n", info.CommentCount)
	fmt.Fprintf(&b, "- Published: %s\n", info.PublishedAt)
	fmt.Fprintf(&b, "- Channel: %s\n", info.Channel.Name)
	return b.String(), true
}

func (t *ToolRegistry) runTranscript(ctx context.Context, video *model.Video) (string, bool) {
	segments, err := t.transcriptSegments(ctx, video)
	if err != nil {
		return fmt.Sprintf("Error fetching transcript: %v", err), false
	}
	var b strings.Builder
	for _, seg := range segments {
		fmt.Fprintf(&b, "[%.1f] %s\n", seg.Timestamp, seg.Text)
	}
	return t.truncate(b.String()), true
}

// transcriptSegments reads hot-cache first, then the durable store, and
// only goes to the provider when analysis has not run yet; a fetched
// transcript is persisted so the next call is a read.
func (t *ToolRegistry) transcriptSegments(ctx context.Context, video *model.Video) ([]model.TranscriptSegment, error) {
	if t.cache != nil {
		if segments, err := t.cache.Get(ctx, video.ID); err == nil && len(segments) > 0 {
			return segments, nil
		}
	}
	if stored, err := t.transcripts.FindTranscriptByVideoID(ctx, nil, video.ID); err == nil {
		if t.cache != nil {
			if cerr := t.cache.Store(ctx, video.ID, stored.Segments); cerr != nil {
				t.log.Warn().Err(cerr).Str("video_id", video.ID).Msg("transcript cache store failed")
			}
		}
		return stored.Segments, nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, metadataTimeout)
	defer cancel()
	segments, err := t.provider.FetchTranscript(ctx, video.ProviderVideoID, []string{"en"})
	if err != nil {
		return nil, err
	}
	if err := t.transcripts.SaveTranscript(ctx, nil, &model.Transcript{
		VideoID:   video.ID,
		Segments:  segments,
		CreatedAt: time.Now(),
	}); err != nil {
		t.log.Warn().Err(err).Str("video_id", video.ID).Msg("failed to persist fetched transcript")
	}
	if t.cache != nil {
		if cerr := t.cache.Store(ctx, video.ID, segments); cerr != nil {
			t.log.Warn().Err(cerr).Str("video_id", video.ID).Msg("transcript cache store failed")
		}
	}
	return segments, nil
}

func (t *ToolRegistry) runGenerateImage(ctx context.Context, video *model.Video, args map[string]any) (string, bool) {
	prompt, _ := args["prompt"].(string)
	if strings.TrimSpace(prompt) == "" {
		return "Error: generate_image requires a non-empty 'prompt'", false
	}

	ctx, cancel := context.WithTimeout(ctx, imageTimeout)
	defer cancel()
	img, err := t.imageGen.Generate(ctx, prompt)
	if err != nil {
		return fmt.Sprintf("Error generating image: %v", err), false
	}

	key := fmt.Sprintf("thumbnails/%s/%s.png", video.ID, uuid.NewString())
	if err := t.storage.Upload(ctx, key, img.Bytes, img.ContentType); err != nil {
		return fmt.Sprintf("Error storing image: %v", err), false
	}
	url, err := t.storage.PresignURL(ctx, key)
	if err != nil {
		return fmt.Sprintf("Error linking image: %v", err), false
	}
	if err := t.images.SaveImage(ctx, nil, &model.GeneratedImage{
		ID:        uuid.NewString(),
		VideoID:   video.ID,
		ObjectKey: key,
		CreatedAt: time.Now(),
	}); err != nil {
		t.log.Warn().Err(err).Str("video_id", video.ID).Msg("failed to record generated image")
	}
	return fmt.Sprintf("Image generated: %s", url), true
}

func (t *ToolRegistry) runGenerateTitle(ctx context.Context, video *model.Video, args map[string]any) (string, bool) {
	summary, _ := args["summary"].(string)
	if strings.TrimSpace(summary) == "" {
		return "Error: generate_title requires a non-empty 'summary'", false
	}
	considerations, _ := args["considerations"].(string)

	ctx, cancel := context.WithTimeout(ctx, titleTimeout)
	defer cancel()
	title, err := t.titleModel.GenerateTitle(ctx, summary, considerations)
	if err != nil {
		return fmt.Sprintf("Error generating title: %v", err), false
	}
	if err := t.titles.SaveTitle(ctx, nil, &model.GeneratedTitle{
		ID:        uuid.NewString(),
		VideoID:   video.ID,
		Title:     title,
		CreatedAt: time.Now(),
	}); err != nil {
		t.log.Warn().Err(err).Str("video_id", video.ID).Msg("failed to record generated title")
	}
	return fmt.Sprintf("Title generated successfully! Title: %s", title), true
}

// truncate cuts long observations to the transcript token budget. A text
// with no more bytes than the budget cannot exceed it, so the encoding is
// only loaded for genuinely large transcripts.
func (t *ToolRegistry) truncate(text string) string {
	if len(text) <= transcriptTokenBudget {
		return text
	}
	t.encOnce.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			t.log.Warn().Err(err).Msg("token encoding unavailable, truncating by bytes")
			return
		}
		t.encoding = enc
	})
	if t.encoding == nil {
		return text[:transcriptTokenBudget] + "\n[transcript truncated]"
	}
	tokens := t.encoding.Encode(text, nil, nil)
	if len(tokens) <= transcriptTokenBudget {
		return text
	}
	return t.encoding.Decode(tokens[:transcriptTokenBudget]) + "\n[transcript truncated]"
}
