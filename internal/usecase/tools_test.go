package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"vidboost/internal/domain/model"
	"vidboost/internal/domain/ports/adapter"
)

func newRegistry(provider *fakeProvider, transcripts *memTranscriptRepo, imageGen *fakeImageGen, titleModel *fakeTitleModel) (*ToolRegistry, *memTitleRepo, *memImageRepo, *fakeStorage) {
	log := zerolog.Nop()
	titles := &memTitleRepo{}
	images := &memImageRepo{}
	storage := newFakeStorage()
	if transcripts == nil {
		transcripts = newMemTranscriptRepo()
	}
	reg := NewToolRegistry(
		newMemVideoRepo(), transcripts, titles, images,
		provider, titleModel, imageGen, storage, nil, &log,
	)
	return reg, titles, images, storage
}

func testVideo() *model.Video {
	return &model.Video{ID: "vid-1", ProviderVideoID: "dQw4w9WgXcQ", UserID: "user-1"}
}

func TestDispatchUnknownToolIsContained(t *testing.T) {
	reg, _, _, _ := newRegistry(&fakeProvider{}, nil, &fakeImageGen{}, &fakeTitleModel{})
	out := reg.Dispatch(context.Background(), testVideo(), adapter.ToolCall{Name: "rm_rf"})
	if !strings.Contains(out, "unknown tool") {
		t.Fatalf("observation = %q", out)
	}
}

func TestDispatchProviderErrorIsContained(t *testing.T) {
	provider := &fakeProvider{infoErr: errors.New("quota exceeded")}
	reg, _, _, _ := newRegistry(provider, nil, &fakeImageGen{}, &fakeTitleModel{})
	out := reg.Dispatch(context.Background(), testVideo(), adapter.ToolCall{Name: toolGetVideoInfo})
	if !strings.Contains(out, "quota exceeded") {
		t.Fatalf("observation = %q, want the provider error surfaced as text", out)
	}
}

func TestGetVideoInfoFormatsFieldSummary(t *testing.T) {
	provider := &fakeProvider{info: &model.VideoInfo{
		Title:     "Launch Day",
		ViewCount: 1200,
		Channel:   model.Channel{ID: "ch-1", Name: "Rocket Channel"},
	}}
	reg, _, _, _ := newRegistry(provider, nil, &fakeImageGen{}, &fakeTitleModel{})
	out := reg.Dispatch(context.Background(), testVideo(), adapter.ToolCall{Name: toolGetVideoInfo})
	for _, want := range []string{"Video Information:", "- Title: Launch Day", "- Views: 1200", "- Channel: Rocket Channel"} {
		if !strings.Contains(out, want) {
			t.Fatalf("observation %q missing %q", out, want)
		}
	}
}

func TestGetTranscriptPrefersStoredCopy(t *testing.T) {
	transcripts := newMemTranscriptRepo()
	_ = transcripts.SaveTranscript(context.Background(), nil, &model.Transcript{
		VideoID:  "vid-1",
		Segments: []model.TranscriptSegment{{Text: "stored line", Timestamp: 2.5}},
	})
	provider := &fakeProvider{segments: []model.TranscriptSegment{{Text: "fresh line"}}}
	reg, _, _, _ := newRegistry(provider, transcripts, &fakeImageGen{}, &fakeTitleModel{})

	out := reg.Dispatch(context.Background(), testVideo(), adapter.ToolCall{Name: toolGetTranscript})
	if !strings.Contains(out, "stored line") {
		t.Fatalf("observation = %q", out)
	}
	if provider.transcriptCalls != 0 {
		t.Fatalf("provider called %d times despite stored transcript", provider.transcriptCalls)
	}
}

func TestGetTranscriptFetchesAndPersistsWhenMissing(t *testing.T) {
	transcripts := newMemTranscriptRepo()
	provider := &fakeProvider{segments: []model.TranscriptSegment{{Text: "fetched line", Timestamp: 1}}}
	reg, _, _, _ := newRegistry(provider, transcripts, &fakeImageGen{}, &fakeTitleModel{})

	out := reg.Dispatch(context.Background(), testVideo(), adapter.ToolCall{Name: toolGetTranscript})
	if !strings.Contains(out, "fetched line") {
		t.Fatalf("observation = %q", out)
	}
	if _, err := transcripts.FindTranscriptByVideoID(context.Background(), nil, "vid-1"); err != nil {
		t.Fatalf("fetched transcript not persisted: %v", err)
	}
}

func TestGenerateImageUploadsAndReturnsLink(t *testing.T) {
	reg, _, images, storage := newRegistry(&fakeProvider{}, nil, &fakeImageGen{}, &fakeTitleModel{})
	out := reg.Dispatch(context.Background(), testVideo(), adapter.ToolCall{
		Name: toolGenerateImage,
		Args: map[string]any{"prompt": "neon skyline"},
	})
	if !strings.Contains(out, "https://storage.example/thumbnails/vid-1/") {
		t.Fatalf("observation = %q", out)
	}
	if len(storage.uploaded) != 1 || len(images.images) != 1 {
		t.Fatalf("uploads = %d, records = %d", len(storage.uploaded), len(images.images))
	}
}

func TestGenerateImageRequiresPrompt(t *testing.T) {
	reg, _, images, _ := newRegistry(&fakeProvider{}, nil, &fakeImageGen{}, &fakeTitleModel{})
	out := reg.Dispatch(context.Background(), testVideo(), adapter.ToolCall{Name: toolGenerateImage})
	if !strings.Contains(out, "prompt") {
		t.Fatalf("observation = %q", out)
	}
	if len(images.images) != 0 {
		t.Fatal("image recorded despite missing prompt")
	}
}

func TestGenerateTitlePersistsResult(t *testing.T) {
	reg, titles, _, _ := newRegistry(&fakeProvider{}, nil, &fakeImageGen{}, &fakeTitleModel{title: "You Won't Believe This Launch"})
	out := reg.Dispatch(context.Background(), testVideo(), adapter.ToolCall{
		Name: toolGenerateTitle,
		Args: map[string]any{"summary": "a rocket launch recap", "considerations": "exciting"},
	})
	if !strings.Contains(out, "successfully") || !strings.Contains(out, "You Won't Believe This Launch") {
		t.Fatalf("observation = %q, want confirmation carrying the title", out)
	}
	stored, _ := titles.FindTitlesByVideoID(context.Background(), nil, "vid-1")
	if len(stored) != 1 || stored[0].Title != "You Won't Believe This Launch" {
		t.Fatalf("stored titles = %+v", stored)
	}
}

func TestTruncateLeavesShortTextAlone(t *testing.T) {
	reg, _, _, _ := newRegistry(&fakeProvider{}, nil, &fakeImageGen{}, &fakeTitleModel{})
	text := strings.Repeat("a short line\n", 10)
	if got := reg.truncate(text); got != text {
		t.Fatalf("short text was modified")
	}
}
