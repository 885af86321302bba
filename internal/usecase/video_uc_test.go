package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"vidboost/internal/domain"
)

type stubSubmitter struct {
	jobID string
	err   error
	calls int
}

func (s *stubSubmitter) Submit(ctx context.Context, videoID string) (string, error) {
	s.calls++
	return s.jobID, s.err
}

func newVideoUC(videos *memVideoRepo, sessions *memSessionRepo, submitter *stubSubmitter) *videoUC {
	log := zerolog.Nop()
	if videos == nil {
		videos = newMemVideoRepo()
	}
	if sessions == nil {
		sessions = newMemSessionRepo()
	}
	if submitter == nil {
		submitter = &stubSubmitter{jobID: "job-1"}
	}
	return NewVideoUseCase(videos, sessions, submitter, &log)
}

func TestRegisterVideoAcceptsURLForms(t *testing.T) {
	cases := []string{
		"https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		"https://youtu.be/dQw4w9WgXcQ",
		"https://www.youtube.com/shorts/dQw4w9WgXcQ",
		"https://www.youtube.com/embed/dQw4w9WgXcQ",
		"dQw4w9WgXcQ",
	}
	for _, raw := range cases {
		uc := newVideoUC(nil, nil, nil)
		video, err := uc.RegisterVideo(context.Background(), "user-1", raw)
		if err != nil {
			t.Fatalf("%s: %v", raw, err)
		}
		if video.ProviderVideoID != "dQw4w9WgXcQ" {
			t.Fatalf("%s: provider id = %q", raw, video.ProviderVideoID)
		}
	}
}

func TestRegisterVideoRejectsGarbage(t *testing.T) {
	uc := newVideoUC(nil, nil, nil)
	for _, raw := range []string{"", "https://vimeo.com/12345", "tooshort", "https://youtube.com/watch"} {
		if _, err := uc.RegisterVideo(context.Background(), "user-1", raw); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Fatalf("%q: err = %v, want ErrInvalidArgument", raw, err)
		}
	}
}

func TestRegisterVideoIsCreateOrGet(t *testing.T) {
	uc := newVideoUC(nil, nil, nil)
	first, err := uc.RegisterVideo(context.Background(), "user-1", "dQw4w9WgXcQ")
	if err != nil {
		t.Fatal(err)
	}
	second, err := uc.RegisterVideo(context.Background(), "user-1", "https://youtu.be/dQw4w9WgXcQ")
	if err != nil {
		t.Fatal(err)
	}
	if first.ID != second.ID {
		t.Fatalf("re-registration created a new row: %s vs %s", first.ID, second.ID)
	}
}

func TestRegisterVideoIsPerUser(t *testing.T) {
	uc := newVideoUC(nil, nil, nil)
	mine, _ := uc.RegisterVideo(context.Background(), "user-1", "dQw4w9WgXcQ")
	theirs, _ := uc.RegisterVideo(context.Background(), "user-2", "dQw4w9WgXcQ")
	if mine.ID == theirs.ID {
		t.Fatal("two users share one video row")
	}
}

func TestSubmitAnalysisChecksOwnership(t *testing.T) {
	videos := newMemVideoRepo()
	submitter := &stubSubmitter{jobID: "job-1"}
	uc := newVideoUC(videos, nil, submitter)
	video, _ := uc.RegisterVideo(context.Background(), "user-1", "dQw4w9WgXcQ")

	if _, err := uc.SubmitAnalysis(context.Background(), "intruder", video.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("foreign submit err = %v, want ErrNotFound", err)
	}
	if submitter.calls != 0 {
		t.Fatal("submitter reached for a foreign video")
	}

	jobID, err := uc.SubmitAnalysis(context.Background(), "user-1", video.ID)
	if err != nil || jobID != "job-1" {
		t.Fatalf("submit = %q, %v", jobID, err)
	}
}

func TestCreateSessionIsCreateOrGet(t *testing.T) {
	uc := newVideoUC(nil, nil, nil)
	video, _ := uc.RegisterVideo(context.Background(), "user-1", "dQw4w9WgXcQ")

	first, err := uc.CreateSession(context.Background(), "user-1", video.ID)
	if err != nil {
		t.Fatal(err)
	}
	second, err := uc.CreateSession(context.Background(), "user-1", video.ID)
	if err != nil {
		t.Fatal(err)
	}
	if first.ID != second.ID {
		t.Fatalf("second create returned a different session: %s vs %s", first.ID, second.ID)
	}
}

func TestCreateSessionRequiresOwnedVideo(t *testing.T) {
	uc := newVideoUC(nil, nil, nil)
	video, _ := uc.RegisterVideo(context.Background(), "user-1", "dQw4w9WgXcQ")
	if _, err := uc.CreateSession(context.Background(), "intruder", video.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
