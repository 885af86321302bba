// Package youtube fetches video metadata from the Data API v3 and caption
// tracks from the timedtext endpoint.
package youtube

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"html"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"vidboost/internal/domain"
	"vidboost/internal/domain/model"
	"vidboost/internal/domain/ports/adapter"
)

var _ adapter.VideoDataAdapter = (*Client)(nil)

const (
	defaultBaseURL       = "https://www.googleapis.com/youtube/v3"
	defaultTranscriptURL = "https://video.google.com/timedtext"
)

type Client struct {
	apiKey        string
	baseURL       string
	transcriptURL string
	http          *http.Client
}

func NewClient(apiKey, baseURL, transcriptURL string, timeout time.Duration) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("youtube: empty api key")
	}
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if transcriptURL == "" {
		transcriptURL = defaultTranscriptURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		apiKey:        apiKey,
		baseURL:       strings.TrimRight(baseURL, "/"),
		transcriptURL: transcriptURL,
		http:          &http.Client{Timeout: timeout},
	}, nil
}

// videosResponse mirrors the part=snippet,statistics,contentDetails shape.
type videosResponse struct {
	Items []struct {
		Snippet struct {
			Title        string `json:"title"`
			Description  string `json:"description"`
			ChannelID    string `json:"channelId"`
			ChannelTitle string `json:"channelTitle"`
			PublishedAt  string `json:"publishedAt"`
		} `json:"snippet"`
		Statistics struct {
			ViewCount    string `json:"viewCount"`
			LikeCount    string `json:"likeCount"`
			CommentCount string `json:"commentCount"`
		} `json:"statistics"`
		ContentDetails struct {
			Duration string `json:"duration"`
		} `json:"contentDetails"`
	} `json:"items"`
}

// FetchVideoInfo returns the current metadata snapshot for a provider video
// id. An id YouTube does not know maps to domain.ErrNotFound.
func (c *Client) FetchVideoInfo(ctx context.Context, providerVideoID string) (*model.VideoInfo, error) {
	q := url.Values{}
	q.Set("part", "snippet,statistics,contentDetails")
	q.Set("id", providerVideoID)
	q.Set("key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/videos?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("youtube videos http %d", resp.StatusCode)
	}

	var body videosResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("youtube videos decode: %w", err)
	}
	if len(body.Items) == 0 {
		return nil, fmt.Errorf("%w: video %s", domain.ErrNotFound, providerVideoID)
	}

	item := body.Items[0]
	return &model.VideoInfo{
		Title:        item.Snippet.Title,
		Description:  item.Snippet.Description,
		Duration:     item.ContentDetails.Duration,
		ViewCount:    parseCount(item.Statistics.ViewCount),
		LikeCount:    parseCount(item.Statistics.LikeCount),
		CommentCount: parseCount(item.Statistics.CommentCount),
		PublishedAt:  item.Snippet.PublishedAt,
		Channel: model.Channel{
			ID:   item.Snippet.ChannelID,
			Name: item.Snippet.ChannelTitle,
		},
	}, nil
}

// timedtext XML: <transcript><text start="1.2" dur="3.4">line</text>...</transcript>
type timedtext struct {
	Texts []struct {
		Start string `xml:"start,attr"`
		Body  string `xml:",chardata"`
	} `xml:"text"`
}

// FetchTranscript pulls the caption track, trying each language in order.
// A video with no captions in any requested language maps to
// domain.ErrNotFound.
func (c *Client) FetchTranscript(ctx context.Context, providerVideoID string, languages []string) ([]model.TranscriptSegment, error) {
	if len(languages) == 0 {
		languages = []string{"en"}
	}
	var lastErr error
	for _, lang := range languages {
		segments, err := c.fetchTrack(ctx, providerVideoID, lang)
		if err == nil && len(segments) > 0 {
			return segments, nil
		}
		lastErr = err
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, fmt.Errorf("%w: no captions for video %s", domain.ErrNotFound, providerVideoID)
}

func (c *Client) fetchTrack(ctx context.Context, providerVideoID, lang string) ([]model.TranscriptSegment, error) {
	q := url.Values{}
	q.Set("v", providerVideoID)
	q.Set("lang", lang)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.transcriptURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: no %s captions for video %s", domain.ErrNotFound, lang, providerVideoID)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("youtube timedtext http %d", resp.StatusCode)
	}

	var track timedtext
	if err := xml.NewDecoder(resp.Body).Decode(&track); err != nil {
		return nil, fmt.Errorf("youtube timedtext decode: %w", err)
	}
	segments := make([]model.TranscriptSegment, 0, len(track.Texts))
	for _, t := range track.Texts {
		start, _ := strconv.ParseFloat(t.Start, 64)
		text := strings.TrimSpace(html.UnescapeString(t.Body))
		if text == "" {
			continue
		}
		segments = append(segments, model.TranscriptSegment{Text: text, Timestamp: start})
	}
	return segments, nil
}

func parseCount(s string) int64 {
	n, _ := strconv.ParseInt(s, 10, 64)
	return n
}
