// Package media finds short explainer videos for a meme.
package media

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/abdulachik/memexplain/internal/meme"
)

const (
	defaultBaseURL   = "https://www.youtube.com"
	defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	// DefaultMaxResults is used when the caller asks for zero results.
	DefaultMaxResults = 3
	// MaxResultsLimit is the largest accepted max_results.
	MaxResultsLimit = 10

	platformYouTube = "youtube"
)

var initialDataPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?s)var ytInitialData = (\{.*?\});</script>`),
	regexp.MustCompile(`(?s)var ytInitialData = (\{.*?\});`),
}

// VideosResponse is the combined media lookup result. TikTok has no
// integration, so its list is always empty.
type VideosResponse struct {
	YouTubeVideos []meme.VideoResult `json:"youtube_videos"`
	TikTokVideos  []meme.VideoResult `json:"tiktok_videos"`
	TotalResults  int                `json:"total_results"`
}

// YouTube searches YouTube's results page.
type YouTube struct {
	baseURL    string
	httpClient *http.Client
}

// Config holds configuration for the YouTube client.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// NewYouTube creates a YouTube search client.
func NewYouTube(cfg Config) *YouTube {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &YouTube{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// NormalizeMaxResults applies the default and validates the range.
func NormalizeMaxResults(n int) (int, error) {
	if n == 0 {
		return DefaultMaxResults, nil
	}
	if n < 1 || n > MaxResultsLimit {
		return 0, fmt.Errorf("%w: max_results must be between 1 and %d", meme.ErrInvalidInput, MaxResultsLimit)
	}
	return n, nil
}

// Videos runs the YouTube search and wraps it in a VideosResponse.
func (y *YouTube) Videos(ctx context.Context, topic string, maxResults int) (*VideosResponse, error) {
	videos, err := y.Search(ctx, topic, maxResults)
	if err != nil {
		return nil, err
	}
	return &VideosResponse{
		YouTubeVideos: videos,
		TikTokVideos:  []meme.VideoResult{},
		TotalResults:  len(videos),
	}, nil
}

// Search returns up to maxResults videos for "<topic> meme explained".
func (y *YouTube) Search(ctx context.Context, topic string, maxResults int) ([]meme.VideoResult, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, fmt.Errorf("%w: topic is empty", meme.ErrInvalidInput)
	}
	maxResults, err := NormalizeMaxResults(maxResults)
	if err != nil {
		return nil, err
	}

	searchURL := y.baseURL + "/results?search_query=" + url.QueryEscape(topic+" meme explained")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", defaultUserAgent)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := y.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: youtube search: %w", meme.ErrTransientFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: youtube search returned %s", meme.ErrTransientFetch, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read youtube response: %w", meme.ErrTransientFetch, err)
	}

	videos := ParseResults(body, maxResults)
	slog.Debug("youtube search", "topic", topic, "results", len(videos))
	return videos, nil
}

type textRuns struct {
	Runs []struct {
		Text string `json:"text"`
	} `json:"runs"`
}

func (t textRuns) first(fallback string) string {
	if len(t.Runs) == 0 || t.Runs[0].Text == "" {
		return fallback
	}
	return t.Runs[0].Text
}

type videoRenderer struct {
	VideoID   string   `json:"videoId"`
	Title     textRuns `json:"title"`
	OwnerText textRuns `json:"ownerText"`
	Thumbnail struct {
		Thumbnails []struct {
			URL string `json:"url"`
		} `json:"thumbnails"`
	} `json:"thumbnail"`
	NavigationEndpoint struct {
		CommandMetadata struct {
			WebCommandMetadata struct {
				URL string `json:"url"`
			} `json:"webCommandMetadata"`
		} `json:"commandMetadata"`
	} `json:"navigationEndpoint"`
}

type initialData struct {
	Contents struct {
		TwoColumnSearchResultsRenderer struct {
			PrimaryContents struct {
				SectionListRenderer struct {
					Contents []struct {
						ItemSectionRenderer struct {
							Contents []struct {
								VideoRenderer *videoRenderer `json:"videoRenderer"`
							} `json:"contents"`
						} `json:"itemSectionRenderer"`
					} `json:"contents"`
				} `json:"sectionListRenderer"`
			} `json:"primaryContents"`
		} `json:"twoColumnSearchResultsRenderer"`
	} `json:"contents"`
}

// ParseResults extracts videos from a results page. A page without
// ytInitialData yields no videos.
func ParseResults(page []byte, maxResults int) []meme.VideoResult {
	var data initialData
	found := false
	for _, re := range initialDataPatterns {
		m := re.FindSubmatch(page)
		if m == nil {
			continue
		}
		if err := json.Unmarshal(m[1], &data); err == nil {
			found = true
			break
		}
	}
	if !found {
		slog.Debug("ytInitialData not found in youtube response")
		return []meme.VideoResult{}
	}

	results := []meme.VideoResult{}
	sections := data.Contents.TwoColumnSearchResultsRenderer.PrimaryContents.SectionListRenderer.Contents
	for _, section := range sections {
		for _, item := range section.ItemSectionRenderer.Contents {
			if len(results) >= maxResults {
				return results
			}
			v := item.VideoRenderer
			if v == nil || v.VideoID == "" {
				continue
			}
			results = append(results, toVideoResult(v))
		}
	}
	return results
}

func toVideoResult(v *videoRenderer) meme.VideoResult {
	result := meme.VideoResult{
		Title:    v.Title.first("Unknown Title"),
		Channel:  v.OwnerText.first("Unknown Channel"),
		Platform: platformYouTube,
		ID:       v.VideoID,
	}

	if thumbs := v.Thumbnail.Thumbnails; len(thumbs) > 0 {
		result.Thumbnail = thumbs[len(thumbs)-1].URL
	}

	if strings.Contains(v.NavigationEndpoint.CommandMetadata.WebCommandMetadata.URL, "shorts") {
		result.Type = "shorts"
		result.URL = "https://www.youtube.com/shorts/" + v.VideoID
	} else {
		result.Type = "video"
		result.URL = "https://www.youtube.com/watch?v=" + v.VideoID
	}
	return result
}
