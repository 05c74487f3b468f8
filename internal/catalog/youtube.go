package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/MimeLyc/sonomancer/internal/apperr"
	"github.com/MimeLyc/sonomancer/internal/mood"
	"github.com/MimeLyc/sonomancer/pkg/log"
)

var logger = log.Component("catalog")

const (
	DefaultYouTubeURL = "https://www.googleapis.com/youtube/v3"
	DefaultMaxResults = 15
	maxResultsCap     = 50
	defaultTimeout    = 15 * time.Second
)

// videoDuration values accepted by search.list.
const (
	videoDurationAny    = "any"
	videoDurationMedium = "medium" // 4 to 20 minutes
	videoDurationLong   = "long"   // over 20 minutes
)

// YouTubeSearcher implements Searcher with the YouTube Data API v3.
// It issues search.list for ids and then videos.list for durations and embeddability.
type YouTubeSearcher struct {
	apiKey     string
	apiURL     string
	maxResults int
	duration   string
	httpClient *http.Client
}

type YouTubeOption func(*YouTubeSearcher)

// WithMaxResults sets how many search hits are requested per query, capped at
// the API limit of 50. Non-positive values keep the default.
func WithMaxResults(n int) YouTubeOption {
	return func(s *YouTubeSearcher) {
		if n > 0 {
			s.maxResults = min(n, maxResultsCap)
		}
	}
}

// WithPreferredDuration picks the search.list duration bucket that contains d, so
// the bounded result set is not spent on clips the ranker would discard. The
// default bucket is long.
func WithPreferredDuration(d time.Duration) YouTubeOption {
	return func(s *YouTubeSearcher) {
		switch {
		case d <= 0:
		case d >= 20*time.Minute:
			s.duration = videoDurationLong
		case d >= 4*time.Minute:
			s.duration = videoDurationMedium
		default:
			s.duration = videoDurationAny
		}
	}
}

func WithHTTPTimeout(d time.Duration) YouTubeOption {
	return func(s *YouTubeSearcher) {
		if d > 0 {
			s.httpClient.Timeout = d
		}
	}
}

// NewYouTubeSearcher creates a searcher. An empty apiURL uses the public endpoint.
//
// Example:
//
//	s := catalog.NewYouTubeSearcher(key, "", catalog.WithMaxResults(25), catalog.WithPreferredDuration(time.Hour))
//	candidates, err := s.Search(ctx, mood.Tense)
func NewYouTubeSearcher(apiKey, apiURL string, opts ...YouTubeOption) *YouTubeSearcher {
	if apiURL == "" {
		apiURL = DefaultYouTubeURL
	}
	s := &YouTubeSearcher{
		apiKey:     apiKey,
		apiURL:     strings.TrimSuffix(apiURL, "/"),
		maxResults: DefaultMaxResults,
		duration:   videoDurationLong,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type searchListResponse struct {
	Items []struct {
		ID struct {
			VideoID string `json:"videoId"`
		} `json:"id"`
	} `json:"items"`
}

type videoListResponse struct {
	Items []videoItem `json:"items"`
}

type videoItem struct {
	ID      string `json:"id"`
	Snippet struct {
		Title       string `json:"title"`
		Description string `json:"description"`
	} `json:"snippet"`
	ContentDetails struct {
		Duration string `json:"duration"`
	} `json:"contentDetails"`
	Status struct {
		Embeddable bool `json:"embeddable"`
	} `json:"status"`
}

type apiErrorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Errors  []struct {
			Reason string `json:"reason"`
		} `json:"errors"`
	} `json:"error"`
}

// Search returns at most maxResults candidates in provider order.
func (s *YouTubeSearcher) Search(ctx context.Context, m mood.Mood) ([]Candidate, error) {
	query := BuildQuery(m)
	logger.Info("Searching YouTube for %q", query)

	ids, err := s.searchIDs(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		logger.Info("YouTube returned no results for %q", query)
		return []Candidate{}, nil
	}

	videos, err := s.videoDetails(ctx, ids)
	if err != nil {
		return nil, err
	}

	candidates := make([]Candidate, 0, len(ids))
	for _, id := range ids {
		v, ok := videos[id]
		if !ok {
			// removed or private since the search index was built
			continue
		}
		seconds, err := ParseISODuration(v.ContentDetails.Duration)
		if err != nil {
			logger.Debug("Skipping duration of %s: %v", id, err)
		}
		candidates = append(candidates, Candidate{
			ExternalID:      id,
			Title:           v.Snippet.Title,
			Description:     v.Snippet.Description,
			DurationSeconds: seconds,
			Embeddable:      v.Status.Embeddable,
		})
	}

	logger.Info("YouTube returned %d candidates for %q", len(candidates), query)
	for i, c := range candidates {
		logger.Debug("  candidate %d: %s (%s, %ds, embeddable=%t)", i+1, c.Title, c.ExternalID, c.DurationSeconds, c.Embeddable)
	}
	return candidates, nil
}

func (s *YouTubeSearcher) searchIDs(ctx context.Context, query string) ([]string, error) {
	params := url.Values{}
	params.Set("part", "snippet")
	params.Set("type", "video")
	params.Set("videoEmbeddable", "true")
	params.Set("videoDuration", s.duration)
	params.Set("q", query)
	params.Set("maxResults", strconv.Itoa(s.maxResults))

	var resp searchListResponse
	if err := s.get(ctx, "/search", params, &resp); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(resp.Items))
	seen := make(map[string]bool, len(resp.Items))
	for _, item := range resp.Items {
		id := item.ID.VideoID
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *YouTubeSearcher) videoDetails(ctx context.Context, ids []string) (map[string]videoItem, error) {
	params := url.Values{}
	params.Set("part", "snippet,contentDetails,status")
	params.Set("id", strings.Join(ids, ","))
	params.Set("maxResults", strconv.Itoa(len(ids)))

	var resp videoListResponse
	if err := s.get(ctx, "/videos", params, &resp); err != nil {
		return nil, err
	}

	videos := make(map[string]videoItem, len(resp.Items))
	for _, item := range resp.Items {
		videos[item.ID] = item
	}
	return videos, nil
}

func (s *YouTubeSearcher) get(ctx context.Context, path string, params url.Values, out any) error {
	params.Set("key", s.apiKey)
	endpoint := s.apiURL + path + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return apperr.Wrap(err, apperr.ErrSearch, "failed to create request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return apperr.Wrap(err, apperr.ErrSearch, "youtube request failed").WithContext("endpoint", path)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperr.Wrap(err, apperr.ErrSearch, "failed to read response").WithContext("endpoint", path)
	}

	if resp.StatusCode != http.StatusOK {
		return statusError(path, resp.StatusCode, body)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return apperr.Wrap(err, apperr.ErrSearch, "failed to parse response").WithContext("endpoint", path)
	}
	return nil
}

func statusError(path string, status int, body []byte) error {
	var apiErr apiErrorResponse
	message := strings.TrimSpace(string(body))
	reason := ""
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Message != "" {
		message = apiErr.Error.Message
		if len(apiErr.Error.Errors) > 0 {
			reason = apiErr.Error.Errors[0].Reason
		}
	}
	if len(message) > 300 {
		message = message[:300] + "..."
	}

	summary := fmt.Sprintf("youtube API error (status %d)", status)
	if IsQuotaReason(reason) {
		summary = "youtube quota exhausted"
	}
	e := apperr.New(apperr.ErrSearch, summary).
		WithContext("endpoint", path).
		WithContext("status", status).
		WithContext("detail", message)
	if reason != "" {
		e = e.WithContext("reason", reason)
	}
	return e
}

// IsQuotaReason reports whether a YouTube error reason means the daily quota is spent.
func IsQuotaReason(reason string) bool {
	switch reason {
	case "quotaExceeded", "dailyLimitExceeded", "rateLimitExceeded", "userRateLimitExceeded":
		return true
	}
	return false
}
