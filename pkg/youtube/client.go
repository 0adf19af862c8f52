// Package youtube provides a client for video metadata (Data API v3) and
// caption transcripts.
package youtube

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// ErrVideoNotFound is returned when the API answers but lists no video.
var ErrVideoNotFound = eris.New("youtube: video not found")

// ErrNoTranscript is returned when the watch page exposes no caption track.
var ErrNoTranscript = eris.New("youtube: no transcript available")

// Client defines the video-platform operations used by the extractor.
type Client interface {
	// GetVideo returns the snippet for one video id.
	GetVideo(ctx context.Context, videoID string) (*Video, error)
	// GetTranscript returns the first caption track as space-joined text.
	GetTranscript(ctx context.Context, videoID string) (string, error)
}

// Video is the subset of the videos.list snippet the extractor needs.
type Video struct {
	ID           string
	Title        string
	Description  string
	ChannelTitle string
	Thumbnails   Thumbnails
}

// Thumbnails holds the snippet thumbnail set.
type Thumbnails struct {
	Default  *Thumbnail `json:"default"`
	Medium   *Thumbnail `json:"medium"`
	High     *Thumbnail `json:"high"`
	Standard *Thumbnail `json:"standard"`
	Maxres   *Thumbnail `json:"maxres"`
}

// Thumbnail is a single thumbnail rendition.
type Thumbnail struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// Best returns the highest resolution thumbnail URL, or "".
func (t Thumbnails) Best() string {
	for _, th := range []*Thumbnail{t.Maxres, t.High, t.Medium, t.Default} {
		if th != nil && th.URL != "" {
			return th.URL
		}
	}
	return ""
}

// APIError is returned for non-2xx answers.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("youtube: status %d: %s", e.StatusCode, e.Body)
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae.StatusCode
	}
	return 0
}

type videosResponse struct {
	Items []struct {
		ID      string `json:"id"`
		Snippet struct {
			Title        string     `json:"title"`
			Description  string     `json:"description"`
			ChannelTitle string     `json:"channelTitle"`
			Thumbnails   Thumbnails `json:"thumbnails"`
		} `json:"snippet"`
	} `json:"items"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL sets the Data API base URL (for testing).
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithWatchURL sets the watch page URL used for caption discovery.
func WithWatchURL(u string) Option {
	return func(c *httpClient) {
		c.watchURL = u
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	apiKey   string
	baseURL  string
	watchURL string
	http     *http.Client
}

// NewClient creates a new video-platform client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:   apiKey,
		baseURL:  "https://www.googleapis.com/youtube/v3",
		watchURL: "https://www.youtube.com/watch",
		http: &http.Client{
			Timeout: 15 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) get(ctx context.Context, rawURL string, header http.Header) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "youtube: create request")
	}
	for k, v := range header {
		req.Header[k] = v
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "youtube: request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4*1024*1024))
	if err != nil {
		return nil, eris.Wrap(err, "youtube: read body")
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet := string(body)
		if len(snippet) > 200 {
			snippet = snippet[:200]
		}
		return nil, &APIError{StatusCode: resp.StatusCode, Body: snippet}
	}
	return body, nil
}

func (c *httpClient) GetVideo(ctx context.Context, videoID string) (*Video, error) {
	q := url.Values{}
	q.Set("id", videoID)
	q.Set("key", c.apiKey)
	q.Set("part", "snippet")

	body, err := c.get(ctx, c.baseURL+"/videos?"+q.Encode(), nil)
	if err != nil {
		return nil, eris.Wrapf(err, "youtube: get video %s", videoID)
	}

	var vr videosResponse
	if err := json.Unmarshal(body, &vr); err != nil {
		return nil, eris.Wrap(err, "youtube: decode videos response")
	}
	if len(vr.Items) == 0 {
		return nil, ErrVideoNotFound
	}

	item := vr.Items[0]
	return &Video{
		ID:           item.ID,
		Title:        item.Snippet.Title,
		Description:  item.Snippet.Description,
		ChannelTitle: item.Snippet.ChannelTitle,
		Thumbnails:   item.Snippet.Thumbnails,
	}, nil
}

var (
	captionURLRe  = regexp.MustCompile(`"baseUrl":\s*"(https://www\.youtube\.com/api/timedtext[^"]+)"`)
	captionTextRe = regexp.MustCompile(`<text[^>]*>([^<]*)</text>`)
)

func (c *httpClient) GetTranscript(ctx context.Context, videoID string) (string, error) {
	header := http.Header{}
	header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")
	header.Set("Accept-Language", "en-US,en;q=0.9")

	page, err := c.get(ctx, c.watchURL+"?v="+url.QueryEscape(videoID), header)
	if err != nil {
		return "", eris.Wrap(err, "youtube: fetch watch page")
	}

	m := captionURLRe.FindSubmatch(page)
	if m == nil {
		return "", ErrNoTranscript
	}
	trackURL := strings.ReplaceAll(string(m[1]), `\u0026`, "&")

	xml, err := c.get(ctx, trackURL, nil)
	if err != nil {
		return "", eris.Wrap(err, "youtube: fetch caption track")
	}

	var texts []string
	for _, tm := range captionTextRe.FindAllSubmatch(xml, -1) {
		// Caption XML is often escaped twice ("&amp;#39;").
		t := strings.TrimSpace(html.UnescapeString(html.UnescapeString(string(tm[1]))))
		if t != "" {
			texts = append(texts, t)
		}
	}
	if len(texts) == 0 {
		return "", ErrNoTranscript
	}
	return strings.Join(texts, " "), nil
}
