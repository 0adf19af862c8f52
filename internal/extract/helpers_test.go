package extract

import (
	"context"
	"sync"

	"github.com/sells-group/recipe-cli/internal/config"
	"github.com/sells-group/recipe-cli/internal/fetcher"
	"github.com/sells-group/recipe-cli/pkg/anthropic"
	"github.com/sells-group/recipe-cli/pkg/anthropic/mocks"
)

// stubFetcher serves canned pages keyed by URL.
type stubFetcher struct {
	mu    sync.Mutex
	pages map[string]*fetcher.Page
	errs  map[string]error
	calls []string
}

func (s *stubFetcher) Fetch(_ context.Context, url string) (*fetcher.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, url)
	if err := s.errs[url]; err != nil {
		return nil, err
	}
	if p, ok := s.pages[url]; ok {
		return p, nil
	}
	return nil, &fetcher.StatusError{URL: url, StatusCode: 404}
}

func page(url, body string) *fetcher.Page {
	return &fetcher.Page{URL: url, FinalURL: url, StatusCode: 200, Body: body}
}

// recorder collects progress notices.
type recorder struct {
	steps []string
}

func (r *recorder) progress() Progress {
	return func(step string) { r.steps = append(r.steps, step) }
}

func textResponse(text string) *anthropic.MessageResponse {
	return &anthropic.MessageResponse{
		Model:   "claude-test",
		Content: []anthropic.ContentBlock{{Type: "text", Text: text}},
		Usage:   anthropic.TokenUsage{InputTokens: 100, OutputTokens: 50},
	}
}

func newTestAI(client *mocks.MockClient) *AI {
	return NewAI(client, config.AnthropicConfig{
		Key:         "test-key",
		Model:       "claude-test",
		MaxTokens:   500,
		TimeoutSecs: 5,
	}, nil)
}

const teaPage = `<html><head>
<script type="application/ld+json">{"@type":"Recipe","name":"Tea","recipeIngredient":["1 tsp tea"],"recipeInstructions":"1. Steep"}</script>
</head><body><p>Tea time.</p></body></html>`

const plainRecipePage = `<html><head>
<title>Grandma's Soup | Blog</title>
<meta property="og:title" content="Grandma's Soup">
<meta property="og:image" content="https://img.example.com/soup.jpg">
</head><body>
<article>
<h1>Grandma's Soup</h1>
<p>This soup has been in our family for generations and it warms you right up on a cold winter evening.</p>
<ul><li>1 onion</li><li>2 carrots</li><li>1 litre stock</li></ul>
<ol><li>Chop the vegetables.</li><li>Simmer everything for 30 minutes.</li></ol>
</article>
</body></html>`
