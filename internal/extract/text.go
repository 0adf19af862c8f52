package extract

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"go.uber.org/zap"

	"github.com/sells-group/recipe-cli/internal/normalize"
)

const (
	maxPageTextChars       = 15000
	maxTranscriptChars     = 12000
	maxPromptIngredients   = 10
	minReadableTextChars   = 200
	fallbackStripSelectors = "script, style, noscript, nav, footer, header, iframe, svg, form"
)

// PageText reduces an HTML document to plain text for the completion prompt.
// The main-content pass drops recipe cards on some sites, so a short result
// falls back to the full body text.
func PageText(rawHTML, pageURL string) string {
	text := readableText(rawHTML, pageURL)
	if len([]rune(text)) < minReadableTextChars {
		if body := bodyText(rawHTML); len(body) > len(text) {
			text = body
		}
	}
	return truncateRunes(text, maxPageTextChars)
}

func readableText(rawHTML, pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil {
		u = &url.URL{}
	}
	article, err := readability.FromReader(strings.NewReader(rawHTML), u)
	if err != nil {
		zap.L().Debug("extract: readability failed", zap.String("url", pageURL), zap.Error(err))
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(article.Content))
	if err != nil {
		return ""
	}
	return blockText(doc.Selection)
}

func bodyText(rawHTML string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return ""
	}
	doc.Find(fallbackStripSelectors).Remove()
	return blockText(doc.Find("body"))
}

// blockText renders a selection with block boundaries kept as spaces so
// adjacent list items do not run together.
func blockText(sel *goquery.Selection) string {
	sel.Find("li, p, br, h1, h2, h3, h4, h5, h6, div, tr").Each(func(_ int, s *goquery.Selection) {
		s.BeforeHtml(" ")
		s.AfterHtml(" ")
	})
	return normalize.CollapseWhitespace(sel.Text())
}

// PageMeta holds presentation metadata used to fill gaps in AI results.
type PageMeta struct {
	Title string
	Image string
}

// MetaOf reads og:title/og:image (falling back to twitter cards and <title>).
func MetaOf(rawHTML string) PageMeta {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return PageMeta{}
	}
	meta := func(keys ...string) string {
		for _, k := range keys {
			sel := doc.Find(`meta[property="` + k + `"], meta[name="` + k + `"]`).First()
			if v, ok := sel.Attr("content"); ok && strings.TrimSpace(v) != "" {
				return strings.TrimSpace(v)
			}
		}
		return ""
	}

	pm := PageMeta{
		Title: meta("og:title", "twitter:title"),
		Image: meta("og:image", "og:image:url", "twitter:image"),
	}
	if pm.Title == "" {
		pm.Title = normalize.CollapseWhitespace(doc.Find("title").First().Text())
	}
	pm.Title = normalize.DecodeEntities(pm.Title)
	return pm
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
