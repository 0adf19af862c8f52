package jsonld

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	json5 "github.com/yosuke-furukawa/json5/encoding/json5"
	"go.uber.org/zap"
)

const contentType = "application/ld+json"

// Blocks returns every parseable JSON-LD block in html, in document order.
// Blocks that fail to parse are skipped.
func Blocks(html string) []Node {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	var nodes []Node
	doc.Find("script[type]").Each(func(_ int, s *goquery.Selection) {
		typ, _ := s.Attr("type")
		if !strings.EqualFold(strings.TrimSpace(typ), contentType) {
			return
		}
		raw := strings.TrimSpace(s.Text())
		if raw == "" {
			return
		}
		n, err := parseLenient(raw)
		if err != nil {
			zap.L().Debug("jsonld: skipping malformed block", zap.Error(err))
			return
		}
		nodes = append(nodes, n)
	})
	return nodes
}

// parseLenient tries strict JSON first and falls back to JSON5, which accepts
// the trailing commas and comments some CMS templates emit.
func parseLenient(raw string) (Node, error) {
	n, err := Parse(raw)
	if err == nil {
		return n, nil
	}
	var v any
	if err5 := json5.Unmarshal([]byte(raw), &v); err5 != nil {
		return nil, err
	}
	return FromValue(v), nil
}

// FirstRecipe returns the first Recipe node across all blocks in html.
func FirstRecipe(html string) (Object, bool) {
	for _, block := range Blocks(html) {
		if obj, ok := FindRecipe(block); ok {
			return obj, true
		}
	}
	return nil, false
}
