package normalize

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/sells-group/recipe-cli/internal/jsonld"
)

var (
	leadingNumberRe = regexp.MustCompile(`^\d+\.\s*`)
	leadingBulletRe = regexp.MustCompile(`^[-•*]\s*`)
	inlineNumberRe  = regexp.MustCompile(`(?:^|\s)(\d+)\.\s`)
	whitespaceRe    = regexp.MustCompile(`\s+`)
)

// StripNumbering removes a leading "N. " step number.
func StripNumbering(s string) string {
	return leadingNumberRe.ReplaceAllString(s, "")
}

// StripListMarker removes a leading bullet and then a leading step number.
func StripListMarker(s string) string {
	return strings.TrimSpace(StripNumbering(leadingBulletRe.ReplaceAllString(strings.TrimSpace(s), "")))
}

// CollapseWhitespace folds runs of whitespace into single spaces.
func CollapseWhitespace(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

// FlattenInstructions turns any of the shapes sites use for
// recipeInstructions into an ordered list of non-empty steps: a block of text,
// a list of strings, HowToStep objects, or HowToSection objects whose
// itemListElement holds further steps.
func FlattenInstructions(v jsonld.Node) []string {
	out := []string{}
	flattenInto(&out, v, 0)
	return out
}

func flattenInto(out *[]string, v jsonld.Node, depth int) {
	if v == nil || depth > 32 {
		return
	}
	switch t := v.(type) {
	case jsonld.Scalar:
		s, ok := t.String()
		if !ok {
			return
		}
		if depth == 0 {
			*out = append(*out, SplitSteps(s)...)
			return
		}
		appendStep(out, s)
	case jsonld.Array:
		for _, el := range t {
			flattenInto(out, el, depth+1)
		}
	case jsonld.Object:
		switch {
		case t.HasType("HowToSection"):
			flattenInto(out, t.Get("itemListElement"), depth+1)
		case t.String("text") != "":
			appendStep(out, t.String("text"))
		case t.String("name") != "":
			appendStep(out, t.String("name"))
		case t.Get("itemListElement") != nil:
			flattenInto(out, t.Get("itemListElement"), depth+1)
		}
	}
}

func appendStep(out *[]string, s string) {
	if step := strings.TrimSpace(StripNumbering(strings.TrimSpace(s))); step != "" {
		*out = append(*out, step)
	}
}

// SplitSteps splits a free-text instruction block into steps, breaking on
// newlines and before inline "N. " numbering.
func SplitSteps(s string) []string {
	out := []string{}
	for _, line := range strings.Split(s, "\n") {
		for _, piece := range splitBeforeNumbers(line) {
			appendStep(&out, piece)
		}
	}
	return out
}

// splitBeforeNumbers cuts line before each inline "N. " that continues the
// step sequence, so "1. Mix 2. Bake" yields "1. Mix " and "2. Bake" while
// "Preheat to 350. Bake" stays whole.
func splitBeforeNumbers(line string) []string {
	idx := inlineNumberRe.FindAllStringSubmatchIndex(line, -1)
	if len(idx) == 0 {
		return []string{line}
	}
	var pieces []string
	start := 0
	next := 1
	for _, loc := range idx {
		n, err := strconv.Atoi(line[loc[2]:loc[3]])
		if err != nil {
			continue
		}
		if loc[2] == 0 {
			next = n + 1
			continue
		}
		if n != next {
			continue
		}
		pieces = append(pieces, line[start:loc[2]])
		start = loc[2]
		next++
	}
	return append(pieces, line[start:])
}

// SplitLines splits s on newlines, trimming each line and dropping empties.
func SplitLines(s string) []string {
	out := []string{}
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}
