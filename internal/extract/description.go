package extract

import (
	"regexp"
	"strings"

	"github.com/sells-group/recipe-cli/internal/normalize"
)

// Description is what the heuristic parser found in a video description.
type Description struct {
	Ingredients  []string
	Instructions []string
	// RecipeLink is only looked for when no ingredients were listed.
	RecipeLink string
}

var (
	ingredientHeaderRe  = regexp.MustCompile(`(?i)^(ingredients|what you.?ll need|you.?ll need|shopping list|groceries|for the)`)
	instructionHeaderRe = regexp.MustCompile(`(?i)^(instructions|directions|method|steps|how to make|preparation|procedure)`)
	endHeaderRe         = regexp.MustCompile(`(?i)^(notes|tips|nutrition|equipment|tools|music|follow me|subscribe|links|credits|sources|recipe:|#|\x{1F44D})`)
	hashtagRe           = regexp.MustCompile(`^#\w`)

	recipeLineRe = regexp.MustCompile(`(?i)(?:full\s+)?recipe\s*(?:here)?[:.\s]+\s*(https?://\S+)`)
	urlRe        = regexp.MustCompile(`https?://\S+`)
)

// Hosts that never carry the recipe itself.
var nonRecipeHosts = []string{
	"youtube.com", "youtu.be", "instagram.com", "twitter.com", "facebook.com",
	"tiktok.com", "shop-links.co", "amzn.", "amazon.com", "reddit.com",
}

type section int

const (
	sectionNone section = iota
	sectionIngredients
	sectionInstructions
)

// ParseDescription runs line-based list detection over a free-text video
// description. Headers switch sections; link, hashtag and very short lines
// are skipped.
func ParseDescription(desc string) Description {
	var d Description
	cur := sectionNone

	for _, line := range normalize.SplitLines(desc) {
		switch {
		case ingredientHeaderRe.MatchString(line):
			cur = sectionIngredients
			continue
		case instructionHeaderRe.MatchString(line):
			cur = sectionInstructions
			continue
		case endHeaderRe.MatchString(line):
			cur = sectionNone
			continue
		}
		if strings.HasPrefix(line, "http") || strings.HasPrefix(line, "www.") ||
			hashtagRe.MatchString(line) || len([]rune(line)) < 3 {
			continue
		}

		cleaned := normalize.DecodeEntities(normalize.StripListMarker(line))
		switch cur {
		case sectionIngredients:
			lower := strings.ToLower(cleaned)
			if len([]rune(cleaned)) > 2 && !strings.Contains(lower, "amazon") && !strings.Contains(lower, "amzn") {
				d.Ingredients = append(d.Ingredients, cleaned)
			}
		case sectionInstructions:
			if len([]rune(cleaned)) > 5 {
				d.Instructions = append(d.Instructions, cleaned)
			}
		}
	}

	if len(d.Ingredients) == 0 {
		d.RecipeLink = FindRecipeLink(desc)
	}
	return d
}

// FindRecipeLink returns the URL on an explicit "recipe:" line, else the
// first URL whose path looks like a recipe post on a non-social host.
func FindRecipeLink(desc string) string {
	if m := recipeLineRe.FindStringSubmatch(desc); m != nil {
		return m[1]
	}
	for _, line := range strings.Split(desc, "\n") {
		u := urlRe.FindString(line)
		if u == "" || isNonRecipeHost(u) {
			continue
		}
		if strings.Contains(u, "/recipe") || strings.Contains(u, "/post/") || strings.Contains(u, "weissman") {
			return u
		}
	}
	return ""
}

func isNonRecipeHost(u string) bool {
	for _, h := range nonRecipeHosts {
		if strings.Contains(u, h) {
			return true
		}
	}
	return false
}
