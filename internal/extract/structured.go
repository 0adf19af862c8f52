package extract

import (
	"github.com/sells-group/recipe-cli/internal/jsonld"
	"github.com/sells-group/recipe-cli/internal/model"
	"github.com/sells-group/recipe-cli/internal/normalize"
)

// RecipeFromNode maps a schema.org Recipe node to a Recipe. It returns false
// when the node carries neither ingredients nor instructions.
func RecipeFromNode(obj jsonld.Object) (*model.Recipe, bool) {
	r := &model.Recipe{
		Title:        normalize.DecodeEntities(normalize.CollapseWhitespace(obj.String("name"))),
		Ingredients:  ingredientsOf(obj.Get("recipeIngredient")),
		Instructions: decodeAll(normalize.FlattenInstructions(obj.Get("recipeInstructions"))),
		PrepTime:     normalize.HumanizeDuration(obj.String("prepTime")),
		CookTime:     normalize.HumanizeDuration(obj.String("cookTime")),
		Servings:     decodePtr(normalize.ResolveYield(obj.Get("recipeYield"))),
		Image:        normalize.ResolveImage(obj.Get("image")),
		Source:       model.SourceWeb,
	}
	if !r.Valid() {
		return nil, false
	}
	return r.Finalize(), true
}

// StructuredResult reports what the structured-data tier saw on a page.
type StructuredResult struct {
	Recipe *model.Recipe
	// Found is true when a Recipe node existed, usable or not.
	Found bool
}

// FromHTML runs the structured-data tier over a page.
func FromHTML(html string) StructuredResult {
	obj, ok := jsonld.FirstRecipe(html)
	if !ok {
		return StructuredResult{}
	}
	r, ok := RecipeFromNode(obj)
	if !ok {
		return StructuredResult{Found: true}
	}
	return StructuredResult{Recipe: r, Found: true}
}

// ingredientsOf accepts an array of strings or, from sloppier sites, a single
// newline-separated string.
func ingredientsOf(n jsonld.Node) []string {
	var raw []string
	switch t := n.(type) {
	case jsonld.Array:
		for _, el := range t {
			if s, ok := jsonld.AsString(el); ok {
				raw = append(raw, s)
			}
		}
	case jsonld.Scalar:
		if s, ok := t.String(); ok {
			raw = normalize.SplitLines(s)
		}
	}
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		if line := normalize.CollapseWhitespace(normalize.DecodeEntities(s)); line != "" {
			out = append(out, line)
		}
	}
	return out
}

func decodeAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if d := normalize.DecodeEntities(s); d != "" {
			out = append(out, d)
		}
	}
	return out
}

func decodePtr(s *string) *string {
	if s == nil {
		return nil
	}
	return model.StringPtr(normalize.DecodeEntities(*s))
}
