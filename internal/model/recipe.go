package model

// Source identifies which extraction tier produced a recipe.
type Source string

const (
	SourceWeb           Source = "web"
	SourceVideoPlatform Source = "video-platform"
	SourceAIFallback    Source = "ai-fallback"
)

// UntitledRecipe is the title used when no source provides one.
const UntitledRecipe = "Untitled Recipe"

// Recipe is the canonical extraction result.
type Recipe struct {
	Title        string   `json:"title" yaml:"title"`
	Ingredients  []string `json:"ingredients" yaml:"ingredients"`
	Instructions []string `json:"instructions" yaml:"instructions"`
	PrepTime     *string  `json:"prepTime" yaml:"prep_time,omitempty"`
	CookTime     *string  `json:"cookTime" yaml:"cook_time,omitempty"`
	Servings     *string  `json:"servings" yaml:"servings,omitempty"`
	Image        *string  `json:"image" yaml:"image,omitempty"`
	Source       Source   `json:"source" yaml:"source"`
}

// Valid reports whether the recipe carries any usable content. A recipe with
// neither ingredients nor instructions must never leave an extractor.
func (r *Recipe) Valid() bool {
	if r == nil {
		return false
	}
	return len(r.Ingredients) > 0 || len(r.Instructions) > 0
}

// Finalize applies the output defaults: a placeholder title and non-nil
// slices so the JSON form always carries arrays.
func (r *Recipe) Finalize() *Recipe {
	if r.Title == "" {
		r.Title = UntitledRecipe
	}
	if r.Ingredients == nil {
		r.Ingredients = []string{}
	}
	if r.Instructions == nil {
		r.Instructions = []string{}
	}
	return r
}

// StringPtr returns a pointer to s, or nil when s is empty.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Deref returns the pointed-to string or "".
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
