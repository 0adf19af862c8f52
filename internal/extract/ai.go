package extract

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/recipe-cli/internal/config"
	"github.com/sells-group/recipe-cli/internal/jsonld"
	"github.com/sells-group/recipe-cli/internal/model"
	"github.com/sells-group/recipe-cli/internal/normalize"
	"github.com/sells-group/recipe-cli/internal/resilience"
	"github.com/sells-group/recipe-cli/pkg/anthropic"
)

// ErrAINoRecipe is returned when the completion service answered but the
// answer holds no usable recipe.
var ErrAINoRecipe = eris.New("extract: completion produced no recipe")

const recipePrompt = `Extract the recipe from this webpage content. Return ONLY valid JSON with this exact structure (no markdown, no explanation):
{"title": "Recipe Title", "ingredients": ["ingredient 1", "ingredient 2"], "instructions": ["step 1", "step 2"], "prepTime": "10 mins" or null, "cookTime": "20 mins" or null, "servings": "4" or null}
If no recipe is found, return: {"error": "No recipe found"}

Webpage content:
%s`

const transcriptPrompt = `Extract cooking instructions from this video transcript. The recipe is %q with these ingredients: %s.

Return ONLY a JSON array of step-by-step instructions (no markdown, no explanation). Each step should be a clear, concise cooking instruction. Ignore any non-cooking content.

Example format: ["Season the chicken with salt and pepper", "Heat oil in a pan over medium-high heat"]

If no clear cooking instructions can be extracted, return: []

Transcript:
%s`

// AI is the completion-service tier. A nil *AI is valid and disabled.
type AI struct {
	client    anthropic.Client
	model     string
	maxTokens int64
	timeout   time.Duration
	breaker   *resilience.Breaker
}

// NewAI returns nil when client is nil so a missing credential disables the
// tier without special cases at call sites.
func NewAI(client anthropic.Client, cfg config.AnthropicConfig, breaker *resilience.Breaker) *AI {
	if client == nil {
		return nil
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 2000
	}
	timeout := cfg.Timeout()
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &AI{
		client:    client,
		model:     cfg.Model,
		maxTokens: maxTokens,
		timeout:   timeout,
		breaker:   breaker,
	}
}

// Enabled reports whether the tier can be used.
func (a *AI) Enabled() bool { return a != nil && a.client != nil }

func (a *AI) complete(ctx context.Context, phase, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	temp := 0.0
	resp, err := resilience.Do(ctx, a.breaker, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		resp, err := a.client.CreateMessage(ctx, anthropic.MessageRequest{
			Model:       a.model,
			MaxTokens:   a.maxTokens,
			Messages:    []anthropic.Message{{Role: "user", Content: prompt}},
			Temperature: &temp,
		})
		if err != nil {
			if code := anthropic.StatusCode(err); code != 0 {
				return nil, resilience.NewUpstreamError(err, code)
			}
			return nil, err
		}
		return resp, nil
	})
	if err != nil {
		return "", eris.Wrapf(err, "extract: %s completion", phase)
	}
	resp.Usage.LogCost(a.model, phase)
	return resp.Text(), nil
}

// RecipeFromPage asks the completion service for a recipe found in the page.
// The result is tagged ai-fallback and gets og:title/og:image when the
// model leaves them empty.
func (a *AI) RecipeFromPage(ctx context.Context, rawHTML, pageURL string) (*model.Recipe, error) {
	if !a.Enabled() {
		return nil, ErrAINoRecipe
	}
	text := PageText(rawHTML, pageURL)
	if text == "" {
		return nil, ErrAINoRecipe
	}

	out, err := a.complete(ctx, "recipe_page", fmt.Sprintf(recipePrompt, text))
	if err != nil {
		return nil, err
	}

	r, err := ParseAIRecipe(out)
	if err != nil {
		return nil, err
	}
	meta := MetaOf(rawHTML)
	if r.Title == "" {
		r.Title = meta.Title
	}
	if r.Image == nil {
		r.Image = model.StringPtr(meta.Image)
	}
	return r.Finalize(), nil
}

// ParseAIRecipe decodes a completion answer into a recipe. Code fences and
// surrounding prose are tolerated; an {"error": ...} answer, malformed JSON or
// an empty recipe yield ErrAINoRecipe.
func ParseAIRecipe(text string) (*model.Recipe, error) {
	node, err := jsonld.Parse(cleanJSON(text, '{', '}'))
	if err != nil {
		zap.L().Debug("extract: unparseable completion", zap.Error(err))
		return nil, ErrAINoRecipe
	}
	obj, ok := jsonld.AsObject(node)
	if !ok || obj.Get("error") != nil {
		return nil, ErrAINoRecipe
	}

	r := &model.Recipe{
		Title:        normalize.DecodeEntities(normalize.CollapseWhitespace(obj.String("title"))),
		Ingredients:  ingredientsOf(obj.Get("ingredients")),
		Instructions: decodeAll(normalize.FlattenInstructions(obj.Get("instructions"))),
		PrepTime:     aiDuration(obj.String("prepTime")),
		CookTime:     aiDuration(obj.String("cookTime")),
		Servings:     decodePtr(normalize.ResolveYield(obj.Get("servings"))),
		Image:        normalize.ResolveImage(obj.Get("image")),
		Source:       model.SourceAIFallback,
	}
	if !r.Valid() {
		return nil, ErrAINoRecipe
	}
	return r, nil
}

// aiDuration keeps the model's free-form times but humanizes ISO durations.
func aiDuration(s string) *string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(strings.ToUpper(s), "P") {
		return normalize.HumanizeDuration(s)
	}
	return model.StringPtr(s)
}

// InstructionsFromTranscript derives ordered steps from a video transcript.
// An empty slice means the model found nothing usable.
func (a *AI) InstructionsFromTranscript(ctx context.Context, transcript, title string, ingredients []string) ([]string, error) {
	if !a.Enabled() || strings.TrimSpace(transcript) == "" {
		return nil, nil
	}
	if len(ingredients) > maxPromptIngredients {
		ingredients = ingredients[:maxPromptIngredients]
	}
	prompt := fmt.Sprintf(transcriptPrompt, title, strings.Join(ingredients, ", "),
		truncateRunes(transcript, maxTranscriptChars))

	out, err := a.complete(ctx, "transcript", prompt)
	if err != nil {
		return nil, err
	}

	node, err := jsonld.Parse(cleanJSON(out, '[', ']'))
	if err != nil {
		zap.L().Debug("extract: unparseable transcript completion", zap.Error(err))
		return nil, nil
	}
	if _, ok := jsonld.AsArray(node); !ok {
		return nil, nil
	}
	return decodeAll(normalize.FlattenInstructions(node)), nil
}

// cleanJSON strips markdown fences and keeps the outermost open..close span.
func cleanJSON(text string, open, close byte) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	start := strings.IndexByte(text, open)
	end := strings.LastIndexByte(text, close)
	if start >= 0 && end > start {
		text = text[start : end+1]
	}

	return strings.TrimSpace(text)
}
