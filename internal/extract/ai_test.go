package extract

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/recipe-cli/internal/config"
	"github.com/sells-group/recipe-cli/internal/model"
	"github.com/sells-group/recipe-cli/internal/resilience"
	"github.com/sells-group/recipe-cli/pkg/anthropic"
	"github.com/sells-group/recipe-cli/pkg/anthropic/mocks"
)

func TestNewAI_NilClientDisables(t *testing.T) {
	t.Parallel()
	a := NewAI(nil, config.AnthropicConfig{}, nil)
	assert.Nil(t, a)
	assert.False(t, a.Enabled())

	_, err := a.RecipeFromPage(context.Background(), plainRecipePage, "https://example.com")
	assert.ErrorIs(t, err, ErrAINoRecipe)

	steps, err := a.InstructionsFromTranscript(context.Background(), "boil", "Soup", nil)
	assert.NoError(t, err)
	assert.Nil(t, steps)
}

func TestParseAIRecipe(t *testing.T) {
	t.Parallel()
	r, err := ParseAIRecipe("```json\n" + `{"title":"Soup","ingredients":["water","salt"],"instructions":["1. Boil"],"prepTime":"10 mins","cookTime":null,"servings":"4"}` + "\n```")
	require.NoError(t, err)
	assert.Equal(t, "Soup", r.Title)
	assert.Equal(t, []string{"water", "salt"}, r.Ingredients)
	assert.Equal(t, []string{"Boil"}, r.Instructions)
	assert.Equal(t, "10 mins", model.Deref(r.PrepTime))
	assert.Nil(t, r.CookTime)
	assert.Equal(t, "4", model.Deref(r.Servings))
	assert.Equal(t, model.SourceAIFallback, r.Source)
}

func TestParseAIRecipe_ProseAndISODuration(t *testing.T) {
	t.Parallel()
	r, err := ParseAIRecipe(`Here is the recipe: {"title":"Toast","ingredients":["bread"],"instructions":[],"prepTime":"PT15M"} Enjoy!`)
	require.NoError(t, err)
	assert.Equal(t, "15 min", model.Deref(r.PrepTime))
}

func TestParseAIRecipe_NoRecipe(t *testing.T) {
	t.Parallel()
	for _, text := range []string{
		`{"error": "No recipe found"}`,
		`I could not find a recipe on this page.`,
		`{"title":"Empty","ingredients":[],"instructions":[]}`,
		`["not", "an", "object"]`,
	} {
		_, err := ParseAIRecipe(text)
		assert.ErrorIs(t, err, ErrAINoRecipe, text)
	}
}

func TestAI_RecipeFromPage_FillsMeta(t *testing.T) {
	t.Parallel()
	client := mocks.NewMockClient(t)
	client.On("CreateMessage", mock.Anything, mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		return req.Model == "claude-test" && req.MaxTokens == 500 &&
			len(req.Messages) == 1 && strings.Contains(req.Messages[0].Content, "in our family")
	})).Return(textResponse(`{"ingredients":["1 onion","2 carrots"],"instructions":["Chop","Simmer"]}`), nil).Once()

	r, err := newTestAI(client).RecipeFromPage(context.Background(), plainRecipePage, "https://example.com/soup")
	require.NoError(t, err)
	assert.Equal(t, "Grandma's Soup", r.Title)
	assert.Equal(t, "https://img.example.com/soup.jpg", model.Deref(r.Image))
	assert.Equal(t, model.SourceAIFallback, r.Source)
}

func TestAI_RecipeFromPage_UpstreamError(t *testing.T) {
	t.Parallel()
	client := mocks.NewMockClient(t)
	client.On("CreateMessage", mock.Anything, mock.Anything).Return(nil, errors.New("connection reset")).Once()

	_, err := newTestAI(client).RecipeFromPage(context.Background(), plainRecipePage, "https://example.com/soup")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrAINoRecipe)
}

func TestAI_BreakerOpenSkipsCall(t *testing.T) {
	t.Parallel()
	client := mocks.NewMockClient(t)
	client.On("CreateMessage", mock.Anything, mock.Anything).Return(nil, errors.New("overloaded")).Once()

	breaker := resilience.NewBreaker(resilience.ServiceAnthropic, resilience.Settings{FailureThreshold: 1})
	a := NewAI(client, config.AnthropicConfig{Model: "claude-test", TimeoutSecs: 5}, breaker)

	_, err := a.RecipeFromPage(context.Background(), plainRecipePage, "https://example.com/soup")
	require.Error(t, err)

	_, err = a.RecipeFromPage(context.Background(), plainRecipePage, "https://example.com/soup")
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
}

func TestAI_InstructionsFromTranscript(t *testing.T) {
	t.Parallel()
	ingredients := []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j", "k", "l"}
	client := mocks.NewMockClient(t)
	client.On("CreateMessage", mock.Anything, mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		p := req.Messages[0].Content
		return strings.Contains(p, `"Pasta"`) && strings.Contains(p, "a, b, c, d, e, f, g, h, i, j.") &&
			!strings.Contains(p, ", k")
	})).Return(textResponse("```json\n[\"1. Boil water\", \"Add &amp; stir\"]\n```"), nil).Once()

	steps, err := newTestAI(client).InstructionsFromTranscript(context.Background(), "so first we boil water", "Pasta", ingredients)
	require.NoError(t, err)
	assert.Equal(t, []string{"Boil water", "Add & stir"}, steps)
}

func TestAI_InstructionsFromTranscript_Unparseable(t *testing.T) {
	t.Parallel()
	client := mocks.NewMockClient(t)
	client.On("CreateMessage", mock.Anything, mock.Anything).Return(textResponse("Sorry, nothing here."), nil).Once()

	steps, err := newTestAI(client).InstructionsFromTranscript(context.Background(), "music only", "Vlog", []string{"x"})
	require.NoError(t, err)
	assert.Empty(t, steps)
}

func TestCleanJSON(t *testing.T) {
	t.Parallel()
	assert.Equal(t, `{"a":1}`, cleanJSON("```json\n{\"a\":1}\n```", '{', '}'))
	assert.Equal(t, `{"a":{"b":2}}`, cleanJSON(`prefix {"a":{"b":2}} suffix`, '{', '}'))
	assert.Equal(t, `["x"]`, cleanJSON(`Steps: ["x"]`, '[', ']'))
	assert.Equal(t, "no json", cleanJSON("no json", '{', '}'))
}
