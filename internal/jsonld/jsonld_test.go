package jsonld

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Shapes(t *testing.T) {
	t.Parallel()

	n, err := Parse(`{"name":"Tea","yield":4,"tags":["a",true,null]}`)
	require.NoError(t, err)

	obj, ok := AsObject(n)
	require.True(t, ok)
	assert.Equal(t, "Tea", obj.String("name"))

	yield, ok := obj.Get("yield").(Scalar)
	require.True(t, ok)
	f, ok := yield.Number()
	require.True(t, ok)
	assert.Equal(t, "4", FormatNumber(f))

	tags, ok := AsArray(obj.Get("tags"))
	require.True(t, ok)
	assert.Len(t, tags, 3)
	assert.Equal(t, Scalar{Value: true}, tags[1])
	assert.Equal(t, Scalar{Value: nil}, tags[2])
}

func TestParse_Invalid(t *testing.T) {
	t.Parallel()

	_, err := Parse(`{"name": `)
	assert.Error(t, err)
}

func TestHasType(t *testing.T) {
	t.Parallel()

	assert.True(t, Object{"@type": Str("Recipe")}.HasType("Recipe"))
	assert.True(t, Object{"@type": Array{Str("Thing"), Str("Recipe")}}.HasType("Recipe"))
	assert.False(t, Object{"@type": Str("WebPage")}.HasType("Recipe"))
	assert.False(t, Object{}.HasType("Recipe"))
}

func TestFindRecipe_TopLevel(t *testing.T) {
	t.Parallel()

	n, err := Parse(`{"@type":"Recipe","name":"Tea"}`)
	require.NoError(t, err)

	obj, ok := FindRecipe(n)
	require.True(t, ok)
	assert.Equal(t, "Tea", obj.String("name"))
}

func TestFindRecipe_TopLevelArray(t *testing.T) {
	t.Parallel()

	n, err := Parse(`[{"@type":"WebSite"},{"@type":["Recipe","NewsArticle"],"name":"Soup"}]`)
	require.NoError(t, err)

	obj, ok := FindRecipe(n)
	require.True(t, ok)
	assert.Equal(t, "Soup", obj.String("name"))
}

func TestFindRecipe_NestedTwoLevels(t *testing.T) {
	t.Parallel()

	n, err := Parse(`{
		"@context": "https://schema.org",
		"@graph": [
			{"@type": "WebPage"},
			{"@type": "ItemList", "@graph": [
				{"@type": "Organization"},
				{"@type": "Recipe", "name": "Deep Pie"}
			]}
		]
	}`)
	require.NoError(t, err)

	obj, ok := FindRecipe(n)
	require.True(t, ok)
	assert.Equal(t, "Deep Pie", obj.String("name"))
}

func TestFindRecipe_NotFound(t *testing.T) {
	t.Parallel()

	n, err := Parse(`{"@type":"WebPage","@graph":"not-an-array"}`)
	require.NoError(t, err)

	_, ok := FindRecipe(n)
	assert.False(t, ok)

	_, ok = FindRecipe(nil)
	assert.False(t, ok)
}

func TestFindRecipe_DepthCeiling(t *testing.T) {
	t.Parallel()

	var n Node = Object{"@type": Str("Recipe"), "name": Str("Bottom")}
	for range maxDepth + 5 {
		n = Array{n}
	}
	_, ok := FindRecipe(n)
	assert.False(t, ok)
}

func TestBlocks_SkipsMalformed(t *testing.T) {
	t.Parallel()

	html := `<html><head>
<script type="application/ld+json">{ this is not json </script>
<script type="text/javascript">var x = {"@type":"Recipe"};</script>
<script type="application/ld+json">{"@type":"Organization","name":"Acme"}</script>
<script TYPE='Application/LD+JSON'>{"@type":"Recipe","name":"Tea"}</script>
</head><body></body></html>`

	blocks := Blocks(html)
	require.Len(t, blocks, 2)

	obj, ok := FirstRecipe(html)
	require.True(t, ok)
	assert.Equal(t, "Tea", obj.String("name"))
}

func TestBlocks_TrailingCommaFallback(t *testing.T) {
	t.Parallel()

	html := `<script type="application/ld+json">{"@type":"Recipe","name":"Loose",}</script>`

	obj, ok := FirstRecipe(html)
	require.True(t, ok)
	assert.Equal(t, "Loose", obj.String("name"))
}

func TestFirstRecipe_DocumentOrder(t *testing.T) {
	t.Parallel()

	html := `<script type="application/ld+json">{"@type":"Recipe","name":"First"}</script>
<script type="application/ld+json">{"@type":"Recipe","name":"Second"}</script>`

	obj, ok := FirstRecipe(html)
	require.True(t, ok)
	assert.Equal(t, "First", obj.String("name"))
}

func TestFirstRecipe_None(t *testing.T) {
	t.Parallel()

	_, ok := FirstRecipe(`<html><body><p>No data</p></body></html>`)
	assert.False(t, ok)
}
