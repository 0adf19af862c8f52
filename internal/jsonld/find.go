package jsonld

// RecipeType is the schema.org type identifying a recipe node.
const RecipeType = "Recipe"

// maxDepth bounds recursion against pathological documents. Real pages nest a
// handful of levels at most.
const maxDepth = 64

// FindType searches n depth-first for the first object whose @type matches
// typ. Objects that do not match recurse into an @graph array; arrays recurse
// element-wise.
func FindType(n Node, typ string) (Object, bool) {
	return find(n, typ, 0)
}

// FindRecipe is FindType for schema.org Recipe nodes.
func FindRecipe(n Node) (Object, bool) {
	return FindType(n, RecipeType)
}

func find(n Node, typ string, depth int) (Object, bool) {
	if n == nil || depth > maxDepth {
		return nil, false
	}
	switch t := n.(type) {
	case Object:
		if t.HasType(typ) {
			return t, true
		}
		if graph, ok := AsArray(t.Get("@graph")); ok {
			return find(graph, typ, depth+1)
		}
	case Array:
		for _, el := range t {
			if obj, ok := find(el, typ, depth+1); ok {
				return obj, true
			}
		}
	}
	return nil, false
}
