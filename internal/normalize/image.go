package normalize

import (
	"strings"

	"github.com/sells-group/recipe-cli/internal/jsonld"
)

// ResolveImage picks a single image URL from a string, the first element of
// an array, or an ImageObject's url/contentUrl.
func ResolveImage(v jsonld.Node) *string {
	switch t := v.(type) {
	case jsonld.Scalar:
		if s, ok := t.String(); ok {
			return nonEmpty(s)
		}
	case jsonld.Array:
		if len(t) > 0 {
			return ResolveImage(t[0])
		}
	case jsonld.Object:
		if u := nonEmpty(t.String("url")); u != nil {
			return u
		}
		return nonEmpty(t.String("contentUrl"))
	}
	return nil
}

// ResolveYield renders recipeYield as a string from a number, a string, or
// the first element of an array.
func ResolveYield(v jsonld.Node) *string {
	switch t := v.(type) {
	case jsonld.Scalar:
		if f, ok := t.Number(); ok {
			s := jsonld.FormatNumber(f)
			return &s
		}
		if s, ok := t.String(); ok {
			return nonEmpty(s)
		}
	case jsonld.Array:
		if len(t) > 0 {
			if _, nested := t[0].(jsonld.Scalar); nested {
				return ResolveYield(t[0])
			}
		}
	}
	return nil
}

func nonEmpty(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
