// Package jsonld parses embedded JSON-LD blocks into a small tagged-union
// tree and searches it for schema.org nodes.
package jsonld

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Node is one value in a parsed JSON-LD tree: a Scalar, an Array or an Object.
type Node interface {
	node()
}

// Scalar holds a string, number, bool or null leaf.
type Scalar struct {
	// Value is one of string, float64, bool or nil.
	Value any
}

// Array is an ordered list of nodes.
type Array []Node

// Object is a keyed set of nodes.
type Object map[string]Node

func (Scalar) node() {}
func (Array) node()  {}
func (Object) node() {}

// Str builds a string scalar.
func Str(s string) Scalar { return Scalar{Value: s} }

// Num builds a numeric scalar.
func Num(f float64) Scalar { return Scalar{Value: f} }

// String returns the scalar's string form when it holds a string.
func (s Scalar) String() (string, bool) {
	v, ok := s.Value.(string)
	return v, ok
}

// Number returns the scalar's numeric value when it holds a number.
func (s Scalar) Number() (float64, bool) {
	v, ok := s.Value.(float64)
	return v, ok
}

// Get returns the child at key, or nil.
func (o Object) Get(key string) Node {
	if o == nil {
		return nil
	}
	return o[key]
}

// String returns the child at key when it is a string scalar, else "".
func (o Object) String(key string) string {
	s, _ := AsString(o.Get(key))
	return s
}

// AsString unwraps a string scalar.
func AsString(n Node) (string, bool) {
	s, ok := n.(Scalar)
	if !ok {
		return "", false
	}
	return s.String()
}

// AsObject unwraps an object node.
func AsObject(n Node) (Object, bool) {
	o, ok := n.(Object)
	return o, ok
}

// AsArray unwraps an array node.
func AsArray(n Node) (Array, bool) {
	a, ok := n.(Array)
	return a, ok
}

// FormatNumber renders a numeric scalar without a trailing ".0".
func FormatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// HasType reports whether the object's @type equals typ or, when @type is an
// array, contains it.
func (o Object) HasType(typ string) bool {
	switch t := o.Get("@type").(type) {
	case Scalar:
		s, _ := t.String()
		return s == typ
	case Array:
		for _, el := range t {
			if s, ok := AsString(el); ok && s == typ {
				return true
			}
		}
	}
	return false
}

// FromValue converts a decoded encoding/json value into a Node. Numbers
// decoded as json.Number are converted to float64.
func FromValue(v any) Node {
	switch t := v.(type) {
	case map[string]any:
		obj := make(Object, len(t))
		for k, child := range t {
			obj[k] = FromValue(child)
		}
		return obj
	case []any:
		arr := make(Array, 0, len(t))
		for _, child := range t {
			arr = append(arr, FromValue(child))
		}
		return arr
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return Scalar{Value: t.String()}
		}
		return Scalar{Value: f}
	case int:
		return Scalar{Value: float64(t)}
	case int64:
		return Scalar{Value: float64(t)}
	case float64, string, bool, nil:
		return Scalar{Value: t}
	default:
		return Scalar{Value: nil}
	}
}

// Parse decodes raw JSON text into a Node.
func Parse(raw string) (Node, error) {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return FromValue(v), nil
}
