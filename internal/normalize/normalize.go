// Package normalize extracts candidate items from autocomplete responses
// whose wire shape is not known in advance.
//
// Payloads are classified into a closed set of shapes (see Shape) and each
// shape has exactly one extraction rule. Normalization never fails: a payload
// that matches no known shape yields zero items and ShapeUnrecognized, which
// callers report as a malformed response.
package normalize

import (
	"github.com/tidwall/gjson"
)

// DefaultKeys are the object keys searched, in priority order, for the
// array of results.
var DefaultKeys = []string{"results", "suggestions", "completions", "data", "items"}

// recordFields are tried, in order, on non-string array elements.
var recordFields = []string{"name", "value", "text"}

// Shape identifies which response variant a payload matched.
type Shape int

const (
	// ShapeUnrecognized is anything that is neither an array nor an object,
	// including invalid JSON.
	ShapeUnrecognized Shape = iota
	// ShapeStrings is an array whose elements are all strings.
	ShapeStrings
	// ShapeRecords is an array with at least one non-string element.
	ShapeRecords
	// ShapeKeyed is an object with a known key holding an array.
	ShapeKeyed
	// ShapeKeyedFallback is an object without any known key.
	ShapeKeyedFallback
)

func (s Shape) String() string {
	switch s {
	case ShapeStrings:
		return "strings"
	case ShapeRecords:
		return "records"
	case ShapeKeyed:
		return "keyed"
	case ShapeKeyedFallback:
		return "keyed-fallback"
	case ShapeUnrecognized:
		return "unrecognized"
	default:
		return "unknown"
	}
}

// Result is the outcome of normalizing one payload.
type Result struct {
	Items []string
	Shape Shape
	// Key is the object key the items were read from (ShapeKeyed only).
	Key string
}

// Normalizer extracts items using a fixed key priority list.
type Normalizer struct {
	keys []string
}

// New returns a Normalizer that tries DefaultKeys followed by extraKeys.
func New(extraKeys ...string) *Normalizer {
	keys := make([]string, 0, len(DefaultKeys)+len(extraKeys))
	keys = append(keys, DefaultKeys...)
	for _, k := range extraKeys {
		if k == "" || contains(keys, k) {
			continue
		}
		keys = append(keys, k)
	}
	return &Normalizer{keys: keys}
}

// Keys returns the key priority list in use.
func (n *Normalizer) Keys() []string {
	return append([]string(nil), n.keys...)
}

// Normalize extracts items with the default key list.
func Normalize(body []byte) Result {
	return defaultNormalizer.Normalize(body)
}

var defaultNormalizer = New()

// Classify reports the shape of body and, for ShapeKeyed, the matched key.
func (n *Normalizer) Classify(body []byte) (Shape, string) {
	if !gjson.ValidBytes(body) {
		return ShapeUnrecognized, ""
	}
	return n.classify(gjson.ParseBytes(body))
}

func (n *Normalizer) classify(root gjson.Result) (Shape, string) {
	switch {
	case root.IsArray():
		shape := ShapeStrings
		root.ForEach(func(_, v gjson.Result) bool {
			if v.Type != gjson.String {
				shape = ShapeRecords
				return false
			}
			return true
		})
		return shape, ""
	case root.IsObject():
		for _, key := range n.keys {
			if v, ok := field(root, key); ok && v.IsArray() {
				return ShapeKeyed, key
			}
		}
		return ShapeKeyedFallback, ""
	default:
		return ShapeUnrecognized, ""
	}
}

// Normalize extracts the ordered candidate items from body.
func (n *Normalizer) Normalize(body []byte) Result {
	if !gjson.ValidBytes(body) {
		return Result{Shape: ShapeUnrecognized}
	}
	root := gjson.ParseBytes(body)
	shape, key := n.classify(root)

	res := Result{Shape: shape, Key: key}
	switch shape {
	case ShapeStrings, ShapeRecords:
		res.Items = elements(root)
	case ShapeKeyed:
		v, _ := field(root, key)
		res.Items = elements(v)
	case ShapeKeyedFallback:
		res.Items = values(root)
	case ShapeUnrecognized:
	}
	return res
}

// NextPage returns the page token stored under key in an object payload.
// Missing, null, false, zero and empty tokens mean there is no next page.
func NextPage(body []byte, key string) (string, bool) {
	if key == "" || !gjson.ValidBytes(body) {
		return "", false
	}
	root := gjson.ParseBytes(body)
	if !root.IsObject() {
		return "", false
	}
	v, ok := field(root, key)
	if !ok || !truthy(v) || v.IsObject() || v.IsArray() {
		return "", false
	}
	return stringify(v)
}

// elements applies the per-element rule to every member of an array.
func elements(arr gjson.Result) []string {
	out := []string{}
	arr.ForEach(func(_, v gjson.Result) bool {
		if s, ok := element(v); ok {
			out = append(out, s)
		}
		return true
	})
	return out
}

func element(v gjson.Result) (string, bool) {
	if v.Type == gjson.String {
		return v.Str, true
	}
	if v.IsObject() {
		for _, name := range recordFields {
			if f, ok := field(v, name); ok && truthy(f) {
				return stringify(f)
			}
		}
	}
	return stringify(v)
}

// values stringifies every value of an object in document order.
func values(obj gjson.Result) []string {
	out := []string{}
	obj.ForEach(func(_, v gjson.Result) bool {
		if s, ok := stringify(v); ok {
			out = append(out, s)
		}
		return true
	})
	return out
}

// stringify renders a JSON value as an item. Nulls carry no item.
func stringify(v gjson.Result) (string, bool) {
	switch v.Type {
	case gjson.Null:
		return "", false
	case gjson.String:
		return v.Str, true
	default:
		return v.Raw, true
	}
}

// field looks up an object member by exact name. Later duplicates win, as
// with most JSON decoders.
func field(obj gjson.Result, name string) (gjson.Result, bool) {
	var (
		found gjson.Result
		ok    bool
	)
	obj.ForEach(func(k, v gjson.Result) bool {
		if k.Str == name {
			found, ok = v, true
		}
		return true
	})
	return found, ok
}

func truthy(v gjson.Result) bool {
	switch v.Type {
	case gjson.Null, gjson.False:
		return false
	case gjson.String:
		return v.Str != ""
	case gjson.Number:
		return v.Num != 0
	default:
		return true
	}
}

func contains(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}
