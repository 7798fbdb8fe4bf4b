package normalize

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// Description summarizes the structure of a response for operators probing
// an unfamiliar endpoint.
type Description struct {
	Shape  Shape
	Type   string   // JSON type of the top-level value
	Keys   []string // top-level object keys, in document order
	Length int      // element count of the array the items come from
	Key    string   // matched result key (ShapeKeyed only)
	First  string   // raw JSON of the first element, if any
	Items  []string // what Normalize extracts
}

// Describe analyzes body with the receiver's key list.
func (n *Normalizer) Describe(body []byte) Description {
	res := n.Normalize(body)
	d := Description{Shape: res.Shape, Key: res.Key, Items: res.Items, Type: "invalid"}
	if !gjson.ValidBytes(body) {
		return d
	}
	root := gjson.ParseBytes(body)
	d.Type = typeName(root)

	var arr gjson.Result
	switch res.Shape {
	case ShapeStrings, ShapeRecords:
		arr = root
	case ShapeKeyed:
		arr, _ = field(root, res.Key)
	}
	if root.IsObject() {
		root.ForEach(func(k, _ gjson.Result) bool {
			d.Keys = append(d.Keys, k.Str)
			return true
		})
	}
	if arr.IsArray() {
		elems := arr.Array()
		d.Length = len(elems)
		if len(elems) > 0 {
			d.First = elems[0].Raw
		}
	}
	return d
}

// String renders the description as indented report lines.
func (d Description) String() string {
	var b strings.Builder
	switch d.Shape {
	case ShapeStrings, ShapeRecords:
		fmt.Fprintf(&b, "- Response is an array with %d items (%s)\n", d.Length, d.Shape)
	case ShapeKeyed, ShapeKeyedFallback:
		fmt.Fprintf(&b, "- Response is an object with keys: %s\n", strings.Join(d.Keys, ", "))
		if d.Shape == ShapeKeyed {
			fmt.Fprintf(&b, "- Found %d results in '%s' field\n", d.Length, d.Key)
		} else {
			b.WriteString("- No known result field, falling back to object values\n")
		}
	default:
		fmt.Fprintf(&b, "- Response is of type %s\n", d.Type)
	}
	if d.First != "" {
		fmt.Fprintf(&b, "- First item: %s\n", d.First)
	}
	fmt.Fprintf(&b, "- Extracted %d candidate items\n", len(d.Items))
	return b.String()
}

func typeName(v gjson.Result) string {
	switch {
	case v.IsArray():
		return "array"
	case v.IsObject():
		return "object"
	}
	switch v.Type {
	case gjson.String:
		return "string"
	case gjson.Number:
		return "number"
	case gjson.True, gjson.False:
		return "boolean"
	case gjson.Null:
		return "null"
	default:
		return "unknown"
	}
}
