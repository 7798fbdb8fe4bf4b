package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantItems []string
		wantShape Shape
		wantKey   string
	}{
		{
			name:      "results key",
			body:      `{"results": ["ant","apple"]}`,
			wantItems: []string{"ant", "apple"},
			wantShape: ShapeKeyed,
			wantKey:   "results",
		},
		{
			name:      "mixed array",
			body:      `["bee", {"name":"bear"}]`,
			wantItems: []string{"bee", "bear"},
			wantShape: ShapeRecords,
		},
		{
			name:      "no known key falls back to values",
			body:      `{"x":1,"y":2}`,
			wantItems: []string{"1", "2"},
			wantShape: ShapeKeyedFallback,
		},
		{
			name:      "plain array of strings",
			body:      `["cat","cow"]`,
			wantItems: []string{"cat", "cow"},
			wantShape: ShapeStrings,
		},
		{
			name:      "record field priority name over value over text",
			body:      `[{"text":"t1","value":"v1"},{"text":"t2"},{"name":"n3","text":"t3"}]`,
			wantItems: []string{"v1", "t2", "n3"},
			wantShape: ShapeRecords,
		},
		{
			name:      "empty name falls through to value",
			body:      `[{"name":"","value":"dog"}]`,
			wantItems: []string{"dog"},
			wantShape: ShapeRecords,
		},
		{
			name:      "record without known field is stringified",
			body:      `[{"id":7}, 42, true]`,
			wantItems: []string{`{"id":7}`, "42", "true"},
			wantShape: ShapeRecords,
		},
		{
			name:      "key priority order",
			body:      `{"items":["late"],"suggestions":["early"]}`,
			wantItems: []string{"early"},
			wantShape: ShapeKeyed,
			wantKey:   "suggestions",
		},
		{
			name:      "known key that is not an array is skipped",
			body:      `{"results":"none","data":[{"value":"deer"}]}`,
			wantItems: []string{"deer"},
			wantShape: ShapeKeyed,
			wantKey:   "data",
		},
		{
			name:      "fallback keeps document order and skips nulls",
			body:      `{"b":"second","a":"first","c":null}`,
			wantItems: []string{"second", "first"},
			wantShape: ShapeKeyedFallback,
		},
		{
			name:      "empty keyed array",
			body:      `{"completions":[]}`,
			wantItems: []string{},
			wantShape: ShapeKeyed,
			wantKey:   "completions",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Normalize([]byte(tt.body))
			assert.Equal(t, tt.wantShape, res.Shape)
			assert.Equal(t, tt.wantKey, res.Key)
			assert.Equal(t, tt.wantItems, res.Items)
		})
	}
}

func TestNormalizeUnrecognized(t *testing.T) {
	for _, body := range []string{`"oops"`, `42`, `null`, `true`, ``, `{not json`, `<html></html>`} {
		res := Normalize([]byte(body))
		assert.Equal(t, ShapeUnrecognized, res.Shape, "body %q", body)
		assert.Empty(t, res.Items, "body %q", body)
	}
}

func TestNormalizeIsStable(t *testing.T) {
	body := []byte(`{"data":[{"text":"emu"},"eel"]}`)
	first := Normalize(body)
	second := Normalize(body)
	assert.Equal(t, first, second)
}

func TestExtraKeys(t *testing.T) {
	body := []byte(`{"names":["fox","frog"],"nextPage":2}`)

	res := Normalize(body)
	assert.Equal(t, ShapeKeyedFallback, res.Shape)

	n := New("names", "results", "")
	assert.Equal(t, []string{"results", "suggestions", "completions", "data", "items", "names"}, n.Keys())

	res = n.Normalize(body)
	assert.Equal(t, ShapeKeyed, res.Shape)
	assert.Equal(t, "names", res.Key)
	assert.Equal(t, []string{"fox", "frog"}, res.Items)
}

func TestShapeString(t *testing.T) {
	assert.Equal(t, "strings", ShapeStrings.String())
	assert.Equal(t, "records", ShapeRecords.String())
	assert.Equal(t, "keyed", ShapeKeyed.String())
	assert.Equal(t, "keyed-fallback", ShapeKeyedFallback.String())
	assert.Equal(t, "unrecognized", ShapeUnrecognized.String())
}

func TestDescribe(t *testing.T) {
	n := New()

	d := n.Describe([]byte(`{"results":[{"name":"gnu"},"goat"],"count":2}`))
	assert.Equal(t, ShapeKeyed, d.Shape)
	assert.Equal(t, "object", d.Type)
	assert.Equal(t, []string{"results", "count"}, d.Keys)
	assert.Equal(t, 2, d.Length)
	assert.Equal(t, `{"name":"gnu"}`, d.First)
	assert.Equal(t, []string{"gnu", "goat"}, d.Items)
	assert.Contains(t, d.String(), "Found 2 results in 'results' field")

	d = n.Describe([]byte(`["hen"]`))
	assert.Equal(t, "array", d.Type)
	assert.Equal(t, 1, d.Length)
	assert.Contains(t, d.String(), "array with 1 items")

	d = n.Describe([]byte(`"oops"`))
	assert.Equal(t, ShapeUnrecognized, d.Shape)
	assert.Equal(t, "string", d.Type)
	assert.Contains(t, d.String(), "of type string")

	d = n.Describe([]byte(`{bad`))
	assert.Equal(t, "invalid", d.Type)
}

func TestNextPage(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantPage string
		wantOK   bool
	}{
		{"numeric token", `{"names":["ox"],"nextPage":2}`, "2", true},
		{"string token", `{"names":[],"nextPage":"c2"}`, "c2", true},
		{"null", `{"names":[],"nextPage":null}`, "", false},
		{"false", `{"nextPage":false}`, "", false},
		{"zero", `{"nextPage":0}`, "", false},
		{"empty string", `{"nextPage":""}`, "", false},
		{"missing", `{"names":["ox"]}`, "", false},
		{"array payload", `["nextPage"]`, "", false},
		{"invalid json", `{"nextPage":`, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, ok := NextPage([]byte(tt.body), "nextPage")
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantPage, page)
		})
	}

	_, ok := NextPage([]byte(`{"nextPage":2}`), "")
	assert.False(t, ok, "empty key disables paging")
}
