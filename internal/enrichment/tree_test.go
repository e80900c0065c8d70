package enrichment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func extract(t *testing.T, body string) (rec map[string]any) {
	t.Helper()
	tree, err := DecodeTree([]byte(body))
	require.NoError(t, err)
	e := Extract(tree)
	if e == nil {
		return nil
	}
	out := map[string]any{
		"type":      e.Type,
		"sentiment": e.Sentiment,
		"language":  e.Language,
		"summary":   e.Summary,
		"geo":       e.GeoNormalized,
	}
	if e.Priority != nil {
		out["priority"] = *e.Priority
	}
	return out
}

func TestExtractNested(t *testing.T) {
	rec := extract(t, `{"data":{"output":{"type":"refund","priority":7}}}`)
	require.NotNil(t, rec)
	assert.Equal(t, "refund", rec["type"])
	assert.Equal(t, 7, rec["priority"])
	assert.Equal(t, "", rec["summary"])
}

func TestExtractShapes(t *testing.T) {
	cases := []struct {
		name     string
		body     string
		wantType string
		wantPrio any
	}{
		{"flat", `{"type":"Жалоба","priority":"8"}`, "Жалоба", 8},
		{"array of items", `[{"json":{"Category":"vip","priorityScore":9.6}}]`, "vip", 10},
		{"single key wrapper", `{"response":{"ticketType":"Консультация","id":3}}`, "Консультация", nil},
		{"uppercase wrapper", `{"DATA":{"RESULT":{"TYPE":"spam","priority_score":0}}}`, "spam", 1},
		{"json string body", `{"output":"{\"type\":\"refund\",\"priority\":4}"}`, "refund", 4},
		{"wrapper skipped when empty", `{"data":{},"result":{"type":"x"}}`, "x", nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := extract(t, tc.body)
			require.NotNil(t, rec)
			assert.Equal(t, tc.wantType, rec["type"])
			assert.Equal(t, tc.wantPrio, rec["priority"])
		})
	}
}

func TestExtractAliases(t *testing.T) {
	rec := extract(t, `{"result":{"tone":"Негативный","lang":"KZ","shortSummary":"ok","geoNormalized":"Алматы","priority":"high"}}`)
	require.NotNil(t, rec)
	assert.Equal(t, "Негативный", rec["sentiment"])
	assert.Equal(t, "KZ", rec["language"])
	assert.Equal(t, "ok", rec["summary"])
	assert.Equal(t, "Алматы", rec["geo"])
	assert.NotContains(t, rec, "priority")
}

func TestExtractAbsent(t *testing.T) {
	for _, body := range []string{
		`{}`,
		`[]`,
		`"just text"`,
		`{"status":"ok","message":"queued"}`,
		`{"data":{"result":{"type":""}}}`,
		`{"a":{"a":{"a":{"a":{"a":{"a":{"a":{"a":{"type":"deep"}}}}}}}}}`,
	} {
		assert.Nil(t, extract(t, body), body)
	}
}
