package enrichment

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/fire-team/ticket-router/internal/models"
)

const maxUnwrapDepth = 6

var wrapperKeys = []string{"data", "result", "output", "payload", "item", "json", "body"}

// markerKeys decide whether an object looks like a classifier record.
var markerKeys = []string{"type", "sentiment", "priority", "language", "summary", "geo_normalized", "geoNormalized"}

var (
	typeAliases      = []string{"type", "ticketType", "category"}
	sentimentAliases = []string{"sentiment", "tone"}
	priorityAliases  = []string{"priority", "priority_score", "priorityScore"}
	languageAliases  = []string{"language", "lang", "detected_language", "detectedLanguage"}
	summaryAliases   = []string{"summary", "description_summary", "shortSummary"}
	geoAliases       = []string{"geo_normalized", "geoNormalized", "geo"}
)

// DecodeTree parses a JSON document into a generic tree of map[string]any,
// []any and scalars. Numbers stay json.Number so integers survive intact.
func DecodeTree(body []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var root any
	if err := dec.Decode(&root); err != nil {
		return nil, err
	}
	return root, nil
}

// Extract locates the classifier record inside an arbitrarily wrapped tree
// and maps it onto an Enrichment. It returns nil when no record is found.
func Extract(root any) *models.Enrichment {
	obj, ok := unwrap(root, 0).(map[string]any)
	if !ok {
		return nil
	}

	e := models.Enrichment{
		Type:          readText(obj, typeAliases...),
		Sentiment:     readText(obj, sentimentAliases...),
		Language:      readText(obj, languageAliases...),
		Summary:       readText(obj, summaryAliases...),
		GeoNormalized: readText(obj, geoAliases...),
	}
	if p, ok := readInt(obj, priorityAliases...); ok {
		p = clampPriority(p)
		e.Priority = &p
	}
	if e.IsEmpty() {
		return nil
	}
	return &e
}

func unwrap(node any, depth int) any {
	if node == nil || depth > maxUnwrapDepth {
		return node
	}

	switch v := node.(type) {
	case string:
		// some workflows return the record as a JSON encoded string
		s := strings.TrimSpace(v)
		if strings.HasPrefix(s, "{") || strings.HasPrefix(s, "[") {
			if inner, err := DecodeTree([]byte(s)); err == nil {
				return unwrap(inner, depth+1)
			}
		}
		return v
	case []any:
		if len(v) == 0 {
			return v
		}
		return unwrap(v[0], depth+1)
	case map[string]any:
		if hasMarker(v) {
			return v
		}
		for _, key := range wrapperKeys {
			inner, ok := field(v, key)
			if !ok || inner == nil {
				continue
			}
			if found, ok := unwrap(inner, depth+1).(map[string]any); ok && hasMarker(found) {
				return found
			}
		}
		if len(v) == 1 {
			for _, only := range v {
				return unwrap(only, depth+1)
			}
		}
		return v
	default:
		return v
	}
}

func hasMarker(obj map[string]any) bool {
	for _, k := range markerKeys {
		if _, ok := field(obj, k); ok {
			return true
		}
	}
	return false
}

// field looks name up exactly, then case-insensitively.
func field(obj map[string]any, name string) (any, bool) {
	if v, ok := obj[name]; ok {
		return v, true
	}
	for k, v := range obj {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return nil, false
}

func readText(obj map[string]any, aliases ...string) string {
	for _, alias := range aliases {
		v, ok := field(obj, alias)
		if !ok || v == nil {
			continue
		}
		var s string
		switch tv := v.(type) {
		case string:
			s = tv
		case json.Number:
			s = tv.String()
		case bool:
			s = strconv.FormatBool(tv)
		default:
			continue
		}
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return ""
}

func readInt(obj map[string]any, aliases ...string) (int, bool) {
	for _, alias := range aliases {
		v, ok := field(obj, alias)
		if !ok || v == nil {
			continue
		}
		switch tv := v.(type) {
		case json.Number:
			if i, err := tv.Int64(); err == nil {
				return int(i), true
			}
			if f, err := tv.Float64(); err == nil {
				return int(math.Round(f)), true
			}
		case float64:
			return int(math.Round(tv)), true
		case string:
			if i, err := strconv.Atoi(strings.TrimSpace(tv)); err == nil {
				return i, true
			}
		}
	}
	return 0, false
}
