package agents

import (
	"encoding/json"
	"sort"
	"strings"
)

// stripFences removes a markdown code fence around a JSON reply, if
// present. Models frequently wrap JSON in ```json blocks despite the
// "JSON only" instruction.
func stripFences(text string) string {
	text = strings.TrimSpace(text)
	if idx := strings.Index(text, "```json"); idx >= 0 {
		text = text[idx+len("```json"):]
		if end := strings.Index(text, "```"); end >= 0 {
			text = text[:end]
		}
		return strings.TrimSpace(text)
	}
	if idx := strings.Index(text, "```"); idx >= 0 {
		text = text[idx+len("```"):]
		if end := strings.Index(text, "```"); end >= 0 {
			text = text[:end]
		}
		return strings.TrimSpace(text)
	}
	return text
}

// decodeObject parses a JSON reply into a generic object. A top-level
// list is tolerated by taking its first object element.
func decodeObject(text string) (map[string]interface{}, error) {
	text = stripFences(text)

	var obj map[string]interface{}
	if err := json.Unmarshal([]byte(text), &obj); err == nil {
		return obj, nil
	}

	var list []interface{}
	if err := json.Unmarshal([]byte(text), &list); err != nil {
		return nil, err
	}
	for _, item := range list {
		if obj, ok := item.(map[string]interface{}); ok {
			return obj, nil
		}
	}
	return nil, &json.UnmarshalTypeError{Value: "array without objects", Struct: "object"}
}

// getString reads a string field, defaulting when absent or mistyped.
func getString(m map[string]interface{}, key, fallback string) string {
	if value, ok := m[key].(string); ok && value != "" {
		return value
	}
	return fallback
}

// getFloat reads a numeric field, defaulting when absent or mistyped.
func getFloat(m map[string]interface{}, key string, fallback float64) float64 {
	if value, ok := m[key].(float64); ok {
		return value
	}
	return fallback
}

// getBool reads a boolean field, defaulting when absent or mistyped.
func getBool(m map[string]interface{}, key string, fallback bool) bool {
	if value, ok := m[key].(bool); ok {
		return value
	}
	return fallback
}

// getStringList normalizes a list field of mixed string/object entries
// into a deduplicated string slice. Object entries contribute the
// string value under their first key in sorted order, keeping the
// fallback stable across runs.
func getStringList(m map[string]interface{}, key string) []string {
	raw, ok := m[key].([]interface{})
	if !ok {
		return nil
	}

	seen := make(map[string]bool, len(raw))
	var out []string
	for _, item := range raw {
		var text string
		switch v := item.(type) {
		case string:
			text = v
		case map[string]interface{}:
			keys := make([]string, 0, len(v))
			for inner := range v {
				keys = append(keys, inner)
			}
			sort.Strings(keys)
			for _, inner := range keys {
				if s, ok := v[inner].(string); ok && s != "" {
					text = s
					break
				}
			}
		}
		if text == "" || seen[text] {
			continue
		}
		seen[text] = true
		out = append(out, text)
	}
	return out
}

// getTargetGroup reads target_group, coercing a list value to a
// comma-joined string.
func getTargetGroup(m map[string]interface{}) string {
	switch v := m["target_group"].(type) {
	case string:
		return v
	case []interface{}:
		var parts []string
		for _, item := range v {
			if s, ok := item.(string); ok {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	}
	return ""
}

// clamp01 bounds a value to [0, 1].
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// truncateRunes cuts a string to at most max runes.
func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

// limitList truncates a string slice to at most max entries.
func limitList(items []string, max int) []string {
	if len(items) > max {
		return items[:max]
	}
	return items
}
