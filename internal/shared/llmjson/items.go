package llmjson

import "strings"

// listKeys are wrapper keys models commonly use around item arrays
var listKeys = []string{"items", "products", "articles", "results", "data", "entries", "listings", "threads", "topics", "news"}

// Items parses raw output into a list of objects. Accepts a bare array,
// an object wrapping an array under a known key, or a single object.
// Returns nil on any failure.
func Items(raw string) []map[string]any {
	res := Parse(raw)
	if !res.OK() {
		return nil
	}
	return ItemsFrom(res.Value)
}

// ItemsFrom normalizes an already-parsed value
func ItemsFrom(v any) []map[string]any {
	switch val := v.(type) {
	case []any:
		return objects(val)
	case map[string]any:
		for _, key := range listKeys {
			if arr, ok := val[key].([]any); ok {
				return objects(arr)
			}
		}
		// Single wrapper key holding an array, whatever its name
		if len(val) == 1 {
			for _, inner := range val {
				if arr, ok := inner.([]any); ok {
					return objects(arr)
				}
			}
		}
		if len(val) == 0 {
			return nil
		}
		return []map[string]any{val}
	}
	return nil
}

func objects(arr []any) []map[string]any {
	out := make([]map[string]any, 0, len(arr))
	for _, el := range arr {
		switch e := el.(type) {
		case map[string]any:
			if len(e) > 0 {
				out = append(out, e)
			}
		case string:
			if s := strings.TrimSpace(e); s != "" {
				out = append(out, map[string]any{"text": s})
			}
		}
	}
	return out
}
