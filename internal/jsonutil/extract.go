package jsonutil

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ExtractObject finds and parses the JSON object embedded in raw model
// output. Model responses often wrap JSON in markdown code fences or
// surround it with commentary; this handles:
// 1. Pure JSON output
// 2. JSON inside ```json ... ``` fences
// 3. A JSON object embedded in text (first '{' to last '}')
//
// Only objects are recovered, not arrays. Brace matching is textual, so
// unbalanced braces inside strings can defeat it.
func ExtractObject(raw string) (map[string]any, error) {
	text := stripCodeFences(raw)

	var obj map[string]any
	if err := json.Unmarshal([]byte(text), &obj); err == nil {
		return obj, nil
	}

	start := strings.Index(text, "{")
	if start != -1 {
		end := strings.LastIndex(text, "}")
		if end > start {
			if err := json.Unmarshal([]byte(text[start:end+1]), &obj); err == nil {
				return obj, nil
			}
		}
	}

	preview := raw
	if len(preview) > 100 {
		preview = preview[:100] + "..."
	}
	return nil, fmt.Errorf("no JSON object found in output: %q", preview)
}

// stripCodeFences removes markdown code fence markers.
// Handles ```json\n...\n``` and ```\n...\n```.
func stripCodeFences(text string) string {
	trimmed := strings.TrimSpace(text)

	if strings.HasPrefix(trimmed, "```json") {
		trimmed = strings.TrimSpace(strings.TrimPrefix(trimmed, "```json"))
	} else if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimSpace(strings.TrimPrefix(trimmed, "```"))
	}

	if strings.HasSuffix(trimmed, "```") {
		trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, "```"))
	}

	return trimmed
}
