// File: internal/genclient/extract.go
package genclient

import (
	"fmt"
	"regexp"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// fencedJSONRe captures the body of a ```json ... ``` (or bare ```) block.
var fencedJSONRe = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")

// ExtractJSONObject recovers a flat string-to-string JSON object from raw
// model output. Models wrap JSON in prose and markdown fences more often
// than not, so several strategies run in order:
//
//  1. parse the whole reply as-is
//  2. parse the body of a fenced code block
//  3. parse the first balanced {...} region
//  4. parse everything between the first '{' and the last '}',
//     retrying once with single quotes rewritten to double quotes
func ExtractJSONObject(raw string) (map[string]string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("empty model output")
	}

	if m, err := parseObject(trimmed); err == nil {
		return m, nil
	}

	if match := fencedJSONRe.FindStringSubmatch(trimmed); match != nil {
		if m, err := parseObject(match[1]); err == nil {
			return m, nil
		}
	}

	if region := firstBalancedObject(trimmed); region != "" {
		if m, err := parseObject(region); err == nil {
			return m, nil
		}
	}

	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start >= 0 && end > start {
		slice := trimmed[start : end+1]
		if m, err := parseObject(slice); err == nil {
			return m, nil
		}
		// Some models emit Python-style dicts with single quotes. A blanket
		// rewrite is only safe when the slice has no double quotes at all.
		if !strings.Contains(slice, `"`) {
			if m, err := parseObject(strings.ReplaceAll(slice, "'", `"`)); err == nil {
				return m, nil
			}
		}
	}

	return nil, fmt.Errorf("no JSON object found in model output")
}

// parseObject decodes into loosely typed values first so numeric or boolean
// field values coming back from the model still land as strings.
func parseObject(s string) (map[string]string, error) {
	var generic map[string]interface{}
	if err := json.UnmarshalFromString(s, &generic); err != nil {
		return nil, err
	}
	out := make(map[string]string, len(generic))
	for k, v := range generic {
		switch val := v.(type) {
		case string:
			out[k] = val
		case nil:
			out[k] = ""
		default:
			b, err := json.MarshalToString(val)
			if err != nil {
				return nil, err
			}
			out[k] = strings.Trim(b, `"`)
		}
	}
	return out, nil
}

// firstBalancedObject returns the first {...} region with balanced braces,
// respecting string literals and escapes.
func firstBalancedObject(s string) string {
	start := strings.Index(s, "{")
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if escaped {
			escaped = false
			continue
		}
		switch c {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return s[start : i+1]
				}
			}
		}
	}
	return ""
}

// CleanScalar strips fences, quotes and surrounding whitespace from a
// single-value model reply.
func CleanScalar(raw string) string {
	s := strings.TrimSpace(raw)
	if match := fencedJSONRe.FindStringSubmatch(s); match != nil {
		s = strings.TrimSpace(match[1])
	}
	s = strings.Trim(s, "`")
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	// Keep only the first line of multi-line chatter.
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		s = strings.TrimSpace(s[:idx])
	}
	return strings.TrimSpace(s)
}
