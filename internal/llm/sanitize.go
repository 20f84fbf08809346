package llm

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// StripCodeFence removes a surrounding ```json ... ``` block some models add.
func StripCodeFence(content string) string {
	s := strings.TrimSpace(content)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
}

// SanitizeNumbers coerces numeric strings to numbers for the given keys and rescales a
// 0..1 "confidence" to 0..100, so a reply can still validate. It reports the keys it touched.
func SanitizeNumbers(doc []byte, keys ...string) ([]byte, []string, error) {
	var m map[string]any
	if err := json.Unmarshal(doc, &m); err != nil {
		return nil, nil, fmt.Errorf("sanitize: decode: %w", err)
	}

	var changed []string
	for _, k := range keys {
		s, ok := m[k].(string)
		if !ok {
			continue
		}
		s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%"))
		if s == "" || strings.EqualFold(s, "null") {
			m[k] = nil
			changed = append(changed, k)
			continue
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			m[k] = f
			changed = append(changed, k)
		}
	}
	if c, ok := m["confidence"].(float64); ok && c > 0 && c <= 1 {
		m["confidence"] = c * 100
		changed = append(changed, "confidence(scaled)")
	}

	out, err := json.Marshal(m)
	if err != nil {
		return nil, nil, fmt.Errorf("sanitize: encode: %w", err)
	}
	return out, changed, nil
}
