package util

import (
	"encoding/json"
	"regexp"
	"strings"
)

var idFieldRe = regexp.MustCompile(`"id"\s*:\s*"([^"]+)"`)

// ExtractID pulls the value of the "id" field out of a resolver agent's
// response. Only "id" counts; similar fields like "userId" or "uid" are
// ignored. The response may be a JSON object, a JSON array (first element
// wins), or prose with an embedded JSON fragment.
func ExtractID(text string) (string, bool) {
	trimmed := strings.TrimSpace(text)

	var obj map[string]any
	if err := json.Unmarshal([]byte(trimmed), &obj); err == nil {
		return idFromObject(obj)
	}

	var arr []map[string]any
	if err := json.Unmarshal([]byte(trimmed), &arr); err == nil && len(arr) > 0 {
		return idFromObject(arr[0])
	}

	if m := idFieldRe.FindStringSubmatch(trimmed); m != nil {
		return m[1], true
	}
	return "", false
}

func idFromObject(obj map[string]any) (string, bool) {
	v, ok := obj["id"]
	if !ok {
		return "", false
	}
	switch id := v.(type) {
	case string:
		return id, id != ""
	case float64:
		b, _ := json.Marshal(id)
		return string(b), true
	default:
		return "", false
	}
}
