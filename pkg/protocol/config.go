package protocol

import (
	"fmt"
	"strings"
)

// String returns config[key] when it is a string.
func String(config map[string]any, key string) string {
	s, _ := config[key].(string)

	return s
}

// StringOr returns config[key] or fallback when the key is absent or blank.
func StringOr(config map[string]any, key, fallback string) string {
	if s := strings.TrimSpace(String(config, key)); s != "" {
		return s
	}

	return fallback
}

// StringList accepts a single string, a comma separated string or a list of strings.
func StringList(config map[string]any, key string) []string {
	var raw []string

	switch v := config[key].(type) {
	case string:
		raw = strings.Split(v, ",")
	case []string:
		raw = v
	case []any:
		for _, item := range v {
			raw = append(raw, fmt.Sprint(item))
		}
	}

	out := make([]string, 0, len(raw))

	for _, s := range raw {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}

	return out
}

func Bool(config map[string]any, key string) bool {
	b, _ := config[key].(bool)

	return b
}

func Map(config map[string]any, key string) map[string]any {
	m, _ := config[key].(map[string]any)

	return m
}
