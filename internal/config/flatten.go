package config

import (
	"slices"
	"strings"
)

// secretFields are the last key segments whose values are masked, wherever
// they appear (backends.<name>.api_key, platform.token, gsheets.access_token).
var secretFields = map[string]bool{
	"api_key":      true,
	"token":        true,
	"access_token": true,
}

// IsSecretKey returns true if the given dot-separated key holds a secret.
func IsSecretKey(key string) bool {
	return secretFields[key[strings.LastIndex(key, ".")+1:]]
}

// Flatten converts a nested map into a flat map with dot-separated keys, so
// {"cognitive": {"backoff": {"max": "10s"}}} becomes {"cognitive.backoff.max": "10s"}.
// Arrays such as backends.<name>.models stay single values.
func Flatten(m map[string]any) map[string]any {
	out := make(map[string]any)
	walk(nil, m, func(path []string, v any) {
		out[strings.Join(path, ".")] = v
	})
	return out
}

func walk(path []string, m map[string]any, leaf func(path []string, v any)) {
	for k, v := range m {
		p := append(slices.Clip(path), k)
		if child, ok := v.(map[string]any); ok {
			walk(p, child, leaf)
			continue
		}
		leaf(p, v)
	}
}

// Unflatten is the inverse of Flatten. A key that collides with a scalar
// (e.g. "a" and "a.b") replaces the scalar with a section.
func Unflatten(flat map[string]any) map[string]any {
	out := make(map[string]any)
	for k, v := range flat {
		setPath(out, strings.Split(k, "."), v)
	}
	return out
}

func setPath(root map[string]any, path []string, v any) {
	section := root
	for _, part := range path[:len(path)-1] {
		next, ok := section[part].(map[string]any)
		if !ok {
			next = make(map[string]any)
			section[part] = next
		}
		section = next
	}
	section[path[len(path)-1]] = v
}

// MaskSecrets returns a copy of the flat map with secret values shown as
// "***xxxx", where xxxx is the last 4 characters. Empty values stay empty.
func MaskSecrets(flat map[string]any) map[string]any {
	out := make(map[string]any, len(flat))
	for k, v := range flat {
		s, ok := v.(string)
		if !IsSecretKey(k) || !ok || s == "" {
			out[k] = v
			continue
		}
		out[k] = "***" + s[max(0, len(s)-4):]
	}
	return out
}
