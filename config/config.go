// Package config loads the YAML document that describes a functional test run.
package config

import (
	"fmt"
	"maps"
	"strings"
	"time"
)

// Config is an immutable, key-path addressable config document.
// Key paths separate nested keys with dots, e.g. "mochaOpts.grep".
type Config struct {
	path string
	data map[string]any
}

// Path returns the file the config was loaded from, empty for configs built in memory
func (c *Config) Path() string {
	return c.path
}

// Get returns a copy of the value at key, or nil when it is not set
func (c *Config) Get(key string) any {
	v, ok := lookup(c.data, key)
	if !ok {
		return nil
	}
	return deepCopy(v)
}

// Has reports whether key is set
func (c *Config) Has(key string) bool {
	_, ok := lookup(c.data, key)
	return ok
}

// String returns the string at key, empty when unset
func (c *Config) String(key string) string {
	v, _ := lookup(c.data, key)
	s, _ := v.(string)
	return s
}

// Strings returns the list of strings at key
func (c *Config) Strings(key string) []string {
	v, _ := lookup(c.data, key)
	list, _ := toStrings(v)
	return list
}

// Bool returns the bool at key, false when unset
func (c *Config) Bool(key string) bool {
	v, _ := lookup(c.data, key)
	b, _ := v.(bool)
	return b
}

// Int returns the integer at key, 0 when unset
func (c *Config) Int(key string) int {
	v, _ := lookup(c.data, key)
	n, _ := toInt(v)
	return n
}

// Duration returns the duration at key. Strings are parsed with time.ParseDuration,
// plain numbers are milliseconds.
func (c *Config) Duration(key string) time.Duration {
	v, _ := lookup(c.data, key)
	d, _ := toDuration(v)
	return d
}

// Sub returns a copy of the map at key, nil when key is unset or not a map
func (c *Config) Sub(key string) map[string]any {
	v, _ := lookup(c.data, key)
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	return deepCopy(m).(map[string]any)
}

// All returns a copy of the whole document
func (c *Config) All() map[string]any {
	return deepCopy(c.data).(map[string]any)
}

func lookup(data map[string]any, key string) (any, bool) {
	var cur any = data
	for _, part := range strings.Split(key, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// set writes v at key, creating intermediate maps
func set(data map[string]any, key string, v any) error {
	parts := strings.Split(key, ".")
	m := data
	for i, part := range parts[:len(parts)-1] {
		next, ok := m[part]
		if !ok {
			child := make(map[string]any)
			m[part] = child
			m = child
			continue
		}
		child, ok := next.(map[string]any)
		if !ok {
			return fmt.Errorf("%s is not a map", strings.Join(parts[:i+1], "."))
		}
		m = child
	}
	m[parts[len(parts)-1]] = v
	return nil
}

func deepCopy(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = deepCopy(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = deepCopy(val)
		}
		return out
	case []string:
		return append([]string(nil), t...)
	default:
		return v
	}
}

// merge deep-merges src over dst. Maps merge recursively, everything else is replaced.
func merge(dst, src map[string]any) map[string]any {
	out := maps.Clone(dst)
	if out == nil {
		out = make(map[string]any, len(src))
	}
	for k, v := range src {
		srcMap, srcIsMap := v.(map[string]any)
		dstMap, dstIsMap := out[k].(map[string]any)
		if srcIsMap && dstIsMap {
			out[k] = merge(dstMap, srcMap)
			continue
		}
		out[k] = deepCopy(v)
	}
	return out
}

func toStrings(v any) ([]string, bool) {
	switch t := v.(type) {
	case nil:
		return nil, true
	case []string:
		return append([]string(nil), t...), true
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	default:
		return nil, false
	}
}

func toInt(v any) (int, bool) {
	switch t := v.(type) {
	case int:
		return t, true
	case int64:
		return int(t), true
	case uint64:
		return int(t), true
	case float64:
		if t != float64(int(t)) {
			return 0, false
		}
		return int(t), true
	default:
		return 0, false
	}
}

func toDuration(v any) (time.Duration, bool) {
	if s, ok := v.(string); ok {
		d, err := time.ParseDuration(s)
		return d, err == nil
	}
	ms, ok := toInt(v)
	if !ok {
		return 0, false
	}
	return time.Duration(ms) * time.Millisecond, true
}
