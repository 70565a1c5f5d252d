package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/log"
	"gopkg.in/yaml.v3"
)

// extendsKey names the parent document of a config file, relative to the file itself
const extendsKey = "extends"

// Load reads the config file at path, resolves its extends chain, applies
// overrides and defaults, and validates the result. Override keys may be key paths.
func Load(logger log.Logger, path string, overrides map[string]any) (*Config, error) {
	if logger == nil {
		logger = log.New()
		logger.Error("No logger provided, using default")
	}
	if path == "" {
		return nil, &Error{Op: "read", Err: errors.New("config path is required")}
	}

	logger.Debug("Loading config", "path", path)
	data, err := loadChain(logger, path, make(map[string]bool))
	if err != nil {
		return nil, err
	}

	if len(overrides) > 0 {
		expanded := make(map[string]any)
		for key, v := range overrides {
			if err := set(expanded, key, deepCopy(v)); err != nil {
				return nil, &Error{Op: "override", Path: key, Err: err}
			}
		}
		data = merge(data, expanded)
		logger.Debug("Applied config overrides", "count", len(overrides))
	}

	return build(path, data)
}

// loadChain reads path and every file it extends, merging children over parents
func loadChain(logger log.Logger, path string, visited map[string]bool) (map[string]any, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, &Error{Op: "read", Path: path, Err: err}
	}
	if visited[abs] {
		return nil, &Error{Op: "extends", Path: path, Err: errors.New("circular extends detected")}
	}
	visited[abs] = true
	defer delete(visited, abs)

	data, err := readFile(abs)
	if err != nil {
		return nil, err
	}

	parentRef, ok := data[extendsKey]
	if !ok {
		return data, nil
	}
	delete(data, extendsKey)

	parentPath, ok := parentRef.(string)
	if !ok || parentPath == "" {
		return nil, &Error{Op: "extends", Path: path, Err: fmt.Errorf("extends must be a file path, got %T", parentRef)}
	}
	if !filepath.IsAbs(parentPath) {
		parentPath = filepath.Join(filepath.Dir(abs), parentPath)
	}
	logger.Debug("Config extends parent", "path", path, "parent", parentPath)

	parent, err := loadChain(logger, parentPath, visited)
	if err != nil {
		return nil, err
	}
	return merge(parent, data), nil
}

func readFile(path string) (map[string]any, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, &Error{Op: "read", Path: path, Err: err}
	}
	data := make(map[string]any)
	if err := yaml.Unmarshal(raw, &data); err != nil {
		return nil, &Error{Op: "parse", Path: path, Err: err}
	}
	return data, nil
}

// ParseOverrides parses key.path=value pairs. Values are decoded as YAML so
// "true", "30s" and "[a, b]" keep their types.
func ParseOverrides(pairs []string) (map[string]any, error) {
	out := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, &Error{Op: "override", Path: pair, Err: errors.New("expected key.path=value")}
		}
		var v any
		if err := yaml.Unmarshal([]byte(raw), &v); err != nil {
			return nil, &Error{Op: "override", Path: key, Err: err}
		}
		out[key] = v
	}
	return out, nil
}
