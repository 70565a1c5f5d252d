package config

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

const (
	DefaultTimeout          = 360 * time.Second
	DefaultSuiteTrackerPath = "target/ftr/suites.json"
	DefaultFailureDebugDir  = "target/ftr/failure_debug"
)

type kind int

const (
	kindString kind = iota
	kindStrings
	kindBool
	kindInt
	kindDuration
	kindMap
)

func (k kind) String() string {
	switch k {
	case kindString:
		return "a string"
	case kindStrings:
		return "a list of strings"
	case kindBool:
		return "a bool"
	case kindInt:
		return "an integer"
	case kindDuration:
		return "a duration"
	case kindMap:
		return "a map"
	default:
		return "unknown"
	}
}

// schema lists the keys the runner understands. Unknown keys are kept so that
// services can read their own settings.
var schema = map[string]kind{
	"testFiles":                       kindStrings,
	"testRunner":                      kindString,
	"services":                        kindStrings,
	"pageObjects":                     kindStrings,
	"servicesRequiredForTestAnalysis": kindStrings,
	"suiteTags.include":               kindStrings,
	"suiteTags.exclude":               kindStrings,
	"suiteFiles.include":              kindStrings,
	"suiteFiles.exclude":              kindStrings,
	"mochaOpts.grep":                  kindString,
	"mochaOpts.invert":                kindBool,
	"mochaOpts.bail":                  kindBool,
	"mochaOpts.timeout":               kindDuration,
	"esTestCluster.version":           kindString,
	"suiteTracker.path":               kindString,
	"failureDebugging.dir":            kindString,
	"timeouts.try":                    kindDuration,
	"dockerServers":                   kindMap,
	"servers":                         kindMap,
	"servers.elasticsearch.protocol":  kindString,
	"servers.elasticsearch.hostname":  kindString,
	"servers.elasticsearch.port":      kindInt,
	"servers.elasticsearch.username":  kindString,
	"servers.elasticsearch.password":  kindString,
}

var defaults = map[string]any{
	"mochaOpts.timeout":    DefaultTimeout.String(),
	"mochaOpts.bail":       false,
	"mochaOpts.invert":     false,
	"suiteTracker.path":    DefaultSuiteTrackerPath,
	"failureDebugging.dir": DefaultFailureDebugDir,
}

// New applies defaults to data and validates it
func New(data map[string]any) (*Config, error) {
	return build("", data)
}

func build(path string, data map[string]any) (*Config, error) {
	data = merge(nil, data)
	for key, v := range defaults {
		if _, ok := lookup(data, key); ok {
			continue
		}
		if err := set(data, key, v); err != nil {
			return nil, &Error{Op: "validate", Path: key, Err: err}
		}
	}
	if err := validate(data); err != nil {
		return nil, err
	}
	return &Config{path: path, data: data}, nil
}

func validate(data map[string]any) error {
	keys := make([]string, 0, len(schema))
	for key := range schema {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		v, ok := lookup(data, key)
		if !ok || v == nil {
			continue
		}
		if !hasKind(v, schema[key]) {
			return &Error{Op: "validate", Path: key, Err: fmt.Errorf("must be %s, got %T", schema[key], v)}
		}
	}

	if err := validateDockerServers(data); err != nil {
		return err
	}

	testFiles, _ := lookup(data, "testFiles")
	files, _ := toStrings(testFiles)
	runner, _ := lookup(data, "testRunner")
	if name, _ := runner.(string); len(files) == 0 && name == "" {
		return &Error{Op: "validate", Err: ErrNoTests}
	}
	return nil
}

func validateDockerServers(data map[string]any) error {
	v, ok := lookup(data, "dockerServers")
	if !ok || v == nil {
		return nil
	}
	servers := v.(map[string]any)
	fields := map[string]kind{
		"enabled":         kindBool,
		"image":           kindString,
		"port":            kindInt,
		"portInContainer": kindInt,
		"waitForLogLine":  kindString,
		"waitTimeout":     kindDuration,
		"args":            kindStrings,
	}
	for name, raw := range servers {
		server, ok := raw.(map[string]any)
		if !ok {
			return &Error{Op: "validate", Path: "dockerServers." + name, Err: errors.New("must be a map")}
		}
		for field, k := range fields {
			fv, ok := server[field]
			if !ok || fv == nil {
				continue
			}
			if !hasKind(fv, k) {
				return &Error{Op: "validate", Path: "dockerServers." + name + "." + field, Err: fmt.Errorf("must be %s, got %T", k, fv)}
			}
		}
		if enabled, _ := server["enabled"].(bool); enabled {
			if image, _ := server["image"].(string); image == "" {
				return &Error{Op: "validate", Path: "dockerServers." + name + ".image", Err: errors.New("required when the server is enabled")}
			}
		}
	}
	return nil
}

func hasKind(v any, k kind) bool {
	switch k {
	case kindString:
		_, ok := v.(string)
		return ok
	case kindStrings:
		_, ok := toStrings(v)
		return ok
	case kindBool:
		_, ok := v.(bool)
		return ok
	case kindInt:
		_, ok := toInt(v)
		return ok
	case kindDuration:
		_, ok := toDuration(v)
		return ok
	case kindMap:
		_, ok := v.(map[string]any)
		return ok
	default:
		return false
	}
}
