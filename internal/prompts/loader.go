// Package prompts holds the LLM prompt templates, embedded as JSON files of
// key to template.
package prompts

import (
	"embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
)

//go:embed *.json
var promptFiles embed.FS

var (
	cache   = make(map[string]map[string]string)
	cacheMu sync.RWMutex
)

// Get returns the template stored under key in file (e.g. "evaluation.json").
func Get(file, key string) (string, error) {
	templates, err := load(file)
	if err != nil {
		return "", err
	}
	tmpl, ok := templates[key]
	if !ok {
		return "", fmt.Errorf("prompt key %q not found in %s", key, file)
	}
	return tmpl, nil
}

// MustGet is Get for templates that are required to exist. It panics otherwise.
func MustGet(file, key string) string {
	tmpl, err := Get(file, key)
	if err != nil {
		panic(fmt.Sprintf("failed to load prompt: %v", err))
	}
	return tmpl
}

// Format substitutes {{.Key}} placeholders with values from data.
// Unknown placeholders are left in place.
func Format(tmpl string, data map[string]string) string {
	pairs := make([]string, 0, 2*len(data))
	for key, value := range data {
		pairs = append(pairs, "{{."+key+"}}", value)
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}

func load(file string) (map[string]string, error) {
	cacheMu.RLock()
	templates, ok := cache[file]
	cacheMu.RUnlock()
	if ok {
		return templates, nil
	}

	data, err := promptFiles.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read prompt file %s: %w", file, err)
	}
	if err := json.Unmarshal(data, &templates); err != nil {
		return nil, fmt.Errorf("failed to parse prompt file %s: %w", file, err)
	}

	cacheMu.Lock()
	cache[file] = templates
	cacheMu.Unlock()
	return templates, nil
}
