package ratelimit

import (
	"net/http"
	"strings"
)

// unlimitedPaths are never rate limited (probes and scrapers).
var unlimitedPaths = map[string]bool{
	"/api/health": true,
	"/metrics":    true,
}

var unlimited = &EndpointConfig{Path: "*", Method: "*"}

// MatchEndpoint matches a request path and method to an endpoint configuration.
// Exact paths win over prefixes; the longest matching prefix wins among prefixes.
// Returns nil when no rule applies.
func MatchEndpoint(path string, method string, configs []EndpointConfig) *EndpointConfig {
	if method == http.MethodOptions || (method == http.MethodGet && unlimitedPaths[path]) {
		return unlimited
	}

	var best *EndpointConfig
	for i := range configs {
		c := &configs[i]
		if c.Method != method {
			continue
		}
		if c.Path == path {
			return c
		}
		if strings.HasSuffix(c.Path, "/") && strings.HasPrefix(path, c.Path) {
			if best == nil || len(c.Path) > len(best.Path) {
				best = c
			}
		}
	}
	return best
}
