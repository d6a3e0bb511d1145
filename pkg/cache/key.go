package cache

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// KeyPrefix namespaces every key written by this package.
const KeyPrefix = "tosdr"

// Key identifies a cached lookup.
type Key struct {
	// Resource is the record kind (e.g. "service").
	Resource string

	// Params are the lookup parameters (e.g. {"id": "182"}).
	Params url.Values
}

// ServiceKey returns the key of a single-service lookup.
func ServiceKey(id int) Key {
	return Key{
		Resource: "service",
		Params:   url.Values{"id": []string{strconv.Itoa(id)}},
	}
}

// String generates a deterministic key string.
// Format: tosdr:resource:param1=val1:param2=val2
//
// Example:
//
//	tosdr:service:id=182
func (k Key) String() string {
	parts := []string{KeyPrefix}

	if resource := strings.Trim(k.Resource, "/:"); resource != "" {
		parts = append(parts, resource)
	}

	// Sorted for determinism
	if len(k.Params) > 0 {
		names := make([]string, 0, len(k.Params))
		for name := range k.Params {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			parts = append(parts, fmt.Sprintf("%s=%s", name, k.Params.Get(name)))
		}
	}

	return strings.Join(parts, ":")
}
