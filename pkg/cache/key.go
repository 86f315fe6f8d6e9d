package cache

import (
	"net/url"
	"sort"
	"strings"
)

// KeyPrefix namespaces every key this package writes.
const KeyPrefix = "jshunt"

// CacheKey identifies a cached response by request path and query.
type CacheKey struct {
	Path  string
	Query url.Values
}

// String renders a deterministic Redis key.
//
//	jshunt:products:page=2
func (k CacheKey) String() string {
	var b strings.Builder
	b.WriteString(KeyPrefix)

	if p := strings.Trim(k.Path, "/"); p != "" {
		b.WriteByte(':')
		b.WriteString(p)
	}

	names := make([]string, 0, len(k.Query))
	for name := range k.Query {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		b.WriteByte(':')
		b.WriteString(name)
		b.WriteByte('=')
		b.WriteString(strings.Join(k.Query[name], ","))
	}

	return b.String()
}
