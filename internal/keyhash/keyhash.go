package keyhash

import (
	"net/http"
	"sort"

	"github.com/cespare/xxhash/v2"
)

// Key hashes parts with a separator so ("ab","c") and ("a","bc") differ.
func Key(parts ...string) uint64 {
	hasher := xxhash.New()
	for i, p := range parts {
		if i > 0 {
			_, _ = hasher.WriteString("::")
		}
		_, _ = hasher.WriteString(p)
	}
	return hasher.Sum64()
}

// Request derives the cache key of a request: method, full URL and the values of the
// named headers in sorted order.
func Request(r *http.Request, vary ...string) uint64 {
	parts := []string{r.Method, r.URL.String()}
	if len(vary) > 0 {
		names := append([]string(nil), vary...)
		sort.Strings(names)
		for _, name := range names {
			parts = append(parts, http.CanonicalHeaderKey(name)+"="+r.Header.Get(name))
		}
	}
	return Key(parts...)
}
