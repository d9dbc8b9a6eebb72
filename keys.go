package circulate

import "strings"

const (
	// allBooksKey caches the unfiltered catalog listing.
	allBooksKey = "books:all"
	// searchKeyPrefix namespaces per-query listings; the invalidation path
	// lists and deletes everything under it.
	searchKeyPrefix = "search:"
)

// normalizeQuery canonicalizes a search query so that equivalent inputs
// share one cache entry.
func normalizeQuery(q string) string {
	return strings.ToLower(strings.TrimSpace(q))
}

// searchKey maps a normalized query to its cache key; the empty query is
// the full listing.
func searchKey(normalized string) string {
	if normalized == "" {
		return allBooksKey
	}
	return searchKeyPrefix + normalized
}
