package storage

// CrawlStore tracks which pages and image URLs a crawl has already seen.
// The crawler consults it before descending into a page and before emitting
// an image URL, so every URL is processed at most once per run.
type CrawlStore interface {
	// MarkPageVisited records a normalized page URL as visited.
	// Returns true if the URL was newly added, false if it already existed.
	MarkPageVisited(normalizedURL string) (bool, error)

	// MarkImageSeen records a normalized image URL as discovered.
	// Returns true if the URL was newly added, false if it already existed.
	MarkImageSeen(normalizedURL string) (bool, error)

	// VisitedCount returns the total number of tracked page and image keys.
	VisitedCount() (int, error)

	// Close releases any resources held by the store.
	Close() error
}
