// Package sources turns a free-text query into candidate image URLs.
//
// Every provider implements Source. Fetch returns one page of candidates
// and an opaque cursor for the next call, so paged APIs (Wallhaven,
// Pixabay, Pexels), per-subreddit queries (Reddit) and single-shot URL
// generators (the Unsplash redirector) are driven by the same loop.
package sources
