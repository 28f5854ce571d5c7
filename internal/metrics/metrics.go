// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Recorder captures metric events for the application.
type Recorder interface {
	// Bookmark metrics
	IncBookmarkCreated()
	IncBookmarkCacheHit()
	IncBookmarkCacheMiss()

	// Auth metrics; method is "api_key" or "basic", outcome "success" or "failure".
	IncAuthAttempt(method, outcome string)

	// HTTP metrics
	ObserveRequest(method, route string, status int, duration time.Duration)

	// Event stream metrics
	IncEventPublished(status string) // "success" or "dropped"
	IncEventProcessed(status string) // "success", "failed" or "skipped"
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}
