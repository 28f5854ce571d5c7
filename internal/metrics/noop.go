package metrics

import "time"

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return NoopRecorder{}
}

func (NoopRecorder) IncBookmarkCreated() {}
func (NoopRecorder) IncBookmarkCacheHit() {}
func (NoopRecorder) IncBookmarkCacheMiss() {}
func (NoopRecorder) IncAuthAttempt(string, string) {}
func (NoopRecorder) ObserveRequest(string, string, int, time.Duration) {}
func (NoopRecorder) IncEventPublished(string) {}
func (NoopRecorder) IncEventProcessed(string) {}

// OrNoop returns r, or a no-op recorder when r is nil.
func OrNoop(r Recorder) Recorder {
	if r == nil {
		return NoopRecorder{}
	}
	return r
}
