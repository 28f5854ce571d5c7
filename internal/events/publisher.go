package events

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bookmarks/bookmarks/internal/metrics"
	"github.com/bookmarks/bookmarks/internal/model"
	"github.com/redis/go-redis/v9"
)

const (
	// StreamKey is the Redis stream for bookmark events.
	StreamKey = "stream:bookmark_events"

	// DeadLetterStreamKey receives messages that cannot be decoded.
	DeadLetterStreamKey = "stream:bookmark_events:dlq"

	// MaxStreamLen is the approximate max length of the stream.
	MaxStreamLen = 100000

	// PublishTimeout bounds an asynchronous publish.
	PublishTimeout = 100 * time.Millisecond
)

// Publisher appends events to the bookmark stream.
type Publisher struct {
	redis   *redis.Client
	logger  *slog.Logger
	metrics metrics.Recorder
	now     func() time.Time
}

// NewPublisher creates a new event publisher.
func NewPublisher(client *redis.Client, logger *slog.Logger, recorder metrics.Recorder) *Publisher {
	return &Publisher{
		redis:   client,
		logger:  logger.With("component", "events.publisher"),
		metrics: metrics.OrNoop(recorder),
		now:     time.Now,
	}
}

// Publish adds an event to the stream and returns its stream ID.
func (p *Publisher) Publish(ctx context.Context, event Event) (string, error) {
	payload, err := encode(event)
	if err != nil {
		return "", err
	}

	id, err := p.redis.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamKey,
		MaxLen: MaxStreamLen,
		Approx: true,
		ID:     "*",
		Values: map[string]any{"payload": payload},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("xadd: %w", err)
	}
	return id, nil
}

// PublishCreatedAsync emits bookmark.created without blocking the caller.
// Failures are logged and counted, never returned.
func (p *Publisher) PublishCreatedAsync(b *model.Bookmark) {
	event := NewBookmarkCreated(b, p.now())
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), PublishTimeout)
		defer cancel()

		streamID, err := p.Publish(ctx, event)
		if err != nil {
			p.logger.Warn("failed to publish bookmark event",
				"bookmark_id", event.BookmarkID,
				"error", err,
			)
			p.metrics.IncEventPublished("dropped")
			return
		}

		p.logger.Debug("bookmark event published",
			"bookmark_id", event.BookmarkID,
			"stream_id", streamID,
		)
		p.metrics.IncEventPublished("success")
	}()
}
