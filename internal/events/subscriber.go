package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/bookmarks/bookmarks/internal/metrics"
	"github.com/redis/go-redis/v9"
)

const (
	// ConsumerGroup is the Redis consumer group name.
	ConsumerGroup = "bookmark_listeners"

	DefaultBatchSize     = 100
	DefaultBlockTimeout  = 5 * time.Second
	DefaultClaimInterval = 10 * time.Second
	DefaultClaimIdle     = 30 * time.Second
)

// Handler reacts to one event. A returned error leaves the message pending
// so it is redelivered after DefaultClaimIdle.
type Handler func(ctx context.Context, event Event) error

// LogHandler returns a Handler that logs every event.
func LogHandler(logger *slog.Logger) Handler {
	return func(_ context.Context, e Event) error {
		logger.Info("bookmark event received",
			"type", e.Type,
			"bookmark_id", e.BookmarkID,
			"owner", e.Owner,
			"uri", e.URI,
			"occurred_at", e.Time(),
		)
		return nil
	}
}

// Subscriber reads the bookmark stream through a consumer group.
type Subscriber struct {
	redis         *redis.Client
	handle        Handler
	logger        *slog.Logger
	metrics       metrics.Recorder
	consumerID    string
	batchSize     int
	blockTimeout  time.Duration
	claimInterval time.Duration
	claimIdle     time.Duration
	claimStartID  string
	lastClaim     time.Time

	started  bool
	draining bool
	cancel   context.CancelFunc
	done     chan struct{}
	mu       sync.Mutex
}

// NewSubscriber creates a subscriber that passes each event to handle.
func NewSubscriber(client *redis.Client, handle Handler, logger *slog.Logger, consumerID string, recorder metrics.Recorder) *Subscriber {
	return &Subscriber{
		redis:         client,
		handle:        handle,
		logger:        logger.With("component", "events.subscriber", "consumer_id", consumerID),
		metrics:       metrics.OrNoop(recorder),
		consumerID:    consumerID,
		batchSize:     DefaultBatchSize,
		blockTimeout:  DefaultBlockTimeout,
		claimInterval: DefaultClaimInterval,
		claimIdle:     DefaultClaimIdle,
		claimStartID:  "0-0",
	}
}

// SetBlockTimeout overrides the default blocking timeout.
func (s *Subscriber) SetBlockTimeout(timeout time.Duration) {
	if timeout > 0 {
		s.blockTimeout = timeout
	}
}

// Run consumes events until ctx is cancelled or Shutdown is called.
func (s *Subscriber) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return errors.New("subscriber already started")
	}
	s.started = true
	s.done = make(chan struct{})
	ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	defer close(s.done)

	if err := s.ensureConsumerGroup(ctx); err != nil {
		return fmt.Errorf("ensure consumer group: %w", err)
	}

	s.logger.Info("event subscriber started")

	for {
		s.mu.Lock()
		draining := s.draining
		s.mu.Unlock()
		if draining {
			return nil
		}

		select {
		case <-ctx.Done():
			s.logger.Info("event subscriber stopping")
			return nil
		default:
		}

		if err := s.processOnce(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			s.logger.Error("event processing error", "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
		}
	}
}

// Shutdown stops the subscriber and waits for the current batch.
// It matches server.ShutdownFunc.
func (s *Subscriber) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.draining = true
	cancel := s.cancel
	done := s.done
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	select {
	case <-done:
		s.logger.Info("event subscriber shutdown complete")
		return nil
	case <-ctx.Done():
		s.logger.Warn("event subscriber shutdown timed out")
		return ctx.Err()
	}
}

func (s *Subscriber) ensureConsumerGroup(ctx context.Context) error {
	err := s.redis.XGroupCreateMkStream(ctx, StreamKey, ConsumerGroup, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return err
	}
	return nil
}

func (s *Subscriber) processOnce(ctx context.Context) error {
	messages, err := s.maybeClaimPending(ctx)
	if err != nil {
		s.logger.Warn("failed to claim pending messages", "error", err)
	}
	if len(messages) == 0 {
		messages, err = s.readBatch(ctx)
		if err != nil {
			return err
		}
	}

	for _, msg := range messages {
		if s.processMessage(ctx, msg) {
			if err := s.redis.XAck(ctx, StreamKey, ConsumerGroup, msg.ID).Err(); err != nil {
				return fmt.Errorf("xack: %w", err)
			}
		}
	}
	return nil
}

// processMessage reports whether msg may be acknowledged.
func (s *Subscriber) processMessage(ctx context.Context, msg redis.XMessage) bool {
	payload, ok := msg.Values["payload"].(string)
	if !ok {
		s.deadLetter(ctx, msg, "payload field missing or not a string")
		return true
	}

	event, err := decode(payload)
	if err != nil {
		s.deadLetter(ctx, msg, err.Error())
		return true
	}

	if err := s.handle(ctx, event); err != nil {
		s.logger.Warn("event handler failed",
			"message_id", msg.ID,
			"bookmark_id", event.BookmarkID,
			"error", err,
		)
		s.metrics.IncEventProcessed("failed")
		return false
	}

	s.metrics.IncEventProcessed("success")
	return true
}

func (s *Subscriber) readBatch(ctx context.Context) ([]redis.XMessage, error) {
	streams, err := s.redis.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    ConsumerGroup,
		Consumer: s.consumerID,
		Streams:  []string{StreamKey, ">"},
		Count:    int64(s.batchSize),
		Block:    s.blockTimeout,
	}).Result()
	switch {
	case errors.Is(err, redis.Nil):
		// Block timeout with nothing to read.
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("xreadgroup: %w", err)
	case len(streams) == 0:
		return nil, nil
	}
	return streams[0].Messages, nil
}

func (s *Subscriber) maybeClaimPending(ctx context.Context) ([]redis.XMessage, error) {
	if !s.lastClaim.IsZero() && time.Since(s.lastClaim) < s.claimInterval {
		return nil, nil
	}
	s.lastClaim = time.Now()

	messages, start, err := s.redis.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   StreamKey,
		Group:    ConsumerGroup,
		Consumer: s.consumerID,
		MinIdle:  s.claimIdle,
		Start:    s.claimStartID,
		Count:    int64(s.batchSize),
	}).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("xautoclaim: %w", err)
	}
	if start != "" {
		s.claimStartID = start
	}
	return messages, nil
}

func (s *Subscriber) deadLetter(ctx context.Context, msg redis.XMessage, detail string) {
	s.logger.Warn("dead-lettering malformed event", "message_id", msg.ID, "detail", detail)

	err := s.redis.XAdd(ctx, &redis.XAddArgs{
		Stream: DeadLetterStreamKey,
		MaxLen: 10000,
		Approx: true,
		ID:     "*",
		Values: map[string]any{
			"original_id":      msg.ID,
			"detail":           detail,
			"payload":          fmt.Sprint(msg.Values["payload"]),
			"dead_lettered_at": time.Now().UTC().Format(time.RFC3339),
		},
	}).Err()
	if err != nil {
		s.logger.Error("failed to write to dead-letter stream", "message_id", msg.ID, "error", err)
	}
	s.metrics.IncEventProcessed("skipped")
}
