package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/Grundrak/shortlink-analytics-dashboard/internal/metrics"
	"github.com/Grundrak/shortlink-analytics-dashboard/internal/models"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker/v2"
)

const (
	streamBreakerName = "click-stream"
	streamBatchSize   = 50
	streamBlock       = 2 * time.Second
	streamRetryDelay  = time.Second
	payloadField      = "payload"

	// Entries another consumer has held this long are taken over.
	claimMinIdle  = time.Minute
	claimInterval = 30 * time.Second
	claimMaxPages = 20
)

// clickMessage is the stream payload. It carries the raw request data;
// enrichment happens on the consumer side.
type clickMessage struct {
	EventID   string    `json:"eventId"`
	URLID     uint      `json:"urlId"`
	IPAddress string    `json:"ipAddress"`
	UserAgent string    `json:"userAgent"`
	Referrer  string    `json:"referrer"`
	ClickedAt time.Time `json:"clickedAt"`
}

// ClickStream is a Redis Stream with a consumer group. Entries are acked only
// after the handler succeeds, so a crash between read and write redelivers
// the click.
type ClickStream struct {
	rdb      *redis.Client
	stream   string
	group    string
	consumer string
	logger   *slog.Logger
	breaker  *gobreaker.CircuitBreaker[string]
	block    time.Duration

	claimIdle  time.Duration
	claimEvery time.Duration
}

// NewClickStream uses consumer as the group member name. It must stay the
// same across restarts; an empty name falls back to the hostname.
func NewClickStream(rdb *redis.Client, stream, group, consumer string, logger *slog.Logger) *ClickStream {
	metrics.CircuitBreakerState.WithLabelValues(streamBreakerName).Set(0)

	if consumer == "" {
		consumer, _ = os.Hostname()
	}
	if consumer == "" {
		consumer = "recorder"
	}

	return &ClickStream{
		rdb:        rdb,
		stream:     stream,
		group:      group,
		consumer:   consumer,
		logger:     logger,
		block:      streamBlock,
		claimIdle:  claimMinIdle,
		claimEvery: claimInterval,
		breaker: gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
			Name:        streamBreakerName,
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn("Click stream circuit breaker state change", "from", from.String(), "to", to.String())
				metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
			},
		}),
	}
}

// EnsureGroup creates the stream and the consumer group if needed.
func (s *ClickStream) EnsureGroup(ctx context.Context) error {
	err := s.rdb.XGroupCreateMkStream(ctx, s.stream, s.group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}
	return nil
}

// Publish appends the click to the stream. It fails fast while the breaker
// is open.
func (s *ClickStream) Publish(ctx context.Context, click models.Click) error {
	payload, err := json.Marshal(clickMessage{
		EventID:   click.EventID,
		URLID:     click.URLID,
		IPAddress: click.IPAddress,
		UserAgent: click.UserAgent,
		Referrer:  click.Referrer,
		ClickedAt: click.ClickedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to encode click: %w", err)
	}

	_, err = s.breaker.Execute(func() (string, error) {
		return s.rdb.XAdd(ctx, &redis.XAddArgs{
			Stream: s.stream,
			Values: map[string]interface{}{payloadField: string(payload)},
		}).Result()
	})
	return err
}

// Consume reads the group until ctx is cancelled. Entries that a failed
// handler left pending are retried before new ones, and entries stuck with
// any consumer for longer than claimIdle are taken over periodically.
func (s *ClickStream) Consume(ctx context.Context, handle func(context.Context, models.Click) error) {
	if err := s.EnsureGroup(ctx); err != nil {
		s.logger.Error("Click stream unavailable, consumer not started", "error", err)
		return
	}
	s.logger.Info("Click stream consumer starting", "stream", s.stream, "group", s.group, "consumer", s.consumer)

	retryPending := true
	var lastClaim time.Time
	for ctx.Err() == nil {
		if time.Since(lastClaim) >= s.claimEvery {
			lastClaim = time.Now()
			_, failed, err := s.claim(ctx, handle)
			if err != nil && ctx.Err() == nil {
				s.logger.Error("Click stream claim failed", "error", err)
			}
			if failed > 0 {
				retryPending = true
			}
		}

		if retryPending {
			_, failed, err := s.drain(ctx, "0", -1, handle)
			retryPending = failed > 0 || err != nil
		}

		_, failed, err := s.drain(ctx, ">", s.block, handle)
		if failed > 0 {
			retryPending = true
		}
		if err != nil && ctx.Err() == nil {
			s.logger.Error("Click stream read failed", "error", err)
			select {
			case <-time.After(streamRetryDelay):
			case <-ctx.Done():
			}
		}
	}
	s.logger.Info("Click stream consumer stopping")
}

// drain reads one batch starting at id ("0" for this consumer's pending
// entries, ">" for new ones) and acks every entry the handler accepted. A
// negative block returns immediately when nothing is available.
func (s *ClickStream) drain(ctx context.Context, id string, block time.Duration, handle func(context.Context, models.Click) error) (handled, failed int, err error) {
	streams, err := s.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    s.group,
		Consumer: s.consumer,
		Streams:  []string{s.stream, id},
		Count:    streamBatchSize,
		Block:    block,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return 0, 0, nil
	}
	if err != nil {
		return 0, 0, err
	}

	for _, st := range streams {
		h, f := s.process(ctx, st.Messages, handle)
		handled += h
		failed += f
	}
	return handled, failed, nil
}

// claim moves entries idle for at least claimIdle to this consumer and
// handles them. This recovers clicks read by a consumer that died before
// acking.
func (s *ClickStream) claim(ctx context.Context, handle func(context.Context, models.Click) error) (handled, failed int, err error) {
	start := "0-0"
	for page := 0; page < claimMaxPages; page++ {
		msgs, next, err := s.rdb.XAutoClaim(ctx, &redis.XAutoClaimArgs{
			Stream:   s.stream,
			Group:    s.group,
			Consumer: s.consumer,
			MinIdle:  s.claimIdle,
			Start:    start,
			Count:    streamBatchSize,
		}).Result()
		if err != nil {
			return handled, failed, err
		}

		h, f := s.process(ctx, msgs, handle)
		handled += h
		failed += f

		if next == "0-0" || next == "" {
			break
		}
		start = next
	}

	if handled+failed > 0 {
		s.logger.Info("Claimed stale click entries", "handled", handled, "failed", failed)
	}
	return handled, failed, nil
}

// process hands each entry to handle and acks the ones it accepted.
func (s *ClickStream) process(ctx context.Context, msgs []redis.XMessage, handle func(context.Context, models.Click) error) (handled, failed int) {
	for _, msg := range msgs {
		click, decodeErr := decodeClick(msg)
		if decodeErr != nil {
			// Undecodable entries are acked so they do not block the group.
			s.logger.Error("Dropping malformed click entry", "id", msg.ID, "error", decodeErr)
		} else if handleErr := handle(ctx, click); handleErr != nil {
			s.logger.Error("Failed to record click from stream", "id", msg.ID, "event_id", click.EventID, "error", handleErr)
			failed++
			continue
		}

		if ackErr := s.rdb.XAck(ctx, s.stream, s.group, msg.ID).Err(); ackErr != nil {
			s.logger.Error("Failed to ack click entry", "id", msg.ID, "error", ackErr)
		}
		handled++
	}
	return handled, failed
}

func decodeClick(msg redis.XMessage) (models.Click, error) {
	raw, ok := msg.Values[payloadField].(string)
	if !ok {
		return models.Click{}, errors.New("missing payload field")
	}

	var m clickMessage
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return models.Click{}, err
	}
	if m.EventID == "" || m.URLID == 0 {
		return models.Click{}, errors.New("incomplete click payload")
	}

	return models.Click{
		EventID:   m.EventID,
		URLID:     m.URLID,
		IPAddress: m.IPAddress,
		UserAgent: m.UserAgent,
		Referrer:  m.Referrer,
		ClickedAt: m.ClickedAt,
	}, nil
}
