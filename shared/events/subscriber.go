package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Handler func(ctx context.Context, event Event) error

// DeadLetterSuffix names the stream that receives entries whose envelope
// cannot be decoded, e.g. "journal.pending.dead".
const DeadLetterSuffix = ".dead"

var errMalformed = errors.New("malformed stream entry")

// Subscriber is driven by a single goroutine; Start and ReclaimIdle must not
// run concurrently.
type Subscriber struct {
	client        *redis.Client
	group         string
	consumer      string
	stream        string
	handler       Handler
	batchSize     int64
	blockDuration time.Duration
	claimIdle     time.Duration
	claimEvery    time.Duration
	// claimCursor resumes XAUTOCLAIM where the previous sweep stopped, so a
	// full batch of entries that keep failing cannot hide the ones behind it.
	claimCursor string
	logger      *zap.Logger
}

type SubscriberConfig struct {
	Group         string
	Consumer      string
	Stream        string
	Handler       Handler
	BatchSize     int64
	BlockDuration time.Duration
	// ClaimIdle enables redelivery: entries left unacknowledged for longer
	// than ClaimIdle are claimed by this consumer and handled again.
	ClaimIdle  time.Duration
	ClaimEvery time.Duration
	Logger     *zap.Logger
}

func NewSubscriber(client *redis.Client, config SubscriberConfig) *Subscriber {
	if config.BatchSize == 0 {
		config.BatchSize = 10
	}
	if config.BlockDuration == 0 {
		config.BlockDuration = 5 * time.Second
	}
	if config.ClaimIdle > 0 && config.ClaimEvery == 0 {
		config.ClaimEvery = config.ClaimIdle
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}

	return &Subscriber{
		client:        client,
		group:         config.Group,
		consumer:      config.Consumer,
		stream:        config.Stream,
		handler:       config.Handler,
		batchSize:     config.BatchSize,
		blockDuration: config.BlockDuration,
		claimIdle:     config.ClaimIdle,
		claimEvery:    config.ClaimEvery,
		claimCursor:   "0-0",
		logger: config.Logger.With(
			zap.String("stream", config.Stream),
			zap.String("group", config.Group),
			zap.String("consumer", config.Consumer),
		),
	}
}

func (s *Subscriber) Start(ctx context.Context) error {
	// Create consumer group if it doesn't exist
	err := s.client.XGroupCreateMkStream(ctx, s.stream, s.group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}

	s.logger.Info("subscriber started")

	var lastClaim time.Time
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("subscriber stopping")
			return ctx.Err()
		default:
		}

		if s.claimIdle > 0 && time.Since(lastClaim) >= s.claimEvery {
			lastClaim = time.Now()
			if _, err := s.ReclaimIdle(ctx); err != nil && ctx.Err() == nil {
				s.logger.Warn("failed to reclaim idle messages", zap.Error(err))
			}
		}

		if err := s.readMessages(ctx); err != nil {
			if ctx.Err() != nil {
				continue
			}
			s.logger.Error("error reading messages", zap.Error(err))
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
		}
	}
}

func (s *Subscriber) readMessages(ctx context.Context) error {
	streams, err := s.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    s.group,
		Consumer: s.consumer,
		Streams:  []string{s.stream, ">"},
		Count:    s.batchSize,
		Block:    s.blockDuration,
	}).Result()

	if errors.Is(err, redis.Nil) {
		return nil // No messages
	}
	if err != nil {
		return fmt.Errorf("failed to read from stream: %w", err)
	}

	for _, stream := range streams {
		s.handleBatch(ctx, stream.Messages)
	}

	return nil
}

// ReclaimIdle claims up to one batch of entries that another delivery left
// unacknowledged and handles them again. Successive calls walk the pending
// list from where the last one stopped and wrap around at its end. It returns
// how many entries were handled successfully.
func (s *Subscriber) ReclaimIdle(ctx context.Context) (int, error) {
	messages, next, err := s.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   s.stream,
		Group:    s.group,
		Consumer: s.consumer,
		MinIdle:  s.claimIdle,
		Start:    s.claimCursor,
		Count:    s.batchSize,
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to claim idle messages: %w", err)
	}
	if next == "" {
		next = "0-0"
	}
	s.claimCursor = next
	return s.handleBatch(ctx, messages), nil
}

func (s *Subscriber) handleBatch(ctx context.Context, messages []redis.XMessage) int {
	handled := 0
	for _, message := range messages {
		err := s.processMessage(ctx, message)
		if errors.Is(err, errMalformed) {
			// Redelivery cannot fix the envelope; park it and ack.
			if dlqErr := s.deadLetter(ctx, message, err); dlqErr != nil {
				s.logger.Error("failed to dead-letter message", zap.String("message_id", message.ID), zap.Error(dlqErr))
				continue
			}
			s.logger.Error("dead-lettered malformed message", zap.String("message_id", message.ID), zap.Error(err))
		} else if err != nil {
			s.logger.Warn("failed to process message", zap.String("message_id", message.ID), zap.Error(err))
			// Don't ACK failed messages - they'll be retried
			continue
		}

		if ackErr := s.client.XAck(ctx, s.stream, s.group, message.ID).Err(); ackErr != nil {
			s.logger.Error("failed to ack message", zap.String("message_id", message.ID), zap.Error(ackErr))
			continue
		}
		if err == nil {
			handled++
		}
	}
	return handled
}

func (s *Subscriber) processMessage(ctx context.Context, message redis.XMessage) error {
	eventData, ok := message.Values["event"].(string)
	if !ok {
		return fmt.Errorf("%w: missing event field", errMalformed)
	}

	var event Event
	if err := json.Unmarshal([]byte(eventData), &event); err != nil {
		return fmt.Errorf("%w: %v", errMalformed, err)
	}

	return s.handler(ctx, event)
}

func (s *Subscriber) deadLetter(ctx context.Context, message redis.XMessage, cause error) error {
	values := map[string]any{
		"source_id": message.ID,
		"error":     cause.Error(),
	}
	for k, v := range message.Values {
		values["field_"+k] = v
	}
	return s.client.XAdd(ctx, &redis.XAddArgs{Stream: s.stream + DeadLetterSuffix, Values: values}).Err()
}
