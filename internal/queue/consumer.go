package queue

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/fire-team/ticket-router/internal/models"
)

// EventHandler processes one decoded enrichment event.
type EventHandler interface {
	Process(ctx context.Context, ev models.EnrichmentEvent) (models.AssignmentResult, error)
}

type ConsumerConfig struct {
	Stream   string
	Group    string
	Consumer string
	Workers  int
	Block    time.Duration
}

// Consumer reads the inbound stream through a consumer group. Every entry is
// acknowledged after its handler returns, successful or not; failures are
// logged and the entry is not redelivered.
type Consumer struct {
	client  *redis.Client
	cfg     ConsumerConfig
	handler EventHandler
	logger  zerolog.Logger
}

func NewConsumer(client *redis.Client, cfg ConsumerConfig, handler EventHandler, logger zerolog.Logger) *Consumer {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.Block <= 0 {
		cfg.Block = 2 * time.Second
	}
	if cfg.Consumer == "" {
		cfg.Consumer = "router-1"
	}
	return &Consumer{
		client:  client,
		cfg:     cfg,
		handler: handler,
		logger: logger.With().
			Str("component", "consumer").
			Str("stream", cfg.Stream).
			Str("group", cfg.Group).
			Logger(),
	}
}

// EnsureGroup creates the stream and consumer group if they do not exist.
func (c *Consumer) EnsureGroup(ctx context.Context) error {
	err := c.client.XGroupCreateMkStream(ctx, c.cfg.Stream, c.cfg.Group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return err
	}
	return nil
}

// Run blocks until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	if err := c.EnsureGroup(ctx); err != nil {
		return err
	}
	c.logger.Info().Int("workers", c.cfg.Workers).Msg("consumer started")

	for {
		if ctx.Err() != nil {
			c.logger.Info().Msg("consumer stopped")
			return nil
		}
		streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    c.cfg.Group,
			Consumer: c.cfg.Consumer,
			Streams:  []string{c.cfg.Stream, ">"},
			Count:    int64(c.cfg.Workers * 2),
			Block:    c.cfg.Block,
		}).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			c.logger.Error().Err(err).Msg("read from stream failed")
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
			continue
		}
		for _, s := range streams {
			c.handleBatch(ctx, s.Messages)
		}
	}
}

func (c *Consumer) handleBatch(ctx context.Context, msgs []redis.XMessage) {
	g := new(errgroup.Group)
	g.SetLimit(c.cfg.Workers)
	for _, msg := range msgs {
		g.Go(func() error {
			c.handle(ctx, msg)
			return nil
		})
	}
	_ = g.Wait()
}

func (c *Consumer) handle(ctx context.Context, msg redis.XMessage) {
	defer func() {
		// Ack on a fresh context so shutdown does not leave entries pending.
		ackCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := c.client.XAck(ackCtx, c.cfg.Stream, c.cfg.Group, msg.ID).Err(); err != nil {
			c.logger.Error().Err(err).Str("entry_id", msg.ID).Msg("ack failed")
		}
	}()

	ev, err := decodeEvent(msg)
	if err != nil {
		c.logger.Error().Err(err).Str("entry_id", msg.ID).Msg("dropping undecodable entry")
		return
	}
	if _, err := c.process(ctx, ev); err != nil {
		c.logger.Error().Err(err).
			Str("entry_id", msg.ID).
			Str("client_id", ev.ClientID.String()).
			Msg("event processing failed")
	}
}

func (c *Consumer) process(ctx context.Context, ev models.EnrichmentEvent) (res models.AssignmentResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error().Interface("panic", r).Msg("event handler panicked")
			err = errors.New("handler panic")
		}
	}()
	return c.handler.Process(ctx, ev)
}

// Enqueue appends an event to the inbound stream.
func Enqueue(ctx context.Context, client *redis.Client, stream string, ev models.EnrichmentEvent) (string, error) {
	data, err := jsonMarshal(ev)
	if err != nil {
		return "", err
	}
	return client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: map[string]any{
			fieldClientID: ev.ClientID.String(),
			fieldPayload:  data,
		},
	}).Result()
}
