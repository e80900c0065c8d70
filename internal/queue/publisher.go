package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/fire-team/ticket-router/internal/models"
)

// StreamPublisher appends assignment results to the outbound stream and keeps
// the latest result per client in a hash for polling.
type StreamPublisher struct {
	client     *redis.Client
	stream     string
	resultsKey string
	maxLen     int64
	logger     zerolog.Logger
}

func NewStreamPublisher(client *redis.Client, stream string, logger zerolog.Logger) *StreamPublisher {
	return &StreamPublisher{
		client:     client,
		stream:     stream,
		resultsKey: stream + ":latest",
		maxLen:     100000,
		logger:     logger.With().Str("component", "publisher").Str("stream", stream).Logger(),
	}
}

func (p *StreamPublisher) Publish(ctx context.Context, r models.AssignmentResult) error {
	values, data, err := encodeResult(r)
	if err != nil {
		return err
	}
	_, err = p.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.XAdd(ctx, &redis.XAddArgs{
			Stream: p.stream,
			MaxLen: p.maxLen,
			Approx: true,
			Values: values,
		})
		pipe.HSet(ctx, p.resultsKey, r.ClientID.String(), data)
		return nil
	})
	if err != nil {
		return fmt.Errorf("publish result for %s: %w", r.ClientID, err)
	}
	p.logger.Debug().
		Str("client_id", r.ClientID.String()).
		Str("status", string(r.Status)).
		Msg("result published")
	return nil
}

// Results returns the latest published result for each known client id.
// Unknown ids are absent from the map.
func (p *StreamPublisher) Results(ctx context.Context, clientIDs []string) (map[string]models.AssignmentResult, error) {
	out := make(map[string]models.AssignmentResult, len(clientIDs))
	if len(clientIDs) == 0 {
		return out, nil
	}
	vals, err := p.client.HMGet(ctx, p.resultsKey, clientIDs...).Result()
	if err != nil {
		return nil, err
	}
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue
		}
		var r models.AssignmentResult
		if err := json.Unmarshal([]byte(s), &r); err != nil {
			p.logger.Warn().Err(err).Str("client_id", clientIDs[i]).Msg("skipping corrupt result")
			continue
		}
		out[clientIDs[i]] = r
	}
	return out, nil
}

// MemoryPublisher keeps results in process. It stands in for the stream when
// Redis is not configured.
type MemoryPublisher struct {
	mu      sync.RWMutex
	results map[string]models.AssignmentResult
	logger  zerolog.Logger
}

func NewMemoryPublisher(logger zerolog.Logger) *MemoryPublisher {
	return &MemoryPublisher{
		results: make(map[string]models.AssignmentResult),
		logger:  logger.With().Str("component", "publisher").Str("stream", "memory").Logger(),
	}
}

func (p *MemoryPublisher) Publish(_ context.Context, r models.AssignmentResult) error {
	p.mu.Lock()
	p.results[r.ClientID.String()] = r
	p.mu.Unlock()
	p.logger.Info().
		Str("client_id", r.ClientID.String()).
		Int64("enriched_ticket_id", r.EnrichedTicketID).
		Str("status", string(r.Status)).
		Msg("result published")
	return nil
}

func (p *MemoryPublisher) Results(_ context.Context, clientIDs []string) (map[string]models.AssignmentResult, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make(map[string]models.AssignmentResult, len(clientIDs))
	for _, id := range clientIDs {
		if r, ok := p.results[id]; ok {
			out[id] = r
		}
	}
	return out, nil
}
