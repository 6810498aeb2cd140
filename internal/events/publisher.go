package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/SofiaChang/shopping-agent/internal/models"
)

// EventTypeTurnCompleted is published after every successful turn.
const EventTypeTurnCompleted = "TURN_COMPLETED"

// TurnCompletedPayload describes one finished conversational turn for
// downstream consumers.
type TurnCompletedPayload struct {
	EventID       string             `json:"event_id"`
	EventType     string             `json:"event_type"`
	Timestamp     time.Time          `json:"timestamp"`
	SessionID     string             `json:"session_id"`
	Input         string             `json:"input"`
	Constraints   models.Constraints `json:"constraints"`
	MatchingCount int                `json:"matching_count"`
	OtherCount    int                `json:"other_count"`
	Source        string             `json:"source"`
}

// Publisher writes turn events to a Redis stream.
type Publisher struct {
	client *redis.Client
	stream string
	logger *slog.Logger
}

func NewPublisher(client *redis.Client, stream string, logger *slog.Logger) *Publisher {
	return &Publisher{
		client: client,
		stream: stream,
		logger: logger.With("component", "event_publisher"),
	}
}

// PublishTurnCompleted appends the payload to the stream. Event metadata is
// filled in when absent.
func (p *Publisher) PublishTurnCompleted(ctx context.Context, payload *TurnCompletedPayload) error {
	if payload.EventID == "" {
		payload.EventID = uuid.New().String()
	}
	if payload.EventType == "" {
		payload.EventType = EventTypeTurnCompleted
	}
	if payload.Timestamp.IsZero() {
		payload.Timestamp = time.Now()
	}
	if payload.Source == "" {
		payload.Source = "shopping-agent"
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]interface{}{
			"event_id":   payload.EventID,
			"event_type": payload.EventType,
			"payload":    string(data),
		},
	}
	if _, err := p.client.XAdd(ctx, args).Result(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	p.logger.Info("event published",
		"type", payload.EventType,
		"event_id", payload.EventID,
		"session_id", payload.SessionID,
	)
	return nil
}
