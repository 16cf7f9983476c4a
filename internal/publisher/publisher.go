// Package publisher handles publishing scan outcome events to RabbitMQ.
package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/aiforce-discovery-agent/collectors/scan-console/internal/scan"
)

// Routing keys for settled outcomes.
const (
	RoutingKeyFailure = "scan.outcome.failure"
	RoutingKeyClean   = "scan.outcome.clean"
	RoutingKeyThreats = "scan.outcome.threats"
)

// EventTypeSettled is the CloudEvent type of every outcome event.
const EventTypeSettled = "scan.outcome.settled"

// channel is the subset of *amqp.Channel used for publishing.
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Publisher sends CloudEvents to RabbitMQ.
type Publisher struct {
	conn     *amqp.Connection
	channel  channel
	exchange string
	logger   *zap.SugaredLogger
}

// CloudEvent represents the CloudEvents 1.0 specification structure.
type CloudEvent struct {
	SpecVersion     string      `json:"specversion"`
	Type            string      `json:"type"`
	Source          string      `json:"source"`
	ID              string      `json:"id"`
	Time            string      `json:"time"`
	Subject         string      `json:"subject,omitempty"`
	DataContentType string      `json:"datacontenttype"`
	Data            interface{} `json:"data"`
}

// OutcomeSettledData is the payload of an outcome event. Threat content is
// not included.
type OutcomeSettledData struct {
	RequestID   string      `json:"request_id"`
	Kind        scan.Kind   `json:"kind"`
	Status      scan.Status `json:"status"`
	Message     string      `json:"message,omitempty"`
	Count       int         `json:"count"`
	ThreatCount int         `json:"threat_count"`
	Patterns    []string    `json:"patterns,omitempty"`
}

// New creates a new Publisher connected to RabbitMQ.
func New(url, exchange string, logger *zap.SugaredLogger) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	return &Publisher{
		conn:     conn,
		channel:  ch,
		exchange: exchange,
		logger:   logger,
	}, nil
}

// Close closes the RabbitMQ connection.
func (p *Publisher) Close() error {
	if p.channel != nil {
		_ = p.channel.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// PublishOutcome publishes a settled outcome.
func (p *Publisher) PublishOutcome(ctx context.Context, requestID string, kind scan.Kind, outcome scan.Outcome) error {
	event := p.createEvent(EventTypeSettled, requestID, outcomeData(requestID, kind, outcome))
	return p.publish(ctx, event, RoutingKey(outcome))
}

// RoutingKey selects the routing key for an outcome.
func RoutingKey(o scan.Outcome) string {
	switch {
	case o.Failed():
		return RoutingKeyFailure
	case scan.HasNoThreats(o):
		return RoutingKeyClean
	default:
		return RoutingKeyThreats
	}
}

func outcomeData(requestID string, kind scan.Kind, o scan.Outcome) OutcomeSettledData {
	data := OutcomeSettledData{
		RequestID:   requestID,
		Kind:        kind,
		Status:      o.Status,
		Message:     o.Message,
		Count:       o.Count,
		ThreatCount: len(o.Threats),
	}

	seen := make(map[string]bool)
	for _, t := range o.Threats {
		if t.Pattern != nil && !seen[*t.Pattern] {
			seen[*t.Pattern] = true
			data.Patterns = append(data.Patterns, *t.Pattern)
		}
	}

	return data
}

func (p *Publisher) createEvent(eventType, subject string, data interface{}) CloudEvent {
	return CloudEvent{
		SpecVersion:     "1.0",
		Type:            eventType,
		Source:          "/collectors/scan-console",
		ID:              uuid.New().String(),
		Time:            time.Now().UTC().Format(time.RFC3339),
		Subject:         subject,
		DataContentType: "application/json",
		Data:            data,
	}
}

func (p *Publisher) publish(ctx context.Context, event CloudEvent, routingKey string) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = p.channel.PublishWithContext(
		ctx,
		p.exchange,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType: "application/cloudevents+json",
			Body:        body,
			MessageId:   event.ID,
			Timestamp:   time.Now(),
		},
	)

	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	p.logger.Debugw("Event published",
		"type", event.Type,
		"id", event.ID,
		"routing_key", routingKey,
	)

	return nil
}
