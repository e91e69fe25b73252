// Package events publishes pharmacovigilance domain events to Kafka for
// downstream consumers such as signal dashboards and audit pipelines.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/trialsignal/pharmacovigilance-service/internal/domain"
	"github.com/trialsignal/pharmacovigilance-service/internal/vigilance"
)

// Event types emitted by the service.
const (
	EventTypeResultCreated = "result.created"
	EventTypeScanCompleted = "scan.completed"
)

// Envelope wraps every published event with common metadata.
type Envelope struct {
	EventType  string          `json:"event_type"`
	OccurredAt time.Time       `json:"occurred_at"`
	RuleID     string          `json:"rule_id"`
	RuleName   string          `json:"rule_name"`
	Payload    json.RawMessage `json:"payload"`
}

// ResultCreatedPayload is the payload of a result.created event.
type ResultCreatedPayload struct {
	ResultID       string   `json:"result_id"`
	ArticlePMID    string   `json:"article_pmid"`
	MatchedTerms   []string `json:"matched_terms"`
	RelevanceScore float64  `json:"relevance_score"`
}

// ScanCompletedPayload is the payload of a scan.completed event.
type ScanCompletedPayload struct {
	Trigger         string `json:"trigger"`
	ArticlesScanned int    `json:"articles_scanned"`
	Matched         int    `json:"matched"`
	Created         int    `json:"created"`
	Refreshed       int    `json:"refreshed"`
	DurationMillis  int64  `json:"duration_ms"`
}

// messageWriter is the subset of kafka.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Config holds Kafka publisher settings.
type Config struct {
	// Brokers is the list of Kafka broker addresses.
	Brokers []string
	// Topic is the topic result events are published to.
	Topic string
	// BatchSize is the maximum number of messages per batch.
	BatchSize int
	// BatchTimeout is the maximum wait for a batch to fill before sending.
	BatchTimeout time.Duration
}

// Publisher publishes envelope-wrapped events to a Kafka topic, keyed by rule
// ID so that events for one rule stay ordered within a partition.
type Publisher struct {
	writer messageWriter
	logger zerolog.Logger
}

// Compile-time interface verification.
var _ vigilance.EventPublisher = (*Publisher)(nil)

// NewPublisher creates a Kafka-backed publisher.
func NewPublisher(cfg Config, logger zerolog.Logger) *Publisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.BatchTimeout,
		RequiredAcks: kafka.RequireOne,
	}
	return &Publisher{
		writer: writer,
		logger: logger.With().Str("component", "event_publisher").Logger(),
	}
}

// PublishResultCreated publishes a result.created event.
func (p *Publisher) PublishResultCreated(ctx context.Context, rule *domain.SearchRule, result *domain.SearchResult) error {
	return p.publish(ctx, EventTypeResultCreated, rule, ResultCreatedPayload{
		ResultID:       result.ID.String(),
		ArticlePMID:    result.ArticlePMID,
		MatchedTerms:   result.MatchedTerms,
		RelevanceScore: result.RelevanceScore,
	})
}

// PublishScanCompleted publishes a scan.completed event.
func (p *Publisher) PublishScanCompleted(ctx context.Context, rule *domain.SearchRule, summary *vigilance.ScanSummary) error {
	return p.publish(ctx, EventTypeScanCompleted, rule, ScanCompletedPayload{
		Trigger:         summary.Trigger,
		ArticlesScanned: summary.ArticlesScanned,
		Matched:         summary.Matched,
		Created:         summary.Created,
		Refreshed:       summary.Refreshed,
		DurationMillis:  summary.Duration.Milliseconds(),
	})
}

func (p *Publisher) publish(ctx context.Context, eventType string, rule *domain.SearchRule, payload any) error {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", eventType, err)
	}

	envelope := Envelope{
		EventType:  eventType,
		OccurredAt: time.Now().UTC(),
		RuleID:     rule.ID.String(),
		RuleName:   rule.Name,
		Payload:    payloadBytes,
	}
	value, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal %s envelope: %w", eventType, err)
	}

	msg := kafka.Message{
		Key:   []byte(rule.ID.String()),
		Value: value,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write %s event: %w", eventType, err)
	}

	p.logger.Debug().
		Str("event_type", eventType).
		Str("rule_id", rule.ID.String()).
		Msg("event published")
	return nil
}

// Close flushes and closes the underlying Kafka writer.
func (p *Publisher) Close() error {
	p.logger.Info().Msg("closing event publisher")
	return p.writer.Close()
}
