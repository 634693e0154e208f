package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/pharmaref/pharmaref/internal/infrastructure/monitoring/logging"
	"github.com/pharmaref/pharmaref/pkg/errors"
)

// Topic constants.
const (
	TopicCompoundUpdated       = "compound.updated"
	TopicCompoundDeleted       = "compound.deleted"
	TopicSimilarityInvalidated = "similarity.invalidated"
	TopicProductIngested       = "product.ingested"
)

// EventEnvelope standardizes event messages.
type EventEnvelope struct {
	EventID       string            `json:"event_id"`
	EventType     string            `json:"event_type"`
	Source        string            `json:"source"`
	Timestamp     time.Time         `json:"timestamp"`
	SchemaVersion string            `json:"schema_version"`
	TraceID       string            `json:"trace_id,omitempty"`
	Payload       json.RawMessage   `json:"payload"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// Payload structs.

type CompoundUpdatedPayload struct {
	CompoundID   int64     `json:"compound_id"`
	StandardName string    `json:"standard_name"`
	ChangeType   string    `json:"change_type"` // "created" | "updated" | "structure_changed"
	UpdatedAt    time.Time `json:"updated_at"`
}

type CompoundDeletedPayload struct {
	CompoundID   int64     `json:"compound_id"`
	StandardName string    `json:"standard_name"`
	DeletedAt    time.Time `json:"deleted_at"`
}

type SimilarityInvalidatedPayload struct {
	CompoundID       int64     `json:"compound_id"`
	InvalidatedCount int64     `json:"invalidated_count"`
	Reason           string    `json:"reason"`
	InvalidatedAt    time.Time `json:"invalidated_at"`
}

type ProductIngestedPayload struct {
	ProductID    int64     `json:"product_id"`
	PermitNumber string    `json:"permit_number"`
	Source       string    `json:"source"`
	IngestedAt   time.Time `json:"ingested_at"`
}

// NewEventEnvelope wraps a payload in the standard envelope.
func NewEventEnvelope(eventType string, source string, payload interface{}) (*EventEnvelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to marshal payload")
	}
	return &EventEnvelope{
		EventID:       uuid.New().String(),
		EventType:     eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		SchemaVersion: "v1",
		Payload:       data,
	}, nil
}

// DecodePayload unmarshals the envelope payload into target.
func (e *EventEnvelope) DecodePayload(target interface{}) error {
	if len(e.Payload) == 0 || string(e.Payload) == "null" {
		return nil
	}
	return json.Unmarshal(e.Payload, target)
}

// ToMessage serializes the envelope into a producer message for the topic.
func (e *EventEnvelope) ToMessage(topic string) (*ProducerMessage, error) {
	val, err := json.Marshal(e)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to marshal envelope")
	}
	headers := map[string]string{
		"event_type":     e.EventType,
		"source_service": e.Source,
		"schema_version": e.SchemaVersion,
	}
	if e.TraceID != "" {
		headers["trace_id"] = e.TraceID
	}
	return &ProducerMessage{
		Topic:     topic,
		Value:     val,
		Headers:   headers,
		Timestamp: e.Timestamp,
	}, nil
}

// TopicConfig describes one topic to ensure at startup.
type TopicConfig struct {
	Name              string
	NumPartitions     int
	ReplicationFactor int
	RetentionMs       int64
	CleanupPolicy     string
}

// ConnInterface abstracts kafka.Conn for testing.
type ConnInterface interface {
	CreateTopics(topics ...kafka.TopicConfig) error
	DeleteTopics(topics ...string) error
	ReadPartitions(topics ...string) ([]kafka.Partition, error)
	Close() error
}

// TopicManager manages Kafka topics.
type TopicManager struct {
	conn   ConnInterface
	logger logging.Logger
}

// NewTopicManager dials the first broker for topic administration.
func NewTopicManager(brokers []string, logger logging.Logger) (*TopicManager, error) {
	if len(brokers) == 0 {
		return nil, errors.New(errors.ErrCodeValidation, "brokers required")
	}
	conn, err := kafka.Dial("tcp", brokers[0])
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to dial kafka")
	}
	return &TopicManager{
		conn:   conn,
		logger: logger,
	}, nil
}

// NewTopicManagerWithConn wraps an existing connection (for testing).
func NewTopicManagerWithConn(conn ConnInterface, logger logging.Logger) *TopicManager {
	return &TopicManager{conn: conn, logger: logger}
}

// CreateTopic creates one topic, tolerating already-exists races.
func (m *TopicManager) CreateTopic(ctx context.Context, cfg TopicConfig) error {
	if cfg.Name == "" {
		return errors.New(errors.ErrCodeValidation, "topic name required")
	}
	if cfg.NumPartitions <= 0 {
		return errors.New(errors.ErrCodeValidation, "NumPartitions must be > 0")
	}
	if cfg.ReplicationFactor <= 0 {
		return errors.New(errors.ErrCodeValidation, "ReplicationFactor must be > 0")
	}

	kCfg := kafka.TopicConfig{
		Topic:             cfg.Name,
		NumPartitions:     cfg.NumPartitions,
		ReplicationFactor: cfg.ReplicationFactor,
		ConfigEntries:     make([]kafka.ConfigEntry, 0),
	}

	if cfg.RetentionMs > 0 {
		kCfg.ConfigEntries = append(kCfg.ConfigEntries,
			kafka.ConfigEntry{ConfigName: "retention.ms", ConfigValue: fmt.Sprintf("%d", cfg.RetentionMs)})
	}
	if cfg.CleanupPolicy != "" {
		kCfg.ConfigEntries = append(kCfg.ConfigEntries,
			kafka.ConfigEntry{ConfigName: "cleanup.policy", ConfigValue: cfg.CleanupPolicy})
	}

	if err := m.conn.CreateTopics(kCfg); err != nil {
		exists, _ := m.TopicExists(ctx, cfg.Name)
		if exists {
			return nil
		}
		return err
	}
	m.logger.Info("Topic created", logging.String("topic", cfg.Name))
	return nil
}

// TopicExists reports whether the topic has any partitions.
func (m *TopicManager) TopicExists(ctx context.Context, name string) (bool, error) {
	partitions, err := m.conn.ReadPartitions(name)
	if err != nil {
		return false, nil
	}
	return len(partitions) > 0, nil
}

// EnsureTopics creates every topic that does not already exist.
func (m *TopicManager) EnsureTopics(ctx context.Context, topics []TopicConfig) error {
	for _, topic := range topics {
		if err := m.CreateTopic(ctx, topic); err != nil {
			return err
		}
	}
	return nil
}

// EnsureDefaultTopics creates the service's standard topic set.
func (m *TopicManager) EnsureDefaultTopics(ctx context.Context) error {
	return m.EnsureTopics(ctx, DefaultTopics())
}

// Close releases the admin connection.
func (m *TopicManager) Close() error {
	return m.conn.Close()
}

// DefaultTopics lists the topics this service publishes to.
func DefaultTopics() []TopicConfig {
	return []TopicConfig{
		{Name: TopicCompoundUpdated, NumPartitions: 6, ReplicationFactor: 3, RetentionMs: 7 * 24 * 3600 * 1000},
		{Name: TopicCompoundDeleted, NumPartitions: 3, ReplicationFactor: 3, RetentionMs: 30 * 24 * 3600 * 1000},
		{Name: TopicSimilarityInvalidated, NumPartitions: 6, ReplicationFactor: 3, RetentionMs: 7 * 24 * 3600 * 1000},
		{Name: TopicProductIngested, NumPartitions: 6, ReplicationFactor: 3, RetentionMs: 7 * 24 * 3600 * 1000},
	}
}
