package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v2/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

const (
	TopicRegistrationCreated = "enrollment.registration.created"
	TopicCertificateIssued   = "enrollment.certificate.issued"
)

type RegistrationCreatedEvent struct {
	RegistrationID string    `json:"registration_id"`
	StudentID      string    `json:"student_id"`
	CourseID       string    `json:"course_id"`
	TicketID       *string   `json:"ticket_id,omitempty"`
	LessonCount    int       `json:"lesson_count"`
	OccurredAt     time.Time `json:"occurred_at"`
}

type CertificateIssuedEvent struct {
	RegistrationID string    `json:"registration_id"`
	StudentID      string    `json:"student_id"`
	CourseID       string    `json:"course_id"`
	Code           string    `json:"code"`
	Link           string    `json:"link"`
	ExamResult     float64   `json:"exam_result"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// EventPublisher announces committed enrollment changes
type EventPublisher interface {
	PublishRegistrationCreated(ctx context.Context, event RegistrationCreatedEvent) error
	PublishCertificateIssued(ctx context.Context, event CertificateIssuedEvent) error
	Close() error
}

// WatermillEventPublisher publishes JSON events through any watermill publisher
type WatermillEventPublisher struct {
	publisher message.Publisher
	logger    *slog.Logger
}

func NewWatermillEventPublisher(publisher message.Publisher, logger *slog.Logger) *WatermillEventPublisher {
	return &WatermillEventPublisher{publisher: publisher, logger: logger}
}

// NewKafkaEventPublisher publishes to Kafka brokers
func NewKafkaEventPublisher(brokers []string, logger *slog.Logger) (*WatermillEventPublisher, error) {
	publisher, err := kafka.NewPublisher(
		kafka.PublisherConfig{
			Brokers:   brokers,
			Marshaler: kafka.DefaultMarshaler{},
		},
		watermill.NewSlogLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka publisher: %w", err)
	}
	return NewWatermillEventPublisher(publisher, logger), nil
}

// NewInProcessEventPublisher keeps events in process for local runs and tests.
// The returned GoChannel can be subscribed to.
func NewInProcessEventPublisher(logger *slog.Logger) (*WatermillEventPublisher, *gochannel.GoChannel) {
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NewSlogLogger(logger))
	return NewWatermillEventPublisher(pubSub, logger), pubSub
}

func (p *WatermillEventPublisher) PublishRegistrationCreated(ctx context.Context, event RegistrationCreatedEvent) error {
	return p.publish(ctx, TopicRegistrationCreated, event.RegistrationID, event)
}

func (p *WatermillEventPublisher) PublishCertificateIssued(ctx context.Context, event CertificateIssuedEvent) error {
	return p.publish(ctx, TopicCertificateIssued, event.RegistrationID, event)
}

func (p *WatermillEventPublisher) publish(ctx context.Context, topic, key string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), data)
	msg.Metadata.Set("registration_id", key)
	msg.SetContext(ctx)

	if err := p.publisher.Publish(topic, msg); err != nil {
		return fmt.Errorf("failed to publish %s: %w", topic, err)
	}
	p.logger.Debug("Event published", "topic", topic, "message_id", msg.UUID)
	return nil
}

func (p *WatermillEventPublisher) Close() error {
	return p.publisher.Close()
}

// PublishedEvent is one event captured by MockEventPublisher
type PublishedEvent struct {
	Topic   string
	Payload interface{}
}

// MockEventPublisher records events in memory
type MockEventPublisher struct {
	logger *slog.Logger

	mu     sync.Mutex
	events []PublishedEvent
	// Err, when set, fails every publish
	Err error
}

func NewMockEventPublisher(logger *slog.Logger) *MockEventPublisher {
	return &MockEventPublisher{logger: logger}
}

func (m *MockEventPublisher) PublishRegistrationCreated(ctx context.Context, event RegistrationCreatedEvent) error {
	return m.record(TopicRegistrationCreated, event)
}

func (m *MockEventPublisher) PublishCertificateIssued(ctx context.Context, event CertificateIssuedEvent) error {
	return m.record(TopicCertificateIssued, event)
}

func (m *MockEventPublisher) record(topic string, payload interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.events = append(m.events, PublishedEvent{Topic: topic, Payload: payload})
	return nil
}

func (m *MockEventPublisher) GetPublishedEvents() []PublishedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]PublishedEvent, len(m.events))
	copy(out, m.events)
	return out
}

func (m *MockEventPublisher) Close() error { return nil }
