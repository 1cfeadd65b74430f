package monitoring

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	nuts "github.com/vaudience/go-nuts"
)

const publishTimeout = 2 * time.Second

// Config holds monitoring configuration
type Config struct {
	AMQPURL  string
	Exchange string
}

// Publisher forwards encoded events to a broker
type Publisher interface {
	Publish(ctx context.Context, routingKey string, body []byte) error
	Close() error
}

// Event is the payload published for every recorded event
type Event struct {
	Name      string            `json:"event"`
	Labels    map[string]string `json:"labels,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// Service provides monitoring functionality
type Service struct {
	config    Config
	publisher Publisher

	mu     sync.Mutex
	counts map[string]int64
}

// NewService creates a new monitoring service. Events are published to AMQP when a URL is configured.
func NewService(config Config) (*Service, error) {
	var publisher Publisher
	if config.AMQPURL != "" {
		p, err := NewAMQPPublisher(config.AMQPURL, config.Exchange)
		if err != nil {
			return nil, err
		}
		publisher = p
	}
	return NewServiceWithPublisher(config, publisher), nil
}

// NewServiceWithPublisher creates a monitoring service around an existing publisher, which may be nil
func NewServiceWithPublisher(config Config, publisher Publisher) *Service {
	return &Service{
		config:    config,
		publisher: publisher,
		counts:    make(map[string]int64),
	}
}

// RecordEvent records a monitored event with labels
func (s *Service) RecordEvent(eventName string, labels map[string]string) {
	ts := time.Now().UTC()

	s.mu.Lock()
	s.counts[eventName]++
	s.mu.Unlock()

	nuts.L.Infof("[Monitoring] Event %s recorded at %v with labels: %v", eventName, ts, labels)

	if s.publisher == nil {
		return
	}
	body, err := json.Marshal(Event{Name: eventName, Labels: labels, Timestamp: ts})
	if err != nil {
		nuts.L.Errorf("[Monitoring] Failed to encode event %s: %v", eventName, err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := s.publisher.Publish(ctx, eventName, body); err != nil {
		nuts.L.Warnf("[Monitoring] Failed to publish event %s: %v", eventName, err)
	}
}

// GetEventMetrics returns the number of recorded events per name since startup
func (s *Service) GetEventMetrics() map[string]int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int64, len(s.counts))
	for k, v := range s.counts {
		out[k] = v
	}
	return out
}

// Close releases the publisher
func (s *Service) Close() error {
	if s.publisher == nil {
		return nil
	}
	return s.publisher.Close()
}
