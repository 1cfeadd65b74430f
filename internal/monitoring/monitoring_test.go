package monitoring

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu       sync.Mutex
	keys     []string
	bodies   [][]byte
	failWith error
}

func (p *recordingPublisher) Publish(_ context.Context, key string, body []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failWith != nil {
		return p.failWith
	}
	p.keys = append(p.keys, key)
	p.bodies = append(p.bodies, body)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func TestRecordEventPublishes(t *testing.T) {
	pub := &recordingPublisher{}
	svc := NewServiceWithPublisher(Config{Exchange: "sitras.events"}, pub)

	svc.RecordEvent("raw.created", map[string]string{"id": "raw_1"})

	require.Len(t, pub.keys, 1)
	assert.Equal(t, "raw.created", pub.keys[0])
	var ev Event
	require.NoError(t, json.Unmarshal(pub.bodies[0], &ev))
	assert.Equal(t, "raw.created", ev.Name)
	assert.Equal(t, "raw_1", ev.Labels["id"])
	assert.False(t, ev.Timestamp.IsZero())
}

func TestRecordEventCountsEvenWhenPublishFails(t *testing.T) {
	pub := &recordingPublisher{failWith: errors.New("broker down")}
	svc := NewServiceWithPublisher(Config{}, pub)

	svc.RecordEvent("calibration.failed", nil)
	svc.RecordEvent("calibration.failed", nil)
	svc.RecordEvent("raw.created", nil)

	assert.Equal(t, map[string]int64{"calibration.failed": 2, "raw.created": 1}, svc.GetEventMetrics())
}

func TestNewServiceWithoutBroker(t *testing.T) {
	svc, err := NewService(Config{})
	require.NoError(t, err)
	svc.RecordEvent("raw.purged", map[string]string{"count": "3"})
	assert.EqualValues(t, 1, svc.GetEventMetrics()["raw.purged"])
	assert.NoError(t, svc.Close())
}
