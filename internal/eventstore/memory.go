package eventstore

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory is an in-process journal with the same versioning rules as Journal.
type Memory struct {
	mu      sync.Mutex
	streams map[uuid.UUID][]Event
	lastID  int64
}

func NewMemory() *Memory {
	return &Memory{streams: make(map[uuid.UUID][]Event)}
}

func (m *Memory) Append(aggregateID uuid.UUID, aggregateType string, expectedVersion int, events []Event) error {
	if expectedVersion < 0 {
		return ErrInvalidVersion
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	stream := m.streams[aggregateID]
	if len(stream) != expectedVersion {
		return ErrConcurrencyConflict
	}

	for i, event := range events {
		m.lastID++
		event.ID = m.lastID
		event.AggregateID = aggregateID
		event.AggregateType = aggregateType
		event.Version = expectedVersion + i + 1
		if event.CreatedAt.IsZero() {
			event.CreatedAt = time.Now().UTC()
		}
		stream = append(stream, event)
	}
	m.streams[aggregateID] = stream
	return nil
}

func (m *Memory) Load(aggregateID uuid.UUID) []Event {
	m.mu.Lock()
	defer m.mu.Unlock()

	stream := m.streams[aggregateID]
	out := make([]Event, len(stream))
	copy(out, stream)
	return out
}
