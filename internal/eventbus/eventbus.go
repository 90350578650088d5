package eventbus

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/mescon/gptimer/internal/db"
	"github.com/mescon/gptimer/internal/domain"
	"github.com/mescon/gptimer/internal/logger"
)

// Publisher defines the interface for publishing events.
// This interface enables testing with mock implementations.
type Publisher interface {
	Publish(event domain.Event) error
	Subscribe(eventType domain.EventType, handler func(domain.Event))
}

// Ensure EventBus implements Publisher
var _ Publisher = (*EventBus)(nil)

// subscriberBuffer is how many events a slow subscriber may lag behind
// before new ones are dropped for it.
const subscriberBuffer = 100

// EventBus records timer events in timer_events and fans them out to
// in-process subscribers. A nil db skips persistence.
type EventBus struct {
	db          *sql.DB
	subscribers map[domain.EventType][]chan domain.Event
	mu          sync.RWMutex
	stopChan    chan struct{}
	stopOnce    sync.Once
	wg          sync.WaitGroup
}

func NewEventBus(db *sql.DB) *EventBus {
	return &EventBus{
		db:          db,
		subscribers: make(map[domain.EventType][]chan domain.Event),
		stopChan:    make(chan struct{}),
	}
}

func (eb *EventBus) Publish(event domain.Event) error {
	logger.Debugf("EventBus: Publishing event %s (AggregateID: %s)", event.EventType, event.AggregateID)

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	event.CreatedAt = event.CreatedAt.UTC()
	if event.EventVersion == 0 {
		event.EventVersion = 1
	}
	if event.EventData == nil {
		event.EventData = map[string]interface{}{}
	}

	// 1. Store event in database (source of truth)
	if eb.db != nil {
		eventDataJSON, err := json.Marshal(event.EventData)
		if err != nil {
			return fmt.Errorf("failed to marshal event data: %w", err)
		}

		res, err := db.ExecWithRetry(eb.db, `
			INSERT INTO timer_events (aggregate_type, aggregate_id, event_type, event_data, event_version, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, event.AggregateType, event.AggregateID, string(event.EventType), string(eventDataJSON),
			event.EventVersion, event.CreatedAt.Format(db.TimeLayout))
		if err != nil {
			return fmt.Errorf("failed to persist event: %w", err)
		}

		if id, err := res.LastInsertId(); err == nil {
			event.ID = id
		}
	}

	// 2. Publish to in-memory subscribers
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	for _, ch := range eb.subscribers[event.EventType] {
		select {
		case ch <- event:
		default:
			logger.Warnf("EventBus: subscriber for %s is full, dropping event", event.EventType)
		}
	}

	return nil
}

// Subscribe runs handler on its own goroutine for every event of eventType,
// in publish order.
func (eb *EventBus) Subscribe(eventType domain.EventType, handler func(domain.Event)) {
	ch := make(chan domain.Event, subscriberBuffer)

	eb.mu.Lock()
	eb.subscribers[eventType] = append(eb.subscribers[eventType], ch)
	eb.mu.Unlock()

	eb.wg.Add(1)
	go func() {
		defer eb.wg.Done()
		for {
			select {
			case event, ok := <-ch:
				if !ok {
					return
				}
				handler(event)
			case <-eb.stopChan:
				return
			}
		}
	}()
}

// SubscribeAll subscribes handler to each of types.
func (eb *EventBus) SubscribeAll(types []domain.EventType, handler func(domain.Event)) {
	for _, t := range types {
		eb.Subscribe(t, handler)
	}
}

// Shutdown stops all subscriber goroutines and waits for them to finish
func (eb *EventBus) Shutdown() {
	eb.stopOnce.Do(func() {
		close(eb.stopChan)
	})
	eb.wg.Wait()
	logger.Infof("EventBus shutdown complete")
}
