package telemetry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event represents a telemetry event in the review workflow.
type Event struct {
	// ID is the unique identifier for this event.
	ID string `json:"id"`

	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"timestamp"`

	// Type is the event type.
	Type string `json:"type"`

	// Source identifies where the event originated.
	Source string `json:"source"`

	// Experiment is the associated experiment, if applicable.
	Experiment string `json:"experiment,omitempty"`

	// Implementation is the associated implementation, if applicable.
	Implementation string `json:"implementation,omitempty"`

	// Stage is the associated pipeline stage, if applicable.
	Stage string `json:"stage,omitempty"`

	// Reviewer is the associated reviewer, if applicable.
	Reviewer string `json:"reviewer,omitempty"`

	// Message is a human-readable event message.
	Message string `json:"message"`

	// Level is the event severity level (info, warning, error).
	Level string `json:"level"`

	// Data contains additional event-specific data.
	Data map[string]interface{} `json:"data,omitempty"`
}

// EventType constants for common event types.
const (
	EventTypeApprovalGranted   = "approval.granted"
	EventTypeApprovalRevoked   = "approval.revoked"
	EventTypeActionRejected    = "action.rejected"
	EventTypeBacktestCompleted = "backtest.completed"
	EventTypeUnitInserted      = "unit.inserted"
	EventTypeComparisonBuilt   = "comparison.built"
	EventTypeError             = "error"
)

// EventLevel constants for event severity.
const (
	EventLevelInfo    = "info"
	EventLevelWarning = "warning"
	EventLevelError   = "error"
)

// EventSubscriber is a function that handles events.
type EventSubscriber func(event Event)

// EventFilter determines if an event should be processed.
type EventFilter func(event Event) bool

// EventPublisher manages event publishing and subscriptions.
type EventPublisher struct {
	config      EventsConfig
	buffer      chan Event
	subscribers []subscriberEntry
	filters     []EventFilter
	wg          sync.WaitGroup
	mu          sync.RWMutex
	ctx         context.Context
	cancel      context.CancelFunc
}

type subscriberEntry struct {
	subscriber EventSubscriber
	filter     EventFilter
}

// NewEventPublisher creates a new event publisher with the given configuration.
func NewEventPublisher(cfg EventsConfig) (*EventPublisher, error) {
	if !cfg.Enabled {
		return &EventPublisher{config: cfg}, nil
	}

	ctx, cancel := context.WithCancel(context.Background())

	ep := &EventPublisher{
		config:      cfg,
		buffer:      make(chan Event, cfg.BufferSize),
		subscribers: make([]subscriberEntry, 0),
		filters:     make([]EventFilter, 0),
		ctx:         ctx,
		cancel:      cancel,
	}

	// Start the event processing goroutine
	if cfg.EnableAsync {
		ep.wg.Add(1)
		go ep.processEvents()
	}

	// Start the periodic flush goroutine
	if cfg.FlushInterval > 0 {
		ep.wg.Add(1)
		go ep.periodicFlush()
	}

	return ep, nil
}

// Publish publishes an event to all subscribers.
func (ep *EventPublisher) Publish(event Event) error {
	if !ep.config.Enabled {
		return nil
	}

	// Set ID and timestamp if not already set
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	// Apply global filters
	ep.mu.RLock()
	for _, filter := range ep.filters {
		if !filter(event) {
			ep.mu.RUnlock()
			return nil // Event filtered out
		}
	}
	ep.mu.RUnlock()

	// Send to buffer if async, otherwise process immediately
	if ep.config.EnableAsync {
		select {
		case ep.buffer <- event:
			return nil
		case <-ep.ctx.Done():
			return fmt.Errorf("event publisher stopped")
		default:
			// Buffer full, drop event or log warning
			return fmt.Errorf("event buffer full, event dropped")
		}
	}

	// Synchronous publishing
	ep.deliverEvent(event)
	return nil
}

// PublishApprovalGranted publishes an approval granted event.
func (ep *EventPublisher) PublishApprovalGranted(experiment, implementation, stage, reviewer string) error {
	return ep.Publish(Event{
		Type:           EventTypeApprovalGranted,
		Source:         "workflow",
		Experiment:     experiment,
		Implementation: implementation,
		Stage:          stage,
		Reviewer:       reviewer,
		Message:        fmt.Sprintf("%s approved %s for %s/%s", reviewer, stage, experiment, implementation),
		Level:          EventLevelInfo,
	})
}

// PublishApprovalRevoked publishes an approval revoked event.
func (ep *EventPublisher) PublishApprovalRevoked(experiment, implementation, stage, reviewer string) error {
	return ep.Publish(Event{
		Type:           EventTypeApprovalRevoked,
		Source:         "workflow",
		Experiment:     experiment,
		Implementation: implementation,
		Stage:          stage,
		Reviewer:       reviewer,
		Message:        fmt.Sprintf("%s revoked %s for %s/%s", reviewer, stage, experiment, implementation),
		Level:          EventLevelWarning,
	})
}

// PublishActionRejected publishes an event for a workflow action rejected
// before any write.
func (ep *EventPublisher) PublishActionRejected(experiment, implementation, stage, reason string) error {
	return ep.Publish(Event{
		Type:           EventTypeActionRejected,
		Source:         "workflow",
		Experiment:     experiment,
		Implementation: implementation,
		Stage:          stage,
		Message:        fmt.Sprintf("Action rejected for %s/%s: %s", experiment, implementation, reason),
		Level:          EventLevelWarning,
		Data: map[string]interface{}{
			"reason": reason,
		},
	})
}

// PublishBacktestCompleted publishes a backtest completion event.
func (ep *EventPublisher) PublishBacktestCompleted(experiment, implementation string) error {
	return ep.Publish(Event{
		Type:           EventTypeBacktestCompleted,
		Source:         "workflow",
		Experiment:     experiment,
		Implementation: implementation,
		Message:        fmt.Sprintf("Backtest completed for %s/%s", experiment, implementation),
		Level:          EventLevelInfo,
	})
}

// PublishUnitInserted publishes a unit inserted event.
func (ep *EventPublisher) PublishUnitInserted(experiment, implementation string) error {
	return ep.Publish(Event{
		Type:           EventTypeUnitInserted,
		Source:         "store",
		Experiment:     experiment,
		Implementation: implementation,
		Message:        fmt.Sprintf("Unit %s/%s inserted", experiment, implementation),
		Level:          EventLevelInfo,
	})
}

// PublishComparisonBuilt publishes a comparison built event.
func (ep *EventPublisher) PublishComparisonBuilt(configCount, differingRows int) error {
	return ep.Publish(Event{
		Type:    EventTypeComparisonBuilt,
		Source:  "compare",
		Message: fmt.Sprintf("Comparison built over %d configs, %d differing rows", configCount, differingRows),
		Level:   EventLevelInfo,
		Data: map[string]interface{}{
			"configs":        configCount,
			"differing_rows": differingRows,
		},
	})
}

// Subscribe adds a new event subscriber.
func (ep *EventPublisher) Subscribe(subscriber EventSubscriber, filter EventFilter) {
	ep.mu.Lock()
	defer ep.mu.Unlock()

	ep.subscribers = append(ep.subscribers, subscriberEntry{
		subscriber: subscriber,
		filter:     filter,
	})
}

// AddFilter adds a global event filter.
func (ep *EventPublisher) AddFilter(filter EventFilter) {
	ep.mu.Lock()
	defer ep.mu.Unlock()

	ep.filters = append(ep.filters, filter)
}

// processEvents processes events from the buffer asynchronously.
func (ep *EventPublisher) processEvents() {
	defer ep.wg.Done()

	batch := make([]Event, 0, ep.config.MaxBatchSize)

	for {
		select {
		case event := <-ep.buffer:
			batch = append(batch, event)

			// Flush batch if it reaches max size
			if len(batch) >= ep.config.MaxBatchSize {
				ep.flushBatch(batch)
				batch = make([]Event, 0, ep.config.MaxBatchSize)
			}

		case <-ep.ctx.Done():
			// Flush remaining events before shutting down
			if len(batch) > 0 {
				ep.flushBatch(batch)
			}
			return
		}
	}
}

// periodicFlush flushes events periodically.
func (ep *EventPublisher) periodicFlush() {
	defer ep.wg.Done()

	ticker := time.NewTicker(ep.config.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			// Trigger flush by draining buffer
			// This is handled by the processEvents goroutine
		case <-ep.ctx.Done():
			return
		}
	}
}

// flushBatch delivers a batch of events to subscribers.
func (ep *EventPublisher) flushBatch(events []Event) {
	for _, event := range events {
		ep.deliverEvent(event)
	}
}

// deliverEvent delivers an event to all subscribers.
func (ep *EventPublisher) deliverEvent(event Event) {
	ep.mu.RLock()
	defer ep.mu.RUnlock()

	for _, entry := range ep.subscribers {
		// Apply subscriber-specific filter
		if entry.filter != nil && !entry.filter(event) {
			continue
		}

		// Call subscriber in a goroutine to avoid blocking
		go entry.subscriber(event)
	}
}

// Shutdown gracefully shuts down the event publisher.
func (ep *EventPublisher) Shutdown(ctx context.Context) error {
	if !ep.config.Enabled {
		return nil
	}

	// Signal shutdown
	ep.cancel()

	// Wait for processing to complete with timeout
	done := make(chan struct{})
	go func() {
		ep.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("event publisher shutdown timeout")
	}
}

// Common event filters.

// FilterByLevel creates a filter that only allows events of a specific level or higher.
func FilterByLevel(minLevel string) EventFilter {
	levels := map[string]int{
		EventLevelInfo:    0,
		EventLevelWarning: 1,
		EventLevelError:   2,
	}

	minLevelValue := levels[minLevel]

	return func(event Event) bool {
		return levels[event.Level] >= minLevelValue
	}
}

// FilterByType creates a filter that only allows events of specific types.
func FilterByType(types ...string) EventFilter {
	typeSet := make(map[string]bool)
	for _, t := range types {
		typeSet[t] = true
	}

	return func(event Event) bool {
		return typeSet[event.Type]
	}
}

// FilterByExperiment creates a filter that only allows events for a
// specific experiment.
func FilterByExperiment(experiment string) EventFilter {
	return func(event Event) bool {
		return event.Experiment == experiment
	}
}

// FilterByStage creates a filter that only allows events for a specific
// pipeline stage.
func FilterByStage(stage string) EventFilter {
	return func(event Event) bool {
		return event.Stage == stage
	}
}
