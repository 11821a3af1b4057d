package events

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/tms/internal/observability"
	"github.com/spec-kit/tms/internal/workflow"
)

// Store is the durable backing for published events (an outbox). Rows stay
// until every registered workflow has reached a terminal outcome, so a crash
// between publish and delivery re-delivers on restart.
type Store interface {
	Insert(ctx context.Context, event *Event) error
	ListUndelivered(ctx context.Context, limit int) ([]Event, error)
	MarkDelivered(ctx context.Context, id string) error
}

// HandlerFunc is a workflow body bound to an event.
type HandlerFunc func(ctx context.Context, event Event, step *workflow.Step) error

// Registration binds a named workflow to an event with its retry budget.
type Registration struct {
	Workflow string
	Event    Name
	Retries  int
	Fn       HandlerFunc
}

// Dispatcher is the event bus: durable publish plus a polling delivery loop
// that executes registered workflows through the step engine.
type Dispatcher struct {
	store        Store
	engine       *workflow.Engine
	logger       *zap.Logger
	metrics      *observability.Metrics
	pollInterval time.Duration

	mu            sync.RWMutex
	registrations map[Name][]Registration

	stop chan struct{}
	done chan struct{}
}

// NewDispatcher constructs the bus.
func NewDispatcher(store Store, engine *workflow.Engine, logger *zap.Logger, metrics *observability.Metrics, pollInterval time.Duration) *Dispatcher {
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	return &Dispatcher{
		store:         store,
		engine:        engine,
		logger:        logger,
		metrics:       metrics,
		pollInterval:  pollInterval,
		registrations: make(map[Name][]Registration),
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
	}
}

// Register subscribes a workflow to an event type.
func (d *Dispatcher) Register(reg Registration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.registrations[reg.Event] = append(d.registrations[reg.Event], reg)
}

// Publish durably records the event. Under DeliveryRequired a store failure
// propagates to the producer; under DeliveryBestEffort it is logged and
// swallowed. The producer never waits for consumers.
func (d *Dispatcher) Publish(ctx context.Context, event Event, policy DeliveryPolicy) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	if err := d.store.Insert(ctx, &event); err != nil {
		if policy == DeliveryRequired {
			return err
		}
		d.logger.Error("best-effort event publish failed",
			zap.String("event", string(event.Name)),
			zap.Error(err))
		return nil
	}

	d.logger.Debug("event published",
		zap.String("event", string(event.Name)),
		zap.String("event_id", event.ID))
	return nil
}

// Start launches the delivery loop. Call Stop to drain and halt it.
func (d *Dispatcher) Start(ctx context.Context) {
	go d.loop(ctx)
}

// Stop halts the delivery loop and waits for the in-flight batch.
func (d *Dispatcher) Stop() {
	close(d.stop)
	<-d.done
}

func (d *Dispatcher) loop(ctx context.Context) {
	defer close(d.done)
	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.deliverBatch(ctx)
		}
	}
}

const deliveryBatchSize = 50

func (d *Dispatcher) deliverBatch(ctx context.Context) {
	pending, err := d.store.ListUndelivered(ctx, deliveryBatchSize)
	if err != nil {
		d.logger.Error("outbox poll failed", zap.Error(err))
		return
	}
	for _, event := range pending {
		d.deliver(ctx, event)
	}
}

// deliver runs every registered workflow for the event. Each workflow keys
// its run off the event id, so re-delivery after a crash resumes from the
// last incomplete checkpointed step. The row is marked delivered once all
// workflows reach a terminal outcome; a dropped or exhausted run counts as
// terminal — the event is permanently done.
func (d *Dispatcher) deliver(ctx context.Context, event Event) {
	d.mu.RLock()
	regs := append([]Registration{}, d.registrations[event.Name]...)
	d.mu.RUnlock()

	allTerminal := true
	for _, reg := range regs {
		runID := reg.Workflow + ":" + event.ID
		outcome := d.engine.Execute(ctx, runID, func(ctx context.Context, step *workflow.Step) error {
			return reg.Fn(ctx, event, step)
		}, reg.Retries)

		d.metrics.RecordWorkflow(reg.Workflow, string(outcome))
		if !outcome.Terminal() {
			allTerminal = false
		}
		d.logger.Info("workflow finished",
			zap.String("workflow", reg.Workflow),
			zap.String("event_id", event.ID),
			zap.String("outcome", string(outcome)))
	}

	if !allTerminal {
		return
	}
	if err := d.store.MarkDelivered(ctx, event.ID); err != nil {
		// Left undelivered; next poll re-runs the workflows, which resume
		// from their checkpoints without repeating completed steps.
		d.logger.Error("mark delivered failed",
			zap.String("event_id", event.ID),
			zap.Error(err))
	}
}
