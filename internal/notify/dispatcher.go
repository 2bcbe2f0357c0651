package notify

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Freeeeeet/advising_portal/internal/metrics"
	"go.uber.org/zap"
)

const deliveryTimeout = 10 * time.Second

// Dispatcher fans committed events out to notifiers on a background worker,
// so delivery failures and latency never reach the booking request.
type Dispatcher struct {
	notifiers []Notifier
	queue     chan Event
	metrics   *metrics.Metrics
	logger    *zap.Logger
	stopChan  chan struct{}
	done      chan struct{}
	started   atomic.Bool

	// mu orders enqueues before the intake closes, so the final drain sees
	// every accepted event.
	mu      sync.RWMutex
	stopped bool
}

func NewDispatcher(queueSize int, m *metrics.Metrics, logger *zap.Logger, notifiers ...Notifier) *Dispatcher {
	if queueSize <= 0 {
		queueSize = 1
	}
	return &Dispatcher{
		notifiers: notifiers,
		queue:     make(chan Event, queueSize),
		metrics:   m,
		logger:    logger,
		stopChan:  make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Start launches the delivery worker.
func (d *Dispatcher) Start(ctx context.Context) {
	if !d.started.CompareAndSwap(false, true) {
		return
	}
	d.logger.Info("Starting notification dispatcher", zap.Int("notifiers", len(d.notifiers)))
	go d.run(ctx)
}

// Stop stops accepting events, delivers what is already queued and waits for
// the worker to exit.
func (d *Dispatcher) Stop() {
	if d.closeIntake() {
		d.logger.Info("Stopping notification dispatcher")
	}
	if d.started.Load() {
		<-d.done
		return
	}
	if n := len(d.queue); n > 0 {
		d.logger.Warn("Dispatcher never started, queued events dropped", zap.Int("events", n))
	}
}

// closeIntake reports whether this call was the one that closed it.
func (d *Dispatcher) closeIntake() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return false
	}
	d.stopped = true
	close(d.stopChan)
	return true
}

// Publish enqueues e. A full queue or a stopped dispatcher drops the event
// with a warning.
func (d *Dispatcher) Publish(_ context.Context, e Event) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.stopped {
		d.logger.Warn("Dispatcher stopped, event dropped", zap.String("event_id", e.ID), zap.String("kind", string(e.Kind)))
		return
	}
	select {
	case d.queue <- e:
	default:
		d.logger.Warn("Notification queue full, event dropped", zap.String("event_id", e.ID), zap.String("kind", string(e.Kind)))
	}
}

func (d *Dispatcher) run(ctx context.Context) {
	defer close(d.done)

	for {
		select {
		case e := <-d.queue:
			d.deliver(ctx, e)
		case <-d.stopChan:
			d.drain(ctx)
			d.logger.Info("Notification dispatcher stopped")
			return
		case <-ctx.Done():
			d.closeIntake()
			d.drain(ctx)
			d.logger.Info("Notification dispatcher cancelled")
			return
		}
	}
}

func (d *Dispatcher) drain(ctx context.Context) {
	for {
		select {
		case e := <-d.queue:
			d.deliver(ctx, e)
		default:
			return
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, e Event) {
	for _, n := range d.notifiers {
		nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), deliveryTimeout)
		err := n.Notify(nctx, e)
		cancel()

		d.metrics.Notification(n.Name(), err == nil)
		if err != nil {
			d.logger.Error("Failed to deliver notification",
				zap.String("notifier", n.Name()),
				zap.String("event_id", e.ID),
				zap.String("kind", string(e.Kind)),
				zap.Error(err),
			)
			continue
		}
		d.logger.Debug("Notification delivered",
			zap.String("notifier", n.Name()),
			zap.String("event_id", e.ID),
		)
	}
}
