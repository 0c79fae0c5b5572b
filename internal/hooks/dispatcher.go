package hooks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/soyeahso/voicehook/internal/domain"
	"github.com/soyeahso/voicehook/internal/logging"
)

// ErrDispatcherClosed is returned when a record is offered after Shutdown.
var ErrDispatcherClosed = errors.New("dispatcher closed")

// ErrQueueFull is returned when a record could not be queued within the
// enqueue timeout. The record is dropped.
var ErrQueueFull = errors.New("dispatch queue full")

// LazyPayload builds a response body on a worker, after the HTTP response
// has been written.
type LazyPayload func() ([]byte, error)

// DispatcherConfig sizes the worker pool.
type DispatcherConfig struct {
	Workers        int
	QueueSize      int
	EnqueueTimeout time.Duration
}

func (c DispatcherConfig) withDefaults() DispatcherConfig {
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 256
	}
	if c.EnqueueTimeout <= 0 {
		c.EnqueueTimeout = 50 * time.Millisecond
	}
	return c
}

type job struct {
	rec  domain.CallbackRecord
	lazy LazyPayload
	app  *Manager
}

// Dispatcher fans callback records out to observers on a fixed pool of
// workers. Each worker owns a bounded queue; records are routed by
// invocation id so every record of one invocation is handled by the same
// worker in the order it was offered.
type Dispatcher struct {
	global  *Manager
	cfg     DispatcherConfig
	queues  []chan job
	log     *logging.Logger
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started sync.Once

	mu     sync.RWMutex
	closed bool

	dropped   atomic.Int64
	delivered atomic.Int64
}

// NewDispatcher creates a dispatcher delivering to global and, per record,
// to the application manager passed with it.
func NewDispatcher(global *Manager, cfg DispatcherConfig, log *logging.Logger) *Dispatcher {
	cfg = cfg.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		global: global,
		cfg:    cfg,
		queues: make([]chan job, cfg.Workers),
		log:    log.Sub("dispatcher"),
		ctx:    ctx,
		cancel: cancel,
	}
	for i := range d.queues {
		d.queues[i] = make(chan job, cfg.QueueSize)
	}
	return d
}

// Start launches the workers. Calling it more than once has no effect.
func (d *Dispatcher) Start() {
	d.started.Do(func() {
		for i, q := range d.queues {
			d.wg.Add(1)
			go d.work(i, q)
		}
		d.log.Info().
			Int("workers", d.cfg.Workers).
			Int("queueSize", d.cfg.QueueSize).
			Msg("dispatcher started")
	})
}

// Shutdown stops accepting records and waits for queued records to be
// delivered. If ctx expires first, in-flight observers see a cancelled
// context and the remaining records are abandoned.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	for _, q := range d.queues {
		close(q)
	}
	d.mu.Unlock()

	// Workers that were never started cannot drain.
	d.Start()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.cancel()
		d.log.Info().
			Int64("delivered", d.delivered.Load()).
			Int64("dropped", d.dropped.Load()).
			Msg("dispatcher drained")
		return nil
	case <-ctx.Done():
		d.cancel()
		d.log.Warn().Msg("dispatcher shutdown timed out")
		return fmt.Errorf("dispatcher shutdown: %w", ctx.Err())
	}
}

// NotifyRequest queues a request record.
func (d *Dispatcher) NotifyRequest(app *Manager, rec domain.CallbackRecord) error {
	rec.Kind = domain.CallbackRequest
	return d.enqueue(job{rec: rec, app: app})
}

// NotifyResponse queues a response record whose payload is produced by lazy
// on the worker. If lazy fails, response observers do not run for it.
func (d *Dispatcher) NotifyResponse(app *Manager, rec domain.CallbackRecord, lazy LazyPayload) error {
	rec.Kind = domain.CallbackResponse
	return d.enqueue(job{rec: rec, lazy: lazy, app: app})
}

// Dropped returns how many records were discarded because a queue was full.
func (d *Dispatcher) Dropped() int64 { return d.dropped.Load() }

// Delivered returns how many records were handed to their observers.
func (d *Dispatcher) Delivered() int64 { return d.delivered.Load() }

// Pending returns the number of queued records.
func (d *Dispatcher) Pending() int {
	n := 0
	for _, q := range d.queues {
		n += len(q)
	}
	return n
}

func (d *Dispatcher) queueFor(invocationID string) chan job {
	return d.queues[xxhash.Sum64String(invocationID)%uint64(len(d.queues))]
}

func (d *Dispatcher) enqueue(j job) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrDispatcherClosed
	}

	q := d.queueFor(j.rec.InvocationID)
	select {
	case q <- j:
		return nil
	default:
	}

	timer := time.NewTimer(d.cfg.EnqueueTimeout)
	defer timer.Stop()
	select {
	case q <- j:
		return nil
	case <-timer.C:
		d.dropped.Add(1)
		d.log.Warn().
			Str("kind", string(j.rec.Kind)).
			Str("type", string(j.rec.Type)).
			Str("invocation", j.rec.InvocationID).
			Msg("dispatch queue full, record dropped")
		return ErrQueueFull
	}
}

func (d *Dispatcher) work(id int, q chan job) {
	defer d.wg.Done()
	log := d.log.With("worker", fmt.Sprint(id))
	for j := range q {
		d.deliver(log, j)
	}
}

func (d *Dispatcher) deliver(log *logging.Logger, j job) {
	if !d.global.Has(j.rec) && !j.app.Has(j.rec) {
		return
	}

	if j.lazy != nil {
		payload, err := resolve(j.lazy)
		if err != nil {
			log.Error().
				Err(err).
				Str("type", string(j.rec.Type)).
				Str("invocation", j.rec.InvocationID).
				Msg("response payload failed, skipping observers")
			return
		}
		j.rec.Payload = payload
	}

	observers := append(d.global.observersFor(j.rec), j.app.observersFor(j.rec)...)
	emit(d.ctx, log, j.rec, observers)
	d.delivered.Add(1)
}

func resolve(lazy LazyPayload) (payload []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("response payload panicked: %v", r)
		}
	}()
	return lazy()
}
