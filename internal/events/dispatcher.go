package events

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"
)

// DefaultWorkers is the size of the worker pool when WithWorkers is not given.
const DefaultWorkers = 4

// HandlerFunc reacts to one change event. A returned error is logged and
// dead-lettered by the bus; it never reaches the writer that caused the event.
type HandlerFunc func(ctx context.Context, ev Event) error

type subscription struct {
	name    string
	pattern Pattern
	kind    Kind
	handler HandlerFunc
}

// Bus routes published events to subscribed handlers.
//
// Thread-safety model:
//   - Subscribe, Publish, Wait: safe from any goroutine
//   - Start: once; Close: once, after which Publish drops events
type Bus struct {
	mu   sync.RWMutex
	subs []*subscription

	queue      *jobQueue
	clock      Clock
	workers    int
	timeout    time.Duration
	deadLetter DeadLetter
	logger     *slog.Logger
	now        func() time.Time

	pending   sync.WaitGroup
	running   sync.WaitGroup
	startOnce sync.Once
}

// Option configures a Bus.
type Option func(*Bus)

// WithWorkers sets how many handler jobs run concurrently.
func WithWorkers(n int) Option {
	return func(b *Bus) {
		if n > 0 {
			b.workers = n
		}
	}
}

// WithTimeout bounds each handler invocation. Zero means no timeout.
func WithTimeout(d time.Duration) Option {
	return func(b *Bus) {
		b.timeout = d
	}
}

// WithDeadLetter sets where failed invocations are recorded.
func WithDeadLetter(dl DeadLetter) Option {
	return func(b *Bus) {
		if dl != nil {
			b.deadLetter = dl
		}
	}
}

// WithLogger sets the logger used for handler failures.
func WithLogger(l *slog.Logger) Option {
	return func(b *Bus) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithClock overrides the wall clock used to stamp events.
func WithClock(now func() time.Time) Option {
	return func(b *Bus) {
		b.now = now
	}
}

// NewBus creates a bus. Call Start before expecting handlers to run.
func NewBus(opts ...Option) *Bus {
	b := &Bus{
		queue:   newJobQueue(),
		workers: DefaultWorkers,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.deadLetter == nil {
		b.deadLetter = NewLogDeadLetter(b.logger)
	}
	return b
}

// Subscribe registers handler under a unique name for changes of kind on
// documents matching pattern (e.g. "ideas/{ideaId}"). The pattern parameter
// is exposed to the handler as ev.Params[param] = document id.
func (b *Bus) Subscribe(pattern string, kind Kind, name string, handler HandlerFunc) error {
	p, err := ParsePattern(pattern)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, s := range b.subs {
		if s.name == name {
			return fmt.Errorf("handler %q already subscribed", name)
		}
	}
	b.subs = append(b.subs, &subscription{name: name, pattern: p, kind: kind, handler: handler})
	return nil
}

// Handlers lists subscribed handler names in registration order.
func (b *Bus) Handlers() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	names := make([]string, 0, len(b.subs))
	for _, s := range b.subs {
		names = append(names, s.name)
	}
	return names
}

// Publish stamps ev and queues one job per matching subscription.
// It never blocks on handler execution.
func (b *Bus) Publish(ev Event) {
	if ev.Seq == 0 {
		ev.Seq = b.clock.Next()
	}
	if ev.Time.IsZero() {
		ev.Time = b.now()
	}

	b.mu.RLock()
	var matched []*subscription
	for _, s := range b.subs {
		if s.kind == ev.Kind && s.pattern.Collection == ev.Collection {
			matched = append(matched, s)
		}
	}
	b.mu.RUnlock()

	for _, s := range matched {
		b.pending.Add(1)
		if !b.queue.Enqueue(job{sub: s, event: ev}) {
			b.pending.Done()
			b.logger.Warn("event dropped: bus closed",
				"handler", s.name,
				"collection", ev.Collection,
				"kind", ev.Kind,
				"id", ev.ID,
			)
		}
	}
}

// Start launches the worker pool. Workers stop when ctx is cancelled or the
// bus is closed and drained.
func (b *Bus) Start(ctx context.Context) {
	b.startOnce.Do(func() {
		b.running.Add(b.workers)
		for i := 0; i < b.workers; i++ {
			go b.work(ctx)
		}
	})
}

// Wait blocks until every queued and running job has finished, including
// jobs queued by handlers while waiting.
func (b *Bus) Wait() {
	b.pending.Wait()
}

// Close stops accepting events, lets the workers finish the queue and
// discards whatever is left if the workers were cancelled.
func (b *Bus) Close() {
	b.queue.Close()
	b.running.Wait()

	for {
		j, ok := b.queue.TryDequeue()
		if !ok {
			return
		}
		b.logger.Warn("event dropped: bus stopped",
			"handler", j.sub.name,
			"collection", j.event.Collection,
			"kind", j.event.Kind,
			"id", j.event.ID,
		)
		b.pending.Done()
	}
}

// Deliver runs the named handler synchronously and returns its error. Used to
// replay dead-lettered events.
func (b *Bus) Deliver(ctx context.Context, name string, ev Event) error {
	b.mu.RLock()
	var sub *subscription
	for _, s := range b.subs {
		if s.name == name {
			sub = s
			break
		}
	}
	b.mu.RUnlock()

	if sub == nil {
		return fmt.Errorf("no handler named %q", name)
	}
	return b.invoke(ctx, sub, ev)
}

func (b *Bus) work(ctx context.Context) {
	defer b.running.Done()

	for {
		if j, ok := b.queue.TryDequeue(); ok {
			b.run(ctx, j)
			continue
		}
		if b.queue.Drained() {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-b.queue.Wait():
		}
	}
}

func (b *Bus) run(ctx context.Context, j job) {
	defer b.pending.Done()

	err := b.invoke(ctx, j.sub, j.event)
	if err == nil {
		return
	}

	b.logger.Error("trigger failed",
		"handler", j.sub.name,
		"collection", j.event.Collection,
		"kind", j.event.Kind,
		"id", j.event.ID,
		"seq", j.event.Seq,
		"error", err,
	)
	failure := Failure{
		Handler:  j.sub.name,
		Event:    j.event,
		Error:    err.Error(),
		FailedAt: b.now(),
	}
	if dlErr := b.deadLetter.Record(context.WithoutCancel(ctx), failure); dlErr != nil {
		b.logger.Error("dead letter write failed", "handler", j.sub.name, "id", j.event.ID, "error", dlErr)
	}
}

func (b *Bus) invoke(ctx context.Context, sub *subscription, ev Event) (err error) {
	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler %s panicked: %v", sub.name, r)
		}
	}()

	return sub.handler(ctx, withParam(ev, sub.pattern.Param))
}

func withParam(ev Event, param string) Event {
	params := make(map[string]string, len(ev.Params)+1)
	for k, v := range ev.Params {
		params[k] = v
	}
	params[param] = ev.ID
	ev.Params = params
	return ev
}
