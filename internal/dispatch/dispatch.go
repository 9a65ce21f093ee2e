// Package dispatch runs a participant session live. A single goroutine owns
// the session state; callers hand it events through a mailbox.
//
// For every event the loop stamps the system fields, writes the event to the
// log, reduces it, and routes the side effects: rpc effects go to the
// transport, everything else is queued behind the events already waiting and
// applied on a later turn of the loop.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/abhisek/predtext/internal/event"
	"github.com/abhisek/predtext/internal/master"
	"github.com/abhisek/predtext/internal/metrics"
)

// ErrStopped is returned when events are dispatched to a stopped dispatcher.
var ErrStopped = errors.New("dispatcher stopped")

// Clock provides the dispatch timestamps.
type Clock interface {
	Now() time.Time
}

// RealClock is backed by time.Now.
type RealClock struct{}

// Now implements Clock.
func (RealClock) Now() time.Time { return time.Now() }

// EventLog persists stamped events. Append is called before the event is
// applied.
type EventLog interface {
	Append(ctx context.Context, ev event.Event) error
}

// Transport carries rpc effects to the backend. Send must not block; a
// failed send is reported on the transport's own error channel.
type Transport interface {
	Send(ev event.Event)
}

// ErrorSink receives per-event failures.
type ErrorSink func(err error, ev event.Event)

// PanicError wraps a panic recovered while reducing an event.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic while reducing event: %v", e.Value)
}

// ReplayError reports the backlog position at which replay failed.
type ReplayError struct {
	Index int
	Err   error
}

func (e *ReplayError) Error() string {
	return fmt.Sprintf("backlog replay failed at event %d: %v", e.Index, e.Err)
}

func (e *ReplayError) Unwrap() error { return e.Err }

// Config wires a Dispatcher.
type Config struct {
	// Master configures every session state the dispatcher builds, including
	// the fresh one used for backlog replay.
	Master master.Config

	// Log receives every stamped event before it is applied. Optional.
	Log EventLog

	// Transport receives rpc effects. Optional; without it rpc effects are
	// dropped with a warning.
	Transport Transport

	// Kind is stamped on every event this device dispatches.
	Kind string

	// Clock stamps jsTimestamp. Default: RealClock.
	Clock Clock

	// Errors receives per-event failures. Optional.
	Errors ErrorSink

	// Dev re-panics on reducer failures after reporting them.
	Dev bool

	Metrics     *metrics.Metrics
	Logger      *slog.Logger
	MailboxSize int

	// SessionID tags log lines. Default: a random UUID.
	SessionID string
}

type input struct {
	ev      event.Event
	backlog []event.Event
	isBack  bool
	idle    chan struct{}
}

// Dispatcher is the live event loop for one session.
type Dispatcher struct {
	cfg    Config
	logger *slog.Logger

	inbox  chan input
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once

	// Owned by the loop goroutine.
	state *master.State
	queue []input
	seq   map[string]int

	mu       sync.Mutex
	snapshot master.Snapshot
}

// New creates a dispatcher holding a fresh session state. Call Start to run
// the loop.
func New(cfg Config) *Dispatcher {
	if cfg.Clock == nil {
		cfg.Clock = RealClock{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.MailboxSize <= 0 {
		cfg.MailboxSize = 256
	}
	if cfg.SessionID == "" {
		cfg.SessionID = uuid.NewString()
	}
	if cfg.Master.Kind == "" {
		cfg.Master.Kind = cfg.Kind
	}
	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		cfg:    cfg,
		logger: cfg.Logger.With("session", cfg.SessionID),
		inbox:  make(chan input, cfg.MailboxSize),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
		state:  master.New(cfg.Master),
		seq:    make(map[string]int),
	}
	d.snapshot = d.state.Snapshot()
	return d
}

// SessionID identifies this dispatcher in logs.
func (d *Dispatcher) SessionID() string { return d.cfg.SessionID }

// Start launches the loop. It is idempotent.
func (d *Dispatcher) Start() {
	d.once.Do(func() { go d.loop() })
}

// Stop ends the loop. Queued events are discarded.
func (d *Dispatcher) Stop() {
	d.cancel()
}

// Done closes when the loop exits.
func (d *Dispatcher) Done() <-chan struct{} { return d.done }

// Dispatch queues ev for stamping and reduction.
func (d *Dispatcher) Dispatch(ev event.Event) error {
	return d.enqueue(input{ev: ev})
}

// ApplyBacklog replaces the session with one rebuilt from previously logged
// events. Only the last backlog event's effects are routed.
func (d *Dispatcher) ApplyBacklog(events []event.Event) error {
	return d.enqueue(input{backlog: events, isBack: true})
}

// Idle blocks until every queued event, including effects queued in turn,
// has been applied.
func (d *Dispatcher) Idle(ctx context.Context) error {
	ch := make(chan struct{})
	if err := d.enqueue(input{idle: ch}); err != nil {
		return err
	}
	select {
	case <-ch:
		return nil
	case <-d.ctx.Done():
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Snapshot returns the session as of the last applied event.
func (d *Dispatcher) Snapshot() master.Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.snapshot
}

func (d *Dispatcher) enqueue(in input) error {
	select {
	case <-d.ctx.Done():
		return ErrStopped
	default:
	}
	select {
	case d.inbox <- in:
		return nil
	case <-d.ctx.Done():
		return ErrStopped
	}
}

func (d *Dispatcher) loop() {
	defer close(d.done)
	for {
		if len(d.queue) == 0 {
			select {
			case <-d.ctx.Done():
				return
			case in := <-d.inbox:
				d.queue = append(d.queue, in)
			}
		}
		if d.ctx.Err() != nil {
			return
		}
		d.drainInbox()

		in := d.queue[0]
		d.queue = d.queue[1:]
		d.step(in)
	}
}

// drainInbox moves everything already delivered into the queue, so effects
// queued by the next step land behind it.
func (d *Dispatcher) drainInbox() {
	for {
		select {
		case in := <-d.inbox:
			d.queue = append(d.queue, in)
		default:
			return
		}
	}
}

func (d *Dispatcher) step(in input) {
	switch {
	case in.idle != nil:
		if len(d.queue) > 0 {
			d.queue = append(d.queue, in)
			return
		}
		close(in.idle)
		return
	case in.isBack:
		d.replay(in.backlog)
	default:
		d.handle(in.ev)
	}
	d.publish()
}

func (d *Dispatcher) publish() {
	snap := d.state.Snapshot()
	d.mu.Lock()
	d.snapshot = snap
	d.mu.Unlock()
}

func (d *Dispatcher) stamp(ev event.Event) event.Event {
	kind := d.cfg.Kind
	seq := d.seq[kind]
	d.seq[kind] = seq + 1
	return ev.WithStamp(d.cfg.Clock.Now().UnixMilli(), kind, seq)
}

func (d *Dispatcher) handle(ev event.Event) {
	ev = d.stamp(ev)

	if d.cfg.Log != nil {
		if err := d.cfg.Log.Append(d.ctx, ev); err != nil {
			// The event is still applied; a frozen session helps nobody.
			d.logger.Error("write-ahead log append failed", "type", ev.Type, "seq", ev.Seq, "error", err)
			d.report(fmt.Errorf("append to event log: %w", err), ev)
		}
	}

	effects, err := reduce(d.state, ev)
	if err != nil {
		d.fail(err, ev)
		return
	}
	d.cfg.Metrics.EventDispatched(ev.Type, ev.Kind)
	d.route(effects)
}

// reduce applies ev, converting a panic into a *PanicError.
func reduce(st *master.State, ev event.Event) (effects []event.Event, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return st.HandleEvent(ev)
}

func (d *Dispatcher) route(effects []event.Event) {
	for _, e := range effects {
		if e.IsRPC() {
			d.cfg.Metrics.EffectRouted(metrics.RouteTransport)
			if d.cfg.Transport == nil {
				d.logger.Warn("dropping rpc effect without transport", "request_id", e.RPC.RequestID)
				continue
			}
			d.cfg.Transport.Send(e)
			continue
		}
		d.cfg.Metrics.EffectRouted(metrics.RouteRequeue)
		d.queue = append(d.queue, input{ev: e})
	}
}

// replay rebuilds the session from a backlog. Intermediate effects are
// dropped; the last event's effects are routed to recover a request lost to
// the disconnect. On failure the previous session is kept.
func (d *Dispatcher) replay(backlog []event.Event) {
	st := master.New(d.cfg.Master)
	st.Replaying = true

	var last []event.Event
	for i, ev := range backlog {
		effects, err := reduce(st, ev)
		if err != nil {
			d.fail(&ReplayError{Index: i, Err: err}, ev)
			return
		}
		last = effects
		if ev.Kind == d.cfg.Kind && ev.Seq >= d.seq[ev.Kind] {
			d.seq[ev.Kind] = ev.Seq + 1
		}
	}
	st.Replaying = false

	d.state = st
	d.cfg.Metrics.BacklogReplayed(len(backlog))
	d.logger.Info("replayed backlog", "events", len(backlog), "participant_id", st.ParticipantID)
	d.route(last)
}

func (d *Dispatcher) report(err error, ev event.Event) {
	if d.cfg.Errors != nil {
		d.cfg.Errors(err, ev)
	}
}

// fail reports a reducer failure. The session keeps running unless Dev is
// set.
func (d *Dispatcher) fail(err error, ev event.Event) {
	d.cfg.Metrics.ReducerError(ev.Type)
	d.logger.Error("event handling failed", "type", ev.Type, "seq", ev.Seq, "error", err)
	d.report(err, ev)
	if d.cfg.Dev {
		panic(err)
	}
}
