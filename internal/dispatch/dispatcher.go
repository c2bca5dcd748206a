package dispatch

import (
	"context"
	"errors"
	"time"

	"dialout-picker/internal/dialing"
	"dialout-picker/internal/telephony"
	"dialout-picker/pkg/logger"

	"github.com/google/uuid"
)

// Dispatcher dials a list of destinations one after another through the host.
//
// There is no concurrent dialing: a batch walks its destinations in order,
// waits for each dial (or its timeout), records the outcome and pauses for
// Gap before moving on.
type Dispatcher struct {
	Provider telephony.DialOutProvider

	Timeout time.Duration
	Gap     time.Duration

	// Sleep pauses between destinations; tests replace it.
	Sleep func(time.Duration)
}

func NewDispatcher(p telephony.DialOutProvider) *Dispatcher {
	return &Dispatcher{Provider: p, Timeout: DefaultDialTimeout, Gap: DefaultGap, Sleep: time.Sleep}
}

// Batch is a single pass over a destination list. Each call to Next attempts
// exactly one destination, so the caller decides when to advance.
type Batch struct {
	id        string
	d         *Dispatcher
	ctx       context.Context
	dests     []string
	lookup    Lookup
	overrides dialing.Overrides

	pos      int
	outcomes []Outcome
	tally    Tally
	done     bool
}

// NewBatch prepares a batch. The batch is detached from ctx cancellation:
// once started it runs over its whole list.
func (d *Dispatcher) NewBatch(ctx context.Context, dests []string, lookup Lookup, o dialing.Overrides) *Batch {
	list := make([]string, len(dests))
	copy(list, dests)

	id := uuid.NewString()
	ctx = logger.WithFields(context.WithoutCancel(ctx), "batch_id", id)
	return &Batch{
		id:        id,
		d:         d,
		ctx:       ctx,
		dests:     list,
		lookup:    lookup,
		overrides: o,
		outcomes:  make([]Outcome, 0, len(list)),
	}
}

func (b *Batch) ID() string { return b.id }

func (b *Batch) Done() bool { return b.done }

func (b *Batch) Tally() Tally { return b.tally }

func (b *Batch) Outcomes() []Outcome {
	out := make([]Outcome, len(b.outcomes))
	copy(out, b.outcomes)
	return out
}

func (b *Batch) Summary() Summary {
	return Summary{BatchID: b.id, Outcomes: b.Outcomes(), Tally: b.tally, Done: b.done}
}

// Next attempts the next destination. It returns false once the list is
// exhausted, at which point the batch is marked done.
func (b *Batch) Next() (Progress, bool) {
	if b.pos >= len(b.dests) {
		if !b.done {
			b.done = true
			logger.From(b.ctx).Info("dial-out batch finished",
				"ok", b.tally.OK, "fail", b.tally.Fail, "skip", b.tally.Skip)
		}
		return Progress{}, false
	}

	if b.pos > 0 {
		b.d.pause()
	}

	dest := b.dests[b.pos]
	b.pos++

	out := b.attempt(dest)
	b.outcomes = append(b.outcomes, out)
	b.tally.add(out.Status)

	log := logger.From(b.ctx).With("destination", out.Destination, "status", out.Status)
	if out.Status == StatusFail {
		log.Warn("dial-out attempt failed", "message", out.Message)
	} else {
		log.Info("dial-out attempt", "message", out.Message)
	}

	return Progress{BatchID: b.id, Index: b.pos, Total: len(b.dests), Outcome: out, Tally: b.tally}, true
}

// Abort fails every destination not yet attempted with message, without
// dialing, and marks the batch done. It returns one Progress per failed
// destination.
func (b *Batch) Abort(message string) []Progress {
	var aborted []Progress
	for b.pos < len(b.dests) {
		dest := b.dests[b.pos]
		b.pos++

		out := Outcome{Destination: dest, Label: dest, Status: StatusFail, Message: message}
		if t, ok := b.lookup.ByDestination(dest); ok && t.Label != "" {
			out.Label = t.Label
		}
		b.outcomes = append(b.outcomes, out)
		b.tally.add(out.Status)
		aborted = append(aborted, Progress{BatchID: b.id, Index: b.pos, Total: len(b.dests), Outcome: out, Tally: b.tally})
	}
	if !b.done {
		b.done = true
		logger.From(b.ctx).Warn("dial-out batch aborted", "reason", message,
			"ok", b.tally.OK, "fail", b.tally.Fail, "skip", b.tally.Skip)
	}
	return aborted
}

func (b *Batch) attempt(dest string) Outcome {
	out := Outcome{Destination: dest, Label: dest}

	target, ok := b.lookup.ByDestination(dest)
	if !ok {
		out.Status = StatusSkip
		out.Message = MessageMissingTarget
		return out
	}
	if target.Label != "" {
		out.Label = target.Label
	}

	req := dialing.Resolve(target, b.overrides)
	if err := b.d.dial(b.ctx, req, out.Label); err != nil {
		out.Status = StatusFail
		out.Message = failureMessage(err)
		return out
	}
	out.Status = StatusOK
	out.Message = MessageDialRequested
	return out
}

// Run drives the batch to completion, calling emit after every destination,
// and returns the final summary.
func (b *Batch) Run(emit func(Progress)) Summary {
	for {
		p, ok := b.Next()
		if !ok {
			break
		}
		if emit != nil {
			emit(p)
		}
	}
	return b.Summary()
}

// DispatchAll runs a new batch over dests to completion.
func (d *Dispatcher) DispatchAll(ctx context.Context, dests []string, lookup Lookup, o dialing.Overrides, emit func(Progress)) Summary {
	return d.NewBatch(ctx, dests, lookup, o).Run(emit)
}

func (d *Dispatcher) dial(ctx context.Context, req telephony.DialRequest, label string) error {
	if d.Provider == nil {
		return errors.New("dial-out provider not configured")
	}
	timeout := d.Timeout
	if timeout <= 0 {
		timeout = DefaultDialTimeout
	}
	return dialWithTimeout(ctx, d.Provider, req, timeout, label)
}

func (d *Dispatcher) pause() {
	if d.Gap <= 0 {
		return
	}
	sleep := d.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}
	sleep(d.Gap)
}

// failureMessage prefers the host's own failure detail over the error chain.
func failureMessage(err error) string {
	var de *telephony.DialError
	if errors.As(err, &de) && de.Detail != "" {
		return de.Detail
	}
	return err.Error()
}
