package session

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"
	"time"

	"dialout-picker/internal/audit"
	"dialout-picker/internal/auth"
	"dialout-picker/internal/catalog"
	"dialout-picker/internal/dialing"
	"dialout-picker/internal/dispatch"
	"dialout-picker/internal/targets"
	"dialout-picker/internal/widget"
	"dialout-picker/pkg/logger"
)

// Session is one user's picker: a catalog loaded at open, a search query,
// a selection that keeps the order destinations were picked in, and the
// log of the latest batch. While a batch runs every mutating call returns
// ErrBusy.
type Session struct {
	id        string
	createdAt time.Time
	opts      Options
	clock     func() time.Time
	owner     string

	mu        sync.Mutex
	catalog   *catalog.Catalog
	query     string
	filtered  []targets.CallTarget
	selected  []string
	overrides dialing.Overrides
	busy      bool
	closed    bool
	lastUsed  time.Time

	phase    widget.Phase
	current  *widget.Step
	outcomes []dispatch.Outcome
	tally    dispatch.Tally
}

func newSession(id string, clock func() time.Time, cat *catalog.Catalog, opts Options) *Session {
	now := clock()
	return &Session{
		id:        id,
		createdAt: now.UTC(),
		lastUsed:  now,
		opts:      opts,
		clock:     clock,
		catalog:   cat,
		filtered:  cat.All(),
	}
}

func (s *Session) ID() string { return s.id }

func (s *Session) CreatedAt() time.Time { return s.createdAt }

// Targets returns the whole catalog in order.
func (s *Session) Targets() []targets.CallTarget {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.catalog == nil {
		return []targets.CallTarget{}
	}
	return s.catalog.All()
}

// Search sets the query and returns the filtered targets.
func (s *Session) Search(query string) ([]targets.CallTarget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.editableLocked(); err != nil {
		return nil, err
	}
	s.query = query
	s.filtered = s.catalog.Search(query)
	return copyTargets(s.filtered), nil
}

// Toggle flips destination in the selection and reports whether it is now
// selected.
func (s *Session) Toggle(destination string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.editableLocked(); err != nil {
		return false, err
	}
	if _, ok := s.catalog.ByDestination(destination); !ok {
		return false, ErrUnknownTarget
	}
	if i := slices.Index(s.selected, destination); i >= 0 {
		s.selected = slices.Delete(s.selected, i, i+1)
		return false, nil
	}
	s.selected = append(s.selected, destination)
	return true, nil
}

// SelectAllFiltered adds every currently filtered target to the selection
// and returns the selection size.
func (s *Session) SelectAllFiltered() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.editableLocked(); err != nil {
		return 0, err
	}
	for _, t := range s.filtered {
		if !slices.Contains(s.selected, t.Destination) {
			s.selected = append(s.selected, t.Destination)
		}
	}
	return len(s.selected), nil
}

func (s *Session) ClearSelection() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.editableLocked(); err != nil {
		return err
	}
	s.selected = nil
	return nil
}

// Selected returns the selection in pick order.
func (s *Session) Selected() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.selected...)
}

// Snapshot copies the state the widget projects.
func (s *Session) Snapshot() widget.State {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := widget.State{
		Loaded:    s.catalog != nil,
		Query:     s.query,
		Filtered:  copyTargets(s.filtered),
		Selected:  append([]string(nil), s.selected...),
		Overrides: s.overrides,
		Phase:     s.phase,
		Outcomes:  append([]dispatch.Outcome(nil), s.outcomes...),
		Tally:     s.tally,
	}
	if s.current != nil {
		step := *s.current
		st.Current = &step
	}
	return st
}

// DialSelected dials the current selection as one batch.
func (s *Session) DialSelected(ctx context.Context, o dialing.Overrides, emit func(dispatch.Progress)) (dispatch.Summary, error) {
	return s.Dial(ctx, s.Selected(), o, emit)
}

// Dial runs one batch over dests in order. An empty list is a no-op. The
// previous outcome log is cleared when the batch starts, and controls are
// released however the batch ends.
func (s *Session) Dial(ctx context.Context, dests []string, o dialing.Overrides, emit func(dispatch.Progress)) (dispatch.Summary, error) {
	if len(dests) == 0 {
		return dispatch.Summary{Outcomes: []dispatch.Outcome{}, Done: true}, nil
	}
	if err := s.claim(); err != nil {
		return dispatch.Summary{}, err
	}

	// A started batch runs over its whole list even if the caller goes away.
	ctx = logger.WithFields(context.WithoutCancel(ctx), "session_id", s.id)
	b := s.opts.Dispatcher.NewBatch(ctx, dests, s.lookup(), o)
	defer s.release(ctx, b)

	if err := s.hold(ctx, b.ID()); err != nil {
		return dispatch.Summary{}, err
	}

	s.mu.Lock()
	s.overrides = o
	s.outcomes = nil
	s.tally = dispatch.Tally{}
	s.current = nil
	s.phase = widget.PhaseDialing
	s.mu.Unlock()

	actor := actorFrom(ctx)
	s.recordAudit(ctx, func() error {
		return s.opts.Audit.LogBatch(ctx, actor, s.id, b.ID(), "batch started", metadata(map[string]any{"total": len(dests)}))
	})

	record := func(p dispatch.Progress) {
		s.mu.Lock()
		s.outcomes = append(s.outcomes, p.Outcome)
		s.tally = p.Tally
		s.mu.Unlock()
		if emit != nil {
			emit(p)
		}
	}

	for i := 0; ; i++ {
		if i < len(dests) {
			s.setCurrent(s.stepFor(i, dests))
			// The hold must still be ours before every further dial, or two
			// batches could dial into the conference at once.
			if i > 0 {
				if err := s.hold(ctx, b.ID()); err != nil {
					logger.From(ctx).Error("batch lock lost, aborting batch", "err", err)
					for _, p := range b.Abort(dispatch.MessageLockLost) {
						record(p)
					}
					break
				}
			}
		}
		p, ok := b.Next()
		if !ok {
			break
		}
		record(p)
	}

	sum := b.Summary()
	s.recordAudit(ctx, func() error {
		return s.opts.Audit.LogBatch(ctx, actor, s.id, b.ID(), "batch finished", metadata(sum.Tally))
	})
	return sum, nil
}

// DialOne dials a single destination outside the batch log and returns the
// notification to show.
func (s *Session) DialOne(ctx context.Context, destination string, o dialing.Overrides) (widget.Toast, error) {
	if err := s.claim(); err != nil {
		return widget.Toast{}, err
	}

	ctx = logger.WithFields(context.WithoutCancel(ctx), "session_id", s.id)
	b := s.opts.Dispatcher.NewBatch(ctx, []string{destination}, s.lookup(), o)
	defer s.release(ctx, b)

	if err := s.hold(ctx, b.ID()); err != nil {
		return widget.Toast{}, err
	}

	out := b.Run(nil).Outcomes[0]
	s.recordAudit(ctx, func() error {
		return s.opts.Audit.LogSingle(ctx, actorFrom(ctx), s.id, destination, out.Message, metadata(out))
	})
	return widget.ToastFor(out), nil
}

// claim marks the session busy. Only one batch or single dial runs at a time.
func (s *Session) claim() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrNotFound
	}
	if s.busy {
		return ErrBusy
	}
	s.busy = true
	return nil
}

// hold takes or extends the conference-wide batch lock for owner.
func (s *Session) hold(ctx context.Context, owner string) error {
	ok, err := s.opts.Lock.Acquire(ctx, s.opts.Conference, owner)
	if err != nil {
		return fmt.Errorf("session: acquire batch lock: %w", err)
	}
	if !ok {
		return ErrBusy
	}
	return nil
}

func (s *Session) release(ctx context.Context, b *dispatch.Batch) {
	if err := s.opts.Lock.Release(ctx, s.opts.Conference, b.ID()); err != nil {
		logger.From(ctx).Warn("batch lock release failed", "err", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.busy = false
	s.current = nil
	s.lastUsed = s.clock()
	if s.phase == widget.PhaseDialing {
		if b.Done() {
			s.phase = widget.PhaseDone
		} else {
			s.phase = widget.PhaseIdle
		}
	}
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	if now.After(s.lastUsed) {
		s.lastUsed = now
	}
	s.mu.Unlock()
}

// idleSince reports how long the session has gone unused. A session with a
// batch in flight is never idle.
func (s *Session) idleSince(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy {
		return 0
	}
	return now.Sub(s.lastUsed)
}

func (s *Session) setCurrent(step widget.Step) {
	s.mu.Lock()
	s.current = &step
	s.mu.Unlock()
}

func (s *Session) stepFor(i int, dests []string) widget.Step {
	step := widget.Step{Index: i + 1, Total: len(dests), Label: dests[i]}
	t, ok := s.lookup().ByDestination(dests[i])
	if !ok {
		step.Skipped = true
		return step
	}
	if t.Label != "" {
		step.Label = t.Label
	}
	return step
}

// lookup returns the catalog, or an empty one once the session is closed.
func (s *Session) lookup() *catalog.Catalog {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.catalog == nil {
		return catalog.New(nil)
	}
	return s.catalog
}

func (s *Session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.catalog = nil
	s.filtered = nil
	s.selected = nil
}

func (s *Session) editableLocked() error {
	if s.closed {
		return ErrNotFound
	}
	if s.busy {
		return ErrBusy
	}
	return nil
}

func (s *Session) recordAudit(ctx context.Context, fn func() error) {
	if err := fn(); err != nil {
		logger.From(ctx).Warn("audit append failed", "err", err)
	}
}

func actorFrom(ctx context.Context) audit.Actor {
	uid, _ := auth.UserID(ctx)
	role, _ := auth.Role(ctx)
	return audit.Actor{UserID: uid, Role: role, IP: audit.ClientIP(ctx)}
}

func metadata(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

func copyTargets(in []targets.CallTarget) []targets.CallTarget {
	out := make([]targets.CallTarget, len(in))
	copy(out, in)
	return out
}
