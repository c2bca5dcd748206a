package session

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"dialout-picker/internal/audit"
	"dialout-picker/internal/auth"
	"dialout-picker/internal/catalog"
	"dialout-picker/internal/dialing"
	"dialout-picker/internal/dispatch"
	"dialout-picker/internal/telephony"
	"dialout-picker/internal/widget"
)

const csvTargets = "label,destination,protocol,role\n" +
	"Boardroom,sip:boardroom@x.com,,guest\n" +
	"Codec,10.0.0.50,h323,host\n" +
	"Recorder,rtmp://rec/live,rtmp,guest\n"

// gatedProvider blocks every dial until released.
type gatedProvider struct {
	started chan string
	release chan struct{}
}

func newGatedProvider() *gatedProvider {
	return &gatedProvider{started: make(chan string, 8), release: make(chan struct{})}
}

func (g *gatedProvider) Name() string                        { return "gated" }
func (g *gatedProvider) HealthCheck(ctx context.Context) error { return nil }
func (g *gatedProvider) DialOut(ctx context.Context, req telephony.DialRequest) error {
	g.started <- req.Destination
	<-g.release
	return nil
}

type fixture struct {
	mgr   *Manager
	dry   *telephony.DryRunProvider
	audit *audit.MemoryRepo
}

func newFixture(t *testing.T, p telephony.DialOutProvider, src catalog.Source) fixture {
	t.Helper()
	dry := &telephony.DryRunProvider{}
	if p == nil {
		p = dry
	}
	d := dispatch.NewDispatcher(p)
	d.Sleep = func(time.Duration) {}

	repo := audit.NewMemoryRepo()
	if src == nil {
		src = catalog.SourceFunc(func(context.Context) (string, error) { return csvTargets, nil })
	}
	mgr := NewManager(Options{
		Conference: "meet",
		Source:     src,
		Dispatcher: d,
		Audit:      audit.NewService(repo, "meet"),
	})
	return fixture{mgr: mgr, dry: dry, audit: repo}
}

func mustCreate(t *testing.T, m *Manager) *Session {
	t.Helper()
	s, err := m.Create(context.Background())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	return s
}

func TestCreate_FallsBackWhenSourceFails(t *testing.T) {
	f := newFixture(t, nil, catalog.SourceFunc(func(context.Context) (string, error) {
		return "", errors.New("HTTP 404")
	}))
	s := mustCreate(t, f.mgr)

	if got := len(s.Targets()); got != 4 {
		t.Fatalf("expected fallback list, got %d targets", got)
	}
	if st := s.Snapshot(); !st.Loaded || len(st.Filtered) != 4 {
		t.Fatalf("unexpected snapshot %+v", st)
	}
}

func TestSelection(t *testing.T) {
	f := newFixture(t, nil, nil)
	s := mustCreate(t, f.mgr)

	if on, err := s.Toggle("10.0.0.50"); err != nil || !on {
		t.Fatalf("toggle on: %v %v", on, err)
	}
	if _, err := s.Toggle("sip:nobody@x"); !errors.Is(err, ErrUnknownTarget) {
		t.Fatalf("expected ErrUnknownTarget, got %v", err)
	}

	found, err := s.Search("sip")
	if err != nil || len(found) != 1 || found[0].Label != "Boardroom" {
		t.Fatalf("unexpected search result %+v %v", found, err)
	}
	if n, err := s.SelectAllFiltered(); err != nil || n != 2 {
		t.Fatalf("select all: %d %v", n, err)
	}
	if want := []string{"10.0.0.50", "sip:boardroom@x.com"}; !reflect.DeepEqual(s.Selected(), want) {
		t.Fatalf("selection must keep pick order, got %v", s.Selected())
	}
	if n, _ := s.SelectAllFiltered(); n != 2 {
		t.Fatalf("select all must not duplicate")
	}

	if on, _ := s.Toggle("10.0.0.50"); on {
		t.Fatalf("expected toggle off")
	}
	if err := s.ClearSelection(); err != nil || len(s.Selected()) != 0 {
		t.Fatalf("clear: %v", err)
	}

	st := s.Snapshot()
	if st.Query != "sip" || len(st.Filtered) != 1 {
		t.Fatalf("unexpected snapshot %+v", st)
	}
}

func TestDialSelected_RunsBatchAndAudits(t *testing.T) {
	f := newFixture(t, nil, nil)
	s := mustCreate(t, f.mgr)
	_, _ = s.Toggle("rtmp://rec/live")
	_, _ = s.Toggle("10.0.0.50")

	var seen []dispatch.Progress
	sum, err := s.DialSelected(context.Background(), dialing.Overrides{DisplayName: "Ops"}, func(p dispatch.Progress) {
		seen = append(seen, p)
	})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	if !sum.Done || sum.Tally != (dispatch.Tally{OK: 2}) || len(seen) != 2 {
		t.Fatalf("unexpected summary %+v", sum)
	}
	reqs := f.dry.Requests()
	if len(reqs) != 2 || reqs[0].Destination != "rtmp://rec/live" || reqs[1].Destination != "10.0.0.50" {
		t.Fatalf("expected dials in selection order, got %+v", reqs)
	}

	st := s.Snapshot()
	if st.Phase != widget.PhaseDone || st.Current != nil || len(st.Outcomes) != 2 || st.Overrides.DisplayName != "Ops" {
		t.Fatalf("unexpected snapshot %+v", st)
	}
	if v := widget.Project(st); v.Summary != "Done. Success: 2  Failed: 0  Skipped: 0" || v.ControlsDisabled {
		t.Fatalf("unexpected view %+v", v)
	}

	evs := f.audit.BySession(s.ID())
	if len(evs) != 2 || evs[0].Message != "batch started" || evs[1].Message != "batch finished" {
		t.Fatalf("unexpected audit trail %+v", evs)
	}
	if evs[0].BatchID == "" || evs[0].BatchID != sum.BatchID {
		t.Fatalf("audit must carry the batch id")
	}
}

func TestDial_EmptySelectionIsNoop(t *testing.T) {
	f := newFixture(t, nil, nil)
	s := mustCreate(t, f.mgr)

	sum, err := s.DialSelected(context.Background(), dialing.Overrides{}, nil)
	if err != nil || len(sum.Outcomes) != 0 {
		t.Fatalf("unexpected %+v %v", sum, err)
	}
	if st := s.Snapshot(); st.Phase != widget.PhaseIdle || len(f.dry.Requests()) != 0 {
		t.Fatalf("expected no state change, got %+v", st)
	}
}

func TestDial_NewBatchClearsPreviousLog(t *testing.T) {
	f := newFixture(t, nil, nil)
	s := mustCreate(t, f.mgr)

	_, _ = s.Dial(context.Background(), []string{"10.0.0.50", "sip:gone@x"}, dialing.Overrides{}, nil)
	if got := len(s.Snapshot().Outcomes); got != 2 {
		t.Fatalf("expected 2 outcomes, got %d", got)
	}

	_, _ = s.Dial(context.Background(), []string{"rtmp://rec/live"}, dialing.Overrides{}, nil)
	st := s.Snapshot()
	if len(st.Outcomes) != 1 || st.Tally != (dispatch.Tally{OK: 1}) {
		t.Fatalf("expected fresh log, got %+v", st)
	}
}

func TestDial_BusyWhileRunning(t *testing.T) {
	g := newGatedProvider()
	f := newFixture(t, g, nil)
	s := mustCreate(t, f.mgr)
	other := mustCreate(t, f.mgr)

	done := make(chan dispatch.Summary, 1)
	go func() {
		sum, _ := s.Dial(context.Background(), []string{"sip:boardroom@x.com", "10.0.0.50"}, dialing.Overrides{}, nil)
		done <- sum
	}()
	<-g.started

	st := s.Snapshot()
	if st.Phase != widget.PhaseDialing || st.Current == nil || st.Current.Label != "Boardroom" {
		t.Fatalf("unexpected running snapshot %+v", st)
	}
	if v := widget.Project(st); !v.ControlsDisabled || v.Status != "Dialing 1/2: Boardroom" || v.Summary != "Dialing…" {
		t.Fatalf("unexpected running view %+v", v)
	}

	if _, err := s.Toggle("10.0.0.50"); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy from toggle, got %v", err)
	}
	if _, err := s.Search("x"); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy from search, got %v", err)
	}
	if _, err := s.Dial(context.Background(), []string{"10.0.0.50"}, dialing.Overrides{}, nil); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy from second batch, got %v", err)
	}
	if _, err := other.DialOne(context.Background(), "10.0.0.50", dialing.Overrides{}); !errors.Is(err, ErrBusy) {
		t.Fatalf("conference lock must block other sessions, got %v", err)
	}

	close(g.release)
	sum := <-done
	if sum.Tally.OK != 2 {
		t.Fatalf("unexpected summary %+v", sum)
	}
	if _, err := s.Toggle("10.0.0.50"); err != nil {
		t.Fatalf("controls must be released, got %v", err)
	}
	if _, err := other.DialOne(context.Background(), "10.0.0.50", dialing.Overrides{}); err != nil {
		t.Fatalf("conference lock must be released, got %v", err)
	}
}

func TestDial_ReleasesControlsOnPanic(t *testing.T) {
	f := newFixture(t, nil, nil)
	s := mustCreate(t, f.mgr)

	func() {
		defer func() { _ = recover() }()
		_, _ = s.Dial(context.Background(), []string{"10.0.0.50"}, dialing.Overrides{}, func(dispatch.Progress) {
			panic("listener gone")
		})
	}()

	if _, err := s.Toggle("10.0.0.50"); err != nil {
		t.Fatalf("controls must be released after panic, got %v", err)
	}
	if st := s.Snapshot(); st.Phase == widget.PhaseDialing {
		t.Fatalf("phase must leave dialing")
	}
}

func TestDialOne_ReturnsToastAndKeepsLog(t *testing.T) {
	f := newFixture(t, nil, nil)
	s := mustCreate(t, f.mgr)
	_, _ = s.Dial(context.Background(), []string{"10.0.0.50"}, dialing.Overrides{}, nil)

	toast, err := s.DialOne(context.Background(), "sip:boardroom@x.com", dialing.Overrides{})
	if err != nil {
		t.Fatalf("dial one: %v", err)
	}
	if toast.Kind != widget.ToastSuccess || toast.Message != "Dial requested: Boardroom" {
		t.Fatalf("unexpected toast %+v", toast)
	}
	if got := s.Snapshot().Outcomes; len(got) != 1 || got[0].Destination != "10.0.0.50" {
		t.Fatalf("single dial must not touch the batch log, got %+v", got)
	}

	missing, _ := s.DialOne(context.Background(), "sip:gone@x", dialing.Overrides{})
	if missing.Kind != widget.ToastError || missing.Outcome.Status != dispatch.StatusSkip {
		t.Fatalf("unexpected toast %+v", missing)
	}

	evs := f.audit.BySession(s.ID())
	last := evs[len(evs)-1]
	if last.Type != audit.EventTypeDialOutSingle || last.Destination != "sip:gone@x" {
		t.Fatalf("unexpected audit event %+v", last)
	}
}

func TestManager_Close(t *testing.T) {
	f := newFixture(t, nil, nil)
	s := mustCreate(t, f.mgr)

	if got, err := f.mgr.Get(s.ID()); err != nil || got != s {
		t.Fatalf("get: %v", err)
	}
	if err := f.mgr.Close(s.ID()); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := f.mgr.Get(s.ID()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := f.mgr.Close(s.ID()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second close, got %v", err)
	}
	if _, err := s.Toggle("10.0.0.50"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("closed session must reject edits, got %v", err)
	}
	if f.mgr.Len() != 0 || len(s.Targets()) != 0 {
		t.Fatalf("catalog must be discarded")
	}
}

func TestManager_RequiresDispatcher(t *testing.T) {
	if _, err := NewManager(Options{}).Create(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
}

func TestMemoryLock(t *testing.T) {
	l := NewMemoryLock()
	ctx := context.Background()

	if ok, _ := l.Acquire(ctx, "meet", "b1"); !ok {
		t.Fatalf("expected acquire")
	}
	if ok, _ := l.Acquire(ctx, "meet", "b1"); !ok {
		t.Fatalf("same owner must re-acquire")
	}
	if ok, _ := l.Acquire(ctx, "meet", "b2"); ok {
		t.Fatalf("other owner must be rejected")
	}
	_ = l.Release(ctx, "meet", "b2")
	if ok, _ := l.Acquire(ctx, "meet", "b2"); ok {
		t.Fatalf("release by non-owner must be ignored")
	}
	_ = l.Release(ctx, "meet", "b1")
	if ok, _ := l.Acquire(ctx, "meet", "b2"); !ok {
		t.Fatalf("expected acquire after release")
	}
}

func TestManager_SweepClosesIdleSessions(t *testing.T) {
	f := newFixture(t, nil, nil)
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	f.mgr.clock = func() time.Time { return now }

	idle := mustCreate(t, f.mgr)
	used := mustCreate(t, f.mgr)

	now = now.Add(20 * time.Minute)
	if _, err := f.mgr.Get(used.ID()); err != nil {
		t.Fatalf("get: %v", err)
	}
	now = now.Add(15 * time.Minute)

	if n := f.mgr.Sweep(); n != 1 {
		t.Fatalf("expected one idle session closed, got %d", n)
	}
	if _, err := f.mgr.Get(idle.ID()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected idle session gone, got %v", err)
	}
	if _, err := idle.Toggle("10.0.0.50"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("closed session must reject edits, got %v", err)
	}
	if _, err := f.mgr.Get(used.ID()); err != nil {
		t.Fatalf("recently used session must survive, got %v", err)
	}
}

func TestManager_SweepKeepsBusySessions(t *testing.T) {
	g := newGatedProvider()
	f := newFixture(t, g, nil)
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	f.mgr.clock = func() time.Time { return now }
	s := mustCreate(t, f.mgr)

	done := make(chan struct{})
	go func() {
		_, _ = s.Dial(context.Background(), []string{"sip:boardroom@x.com"}, dialing.Overrides{}, nil)
		close(done)
	}()
	<-g.started

	now = now.Add(2 * DefaultIdleTTL)
	if n := f.mgr.Sweep(); n != 0 {
		t.Fatalf("busy session must not be swept, closed %d", n)
	}
	close(g.release)
	<-done

	// The finished batch counts as use.
	if n := f.mgr.Sweep(); n != 0 {
		t.Fatalf("session used by the batch must not be swept, closed %d", n)
	}
	now = now.Add(DefaultIdleTTL + time.Second)
	if n := f.mgr.Sweep(); n != 1 || f.mgr.Len() != 0 {
		t.Fatalf("expected session swept after the batch, closed %d live %d", n, f.mgr.Len())
	}
}

func TestManager_CapsSessionsPerUser(t *testing.T) {
	f := newFixture(t, nil, nil)
	f.mgr.opts.MaxPerUser = 2
	u1 := auth.WithIdentity(context.Background(), "u1", "meet", "chair")

	for i := 0; i < 2; i++ {
		if _, err := f.mgr.Create(u1); err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
	}
	if _, err := f.mgr.Create(u1); !errors.Is(err, ErrTooMany) {
		t.Fatalf("expected ErrTooMany, got %v", err)
	}
	if _, err := f.mgr.Create(auth.WithIdentity(context.Background(), "u2", "meet", "guest")); err != nil {
		t.Fatalf("other user must not be capped, got %v", err)
	}
	for i := 0; i < 3; i++ {
		mustCreate(t, f.mgr)
	}
	if f.mgr.Len() != 6 {
		t.Fatalf("expected 6 live sessions, got %d", f.mgr.Len())
	}
}

// grantingLock grants the first n acquires and refuses the rest.
type grantingLock struct {
	mu sync.Mutex
	n  int
}

func (l *grantingLock) Acquire(ctx context.Context, key, owner string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.n == 0 {
		return false, nil
	}
	l.n--
	return true, nil
}

func (l *grantingLock) Release(ctx context.Context, key, owner string) error { return nil }

func TestDial_LockLostAbortsRemaining(t *testing.T) {
	f := newFixture(t, nil, nil)
	// One acquire to start, one refresh before the second dial.
	f.mgr.opts.Lock = &grantingLock{n: 2}
	s := mustCreate(t, f.mgr)

	var emitted []dispatch.Progress
	sum, err := s.Dial(context.Background(), []string{"sip:boardroom@x.com", "10.0.0.50", "rtmp://rec/live"}, dialing.Overrides{}, func(p dispatch.Progress) {
		emitted = append(emitted, p)
	})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}

	if len(sum.Outcomes) != 3 || len(emitted) != 3 {
		t.Fatalf("expected an outcome per destination, got %+v (emitted %d)", sum.Outcomes, len(emitted))
	}
	if sum.Outcomes[0].Status != dispatch.StatusOK || sum.Outcomes[1].Status != dispatch.StatusOK {
		t.Fatalf("expected the first two dialed, got %+v", sum.Outcomes)
	}
	last := sum.Outcomes[2]
	if last.Status != dispatch.StatusFail || last.Message != dispatch.MessageLockLost || last.Label != "Recorder" {
		t.Fatalf("unexpected aborted outcome %+v", last)
	}
	if sum.Tally != (dispatch.Tally{OK: 2, Fail: 1}) || !sum.Done {
		t.Fatalf("unexpected summary %+v", sum)
	}
	if f.dry.Count() != 2 {
		t.Fatalf("aborted destination must not be dialed, provider saw %d", f.dry.Count())
	}
	if st := s.Snapshot(); st.Phase != widget.PhaseDone || len(st.Outcomes) != 3 {
		t.Fatalf("unexpected snapshot %+v", st)
	}
	if _, err := s.Toggle("10.0.0.50"); err != nil {
		t.Fatalf("controls must be released, got %v", err)
	}
}
