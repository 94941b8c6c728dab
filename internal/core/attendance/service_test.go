package attendance

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/ogurasousui/attendance-clean-arch/internal/core/compliance"
	"github.com/ogurasousui/attendance-clean-arch/internal/core/identity"
)

type stubClock struct {
	now time.Time
}

func (s *stubClock) Now() time.Time {
	return s.now
}

type stubPolicies struct {
	cfg compliance.Config
	err error
}

func (s *stubPolicies) PolicyConfig(context.Context) (compliance.Config, error) {
	return s.cfg, s.err
}

func compliantPolicies() *stubPolicies {
	return &stubPolicies{cfg: compliance.Config{
		RetentionYears:       4,
		PrivacyNoticeVersion: "2024-01",
		TermsNoticeVersion:   "2024-01",
		NoRepsStatement:      true,
	}}
}

// fakeAttendanceRepo は部分ユニークインデックスと同じ不変条件をメモリ上で
// 強制します。
type fakeAttendanceRepo struct {
	mu      sync.Mutex
	entries map[string]*Entry
	breaks  map[string]*BreakInterval
	events  []*GeoEvent
}

func newFakeAttendanceRepo() *fakeAttendanceRepo {
	return &fakeAttendanceRepo{
		entries: make(map[string]*Entry),
		breaks:  make(map[string]*BreakInterval),
	}
}

func (r *fakeAttendanceRepo) CreateEntry(_ context.Context, e *Entry) (*Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.entries {
		if existing.WorkerID == e.WorkerID && existing.End == nil {
			return nil, ErrAlreadyOpen
		}
	}

	clone := cloneEntry(e)
	r.entries[clone.ID] = clone
	return cloneEntry(clone), nil
}

func (r *fakeAttendanceRepo) UpdateEntry(_ context.Context, e *Entry) (*Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[e.ID]; !ok {
		return nil, ErrEntryNotFound
	}
	r.entries[e.ID] = cloneEntry(e)
	return cloneEntry(e), nil
}

func (r *fakeAttendanceRepo) FindEntryByID(_ context.Context, id string) (*Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[id]
	if !ok {
		return nil, ErrEntryNotFound
	}
	return cloneEntry(entry), nil
}

func (r *fakeAttendanceRepo) FindOpenEntryByWorker(_ context.Context, workerID string) (*Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, entry := range r.entries {
		if entry.WorkerID == workerID && entry.End == nil {
			return cloneEntry(entry), nil
		}
	}
	return nil, ErrEntryNotFound
}

func (r *fakeAttendanceRepo) CreateBreak(_ context.Context, b *BreakInterval) (*BreakInterval, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.breaks {
		if existing.EntryID == b.EntryID && existing.End == nil {
			return nil, ErrAlreadyOnBreak
		}
	}

	clone := cloneBreak(b)
	r.breaks[clone.ID] = clone
	return cloneBreak(clone), nil
}

func (r *fakeAttendanceRepo) UpdateBreak(_ context.Context, b *BreakInterval) (*BreakInterval, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.breaks[b.ID]; !ok {
		return nil, ErrBreakNotFound
	}
	r.breaks[b.ID] = cloneBreak(b)
	return cloneBreak(b), nil
}

func (r *fakeAttendanceRepo) FindBreakByID(_ context.Context, id string) (*BreakInterval, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	brk, ok := r.breaks[id]
	if !ok {
		return nil, ErrBreakNotFound
	}
	return cloneBreak(brk), nil
}

func (r *fakeAttendanceRepo) FindOpenBreakByEntry(_ context.Context, entryID string) (*BreakInterval, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, brk := range r.breaks {
		if brk.EntryID == entryID && brk.End == nil {
			return cloneBreak(brk), nil
		}
	}
	return nil, ErrBreakNotFound
}

func (r *fakeAttendanceRepo) ListBreaksByEntry(_ context.Context, entryID string) ([]*BreakInterval, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	breaks := make([]*BreakInterval, 0, 4)
	for _, brk := range r.breaks {
		if brk.EntryID == entryID {
			breaks = append(breaks, cloneBreak(brk))
		}
	}
	return breaks, nil
}

func (r *fakeAttendanceRepo) AppendGeoEvent(_ context.Context, e *GeoEvent) (*GeoEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	clone := *e
	r.events = append(r.events, &clone)
	result := clone
	return &result, nil
}

func (r *fakeAttendanceRepo) ListGeoEventsByEntry(_ context.Context, entryID string) ([]*GeoEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	events := make([]*GeoEvent, 0, 4)
	for _, event := range r.events {
		if event.EntryID == entryID {
			clone := *event
			events = append(events, &clone)
		}
	}
	return events, nil
}

func cloneEntry(e *Entry) *Entry {
	clone := *e
	if e.End != nil {
		end := *e.End
		clone.End = &end
	}
	return &clone
}

func cloneBreak(b *BreakInterval) *BreakInterval {
	clone := *b
	if b.End != nil {
		end := *b.End
		clone.End = &end
	}
	return &clone
}

func employeePrincipal(workerID string) identity.Principal {
	return identity.Principal{WorkerID: workerID, Role: identity.RoleEmployee, Location: "madrid", Department: "front-of-house"}
}

var testStart = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func newTestService(repo Repository, clock Clock) *Service {
	return NewService(repo, compliantPolicies(), clock, nil, nil)
}

func TestClockIn_CreatesEntryAndGeoEvent(t *testing.T) {
	t.Parallel()

	repo := newFakeAttendanceRepo()
	svc := newTestService(repo, &stubClock{now: testStart})

	entry, err := svc.ClockIn(context.Background(), ClockInInput{
		WorkerID: "w1",
		Actor:    employeePrincipal("w1"),
		Geo:      &GeoPayload{Lat: 40.0, Lon: -3.7, Accuracy: 5, DeviceID: "dev-1"},
	})
	if err != nil {
		t.Fatalf("ClockIn returned error: %v", err)
	}

	if entry.Status != StatusOpen || entry.End != nil {
		t.Fatalf("expected open entry, got %+v", entry)
	}
	if !entry.Start.Equal(testStart) {
		t.Fatalf("expected start %v, got %v", testStart, entry.Start)
	}

	events, err := repo.ListGeoEventsByEntry(context.Background(), entry.ID)
	if err != nil {
		t.Fatalf("ListGeoEventsByEntry returned error: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected one geo event, got %d", len(events))
	}
	if events[0].Kind != GeoEventClockIn || events[0].Lat != 40.0 || events[0].Lon != -3.7 || events[0].Accuracy != 5 {
		t.Fatalf("unexpected geo event: %+v", events[0])
	}

	if _, err := svc.ClockIn(context.Background(), ClockInInput{WorkerID: "w1", Actor: employeePrincipal("w1")}); !errors.Is(err, ErrAlreadyOpen) {
		t.Fatalf("expected ErrAlreadyOpen, got %v", err)
	}
}

func TestClockIn_WithoutGeoIsAccepted(t *testing.T) {
	t.Parallel()

	repo := newFakeAttendanceRepo()
	svc := newTestService(repo, &stubClock{now: testStart})

	entry, err := svc.ClockIn(context.Background(), ClockInInput{WorkerID: "w1", Actor: employeePrincipal("w1")})
	if err != nil {
		t.Fatalf("ClockIn returned error: %v", err)
	}

	events, _ := repo.ListGeoEventsByEntry(context.Background(), entry.ID)
	if len(events) != 0 {
		t.Fatalf("expected no geo events, got %d", len(events))
	}
}

func TestClockIn_ComplianceIncomplete(t *testing.T) {
	t.Parallel()

	policies := compliantPolicies()
	policies.cfg.RetentionYears = 3

	repo := newFakeAttendanceRepo()
	svc := NewService(repo, policies, &stubClock{now: testStart}, nil, nil)

	_, err := svc.ClockIn(context.Background(), ClockInInput{WorkerID: "w1", Actor: employeePrincipal("w1")})
	if !errors.Is(err, ErrComplianceIncomplete) {
		t.Fatalf("expected ErrComplianceIncomplete, got %v", err)
	}

	if len(repo.entries) != 0 {
		t.Fatal("expected no entry to be created")
	}
}

func TestClockIn_ComplianceDoesNotBlockClockOut(t *testing.T) {
	t.Parallel()

	policies := compliantPolicies()
	repo := newFakeAttendanceRepo()
	clock := &stubClock{now: testStart}
	svc := NewService(repo, policies, clock, nil, nil)

	entry, err := svc.ClockIn(context.Background(), ClockInInput{WorkerID: "w1", Actor: employeePrincipal("w1")})
	if err != nil {
		t.Fatalf("ClockIn returned error: %v", err)
	}

	// 打刻後にポリシーが未充足になっても退勤は妨げられない。
	policies.cfg.RetentionYears = 0
	clock.now = testStart.Add(8 * time.Hour)

	if _, err := svc.ClockOut(context.Background(), ClockOutInput{EntryID: entry.ID, Actor: employeePrincipal("w1")}); err != nil {
		t.Fatalf("ClockOut returned error: %v", err)
	}
}

func TestClockIn_ConcurrentAttemptsSingleSuccess(t *testing.T) {
	t.Parallel()

	repo := newFakeAttendanceRepo()
	svc := newTestService(repo, &stubClock{now: testStart})

	const attempts = 8
	results := make(chan error, attempts)

	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.ClockIn(context.Background(), ClockInInput{WorkerID: "w1", Actor: employeePrincipal("w1")})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var successes, alreadyOpen int
	for err := range results {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, ErrAlreadyOpen):
			alreadyOpen++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if successes != 1 || alreadyOpen != attempts-1 {
		t.Fatalf("expected exactly one success, got %d successes and %d AlreadyOpen", successes, alreadyOpen)
	}
}

func TestClockOut_ClosesEntry(t *testing.T) {
	t.Parallel()

	repo := newFakeAttendanceRepo()
	clock := &stubClock{now: testStart}
	svc := newTestService(repo, clock)

	entry, err := svc.ClockIn(context.Background(), ClockInInput{WorkerID: "w1", Actor: employeePrincipal("w1")})
	if err != nil {
		t.Fatalf("ClockIn returned error: %v", err)
	}

	clock.now = testStart.Add(8 * time.Hour)
	closed, err := svc.ClockOut(context.Background(), ClockOutInput{EntryID: entry.ID, Actor: employeePrincipal("w1")})
	if err != nil {
		t.Fatalf("ClockOut returned error: %v", err)
	}

	if closed.Status != StatusClosed || closed.End == nil {
		t.Fatalf("expected closed entry, got %+v", closed)
	}
	if !closed.End.Equal(testStart.Add(8 * time.Hour)) {
		t.Fatalf("unexpected end time: %v", closed.End)
	}

	if _, err := svc.ClockOut(context.Background(), ClockOutInput{EntryID: entry.ID, Actor: employeePrincipal("w1")}); !errors.Is(err, ErrEntryClosed) {
		t.Fatalf("expected ErrEntryClosed, got %v", err)
	}
}

func TestClockOut_NotFound(t *testing.T) {
	t.Parallel()

	svc := newTestService(newFakeAttendanceRepo(), &stubClock{now: testStart})

	if _, err := svc.ClockOut(context.Background(), ClockOutInput{EntryID: uuid.NewString(), Actor: employeePrincipal("w1")}); !errors.Is(err, ErrEntryNotFound) {
		t.Fatalf("expected ErrEntryNotFound, got %v", err)
	}
}

func TestClockOut_Forbidden(t *testing.T) {
	t.Parallel()

	repo := newFakeAttendanceRepo()
	svc := newTestService(repo, &stubClock{now: testStart})

	entry, err := svc.ClockIn(context.Background(), ClockInInput{WorkerID: "w1", Actor: employeePrincipal("w1")})
	if err != nil {
		t.Fatalf("ClockIn returned error: %v", err)
	}

	if _, err := svc.ClockOut(context.Background(), ClockOutInput{EntryID: entry.ID, Actor: employeePrincipal("w2")}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}

	manager := identity.Principal{WorkerID: "m1", Role: identity.RoleManager}
	if _, err := svc.ClockOut(context.Background(), ClockOutInput{EntryID: entry.ID, Actor: manager}); err != nil {
		t.Fatalf("expected manager to close the entry, got %v", err)
	}
}

func TestClockOut_OpenBreakRejected(t *testing.T) {
	t.Parallel()

	repo := newFakeAttendanceRepo()
	clock := &stubClock{now: testStart}
	svc := newTestService(repo, clock)

	entry, err := svc.ClockIn(context.Background(), ClockInInput{WorkerID: "w1", Actor: employeePrincipal("w1")})
	if err != nil {
		t.Fatalf("ClockIn returned error: %v", err)
	}

	clock.now = testStart.Add(3 * time.Hour)
	brk, err := svc.StartBreak(context.Background(), StartBreakInput{EntryID: entry.ID, Actor: employeePrincipal("w1")})
	if err != nil {
		t.Fatalf("StartBreak returned error: %v", err)
	}

	clock.now = testStart.Add(4 * time.Hour)
	if _, err := svc.ClockOut(context.Background(), ClockOutInput{EntryID: entry.ID, Actor: employeePrincipal("w1")}); !errors.Is(err, ErrOpenBreakPresent) {
		t.Fatalf("expected ErrOpenBreakPresent, got %v", err)
	}

	// 休憩を終了させれば退勤できる。
	if _, err := svc.EndBreak(context.Background(), EndBreakInput{EntryID: entry.ID, BreakID: brk.ID, Actor: employeePrincipal("w1")}); err != nil {
		t.Fatalf("EndBreak returned error: %v", err)
	}
	if _, err := svc.ClockOut(context.Background(), ClockOutInput{EntryID: entry.ID, Actor: employeePrincipal("w1")}); err != nil {
		t.Fatalf("ClockOut returned error: %v", err)
	}
}

func TestBreakLifecycle(t *testing.T) {
	t.Parallel()

	repo := newFakeAttendanceRepo()
	clock := &stubClock{now: testStart}
	svc := newTestService(repo, clock)

	entry, err := svc.ClockIn(context.Background(), ClockInInput{WorkerID: "w1", Actor: employeePrincipal("w1")})
	if err != nil {
		t.Fatalf("ClockIn returned error: %v", err)
	}

	clock.now = testStart.Add(2 * time.Hour)
	brk, err := svc.StartBreak(context.Background(), StartBreakInput{EntryID: entry.ID, Actor: employeePrincipal("w1")})
	if err != nil {
		t.Fatalf("StartBreak returned error: %v", err)
	}

	if _, err := svc.StartBreak(context.Background(), StartBreakInput{EntryID: entry.ID, Actor: employeePrincipal("w1")}); !errors.Is(err, ErrAlreadyOnBreak) {
		t.Fatalf("expected ErrAlreadyOnBreak, got %v", err)
	}

	clock.now = testStart.Add(2*time.Hour + 30*time.Minute)
	ended, err := svc.EndBreak(context.Background(), EndBreakInput{EntryID: entry.ID, BreakID: brk.ID, Actor: employeePrincipal("w1")})
	if err != nil {
		t.Fatalf("EndBreak returned error: %v", err)
	}
	if ended.End == nil || !ended.End.Equal(clock.now) {
		t.Fatalf("unexpected break end: %+v", ended)
	}

	if _, err := svc.EndBreak(context.Background(), EndBreakInput{EntryID: entry.ID, BreakID: brk.ID, Actor: employeePrincipal("w1")}); !errors.Is(err, ErrBreakNotOpen) {
		t.Fatalf("expected ErrBreakNotOpen, got %v", err)
	}

	// Working → OnBreak → Working は繰り返せる。
	clock.now = testStart.Add(5 * time.Hour)
	if _, err := svc.StartBreak(context.Background(), StartBreakInput{EntryID: entry.ID, Actor: employeePrincipal("w1")}); err != nil {
		t.Fatalf("second StartBreak returned error: %v", err)
	}
}

func TestStartBreak_EntryClosed(t *testing.T) {
	t.Parallel()

	repo := newFakeAttendanceRepo()
	clock := &stubClock{now: testStart}
	svc := newTestService(repo, clock)

	entry, err := svc.ClockIn(context.Background(), ClockInInput{WorkerID: "w1", Actor: employeePrincipal("w1")})
	if err != nil {
		t.Fatalf("ClockIn returned error: %v", err)
	}
	if _, err := svc.ClockOut(context.Background(), ClockOutInput{EntryID: entry.ID, Actor: employeePrincipal("w1")}); err != nil {
		t.Fatalf("ClockOut returned error: %v", err)
	}

	if _, err := svc.StartBreak(context.Background(), StartBreakInput{EntryID: entry.ID, Actor: employeePrincipal("w1")}); !errors.Is(err, ErrEntryClosed) {
		t.Fatalf("expected ErrEntryClosed, got %v", err)
	}
}

func TestEndBreak_NotFound(t *testing.T) {
	t.Parallel()

	repo := newFakeAttendanceRepo()
	svc := newTestService(repo, &stubClock{now: testStart})

	entry, err := svc.ClockIn(context.Background(), ClockInInput{WorkerID: "w1", Actor: employeePrincipal("w1")})
	if err != nil {
		t.Fatalf("ClockIn returned error: %v", err)
	}

	if _, err := svc.EndBreak(context.Background(), EndBreakInput{EntryID: entry.ID, BreakID: uuid.NewString(), Actor: employeePrincipal("w1")}); !errors.Is(err, ErrBreakNotFound) {
		t.Fatalf("expected ErrBreakNotFound, got %v", err)
	}
}

func TestRecordGeoEvent(t *testing.T) {
	t.Parallel()

	repo := newFakeAttendanceRepo()
	svc := newTestService(repo, &stubClock{now: testStart})

	entry, err := svc.ClockIn(context.Background(), ClockInInput{WorkerID: "w1", Actor: employeePrincipal("w1")})
	if err != nil {
		t.Fatalf("ClockIn returned error: %v", err)
	}

	event, err := svc.RecordGeoEvent(context.Background(), RecordGeoEventInput{
		EntryID: entry.ID,
		Kind:    GeoEventBreakStart,
		Payload: GeoPayload{Lat: 40.1, Lon: -3.6, Accuracy: 12},
	})
	if err != nil {
		t.Fatalf("RecordGeoEvent returned error: %v", err)
	}
	if event.WorkerID != "w1" || event.Kind != GeoEventBreakStart {
		t.Fatalf("unexpected event: %+v", event)
	}

	if _, err := svc.RecordGeoEvent(context.Background(), RecordGeoEventInput{EntryID: entry.ID, Kind: "teleport"}); !errors.Is(err, ErrInvalidGeoEventKind) {
		t.Fatalf("expected ErrInvalidGeoEventKind, got %v", err)
	}

	if _, err := svc.RecordGeoEvent(context.Background(), RecordGeoEventInput{EntryID: uuid.NewString(), Kind: GeoEventClockIn}); !errors.Is(err, ErrEntryNotFound) {
		t.Fatalf("expected ErrEntryNotFound, got %v", err)
	}
}

func TestWorkedMinutes(t *testing.T) {
	t.Parallel()

	repo := newFakeAttendanceRepo()
	clock := &stubClock{now: testStart}
	svc := newTestService(repo, clock)

	entry, err := svc.ClockIn(context.Background(), ClockInInput{WorkerID: "w1", Actor: employeePrincipal("w1")})
	if err != nil {
		t.Fatalf("ClockIn returned error: %v", err)
	}

	clock.now = testStart.Add(3 * time.Hour) // 12:00
	brk, err := svc.StartBreak(context.Background(), StartBreakInput{EntryID: entry.ID, Actor: employeePrincipal("w1")})
	if err != nil {
		t.Fatalf("StartBreak returned error: %v", err)
	}

	clock.now = testStart.Add(3*time.Hour + 30*time.Minute) // 12:30
	if _, err := svc.EndBreak(context.Background(), EndBreakInput{EntryID: entry.ID, BreakID: brk.ID, Actor: employeePrincipal("w1")}); err != nil {
		t.Fatalf("EndBreak returned error: %v", err)
	}

	clock.now = testStart.Add(8 * time.Hour) // 17:00
	if _, err := svc.ClockOut(context.Background(), ClockOutInput{EntryID: entry.ID, Actor: employeePrincipal("w1")}); err != nil {
		t.Fatalf("ClockOut returned error: %v", err)
	}

	minutes, err := svc.WorkedMinutes(context.Background(), entry.ID)
	if err != nil {
		t.Fatalf("WorkedMinutes returned error: %v", err)
	}
	if minutes != 450 {
		t.Fatalf("expected 450 worked minutes, got %d", minutes)
	}
}

func TestWorkedMinutes_OpenBreakDeductsNothing(t *testing.T) {
	t.Parallel()

	repo := newFakeAttendanceRepo()
	clock := &stubClock{now: testStart}
	svc := newTestService(repo, clock)

	entry, err := svc.ClockIn(context.Background(), ClockInInput{WorkerID: "w1", Actor: employeePrincipal("w1")})
	if err != nil {
		t.Fatalf("ClockIn returned error: %v", err)
	}

	clock.now = testStart.Add(30 * time.Minute)
	if _, err := svc.StartBreak(context.Background(), StartBreakInput{EntryID: entry.ID, Actor: employeePrincipal("w1")}); err != nil {
		t.Fatalf("StartBreak returned error: %v", err)
	}

	clock.now = testStart.Add(time.Hour)
	minutes, err := svc.WorkedMinutes(context.Background(), entry.ID)
	if err != nil {
		t.Fatalf("WorkedMinutes returned error: %v", err)
	}
	if minutes != 60 {
		t.Fatalf("expected 60 worked minutes with the break still open, got %d", minutes)
	}
}

func TestWorkedMinutes_RoundsToNearestMinute(t *testing.T) {
	t.Parallel()

	end := testStart.Add(7*time.Minute + 40*time.Second)
	entry := &Entry{Start: testStart, End: &end, Status: StatusClosed}

	if got := workedMinutes(entry, nil, end); got != 8 {
		t.Fatalf("expected 8 minutes, got %d", got)
	}
}
