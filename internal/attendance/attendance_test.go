package attendance

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cpuguy83/agenda/internal/calendar"
	"github.com/cpuguy83/agenda/internal/notify"
)

func TestCheck(t *testing.T) {
	tests := []struct {
		name string
		flow Flow
		from calendar.Status
		to   calendar.Status
		want error
	}{
		{"dashboard accept", Dashboard, calendar.StatusPending, calendar.StatusConfirmed, nil},
		{"dashboard decline", Dashboard, calendar.StatusPending, calendar.StatusNotConfirmed, nil},
		{"dashboard back to pending", Dashboard, calendar.StatusConfirmed, calendar.StatusPending, nil},
		{"dashboard flip", Dashboard, calendar.StatusConfirmed, calendar.StatusNotConfirmed, nil},
		{"dashboard same", Dashboard, calendar.StatusPending, calendar.StatusPending, ErrSameStatus},
		{"dashboard unknown", Dashboard, calendar.StatusPending, calendar.Status("QUIZAS"), ErrIllegalTransition},
		{"public attend", Public, calendar.StatusPending, calendar.StatusWillAttend, nil},
		{"public decline", Public, calendar.StatusPending, calendar.StatusWontAttend, nil},
		{"public undo", Public, calendar.StatusWillAttend, calendar.StatusPending, ErrIllegalTransition},
		{"public flip", Public, calendar.StatusWillAttend, calendar.StatusWontAttend, ErrIllegalTransition},
		{"public same", Public, calendar.StatusPending, calendar.StatusPending, ErrSameStatus},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Check(tt.flow, tt.from, tt.to)
			if tt.want == nil {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestTargets(t *testing.T) {
	got := Targets(Public, calendar.StatusPending)
	if len(got) != 4 {
		t.Errorf("public targets from pending = %v", got)
	}
	if got := Targets(Public, calendar.StatusConfirmed); len(got) != 0 {
		t.Errorf("public targets from confirmed = %v", got)
	}
	if got := Targets(Dashboard, calendar.StatusConfirmed); len(got) != 4 {
		t.Errorf("dashboard targets from confirmed = %v", got)
	}
}

func sampleEvents() []calendar.Event {
	day := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	at := func(h int) time.Time { return day.Add(time.Duration(h) * time.Hour) }
	return []calendar.Event{
		{ID: "1", Title: "Sesión", Start: at(9), End: at(10), Status: calendar.StatusPending},
		{ID: "2", Title: "Comisión", Start: at(11), End: at(12), Status: calendar.StatusConfirmed},
		{ID: "3", Title: "Visita", Start: at(13), End: at(14), Status: calendar.StatusPending},
		{ID: "4", Title: "Audiencia", Start: at(8), End: at(9), Status: calendar.StatusWontAttend},
	}
}

func checkCounts(t *testing.T, b *Board) {
	t.Helper()
	total := 0
	for _, n := range b.Counts() {
		total += n
	}
	if total != b.Len() {
		t.Errorf("buckets hold %d items, board has %d", total, b.Len())
	}
}

func TestBoard(t *testing.T) {
	b := NewBoard(sampleEvents())
	checkCounts(t, b)

	counts := b.Counts()
	if counts[calendar.KindPending] != 2 || counts[calendar.KindAccepted] != 1 || counts[calendar.KindDeclined] != 1 {
		t.Fatalf("unexpected counts %v", counts)
	}

	if err := b.Move("3", calendar.StatusConfirmed); err != nil {
		t.Fatal(err)
	}
	checkCounts(t, b)

	accepted := b.Bucket(calendar.KindAccepted)
	if len(accepted) != 2 || accepted[0].ID != "2" || accepted[1].ID != "3" {
		t.Errorf("accepted bucket = %+v", accepted)
	}
	if pending := b.Bucket(calendar.KindPending); len(pending) != 1 || pending[0].ID != "1" {
		t.Errorf("pending bucket = %+v", pending)
	}

	e, _ := b.Get("3")
	if e.Status != calendar.StatusConfirmed {
		t.Errorf("combined list not updated: %s", e.Status)
	}
	if all := b.All(); all[2].ID != "3" {
		t.Errorf("combined list reordered: %+v", all)
	}

	// Same bucket, different synonym.
	if err := b.Move("3", calendar.StatusWillAttend); err != nil {
		t.Fatal(err)
	}
	checkCounts(t, b)
	if accepted := b.Bucket(calendar.KindAccepted); len(accepted) != 2 || accepted[1].Status != calendar.StatusWillAttend {
		t.Errorf("accepted bucket = %+v", accepted)
	}

	if err := b.Move("nope", calendar.StatusConfirmed); !errors.Is(err, ErrUnknownEvent) {
		t.Errorf("expected ErrUnknownEvent, got %v", err)
	}
}

func TestBoardMoveInsertsByStart(t *testing.T) {
	b := NewBoard(sampleEvents())
	if err := b.Move("1", calendar.StatusNotConfirmed); err != nil {
		t.Fatal(err)
	}
	declined := b.Bucket(calendar.KindDeclined)
	if len(declined) != 2 || declined[0].ID != "4" || declined[1].ID != "1" {
		t.Errorf("declined bucket = %+v", declined)
	}
}

type fakeUpdater struct {
	mu      sync.Mutex
	err     error
	full    []calendar.Event
	partial []calendar.Status
	block   chan struct{}
}

func (f *fakeUpdater) Update(ctx context.Context, e calendar.Event) (calendar.Event, error) {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.full = append(f.full, e)
	if f.err != nil {
		return calendar.Event{}, f.err
	}
	return e, nil
}

func (f *fakeUpdater) UpdateStatus(ctx context.Context, e calendar.Event, to calendar.Status) (calendar.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.partial = append(f.partial, to)
	if f.err != nil {
		return calendar.Event{}, f.err
	}
	e.Status = to
	e.Version = "v2"
	return e, nil
}

type recorder struct {
	mu   sync.Mutex
	sent []notify.Notification
}

func (r *recorder) Send(n notify.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
	return nil
}

func (r *recorder) kinds() []notify.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []notify.Kind
	for _, n := range r.sent {
		out = append(out, n.Kind)
	}
	return out
}

func TestRequestTransition(t *testing.T) {
	board := NewBoard(sampleEvents())
	up := &fakeUpdater{}
	rec := &recorder{}
	svc := NewService(board, up, rec, Options{})

	got, err := svc.RequestTransition(context.Background(), Request{
		EventID:   "1",
		To:        calendar.StatusConfirmed,
		Flow:      Dashboard,
		Confirmer: AutoConfirm,
	})
	if err != nil {
		t.Fatalf("RequestTransition: %v", err)
	}
	if got.Status != calendar.StatusConfirmed {
		t.Errorf("returned status %s", got.Status)
	}
	if len(up.full) != 1 || up.full[0].Status != calendar.StatusConfirmed || up.full[0].Title != "Sesión" {
		t.Errorf("full update not sent: %+v", up.full)
	}
	if e, _ := board.Get("1"); e.Status != calendar.StatusConfirmed {
		t.Errorf("board not updated: %s", e.Status)
	}
	checkCounts(t, board)
	if k := rec.kinds(); len(k) != 1 || k[0] != notify.KindSuccess {
		t.Errorf("notifications = %v", k)
	}
}

func TestRequestTransitionFailure(t *testing.T) {
	board := NewBoard(sampleEvents())
	up := &fakeUpdater{err: errors.New("service unavailable")}
	rec := &recorder{}
	svc := NewService(board, up, rec, Options{})

	_, err := svc.RequestTransition(context.Background(), Request{
		EventID:   "1",
		To:        calendar.StatusConfirmed,
		Flow:      Dashboard,
		Confirmer: AutoConfirm,
	})
	if err == nil {
		t.Fatal("expected error")
	}

	e, _ := board.Get("1")
	if e.Status != calendar.StatusPending {
		t.Errorf("board changed after failed update: %s", e.Status)
	}
	pending := board.Bucket(calendar.KindPending)
	if len(pending) != 2 || pending[0].ID != "1" {
		t.Errorf("pending bucket = %+v", pending)
	}
	checkCounts(t, board)

	if k := rec.kinds(); len(k) != 1 || k[0] != notify.KindError {
		t.Errorf("notifications = %v", k)
	}
	if len(up.full) != 1 {
		t.Errorf("update should be sent exactly once, got %d", len(up.full))
	}
}

func TestRequestTransitionConfirmation(t *testing.T) {
	tests := []struct {
		name      string
		flow      Flow
		opts      Options
		confirmer Confirmer
		wantErr   error
		wantCalls int
	}{
		{"dashboard refused", Dashboard, Options{}, ConfirmFunc(func(context.Context, calendar.Event, calendar.Status, calendar.Status) (bool, error) {
			return false, nil
		}), ErrCancelled, 0},
		{"dashboard without confirmer", Dashboard, Options{}, nil, ErrCancelled, 0},
		{"public without confirmer", Public, Options{}, nil, nil, 1},
		{"public with confirmation required", Public, Options{PublicConfirmation: true}, nil, ErrCancelled, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			board := NewBoard(sampleEvents())
			up := &fakeUpdater{}
			svc := NewService(board, up, nil, tt.opts)

			_, err := svc.RequestTransition(context.Background(), Request{
				EventID:   "1",
				To:        calendar.StatusWillAttend,
				Flow:      tt.flow,
				Confirmer: tt.confirmer,
			})
			if tt.wantErr == nil && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("got %v, want %v", err, tt.wantErr)
			}
			if len(up.full) != tt.wantCalls {
				t.Errorf("got %d updates, want %d", len(up.full), tt.wantCalls)
			}
		})
	}
}

func TestRequestTransitionRejected(t *testing.T) {
	svc := NewService(NewBoard(sampleEvents()), &fakeUpdater{}, nil, Options{})

	_, err := svc.RequestTransition(context.Background(), Request{EventID: "2", To: calendar.StatusWontAttend, Flow: Public})
	if !errors.Is(err, ErrIllegalTransition) {
		t.Errorf("expected ErrIllegalTransition, got %v", err)
	}
	_, err = svc.RequestTransition(context.Background(), Request{EventID: "9", To: calendar.StatusConfirmed, Flow: Public})
	if !errors.Is(err, ErrUnknownEvent) {
		t.Errorf("expected ErrUnknownEvent, got %v", err)
	}
}

func TestRequestTransitionStrict(t *testing.T) {
	board := NewBoard(sampleEvents())
	up := &fakeUpdater{}
	svc := NewService(board, up, nil, Options{StrictUpdates: true})

	got, err := svc.RequestTransition(context.Background(), Request{EventID: "3", To: calendar.StatusWontAttend, Flow: Public})
	if err != nil {
		t.Fatal(err)
	}
	if len(up.full) != 0 || len(up.partial) != 1 || up.partial[0] != calendar.StatusWontAttend {
		t.Errorf("full %d partial %v", len(up.full), up.partial)
	}
	if e, _ := board.Get("3"); e.Version != "v2" || got.Version != "v2" {
		t.Errorf("version not stored: %+v", e)
	}
}

func TestRequestTransitionInFlight(t *testing.T) {
	board := NewBoard(sampleEvents())
	up := &fakeUpdater{block: make(chan struct{})}
	svc := NewService(board, up, nil, Options{})

	done := make(chan error, 1)
	go func() {
		_, err := svc.RequestTransition(context.Background(), Request{EventID: "1", To: calendar.StatusWillAttend, Flow: Public})
		done <- err
	}()

	// Wait until the first request holds the event.
	deadline := time.Now().Add(2 * time.Second)
	for {
		svc.mu.Lock()
		_, busy := svc.inFlight["1"]
		svc.mu.Unlock()
		if busy {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("first request never started")
		}
		time.Sleep(time.Millisecond)
	}

	_, err := svc.RequestTransition(context.Background(), Request{EventID: "1", To: calendar.StatusWontAttend, Flow: Public})
	if !errors.Is(err, ErrInFlight) {
		t.Errorf("expected ErrInFlight, got %v", err)
	}

	close(up.block)
	if err := <-done; err != nil {
		t.Fatalf("first request: %v", err)
	}
	if e, _ := board.Get("1"); e.Status != calendar.StatusWillAttend {
		t.Errorf("status = %s", e.Status)
	}
}
