package attendance

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/cpuguy83/agenda/internal/calendar"
	"github.com/cpuguy83/agenda/internal/notify"
)

// Updater writes a status change to the agenda service.
type Updater interface {
	// Update sends the full record with its new status.
	Update(ctx context.Context, e calendar.Event) (calendar.Event, error)
	// UpdateStatus sends only the new status, guarded by e.Version.
	UpdateStatus(ctx context.Context, e calendar.Event, to calendar.Status) (calendar.Event, error)
}

// Confirmer asks the person requesting a transition to confirm it.
type Confirmer interface {
	Confirm(ctx context.Context, e calendar.Event, from, to calendar.Status) (bool, error)
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, e calendar.Event, from, to calendar.Status) (bool, error)

// Confirm implements Confirmer.
func (f ConfirmFunc) Confirm(ctx context.Context, e calendar.Event, from, to calendar.Status) (bool, error) {
	return f(ctx, e, from, to)
}

// AutoConfirm accepts every transition. Use it when the caller already confirmed.
var AutoConfirm Confirmer = ConfirmFunc(func(context.Context, calendar.Event, calendar.Status, calendar.Status) (bool, error) {
	return true, nil
})

// Options tune a Service.
type Options struct {
	// StrictUpdates sends partial status updates carrying the version token.
	StrictUpdates bool
	// PublicConfirmation asks for confirmation on the public flow too.
	PublicConfirmation bool
}

// Request is a transition request.
type Request struct {
	EventID   string
	To        calendar.Status
	Flow      Flow
	Confirmer Confirmer
}

// Service performs confirmed transitions against the agenda service and
// applies them to the board once they succeed.
type Service struct {
	board    *Board
	updater  Updater
	notifier notify.Sender
	opts     Options

	mu       sync.Mutex
	inFlight map[string]struct{}
}

// NewService creates a transition service.
func NewService(board *Board, updater Updater, notifier notify.Sender, opts Options) *Service {
	if notifier == nil {
		notifier = notify.Discard
	}
	return &Service{
		board:    board,
		updater:  updater,
		notifier: notifier,
		opts:     opts,
		inFlight: make(map[string]struct{}),
	}
}

// Board returns the board the service updates.
func (s *Service) Board() *Board {
	return s.board
}

// RequestTransition moves an item to req.To.
// The board is only changed after the agenda service accepted the update.
// A rejected update leaves the board as it was and raises an error toast;
// it is not retried.
func (s *Service) RequestTransition(ctx context.Context, req Request) (calendar.Event, error) {
	e, ok := s.board.Get(req.EventID)
	if !ok {
		return calendar.Event{}, fmt.Errorf("%w: %s", ErrUnknownEvent, req.EventID)
	}
	from := e.Status
	if err := Check(req.Flow, from, req.To); err != nil {
		return calendar.Event{}, err
	}

	if !s.acquire(e.ID) {
		return calendar.Event{}, ErrInFlight
	}
	defer s.release(e.ID)

	if req.Flow == Dashboard || s.opts.PublicConfirmation {
		if err := s.confirm(ctx, req.Confirmer, e, from, req.To); err != nil {
			return calendar.Event{}, err
		}
	}

	updated, err := s.send(ctx, e, req.To)
	if err != nil {
		slog.Warn("status update failed", "id", e.ID, "from", from, "to", req.To, "error", err)
		s.toast(notify.Error("No se pudo actualizar el estado", fmt.Sprintf("%s: %v", e.Title, err)))
		return calendar.Event{}, err
	}

	if err := s.board.Update(updated); err != nil {
		// The snapshot was replaced while the request was in flight.
		slog.Debug("transitioned event left the board", "id", e.ID, "error", err)
	}

	slog.Info("status updated", "id", e.ID, "from", from, "to", updated.Status, "flow", req.Flow)
	s.toast(notify.Success("Estado actualizado", fmt.Sprintf("%s: %s → %s", e.Title, from, updated.Status)))
	return updated, nil
}

func (s *Service) confirm(ctx context.Context, c Confirmer, e calendar.Event, from, to calendar.Status) error {
	if c == nil {
		return ErrCancelled
	}
	ok, err := c.Confirm(ctx, e, from, to)
	if err != nil {
		return fmt.Errorf("confirm transition: %w", err)
	}
	if !ok {
		return ErrCancelled
	}
	return nil
}

func (s *Service) send(ctx context.Context, e calendar.Event, to calendar.Status) (calendar.Event, error) {
	var (
		updated calendar.Event
		err     error
	)
	if s.opts.StrictUpdates {
		updated, err = s.updater.UpdateStatus(ctx, e, to)
	} else {
		next := e
		next.Status = to
		updated, err = s.updater.Update(ctx, next)
	}
	if err != nil {
		return calendar.Event{}, err
	}
	if updated.ID == "" {
		updated = e
		updated.Status = to
	}
	return updated, nil
}

func (s *Service) acquire(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inFlight[id]; busy {
		return false
	}
	s.inFlight[id] = struct{}{}
	return true
}

func (s *Service) release(id string) {
	s.mu.Lock()
	delete(s.inFlight, id)
	s.mu.Unlock()
}

func (s *Service) toast(n notify.Notification) {
	if err := s.notifier.Send(n); err != nil {
		slog.Warn("failed to send notification", "error", err)
	}
}
