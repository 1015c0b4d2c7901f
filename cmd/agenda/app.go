package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	gosync "sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cpuguy83/agenda/internal/attendance"
	"github.com/cpuguy83/agenda/internal/auth"
	"github.com/cpuguy83/agenda/internal/backend"
	"github.com/cpuguy83/agenda/internal/calendar"
	"github.com/cpuguy83/agenda/internal/config"
	"github.com/cpuguy83/agenda/internal/current"
	"github.com/cpuguy83/agenda/internal/filter"
	"github.com/cpuguy83/agenda/internal/links"
	"github.com/cpuguy83/agenda/internal/notify"
	"github.com/cpuguy83/agenda/internal/server"
	"github.com/cpuguy83/agenda/internal/sync"
	"github.com/cpuguy83/agenda/internal/tray"
)

const (
	actionJoin     = "join"
	actionDocument = "document"
)

// App wires the agenda components together.
type App struct {
	cfg      *config.Config
	notifier *notify.Notifier
	tray     *tray.Tray
	syncer   *sync.Syncer
	board    *attendance.Board
	locator  *current.Locator
	server   *server.Server

	// URLs behind the action buttons of desktop notifications, by notification ID.
	mu      gosync.Mutex
	actions map[uint32]map[string]string
}

// NewApp creates the application.
func NewApp(cfg *config.Config) *App {
	return &App{
		cfg:     cfg,
		actions: make(map[uint32]map[string]string),
	}
}

// Run starts every component and blocks until ctx is cancelled or one fails.
func (a *App) Run(ctx context.Context) error {
	if err := a.setup(); err != nil {
		return err
	}
	defer a.cleanup()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.syncer.Run(ctx)
	})
	g.Go(func() error {
		a.locator.Run(ctx)
		return nil
	})
	g.Go(func() error {
		return a.server.Run(ctx)
	})
	if a.notifier != nil {
		g.Go(func() error {
			a.cleanupLoop(ctx)
			return nil
		})
	}

	slog.Info("agenda running", "sources", a.syncer.SourceCount(), "listen", a.cfg.Server.Listen)
	return g.Wait()
}

func (a *App) setup() error {
	loc, err := a.cfg.Location()
	if err != nil {
		return err
	}

	tokens, err := auth.New(a.cfg.Auth)
	if err != nil {
		return fmt.Errorf("create token provider: %w", err)
	}
	client := backend.NewClient(a.cfg.Backend.URL, &http.Client{Timeout: a.cfg.Backend.Timeout}, tokens, loc)

	hub := server.NewHub(a.cfg.Server.AllowOrigins)
	senders := notify.Multi{notify.Log{}, hub}
	if a.cfg.Notifications.Enabled {
		a.notifier, err = notify.New(a.cfg.Notifications.AppName)
		if err != nil {
			slog.Warn("failed to initialize notifications", "error", err)
		} else {
			senders = append(senders, a.notifier)
			if err := a.notifier.WatchActions(a.onAction); err != nil {
				slog.Warn("failed to watch notification actions", "error", err)
			}
		}
	}

	if a.cfg.Notifications.Tray {
		if err := a.startTray(); err != nil {
			slog.Warn("failed to start status indicator", "error", err)
		} else {
			senders = append(senders, a.tray)
		}
	}

	rules, err := filter.New(a.cfg.Filters)
	if err != nil {
		return fmt.Errorf("filters: %w", err)
	}
	var opts []sync.Option
	if a.cfg.Backend.URL != "" {
		opts = append(opts, sync.WithSource(client, rules))
	}
	opts = append(opts, sync.WithNotifier(senders))

	a.syncer, err = sync.NewSyncer(a.cfg, opts...)
	if err != nil {
		return fmt.Errorf("create syncer: %w", err)
	}
	if a.syncer.SourceCount() == 0 {
		return fmt.Errorf("no agenda sources configured: set backend.url or add sources")
	}

	a.board = attendance.NewBoard(nil)
	service := attendance.NewService(a.board, client, senders, attendance.Options{
		StrictUpdates:      a.cfg.Attendance.StrictUpdates,
		PublicConfirmation: a.cfg.Attendance.PublicConfirmation,
	})
	a.locator = current.NewLocator(a.board.All, a.cfg.Current.Interval)

	a.server, err = server.New(a.cfg, server.Deps{
		Board:      a.board,
		Attendance: service,
		Current:    a.locator,
		Hub:        hub,
		Refresher:  a.syncer,
	})
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}

	a.syncer.OnSnapshot(func(events []calendar.Event) {
		a.board.Load(events)
		a.locator.Trigger()
		if a.tray != nil {
			a.tray.SetSnapshot(a.board.Counts()[calendar.KindPending])
		}
		if err := hub.PublishSnapshot(len(events)); err != nil {
			slog.Warn("failed to publish snapshot", "error", err)
		}
	})
	a.locator.OnChange(func(ev *calendar.Event) {
		a.server.PublishCurrent(ev)
		if a.tray != nil {
			a.tray.SetCurrent(ev)
		}
		if ev != nil {
			a.notifyCurrent(*ev)
		}
	})
	return nil
}

// startTray shows the status indicator; clicking it opens the dashboard.
func (a *App) startTray() error {
	t, err := tray.New(a.cfg.Notifications.AppName)
	if err != nil {
		return err
	}
	if err := t.Start(); err != nil {
		t.Close()
		return err
	}
	if dashboard := a.cfg.Server.DashboardURL; dashboard != "" {
		t.OnActivate(func() {
			if err := links.Open(dashboard); err != nil {
				slog.Warn("failed to open dashboard", "url", dashboard, "error", err)
			}
		})
	}
	a.tray = t
	return nil
}

// notifyCurrent raises a desktop notification for a meeting that just started.
func (a *App) notifyCurrent(e calendar.Event) {
	if a.notifier == nil {
		return
	}

	notif := notify.Notification{
		Kind:     notify.KindInfo,
		Summary:  e.Title,
		Body:     fmt.Sprintf("En curso hasta las %s", e.End.Format("15:04")),
		EventUID: e.ID,
		Urgency:  notify.UrgencyNormal,
	}
	if e.Councillor != nil {
		notif.Body += "\n" + e.Councillor.FullName()
	}

	urls := make(map[string]string)
	if link := links.Detect(e.Location, e.Description); link.URL != "" {
		urls[actionJoin] = link.URL
		notif.Actions = append(notif.Actions, notify.Action{Key: actionJoin, Label: "Unirse (" + link.Service + ")"})
	}
	if e.HasDocument() && a.cfg.Storage.BaseURL != "" {
		urls[actionDocument] = links.DocumentURL(a.cfg.Storage.BaseURL, e.DocumentRef)
		notif.Actions = append(notif.Actions, notify.Action{Key: actionDocument, Label: "Ver documento"})
	}

	id, err := a.notifier.SendID(notif)
	if err != nil {
		slog.Warn("failed to send notification", "error", err)
		return
	}
	if id != 0 && len(urls) > 0 {
		a.mu.Lock()
		a.actions[id] = urls
		a.mu.Unlock()
	}
}

// onAction opens the URL behind a notification button.
func (a *App) onAction(id uint32, key string) {
	a.mu.Lock()
	url := a.actions[id][key]
	a.mu.Unlock()

	slog.Debug("notification action", "id", id, "action", key)
	if url == "" {
		return
	}
	if err := links.Open(url); err != nil {
		slog.Warn("failed to open link", "url", url, "error", err)
	}
}

// cleanupLoop prunes notification bookkeeping.
func (a *App) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.notifier.CleanupOldNotifications(24 * time.Hour)
			a.mu.Lock()
			// Notification IDs are not reused within a session; the map only needs to
			// cover notifications still on screen.
			if len(a.actions) > 256 {
				a.actions = make(map[uint32]map[string]string)
			}
			a.mu.Unlock()
		case <-ctx.Done():
			return
		}
	}
}

// cleanup releases resources when the app is shutting down.
func (a *App) cleanup() {
	if a.tray != nil {
		a.tray.Close()
	}
	if a.notifier != nil {
		a.notifier.Close()
	}
}
