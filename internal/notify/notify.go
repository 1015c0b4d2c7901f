// Package notify delivers user-facing notifications (toasts) to the desktop and other sinks.
package notify

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
)

const (
	notifyInterface = "org.freedesktop.Notifications"
	notifyPath      = "/org/freedesktop/Notifications"
)

// Notifier sends desktop notifications via D-Bus.
type Notifier struct {
	conn    *dbus.Conn
	obj     dbus.BusObject
	appName string

	recent *recent
}

// New creates a new notifier.
func New(appName string) (*Notifier, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("connect to session bus: %w", err)
	}

	return &Notifier{
		conn:    conn,
		obj:     conn.Object(notifyInterface, notifyPath),
		appName: appName,
		recent:  newRecent(time.Minute),
	}, nil
}

// Close closes the D-Bus connection.
func (n *Notifier) Close() error {
	return n.conn.Close()
}

// Send implements Sender.
func (n *Notifier) Send(notif Notification) error {
	_, err := n.SendID(notif)
	return err
}

// SendID sends a notification and returns the notification ID.
// It returns 0 without sending when the same EventUID was notified within the last minute.
func (n *Notifier) SendID(notif Notification) (uint32, error) {
	if !n.recent.allow(notif.EventUID) {
		return 0, nil
	}

	// Build actions array: [key1, label1, key2, label2, ...]
	var actions []string
	for _, a := range notif.Actions {
		actions = append(actions, a.Key, a.Label)
	}

	hints := map[string]dbus.Variant{
		"urgency": dbus.MakeVariant(byte(notif.urgency())),
	}

	timeout := int32(-1) // Use default
	if notif.Timeout > 0 {
		timeout = int32(notif.Timeout.Milliseconds())
	} else if notif.Timeout < 0 {
		timeout = 0 // Persistent
	}

	call := n.obj.Call(
		notifyInterface+".Notify",
		0,
		n.appName,     // app_name
		uint32(0),     // replaces_id (0 = new notification)
		notif.icon(),  // app_icon
		notif.Summary, // summary
		notif.Body,    // body
		actions,       // actions
		hints,         // hints
		timeout,       // expire_timeout
	)

	if call.Err != nil {
		return 0, fmt.Errorf("send notification: %w", call.Err)
	}

	var id uint32
	if err := call.Store(&id); err != nil {
		return 0, fmt.Errorf("get notification id: %w", err)
	}

	slog.Debug("sent notification", "id", id, "kind", notif.Kind, "summary", notif.Summary)
	return id, nil
}

// WatchActions listens for notification action invocations.
// The callback receives the notification ID and action key.
func (n *Notifier) WatchActions(callback func(id uint32, actionKey string)) error {
	if err := n.conn.AddMatchSignal(
		dbus.WithMatchInterface(notifyInterface),
		dbus.WithMatchMember("ActionInvoked"),
	); err != nil {
		return fmt.Errorf("add match signal: %w", err)
	}

	ch := make(chan *dbus.Signal, 10)
	n.conn.Signal(ch)

	go func() {
		for sig := range ch {
			if sig.Name != notifyInterface+".ActionInvoked" || len(sig.Body) < 2 {
				continue
			}

			id, ok1 := sig.Body[0].(uint32)
			key, ok2 := sig.Body[1].(string)
			if ok1 && ok2 {
				callback(id, key)
			}
		}
	}()

	return nil
}

// CleanupOldNotifications removes tracking entries older than maxAge.
func (n *Notifier) CleanupOldNotifications(maxAge time.Duration) {
	n.recent.cleanup(maxAge)
}

// recent suppresses repeated notifications for the same event.
type recent struct {
	window time.Duration
	now    func() time.Time

	mu   sync.Mutex
	seen map[string]time.Time
}

func newRecent(window time.Duration) *recent {
	return &recent{window: window, now: time.Now, seen: make(map[string]time.Time)}
}

// allow reports whether a notification keyed by uid may be sent now and records it.
// An empty uid is always allowed.
func (r *recent) allow(uid string) bool {
	if uid == "" {
		return true
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if last, ok := r.seen[uid]; ok && now.Sub(last) < r.window {
		return false
	}
	r.seen[uid] = now
	return true
}

func (r *recent) cleanup(maxAge time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-maxAge)
	for uid, t := range r.seen {
		if t.Before(cutoff) {
			delete(r.seen, uid)
		}
	}
}
