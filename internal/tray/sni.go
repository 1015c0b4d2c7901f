// Package tray shows the agenda status as a StatusNotifierItem on the session bus.
package tray

import (
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"
	"github.com/godbus/dbus/v5/prop"

	"github.com/cpuguy83/agenda/internal/calendar"
	"github.com/cpuguy83/agenda/internal/notify"
)

const (
	sniInterface     = "org.kde.StatusNotifierItem"
	sniPath          = "/StatusNotifierItem"
	watcherInterface = "org.kde.StatusNotifierWatcher"
	watcherPath      = "/StatusNotifierWatcher"
	watcherBusName   = "org.kde.StatusNotifierWatcher"
	nameOwnerChanged = "org.freedesktop.DBus.NameOwnerChanged"
)

// Tray is the agenda status indicator.
type Tray struct {
	conn  *dbus.Conn
	props *prop.Properties
	title string

	mu         sync.Mutex
	status     Status
	onActivate func()

	stopCh chan struct{}
}

var _ notify.Sender = (*Tray)(nil)

// New connects to the session bus. Call Start to show the indicator.
func New(title string) (*Tray, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("connect to session bus: %w", err)
	}
	return &Tray{
		conn:   conn,
		title:  title,
		stopCh: make(chan struct{}),
	}, nil
}

// Start claims a bus name, exports the item and registers it with the watcher.
func (t *Tray) Start() error {
	name := fmt.Sprintf("org.kde.StatusNotifierItem-%d-1", os.Getpid())
	reply, err := t.conn.RequestName(name, dbus.NameFlagDoNotQueue)
	if err != nil {
		return fmt.Errorf("request bus name: %w", err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		return fmt.Errorf("bus name %s already taken", name)
	}

	if err := t.conn.Export(t, sniPath, sniInterface); err != nil {
		return fmt.Errorf("export item: %w", err)
	}

	t.mu.Lock()
	st := t.status
	t.mu.Unlock()

	ro := func(v any) *prop.Prop { return &prop.Prop{Value: v, Emit: prop.EmitFalse} }
	live := func(v any) *prop.Prop { return &prop.Prop{Value: v, Emit: prop.EmitTrue} }
	props, err := prop.Export(t.conn, sniPath, prop.Map{
		sniInterface: {
			"Category":   ro("ApplicationStatus"),
			"Id":         ro("agenda"),
			"Title":      ro(t.title),
			"Status":     live(sniStatus(st.State())),
			"IconName":   ro(""),
			"IconPixmap": live(pixmap(st.State())),
			"Menu":       ro(dbus.ObjectPath("/NO_DBUSMENU")),
			"ItemIsMenu": ro(false),
			"ToolTip":    live(t.toolTip(st)),
		},
	})
	if err != nil {
		return fmt.Errorf("export properties: %w", err)
	}
	t.props = props

	node := &introspect.Node{
		Name: sniPath,
		Interfaces: []introspect.Interface{
			introspect.IntrospectData,
			prop.IntrospectData,
			{Name: sniInterface, Methods: sniMethods, Signals: sniSignals},
		},
	}
	if err := t.conn.Export(introspect.NewIntrospectable(node), sniPath, "org.freedesktop.DBus.Introspectable"); err != nil {
		return fmt.Errorf("export introspection: %w", err)
	}

	t.register()
	go t.watchWatcher()

	slog.Info("status indicator registered", "bus_name", name)
	return nil
}

// register announces the item. Some desktops run no watcher, which is not fatal.
func (t *Tray) register() {
	call := t.conn.Object(watcherBusName, watcherPath).Call(watcherInterface+".RegisterStatusNotifierItem", 0, t.conn.Names()[0])
	if call.Err != nil {
		slog.Warn("failed to register with StatusNotifierWatcher", "error", call.Err)
		return
	}
	slog.Debug("registered with StatusNotifierWatcher")
}

// watchWatcher re-registers whenever the watcher service gets a new owner.
func (t *Tray) watchWatcher() {
	rule := fmt.Sprintf("type='signal',interface='org.freedesktop.DBus',member='NameOwnerChanged',arg0='%s'", watcherBusName)
	if err := t.conn.BusObject().Call("org.freedesktop.DBus.AddMatch", 0, rule).Err; err != nil {
		slog.Warn("failed to watch StatusNotifierWatcher", "error", err)
		return
	}

	// One slot is enough: a burst of restarts needs a single re-registration.
	sigCh := make(chan *dbus.Signal, 1)
	t.conn.Signal(sigCh)
	defer t.conn.RemoveSignal(sigCh)

	for {
		select {
		case <-t.stopCh:
			return
		case sig, ok := <-sigCh:
			if !ok {
				return
			}
			if sig.Name != nameOwnerChanged || len(sig.Body) < 3 {
				continue
			}
			if name, _ := sig.Body[0].(string); name != watcherBusName {
				continue
			}
			if owner, _ := sig.Body[2].(string); owner != "" {
				slog.Info("status notifier watcher restarted, re-registering")
				t.register()
			}
		}
	}
}

// Close removes the indicator.
func (t *Tray) Close() error {
	close(t.stopCh)
	return t.conn.Close()
}

// OnActivate sets what a click on the indicator does.
func (t *Tray) OnActivate(fn func()) {
	t.mu.Lock()
	t.onActivate = fn
	t.mu.Unlock()
}

// SetCurrent shows the meeting in progress, or none.
func (t *Tray) SetCurrent(e *calendar.Event) {
	t.update(func(s *Status) {
		if e == nil {
			s.Current = nil
			return
		}
		ev := *e
		s.Current = &ev
	})
}

// SetSnapshot reflects a fresh agenda load and clears any earlier failure.
func (t *Tray) SetSnapshot(pending int) {
	t.update(func(s *Status) {
		s.Pending = pending
		s.LastError = ""
	})
}

// Send turns error toasts into the failed badge. Other kinds are ignored.
func (t *Tray) Send(n notify.Notification) error {
	if n.Kind != notify.KindError {
		return nil
	}
	msg := n.Summary
	if n.Body != "" {
		msg = n.Body
	}
	t.update(func(s *Status) { s.LastError = msg })
	return nil
}

func (t *Tray) update(fn func(*Status)) {
	t.mu.Lock()
	prev := t.status.State()
	fn(&t.status)
	st := t.status
	t.mu.Unlock()

	if t.props == nil {
		return
	}
	t.props.SetMust(sniInterface, "ToolTip", t.toolTip(st))
	t.emit("NewToolTip")
	if st.State() != prev {
		t.props.SetMust(sniInterface, "IconPixmap", pixmap(st.State()))
		t.props.SetMust(sniInterface, "Status", sniStatus(st.State()))
		t.emit("NewIcon")
		t.emit("NewStatus", sniStatus(st.State()))
	}
}

func (t *Tray) emit(signal string, args ...any) {
	if err := t.conn.Emit(sniPath, sniInterface+"."+signal, args...); err != nil {
		slog.Debug("failed to emit indicator signal", "signal", signal, "error", err)
	}
}

// iconData is one entry of the (iiay) pixmap array.
type iconData struct {
	Width  int32
	Height int32
	Data   []byte
}

// toolTip is the (sa(iiay)ss) tooltip struct.
type toolTip struct {
	IconName   string
	IconPixmap []iconData
	Title      string
	Body       string
}

func (t *Tray) toolTip(s Status) toolTip {
	return toolTip{Title: t.title, Body: s.Tooltip()}
}

func pixmap(s State) []iconData {
	return []iconData{{Width: iconSize, Height: iconSize, Data: icons[s]}}
}

// sniStatus asks hosts to highlight the item when it needs attention.
func sniStatus(s State) string {
	if s == StateFailed || s == StatePending {
		return "NeedsAttention"
	}
	return "Active"
}

// Activate is the primary click.
func (t *Tray) Activate(x, y int32) *dbus.Error {
	t.mu.Lock()
	fn := t.onActivate
	t.mu.Unlock()

	slog.Debug("indicator activated")
	if fn != nil {
		go fn()
	}
	return nil
}

// SecondaryActivate is a middle click.
func (t *Tray) SecondaryActivate(x, y int32) *dbus.Error { return nil }

// Scroll is unused.
func (t *Tray) Scroll(delta int32, orientation string) *dbus.Error { return nil }

// ContextMenu is unused: the item has no menu.
func (t *Tray) ContextMenu(x, y int32) *dbus.Error { return nil }

var xy = []introspect.Arg{{Name: "x", Type: "i", Direction: "in"}, {Name: "y", Type: "i", Direction: "in"}}

var sniMethods = []introspect.Method{
	{Name: "Activate", Args: xy},
	{Name: "SecondaryActivate", Args: xy},
	{Name: "Scroll", Args: []introspect.Arg{{Name: "delta", Type: "i", Direction: "in"}, {Name: "orientation", Type: "s", Direction: "in"}}},
	{Name: "ContextMenu", Args: xy},
}

var sniSignals = []introspect.Signal{
	{Name: "NewIcon"},
	{Name: "NewToolTip"},
	{Name: "NewStatus", Args: []introspect.Arg{{Name: "status", Type: "s"}}},
}
