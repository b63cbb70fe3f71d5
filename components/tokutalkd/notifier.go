package main

import (
	"fmt"
	"sync"

	"github.com/godbus/dbus/v5"
	"go.uber.org/zap"
)

type DBusMember string

const (
	DBUS_INTERFACE = "com.pwnagotchi.tokutalk"
	DBUS_PATH      = dbus.ObjectPath("/com/pwnagotchi/tokutalk")

	DBUS_EVENT_SWITCHED DBusMember = "switched"
)

func (e DBusMember) String() string {
	return string(e)
}

// SwitchEvent describes one finished tick.
type SwitchEvent struct {
	Language Language
	Font     string
	Mode     OperatingMode
	OK       bool
}

type SwitchReporter interface {
	ReportSwitch(event SwitchEvent)
}

// signalBody is the switched signal payload: language code, font, mode, ok.
func (e SwitchEvent) signalBody() []interface{} {
	return []interface{}{e.Language.Code(), e.Font, e.Mode.String(), e.OK}
}

func signalName(member DBusMember) string {
	return fmt.Sprintf("%s.%s", DBUS_INTERFACE, member)
}

// busConn is the part of *dbus.Conn the notifier uses.
type busConn interface {
	Emit(path dbus.ObjectPath, name string, values ...interface{}) error
	Close() error
}

// DBusNotifier broadcasts switch events as signals on the system bus so other
// processes on the device can follow language changes.
type DBusNotifier struct {
	sync.Mutex

	conn   busConn
	logger *zap.Logger
}

func NewDBusNotifier(logger *zap.Logger) *DBusNotifier {
	return &DBusNotifier{
		logger: logger,
	}
}

func (n *DBusNotifier) Start() error {
	n.Lock()
	defer n.Unlock()

	n.logger.Info("Starting DBusNotifier")
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return fmt.Errorf("failed to connect to system bus: %w", err)
	}
	n.conn = conn
	return nil
}

// ReportSwitch emits the switched signal. Without a connection it does nothing.
func (n *DBusNotifier) ReportSwitch(event SwitchEvent) {
	n.Lock()
	defer n.Unlock()

	if n.conn == nil {
		return
	}

	name := signalName(DBUS_EVENT_SWITCHED)
	n.logger.Debug("Sending signal",
		zap.String("name", name),
		zap.String("lang", event.Language.Code()),
		zap.String("mode", event.Mode.String()),
		zap.Bool("ok", event.OK))
	if err := n.conn.Emit(DBUS_PATH, name, event.signalBody()...); err != nil {
		n.logger.Warn("Failed to send DBus signal", zap.String("name", name), zap.Error(err))
	}
}

func (n *DBusNotifier) Stop() {
	n.Lock()
	defer n.Unlock()

	if n.conn != nil {
		n.conn.Close()
		n.conn = nil
		n.logger.Info("DBusNotifier connection closed")
	}
}
