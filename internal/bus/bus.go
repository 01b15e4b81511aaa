// Package bus wraps the engine's D-Bus signal emission (§6): PropertiesChanged
// for a unit, and UnitNew/UnitRemoved for the manager's unit list. The
// engine is the bus service here, not a client of one, so signals are sent
// over a raw godbus connection to the same bus, opened alongside the
// coreos/go-systemd/v22/dbus client connection.
package bus

import (
	"context"
	"fmt"
	"strings"

	godbus "github.com/godbus/dbus/v5"
	"github.com/coreos/go-systemd/v22/dbus"
	"github.com/shinygold/unitengine/internal/log"
)

const (
	managerInterface = "org.freedesktop.systemd1.Manager"
	unitInterface    = "org.freedesktop.systemd1.Unit"
	managerObjectPath = godbus.ObjectPath("/org/freedesktop/systemd1")
)

// Connection is the bus-layer surface the manager depends on. Splitting it
// out from the concrete D-Bus connection lets tests substitute a fake.
type Connection interface {
	PropertiesChanged(unitID string, changed map[string]any) error
	UnitNew(unitID string) error
	UnitRemoved(unitID string) error
	Close() error
}

// ConnectionFactory builds a Connection, mirroring the mode switch (user vs
// system bus) the manager's configuration carries.
type ConnectionFactory interface {
	NewConnection(ctx context.Context, userMode bool) (Connection, error)
}

// DBusConnection implements Connection over a real systemd D-Bus connection.
type DBusConnection struct {
	conn *dbus.Conn
	raw  *godbus.Conn
}

// NewDBusConnection wraps an already-established systemd connection and a
// raw godbus connection to the same bus, the latter needed to emit signals the
// coreos/go-systemd/v22/dbus client API does not expose directly.
func NewDBusConnection(conn *dbus.Conn, raw *godbus.Conn) *DBusConnection {
	return &DBusConnection{conn: conn, raw: raw}
}

func unitObjectPath(unitID string) godbus.ObjectPath {
	escaped := strings.NewReplacer("-", "_2d", ".", "_2e", "@", "_40").Replace(unitID)
	return godbus.ObjectPath("/org/freedesktop/systemd1/unit/" + escaped)
}

// PropertiesChanged emits org.freedesktop.DBus.Properties.PropertiesChanged
// for unitID, the side effect §4.4 step 6 enqueues onto the D-Bus queue.
func (d *DBusConnection) PropertiesChanged(unitID string, changed map[string]any) error {
	if d.raw == nil {
		return nil
	}
	invalidated := make([]string, 0, len(changed))
	for k := range changed {
		invalidated = append(invalidated, k)
	}
	err := d.raw.Emit(unitObjectPath(unitID), "org.freedesktop.DBus.Properties.PropertiesChanged",
		unitInterface, changed, invalidated)
	if err != nil {
		return fmt.Errorf("bus: emitting PropertiesChanged for %s: %w", unitID, err)
	}
	return nil
}

// UnitNew emits UnitNew when a unit is first loaded into the manager.
func (d *DBusConnection) UnitNew(unitID string) error {
	if d.raw == nil {
		return nil
	}
	if err := d.raw.Emit(managerObjectPath, managerInterface+".UnitNew", unitID, unitObjectPath(unitID)); err != nil {
		return fmt.Errorf("bus: emitting UnitNew for %s: %w", unitID, err)
	}
	return nil
}

// UnitRemoved emits UnitRemoved when a unit is destroyed.
func (d *DBusConnection) UnitRemoved(unitID string) error {
	if d.raw == nil {
		return nil
	}
	if err := d.raw.Emit(managerObjectPath, managerInterface+".UnitRemoved", unitID, unitObjectPath(unitID)); err != nil {
		return fmt.Errorf("bus: emitting UnitRemoved for %s: %w", unitID, err)
	}
	return nil
}

// Close closes the underlying systemd connection.
func (d *DBusConnection) Close() error {
	d.conn.Close()
	return nil
}

// DefaultConnectionFactory implements ConnectionFactory against the real bus.
type DefaultConnectionFactory struct {
	logger log.Logger
}

// NewConnectionFactory creates a factory with an injected logger.
func NewConnectionFactory(logger log.Logger) *DefaultConnectionFactory {
	return &DefaultConnectionFactory{logger: logger}
}

// NewConnection establishes a user or system bus connection, matching the
// manager's configured mode.
func (f *DefaultConnectionFactory) NewConnection(ctx context.Context, userMode bool) (Connection, error) {
	var conn *dbus.Conn
	var err error

	if userMode {
		f.logger.Debug("establishing user bus connection")
		conn, err = dbus.NewUserConnectionContext(ctx)
	} else {
		f.logger.Debug("establishing system bus connection")
		conn, err = dbus.NewSystemConnectionContext(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("bus: connecting (user=%v): %w", userMode, err)
	}

	var raw *godbus.Conn
	if userMode {
		raw, err = godbus.ConnectSessionBus()
	} else {
		raw, err = godbus.ConnectSystemBus()
	}
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("bus: opening raw connection for signal emission: %w", err)
	}

	return NewDBusConnection(conn, raw), nil
}
