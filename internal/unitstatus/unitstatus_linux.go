//go:build linux

package unitstatus

import (
	"context"
	"fmt"

	"github.com/coreos/go-systemd/v22/dbus"
)

// Lookup queries systemd over D-Bus. It tries the user manager first, since
// the daemon usually runs as a user service, then the system manager.
func Lookup(ctx context.Context, unit string) (Status, error) {
	unit = normalizeUnit(unit)
	if unit == "" {
		return Status{}, fmt.Errorf("unitstatus: empty unit name")
	}

	var lastErr error
	for _, connect := range []func(context.Context) (*dbus.Conn, error){
		dbus.NewUserConnectionContext,
		dbus.NewSystemConnectionContext,
	} {
		conn, err := connect(ctx)
		if err != nil {
			lastErr = err
			continue
		}
		st, err := lookupOn(ctx, conn, unit)
		conn.Close()
		if err != nil {
			lastErr = err
			continue
		}
		if st.LoadState != "not-found" {
			return st, nil
		}
		lastErr = nil
	}
	if lastErr != nil {
		return Status{}, fmt.Errorf("unitstatus %s: %w", unit, lastErr)
	}
	return Status{Unit: unit, Active: "unknown", SubState: "not-found", LoadState: "not-found"}, nil
}

func lookupOn(ctx context.Context, conn *dbus.Conn, unit string) (Status, error) {
	props, err := conn.GetUnitPropertiesContext(ctx, unit)
	if err != nil {
		if isNoSuchUnitErr(err) {
			return Status{Unit: unit, Active: "unknown", SubState: "not-found", LoadState: "not-found"}, nil
		}
		return Status{}, err
	}
	return Status{
		Unit:        unit,
		Active:      stringProp(props, "ActiveState"),
		SubState:    stringProp(props, "SubState"),
		LoadState:   stringProp(props, "LoadState"),
		Description: stringProp(props, "Description"),
		ActiveSince: parseTimestamp(props, "ActiveEnterTimestamp"),
	}, nil
}
