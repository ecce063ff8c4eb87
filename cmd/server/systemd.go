package main

import (
	"errors"
	"fmt"
	"net"
)

// sd_notify states sent around the ingest listener lifecycle.
const (
	sdReady    = "READY=1"
	sdStopping = "STOPPING=1"
)

var errNoNotifySocket = errors.New("NOTIFY_SOCKET not set")

// sdNotify sends state to the systemd notify socket at addr. Units that are
// not Type=notify have no socket and get errNoNotifySocket.
func sdNotify(addr, state string) error {
	if addr == "" {
		return errNoNotifySocket
	}
	conn, err := net.Dial("unixgram", addr) //nolint:gosec,noctx // addr comes from systemd; unixgram has no context dialer
	if err != nil {
		return fmt.Errorf("sd_notify %s: %w", state, err)
	}
	defer func() { _ = conn.Close() }()
	if _, err := conn.Write([]byte(state)); err != nil {
		return fmt.Errorf("sd_notify %s: %w", state, err)
	}
	return nil
}
