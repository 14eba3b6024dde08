//go:build windows

package transport

import "syscall"

// controlFunc on Windows is a no-op: net already binds with SO_REUSEADDR
// semantics close enough for discovery, and broadcast sends work without
// SO_BROADCAST on this platform's UDP stack.
func controlFunc(broadcast bool) func(network, address string, c syscall.RawConn) error {
	return func(network, address string, c syscall.RawConn) error { return nil }
}
