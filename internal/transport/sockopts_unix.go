//go:build !windows

package transport

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// controlFunc returns the net.ListenConfig.Control callback that sets
// SO_REUSEADDR on every UDP discovery socket (so several conversations can
// share the discovery port) and SO_BROADCAST when the socket will send
// identification requests to the limited-broadcast address.
func controlFunc(broadcast bool) func(network, address string, c syscall.RawConn) error {
	return func(network, address string, c syscall.RawConn) error {
		var sockErr error
		err := c.Control(func(fd uintptr) {
			if sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); sockErr != nil {
				return
			}
			if broadcast {
				sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_BROADCAST, 1)
			}
		})
		if err != nil {
			return err
		}
		return sockErr
	}
}
