//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

package multicast

import (
	"fmt"
	"syscall"

	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"
)

// reuseControl lets several nodes on one host bind the group port.
func reuseControl(logger *zerolog.Logger) func(network, address string, c syscall.RawConn) error {
	return func(_, _ string, c syscall.RawConn) error {
		var sockErr error
		err := c.Control(func(fd uintptr) {
			if err := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
				sockErr = fmt.Errorf("set SO_REUSEADDR: %w", err)
				return
			}
			if err := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1); err != nil {
				logger.Warn().Err(err).Msg("SO_REUSEPORT unavailable, only one node per host can bind the group port")
			}
		})
		if err != nil {
			return err
		}
		return sockErr
	}
}
