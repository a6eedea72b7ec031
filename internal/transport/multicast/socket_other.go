//go:build !(linux || darwin || freebsd || netbsd || openbsd || dragonfly)

package multicast

import (
	"syscall"

	"github.com/rs/zerolog"
)

func reuseControl(logger *zerolog.Logger) func(network, address string, c syscall.RawConn) error {
	return func(_, _ string, _ syscall.RawConn) error {
		logger.Warn().Msg("address reuse not supported on this platform")
		return nil
	}
}
