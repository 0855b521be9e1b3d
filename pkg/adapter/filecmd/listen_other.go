//go:build !linux

package filecmd

import (
	"net"

	"github.com/marmos91/filecmd/internal/logger"
)

func listenBacklog(address string, backlog int) (net.Listener, error) {
	logger.Debug("Listen backlog %d ignored on this platform", backlog)
	return net.Listen("tcp", address)
}
