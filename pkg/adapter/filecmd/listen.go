package filecmd

import "net"

// listen opens the TCP listener for address.
//
// A positive backlog is passed to listen(2) where the platform allows it;
// otherwise the runtime default (somaxconn) applies.
func listen(address string, backlog int) (net.Listener, error) {
	if backlog <= 0 {
		return net.Listen("tcp", address)
	}
	return listenBacklog(address, backlog)
}
