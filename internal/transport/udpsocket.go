package transport

import (
	"context"
	"fmt"
	"net"

	"github.com/pkg/errors"
)

// UDPHandler receives datagrams and terminal read errors from a UDPSocket's
// background reader goroutine.
type UDPHandler interface {
	HandleDatagram(from *net.UDPAddr, data []byte)
	HandleReadError(err error)
}

// UDPSocket wraps a UDP endpoint used for vehicle discovery: it always binds
// with SO_REUSEADDR so multiple discovery clients can share a port, and
// optionally enables SO_BROADCAST for sending identification requests to the
// broadcast address.
type UDPSocket struct {
	conn    *net.UDPConn
	handler UDPHandler
	logger  Logger
	done    chan struct{}
}

// ListenUDP binds a local UDP endpoint on port (0 picks an ephemeral port)
// and starts the background reader goroutine. When broadcast is true the
// socket is configured to send to limited-broadcast addresses.
func ListenUDP(localIP string, port uint16, broadcast bool, handler UDPHandler, logger Logger) (*UDPSocket, error) {
	lc := net.ListenConfig{Control: controlFunc(broadcast)}
	addr := net.JoinHostPort(localIP, fmt.Sprintf("%d", port))
	pc, err := lc.ListenPacket(context.Background(), "udp4", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "transport: udp listen on %s", addr)
	}
	conn := pc.(*net.UDPConn)
	s := &UDPSocket{
		conn:    conn,
		handler: handler,
		logger:  orDiscard(logger),
		done:    make(chan struct{}),
	}
	go s.readLoop()
	return s, nil
}

func (s *UDPSocket) readLoop() {
	buf := make([]byte, 65535)
	for {
		n, from, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-s.done:
				return
			default:
			}
			s.handler.HandleReadError(err)
			return
		}
		datagram := make([]byte, n)
		copy(datagram, buf[:n])
		s.logger.Printf("udp rx: %d bytes from %s", n, from)
		s.handler.HandleDatagram(from, datagram)
	}
}

// SendTo writes data to the given address, typically the vehicle discovery
// broadcast or a specific server's unicast address.
func (s *UDPSocket) SendTo(data []byte, addr *net.UDPAddr) error {
	if _, err := s.conn.WriteToUDP(data, addr); err != nil {
		return errors.Wrap(err, "transport: udp write")
	}
	return nil
}

// LocalAddr returns the bound local address.
func (s *UDPSocket) LocalAddr() net.Addr { return s.conn.LocalAddr() }

// Close stops the reader goroutine and releases the socket.
func (s *UDPSocket) Close() error {
	close(s.done)
	return s.conn.Close()
}

