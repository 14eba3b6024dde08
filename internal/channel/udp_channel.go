package channel

import (
	"net"
	"sync"
	"time"

	"github.com/anodyne74/doip-client/internal/synctimer"
	"github.com/anodyne74/doip-client/internal/transport"
	"github.com/anodyne74/doip-client/internal/wire"
)

// Preselection picks which vehicle-identification request body is sent.
type Preselection uint8

const (
	PreselectionNone Preselection = iota
	PreselectionVIN
	PreselectionEID
)

// defaultDiscoveryWindow is used when the caller does not override it.
const defaultDiscoveryWindow = 1000 * time.Millisecond

// Announcement pairs a decoded vehicle announcement with the address it
// arrived from, since the wire body itself carries no source IP field.
type Announcement struct {
	SourceIP string
	wire.VehicleAnnouncement
}

// UdpChannel is the single client-wide discovery channel: it sends
// identification requests to the broadcast address and aggregates unicast
// announcements received within a bounded window.
type UdpChannel struct {
	broadcastAddr *net.UDPAddr
	window        time.Duration
	sock          *transport.UDPSocket
	logger        transport.Logger

	timer *synctimer.Timer

	mu      sync.Mutex
	collect bool
	seen    map[string]bool // dedup key: "ip|logicalAddress"
	results []Announcement
}

// NewUdpChannel binds a UDP socket on localIP:port (broadcast-capable) and
// returns a channel ready to send identification requests.
func NewUdpChannel(localIP string, port uint16, broadcastIP string, window time.Duration, logger transport.Logger) (*UdpChannel, error) {
	if window == 0 {
		window = defaultDiscoveryWindow
	}
	if logger == nil {
		logger = transport.Discard
	}
	c := &UdpChannel{
		window: window,
		logger: logger,
		timer:  synctimer.New(),
		seen:   make(map[string]bool),
	}
	sock, err := transport.ListenUDP(localIP, port, true, c, logger)
	if err != nil {
		return nil, err
	}
	c.sock = sock
	c.broadcastAddr = &net.UDPAddr{IP: net.ParseIP(broadcastIP), Port: int(port)}
	return c, nil
}

// SendVehicleIdentificationRequest broadcasts a request per preselection,
// blocks for the discovery window aggregating announcements, and always
// returns Ok (discovery is best-effort; an empty list is not an error).
func (c *UdpChannel) SendVehicleIdentificationRequest(preselection Preselection, vin, eidHex string) ([]Announcement, error) {
	var (
		payloadType wire.PayloadType
		body        []byte
		err         error
	)
	switch preselection {
	case PreselectionVIN:
		payloadType = wire.PayloadTypeVehicleIDReqVIN
		body, err = wire.EncodeVehicleIDRequestVIN(vin)
	case PreselectionEID:
		payloadType = wire.PayloadTypeVehicleIDReqEID
		body, err = wire.EncodeVehicleIDRequestEID(eidHex)
	default:
		payloadType = wire.PayloadTypeVehicleIDReq
		body = wire.EncodeVehicleIDRequestNone()
	}
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.collect = true
	c.seen = make(map[string]bool)
	c.results = nil
	c.mu.Unlock()

	frame := wire.EncodeFrame(wire.ProtocolVersion3, payloadType, body)
	c.logger.Printf("udp channel: -> VehicleIdentificationRequest type=0x%04x", uint16(payloadType))
	if err := c.sock.SendTo(frame, c.broadcastAddr); err != nil {
		c.mu.Lock()
		c.collect = false
		c.mu.Unlock()
		return nil, err
	}

	// Every announcement arriving during the window calls Stop() to wake us,
	// but we keep re-arming until the full window has genuinely elapsed:
	// aggregation never ends early just because one reply showed up.
	deadline := time.Now().Add(c.window)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			break
		}
		if c.timer.Start(remaining) == synctimer.Timeout {
			break
		}
	}

	c.mu.Lock()
	c.collect = false
	results := c.results
	c.mu.Unlock()
	c.logger.Printf("udp channel: discovery window closed, %d announcement(s)", len(results))
	return results, nil
}

// HandleDatagram implements transport.UDPHandler. Announcements outside an
// active discovery window are discarded; decode errors are logged and
// otherwise ignored (UDP header errors never change state).
func (c *UdpChannel) HandleDatagram(from *net.UDPAddr, data []byte) {
	if len(data) < wire.HeaderLength {
		return
	}
	h, err := wire.DecodeHeader(data[:wire.HeaderLength])
	if err != nil {
		c.logger.Printf("udp channel: header decode error: %v", err)
		return
	}
	if h.PayloadType != wire.PayloadTypeVehicleAnnouncement {
		return
	}
	body := data[wire.HeaderLength:]
	if uint32(len(body)) < h.PayloadLength {
		return
	}
	ann, err := wire.DecodeVehicleAnnouncement(body[:h.PayloadLength])
	if err != nil {
		c.logger.Printf("udp channel: announcement decode error: %v", err)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.collect {
		return
	}
	key := dedupKey(from.IP.String(), ann.LogicalAddress)
	if c.seen[key] {
		return
	}
	c.seen[key] = true
	c.results = append(c.results, Announcement{SourceIP: from.IP.String(), VehicleAnnouncement: ann})
	c.timer.Stop()
}

// HandleReadError implements transport.UDPHandler. A UDP socket error does
// not change discovery state; it wakes the waiting caller, which re-arms the
// timer until the discovery window has elapsed.
func (c *UdpChannel) HandleReadError(err error) {
	c.logger.Printf("udp channel: read error: %v", err)
	c.timer.Stop()
}

func dedupKey(ip string, logicalAddress uint16) string {
	return ip + "|" + addrHex(logicalAddress)
}

func addrHex(v uint16) string {
	const hex = "0123456789abcdef"
	return string([]byte{hex[(v>>12)&0xF], hex[(v>>8)&0xF], hex[(v>>4)&0xF], hex[v&0xF]})
}

// Close releases the discovery socket and retires the timer.
func (c *UdpChannel) Close() error {
	c.timer.Shutdown()
	return c.sock.Close()
}
