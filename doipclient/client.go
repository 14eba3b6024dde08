package doipclient

import (
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/anodyne74/doip-client/internal/channel"
	"github.com/anodyne74/doip-client/internal/config"
	"github.com/anodyne74/doip-client/internal/handler"
	"github.com/anodyne74/doip-client/internal/metrics"
	"github.com/anodyne74/doip-client/internal/monitor"
	"github.com/anodyne74/doip-client/internal/registry"
	"github.com/anodyne74/doip-client/internal/store"
	"github.com/anodyne74/doip-client/internal/transport"
	"github.com/anodyne74/doip-client/trace"
)

// ErrUnknownConversation is returned by GetDiagnosticClientConversation when
// no conversation by that name exists in the loaded configuration.
var ErrUnknownConversation = errors.New("doipclient: unknown conversation")

// discoveryWindow bounds how long SendVehicleIdentificationRequest waits for
// unicast announcements to arrive before returning whatever it collected.
const discoveryWindow = 1000 * time.Millisecond

// Client is the root handle a consumer builds once per process: it owns the
// transport handler, the UDP discovery channel, and every named
// Conversation the configuration file describes.
type Client struct {
	cfg    *config.ClientConfig
	th     *handler.TransportHandler
	logger transport.Logger

	registry *registry.Manager
	metrics  *metrics.Collectors
	recorder *trace.Recorder
	store    *store.CombinedStore
	monitor  *monitor.Server

	mu            sync.Mutex
	initialized   bool
	conversations map[string]*Conversation
	udp           *handler.UdpConnection
}

// Option configures optional Client behavior not carried by the JSON config
// file itself.
type Option func(*Client)

// WithLogger overrides the default discard logger.
func WithLogger(logger transport.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithRegistry attaches an ECU registry so every conversation reports
// round-trip outcomes into it.
func WithRegistry(r *registry.Manager) Option {
	return func(c *Client) { c.registry = r }
}

// WithMetrics attaches a Prometheus collector set.
func WithMetrics(m *metrics.Collectors) Option {
	return func(c *Client) { c.metrics = m }
}

// WithRecorder attaches a trace recorder; every conversation feeds its wire
// frames into it whenever the recorder is running.
func WithRecorder(r *trace.Recorder) Option {
	return func(c *Client) { c.recorder = r }
}

// WithStore attaches the combined SQLite/InfluxDB store: discovery results
// are cached as they arrive and every completed diagnostic request is
// persisted as a RequestTrace row.
func WithStore(s *store.CombinedStore) Option {
	return func(c *Client) { c.store = s }
}

// WithMonitor attaches an HTTP monitor server; every conversation broadcasts
// its diagnostic outcomes to it as they complete.
func WithMonitor(m *monitor.Server) Option {
	return func(c *Client) { c.monitor = m }
}

// NewClientFromConfig loads the JSON configuration at path and builds a
// Client with one not-yet-started Conversation per entry. The UDP discovery
// channel used by SendVehicleIdentificationRequest is opened by Initialize.
func NewClientFromConfig(path string, opts ...Option) (*Client, error) {
	c := &Client{logger: transport.Discard}
	for _, opt := range opts {
		opt(c)
	}

	cfg, err := config.Load(path, c.logger)
	if err != nil {
		return nil, err
	}
	c.cfg = cfg
	c.conversations = make(map[string]*Conversation, len(cfg.Conversations))
	c.th = handler.New(c.logger)

	for name, convCfg := range cfg.Conversations {
		c.conversations[name] = newConversation(name, convCfg, c.th, c.logger, c.registry, c.metrics, c.recorder, c.store, c.monitor)
	}
	return c, nil
}

// Initialize starts every configured conversation and opens the shared UDP
// discovery channel. It is idempotent.
func (c *Client) Initialize() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.initialized {
		return nil
	}
	udp, err := c.th.FindOrCreateUdpConnection(c.cfg.UdpIPAddress, 13400, c.cfg.UdpBroadcastAddress, discoveryWindow)
	if err != nil {
		return errors.Wrap(err, "doipclient: open discovery channel")
	}
	c.udp = udp
	for _, conv := range c.conversations {
		conv.Startup()
	}
	c.initialized = true
	return nil
}

// DeInitialize shuts every conversation's connection down. It is idempotent.
func (c *Client) DeInitialize() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.initialized {
		return
	}
	for _, conv := range c.conversations {
		conv.Shutdown()
	}
	c.initialized = false
}

// GetDiagnosticClientConversation returns the named conversation exactly as
// the configuration file declared it, an immutable lookup for the lifetime
// of the client.
func (c *Client) GetDiagnosticClientConversation(name string) (*Conversation, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	conv, ok := c.conversations[name]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownConversation, "%q", name)
	}
	return conv, nil
}

// SendVehicleIdentificationRequest broadcasts a vehicle identification
// request with the given preselection and returns every distinct announcement
// received within the discovery window. An empty result is Ok, not an error.
func (c *Client) SendVehicleIdentificationRequest(preselection Preselection, vin, eidHex string) ([]VehicleAnnouncement, error) {
	c.mu.Lock()
	udp := c.udp
	c.mu.Unlock()
	if udp == nil {
		return nil, errors.New("doipclient: client not initialized")
	}

	announcements, err := udp.Channel.SendVehicleIdentificationRequest(channel.Preselection(preselection), vin, eidHex)
	if err != nil {
		return nil, err
	}
	if c.store != nil {
		now := time.Now()
		for _, a := range announcements {
			if err := c.store.UpsertDiscoveredVehicle(store.DiscoveredVehicle{
				SourceIP:       a.SourceIP,
				VIN:            a.VIN,
				LogicalAddress: a.LogicalAddress,
				FirstSeen:      now,
				LastSeen:       now,
			}); err != nil {
				c.logger.Printf("doipclient: cache discovered vehicle %s: %v", a.VIN, err)
			}
		}
	}
	return toPublicAnnouncements(announcements), nil
}

// GetDiagnosticServerList is SendVehicleIdentificationRequest with no
// preselection filter, matching the external-interface convenience call.
func (c *Client) GetDiagnosticServerList() ([]VehicleAnnouncement, error) {
	return c.SendVehicleIdentificationRequest(PreselectionNone, "", "")
}

func toPublicAnnouncements(in []channel.Announcement) []VehicleAnnouncement {
	out := make([]VehicleAnnouncement, 0, len(in))
	for _, a := range in {
		out = append(out, VehicleAnnouncement{
			SourceIP:       a.SourceIP,
			VIN:            a.VIN,
			LogicalAddress: a.LogicalAddress,
			EID:            a.EID,
			GID:            a.GID,
			FurtherAction:  a.FurtherAction,
		})
	}
	return out
}
