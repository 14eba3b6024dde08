// Package config loads the client's JSON configuration file and builds the
// immutable map of named conversation configurations the conversation
// manager hands out from.
package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/pkg/errors"

	"github.com/anodyne74/doip-client/internal/transport"
)

// ErrInvalidConfig is the sentinel wrapped by every Load failure, so callers
// can test with errors.Is regardless of the underlying cause (missing file,
// malformed JSON, missing required key).
var ErrInvalidConfig = errors.New("config: invalid configuration")

// fileNetwork mirrors the "Network" object of one ConversationProperty entry.
type fileNetwork struct {
	TcpIPAddress string `json:"TcpIpAddress"`
	TLSHandling  *bool  `json:"TlsHandling,omitempty"`
}

type fileConversationProperty struct {
	ConversationName   string      `json:"ConversationName"`
	P2ClientMax        uint16      `json:"P2ClientMax"`
	P2StarClientMax    uint16      `json:"P2StarClientMax"`
	RxBufferSize       uint16      `json:"RxBufferSize"`
	SourceAddress      uint16      `json:"SourceAddress"`
	MaxResponsePending uint16      `json:"MaxResponsePending,omitempty"`
	Network            fileNetwork `json:"Network"`
}

type fileConversation struct {
	NumberOfConversation int                        `json:"NumberOfConversation"`
	ConversationProperty []fileConversationProperty `json:"ConversationProperty"`
}

type fileConfig struct {
	UdpIPAddress        string           `json:"UdpIpAddress"`
	UdpBroadcastAddress string           `json:"UdpBroadcastAddress"`
	Conversation        fileConversation `json:"Conversation"`
}

// ConversationConfig is the validated, immutable per-conversation
// configuration the TCP channel and conversation objects are built from.
// P2* is guaranteed ≥ P2 by Load.
type ConversationConfig struct {
	Name               string
	SourceAddress      uint16
	RxBufferSize       uint16
	P2ClientMax        time.Duration
	P2StarClientMax    time.Duration
	MaxResponsePending uint16
	RemoteTCPAddress   string
	RemoteTCPPort      uint16
	TLSHandling        bool
}

// ClientConfig is the fully parsed, validated configuration for one client
// instance: the UDP discovery endpoints plus every named conversation.
type ClientConfig struct {
	UdpIPAddress        string
	UdpBroadcastAddress string
	Conversations       map[string]ConversationConfig
}

const defaultTCPPort = 13400

// Load reads and validates the JSON configuration file at path per the
// schema in the external interface contract: unrecognized keys are ignored
// (encoding/json already does this), missing required keys fail Load. A
// conversation with TlsHandling set to true is accepted but only ever logs
// a warning through logger — TLS transport is not implemented, and Load
// never fails on account of it. logger may be nil.
func Load(path string, logger transport.Logger) (*ClientConfig, error) {
	if logger == nil {
		logger = transport.Discard
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidConfig, "read %s: %v", path, err)
	}

	var raw fileConfig
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrapf(ErrInvalidConfig, "parse %s: %v", path, err)
	}

	if raw.UdpIPAddress == "" {
		return nil, errors.Wrap(ErrInvalidConfig, "UdpIpAddress is required")
	}
	if raw.UdpBroadcastAddress == "" {
		return nil, errors.Wrap(ErrInvalidConfig, "UdpBroadcastAddress is required")
	}
	if len(raw.Conversation.ConversationProperty) == 0 {
		return nil, errors.Wrap(ErrInvalidConfig, "Conversation.ConversationProperty must not be empty")
	}

	conversations := make(map[string]ConversationConfig, len(raw.Conversation.ConversationProperty))
	for _, p := range raw.Conversation.ConversationProperty {
		if p.ConversationName == "" {
			return nil, errors.Wrap(ErrInvalidConfig, "ConversationName is required")
		}
		if _, exists := conversations[p.ConversationName]; exists {
			return nil, errors.Wrapf(ErrInvalidConfig, "duplicate ConversationName %q", p.ConversationName)
		}
		if p.Network.TcpIPAddress == "" {
			return nil, errors.Wrapf(ErrInvalidConfig, "conversation %q: Network.TcpIpAddress is required", p.ConversationName)
		}
		if p.P2StarClientMax < p.P2ClientMax {
			return nil, errors.Wrapf(ErrInvalidConfig, "conversation %q: P2StarClientMax must be >= P2ClientMax", p.ConversationName)
		}

		tls := false
		if p.Network.TLSHandling != nil {
			tls = *p.Network.TLSHandling
			if tls {
				logger.Printf("config: conversation %q requests TlsHandling but TLS transport is not implemented; ignoring", p.ConversationName)
			}
		}

		conversations[p.ConversationName] = ConversationConfig{
			Name:               p.ConversationName,
			SourceAddress:      p.SourceAddress,
			RxBufferSize:       p.RxBufferSize,
			P2ClientMax:        time.Duration(p.P2ClientMax) * time.Millisecond,
			P2StarClientMax:    time.Duration(p.P2StarClientMax) * time.Millisecond,
			MaxResponsePending: p.MaxResponsePending,
			RemoteTCPAddress:   p.Network.TcpIPAddress,
			RemoteTCPPort:      defaultTCPPort,
			TLSHandling:        tls,
		}
	}

	return &ClientConfig{
		UdpIPAddress:        raw.UdpIPAddress,
		UdpBroadcastAddress: raw.UdpBroadcastAddress,
		Conversations:       conversations,
	}, nil
}
