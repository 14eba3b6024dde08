package config

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
)

type capturingLogger struct {
	lines []string
}

func (l *capturingLogger) Printf(format string, args ...interface{}) {
	l.lines = append(l.lines, fmt.Sprintf(format, args...))
}

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "client.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

const validConfig = `{
  "UdpIpAddress": "0.0.0.0",
  "UdpBroadcastAddress": "255.255.255.255",
  "Conversation": {
    "NumberOfConversation": 1,
    "ConversationProperty": [
      {
        "ConversationName": "ECU1",
        "P2ClientMax": 50,
        "P2StarClientMax": 5000,
        "RxBufferSize": 4096,
        "SourceAddress": 3584,
        "Network": {
          "TcpIpAddress": "10.0.0.5",
          "TlsHandling": false
        }
      }
    ]
  }
}`

func TestLoadValidConfig(t *testing.T) {
	path := writeTempConfig(t, validConfig)
	cfg, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	conv, ok := cfg.Conversations["ECU1"]
	if !ok {
		t.Fatalf("missing conversation ECU1 in %+v", cfg.Conversations)
	}
	if conv.SourceAddress != 0x0E00 {
		t.Errorf("SourceAddress = 0x%04x, want 0x0E00", conv.SourceAddress)
	}
	if conv.RemoteTCPAddress != "10.0.0.5" || conv.RemoteTCPPort != defaultTCPPort {
		t.Errorf("remote = %s:%d", conv.RemoteTCPAddress, conv.RemoteTCPPort)
	}
}

func TestLoadIgnoresUnknownKeys(t *testing.T) {
	path := writeTempConfig(t, `{
		"UdpIpAddress": "0.0.0.0",
		"UdpBroadcastAddress": "255.255.255.255",
		"SomeFutureKey": {"anything": true},
		"Conversation": {
			"NumberOfConversation": 1,
			"ConversationProperty": [
				{"ConversationName": "ECU1", "P2ClientMax": 10, "P2StarClientMax": 10,
				 "RxBufferSize": 1024, "SourceAddress": 1,
				 "Network": {"TcpIpAddress": "10.0.0.1"}}
			]
		}
	}`)
	if _, err := Load(path, nil); err != nil {
		t.Fatalf("Load should ignore unknown keys, got: %v", err)
	}
}

func TestLoadMissingRequiredKeyFails(t *testing.T) {
	path := writeTempConfig(t, `{"UdpIpAddress": "0.0.0.0"}`)
	_, err := Load(path, nil)
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("err = %v, want ErrInvalidConfig", err)
	}
}

func TestLoadRejectsP2StarLessThanP2(t *testing.T) {
	path := writeTempConfig(t, `{
		"UdpIpAddress": "0.0.0.0",
		"UdpBroadcastAddress": "255.255.255.255",
		"Conversation": {
			"NumberOfConversation": 1,
			"ConversationProperty": [
				{"ConversationName": "ECU1", "P2ClientMax": 100, "P2StarClientMax": 10,
				 "RxBufferSize": 1024, "SourceAddress": 1,
				 "Network": {"TcpIpAddress": "10.0.0.1"}}
			]
		}
	}`)
	if _, err := Load(path, nil); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig for P2* < P2, got %v", err)
	}
}

func TestLoadWarnsOnTlsHandlingButDoesNotFail(t *testing.T) {
	path := writeTempConfig(t, `{
		"UdpIpAddress": "0.0.0.0",
		"UdpBroadcastAddress": "255.255.255.255",
		"Conversation": {
			"NumberOfConversation": 1,
			"ConversationProperty": [
				{"ConversationName": "ECU1", "P2ClientMax": 10, "P2StarClientMax": 10,
				 "RxBufferSize": 1024, "SourceAddress": 1,
				 "Network": {"TcpIpAddress": "10.0.0.1", "TlsHandling": true}}
			]
		}
	}`)
	logger := &capturingLogger{}
	cfg, err := Load(path, logger)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.Conversations["ECU1"].TLSHandling {
		t.Error("expected TLSHandling to be parsed through as true")
	}
	if len(logger.lines) != 1 {
		t.Fatalf("expected exactly one warning logged, got %v", logger.lines)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/client.json", nil)
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("err = %v, want ErrInvalidConfig", err)
	}
}
