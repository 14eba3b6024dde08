package simulator

import (
	"testing"
	"time"

	"github.com/anodyne74/doip-client/internal/channel"
)

func TestSimulatorRoutingActivationAndDiagnosticRoundTrip(t *testing.T) {
	sim, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer sim.Close()

	sim.OnRequest(0x22, func(sid byte, request []byte) []byte {
		return []byte{0x62, 0xF1, 0x90, 0x01, 0x02, 0x03}
	})
	go sim.Serve()

	host, port := sim.HostPort()
	c := channel.NewTcpChannel(channel.Config{
		ClientAddress:   0x0E00,
		RxBufferSize:    4096,
		P2ClientMax:     100 * time.Millisecond,
		P2StarClientMax: 5 * time.Second,
	})
	defer c.Shutdown()

	outcome := c.ConnectToHost(host, port)
	if outcome.Kind != channel.ConnectOk {
		t.Fatalf("ConnectToHost = %+v, want ConnectOk", outcome)
	}

	diagOutcome, payload := c.SendDiagnosticRequest(0xFA25, []byte{0x22, 0xF1, 0x90})
	if diagOutcome.Kind != channel.DiagOk {
		t.Fatalf("SendDiagnosticRequest = %+v, want DiagOk", diagOutcome)
	}
	want := []byte{0x62, 0xF1, 0x90, 0x01, 0x02, 0x03}
	if len(payload) != len(want) {
		t.Fatalf("payload len = %d, want %d", len(payload), len(want))
	}
}

func TestSimulatorActivationRefused(t *testing.T) {
	sim, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer sim.Close()
	sim.ActivationCode = 0x06 // AuthenticationMissing

	go sim.Serve()

	host, port := sim.HostPort()
	c := channel.NewTcpChannel(channel.Config{ClientAddress: 0x0E00, RxBufferSize: 4096})
	defer c.Shutdown()

	outcome := c.ConnectToHost(host, port)
	if outcome.Kind != channel.ConnectActivationFailed {
		t.Fatalf("ConnectToHost = %+v, want ConnectActivationFailed", outcome)
	}
}
