package router

import (
	"errors"
	"testing"
	"time"

	"screen-translate/src/messages"
	"screen-translate/src/screenshot"
)

func TestSendDeliversToEndpoint(t *testing.T) {
	r := NewRouter()
	defer r.Shutdown()
	r.SetMessageLogging(false)

	host, err := r.Register(messages.EndpointHost, 4)
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	region := screenshot.Region{X: 1, Y: 2, Width: 3, Height: 4}
	if err := r.SendToHost(messages.EndpointOverlay, messages.CaptureRegion{Region: region}); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	env, err := WaitForMessage(host, messages.TypeCaptureRegion, time.Second)
	if err != nil {
		t.Fatalf("WaitForMessage failed: %v", err)
	}
	if env.From != messages.EndpointOverlay {
		t.Errorf("Expected from overlay, got %s", env.From)
	}
	if got := env.Message.(messages.CaptureRegion).Region; got != region {
		t.Errorf("Expected region %+v, got %+v", region, got)
	}
}

func TestRegisterTwiceFails(t *testing.T) {
	r := NewRouter()
	defer r.Shutdown()

	if _, err := r.Register("a", 1); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if _, err := r.Register("a", 1); err == nil {
		t.Fatal("Expected duplicate registration to fail")
	}
}

func TestSendUnknownEndpoint(t *testing.T) {
	r := NewRouter()
	defer r.Shutdown()
	r.SetMessageLogging(false)

	err := r.Send(messages.MessageEnvelope{From: "x", To: "nobody", Message: messages.StartCapture{}})
	if err == nil {
		t.Fatal("Expected error for unknown endpoint")
	}
}

func TestSendTimesOutOnFullInbox(t *testing.T) {
	r := NewRouter()
	defer r.Shutdown()
	r.SetMessageLogging(false)
	r.SetSendTimeout(20 * time.Millisecond)

	if _, err := r.Register("slow", 1); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	env := messages.MessageEnvelope{From: "x", To: "slow", Message: messages.StartCapture{}}
	if err := r.Send(env); err != nil {
		t.Fatalf("First send should fit in buffer: %v", err)
	}
	if err := r.Send(env); err == nil {
		t.Fatal("Expected timeout on full inbox")
	}
}

func TestBroadcastSkipsSender(t *testing.T) {
	r := NewRouter()
	defer r.Shutdown()
	r.SetMessageLogging(false)

	a, _ := r.Register("a", 2)
	b, _ := r.Register("b", 2)

	if err := r.Send(messages.MessageEnvelope{From: "a", To: "*", Message: messages.DIENOW{}}); err != nil {
		t.Fatalf("Broadcast failed: %v", err)
	}
	if n := DrainChannel(a); n != 0 {
		t.Errorf("Sender should not receive its own broadcast, got %d", n)
	}
	if n := DrainChannel(b); n != 1 {
		t.Errorf("Expected 1 message for b, got %d", n)
	}
}

func TestShutdownClosesInboxes(t *testing.T) {
	r := NewRouter()
	r.SetMessageLogging(false)
	ch, _ := r.Register("a", 1)
	r.Shutdown()

	if _, err := WaitForMessage(ch, messages.TypeStartCapture, time.Second); !errors.Is(err, ErrShuttingDown) {
		t.Fatalf("Expected ErrShuttingDown, got %v", err)
	}
	if _, err := r.Register("b", 1); !errors.Is(err, ErrShuttingDown) {
		t.Fatalf("Expected Register after shutdown to fail, got %v", err)
	}
}
