package singleinstance

import (
	"bufio"
	"context"
	"errors"
	"slices"
	"strings"
	"testing"
	"time"
)

func startServer(t *testing.T, ctx context.Context, port int) Server {
	t.Helper()
	srv := NewServer(PortRange{Start: port, End: port})
	if err := srv.Start(ctx); err != nil {
		t.Skipf("loopback port unavailable in this environment: %v", err)
	}
	t.Cleanup(func() { srv.Close() })
	return srv
}

type outcome struct {
	delegated bool
	text      string
	err       error
}

func delegate(ctx context.Context, port int, req Request) <-chan outcome {
	done := make(chan outcome, 1)
	go func() {
		delegated, text, err := NewClient(PortRange{Start: port, End: port}).TryCapture(ctx, req)
		done <- outcome{delegated, text, err}
	}()
	return done
}

func TestServerClientRoundTrip(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv := startServer(t, ctx, 49541)
	if srv.Port() != 49541 {
		t.Fatalf("expected port 49541, got %d", srv.Port())
	}

	done := delegate(ctx, 49541, Request{OutputToStdout: true, TargetLanguage: "Japanese"})

	conn, err := srv.Next(ctx)
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	req := conn.Request()
	if !req.OutputToStdout {
		t.Errorf("expected stdout request")
	}
	if req.TargetLanguage != "Japanese" {
		t.Errorf("expected Japanese, got %q", req.TargetLanguage)
	}
	if err := conn.RespondSuccess("こんにちは"); err != nil {
		t.Fatalf("respond: %v", err)
	}
	conn.Close()

	got := <-done
	if got.err != nil || !got.delegated || got.text != "こんにちは" {
		t.Fatalf("unexpected client outcome %+v", got)
	}
}

func TestRefusalsSurviveTheWire(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv := startServer(t, ctx, 49542)

	tests := []struct {
		name    string
		reply   error
		refused bool
	}{
		{"busy", ErrBusy, true},
		{"cancelled", ErrCancelled, true},
		{"superseded", ErrSuperseded, true},
		{"session failure", errors.New("No text could be extracted from the image."), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			done := delegate(ctx, 49542, Request{})
			conn, err := srv.Next(ctx)
			if err != nil {
				t.Fatalf("next: %v", err)
			}
			if conn.Request().OutputToStdout {
				t.Errorf("expected clipboard request")
			}
			_ = conn.RespondError(tt.reply)
			conn.Close()

			got := <-done
			if !got.delegated {
				t.Fatal("a resident reply must count as delegated")
			}
			if got.err == nil || got.err.Error() != tt.reply.Error() {
				t.Fatalf("expected %q, got %v", tt.reply, got.err)
			}
			if Refused(got.err) != tt.refused {
				t.Fatalf("Refused(%v) = %v, want %v", got.err, !tt.refused, tt.refused)
			}
			if tt.refused && !errors.Is(got.err, tt.reply) {
				t.Fatalf("expected errors.Is(%v, %v)", got.err, tt.reply)
			}
		})
	}
}

func TestNoResident(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	ports := PortRange{Start: 49543, End: 49543}
	delegated, _, err := NewClient(ports).TryCapture(ctx, Request{})
	if delegated || err != nil {
		t.Fatalf("expected no delegation, got delegated=%v err=%v", delegated, err)
	}
	if _, ok := DetectResidentPort(ctx, ports); ok {
		t.Fatal("expected no resident")
	}
}

func TestDetectResidentPortScansRange(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	startServer(t, ctx, 49546)

	port, ok := DetectResidentPort(ctx, PortRange{Start: 49544, End: 49547})
	if !ok || port != 49546 {
		t.Fatalf("expected resident on 49546, got %d (%v)", port, ok)
	}
}

func TestRequestLine(t *testing.T) {
	tests := []struct {
		req  Request
		line string
	}{
		{Request{}, "CLIPBOARD\n"},
		{Request{OutputToStdout: true}, "STDOUT\n"},
		{Request{OutputToStdout: true, TargetLanguage: "Chinese"}, "STDOUT Chinese\n"},
		{Request{TargetLanguage: " French\n"}, "CLIPBOARD French\n"},
	}
	for _, tt := range tests {
		line := encodeRequest(tt.req)
		if line != tt.line {
			t.Errorf("encodeRequest(%+v) = %q, want %q", tt.req, line, tt.line)
		}
		back := parseRequest(line)
		if back.OutputToStdout != tt.req.OutputToStdout {
			t.Errorf("parseRequest(%q) lost mode", line)
		}
	}
}

func TestReadReply(t *testing.T) {
	tests := []struct {
		wire    string
		text    string
		wantErr error
	}{
		{"SUCCESS\n안녕", "안녕", nil},
		{"SUCCESS\n", "", nil},
		{"ERROR\nBusy, please retry", "", ErrBusy},
		{"NOPE\n", "", errUnexpectedReply},
	}
	for _, tt := range tests {
		text, err := readReply(bufio.NewReader(strings.NewReader(tt.wire)))
		if text != tt.text || !errors.Is(err, tt.wantErr) {
			t.Errorf("readReply(%q) = %q, %v; want %q, %v", tt.wire, text, err, tt.text, tt.wantErr)
		}
	}
	if _, err := readReply(bufio.NewReader(strings.NewReader(""))); err == nil {
		t.Error("expected an error for an empty reply")
	}
}

func TestPortRangeNormalize(t *testing.T) {
	tests := []struct {
		in   PortRange
		want PortRange
	}{
		{PortRange{}, DefaultPorts},
		{PortRange{Start: 60010, End: 60000}, PortRange{Start: 60000, End: 60010}},
		{PortRange{Start: 80, End: 99999}, PortRange{Start: 1024, End: 65535}},
		{PortRange{Start: 50000}, PortRange{Start: 49550, End: 50000}},
	}
	for _, tt := range tests {
		if got := tt.in.Normalize(); got != tt.want {
			t.Errorf("%+v.Normalize() = %+v, want %+v", tt.in, got, tt.want)
		}
	}

	got := slices.Collect(PortRange{Start: 50002, End: 50000}.Ports())
	if !slices.Equal(got, []int{50000, 50001, 50002}) {
		t.Errorf("Ports() = %v", got)
	}
}
