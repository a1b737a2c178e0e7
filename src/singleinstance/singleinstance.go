// Package singleinstance lets one resident process own a loopback port and
// serve capture requests delegated by later invocations.
package singleinstance

import "context"

// Server owns the TCP endpoint and answers delegated capture requests.
type Server interface {
	// Start listens on the first port of the range.
	Start(ctx context.Context) error
	// Port returns the bound port, or 0 if not started.
	Port() int
	// Next returns the next capture request, or the ctx error.
	Next(ctx context.Context) (Conn, error)
	Close() error
}

// Conn is one delegated capture awaiting its reply.
type Conn interface {
	Request() Request
	// RespondSuccess sends the translation in stdout mode and empty text in
	// clipboard mode.
	RespondSuccess(text string) error
	// RespondError refuses or fails the request. ErrBusy, ErrCancelled and
	// ErrSuperseded reach the client as themselves.
	RespondError(err error) error
	Close() error
}

// Request is a single delegated capture.
type Request struct {
	OutputToStdout bool
	// TargetLanguage overrides the resident's language for this capture when set.
	TargetLanguage string
}

// Client attempts to delegate a capture to a resident server.
type Client interface {
	// TryCapture returns delegated=false, err=nil when no resident answered.
	TryCapture(ctx context.Context, req Request) (delegated bool, text string, err error)
}

// NewServer returns a loopback server that binds ports.Start.
func NewServer(ports PortRange) Server {
	return &tcpServer{ports: ports, incoming: make(chan *tcpConn, 8)}
}

// NewClient returns a client that scans ports for a resident.
func NewClient(ports PortRange) Client { return &tcpClient{ports: ports} }
