package singleinstance

import (
	"bufio"
	"context"
	"log"
	"net"
	"sync"
	"time"
)

const handshakeTimeout = 3 * time.Second

// tcpServer accepts delegations on the first port of its range.
type tcpServer struct {
	ports    PortRange
	lis      net.Listener
	incoming chan *tcpConn
	port     int

	closeOnce sync.Once
}

// Start binds ports.Start only. An occupied port is an error, not a reason to
// move up the range: clients would then find two residents.
func (s *tcpServer) Start(ctx context.Context) error {
	if s.lis != nil {
		return nil
	}
	port := s.ports.Normalize().Start
	addr := loopbackAddr(port)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		log.Printf("singleinstance: failed to bind %s: %v", addr, err)
		return err
	}
	s.lis = lis
	s.port = port
	log.Printf("singleinstance: listening on %s (clients scan %s)", addr, s.ports)
	go s.acceptLoop(ctx)
	return nil
}

func (s *tcpServer) Port() int { return s.port }

func (s *tcpServer) acceptLoop(ctx context.Context) {
	for {
		c, err := s.lis.Accept()
		if err != nil {
			return
		}
		go s.handshake(ctx, c)
	}
}

// handshake answers PING itself and hands capture requests to Next.
func (s *tcpServer) handshake(ctx context.Context, c net.Conn) {
	remote := c.RemoteAddr().String()
	_ = c.SetDeadline(time.Now().Add(handshakeTimeout))
	br := bufio.NewReader(c)
	bw := bufio.NewWriter(c)

	line, err := br.ReadString('\n')
	if err != nil {
		_ = c.Close()
		return
	}
	if line == pingRequest {
		_, _ = bw.WriteString(pongResponse)
		_ = bw.Flush()
		_ = c.Close()
		return
	}

	// The reply waits for the user's selection.
	_ = c.SetDeadline(time.Time{})
	req := parseRequest(line)
	log.Printf("singleinstance: capture request from %s stdout=%v lang=%q", remote, req.OutputToStdout, req.TargetLanguage)
	select {
	case s.incoming <- &tcpConn{c: c, r: req, w: bw}:
	case <-ctx.Done():
		_ = writeError(bw, ErrBusy)
		_ = c.Close()
	}
}

func (s *tcpServer) Next(ctx context.Context) (Conn, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case tc := <-s.incoming:
		return tc, nil
	}
}

func (s *tcpServer) Close() error {
	s.closeOnce.Do(func() {
		if s.lis != nil {
			_ = s.lis.Close()
		}
	})
	return nil
}

type tcpConn struct {
	c net.Conn
	r Request
	w *bufio.Writer
}

func (tc *tcpConn) Request() Request { return tc.r }

func (tc *tcpConn) RespondSuccess(text string) error { return writeSuccess(tc.w, text) }

func (tc *tcpConn) RespondError(err error) error { return writeError(tc.w, err) }

func (tc *tcpConn) Close() error { return tc.c.Close() }
