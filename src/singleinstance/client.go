package singleinstance

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"time"
)

const defaultDialTimeout = 2 * time.Second

type tcpClient struct {
	ports PortRange
}

// TryCapture delegates to the first port that answers PING. Once a resident
// has accepted the request the outcome is final: delegated is true even when
// err is set.
func (c *tcpClient) TryCapture(ctx context.Context, req Request) (bool, string, error) {
	timeout := timeoutFrom(ctx, defaultDialTimeout)
	for port := range c.ports.Ports() {
		if err := ctx.Err(); err != nil {
			return false, "", err
		}
		addr := loopbackAddr(port)
		if !probe(addr, timeout) {
			continue
		}
		text, err := c.delegate(ctx, addr, req, timeout)
		if errors.Is(err, errUnexpectedReply) {
			log.Printf("singleinstance: %s: %v, trying next port", addr, err)
			continue
		}
		return true, text, err
	}
	return false, "", nil
}

func (c *tcpClient) delegate(ctx context.Context, addr string, req Request, timeout time.Duration) (string, error) {
	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return "", fmt.Errorf("dial resident %s: %w", addr, err)
	}
	defer conn.Close()

	// No read deadline: the resident replies after the user selects a region.
	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Now()) })
	defer stop()

	w := bufio.NewWriter(conn)
	if _, err := w.WriteString(encodeRequest(req)); err != nil {
		return "", err
	}
	if err := w.Flush(); err != nil {
		return "", err
	}
	return readReply(bufio.NewReader(conn))
}
