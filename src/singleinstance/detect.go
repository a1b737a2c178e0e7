package singleinstance

import (
	"bufio"
	"context"
	"net"
	"time"
)

const defaultProbeTimeout = 300 * time.Millisecond

// DetectResidentPort returns the first port in ports whose listener answers PING.
func DetectResidentPort(ctx context.Context, ports PortRange) (int, bool) {
	timeout := timeoutFrom(ctx, defaultProbeTimeout)
	for port := range ports.Ports() {
		if ctx.Err() != nil {
			return 0, false
		}
		if probe(loopbackAddr(port), timeout) {
			return port, true
		}
	}
	return 0, false
}

func timeoutFrom(ctx context.Context, fallback time.Duration) time.Duration {
	if dl, ok := ctx.Deadline(); ok {
		if d := time.Until(dl); d > 0 {
			return d
		}
	}
	return fallback
}

// probe sends PING on its own connection and expects PONG.
func probe(addr string, timeout time.Duration) bool {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return false
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(timeout))

	w := bufio.NewWriter(conn)
	if _, err := w.WriteString(pingRequest); err != nil || w.Flush() != nil {
		return false
	}
	resp, err := bufio.NewReader(conn).ReadString('\n')
	return err == nil && resp == pongResponse
}
