package singleinstance

import (
	"fmt"
	"iter"
	"net"
	"strconv"
)

const (
	minPort = 1024
	maxPort = 65535
)

// DefaultPorts applies to any bound left unset.
var DefaultPorts = PortRange{Start: 49500, End: 49550}

// PortRange is an inclusive loopback range. The resident binds Start; clients
// scan every port in it.
type PortRange struct {
	Start int
	End   int
}

// Normalize fills unset bounds from DefaultPorts, orders them and clamps both
// to [1024, 65535].
func (r PortRange) Normalize() PortRange {
	if r.Start <= 0 {
		r.Start = DefaultPorts.Start
	}
	if r.End <= 0 {
		r.End = DefaultPorts.End
	}
	if r.End < r.Start {
		r.Start, r.End = r.End, r.Start
	}
	r.Start = min(max(r.Start, minPort), maxPort)
	r.End = min(max(r.End, minPort), maxPort)
	return r
}

// Ports yields each port of the normalized range in ascending order.
func (r PortRange) Ports() iter.Seq[int] {
	n := r.Normalize()
	return func(yield func(int) bool) {
		for p := n.Start; p <= n.End; p++ {
			if !yield(p) {
				return
			}
		}
	}
}

func (r PortRange) String() string {
	n := r.Normalize()
	return fmt.Sprintf("%d-%d", n.Start, n.End)
}

func loopbackAddr(port int) string {
	return net.JoinHostPort(residentHost, strconv.Itoa(port))
}
