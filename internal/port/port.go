// Package port implements the Port Allocator: it hands out free TCP ports
// to newly deployed apps, probing the OS rather than trusting any
// in-memory bookkeeping.
package port

import (
	"errors"
	"fmt"
	"net"
	"sync"
)

// ErrNoFreePort is returned when no free port can be found below the
// maximum scan bound.
var ErrNoFreePort = errors.New("port: no free port available")

// maxPort bounds the scan so a misconfigured floor can't spin forever.
const maxPort = 65000

// Allocator serializes port probing so concurrent deploys never race each
// other onto the same port.
type Allocator struct {
	mu    sync.Mutex
	start int
}

// NewAllocator creates an Allocator that scans starting at start.
func NewAllocator(start int) *Allocator {
	if start <= 0 {
		start = 5200
	}
	return &Allocator{start: start}
}

// Allocate returns the lowest free port >= the configured floor that is not
// present in inUse and that successfully binds to 0.0.0.0. The bind probe
// is authoritative; inUse is only a hint to skip ports known to be taken.
func (a *Allocator) Allocate(inUse map[int]struct{}) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for candidate := a.start; candidate < maxPort; candidate++ {
		if _, taken := inUse[candidate]; taken {
			continue
		}
		if probe(candidate) {
			return candidate, nil
		}
	}
	return 0, ErrNoFreePort
}

// probe attempts to bind to the candidate port on all interfaces, closing
// the listener immediately. A successful bind means the port is free at
// this instant.
func probe(candidate int) bool {
	ln, err := net.Listen("tcp", fmt.Sprintf("0.0.0.0:%d", candidate))
	if err != nil {
		return false
	}
	ln.Close()
	return true
}
