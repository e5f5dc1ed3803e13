package service

import (
	"sync"
)

// GatewayRotator is a round-robin selector over equivalent IPFS gateway base URLs.
// It is owned by the component that fetches through it; there is no shared package state.
type GatewayRotator struct {
	mu       sync.Mutex
	gateways []string
	index    int
}

// NewGatewayRotator creates a rotator starting at the first gateway
func NewGatewayRotator(gateways []string) *GatewayRotator {
	g := make([]string, len(gateways))
	copy(g, gateways)
	return &GatewayRotator{gateways: g}
}

// Current returns the index and base URL of the gateway in use
func (r *GatewayRotator) Current() (int, string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.index, r.gateways[r.index]
}

// RotateFrom moves past gateway idx if it is still the current one.
// Concurrent requests that failed on the same gateway therefore rotate only once.
func (r *GatewayRotator) RotateFrom(idx int) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.index == idx {
		r.index = (r.index + 1) % len(r.gateways)
	}
	return r.gateways[r.index]
}

// Len returns the number of configured gateways
func (r *GatewayRotator) Len() int {
	return len(r.gateways)
}
