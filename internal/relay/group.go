package relay

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
)

// Destination describes one configured RTMP push target.
type Destination struct {
	Name     string
	URL      string
	Transmux bool
	Enabled  bool
}

// Group holds N relays sharing the same ingress URL, grounded on
// RelayManager in relay.py.
type Group struct {
	InputURL string
	Logger   *logrus.Logger

	mu     sync.RWMutex
	relays []*Relay
}

// NewGroup constructs an empty Group bound to inputURL.
func NewGroup(inputURL string, logger *logrus.Logger) *Group {
	return &Group{InputURL: inputURL, Logger: logger}
}

// AddDestination registers a new relay target.
func (g *Group) AddDestination(name, rtmpURL string, transmux bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.relays = append(g.relays, New(name, g.InputURL, rtmpURL, transmux, g.Logger))
}

// StartAll launches every relay concurrently. A single relay failing to
// start is not fatal to the group: it's logged and left inactive (visible
// via Status), while the others still come up and ingest stays open.
func (g *Group) StartAll(ctx context.Context) {
	g.mu.RLock()
	relays := append([]*Relay(nil), g.relays...)
	g.mu.RUnlock()

	var wg sync.WaitGroup
	for _, r := range relays {
		wg.Add(1)
		go func(r *Relay) {
			defer wg.Done()
			if err := r.Start(ctx); err != nil {
				r.log().WithError(err).Warn("relay failed to start, remains inactive")
			}
		}(r)
	}
	wg.Wait()
}

// StopAll stops every relay concurrently.
func (g *Group) StopAll() {
	g.mu.RLock()
	relays := append([]*Relay(nil), g.relays...)
	g.mu.RUnlock()

	var wg sync.WaitGroup
	for _, r := range relays {
		wg.Add(1)
		go func(r *Relay) {
			defer wg.Done()
			r.Stop()
		}(r)
	}
	wg.Wait()
}

// Status aggregates status across all relays in the group.
func (g *Group) Status() []Status {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]Status, 0, len(g.relays))
	for _, r := range g.relays {
		out = append(out, r.GetStatus())
	}
	return out
}
