package srt

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Group owns N Links for one streamer and selects the best one, grounded on
// SRTReceiver (plural-link coordination) in srt_receiver.py.
type Group struct {
	BasePort   int
	MaxLinks   int
	LatencyMs  int
	Passphrase string
	Logger     *logrus.Logger

	mu    sync.RWMutex
	links []*Link
}

// NewGroup constructs a Group of MaxLinks links starting at BasePort, one
// port apart.
func NewGroup(basePort, maxLinks, latencyMs int, passphrase string, logger *logrus.Logger) *Group {
	g := &Group{
		BasePort:   basePort,
		MaxLinks:   maxLinks,
		LatencyMs:  latencyMs,
		Passphrase: passphrase,
		Logger:     logger,
	}
	for i := 0; i < maxLinks; i++ {
		g.links = append(g.links, NewLink(i, basePort+i, latencyMs, passphrase, logger))
	}
	return g
}

// StartAll starts every link in the group concurrently.
func (g *Group) StartAll(ctx context.Context) error {
	g.mu.RLock()
	links := append([]*Link(nil), g.links...)
	g.mu.RUnlock()

	var wg sync.WaitGroup
	errs := make([]error, len(links))
	for i, l := range links {
		wg.Add(1)
		go func(i int, l *Link) {
			defer wg.Done()
			errs[i] = l.Start(ctx)
		}(i, l)
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// StopAll stops every link in the group concurrently.
func (g *Group) StopAll() {
	g.mu.RLock()
	links := append([]*Link(nil), g.links...)
	g.mu.RUnlock()

	var wg sync.WaitGroup
	for _, l := range links {
		wg.Add(1)
		go func(l *Link) {
			defer wg.Done()
			l.Stop()
		}(l)
	}
	wg.Wait()
}

// BestLink returns the active link with the highest score, ties broken by
// lowest link ID (matching Python's max() returning the first max on ties,
// with links constructed in ID order). Returns nil if no link is active.
func (g *Group) BestLink() *Link {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var best *Link
	bestScore := -1
	for _, l := range g.links {
		st := l.GetStatus()
		if !st.Active {
			continue
		}
		if st.Score > bestScore {
			best = l
			bestScore = st.Score
		}
	}
	return best
}

// GroupStatus summarizes the group for telemetry/status reporting.
type GroupStatus struct {
	Total       int      `json:"total"`
	Active      int      `json:"active"`
	Links       []Status `json:"links"`
	BestLinkID  *int     `json:"best_link_id,omitempty"`
	CheckedAt   time.Time `json:"checked_at"`
}

// Status aggregates per-link status and identifies the best link.
func (g *Group) Status() GroupStatus {
	g.mu.RLock()
	links := append([]*Link(nil), g.links...)
	g.mu.RUnlock()

	out := GroupStatus{CheckedAt: time.Now()}
	statuses := make([]Status, 0, len(links))
	activeCount := 0
	bestScore := -1
	var bestID *int
	for _, l := range links {
		st := l.GetStatus()
		statuses = append(statuses, st)
		if st.Active {
			activeCount++
			if st.Score > bestScore {
				id := st.ID
				bestID = &id
				bestScore = st.Score
			}
		}
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i].ID < statuses[j].ID })

	out.Total = len(links)
	out.Active = activeCount
	out.Links = statuses
	out.BestLinkID = bestID
	return out
}
