package srt

import "testing"

func TestScoreZeroWhenInactive(t *testing.T) {
	l := &Link{}
	if got := l.score(); got != 0 {
		t.Fatalf("expected 0 for inactive link, got %d", got)
	}
}

func TestScorePenalizesRTTAndLoss(t *testing.T) {
	l := &Link{active: true, rttMs: 250, packetLossPct: 6}
	if got := l.score(); got != 40 {
		t.Fatalf("expected 100-30-30=40, got %d", got)
	}
}

func TestScoreCapsRTTAndLossPenalties(t *testing.T) {
	l := &Link{active: true, rttMs: 300, packetLossPct: 10}
	if got := l.score(); got != 40 {
		t.Fatalf("expected capped penalties 100-30-30=40, got %d", got)
	}
}

func TestBestLinkBreaksTiesByLowestID(t *testing.T) {
	g := &Group{links: []*Link{
		{ID: 0, active: true},
		{ID: 1, active: true},
	}}
	best := g.BestLink()
	if best == nil || best.ID != 0 {
		t.Fatalf("expected link 0 to win the tie, got %+v", best)
	}
}

func TestBestLinkNilWhenNoneActive(t *testing.T) {
	g := &Group{links: []*Link{{ID: 0, active: false}}}
	if g.BestLink() != nil {
		t.Fatalf("expected nil best link when none active")
	}
}
