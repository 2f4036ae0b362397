package relay

import (
	"context"
	"testing"
	"time"
)

// TestStartAllDoesNotBlockOnMissingBinary checks that StartAll returns
// promptly and produces a full status list per relay even when ffmpeg isn't
// on PATH (the relay simply stays inactive, visible via Status).
func TestStartAllDoesNotBlockOnMissingBinary(t *testing.T) {
	g := NewGroup("srt://127.0.0.1:9000?mode=listener", nil)
	g.AddDestination("a", "rtmp://example.com/app/a", false)
	g.AddDestination("b", "rtmp://example.com/app/b", true)

	done := make(chan struct{})
	go func() {
		g.StartAll(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("StartAll did not return")
	}

	status := g.Status()
	if len(status) != 2 {
		t.Fatalf("expected 2 relay statuses, got %d", len(status))
	}
	names := map[string]bool{}
	for _, s := range status {
		names[s.Name] = true
	}
	if !names["a"] || !names["b"] {
		t.Fatalf("expected statuses for both relays, got %v", status)
	}
}

// TestOneRelayFailingToStartDoesNotBlockTheOthers guards the non-fatal
// relay-failure contract: a bad destination must not keep the group from
// starting or reporting status for the rest.
func TestOneRelayFailingToStartDoesNotBlockTheOthers(t *testing.T) {
	g := NewGroup("srt://127.0.0.1:9000?mode=listener", nil)
	g.AddDestination("bad", "", false)
	g.AddDestination("good", "rtmp://example.com/app/good", false)

	g.StartAll(context.Background())

	status := g.Status()
	if len(status) != 2 {
		t.Fatalf("expected 2 relay statuses, got %d", len(status))
	}
}
