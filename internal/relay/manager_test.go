package relay

import (
	"context"
	"testing"
)

// TestStartForStreamerNeverErrorsOnRelayFailure pins the non-fatal relay
// contract at the manager layer: whatever happens inside the relay group,
// StartForStreamer must not return an error that would unwind pipeline
// ingest (§4.6).
func TestStartForStreamerNeverErrorsOnRelayFailure(t *testing.T) {
	m := NewStreamerManager(nil)
	destinations := []Destination{
		{Name: "a", URL: "rtmp://example.com/app/a", Enabled: true},
		{Name: "b", URL: "rtmp://example.com/app/b", Enabled: true},
	}

	if err := m.StartForStreamer(context.Background(), "streamer-1", destinations, 9000); err != nil {
		t.Fatalf("expected no error from StartForStreamer, got %v", err)
	}

	status, ok := m.Status("streamer-1")
	if !ok {
		t.Fatalf("expected a relay group registered for streamer-1")
	}
	if len(status) != 2 {
		t.Fatalf("expected 2 relay statuses, got %d", len(status))
	}

	m.StopForStreamer("streamer-1")
	if _, ok := m.Status("streamer-1"); ok {
		t.Fatalf("expected relay group to be forgotten after StopForStreamer")
	}
}

// TestStartForStreamerWithNoEnabledDestinationsSkipsRelay confirms ingest
// can proceed without registering a relay group at all.
func TestStartForStreamerWithNoEnabledDestinationsSkipsRelay(t *testing.T) {
	m := NewStreamerManager(nil)
	destinations := []Destination{
		{Name: "a", URL: "rtmp://example.com/app/a", Enabled: false},
	}

	if err := m.StartForStreamer(context.Background(), "streamer-2", destinations, 9001); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if _, ok := m.Status("streamer-2"); ok {
		t.Fatalf("expected no relay group registered when no destination is enabled")
	}
}
