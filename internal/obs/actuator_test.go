package obs

import (
	"context"
	"sync"
	"testing"
	"time"

	"broadcastd/internal/health"
)

type fakeClient struct {
	mu     sync.Mutex
	scenes []string
}

func (f *fakeClient) Connect() error { return nil }

func (f *fakeClient) SwitchScene(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scenes = append(f.scenes, name)
	return nil
}

func (f *fakeClient) switched() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.scenes...)
}

func TestActuatorSwitchesToBRBAfterFallbackDelay(t *testing.T) {
	client := &fakeClient{}
	transitions := make(chan health.Transition, 4)
	cfg := Config{SceneLive: "LIVE", SceneBRB: "BRB", FallbackDelay: 20 * time.Millisecond, RecoveryDelay: 20 * time.Millisecond}
	a := New(client, cfg, transitions, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go a.Run(ctx)

	transitions <- health.Transition{NewState: health.Critical}
	time.Sleep(60 * time.Millisecond)

	scenes := client.switched()
	if len(scenes) != 1 || scenes[0] != "BRB" {
		t.Fatalf("expected a single switch to BRB, got %v", scenes)
	}
	if !a.GetStatus().InFallback {
		t.Fatalf("expected actuator to report in-fallback")
	}
}

func TestActuatorCancelsFallbackOnRecoveryBeforeDelay(t *testing.T) {
	client := &fakeClient{}
	transitions := make(chan health.Transition, 4)
	cfg := Config{SceneLive: "LIVE", SceneBRB: "BRB", FallbackDelay: 50 * time.Millisecond, RecoveryDelay: 20 * time.Millisecond}
	a := New(client, cfg, transitions, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go a.Run(ctx)

	transitions <- health.Transition{NewState: health.Critical}
	time.Sleep(10 * time.Millisecond)
	transitions <- health.Transition{NewState: health.Healthy}
	time.Sleep(80 * time.Millisecond)

	scenes := client.switched()
	if len(scenes) != 0 {
		t.Fatalf("expected fallback to be cancelled before it fired, got %v", scenes)
	}
}
