package supervisor

import (
	"context"
	"fmt"
	"sync"
	"syscall"
	"testing"
	"time"
)

// fakeProcess is a controllable stand-in for a real child process: Wait
// blocks on exitCh until the test fires it, and Signal mimics a process that
// ignores SIGTERM but dies immediately on SIGKILL, the common "stuck child"
// case Stop's grace-period escalation exists for.
type fakeProcess struct {
	exitCh chan error

	mu      sync.Mutex
	signals []syscall.Signal
}

func newFakeProcess() *fakeProcess {
	return &fakeProcess{exitCh: make(chan error, 1)}
}

func (p *fakeProcess) Wait() error { return <-p.exitCh }

func (p *fakeProcess) exit(err error) {
	select {
	case p.exitCh <- err:
	default:
	}
}

func (p *fakeProcess) Signal(sig syscall.Signal) error {
	p.mu.Lock()
	p.signals = append(p.signals, sig)
	p.mu.Unlock()
	if sig == syscall.SIGKILL {
		p.exit(nil)
	}
	return nil
}

func (p *fakeProcess) signalsSeen() []syscall.Signal {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]syscall.Signal(nil), p.signals...)
}

// fakeLauncher records every process it launches, in order, so a test can
// drive exits on whichever one is currently being supervised.
type fakeLauncher struct {
	mu    sync.Mutex
	procs []*fakeProcess
}

func (f *fakeLauncher) Launch(argv []string) (Process, error) {
	p := newFakeProcess()
	f.mu.Lock()
	f.procs = append(f.procs, p)
	f.mu.Unlock()
	return p, nil
}

func (f *fakeLauncher) latest() *fakeProcess {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.procs[len(f.procs)-1]
}

func (f *fakeLauncher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.procs)
}

func newTestSupervisor(launcher *fakeLauncher, cfg Config) *Supervisor {
	cfg.Build = func() ([]string, bool) { return []string{"fake"}, true }
	cfg.Launcher = launcher
	return New(cfg)
}

// TestSuperviseWaitsBackoffBeforeRelaunch guards against the relaunch
// happening immediately on unclean exit: the backoff must be observed
// before the next process is launched, not only before the following
// Wait() poll.
func TestSuperviseWaitsBackoffBeforeRelaunch(t *testing.T) {
	launcher := &fakeLauncher{}
	backoff := 30 * time.Millisecond
	s := newTestSupervisor(launcher, Config{
		Name:        "test",
		MaxRestarts: 5,
		Backoff:     backoff,
		GracePeriod: time.Second,
	})

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	for i := 0; i < 2; i++ {
		before := launcher.count()
		start := time.Now()
		launcher.latest().exit(fmt.Errorf("boom"))
		for launcher.count() == before {
			time.Sleep(time.Millisecond)
		}
		if gap := time.Since(start); gap < backoff {
			t.Fatalf("relaunch %d happened after %v, want at least the %v backoff", i, gap, backoff)
		}
	}
	s.Stop()
}

// TestSuperviseStopsPermanentlyAfterMaxRestarts checks the restart budget
// cap: once exhausted, the supervisor reports itself no longer running.
func TestSuperviseStopsPermanentlyAfterMaxRestarts(t *testing.T) {
	launcher := &fakeLauncher{}
	s := newTestSupervisor(launcher, Config{
		Name:        "test",
		MaxRestarts: 2,
		Backoff:     5 * time.Millisecond,
		GracePeriod: time.Second,
	})
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for s.Running() && time.Now().Before(deadline) {
		before := launcher.count()
		launcher.latest().exit(fmt.Errorf("boom"))
		for launcher.count() == before && s.Running() && time.Now().Before(deadline) {
			time.Sleep(2 * time.Millisecond)
		}
	}

	if s.Running() {
		t.Fatalf("expected supervisor to stop permanently after exhausting its restart budget")
	}
	if got := s.Restarts(); got < 2 {
		t.Fatalf("expected at least 2 restarts recorded before budget exhaustion, got %d", got)
	}
}

// TestStopEscalatesToSigkillAfterGracePeriod checks Stop's termination
// policy: SIGTERM first, then SIGKILL once GracePeriod elapses without exit.
func TestStopEscalatesToSigkillAfterGracePeriod(t *testing.T) {
	launcher := &fakeLauncher{}
	s := newTestSupervisor(launcher, Config{
		Name:        "test",
		MaxRestarts: 1,
		Backoff:     time.Second,
		GracePeriod: 20 * time.Millisecond,
	})
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	proc := launcher.latest()

	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}

	signals := proc.signalsSeen()
	if len(signals) != 2 || signals[0] != syscall.SIGTERM || signals[1] != syscall.SIGKILL {
		t.Fatalf("expected [SIGTERM SIGKILL], got %v", signals)
	}
}
