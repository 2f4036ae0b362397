// Package supervisor runs an external child process under a bounded-restart
// policy shared by the SRT receiver and RTMP relay pipelines.
package supervisor

import (
	"context"
	"fmt"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"github.com/sirupsen/logrus"
)

// Process abstracts a running child so Supervisor doesn't depend on
// *exec.Cmd directly, letting tests supervise a fake process instead of
// forking a real one.
type Process interface {
	Wait() error
	Signal(sig syscall.Signal) error
}

// Launcher starts a Process from argv. The zero Config uses osLauncher.
type Launcher interface {
	Launch(argv []string) (Process, error)
}

type osLauncher struct{}

func (osLauncher) Launch(argv []string) (Process, error) {
	cmd := exec.Command(argv[0], argv[1:]...)
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return osProcess{cmd}, nil
}

type osProcess struct {
	cmd *exec.Cmd
}

func (p osProcess) Wait() error                     { return p.cmd.Wait() }
func (p osProcess) Signal(sig syscall.Signal) error { return p.cmd.Process.Signal(sig) }

// Config controls restart bounds and shutdown grace for a supervised child.
type Config struct {
	// Name identifies this supervisor in logs.
	Name string
	// Build produces the command and arguments to run. It is called once per
	// Start; relaunches after an unexpected exit reuse the same argv.
	Build func() (argv []string, ok bool)
	// MaxRestarts bounds how many times the child may be relaunched after an
	// unexpected exit before the supervisor gives up permanently.
	MaxRestarts int
	// Backoff is the delay before relaunching after an unexpected exit.
	Backoff time.Duration
	// GracePeriod is how long to wait after SIGTERM before SIGKILL on Stop.
	GracePeriod time.Duration
	Logger      *logrus.Logger
	// Launcher starts child processes. Defaults to forking real OS
	// processes; tests inject a fake to supervise without forking.
	Launcher Launcher
}

// Supervisor owns one external child process, restarting it on unexpected
// exit up to Config.MaxRestarts, using a failsafe-go retry policy the way
// pkg/clients/failsafe.go wraps retrypolicy.Builder for HTTP retries here
// generalized to process-level restarts.
type Supervisor struct {
	cfg Config

	mu        sync.Mutex
	proc      Process
	running   bool
	restarts  int
	stopCh    chan struct{}
	doneCh    chan struct{}
	simulated bool
}

// New constructs a Supervisor. Build should report ok=false when the argv
// cannot be produced (e.g. missing binary), in which case the supervisor
// runs in simulated mode rather than failing.
func New(cfg Config) *Supervisor {
	if cfg.Backoff <= 0 {
		cfg.Backoff = 2 * time.Second
	}
	if cfg.GracePeriod <= 0 {
		cfg.GracePeriod = 5 * time.Second
	}
	if cfg.MaxRestarts <= 0 {
		cfg.MaxRestarts = 10
	}
	return &Supervisor{cfg: cfg}
}

// Start launches the child process and begins supervising it. If Build
// reports the binary is unavailable, Start succeeds in simulated mode: the
// supervisor reports Running()==false but Start itself returns nil, mirroring
// the "observable without the media toolchain" failure policy.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	argv, ok := s.cfg.Build()
	if !ok {
		s.simulated = true
		s.running = false
		s.mu.Unlock()
		s.log().Warn("binary unavailable, running in simulated mode")
		return nil
	}
	s.simulated = false
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.mu.Unlock()

	if err := s.launch(argv); err != nil {
		return fmt.Errorf("supervisor %s: initial launch: %w", s.cfg.Name, err)
	}

	go s.supervise(argv)
	return nil
}

func (s *Supervisor) launch(argv []string) error {
	launcher := s.cfg.Launcher
	if launcher == nil {
		launcher = osLauncher{}
	}
	proc, err := launcher.Launch(argv)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.proc = proc
	s.running = true
	s.mu.Unlock()
	return nil
}

// supervise waits on the child and relaunches it through a retry policy
// bounded by MaxRestarts, backing off Config.Backoff between attempts.
func (s *Supervisor) supervise(argv []string) {
	defer close(s.doneCh)

	// Backoff before relaunch is applied explicitly below, not through the
	// retry policy's own delay: that delay only gates this function's next
	// invocation (the subsequent Wait()), not the relaunch itself. The
	// policy here is used purely to cap restart attempts at MaxRestarts.
	retryPolicy := retrypolicy.NewBuilder[any]().
		WithMaxRetries(s.cfg.MaxRestarts).
		Build()

	executor := failsafe.With(retryPolicy)
	_, _ = executor.Get(func() (any, error) {
		s.mu.Lock()
		proc := s.proc
		s.mu.Unlock()
		if proc == nil {
			return nil, fmt.Errorf("no process")
		}

		err := proc.Wait()

		select {
		case <-s.stopCh:
			// Deliberate stop; do not restart.
			s.mu.Lock()
			s.running = false
			s.mu.Unlock()
			return nil, nil
		default:
		}

		s.mu.Lock()
		if s.restarts >= s.cfg.MaxRestarts {
			s.mu.Unlock()
			return nil, fmt.Errorf("restart budget exhausted: %v", err)
		}
		s.restarts++
		restarts := s.restarts
		s.mu.Unlock()
		s.log().WithFields(logrus.Fields{
			"restarts": restarts,
			"exit_err": err,
		}).Warn("child exited unexpectedly, restarting")

		// Backoff happens before the relaunch, not after: the retry policy's
		// own backoff only delays this function's *next* invocation (the
		// following Wait()), which would let the relaunch happen immediately.
		select {
		case <-s.stopCh:
			s.mu.Lock()
			s.running = false
			s.mu.Unlock()
			return nil, nil
		case <-time.After(s.cfg.Backoff):
		}

		if relaunchErr := s.launch(argv); relaunchErr != nil {
			return nil, relaunchErr
		}
		// Report failure so the retry policy loops back to Wait() again.
		return nil, fmt.Errorf("relaunched, awaiting next exit")
	})

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
	s.log().Warn("supervisor stopped permanently (restart budget exhausted)")
}

// Stop terminates the child with SIGTERM, escalating to SIGKILL after the
// configured grace period if it hasn't exited.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	if !s.running || s.proc == nil {
		s.mu.Unlock()
		return
	}
	proc := s.proc
	stopCh := s.stopCh
	doneCh := s.doneCh
	s.mu.Unlock()

	close(stopCh)
	_ = proc.Signal(syscall.SIGTERM)

	select {
	case <-doneCh:
	case <-time.After(s.cfg.GracePeriod):
		_ = proc.Signal(syscall.SIGKILL)
		<-doneCh
	}
}

// Running reports whether the child process is currently alive (false in
// simulated mode).
func (s *Supervisor) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Simulated reports whether the supervisor is operating without a real
// child process because the target binary was unavailable at Start.
func (s *Supervisor) Simulated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.simulated
}

// Restarts returns how many times the child has been relaunched.
func (s *Supervisor) Restarts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.restarts
}

func (s *Supervisor) log() *logrus.Entry {
	logger := s.cfg.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return logger.WithField("supervisor", s.cfg.Name)
}
