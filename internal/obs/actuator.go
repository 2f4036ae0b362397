// Package obs drives OBS Studio scene switching off health state
// transitions, with debounced fallback/recovery timers. Grounded on
// OBSController in obs_controller.py.
package obs

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"broadcastd/internal/health"
)

// Client abstracts the OBS WebSocket connection so the actuator's hysteresis
// logic can be tested without a real OBS instance. Connect failing is
// non-fatal: the actuator still tracks state and logs scene-switch intents.
type Client interface {
	Connect() error
	SwitchScene(name string) error
}

// Config configures the actuator's scene names and debounce delays.
type Config struct {
	SceneLive     string
	SceneBRB      string
	FallbackDelay time.Duration
	RecoveryDelay time.Duration
}

// DefaultConfig matches OBS_SCENE_LIVE/OBS_SCENE_BRB/OBS_FALLBACK_DELAY_S/
// OBS_RECOVERY_DELAY_S defaults.
func DefaultConfig() Config {
	return Config{
		SceneLive:     "LIVE",
		SceneBRB:      "BRB",
		FallbackDelay: 3 * time.Second,
		RecoveryDelay: 5 * time.Second,
	}
}

// Actuator owns the single goroutine that consumes health transitions and
// the cancellable fallback/recovery timers derived from them. All actuator
// state is confined to this goroutine: no locks are needed.
type Actuator struct {
	client Client
	cfg    Config
	logger *logrus.Logger

	transitions <-chan health.Transition
	connected   bool
	inFallback  bool

	connectedFlag  atomic.Bool
	inFallbackFlag atomic.Bool
}

// New constructs an Actuator consuming transitions from the given channel.
func New(client Client, cfg Config, transitions <-chan health.Transition, logger *logrus.Logger) *Actuator {
	return &Actuator{client: client, cfg: cfg, transitions: transitions, logger: logger}
}

// Run connects to OBS (non-fatally) and processes transitions until ctx is
// cancelled.
func (a *Actuator) Run(ctx context.Context) {
	if err := a.client.Connect(); err != nil {
		a.log().WithError(err).Warn("OBS connect failed, continuing without scene control")
		a.connected = false
	} else {
		a.connected = true
	}
	a.connectedFlag.Store(a.connected)

	var fallbackTimer, recoveryTimer *time.Timer
	defer func() {
		if fallbackTimer != nil {
			fallbackTimer.Stop()
		}
		if recoveryTimer != nil {
			recoveryTimer.Stop()
		}
	}()

	for {
		var fallbackC, recoveryC <-chan time.Time
		if fallbackTimer != nil {
			fallbackC = fallbackTimer.C
		}
		if recoveryTimer != nil {
			recoveryC = recoveryTimer.C
		}

		select {
		case <-ctx.Done():
			return

		case tr, ok := <-a.transitions:
			if !ok {
				return
			}
			switch {
			case isFallbackState(tr.NewState):
				if recoveryTimer != nil {
					recoveryTimer.Stop()
					recoveryTimer = nil
				}
				if !a.inFallback && fallbackTimer == nil {
					fallbackTimer = time.NewTimer(a.cfg.FallbackDelay)
				}
			case isRecoverableState(tr.NewState):
				if fallbackTimer != nil {
					fallbackTimer.Stop()
					fallbackTimer = nil
				}
				if a.inFallback && recoveryTimer == nil {
					recoveryTimer = time.NewTimer(a.cfg.RecoveryDelay)
				}
			}

		case <-fallbackC:
			fallbackTimer = nil
			a.switchScene(a.cfg.SceneBRB)
			a.inFallback = true
			a.inFallbackFlag.Store(true)

		case <-recoveryC:
			recoveryTimer = nil
			a.switchScene(a.cfg.SceneLive)
			a.inFallback = false
			a.inFallbackFlag.Store(false)
		}
	}
}

func isFallbackState(s health.State) bool {
	return s == health.Critical || s == health.Down
}

func isRecoverableState(s health.State) bool {
	return s == health.Healthy || s == health.Degraded
}

func (a *Actuator) switchScene(name string) {
	if err := a.client.SwitchScene(name); err != nil {
		a.log().WithError(err).WithField("scene", name).Warn("scene switch failed")
		return
	}
	a.log().WithField("scene", name).Info("switched scene")
}

// Status reports the actuator's view of OBS connectivity and fallback state.
type Status struct {
	Connected  bool `json:"connected"`
	InFallback bool `json:"in_fallback"`
}

// GetStatus returns a thread-safe snapshot of actuator state, safe to call
// from any goroutine (e.g. an HTTP status handler) while Run is active.
func (a *Actuator) GetStatus() Status {
	return Status{Connected: a.connectedFlag.Load(), InFallback: a.inFallbackFlag.Load()}
}

func (a *Actuator) log() *logrus.Entry {
	logger := a.logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return logger.WithField("component", "obs-actuator")
}
