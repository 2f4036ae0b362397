// Package relay transmuxes or re-encodes an SRT ingest to one or more RTMP
// destinations via ffmpeg child processes, grounded on relay.py.
package relay

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"broadcastd/internal/supervisor"
)

// Relay owns one ffmpeg child process pushing one ingest URL to one RTMP
// destination.
type Relay struct {
	Name      string
	InputURL  string
	RTMPURL   string
	Transmux  bool
	Logger    *logrus.Logger

	sup *supervisor.Supervisor
}

// New constructs a Relay, not yet started.
func New(name, inputURL, rtmpURL string, transmux bool, logger *logrus.Logger) *Relay {
	r := &Relay{
		Name:     name,
		InputURL: inputURL,
		RTMPURL:  rtmpURL,
		Transmux: transmux,
		Logger:   logger,
	}
	r.sup = supervisor.New(supervisor.Config{
		Name:        "relay-" + name,
		Build:       r.buildArgv,
		MaxRestarts: 10,
		Backoff:     2 * time.Second,
		GracePeriod: 5 * time.Second,
		Logger:      logger,
	})
	return r
}

func (r *Relay) buildArgv() ([]string, bool) {
	bin, err := exec.LookPath("ffmpeg")
	if err != nil {
		return nil, false
	}
	argv := []string{bin, "-hide_banner", "-loglevel", "warning", "-i", r.InputURL}
	if r.Transmux {
		argv = append(argv, "-c", "copy")
	} else {
		argv = append(argv,
			"-c:v", "libx264", "-preset", "veryfast", "-b:v", "4000k",
			"-c:a", "aac", "-b:a", "128k",
		)
	}
	argv = append(argv, "-f", "flv", r.RTMPURL)
	return argv, true
}

// Start launches the ffmpeg child process.
func (r *Relay) Start(ctx context.Context) error {
	r.log().WithField("target", maskStreamKey(r.RTMPURL)).Info("starting relay")
	if err := r.sup.Start(ctx); err != nil {
		return fmt.Errorf("relay %s: %w", r.Name, err)
	}
	return nil
}

// Stop terminates the ffmpeg child process.
func (r *Relay) Stop() {
	r.sup.Stop()
}

// Status reports the relay's current name, activity, and restart count.
type Status struct {
	Name     string `json:"name"`
	Active   bool   `json:"active"`
	Restarts int    `json:"restarts"`
}

// GetStatus returns a point-in-time snapshot.
func (r *Relay) GetStatus() Status {
	return Status{Name: r.Name, Active: r.sup.Running(), Restarts: r.sup.Restarts()}
}

func (r *Relay) log() *logrus.Entry {
	logger := r.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return logger.WithField("relay", r.Name)
}

// maskStreamKey replaces the final path segment of an RTMP URL (the stream
// key) with "***" before logging, unless that segment is 4 characters or
// shorter, in which case it's logged verbatim — matching relay.py's masking
// with the short-segment carve-out.
func maskStreamKey(rtmpURL string) string {
	idx := strings.LastIndex(rtmpURL, "/")
	if idx == -1 || idx == len(rtmpURL)-1 {
		return rtmpURL
	}
	segment := rtmpURL[idx+1:]
	if len(segment) <= 4 {
		return rtmpURL
	}
	return rtmpURL[:idx+1] + "***"
}
