// Package config loads broadcastd's settings from environment variables
// grouped by prefix, mirroring the Settings/SRTConfig/RTMPConfig/... layout
// in config.py. Uses pkg/config's GetEnv/GetEnvInt/GetEnvBool/LoadEnv helpers,
// the same way every other service in this codebase loads its .env file.
package config

import (
	"time"

	"github.com/sirupsen/logrus"

	"broadcastd/pkg/config"
)

// SRT holds bonded-ingest tunables (env prefix SRT_).
type SRT struct {
	BasePort   int
	LatencyMs  int
	MaxLinks   int
	Passphrase string
}

// RTMP holds the default push destinations (env prefix RTMP_).
type RTMP struct {
	PrimaryURL   string
	SecondaryURL string
}

// OBS holds the shared scene-switch actuator's connection and debounce
// settings (env prefix OBS_).
type OBS struct {
	Host          string
	Port          int
	Password      string
	SceneLive     string
	SceneBRB      string
	FallbackDelay time.Duration
	RecoveryDelay time.Duration
}

// Health holds the state-machine thresholds (env prefix HEALTH_).
type Health struct {
	ThresholdDegraded int
	ThresholdCritical int
	ThresholdDown     int
	CheckInterval     time.Duration
}

// Database holds the Postgres connection string and onboarding policy (env
// prefix DATABASE_/DB_).
type Database struct {
	URL         string
	AutoApprove bool
}

// Admin holds the bearer token gating the admin API (env prefix ADMIN_).
// JWTSecret, if set, additionally accepts signed admin session JWTs
// alongside the static Token.
type Admin struct {
	Token     string
	JWTSecret string
}

// Server holds the HTTP listen address (env prefix DASHBOARD_, matching the
// original's combined dashboard+API process).
type Server struct {
	Host string
	Port int
}

// Realtime holds the optional Redis mirror for dashboard events, letting a
// second process fan out reads without touching the ingest/relay core.
type Realtime struct {
	RedisURL string
}

// Config aggregates every settings group, mirroring config.py's root
// Settings object.
type Config struct {
	SRT      SRT
	RTMP     RTMP
	OBS      OBS
	Health   Health
	Database Database
	Admin    Admin
	Server   Server
	Realtime Realtime
}

// Load reads a .env file (if present) then assembles Config from the
// process environment, applying the same defaults as config.py.
func Load(logger *logrus.Logger) Config {
	config.LoadEnv(logger)

	return Config{
		SRT: SRT{
			BasePort:   config.GetEnvInt("SRT_BASE_PORT", 9000),
			LatencyMs:  config.GetEnvInt("SRT_LATENCY_MS", 500),
			MaxLinks:   config.GetEnvInt("SRT_MAX_LINKS", 4),
			Passphrase: config.GetEnv("SRT_PASSPHRASE", ""),
		},
		RTMP: RTMP{
			PrimaryURL:   config.GetEnv("RTMP_PRIMARY_URL", ""),
			SecondaryURL: config.GetEnv("RTMP_SECONDARY_URL", ""),
		},
		OBS: OBS{
			Host:          config.GetEnv("OBS_HOST", "localhost"),
			Port:          config.GetEnvInt("OBS_PORT", 4455),
			Password:      config.GetEnv("OBS_PASSWORD", ""),
			SceneLive:     config.GetEnv("OBS_SCENE_LIVE", "LIVE"),
			SceneBRB:      config.GetEnv("OBS_SCENE_BRB", "BRB"),
			FallbackDelay: time.Duration(config.GetEnvInt("OBS_FALLBACK_DELAY_S", 3)) * time.Second,
			RecoveryDelay: time.Duration(config.GetEnvInt("OBS_RECOVERY_DELAY_S", 5)) * time.Second,
		},
		Health: Health{
			ThresholdDegraded: config.GetEnvInt("HEALTH_THRESHOLD_DEGRADED", 70),
			ThresholdCritical: config.GetEnvInt("HEALTH_THRESHOLD_CRITICAL", 40),
			ThresholdDown:     config.GetEnvInt("HEALTH_THRESHOLD_DOWN", 10),
			CheckInterval:     time.Duration(config.GetEnvInt("HEALTH_CHECK_INTERVAL_S", 2)) * time.Second,
		},
		Database: Database{
			URL:         config.GetEnv("DATABASE_URL", config.GetEnv("DB_URL", "")),
			AutoApprove: config.GetEnvBool("DB_AUTO_APPROVE", false),
		},
		Admin: Admin{
			Token:     config.GetEnv("ADMIN_TOKEN", ""),
			JWTSecret: config.GetEnv("ADMIN_JWT_SECRET", ""),
		},
		Server: Server{
			Host: config.GetEnv("DASHBOARD_HOST", "0.0.0.0"),
			Port: config.GetEnvInt("DASHBOARD_PORT", 8000),
		},
		Realtime: Realtime{
			RedisURL: config.GetEnv("REALTIME_REDIS_URL", ""),
		},
	}
}
