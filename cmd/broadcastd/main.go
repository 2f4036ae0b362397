// Command broadcastd runs the IRL bonded-uplink control plane: SRT ingest,
// per-streamer RTMP relay pipelines, the health state machine and its OBS
// actuator, and the WebSocket telemetry hub, behind a single HTTP surface.
package main

import (
	"context"
	"database/sql"
	"strconv"

	"github.com/gin-gonic/gin"

	"broadcastd/internal/api"
	"broadcastd/internal/config"
	"broadcastd/internal/geocode"
	"broadcastd/internal/health"
	"broadcastd/internal/hub"
	"broadcastd/internal/obs"
	"broadcastd/internal/persistence"
	"broadcastd/internal/pipeline"
	"broadcastd/internal/ports"
	"broadcastd/internal/protocol"
	"broadcastd/internal/relay"
	"broadcastd/pkg/auth"
	"broadcastd/pkg/database"
	"broadcastd/pkg/logging"
	"broadcastd/pkg/monitoring"
	broadcastdredis "broadcastd/pkg/redis"
	"broadcastd/pkg/server"
	"broadcastd/pkg/version"
)

func main() {
	logger := logging.NewLoggerWithService("broadcastd")
	cfg := config.Load(logger)

	db, err := database.Connect(database.Config{
		URL:             cfg.Database.URL,
		MaxOpenConns:    database.DefaultConfig().MaxOpenConns,
		MaxIdleConns:    database.DefaultConfig().MaxIdleConns,
		ConnMaxLifetime: database.DefaultConfig().ConnMaxLifetime,
	}, logger)
	if err != nil {
		logger.WithError(err).Fatal("database connection failed")
	}

	store := persistence.New(db, cfg.Database.AutoApprove)
	geo := geocode.NewNominatimLookup()
	relays := relay.NewStreamerManager(logger)
	allocator := ports.NewAllocator(cfg.SRT.BasePort, cfg.SRT.MaxLinks)

	obsTransitions := make(chan health.Transition, 16)
	obsClient := &obs.WSClient{Host: cfg.OBS.Host, Port: cfg.OBS.Port, Password: cfg.OBS.Password}
	actuator := obs.New(obsClient, obs.Config{
		SceneLive:     cfg.OBS.SceneLive,
		SceneBRB:      cfg.OBS.SceneBRB,
		FallbackDelay: cfg.OBS.FallbackDelay,
		RecoveryDelay: cfg.OBS.RecoveryDelay,
	}, obsTransitions, logger)

	pipelineCfg := pipeline.Config{
		Allocator:  allocator,
		MaxLinks:   cfg.SRT.MaxLinks,
		LatencyMs:  cfg.SRT.LatencyMs,
		Passphrase: cfg.SRT.Passphrase,
		Thresholds: health.Thresholds{
			Degraded: cfg.Health.ThresholdDegraded,
			Critical: cfg.Health.ThresholdCritical,
			Down:     cfg.Health.ThresholdDown,
		},
		Logger: logger,
	}

	h := hub.New(store, geo, pipelineCfg, relays, obsTransitions, logger)

	if cfg.Realtime.RedisURL != "" {
		redisClient, err := broadcastdredis.NewClientFromURL(context.Background(), cfg.Realtime.RedisURL)
		if err != nil {
			logger.WithError(err).Warn("realtime redis unavailable, dashboard events stay in-process only")
		} else {
			h.SetPublisher(broadcastdredis.NewTypedPubSub[protocol.DashboardEvent](redisClient))
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go actuator.Run(ctx)
	go h.Run(ctx, cfg.Health.CheckInterval)

	router := buildRouter(logger, cfg, h, store, db)

	srvCfg := server.DefaultConfig("broadcastd", strconv.Itoa(cfg.Server.Port))
	if err := server.Start(srvCfg, router, logger); err != nil {
		logger.WithError(err).Fatal("server exited with error")
	}
}

func buildRouter(logger logging.Logger, cfg config.Config, h *hub.Hub, store *persistence.Store, db *sql.DB) *gin.Engine {
	healthChecker := monitoring.NewHealthChecker("broadcastd", version.Version)
	healthChecker.AddCheck("database", monitoring.DatabaseHealthCheck(db))
	metricsCollector := monitoring.NewMetricsCollector("broadcastd", version.Version, version.GetShortCommit())

	router := server.SetupServiceRouter(logger, "broadcastd", healthChecker, metricsCollector)

	router.GET("/ws/field/:streamer_id", func(c *gin.Context) {
		apiKey := c.Query("key")
		if apiKey == "" {
			apiKey = c.GetHeader("X-API-Key")
		}
		h.ServeField(c.Writer, c.Request, c.Param("streamer_id"), apiKey)
	})
	router.GET("/ws/dashboard", func(c *gin.Context) {
		h.ServeDashboard(c.Writer, c.Request)
	})

	var jwtSecret []byte
	if cfg.Admin.JWTSecret != "" {
		jwtSecret = []byte(cfg.Admin.JWTSecret)
	}
	adminAuth := auth.ServiceAuthMiddleware(cfg.Admin.Token, jwtSecret)

	handlers := api.New(h, store, logger)
	handlers.Register(router, adminAuth)

	return router
}
