package api

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-org/streamhub/internal/api/handlers"
	"github.com/your-org/streamhub/internal/api/ws"
	"github.com/your-org/streamhub/internal/auth"
	"github.com/your-org/streamhub/internal/config"
	"github.com/your-org/streamhub/internal/loop"
	"github.com/your-org/streamhub/internal/media"
	"github.com/your-org/streamhub/internal/queue"
	"github.com/your-org/streamhub/internal/registry"
	"github.com/your-org/streamhub/internal/scheduler"
	"github.com/your-org/streamhub/internal/storage"
)

type RouterConfig struct {
	APIKey    string
	DB        *storage.PostgresStore
	Registry  *registry.Registry
	Scheduler *scheduler.Engine
	Loops     *loop.Manager
	Fetcher   *media.Fetcher
	Hub       *ws.Hub
	Archive   *storage.ArchiveStore // nil when archiving is disabled
	Producer  *queue.Producer       // nil when the NATS mirror is disabled
	Media     config.MediaConfig
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(LoggingMiddleware())
	r.Use(cors.Default())

	// System endpoints (no auth)
	systemH := handlers.NewSystemHandler(cfg.DB, cfg.Archive, cfg.Producer)
	r.GET("/healthz", systemH.Healthz)
	r.GET("/readyz", systemH.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 (with auth)
	v1 := r.Group("/v1")
	v1.Use(auth.APIKeyMiddleware(cfg.APIKey))

	// WebSocket
	v1.GET("/ws", cfg.Hub.HandleWS)

	// Media library
	mediaH := handlers.NewMediaHandler(cfg.DB, cfg.Registry, cfg.Fetcher, cfg.Archive, cfg.Media)
	v1.POST("/media", mediaH.Upload)
	v1.POST("/media/import", mediaH.Import)
	v1.GET("/media", mediaH.List)
	v1.DELETE("/media/:id", mediaH.Delete)

	// Platforms
	platformH := handlers.NewPlatformHandler(cfg.DB, cfg.Registry)
	v1.POST("/platforms", platformH.Create)
	v1.GET("/platforms", platformH.List)
	v1.GET("/platforms/:id", platformH.Get)
	v1.PUT("/platforms/:id", platformH.Update)
	v1.DELETE("/platforms/:id", platformH.Delete)

	// Streams
	streamH := handlers.NewStreamHandler(cfg.DB, cfg.Registry, cfg.Loops)
	v1.POST("/streams/start", streamH.Start)
	v1.POST("/streams/stop", streamH.Stop)
	v1.GET("/streams/active", streamH.Active)
	v1.GET("/streams/history", streamH.History)

	// Loop configs
	loopH := handlers.NewLoopHandler(cfg.Loops)
	v1.POST("/loops", loopH.CreateConfig)
	v1.GET("/loops/:id", loopH.GetConfig)
	v1.GET("/loop-sessions", loopH.ActiveSessions)

	// Schedules
	scheduleH := handlers.NewScheduleHandler(cfg.DB, cfg.Scheduler)
	v1.POST("/schedules", scheduleH.Create)
	v1.GET("/schedules", scheduleH.List)
	v1.GET("/schedules/:id", scheduleH.Get)
	v1.PUT("/schedules/:id", scheduleH.Update)
	v1.DELETE("/schedules/:id", scheduleH.Delete)
	v1.GET("/schedules/:id/logs", scheduleH.Logs)

	return r
}
