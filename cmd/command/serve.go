package command

import (
	"context"
	"net/http"
	"time"
	"waitline/internal/auth"
	"waitline/internal/config"
	"waitline/internal/handlers"
	"waitline/internal/logger"
	"waitline/internal/metrics"
	"waitline/internal/presence"
	"waitline/internal/queue"
	"waitline/internal/storage"
	"waitline/internal/tasks"
	"waitline/internal/ws"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

type Serve struct {
	Logger *zap.Logger
}

func (cmd Serve) Command(ctx context.Context, cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "run the HTTP API, websocket hub and scheduler",
		RunE: func(_ *cobra.Command, _ []string) error {
			return cmd.main(ctx, cfg)
		},
	}
}

func (cmd Serve) main(ctx context.Context, cfg *config.Config) error {
	log := cmd.Logger
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := connect(cfg, log)
	if err != nil {
		return err
	}
	if err := storage.Migrate(db); err != nil {
		return errors.Wrap(err, "serve: migrate")
	}
	store := openQueueStore(cfg, db, log)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	hub := ws.NewHub(log)
	go hub.Run(ctx)

	svcCfg := serviceConfig(cfg, log)
	svcCfg.Recorder = metrics.NewProm(reg)
	svcCfg.Notifier = hub

	var heartbeats handlers.Presence
	if cfg.Redis.Enabled {
		rdb, err := storage.InitRedis(ctx, cfg.Redis)
		if err != nil {
			return errors.Wrap(err, "serve: failed to connect to redis")
		}
		defer rdb.Close()

		// events go through redis so every instance's hub sees them
		svcCfg.Notifier = ws.NewRedisNotifier(rdb, log)
		go func() {
			if err := ws.Relay(ctx, rdb, hub, log); err != nil {
				log.Error("event relay stopped", zap.Error(err))
			}
		}()

		tracker := presence.NewRedisTracker(rdb, cfg.Queue.PresenceTTL)
		svcCfg.Staff = tracker
		heartbeats = tracker
	}

	svc := queue.NewService(store, svcCfg)

	planner := tasks.NewPlanner(svc, store, log)
	scheduler, err := planner.Start(ctx, cfg.Tasks)
	if err != nil {
		return errors.Wrap(err, "serve: scheduler")
	}
	defer scheduler.Stop()

	issuer := auth.NewIssuer(cfg.Auth)

	r := gin.New()
	r.Use(gin.Recovery(), logger.Middleware(log))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.AllowOrigins,
		AllowMethods:     []string{"GET", "POST", "PATCH", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", auth.KioskKeyHeader},
		ExposeHeaders:    []string{"Content-Length", "Retry-After"},
		AllowCredentials: true,
	}))

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	handlers.RegisterRoutes(r, handlers.Routes{
		Auth:      handlers.NewAuthHandler(storage.NewStaffRepository(db), issuer, log),
		Queue:     handlers.NewQueueHandler(svc, store, issuer, heartbeats, log),
		Issuer:    issuer,
		KioskKeys: cfg.Auth.KioskKeys,
		WebSocket: hub.Handler,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server started", zap.String("addr", srv.Addr), zap.String("queue_store", cfg.Queue.Store))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return errors.Wrap(err, "serve: listen")
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
