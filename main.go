package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	apirest "github.com/kasuganosora/worldsrv/api/rest"
	apiws "github.com/kasuganosora/worldsrv/api/ws"
	"github.com/kasuganosora/worldsrv/audit"
	"github.com/kasuganosora/worldsrv/cache"
	"github.com/kasuganosora/worldsrv/central"
	"github.com/kasuganosora/worldsrv/config"
	dbadapter "github.com/kasuganosora/worldsrv/db"
	"github.com/kasuganosora/worldsrv/game/expedition"
	"github.com/kasuganosora/worldsrv/game/field"
	"github.com/kasuganosora/worldsrv/game/miniroom"
	"github.com/kasuganosora/worldsrv/game/party"
	"github.com/kasuganosora/worldsrv/game/player"
	"github.com/kasuganosora/worldsrv/mailbox"
	mw "github.com/kasuganosora/worldsrv/middleware"
	"github.com/kasuganosora/worldsrv/model"
	"github.com/kasuganosora/worldsrv/resource"
	"github.com/kasuganosora/worldsrv/scheduler"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

func main() {
	cfgPath := "config/config.yaml"
	if len(os.Args) > 1 {
		cfgPath = os.Args[1]
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// ---- Logger ----
	var logger *zap.Logger
	var logErr error
	if cfg.Server.Debug {
		logger, logErr = zap.NewDevelopment()
	} else {
		logger, logErr = zap.NewProduction()
	}
	if logErr != nil {
		log.Fatalf("logger: %v", logErr)
	}
	defer logger.Sync()
	logger = logger.With(zap.String("role", cfg.Server.Role), zap.Int32("channel_id", cfg.Server.ChannelID))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---- Database ----
	db, err := dbadapter.Open(cfg.Database)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	if err := model.AutoMigrate(db); err != nil {
		log.Fatalf("db migrate: %v", err)
	}
	logger.Info("DB initialized")

	// ---- Audit ----
	auditSvc := audit.New(db, logger)
	defer auditSvc.Stop(context.Background())

	// ---- Cache / PubSub ----
	cacheConfig := cache.CacheConfig{
		RedisAddr:       cfg.Cache.RedisAddr,
		RedisPassword:   cfg.Cache.RedisPassword,
		RedisDB:         cfg.Cache.RedisDB,
		LocalGCInterval: cfg.Cache.LocalGCInterval,
		LocalPubSubBuf:  cfg.Cache.LocalPubSubBuf,
	}
	c, err := cache.NewCache(cacheConfig)
	if err != nil {
		log.Fatalf("cache: %v", err)
	}
	pubsub, err := cache.NewPubSub(cacheConfig)
	if err != nil {
		log.Fatalf("pubsub: %v", err)
	}
	logger.Info("Cache initialized")

	// ---- Game data ----
	res := resource.NewLoader(cfg.Game.DataPath)
	if err := res.Load(); err != nil {
		logger.Warn("resource load warning", zap.Error(err))
	} else {
		logger.Info("game data loaded",
			zap.Int("items", len(res.Items)),
			zap.Int("expeditions", len(res.Expeditions)))
	}

	// ---- Scheduler ----
	sched := scheduler.New(logger)
	defer sched.Stop()

	// ---- Central: expedition registry ----
	if cfg.Server.HasCentral() {
		prefix := cfg.Central.TopicPrefix
		users := central.NewUserStorage(c, prefix)
		svc := expedition.NewService(
			expedition.NewRegistry(),
			party.NewManager(cache.NewSequence(c, "party_id"), logger),
			cache.NewSequence(c, "expedition_id"),
			res,
			users,
			central.NewRelay(pubsub, prefix, logger),
			logger,
		).WithAudit(auditSvc)
		if err := central.NewServer(pubsub, prefix, svc, users, logger).Start(ctx); err != nil {
			log.Fatalf("central: %v", err)
		}
		sched.AddTicker("expedition_stats", time.Minute, func() {
			online, err := users.Online(ctx)
			if err != nil {
				logger.Warn("count online users failed", zap.Error(err))
			}
			logger.Debug("expedition registry",
				zap.Int("expeditions", svc.Registry().Len()),
				zap.Int("online_users", online))
		})
		logger.Info("central server started")
	}

	// ---- Gin HTTP Server ----
	if !cfg.Server.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(mw.TraceID(), mw.Logger(logger), mw.Recovery(logger))
	r.GET("/health", apirest.Health(db))

	var shops *miniroom.Manager
	if cfg.Server.HasChannel() {
		serials := cache.NewSequence(c, "item_sn")
		store := mailbox.NewStore(db, serials)
		maxSN, err := store.MaxSerial(ctx)
		if err != nil {
			log.Fatalf("mailbox: %v", err)
		}
		if err := serials.Seed(ctx, maxSN); err != nil {
			log.Fatalf("item serials: %v", err)
		}
		mail := mailbox.NewAccessor(store, logger)
		sm := player.NewSessionManager(logger)
		defer sm.CloseAllSessions(5 * time.Second)
		fields := field.NewManager(logger)

		shops = miniroom.NewManager(miniroom.Deps{
			Cache:     c,
			Mailbox:   mail,
			Items:     res,
			Serials:   serials,
			Scheduler: sched,
			Fields:    fields,
			Sessions:  sm,
			Audit:     auditSvc,
		}, miniroom.OptionsFromConfig(cfg.Game), logger)

		client := central.NewClient(pubsub, cfg.Central, cfg.Server.ChannelID, sm, logger)
		if err := client.Start(ctx); err != nil {
			log.Fatalf("central client: %v", err)
		}

		// ---- WS Router ----
		wsRouter := apiws.NewRouter(logger)
		apiws.NewGameHandlers(fields, client, logger).RegisterHandlers(wsRouter)
		apiws.NewExpeditionHandlers(client, logger).RegisterHandlers(wsRouter)
		apiws.NewMiniRoomHandlers(shops).RegisterHandlers(wsRouter)
		apiws.NewStoreBankHandlers(mail, auditSvc, logger).RegisterHandlers(wsRouter)

		wsH := apiws.NewHandler(c, cfg.Security, cfg.Game, cfg.Server.ChannelID,
			sm, fields, res, client, wsRouter, logger)
		r.GET("/ws", wsH.ServeWS)

		// ---- REST API routes ----
		api := r.Group("/api")
		api.Use(mw.RateLimit(ctx, rate.Limit(cfg.Security.RateLimitRPS), cfg.Security.RateLimitBurst))
		api.Use(mw.Auth(cfg.Security, c))
		api.GET("/mailbox", apirest.NewMailboxHandler(mail).List)
		sessionH := apirest.NewSessionHandler(c, cfg.Security)
		api.POST("/session/logout", sessionH.Logout)
		api.POST("/session/refresh", sessionH.Refresh)

		adminH := apirest.NewAdminHandler(sm, fields, shops, sched, logger)
		adminG := r.Group("/admin")
		adminG.Use(mw.IPWhitelist(cfg.Security.AdminIPs, logger))
		adminG.GET("/metrics", adminH.Metrics)
		adminG.GET("/shops", adminH.ListShops)
		adminG.POST("/shops/:employer/close", adminH.CloseShop)
		adminG.POST("/kick/:id", adminH.KickPlayer)

		sched.AddTicker("channel_stats", 5*time.Minute, func() {
			logger.Debug("channel stats",
				zap.Int("sessions", sm.Count()),
				zap.Int("fields", fields.Count()),
				zap.Int("shops", shops.Count()))
		})
	}

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{Addr: addr, Handler: r}
	go func() {
		logger.Info("Server listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server stopped", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	if shops != nil {
		shops.Shutdown(shutdownCtx)
	}
}
