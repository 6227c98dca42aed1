package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"blogmusic/cache"
	"blogmusic/config"
	"blogmusic/core/auth"
	"blogmusic/core/dedup"
	"blogmusic/core/playback"
	"blogmusic/core/resolver"
	"blogmusic/db"
	"blogmusic/logger"
	"blogmusic/repository"
	"blogmusic/storage"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

// HealthCheck reports whether one dependency is reachable.
type HealthCheck func(ctx context.Context) error

// NewRouter 注册所有路由
func NewRouter(h *APIHandler, gatherer prometheus.Gatherer, checks map[string]HealthCheck) *mux.Router {
	router := mux.NewRouter()
	router.Use(corsMiddleware)
	router.Use(requestLogger(h.metrics))

	// 用户认证
	router.HandleFunc("/api/auth/login", h.LoginHandler).Methods(http.MethodPost, http.MethodOptions)
	router.HandleFunc("/api/auth/register", h.RegisterHandler).Methods(http.MethodPost, http.MethodOptions)
	router.HandleFunc("/api/auth/me", h.AuthMiddleware(h.MeHandler)).Methods(http.MethodGet, http.MethodOptions)

	// 曲库（公开）
	router.HandleFunc("/api/music", h.ListMusicHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/music/submit", h.SubmitMusicHandler).Methods(http.MethodPost, http.MethodOptions)
	router.HandleFunc("/api/music/{id:[0-9]+}", h.GetMusicHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/music/{id:[0-9]+}/source", h.GetMusicSourceHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/music/{id:[0-9]+}/download", h.DownloadMusicHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/uploads/cover", h.AuthMiddleware(h.UploadCoverHandler)).Methods(http.MethodPost, http.MethodOptions)

	// 站点内容（公开）
	router.HandleFunc("/api/banners", h.GetBannersHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/popups/active", h.GetActivePopupsHandler).Methods(http.MethodGet)
	RegisterAnnouncementRoutes(router, NewAnnouncementHandler(h.announceRepo), h.AdminMiddleware)

	// 管理后台
	router.HandleFunc("/api/admin/stats", h.AdminMiddleware(h.StatsHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/admin/music", h.AdminMiddleware(h.AdminListMusicHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/admin/music/{id:[0-9]+}", h.AdminMiddleware(h.UpdateMusicHandler)).Methods(http.MethodPut)
	router.HandleFunc("/api/admin/music/{id:[0-9]+}", h.AdminMiddleware(h.DeleteMusicHandler)).Methods(http.MethodDelete)
	router.HandleFunc("/api/admin/music/{id:[0-9]+}/approve", h.AdminMiddleware(h.ApproveMusicHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/admin/music/{id:[0-9]+}/reject", h.AdminMiddleware(h.RejectMusicHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/admin/banners", h.AdminMiddleware(h.AdminGetBannersHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/admin/banners", h.AdminMiddleware(h.CreateBannerHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/admin/banners/{id}", h.AdminMiddleware(h.UpdateBannerHandler)).Methods(http.MethodPut)
	router.HandleFunc("/api/admin/banners/{id}", h.AdminMiddleware(h.DeleteBannerHandler)).Methods(http.MethodDelete)
	router.HandleFunc("/api/admin/popups", h.AdminMiddleware(h.AdminGetPopupsHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/admin/popups", h.AdminMiddleware(h.CreatePopupHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/admin/popups/{id}", h.AdminMiddleware(h.UpdatePopupHandler)).Methods(http.MethodPut)
	router.HandleFunc("/api/admin/popups/{id}", h.AdminMiddleware(h.DeletePopupHandler)).Methods(http.MethodDelete)

	// 播放器
	router.HandleFunc("/api/player/sessions", h.CreatePlayerSessionHandler).Methods(http.MethodPost, http.MethodOptions)
	player := router.PathPrefix("/api/player/{sid}").Subrouter()
	player.HandleFunc("", h.GetPlayerHandler).Methods(http.MethodGet)
	player.HandleFunc("", h.DeletePlayerSessionHandler).Methods(http.MethodDelete)
	player.HandleFunc("/play", h.PlayHandler).Methods(http.MethodPost)
	player.HandleFunc("/pause", h.PauseHandler).Methods(http.MethodPost)
	player.HandleFunc("/resume", h.ResumeHandler).Methods(http.MethodPost)
	player.HandleFunc("/seek", h.SeekHandler).Methods(http.MethodPost)
	player.HandleFunc("/volume", h.VolumeHandler).Methods(http.MethodPost)
	player.HandleFunc("/mute", h.MuteHandler).Methods(http.MethodPost)
	player.HandleFunc("/repeat", h.RepeatHandler).Methods(http.MethodPost)
	player.HandleFunc("/shuffle", h.ShuffleHandler).Methods(http.MethodPost)
	player.HandleFunc("/ended", h.EndedHandler).Methods(http.MethodPost)
	player.HandleFunc("/progress", h.ProgressHandler).Methods(http.MethodPost)
	player.HandleFunc("/duration", h.DurationHandler).Methods(http.MethodPost)
	router.HandleFunc("/ws/player/{sid}", h.PlayerWSHandler).Methods(http.MethodGet)

	router.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	router.HandleFunc("/healthz", healthHandler(checks)).Methods(http.MethodGet)
	return router
}

func healthHandler(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		status := map[string]string{"status": "ok"}
		code := http.StatusOK
		for name, check := range checks {
			if err := check(ctx); err != nil {
				status[name] = err.Error()
				status["status"] = "degraded"
				code = http.StatusServiceUnavailable
				continue
			}
			status[name] = "ok"
		}
		writeJSON(w, code, status)
	}
}

// NewPlayerRegistry builds the per-listener session registry. Each session probes
// candidate URLs over HTTP and reports outcomes to m.
func NewPlayerRegistry(cfg *config.Config, m *Metrics) *playback.Registry {
	probe := playback.NewHTTPProbe(cfg.ProbeTimeout)
	players := playback.NewRegistry(cfg.MaxPlayerSessions, cfg.PlayerSessionTTL, func(id string) *playback.Coordinator {
		return playback.NewCoordinator(resolver.Default, probe, nil,
			playback.WithObserver(m),
			playback.WithMaxAttempts(cfg.MaxPlayAttempts),
			playback.WithName(id))
	})
	m.WatchSessions(players.Len)
	return players
}

// Run wires every dependency and serves until ctx is cancelled.
func Run(ctx context.Context, cfg *config.Config) error {
	gormDB, err := db.ConnectGormDB(cfg)
	if err != nil {
		return err
	}
	defer db.CloseGormDB()

	if err := db.AutoMigrate(gormDB); err != nil {
		return err
	}

	musicRepo := repository.NewGormMusicRepository(gormDB)
	userRepo := repository.NewGormUserRepository(gormDB)
	if err := db.EnsureAdmin(ctx, userRepo, cfg); err != nil {
		return err
	}

	checks := map[string]HealthCheck{
		"database": func(ctx context.Context) error {
			sqlDB, err := gormDB.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}

	// Redis 不可用时降级为不缓存
	if err := cache.ConnectRedis(cfg); err != nil {
		logger.Warn("Redis unavailable, source cache disabled", logger.ErrorField(err))
		cache.CloseRedis()
		cache.RedisClient = nil
	} else {
		defer cache.CloseRedis()
		client := cache.RedisClient
		checks["redis"] = func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		}
		logger.Info("Successfully connected to Redis")
	}

	// MinIO 不可用时关闭封面上传
	var uploader storage.Uploader
	minioCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	store, err := storage.NewMinioStore(minioCtx, cfg)
	cancel()
	if err != nil {
		logger.Warn("MinIO unavailable, cover uploads disabled", logger.ErrorField(err))
	} else {
		uploader = store
	}

	keys, err := musicRepo.AllDedupKeys(ctx)
	if err != nil {
		return fmt.Errorf("failed to load dedup keys: %w", err)
	}
	seen := dedup.New(cfg.DedupCapacity, cfg.DedupFalsePositiveRate)
	seen.Load(keys)
	logger.Info("submission dedup index loaded", logger.Int("keys", len(keys)))

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := NewMetrics(reg)

	h := NewAPIHandler(Deps{
		Config:        cfg,
		Music:         musicRepo,
		Users:         userRepo,
		Banners:       repository.NewGormBannerRepository(gormDB),
		Announcements: repository.NewGormAnnouncementRepository(gormDB),
		Popups:        repository.NewGormPopupRepository(gormDB),
		Sources:       cache.NewSourceCache(cache.RedisClient, cfg.SourceCacheTTL, resolver.Default),
		Dedup:         seen,
		Uploader:      uploader,
		Tokens:        auth.NewTokenManager(cfg.JWTSecret, cfg.JWTTokenTTL),
		Players:       NewPlayerRegistry(cfg, metrics),
		Metrics:       metrics,
	})

	srv := &http.Server{
		Addr:        cfg.ServerAddr,
		Handler:     NewRouter(h, reg, checks),
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("HTTP server listening", logger.String("addr", cfg.ServerAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
