package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"attendance/internal/attendance"
	"attendance/internal/config"
	"attendance/internal/embeddings"
	"attendance/internal/frame"
	"attendance/internal/handlers"
	"attendance/internal/inference"
	"attendance/internal/logger"
	"attendance/internal/matcher"
	"attendance/internal/pipeline"
	"attendance/internal/remote"
	"attendance/internal/repository/sqlite"
	"attendance/internal/routes"
	"attendance/internal/schedule"
	ws "attendance/internal/services/websocket"
	"attendance/internal/session"
)

type App struct {
	config   *config.Config
	logger   *logger.Logger
	db       *sqlite.DB
	engine   *inference.Engine
	channel  *frame.Channel
	store    *embeddings.Store
	watcher  *embeddings.Watcher
	resolver *schedule.Resolver
	tracker  *session.Tracker
	syncer   *attendance.Syncer
	pipeline *pipeline.Pipeline
	emitter  *pipeline.Emitter
	hub      *ws.HubService
	server   *http.Server

	// Tracks the pipeline, emitter and watcher goroutines so Stop can wait
	// for them before freeing the inference engine underneath them.
	stages sync.WaitGroup
}

func NewApp() (*App, error) {
	cfg := config.Load()
	log := logger.NewLogger(cfg)

	if err := os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	db, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Models failing to load is fatal; there is no degraded mode without
	// a working detector and embedder.
	engine, err := inference.NewEngine(cfg, log)
	if err != nil {
		db.Close()
		return nil, err
	}

	if _, err := os.Stat(cfg.DatasetDir); err != nil {
		engine.Close()
		db.Close()
		return nil, fmt.Errorf("dataset directory missing: %w", err)
	}

	store := embeddings.NewStore(cfg.DatasetDir, log)
	if err := store.Reload(engine); err != nil {
		engine.Close()
		db.Close()
		return nil, fmt.Errorf("initial embedding load failed: %w", err)
	}

	logRepo := sqlite.NewLogRepository(db)
	schedRepo := sqlite.NewScheduleRepository(db)
	client := remote.NewClient(cfg, log)

	resolver := schedule.NewResolver(schedRepo, client, cfg.CameraRooms, schedule.Options{
		PreClassGrace: cfg.PreClassGrace,
		LateThreshold: cfg.LateThreshold,
	}, log)

	queue := attendance.NewQueue(logRepo, log)
	tracker := session.NewTracker(resolver, queue, session.Options{
		CameraID:          cfg.CameraID,
		AbsenceTimeout:    cfg.AbsenceTimeout,
		AbsenceCheckEvery: cfg.AbsenceCheckEvery,
		ScheduleRecheck:   cfg.ScheduleRecheck,
		CleanupTimeout:    cfg.SessionCleanup,
	}, log)

	syncer := attendance.NewSyncer(logRepo, client, log, cfg.SyncInterval, cfg.SyncBatchSize,
		time.Duration(cfg.LogRetentionDays)*24*time.Hour)

	channel := frame.NewChannel()
	hub := ws.NewHubService(log)
	p := pipeline.New(channel, store, engine, engine, matcher.New(cfg.RecognitionThreshold), tracker, log)
	emitter := pipeline.NewEmitter(p, hub, cfg.EmitInterval, log)
	watcher := embeddings.NewWatcher(store, cfg.DatasetDir, cfg.ReloadDebounce, log)

	router := routes.SetupRoutes(routes.Deps{
		Config:    cfg,
		Logger:    log,
		Channel:   channel,
		Store:     store,
		Tracker:   tracker,
		Hub:       hub,
		Logs:      logRepo,
		Schedules: schedRepo,
	})

	return &App{
		config:   cfg,
		logger:   log,
		db:       db,
		engine:   engine,
		channel:  channel,
		store:    store,
		watcher:  watcher,
		resolver: resolver,
		tracker:  tracker,
		syncer:   syncer,
		pipeline: p,
		emitter:  emitter,
		hub:      hub,
		server: &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.Port),
			Handler: router,
		},
	}, nil
}

// Run starts every background stage and blocks serving HTTP until the
// context is cancelled.
func (a *App) Run(ctx context.Context) error {
	go a.hub.Run()
	go handlers.StreamListener(ctx, a.channel, a.logger, a.config)

	a.stages.Add(3)
	go func() {
		defer a.stages.Done()
		if err := a.watcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			a.logger.Error("Dataset watcher stopped, hot reload disabled: %v", err)
		}
	}()
	go func() {
		defer a.stages.Done()
		a.pipeline.Run(ctx)
	}()
	go func() {
		defer a.stages.Done()
		a.emitter.Run(ctx)
	}()

	if a.config.OfflineMode {
		a.logger.Warning("Offline mode: schedule refresh and log sync disabled")
	} else {
		go a.resolver.RunRefresh(ctx, a.config.CacheRefresh)
		go a.syncer.Run(ctx)
	}

	fmt.Printf("🎓 Attendance Engine\n")
	fmt.Printf("📍 URL: http://localhost:%d\n", a.config.Port)
	fmt.Printf("🎥 Frame stream: %s\n", a.config.StreamAddr)
	fmt.Printf("📁 Faces: %s\n", a.config.DatasetDir)
	fmt.Printf("🧠 Known identities: %d\n", a.store.Current().Count())

	go func() {
		<-ctx.Done()
		a.Stop()
	}()

	err := a.server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Stop tears down in dependency order: no new frames, then the pipeline,
// then the stores. The engine must not be freed while the detection loop
// can still be inside a forward pass, so the stages are joined first.
func (a *App) Stop() {
	a.channel.Close()
	a.stages.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	a.server.Shutdown(shutdownCtx)

	a.engine.Close()
	if err := a.db.Close(); err != nil {
		a.logger.Error("Database close failed: %v", err)
	}
	a.logger.Info("Shutdown complete")
}
