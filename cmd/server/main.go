package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"fetcharr/internal/config"
	apphttp "fetcharr/internal/http"
	"fetcharr/internal/jobs"
	"fetcharr/internal/repository/sqlite"
	"fetcharr/internal/scheduler"
	"fetcharr/internal/semaphore"
	"fetcharr/internal/service"
	"fetcharr/internal/torrentqueue"
	"fetcharr/internal/transfer"
)

const (
	parsePendingCommand     = "torrents:parse_pending"
	processAddedCommand     = "torrents:process_added"
	processCompletedCommand = "torrents:process_completed"

	failExhaustedFlag = "--fail-exhausted"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		logger.Fatalf("open database: %v", err)
	}
	defer db.Close()

	torrentRepo := sqlite.NewTorrentRepository(db)
	if err := torrentRepo.Init(ctx); err != nil {
		logger.Fatalf("init torrent repository: %v", err)
	}

	var (
		slots    semaphore.Store
		lastRuns scheduler.LastRunStore
	)
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Fatalf("redis ping: %v", err)
		}
		slots = semaphore.NewRedisStore(rdb)
		lastRuns = scheduler.NewRedisLastRunStore(rdb)
		logger.Infof("using redis at %s for queue slots", cfg.Redis.Addr)
	} else {
		slots = semaphore.NewMemoryStore()
		lastRuns = scheduler.NewMemoryLastRunStore()
		logger.Info("redis not configured, queue slots are process-local")
	}

	client := transfer.NewQBittorrent(transfer.QBittorrentConfig{
		Host:     cfg.Transfer.Host,
		Username: cfg.Transfer.Username,
		Password: cfg.Transfer.Password,
	})
	if err := client.Login(ctx); err != nil {
		logger.Warnf("transfer client login: %v", err)
	}

	queue := torrentqueue.New(torrentqueue.Config{
		Repo:               torrentRepo,
		Client:             client,
		Trackers:           cfg.TrackerFor,
		Logger:             logger,
		DataDir:            cfg.Download.DataDir,
		CacheDir:           cfg.Download.CacheDir,
		DefaultSeedTime:    cfg.Transfer.DefaultSeedTime,
		RemoveOnCompletion: cfg.Transfer.RemoveOnCompletion,
	})

	runtime := jobs.NewRuntime(jobs.RuntimeConfig{
		Workers:     cfg.Runtime.Workers,
		Slots:       slots,
		QueueLimits: queueLimits(cfg),
		Logger:      logger,
	})

	sched := scheduler.New(scheduler.Config{
		TemplatePath: cfg.Scheduler.TemplatePath,
		PollInterval: cfg.Scheduler.PollInterval,
		Runtime:      runtime,
		LastRuns:     lastRuns,
		Slots:        slots,
		Resolve:      cfg.QueueFor,
		Logger:       logger,
	})

	runtime.Register(scheduler.TickCommand, sched.Tick)
	runtime.Register(parsePendingCommand, func(ctx context.Context, args []string) error {
		return queue.ParsePendingDownloads(ctx, hasFlag(args, failExhaustedFlag))
	})
	runtime.Register(processAddedCommand, func(ctx context.Context, _ []string) error {
		return queue.ProcessAddedTorrents(ctx)
	})
	runtime.Register(processCompletedCommand, func(ctx context.Context, _ []string) error {
		return queue.ProcessCompletedTorrents(ctx)
	})

	runtime.Start(ctx)

	if _, err := sched.Reschedule(ctx); err != nil {
		logger.Fatalf("seed scheduler: %v", err)
	}

	torrentService := service.NewTorrentService(torrentRepo)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	handler := apphttp.NewHandler(torrentService, runtime, slots, visibleQueues(cfg))
	handler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: router,
	}

	go func() {
		logger.Infof("listening on %s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("http server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("http shutdown: %v", err)
	}
	runtime.Stop()

	logger.Info("bye")
}

// queueLimits maps a queue name to its concurrency. Configured entries may
// route a command prefix onto a differently named queue, so both the prefix
// key and the queue name it points at resolve to the same limit.
func queueLimits(cfg config.Config) jobs.QueueLimitFunc {
	byName := make(map[string]int)
	for prefix := range cfg.Queues {
		resolved := cfg.QueueFor(prefix)
		byName[resolved.Queue] = resolved.Concurrency
	}
	return func(queue string) int {
		if limit, ok := byName[queue]; ok {
			return limit
		}
		return cfg.QueueFor(queue).Concurrency
	}
}

func visibleQueues(cfg config.Config) []string {
	seen := map[string]struct{}{scheduler.SchedulerQueue: {}, "torrents": {}}
	queues := []string{scheduler.SchedulerQueue, "torrents"}
	for prefix := range cfg.Queues {
		name := cfg.QueueFor(prefix).Queue
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		queues = append(queues, name)
	}
	return queues
}

func hasFlag(args []string, flag string) bool {
	for _, a := range args {
		if a == flag {
			return true
		}
	}
	return false
}
