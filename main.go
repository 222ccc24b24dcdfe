package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"platestyle/config"
	"platestyle/controllers"
	dbpkg "platestyle/db"
	"platestyle/logging"
	"platestyle/queue"
	"platestyle/router"
	"platestyle/services"
	"platestyle/storage"
	"platestyle/styles"
	"platestyle/tools"
	"platestyle/workers"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
)

/************************************************
/**** MARK: RUN MODES ****/
/************************************************/
const MODE_ALL = "all"
const MODE_API = "api"
const MODE_WORKER = "worker"

const shutdownTimeout = 15 * time.Second

func main() {
	configPath := flag.String("config", getenv("CONFIG_PATH", "config.json"), "path to the JSON config file")
	mode := flag.String("mode", getenv("MODE", MODE_ALL), "run mode: all, api or worker")
	flag.Parse()

	if err := run(*configPath, *mode); err != nil {
		slog.Error("platestyle stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(configPath, mode string) error {
	switch mode {
	case MODE_ALL, MODE_API, MODE_WORKER:
	default:
		return fmt.Errorf("unknown mode %q", mode)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("starting platestyle", "mode", mode, "queue_mode", cfg.Queue.Mode)

	if mode == MODE_WORKER && cfg.Queue.Mode != config.QUEUE_MODE_ASYNQ {
		return errors.New("worker mode requires queue mode asynq")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbpkg.SetConfigurations(cfg)
	database, err := dbpkg.Connect()
	if err != nil {
		return err
	}
	defer database.Close()

	catalog, err := styles.Load(cfg.StylesPath)
	if err != nil {
		return err
	}

	store, err := newStore(ctx, cfg)
	if err != nil {
		return err
	}

	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
	}

	clock := clockwork.NewRealClock()
	ai := tools.NewGeminiClient(tools.GeminiOptions{
		BaseURL:     cfg.AI.BaseURL,
		ApiKey:      cfg.AI.ApiKey,
		Model:       cfg.AI.Model,
		Timeout:     cfg.AITimeout(),
		MaxAttempts: cfg.AI.MaxAttempts,
	})
	processor := &workers.Processor{
		DB:      database,
		Store:   store,
		Catalog: catalog,
		AI:      ai,
		Clock:   clock,
		JobCost: cfg.Credits.JobCost,
	}

	// Dispatcher
	var (
		dispatcher queue.Dispatcher
		inline     *queue.InlineDispatcher
		stopInline context.CancelFunc
	)
	redisOpt := asynq.RedisClientOpt{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB}
	if cfg.Queue.Mode == config.QUEUE_MODE_ASYNQ {
		client := asynq.NewClient(redisOpt)
		defer client.Close()
		dispatcher = queue.NewAsynqDispatcher(client, queue.AsynqOptions{
			Queue:            cfg.Queue.Name,
			InteractiveQueue: cfg.Queue.InteractiveName,
			Timeout:          cfg.ProcessingTimeout(),
		})
	} else {
		// Inline runs get a grace period on shutdown before being cancelled.
		jobsCtx, cancelJobs := context.WithCancel(context.Background())
		defer cancelJobs()
		inline = queue.NewInlineDispatcher(jobsCtx, processor, cfg.Queue.InlineConcurrency, cfg.ProcessingTimeout())
		dispatcher = inline
		stopInline = cancelJobs
	}

	// Sweeper runs wherever jobs are processed.
	if mode != MODE_API || cfg.Queue.Mode == config.QUEUE_MODE_INLINE {
		sweeper := &workers.Sweeper{
			DB:                database,
			Dispatcher:        dispatcher,
			Processor:         processor,
			Clock:             clock,
			Interval:          cfg.SweepInterval(),
			PendingGrace:      cfg.PendingGrace(),
			ProcessingTimeout: cfg.ProcessingTimeout(),
		}
		sweeper.Start(ctx)
	}

	// Asynq worker
	var srv *asynq.Server
	if cfg.Queue.Mode == config.QUEUE_MODE_ASYNQ && mode != MODE_API {
		var mux *asynq.ServeMux
		srv, mux = workers.NewServer(redisOpt, workers.ServerOptions{
			Concurrency:      cfg.Queue.WorkerConcurrency,
			Queue:            cfg.Queue.Name,
			InteractiveQueue: cfg.Queue.InteractiveName,
		}, processor)
		if err := srv.Start(mux); err != nil {
			return fmt.Errorf("failed to start generation worker: %w", err)
		}
	}

	// HTTP API
	var httpServer *http.Server
	if mode != MODE_WORKER {
		var debouncer queue.Debouncer
		if rdb != nil {
			debouncer = queue.NewRedisDebouncer(rdb, cfg.DebounceWindow())
		} else {
			debouncer = queue.NewMemoryDebouncer(clock, cfg.DebounceWindow())
		}

		env := &controllers.Env{
			Config:  cfg,
			Clock:   clock,
			Users:   &services.UserService{DB: database, BcryptCost: cfg.Security.BcryptCost, SignupBonus: cfg.Credits.SignupBonus},
			Credits: &services.CreditService{DB: database, JobCost: cfg.Credits.JobCost},
			Admin:   &services.AdminService{DB: database},
			Jobs: &services.JobService{
				DB:           database,
				Store:        store,
				Catalog:      catalog,
				Dispatcher:   dispatcher,
				Debouncer:    debouncer,
				Clock:        clock,
				JobCost:      cfg.Credits.JobCost,
				MaxBytes:     cfg.Upload.MaxBytes,
				MaxDimension: cfg.Upload.MaxDimension,
				MaxPixels:    cfg.Upload.MaxPixels,
			},
			Store:   store,
			Catalog: catalog,
			Redis:   rdb,
		}

		if !logging.Logger.Enabled(ctx, slog.LevelDebug) {
			gin.SetMode(gin.ReleaseMode)
		}
		r := gin.New()
		if err := router.Initialize(r, database, env); err != nil {
			return err
		}

		httpServer = &http.Server{
			Addr:              ":" + cfg.ApiPort,
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			slog.Info("platestyle listening", "port", cfg.ApiPort)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("http server failed", "error", err)
				stop()
			}
		}()
	}

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if httpServer != nil {
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Warn("http shutdown incomplete", "error", err)
		}
	}
	if srv != nil {
		srv.Shutdown()
	}
	if inline != nil {
		done := make(chan struct{})
		go func() {
			inline.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-shutdownCtx.Done():
			slog.Warn("cancelling in-flight generations")
			stopInline()
			<-done
		}
	}
	slog.Info("shutdown complete")
	return nil
}

// newStore returns the S3-backed store when an endpoint is configured, else the inline store.
func newStore(ctx context.Context, cfg config.Configuration) (*storage.Multi, error) {
	if !cfg.ObjectStorageEnabled() {
		slog.Warn("no object storage configured, images are kept inline in the database")
		return storage.NewMulti(nil), nil
	}

	s3, err := storage.NewS3Store(storage.S3Config{
		Endpoint:  cfg.Storage.Endpoint,
		AccessKey: cfg.Storage.AccessKey,
		SecretKey: cfg.Storage.SecretKey,
		Bucket:    cfg.Storage.Bucket,
		Region:    cfg.Storage.Region,
		UseSSL:    cfg.Storage.UseSSL,
	})
	if err != nil {
		return nil, err
	}
	if err := s3.EnsureBucket(ctx); err != nil {
		return nil, err
	}
	slog.Info("object storage ready", "endpoint", cfg.Storage.Endpoint, "bucket", cfg.Storage.Bucket)
	return storage.NewMulti(s3), nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
