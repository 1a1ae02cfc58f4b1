package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"tally/internal/auth"
	"tally/internal/cache"
	"tally/internal/config"
	httpx "tally/internal/http"
	"tally/internal/jobs"
	"tally/internal/logx"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, and the job worker when enabled",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			log := logx.New(cfg.LogLevel, cmd.ErrOrStderr())
			return serve(cfg, log)
		},
	}
}

func newWorkerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run only the stats refresh worker",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadStore()
			if err != nil {
				return err
			}
			log := logx.New(cfg.LogLevel, cmd.ErrOrStderr())
			gdb, err := openStore(cfg, log)
			if err != nil {
				return err
			}
			if !isPostgres(gdb) {
				return errors.New("the worker needs a postgres DATABASE_URL")
			}
			c, closeCache := openCache(cfg, log)
			defer closeCache()
			svc := httpx.NewServices(gdb, c, log, true)

			ctx, cancel := context.WithCancel(context.Background())
			done := runWorker(ctx, cfg, gdb, svc, log)
			waitForSignal()
			cancel()
			<-done
			return nil
		},
	}
}

func serve(cfg config.Config, log hclog.Logger) error {
	gdb, err := openStore(cfg, log)
	if err != nil {
		return err
	}
	c, closeCache := openCache(cfg, log)
	defer closeCache()

	// jobs are only claimed on postgres; elsewhere the cache is filled lazily
	withWorker := cfg.WorkerEnabled && isPostgres(gdb)
	svc := httpx.NewServices(gdb, c, log, withWorker)
	jwtSvc := auth.NewJWT(cfg.JWTSecret, cfg.TokenTTL)
	r := httpx.NewRouter(cfg, svc, jwtSvc, log)

	ctx, cancel := context.WithCancel(context.Background())
	workerDone := make(chan struct{})
	if withWorker {
		workerDone = runWorker(ctx, cfg, gdb, svc, log)
	} else {
		close(workerDone)
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case err = <-errCh:
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
	<-workerDone
	return err
}

// openCache returns Redis when REDIS_ADDR is set and reachable, otherwise an
// in-process cache.
func openCache(cfg config.Config, log hclog.Logger) (cache.Cache, func()) {
	if cfg.RedisAddr == "" {
		return cache.NewMemory(), func() {}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	rc, err := cache.NewRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.CacheTTL)
	if err != nil {
		log.Warn("redis unavailable, using in-process cache", "addr", cfg.RedisAddr, "error", err)
		return cache.NewMemory(), func() {}
	}
	return rc, func() { _ = rc.Close() }
}

// runWorker starts the job worker. It wakes on NOTIFY when the listener
// connects and falls back to polling otherwise. The returned channel closes
// once the worker has stopped.
func runWorker(ctx context.Context, cfg config.Config, gdb *gorm.DB, svc *httpx.Services, log hclog.Logger) chan struct{} {
	wlog := log.Named("worker")
	w := &jobs.Worker{
		ID:        workerID(),
		Repo:      &jobs.Repo{DB: gdb},
		Refresher: svc.Dashboard,
		Log:       wlog,
	}

	listener, err := jobs.Listen(cfg.DatabaseURL, wlog)
	if err != nil {
		wlog.Warn("job notifications unavailable, polling only", "error", err)
	} else {
		w.Wake = listener.Wake()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Run(ctx)
		if listener != nil {
			_ = listener.Close()
		}
	}()
	wlog.Info("worker started", "id", w.ID)
	return done
}

func waitForSignal() {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	<-ch
}
