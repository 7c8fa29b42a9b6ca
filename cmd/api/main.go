package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pratik-mahalle/fleetfix/internal/api/handlers"
	"github.com/pratik-mahalle/fleetfix/internal/api/router"
	"github.com/pratik-mahalle/fleetfix/internal/config"
	"github.com/pratik-mahalle/fleetfix/internal/db"
	"github.com/pratik-mahalle/fleetfix/internal/pkg/logger"
	"github.com/pratik-mahalle/fleetfix/internal/pkg/ratelimit"
	"github.com/pratik-mahalle/fleetfix/internal/pkg/tracing"
	"github.com/pratik-mahalle/fleetfix/internal/pkg/validator"
	"github.com/pratik-mahalle/fleetfix/internal/repository/postgres"
	"github.com/pratik-mahalle/fleetfix/internal/services"
	"github.com/pratik-mahalle/fleetfix/internal/whitelist"
	"github.com/pratik-mahalle/fleetfix/internal/worker"
	"github.com/pratik-mahalle/fleetfix/migrations"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.Init(logger.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		OutputPath: cfg.Logging.OutputPath,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.ErrorWithErr(err, "Hub exited with error")
		os.Exit(1)
	}
	log.Info("Hub stopped")
}

func run(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	shutdownTracing, err := tracing.Init(ctx, tracing.Config{
		ServiceName:  "fleetfix-hub",
		Endpoint:     cfg.Tracing.Endpoint,
		SamplingRate: cfg.Tracing.SamplingRate,
		Insecure:     cfg.Tracing.Insecure,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			log.ErrorWithErr(err, "Failed to flush traces")
		}
	}()

	conn, err := db.Open(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer conn.Close()

	applied, err := db.RunMigrations(ctx, conn.DB, migrations.GetFS())
	if err != nil {
		return err
	}
	log.WithFields(map[string]interface{}{
		"driver":  cfg.Database.Driver,
		"applied": len(applied),
	}).Info("Database ready")

	wl, err := whitelist.New(whitelist.Options{CustomScripts: cfg.Remediation.CustomScripts})
	if err != nil {
		return fmt.Errorf("failed to build command whitelist: %w", err)
	}

	// Repositories
	actionRepo := postgres.NewRemediationRepository(conn)
	hostRepo := postgres.NewHostRepository(conn)

	// Services
	notifier := services.NewNotificationService(services.NotificationOptions{
		SlackWebhookURL: cfg.Notification.SlackWebhookURL,
		SlackChannel:    cfg.Notification.SlackChannel,
		WebhookURL:      cfg.Notification.WebhookURL,
		WebhookSecret:   cfg.Notification.WebhookSecret,
		Timeout:         cfg.Notification.Timeout,
	}, log)
	defer notifier.Wait()

	hostSvc := services.NewHostService(hostRepo, cfg.Auth.BCryptCost, log, time.Now)
	remediationSvc := services.NewRemediationService(actionRepo, wl, hostSvc, log, services.RemediationOptions{
		NotifyOnSuccess:  cfg.Remediation.NotifyOnSuccess,
		DefaultListLimit: cfg.Remediation.DefaultListLimit,
	})
	reconciler := services.NewReconcileService(actionRepo, notifier, log, time.Now)
	dispatcher := services.NewDispatchService(actionRepo, wl, log, time.Now)
	checkInSvc := services.NewCheckInService(hostSvc, reconciler, dispatcher, log)

	// Background jobs
	scheduler, err := buildScheduler(ctx, cfg, log, reconciler, actionRepo)
	if err != nil {
		return err
	}

	checkInLimiter, apiLimiter, cleanup, err := buildLimiters(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	val := validator.New()
	h := &router.Handlers{
		Health:    handlers.NewHealthHandler(conn, log),
		CheckIn:   handlers.NewCheckInHandler(checkInSvc, log, val),
		Action:    handlers.NewActionHandler(remediationSvc, log, val),
		Host:      handlers.NewHostHandler(hostSvc, log, val),
		Whitelist: handlers.NewWhitelistHandler(wl),
	}

	srv := &http.Server{
		Addr: net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
		Handler: router.New(cfg, log, h, router.Deps{
			HostAuth:       hostSvc,
			CheckInLimiter: checkInLimiter,
			APILimiter:     apiLimiter,
		}),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.WithFields(map[string]interface{}{
			"addr":        srv.Addr,
			"environment": cfg.Server.Environment,
		}).Info("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		if err := scheduler.Start(gctx); err != nil {
			return err
		}
		<-gctx.Done()
		scheduler.Stop()
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// buildScheduler registers the timeout watchdog and the audit archiver when configured.
func buildScheduler(ctx context.Context, cfg *config.Config, log *logger.Logger, expirer *services.ReconcileService, source worker.AuditSource) (*worker.Scheduler, error) {
	scheduler := worker.NewScheduler(log)

	timeouts, err := worker.ParseTimeouts(cfg.Remediation.Timeouts)
	if err != nil {
		return nil, err
	}
	watchdog := worker.NewTimeoutWatchdog(expirer, timeouts, log, time.Now)
	if watchdog.Enabled() {
		if err := scheduler.Add(cfg.Remediation.WatchdogSchedule, watchdog); err != nil {
			return nil, err
		}
	} else {
		log.Info("Timeout watchdog disabled: no action timeouts configured")
	}

	if cfg.Archive.Enabled() {
		store, err := worker.NewS3Store(ctx, cfg.Archive)
		if err != nil {
			return nil, err
		}
		archiver := worker.NewAuditArchiver(source, store, cfg.Archive.Prefix, cfg.Archive.SettleWindow, log)
		if err := scheduler.Add(cfg.Archive.Schedule, archiver); err != nil {
			return nil, err
		}
	}

	return scheduler, nil
}

// buildLimiters picks Redis when enabled so replicas share check-in budgets, and
// falls back to per-process limiters otherwise.
func buildLimiters(ctx context.Context, cfg *config.Config, log *logger.Logger) (checkIn, api ratelimit.Limiter, cleanup func(), err error) {
	checkInPolicy := ratelimit.PerMinute(cfg.RateLimit.CheckInsPerMinute, cfg.RateLimit.Burst)
	apiPolicy := ratelimit.Policy{PerSecond: cfg.RateLimit.APIRequestsPerSec, Burst: cfg.RateLimit.APIBurst}

	if cfg.Redis.Enabled {
		client, err := ratelimit.NewRedisClient(ctx, cfg.Redis.Addr(), cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return nil, nil, nil, err
		}
		log.WithFields(map[string]interface{}{"addr": cfg.Redis.Addr()}).Info("Using Redis rate limiter")
		return ratelimit.NewRedisLimiter(client, checkInPolicy, "fleetfix:ratelimit:checkin:"),
			ratelimit.NewRedisLimiter(client, apiPolicy, "fleetfix:ratelimit:api:"),
			func() { _ = client.Close() },
			nil
	}

	memCheckIn := ratelimit.NewMemoryLimiter(checkInPolicy)
	memAPI := ratelimit.NewMemoryLimiter(apiPolicy)
	go memCheckIn.RunCleanup(ctx, 5*time.Minute)
	go memAPI.RunCleanup(ctx, 5*time.Minute)
	return memCheckIn, memAPI, func() {}, nil
}
