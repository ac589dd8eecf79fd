// Package daemon runs the watcher as a long-lived service with its HTTP API.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	apiv1 "github.com/beam-cloud/runwatch/pkg/api/v1"
	"github.com/beam-cloud/runwatch/pkg/common"
	"github.com/beam-cloud/runwatch/pkg/repository"
	"github.com/beam-cloud/runwatch/pkg/rundir"
	"github.com/beam-cloud/runwatch/pkg/sink"
	"github.com/beam-cloud/runwatch/pkg/types"
	"github.com/beam-cloud/runwatch/pkg/watcher"
)

const initLockName = "restore"

type Daemon struct {
	Config      types.AppConfig
	RedisClient *common.RedisClient
	Repo        repository.StateRepository
	EventBus    *common.EventBus
	Events      *apiv1.EventLog
	Watcher     *watcher.Watcher
	httpServer  *http.Server
	echo        *echo.Echo
	ctx         context.Context
	cancelFunc  context.CancelFunc
}

// NewDaemon loads configuration and builds every component. Nothing runs
// until Start or StartAsync is called.
func NewDaemon() (*Daemon, error) {
	configManager, err := common.NewConfigManager[types.AppConfig]()
	if err != nil {
		return nil, err
	}
	return NewDaemonWithConfig(configManager.GetConfig())
}

func NewDaemonWithConfig(config types.AppConfig) (*Daemon, error) {
	ConfigureLogging(config)

	var redisClient *common.RedisClient
	var repo repository.StateRepository

	if config.IsLocalMode() {
		log.Info().Msg("running in local mode - snapshots kept in memory")
		repo = repository.NewStateMemoryRepository()
	} else {
		var err error
		redisClient, err = common.NewRedisClient(config.Database.Redis, common.WithClientName("RunwatchDaemon"))
		if err != nil {
			return nil, err
		}
		repo = repository.NewStateRedisRepository(redisClient)
	}

	ctx, cancel := context.WithCancel(context.Background())
	d := &Daemon{
		Config:      config,
		RedisClient: redisClient,
		Repo:        repo,
		EventBus:    common.NewEventBus(ctx, redisClient),
		Events:      apiv1.NewEventLog(0, 0),
		ctx:         ctx,
		cancelFunc:  cancel,
	}
	d.Events.Subscribe(d.EventBus)
	d.EventBus.On(common.EventPhaseChanged, logRunEvent)
	d.EventBus.On(common.EventAvailabilityChanged, logRunEvent)

	sinks := []sink.Sink{
		sink.NewRepositorySink(repo),
		sink.NewEventSink(d.EventBus),
	}
	if config.Sink.S3.IsConfigured() {
		s3Sink, err := sink.NewS3Sink(ctx, config.Sink.S3)
		if err != nil {
			log.Warn().Err(err).Msg("failed to create s3 sink - snapshots will not be uploaded")
		} else {
			sinks = append(sinks, s3Sink)
		}
	}

	d.Watcher = watcher.NewWatcher(
		config.Watch,
		rundir.LayoutFromConfig(config.Layout),
		watcher.WithRepository(repo),
		watcher.WithSink(sinks...),
		watcher.WithRedisLock(redisClient),
	)

	return d, nil
}

// ConfigureLogging applies the log level and format from config
func ConfigureLogging(config types.AppConfig) {
	level := zerolog.InfoLevel
	if config.DebugMode {
		level = zerolog.DebugLevel
	}
	if config.PrettyLogs {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})
	}
	log.Logger = log.Logger.Level(level)
}

func logRunEvent(e common.Event) {
	log.Debug().
		Str("event", string(e.Type)).
		Str("name", e.Data.Name).
		Str("phase", e.Data.State.Phase.String()).
		Bool("available", e.Data.State.Available).
		Msg("run event")
}

// initLock keeps replicas from restoring state at the same time
func (d *Daemon) initLock(name string) (func(), error) {
	if d.RedisClient == nil {
		return func() {}, nil
	}

	lockKey := common.Keys.WatcherInitLock(name)
	lock := common.NewRedisLock(d.RedisClient)

	if err := lock.Acquire(d.ctx, lockKey, common.RedisLockOptions{TtlS: 10, Retries: 50}); err != nil {
		return nil, err
	}

	return func() {
		if err := lock.Release(lockKey); err != nil {
			log.Error().Str("lock_key", lockKey).Err(err).Msg("failed to release init lock")
		}
	}, nil
}

func (d *Daemon) initHTTP() {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Pre(middleware.RemoveTrailingSlash())

	if d.Config.HTTP.EnablePrettyLogs {
		e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
			Format: "${time_rfc3339} ${method} ${uri} ${status} ${latency_human}\n",
		}))
	}

	e.Use(middleware.Recover())

	d.echo = e
	d.httpServer = &http.Server{
		Addr:    d.Addr(),
		Handler: e,
	}

	base := e.Group(apiv1.HttpServerBaseRoute)
	apiv1.NewHealthGroup(base.Group("/health"), d.RedisClient, d.Config.Watch.Roots)

	runs := base.Group("/runs")
	runs.Use(apiv1.NewTokenAuthMiddleware(d.Config.HTTP.AuthToken))
	apiv1.NewRunsGroup(runs, d.Watcher)

	events := base.Group("/events")
	events.Use(apiv1.NewTokenAuthMiddleware(d.Config.HTTP.AuthToken))
	apiv1.NewEventsGroup(events, d.Events)
}

// Handler returns the HTTP handler, building it if needed
func (d *Daemon) Handler() http.Handler {
	if d.echo == nil {
		d.initHTTP()
	}
	return d.echo
}

func (d *Daemon) Addr() string {
	return fmt.Sprintf("%s:%d", d.Config.HTTP.Host, d.Config.HTTP.Port)
}

// StartAsync restores stored runs and starts the watcher and HTTP server
// without blocking.
func (d *Daemon) StartAsync() error {
	release, err := d.initLock(initLockName)
	if err != nil {
		return fmt.Errorf("failed to acquire init lock: %w", err)
	}
	err = d.Watcher.Restore(d.ctx)
	release()
	if err != nil {
		return fmt.Errorf("failed to restore runs: %w", err)
	}

	if d.RedisClient != nil {
		go d.EventBus.Start()
	}
	go d.Watcher.Start(d.ctx)

	if !d.Config.HTTP.Enabled {
		return nil
	}

	d.Handler()
	lis, err := net.Listen("tcp", d.Addr())
	if err != nil {
		return fmt.Errorf("failed to listen on http: %w", err)
	}

	go func() {
		if err := d.httpServer.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("http server error")
		}
	}()

	log.Info().
		Str("host", d.Config.HTTP.Host).
		Int("port", d.Config.HTTP.Port).
		Msg("http server running")

	return nil
}

// Start runs the daemon until SIGINT or SIGTERM
func (d *Daemon) Start() error {
	if err := d.StartAsync(); err != nil {
		return err
	}

	terminationSignal := make(chan os.Signal, 1)
	signal.Notify(terminationSignal, os.Interrupt, syscall.SIGTERM)

	select {
	case <-terminationSignal:
		log.Info().Msg("termination signal received. shutting down...")
	case <-d.ctx.Done():
	}
	d.Shutdown()

	return nil
}

// Shutdown stops the watcher and HTTP server and closes Redis
func (d *Daemon) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), d.Config.ShutdownTimeout)
	defer cancel()

	d.cancelFunc()

	eg, ctx := errgroup.WithContext(ctx)

	if d.httpServer != nil {
		eg.Go(func() error {
			return d.httpServer.Shutdown(ctx)
		})
	}

	if d.RedisClient != nil {
		eg.Go(func() error {
			return d.RedisClient.Close()
		})
	}

	if err := eg.Wait(); err != nil {
		log.Error().Err(err).Msg("failed to shutdown daemon gracefully")
	}

	log.Info().Msg("daemon stopped")
}
