package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vaccie/valoverlay-discord/internal/adapters/broadcast"
	"github.com/vaccie/valoverlay-discord/internal/adapters/http/api"
	"github.com/vaccie/valoverlay-discord/internal/adapters/mq/queue"
	"github.com/vaccie/valoverlay-discord/internal/adapters/riot"
	"github.com/vaccie/valoverlay-discord/internal/adapters/settings"
	"github.com/vaccie/valoverlay-discord/internal/adapters/voice"
	"github.com/vaccie/valoverlay-discord/internal/app"
	"github.com/vaccie/valoverlay-discord/internal/config"
	"github.com/vaccie/valoverlay-discord/pkg/logger"
)

// HTTP server timeout constants.
const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 0 // websocket connections outlive any write deadline
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 10 * time.Second
)

func main() {
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}
	log := logger.Get()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env).
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		return
	}

	// Apply configured log level (fallback to info on invalid input).
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info",
			logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	settingsStore, err := settings.NewStore(settings.WithDataDir(cfg.DataDir))
	if err != nil {
		log.Error(ctx, "failed to open settings store", logger.Error(err))
		return
	}

	requestTimeout := time.Duration(cfg.RequestTimeoutMS) * time.Millisecond
	sessionStore := riot.NewStore(
		riot.WithLockfilePath(cfg.LockfilePath),
		riot.WithClientLogPath(cfg.ClientLogPath),
		riot.WithRemoteHost(cfg.RemoteHost),
		riot.WithVersionURL(cfg.VersionURL),
		riot.WithRequestTimeout(requestTimeout),
	)
	localGW := riot.NewLocalGateway(sessionStore, requestTimeout)
	remoteGW := riot.NewRemoteGateway(sessionStore, requestTimeout)
	fetcher := riot.NewFetcher(sessionStore, localGW, remoteGW, logger.Named("roster"))
	assets := riot.NewAssetStore(
		riot.WithAssetsURL(cfg.AssetsURL),
		riot.WithAssetTimeout(requestTimeout),
	)

	hub := broadcast.NewHub()
	defer hub.Close()

	speaking := queue.NewInMemoryQueue(queue.WithCapacity(cfg.SpeakingQueueSize))

	// No platform voice client is wired yet; the engine runs with the
	// placeholder until one is registered at this seam.
	voiceClient := voice.NewNoop()

	engine := app.New(
		sessionStore,
		fetcher,
		assets,
		voiceClient,
		settingsStore,
		hub,
		speaking,
		app.WithPollInterval(time.Duration(cfg.PollIntervalMS)*time.Millisecond),
		app.WithVoiceTimeout(time.Duration(cfg.VoiceTimeoutMS)*time.Millisecond),
		app.WithLogger(logger.Named("engine")),
	)
	if err := engine.Start(ctx); err != nil {
		log.Error(ctx, "failed to start engine", logger.Error(err))
		return
	}
	defer func() {
		if err := engine.Stop(context.Background()); err != nil {
			log.Warn(ctx, "engine stop failed", logger.Error(err))
		}
	}()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.NewRouter(engine, hub, settingsStore),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			os.Stderr.WriteString("HTTP server failed: " + err.Error() + "\n")
		}
	}()

	<-ctx.Done()
	log.Info(ctx, "shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	log.Info(ctx, "server stopped")
}
