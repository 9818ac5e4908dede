// Package reminderservice boots the reminder fulfillment HTTP service.
package reminderservice

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/kikilabs/kiki-reminders/internal/api"
	"github.com/kikilabs/kiki-reminders/internal/chat"
	"github.com/kikilabs/kiki-reminders/internal/config"
	"github.com/kikilabs/kiki-reminders/internal/dialogue"
	"github.com/kikilabs/kiki-reminders/internal/factory"
	"github.com/kikilabs/kiki-reminders/internal/health"
	"github.com/kikilabs/kiki-reminders/internal/logger"
	"github.com/kikilabs/kiki-reminders/internal/reminders"
	"github.com/kikilabs/kiki-reminders/internal/store"
)

// Run starts the reminder service HTTP server and blocks until shutdown or
// error.
func Run() error {
	log := logger.New("reminder-service")

	cfg, err := config.New()
	if err != nil {
		log.Error().Err(err).Msg("Failed to load configuration")
		return err
	}

	log.Info().
		Str("environment", cfg.Environment).
		Str("db_driver", cfg.DBDriver).
		Int("http_port", cfg.HTTPPort).
		Str("display_tz", cfg.DisplayTimeZone).
		Bool("chat_enabled", cfg.ChatBaseURL != "").
		Msg("Reminder service starting")

	ctx, stop := newServerContext()
	defer stop()

	st, chatClient, err := initDependencies(ctx, cfg, log)
	if err != nil {
		return err
	}

	router := buildRouter(st, chatClient, cfg, log)

	svcHealth := startHealthCheckers(ctx, cfg, log, st, chatClient)

	// Block startup until dependencies report healthy; fail fast otherwise.
	if err := waitUntilHealthy(ctx, cfg, svcHealth); err != nil {
		log.Error().Stack().Err(err).Msg("startup health check failed")
		return err
	}

	server := newHTTPServer(ctx, cfg, router)
	errCh := serveHTTP(server, log, cfg)

	select {
	case <-ctx.Done():
		log.Info().Msg("Shutting down server")
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctxShutdown); err != nil {
			log.Error().Stack().Err(err).Msg("Server forced to shutdown")
			return err
		}
		log.Info().Msg("Server exited")
		return nil
	case err := <-errCh:
		log.Error().Stack().Err(err).Msg("HTTP server failed")
		return err
	}
}

// initDependencies constructs the store and, when configured, the chat
// client.
func initDependencies(ctx context.Context, cfg *config.Config, log zerolog.Logger) (store.Store, *chat.Client, error) {
	st, err := factory.NewStore(ctx, cfg, log)
	if err != nil {
		log.Error().Stack().Err(err).Msg("Store adapter unavailable")
		return nil, nil, err
	}

	var chatClient *chat.Client
	if cfg.ChatBaseURL != "" {
		chatClient = chat.New(cfg.ChatBaseURL, cfg.ChatModel, cfg.ChatAPIKey)
	}
	return st, chatClient, nil
}

// buildRouter wires the dialogue router into HTTP routes.
func buildRouter(st store.Store, chatClient *chat.Client, cfg *config.Config, log zerolog.Logger) *mux.Router {
	svc := reminders.NewService(st).
		WithLookupPolicy(cfg.CandidateLimit, cfg.Tolerance())

	var chatSvc dialogue.ChatService
	if chatClient != nil {
		chatSvc = chatClient
	}
	router := dialogue.NewRouter(svc, chatSvc, cfg.Location(), log)
	return api.NewRouter(router)
}

// startHealthCheckers starts component checkers and the service-level
// aggregator, and binds the health endpoint to it.
func startHealthCheckers(ctx context.Context, cfg *config.Config, log zerolog.Logger, st store.Store, chatClient *chat.Client) *health.ServiceHealthChecker {
	probeTimeout := time.Duration(cfg.HealthProbeTimeoutSeconds) * time.Second
	interval := time.Duration(cfg.HealthIntervalSeconds) * time.Second

	var checkers []health.HealthChecker

	storeChecker := health.NewPingChecker("store", st, log, probeTimeout)
	go storeChecker.Start(ctx, interval)
	checkers = append(checkers, storeChecker)

	if chatClient != nil {
		chatChecker := health.NewPingChecker("chat", chatClient, log, probeTimeout)
		go chatChecker.Start(ctx, interval)
		checkers = append(checkers, chatChecker)
	}

	svcHealth := health.NewServiceHealthChecker(log, checkers...)
	go svcHealth.Start(ctx, interval)
	api.BindServiceHealth(svcHealth.IsHealthy)
	return svcHealth
}

func newHTTPServer(ctx context.Context, cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.GetHTTPAddr(),
		Handler:           handler,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
}

func serveHTTP(server *http.Server, log zerolog.Logger, cfg *config.Config) <-chan error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.HTTPPort).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	return errCh
}

// startupHealthTimeout is interval*2 with a 60 second floor, giving every
// checker at least one full probe cycle.
func startupHealthTimeout(healthIntervalSeconds int) int {
	timeout := healthIntervalSeconds * 2
	if timeout < 60 {
		return 60
	}
	return timeout
}

// waitUntilHealthy blocks until service health is healthy or the startup
// window expires.
func waitUntilHealthy(ctx context.Context, cfg *config.Config, svcHealth *health.ServiceHealthChecker) error {
	timeoutSeconds := startupHealthTimeout(cfg.HealthIntervalSeconds)
	deadline := time.Now().Add(time.Duration(timeoutSeconds) * time.Second)
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for {
		if svcHealth.IsHealthy() {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("startup aborted: dependencies not healthy within %d seconds", timeoutSeconds)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// newServerContext returns a cancellable context bound to SIGINT/SIGTERM.
func newServerContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
