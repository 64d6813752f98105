package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bookineo/bookineo/pkg/httpclient"
	"github.com/bookineo/bookineo/services/app/internal/cli"
	"github.com/bookineo/bookineo/services/app/internal/config"
	"github.com/bookineo/bookineo/services/app/internal/gateway/rest"
	"github.com/bookineo/bookineo/services/app/internal/guard"
	"github.com/bookineo/bookineo/services/app/internal/quota"
	"github.com/bookineo/bookineo/services/app/internal/session"
	"github.com/bookineo/bookineo/services/app/internal/sessionstore"
)

// App wires the terminal application.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	sessionDB *sessionstore.Store
	client    *rest.Client
	sessions  *session.Manager
	shell     *cli.Shell
	metrics   *http.Server

	stopBackground context.CancelFunc
	background     sync.WaitGroup
}

// NewApp opens the session database and builds the application graph. The
// shell reads from in and writes to out.
func NewApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, in io.Reader, out io.Writer) (*App, error) {
	db, err := sessionstore.Open(ctx, cfg.SessionDB)
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}

	hcCfg := httpclient.DefaultConfig()
	hcCfg.Timeout = cfg.HTTPTimeout
	hcCfg.MaxRetries = cfg.HTTPMaxRetries
	hcCfg.MaxConnsPerHost = 4
	hc := httpclient.NewCircuitBreakerClient(
		httpclient.New(hcCfg),
		httpclient.DefaultCircuitBreakerConfig("bookineo-api"),
		logger,
	).WithFallback(rest.CircuitOpen)
	client := rest.New(rest.Config{BaseURL: cfg.APIURL, RefreshLeeway: cfg.RefreshLeeway}, hc, db, logger)

	sessions := session.NewManager(client, session.NewStore(), logger)
	shell := cli.NewShell(cli.Deps{
		Gateway:  client,
		Sessions: sessions,
		Guard:    guard.New(sessions),
		Quota:    quota.NewEnforcer(client, logger),
		Logger:   logger,
	}, in, out)

	a := &App{
		cfg:       cfg,
		logger:    logger,
		sessionDB: db,
		client:    client,
		sessions:  sessions,
		shell:     shell,
	}

	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		a.metrics = &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
	}

	return a, nil
}

// Run restores the persisted session, starts background work and runs the
// shell until it exits or ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	bootCtx, cancel := context.WithTimeout(ctx, a.cfg.BootstrapWait)
	a.sessions.Bootstrap(bootCtx)
	cancel()

	a.sessions.Subscribe()

	bgCtx, stop := context.WithCancel(ctx)
	a.stopBackground = stop

	a.background.Add(1)
	go func() {
		defer a.background.Done()
		a.client.RunRefresher(bgCtx, a.cfg.RefreshInterval)
	}()

	if a.metrics != nil {
		a.background.Add(1)
		go func() {
			defer a.background.Done()
			a.logger.Info("metrics server listening", slog.String("addr", a.metrics.Addr))
			if err := a.metrics.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.logger.Error("metrics server failed", slog.String("error", err.Error()))
			}
		}()
	}

	done := make(chan error, 1)
	go func() { done <- a.shell.Run(ctx) }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		// The shell may be blocked reading input; leave it behind.
		return nil
	}
}

// Shutdown stops background work and closes resources.
func (a *App) Shutdown(ctx context.Context) error {
	var errs []error

	if a.stopBackground != nil {
		a.stopBackground()
	}
	if a.metrics != nil {
		if err := a.metrics.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("metrics server shutdown: %w", err))
		}
	}
	a.background.Wait()
	a.sessions.Close()

	if err := a.sessionDB.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close session store: %w", err))
	}

	return errors.Join(errs...)
}
