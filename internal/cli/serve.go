package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sysaura/internal/config"
	"sysaura/internal/controllers"
	"sysaura/internal/logger"
	"sysaura/internal/middleware"
	"sysaura/internal/models"
	"sysaura/internal/routes"
	"sysaura/internal/services"
	"sysaura/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the collector server",
	Long: `Start the HTTP API and the /ws endpoint.

The local machine is registered as the "local" system on first start.
Alerts stored by a previous run are loaded before serving.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runServe(ctx, cfg)
	},
}

// server holds the wired collector.
type server struct {
	cfg    *config.Config
	store  *store.Store
	auth   *services.AuthService
	alerts *services.AlertStore
	hub    *services.WebSocketHub
	dist   *services.Distributor
	router *gin.Engine
	log    logger.Logger
}

// newServer opens the store and wires every service, controller and route.
// sampler is the source of local readings.
func newServer(ctx context.Context, cfg *config.Config, sampler services.Sampler) (*server, error) {
	log := logger.New("[SERVER]")

	st, err := store.Open(cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "Local System"
	}
	if err := st.EnsureTarget(ctx, models.Target{ID: models.LocalTargetID, Name: hostname, Status: "online"}); err != nil {
		st.Close()
		return nil, fmt.Errorf("register local system: %w", err)
	}

	auth := services.NewAuthService(cfg.Auth.Secret, cfg.Auth.TokenExpiry, logger.New("[AUTH]"))
	history := services.NewHistory(cfg.History.Capacity)
	aggregator := services.NewAggregator(sampler, history, logger.New("[METRICS]"))
	evaluator := services.NewEvaluator(cfg.Alerts.Thresholds, cfg.Alerts.NetworkScale)
	alerts := services.NewAlertStore(st, cfg.Alerts.Dedupe, logger.New("[ALERT]"))
	if err := alerts.Load(ctx); err != nil {
		st.Close()
		return nil, err
	}
	registry := services.NewRegistry(st)
	hub := services.NewWebSocketHub(logger.New("[WS]"))
	dist := services.NewDistributor(services.DistributorDeps{
		Aggregator: aggregator,
		Evaluator:  evaluator,
		Alerts:     alerts,
		Registry:   registry,
		Hub:        hub,
		Recorder:   st,
		Log:        logger.New("[DIST]"),
	})

	sl := middleware.NewSecurityLogger(nil)
	router := routes.NewRouter(routes.RouterOptions{
		Metrics: controllers.NewMetricsController(dist, aggregator, st, nil),
		Alerts:  controllers.NewAlertsController(alerts, st, nil),
		WebSocket: controllers.NewWebSocketController(controllers.WebSocketDeps{
			Hub:            hub,
			Registry:       registry,
			Distributor:    dist,
			Auth:           auth,
			Security:       sl,
			AllowedOrigins: cfg.Server.AllowedOrigins,
		}),
		Auth:           auth,
		Security:       sl,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		AllowedIPs:     cfg.Server.AllowedIPs,
		RateLimit:      cfg.Server.RateLimit.RequestsPerSecond,
		RateBurst:      cfg.Server.RateLimit.Burst,
		AccessLog:      gin.Mode() != gin.TestMode,
	})

	log.Info("loaded %d alert(s) from %s", alerts.Len(), cfg.Database.Path)
	return &server{
		cfg:    cfg,
		store:  st,
		auth:   auth,
		alerts: alerts,
		hub:    hub,
		dist:   dist,
		router: router,
		log:    log,
	}, nil
}

func runServe(ctx context.Context, cfg *config.Config) error {
	if os.Getenv("SYSAURA_DEBUG") == "" {
		gin.SetMode(gin.ReleaseMode)
	}
	s, err := newServer(ctx, cfg, services.NewHostSampler(logger.New("[SAMPLER]")))
	if err != nil {
		return err
	}
	return s.run(ctx)
}

// run serves until ctx is cancelled, then shuts down gracefully.
func (s *server) run(ctx context.Context) error {
	defer s.store.Close()

	if s.cfg.Polling.Enabled {
		s.dist.StartPolling(ctx, s.cfg.Polling.Interval)
	}

	httpSrv := &http.Server{
		Addr:              s.cfg.Server.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		var err error
		if s.cfg.Server.TLS.Enabled {
			s.log.Info("listening on https://%s", s.cfg.Server.Addr)
			err = httpSrv.ListenAndServeTLS(s.cfg.Server.TLS.CertFile, s.cfg.Server.TLS.KeyFile)
		} else {
			s.log.Info("listening on http://%s", s.cfg.Server.Addr)
			err = httpSrv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		s.dist.StopPolling()
		s.hub.Shutdown()
		if ok {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.log.Info("shutting down")
	s.dist.StopPolling()
	s.hub.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
