package internal

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/go-redis/redis/v8"
	"github.com/go-redis/redis_rate/v9"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"

	"github.com/2beens/gideon/internal/account"
	"github.com/2beens/gideon/internal/config"
	"github.com/2beens/gideon/internal/export"
	"github.com/2beens/gideon/internal/history"
	"github.com/2beens/gideon/internal/middleware"
	"github.com/2beens/gideon/internal/planner"
	"github.com/2beens/gideon/internal/profile"
	"github.com/2beens/gideon/internal/storage"
	"github.com/2beens/gideon/internal/telemetry/metrics"
	"github.com/2beens/gideon/internal/telemetry/tracing"
)

type Server struct {
	httpServer        *http.Server
	metricsHttpServer *http.Server

	config      *config.Config
	backend     storage.Backend
	redisClient *redis.Client
	now         func() time.Time

	collections  *history.Collections
	profileStore *profile.Store
	generator    planner.Generator

	// metrics
	metricsManager *metrics.Manager
	promRegistry   *prometheus.Registry
	otelShutdown   func()
}

type NewServerParams struct {
	Config  *config.Config
	Secrets *config.Secrets

	// Backend replaces the configured storage backend when set.
	Backend storage.Backend
	// PlanGenerator replaces the HTTP plan generation client when set.
	PlanGenerator planner.Generator
	Now           func() time.Time
}

func NewServer(
	ctx context.Context,
	params NewServerParams,
) (*Server, error) {
	cfg := params.Config
	if cfg == nil {
		return nil, errors.New("config not set")
	}
	secrets := params.Secrets
	if secrets == nil {
		secrets = &config.Secrets{}
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}

	promRegistry := metrics.SetupPrometheus()
	metricsManager := metrics.NewManager("gideon", "main", promRegistry)
	metricsManager.GaugeLifeSignal.Set(0)

	// use honeycomb distro to setup OpenTelemetry SDK
	otelShutdown, err := tracing.HoneycombSetup(cfg.TracingEnabled, "gideon")
	if err != nil {
		return nil, fmt.Errorf("tracing setup: %w", err)
	}

	backend := params.Backend
	var rdb *redis.Client
	if backend == nil {
		backend, rdb, err = OpenBackend(ctx, cfg, secrets.RedisPassword)
		if err != nil {
			otelShutdown()
			return nil, err
		}
	}

	generator := params.PlanGenerator
	if generator == nil {
		if cfg.PlannerBaseURL == "" {
			log.Warnln("planner base url not set, plan generation requests will fail")
		}
		generator = planner.NewHTTPGenerator(planner.HTTPGeneratorParams{
			BaseURL:        cfg.PlannerBaseURL,
			APIKey:         secrets.PlannerAPIKey,
			Timeout:        cfg.PlannerTimeout,
			CacheTTL:       cfg.PlannerCacheTTL,
			CacheSizeMB:    cfg.PlannerCacheSizeMB,
			MetricsManager: metricsManager,
		})
	}

	return &Server{
		config:      cfg,
		backend:     backend,
		redisClient: rdb,
		now:         now,

		collections: history.NewCollections(backend, history.Caps{
			Workout:   cfg.WorkoutHistoryCap,
			Nutrition: cfg.NutritionHistoryCap,
			Progress:  cfg.ProgressHistoryCap,
		}, metricsManager),
		profileStore: profile.NewStore(backend, metricsManager),
		generator:    generator,

		// telemetry
		metricsManager: metricsManager,
		promRegistry:   promRegistry,
		otelShutdown:   otelShutdown,
	}, nil
}

func (s *Server) routerSetup() *mux.Router {
	r := mux.NewRouter()
	r.Use(otelmux.Middleware("gideon-router"))

	aggregator := history.NewAggregator(s.collections, s.config.TimelineLimit)
	statsEngine := history.NewStatsEngine(s.collections, history.NoGoals{})
	chartProjector := history.NewChartProjector(s.collections.Progress, history.ChartConfig{
		Width:  s.config.ChartWidth,
		Height: s.config.ChartHeight,
		Margin: s.config.ChartMargin,
	})
	historyHandler := history.NewHandler(s.collections, aggregator, statsEngine, chartProjector, s.now)
	// fixed paths first, so they are not taken as a {kind}
	r.HandleFunc("/history/timeline", historyHandler.HandleTimeline).Methods("GET", "OPTIONS").Name("history-timeline")
	r.HandleFunc("/history/stats", historyHandler.HandleStats).Methods("GET", "OPTIONS").Name("history-stats")
	r.HandleFunc("/history/chart", historyHandler.HandleChart).Methods("GET", "OPTIONS").Name("history-chart")
	r.HandleFunc("/history/progress", historyHandler.HandleAddProgress).Methods("POST", "OPTIONS").Name("new-progress")
	r.HandleFunc("/history/progress/{id}", historyHandler.HandleDeleteProgress).Methods("DELETE", "OPTIONS").Name("remove-progress")
	r.HandleFunc("/history/{kind}", historyHandler.HandleList).Methods("GET", "OPTIONS").Name("list-history")
	r.HandleFunc("/history/{kind}/{id}", historyHandler.HandleGet).Methods("GET", "OPTIONS").Name("get-record")

	plannerHandler := planner.NewHandler(planner.NewRecorder(s.generator, s.collections, s.now))
	r.HandleFunc("/plans/workout", plannerHandler.HandleWorkout).Methods("POST", "OPTIONS").Name("new-workout-plan")
	r.HandleFunc("/plans/nutrition", plannerHandler.HandleNutrition).Methods("POST", "OPTIONS").Name("new-nutrition-plan")
	r.HandleFunc("/plans/{kind}/{id}/duplicate", plannerHandler.HandleDuplicate).Methods("GET", "OPTIONS").Name("duplicate-plan")

	profileHandler := profile.NewHandler(s.profileStore)
	r.HandleFunc("/profile", profileHandler.HandleGet).Methods("GET", "OPTIONS").Name("get-profile")
	r.HandleFunc("/profile", profileHandler.HandleSave).Methods("POST", "OPTIONS").Name("save-profile")
	r.HandleFunc("/profile/password", profileHandler.HandleChangePassword).Methods("POST", "OPTIONS").Name("change-password")

	exportHandler := export.NewHandler(export.NewService(s.collections, s.profileStore, s.now, s.metricsManager))
	exportRouter := r.PathPrefix("/export").Subrouter()
	if s.redisClient != nil && s.config.ExportRateLimitPerMin > 0 {
		reqRateLimiter := redis_rate.NewLimiter(s.redisClient)
		exportRouter.Use(middleware.RateLimit(reqRateLimiter, "export", s.config.ExportRateLimitPerMin))
	}
	exportRouter.HandleFunc("/history", exportHandler.HandleImport).Methods("POST", "OPTIONS").Name("import-history")
	exportRouter.HandleFunc("/{kind}", exportHandler.HandleDownload).Methods("GET", "OPTIONS").Name("export")

	accountHandler := account.NewHandler(account.NewService(s.profileStore, s.collections))
	r.HandleFunc("/account", accountHandler.HandleDelete).Methods("DELETE", "OPTIONS").Name("delete-account")

	r.Use(middleware.PanicRecovery(s.metricsManager))
	r.Use(middleware.LogRequest())
	r.Use(middleware.RequestMetrics(s.metricsManager))
	r.Use(middleware.Cors(s.config.AllowedOrigins...))
	r.Use(middleware.DrainAndCloseRequest())

	return r
}

func (s *Server) Serve(host string, port int) {
	ipAndPort := net.JoinHostPort(host, strconv.Itoa(port))
	s.httpServer = &http.Server{
		Handler:      s.routerSetup(),
		Addr:         ipAndPort,
		WriteTimeout: time.Minute,
		ReadTimeout:  time.Minute,
	}

	metricsRouter := mux.NewRouter()
	metricsRouter.Handle("/metrics", metrics.Handler(s.promRegistry))
	metricsAddr := net.JoinHostPort(s.config.PrometheusMetricsHost, s.config.PrometheusMetricsPort)
	s.metricsHttpServer = &http.Server{
		Addr:    metricsAddr,
		Handler: metricsRouter,
	}

	go func() {
		log.Infof(" > server listening on: [%s]", ipAndPort)
		err := s.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("main service, listen and serve: %s", err)
		}
	}()

	go func() {
		log.Debugf(" > metrics listening on: [%s]", metricsAddr)
		err := s.metricsHttpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("metrics service, listen and serve: %s", err)
		}
	}()

	s.metricsManager.GaugeLifeSignal.Set(1)
}

func (s *Server) GracefulShutdown() {
	log.Debug("graceful shutdown initiated ...")

	s.metricsManager.GaugeLifeSignal.Set(0)

	maxWaitDuration := time.Second * 15
	ctx, timeoutCancel := context.WithTimeout(context.Background(), maxWaitDuration)
	defer timeoutCancel()

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			log.Error(" >>> failed to gracefully shutdown http server")
		}
		log.Warnln("server shut down")
	}

	if s.metricsHttpServer != nil {
		if err := s.metricsHttpServer.Shutdown(ctx); err != nil {
			log.Error(" >>> failed to gracefully shutdown metrics http server")
		}
		log.Warnln("metrics server shut down")
	}

	// in-flight requests are done, the backend can go
	if err := storage.CloseBackend(s.backend); err != nil {
		log.Errorf("failed to close storage backend: %s", err)
	}

	s.otelShutdown()
	log.Trace("otel shut down ...")

	if ok := sentry.Flush(5 * time.Second); ok {
		log.Debugf("sentry flush ok: %t", ok)
	}
}
