package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/PTAIM/backend/internal/config"
	"github.com/PTAIM/backend/internal/domain/analysis"
	"github.com/PTAIM/backend/internal/domain/dashboard"
	"github.com/PTAIM/backend/internal/domain/exam"
	"github.com/PTAIM/backend/internal/domain/identity"
	"github.com/PTAIM/backend/internal/domain/profile"
	"github.com/PTAIM/backend/internal/domain/report"
	"github.com/PTAIM/backend/internal/domain/scheduling"
	"github.com/PTAIM/backend/internal/domain/timeline"
	"github.com/PTAIM/backend/internal/platform/apperr"
	"github.com/PTAIM/backend/internal/platform/auth"
	"github.com/PTAIM/backend/internal/platform/cache"
	"github.com/PTAIM/backend/internal/platform/db"
	"github.com/PTAIM/backend/internal/platform/messaging"
	"github.com/PTAIM/backend/internal/platform/middleware"
	"github.com/PTAIM/backend/internal/platform/notification"
)

const imageAnalysisPath = "/analises/imagem"

// app owns every long-lived dependency of the process.
type app struct {
	cfg    *config.Config
	logger zerolog.Logger

	pool     *pgxpool.Pool
	cache    cache.Cache
	broker   messaging.Broker
	events   messaging.EventStream
	registry *prometheus.Registry

	tokens      auth.TokenIssuer
	revocations *auth.RevocationStore
	dispatcher  *notification.Dispatcher

	identity   *identity.Service
	profile    *profile.Service
	timeline   *timeline.Service
	scheduling *scheduling.Service
	exam       *exam.Service
	report     *report.Service
	dashboard  *dashboard.Service
	analysis   *analysis.Service
}

func newApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}
	if err := a.connect(ctx); err != nil {
		a.Close()
		return nil, err
	}
	a.wireServices()
	return a, nil
}

func (a *app) connect(ctx context.Context) error {
	var err error
	if a.pool, err = db.NewPool(ctx, a.cfg, a.logger.With().Str("component", "db").Logger()); err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	a.logger.Info().Msg("connected to database")
	return a.connectPlatform(ctx, dialRabbit)
}

// connectPlatform sets up everything except the database pool.
func (a *app) connectPlatform(ctx context.Context, dial brokerDialer) error {
	var err error
	if a.cache, err = newCache(ctx, a.cfg, a.logger); err != nil {
		return err
	}
	if a.broker, err = newBroker(a.cfg, a.logger, dial); err != nil {
		return err
	}
	a.events = newEventStream(a.cfg)

	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	key, err := signingKey(a.cfg, a.logger)
	if err != nil {
		return err
	}
	a.tokens = auth.NewJWTIssuer(key, "telemed")
	a.revocations = auth.NewRevocationStore(a.cache)
	a.dispatcher = notification.NewDispatcher(a.broker, a.cfg.EmailQueue,
		a.logger.With().Str("component", "email").Logger(), notification.WithMetrics(a.registry))
	return nil
}

func (a *app) wireServices() {
	tx := db.NewTransactor(a.pool)
	log := func(component string) zerolog.Logger {
		return a.logger.With().Str("component", component).Logger()
	}

	a.identity = identity.NewService(identity.NewUserRepoPG(a.pool), auth.NewBcryptHasher(0), a.tokens,
		a.revocations, a.cfg.TokenTTL(), a.dispatcher)

	a.profile = profile.NewService(profile.Deps{
		Doctors:     profile.NewDoctorRepoPG(a.pool),
		Specialties: profile.NewSpecialtyRepoPG(a.pool),
		Patients:    profile.NewPatientRepoPG(a.pool),
		Summaries:   profile.NewSummaryRepoPG(a.pool),
		Users:       a.identity,
		Tx:          tx,
		Cache:       a.cache,
		CacheTTL:    a.cfg.CacheTTL,
		Logger:      log("profile"),
	})

	a.timeline = timeline.NewService(timeline.NewRepoPG(a.pool))

	a.scheduling = scheduling.NewService(scheduling.Deps{
		Templates:    scheduling.NewTemplateRepoPG(a.pool),
		Appointments: scheduling.NewAppointmentRepoPG(a.pool),
		Users:        a.identity,
		Doctors:      a.profile,
		Timeline:     a.timeline,
		Tx:           tx,
		Notifier:     a.dispatcher,
		Events:       a.events,
		Logger:       log("scheduling"),
		Registerer:   a.registry,
	})

	a.exam = exam.NewService(exam.Deps{
		Requests: exam.NewRequestRepoPG(a.pool),
		Results:  exam.NewResultRepoPG(a.pool),
		Users:    a.identity,
		Timeline: a.timeline,
		Tx:       tx,
		Notifier: a.dispatcher,
		Logger:   log("exam"),
	})

	a.report = report.NewService(report.Deps{
		Reports:  report.NewRepoPG(a.pool),
		Results:  a.exam,
		Users:    a.identity,
		Doctors:  a.profile,
		Timeline: a.timeline,
		Tx:       tx,
		Notifier: a.dispatcher,
		Logger:   log("report"),
	})

	a.dashboard = dashboard.NewService(dashboard.NewRepoPG(a.pool))

	a.analysis = analysis.NewService(
		messaging.NewImageAnalysisClient(a.broker, a.cfg.ImageAnalysisQueue, a.cfg.ImageAnalysisTimeout),
		log("analysis"), a.registry)
}

func (a *app) reminders() (*scheduling.Reminders, error) {
	return scheduling.NewReminders(a.scheduling, a.cfg.ReminderCron, a.logger.With().Str("component", "reminders").Logger())
}

func (a *app) router() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = apperr.HTTPErrorHandler(a.logger)

	metrics := middleware.NewMetrics(a.registry)

	e.Use(middleware.Recovery(a.logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(a.logger))
	e.Use(metrics.Middleware())
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: a.cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{echo.HeaderAuthorization, echo.HeaderContentType, echo.HeaderXRequestID},
	}))
	e.Use(middleware.BodyLimit("1M", "25M", imageAnalysisPath))
	e.Use(auth.Middleware(auth.MiddlewareConfig{
		Issuer:     a.tokens,
		Revocation: a.revocations,
		Skipper:    auth.Skipper,
	}))
	e.Use(middleware.RateLimit(middleware.RateLimitConfig{
		RequestsPerSecond: a.cfg.RateLimitRPS,
		BurstSize:         a.cfg.RateLimitBurst,
		IdleTTL:           10 * time.Minute,
	}))
	e.Use(middleware.RequestTimeout(30*time.Second, imageAnalysisPath))

	e.GET("/", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"message": "API de Telemedicina"})
	})
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/health/db", db.HealthHandler(db.PoolChecker(a.pool), db.NewMigrator(a.pool, a.cfg.MigrationsDir), 5*time.Second))
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{})))

	// Role checks go on routes, not on prefix-less groups: echo adds a
	// catch-all route for every group with middleware.
	api := e.Group("")
	identity.NewHandler(a.identity).RegisterRoutes(api)
	profile.NewHandler(a.profile).RegisterRoutes(api)
	timeline.NewHandler(a.timeline).RegisterRoutes(api)
	scheduling.NewHandler(a.scheduling).RegisterRoutes(api)
	exam.NewHandler(a.exam).RegisterRoutes(api)
	report.NewHandler(a.report).RegisterRoutes(api)
	dashboard.NewHandler(a.dashboard).RegisterRoutes(api)
	analysis.NewHandler(a.analysis).RegisterRoutes(api)
	notification.NewHandler(a.dispatcher).RegisterRoutes(api, auth.RequireRole(auth.RoleStaff))

	return e
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	if a.events != nil {
		if err := a.events.Close(); err != nil {
			a.logger.Warn().Err(err).Msg("close event stream")
		}
	}
	if a.broker != nil {
		if err := a.broker.Close(); err != nil {
			a.logger.Warn().Err(err).Msg("close broker")
		}
	}
	if a.cache != nil {
		_ = a.cache.Close()
	}
	if a.pool != nil {
		a.pool.Close()
	}
}
