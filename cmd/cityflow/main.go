package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/cityflow/cityflow/internal/config"
	"github.com/cityflow/cityflow/internal/infra/database"
	"github.com/cityflow/cityflow/internal/infra/gateway"
	"github.com/cityflow/cityflow/internal/infra/repository"
	"github.com/cityflow/cityflow/internal/policy"
	"github.com/cityflow/cityflow/internal/present/rest"
	authmw "github.com/cityflow/cityflow/internal/present/rest/middleware"
	"github.com/cityflow/cityflow/internal/service"
	"github.com/cityflow/cityflow/internal/usecase"
)

const serviceName = "cityflow"

func main() {
	configPath := flag.String("config", "config.yaml", "path to the config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Server.EnableTrace {
		cleanup, err := setupTraceProvider(ctx, cfg.Server.TraceEndpoint)
		if err != nil {
			panic(err)
		}
		defer cleanup()
	}

	db, err := database.NewPostgres(cfg.Server.PostgresDsn)
	if err != nil {
		panic("failed to connect database")
	}

	err = database.MigratePostgres(db)
	if err != nil {
		panic("failed to migrate database")
	}

	rdb := database.NewRedis(cfg.Server.RedisAddr, cfg.Server.RedisPassword, cfg.Server.RedisDB)
	defer rdb.Close()

	tx := repository.NewTransactor(db)
	complaintRepo := repository.NewComplaintRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	userRepo := repository.NewUserRepository(db)
	supportRepo := repository.NewSupportRepository(db)
	ratingRepo := repository.NewRatingRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	var categoryRepo usecase.CategoryRepository = repository.NewCategoryRepository(db)
	if cfg.Server.MemcachedAddr != "" {
		mc := database.NewMemcached(cfg.Server.MemcachedAddr)
		categoryRepo = repository.NewCachedCategoryRepository(categoryRepo, mc)
	}

	classifier := gateway.NewClassifierGateway(cfg.Server.ClassifierURL)
	photos := gateway.NewLocalPhotoStorage(cfg.Server.MediaDir, cfg.Server.MediaBaseURL)
	notifier := gateway.NewSMTPNotifier(gateway.SMTPConfig{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
	})

	signalService := service.NewSignalService(rdb)
	authService := service.NewAuthService(service.AuthConfig{
		JWTSecret: cfg.Auth.JWTSecret,
		Issuer:    cfg.Auth.Issuer,
	})

	gate := policy.NewDefaultGate()
	effects := usecase.NewEffects(auditRepo, signalService, notifier, userRepo)

	complaintUsecase := usecase.NewComplaintUsecase(tx, complaintRepo, assignmentRepo, categoryRepo, userRepo, classifier, photos, gate, effects)
	assignmentUsecase := usecase.NewAssignmentUsecase(tx, assignmentRepo, complaintRepo, userRepo, photos, gate, effects)
	ledgerUsecase := usecase.NewLedgerUsecase(tx, complaintRepo, supportRepo, ratingRepo, gate, effects)
	categoryUsecase := usecase.NewCategoryUsecase(categoryRepo, gate, effects)

	handler := rest.NewHandler(complaintUsecase, assignmentUsecase, ledgerUsecase, categoryUsecase, signalService)

	e := echo.New()
	e.HideBanner = true
	e.Use(otelecho.Middleware(serviceName))
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(authmw.NewAuthMiddleware(authService).IdentifyIdentity)
	e.Static(cfg.Server.MediaBaseURL, cfg.Server.MediaDir)

	handler.RegisterRoutes(e)

	go func() {
		if err := e.Start(cfg.Server.Listen); err != nil && err != http.ErrServerClosed {
			e.Logger.Fatal(err)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down", slog.String("module", "main"))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown failed", slog.String("error", err.Error()), slog.String("module", "main"))
	}
	notifier.Wait()
}

func setupTraceProvider(ctx context.Context, endpoint string) (func(), error) {
	exporter, err := otlptracehttp.New(
		ctx,
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	res := resource.NewSchemaless(
		attribute.String("service.name", serviceName),
	)

	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(tracerProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	cleanup := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracerProvider.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown tracer provider", slog.String("error", err.Error()))
		}
	}
	return cleanup, nil
}
