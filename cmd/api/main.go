package main

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"net/http/pprof"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-atelier/internal/catalog"
	"github.com/noah-isme/backend-atelier/internal/common"
	"github.com/noah-isme/backend-atelier/internal/config"
	"github.com/noah-isme/backend-atelier/internal/health"
	"github.com/noah-isme/backend-atelier/internal/lock"
	"github.com/noah-isme/backend-atelier/internal/obs"
	"github.com/noah-isme/backend-atelier/internal/pricing"
	"github.com/noah-isme/backend-atelier/internal/queue"
	"github.com/noah-isme/backend-atelier/internal/ratelimit"
	"github.com/noah-isme/backend-atelier/internal/quote"
	"github.com/noah-isme/backend-atelier/internal/security"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger("atelier-api", cfg.Obs.LogFormat, cfg.Obs.LogLevel).With().Str("env", cfg.AppEnv).Logger()

	metricsEnabled := cfg.Obs.MetricsEnabled
	obs.MustRegisterDomainMetrics(cfg.Obs.MetricsNamespace, nil)

	tracingEnabled := cfg.Obs.TracingEnabled
	if tracingEnabled {
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   "atelier-api",
			Endpoint:      cfg.Obs.OTLPEndpoint,
			Exporter:      cfg.Obs.TracingExporter,
			SamplingRatio: cfg.Obs.SamplingRatio,
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	redisClient := mustInitRedis(ctx, cfg, logger, metricsEnabled)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()

	priceList, err := catalog.LoadPriceList(cfg.PriceListPath)
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.PriceListPath).Msg("load price list")
	}
	currencies := pricing.DefaultTable()

	pricingHandler := &pricing.Handler{
		Table:           currencies,
		DefaultCurrency: cfg.DefaultCurrency,
		ShippingBasis:   cfg.ShippingBasis,
	}
	catalogHandler := catalog.NewHandler(catalog.HandlerConfig{PriceList: priceList, Currencies: currencies})

	quoteService, err := quote.NewService(quote.ServiceConfig{
		Store: quote.NewRedisStore(redisClient, cfg.QueueRedisPrefix),
		Locker: lock.Locker{
			R:            redisClient,
			Prefix:       cfg.QueueRedisPrefix,
			TTL:          cfg.LockTTL,
			RetryBackoff: cfg.LockRetryBackoff,
			MaxWait:      cfg.LockMaxWait,
		},
		Queue: queue.Enqueuer{
			R:           redisClient,
			Prefix:      cfg.QueueRedisPrefix,
			DedupTTL:    cfg.IdempotencyTTL,
			MaxAttempts: cfg.QueueMaxAttempts,
		},
		PriceList:       priceList,
		Currencies:      currencies,
		DefaultCurrency: cfg.DefaultCurrency,
		ShippingBasis:   cfg.ShippingBasis,
		DefaultTaxRate:  cfg.DefaultTaxRate,
		TTL:             cfg.QuoteTTL,
		Logger:          logger.With().Str("component", "quote").Logger(),
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise quote service")
	}
	idem := common.Idem{R: redisClient, TTL: cfg.IdempotencyTTL, Prefix: cfg.QueueRedisPrefix}
	quoteHandler := &quote.Handler{Svc: quoteService, BusinessName: cfg.InvoiceBusinessName, Idempotency: idem.Middleware}

	var rateLimiter ratelimit.Limiter
	if cfg.RateLimitEnabled {
		rateLimiter, err = ratelimit.New(cfg.RateLimitBackend, redisClient, cfg.QueueRedisPrefix, cfg.RateLimitWindow, cfg.RateLimitMax)
		if err != nil {
			logger.Fatal().Err(err).Msg("initialise rate limiter")
		}
	}

	var httpMetrics *obs.HTTPMetrics
	if metricsEnabled {
		httpMetrics = obs.NewHTTPMetrics(cfg.Obs.MetricsNamespace, obs.ParseBucketsCSV(cfg.Obs.MetricsBuckets), nil)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(common.BusinessMiddleware)
	if tracingEnabled {
		r.Use(obs.Tracing("atelier-api"))
	}
	if httpMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: logger, Quiet: obs.HealthChecks}.Middleware)
	hsts := time.Duration(0)
	if cfg.AppEnv == "production" {
		hsts = 365 * 24 * time.Hour
	}
	r.Use(security.Headers{Enable: cfg.SecurityHeaders, HSTS: hsts}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Idempotency-Key", common.BusinessHeader},
		ExposedHeaders:   []string{"Content-Disposition", "X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	if metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}
	if cfg.Obs.PprofEnabled {
		r.Mount("/debug/pprof", protectPprof(newPprofMux(), cfg.Obs.PprofUser, cfg.Obs.PprofPass))
	}

	healthHandler := health.Handler{
		Probes:  map[string]health.Probe{"redis": health.RedisProbe(redisClient)},
		Timeout: 300 * time.Millisecond,
	}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Use(security.BodyLimit{Max: cfg.BodyLimitBytes}.Middleware)
		v.Use(ratelimit.Handler{
			Limiter: rateLimiter,
			OnError: func(err error) { logger.Warn().Err(err).Msg("rate limit check failed") },
		}.Middleware)

		v.Route("/pricing", func(p chi.Router) {
			p.Post("/breakdown", pricingHandler.Breakdown)
			p.Get("/currencies", pricingHandler.Currencies)
			p.Get("/categories", pricingHandler.Categories)
		})

		v.Route("/catalog", func(c chi.Router) {
			c.Get("/fabrics", catalogHandler.Fabrics)
			c.Get("/products", catalogHandler.Products)
		})

		v.Route("/quotes", quoteHandler.Routes)
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		health.SetReady(false)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("server shutdown")
		}
	}()

	logger.Info().Str("addr", srv.Addr).Str("currency", string(cfg.DefaultCurrency)).Str("shipping_basis", string(cfg.ShippingBasis)).Msg("server starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("server exited unexpectedly")
	}
	logger.Info().Msg("server stopped")
}

func mustInitRedis(ctx context.Context, cfg *config.Config, logger zerolog.Logger, metrics bool) *redis.Client {
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	redisClient := redis.NewClient(redisOpts)
	if err := redisotel.InstrumentTracing(redisClient); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if metrics {
		if err := redisotel.InstrumentMetrics(redisClient); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}
	return redisClient
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

func newPprofMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", pprof.Index)
	mux.HandleFunc("/cmdline", pprof.Cmdline)
	mux.HandleFunc("/profile", pprof.Profile)
	mux.HandleFunc("/symbol", pprof.Symbol)
	mux.HandleFunc("/trace", pprof.Trace)
	for _, name := range []string{"allocs", "block", "goroutine", "heap", "mutex", "threadcreate"} {
		mux.Handle("/"+name, pprof.Handler(name))
	}
	return mux
}

func protectPprof(handler http.Handler, user, pass string) http.Handler {
	user = strings.TrimSpace(user)
	pass = strings.TrimSpace(pass)
	if user == "" {
		return handler
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 || subtle.ConstantTimeCompare([]byte(p), []byte(pass)) != 1 {
			w.Header().Set("WWW-Authenticate", "Basic realm=restricted")
			http.Error(w, "unauthorised", http.StatusUnauthorized)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
