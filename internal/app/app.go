package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alexedwards/scs/goredisstore"
	"github.com/alexedwards/scs/v2"
	"github.com/alexedwards/scs/v2/memstore"
	"github.com/enrolhub/checkout-engine/internal/cache"
	"github.com/enrolhub/checkout-engine/internal/checkout"
	"github.com/enrolhub/checkout-engine/internal/domain"
	"github.com/enrolhub/checkout-engine/internal/events"
	"github.com/enrolhub/checkout-engine/internal/gateway"
	"github.com/enrolhub/checkout-engine/internal/metrics"
	"github.com/enrolhub/checkout-engine/internal/payment"
	"github.com/enrolhub/checkout-engine/internal/repository"
	appvalidator "github.com/enrolhub/checkout-engine/internal/validator"
	"github.com/enrolhub/checkout-engine/internal/vcs"
	"github.com/enrolhub/checkout-engine/internal/wallet"
	"github.com/exaring/otelpgx"
	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/bridges/otelslog"
)

var (
	version = vcs.Version()
)

type Application struct {
	config         Config
	logger         *slog.Logger
	validator      *validator.Validate
	sessionManager *scs.SessionManager
	metrics        *metrics.Metrics

	gateway   domain.Gateway
	ledger    domain.CheckoutLedger
	verifier  domain.IntentVerifier
	publisher domain.EventPublisher

	paymentMethods cache.Cache[[]domain.PaymentMethod]
	paymentKeys    cache.Cache[string]

	engines *engineRegistry
}

type Config struct {
	Port             int
	Env              string
	OtelCollectorUrl string
	DB               DBConfig
	Redis            RedisConfig
	Stripe           StripeConfig
	Backend          BackendConfig
	Kafka            KafkaConfig
	Checkout         CheckoutConfig
}

type DBConfig struct {
	DSN          string
	MaxOpenConns int
	MaxIdleTime  time.Duration
}

type RedisConfig struct {
	URL          string
	MaxOpenConns int
	MaxIdleConns int
	MaxIdleTime  time.Duration
}

type StripeConfig struct {
	SecretKey string
}

type BackendConfig struct {
	URL     string
	Timeout time.Duration
}

type KafkaConfig struct {
	Brokers string
	Topic   string
}

type CheckoutConfig struct {
	ActionTimeout     time.Duration
	PaymentMethodsTTL time.Duration
	SessionIdleTime   time.Duration
}

func Run() error {
	var cfg Config

	flag.IntVar(&cfg.Port, "port", 3000, "server port")
	flag.StringVar(&cfg.Env, "env", "dev", "Environment (dev|staging|prod)")
	flag.StringVar(&cfg.OtelCollectorUrl, "otel-collector-url", "", "OpenTelemetry collector gRPC endpoint")

	flag.StringVar(&cfg.DB.DSN, "db-dsn", "", "PostgreSQL DSN")
	flag.IntVar(&cfg.DB.MaxOpenConns, "db-max-open-conns", 25, "PostgreSQL max open connections")
	flag.DurationVar(&cfg.DB.MaxIdleTime, "db-max-idle-time", 15*time.Minute, "PostgreSQL max idle time for connections")

	flag.StringVar(&cfg.Redis.URL, "redis-url", "", "Redis URL")
	flag.IntVar(&cfg.Redis.MaxOpenConns, "redis-max-open-conns", 25, "Redis max open connections")
	flag.IntVar(&cfg.Redis.MaxIdleConns, "redis-max-idle-conns", 10, "Redis max idle connections")
	flag.DurationVar(&cfg.Redis.MaxIdleTime, "redis-max-idle-time", 2*time.Minute, "Redis max idle time for connections")

	flag.StringVar(&cfg.Stripe.SecretKey, "stripe-key", "", "Stripe secret key")

	flag.StringVar(&cfg.Backend.URL, "backend-url", "http://localhost:4000/graphql", "Backend GraphQL endpoint")
	flag.DurationVar(&cfg.Backend.Timeout, "backend-timeout", 10*time.Second, "Timeout of a single backend call")

	flag.StringVar(&cfg.Kafka.Brokers, "kafka-brokers", "", "Comma separated Kafka brokers")
	flag.StringVar(&cfg.Kafka.Topic, "kafka-topic", events.DefaultTopic, "Kafka topic for order events")

	flag.DurationVar(&cfg.Checkout.ActionTimeout, "action-timeout", checkout.DefaultActionTimeout, "How long a payment confirmation step may stay open")
	flag.DurationVar(&cfg.Checkout.PaymentMethodsTTL, "payment-methods-ttl", wallet.DefaultTTL, "How long saved payment methods are cached")
	flag.DurationVar(&cfg.Checkout.SessionIdleTime, "session-idle-time", 20*time.Minute, "Idle time after which a session and its basket engine are dropped")

	displayVersion := flag.Bool("version", false, "Display version and exit")

	flag.Parse()

	if *displayVersion {
		fmt.Printf("Version:\t%s\n", version)
		os.Exit(0)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	app := &Application{config: cfg, logger: logger}

	shutdownTelemetry, err := app.InitTelemetry()
	if err != nil {
		return err
	}
	defer shutdownTelemetry(context.Background())

	if cfg.OtelCollectorUrl != "" {
		logger = slog.New(NewMultiHandler(logger.Handler(), otelslog.NewHandler("checkout-engine")))
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	var (
		ledger         domain.CheckoutLedger = repository.NewMemoryLedger()
		paymentMethods cache.Cache[[]domain.PaymentMethod]
		paymentKeys    cache.Cache[string]
		sessionManager *scs.SessionManager
		verifier       domain.IntentVerifier
		publisher      domain.EventPublisher = events.Noop{}
	)

	if cfg.DB.DSN != "" {
		db, err := NewDatabasePool(cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		ledger = repository.NewPostgresLedger(db)
	} else {
		logger.Warn("no database configured, checkout ledger is kept in memory")
	}

	if cfg.Redis.URL != "" {
		redisClient, err := NewRedisClient(cfg)
		if err != nil {
			return err
		}
		defer redisClient.Close()

		sessionManager = NewSessionManager(redisClient)
		paymentMethods = cache.NewRedisCache[[]domain.PaymentMethod](redisClient, "payment-methods")
		paymentKeys = cache.NewRedisCache[string](redisClient, "payment-config")
	} else {
		logger.Warn("no redis configured, sessions and caches are kept in memory")

		sessionManager = newMemorySessionManager()
		paymentMethods = cache.NewMemoryCache[[]domain.PaymentMethod]()
		paymentKeys = cache.NewMemoryCache[string]()
	}

	sessionManager.IdleTimeout = cfg.Checkout.SessionIdleTime

	if cfg.Stripe.SecretKey != "" {
		verifier = payment.NewStripeIntentVerifier(cfg.Stripe.SecretKey)
	}

	if brokers := events.ParseBrokers(cfg.Kafka.Brokers); len(brokers) > 0 {
		kafkaPublisher := events.NewKafkaPublisher(brokers, cfg.Kafka.Topic, logger)
		defer kafkaPublisher.Close()

		publisher = kafkaPublisher
	}

	app = NewApp(
		cfg,
		logger,
		appvalidator.NewValidator(),
		sessionManager,
		metrics.New(reg),
		gateway.NewClient(cfg.Backend.URL, cfg.Backend.Timeout, logger),
		ledger,
		verifier,
		publisher,
		paymentMethods,
		paymentKeys,
	)

	return app.run()
}

func NewApp(
	cfg Config,
	logger *slog.Logger,
	validator *validator.Validate,
	sessionManager *scs.SessionManager,
	metrics *metrics.Metrics,
	gateway domain.Gateway,
	ledger domain.CheckoutLedger,
	verifier domain.IntentVerifier,
	publisher domain.EventPublisher,
	paymentMethods cache.Cache[[]domain.PaymentMethod],
	paymentKeys cache.Cache[string]) *Application {

	app := &Application{
		config:         cfg,
		logger:         logger,
		validator:      validator,
		sessionManager: sessionManager,
		metrics:        metrics,
		gateway:        gateway,
		ledger:         ledger,
		verifier:       verifier,
		publisher:      publisher,
		paymentMethods: paymentMethods,
		paymentKeys:    paymentKeys,
	}

	app.engines = newEngineRegistry(app.newEngine, cfg.Checkout.SessionIdleTime)

	return app
}

func NewSessionManager(client *redis.Client) *scs.SessionManager {
	sessionManager := scs.New()

	sessionManager.Store = goredisstore.New(client)
	sessionManager.IdleTimeout = 20 * time.Minute
	sessionManager.Cookie.Name = "session_id"

	return sessionManager
}

func newMemorySessionManager() *scs.SessionManager {
	sessionManager := scs.New()

	sessionManager.Store = memstore.New()
	sessionManager.IdleTimeout = 20 * time.Minute
	sessionManager.Cookie.Name = "session_id"

	return sessionManager
}

func NewRedisClient(cfg Config) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:            cfg.Redis.URL,
		MaxIdleConns:    cfg.Redis.MaxIdleConns,
		MaxActiveConns:  cfg.Redis.MaxOpenConns,
		ConnMaxIdleTime: cfg.Redis.MaxIdleTime,
	})

	err := errors.Join(redisotel.InstrumentTracing(rdb), redisotel.InstrumentMetrics(rdb))
	if err != nil {
		rdb.Close()
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	err = rdb.Ping(ctx).Err()
	if err != nil {
		rdb.Close()
		return nil, err
	}

	return rdb, nil
}

func NewDatabasePool(cfg Config) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(cfg.DB.DSN)
	if err != nil {
		return nil, err
	}

	config.MaxConnIdleTime = cfg.DB.MaxIdleTime
	config.MaxConns = int32(cfg.DB.MaxOpenConns)
	config.ConnConfig.Tracer = otelpgx.NewTracer()

	db, err := pgxpool.NewWithConfig(context.Background(), config)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	err = db.Ping(ctx)
	if err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

func (app *Application) run() error {
	srv := &http.Server{
		Addr:         fmt.Sprintf("0.0.0.0:%d", app.config.Port),
		Handler:      app.Routes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: app.config.Backend.Timeout + 10*time.Second,
		ErrorLog:     slog.NewLogLogger(app.logger.Handler(), slog.LevelDebug),
	}

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()

	go app.engines.sweepEvery(sweepCtx, time.Minute)

	shutdownError := make(chan error)

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		s := <-quit

		app.logger.Info("shutting down server", "signal", s.String())

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		shutdownError <- srv.Shutdown(ctx)
	}()

	app.logger.Info("starting server", "addr", srv.Addr, "env", app.config.Env, "version", version)

	err := srv.ListenAndServe()
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	err = <-shutdownError
	if err != nil {
		return err
	}

	app.logger.Info("stopped server", "addr", srv.Addr)

	return nil
}
