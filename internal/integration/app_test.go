package integration_test

import (
	"log/slog"
	"os"

	"github.com/enrolhub/checkout-engine/internal/app"
	"github.com/enrolhub/checkout-engine/internal/cache"
	"github.com/enrolhub/checkout-engine/internal/domain"
	"github.com/enrolhub/checkout-engine/internal/events"
	"github.com/enrolhub/checkout-engine/internal/metrics"
	"github.com/enrolhub/checkout-engine/internal/mocks"
	"github.com/enrolhub/checkout-engine/internal/repository"
	appvalidator "github.com/enrolhub/checkout-engine/internal/validator"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
)

type TestApp struct {
	App     *app.Application
	DB      *pgxpool.Pool
	Redis   *redis.Client
	Ledger  *repository.PostgresLedger
	Backend *mocks.FakeBackend
}

func newTestApp(cfg app.Config) (*TestApp, error) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	db, err := app.NewDatabasePool(cfg)
	if err != nil {
		return nil, err
	}

	redisClient, err := app.NewRedisClient(cfg)
	if err != nil {
		db.Close()
		return nil, err
	}

	sessionManager := app.NewSessionManager(redisClient)
	ledger := repository.NewPostgresLedger(db)
	backend := mocks.NewFakeBackend()

	application := app.NewApp(
		cfg,
		logger,
		appvalidator.NewValidator(),
		sessionManager,
		metrics.New(prometheus.NewRegistry()),
		backend,
		ledger,
		nil,
		events.Noop{},
		cache.NewRedisCache[[]domain.PaymentMethod](redisClient, "payment-methods"),
		cache.NewRedisCache[string](redisClient, "payment-config"),
	)

	return &TestApp{
		App:     application,
		DB:      db,
		Redis:   redisClient,
		Ledger:  ledger,
		Backend: backend,
	}, nil
}

func (a *TestApp) Close() {
	a.Redis.Close()
	a.DB.Close()
}
