package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/example/fixlite/internal/admin"
	"github.com/example/fixlite/internal/directory"
	"github.com/example/fixlite/internal/handler"
	"github.com/example/fixlite/internal/intervention/domain"
	"github.com/example/fixlite/internal/intervention/repository"
	interventionservice "github.com/example/fixlite/internal/intervention/service"
	"github.com/example/fixlite/internal/matching"
	"github.com/example/fixlite/internal/message"
	"github.com/example/fixlite/internal/notification"
	outboxworker "github.com/example/fixlite/internal/outbox"
	"github.com/example/fixlite/internal/settlement"
	"github.com/example/fixlite/pkg/observability"
	outboxpkg "github.com/example/fixlite/pkg/outbox"
)

type appConfig struct {
	HTTPAddr     string
	JWTSecret    string
	PostgresDSN  string
	NATSURL      string
	RedisAddr    string
	EventSubject string
	CheckoutURL  string
	CheckoutKey  string
	Currency     string
	OutboxPoll   time.Duration
	OutboxBatch  int
	OutboxRetry  int
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	_ = godotenv.Load()

	logger := observability.SetupLogger("intervention-service")
	defer logger.Sync() //nolint:errcheck

	shutdown, err := observability.SetupTracer(ctx, "intervention-service")
	if err != nil {
		logger.Warn("tracer setup failed", zap.Error(err))
	} else {
		defer shutdown(context.Background())
	}

	cfg := loadConfig()

	var db *sql.DB
	if cfg.PostgresDSN != "" {
		db, err = sql.Open("pgx", cfg.PostgresDSN)
		if err != nil {
			logger.Fatal("postgres connect", zap.Error(err))
		}
		db.SetMaxOpenConns(10)
		db.SetConnMaxLifetime(5 * time.Minute)
		if err := db.PingContext(ctx); err != nil {
			logger.Fatal("postgres ping", zap.Error(err))
		}
		defer db.Close()
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		if conn, err := nats.Connect(cfg.NATSURL, nats.Name("interventionservice")); err == nil {
			natsConn = conn
			defer conn.Drain()
		} else {
			logger.Warn("nats connection failed", zap.Error(err))
		}
	}

	interventions := repository.NewMemoryInterventionRepository()
	users := repository.NewMemoryUserDirectory()
	payments := repository.NewMemoryPaymentRepository()
	messages := repository.NewMemoryMessageRepository()
	notifications := repository.NewMemoryNotificationRepository()

	publisher := outboxpkg.NewPublisher(natsConn, cfg.EventSubject)
	clock := domain.SystemClock{}

	processor := settlement.NewCheckoutClient(cfg.CheckoutURL, cfg.CheckoutKey, nil)

	svc := interventionservice.New(interventions, publisher, clock, repository.NewMemoryIdempotencyRepo())
	matcher := buildMatcher(ctx, users, logger, cfg)
	engine := settlement.NewEngine(interventions, payments, processor, publisher, clock, cfg.Currency)
	messageSvc := message.New(messages, interventions, clock)
	notificationSvc := notification.New(notifications, clock)
	adminSvc := admin.New(interventions, users, payments)
	directorySvc := directory.New(users)

	api := handler.NewHTTP(svc, matcher, engine, messageSvc, notificationSvc, adminSvc, directorySvc, cfg.JWTSecret)

	r := chi.NewRouter()
	r.Mount("/", api.Router())
	r.Mount("/observability", observability.MetricsRouter())

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	if db != nil && natsConn != nil {
		worker := outboxworker.NewWorker(db, natsConn, logger.Named("outbox"), outboxworker.WorkerConfig{
			PollInterval: cfg.OutboxPoll,
			BatchSize:    cfg.OutboxBatch,
			RetryMax:     cfg.OutboxRetry,
		})
		go func() {
			if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("outbox worker stopped", zap.Error(err))
			}
		}()
	} else {
		logger.Warn("outbox worker disabled", zap.Bool("db", db != nil), zap.Bool("nats", natsConn != nil))
	}

	go func() {
		logger.Info("intervention service listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("http server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

// buildMatcher narrows candidate lookup through the shared Redis geo
// index when REDIS_ADDR is set; otherwise searches scan the directory.
func buildMatcher(ctx context.Context, users *repository.MemoryUserDirectory, logger *zap.Logger, cfg appConfig) *matching.Service {
	if cfg.RedisAddr == "" {
		return matching.NewService(users)
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis unreachable, matching without geo index", zap.Error(err))
		return matching.NewService(users)
	}
	return matching.NewServiceWithIndex(users, matching.NewRedisGeoIndex(client, ""), users)
}

func loadConfig() appConfig {
	return appConfig{
		HTTPAddr:     getenv("HTTP_ADDR", ":8080"),
		JWTSecret:    getenv("JWT_SECRET", "dev-secret"),
		PostgresDSN:  firstNonEmpty(os.Getenv("POSTGRES_DSN"), os.Getenv("DATABASE_URL")),
		NATSURL:      os.Getenv("NATS_URL"),
		RedisAddr:    os.Getenv("REDIS_ADDR"),
		EventSubject: getenv("EVENT_SUBJECT", "intervention.events"),
		CheckoutURL:  getenv("CHECKOUT_API_URL", "http://localhost:9090"),
		CheckoutKey:  os.Getenv("CHECKOUT_API_KEY"),
		Currency:     getenv("CURRENCY", "eur"),
		OutboxPoll:   time.Duration(parseIntEnv("OUTBOX_POLL_MS", 200)) * time.Millisecond,
		OutboxBatch:  parseIntEnv("OUTBOX_BATCH", 100),
		OutboxRetry:  parseIntEnv("OUTBOX_RETRY_MAX", 3),
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func parseIntEnv(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return fallback
}
