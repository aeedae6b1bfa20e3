package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/example/fixlite/internal/geo"
	"github.com/example/fixlite/internal/matching"
	"github.com/example/fixlite/internal/presence"
	"github.com/example/fixlite/pkg/observability"
)

// The process owns no user records, so updates land in the shared Redis
// geo index; the intervention service resolves profiles from its own
// directory when it searches the index. REDIS_ADDR is therefore required.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := observability.SetupLogger("presence-service")
	defer logger.Sync() //nolint:errcheck

	shutdown, err := observability.SetupTracer(ctx, "presence-service")
	if err != nil {
		logger.Warn("tracer setup failed", zap.Error(err))
	} else {
		defer shutdown(context.Background())
	}

	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		logger.Fatal("REDIS_ADDR is required: location updates have nowhere to go without the shared geo index")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Fatal("redis ping", zap.Error(err))
	}
	defer client.Close()

	index := matching.NewRedisGeoIndex(client, getenv("GEO_INDEX_KEY", "technician:locs"))
	sink := geoSink{index}

	go runMetrics(logger)
	runGRPC(ctx, logger, sink)
}

func runMetrics(logger *zap.Logger) {
	r := chi.NewRouter()
	r.Mount("/observability", observability.MetricsRouter())

	srv := &http.Server{Addr: getenv("METRICS_ADDR", ":8081"), Handler: r, ReadHeaderTimeout: 5 * time.Second}
	logger.Info("presence metrics listening", zap.String("addr", srv.Addr))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("metrics server", zap.Error(err))
	}
}

func runGRPC(ctx context.Context, logger *zap.Logger, sink presence.LocationSink) {
	lis, err := net.Listen("tcp", getenv("GRPC_ADDR", ":9091"))
	if err != nil {
		logger.Fatal("listen grpc", zap.Error(err))
	}

	srv := grpc.NewServer()
	presence.RegisterPresenceServer(srv, presence.NewServer(sink, logger))

	go func() {
		<-ctx.Done()
		srv.GracefulStop()
	}()

	logger.Info("presence grpc listening", zap.String("addr", lis.Addr().String()))
	if err := srv.Serve(lis); err != nil {
		logger.Fatal("grpc serve", zap.Error(err))
	}
}

// geoSink adapts the Redis geo index to the sink interface.
type geoSink struct {
	index *matching.RedisGeoIndex
}

func (g geoSink) UpdateLocation(ctx context.Context, technicianID uuid.UUID, lat, lng float64) error {
	return g.index.UpsertLocation(ctx, technicianID, geo.Point{Lat: lat, Lng: lng})
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
