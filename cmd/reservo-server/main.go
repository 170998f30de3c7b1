package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"reservo/backend/internal/availability"
	"reservo/backend/internal/config"
	"reservo/backend/internal/events"
	"reservo/backend/internal/lock"
	"reservo/backend/internal/metrics"
	"reservo/backend/internal/seed"
	"reservo/backend/internal/service/booking"
	"reservo/backend/internal/service/catalog"
	"reservo/backend/internal/service/schedule"
	"reservo/backend/internal/store"
	"reservo/backend/internal/store/memory"
	"reservo/backend/internal/store/postgres"
	"reservo/backend/internal/store/sqlite"
	grpcTransport "reservo/backend/internal/transport/grpc"
	httpTransport "reservo/backend/internal/transport/http"
)

func main() {
	log := zerolog.New(os.Stdout).With().Timestamp().Str("service", "reservo-server").Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Error().Err(err).Msg("config load failed")
		os.Exit(1)
	}
	log = newLogger(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error().Err(err).Msg("server stopped with error")
		os.Exit(1)
	}
}

func newLogger(level, format string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	out := zerolog.New(os.Stdout)
	if format == "console" {
		out = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	}
	return out.Level(lvl).With().Timestamp().Str("service", "reservo-server").Logger()
}

// stores is the storage backend selected by database.driver.
type stores struct {
	schedule     store.ScheduleRepository
	catalog      store.CatalogRepository
	reservations store.ReservationRepository
	ping         func(ctx context.Context) error
	close        func() error
}

func openStores(ctx context.Context, cfg config.Config, log zerolog.Logger) (stores, error) {
	switch cfg.DatabaseDriver {
	case config.DriverPostgres:
		log.Info().Fields(databaseLogFields(cfg.DatabaseURL)).Msg("connecting to database")
		db, err := postgres.Open(ctx, cfg.DatabaseURL, postgres.PoolConfig{
			MaxOpenConns:    cfg.DBMaxOpenConns,
			MaxIdleConns:    cfg.DBMaxIdleConns,
			ConnMaxLifetime: cfg.DBConnMaxLifetime,
			ConnMaxIdleTime: cfg.DBConnMaxIdleTime,
		})
		if err != nil {
			return stores{}, fmt.Errorf("database connection failed: %w", err)
		}
		if cfg.DatabaseMigrate {
			applied, err := postgres.Migrate(ctx, db)
			if err != nil {
				_ = postgres.Close(db)
				return stores{}, fmt.Errorf("migrate: %w", err)
			}
			log.Info().Strs("applied", applied).Msg("migrations complete")
		}
		s := postgres.NewStore(db)
		return stores{s.Schedule, s.Catalog, s.Reservations, s.Ping, s.Close}, nil

	case config.DriverSQLite:
		s, err := sqlite.Open(ctx, cfg.SQLitePath, log)
		if err != nil {
			return stores{}, err
		}
		return stores{s.Schedule, s.Catalog, s.Reservations, s.Ping, s.Close}, nil

	default:
		log.Warn().Msg("using in-memory storage, data is lost on restart")
		return stores{
			schedule:     memory.NewScheduleRepo(),
			catalog:      memory.NewCatalogRepo(),
			reservations: memory.NewReservationRepo(),
			ping:         func(context.Context) error { return nil },
			close:        func() error { return nil },
		}, nil
	}
}

func run(ctx context.Context, cfg config.Config, log zerolog.Logger) error {
	log.Info().
		Str("grpc_addr", cfg.GRPCAddr()).
		Str("http_addr", cfg.HTTPAddr).
		Str("database_driver", cfg.DatabaseDriver).
		Str("timezone", cfg.Location.String()).
		Msg("starting")

	metrics.Register()

	st, err := openStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.close(); err != nil {
			log.Warn().Err(err).Msg("database close failed")
		}
	}()
	ready := st.ping

	var locker lock.Locker = lock.NewKeyedMutex()
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		defer client.Close()
		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis ping %s: %w", cfg.RedisAddr, err)
		}
		locker = lock.NewRedis(client, "reservo:lock:", cfg.RedisLockTTL, log)
		ready = func(ctx context.Context) error {
			if err := st.ping(ctx); err != nil {
				return err
			}
			return client.Ping(ctx).Err()
		}
		log.Info().Str("redis_addr", cfg.RedisAddr).Msg("using redis slot locks")
	}

	var publisher events.Publisher
	if cfg.AMQPURL != "" {
		p, err := events.DialAMQP(cfg.AMQPURL, cfg.AMQPExchange, log)
		if err != nil {
			return err
		}
		defer p.Close()
		publisher = p
	} else {
		bus := events.NewBus()
		bus.Subscribe("", func(ctx context.Context, e events.Envelope) error {
			log.Debug().Str("event", e.Type).RawJSON("payload", e.Payload).Msg("event")
			return nil
		})
		publisher = bus
	}

	sched := schedule.NewService(st.schedule, cfg.DefaultHorizon, log)
	cat := catalog.NewService(st.catalog, log)
	coord := booking.NewCoordinator(
		cat,
		availability.NewEngine(sched),
		st.reservations,
		locker,
		publisher,
		log,
		booking.WithLocation(cfg.Location),
	)

	if cfg.SeedPath != "" {
		applier := seed.NewApplier(sched, cat, log)
		if cfg.SeedWatchInterval > 0 {
			err = applier.Watch(ctx, cfg.SeedPath, cfg.SeedWatchInterval)
		} else {
			_, err = applier.LoadAndApply(ctx, cfg.SeedPath)
		}
		if err != nil {
			return fmt.Errorf("seed %s: %w", cfg.SeedPath, err)
		}
	}

	grpcServer := grpc.NewServer(grpc.ChainUnaryInterceptor(
		grpcTransport.Logging(log),
		grpcTransport.DefaultTimeout(cfg.GRPCRequestTimeout),
		grpcTransport.RateLimit(cfg.CreateRate, cfg.CreateBurst, grpcTransport.CreateReservationMethod),
	))
	grpcTransport.RegisterBookingServiceServer(grpcServer, grpcTransport.NewBookingServer(coord, log))
	healthServer := health.NewServer()
	healthServer.SetServingStatus(grpcTransport.BookingServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	lis, err := net.Listen("tcp", cfg.GRPCAddr())
	if err != nil {
		return fmt.Errorf("grpc listen %s: %w", cfg.GRPCAddr(), err)
	}

	if log.GetLevel() > zerolog.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}
	httpServer := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: httpTransport.NewRouter(httpTransport.Deps{
			Schedule: sched,
			Catalog:  cat,
			Booking:  coord,
			Ready:    ready,
			Log:      log,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		errCh <- grpcServer.Serve(lis)
	}()
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()
	log.Info().Str("grpc_addr", cfg.GRPCAddr()).Str("http_addr", cfg.HTTPAddr).Msg("servers started")

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
		healthServer.Shutdown()
		shutdown(log, grpcServer, httpServer, cfg.ShutdownTimeout)
		return nil
	case err := <-errCh:
		healthServer.Shutdown()
		shutdown(log, grpcServer, httpServer, cfg.ShutdownTimeout)
		if err != nil && !errors.Is(err, grpc.ErrServerStopped) && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func shutdown(log zerolog.Logger, s *grpc.Server, h *http.Server, timeout time.Duration) {
	log.Info().Dur("timeout", timeout).Msg("shutting down servers")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := h.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("http shutdown failed")
	}

	done := make(chan struct{})
	go func() {
		s.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
		log.Info().Msg("grpc server stopped")
	case <-ctx.Done():
		log.Warn().Msg("grpc graceful shutdown timed out; forcing stop")
		s.Stop()
	}
}

// databaseLogFields describes the target database without credentials.
func databaseLogFields(databaseURL string) map[string]any {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return map[string]any{"db_url": "invalid"}
	}
	name := strings.TrimPrefix(u.Path, "/")
	host := u.Hostname()
	port := u.Port()
	if port == "" {
		port = "default"
	}
	if host == "" {
		host = "unknown"
	}
	if name == "" {
		name = "unknown"
	}
	return map[string]any{
		"db_host": host,
		"db_port": port,
		"db_name": name,
	}
}
