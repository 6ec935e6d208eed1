package main

import (
	"context"
	"database/sql"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/rl1809/storefront/internal/adapter/handler"
	"github.com/rl1809/storefront/internal/adapter/remote"
	"github.com/rl1809/storefront/internal/adapter/secret"
	"github.com/rl1809/storefront/internal/adapter/storage"
	"github.com/rl1809/storefront/internal/config"
	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/core/service"
	"github.com/rl1809/storefront/internal/logger"
	"github.com/rl1809/storefront/internal/port"
	"github.com/rl1809/storefront/internal/telemetry"
)

const serviceName = "storefront"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log, err := logger.New(cfg.LogLevel, serviceName)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := telemetry.Setup(ctx, serviceName, cfg.OTLPEndpoint)
	if err != nil {
		log.Fatal("failed to set up tracing", zap.Error(err))
	}

	// Key-value cache
	cache, closeCache, err := openCache(ctx, cfg, log)
	if err != nil {
		log.Fatal("failed to open cache", zap.String("backend", cfg.CacheBackend), zap.Error(err))
	}

	// Secret store and token bootstrap
	secrets, err := openSecrets(ctx, cfg, log)
	if err != nil {
		log.Fatal("failed to open secret store", zap.Error(err))
	}
	token := service.NewTokenBootstrap(secrets, cfg.PlaceholderToken, log).Bootstrap(ctx)
	log.Info("auth token ready")

	// Core services
	users := remote.NewHTTPUserSource(remote.Config{
		URL:              cfg.UsersURL,
		Timeout:          cfg.FetchTimeout,
		FailureThreshold: cfg.BreakerThreshold,
		OpenTimeout:      cfg.BreakerTimeout,
	}, log)
	cart := service.NewCartStore()
	catalog := service.NewCatalogFeed(domain.GenerateCatalog(cfg.CatalogSize, cfg.CatalogSeed), cfg.PageSize, cfg.PageSettle)
	directory := service.NewDirectoryLoader(users, cache, log)
	checkout := service.NewCheckoutService(cart, cache, cfg.QueueSize)
	log.Info("catalog generated", zap.Int("products", catalog.Total()))

	res := directory.Load(ctx)
	log.Info("user directory loaded",
		zap.String("source", string(res.Source)),
		zap.Int("users", len(res.Users)),
	)

	// Start worker pool
	var wg sync.WaitGroup
	for i := 0; i < cfg.WorkerCount; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			workerLoop(id, checkout, log)
		}(i)
	}
	log.Info("started workers", zap.Int("count", cfg.WorkerCount))

	svc := handler.Services{
		Cart:             cart,
		Catalog:          catalog,
		Directory:        directory,
		Checkout:         checkout,
		Token:            token,
		PlaceholderToken: cfg.PlaceholderToken,
	}

	// Initialize gRPC server
	grpcServer := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	handler.RegisterStorefrontServer(grpcServer, handler.NewGRPCHandler(svc, log))
	healthServer := health.NewServer()
	healthServer.SetServingStatus(handler.StorefrontServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	reflection.Register(grpcServer)

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		log.Fatal("failed to listen", zap.String("addr", cfg.GRPCAddr), zap.Error(err))
	}

	go func() {
		log.Info("gRPC server listening", zap.String("addr", cfg.GRPCAddr))
		if err := grpcServer.Serve(lis); err != nil {
			log.Error("gRPC server error", zap.Error(err))
		}
	}()

	// Initialize HTTP server
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           otelhttp.NewHandler(handler.NewHTTPHandler(svc, log).Routes(), serviceName),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("HTTP server listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("HTTP shutdown", zap.Error(err))
	}
	log.Info("HTTP server stopped")

	healthServer.Shutdown()
	grpcServer.GracefulStop()
	log.Info("gRPC server stopped")

	// Close receipt queue and wait for workers
	checkout.Close()
	wg.Wait()
	log.Info("workers stopped")

	if err := secrets.Close(); err != nil {
		log.Warn("close secret store", zap.Error(err))
	}
	if err := closeCache(); err != nil {
		log.Warn("close cache", zap.Error(err))
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Warn("flush traces", zap.Error(err))
	}
	log.Info("connections closed")
}

func openCache(ctx context.Context, cfg config.Config, log *zap.Logger) (port.KeyValueStore, func() error, error) {
	switch cfg.CacheBackend {
	case config.CacheRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			PoolSize: 100,
		})
		adapter := storage.NewRedisAdapter(rdb)
		if err := adapter.Ping(ctx); err != nil {
			rdb.Close()
			return nil, nil, err
		}
		log.Info("connected to redis", zap.String("addr", cfg.RedisAddr))
		return adapter, rdb.Close, nil

	case config.CacheMySQL:
		db, err := sql.Open("mysql", cfg.MySQLDSN)
		if err != nil {
			return nil, nil, err
		}
		db.SetMaxOpenConns(50)
		db.SetMaxIdleConns(25)
		db.SetConnMaxLifetime(5 * time.Minute)
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		adapter := storage.NewMySQLAdapter(db)
		if err := adapter.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		log.Info("connected to mysql")
		return adapter, db.Close, nil

	default:
		log.Info("using in-memory cache")
		return storage.NewMemoryAdapter(), func() error { return nil }, nil
	}
}

func openSecrets(ctx context.Context, cfg config.Config, log *zap.Logger) (*secret.SQLiteStore, error) {
	var key []byte
	var err error
	if cfg.SecretKey == "" {
		log.Warn("no secret key configured, using an ephemeral key; stored secrets will not survive a restart")
		key, err = secret.GenerateKey()
	} else {
		key, err = secret.ParseKey(cfg.SecretKey)
	}
	if err != nil {
		return nil, err
	}

	sealer, err := secret.NewAESGCMSealer(key)
	if err != nil {
		return nil, err
	}
	return secret.OpenSQLiteStore(ctx, cfg.SecretDBPath, sealer)
}

func workerLoop(id int, checkout *service.CheckoutService, log *zap.Logger) {
	for receipt := range checkout.GetReceiptQueue() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)

		if err := checkout.SaveReceipt(ctx, receipt); err != nil {
			log.Error("failed to save receipt",
				zap.Int("worker", id),
				zap.String("order_id", receipt.ID),
				zap.Error(err),
			)
		} else {
			log.Info("saved receipt", zap.Int("worker", id), zap.String("order_id", receipt.ID))
		}

		cancel()
	}
}
