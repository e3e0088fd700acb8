package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"

	"github.com/Abu-doc/Cart/internal/catalog"
	"github.com/Abu-doc/Cart/internal/config"
	h "github.com/Abu-doc/Cart/internal/http"
	"github.com/Abu-doc/Cart/internal/logger"
	"github.com/Abu-doc/Cart/internal/notify"
	"github.com/Abu-doc/Cart/internal/publisher"
	"github.com/Abu-doc/Cart/internal/repository"
	"github.com/Abu-doc/Cart/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()
	zap.ReplaceGlobals(log)

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	ctx := context.Background()

	// Catalog
	products, err := catalog.NewRepository(cfg.CatalogDriver, cfg.CatalogDSN)
	if err != nil {
		log.Fatal("open catalog", zap.Error(err))
	}
	defer products.Close()

	if err := products.RunMigrations(); err != nil {
		log.Fatal("catalog migrations", zap.Error(err))
	}
	log.Info("catalog ready", zap.String("driver", cfg.CatalogDriver))

	// Cart store
	carts, closeCarts, err := openCartStore(ctx, cfg, log)
	if err != nil {
		log.Fatal("open cart store", zap.String("store", cfg.CartStore), zap.Error(err))
	}
	defer closeCarts()

	// Receipt fan-out
	var opts []service.CheckoutOption
	if len(cfg.KafkaBrokers) > 0 {
		pub := publisher.NewReceiptPublisher(cfg.ReceiptTopic, log, cfg.KafkaBrokers...)
		defer pub.Close()
		opts = append(opts, service.WithPublisher(pub))
		log.Info("receipt publishing enabled", zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", cfg.ReceiptTopic))
	}
	if cfg.SendGridAPIKey != "" {
		opts = append(opts, service.WithMailer(notify.NewReceiptMailer(cfg.SendGridAPIKey, cfg.MailFrom, cfg.CurrencyUnit(), log)))
		log.Info("receipt mail enabled", zap.String("from", cfg.MailFrom))
	}

	catalogService := service.NewCatalogService(products)
	cartService := service.NewCartService(carts, catalogService, log)
	checkoutService := service.NewCheckoutService(carts, catalogService, cfg.CurrencyUnit(), log, opts...)

	router := h.NewRouter(h.RouterConfig{
		RequestTimeout:     cfg.RequestTimeout,
		MaxRequestBodySize: cfg.MaxRequestBodySize,
		CORSOrigins:        cfg.CORSOrigins,
	}, h.Handlers{
		Products: h.NewProductHandler(catalogService, cfg.RequestTimeout, log),
		Cart:     h.NewCartHandler(cartService, cfg.RequestTimeout, log),
		Checkout: h.NewCheckoutHandler(checkoutService, cfg.RequestTimeout, log),
	}, log)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("server starting", zap.String("addr", srv.Addr), zap.String("cart_store", cfg.CartStore))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}
	if err := checkoutService.Close(shutdownCtx); err != nil {
		log.Warn("receipt announcements not drained", zap.Error(err))
	}

	log.Info("server exited")
}

func openCartStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (repository.CartRepository, func(), error) {
	switch cfg.CartStore {
	case config.StoreMongo:
		db, err := repository.OpenMongoDatabase(ctx, repository.MongoConfig{
			URI:            cfg.MongoURI,
			Database:       cfg.MongoDBName,
			MaxPoolSize:    cfg.MongoPool.MaxSize,
			MinPoolSize:    cfg.MongoPool.MinSize,
			ConnectTimeout: cfg.MongoPool.ConnectTimeout,
		})
		if err != nil {
			return nil, nil, err
		}
		repo, err := repository.NewMongoRepository(ctx, db)
		if err != nil {
			_ = db.Client().Disconnect(ctx)
			return nil, nil, err
		}
		log.Info("connected to MongoDB",
			zap.String("database", cfg.MongoDBName),
			zap.Uint64("max_pool_size", cfg.MongoPool.MaxSize))
		return repo, func() { _ = db.Client().Disconnect(context.Background()) }, nil

	case config.StoreRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       0,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("redis ping: %w", err)
		}
		log.Info("connected to Redis", zap.String("addr", cfg.RedisAddr))
		return repository.NewRedisRepository(client), func() { _ = client.Close() }, nil

	default:
		log.Warn("using in-memory cart store; carts are lost on restart")
		return repository.NewMemoryRepository(), func() {}, nil
	}
}
