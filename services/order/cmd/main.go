package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/switq/fast-food-api/pkg/config"
	"github.com/switq/fast-food-api/pkg/db"
	kafka2 "github.com/switq/fast-food-api/pkg/kafka"
	"github.com/switq/fast-food-api/pkg/metrics"
	"github.com/switq/fast-food-api/pkg/mylogger"
	outboxRepository "github.com/switq/fast-food-api/pkg/outbox/repository"
	"github.com/switq/fast-food-api/pkg/outbox/worker"
	"github.com/switq/fast-food-api/pkg/utils"
	"github.com/switq/fast-food-api/services/order/internal/domain"
	"github.com/switq/fast-food-api/services/order/internal/infrastructure/payment"
	"github.com/switq/fast-food-api/services/order/internal/repository"
	"github.com/switq/fast-food-api/services/order/internal/service"
	"github.com/switq/fast-food-api/services/order/internal/transport/http"
	"github.com/switq/fast-food-api/services/order/internal/transport/http/handler"
	"github.com/switq/fast-food-api/services/order/internal/transport/kafka"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var _ service.PaymentGateway = (*payment.MercadoPagoClient)(nil)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf(".env not found: %v\n", err)
	}

	cfg := config.MustLoad()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tp, err := utils.InitTracer(ctx, utils.TracerOptions{
		ServiceName: "order-service",
		Env:         cfg.Env,
		Endpoint:    cfg.Tracing.Endpoint,
		SampleRatio: cfg.Tracing.SampleRatio,
	})
	if err != nil {
		log.Fatalf("failed to init tracer: %v", err)
	}

	logger, err := config.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	if err := db.Migrate(cfg.Postgres.URL, cfg.Postgres.MigrationsPath); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}

	pool, err := db.NewPostgresDB(ctx, cfg.Postgres)
	if err != nil {
		log.Fatalf("failed to create pool: %v", err)
	}
	defer pool.Close()

	rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
	defer func() {
		if err := rdb.Close(); err != nil {
			mylogger.Warn(context.Background(), logger, "Failed to close redis client", zap.Error(err))
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	orderMetrics := metrics.NewOrderMetrics(registry, "fastfood")

	outboxRepo := outboxRepository.NewOutboxRepository(pool, logger)

	kafkaProducer, err := kafka2.NewProducer(cfg.Kafka.Brokers)
	if err != nil {
		log.Fatalf("error creating kafka producer: %v", err)
	}
	defer func() {
		if err := kafkaProducer.Close(); err != nil {
			mylogger.Warn(context.Background(), logger, "Failed to close kafka producer", zap.Error(err))
		}
	}()

	outboxProcessor := worker.NewOutboxProcessor(
		pool,
		outboxRepo,
		kafkaProducer,
		logger,
		worker.WithBatchSize(cfg.Outbox.BatchSize),
		worker.WithInterval(cfg.Outbox.Interval),
		worker.WithRetention(cfg.Outbox.Retention),
	)

	orderRepo := repository.NewOrderRepository(pool, outboxRepo, cfg.Kafka.OrderEventsTopic, logger)
	productRepo := repository.NewCachedProductRepository(
		repository.NewProductRepository(pool, logger),
		rdb,
		cfg.Redis.ProductCacheTTL,
		logger,
	)
	customerRepo := repository.NewCustomerRepository(pool, logger)

	numbers, err := orderNumbers(cfg.OrderNumber, pool, rdb, logger)
	if err != nil {
		log.Fatalf("%v", err)
	}

	gateway := payment.NewMercadoPagoClient(cfg.Payment, logger)

	orderService := service.NewOrderService(orderRepo, productRepo, customerRepo, numbers, orderMetrics, logger)
	paymentService := service.NewPaymentService(
		orderRepo,
		customerRepo,
		gateway,
		numbers,
		service.PaymentConfig{
			StrictReplay:    cfg.Payment.StrictReplay,
			GuestEmail:      cfg.Payment.GuestEmail,
			PaymentMethodID: cfg.Payment.MethodID,
		},
		orderMetrics,
		logger,
	)
	kitchenService := service.NewKitchenService(orderRepo, logger)
	productService := service.NewProductService(productRepo, logger)
	customerService := service.NewCustomerService(customerRepo, logger)

	app := fiber.New(fiber.Config{
		ReadTimeout:  cfg.HTTP.Timeout,
		WriteTimeout: cfg.HTTP.Timeout,
	})

	app.Use(otelfiber.Middleware())

	app.Use(limiter.New(limiter.Config{
		Max:        cfg.Limiter.Max,
		Expiration: cfg.Limiter.Expiration,
		Next: func(c *fiber.Ctx) bool {
			return c.Path() == "/webhooks/payment"
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests. Try again later.",
			})
		},
	}))

	http.RegisterRoutes(app, &http.Handlers{
		Order:    handler.NewOrderHandler(orderService, logger),
		Payment:  handler.NewPaymentHandler(paymentService, logger),
		Kitchen:  handler.NewKitchenHandler(kitchenService, logger),
		Product:  handler.NewProductHandler(productService, logger),
		Customer: handler.NewCustomerHandler(customerService, logger),
	}, http.Options{
		Metrics:  orderMetrics,
		Gatherer: registry,
		Ready:    pool.Ping,
	})

	consumer := kafka.NewConsumer(paymentService, kafka.PostgresDeduplicator(pool, logger), logger)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		outboxProcessor.Start(gCtx)
		return nil
	})

	g.Go(func() error {
		return consumer.Start(gCtx, cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.PaymentNotificationsTopic)
	})

	g.Go(func() error {
		mylogger.Info(gCtx, logger, "HTTP server listening", zap.String("port", cfg.HTTP.Port))
		if err := app.Listen(cfg.HTTP.Port); err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		mylogger.Info(shutdownCtx, logger, "Shutting down order service")

		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			mylogger.Warn(shutdownCtx, logger, "Error shutting down HTTP app", zap.Error(err))
		}

		if err := tp.Shutdown(shutdownCtx); err != nil {
			mylogger.Warn(shutdownCtx, logger, "Failed to shut down telemetry", zap.Error(err))
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		mylogger.Error(context.Background(), logger, "Order service stopped with error", zap.Error(err))
	}
}

func orderNumbers(cfg config.OrderNumber, pool *pgxpool.Pool, rdb *redis.Client, logger *zap.Logger) (domain.OrderNumberGenerator, error) {
	switch cfg.Backend {
	case "", "postgres":
		return repository.NewOrderNumberRepository(pool, logger), nil
	case "redis":
		return repository.NewRedisOrderNumbers(rdb, logger), nil
	case "clock":
		return domain.ClockSequence{}, nil
	default:
		return nil, fmt.Errorf("unknown order number backend %q", cfg.Backend)
	}
}
