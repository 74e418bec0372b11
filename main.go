package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/uptrace/bun"

	"wave-ticketing/internal/analytics"
	analytics_api "wave-ticketing/internal/analytics/api"
	"wave-ticketing/internal/auth"
	"wave-ticketing/internal/config"
	"wave-ticketing/internal/database"
	"wave-ticketing/internal/database/migrations"
	"wave-ticketing/internal/event"
	eventdb "wave-ticketing/internal/event/db"
	"wave-ticketing/internal/event/event_api"
	eventredis "wave-ticketing/internal/event/redis"
	"wave-ticketing/internal/kafka"
	"wave-ticketing/internal/logger"
	"wave-ticketing/internal/order"
	orderdb "wave-ticketing/internal/order/db"
	orderkafka "wave-ticketing/internal/order/kafka"
	"wave-ticketing/internal/order/order_api"
	orderredis "wave-ticketing/internal/order/redis"
	"wave-ticketing/internal/sse"
	ticketdb "wave-ticketing/internal/tickets/db"
	qr "wave-ticketing/internal/tickets/qr_genrator"
	tickets "wave-ticketing/internal/tickets/service"
	"wave-ticketing/internal/tickets/ticket_api"
)

// notifier is what both the event and order services publish through.
type notifier interface {
	event.InventoryNotifier
	order.OrderNotifier
}

func connectRedis(ctx context.Context, cfg config.RedisConfig, log *logger.Logger) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		// cache and purchase guard degrade to pass-through
		log.Warn("REDIS", fmt.Sprintf("Redis unreachable at %s: %v", cfg.Addr, err))
	} else {
		log.Info("REDIS", fmt.Sprintf("Redis connection successful to %s (DB: %d)", cfg.Addr, cfg.DB))
	}
	return client
}

func newVerifier(ctx context.Context, cfg config.AuthConfig, log *logger.Logger) auth.Verifier {
	if cfg.OIDCIssuer != "" {
		v, err := auth.NewOIDCVerifier(ctx, cfg.OIDCIssuer)
		if err != nil {
			log.Fatal("AUTH", fmt.Sprintf("OIDC discovery for %s failed: %v", cfg.OIDCIssuer, err))
		}
		log.Info("AUTH", fmt.Sprintf("Verifying tokens against issuer %s", cfg.OIDCIssuer))
		return v
	}
	if cfg.JWTSecret == "" {
		log.Fatal("CONFIG", "either OIDC_ISSUER or JWT_SECRET must be set")
	}
	log.Info("AUTH", "Verifying HS256 tokens with JWT_SECRET")
	return auth.NewHMACVerifier(cfg.JWTSecret)
}

// startMessaging wires Kafka when enabled and otherwise fans out in
// process. The returned func releases the Kafka clients.
func startMessaging(ctx context.Context, cfg config.KafkaConfig, cache orderkafka.Invalidator, emitter *sse.Emitter, log *logger.Logger) (notifier, func()) {
	if !cfg.Enabled {
		log.Info("KAFKA", "Kafka disabled, notifications stay in process")
		return &orderkafka.LocalNotifier{Emitter: emitter}, func() {}
	}

	topics := []string{cfg.Topics.OrderCreated, cfg.Topics.InventoryUpdated}
	if err := kafka.EnsureTopicsExist(ctx, cfg.Brokers, topics, log); err != nil {
		log.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
	}

	producer := kafka.NewProducer(cfg.Brokers)
	log.Info("KAFKA", fmt.Sprintf("Kafka producer initialized for %v", cfg.Brokers))

	// no group id: every instance sees every message
	inventoryConsumer := kafka.NewConsumer(cfg.Brokers, cfg.Topics.InventoryUpdated, "", log)
	checkoutConsumer := kafka.NewConsumer(cfg.Brokers, cfg.Topics.OrderCreated, "", log)
	go inventoryConsumer.Start(ctx, orderkafka.InventoryHandler(cache, emitter))
	go checkoutConsumer.Start(ctx, orderkafka.CheckoutHandler(emitter))

	n := orderkafka.NewNotifier(producer, cfg.Topics, log)
	return n, func() {
		n.Wait()
		inventoryConsumer.Close()
		checkoutConsumer.Close()
		if err := producer.Close(); err != nil {
			log.Error("KAFKA", fmt.Sprintf("Failed to close producer: %v", err))
		}
	}
}

func migrate(bunDB *bun.DB, log *logger.Logger) {
	runner := migrations.NewRunner(bunDB, log)
	if err := runner.MigrateUp(); err != nil {
		log.Fatal("MIGRATION", fmt.Sprintf("Migration failed: %v", err))
	}
}

func main() {
	envErr := godotenv.Load()
	cfg := config.Load()

	log, err := logger.New(logger.Options{Dir: cfg.Log.Dir, Level: cfg.Log.Level, Service: cfg.Log.Service})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Close()

	log.Info("APP", "Starting wave ticketing service")
	if envErr != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bunDB, err := database.Open(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal("DATABASE", err.Error())
	}
	defer bunDB.Close()
	migrate(bunDB, log)

	redisClient := connectRedis(ctx, cfg.Redis, log)
	defer redisClient.Close()

	emitter := sse.NewEmitter()
	stream := sse.NewHandler(emitter, log)
	cache := eventredis.NewAvailabilityCache(redisClient, cfg.Redis.AvailabilityTTL)
	notify, closeMessaging := startMessaging(ctx, cfg.Kafka, cache, emitter, log)
	defer closeMessaging()

	eventStore := &eventdb.DB{Bun: bunDB}
	eventService := event.NewService(eventStore, cache, notify, log)

	qrGen := qr.NewQRGenerator(cfg.Tickets.QRSecretKey, cfg.Tickets.AppURL)
	ticketService := tickets.NewTicketService(&ticketdb.DB{Bun: bunDB}, qrGen, log)

	orderService := order.NewOrderService(eventStore, &orderdb.DB{Bun: bunDB}, ticketService, cfg.Purchase, log)
	orderService.Availability = eventService
	orderService.Notifier = notify
	orderService.Guard = orderredis.NewPurchaseGuard(redisClient, cfg.Purchase.GuardTTL)

	analyticsService := analytics.NewService(analytics.NewDB(bunDB), eventStore, log)

	eventHandler := event_api.NewHandler(eventService, stream, log)
	orderHandler := order_api.NewHandler(orderService, stream, log)
	ticketHandler := ticket_api.NewHandler(ticketService, log)
	analyticsHandler := analytics_api.NewHandler(analyticsService, log)

	verifier := newVerifier(ctx, cfg.Auth, log)

	log.Info("HTTP", "Setting up router and middleware")
	r := chi.NewRouter()
	r.Use(log.Recoverer)
	r.Use(log.RequestLogger)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	// --- Public Routes ---
	eventHandler.RegisterPublicRoutes(r)
	ticketHandler.RegisterPublicRoutes(r)

	// --- Protected Routes ---
	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(verifier, log))

		eventHandler.RegisterRoutes(r)
		orderHandler.RegisterRoutes(r)
		ticketHandler.RegisterRoutes(r)
		analyticsHandler.RegisterRoutes(r)
	})

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	go func() {
		log.Info("HTTP", fmt.Sprintf("Wave ticketing service running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	<-ctx.Done()
	log.Info("APP", "Shutdown signal received, initiating graceful shutdown")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP", fmt.Sprintf("Server shutdown failed: %v", err))
	} else {
		log.Info("HTTP", "Wave ticketing service shutdown complete")
	}
}
