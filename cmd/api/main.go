package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	redisclient "github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	mongoadapter "github.com/robertarktes/show-schedules-and-bookings/internal/adapters/mongo"
	rabbitadapter "github.com/robertarktes/show-schedules-and-bookings/internal/adapters/rabbit"
	redisadapter "github.com/robertarktes/show-schedules-and-bookings/internal/adapters/redis"
	"github.com/robertarktes/show-schedules-and-bookings/internal/admin"
	"github.com/robertarktes/show-schedules-and-bookings/internal/booking"
	"github.com/robertarktes/show-schedules-and-bookings/internal/catalog"
	"github.com/robertarktes/show-schedules-and-bookings/internal/config"
	httphandler "github.com/robertarktes/show-schedules-and-bookings/internal/http"
	"github.com/robertarktes/show-schedules-and-bookings/internal/idempotency"
	"github.com/robertarktes/show-schedules-and-bookings/internal/observability"
	"github.com/robertarktes/show-schedules-and-bookings/internal/payment"
	"github.com/robertarktes/show-schedules-and-bookings/internal/rateLimit"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	shutdownOtel, err := observability.SetupOTel(context.Background(), cfg.OTLPEndpoint)
	if err != nil {
		log.Fatalf("failed to setup otel: %v", err)
	}
	defer shutdownOtel()

	logger := observability.NewLogger()

	mongoClient, err := mongo.Connect(context.Background(), options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.Fatalf("failed to connect to mongo: %v", err)
	}
	defer mongoClient.Disconnect(context.Background())
	db := mongoClient.Database(cfg.MongoDatabase)

	store := mongoadapter.NewScheduleStore(db, logger)
	ledger := mongoadapter.NewBookingLedger(db, logger)
	snapshots := mongoadapter.NewMovieSnapshots(db, logger)

	redisClient := redisclient.NewClient(&redisclient.Options{Addr: cfg.RedisAddr})
	cache := redisadapter.NewCache(redisClient)
	idemp := idempotency.NewIdempotency(redisadapter.NewIdempotency(redisClient), time.Hour)
	rl := rateLimit.NewRateLimiter(cache)

	rabbitConn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		log.Fatalf("failed to connect to rabbitmq: %v", err)
	}
	defer rabbitConn.Close()
	events, err := rabbitadapter.NewPublisher(rabbitConn)
	if err != nil {
		log.Fatalf("failed to create publisher: %v", err)
	}

	cat := catalog.NewService(catalog.NewHTTPSource(cfg.CatalogURL, cfg.CatalogKey), cache, snapshots, cfg.CatalogTTL, logger)
	payments := payment.NewClient(cfg.PaymentURL, cfg.PaymentKey)

	engine := booking.NewEngine(store, ledger, payments, cat, events, logger,
		booking.WithPaymentWindow(cfg.PaymentWindow),
		booking.WithCurrency(cfg.Currency),
		booking.WithCheckoutURLs(cfg.SuccessURL, cfg.CancelURL),
	)
	agg := admin.NewAggregator(store, ledger, snapshots)
	sweeper := booking.NewSweeper(store, ledger, events, logger)

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	go sweeper.Run(sweepCtx, cfg.SweepInterval)

	handlers := httphandler.NewHandlers(engine, agg, cat, store, ledger, idemp, logger)
	r := httphandler.SetupRouter(handlers, logger, rl, cfg.JWTSecret)

	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: r,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutdown Server ...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server Shutdown:", err)
	}
	logger.Info("Server exiting")
}
