// server/cmd/api/main.go
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.temporal.io/sdk/client"

	"shipshape-api-server/config"
	"shipshape-api-server/internal/api/routes"
	"shipshape-api-server/internal/auth"
	"shipshape-api-server/internal/database"
	"shipshape-api-server/internal/events"
	"shipshape-api-server/internal/golive"
	"shipshape-api-server/internal/marketplace"
	"shipshape-api-server/internal/notify"
	"shipshape-api-server/internal/scheduler"
	"shipshape-api-server/internal/socket"
	"shipshape-api-server/internal/store"
	"shipshape-api-server/internal/triggers"
)

func main() {
	// 0. .env là tùy chọn, chỉ dùng khi chạy local
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// 1. Load configuration
	cfg, err := config.LoadConfig("./config")
	if err != nil {
		log.Fatalf("Could not load config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 2. MongoDB
	mongoClient, db, err := database.Connect(ctx, cfg.Mongo)
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer mongoClient.Disconnect(context.Background())

	if err := database.EnsureIndexes(ctx, db); err != nil {
		log.Fatalf("Failed to create indexes: %v", err)
	}
	if cfg.Triggers.Mode == config.TriggerModeChangeStream {
		database.EnablePreImages(ctx, db)
	}
	st := store.New(db)

	// 3. Danh tính invoker dùng để ký và kiểm tra token gọi executor
	invokerTokens, err := auth.NewInvokerTokens(cfg.Invoker.Secret, cfg.Invoker.Issuer, cfg.Invoker.TokenTTL)
	if err != nil {
		log.Fatalf("Failed to set up invoker identity: %v", err)
	}
	userTokens, err := auth.NewUserTokens(cfg.JWT.Secret, cfg.JWT.Expiration)
	if err != nil {
		log.Fatalf("Failed to set up user tokens: %v", err)
	}

	// 4. Temporal: client cho scheduler và worker chạy chung process
	temporalClient, err := client.Dial(client.Options{
		HostPort:  cfg.Scheduler.TemporalHostPort,
		Namespace: cfg.Scheduler.Namespace,
	})
	if err != nil {
		log.Fatalf("Failed to connect to Temporal: %v", err)
	}
	defer temporalClient.Close()

	dispatcher := scheduler.NewDispatcher(&http.Client{Timeout: 30 * time.Second}, invokerTokens)
	taskWorker := scheduler.NewWorker(temporalClient, cfg.Scheduler.TaskQueue, dispatcher)
	if err := taskWorker.Start(); err != nil {
		log.Fatalf("Failed to start task worker: %v", err)
	}
	defer taskWorker.Stop()
	taskScheduler := scheduler.NewTemporalScheduler(temporalClient, cfg.Scheduler.TaskQueue)

	// 5. Lifecycle events
	var publisher events.Publisher = events.Noop{}
	if len(cfg.Kafka.Brokers) > 0 && cfg.Kafka.Topic != "" {
		publisher = events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		log.Printf("Publishing lifecycle events to Kafka topic %q", cfg.Kafka.Topic)
	}
	defer publisher.Close()

	// 6. Go-live pipeline
	wsHub := socket.NewHub()
	emitter := notify.NewEmitter(st, wsHub)
	shipmentReactor := golive.NewShipmentWriteReactor(st, taskScheduler, emitter, publisher, golive.ReactorConfig{
		ExecutorURL:  cfg.Scheduler.ExecutorURL,
		InvokerEmail: cfg.Scheduler.InvokerEmail,
		Audience:     cfg.Scheduler.EffectiveAudience(),
	})
	bidReactor := golive.NewBidReactor(st, emitter)
	executor := golive.NewExecutor(st, emitter, publisher)
	sweeper := golive.NewSweeper(st, taskScheduler, publisher, cfg.Sweeper.Interval, cfg.Sweeper.BatchSize)
	go sweeper.Start(ctx)

	var market *marketplace.Service
	switch cfg.Triggers.Mode {
	case config.TriggerModeChangeStream:
		market = marketplace.NewService(st, nil, nil)
		go triggers.NewWatcher(db, shipmentReactor, bidReactor).Start(ctx)
		log.Println("Reactors driven by MongoDB change streams")
	default:
		market = marketplace.NewService(st, shipmentReactor, bidReactor)
		log.Println("Reactors invoked by the marketplace API")
	}

	// 7. HTTP server
	router := routes.SetupRouter(routes.Deps{
		Cfg:           cfg,
		Marketplace:   market,
		Executor:      executor,
		Notifications: st,
		Invoker:       invokerTokens,
		UserTokens:    userTokens,
		Hub:           wsHub,
	})
	server := &http.Server{
		Addr:        ":" + cfg.Server.Port,
		Handler:     router,
		ReadTimeout: 30 * time.Second,
	}

	go func() {
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
		sig := <-stop
		log.Printf("Received signal: %s", sig)
		cancel()
	}()

	go func() {
		log.Printf("Starting API server on port %s", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to run server: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	log.Println("Shutting down http server...")
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Http server shutdown error: %v", err)
	}
	log.Println("Exiting app.")
}
