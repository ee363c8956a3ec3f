package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	redisClient "github.com/go-redis/redis/v8"
	_ "github.com/go-sql-driver/mysql"
	"github.com/gorilla/mux"

	"bidhall/internal/api/middleware"
	"bidhall/internal/config"
	"bidhall/internal/gateway"
	"bidhall/internal/infrastructure/mysql"
	"bidhall/internal/infrastructure/redis"
	"bidhall/internal/services"
	"bidhall/pkg/logger"
	"bidhall/pkg/utils"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewWithLevel(cfg.Log.Level)
	log.Info("Starting bidding service", "instance_id", cfg.Instance.ID)

	// Initialize Redis
	rdb := redisClient.NewClient(&redisClient.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	log.Info("Connected to Redis", "address", cfg.Redis.Address)

	// Initialize MySQL
	db := utils.InitializeMySQL(ctx, cfg, log)
	defer db.Close()
	log.Info("Connected to MySQL")

	// Stores
	auctionStore := mysql.NewAuctionStore(db)
	bidLedger := mysql.NewBidLedger(db)

	// Redis based components
	stateCache := redis.NewStateCache(rdb)
	eventPublisher := redis.NewEventPublisher(rdb)
	eventSubscriber := redis.NewEventSubscriber(rdb, log)

	// Room fan-out
	registry := services.NewRoomRegistry(log)
	dispatcher := services.NewDispatcher(registry, log)
	eventListener := services.NewEventListener(dispatcher, cfg.Instance.ID, log)

	// Admission path: local broadcast and cross-instance publish both
	// happen under the per-auction lock, so room order matches admission
	// order.
	admission := services.NewAdmissionController(
		auctionStore,
		bidLedger,
		eventPublisher,
		eventListener.Handle,
		cfg.Bidding.LockTimeout,
		cfg.Bidding.RecentBids,
		cfg.Instance.ID,
		log,
	)

	gw := gateway.New(
		admission,
		registry,
		stateCache,
		gateway.HeaderIdentityResolver{},
		cfg.Bidding.SessionBuffer,
		func() string { return utils.GenerateID("session") },
		log,
	)

	// Routes
	router := mux.NewRouter()
	router.Use(middleware.CORS)
	router.HandleFunc("/ws", gw.HandleConnection)
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET")

	// Replay bid events from peer instances into local rooms.
	go func() {
		if err := eventListener.Start(context.Background(), eventSubscriber); err != nil && err != context.Canceled {
			log.Error("Event listener stopped", "error", err)
		}
	}()

	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.WSPort),
		Handler: router,
	}

	go func() {
		log.Info("Starting bidding gateway", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down bidding service...")

	ctx, cancel = context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	log.Info("Bidding service stopped")
}
