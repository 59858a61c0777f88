package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"ms-meals/internal/auth"
	"ms-meals/internal/auth/auth_api"
	"ms-meals/internal/config"
	"ms-meals/internal/confirmation"
	"ms-meals/internal/dashboard"
	"ms-meals/internal/dashboard/dashboard_api"
	"ms-meals/internal/database/migrations"
	"ms-meals/internal/db"
	"ms-meals/internal/kafka"
	"ms-meals/internal/logger"
	"ms-meals/internal/models"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := logger.NewLogger()
	defer log.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- PostgreSQL ---
	connector := pgdriver.NewConnector(pgdriver.WithDSN(cfg.Database.DSN))
	sqldb := sql.OpenDB(connector)
	sqldb.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.Database.MaxLifetime)
	defer sqldb.Close()

	if err := sqldb.Ping(); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to connect to Postgres: %v", err))
	}
	bunDB := bun.NewDB(sqldb, pgdialect.New())

	runner := migrations.NewRunner(bunDB, migrations.DefaultOptions())
	if err := runner.RunMigrations(); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Migrations failed: %v", err))
	}

	// --- Redis ---
	redisClient := redis.NewClient(&redis.Options{
		Addr: cfg.Redis.Addr,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatal("REDIS", fmt.Sprintf("Failed to connect to Redis: %v", err))
	}

	// --- Kafka ---
	var producer *kafka.Producer
	var consumer *kafka.Consumer
	if cfg.Kafka.Enabled {
		if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, []string{
			cfg.Kafka.Topics.ShiftConfirmed,
			cfg.Kafka.Topics.OrderEvents,
		}); err != nil {
			log.Warn("KAFKA", fmt.Sprintf("Topic setup failed: %v", err))
		}
		producer = kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topics.ShiftConfirmed)
		defer producer.Close()
		consumer = kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topics.OrderEvents, cfg.Kafka.GroupID)
		defer consumer.Close()
	}

	// --- Services ---
	dbLayer := &db.DB{Bun: bunDB}
	tokenStore := auth.NewRedisStore(redisClient)
	mailer := auth.NewSMTPMailer(cfg.Email)
	authService := auth.NewService(dbLayer, tokenStore, mailer, log, cfg.Auth)

	snapshotCache := dashboard.NewRedisCache(redisClient)
	dashboardService := dashboard.NewService(dbLayer, snapshotCache, log)

	var publisher confirmation.KafkaPublisher
	if producer != nil {
		publisher = producer
	}
	confirmationService := confirmation.NewService(dbLayer, dashboardService, publisher, log)

	if consumer != nil {
		go consumer.Start(ctx, func(event models.OrderEvent) {
			log.LogKafka("CONSUME", cfg.Kafka.Topics.OrderEvents,
				fmt.Sprintf("order %s %s for %s %s", event.OrderID, event.Action, event.RestaurantID, event.MealDate))
			dashboardService.Invalidate(ctx, event.RestaurantID, event.MealDate)
		})
	}

	authHandler := auth_api.NewHandler(authService, log)
	dashboardHandler := dashboard_api.NewHandler(dashboardService, confirmationService, dbLayer, log)

	// --- Router ---
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/login-link", authHandler.RequestLoginLink)
		r.Post("/auth/session", authHandler.CreateSession)
		r.Post("/auth/refresh", authHandler.RefreshSession)

		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(authService))
			r.Post("/auth/logout", authHandler.SignOut)
			r.Get("/me", dashboardHandler.Me)
			r.Get("/restaurants", dashboardHandler.ListRestaurants)
			r.Get("/restaurants/{restaurantID}/dashboard", dashboardHandler.GetSnapshot)
			r.Post("/restaurants/{restaurantID}/confirmations", dashboardHandler.Confirm)
		})
	})

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("SERVER", fmt.Sprintf("Meal portal running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("SERVER", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	<-ctx.Done()
	log.Info("SERVER", "Shutdown signal received, cleaning up...")

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Error("SERVER", fmt.Sprintf("Server forced to shutdown: %v", err))
		os.Exit(1)
	}

	log.Info("SERVER", "Server exited gracefully")
}
