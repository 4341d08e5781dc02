package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/spf13/viper"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/bankmore/backend/internal/config"
	"github.com/bankmore/backend/internal/database"
	"github.com/bankmore/backend/internal/events"
	mW "github.com/bankmore/backend/internal/middleware"
	"github.com/bankmore/backend/internal/services"
)

// @title BankMore Transfer API
// @version 1.0
// @description Transfer saga orchestration service
// @BasePath /api/v1

func main() {
	config.Load()
	viper.SetDefault("database.name", "bankmore_transfer")

	db := database.InitDatabase()
	defer db.Close()

	if err := database.InitTransferSchema(db); err != nil {
		log.Fatalf("Failed to bootstrap schema: %v", err)
	}

	redisClient := database.MustInitRedis()
	defer redisClient.Close()

	accounts := services.NewAccountClient(viper.GetString("account_api.base_url"))
	publisher := events.NewPublisher(redisClient)
	transferService := services.NewTransferService(db, redisClient, accounts, publisher)

	r := chi.NewRouter()

	r.Use(mW.SecurityHeaders)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	})

	r.Get("/swagger/*", httpSwagger.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(mW.AuthMiddleware)

			r.Post("/transfers", transferService.Transfer)
		})
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8081"
	}

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Transfer API starting on :%s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Transfer API shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Transfer API stopped")
}
