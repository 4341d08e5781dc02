package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/viper"

	"github.com/bankmore/backend/internal/config"
	"github.com/bankmore/backend/internal/database"
	"github.com/bankmore/backend/internal/events"
	"github.com/bankmore/backend/internal/services"
)

func main() {
	config.Load()

	redisClient := database.MustInitRedis()
	defer redisClient.Close()

	accounts := services.NewAccountClient(viper.GetString("account_api.base_url"))
	feeService := services.NewFeeService(accounts)

	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "fee-worker"
	}

	subscriber := events.NewSubscriber(redisClient, events.SubscriberConfig{
		Group:    "fee-worker",
		Consumer: hostname,
		Stream:   events.StreamTransfersCompleted,
		Handler:  feeService.HandleTransferCompleted,
	})

	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Println("Fee worker shutting down...")
		cancel()
	}()

	if err := subscriber.Start(ctx); err != nil && err != context.Canceled {
		log.Fatalf("Subscriber failed: %v", err)
	}

	log.Println("Fee worker stopped")
}
