package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"venuebot/internal/bot"
	"venuebot/internal/config"
	"venuebot/internal/db"
	"venuebot/internal/jobs"
	appLog "venuebot/internal/log"
	"venuebot/internal/web"

	"github.com/joho/godotenv"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the configuration file")
	flag.Parse()

	appLog.Info("starting venuebot application")

	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		appLog.Info("no .env file found")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		appLog.Error("failed to load config", err)
		os.Exit(1)
	}
	appLog.SetLevel(appLog.ParseLevel(cfg.LogLevel))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	database, err := db.New(ctx, cfg.Database)
	if err != nil {
		appLog.Error("failed to initialize database", err)
		os.Exit(1)
	}
	defer database.Close()

	discordBot, err := bot.New(cfg, database)
	if err != nil {
		appLog.Error("failed to create bot", err)
		os.Exit(1)
	}

	scheduler, err := jobs.New(cfg.Jobs.RefreshSpec, discordBot)
	if err != nil {
		appLog.Error("failed to create job scheduler", err)
		os.Exit(1)
	}

	if cfg.HTTP.FeedSecret == "" {
		appLog.Warn("http.feed_secret is not set, calendar feeds are disabled")
	}

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	go func() {
		s := <-signals
		appLog.Info("received signal", "signal", s.String())
		cancel()
	}()

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		if err := discordBot.Start(ctx); err != nil {
			appLog.Error("error running bot", err)
			cancel()
		}
	}()
	go func() {
		defer wg.Done()
		scheduler.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		if err := web.NewServer(discordBot, cfg.HTTP.FeedSecret).Run(ctx, cfg.HTTP.Listen); err != nil {
			appLog.Error("http server failed", err)
			cancel()
		}
	}()

	<-ctx.Done()
	appLog.Info("shutdown signal received")
	wg.Wait()

	if err := discordBot.Shutdown(); err != nil {
		appLog.Error("error during shutdown", err)
		os.Exit(1)
	}
	appLog.Info("application shutdown complete")
}
