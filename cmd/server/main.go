package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"github.com/geoping/geoping-server/internal/api"
	"github.com/geoping/geoping-server/internal/auth"
	"github.com/geoping/geoping-server/internal/config"
	"github.com/geoping/geoping-server/internal/database"
	"github.com/geoping/geoping-server/internal/inference"
	"github.com/geoping/geoping-server/internal/server"
	"github.com/geoping/geoping-server/internal/service"
	"github.com/geoping/geoping-server/internal/stats"
)

var configFile string

func main() {
	flag.StringVar(&configFile, "config", "", "path to config file")
	flag.Parse()

	logger := log.New(os.Stderr, "[geoping] ", log.LstdFlags)

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logger.Fatal("load .env:", err)
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		logger.Fatal("config:", err)
	}

	dbConn, err := database.NewPgGeoPingRepository(cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("db open:", err)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Fatal("db close:", err)
		}
	}()

	if err := dbConn.Migrate(); err != nil {
		logger.Fatal("db migrate:", err)
	}

	mux := http.NewServeMux()

	statsUpdater := stats.NewStatsUpdater(mux)

	tokenManager := auth.NewTokenManager(cfg.SigningKey, cfg.TokenDuration)

	chatServer, err := server.NewChatServer(logger, dbConn, tokenManager, statsUpdater)
	if err != nil {
		logger.Fatal("new chat server:", err)
	}

	oracle := inference.NewHTTPOracle(cfg.InferenceURL, cfg.InferenceTimeout)

	svc := service.NewGeoPingService(logger, dbConn, oracle, chatServer, statsUpdater, cfg)

	srv := api.NewGeoPingApp(mux, logger, chatServer, svc, dbConn, tokenManager, cfg)

	statsUpdater.Run()
	defer statsUpdater.Stop()

	go chatServer.Run()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		logger.Printf("received signal: %s\n", sig)
	case err := <-errCh:
		logger.Println("server:", err)
	}

	shutDownCtx, cancel := context.WithTimeout(
		context.Background(),
		10*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutDownCtx); err != nil {
		logger.Fatalln("HTTP server shutdown:", err)
	}

	logger.Println("shutting down chat server...")
	chatServer.Shutdown()

	logger.Println("shutdown complete")
}
