// cmd/server/main.go
package main

import (
	"context"
	"net/http"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/openholdem/poker-service/internal/auth"
	"github.com/openholdem/poker-service/internal/cache"
	"github.com/openholdem/poker-service/internal/config"
	"github.com/openholdem/poker-service/internal/database"
	"github.com/openholdem/poker-service/internal/handlers"
	"github.com/openholdem/poker-service/internal/messaging"
	"github.com/openholdem/poker-service/internal/middleware"
	"github.com/openholdem/poker-service/internal/session"
	"github.com/openholdem/poker-service/internal/table"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	if err := godotenv.Load(); err != nil {
		logger.Debug("no .env file found, relying on process environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("failed to load configuration: %v", err)
	}

	auth.Init()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var users *database.Users
	if cfg.DatabaseEnabled {
		pool, err := database.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatalf("failed to connect to database: %v", err)
		}
		defer pool.Close()
		users = database.NewUsers(pool)
		logger.Info("database connected")
	}

	var history *cache.History
	var recorder session.Recorder
	if cfg.RedisEnabled {
		client, err := cache.Connect(ctx, cfg.RedisAddr, cfg.RedisDB)
		if err != nil {
			logger.Fatalf("failed to connect to redis: %v", err)
		}
		defer client.Close()
		history = cache.NewHistory(client)
		recorder = history
		logger.Info("redis connected, action history enabled")
	}

	tables := table.NewStore()
	tables.Add(table.NewTable(cfg.DefaultTableID, table.ForcedBets{
		Ante:       cfg.Ante,
		SmallBlind: cfg.SmallBlind,
		BigBlind:   cfg.BigBlind,
	}))
	logger.Infof("table %q ready (blinds %d/%d, ante %d)",
		cfg.DefaultTableID, cfg.SmallBlind, cfg.BigBlind, cfg.Ante)

	orch := session.NewOrchestrator(logger, tables, session.Options{
		ActionTimeout:  cfg.ActionTimeout,
		ReconnectGrace: cfg.ReconnectGrace,
		Recorder:       recorder,
	})

	srv := messaging.NewServer(logger)
	srv.Use(auth.SocketAuth(logger))
	srv.OnConnection(orch.Register)

	mux := http.NewServeMux()
	srv.Attach(mux, cfg.WSPath)

	userHandler := &handlers.UserHandler{Logger: logger, Users: users}
	mux.HandleFunc("POST /api/guest", userHandler.Guest)
	mux.HandleFunc("GET /api/me", userHandler.Me)
	if users != nil {
		mux.HandleFunc("POST /api/register", userHandler.Register)
		mux.HandleFunc("POST /api/login", userHandler.Login)
	}

	historyHandler := &handlers.HistoryHandler{Logger: logger, History: history}
	mux.HandleFunc("GET /api/tables/{id}/history", historyHandler.Recent)

	addr := ":" + cfg.Port
	logger.Infof("listening on %s (websocket at %s)", addr, cfg.WSPath)
	if err := http.ListenAndServe(addr, middleware.Logging(logger)(mux)); err != nil {
		logger.Fatalf("server stopped: %v", err)
	}
}
