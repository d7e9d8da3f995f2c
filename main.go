// main.go is the avalon session coordinator service: HTTP endpoints for
// accounts and session creation, and the per-session websocket.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/avalon/internal/auth"
	"github.com/jason-s-yu/avalon/internal/cache"
	"github.com/jason-s-yu/avalon/internal/database"
	"github.com/jason-s-yu/avalon/internal/handlers"
	"github.com/jason-s-yu/avalon/internal/middleware"
	"github.com/jason-s-yu/avalon/internal/stats"
)

func main() {
	logger := logrus.New()
	if os.Getenv("AVALON_ENV") == "dev" || os.Getenv("AVALON_ENV") == "development" {
		logger.SetLevel(logrus.DebugLevel)
		logrus.SetLevel(logrus.DebugLevel)
	}

	auth.Init()

	// Persistence and the historian queue are optional: without them the
	// coordinator still runs, it just keeps no accounts or stats.
	if err := database.Connect(); err != nil {
		logger.Warnf("running without database: %v", err)
		database.DB = nil
	} else {
		defer database.DB.Close()
	}
	if err := cache.ConnectRedis(); err != nil {
		logger.Warnf("running without redis: %v", err)
		cache.Rdb = nil
	}

	srv := handlers.NewSessionServer(logger, stats.Recorder{})

	logged := middleware.LogMiddleware(logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/", handlers.PingHandler)
	mux.Handle("/user/create", logged(http.HandlerFunc(handlers.CreateUserHandler)))
	mux.Handle("/user/login", logged(http.HandlerFunc(handlers.LoginHandler)))
	mux.Handle("/user/logout", logged(http.HandlerFunc(handlers.LogoutHandler)))
	mux.Handle("/stats/user/", logged(http.HandlerFunc(handlers.UserStatsHandler)))
	mux.Handle("/stats/top", logged(http.HandlerFunc(handlers.LeaderboardHandler)))
	mux.Handle("/session/create", logged(http.HandlerFunc(srv.CreateSessionHandler)))
	// The websocket route skips the logging wrapper so the upgrade can
	// hijack the connection; it logs its own lifecycle.
	mux.HandleFunc("/session/ws/", srv.SessionWSHandler)

	addr := ":8080"
	if port := os.Getenv("AVALON_SERVICE_PORT"); port != "" {
		addr = ":" + port
	}
	server := &http.Server{
		Addr:        addr,
		Handler:     mux,
		ReadTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Infof("listening on %s", addr)
		errc <- server.ListenAndServe()
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt)
	select {
	case err := <-errc:
		logger.Fatalf("server exited: %v", err)
	case sig := <-sigs:
		logger.Infof("terminating: %v", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}
}
