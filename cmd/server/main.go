// cmd/server/main.go
package main

import (
	"context"
	"log"
	"net/http"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"github.com/tommasop/stima/internal/archive"
	"github.com/tommasop/stima/internal/cache"
	"github.com/tommasop/stima/internal/config"
	"github.com/tommasop/stima/internal/handlers"
	"github.com/tommasop/stima/internal/middleware"
	"github.com/tommasop/stima/internal/session"
)

func main() {
	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)

	if err := session.InitTokens(); err != nil {
		log.Fatalf("token init failed: %v", err)
	}

	// Snapshots are best-effort; a missing Redis only disables them.
	if err := cache.ConnectRedis(); err != nil {
		logger.Warnf("redis unavailable, snapshots disabled: %v", err)
	}

	// Match archive is optional; it activates only when DATABASE_URL is set.
	if err := archive.Connect(context.Background()); err != nil {
		logger.Warnf("match archive unavailable: %v", err)
	}
	defer archive.Close()

	grace := config.GetenvDuration("GRACE_PERIOD", session.DefaultGracePeriod)
	sessions := session.NewRegistry(grace, logger)
	srv := handlers.NewServer(logger, sessions)

	mux := http.NewServeMux()
	mux.Handle("/ws", middleware.LogMiddleware(logger)(http.HandlerFunc(
		handlers.WSHandler(logger, srv),
	)))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	addr := ":8080"
	if port := os.Getenv("PORT"); port != "" {
		addr = ":" + port
	}
	logger.Infof("Running on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}
