package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Ali-Naji-3/wallet-notify/internal/config"
	"github.com/Ali-Naji-3/wallet-notify/internal/domain"
	"github.com/Ali-Naji-3/wallet-notify/internal/infrastructure/logging"
	"github.com/Ali-Naji-3/wallet-notify/internal/infrastructure/server"
	"github.com/Ali-Naji-3/wallet-notify/internal/infrastructure/store"
)

func main() {
	var configPath = flag.String("config", "", "Path to the configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(logging.Config{
		Level:       logging.LogLevel(cfg.LogLevel),
		OutputPaths: []string{"stdout"},
		InitialFields: logging.Fields{
			"service": "streamd",
		},
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	db, err := store.NewSQLiteStore(cfg.Server.DBPath)
	if err != nil {
		logger.Fatal("opening notification store", logging.Fields{"error": err.Error()})
	}
	defer db.Close()

	srv := server.NewStreamServer(db, tokenAuthenticator(cfg.Server.Tokens),
		server.WithHeartbeatInterval(cfg.Server.HeartbeatInterval()),
		server.WithQueueSize(cfg.Server.QueueSize),
		server.WithLogger(logger),
	)

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		logger.Info("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("shutdown error", logging.Fields{"error": err.Error()})
		}
	}()

	logger.Info("notification stream server listening", logging.Fields{"addr": cfg.Server.Addr})
	if err := srv.Start(cfg.Server.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server error", logging.Fields{"error": err.Error()})
	}
}

// tokenAuthenticator validates stream credentials against the configured
// session table. In the full wallet deployment this is replaced by the
// wallet app's own session validation.
func tokenAuthenticator(tokens []config.TokenConfig) server.Authenticator {
	byToken := make(map[string]config.TokenConfig, len(tokens))
	for _, t := range tokens {
		byToken[t.Token] = t
	}

	return func(ctx context.Context, token string) (string, bool, error) {
		if token == "" {
			return "", false, domain.ErrUnauthorized
		}
		entry, ok := byToken[token]
		if !ok {
			return "", false, domain.ErrUnauthorized
		}
		return entry.User, entry.Admin, nil
	}
}
