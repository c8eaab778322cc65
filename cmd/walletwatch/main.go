// walletwatch subscribes to the wallet notification stream and prints
// everything it delivers. It doubles as a smoke test for the client core
// against a running streamd.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Ali-Naji-3/wallet-notify/internal/client"
	"github.com/Ali-Naji-3/wallet-notify/internal/config"
	"github.com/Ali-Naji-3/wallet-notify/internal/domain"
	"github.com/Ali-Naji-3/wallet-notify/internal/infrastructure/credential"
	"github.com/Ali-Naji-3/wallet-notify/internal/infrastructure/logging"
)

func main() {
	var (
		configPath = flag.String("config", "", "Path to the configuration file")
		scopeName  = flag.String("scope", "user", "Endpoint scope: user or admin")
		token      = flag.String("token", "", "Session token (default: read from the system keyring)")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(logging.Config{
		Level:       logging.LogLevel(cfg.LogLevel),
		OutputPaths: []string{"stderr"},
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	var creds domain.CredentialStore
	if *token != "" {
		creds = credential.NewMemoryStore(*token)
	} else {
		keyringStore, err := credential.NewKeyringStore("")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening keyring: %v\n", err)
			os.Exit(1)
		}
		creds = keyringStore
	}

	scope := client.UserScope()
	if *scopeName == "admin" {
		scope = client.AdminScope()
	}

	controller := client.NewController(cfg.Client.BaseURL, scope, creds,
		client.WithLogger(logger),
		client.WithSnapshotTimeout(cfg.Client.SnapshotTimeout()),
		client.WithSound(cfg.Client.Sound),
		client.WithCallbacks(client.Callbacks{
			OnNotification: func(n domain.Notification) {
				fmt.Printf("[%s] %s: %s\n", n.Type, n.Title, n.Body)
			},
			OnAlert: func(title, body string) {
				fmt.Printf("!! %s: %s\n", title, body)
			},
			OnForcedLogout: func(hint string) {
				fmt.Printf("Session ended: %s\n", hint)
			},
			OnError: func(err error) {
				fmt.Fprintf(os.Stderr, "Stream error: %v\n", err)
			},
			OnStateChange: func(state client.ConnectionState) {
				logger.Debug("connection state", logging.Fields{"state": state.String()})
			},
		}),
	)

	if err := controller.Enable(); err != nil {
		fmt.Fprintf(os.Stderr, "Error enabling stream: %v\n", err)
		os.Exit(1)
	}
	defer controller.Disable()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	fmt.Println("\nShutting down...")
}
