// Command finsync-server runs the finsync sync server.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/kilupskalvis/finsync/internal/logging"
	"github.com/kilupskalvis/finsync/internal/remote/server"
	"github.com/kilupskalvis/finsync/internal/store"
)

func main() {
	listen := flag.String("listen", envOrDefault("FINSYNC_LISTEN", "0.0.0.0:8710"), "Listen address")
	database := flag.String("database", envOrDefault("FINSYNC_DATABASE", "/var/lib/finsync/server.db"), "SQLite file or postgres:// URL")
	token := flag.String("token", os.Getenv("FINSYNC_TOKEN"), "Bearer token required from clients")
	logLevel := flag.String("log-level", envOrDefault("FINSYNC_LOG_LEVEL", "info"), "Log level (debug, info, warn, error)")
	logFormat := flag.String("log-format", envOrDefault("FINSYNC_LOG_FORMAT", "json"), "Log format (json, text)")
	logFile := flag.String("log-file", os.Getenv("FINSYNC_LOG_FILE"), "Also write logs to this rotated file")
	tlsCert := flag.String("tls-cert", os.Getenv("FINSYNC_TLS_CERT"), "TLS certificate file")
	tlsKey := flag.String("tls-key", os.Getenv("FINSYNC_TLS_KEY"), "TLS key file")
	webhookURLs := flag.String("webhook-urls", os.Getenv("FINSYNC_WEBHOOK_URLS"), "Comma-separated webhook URLs to notify on push")
	webhookSecret := flag.String("webhook-secret", os.Getenv("FINSYNC_WEBHOOK_SECRET"), "HMAC secret for signing webhook payloads")
	flag.Parse()

	// Setup logger
	logger := logging.New(os.Stdout, *logLevel, *logFormat)
	if *logFile != "" {
		rotated := logging.RotatingFile(*logFile)
		defer rotated.Close()
		logger = logging.New(rotated, *logLevel, *logFormat)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Database
	st, err := store.New(*database)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	if err := st.Bootstrap(ctx); err != nil {
		logger.Error("failed to prepare database", "error", err, "dialect", st.Dialect().String())
		os.Exit(1)
	}

	// Server config
	cfg := server.DefaultServerConfig()
	cfg.Token = *token
	if *token == "" {
		logger.Warn("no token set, sync endpoints are open")
	}

	// Webhooks
	if urls := server.ParseWebhookURLs(*webhookURLs); len(urls) > 0 {
		cfg.Webhooks = server.NewWebhookNotifier(&server.WebhookConfig{URLs: urls, Secret: *webhookSecret}, logger)
		logger.Info("webhooks configured", "count", len(urls))
	}

	h, handlerCleanup := server.Handler(st, cfg, logger)
	defer handlerCleanup()

	srv := server.NewHTTPServer(*listen, h)
	lc := server.ListenConfig{Addr: *listen, TLSCert: *tlsCert, TLSKey: *tlsKey}
	if err := server.Serve(ctx, srv, lc, logger); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}
