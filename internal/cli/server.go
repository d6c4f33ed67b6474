package cli

import (
	"os"

	"github.com/kilupskalvis/finsync/internal/logging"
	"github.com/kilupskalvis/finsync/internal/remote/server"
	"github.com/kilupskalvis/finsync/internal/store"
	"github.com/spf13/cobra"
)

var (
	serverListen      string
	serverDatabase    string
	serverToken       string
	serverLogLevel    string
	serverLogFormat   string
	serverTLSCert     string
	serverTLSKey      string
	serverWebhookURLs string
	serverWebhookKey  string
	serverRateLimit   int
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Run the finsync sync server",
	Long: `Run the central sync server that devices push to and pull from.

The database is a SQLite file or a postgres:// URL. When a token is set,
every sync request must carry it as a bearer token.

Examples:
  finsync server
  finsync server --listen 0.0.0.0:8710 --database /var/lib/finsync/server.db
  finsync server --database postgres://finsync@localhost/finsync --token s3cret
  finsync server --tls-cert server.crt --tls-key server.key`,
	Run: runServer,
}

func init() {
	f := serverCmd.Flags()
	f.StringVar(&serverListen, "listen", envOrDefault("FINSYNC_LISTEN", "127.0.0.1:8710"), "Listen address (host:port)")
	f.StringVar(&serverDatabase, "database", envOrDefault("FINSYNC_DATABASE", "finsync-server.db"), "SQLite file or postgres:// URL")
	f.StringVar(&serverToken, "token", os.Getenv("FINSYNC_TOKEN"), "Bearer token required from clients (empty disables auth)")
	f.StringVar(&serverLogLevel, "log-level", envOrDefault("FINSYNC_LOG_LEVEL", "info"), "Log level (debug|info|warn|error)")
	f.StringVar(&serverLogFormat, "log-format", envOrDefault("FINSYNC_LOG_FORMAT", "json"), "Log format (json|text)")
	f.StringVar(&serverTLSCert, "tls-cert", os.Getenv("FINSYNC_TLS_CERT"), "TLS certificate file")
	f.StringVar(&serverTLSKey, "tls-key", os.Getenv("FINSYNC_TLS_KEY"), "TLS key file")
	f.StringVar(&serverWebhookURLs, "webhook-urls", os.Getenv("FINSYNC_WEBHOOK_URLS"), "Comma-separated webhook URLs to notify on push")
	f.StringVar(&serverWebhookKey, "webhook-secret", os.Getenv("FINSYNC_WEBHOOK_SECRET"), "HMAC secret for signing webhook payloads")
	f.IntVar(&serverRateLimit, "rate-limit", server.DefaultServerConfig().RequestsPerMinute, "Requests per minute per client IP (0 disables)")
}

func runServer(cmd *cobra.Command, _ []string) {
	logger := logging.New(os.Stdout, serverLogLevel, serverLogFormat)
	ctx := cmd.Context()

	st, err := store.New(serverDatabase)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	if err := st.Bootstrap(ctx); err != nil {
		logger.Error("failed to prepare database", "error", err, "dialect", st.Dialect().String())
		os.Exit(1)
	}

	cfg := server.DefaultServerConfig()
	cfg.Token = serverToken
	cfg.RequestsPerMinute = serverRateLimit
	if serverToken == "" {
		logger.Warn("no token set, sync endpoints are open")
	}

	if urls := server.ParseWebhookURLs(serverWebhookURLs); len(urls) > 0 {
		cfg.Webhooks = server.NewWebhookNotifier(&server.WebhookConfig{URLs: urls, Secret: serverWebhookKey}, logger)
		logger.Info("webhooks configured", "count", len(urls))
	}

	h, cleanup := server.Handler(st, cfg, logger)
	defer cleanup()

	srv := server.NewHTTPServer(serverListen, h)
	lc := server.ListenConfig{Addr: serverListen, TLSCert: serverTLSCert, TLSKey: serverTLSKey}
	if err := server.Serve(ctx, srv, lc, logger); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

// envOrDefault returns the value of the environment variable key, or defaultVal if unset.
func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}
