package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/bcbklhi/escrow-express/internal/bot"
	"github.com/bcbklhi/escrow-express/internal/flow"
	"github.com/bcbklhi/escrow-express/internal/messaging"
	"github.com/bcbklhi/escrow-express/internal/store"
	"github.com/bcbklhi/escrow-express/internal/twiliowhatsapp"
	"github.com/bcbklhi/escrow-express/internal/util"
	"github.com/bcbklhi/escrow-express/internal/whatsapp"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for Escrow Express state data
	DefaultStateDir = "/var/lib/escrow-express"
	// DefaultDBFileName is the default SQLite database filename for the
	// WhatsApp credential store
	DefaultDBFileName = "whatsmeow.db"
	// DefaultWebhookAddr is the default listen address for the Twilio webhook
	DefaultWebhookAddr = ":8080"
)

func main() {
	initializeLogger()

	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(config)

	if *flags.ownerID == "" || *flags.groupChat == "" || *flags.logChannel == "" {
		slog.Error("OWNER_ID, GROUP_JID and LOG_CHANNEL_JID must all be configured")
		os.Exit(1)
	}

	if err := ensureDirectoriesExist(flags); err != nil {
		slog.Error("Failed to create required directories", "error", err)
		os.Exit(1)
	}

	msgService, err := buildMessagingService(flags)
	if err != nil {
		slog.Error("Failed to initialize messaging service", "error", err)
		os.Exit(1)
	}

	cfg := flow.Config{
		OwnerID:    *flags.ownerID,
		GroupChat:  *flags.groupChat,
		LogChannel: *flags.logChannel,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("Bootstrapping Escrow Express", "transport", *flags.transport)
	b := bot.New(msgService, store.NewInMemoryStore(), cfg)
	if err := b.Run(ctx); err != nil {
		slog.Error("Escrow Express failed to run", "error", err)
		os.Exit(1)
	}

	if err := msgService.Stop(); err != nil {
		slog.Error("Failed to stop messaging service cleanly", "error", err)
	}
	slog.Info("Escrow Express exited successfully")
}

// Config holds environment configuration
type Config struct {
	OwnerID     string
	GroupChat   string
	LogChannel  string
	Transport   string
	WhatsAppDSN string
	StateDir    string
	WebhookAddr string
	NumericCode bool
}

// Flags holds command line flag values
type Flags struct {
	ownerID     *string
	groupChat   *string
	logChannel  *string
	transport   *string
	qrOutput    *string
	numeric     *bool
	stateDir    *string
	dbDSN       *string
	webhookAddr *string
}

// initializeLogger sets up structured logging with debug level
func initializeLogger() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		OwnerID:     os.Getenv("OWNER_ID"),
		GroupChat:   os.Getenv("GROUP_JID"),
		LogChannel:  os.Getenv("LOG_CHANNEL_JID"),
		Transport:   os.Getenv("ESCROW_TRANSPORT"),
		WhatsAppDSN: os.Getenv("WHATSAPP_DB_DSN"),
		StateDir:    os.Getenv("ESCROW_STATE_DIR"),
		WebhookAddr: os.Getenv("WEBHOOK_ADDR"),
		NumericCode: util.ParseBoolEnv("ESCROW_NUMERIC_CODE", false),
	}

	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No ESCROW_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}
	if config.Transport == "" {
		config.Transport = "whatsapp"
	}
	if config.WebhookAddr == "" {
		config.WebhookAddr = DefaultWebhookAddr
	}
	if config.WhatsAppDSN == "" {
		config.WhatsAppDSN = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", config.WhatsAppDSN)
	}

	slog.Debug("environment variables loaded",
		"OWNER_ID_SET", config.OwnerID != "",
		"GROUP_JID_SET", config.GroupChat != "",
		"LOG_CHANNEL_JID_SET", config.LogChannel != "",
		"ESCROW_TRANSPORT", config.Transport,
		"WHATSAPP_DB_DSN_SET", config.WhatsAppDSN != "",
		"ESCROW_STATE_DIR", config.StateDir,
		"WEBHOOK_ADDR", config.WebhookAddr)

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		ownerID:     flag.String("owner-id", config.OwnerID, "privileged owner identity (overrides $OWNER_ID)"),
		groupChat:   flag.String("group-chat", config.GroupChat, "deal announcement venue JID (overrides $GROUP_JID)"),
		logChannel:  flag.String("log-channel", config.LogChannel, "deal log channel JID (overrides $LOG_CHANNEL_JID)"),
		transport:   flag.String("transport", config.Transport, "messaging transport: whatsapp or twilio (overrides $ESCROW_TRANSPORT)"),
		qrOutput:    flag.String("qr-output", "", "path to write login QR code"),
		numeric:     flag.Bool("numeric-code", config.NumericCode, "use numeric login code instead of QR code (overrides $ESCROW_NUMERIC_CODE)"),
		stateDir:    flag.String("state-dir", config.StateDir, "state directory for Escrow Express data (overrides $ESCROW_STATE_DIR)"),
		dbDSN:       flag.String("db-dsn", config.WhatsAppDSN, "database DSN for the WhatsApp credential store (overrides $WHATSAPP_DB_DSN)"),
		webhookAddr: flag.String("webhook-addr", config.WebhookAddr, "listen address for the Twilio webhook (overrides $WEBHOOK_ADDR)"),
	}

	flag.Parse()

	slog.Debug("flags parsed",
		"ownerID_set", *flags.ownerID != "",
		"groupChat_set", *flags.groupChat != "",
		"logChannel_set", *flags.logChannel != "",
		"transport", *flags.transport,
		"qrOutput", *flags.qrOutput,
		"numeric", *flags.numeric,
		"stateDir", *flags.stateDir,
		"dbDSN_set", *flags.dbDSN != "",
		"webhookAddr", *flags.webhookAddr)

	return flags
}

// ensureDirectoriesExist creates necessary directories for file-based storage
func ensureDirectoriesExist(flags Flags) error {
	if whatsapp.DetectDSNType(*flags.dbDSN) == "postgres" {
		return nil
	}
	stateDir := filepath.Dir(*flags.dbDSN)
	slog.Debug("Creating state directory for file-based database", "state_dir", stateDir)
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		slog.Error("Failed to create state directory", "error", err, "state_dir", stateDir)
		return err
	}
	return nil
}

// buildMessagingService constructs the configured transport service.
func buildMessagingService(flags Flags) (messaging.Service, error) {
	switch *flags.transport {
	case "twilio":
		client, err := twiliowhatsapp.NewClient()
		if err != nil {
			return nil, err
		}
		svc := messaging.NewTwilioService(client)

		mux := http.NewServeMux()
		mux.HandleFunc("/twilio/webhook", svc.WebhookHandler)
		go func() {
			slog.Info("Twilio webhook listening", "addr", *flags.webhookAddr)
			if err := http.ListenAndServe(*flags.webhookAddr, mux); err != nil {
				slog.Error("Twilio webhook server failed", "error", err)
			}
		}()
		return svc, nil

	default:
		waOpts := buildWhatsAppOptions(flags)
		client, err := whatsapp.NewClient(waOpts...)
		if err != nil {
			return nil, err
		}
		return messaging.NewWhatsAppService(client), nil
	}
}

// buildWhatsAppOptions constructs WhatsApp configuration options
func buildWhatsAppOptions(flags Flags) []whatsapp.Option {
	var waOpts []whatsapp.Option
	if *flags.qrOutput != "" {
		waOpts = append(waOpts, whatsapp.WithQRCodeOutput(*flags.qrOutput))
	}
	if *flags.numeric {
		waOpts = append(waOpts, whatsapp.WithNumericCode())
	}
	if *flags.dbDSN != "" {
		waOpts = append(waOpts, whatsapp.WithDBDSN(*flags.dbDSN))
	}
	return waOpts
}
