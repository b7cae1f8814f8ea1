package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	DBPath     string
	RawMailDir string
	OutputDir  string

	BrewfatherBaseURL      string
	BrewfatherUserID       string
	BrewfatherAPIKey       string
	BrewfatherRateLimitRPS int
	BrewfatherTimeoutMs    int
	BrewfatherPageSize     int

	InvoiceSupplier        string
	InvoiceCurrency        string
	InvoiceHeaderMarker    string
	InvoiceTrailerMarker   string
	InvoiceFirstItemAnchor string
	InvoiceSenderFilter    string

	LogLevel  string
	LogFormat string

	GmailClientID     string
	GmailClientSecret string
	GmailRedirectURI  string
	GmailRefreshToken string

	IMAPHost     string
	IMAPPort     int
	IMAPSecure   bool
	IMAPUser     string
	IMAPPassword string
	IMAPMarkSeen bool

	MailListenerProvider     string
	MailListenerLabel        string
	MailListenerIntervalSec  int
	MailListenerFetchMax     int
	MailListenerProcessBatch int
	MailListenerAutoExport   bool
	MailListenerAutoSync     bool
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		DBPath:     getEnv("DB_PATH", filepath.Join(cwd, "data", "brewsync.db")),
		RawMailDir: getEnv("MAIL_RAW_DIR", filepath.Join(cwd, "data", "raw")),
		OutputDir:  getEnv("OUTPUT_DIR", filepath.Join(cwd, "out")),

		BrewfatherBaseURL:      getEnv("BREWFATHER_API_BASE_URL", "https://api.brewfather.app/v2"),
		BrewfatherUserID:       getEnv("BREWFATHER_USER_ID", ""),
		BrewfatherAPIKey:       getEnv("BREWFATHER_API_KEY", ""),
		BrewfatherRateLimitRPS: getEnvInt("BREWFATHER_RATE_LIMIT_RPS", 2),
		BrewfatherTimeoutMs:    getEnvInt("BREWFATHER_TIMEOUT_MS", 30000),
		BrewfatherPageSize:     getEnvInt("BREWFATHER_PAGE_SIZE", 50),

		InvoiceSupplier:        getEnv("INVOICE_SUPPLIER", "Malt Miller"),
		InvoiceCurrency:        getEnv("INVOICE_CURRENCY", "GBP"),
		InvoiceHeaderMarker:    getEnv("INVOICE_HEADER_MARKER", "Product Quantity Weight Price VAT Line Total"),
		InvoiceTrailerMarker:   getEnv("INVOICE_TRAILER_MARKER", "Subtotal"),
		InvoiceFirstItemAnchor: getEnv("INVOICE_FIRST_ITEM_ANCHOR", ""),
		InvoiceSenderFilter:    getEnv("INVOICE_SENDER_FILTER", ""),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "console"),

		GmailClientID:     getEnv("GMAIL_CLIENT_ID", ""),
		GmailClientSecret: getEnv("GMAIL_CLIENT_SECRET", ""),
		GmailRedirectURI:  getEnv("GMAIL_REDIRECT_URI", "https://developers.google.com/oauthplayground"),
		GmailRefreshToken: getEnv("GMAIL_REFRESH_TOKEN", ""),

		IMAPHost:     getEnv("IMAP_HOST", ""),
		IMAPPort:     getEnvInt("IMAP_PORT", 993),
		IMAPSecure:   getEnvBool("IMAP_SECURE", true),
		IMAPUser:     getEnv("IMAP_USER", ""),
		IMAPPassword: getEnv("IMAP_PASSWORD", ""),
		IMAPMarkSeen: getEnvBool("IMAP_MARK_SEEN", false),

		MailListenerProvider:     getEnv("MAIL_LISTENER_PROVIDER", "gmail"),
		MailListenerLabel:        getEnv("MAIL_LISTENER_LABEL", "INBOX"),
		MailListenerIntervalSec:  getEnvInt("MAIL_LISTENER_INTERVAL_SEC", 300),
		MailListenerFetchMax:     getEnvInt("MAIL_LISTENER_FETCH_MAX", 20),
		MailListenerProcessBatch: getEnvInt("MAIL_LISTENER_PROCESS_BATCH", 20),
		MailListenerAutoExport:   getEnvBool("MAIL_LISTENER_AUTO_EXPORT", true),
		MailListenerAutoSync:     getEnvBool("MAIL_LISTENER_AUTO_SYNC", false),
	}

	return cfg, nil
}

func (c Config) Require(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("missing required env var: %s", name)
	}
	return nil
}

// RequireBrewfather checks the credentials needed for any inventory API call.
func (c Config) RequireBrewfather() error {
	if err := c.Require("BREWFATHER_USER_ID", c.BrewfatherUserID); err != nil {
		return err
	}
	return c.Require("BREWFATHER_API_KEY", c.BrewfatherAPIKey)
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.ToLower(strings.TrimSpace(getEnv(key, "")))
	if value == "" {
		return fallback
	}
	if value == "1" || value == "true" || value == "yes" || value == "on" {
		return true
	}
	if value == "0" || value == "false" || value == "no" || value == "off" {
		return false
	}
	return fallback
}
