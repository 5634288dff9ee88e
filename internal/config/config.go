// Package config loads the API configuration. Precedence, highest first:
// command-line flags, MUSEUM_* environment variables (a .env file is loaded
// into the environment when present), config.toml, flag defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	Port int
	Env  string
	DB   struct {
		DSN          string
		MaxOpenConns int
		MaxIdleConns int
		MaxIdleTime  time.Duration
	}
	Log struct {
		Level  string
		Format string
	}
	Limiter struct {
		RPS     float64
		Burst   int
		Enabled bool
	}
	SMTP struct {
		Host     string
		Port     int
		Username string
		Password string
		Sender   string
	}
	CORS struct {
		TrustedOrigins []string
	}
	Redis struct {
		Addr     string
		Password string
		DB       int
	}
	Storage struct {
		Endpoint      string
		Region        string
		Bucket        string
		AccessKey     string
		SecretKey     string
		UsePathStyle  bool
		PresignExpiry time.Duration
	}
	Payment struct {
		AppID         string
		Key1          string
		Key2          string
		Endpoint      string
		CallbackURL   string
		PendingTTL    time.Duration
		SweepInterval time.Duration
	}
	WhatsApp struct {
		AccountSID string
		AuthToken  string
		From       string
	}
	LLM struct {
		BaseURL string
		APIKey  string
		Model   string
		Timeout time.Duration
	}
	Chat struct {
		SessionTTL time.Duration
	}
	Fallback struct {
		Enabled bool
	}
	Metrics struct {
		Enabled bool
	}
}

// binding maps a viper key to the flag that feeds it.
type binding struct {
	key  string
	flag string
}

var bindings = []binding{
	{"port", "port"},
	{"env", "env"},
	{"db.dsn", "db-dsn"},
	{"db.max_open_conns", "db-max-open-conns"},
	{"db.max_idle_conns", "db-max-idle-conns"},
	{"db.max_idle_time", "db-max-idle-time"},
	{"log.level", "log-level"},
	{"log.format", "log-format"},
	{"limiter.rps", "limiter-rps"},
	{"limiter.burst", "limiter-burst"},
	{"limiter.enabled", "limiter-enabled"},
	{"smtp.host", "smtp-host"},
	{"smtp.port", "smtp-port"},
	{"smtp.username", "smtp-username"},
	{"smtp.password", "smtp-password"},
	{"smtp.sender", "smtp-sender"},
	{"cors.trusted_origins", "cors-trusted-origins"},
	{"redis.addr", "redis-addr"},
	{"redis.password", "redis-password"},
	{"redis.db", "redis-db"},
	{"storage.endpoint", "storage-endpoint"},
	{"storage.region", "storage-region"},
	{"storage.bucket", "storage-bucket"},
	{"storage.access_key", "storage-access-key"},
	{"storage.secret_key", "storage-secret-key"},
	{"storage.use_path_style", "storage-use-path-style"},
	{"storage.presign_expiry", "storage-presign-expiry"},
	{"payment.app_id", "payment-app-id"},
	{"payment.key1", "payment-key1"},
	{"payment.key2", "payment-key2"},
	{"payment.endpoint", "payment-endpoint"},
	{"payment.callback_url", "payment-callback-url"},
	{"payment.pending_ttl", "payment-pending-ttl"},
	{"payment.sweep_interval", "payment-sweep-interval"},
	{"whatsapp.account_sid", "whatsapp-account-sid"},
	{"whatsapp.auth_token", "whatsapp-auth-token"},
	{"whatsapp.from", "whatsapp-from"},
	{"llm.base_url", "llm-base-url"},
	{"llm.api_key", "llm-api-key"},
	{"llm.model", "llm-model"},
	{"llm.timeout", "llm-timeout"},
	{"chat.session_ttl", "chat-session-ttl"},
	{"fallback.enabled", "fallback-enabled"},
	{"metrics.enabled", "metrics-enabled"},
}

func newFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("museum-api", pflag.ContinueOnError)

	fs.Int("port", 4000, "API server port")
	fs.String("env", "development", "Environment (development|staging|production)")

	fs.String("db-dsn", "", "PostgreSQL DSN")
	fs.Int("db-max-open-conns", 25, "PostgreSQL max open connections")
	fs.Int("db-max-idle-conns", 25, "PostgreSQL max idle connections")
	fs.Duration("db-max-idle-time", 15*time.Minute, "PostgreSQL max connection idle time")

	fs.String("log-level", "info", "Minimum log level (debug|info|error|fatal|off)")
	fs.String("log-format", "json", "Log encoding (json|console)")

	fs.Float64("limiter-rps", 2, "Rate limiter maximum requests per second")
	fs.Int("limiter-burst", 4, "Rate limiter maximum burst")
	fs.Bool("limiter-enabled", true, "Enable rate limiter")

	fs.String("smtp-host", "sandbox.smtp.mailtrap.io", "SMTP host")
	fs.Int("smtp-port", 25, "SMTP port")
	fs.String("smtp-username", "", "SMTP username")
	fs.String("smtp-password", "", "SMTP password")
	fs.String("smtp-sender", "Museum Tickets <no-reply@museum.zuyanh.net>", "SMTP sender")

	fs.StringSlice("cors-trusted-origins", nil, "Trusted CORS origins")

	fs.String("redis-addr", "", "Redis address for chat sessions (empty keeps sessions in memory)")
	fs.String("redis-password", "", "Redis password")
	fs.Int("redis-db", 0, "Redis database")

	fs.String("storage-endpoint", "", "S3-compatible endpoint for the ticket archive (empty disables it)")
	fs.String("storage-region", "us-east-1", "Object storage region")
	fs.String("storage-bucket", "museum-tickets", "Object storage bucket")
	fs.String("storage-access-key", "", "Object storage access key")
	fs.String("storage-secret-key", "", "Object storage secret key")
	fs.Bool("storage-use-path-style", true, "Use path-style bucket addressing")
	fs.Duration("storage-presign-expiry", 15*time.Minute, "Presigned ticket URL lifetime")

	fs.String("payment-app-id", "", "Payment gateway app id (empty disables online payment)")
	fs.String("payment-key1", "", "Payment gateway order signing key")
	fs.String("payment-key2", "", "Payment gateway callback signing key")
	fs.String("payment-endpoint", "https://sb-openapi.zalopay.vn/v2/create", "Payment gateway create-order endpoint")
	fs.String("payment-callback-url", "", "Public URL of /v1/payments/callback")
	fs.Duration("payment-pending-ttl", 15*time.Minute, "How long an unpaid booking stays pending")
	fs.Duration("payment-sweep-interval", time.Minute, "How often expired pending bookings are cancelled")

	fs.String("whatsapp-account-sid", "", "Twilio account SID (empty logs WhatsApp messages instead)")
	fs.String("whatsapp-auth-token", "", "Twilio auth token")
	fs.String("whatsapp-from", "", "Twilio WhatsApp sender number")

	fs.String("llm-base-url", "", "OpenAI-compatible endpoint for the chatbot (empty uses canned replies)")
	fs.String("llm-api-key", "", "LLM API key")
	fs.String("llm-model", "gpt-4o-mini", "LLM model name")
	fs.Duration("llm-timeout", 20*time.Second, "LLM request timeout")

	fs.Duration("chat-session-ttl", 30*time.Minute, "Chat session lifetime")

	fs.Bool("fallback-enabled", true, "Serve sample museums and events when the database has none")
	fs.Bool("metrics-enabled", true, "Expose /metrics")

	return fs
}

// Load parses args (without the program name) and resolves the configuration.
func Load(args []string) (Config, error) {
	fs := newFlagSet()
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	v.SetEnvPrefix("MUSEUM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for _, b := range bindings {
		if err := v.BindPFlag(b.key, fs.Lookup(b.flag)); err != nil {
			return Config{}, fmt.Errorf("bind flag %s: %w", b.flag, err)
		}
	}

	var cfg Config

	cfg.Port = v.GetInt("port")
	cfg.Env = v.GetString("env")

	cfg.DB.DSN = v.GetString("db.dsn")
	cfg.DB.MaxOpenConns = v.GetInt("db.max_open_conns")
	cfg.DB.MaxIdleConns = v.GetInt("db.max_idle_conns")
	cfg.DB.MaxIdleTime = v.GetDuration("db.max_idle_time")

	cfg.Log.Level = v.GetString("log.level")
	cfg.Log.Format = v.GetString("log.format")

	cfg.Limiter.RPS = v.GetFloat64("limiter.rps")
	cfg.Limiter.Burst = v.GetInt("limiter.burst")
	cfg.Limiter.Enabled = v.GetBool("limiter.enabled")

	cfg.SMTP.Host = v.GetString("smtp.host")
	cfg.SMTP.Port = v.GetInt("smtp.port")
	cfg.SMTP.Username = v.GetString("smtp.username")
	cfg.SMTP.Password = v.GetString("smtp.password")
	cfg.SMTP.Sender = v.GetString("smtp.sender")

	cfg.CORS.TrustedOrigins = v.GetStringSlice("cors.trusted_origins")

	cfg.Redis.Addr = v.GetString("redis.addr")
	cfg.Redis.Password = v.GetString("redis.password")
	cfg.Redis.DB = v.GetInt("redis.db")

	cfg.Storage.Endpoint = v.GetString("storage.endpoint")
	cfg.Storage.Region = v.GetString("storage.region")
	cfg.Storage.Bucket = v.GetString("storage.bucket")
	cfg.Storage.AccessKey = v.GetString("storage.access_key")
	cfg.Storage.SecretKey = v.GetString("storage.secret_key")
	cfg.Storage.UsePathStyle = v.GetBool("storage.use_path_style")
	cfg.Storage.PresignExpiry = v.GetDuration("storage.presign_expiry")

	cfg.Payment.AppID = v.GetString("payment.app_id")
	cfg.Payment.Key1 = v.GetString("payment.key1")
	cfg.Payment.Key2 = v.GetString("payment.key2")
	cfg.Payment.Endpoint = v.GetString("payment.endpoint")
	cfg.Payment.CallbackURL = v.GetString("payment.callback_url")
	cfg.Payment.PendingTTL = v.GetDuration("payment.pending_ttl")
	cfg.Payment.SweepInterval = v.GetDuration("payment.sweep_interval")

	cfg.WhatsApp.AccountSID = v.GetString("whatsapp.account_sid")
	cfg.WhatsApp.AuthToken = v.GetString("whatsapp.auth_token")
	cfg.WhatsApp.From = v.GetString("whatsapp.from")

	cfg.LLM.BaseURL = v.GetString("llm.base_url")
	cfg.LLM.APIKey = v.GetString("llm.api_key")
	cfg.LLM.Model = v.GetString("llm.model")
	cfg.LLM.Timeout = v.GetDuration("llm.timeout")

	cfg.Chat.SessionTTL = v.GetDuration("chat.session_ttl")
	cfg.Fallback.Enabled = v.GetBool("fallback.enabled")
	cfg.Metrics.Enabled = v.GetBool("metrics.enabled")

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) validate() error {
	switch c.Env {
	case "development", "staging", "production":
	default:
		return fmt.Errorf("invalid env %q", c.Env)
	}

	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}

	if c.Limiter.Enabled && (c.Limiter.RPS <= 0 || c.Limiter.Burst < 1) {
		return errors.New("limiter rps and burst must be positive when the limiter is enabled")
	}

	if c.Payment.PendingTTL <= 0 || c.Payment.SweepInterval <= 0 {
		return errors.New("payment pending ttl and sweep interval must be positive")
	}

	if c.Chat.SessionTTL <= 0 {
		return errors.New("chat session ttl must be positive")
	}

	if c.Payment.AppID != "" && (c.Payment.Key1 == "" || c.Payment.Key2 == "") {
		return errors.New("payment keys are required when a payment app id is set")
	}

	return nil
}

// PaymentEnabled reports whether the online payment gateway is configured.
func (c Config) PaymentEnabled() bool {
	return c.Payment.AppID != ""
}

func (c Config) StorageEnabled() bool {
	return c.Storage.Endpoint != ""
}
