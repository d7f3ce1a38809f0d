package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

// Config holds the complete application configuration, loadable from
// environment variables (STOREFRONT_ prefix), flags, or YAML config files.
type Config struct {
	Addr          string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL   string `usage:"PostgreSQL connection URL (STOREFRONT_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	RedisURL      string `default:"redis://localhost:6379/0" usage:"Redis connection URL" flag:"redis-url"`
	APIKeyPepper  string `usage:"HMAC pepper for API key hashing" flag:"api-key-pepper"`
	WebhookSecret string `usage:"HMAC secret for gateway webhook signatures" flag:"webhook-secret"`

	Hamper       HamperConfig
	Verification VerificationConfig
	Gateway      GatewayConfig
	SMS          SMSConfig
	Checkout     CheckoutConfig
	RateLimit    RateLimitConfig
	CORS         CORSConfig
	Graceful     GracefulConfig
}

// HamperConfig holds the collection business thresholds in minor currency
// units, adjustable without a code change for promotions.
type HamperConfig struct {
	MinValue              int64 `default:"35000" usage:"Minimum hamper subtotal accepted at checkout" flag:"hamper-min-value"`
	FreeDeliveryThreshold int64 `default:"50000" usage:"Subtotal at which delivery becomes free" flag:"free-delivery-threshold"`
	DeliveryFee           int64 `default:"4000"  usage:"Delivery fee below the free threshold" flag:"delivery-fee"`
}

// VerificationConfig controls the phone verification gate.
type VerificationConfig struct {
	CodeLength     int           `default:"4"   usage:"Digits in a verification code"`
	CodeTTL        time.Duration `default:"5m"  usage:"Verification code lifetime" flag:"code-ttl"`
	ResendCooldown time.Duration `default:"30s" usage:"Initial resend cooldown" flag:"resend-cooldown"`
	ResendMax      time.Duration `default:"5m"  usage:"Resend cooldown backoff cap" flag:"resend-max"`
	MaxAttempts    int           `default:"3"   usage:"Wrong-code attempts before the session is invalidated" flag:"max-attempts"`
	TokenTTL       time.Duration `default:"10m" usage:"Verified-phone token lifetime" flag:"token-ttl"`
	Pepper         string        `usage:"HMAC pepper for stored code hashes" flag:"code-pepper"`
}

// GatewayConfig points at the payment gateway.
type GatewayConfig struct {
	BaseURL string        `usage:"Payment gateway base URL" flag:"gateway-url"`
	APIKey  string        `usage:"Payment gateway API key" flag:"gateway-api-key"`
	Timeout time.Duration `default:"10s" usage:"Per-call gateway timeout" flag:"gateway-timeout"`
}

// SMSConfig points at the SMS provider.
type SMSConfig struct {
	Endpoint string        `usage:"SMS provider dispatch endpoint" flag:"sms-endpoint"`
	Sender   string        `default:"GIFTKART" usage:"SMS sender ID" flag:"sms-sender"`
	Timeout  time.Duration `default:"5s" usage:"Per-call SMS timeout" flag:"sms-timeout"`
}

// CheckoutConfig controls checkout orchestration timing.
type CheckoutConfig struct {
	IntentTTL time.Duration `default:"30m" usage:"How long a parked online-payment intent stays confirmable" flag:"intent-ttl"`
	KeyBucket time.Duration `default:"5m"  usage:"Time bucket for server-derived idempotency keys" flag:"key-bucket"`
}

// RateLimitConfig controls the per-client sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config files,
// and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "STOREFRONT",
		Files:     []string{"config.yaml", "/etc/storefront/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if cfg.DatabaseURL == "" {
		return nil, errors.New("database URL is required: set STOREFRONT_DATABASE_URL or DATABASE_URL")
	}

	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided environment variables that use
// standard names like DATABASE_URL and PORT to the application's STOREFRONT_-
// prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if c.RedisURL == "redis://localhost:6379/0" {
		if v := os.Getenv("REDIS_URL"); v != "" {
			c.RedisURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}
