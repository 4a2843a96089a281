package config

import "time"

type Config struct {
	Environment Environment
	Log         Log
	HTTP        HTTPServer
	BaseURL     string `env:"BASE_URL"`
	DatabaseURL string `env:"DATABASE_URL" envDefault:"sqlite:checkout.db"`

	Auth      Auth      `envPrefix:"AUTH_"`
	Checkout  Checkout  `envPrefix:"CHECKOUT_"`
	Paypal    Paypal    `envPrefix:"PAYPAL_"`
	BrainTree Braintree `envPrefix:"BRAINTREE_"`
	Crypto    Crypto    `envPrefix:"CRYPTO_"`
	Platform  Platform  `envPrefix:"PLATFORM_"`
}

type Paypal struct {
	BaseApiURL   string `env:"BASE_API_URL"`
	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`
	WebhookID    string `env:"WEBHOOK_ID"`
}

type Braintree struct {
	Environment string `env:"ENVIRONMENT"`
	MerchantID  string `env:"MERCHANT_ID"`
	PublicKey   string `env:"PUBLIC_KEY"`
	PrivateKey  string `env:"PRIVATE_KEY"`
}

// Crypto configures the hosted on-chain payment processor.
type Crypto struct {
	BaseApiURL    string `env:"BASE_API_URL"`
	APIKey        string `env:"API_KEY"`
	IPNSecret     string `env:"IPN_SECRET"`
	PriceCurrency string `env:"PRICE_CURRENCY" envDefault:"usd"`
}

// Platform configures the internal platform API that owns carts, ledger
// balances, reward tokens and generation jobs.
type Platform struct {
	BaseURL        string        `env:"BASE_URL"`
	APIKey         string        `env:"API_KEY"`
	AccountID      string        `env:"ACCOUNT_ID" envDefault:"platform"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"15s"`
	MaxRetryTime   time.Duration `env:"MAX_RETRY_TIME" envDefault:"10s"`
}

type Checkout struct {
	Currency            string        `env:"CURRENCY" envDefault:"USD"`
	RegenerateCooldown  time.Duration `env:"REGENERATE_COOLDOWN" envDefault:"60s"`
	PollInterval        time.Duration `env:"POLL_INTERVAL" envDefault:"5s"`
	ConfirmationTimeout time.Duration `env:"CONFIRMATION_TIMEOUT" envDefault:"10m"`
	ReconcileMaxElapsed time.Duration `env:"RECONCILE_MAX_ELAPSED" envDefault:"2m"`
	CooldownCacheSize   int           `env:"COOLDOWN_CACHE_SIZE" envDefault:"4096"`
}

type Auth struct {
	JWTSecret      string `env:"JWT_SECRET"`
	InternalAPIKey string `env:"INTERNAL_API_KEY"`
}

type Environment struct {
	Name string `env:"ENVIRONMENT" envDefault:"development"`
}

type Log struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

type HTTPServer struct {
	Host string `env:"HTTP_HOST" envDefault:"0.0.0.0"`
	Port string `env:"HTTP_PORT" envDefault:"8080"`
}
