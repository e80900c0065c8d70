package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Env            string        `mapstructure:"ENV"`
	Port           string        `mapstructure:"PORT"`
	DatabaseURL    string        `mapstructure:"DATABASE_URL"`
	AdminKey       string        `mapstructure:"ADMIN_KEY"`
	CORSAllowed    string        `mapstructure:"CORS_ALLOWED_ORIGINS"`
	RequestTimeout time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	LogLevel       string        `mapstructure:"LOG_LEVEL"`

	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`

	EnrichBaseURL       string        `mapstructure:"ENRICH_BASE_URL"`
	EnrichWebhookPath   string        `mapstructure:"ENRICH_WEBHOOK_PATH"`
	EnrichAPIKey        string        `mapstructure:"ENRICH_API_KEY"`
	EnrichMaxConcurrent int64         `mapstructure:"ENRICH_MAX_CONCURRENT"`
	EnrichMaxWait       time.Duration `mapstructure:"ENRICH_MAX_WAIT"`
	EnrichTimeout       time.Duration `mapstructure:"ENRICH_TIMEOUT"`

	GeocoderURL       string `mapstructure:"GEOCODER_URL"`
	GeocoderUserAgent string `mapstructure:"GEOCODER_USER_AGENT"`

	IntakeWorkers   int           `mapstructure:"INTAKE_WORKERS"`
	StreamIncoming  string        `mapstructure:"STREAM_INCOMING"`
	StreamOutgoing  string        `mapstructure:"STREAM_OUTGOING"`
	ConsumerGroup   string        `mapstructure:"CONSUMER_GROUP"`
	ConsumerWorkers int           `mapstructure:"CONSUMER_WORKERS"`
	IdempotencyTTL  time.Duration `mapstructure:"IDEMPOTENCY_TTL"`

	LoadBalancing       string   `mapstructure:"LOAD_BALANCING"`
	HomeCountries       []string `mapstructure:"HOME_COUNTRIES"`
	HomeLanguage        string   `mapstructure:"HOME_LANGUAGE"`
	HubPrimaryName      string   `mapstructure:"HUB_PRIMARY_NAME"`
	HubPrimaryAliases   []string `mapstructure:"HUB_PRIMARY_ALIASES"`
	HubSecondaryName    string   `mapstructure:"HUB_SECONDARY_NAME"`
	HubSecondaryAliases []string `mapstructure:"HUB_SECONDARY_ALIASES"`
}

func Load() (Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	_ = v.ReadInConfig()

	v.SetDefault("ENV", "dev")
	v.SetDefault("PORT", "8080")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("ADMIN_KEY", "")
	v.SetDefault("REQUEST_TIMEOUT", "30s")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")

	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("ENRICH_BASE_URL", "")
	v.SetDefault("ENRICH_WEBHOOK_PATH", "/webhook/enrich")
	v.SetDefault("ENRICH_API_KEY", "")
	v.SetDefault("ENRICH_MAX_CONCURRENT", 8)
	v.SetDefault("ENRICH_MAX_WAIT", "30s")
	v.SetDefault("ENRICH_TIMEOUT", "60s")

	v.SetDefault("GEOCODER_URL", "")
	v.SetDefault("GEOCODER_USER_AGENT", "ticket-router")

	v.SetDefault("INTAKE_WORKERS", 8)
	v.SetDefault("STREAM_INCOMING", "incoming_tickets")
	v.SetDefault("STREAM_OUTGOING", "final_distribution")
	v.SetDefault("CONSUMER_GROUP", "ticket-router")
	v.SetDefault("CONSUMER_WORKERS", 4)
	v.SetDefault("IDEMPOTENCY_TTL", "24h")

	v.SetDefault("LOAD_BALANCING", "top2_rotating")
	v.SetDefault("HOME_COUNTRIES", []string{"казахстан", "kazakhstan", "қазақстан", "kz", "рк"})
	v.SetDefault("HOME_LANGUAGE", "RU")
	v.SetDefault("HUB_PRIMARY_NAME", "ASTANA")
	v.SetDefault("HUB_PRIMARY_ALIASES", []string{"астана", "astana", "нур-султан", "nur-sultan"})
	v.SetDefault("HUB_SECONDARY_NAME", "ALMATY")
	v.SetDefault("HUB_SECONDARY_ALIASES", []string{"алматы", "almaty", "алма-ата", "alma-ata"})

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
