package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

type Config struct {
	Port                string        `mapstructure:"PORT"`
	Env                 string        `mapstructure:"ENV"`
	LogLevel            string        `mapstructure:"LOG_LEVEL"`
	DatabaseURL         string        `mapstructure:"DATABASE_URL"`
	DBMaxConns          int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns          int32         `mapstructure:"DB_MIN_CONNS"`
	DBSchema            string        `mapstructure:"DB_SCHEMA"`
	// MigrationsDir overrides the embedded migrations when set.
	MigrationsDir       string        `mapstructure:"MIGRATIONS_DIR"`
	CORSOrigins         []string      `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS        float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst      int           `mapstructure:"RATE_LIMIT_BURST"`
	BodyLimit           string        `mapstructure:"BODY_LIMIT"`
	ExtractionBodyLimit string        `mapstructure:"EXTRACTION_BODY_LIMIT"`
	RequestTimeout      time.Duration `mapstructure:"REQUEST_TIMEOUT"`

	ClinicalDictionaryPath string `mapstructure:"CLINICAL_DICTIONARY_PATH"`
	PhraseLibraryPath      string `mapstructure:"PHRASE_LIBRARY_PATH"`
	ScoringWeightsPath     string `mapstructure:"SCORING_WEIGHTS_PATH"`
	NarrativeVariant       string `mapstructure:"NARRATIVE_VARIANT"`
	AssemblyVersion        string `mapstructure:"ASSEMBLY_VERSION"`

	AuthIssuer   string `mapstructure:"AUTH_ISSUER"`
	AuthAudience string `mapstructure:"AUTH_AUDIENCE"`
	AuthJWKSURL  string `mapstructure:"AUTH_JWKS_URL"`
	// AuthSigningKey switches token validation to HS256 with a shared secret.
	AuthSigningKey string `mapstructure:"AUTH_SIGNING_KEY"`
}

var keys = []string{
	"PORT", "ENV", "LOG_LEVEL",
	"DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS", "DB_SCHEMA", "MIGRATIONS_DIR",
	"CORS_ORIGINS", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST",
	"BODY_LIMIT", "EXTRACTION_BODY_LIMIT", "REQUEST_TIMEOUT",
	"CLINICAL_DICTIONARY_PATH", "PHRASE_LIBRARY_PATH", "SCORING_WEIGHTS_PATH",
	"NARRATIVE_VARIANT", "ASSEMBLY_VERSION",
	"AUTH_ISSUER", "AUTH_AUDIENCE", "AUTH_JWKS_URL", "AUTH_SIGNING_KEY",
}

// Load reads configuration from the environment and an optional .env file.
// It does not require a database; commands that need one call
// RequireDatabase.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("DB_SCHEMA", "public")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 100)
	v.SetDefault("RATE_LIMIT_BURST", 200)
	v.SetDefault("BODY_LIMIT", "2M")
	v.SetDefault("EXTRACTION_BODY_LIMIT", "8M")
	v.SetDefault("REQUEST_TIMEOUT", "30s")
	v.SetDefault("NARRATIVE_VARIANT", "template")
	v.SetDefault("ASSEMBLY_VERSION", "narrative-2.1.0")

	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	// .env is optional
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.CORSOrigins = splitList(v.GetString("CORS_ORIGINS"))

	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate checks cross-field rules that hold for every command.
func (c *Config) Validate() error {
	if c.NarrativeVariant != "template" && c.NarrativeVariant != "phrase_block" {
		return fmt.Errorf("NARRATIVE_VARIANT must be \"template\" or \"phrase_block\", got %q", c.NarrativeVariant)
	}
	if c.RateLimitRPS <= 0 {
		return fmt.Errorf("RATE_LIMIT_RPS must be positive, got %v", c.RateLimitRPS)
	}
	if c.RateLimitBurst < 1 {
		return fmt.Errorf("RATE_LIMIT_BURST must be at least 1, got %d", c.RateLimitBurst)
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) must not exceed DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	if strings.TrimSpace(c.AssemblyVersion) == "" {
		return fmt.Errorf("ASSEMBLY_VERSION must not be empty")
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("LOG_LEVEL: %w", err)
	}
	if !c.IsDev() && !c.AuthConfigured() {
		return fmt.Errorf("AUTH_SIGNING_KEY, AUTH_JWKS_URL or AUTH_ISSUER is required outside development")
	}
	return nil
}

// AuthConfigured reports whether bearer-token validation can run.
func (c *Config) AuthConfigured() bool {
	return c.AuthSigningKey != "" || c.AuthJWKSURL != "" || c.AuthIssuer != ""
}

// RequireDatabase reports an error when DATABASE_URL is unset.
func (c *Config) RequireDatabase() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	return nil
}

// Level returns the configured log level, defaulting to info.
func (c *Config) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil || c.LogLevel == "" {
		return zerolog.InfoLevel
	}
	return lvl
}
