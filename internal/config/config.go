package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	// Bloque app (opcional en YAML). Si no está, queda vacío.
	App struct {
		// dev | staging | prod
		Env string `yaml:"app_env"`

		// BaseURL pública del frontend que canjea los tokens enviados
		// por email.
		BaseURL string `yaml:"public_base_url"`
	} `yaml:"app"`

	Server struct {
		Addr               string   `yaml:"addr"`
		CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`
	} `yaml:"server"`

	Storage struct {
		DSN      string `yaml:"dsn"`
		Postgres struct {
			MaxOpenConns    int    `yaml:"max_open_conns"`
			MaxIdleConns    int    `yaml:"max_idle_conns"`
			ConnMaxLifetime string `yaml:"conn_max_lifetime"`
		} `yaml:"postgres"`
	} `yaml:"storage"`

	Cache struct {
		Kind  string `yaml:"kind"` // memory | redis
		Redis struct {
			Addr   string `yaml:"addr"`
			DB     int    `yaml:"db"`
			Prefix string `yaml:"prefix"`
		} `yaml:"redis"`
		Memory struct {
			DefaultTTL string `yaml:"default_ttl"`
		} `yaml:"memory"`
	} `yaml:"cache"`

	// Secrets de proceso. Solo por ENV, nunca por YAML:
	//   ENVGATE_ENCRYPTION_SECRET  cifra/descifra ciphertexts de claves
	//   ENVGATE_KEY_INDEX_SECRET   HMAC para hashes de lookup
	//   ENVGATE_APP_SECRET         secret global opcional combinado con la
	//                              signing key por environment
	Secrets struct {
		Encryption string `yaml:"-"`
		KeyIndex   string `yaml:"-"`
		App        string `yaml:"-"`
	} `yaml:"-"`

	Auth struct {
		Issuer string `yaml:"issuer"`

		// TTLs de tokens de un solo uso.
		MagicLinkTTL     time.Duration `yaml:"magic_link_ttl"`
		InviteTTL        time.Duration `yaml:"invite_ttl"`
		ConfirmEmailTTL  time.Duration `yaml:"confirm_email_ttl"`
		ResetPasswordTTL time.Duration `yaml:"reset_password_ttl"`

		// Reintentos máximos de generación ante colisión de unique index.
		KeyGenMaxRetries int `yaml:"keygen_max_retries"`

		Password struct {
			MemoryKiB   int `yaml:"memory_kib"`
			Time        int `yaml:"time"`
			Parallelism int `yaml:"parallelism"`
		} `yaml:"password"`
	} `yaml:"auth"`

	Rate struct {
		Enabled     bool   `yaml:"enabled"`
		Window      string `yaml:"window"`
		MaxRequests int    `yaml:"max_requests"`
	} `yaml:"rate"`

	SMTP struct {
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		Username string `yaml:"username"`
		Password string `yaml:"-"` // ENVGATE_SMTP_PASSWORD
		From     string `yaml:"from"`
	} `yaml:"smtp"`

	Verify struct {
		Interval time.Duration `yaml:"interval"`
	} `yaml:"verify"`
}

// Load lee el YAML (si path no está vacío) y aplica defaults + overrides
// de ENV. Los secrets vienen solo de ENV.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: leer %s: %w", path, err)
		}
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	cfg.applyDefaults()
	cfg.applyEnv()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Cache.Kind == "" {
		c.Cache.Kind = "memory"
	}
	if c.Auth.Issuer == "" {
		c.Auth.Issuer = "envgate"
	}
	if c.Auth.MagicLinkTTL == 0 {
		c.Auth.MagicLinkTTL = 15 * time.Minute
	}
	if c.Auth.InviteTTL == 0 {
		c.Auth.InviteTTL = 7 * 24 * time.Hour
	}
	if c.Auth.ConfirmEmailTTL == 0 {
		c.Auth.ConfirmEmailTTL = 24 * time.Hour
	}
	if c.Auth.ResetPasswordTTL == 0 {
		c.Auth.ResetPasswordTTL = 30 * time.Minute
	}
	if c.Auth.KeyGenMaxRetries == 0 {
		c.Auth.KeyGenMaxRetries = 5
	}
	if c.Auth.Password.MemoryKiB == 0 {
		c.Auth.Password.MemoryKiB = 64 * 1024
	}
	if c.Auth.Password.Time == 0 {
		c.Auth.Password.Time = 3
	}
	if c.Auth.Password.Parallelism == 0 {
		c.Auth.Password.Parallelism = 1
	}
	if c.Rate.Window == "" {
		c.Rate.Window = "1m"
	}
	if c.Rate.MaxRequests == 0 {
		c.Rate.MaxRequests = 30
	}
	if c.Verify.Interval == 0 {
		c.Verify.Interval = time.Minute
	}
	if c.Storage.Postgres.MaxOpenConns == 0 {
		c.Storage.Postgres.MaxOpenConns = 10
	}
	if c.Storage.Postgres.MaxIdleConns == 0 {
		c.Storage.Postgres.MaxIdleConns = 2
	}
}

func (c *Config) applyEnv() {
	if v := getenv("ENVGATE_APP_ENV"); v != "" {
		c.App.Env = v
	}
	if v := getenv("ENVGATE_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := getenv("ENVGATE_PUBLIC_BASE_URL"); v != "" {
		c.App.BaseURL = v
	}
	if v := getenv("ENVGATE_DSN"); v != "" {
		c.Storage.DSN = v
	}
	if v := getenv("ENVGATE_CACHE_KIND"); v != "" {
		c.Cache.Kind = v
	}
	if v := getenv("ENVGATE_REDIS_ADDR"); v != "" {
		c.Cache.Redis.Addr = v
	}
	if v := getenv("ENVGATE_REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Cache.Redis.DB = n
		}
	}

	c.Secrets.Encryption = getenv("ENVGATE_ENCRYPTION_SECRET")
	c.Secrets.KeyIndex = getenv("ENVGATE_KEY_INDEX_SECRET")
	c.Secrets.App = getenv("ENVGATE_APP_SECRET")
	if v := getenv("ENVGATE_SMTP_PASSWORD"); v != "" {
		c.SMTP.Password = v
	}
}

func (c *Config) validate() error {
	if c.Storage.DSN == "" {
		return fmt.Errorf("config: storage.dsn (o ENVGATE_DSN) es requerido")
	}
	if c.Secrets.Encryption == "" {
		return fmt.Errorf("config: ENVGATE_ENCRYPTION_SECRET es requerido")
	}
	if c.Secrets.KeyIndex == "" {
		return fmt.Errorf("config: ENVGATE_KEY_INDEX_SECRET es requerido")
	}
	return nil
}

// RateWindow parsea Rate.Window con fallback a 1m.
func (c *Config) RateWindow() time.Duration {
	if d, err := time.ParseDuration(c.Rate.Window); err == nil && d > 0 {
		return d
	}
	return time.Minute
}

func getenv(k string) string {
	return strings.TrimSpace(os.Getenv(k))
}
