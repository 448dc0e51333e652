package config

import "time"

type AppConfig struct {
	DBPath     string        `yaml:"db_path" env:"CLUBHUB_DB_PATH" env-default:"data/clubhub.db"`
	ListenAddr string        `yaml:"listen_addr" env:"CLUBHUB_LISTEN_ADDR" env-default:":8080"`
	AppEnv     string        `yaml:"app_env" env:"CLUBHUB_APP_ENV" env-default:"dev"`
	Pepper     string        `yaml:"pepper" env:"CLUBHUB_PEPPER"`
	SessionTTL time.Duration `yaml:"session_ttl" env:"CLUBHUB_SESSION_TTL" env-default:"6h"`

	TwoFactor     TwoFactorConfig     `yaml:"two_factor"`
	Security      SecurityConfig      `yaml:"security"`
	Sweeper       SweeperConfig       `yaml:"sweeper"`
	Observability ObservabilityConfig `yaml:"observability"`
}

type TwoFactorConfig struct {
	Issuer       string        `yaml:"issuer" env:"CLUBHUB_2FA_ISSUER" env-default:"ClubHub"`
	ChallengeTTL time.Duration `yaml:"challenge_ttl" env:"CLUBHUB_2FA_CHALLENGE_TTL" env-default:"5m"`
}

type SecurityConfig struct {
	LoginRateBurst       int      `yaml:"login_rate_burst" env:"CLUBHUB_LOGIN_RATE_BURST" env-default:"10"`
	LoginRatePerMinute   int      `yaml:"login_rate_per_minute" env:"CLUBHUB_LOGIN_RATE_PER_MINUTE" env-default:"30"`
	InactivityDefaultMin int      `yaml:"inactivity_default_min" env:"CLUBHUB_INACTIVITY_DEFAULT_MIN" env-default:"30"`
	TrustedProxies       []string `yaml:"trusted_proxies" env:"CLUBHUB_TRUSTED_PROXIES"`
}

type SweeperConfig struct {
	Enabled  bool   `yaml:"enabled" env:"CLUBHUB_SWEEPER_ENABLED" env-default:"true"`
	Schedule string `yaml:"schedule" env:"CLUBHUB_SWEEPER_SCHEDULE" env-default:"@every 1m"`
}

type ObservabilityConfig struct {
	MetricsEnabled bool   `yaml:"metrics_enabled" env:"CLUBHUB_METRICS_ENABLED" env-default:"false"`
	MetricsToken   string `yaml:"metrics_token" env:"CLUBHUB_METRICS_TOKEN"`
}
