package config

import (
	"os"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"
)

const (
	defaultConfigPath = "config/app.yaml"
	envPrefix         = "CLUBHUB_"
)

func Load() (*AppConfig, error) {
	cfg := &AppConfig{}
	cfgPath := resolveConfigPath()
	if st, err := os.Stat(cfgPath); err == nil && !st.IsDir() {
		if err := cleanenv.ReadConfig(cfgPath, cfg); err != nil {
			return nil, err
		}
	}
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, err
	}
	applyEnvAliases(cfg)
	normalizeConfig(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func resolveConfigPath() string {
	if v := getEnv("CONFIG_PATH"); v != "" {
		return strings.TrimSpace(v)
	}
	return defaultConfigPath
}

// applyEnvAliases maps short, platform-conventional env names onto the
// prefixed ones so container deployments do not need the full prefix.
func applyEnvAliases(cfg *AppConfig) {
	if cfg == nil {
		return
	}
	if v := getEnv("PEPPER"); v != "" {
		cfg.Pepper = strings.TrimSpace(v)
	}
	if v := getEnv("ENV", "APP_ENV"); v != "" {
		cfg.AppEnv = strings.TrimSpace(v)
	}
	if v := getEnv("PORT"); v != "" {
		cfg.ListenAddr = listenAddrWithPort(cfg.ListenAddr, v)
	}
	if v := getEnv("DB_PATH"); v != "" {
		cfg.DBPath = strings.TrimSpace(v)
	}
}

func normalizeConfig(cfg *AppConfig) {
	if cfg == nil {
		return
	}
	cfg.DBPath = strings.TrimSpace(cfg.DBPath)
	cfg.ListenAddr = strings.TrimSpace(cfg.ListenAddr)
	cfg.AppEnv = strings.ToLower(strings.TrimSpace(cfg.AppEnv))
	cfg.Pepper = strings.TrimSpace(cfg.Pepper)
	cfg.TwoFactor.Issuer = strings.TrimSpace(cfg.TwoFactor.Issuer)
	cfg.Sweeper.Schedule = strings.TrimSpace(cfg.Sweeper.Schedule)
	cfg.Observability.MetricsToken = strings.TrimSpace(cfg.Observability.MetricsToken)
}

// getEnv returns the first non-empty value among the prefixed and bare
// spellings of the given names.
func getEnv(names ...string) string {
	for _, name := range names {
		if v := os.Getenv(envPrefix + name); v != "" {
			return v
		}
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}

func listenAddrWithPort(addr, port string) string {
	port = strings.TrimSpace(port)
	if port == "" {
		return addr
	}
	host := ""
	if i := strings.LastIndex(addr, ":"); i >= 0 {
		host = addr[:i]
	}
	return host + ":" + port
}
