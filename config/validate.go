package config

import (
	"fmt"
	"strings"
)

const defaultPepper = "dev-only-pepper-value-not-for-production"

func Validate(cfg *AppConfig) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		return fmt.Errorf("db_path must be set")
	}
	if strings.TrimSpace(cfg.ListenAddr) == "" {
		return fmt.Errorf("listen_addr must be set")
	}
	if cfg.SessionTTL <= 0 {
		return fmt.Errorf("session_ttl must be positive")
	}
	appEnv := strings.ToLower(strings.TrimSpace(cfg.AppEnv))
	pep := strings.TrimSpace(cfg.Pepper)
	if appEnv == "dev" {
		if pep == "" {
			cfg.Pepper = defaultPepper
		}
		return nil
	}
	if pep == "" || pep == defaultPepper {
		return fmt.Errorf("pepper must be set via env outside APP_ENV=dev")
	}
	if cfg.Security.InactivityDefaultMin <= 0 {
		return fmt.Errorf("security.inactivity_default_min must be positive")
	}
	return nil
}
