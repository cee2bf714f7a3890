package config

import (
	"fmt"
	"strings"
)

// ValidateConfig rejects configurations the daemon cannot safely run with.
func ValidateConfig(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config: nil configuration")
	}
	if strings.TrimSpace(cfg.RPCAddress) == "" {
		return fmt.Errorf("config: RPCAddress must not be empty")
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		return fmt.Errorf("config: DataDir must not be empty")
	}
	if cfg.RPCRequestsPerMinute < 0 {
		return fmt.Errorf("config: RPCRequestsPerMinute must not be negative")
	}
	if cfg.RPCBurst < 0 {
		return fmt.Errorf("config: RPCBurst must not be negative")
	}
	if cfg.RPCReadTimeout <= 0 || cfg.RPCWriteTimeout <= 0 || cfg.RPCIdleTimeout <= 0 {
		return fmt.Errorf("config: RPC timeouts must be positive")
	}
	if cfg.AuthorityKeystorePath == "" && cfg.AuthorityKeyEnv == "" {
		return fmt.Errorf("config: either AuthorityKeystorePath or AuthorityKeyEnv must be set")
	}
	return nil
}
