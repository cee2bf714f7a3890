package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"zenbeasts/crypto"

	"github.com/BurntSushi/toml"
)

// Config is the daemon configuration loaded from TOML. Secrets never live in
// the file itself: the RPC bearer token and keystore passphrase arrive through
// the environment variables the file names.
type Config struct {
	RPCAddress            string `toml:"RPCAddress"`
	DataDir               string `toml:"DataDir"`
	GenesisFile           string `toml:"GenesisFile"`
	AllowAutogenesis      bool   `toml:"AllowAutogenesis"`
	AuthorityKeystorePath string `toml:"AuthorityKeystorePath"`
	AuthorityKeyEnv       string `toml:"AuthorityKeyEnv"`
	NetworkName           string `toml:"NetworkName"`

	RPCAuthTokenEnv      string  `toml:"RPCAuthTokenEnv"`
	RPCRequestsPerMinute float64 `toml:"RPCRequestsPerMinute"`
	RPCBurst             int     `toml:"RPCBurst"`
	RPCReadTimeout       int64   `toml:"RPCReadTimeout"`
	RPCWriteTimeout      int64   `toml:"RPCWriteTimeout"`
	RPCIdleTimeout       int64   `toml:"RPCIdleTimeout"`

	JournalDisabled bool `toml:"JournalDisabled"`

	Telemetry TelemetryConfig `toml:"telemetry"`
}

// Option customises Load behaviour.
type Option func(*loadOptions)

type loadOptions struct {
	passphrase func() (string, error)
}

// WithKeystorePassphrase supplies a static keystore passphrase, used when a
// fresh keystore has to be created.
func WithKeystorePassphrase(passphrase string) Option {
	return WithKeystorePassphraseSource(func() (string, error) {
		return passphrase, nil
	})
}

// WithKeystorePassphraseSource supplies a lazy passphrase resolver. It is only
// invoked when Load actually needs to encrypt a new keystore, so interactive
// prompts fire at most once and never on a warm start.
func WithKeystorePassphraseSource(source func() (string, error)) Option {
	return func(o *loadOptions) {
		o.passphrase = source
	}
}

// Load reads the configuration at path, creating a default file and an
// encrypted authority keystore on first run. Loaded values are validated
// before being returned.
func Load(path string, opts ...Option) (*Config, error) {
	options := &loadOptions{}
	for _, opt := range opts {
		opt(options)
	}

	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path, options)
	}

	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("config file %s has unknown key %q", path, undecoded[0].String())
	}

	applyDefaults(cfg)

	if cfg.AuthorityKeyEnv == "" {
		if err := ensureKeystore(path, cfg, options); err != nil {
			return nil, err
		}
	}

	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.RPCAddress) == "" {
		cfg.RPCAddress = ":8080"
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./zenbeasts-data"
	}
	if strings.TrimSpace(cfg.NetworkName) == "" {
		cfg.NetworkName = "zenbeasts-local"
	}
	if strings.TrimSpace(cfg.RPCAuthTokenEnv) == "" {
		cfg.RPCAuthTokenEnv = "ZENBEASTS_RPC_TOKEN"
	}
	if cfg.RPCRequestsPerMinute == 0 {
		cfg.RPCRequestsPerMinute = 600
	}
	if cfg.RPCBurst == 0 {
		cfg.RPCBurst = 30
	}
	if cfg.RPCReadTimeout == 0 {
		cfg.RPCReadTimeout = 15
	}
	if cfg.RPCWriteTimeout == 0 {
		cfg.RPCWriteTimeout = 30
	}
	if cfg.RPCIdleTimeout == 0 {
		cfg.RPCIdleTimeout = 60
	}
}

// ensureKeystore guarantees the authority keystore exists, generating and
// encrypting a fresh key when it does not. The config file is rewritten when
// the keystore path had to be filled in.
func ensureKeystore(configPath string, cfg *Config, options *loadOptions) error {
	keystorePath := cfg.AuthorityKeystorePath
	if keystorePath == "" {
		keystorePath = defaultKeystorePath(configPath)
	}

	if _, err := os.Stat(keystorePath); os.IsNotExist(err) {
		passphrase, perr := resolvePassphrase(options)
		if perr != nil {
			return perr
		}
		key, genErr := crypto.GeneratePrivateKey()
		if genErr != nil {
			return genErr
		}
		if err := crypto.SaveToKeystore(keystorePath, key, passphrase); err != nil {
			return err
		}
	} else if err != nil {
		return err
	}

	if cfg.AuthorityKeystorePath != keystorePath {
		cfg.AuthorityKeystorePath = keystorePath
		return persist(configPath, cfg)
	}
	return nil
}

func resolvePassphrase(options *loadOptions) (string, error) {
	if options == nil || options.passphrase == nil {
		return "", errors.New("authority keystore passphrase required to create a new keystore")
	}
	passphrase, err := options.passphrase()
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(passphrase) == "" {
		return "", errors.New("authority keystore passphrase cannot be empty")
	}
	return passphrase, nil
}

// createDefault writes a default configuration and a freshly generated
// authority keystore next to it.
func createDefault(path string, options *loadOptions) (*Config, error) {
	passphrase, err := resolvePassphrase(options)
	if err != nil {
		return nil, err
	}

	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}
	keystorePath := defaultKeystorePath(path)
	if err := crypto.SaveToKeystore(keystorePath, key, passphrase); err != nil {
		return nil, err
	}

	cfg := &Config{AuthorityKeystorePath: keystorePath}
	applyDefaults(cfg)

	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

func defaultKeystorePath(configPath string) string {
	dir := filepath.Dir(configPath)
	if dir == "." || dir == "" {
		dir = ""
	}
	return filepath.Join(dir, "authority.keystore")
}
