package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"zenbeasts/cmd/internal/passphrase"
	"zenbeasts/config"
	"zenbeasts/core"
	"zenbeasts/core/genesis"
	"zenbeasts/core/journal"
	"zenbeasts/crypto"
	"zenbeasts/observability/logging"
	telemetry "zenbeasts/observability/otel"
	"zenbeasts/rpc"
	"zenbeasts/storage"
)

const (
	authorityPassEnv    = "ZENBEASTS_AUTHORITY_PASS"
	genesisPathEnv      = "ZENBEASTS_GENESIS"
	allowAutogenesisEnv = "ZENBEASTS_ALLOW_AUTOGENESIS"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	genesisFlag := flag.String("genesis", "", "Path to a genesis spec JSON file (overrides ZENBEASTS_GENESIS and config GenesisFile)")
	allowAutogenesisFlag := flag.Bool("allow-autogenesis", false, "DEV ONLY: generate a default genesis when no stored economy exists")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("ZENBEASTS_ENV"))
	logger := logging.Setup("zenbeastd", env)

	opts := runOptions{
		configFile:          *configFile,
		genesisPath:         *genesisFlag,
		allowAutogenesis:    *allowAutogenesisFlag,
		allowAutogenesisSet: flagWasProvided("allow-autogenesis"),
		environment:         env,
	}
	if err := run(logger, opts); err != nil {
		logger.Error("zenbeastd terminated", slog.Any("error", err))
		os.Exit(1)
	}
}

type runOptions struct {
	configFile          string
	genesisPath         string
	allowAutogenesis    bool
	allowAutogenesisSet bool
	environment         string
}

func run(logger *slog.Logger, opts runOptions) error {
	passSource := passphrase.NewSource(authorityPassEnv)

	cfg, err := config.Load(opts.configFile, config.WithKeystorePassphraseSource(passSource.Get))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	allowAutogenesis, err := resolveAllowAutogenesis(cfg.AllowAutogenesis, opts.allowAutogenesisSet, opts.allowAutogenesis, os.LookupEnv)
	if err != nil {
		return err
	}
	genesisPath, err := resolveGenesisPath(opts.genesisPath, cfg.GenesisFile, allowAutogenesis, os.LookupEnv)
	if err != nil {
		return err
	}

	shutdownTelemetry, err := telemetry.Init(context.Background(), cfg.Telemetry.OtelConfig("zenbeastd", opts.environment))
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(ctx); err != nil {
			logger.Warn("telemetry shutdown failed", slog.Any("error", err))
		}
	}()

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("prepare data directory: %w", err)
	}
	db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "state"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	node, err := core.NewNode(db)
	if err != nil {
		return fmt.Errorf("create node: %w", err)
	}
	node.SetLogger(logger)

	if !cfg.JournalDisabled {
		store, err := journal.Open(filepath.Join(cfg.DataDir, "journal.db"))
		if err != nil {
			return fmt.Errorf("open journal: %w", err)
		}
		defer func() { _ = store.Close() }()
		node.SetJournal(store)
	}

	if err := ensureGenesis(node, cfg, genesisPath, allowAutogenesis, passSource.Get, logger); err != nil {
		return err
	}

	authToken := strings.TrimSpace(os.Getenv(cfg.RPCAuthTokenEnv))
	if authToken == "" {
		logger.Warn("RPC auth token not configured; mutating methods will be rejected",
			slog.String("envVar", cfg.RPCAuthTokenEnv))
	} else {
		logger.Info("RPC auth enabled", logging.MaskField("token", authToken))
	}

	rpcServer := rpc.NewServer(node, rpc.ServerConfig{
		AuthToken:         authToken,
		RequestsPerMinute: cfg.RPCRequestsPerMinute,
		Burst:             cfg.RPCBurst,
	})
	rpcServer.SetLogger(logger)

	httpServer := &http.Server{
		Addr:         cfg.RPCAddress,
		Handler:      rpcServer.Router(),
		ReadTimeout:  time.Duration(cfg.RPCReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.RPCWriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.RPCIdleTimeout) * time.Second,
	}

	stopCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errs := make(chan error, 1)
	go func() {
		logger.Info("zenbeastd listening",
			slog.String("address", cfg.RPCAddress),
			slog.String("network", cfg.NetworkName))
		errs <- httpServer.ListenAndServe()
	}()

	select {
	case <-stopCtx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			_ = httpServer.Close()
			return err
		}
		return nil
	case err := <-errs:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	}
}

// ensureGenesis seeds the economy on first start, either from an explicit
// genesis spec or, in dev mode, from an autogenerated one anchored to the
// authority key.
func ensureGenesis(node *core.Node, cfg *config.Config, genesisPath string, allowAutogenesis bool, resolvePassphrase func() (string, error), logger *slog.Logger) error {
	initialized, err := node.Initialized()
	if err != nil {
		return fmt.Errorf("check economy state: %w", err)
	}
	if initialized {
		return nil
	}

	if genesisPath != "" {
		spec, err := genesis.Load(genesisPath)
		if err != nil {
			return fmt.Errorf("load genesis spec: %w", err)
		}
		if err := node.ApplyGenesis(spec.Config(), spec.InitialSupply(), spec.Balances()); err != nil {
			return fmt.Errorf("apply genesis: %w", err)
		}
		logger.Info("economy seeded from genesis spec", slog.String("path", genesisPath))
		return nil
	}

	if !allowAutogenesis {
		return fmt.Errorf("no stored economy and no genesis file provided; supply one via --genesis, %s, or config, or explicitly enable autogenesis (--allow-autogenesis / %s / config)", genesisPathEnv, allowAutogenesisEnv)
	}

	key, err := loadAuthorityKey(cfg, resolvePassphrase)
	if err != nil {
		return fmt.Errorf("load authority key: %w", err)
	}
	authority := key.PubKey().Address()

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("prepare data directory: %w", err)
	}
	autogenPath := filepath.Join(cfg.DataDir, "genesis.autogen.json")
	if err := genesis.Default(authority, authority, time.Now()).Write(autogenPath); err != nil {
		return fmt.Errorf("write autogenesis spec: %w", err)
	}
	// Reload through the same path an operator-provided file takes, so the
	// written spec is validated before anything is applied.
	spec, err := genesis.Load(autogenPath)
	if err != nil {
		return fmt.Errorf("reload autogenesis spec: %w", err)
	}
	if err := node.ApplyGenesis(spec.Config(), spec.InitialSupply(), spec.Balances()); err != nil {
		return fmt.Errorf("apply autogenesis: %w", err)
	}
	logger.Warn("economy autogenerated for development",
		slog.String("authority", authority.String()),
		slog.String("spec", autogenPath))
	return nil
}

// loadAuthorityKey resolves the economy authority key from the configured
// environment variable or the encrypted keystore.
func loadAuthorityKey(cfg *config.Config, resolvePassphrase func() (string, error)) (*crypto.PrivateKey, error) {
	if envName := strings.TrimSpace(cfg.AuthorityKeyEnv); envName != "" {
		value, ok := os.LookupEnv(envName)
		if !ok {
			return nil, fmt.Errorf("environment variable %q not set", envName)
		}
		return crypto.PrivateKeyFromHex(value)
	}

	if cfg.AuthorityKeystorePath == "" {
		return nil, fmt.Errorf("authority keystore path not configured")
	}
	if resolvePassphrase == nil {
		return nil, fmt.Errorf("authority keystore passphrase required; set %s or run interactively", authorityPassEnv)
	}
	pass, err := resolvePassphrase()
	if err != nil {
		return nil, fmt.Errorf("failed to obtain authority keystore passphrase: %w", err)
	}
	key, err := crypto.LoadFromKeystore(cfg.AuthorityKeystorePath, pass)
	if err != nil {
		return nil, fmt.Errorf("unable to decrypt keystore %s: %w", cfg.AuthorityKeystorePath, err)
	}
	return key, nil
}

type envLookupFunc func(string) (string, bool)

// resolveGenesisPath picks the genesis spec location with CLI taking priority
// over the environment, then the config file. An empty result is only valid
// when autogenesis is allowed.
func resolveGenesisPath(cliPath, cfgPath string, allowAutogenesis bool, lookup envLookupFunc) (string, error) {
	if trimmed := strings.TrimSpace(cliPath); trimmed != "" {
		return trimmed, nil
	}
	if lookup != nil {
		if value, ok := lookup(genesisPathEnv); ok {
			if trimmed := strings.TrimSpace(value); trimmed != "" {
				return trimmed, nil
			}
		}
	}
	if trimmed := strings.TrimSpace(cfgPath); trimmed != "" {
		return trimmed, nil
	}
	if allowAutogenesis {
		return "", nil
	}
	return "", fmt.Errorf("no genesis file provided; supply one via --genesis, %s, or config, or explicitly enable autogenesis (--allow-autogenesis / %s / config)", genesisPathEnv, allowAutogenesisEnv)
}

// resolveAllowAutogenesis layers the config value, the environment override,
// and finally an explicit CLI flag.
func resolveAllowAutogenesis(cfgValue, cliSet, cliValue bool, lookup envLookupFunc) (bool, error) {
	allow := cfgValue
	if lookup != nil {
		if value, ok := lookup(allowAutogenesisEnv); ok {
			if trimmed := strings.TrimSpace(value); trimmed != "" {
				parsed, err := strconv.ParseBool(trimmed)
				if err != nil {
					return false, fmt.Errorf("invalid %s value %q: %w", allowAutogenesisEnv, trimmed, err)
				}
				allow = parsed
			}
		}
	}
	if cliSet {
		allow = cliValue
	}
	return allow, nil
}

func flagWasProvided(name string) bool {
	provided := false
	flag.CommandLine.Visit(func(f *flag.Flag) {
		if f.Name == name {
			provided = true
		}
	})
	return provided
}
