package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// GlobalFlags mirror the root command's persistent flags before layering.
type GlobalFlags struct {
	ConfigPath     string
	Network        string
	JSON           bool
	Plain          bool
	EnableCommands string
	Timeout        string
	Retries        int
	RPCURL         string
	IndexerURL     string
	NoTxLog        bool
}

// DefaultGlobalFlags returns flags in their unset state. Retries carries -1
// as the sentinel so an explicit --retries=0 still counts as an override.
func DefaultGlobalFlags() GlobalFlags {
	return GlobalFlags{Retries: -1}
}

// Settings are the effective configuration after defaults, file, environment
// and flags have been layered, in that order.
type Settings struct {
	Network        string
	AccountID      string
	PrivateKey     string
	OutputMode     string
	EnableCommands []string
	Timeout        time.Duration
	Retries        int
	RPCURL         string
	IndexerURL     string
	TxLogEnabled   bool
	TxLogPath      string
	TxLogLockPath  string
}

type fileConfig struct {
	Network string `yaml:"network"`
	Account string `yaml:"account"`
	Output  string `yaml:"output"`
	Timeout string `yaml:"timeout"`
	Retries *int   `yaml:"retries"`
	RPCURL  string `yaml:"rpc_url"`
	Indexer struct {
		URL string `yaml:"url"`
	} `yaml:"indexer"`
	TxLog struct {
		Enabled  *bool  `yaml:"enabled"`
		Path     string `yaml:"path"`
		LockPath string `yaml:"lock_path"`
	} `yaml:"tx_log"`
	Signing struct {
		PrivateKeyEnv string `yaml:"private_key_env"`
	} `yaml:"signing"`
}

func Load(flags GlobalFlags) (Settings, error) {
	settings, err := defaultSettings()
	if err != nil {
		return Settings{}, err
	}

	cfgPath, err := resolveConfigPath(flags.ConfigPath)
	if err != nil {
		return Settings{}, err
	}
	if err := applyFileConfig(cfgPath, &settings); err != nil {
		return Settings{}, err
	}

	applyEnv(&settings)

	if err := applyFlags(flags, &settings); err != nil {
		return Settings{}, err
	}

	if settings.Network != "mainnet" && settings.Network != "testnet" {
		return Settings{}, fmt.Errorf("network must be mainnet or testnet, got %q", settings.Network)
	}
	if settings.Timeout <= 0 {
		settings.Timeout = 10 * time.Second
	}
	if settings.Retries < 0 {
		settings.Retries = 0
	}

	return settings, nil
}

func defaultSettings() (Settings, error) {
	logPath, lockPath, err := defaultTxLogPaths()
	if err != nil {
		return Settings{}, err
	}
	return Settings{
		Network:       "testnet",
		OutputMode:    "json",
		Timeout:       10 * time.Second,
		Retries:       2,
		TxLogEnabled:  true,
		TxLogPath:     logPath,
		TxLogLockPath: lockPath,
	}, nil
}

func resolveConfigPath(input string) (string, error) {
	if strings.TrimSpace(input) != "" {
		return input, nil
	}
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "sudostake", "config.yaml"), nil
}

func defaultTxLogPaths() (string, string, error) {
	base := os.Getenv("XDG_STATE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", "", err
		}
		base = filepath.Join(home, ".local", "state")
	}
	dir := filepath.Join(base, "sudostake")
	return filepath.Join(dir, "txlog.db"), filepath.Join(dir, "txlog.lock"), nil
}

func applyFileConfig(path string, settings *Settings) error {
	buf, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}

	var cfg fileConfig
	if err := yaml.Unmarshal(buf, &cfg); err != nil {
		return fmt.Errorf("parse config yaml: %w", err)
	}

	if cfg.Network != "" {
		settings.Network = strings.ToLower(cfg.Network)
	}
	if cfg.Account != "" {
		settings.AccountID = cfg.Account
	}
	if cfg.Output != "" {
		settings.OutputMode = strings.ToLower(cfg.Output)
	}
	if cfg.Timeout != "" {
		d, err := time.ParseDuration(cfg.Timeout)
		if err != nil {
			return fmt.Errorf("config timeout: %w", err)
		}
		settings.Timeout = d
	}
	if cfg.Retries != nil {
		settings.Retries = *cfg.Retries
	}
	if cfg.RPCURL != "" {
		settings.RPCURL = cfg.RPCURL
	}
	if cfg.Indexer.URL != "" {
		settings.IndexerURL = cfg.Indexer.URL
	}
	if cfg.TxLog.Enabled != nil {
		settings.TxLogEnabled = *cfg.TxLog.Enabled
	}
	if cfg.TxLog.Path != "" {
		settings.TxLogPath = cfg.TxLog.Path
	}
	if cfg.TxLog.LockPath != "" {
		settings.TxLogLockPath = cfg.TxLog.LockPath
	}
	// The key itself never lives in the file, only the name of the
	// environment variable that carries it.
	if cfg.Signing.PrivateKeyEnv != "" {
		settings.PrivateKey = os.Getenv(cfg.Signing.PrivateKeyEnv)
	}

	return nil
}

func applyEnv(settings *Settings) {
	if v := os.Getenv("NEAR_NETWORK"); v != "" {
		settings.Network = strings.ToLower(v)
	}
	if v := os.Getenv("NEAR_ACCOUNT_ID"); v != "" {
		settings.AccountID = v
	}
	if v := os.Getenv("NEAR_PRIVATE_KEY"); v != "" {
		settings.PrivateKey = v
	}
	if v := os.Getenv("SUDOSTAKE_OUTPUT"); v != "" {
		settings.OutputMode = strings.ToLower(v)
	}
	if v := os.Getenv("SUDOSTAKE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			settings.Timeout = d
		}
	}
	if v := os.Getenv("SUDOSTAKE_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			settings.Retries = n
		}
	}
	if v := os.Getenv("SUDOSTAKE_RPC_URL"); v != "" {
		settings.RPCURL = v
	}
	if v := os.Getenv("SUDOSTAKE_INDEXER_URL"); v != "" {
		settings.IndexerURL = v
	}
	if v := os.Getenv("SUDOSTAKE_NO_TX_LOG"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			settings.TxLogEnabled = !b
		}
	}
	if v := os.Getenv("SUDOSTAKE_TX_LOG_PATH"); v != "" {
		settings.TxLogPath = v
	}
	if v := os.Getenv("SUDOSTAKE_TX_LOG_LOCK_PATH"); v != "" {
		settings.TxLogLockPath = v
	}
}

func applyFlags(flags GlobalFlags, settings *Settings) error {
	if flags.JSON && flags.Plain {
		return fmt.Errorf("cannot use --json and --plain together")
	}
	if flags.Network != "" {
		settings.Network = strings.ToLower(flags.Network)
	}
	if flags.JSON {
		settings.OutputMode = "json"
	}
	if flags.Plain {
		settings.OutputMode = "plain"
	}
	if strings.TrimSpace(flags.EnableCommands) != "" {
		parts := strings.Split(flags.EnableCommands, ",")
		allowed := make([]string, 0, len(parts))
		for _, part := range parts {
			v := strings.TrimSpace(part)
			if v != "" {
				allowed = append(allowed, v)
			}
		}
		settings.EnableCommands = allowed
	}
	if flags.Timeout != "" {
		d, err := time.ParseDuration(flags.Timeout)
		if err != nil {
			return fmt.Errorf("parse --timeout: %w", err)
		}
		settings.Timeout = d
	}
	if flags.Retries >= 0 {
		settings.Retries = flags.Retries
	}
	if flags.RPCURL != "" {
		settings.RPCURL = flags.RPCURL
	}
	if flags.IndexerURL != "" {
		settings.IndexerURL = flags.IndexerURL
	}
	if flags.NoTxLog {
		settings.TxLogEnabled = false
	}

	if settings.OutputMode != "json" && settings.OutputMode != "plain" {
		return fmt.Errorf("output must be json or plain")
	}

	return nil
}
