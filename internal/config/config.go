package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ggonzalez94/satsuma/internal/automation"
	"github.com/ggonzalez94/satsuma/internal/execution"
	"github.com/ggonzalez94/satsuma/internal/registry"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

type GlobalFlags struct {
	ConfigPath     string
	EnvFile        string
	JSON           bool
	Plain          bool
	Select         string
	ResultsOnly    bool
	Timeout        string
	RPCURL         string
	LogLevel       string
	MetricsAddr    string
	NoCache        bool
	EnableCommands string
}

type AutomationSettings struct {
	Candidates []string
	AmountMin  decimal.Decimal
	AmountMax  decimal.Decimal
	Precision  int32
	DelayMin   time.Duration
	DelayMax   time.Duration
}

type Settings struct {
	OutputMode   string
	SelectFields []string
	ResultsOnly  bool
	Timeout      time.Duration
	LogLevel     string

	RPCURL      string
	ChainID     int64
	ExplorerURL string
	Contracts   map[string]string

	Automation     AutomationSettings
	Gas            execution.GasPolicy
	PollInterval   time.Duration
	ReceiptTimeout time.Duration

	RunStatePath     string
	RunStateLockPath string
	HistoryPath      string
	HistoryLockPath  string
	CacheEnabled     bool
	CachePath        string
	CacheLockPath    string

	MetricsAddr    string
	EnableCommands []string
}

type fileConfig struct {
	Output         string   `yaml:"output"`
	Timeout        string   `yaml:"timeout"`
	LogLevel       string   `yaml:"log_level"`
	EnableCommands []string `yaml:"enable_commands"`
	Chain          struct {
		RPCURL      string            `yaml:"rpc_url"`
		ChainID     *int64            `yaml:"chain_id"`
		ExplorerURL string            `yaml:"explorer_url"`
		Contracts   map[string]string `yaml:"contracts"`
	} `yaml:"chain"`
	Automation struct {
		Candidates []string `yaml:"candidates"`
		AmountMin  string   `yaml:"amount_min"`
		AmountMax  string   `yaml:"amount_max"`
		Precision  *int32   `yaml:"precision"`
		DelayMin   string   `yaml:"delay_min"`
		DelayMax   string   `yaml:"delay_max"`
	} `yaml:"automation"`
	Execution struct {
		Gas            execution.GasPolicy `yaml:"gas"`
		PollInterval   string              `yaml:"poll_interval"`
		ReceiptTimeout string              `yaml:"receipt_timeout"`
		HistoryPath    string              `yaml:"history_path"`
		HistoryLock    string              `yaml:"history_lock_path"`
	} `yaml:"execution"`
	State struct {
		Path     string `yaml:"path"`
		LockPath string `yaml:"lock_path"`
	} `yaml:"state"`
	Cache struct {
		Enabled  *bool  `yaml:"enabled"`
		Path     string `yaml:"path"`
		LockPath string `yaml:"lock_path"`
	} `yaml:"cache"`
	Metrics struct {
		Addr string `yaml:"addr"`
	} `yaml:"metrics"`
}

// Load resolves settings from defaults, the YAML file, the environment and
// flags, in increasing precedence. A .env file is read first so its values
// behave like ordinary environment variables.
func Load(flags GlobalFlags) (Settings, error) {
	if err := loadDotEnv(flags.EnvFile); err != nil {
		return Settings{}, err
	}

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

	if err := applyEnv(&settings); err != nil {
		return Settings{}, err
	}

	if err := applyFlags(flags, &settings); err != nil {
		return Settings{}, err
	}

	if settings.Timeout <= 0 {
		settings.Timeout = 30 * time.Second
	}
	if settings.Automation.Precision <= 0 {
		settings.Automation.Precision = automation.DefaultPrecision
	}
	if settings.Automation.AmountMax.LessThan(settings.Automation.AmountMin) {
		return Settings{}, fmt.Errorf("automation amount_max %s is below amount_min %s", settings.Automation.AmountMax, settings.Automation.AmountMin)
	}
	if settings.Automation.DelayMax < settings.Automation.DelayMin {
		return Settings{}, fmt.Errorf("automation delay_max %s is below delay_min %s", settings.Automation.DelayMax, settings.Automation.DelayMin)
	}

	return settings, nil
}

func defaultSettings() (Settings, error) {
	dataDir, err := defaultDataDir()
	if err != nil {
		return Settings{}, err
	}
	cacheDir, err := defaultCacheDir()
	if err != nil {
		return Settings{}, err
	}
	base := registry.CitreaTestnet()
	return Settings{
		OutputMode:  "plain",
		Timeout:     30 * time.Second,
		LogLevel:    "info",
		RPCURL:      base.RPCURL,
		ChainID:     base.ChainID,
		ExplorerURL: base.ExplorerURL,
		Contracts:   map[string]string{},
		Automation: AutomationSettings{
			Candidates: []string{"USDC", "WCBTC"},
			AmountMin:  automation.DefaultAmountMin,
			AmountMax:  automation.DefaultAmountMax,
			Precision:  automation.DefaultPrecision,
			DelayMin:   automation.DefaultDelayMin,
			DelayMax:   automation.DefaultDelayMax,
		},
		Gas:              execution.DefaultGasPolicy(),
		PollInterval:     execution.DefaultSubmitOptions().PollInterval,
		RunStatePath:     filepath.Join(dataDir, "state.json"),
		RunStateLockPath: filepath.Join(dataDir, "state.lock"),
		HistoryPath:      filepath.Join(dataDir, "history.db"),
		HistoryLockPath:  filepath.Join(dataDir, "history.lock"),
		CacheEnabled:     true,
		CachePath:        filepath.Join(cacheDir, "cache.db"),
		CacheLockPath:    filepath.Join(cacheDir, "cache.lock"),
	}, nil
}

func loadDotEnv(path string) error {
	if strings.TrimSpace(path) != "" {
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("load env file %s: %w", path, err)
		}
		return nil
	}
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			return fmt.Errorf("load .env: %w", err)
		}
	}
	return nil
}

func resolveConfigPath(input string) (string, error) {
	if strings.TrimSpace(input) != "" {
		return input, nil
	}
	if v := os.Getenv("SATSUMA_CONFIG"); v != "" {
		return v, nil
	}
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "satsuma", "config.yaml"), nil
}

func defaultDataDir() (string, error) {
	base := os.Getenv("XDG_DATA_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(base, "satsuma"), nil
}

func defaultCacheDir() (string, error) {
	base := os.Getenv("XDG_CACHE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".cache")
	}
	return filepath.Join(base, "satsuma"), nil
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
	if cfg.LogLevel != "" {
		settings.LogLevel = cfg.LogLevel
	}

	if cfg.Chain.RPCURL != "" {
		settings.RPCURL = cfg.Chain.RPCURL
	}
	if cfg.Chain.ChainID != nil {
		settings.ChainID = *cfg.Chain.ChainID
	}
	if cfg.Chain.ExplorerURL != "" {
		settings.ExplorerURL = cfg.Chain.ExplorerURL
	}
	for name, addr := range cfg.Chain.Contracts {
		settings.Contracts[strings.ToLower(name)] = addr
	}

	if len(cfg.Automation.Candidates) > 0 {
		settings.Automation.Candidates = cfg.Automation.Candidates
	}
	if cfg.Automation.AmountMin != "" {
		d, err := parseAmount("automation.amount_min", cfg.Automation.AmountMin)
		if err != nil {
			return err
		}
		settings.Automation.AmountMin = d
	}
	if cfg.Automation.AmountMax != "" {
		d, err := parseAmount("automation.amount_max", cfg.Automation.AmountMax)
		if err != nil {
			return err
		}
		settings.Automation.AmountMax = d
	}
	if cfg.Automation.Precision != nil {
		settings.Automation.Precision = *cfg.Automation.Precision
	}
	if cfg.Automation.DelayMin != "" {
		d, err := time.ParseDuration(cfg.Automation.DelayMin)
		if err != nil {
			return fmt.Errorf("config automation.delay_min: %w", err)
		}
		settings.Automation.DelayMin = d
	}
	if cfg.Automation.DelayMax != "" {
		d, err := time.ParseDuration(cfg.Automation.DelayMax)
		if err != nil {
			return fmt.Errorf("config automation.delay_max: %w", err)
		}
		settings.Automation.DelayMax = d
	}

	mergeGas(&settings.Gas, cfg.Execution.Gas)
	if cfg.Execution.PollInterval != "" {
		d, err := time.ParseDuration(cfg.Execution.PollInterval)
		if err != nil {
			return fmt.Errorf("config execution.poll_interval: %w", err)
		}
		settings.PollInterval = d
	}
	if cfg.Execution.ReceiptTimeout != "" {
		d, err := time.ParseDuration(cfg.Execution.ReceiptTimeout)
		if err != nil {
			return fmt.Errorf("config execution.receipt_timeout: %w", err)
		}
		settings.ReceiptTimeout = d
	}
	if cfg.Execution.HistoryPath != "" {
		settings.HistoryPath = cfg.Execution.HistoryPath
	}
	if cfg.Execution.HistoryLock != "" {
		settings.HistoryLockPath = cfg.Execution.HistoryLock
	}
	if cfg.State.Path != "" {
		settings.RunStatePath = cfg.State.Path
	}
	if cfg.State.LockPath != "" {
		settings.RunStateLockPath = cfg.State.LockPath
	}
	if cfg.Cache.Enabled != nil {
		settings.CacheEnabled = *cfg.Cache.Enabled
	}
	if cfg.Cache.Path != "" {
		settings.CachePath = cfg.Cache.Path
	}
	if cfg.Cache.LockPath != "" {
		settings.CacheLockPath = cfg.Cache.LockPath
	}
	if cfg.Metrics.Addr != "" {
		settings.MetricsAddr = cfg.Metrics.Addr
	}
	if len(cfg.EnableCommands) > 0 {
		settings.EnableCommands = splitList(strings.Join(cfg.EnableCommands, ","))
	}

	return nil
}

func mergeGas(dst *execution.GasPolicy, src execution.GasPolicy) {
	set := func(target *uint64, v uint64) {
		if v > 0 {
			*target = v
		}
	}
	set(&dst.Approve, src.Approve)
	set(&dst.Swap, src.Swap)
	set(&dst.AddLiquidity, src.AddLiquidity)
	set(&dst.Lock, src.Lock)
	set(&dst.Unlock, src.Unlock)
	set(&dst.Stake, src.Stake)
	set(&dst.Vote, src.Vote)
}

func applyEnv(settings *Settings) error {
	if v := os.Getenv("SATSUMA_OUTPUT"); v != "" {
		settings.OutputMode = strings.ToLower(v)
	}
	if v := os.Getenv("SATSUMA_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			settings.Timeout = d
		}
	}
	if v := os.Getenv("SATSUMA_LOG_LEVEL"); v != "" {
		settings.LogLevel = v
	}
	if v := os.Getenv("SATSUMA_RPC_URL"); v != "" {
		settings.RPCURL = v
	}
	if v := os.Getenv("SATSUMA_CHAIN_ID"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("parse SATSUMA_CHAIN_ID: %w", err)
		}
		settings.ChainID = id
	}
	if v := os.Getenv("SATSUMA_EXPLORER_URL"); v != "" {
		settings.ExplorerURL = v
	}
	if v := os.Getenv("SATSUMA_AMOUNT_MIN"); v != "" {
		d, err := parseAmount("SATSUMA_AMOUNT_MIN", v)
		if err != nil {
			return err
		}
		settings.Automation.AmountMin = d
	}
	if v := os.Getenv("SATSUMA_AMOUNT_MAX"); v != "" {
		d, err := parseAmount("SATSUMA_AMOUNT_MAX", v)
		if err != nil {
			return err
		}
		settings.Automation.AmountMax = d
	}
	if v := os.Getenv("SATSUMA_DELAY_MIN"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			settings.Automation.DelayMin = d
		}
	}
	if v := os.Getenv("SATSUMA_DELAY_MAX"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			settings.Automation.DelayMax = d
		}
	}
	if v := os.Getenv("SATSUMA_STATE_PATH"); v != "" {
		settings.RunStatePath = v
	}
	if v := os.Getenv("SATSUMA_STATE_LOCK_PATH"); v != "" {
		settings.RunStateLockPath = v
	}
	if v := os.Getenv("SATSUMA_HISTORY_PATH"); v != "" {
		settings.HistoryPath = v
	}
	if v := os.Getenv("SATSUMA_HISTORY_LOCK_PATH"); v != "" {
		settings.HistoryLockPath = v
	}
	if v := os.Getenv("SATSUMA_NO_CACHE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			settings.CacheEnabled = !b
		}
	}
	if v := os.Getenv("SATSUMA_CACHE_PATH"); v != "" {
		settings.CachePath = v
	}
	if v := os.Getenv("SATSUMA_CACHE_LOCK_PATH"); v != "" {
		settings.CacheLockPath = v
	}
	if v := os.Getenv("SATSUMA_METRICS_ADDR"); v != "" {
		settings.MetricsAddr = v
	}
	if v := os.Getenv("SATSUMA_ENABLE_COMMANDS"); v != "" {
		settings.EnableCommands = splitList(v)
	}
	return nil
}

func applyFlags(flags GlobalFlags, settings *Settings) error {
	if flags.JSON && flags.Plain {
		return fmt.Errorf("cannot use --json and --plain together")
	}
	if flags.JSON {
		settings.OutputMode = "json"
	}
	if flags.Plain {
		settings.OutputMode = "plain"
	}
	if strings.TrimSpace(flags.Select) != "" {
		settings.SelectFields = splitList(flags.Select)
	}
	if strings.TrimSpace(flags.EnableCommands) != "" {
		settings.EnableCommands = splitList(flags.EnableCommands)
	}
	settings.ResultsOnly = flags.ResultsOnly

	if flags.Timeout != "" {
		d, err := time.ParseDuration(flags.Timeout)
		if err != nil {
			return fmt.Errorf("parse --timeout: %w", err)
		}
		settings.Timeout = d
	}
	if strings.TrimSpace(flags.RPCURL) != "" {
		settings.RPCURL = strings.TrimSpace(flags.RPCURL)
	}
	if flags.LogLevel != "" {
		settings.LogLevel = flags.LogLevel
	}
	if flags.MetricsAddr != "" {
		settings.MetricsAddr = flags.MetricsAddr
	}
	if flags.NoCache {
		settings.CacheEnabled = false
	}

	if settings.OutputMode != "json" && settings.OutputMode != "plain" {
		return fmt.Errorf("output must be json or plain")
	}
	return nil
}

func parseAmount(field, raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("config %s: %w", field, err)
	}
	if !d.IsPositive() {
		return decimal.Decimal{}, fmt.Errorf("config %s must be positive", field)
	}
	return d, nil
}

// Chain applies the configured endpoint, explorer and contract overrides to
// the built-in deployment.
func (s Settings) Chain() (registry.Chain, error) {
	chain := registry.CitreaTestnet()
	rpcURL, err := registry.ResolveRPCURL(s.RPCURL, s.ChainID)
	if err != nil {
		return registry.Chain{}, err
	}
	chain.RPCURL = rpcURL
	if s.ChainID != 0 {
		chain.ChainID = s.ChainID
	}
	if s.ExplorerURL != "" {
		chain.ExplorerURL = s.ExplorerURL
	}
	targets := map[string]*common.Address{
		"swap_router":      &chain.Contracts.SwapRouter,
		"liquidity_router": &chain.Contracts.LiquidityRouter,
		"pool":             &chain.Contracts.Pool,
		"voting_escrow":    &chain.Contracts.VotingEscrow,
		"voter":            &chain.Contracts.Voter,
		"staking":          &chain.Contracts.Staking,
		"gauge":            &chain.Contracts.Gauge,
	}
	for name, raw := range s.Contracts {
		target, ok := targets[name]
		if !ok {
			return registry.Chain{}, fmt.Errorf("unknown contract %q in config", name)
		}
		if !common.IsHexAddress(raw) {
			return registry.Chain{}, fmt.Errorf("contract %s: invalid address %q", name, raw)
		}
		*target = common.HexToAddress(raw)
	}
	return chain, nil
}

// AutomationConfig resolves the candidate symbols against chain.
func (s Settings) AutomationConfig(chain registry.Chain) (automation.Config, error) {
	candidates := make([]registry.Token, 0, len(s.Automation.Candidates))
	for _, symbol := range s.Automation.Candidates {
		tok, err := chain.Token(symbol)
		if err != nil {
			return automation.Config{}, fmt.Errorf("automation candidate: %w", err)
		}
		if tok.IsNative() {
			return automation.Config{}, fmt.Errorf("automation candidate %s: the native coin cannot be a swap output, use %s", symbol, chain.WrappedNative)
		}
		candidates = append(candidates, tok)
	}
	return automation.Config{
		Candidates: candidates,
		AmountMin:  s.Automation.AmountMin,
		AmountMax:  s.Automation.AmountMax,
		Precision:  s.Automation.Precision,
		DelayMin:   s.Automation.DelayMin,
		DelayMax:   s.Automation.DelayMax,
	}, nil
}

func (s Settings) SubmitOptions() execution.SubmitOptions {
	return execution.SubmitOptions{PollInterval: s.PollInterval, ReceiptTimeout: s.ReceiptTimeout}
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if v := strings.TrimSpace(part); v != "" {
			out = append(out, v)
		}
	}
	return out
}
