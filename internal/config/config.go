package config

import (
	"errors"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`
	Merchant struct {
		Address string `yaml:"address"`
		Label   string `yaml:"label"`
	} `yaml:"merchant"`
	Oracle struct {
		WSEndpoints []string `yaml:"ws_endpoints"`
		RPCEndpoint string   `yaml:"rpc_endpoint"`
		Commitment  string   `yaml:"commitment"`
	} `yaml:"oracle"`
	Pricing struct {
		URL          string `yaml:"url"`
		FiatCurrency string `yaml:"fiat_currency"`
		TTLSeconds   int64  `yaml:"ttl_seconds"`
		FallbackRate string `yaml:"fallback_rate"`
	} `yaml:"pricing"`
	Orders struct {
		BaseURL string `yaml:"base_url"`
	} `yaml:"orders"`
	Watcher struct {
		MaxReconnectAttempts int   `yaml:"max_reconnect_attempts"`
		KeepaliveSeconds     int64 `yaml:"keepalive_seconds"`
		PollIntervalSeconds  int64 `yaml:"poll_interval_seconds"`
	} `yaml:"watcher"`
	DB struct {
		DSN string `yaml:"dsn"`
	} `yaml:"db"`
}

func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		path = "configs/config.yaml"
	}

	var cfg Config
	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, err
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	applyEnvOverrides(&cfg)
	applyDefaults(&cfg)

	if cfg.Server.Addr == "" {
		return nil, errors.New("server.addr is required")
	}
	if cfg.Merchant.Address == "" {
		return nil, errors.New("merchant.address is required")
	}
	if len(cfg.Oracle.WSEndpoints) == 0 {
		return nil, errors.New("oracle.ws_endpoints is required")
	}
	if cfg.Orders.BaseURL == "" {
		return nil, errors.New("orders.base_url is required")
	}
	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SERVER_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("MERCHANT_WALLET_ADDRESS"); v != "" {
		cfg.Merchant.Address = v
	}
	if v := os.Getenv("MERCHANT_LABEL"); v != "" {
		cfg.Merchant.Label = v
	}
	if v := os.Getenv("ORACLE_WS_ENDPOINTS"); v != "" {
		cfg.Oracle.WSEndpoints = splitCommaList(v)
	}
	if v := os.Getenv("ORACLE_RPC_ENDPOINT"); v != "" {
		cfg.Oracle.RPCEndpoint = v
	}
	if v := os.Getenv("ORACLE_COMMITMENT"); v != "" {
		cfg.Oracle.Commitment = v
	}
	if v := os.Getenv("PRICE_API_URL"); v != "" {
		cfg.Pricing.URL = v
	}
	if v := os.Getenv("FIAT_CURRENCY"); v != "" {
		cfg.Pricing.FiatCurrency = v
	}
	if v := os.Getenv("PRICE_TTL_SECONDS"); v != "" {
		cfg.Pricing.TTLSeconds = atoi64Or(cfg.Pricing.TTLSeconds, v)
	}
	if v := os.Getenv("PRICE_FALLBACK_RATE"); v != "" {
		cfg.Pricing.FallbackRate = v
	}
	if v := os.Getenv("SERVER_URL"); v != "" {
		cfg.Orders.BaseURL = v
	}
	if v := os.Getenv("WATCHER_MAX_RECONNECT_ATTEMPTS"); v != "" {
		cfg.Watcher.MaxReconnectAttempts = atoiOr(cfg.Watcher.MaxReconnectAttempts, v)
	}
	if v := os.Getenv("WATCHER_KEEPALIVE_SECONDS"); v != "" {
		cfg.Watcher.KeepaliveSeconds = atoi64Or(cfg.Watcher.KeepaliveSeconds, v)
	}
	if v := os.Getenv("WATCHER_POLL_INTERVAL_SECONDS"); v != "" {
		cfg.Watcher.PollIntervalSeconds = atoi64Or(cfg.Watcher.PollIntervalSeconds, v)
	}
	if v := os.Getenv("DB_DSN"); v != "" {
		cfg.DB.DSN = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Merchant.Label == "" {
		cfg.Merchant.Label = "Agentic POS"
	}
	if cfg.Oracle.Commitment == "" {
		cfg.Oracle.Commitment = "confirmed"
	}
	if cfg.Pricing.FiatCurrency == "" {
		cfg.Pricing.FiatCurrency = "usd"
	}
	if cfg.Pricing.TTLSeconds <= 0 {
		cfg.Pricing.TTLSeconds = 60
	}
	if cfg.Pricing.FallbackRate == "" {
		cfg.Pricing.FallbackRate = "100"
	}
	if cfg.Watcher.MaxReconnectAttempts <= 0 {
		cfg.Watcher.MaxReconnectAttempts = 10
	}
	if cfg.Watcher.KeepaliveSeconds <= 0 {
		cfg.Watcher.KeepaliveSeconds = 30
	}
}

func splitCommaList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}

func atoiOr(fallback int, v string) int {
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}

func atoi64Or(fallback int64, v string) int64 {
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return i
}
