package model

// Config is the complete factstrip configuration.
// Field tags serve both viper (mapstructure) and `config show` (yaml).
type Config struct {
	Backend BackendConfig `mapstructure:"backend" yaml:"backend"`
	Explain ExplainConfig `mapstructure:"explain" yaml:"explain"`
	Storage StorageConfig `mapstructure:"storage" yaml:"storage"`
	History HistoryConfig `mapstructure:"history" yaml:"history"`
	Server  ServerConfig  `mapstructure:"server" yaml:"server"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
}

// BackendConfig configures the verification endpoint
type BackendConfig struct {
	URL            string  `mapstructure:"url" yaml:"url"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
	RatePerSecond  float64 `mapstructure:"rate_per_second" yaml:"rate_per_second"`
	Burst          int     `mapstructure:"burst" yaml:"burst"`
	UserAgent      string  `mapstructure:"user_agent" yaml:"user_agent"`
	HTTPProxy      string  `mapstructure:"http_proxy" yaml:"http_proxy,omitempty"`
	HTTPSProxy     string  `mapstructure:"https_proxy" yaml:"https_proxy,omitempty"`
	NoProxy        string  `mapstructure:"no_proxy" yaml:"no_proxy,omitempty"`
}

// ExplainConfig configures explanation generation
type ExplainConfig struct {
	Provider       string  `mapstructure:"provider" yaml:"provider"`     // endpoint, openai, anthropic, ollama, fallback
	URL            string  `mapstructure:"url" yaml:"url,omitempty"`     // defaults to backend.url
	Model          string  `mapstructure:"model" yaml:"model,omitempty"` // provider default if empty
	APIKey         string  `mapstructure:"api_key" yaml:"-"`
	BaseURL        string  `mapstructure:"base_url" yaml:"base_url,omitempty"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
	RatePerSecond  float64 `mapstructure:"rate_per_second" yaml:"rate_per_second"` // 0 shares the backend rate
	Burst          int     `mapstructure:"burst" yaml:"burst"`
	FillMissing    bool    `mapstructure:"fill_missing" yaml:"fill_missing"`
}

// StorageConfig selects where history is persisted
type StorageConfig struct {
	Driver     string `mapstructure:"driver" yaml:"driver"` // file, sqlite, redis, memory
	Path       string `mapstructure:"path" yaml:"path,omitempty"`
	RedisURL   string `mapstructure:"redis_url" yaml:"redis_url,omitempty"`
	Key        string `mapstructure:"key" yaml:"key"`
	QuotaBytes int    `mapstructure:"quota_bytes" yaml:"quota_bytes"`
}

// HistoryConfig bounds the history log
type HistoryConfig struct {
	Capacity int `mapstructure:"capacity" yaml:"capacity"`
}

// ServerConfig configures `factstrip serve`
type ServerConfig struct {
	Addr         string   `mapstructure:"addr" yaml:"addr"`
	AllowOrigins []string `mapstructure:"allow_origins" yaml:"allow_origins"`
}

// LogConfig configures the zap logger
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"` // json, console
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Backend: BackendConfig{
			URL:            "http://127.0.0.1:5000",
			TimeoutSeconds: 60,
			RatePerSecond:  2,
			Burst:          4,
			UserAgent:      "factstrip/0.1",
		},
		Explain: ExplainConfig{
			Provider:       "endpoint",
			TimeoutSeconds: 30,
		},
		Storage: StorageConfig{
			Driver:     "file",
			Key:        "factStripHistory",
			QuotaBytes: 5 << 20,
		},
		History: HistoryConfig{
			Capacity: 50,
		},
		Server: ServerConfig{
			Addr:         "127.0.0.1:8080",
			AllowOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}
