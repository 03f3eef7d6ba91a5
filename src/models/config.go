package models

// MConfig Structure
type MConfig struct {
	Name      string           `yaml:"name"`
	Host      string           `yaml:"host"`
	Port      int              `yaml:"port"`
	LogLevel  string           `yaml:"log_level"`
	LogFile   string           `yaml:"log_file"`
	Auth      MAuthConfig      `yaml:"auth"`
	Gateway   MGatewayConfig   `yaml:"gateway"`
	RateLimit MRateLimitConfig `yaml:"rate_limit"`
	Cache     MCacheConfig     `yaml:"cache"`
	Analysis  MAnalysisConfig  `yaml:"analysis"`
	Reasoning MReasoningConfig `yaml:"reasoning"`
	Storage   MStorageConfig   `yaml:"storage"`
	Network   MNetworkConfig   `yaml:"network"`
	Feeds     MFeedsConfig     `yaml:"feeds"`
}

type MAuthConfig struct {
	Enabled bool           `yaml:"enabled"`
	Tokens  []MTokenConfig `yaml:"tokens"`
}

type MTokenConfig struct {
	Token     string `yaml:"token"`
	Principal string `yaml:"principal"`
}

type MGatewayConfig struct {
	ClientBuffer        int `yaml:"client_buffer"`
	HeartbeatSeconds    int `yaml:"heartbeat_seconds"`
	MaxRequestTimeoutMs int `yaml:"max_request_timeout_ms"`
}

type MRateLimitConfig struct {
	Burst            int     `yaml:"burst"`
	RefillPerSec     float64 `yaml:"refill_per_sec"`
	FailureThreshold int     `yaml:"failure_threshold"`
	CooldownSeconds  int     `yaml:"cooldown_seconds"`
}

type MCacheConfig struct {
	SweepSeconds int             `yaml:"sweep_seconds"`
	TTLSeconds   MCacheTTLConfig `yaml:"ttl_seconds"`
}

type MCacheTTLConfig struct {
	MarketData int `yaml:"market_data"`
	Technical  int `yaml:"technical"`
	Pattern    int `yaml:"pattern"`
	Sentiment  int `yaml:"sentiment"`
	Insight    int `yaml:"insight"`
}

type MAnalysisConfig struct {
	DefaultTimeoutMs int `yaml:"default_timeout_ms"`
	LocalTimeoutMs   int `yaml:"local_timeout_ms"`
}

type MReasoningConfig struct {
	LocalEnabled   bool   `yaml:"local_enabled"`
	CloudURL       string `yaml:"cloud_url"`
	CloudAPIKey    string `yaml:"cloud_api_key"` // Usually injected via GATEWAY_CLOUD_API_KEY
	CloudTimeoutMs int    `yaml:"cloud_timeout_ms"`
}

type MStorageConfig struct {
	DBType             string `yaml:"db_type"`
	DBPath             string `yaml:"db_path"`
	DBConnectionString string `yaml:"db_connection_string"`
	RetentionDays      int    `yaml:"retention_days"`
}

type MNetworkConfig struct {
	Enabled            bool     `yaml:"enabled"`
	Proxies            []string `yaml:"proxies"`
	RequestTimeout     int      `yaml:"timeout"`
	MaxRetries         int      `yaml:"retries"`
	ConcurrentRequests int      `yaml:"concurrent_requests"`
	UserAgent          string   `yaml:"user_agent"`
}

type MFeedsConfig struct {
	Sources []MSourceConfig `yaml:"sources"`
}

// MSourceConfig is read from YAML at startup and bound from JSON on the
// admin route that adds sources at runtime, so it carries both tag sets.
type MSourceConfig struct {
	Name            string   `yaml:"name" json:"name"`
	Type            string   `yaml:"type" json:"type"` // "sim" or "http"
	URL             string   `yaml:"url" json:"url"`
	Symbols         []string `yaml:"symbols" json:"symbols"`
	Timeframes      []string `yaml:"timeframes" json:"timeframes"`
	IntervalSeconds int      `yaml:"interval_seconds" json:"interval_seconds"`
	MarketHours     bool     `yaml:"market_hours" json:"market_hours"`
	APIKey          string   `yaml:"api_key" json:"api_key"` // Optional
}
