// File: internal/config/config.go
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	Browser() BrowserConfig
	Network() NetworkConfig
	LLM() LLMConfig
	Resolver() ResolverConfig
	Filler() FillerConfig
	Auth() AuthConfig
	Fill() FillConfig
	SetFillConfig(fc FillConfig)

	// Browser Setters
	SetBrowserHeadless(bool)
	SetBrowserIgnoreTLSErrors(bool)

	// Network Setters
	SetNetworkNavigationTimeout(d time.Duration)
	SetNetworkPostLoadWait(d time.Duration)

	// Resolver Setters
	SetResolverInvalidScenario(s string)
	SetResolverCustomValuesFile(path string)

	// Filler Setters
	SetFillerSubmit(bool)

	// Auth Setters
	SetAuthCredentials(username, password string)
}

// Config holds the entire application configuration. Private fields enforce
// access through the Interface's getter methods.
type Config struct {
	logger   LoggerConfig
	browser  BrowserConfig
	network  NetworkConfig
	llm      LLMConfig
	resolver ResolverConfig
	filler   FillerConfig
	auth     AuthConfig
	// fill gets its marching orders from CLI flags, not the config file.
	fill FillConfig
}

// rawConfig mirrors Config with exported fields so viper can unmarshal it.
type rawConfig struct {
	Logger   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	Browser  BrowserConfig  `mapstructure:"browser" yaml:"browser"`
	Network  NetworkConfig  `mapstructure:"network" yaml:"network"`
	LLM      LLMConfig      `mapstructure:"llm" yaml:"llm"`
	Resolver ResolverConfig `mapstructure:"resolver" yaml:"resolver"`
	Filler   FillerConfig   `mapstructure:"filler" yaml:"filler"`
	Auth     AuthConfig     `mapstructure:"auth" yaml:"auth"`
}

func (r *rawConfig) toConfig() *Config {
	return &Config{
		logger:   r.Logger,
		browser:  r.Browser,
		network:  r.Network,
		llm:      r.LLM,
		resolver: r.Resolver,
		filler:   r.Filler,
		auth:     r.Auth,
	}
}

// --- Interface Method Implementations (Getters) ---

func (c *Config) Logger() LoggerConfig     { return c.logger }
func (c *Config) Browser() BrowserConfig   { return c.browser }
func (c *Config) Network() NetworkConfig   { return c.network }
func (c *Config) LLM() LLMConfig           { return c.llm }
func (c *Config) Resolver() ResolverConfig { return c.resolver }
func (c *Config) Filler() FillerConfig     { return c.filler }
func (c *Config) Auth() AuthConfig         { return c.auth }
func (c *Config) Fill() FillConfig         { return c.fill }

// --- Interface Method Implementations (Setters) ---

func (c *Config) SetFillConfig(fc FillConfig) { c.fill = fc }

func (c *Config) SetBrowserHeadless(b bool)        { c.browser.Headless = b }
func (c *Config) SetBrowserIgnoreTLSErrors(b bool) { c.browser.IgnoreTLSErrors = b }

func (c *Config) SetNetworkNavigationTimeout(d time.Duration) {
	c.network.NavigationTimeout = d
}
func (c *Config) SetNetworkPostLoadWait(d time.Duration) { c.network.PostLoadWait = d }

func (c *Config) SetResolverInvalidScenario(s string) { c.resolver.InvalidScenario = s }
func (c *Config) SetResolverCustomValuesFile(path string) {
	c.resolver.CustomValuesFile = path
}

func (c *Config) SetFillerSubmit(b bool) { c.filler.Submit = b }

func (c *Config) SetAuthCredentials(username, password string) {
	c.auth.Username = username
	c.auth.Password = password
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// BrowserConfig holds settings for the headless browser instances.
type BrowserConfig struct {
	Headless        bool           `mapstructure:"headless" yaml:"headless"`
	IgnoreTLSErrors bool           `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	UserAgent       string         `mapstructure:"user_agent" yaml:"user_agent"`
	Args            []string       `mapstructure:"args" yaml:"args"`
	Viewport        map[string]int `mapstructure:"viewport" yaml:"viewport"`
}

// NetworkConfig tunes timeouts around page loads.
type NetworkConfig struct {
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	PostLoadWait      time.Duration `mapstructure:"post_load_wait" yaml:"post_load_wait"`
}

// LLMConfig configures the generative text backend.
type LLMConfig struct {
	APIKey            string        `mapstructure:"api_key" yaml:"-"`
	Model             string        `mapstructure:"model" yaml:"model"`
	Endpoint          string        `mapstructure:"endpoint" yaml:"endpoint"`
	APITimeout        time.Duration `mapstructure:"api_timeout" yaml:"api_timeout"`
	Temperature       float32       `mapstructure:"temperature" yaml:"temperature"`
	TopP              float32       `mapstructure:"top_p" yaml:"top_p"`
	TopK              int           `mapstructure:"top_k" yaml:"top_k"`
	MaxTokens         int           `mapstructure:"max_tokens" yaml:"max_tokens"`
	MaxRetries        uint64        `mapstructure:"max_retries" yaml:"max_retries"`
	RequestsPerMinute float64       `mapstructure:"requests_per_minute" yaml:"requests_per_minute"`
}

// ResolverConfig tunes value resolution behavior.
type ResolverConfig struct {
	InvalidScenario  string `mapstructure:"invalid_scenario" yaml:"invalid_scenario"`
	CustomValuesFile string `mapstructure:"custom_values_file" yaml:"custom_values_file"`
	AttachmentPath   string `mapstructure:"attachment_path" yaml:"attachment_path"`
}

// FillerConfig tunes fill execution.
type FillerConfig struct {
	Submit       bool          `mapstructure:"submit" yaml:"submit"`
	FieldTimeout time.Duration `mapstructure:"field_timeout" yaml:"field_timeout"`
	SubmitWait   time.Duration `mapstructure:"submit_wait" yaml:"submit_wait"`
}

// AuthConfig configures the authentication gate and session cache.
type AuthConfig struct {
	CacheDir            string        `mapstructure:"cache_dir" yaml:"cache_dir"`
	SessionTTL          time.Duration `mapstructure:"session_ttl" yaml:"session_ttl"`
	PollInterval        time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	PollAttempts        int           `mapstructure:"poll_attempts" yaml:"poll_attempts"`
	Username            string        `mapstructure:"username" yaml:"-"`
	Password            string        `mapstructure:"password" yaml:"-"`
	UsernameSelector    string        `mapstructure:"username_selector" yaml:"username_selector"`
	PasswordSelector    string        `mapstructure:"password_selector" yaml:"password_selector"`
	SubmitSelector      string        `mapstructure:"submit_selector" yaml:"submit_selector"`
	TwoFactorSelectors  []string      `mapstructure:"two_factor_selectors" yaml:"two_factor_selectors"`
	LoggedInSelector    string        `mapstructure:"logged_in_selector" yaml:"logged_in_selector"`
	LoginURLKeywords    []string      `mapstructure:"login_url_keywords" yaml:"login_url_keywords"`
	SelectorWaitTimeout time.Duration `mapstructure:"selector_wait_timeout" yaml:"selector_wait_timeout"`
}

// FillConfig holds settings populated from CLI flags for a specific fill run.
type FillConfig struct {
	Targets    []string
	SchemaFile string
	Output     string
	Format     string
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var raw rawConfig
	if err := v.Unmarshal(&raw); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return raw.toConfig()
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "formpilot")
	v.SetDefault("logger.log_file", "formpilot.log")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.ignore_tls_errors", false)

	// -- Network --
	v.SetDefault("network.navigation_timeout", "90s")
	v.SetDefault("network.post_load_wait", "2s")

	// -- LLM --
	v.SetDefault("llm.model", "gemini-2.5-flash")
	v.SetDefault("llm.endpoint", "https://generativelanguage.googleapis.com/v1beta/models")
	v.SetDefault("llm.api_timeout", "60s")
	v.SetDefault("llm.temperature", 0.7)
	v.SetDefault("llm.top_p", 0.95)
	v.SetDefault("llm.top_k", 40)
	v.SetDefault("llm.max_tokens", 4096)
	v.SetDefault("llm.max_retries", 3)
	v.SetDefault("llm.requests_per_minute", 30.0)

	// -- Resolver --
	v.SetDefault("resolver.invalid_scenario", "")
	v.SetDefault("resolver.attachment_path", "test_file.txt")

	// -- Filler --
	v.SetDefault("filler.submit", false)
	v.SetDefault("filler.field_timeout", "10s")
	v.SetDefault("filler.submit_wait", "3s")

	// -- Auth --
	v.SetDefault("auth.cache_dir", "~/.formpilot")
	v.SetDefault("auth.session_ttl", 30*24*time.Hour)
	v.SetDefault("auth.poll_interval", "5s")
	v.SetDefault("auth.poll_attempts", 60)
	v.SetDefault("auth.username_selector", `input[type="email"]`)
	v.SetDefault("auth.password_selector", `input[type="password"]`)
	v.SetDefault("auth.submit_selector", `input[type="submit"]`)
	v.SetDefault("auth.two_factor_selectors", []string{
		`input[name="otc"]`,
		`#idDiv_SAOTCC_Title`,
		`[data-testid="two-factor"]`,
		`input[autocomplete="one-time-code"]`,
	})
	v.SetDefault("auth.login_url_keywords", []string{"login", "signin"})
	v.SetDefault("auth.selector_wait_timeout", "2s")
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	// Bind environment variables for sensitive data
	v.BindEnv("llm.api_key", "FORMPILOT_LLM_API_KEY", "GEMINI_API_KEY")

	var raw rawConfig
	if err := v.Unmarshal(&raw); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	cfg := *raw.toConfig()

	// Manually load the key if Unmarshal didn't pick it up
	if cfg.llm.APIKey == "" {
		if key := os.Getenv("GEMINI_API_KEY"); key != "" {
			cfg.llm.APIKey = key
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.llm.APITimeout <= 0 {
		return fmt.Errorf("llm.api_timeout must be a positive duration")
	}
	if c.llm.RequestsPerMinute <= 0 {
		return fmt.Errorf("llm.requests_per_minute must be positive")
	}
	if err := c.auth.Validate(); err != nil {
		return fmt.Errorf("auth configuration invalid: %w", err)
	}
	if err := c.filler.Validate(); err != nil {
		return fmt.Errorf("filler configuration invalid: %w", err)
	}
	return nil
}

// Validate checks the auth gate settings.
func (a *AuthConfig) Validate() error {
	if a.PollAttempts <= 0 {
		return fmt.Errorf("poll_attempts must be greater than 0")
	}
	if a.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be a positive duration")
	}
	if a.SessionTTL <= 0 {
		return fmt.Errorf("session_ttl must be a positive duration")
	}
	return nil
}

// Validate checks the fill execution settings.
func (f *FillerConfig) Validate() error {
	if f.FieldTimeout <= 0 {
		return fmt.Errorf("field_timeout must be a positive duration")
	}
	return nil
}
