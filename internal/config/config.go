package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const envPrefix = "DOCSANSWER"

// DefaultProtocolVersion is the MCP revision announced when none is configured.
const DefaultProtocolVersion = "2024-11-05"

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Search    SearchConfig    `mapstructure:"search"`
	Fetch     FetchConfig     `mapstructure:"fetch"`
	Assistant AssistantConfig `mapstructure:"assistant"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

type ServerConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
	CORSOrigin   string `mapstructure:"cors_origin"`
}

// LLMConfig points at any OpenAI-compatible chat completions endpoint.
type LLMConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
	Timeout int    `mapstructure:"timeout"`
}

// SearchConfig describes the MCP documentation-search service.
type SearchConfig struct {
	BaseURL         string `mapstructure:"base_url"`
	APIKey          string `mapstructure:"api_key"`
	ToolName        string `mapstructure:"tool_name"`   // tool invoked by tools/call
	QueryParam      string `mapstructure:"query_param"` // sole argument name of that tool
	ProtocolVersion string `mapstructure:"protocol_version"`
	Timeout         int    `mapstructure:"timeout"`
}

type FetchConfig struct {
	Timeout      int    `mapstructure:"timeout"`
	MaxChars     int    `mapstructure:"max_chars"`
	MaxBodyBytes int64  `mapstructure:"max_body_bytes"`
	UserAgent    string `mapstructure:"user_agent"`
	Concurrency  int    `mapstructure:"concurrency"`
}

type AssistantConfig struct {
	Platform string `mapstructure:"platform"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads .env files, the optional config file and DOCSANSWER_* variables,
// in increasing order of precedence.
func Load(cfgFile string) (*Config, error) {
	_ = godotenv.Load()
	_ = godotenv.Load(".env.local")

	v := viper.New()
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	// Conventional OpenAI variables are honoured when the prefixed ones are unset.
	_ = v.BindEnv("llm.api_key", envPrefix+"_LLM_API_KEY", "OPENAI_API_KEY")
	_ = v.BindEnv("llm.base_url", envPrefix+"_LLM_BASE_URL", "OPENAI_BASE_URL")

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || cfgFile != "" {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30)
	v.SetDefault("server.write_timeout", 120)
	v.SetDefault("server.cors_origin", "*")

	v.SetDefault("llm.base_url", "https://api.openai.com/v1")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.timeout", 60)

	v.SetDefault("search.base_url", "")
	v.SetDefault("search.api_key", "")
	v.SetDefault("search.tool_name", "search")
	v.SetDefault("search.query_param", "query")
	v.SetDefault("search.protocol_version", DefaultProtocolVersion)
	v.SetDefault("search.timeout", 30)

	v.SetDefault("fetch.timeout", 5)
	v.SetDefault("fetch.max_chars", 10000)
	v.SetDefault("fetch.max_body_bytes", 2<<20)
	v.SetDefault("fetch.user_agent", "Mozilla/5.0 (compatible; docsanswer/1.0)")
	v.SetDefault("fetch.concurrency", 1)

	v.SetDefault("assistant.platform", "the platform")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// Validate reports settings without which no pipeline can be built.
func (c *Config) Validate() error {
	var errs []error
	if c.LLM.APIKey == "" {
		errs = append(errs, errors.New("llm.api_key is required (DOCSANSWER_LLM_API_KEY or OPENAI_API_KEY)"))
	}
	if c.LLM.Model == "" {
		errs = append(errs, errors.New("llm.model is required"))
	}
	if c.Search.BaseURL == "" {
		errs = append(errs, errors.New("search.base_url is required"))
	}
	if c.Fetch.MaxChars <= 0 {
		errs = append(errs, errors.New("fetch.max_chars must be positive"))
	}
	return errors.Join(errs...)
}

func (c *SearchConfig) TimeoutDuration() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}

func (c *FetchConfig) TimeoutDuration() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}

func (c *LLMConfig) TimeoutDuration() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}
