package config

import (
	"EdubotKing-Backend/internal/apperr"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DefaultBaseURL   = "https://generativelanguage.googleapis.com/v1beta/models"
	DefaultTextModel = "gemini-2.5-flash-preview-09-2025"
	DefaultTTSModel  = "gemini-2.5-flash-preview-tts"
	DefaultVoice     = "Kore"
)

const (
	maxGeminiAttempts  = 10
	writeTimeoutMargin = 10 * time.Second
)

type Config struct {
	Server ServerConfig
	CORS   CORSConfig
	Gemini GeminiConfig
	Log    LogConfig
}

type ServerConfig struct {
	Port           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxUploadBytes int64
	RateLimitRPS   float64
	RateLimitBurst int
}

type CORSConfig struct {
	AllowedOrigins []string
}

type GeminiConfig struct {
	BaseURL     string
	APIKey      string
	TextModel   string
	TTSModel    string
	Voice       string
	Timeout     time.Duration
	MaxAttempts int
}

// RetryBudget is the longest one gateway call can run: every attempt hitting
// its timeout plus the 1s, 2s, 4s... waits between attempts.
func (g GeminiConfig) RetryBudget() time.Duration {
	total := time.Duration(g.MaxAttempts) * g.Timeout
	for i := 0; i < g.MaxAttempts-1; i++ {
		total += time.Duration(1<<i) * time.Second
	}
	return total
}

type LogConfig struct {
	Level  string
	Format string
}

func Flags(fs *pflag.FlagSet) {
	fs.String("config", "", "path to a config file (yaml)")
	fs.String("server.port", "", "listen address, e.g. :8000")
	fs.String("log.level", "", "log level: debug, info, warn, error")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", ":8000")
	v.SetDefault("server.read_timeout_seconds", 15)
	v.SetDefault("server.write_timeout_seconds", 200)
	v.SetDefault("server.max_upload_mb", 20)
	v.SetDefault("server.rate_limit_rps", 0)
	v.SetDefault("server.rate_limit_burst", 10)
	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("gemini.base_url", DefaultBaseURL)
	v.SetDefault("gemini.text_model", DefaultTextModel)
	v.SetDefault("gemini.tts_model", DefaultTTSModel)
	v.SetDefault("gemini.voice", DefaultVoice)
	v.SetDefault("gemini.timeout_seconds", 60)
	v.SetDefault("gemini.max_attempts", 3)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Load builds the process configuration once at startup. Flags may be nil.
// Sources, lowest to highest priority: defaults, config file, environment
// (EDUBOT_ prefix), flags.
func Load(fs *pflag.FlagSet) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("could not load .env file", "error", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(".")
	v.SetEnvPrefix("EDUBOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if fs != nil {
		if err := v.BindPFlags(fs); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
		if path, _ := fs.GetString("config"); path != "" {
			v.SetConfigFile(path)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		slog.Info("config.yaml not found, using defaults and environment only")
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:           v.GetString("server.port"),
			ReadTimeout:    time.Duration(v.GetInt("server.read_timeout_seconds")) * time.Second,
			WriteTimeout:   time.Duration(v.GetInt("server.write_timeout_seconds")) * time.Second,
			MaxUploadBytes: v.GetInt64("server.max_upload_mb") << 20,
			RateLimitRPS:   v.GetFloat64("server.rate_limit_rps"),
			RateLimitBurst: v.GetInt("server.rate_limit_burst"),
		},
		CORS: CORSConfig{
			AllowedOrigins: v.GetStringSlice("cors.allowed_origins"),
		},
		Gemini: GeminiConfig{
			BaseURL:     strings.TrimRight(v.GetString("gemini.base_url"), "/"),
			APIKey:      v.GetString("gemini.api_key"),
			TextModel:   v.GetString("gemini.text_model"),
			TTSModel:    v.GetString("gemini.tts_model"),
			Voice:       v.GetString("gemini.voice"),
			Timeout:     time.Duration(v.GetInt("gemini.timeout_seconds")) * time.Second,
			MaxAttempts: v.GetInt("gemini.max_attempts"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
	}

	// Hosting platforms (Render, Heroku) hand out the port via PORT.
	if port := os.Getenv("PORT"); port != "" {
		cfg.Server.Port = ":" + strings.TrimPrefix(port, ":")
	}
	if cfg.Gemini.APIKey == "" {
		cfg.Gemini.APIKey = os.Getenv("GEMINI_API_KEY")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var missing []string
	if c.Gemini.APIKey == "" {
		missing = append(missing, "GEMINI_API_KEY")
	}
	if c.Gemini.BaseURL == "" {
		missing = append(missing, "gemini.base_url")
	}
	if len(missing) > 0 {
		return apperr.New(apperr.KindConfig, "missing required configuration: "+strings.Join(missing, ", "))
	}
	if c.Gemini.MaxAttempts < 1 || c.Gemini.MaxAttempts > maxGeminiAttempts {
		return apperr.New(apperr.KindConfig, fmt.Sprintf("gemini.max_attempts must be between 1 and %d, got %d", maxGeminiAttempts, c.Gemini.MaxAttempts))
	}
	if c.Gemini.Timeout <= 0 {
		return apperr.New(apperr.KindConfig, "gemini.timeout_seconds must be positive")
	}
	// A zero WriteTimeout means the server never cuts the response off.
	if need := c.Gemini.RetryBudget() + writeTimeoutMargin; c.Server.WriteTimeout > 0 && c.Server.WriteTimeout < need {
		return apperr.New(apperr.KindConfig, fmt.Sprintf(
			"server.write_timeout_seconds (%s) must be at least %s to answer after gemini retries run out",
			c.Server.WriteTimeout, need))
	}
	return nil
}
