package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	ThingSpeak ThingSpeakConfig `mapstructure:"thingspeak"`
	Gemini     GeminiConfig     `mapstructure:"gemini"`
	Prediction PredictionConfig `mapstructure:"prediction"`
	Server     ServerConfig     `mapstructure:"server"`
	Store      StoreConfig      `mapstructure:"store"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	InfluxDB   InfluxDBConfig   `mapstructure:"influxdb"`
	Schedule   ScheduleConfig   `mapstructure:"schedule"`
	Profile    ProfileConfig    `mapstructure:"profile"`
	Log        LogConfig        `mapstructure:"log"`
}

// ThingSpeakConfig holds telemetry feed settings
type ThingSpeakConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	ChannelID  string        `mapstructure:"channel_id"`
	ReadAPIKey string        `mapstructure:"read_api_key"`
	Results    int           `mapstructure:"results"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// GeminiConfig holds generative-language endpoint settings
type GeminiConfig struct {
	BaseURL         string        `mapstructure:"base_url"`
	Model           string        `mapstructure:"model"`
	APIKey          string        `mapstructure:"api_key"`
	Temperature     float64       `mapstructure:"temperature"`
	TopK            int           `mapstructure:"top_k"`
	TopP            float64       `mapstructure:"top_p"`
	MaxOutputTokens int           `mapstructure:"max_output_tokens"`
	Timeout         time.Duration `mapstructure:"timeout"`
}

// PredictionConfig holds estimator policy settings
type PredictionConfig struct {
	ModelDayThreshold int `mapstructure:"model_day_threshold"`
	BillingDays       int `mapstructure:"billing_days"`
}

// ServerConfig holds HTTP API settings
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// StoreConfig holds run-history database settings. An empty DBPath disables the store.
type StoreConfig struct {
	DBPath string `mapstructure:"db_path"`
}

// KafkaConfig holds Kafka-related configuration
type KafkaConfig struct {
	Enabled         bool     `mapstructure:"enabled"`
	Brokers         []string `mapstructure:"brokers"`
	RefreshTopic    string   `mapstructure:"refresh_topic"`
	PredictionTopic string   `mapstructure:"prediction_topic"`
	GroupID         string   `mapstructure:"group_id"`
}

// InfluxDBConfig holds InfluxDB-related configuration
type InfluxDBConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
	Org     string `mapstructure:"org"`
	Token   string `mapstructure:"token"`
	Bucket  string `mapstructure:"bucket"`
}

// ScheduleConfig holds the periodic re-run cron spec. Empty disables it.
type ScheduleConfig struct {
	Cron string `mapstructure:"cron"`
}

// ProfileConfig points at the household profile file
type ProfileConfig struct {
	Path string `mapstructure:"path"`
}

// LogConfig holds logger settings
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// Load reads an optional .env file, builds the configuration from environment
// variables with defaults and, when path is set, overlays the values found in
// that YAML file.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		ThingSpeak: ThingSpeakConfig{
			BaseURL:    getEnv("THINGSPEAK_BASE_URL", "https://api.thingspeak.com"),
			ChannelID:  getEnv("THINGSPEAK_CHANNEL_ID", "629098"),
			ReadAPIKey: getEnv("THINGSPEAK_READ_API_KEY", ""),
			Results:    getEnvInt("THINGSPEAK_RESULTS", 0),
			Timeout:    getEnvDuration("THINGSPEAK_TIMEOUT", 15*time.Second),
		},
		Gemini: GeminiConfig{
			BaseURL:         getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com"),
			Model:           getEnv("GEMINI_MODEL", "gemini-2.5-flash-lite-preview-09-2025"),
			APIKey:          getEnv("GEMINI_API_KEY", ""),
			Temperature:     getEnvFloat("GEMINI_TEMPERATURE", 0.3),
			TopK:            getEnvInt("GEMINI_TOP_K", 20),
			TopP:            getEnvFloat("GEMINI_TOP_P", 0.8),
			MaxOutputTokens: getEnvInt("GEMINI_MAX_OUTPUT_TOKENS", 2048),
			Timeout:         getEnvDuration("GEMINI_TIMEOUT", 60*time.Second),
		},
		Prediction: PredictionConfig{
			ModelDayThreshold: getEnvInt("PREDICTION_MODEL_DAY_THRESHOLD", 20),
			BillingDays:       getEnvInt("PREDICTION_BILLING_DAYS", 30),
		},
		Server: ServerConfig{
			Addr:            getEnv("SERVER_ADDR", ":8080"),
			ShutdownTimeout: getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Store: StoreConfig{
			DBPath: getEnv("STORE_DB_PATH", "estimator.db"),
		},
		Kafka: KafkaConfig{
			Enabled:         getEnvBool("KAFKA_ENABLED", false),
			Brokers:         getEnvStringSlice("KAFKA_BROKERS", []string{"localhost:9092"}),
			RefreshTopic:    getEnv("KAFKA_REFRESH_TOPIC", "meter-refresh-requests"),
			PredictionTopic: getEnv("KAFKA_PREDICTION_TOPIC", "meter-bill-predictions"),
			GroupID:         getEnv("KAFKA_GROUP_ID", "smart-meter-bill-estimator"),
		},
		InfluxDB: InfluxDBConfig{
			Enabled: getEnvBool("INFLUXDB_ENABLED", false),
			URL:     getEnv("INFLUXDB_URL", "http://localhost:8086"),
			Org:     getEnv("INFLUXDB_ORG", ""),
			Token:   getEnv("INFLUXDB_TOKEN", ""),
			Bucket:  getEnv("INFLUXDB_BUCKET", "smart-meter"),
		},
		Schedule: ScheduleConfig{
			Cron: getEnv("REFRESH_SCHEDULE", ""),
		},
		Profile: ProfileConfig{
			Path: getEnv("PROFILE_PATH", ""),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}

	if path != "" {
		v := viper.New()
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Only keys present in the file are decoded, so env values survive.
		if err := v.Unmarshal(cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.ThingSpeak.BaseURL) == "" {
		errs = append(errs, errors.New("thingspeak base url is required"))
	}
	if strings.TrimSpace(c.ThingSpeak.ChannelID) == "" {
		errs = append(errs, errors.New("thingspeak channel id is required"))
	}
	if c.ThingSpeak.Results < 0 {
		errs = append(errs, errors.New("thingspeak results must be >= 0"))
	}
	if c.Prediction.ModelDayThreshold < 0 {
		errs = append(errs, errors.New("prediction model day threshold must be >= 0"))
	}
	if c.Prediction.BillingDays < 1 {
		errs = append(errs, errors.New("prediction billing days must be >= 1"))
	}
	if c.Gemini.MaxOutputTokens < 1 {
		errs = append(errs, errors.New("gemini max output tokens must be >= 1"))
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		errs = append(errs, errors.New("kafka brokers are required when kafka is enabled"))
	}
	if c.InfluxDB.Enabled && (c.InfluxDB.URL == "" || c.InfluxDB.Bucket == "") {
		errs = append(errs, errors.New("influxdb url and bucket are required when influxdb is enabled"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// Helper functions to get environment variables with defaults
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value, exists := os.LookupEnv(key); exists {
		var out []string
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out
	}
	return defaultValue
}
