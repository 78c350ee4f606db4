package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/franckalain/mealscan/internal/models"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. MEALSCAN_SERVER_PORT.
const EnvPrefix = "MEALSCAN"

// Config holds all application configuration
type Config struct {
	Server   ServerConfig        `mapstructure:"server"`
	Database DatabaseConfig      `mapstructure:"database"`
	ML       MLConfig            `mapstructure:"ml"`
	Capture  CaptureConfig       `mapstructure:"capture"`
	Session  SessionConfig       `mapstructure:"session"`
	Profile  models.UserProfile  `mapstructure:"profile"`
	Targets  models.MacroTargets `mapstructure:"targets"`
	Log      LogConfig           `mapstructure:"log"`
}

type ServerConfig struct {
	Port      string `mapstructure:"port"`
	StaticDir string `mapstructure:"static_dir"`
	Debug     bool   `mapstructure:"debug"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// MLConfig selects and configures the recognition backend.
type MLConfig struct {
	Type            string        `mapstructure:"type"` // "gemini", "vertex" or "local"
	Model           string        `mapstructure:"model"`
	APIKey          string        `mapstructure:"api_key"`
	ProjectID       string        `mapstructure:"project_id"`
	Location        string        `mapstructure:"location"`
	CredentialsFile string        `mapstructure:"credentials_file"`
	ResponseFile    string        `mapstructure:"response_file"`
	Timeout         time.Duration `mapstructure:"timeout"`
}

type CaptureConfig struct {
	JPEGQuality        int           `mapstructure:"jpeg_quality"`
	Facing             string        `mapstructure:"facing"`
	MaxImportBytes     int64         `mapstructure:"max_import_bytes"`
	MaxImportDimension int           `mapstructure:"max_import_dimension"`
	DeviceTimeout      time.Duration `mapstructure:"device_timeout"`
}

type SessionConfig struct {
	NonFoodPolicy string `mapstructure:"non_food_policy"` // "accept", "warn" or "reject"
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "text" or "json"
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.static_dir", "./static")
	v.SetDefault("server.debug", false)

	v.SetDefault("database.path", "mealscan.db")

	v.SetDefault("ml.type", "gemini")
	v.SetDefault("ml.model", "gemini-2.5-flash")
	v.SetDefault("ml.api_key", "")
	v.SetDefault("ml.project_id", "")
	v.SetDefault("ml.location", "us-central1")
	v.SetDefault("ml.credentials_file", "")
	v.SetDefault("ml.response_file", "")
	v.SetDefault("ml.timeout", 30*time.Second)

	v.SetDefault("capture.jpeg_quality", 80)
	v.SetDefault("capture.facing", "environment")
	v.SetDefault("capture.max_import_bytes", 20<<20)
	v.SetDefault("capture.max_import_dimension", 2048)
	v.SetDefault("capture.device_timeout", 10*time.Second)

	v.SetDefault("session.non_food_policy", "warn")

	v.SetDefault("profile.name", "Alex Johnson")
	v.SetDefault("profile.daily_goal", 2100)
	v.SetDefault("profile.streak", 0)
	v.SetDefault("profile.total_scans", 0)
	v.SetDefault("profile.avg_calories", 0)
	v.SetDefault("profile.avatar", "")

	v.SetDefault("targets.protein", 140)
	v.SetDefault("targets.carbs", 200)
	v.SetDefault("targets.fats", 70)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// LoadConfig loads configuration from a JSON or YAML file, with environment
// overrides. A missing file is not an error: defaults and environment apply.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Conventional variable names used by the Google SDKs.
	_ = v.BindEnv("ml.api_key", EnvPrefix+"_ML_API_KEY", "GEMINI_API_KEY")
	_ = v.BindEnv("ml.project_id", EnvPrefix+"_ML_PROJECT_ID", "GOOGLE_PROJECT_ID")
	_ = v.BindEnv("ml.location", EnvPrefix+"_ML_LOCATION", "GOOGLE_LOCATION")
	_ = v.BindEnv("ml.credentials_file", EnvPrefix+"_ML_CREDENTIALS_FILE", "GOOGLE_CREDENTIALS_FILE")

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is not set")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database path is not set")
	}
	if c.Profile.DailyGoal <= 0 {
		return fmt.Errorf("profile daily_goal must be positive, got %d", c.Profile.DailyGoal)
	}
	if c.Capture.JPEGQuality < 1 || c.Capture.JPEGQuality > 100 {
		return fmt.Errorf("capture jpeg_quality must be between 1 and 100, got %d", c.Capture.JPEGQuality)
	}
	if c.Capture.MaxImportBytes < 0 {
		return fmt.Errorf("capture max_import_bytes must not be negative, got %d", c.Capture.MaxImportBytes)
	}
	if c.Capture.MaxImportDimension < 0 {
		return fmt.Errorf("capture max_import_dimension must not be negative, got %d", c.Capture.MaxImportDimension)
	}

	switch c.Session.NonFoodPolicy {
	case "accept", "warn", "reject":
	default:
		return fmt.Errorf("unsupported non_food_policy: %s", c.Session.NonFoodPolicy)
	}

	switch c.ML.Type {
	case "gemini":
		if c.ML.APIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY environment variable not set")
		}
	case "vertex":
		if c.ML.ProjectID == "" {
			return fmt.Errorf("GOOGLE_PROJECT_ID environment variable not set")
		}
	case "local":
		if c.ML.ResponseFile == "" {
			return fmt.Errorf("ml response_file is required for the local model")
		}
	default:
		return fmt.Errorf("unsupported model type: %s", c.ML.Type)
	}
	return nil
}

// GetConfigPath returns the path to the configuration file
func GetConfigPath() string {
	// First try environment variable
	if path := os.Getenv(EnvPrefix + "_CONFIG"); path != "" {
		return path
	}

	// Then try config directory
	for _, name := range []string{"config.json", "config.yaml", "config.yml"} {
		path := filepath.Join("config", name)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	// Finally, try current directory
	return "config.json"
}
