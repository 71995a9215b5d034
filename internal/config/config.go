package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/your-org/dartvision/internal/engine"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	NATS     NATSConfig     `yaml:"nats"`
	MinIO    MinIOConfig    `yaml:"minio"`
	Vision   VisionConfig   `yaml:"vision"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type ServerConfig struct {
	Port   int    `yaml:"port"`
	APIKey string `yaml:"api_key"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	MaxConns int    `yaml:"max_conns"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

type NATSConfig struct {
	URL           string `yaml:"url"`
	FramesStream  string `yaml:"frames_stream"`
	EventsStream  string `yaml:"events_stream"`
	ConsumerGroup string `yaml:"consumer_group"`
}

type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// VisionConfig holds the calibration source and the detection engine's
// tunable thresholds. Most of these map directly onto engine.Config's
// nested stage configs; Load keeps its own flat copies, set from the YAML
// file or from the defaults, so a deployment can tune them without touching
// the calibration document itself. Of these fields only CalibrationPath
// and WorkerCount have environment overrides.
type VisionConfig struct {
	CalibrationPath   string  `yaml:"calibration_path"`
	MaskHighThreshold float64 `yaml:"mask_high_threshold"`
	MaskLowThreshold  float64 `yaml:"mask_low_threshold"`
	MinShaftPixels    int     `yaml:"min_shaft_pixels"`
	MinElongation     float64 `yaml:"min_elongation"`
	ResidualScale     float64 `yaml:"residual_scale"`
	WorkerCount       int     `yaml:"worker_count"`
}

// EngineConfig overlays the flat, environment-overridable thresholds onto
// engine.DefaultConfig, so a deployment can tune mask sensitivity or
// triangulation agreement without touching the per-stage engine configs
// directly.
func (v VisionConfig) EngineConfig() engine.Config {
	cfg := engine.DefaultConfig
	cfg.Mask.HighThreshold = v.MaskHighThreshold
	cfg.Mask.LowThreshold = v.MaskLowThreshold
	cfg.Line.MinPixels = v.MinShaftPixels
	cfg.Line.MinElongation = v.MinElongation
	cfg.Shape.MinAspect = v.MinElongation
	cfg.Triangulate.ResidualScale = v.ResidualScale
	return cfg
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads config from YAML file and applies environment variable overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnvOverrides(cfg)
	setDefaults(cfg)

	return cfg, nil
}

func setDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = 20
	}
	if cfg.NATS.FramesStream == "" {
		cfg.NATS.FramesStream = "FRAMES"
	}
	if cfg.NATS.EventsStream == "" {
		cfg.NATS.EventsStream = "EVENTS"
	}
	if cfg.NATS.ConsumerGroup == "" {
		cfg.NATS.ConsumerGroup = "dartvision-worker"
	}
	if cfg.Vision.MaskHighThreshold == 0 {
		cfg.Vision.MaskHighThreshold = 28
	}
	if cfg.Vision.MaskLowThreshold == 0 {
		cfg.Vision.MaskLowThreshold = 12
	}
	if cfg.Vision.MinShaftPixels == 0 {
		cfg.Vision.MinShaftPixels = 12
	}
	if cfg.Vision.MinElongation == 0 {
		cfg.Vision.MinElongation = 1.8
	}
	if cfg.Vision.ResidualScale == 0 {
		cfg.Vision.ResidualScale = 0.05
	}
	if cfg.Vision.WorkerCount == 0 {
		cfg.Vision.WorkerCount = 6
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DV_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("DV_API_KEY"); v != "" {
		cfg.Server.APIKey = v
	}
	if v := os.Getenv("DV_DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("DV_DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		}
	}
	if v := os.Getenv("DV_DB_NAME"); v != "" {
		cfg.Database.Name = v
	}
	if v := os.Getenv("DV_DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("DV_DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("DV_NATS_URL"); v != "" {
		cfg.NATS.URL = v
	}
	if v := os.Getenv("DV_MINIO_ENDPOINT"); v != "" {
		cfg.MinIO.Endpoint = v
	}
	if v := os.Getenv("DV_MINIO_ACCESS_KEY"); v != "" {
		cfg.MinIO.AccessKey = v
	}
	if v := os.Getenv("DV_MINIO_SECRET_KEY"); v != "" {
		cfg.MinIO.SecretKey = v
	}
	if v := os.Getenv("DV_MINIO_BUCKET"); v != "" {
		cfg.MinIO.Bucket = v
	}
	if v := os.Getenv("DV_CALIBRATION_PATH"); v != "" {
		cfg.Vision.CalibrationPath = v
	}
	if v := os.Getenv("DV_VISION_WORKER_COUNT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Vision.WorkerCount = n
		}
	}
}
