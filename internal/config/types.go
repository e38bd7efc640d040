package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the application configuration
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	Logger        LoggerConfig        `yaml:"logger"`
	Elasticsearch ElasticsearchConfig `yaml:"elasticsearch"`
	Detection     DetectionConfig     `yaml:"detection"`
	Alert         AlertConfig         `yaml:"alert"`
	Health        HealthConfig        `yaml:"health"`
	Ingest        IngestConfig        `yaml:"ingest"`
}

type ServerConfig struct {
	HTTPPort int    `yaml:"http_port"`
	Host     string `yaml:"host"`
}

type DatabaseConfig struct {
	Driver   string `yaml:"driver"` // sqlite, mysql, postgres
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

type LoggerConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Output string `yaml:"output"` // stdout, stderr, or file path
}

type ElasticsearchConfig struct {
	Enabled     bool     `yaml:"enabled"`
	Addresses   []string `yaml:"addresses"`
	Username    string   `yaml:"username"`
	Password    string   `yaml:"password"`
	IndexPrefix string   `yaml:"index_prefix"`
}

// DetectorParams tunes the Page-Hinkley detector for one parameter.
// Higher threshold = less sensitive; lower alpha = slower mean adaptation.
type DetectorParams struct {
	Threshold  float64 `yaml:"threshold"`
	Alpha      float64 `yaml:"alpha"`
	MinSamples int     `yaml:"min_samples"`
}

type DetectionConfig struct {
	// WindowSize is the number of historical values replayed through a
	// fresh detector alongside each new value.
	WindowSize int                       `yaml:"window_size"`
	Parameters map[string]DetectorParams `yaml:"parameters"`
	Default    DetectorParams            `yaml:"default"`
}

type AlertConfig struct {
	Enabled                 bool   `yaml:"enabled"`
	DefaultLanguage         string `yaml:"default_language"` // language used for Alert.Message
	DefaultCooldownMinutes  int    `yaml:"default_cooldown_minutes"`
	DefaultMaxAlertsPerHour int    `yaml:"default_max_alerts_per_hour"`
	StaleAfterMinutes       int    `yaml:"stale_after_minutes"`      // no data for this long => sensor_offline alert
	StaleResuppressMinutes  int    `yaml:"stale_resuppress_minutes"` // minimum gap between stale alerts per pond
	StaleSweepMinutes       int    `yaml:"stale_sweep_minutes"`      // sweep interval
}

// ThresholdBand holds the scoring bands for one parameter. Parameters with a
// nil OptimalMin are scored as lower-is-better (toxicity style): only the
// upper bounds apply.
type ThresholdBand struct {
	Unit         string   `yaml:"unit"`
	OptimalMin   *float64 `yaml:"optimal_min,omitempty"`
	OptimalMax   float64  `yaml:"optimal_max"`
	WarningLow   *float64 `yaml:"warning_low,omitempty"`
	WarningHigh  float64  `yaml:"warning_high"`
	CriticalLow  *float64 `yaml:"critical_low,omitempty"`
	CriticalHigh float64  `yaml:"critical_high"`
}

type HealthConfig struct {
	LookbackDays      int                      `yaml:"lookback_days"`
	MinReadings       int                      `yaml:"min_readings"` // below this the assessment is insufficient-data
	MinValuesPerParam int                      `yaml:"min_values_per_param"`
	Weights           map[string]float64       `yaml:"weights"`
	Thresholds        map[string]ThresholdBand `yaml:"thresholds"`
}

type IngestConfig struct {
	LaneBuffer         int `yaml:"lane_buffer"`          // queued readings per pond lane
	EvalTimeoutSeconds int `yaml:"eval_timeout_seconds"` // soft bound on one evaluation
}

// LoadFromFile loads configuration from a YAML file
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	setDefaults(&config)

	return &config, nil
}

// SaveToFile writes the configuration back to a YAML file
func SaveToFile(path string, config *Config) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Load builds a configuration from environment variables
func Load() *Config {
	config := &Config{
		Server: ServerConfig{
			HTTPPort: getEnvInt("HTTP_PORT", 8080),
			Host:     getEnv("HOST", "0.0.0.0"),
		},
		Database: DatabaseConfig{
			Driver:   getEnv("DB_DRIVER", "sqlite"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "aquawatch.db"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Logger: LoggerConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Output: getEnv("LOG_OUTPUT", "stdout"),
		},
		Elasticsearch: ElasticsearchConfig{
			Enabled:     getEnvBool("ES_ENABLED", false),
			Addresses:   getEnvSlice("ES_ADDRESSES", []string{"http://localhost:9200"}),
			Username:    getEnv("ES_USERNAME", ""),
			Password:    getEnv("ES_PASSWORD", ""),
			IndexPrefix: getEnv("ES_INDEX_PREFIX", "aquawatch-evaluations"),
		},
		Alert: AlertConfig{
			Enabled:         getEnvBool("ALERT_ENABLED", true),
			DefaultLanguage: getEnv("ALERT_DEFAULT_LANGUAGE", "en"),
		},
	}

	setDefaults(config)

	return config
}

// setDefaults fills in zero-valued fields, including the per-parameter
// detector tuning and health scoring tables.
func setDefaults(config *Config) {
	if config.Server.HTTPPort == 0 {
		config.Server.HTTPPort = 8080
	}
	if config.Server.Host == "" {
		config.Server.Host = "0.0.0.0"
	}
	if config.Database.Driver == "" {
		config.Database.Driver = "sqlite"
	}
	if config.Database.DBName == "" {
		config.Database.DBName = "aquawatch.db"
	}
	if config.Logger.Level == "" {
		config.Logger.Level = "info"
	}
	if config.Logger.Output == "" {
		config.Logger.Output = "stdout"
	}
	if config.Elasticsearch.IndexPrefix == "" {
		config.Elasticsearch.IndexPrefix = "aquawatch-evaluations"
	}

	if config.Detection.WindowSize == 0 {
		config.Detection.WindowSize = 10
	}
	if config.Detection.Default == (DetectorParams{}) {
		config.Detection.Default = DetectorParams{Threshold: 2.5, Alpha: 0.1, MinSamples: 3}
	}
	if config.Detection.Parameters == nil {
		config.Detection.Parameters = defaultDetectorParams()
	} else {
		for name, params := range defaultDetectorParams() {
			if _, ok := config.Detection.Parameters[name]; !ok {
				config.Detection.Parameters[name] = params
			}
		}
	}

	if config.Alert.DefaultLanguage == "" {
		config.Alert.DefaultLanguage = "en"
	}
	if config.Alert.DefaultCooldownMinutes == 0 {
		config.Alert.DefaultCooldownMinutes = 30
	}
	if config.Alert.DefaultMaxAlertsPerHour == 0 {
		config.Alert.DefaultMaxAlertsPerHour = 4
	}
	if config.Alert.StaleAfterMinutes == 0 {
		config.Alert.StaleAfterMinutes = 60
	}
	if config.Alert.StaleResuppressMinutes == 0 {
		config.Alert.StaleResuppressMinutes = 120
	}
	if config.Alert.StaleSweepMinutes == 0 {
		config.Alert.StaleSweepMinutes = 15
	}

	if config.Health.LookbackDays == 0 {
		config.Health.LookbackDays = 7
	}
	if config.Health.MinReadings == 0 {
		config.Health.MinReadings = 10
	}
	if config.Health.MinValuesPerParam == 0 {
		config.Health.MinValuesPerParam = 3
	}
	if config.Health.Weights == nil {
		config.Health.Weights = defaultHealthWeights()
	}
	if config.Health.Thresholds == nil {
		config.Health.Thresholds = defaultThresholds()
	}

	if config.Ingest.LaneBuffer == 0 {
		config.Ingest.LaneBuffer = 64
	}
	if config.Ingest.EvalTimeoutSeconds == 0 {
		config.Ingest.EvalTimeoutSeconds = 30
	}
}

// defaultDetectorParams is the sensitive tuning profile. Fast-moving
// parameters (temperature, turbidity) adapt quickly; slow chemistry
// (ammonia, nitrate) gets a noise-tolerant configuration.
func defaultDetectorParams() map[string]DetectorParams {
	return map[string]DetectorParams{
		"temperature":      {Threshold: 3.0, Alpha: 0.1, MinSamples: 3},
		"ph":               {Threshold: 2.0, Alpha: 0.1, MinSamples: 3},
		"dissolved_oxygen": {Threshold: 2.5, Alpha: 0.1, MinSamples: 3},
		"ammonia":          {Threshold: 1.5, Alpha: 0.05, MinSamples: 5},
		"nitrate":          {Threshold: 2.0, Alpha: 0.05, MinSamples: 5},
		"turbidity":        {Threshold: 3.0, Alpha: 0.1, MinSamples: 3},
		"salinity":         {Threshold: 2.5, Alpha: 0.1, MinSamples: 3},
	}
}

func defaultHealthWeights() map[string]float64 {
	return map[string]float64{
		"temperature":      0.25,
		"ph":               0.20,
		"dissolved_oxygen": 0.30,
		"turbidity":        0.10,
		"ammonia":          0.10,
		"nitrate":          0.05,
	}
}

func f64(v float64) *float64 { return &v }

func defaultThresholds() map[string]ThresholdBand {
	return map[string]ThresholdBand{
		"temperature": {
			Unit:       "°C",
			OptimalMin: f64(20.0), OptimalMax: 28.0,
			WarningLow: f64(18.0), WarningHigh: 30.0,
			CriticalLow: f64(15.0), CriticalHigh: 35.0,
		},
		"ph": {
			Unit:       "pH",
			OptimalMin: f64(6.5), OptimalMax: 8.5,
			WarningLow: f64(6.0), WarningHigh: 9.0,
			CriticalLow: f64(5.5), CriticalHigh: 9.5,
		},
		"dissolved_oxygen": {
			Unit:       "mg/L",
			OptimalMin: f64(5.0), OptimalMax: 12.0,
			WarningLow: f64(3.0), WarningHigh: 15.0,
			CriticalLow: f64(2.0), CriticalHigh: 20.0,
		},
		// Lower-is-better parameters carry only upper bounds.
		"turbidity": {
			Unit:       "NTU",
			OptimalMax: 10.0, WarningHigh: 25.0, CriticalHigh: 50.0,
		},
		"ammonia": {
			Unit:       "mg/L",
			OptimalMax: 0.25, WarningHigh: 0.5, CriticalHigh: 1.0,
		},
		"nitrate": {
			Unit:       "mg/L",
			OptimalMax: 20.0, WarningHigh: 40.0, CriticalHigh: 80.0,
		},
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		var intVal int
		if _, err := fmt.Sscanf(val, "%d", &intVal); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if val == "true" || val == "1" || val == "yes" {
			return true
		}
		return false
	}
	return defaultVal
}

func getEnvSlice(key string, defaultVal []string) []string {
	if val := os.Getenv(key); val != "" {
		var result []string
		for _, part := range strings.Split(val, ",") {
			trimmed := strings.TrimSpace(part)
			if trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return defaultVal
}

// Validate checks the configuration for invalid values
func (c *Config) Validate() error {
	if c.Server.HTTPPort < 1 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.Server.HTTPPort)
	}
	if c.Server.Host == "" {
		return fmt.Errorf("server host cannot be empty")
	}

	validDrivers := map[string]bool{
		"sqlite":   true,
		"mysql":    true,
		"postgres": true,
	}
	if !validDrivers[c.Database.Driver] {
		return fmt.Errorf("invalid database driver: %s", c.Database.Driver)
	}
	if c.Database.Driver != "sqlite" {
		if c.Database.Host == "" {
			return fmt.Errorf("database host cannot be empty for %s", c.Database.Driver)
		}
		if c.Database.Port < 1 || c.Database.Port > 65535 {
			return fmt.Errorf("invalid database port: %d", c.Database.Port)
		}
		if c.Database.User == "" {
			return fmt.Errorf("database user cannot be empty for %s", c.Database.Driver)
		}
	}
	if c.Database.DBName == "" {
		return fmt.Errorf("database name cannot be empty")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.Logger.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logger.Level)
	}

	if c.Elasticsearch.Enabled && len(c.Elasticsearch.Addresses) == 0 {
		return fmt.Errorf("elasticsearch addresses cannot be empty when enabled")
	}

	if c.Detection.WindowSize < 2 {
		return fmt.Errorf("detection window size must be at least 2")
	}
	for name, params := range c.Detection.Parameters {
		if params.Alpha <= 0 || params.Alpha > 1 {
			return fmt.Errorf("detector alpha for %s must be in (0,1]", name)
		}
		if params.Threshold <= 0 {
			return fmt.Errorf("detector threshold for %s must be positive", name)
		}
		if params.MinSamples < 1 {
			return fmt.Errorf("detector min_samples for %s must be at least 1", name)
		}
	}

	if c.Alert.DefaultCooldownMinutes < 0 {
		return fmt.Errorf("alert cooldown minutes cannot be negative")
	}
	if c.Alert.DefaultMaxAlertsPerHour < 1 {
		return fmt.Errorf("alert max per hour must be at least 1")
	}

	if c.Health.LookbackDays < 1 {
		return fmt.Errorf("health lookback days must be at least 1")
	}
	if c.Health.MinReadings < 1 {
		return fmt.Errorf("health min readings must be at least 1")
	}
	for name, weight := range c.Health.Weights {
		if weight < 0 {
			return fmt.Errorf("health weight for %s cannot be negative", name)
		}
	}

	return nil
}
