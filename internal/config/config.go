package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config holds all application settings. Values come from app.yaml and are
// overridden by GEOMEDIA_* environment variables.
type Config struct {
	ServerAddress string         `mapstructure:"server_address" validate:"required"`
	Log           LogConfig      `mapstructure:"log"`
	Geocoder      GeocoderConfig `mapstructure:"geocoder"`
	Cache         CacheConfig    `mapstructure:"cache"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" validate:"omitempty,oneof=trace debug info warn error fatal panic disabled"`
	Pretty bool   `mapstructure:"pretty"`
}

type GeocoderConfig struct {
	BaseURL   string        `mapstructure:"base_url" validate:"required,url"`
	APIKey    string        `mapstructure:"api_key"`
	Timeout   time.Duration `mapstructure:"timeout" validate:"gt=0"`
	Zoom      int           `mapstructure:"zoom" validate:"min=0,max=18"`
	Language  string        `mapstructure:"language" validate:"required"`
	UserAgent string        `mapstructure:"user_agent" validate:"required"`
}

type CacheConfig struct {
	Backend  string   `mapstructure:"backend" validate:"oneof=postgres s3 none"`
	DBSource string   `mapstructure:"db_source" validate:"required_if=Backend postgres"`
	S3       S3Config `mapstructure:"s3"`
}

type S3Config struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	Prefix    string `mapstructure:"prefix"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

// DBSource is the Postgres connection string of the location cache.
func (c Config) DBSource() string {
	return c.Cache.DBSource
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server_address", "0.0.0.0:8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
	v.SetDefault("geocoder.base_url", "https://nominatim.openstreetmap.org/reverse")
	v.SetDefault("geocoder.api_key", "")
	v.SetDefault("geocoder.timeout", 5*time.Second)
	v.SetDefault("geocoder.zoom", 18)
	v.SetDefault("geocoder.language", "en-us")
	v.SetDefault("geocoder.user_agent", "geomedia-api/1.0")
	v.SetDefault("cache.backend", "postgres")
	v.SetDefault("cache.db_source", "")
	v.SetDefault("cache.s3.endpoint", "")
	v.SetDefault("cache.s3.access_key", "")
	v.SetDefault("cache.s3.secret_key", "")
	v.SetDefault("cache.s3.bucket", "geomedia-location-cache")
	v.SetDefault("cache.s3.prefix", "")
	v.SetDefault("cache.s3.use_ssl", false)
}

// LoadConfig reads app.yaml from path. A missing file is not an error;
// defaults and environment variables still apply.
func LoadConfig(path string) (Config, error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("app")
	v.SetConfigType("yaml")

	v.SetEnvPrefix("GEOMEDIA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("config: failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: failed to decode config: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("config: invalid config: %w", err)
	}

	return cfg, nil
}
