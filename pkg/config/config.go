package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/altura-labs/secgate/pkg/ratelimit"
	"github.com/spf13/viper"
)

type Config struct {
	Environment string                      `mapstructure:"environment"`
	Server      ServerConfig                `mapstructure:"server"`
	Redis       RedisConfig                 `mapstructure:"redis"`
	Security    SecurityConfig              `mapstructure:"security"`
	RateLimits  map[string]ratelimit.Config `mapstructure:"rate_limits"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type SecurityConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

var globalConfig Config

func Load(configPath string) error {
	if err := loadConfigFile(configPath, "config", &globalConfig); err != nil {
		return fmt.Errorf("could not load main config file: %v", err)
	}

	setDefaultValues()

	return nil
}

func loadConfigFile(configPath, fileName string, out interface{}) error {
	viper.SetConfigName(fileName)
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configPath)
	viper.AddConfigPath("./config")
	viper.AddConfigPath(".")

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return fmt.Errorf("error reading config file %s.yaml: %w", fileName, err)
		}
		// Missing file is fine, environment variables still apply.
	}

	if err := viper.Unmarshal(out); err != nil {
		return fmt.Errorf("failed to unmarshal %s config: %w", fileName, err)
	}

	return nil
}

func setDefaultValues() {
	if globalConfig.Environment == "" {
		globalConfig.Environment = "development"
	}
	if globalConfig.Server.Port == 0 {
		globalConfig.Server.Port = 8085
	}
	if globalConfig.Redis.Port == 0 {
		globalConfig.Redis.Port = 6379
	}
	if len(globalConfig.RateLimits) == 0 {
		globalConfig.RateLimits = ratelimit.DefaultLimits()
	}
}

func GetConfig() *Config {
	return &globalConfig
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
