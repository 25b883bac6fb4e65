package main

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Log     LogConfig
	License LicenseConfig
}

type LicenseConfig struct {
	Key        string        `mapstructure:"key"`
	ApiURL     string        `mapstructure:"api_url"`
	HardwareID string        `mapstructure:"hardware_id"`
	Timeout    time.Duration `mapstructure:"timeout"`
	Freshness  time.Duration `mapstructure:"freshness"`
}

var config Config

func InitConfig() {
	var err error

	_ = godotenv.Load()

	viper.SetConfigName("application")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./cmd/silo-license-agent")
	viper.SetConfigType("yaml")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("license.api_url", "http://localhost:8000")

	_ = viper.BindEnv("license.key", "LICENSE_KEY")

	if err := viper.ReadInConfig(); err != nil {
		panic(err)
	}

	err = viper.Unmarshal(&config)
	if err != nil {
		panic(err)
	}

	initLogger(config.Log.Level)
}
