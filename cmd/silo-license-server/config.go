package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/EternisAI/silo-license/internal/api/http"
	"github.com/EternisAI/silo-license/internal/auth"
	"github.com/EternisAI/silo-license/internal/db"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	STORE_DRIVER_MEMORY   = "memory"
	STORE_DRIVER_SQLITE   = "sqlite"
	STORE_DRIVER_POSTGRES = "postgres"
)

type Config struct {
	Log     LogConfig
	Http    http.Config
	Jwt     auth.JWTConfig
	License LicenseConfig
	Store   StoreConfig
	Db      db.Config
}

type LicenseConfig struct {
	StrictHardwareBinding bool `mapstructure:"strict_hardware_binding"`
}

type StoreConfig struct {
	Driver     string `mapstructure:"driver"`
	SqlitePath string `mapstructure:"sqlite_path"`
}

var config Config

func InitConfig() {
	var err error

	_ = godotenv.Load()

	viper.SetConfigName("application")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./cmd/silo-license-server")
	viper.SetConfigType("yaml")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("http.port", 8000)
	viper.SetDefault("store.driver", STORE_DRIVER_MEMORY)
	viper.SetDefault("store.sqlite_path", "licenses.db")
	viper.SetDefault("db.schema", "public")

	_ = viper.BindEnv("jwt.secret", "JWT_SECRET")
	_ = viper.BindEnv("http.admin_api_key", "ADMIN_API_KEY")
	_ = viper.BindEnv("db.url", "DATABASE_URL")

	if err := viper.ReadInConfig(); err != nil {
		panic(err)
	}

	err = viper.Unmarshal(&config)
	if err != nil {
		panic(err)
	}

	initLogger(config.Log.Level)

	if strings.ToUpper(config.Log.Level) == LOG_LEVEL_DEBUG {
		redacted := config
		redacted.Jwt.Secret = redact(redacted.Jwt.Secret)
		redacted.Http.AdminAPIKey = redact(redacted.Http.AdminAPIKey)
		redacted.Db.Url = redact(redacted.Db.Url)
		configJSON, err := json.MarshalIndent(redacted, "", "  ")
		if err == nil {
			fmt.Println("Config loaded:")
			fmt.Println(string(configJSON))
		}
	}
}

func redact(s string) string {
	if s == "" {
		return ""
	}
	return "***"
}
