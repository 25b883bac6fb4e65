package http

type Config struct {
	Port              uint    `mapstructure:"port"`
	AdminAPIKey       string  `mapstructure:"admin_api_key"`
	ValidateRateLimit float64 `mapstructure:"validate_rate_limit"`
	ValidateRateBurst int     `mapstructure:"validate_rate_burst"`
}
