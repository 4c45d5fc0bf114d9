package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Exchange   ExchangeConfig
	Trading    TradingConfig
	Validation ValidationConfig
	Server     ServerConfig
	Dividend   DividendConfig
	Runtime    RuntimeConfig
}

type ExchangeConfig struct {
	AccountType string
	BaseUrl     string
	ApiKey      string
	Username    string
	Password    string
	Currency    string
	Expiry      string
}

type TradingConfig struct {
	TickersFile      string
	MaxOpenPositions int
	MaxAlertAge      time.Duration
	MinPositionSize  float64
}

type ValidationConfig struct {
	CheckAlertAge     bool
	CheckDuplicate    bool
	CheckOpenPosition bool
	CheckMaxPositions bool
	CheckDividend     bool
}

type ServerConfig struct {
	Addr         string
	JWTSecret    string
	WebhookToken string
	UsersFile    string
	SessionTTL   time.Duration
}

type DividendConfig struct {
	Enabled bool
	Cron    string
	BaseUrl string
}

type RuntimeConfig struct {
	Log LogConfig
}

type LogConfig struct {
	Level      string
	Format     string
	File       string
	MaxSize    int
	MaxBackups int
	MaxAge     int
	Compress   bool
}

const (
	demoBaseURL = "https://demo-api.ig.com/gateway/deal"
	liveBaseURL = "https://api.ig.com/gateway/deal"
)

func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("ALERTBOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath("configs")
		v.SetConfigName("config")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("Не удалось прочитать конфигурацию: %w", err)
		}
	}

	cfg := &Config{}

	cfg.Exchange = ExchangeConfig{
		AccountType: strings.ToUpper(v.GetString("exchange.account_type")),
		BaseUrl:     v.GetString("exchange.base_url"),
		ApiKey:      envSub(v, "exchange.api_key"),
		Username:    envSub(v, "exchange.username"),
		Password:    envSub(v, "exchange.password"),
		Currency:    v.GetString("exchange.currency"),
		Expiry:      v.GetString("exchange.expiry"),
	}
	if cfg.Exchange.BaseUrl == "" {
		cfg.Exchange.BaseUrl = liveBaseURL
		if cfg.Exchange.AccountType != "LIVE" {
			cfg.Exchange.BaseUrl = demoBaseURL
		}
	}

	cfg.Trading = TradingConfig{
		TickersFile:      v.GetString("trading.tickers_file"),
		MaxOpenPositions: v.GetInt("trading.max_open_positions"),
		MaxAlertAge:      v.GetDuration("trading.max_alert_age"),
		MinPositionSize:  v.GetFloat64("trading.min_position_size"),
	}

	cfg.Validation = ValidationConfig{
		CheckAlertAge:     v.GetBool("validation.check_alert_age"),
		CheckDuplicate:    v.GetBool("validation.check_duplicate"),
		CheckOpenPosition: v.GetBool("validation.check_open_position"),
		CheckMaxPositions: v.GetBool("validation.check_max_positions"),
		CheckDividend:     v.GetBool("validation.check_dividend"),
	}

	cfg.Server = ServerConfig{
		Addr:         v.GetString("server.addr"),
		JWTSecret:    envSub(v, "server.jwt_secret"),
		WebhookToken: envSub(v, "server.webhook_token"),
		UsersFile:    v.GetString("server.users_file"),
		SessionTTL:   v.GetDuration("server.session_ttl"),
	}

	cfg.Dividend = DividendConfig{
		Enabled: v.GetBool("dividend.enabled"),
		Cron:    v.GetString("dividend.cron"),
		BaseUrl: v.GetString("dividend.base_url"),
	}

	cfg.Runtime = RuntimeConfig{
		Log: LogConfig{
			Level:      v.GetString("runtime.log.level"),
			Format:     v.GetString("runtime.log.format"),
			File:       v.GetString("runtime.log.file"),
			MaxSize:    v.GetInt("runtime.log.max_size"),
			MaxBackups: v.GetInt("runtime.log.max_backups"),
			MaxAge:     v.GetInt("runtime.log.max_age"),
			Compress:   v.GetBool("runtime.log.compress"),
		},
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("exchange.account_type", "DEMO")
	v.SetDefault("exchange.currency", "GBP")
	v.SetDefault("exchange.expiry", "DFB")

	v.SetDefault("trading.tickers_file", "ticker_data.csv")
	v.SetDefault("trading.max_open_positions", 10)
	v.SetDefault("trading.max_alert_age", "5s")
	v.SetDefault("trading.min_position_size", 1.0)

	v.SetDefault("validation.check_alert_age", true)
	v.SetDefault("validation.check_duplicate", true)
	v.SetDefault("validation.check_open_position", true)
	v.SetDefault("validation.check_max_positions", true)
	v.SetDefault("validation.check_dividend", true)

	v.SetDefault("server.addr", ":5000")
	v.SetDefault("server.users_file", "users.yaml")
	v.SetDefault("server.session_ttl", "12h")

	v.SetDefault("dividend.enabled", false)
	v.SetDefault("dividend.cron", "0 0 6 * * 1-5")
	v.SetDefault("dividend.base_url", "https://query2.finance.yahoo.com")

	v.SetDefault("runtime.log.level", "info")
	v.SetDefault("runtime.log.format", "text")
	v.SetDefault("runtime.log.file", "logs/trading_bot.log")
	v.SetDefault("runtime.log.max_size", 50)
	v.SetDefault("runtime.log.max_backups", 30)
	v.SetDefault("runtime.log.max_age", 30)
}

func (c *Config) Validate() error {
	if c.Exchange.ApiKey == "" {
		return fmt.Errorf("Не задан exchange.api_key")
	}
	if c.Exchange.Username == "" || c.Exchange.Password == "" {
		return fmt.Errorf("Не заданы exchange.username / exchange.password")
	}
	if c.Exchange.AccountType != "DEMO" && c.Exchange.AccountType != "LIVE" {
		return fmt.Errorf("Некорректный exchange.account_type: %s", c.Exchange.AccountType)
	}
	if c.Trading.TickersFile == "" {
		return fmt.Errorf("Не задан trading.tickers_file")
	}
	if c.Trading.MaxOpenPositions <= 0 {
		return fmt.Errorf("trading.max_open_positions должен быть положительным")
	}
	if c.Trading.MaxAlertAge <= 0 {
		return fmt.Errorf("trading.max_alert_age должен быть положительным")
	}
	if c.Trading.MinPositionSize <= 0 {
		return fmt.Errorf("trading.min_position_size должен быть положительным")
	}
	if c.Server.JWTSecret == "" {
		return fmt.Errorf("Не задан server.jwt_secret")
	}
	return nil
}

func envSub(v *viper.Viper, key string) string {
	val := v.GetString(key)
	if val == "" {
		return ""
	}

	re := regexp.MustCompile(`\$\{(\w+)\}`)
	return re.ReplaceAllStringFunc(val, func(match string) string {
		envKey := strings.TrimSuffix(strings.TrimPrefix(match, "${"), "}")
		return os.Getenv(envKey)
	})
}
