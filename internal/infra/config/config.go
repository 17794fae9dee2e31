package config

import (
	"log"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// AppConfig описывает конфигурацию сервиса.
type AppConfig struct {
	AppEnv      string `envconfig:"APP_ENV" default:"dev"`
	Port        int    `envconfig:"PORT" default:"8080"`
	MetricsAddr string `envconfig:"METRICS_ADDR" default:":9090"`

	GitHub struct {
		// Token может отсутствовать: ошибка конфигурации отдаётся на каждый запрос.
		Token   string        `envconfig:"GITHUB_TOKEN"`
		Owner   string        `envconfig:"GITHUB_OWNER" default:"PawFighters"`
		APIURL  string        `envconfig:"GITHUB_API_URL"`
		Timeout time.Duration `envconfig:"GITHUB_TIMEOUT" default:"15s"`
	} `envconfig:""`

	RedisAddr string `envconfig:"REDIS_ADDR"`

	Dedup struct {
		TTL time.Duration `envconfig:"DEDUP_TTL" default:"0s"`
	} `envconfig:""`

	Telegram struct {
		Token        string `envconfig:"TG_BOT_TOKEN"`
		NotifyChatID int64  `envconfig:"TG_NOTIFY_CHAT_ID"`
	} `envconfig:""`
}

// DedupEnabled сообщает, включена ли защита от повторных отправок.
func (c AppConfig) DedupEnabled() bool {
	return c.RedisAddr != "" && c.Dedup.TTL > 0
}

// NotifyEnabled сообщает, настроены ли уведомления в Telegram.
func (c AppConfig) NotifyEnabled() bool {
	return c.Telegram.Token != "" && c.Telegram.NotifyChatID != 0
}

// Process читает конфиг из окружения.
func Process() (AppConfig, error) {
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

// Load загружает конфиг из окружения.
func Load() AppConfig {
	cfg, err := Process()
	if err != nil {
		log.Fatalf("не удалось загрузить конфиг: %v", err)
	}
	return cfg
}
