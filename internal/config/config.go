package config

import (
	"fmt"
	"log"
	"sync"

	"groupgate/entity"

	"github.com/ilyakaznacheev/cleanenv"
)

type Listen struct {
	BindIp string `yaml:"bind_ip" env-default:"0.0.0.0"`
	Port   string `yaml:"port" env-default:"8080"`
}

type TelegramConfig struct {
	BotToken      string `yaml:"bot_token" env:"TELEGRAM_BOT_TOKEN" env-default:""`
	WebhookSecret string `yaml:"webhook_secret" env:"TELEGRAM_WEBHOOK_SECRET" env-default:""`
	AdminChatId   int64  `yaml:"admin_chat_id" env-default:"0"`
}

type InviteConfig struct {
	TTLHours    int   `yaml:"ttl_hours" env-default:"24"`
	MemberLimit int64 `yaml:"member_limit" env-default:"1"`
}

// ReconcilerConfig tunes the fallback matching heuristic. The recency
// window is an approximation knob, not a correctness guarantee.
type ReconcilerConfig struct {
	RecentWindowMinutes int `yaml:"recent_window_minutes" env-default:"60"`
}

type MySqlConfig struct {
	HostName string `yaml:"host" env-default:"localhost"`
	Port     string `yaml:"port" env-default:"3306"`
	UserName string `yaml:"user" env-default:""`
	Password string `yaml:"password" env-default:""`
	Database string `yaml:"database" env-default:"groupgate"`
}

type MongoConfig struct {
	Enabled  bool   `yaml:"enabled" env-default:"false"`
	Host     string `yaml:"host" env-default:"localhost"`
	Port     string `yaml:"port" env-default:"27017"`
	User     string `yaml:"user" env-default:""`
	Password string `yaml:"password" env-default:""`
	Database string `yaml:"database" env-default:"groupgate"`
}

type Config struct {
	Env        string           `yaml:"env" env-default:"local"`
	Listen     Listen           `yaml:"listen"`
	Telegram   TelegramConfig   `yaml:"telegram"`
	Invite     InviteConfig     `yaml:"invite"`
	Reconciler ReconcilerConfig `yaml:"reconciler"`
	Groups     []entity.Group   `yaml:"groups"`
	MySql      MySqlConfig      `yaml:"mysql"`
	Mongo      MongoConfig      `yaml:"mongo"`
	AdminCode  string           `yaml:"admin_code" env:"GROUPGATE_ADMIN_CODE" env-default:""`
	AdminName  string           `yaml:"admin_name" env-default:"root"`
}

var instance *Config
var once sync.Once

func MustLoad(path string) *Config {
	var err error
	once.Do(func() {
		instance = &Config{}
		if err = cleanenv.ReadConfig(path, instance); err != nil {
			desc, _ := cleanenv.GetDescription(instance, nil)
			err = fmt.Errorf("config: %s; %s", err, desc)
			instance = nil
			log.Fatal(err)
		}
	})
	return instance
}
