package config

import (
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Serial   SerialConfig   `mapstructure:"serial"`
	Signal   SignalConfig   `mapstructure:"signal"`
	Session  SessionConfig  `mapstructure:"session"`
	Log      LogConfig      `mapstructure:"log"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type SerialConfig struct {
	Port           string   `mapstructure:"port"`
	BaudRate       int      `mapstructure:"baud_rate"`
	CommandTimeout string   `mapstructure:"command_timeout"`
	MaxRetries     int      `mapstructure:"max_retries"`
	PollInterval   string   `mapstructure:"poll_interval"`
	InitATCommands []string `mapstructure:"init_at_commands"`
}

// SignalConfig holds the RSSI bucket ceilings. Readings above GoodMax (up to 31)
// are Excellent; 99 is always reported as no signal.
type SignalConfig struct {
	PoorMax int `mapstructure:"poor_max"`
	FairMax int `mapstructure:"fair_max"`
	GoodMax int `mapstructure:"good_max"`
}

type SessionConfig struct {
	LogDir string `mapstructure:"log_dir"`
}

var AppConfig Config

func LoadConfig() {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Warning: Config file not found, using defaults. Error: %v", err)
	}

	if err := viper.Unmarshal(&AppConfig); err != nil {
		log.Fatalf("Unable to decode into struct, %v", err)
	}

	if AppConfig.Server.Port == "" {
		AppConfig.Server.Port = ":8080"
	}
	if AppConfig.Serial.Port == "" {
		AppConfig.Serial.Port = "/dev/ttyUSB0"
	}
	if AppConfig.Serial.BaudRate <= 0 {
		AppConfig.Serial.BaudRate = 115200
	}
	if AppConfig.Serial.MaxRetries <= 0 {
		AppConfig.Serial.MaxRetries = 2
	}
	if len(AppConfig.Serial.InitATCommands) == 0 {
		AppConfig.Serial.InitATCommands = []string{"ATE0", "AT+CMEE=1", "AT+CLIP=1"}
	}
	if AppConfig.Signal.PoorMax <= 0 {
		AppConfig.Signal.PoorMax = 9
	}
	if AppConfig.Signal.FairMax <= 0 {
		AppConfig.Signal.FairMax = 14
	}
	if AppConfig.Signal.GoodMax <= 0 {
		AppConfig.Signal.GoodMax = 19
	}
	if AppConfig.Session.LogDir == "" {
		AppConfig.Session.LogDir = "call_logs"
	}

	log.Println("Configuration loaded successfully")
}

// CommandTimeout returns the configured per-command timeout, defaulting to 5s.
func (c SerialConfig) CommandTimeoutDuration() time.Duration {
	if d, err := time.ParseDuration(c.CommandTimeout); err == nil && d > 0 {
		return d
	}
	return 5 * time.Second
}

// PollIntervalDuration returns the in-call AT+CLCC poll interval, defaulting to 2s.
func (c SerialConfig) PollIntervalDuration() time.Duration {
	if d, err := time.ParseDuration(c.PollInterval); err == nil && d >= 500*time.Millisecond {
		return d
	}
	return 2 * time.Second
}
