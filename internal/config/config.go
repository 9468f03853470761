package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dkeye/Classroom/internal/domain"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Mode string `mapstructure:"mode"`
	Port int    `mapstructure:"port"`

	APIBaseURL string        `mapstructure:"api_base_url"`
	APITimeout time.Duration `mapstructure:"api_timeout"`
	SignalURL  string        `mapstructure:"signal_url"`
	SessionID  string        `mapstructure:"session_id"`
	UserID     string        `mapstructure:"user_id"`
	UserName   string        `mapstructure:"user_name"`
	UserRole   string        `mapstructure:"user_role"`
	AuthToken  string        `mapstructure:"auth_token"`

	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
	WriteWait  time.Duration `mapstructure:"write_wait"`
	SendBuffer int           `mapstructure:"send_buffer"`

	ChatEchoWindow     time.Duration `mapstructure:"chat_echo_window"`
	ChatPageSize       int           `mapstructure:"chat_page_size"`
	WhiteboardInterval time.Duration `mapstructure:"whiteboard_interval"`
	MediaCallTimeout   time.Duration `mapstructure:"media_call_timeout"`
	SubscriberBuffer   int           `mapstructure:"subscriber_buffer"`
	InboxSize          int           `mapstructure:"inbox_size"`
	RemoteIdle         time.Duration `mapstructure:"remote_idle"`

	ICEServers []domain.ICEServer `mapstructure:"ice_servers"`
}

// User builds the local identity from the user_* keys.
func (c *Config) User() domain.User {
	return domain.User{
		ID:          domain.UserID(c.UserID),
		DisplayName: c.UserName,
		Role:        domain.Role(c.UserRole),
	}
}

func (c *Config) Validate() error {
	var errs []error
	if c.APIBaseURL == "" {
		errs = append(errs, errors.New("api_base_url is required"))
	}
	if c.SignalURL == "" {
		errs = append(errs, errors.New("signal_url is required"))
	}
	if c.SessionID == "" {
		errs = append(errs, errors.New("session_id is required"))
	}
	if err := c.User().Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Load reads config/config.<CONFIG_ENV>.yaml on top of the defaults.
// CLASSROOM_* environment variables override both.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)
	if dir := os.Getenv("CONFIG_DIR"); dir != "" {
		fileName = fmt.Sprintf("%s/config.%s.yaml", strings.TrimRight(dir, "/"), env)
	}

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	setDefaults(v)
	v.SetEnvPrefix("classroom")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("config loaded")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	log.Info().Str("module", "config").Str("mode", cfg.Mode).Int("port", cfg.Port).Str("session", cfg.SessionID).Msg("config ready")
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8090)
	v.SetDefault("api_base_url", "http://localhost:8080/api")
	v.SetDefault("api_timeout", "10s")
	v.SetDefault("signal_url", "ws://localhost:8080/api/ws/signal")
	v.SetDefault("session_id", "")
	v.SetDefault("user_id", "")
	v.SetDefault("user_name", "")
	v.SetDefault("user_role", string(domain.RoleStudent))
	v.SetDefault("auth_token", "")
	v.SetDefault("read_limit", 1<<20)
	v.SetDefault("ping_period", "30s")
	v.SetDefault("write_wait", "5s")
	v.SetDefault("send_buffer", 32)
	v.SetDefault("chat_echo_window", "2s")
	v.SetDefault("chat_page_size", 50)
	v.SetDefault("whiteboard_interval", "100ms")
	v.SetDefault("media_call_timeout", "10s")
	v.SetDefault("subscriber_buffer", 16)
	v.SetDefault("inbox_size", 64)
	v.SetDefault("remote_idle", "3s")
}
