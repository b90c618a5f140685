package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

const envPrefix = "STORYTALK"

type Config struct {
	Server      Server
	Story       Story
	Interaction Interaction
	Snapshot    Snapshot
	Redis       Redis
	Catalog     Catalog
	Audio       Audio
	Realtime    Realtime
	Log         Log
}

type Server struct {
	BaseURL   string
	SocketURL string
	Timeout   time.Duration
}

type Story struct {
	Mode             string
	MaxWordRetries   int
	AudioWaitTimeout time.Duration
}

type Interaction struct {
	DisarmDelay time.Duration
}

type Snapshot struct {
	Backend  string
	Path     string
	MaxBytes int64
}

type Redis struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

type Catalog struct {
	CacheDir string
	MaxAge   time.Duration
}

type Audio struct {
	Player   string
	Recorder string
}

type Realtime struct {
	ReconnectInitial time.Duration
	ReconnectMax     time.Duration
}

type Log struct {
	Level  string
	Format string
}

// Init wires the config file, .env and environment overrides into viper.
// It is safe to call more than once.
func Init() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logrus.WithError(err).Warn("could not load .env file")
	}

	viper.SetConfigName("storytalk")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("$HOME/.storytalk")
	viper.AddConfigPath(".")

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	SetDefaults()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			logrus.WithError(err).Warn("could not read config file")
		}
	}
}

func SetDefaults() {
	home, _ := os.UserHomeDir()
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		cacheDir = os.TempDir()
	}

	viper.SetDefault("server.base_url", "http://localhost:8080")
	viper.SetDefault("server.socket_url", "ws://localhost:8080/ws")
	viper.SetDefault("server.timeout", 30*time.Second)

	viper.SetDefault("story.mode", "sentence")
	viper.SetDefault("story.max_word_retries", 3)
	viper.SetDefault("story.audio_wait_timeout", 30*time.Second)

	viper.SetDefault("interaction.disarm_delay", 2*time.Second)

	viper.SetDefault("snapshot.backend", "file") // or redis
	viper.SetDefault("snapshot.path", filepath.Join(home, ".storytalk", "user_data.json"))
	viper.SetDefault("snapshot.max_bytes", 5*1024*1024)

	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.key_prefix", "storytalk:")

	viper.SetDefault("catalog.cache_dir", filepath.Join(cacheDir, "storytalk"))
	viper.SetDefault("catalog.max_age", 24*time.Hour)

	viper.SetDefault("audio.player", "auto")   // Auto-select beep when a speaker is available
	viper.SetDefault("audio.recorder", "auto") // arecord, then sox

	viper.SetDefault("realtime.reconnect_initial", time.Second)
	viper.SetDefault("realtime.reconnect_max", 30*time.Second)

	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "text")
}

// Load reads the typed configuration out of viper.
func Load() (Config, error) {
	cfg := Config{
		Server: Server{
			BaseURL:   strings.TrimRight(viper.GetString("server.base_url"), "/"),
			SocketURL: viper.GetString("server.socket_url"),
			Timeout:   viper.GetDuration("server.timeout"),
		},
		Story: Story{
			Mode:             viper.GetString("story.mode"),
			MaxWordRetries:   viper.GetInt("story.max_word_retries"),
			AudioWaitTimeout: viper.GetDuration("story.audio_wait_timeout"),
		},
		Interaction: Interaction{
			DisarmDelay: viper.GetDuration("interaction.disarm_delay"),
		},
		Snapshot: Snapshot{
			Backend:  strings.ToLower(viper.GetString("snapshot.backend")),
			Path:     os.ExpandEnv(viper.GetString("snapshot.path")),
			MaxBytes: viper.GetInt64("snapshot.max_bytes"),
		},
		Redis: Redis{
			Addr:      viper.GetString("redis.addr"),
			Password:  viper.GetString("redis.password"),
			DB:        viper.GetInt("redis.db"),
			KeyPrefix: viper.GetString("redis.key_prefix"),
		},
		Catalog: Catalog{
			CacheDir: os.ExpandEnv(viper.GetString("catalog.cache_dir")),
			MaxAge:   viper.GetDuration("catalog.max_age"),
		},
		Audio: Audio{
			Player:   strings.ToLower(viper.GetString("audio.player")),
			Recorder: strings.ToLower(viper.GetString("audio.recorder")),
		},
		Realtime: Realtime{
			ReconnectInitial: viper.GetDuration("realtime.reconnect_initial"),
			ReconnectMax:     viper.GetDuration("realtime.reconnect_max"),
		},
		Log: Log{
			Level:  viper.GetString("log.level"),
			Format: viper.GetString("log.format"),
		},
	}

	if cfg.Server.BaseURL == "" {
		return cfg, fmt.Errorf("server.base_url must be set")
	}
	switch cfg.Snapshot.Backend {
	case "file", "redis":
	default:
		return cfg, fmt.Errorf("unknown snapshot.backend %q", cfg.Snapshot.Backend)
	}
	if cfg.Story.MaxWordRetries < 0 {
		return cfg, fmt.Errorf("story.max_word_retries must not be negative")
	}
	return cfg, nil
}

// SetupLogging applies log.level and log.format to the logrus standard logger.
func SetupLogging(cfg Log) {
	logrus.SetOutput(os.Stderr)

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		logrus.WithField("level", cfg.Level).Warn("unknown log level, using info")
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)

	if strings.EqualFold(cfg.Format, "json") {
		logrus.SetFormatter(&logrus.JSONFormatter{})
		return
	}
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
}
