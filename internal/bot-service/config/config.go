package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/konorlevich/filestore-bot/internal/bot-service/database"
)

const (
	DefaultPort        = "8000"
	DefaultMaxFileSize = 2 << 30
	DefaultDeleteAfter = 10 * time.Minute
	DefaultLinkHost    = "t.me"
)

var ErrMissing = errors.New("required setting is missing")

type Config struct {
	Bot struct {
		Token          string
		Username       string
		StorageChannel int64
		AdminIDs       []int64
		AdminContact   string
		CustomCaption  string
		LinkHost       string
	}
	DB struct {
		Driver string
		DSN    string
	}
	Redis struct {
		Addr     string
		Password string
		Database int
	}
	Port        string
	MaxFileSize int64
	DeleteAfter time.Duration
	LogLevel    log.Level
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	return load(os.Getenv)
}

func load(getenv func(string) string) (*Config, error) {
	var (
		cfg  Config
		err  error
		errs []error
	)

	cfg.Bot.Token = getenv("BOT_TOKEN")
	if cfg.Bot.Token == "" {
		errs = append(errs, fmt.Errorf("%w: BOT_TOKEN", ErrMissing))
	}
	cfg.Bot.Username = strings.TrimPrefix(getenv("BOT_USERNAME"), "@")
	if cfg.Bot.Username == "" {
		errs = append(errs, fmt.Errorf("%w: BOT_USERNAME", ErrMissing))
	}
	if v := getenv("STORAGE_CHANNEL_ID"); v == "" {
		errs = append(errs, fmt.Errorf("%w: STORAGE_CHANNEL_ID", ErrMissing))
	} else if cfg.Bot.StorageChannel, err = strconv.ParseInt(v, 10, 64); err != nil {
		errs = append(errs, fmt.Errorf("STORAGE_CHANNEL_ID: %w", err))
	}
	if cfg.Bot.AdminIDs, err = parseIDs(getenv("ADMIN_IDS")); err != nil {
		errs = append(errs, fmt.Errorf("ADMIN_IDS: %w", err))
	}
	cfg.Bot.AdminContact = getenv("ADMIN_CONTACT")
	cfg.Bot.CustomCaption = getenv("CUSTOM_CAPTION")
	if cfg.Bot.CustomCaption == "" {
		cfg.Bot.CustomCaption = "@" + cfg.Bot.Username
	}
	cfg.Bot.LinkHost = orDefault(getenv("LINK_HOST"), DefaultLinkHost)

	cfg.DB.Driver = orDefault(getenv("DB_DRIVER"), database.DriverSqlite)
	switch cfg.DB.Driver {
	case database.DriverSqlite:
		cfg.DB.DSN = orDefault(getenv("DB_FILE"), database.DefaultFile)
	case database.DriverPostgres:
		cfg.DB.DSN = getenv("DATABASE_URL")
		if cfg.DB.DSN == "" {
			errs = append(errs, fmt.Errorf("%w: DATABASE_URL", ErrMissing))
		}
	default:
		errs = append(errs, fmt.Errorf("DB_DRIVER: %w: %s", database.ErrUnknownDriver, cfg.DB.Driver))
	}

	cfg.Redis.Addr = getenv("REDIS_ADDR")
	cfg.Redis.Password = getenv("REDIS_PASSWORD")
	if v := getenv("REDIS_DB"); v != "" {
		if cfg.Redis.Database, err = strconv.Atoi(v); err != nil {
			errs = append(errs, fmt.Errorf("REDIS_DB: %w", err))
		}
	}

	cfg.Port = orDefault(getenv("PORT"), DefaultPort)

	cfg.MaxFileSize = DefaultMaxFileSize
	if v := getenv("MAX_FILE_SIZE"); v != "" {
		if cfg.MaxFileSize, err = strconv.ParseInt(v, 10, 64); err != nil || cfg.MaxFileSize <= 0 {
			errs = append(errs, fmt.Errorf("MAX_FILE_SIZE: invalid value %q", v))
		}
	}

	cfg.DeleteAfter = DefaultDeleteAfter
	if v := getenv("DELETE_AFTER"); v != "" {
		if cfg.DeleteAfter, err = time.ParseDuration(v); err != nil || cfg.DeleteAfter <= 0 {
			errs = append(errs, fmt.Errorf("DELETE_AFTER: invalid value %q", v))
		}
	}

	cfg.LogLevel = log.InfoLevel
	if v := getenv("LOG_LEVEL"); v != "" {
		if cfg.LogLevel, err = log.ParseLevel(v); err != nil {
			errs = append(errs, fmt.Errorf("LOG_LEVEL: %w", err))
		}
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return &cfg, nil
}

func parseIDs(v string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(v, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
