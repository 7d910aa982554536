package store

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	ModeMemory   = "memory"
	ModeSQLite   = "sqlite"
	ModePostgres = "postgres"
	ModeRedis    = "redis"
)

type Options struct {
	Mode          string
	SQLitePath    string
	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RoomTTL       time.Duration
}

// NormalizeMode maps user-facing aliases onto a Mode constant.
func NormalizeMode(raw string) string {
	raw = strings.ToLower(strings.TrimSpace(raw))
	switch raw {
	case "", ModeMemory, "mem":
		return ModeMemory
	case ModeSQLite, "local", "sqlite3":
		return ModeSQLite
	case ModePostgres, "postgresql", "pg", "db":
		return ModePostgres
	case ModeRedis:
		return ModeRedis
	default:
		return raw
	}
}

// New opens the store selected by opts.Mode and returns the resolved mode.
func New(opts Options, log logrus.FieldLogger) (Store, string, error) {
	mode := NormalizeMode(opts.Mode)
	switch mode {
	case ModeMemory:
		return NewMemoryStore(), mode, nil
	case ModeSQLite:
		path := opts.SQLitePath
		if strings.TrimSpace(path) == "" {
			path = filepath.Join("data", defaultLocalDBName)
		}
		st, err := NewSQLiteStore(path)
		if err != nil {
			return nil, mode, err
		}
		return st, mode, nil
	case ModePostgres:
		st, err := NewPostgresStore(opts.DatabaseURL, log)
		if err != nil {
			return nil, mode, err
		}
		return st, mode, nil
	case ModeRedis:
		st, err := NewRedisStore(RedisOptions{
			Addr:     opts.RedisAddr,
			Password: opts.RedisPassword,
			DB:       opts.RedisDB,
			RoomTTL:  opts.RoomTTL,
		}, log)
		if err != nil {
			return nil, mode, err
		}
		return st, mode, nil
	default:
		return nil, mode, fmt.Errorf("invalid STORE_MODE %q (supported: %s, %s, %s, %s)",
			mode, ModeMemory, ModeSQLite, ModePostgres, ModeRedis)
	}
}
