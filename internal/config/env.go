package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

const (
	EnvTelegramToken = "MANGAPDF_TELEGRAM_TOKEN"
	EnvLogChannelID  = "MANGAPDF_LOG_CHANNEL_ID"
	EnvOwnerID       = "MANGAPDF_OWNER_ID"
	EnvStoreDriver   = "MANGAPDF_STORE_DRIVER"
	EnvSQLitePath    = "MANGAPDF_SQLITE_PATH"
	EnvMongoURI      = "MANGAPDF_MONGO_URI"
	EnvMongoDB       = "MANGAPDF_MONGO_DB"
)

// loadEnvFile loads path (default ".env") into the process environment
// without overriding variables that are already set. A missing file is fine.
func loadEnvFile(path string) error {
	if path == "" {
		path = ".env"
	}

	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}

	return nil
}

func applyEnv(c *Config) {
	set := func(dst *string, key string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}

	set(&c.Telegram.BotToken, EnvTelegramToken)
	set(&c.Telegram.LogChannelID, EnvLogChannelID)
	set(&c.Telegram.OwnerID, EnvOwnerID)
	set(&c.Store.Driver, EnvStoreDriver)
	set(&c.Store.SQLitePath, EnvSQLitePath)
	set(&c.Store.MongoURI, EnvMongoURI)
	set(&c.Store.MongoDatabase, EnvMongoDB)
}
