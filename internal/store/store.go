// Package store persists the download history and the authorized users.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrUserExists = errors.New("user already exists")

// DownloadRecord is one completed chapter download.
type DownloadRecord struct {
	ID         string
	URL        string
	OutputName string
	Timestamp  time.Time
}

type Store interface {
	RecordDownload(ctx context.Context, rec DownloadRecord) error
	ListDownloads(ctx context.Context) ([]DownloadRecord, error)
	// ListUsers maps username to stored secret.
	ListUsers(ctx context.Context) (map[string]string, error)
	// AddUser fails with ErrUserExists on a duplicate name. Callers are
	// responsible for deciding who may add users.
	AddUser(ctx context.Context, username, secret string) error
	Close() error
}

type Config struct {
	Driver        string
	SQLitePath    string
	MongoURI      string
	MongoDatabase string
}

// Open connects to the configured backend ("sqlite" by default, or "mongo").
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "sqlite":
		s, err := OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "mongo", "mongodb":
		m, err := OpenMongo(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, err
		}
		return m, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q (available: sqlite, mongo)", cfg.Driver)
	}
}
