// Package sqlite implements the SQLite persistence driver using GORM.
package sqlite

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/MahdiBaghbani/fileshare-go/internal/components/identity"
	"github.com/MahdiBaghbani/fileshare-go/internal/components/shares"
	"github.com/MahdiBaghbani/fileshare-go/internal/platform/logutil"
	"github.com/MahdiBaghbani/fileshare-go/internal/platform/store"
)

// DBFile is the database file name inside the data directory.
const DBFile = "fileshare.db"

func init() {
	store.Register("sqlite", func(cfg *store.Config) (store.Driver, error) {
		return New(cfg)
	})
}

// Driver implements store.Driver on a single SQLite file.
type Driver struct {
	dataDir string
	log     *slog.Logger
	db      *gorm.DB
}

// New creates a driver. The database is opened by Init.
func New(cfg *store.Config) (*Driver, error) {
	if cfg.DataDir == "" {
		return nil, fmt.Errorf("data_dir is required for sqlite driver")
	}
	return &Driver{dataDir: cfg.DataDir, log: logutil.NoopIfNil(cfg.Log)}, nil
}

func (d *Driver) Name() string { return "sqlite" }

// Init opens the database and runs AutoMigrate.
//
// The pool holds a single connection: every write serializes through it,
// which the download claim relies on together with its conditional UPDATE.
// Timestamps are written in UTC so text comparison orders them.
func (d *Driver) Init(ctx context.Context) error {
	if err := os.MkdirAll(d.dataDir, 0o700); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	dsn := filepath.Join(d.dataDir, DBFile) + "?_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL"

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	d.db = db

	if err := db.WithContext(ctx).AutoMigrate(
		&identity.User{},
		&shares.ShareRecord{},
		&shares.AccessLogEntry{},
	); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	d.log.Debug("sqlite store ready", "path", filepath.Join(d.dataDir, DBFile))
	return nil
}

// DB exposes the handle for drivers layered on top of this one.
func (d *Driver) DB() *gorm.DB { return d.db }

func (d *Driver) Ping(ctx context.Context) error {
	if d.db == nil {
		return fmt.Errorf("sqlite store not initialized")
	}
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (d *Driver) Close() error {
	if d.db == nil {
		return nil
	}
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (d *Driver) Shares() shares.Repo { return &ShareRepo{db: d.db} }

func (d *Driver) Parties() identity.PartyRepo { return &PartyRepo{db: d.db} }

var _ store.Driver = (*Driver)(nil)
