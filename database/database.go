// Copyright 2025 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package database holds the relational projection of the governance
// state: blocks, the outputs, polls, proposals and votes they introduced.
package database

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/blinklabs-io/govaudit/database/models"
	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"
)

const (
	DriverSqlite   = "sqlite"
	DriverPostgres = "postgres"

	sqliteFileName = "govaudit.sqlite"
)

var ErrUnsupportedDriver = errors.New("unsupported database driver")

// memoryDbCounter gives every in-memory database its own name so that
// separate instances in one process do not share state
var memoryDbCounter atomic.Uint64

type Database struct {
	logger  *slog.Logger
	db      *gorm.DB
	driver  string
	dataDir string
	dsn     string
	tracing bool
}

type DatabaseOptionFunc func(*Database)

// WithLogger specifies the logger object to use for logging messages
func WithLogger(logger *slog.Logger) DatabaseOptionFunc {
	return func(d *Database) {
		d.logger = logger
	}
}

// WithDriver specifies the storage driver (sqlite or postgres)
func WithDriver(driver string) DatabaseOptionFunc {
	return func(d *Database) {
		d.driver = driver
	}
}

// WithDataDir specifies the data directory for the sqlite driver. An empty
// value uses an in-memory database.
func WithDataDir(dataDir string) DatabaseOptionFunc {
	return func(d *Database) {
		d.dataDir = dataDir
	}
}

// WithDSN specifies the postgres connection string
func WithDSN(dsn string) DatabaseOptionFunc {
	return func(d *Database) {
		d.dsn = dsn
	}
}

// WithTracing enables OpenTelemetry spans for database queries
func WithTracing(enabled bool) DatabaseOptionFunc {
	return func(d *Database) {
		d.tracing = enabled
	}
}

// New opens the database and applies the schema migrations
func New(opts ...DatabaseOptionFunc) (*Database, error) {
	d := &Database{
		driver: DriverSqlite,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		d.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	d.logger = d.logger.With("component", "database")
	var err error
	switch d.driver {
	case DriverSqlite:
		err = d.openSqlite()
	case DriverPostgres:
		err = d.openPostgres()
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDriver, d.driver)
	}
	if err != nil {
		return nil, err
	}
	if d.tracing {
		if err := d.db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
			return nil, fmt.Errorf("configure database tracing: %w", err)
		}
	}
	if err := d.db.AutoMigrate(models.MigrateModels...); err != nil {
		return nil, fmt.Errorf("migrate database schema: %w", err)
	}
	return d, nil
}

func (d *Database) openSqlite() error {
	gormConfig := &gorm.Config{
		Logger:                 gormlogger.Discard,
		SkipDefaultTransaction: true,
	}
	if d.dataDir == "" {
		// Use in-memory database when no data directory is specified
		dsn := fmt.Sprintf(
			"file:govaudit-%d?mode=memory&cache=shared&_pragma=foreign_keys(1)",
			memoryDbCounter.Add(1),
		)
		db, err := gorm.Open(sqlite.Open(dsn), gormConfig)
		if err != nil {
			return err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		// A single connection keeps the in-memory database alive and avoids
		// shared-cache table locks between connections
		sqlDB.SetMaxOpenConns(1)
		d.db = db
		return nil
	}
	// Make sure that we can read data dir, and create if it doesn't exist
	if _, err := os.Stat(d.dataDir); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to read data dir: %w", err)
		}
		if err := os.MkdirAll(d.dataDir, fs.ModePerm); err != nil {
			return fmt.Errorf("failed to create data dir: %w", err)
		}
	}
	dbPath := filepath.Join(d.dataDir, sqliteFileName)
	connOpts := "_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := gorm.Open(
		sqlite.Open(fmt.Sprintf("file:%s?%s", dbPath, connOpts)),
		gormConfig,
	)
	if err != nil {
		return err
	}
	d.logger.Info("opened sqlite database", "path", dbPath)
	d.db = db
	return nil
}

func (d *Database) openPostgres() error {
	if d.dsn == "" {
		return errors.New("postgres driver requires a DSN")
	}
	db, err := gorm.Open(
		postgres.Open(d.dsn),
		&gorm.Config{
			Logger:                 gormlogger.Discard,
			SkipDefaultTransaction: true,
		},
	)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)
	d.logger.Info("connected to postgres database")
	d.db = db
	return nil
}

// DB returns the underlying gorm handle
func (d *Database) DB() *gorm.DB {
	return d.db
}

func (d *Database) Logger() *slog.Logger {
	return d.logger
}

// Ping checks that the database answers queries
func (d *Database) Ping(ctx context.Context) error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Transaction runs fn inside a single database transaction. Any error
// returned by fn rolls back every statement issued through the Txn.
func (d *Database) Transaction(ctx context.Context, fn func(*Txn) error) error {
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(newTxn(tx))
	})
}

// Close cleans up the database connections
func (d *Database) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func newTxn(db *gorm.DB) *Txn {
	return &Txn{db: db, lock: &sync.Mutex{}}
}
