package database

import (
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Options struct {
	Driver   string
	DSN      string
	LogLevel logger.LogLevel
}

func getLogger(level logger.LogLevel) logger.Interface {
	if level == 0 {
		level = logger.Warn
	}
	return logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
			ParameterizedQueries:      true,
			Colorful:                  false,
		},
	)
}

func configureConnectionPool(db *gorm.DB, driver string) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}

	if driver == DriverSQLite {
		// SQLite allows a single writer; one connection avoids "database is locked".
		sqlDB.SetMaxOpenConns(1)
		return nil
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)
	return nil
}

func Open(opts Options) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch opts.Driver {
	case "", DriverPostgres:
		dialector = postgres.Open(opts.DSN)
	case DriverSQLite:
		dialector = sqlite.Open(opts.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", opts.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:  getLogger(opts.LogLevel),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, err
	}

	if err := configureConnectionPool(db, opts.Driver); err != nil {
		return nil, err
	}
	return db, nil
}

func NewGormDBFromDSN(dsn string) (*gorm.DB, error) {
	return Open(Options{Driver: DriverPostgres, DSN: dsn})
}
