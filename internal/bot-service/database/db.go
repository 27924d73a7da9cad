package database

import (
	"database/sql"
	"errors"
	"fmt"

	sqliteGo "github.com/mattn/go-sqlite3"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const CustomDriverName = "sqlite3_fk"

const (
	DriverSqlite   = "sqlite"
	DriverPostgres = "postgres"
)

const DefaultFile = "bot-service.db"

var (
	ErrRecordNotFound = gorm.ErrRecordNotFound
	ErrDuplicatedKey  = gorm.ErrDuplicatedKey
	ErrUnknownDriver  = errors.New("unknown database driver")
)

// sqlite ignores foreign keys unless every connection asks for them,
// and cascading deletes depend on it.
func init() {
	sql.Register(CustomDriverName,
		&sqliteGo.SQLiteDriver{
			ConnectHook: func(conn *sqliteGo.SQLiteConn) error {
				_, err := conn.Exec("PRAGMA foreign_keys = ON", nil)
				return err
			},
		},
	)
}

func NewDb(driver, dsn string) (*gorm.DB, error) {
	cfg := &gorm.Config{
		Logger:                   logger.Default.LogMode(logger.Warn),
		SkipDefaultTransaction:   true,
		DisableNestedTransaction: true,
		TranslateError:           true,
	}

	var (
		db  *gorm.DB
		err error
	)
	switch driver {
	case DriverSqlite, "":
		db, err = openSqlite(dsn, cfg)
	case DriverPostgres:
		db, err = gorm.Open(postgres.Open(dsn), cfg)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownDriver, driver)
	}
	if err != nil {
		return nil, err
	}

	if err = db.AutoMigrate(&Group{}, &File{}, &Link{}, &Setting{}, &AuthorizedUser{}); err != nil {
		return nil, err
	}
	return db, nil
}

func openSqlite(file string, cfg *gorm.Config) (*gorm.DB, error) {
	conn, err := sql.Open(CustomDriverName, file)
	if err != nil {
		return nil, err
	}
	// one writer at a time keeps the group counters linearized
	conn.SetMaxOpenConns(1)

	return gorm.Open(sqlite.Dialector{
		DriverName: CustomDriverName,
		DSN:        file,
		Conn:       conn,
	}, cfg)
}
