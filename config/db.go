package config

import (
	"database/sql"
	"fmt"
	"log"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	_ "github.com/lib/pq"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"chez-meme/models"
)

var DB *gorm.DB

func mysqlDSNFromURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}

	user := u.User.Username()
	pass, _ := u.User.Password()
	host := u.Hostname()
	port := u.Port()
	if port == "" {
		port = "3306"
	}

	dbName := strings.TrimPrefix(u.Path, "/")
	if dbName == "" {
		return "", fmt.Errorf("mysql url missing database name")
	}

	q := u.Query()
	if q.Get("charset") == "" {
		q.Set("charset", "utf8mb4")
	}
	if q.Get("parseTime") == "" {
		q.Set("parseTime", "True")
	}
	if q.Get("loc") == "" {
		q.Set("loc", "UTC")
	}

	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?%s", user, pass, host, port, dbName, q.Encode()), nil
}

// sqlitePath accepts the SQLAlchemy style URLs of the previous deployment and
// :memory:.
func sqlitePath(raw string) string {
	p := strings.TrimPrefix(raw, "sqlite://")
	// sqlite:///relative.db and sqlite:////absolute.db
	p = strings.TrimPrefix(p, "/")
	if p == "" {
		return ":memory:"
	}
	return p
}

// Dialector picks the gorm driver for a DATABASE_URL.
func Dialector(raw string) (gorm.Dialector, error) {
	raw = strings.TrimSpace(raw)
	switch {
	case raw == ":memory:" || strings.HasPrefix(raw, "sqlite:") || strings.HasSuffix(raw, ".db"):
		return sqlite.Open(sqlitePath(raw)), nil

	case strings.HasPrefix(raw, "postgres://") || strings.HasPrefix(raw, "postgresql://"):
		sqlDB, err := sql.Open("postgres", raw)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		return postgres.New(postgres.Config{Conn: sqlDB}), nil

	case strings.HasPrefix(raw, "mysql://"):
		dsn, err := mysqlDSNFromURL(raw)
		if err != nil {
			return nil, err
		}
		return mysql.Open(dsn), nil

	case strings.Contains(raw, "@tcp("):
		return mysql.Open(raw), nil
	}
	return nil, fmt.Errorf("unsupported DATABASE_URL %q", redactURL(raw))
}

func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	return u.Redacted()
}

func gormLogLevel(level string) logger.LogLevel {
	switch strings.ToLower(level) {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info":
		return logger.Info
	}
	return logger.Warn
}

// OpenDatabase connects without migrating.
func OpenDatabase(rawURL, logLevel string) (*gorm.DB, error) {
	dialector, err := Dialector(rawURL)
	if err != nil {
		return nil, err
	}

	newLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormLogLevel(logLevel),
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(dialector, &gorm.Config{Logger: newLogger})
	if err != nil {
		return nil, err
	}

	if db.Dialector.Name() == "sqlite" {
		// one connection: every ":memory:" connection would otherwise be its own database
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.SetMaxOpenConns(1)
		}
	}
	return db, nil
}

// Migrate creates or upgrades every table.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.User{},
		&models.Reservation{},
		&models.PendingReservation{},
		&models.Activity{},
		&models.SurfSpot{},
		&models.Photo{},
		&models.ShameEntry{},
		&models.LeaderboardEntry{},
		&models.ForecastSnapshot{},
	); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return UpgradeLegacySchema(db)
}

// UpgradeLegacySchema fixes columns created by older deployments that
// AutoMigrate does not alter on its own.
func UpgradeLegacySchema(db *gorm.DB) error {
	if db.Dialector.Name() == "sqlite" {
		// sqlite ignores VARCHAR lengths
		return nil
	}

	columns, err := db.Migrator().ColumnTypes(&models.User{})
	if err != nil {
		log.Printf("info: cannot inspect user columns: %v", err)
		return nil
	}
	for _, col := range columns {
		if col.Name() != "password_hash" {
			continue
		}
		if length, ok := col.Length(); ok && length < 256 {
			log.Printf("info: widening user.password_hash from %d to 256", length)
			if err := db.Migrator().AlterColumn(&models.User{}, "PasswordHash"); err != nil {
				return fmt.Errorf("widen password_hash: %w", err)
			}
		}
	}
	return nil
}

// ConnectDatabase opens and migrates the database, then stores it in DB.
func ConnectDatabase(cfg *Config) (*gorm.DB, error) {
	db, err := OpenDatabase(cfg.DatabaseURL, cfg.DBLogLevel)
	if err != nil {
		return nil, err
	}
	if err := Migrate(db); err != nil {
		return nil, err
	}
	DB = db
	return db, nil
}
