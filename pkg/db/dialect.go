package db

import (
	"fmt"
	"strings"

	glebarez "github.com/glebarez/sqlite"
	"github.com/smallbiznis/vindesk/internal/config"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const (
	TypeSQLite   = "sqlite"
	TypeSQLite3  = "sqlite3"
	TypePostgres = "postgres"
	TypeMySQL    = "mysql"
)

// Dialect picks the gorm driver for cfg.DBType. "sqlite" is the pure-Go
// driver; "sqlite3" is the cgo one for deployments that already ship it.
func Dialect(cfg config.Config) (gorm.Dialector, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.DBType)) {
	case TypeMySQL:
		return mysql.Open(fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
			cfg.DBUser,
			cfg.DBPassword,
			cfg.DBHost,
			cfg.DBPort,
			cfg.DBName,
		)), nil
	case TypePostgres:
		return postgres.Open(PostgresDSN(cfg)), nil
	case TypeSQLite, "":
		return glebarez.Open(sqliteDSN(cfg.DBPath)), nil
	case TypeSQLite3:
		return sqlite.Open(sqliteDSN(cfg.DBPath)), nil
	default:
		return nil, fmt.Errorf("unsupported %s type", cfg.DBType)
	}
}

func PostgresDSN(cfg config.Config) string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
		cfg.DBHost,
		cfg.DBUser,
		cfg.DBPassword,
		cfg.DBName,
		cfg.DBPort,
		cfg.DBSSLMode,
	)
}

// IsSQLite reports whether db runs on either sqlite driver.
func IsSQLite(db *gorm.DB) bool {
	return db != nil && strings.HasPrefix(db.Dialector.Name(), "sqlite")
}

func sqliteDSN(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		path = "vindesk.db"
	}
	if strings.HasPrefix(path, "file:") {
		return path
	}
	return "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
}
