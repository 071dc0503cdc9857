package mysql

import (
	"database/sql"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/mattn/go-sqlite3"

	"uph-engine/internal/config"
)

// ErrSchemaMissing means a table the engine reads or writes does not exist.
// Schema management lives outside this service.
var ErrSchemaMissing = errors.New("required table is missing")

type Storage struct {
	db *sql.DB
}

// New opens the MES database. MySQL is the production driver; sqlite3 backs
// single-node deployments and tests.
func New(cfg config.Storage) (*Storage, error) {
	const op = "storage.mysql.New"

	var (
		db  *sql.DB
		err error
	)

	switch cfg.Driver {
	case "mysql":
		dsn := mysql.NewConfig()
		dsn.User = cfg.DBUser
		dsn.Passwd = cfg.DBPassword
		dsn.Net = "tcp"
		dsn.Addr = net.JoinHostPort(cfg.DBHost, strconv.Itoa(cfg.DBPort))
		dsn.DBName = cfg.DBName
		dsn.ParseTime = cfg.ParseTime

		db, err = sql.Open("mysql", dsn.FormatDSN())
	case "sqlite3":
		db, err = sql.Open("sqlite3", cfg.Path)
		if err == nil {
			// one connection keeps ":memory:" databases alive and serializes writers
			db.SetMaxOpenConns(1)
		}
	default:
		return nil, fmt.Errorf("%s: unknown driver %q", op, cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Storage{db: db}, nil
}

func (s *Storage) Close() error {
	return s.db.Close()
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func wrapDBError(op, msg string, err error) error {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) && mysqlErr.Number == 1146 {
		return fmt.Errorf("%s: %s: %w: %s", op, msg, ErrSchemaMissing, mysqlErr.Message)
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && strings.Contains(sqliteErr.Error(), "no such table") {
		return fmt.Errorf("%s: %s: %w: %s", op, msg, ErrSchemaMissing, sqliteErr.Error())
	}

	return fmt.Errorf("%s: %s: %w", op, msg, err)
}
