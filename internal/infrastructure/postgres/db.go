package postgres

// Based on https://github.com/ardanlabs/service/blob/master/business/sys/database/database.go

import (
	"context"
	"net/url"
	"strconv"
	"time"

	_ "github.com/jackc/pgx/v4/stdlib" // registers "pgx" driver
	"github.com/jmoiron/sqlx"
)

type Config struct {
	User               string
	Password           string
	Host               string
	Name               string
	Port               int
	MaxIdleConns       int
	MaxOpenConns       int
	SSLMode            string
	StatementCacheMode string
}

// URL returns connection string of the database.
func (cfg Config) URL() string {
	q := make(url.Values)
	q.Set("sslmode", cfg.SSLMode)
	q.Set("timezone", "utc")
	if cfg.StatementCacheMode != "" {
		q.Set("statement_cache_mode", cfg.StatementCacheMode)
	}
	host := cfg.Host
	if cfg.Port > 0 {
		host = host + ":" + strconv.Itoa(cfg.Port)
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     host,
		Path:     cfg.Name,
		RawQuery: q.Encode(),
	}
	return u.String()
}

func OpenDB(cfg Config) (*sqlx.DB, error) {
	db, err := sqlx.Connect("pgx", cfg.URL())
	if err != nil {
		return nil, err
	}
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	return db, nil
}

// StatusCheck returns nil if it can successfully talk to the database.
func StatusCheck(ctx context.Context, db *sqlx.DB) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Second)
		defer cancel()
	}
	var ok bool
	return db.QueryRowContext(ctx, "SELECT true").Scan(&ok)
}
