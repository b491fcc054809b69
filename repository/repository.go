// Package repository persists radio state over jmoiron/sqlx. The dialect is
// chosen from the scheme of the database url: sqlite:// or postgres://.
package repository

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/himanshub16/upnext-live/logging"
	"github.com/himanshub16/upnext-live/radio"
)

// SQLRepository implements radio.Repository for both supported dialects.
// Queries are written with ? placeholders and rebound per driver.
type SQLRepository struct {
	db      *sqlx.DB
	dialect dialect
}

var _ radio.Repository = (*SQLRepository)(nil)

type dialect struct {
	driver   string
	idColumn string
}

// Open connects to dbURL, creates missing tables and returns the repository.
func Open(ctx context.Context, dbURL string) (*SQLRepository, error) {
	scheme, rest, ok := strings.Cut(dbURL, "://")
	if !ok {
		return nil, fmt.Errorf("database url %q has no scheme", dbURL)
	}

	var (
		db  *sqlx.DB
		d   dialect
		err error
	)
	switch scheme {
	case "sqlite", "sqlite3":
		db, err = openSQLite(rest)
		d = sqliteDialect
	case "postgres", "postgresql":
		db, err = openPostgres(dbURL)
		d = postgresDialect
	default:
		return nil, fmt.Errorf("unsupported database scheme %q", scheme)
	}
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", d.driver, err)
	}

	r := &SQLRepository{db: db, dialect: d}
	if err := r.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}

	l := logging.L()
	l.Info().Str("driver", d.driver).Str("database", redact(dbURL)).Msg("connected to database")
	return r, nil
}

func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// Ping reports whether the database is reachable.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLRepository) migrate(ctx context.Context) error {
	for _, stmt := range schema(r.dialect) {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create tables: %w", err)
		}
	}
	return nil
}

// redact hides the password of a database url before it is logged.
func redact(dbURL string) string {
	u, err := url.Parse(dbURL)
	if err != nil || u.User == nil {
		return dbURL
	}
	return u.Redacted()
}
