package repository

import (
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

var postgresDialect = dialect{
	driver:   "postgres",
	idColumn: "bigserial primary key",
}

func openPostgres(dbURL string) (*sqlx.DB, error) {
	db, err := sqlx.Open(postgresDialect.driver, dbURL)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}
