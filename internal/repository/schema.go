package repository

import (
	"context"
	"fmt"
	"strings"
)

// column types that differ between dialects
type dialectTypes struct {
	id, ts, json, money, blob, real string
}

var dialects = map[string]dialectTypes{
	DriverSQLite:   {id: "TEXT", ts: "TIMESTAMP", json: "TEXT", money: "TEXT", blob: "BLOB", real: "REAL"},
	DriverPostgres: {id: "TEXT", ts: "TIMESTAMPTZ", json: "JSONB", money: "NUMERIC(12,2)", blob: "BYTEA", real: "DOUBLE PRECISION"},
}

const schemaTemplate = `
CREATE TABLE IF NOT EXISTS workers (
	id          {id} PRIMARY KEY,
	worker_id   TEXT NOT NULL UNIQUE,
	name        TEXT NOT NULL,
	email       TEXT,
	created_at  {ts} NOT NULL
);

CREATE TABLE IF NOT EXISTS earnings_records (
	id             {id} PRIMARY KEY,
	worker_id      TEXT NOT NULL,
	platform       TEXT NOT NULL,
	source         TEXT NOT NULL,
	source_type    TEXT NOT NULL,
	content_hash   {blob},
	raw_text       TEXT NOT NULL,
	parsed         {json} NOT NULL,
	total          {money},
	status         TEXT NOT NULL,
	ocr_method     TEXT,
	ocr_confidence {real},
	error_message  TEXT,
	created_at     {ts} NOT NULL,
	updated_at     {ts} NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS earnings_records_worker_hash_uq
	ON earnings_records (worker_id, content_hash);
CREATE INDEX IF NOT EXISTS earnings_records_worker_created_idx
	ON earnings_records (worker_id, created_at);

CREATE TABLE IF NOT EXISTS audit_results (
	id               {id} PRIMARY KEY,
	record_id        {id} REFERENCES earnings_records (id) ON DELETE CASCADE,
	worker_id        TEXT NOT NULL,
	parsed_snapshot  {json} NOT NULL,
	context          {json} NOT NULL,
	fairness_score   {real} NOT NULL,
	missing_amount   {money} NOT NULL,
	penalty_mismatch BOOLEAN NOT NULL,
	rating_issue     BOOLEAN NOT NULL,
	explanation      TEXT NOT NULL,
	compliant        BOOLEAN NOT NULL,
	created_at       {ts} NOT NULL
);

CREATE INDEX IF NOT EXISTS audit_results_record_idx
	ON audit_results (record_id, created_at);
`

func schemaFor(driver string) (string, error) {
	t, ok := dialects[driver]
	if !ok {
		return "", fmt.Errorf("no schema for driver %q", driver)
	}
	return strings.NewReplacer(
		"{id}", t.id,
		"{ts}", t.ts,
		"{json}", t.json,
		"{money}", t.money,
		"{blob}", t.blob,
		"{real}", t.real,
	).Replace(schemaTemplate), nil
}

// Migrate creates tables and indexes that do not exist yet.
func (db *DB) Migrate(ctx context.Context) error {
	ddl, err := schemaFor(db.driver)
	if err != nil {
		return err
	}
	for _, stmt := range strings.Split(ddl, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.logger.Error("migration failed", "error", err)
			return fmt.Errorf("migrate: %w", err)
		}
	}
	db.logger.Info("database schema up to date", "driver", db.driver)
	return nil
}
