package repository

import (
	"context"
	"database/sql"
	"log/slog"
)

// Store groups the repositories so they can share a transaction.
type Store struct {
	db      *DB
	logger  *slog.Logger
	Workers WorkerRepository
	Records EarningsRecordRepository
	Audits  AuditResultRepository
}

func NewStore(db *DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return newStore(db, db, logger)
}

func newStore(db *DB, q querier, logger *slog.Logger) *Store {
	return &Store{
		db:      db,
		logger:  logger,
		Workers: &workerRepository{q: q, driver: db.driver, logger: logger},
		Records: &earningsRecordRepository{q: q, driver: db.driver, logger: logger},
		Audits:  &auditResultRepository{q: q, driver: db.driver, logger: logger},
	}
}

// InTx runs fn with repositories bound to one transaction. The transaction
// commits when fn returns nil and rolls back otherwise.
func (s *Store) InTx(ctx context.Context, fn func(tx *Store) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return dbError(err, "begin transaction")
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
				s.logger.Error("rollback failed", "error", rbErr)
			}
		}
	}()

	if err = fn(newStore(s.db, tx, s.logger)); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return dbError(err, "commit transaction")
	}
	return nil
}

func (s *Store) DB() *DB { return s.db }
