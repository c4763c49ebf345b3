package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/gig-earnings-audit/internal/common"
	"github.com/joseph-ayodele/gig-earnings-audit/internal/entity"
)

type WorkerRepository interface {
	Create(ctx context.Context, w *entity.Worker) (*entity.Worker, error)
	GetByWorkerID(ctx context.Context, workerID string) (*entity.Worker, error)
	// Ensure returns the worker with workerID, creating it with name if absent.
	Ensure(ctx context.Context, workerID, name string) (*entity.Worker, error)
	List(ctx context.Context) ([]*entity.Worker, error)
}

type workerRepository struct {
	q      querier
	driver string
	logger *slog.Logger
}

const workerColumns = `id, worker_id, name, email, created_at`

func (r *workerRepository) Create(ctx context.Context, w *entity.Worker) (*entity.Worker, error) {
	v := common.NewValidator().
		Field("worker_id", w.WorkerID, common.Required, common.MaxLength(64)).
		Field("name", w.Name, common.Required, common.MaxLength(200)).
		Field("email", w.Email, common.Email)
	if err := v.Err(); err != nil {
		return nil, err
	}

	out := *w
	out.WorkerID = strings.TrimSpace(w.WorkerID)
	if out.ID == uuid.Nil {
		out.ID = uuid.New()
	}
	if out.CreatedAt.IsZero() {
		out.CreatedAt = time.Now().UTC()
	}

	_, err := r.q.ExecContext(ctx, rebind(r.driver,
		`INSERT INTO workers (`+workerColumns+`) VALUES (?, ?, ?, ?, ?)`),
		out.ID.String(), out.WorkerID, out.Name, nullString(out.Email), out.CreatedAt)
	if err != nil {
		r.logger.Error("failed to create worker", "worker_id", out.WorkerID, "error", err)
		return nil, dbError(err, "create worker %s", out.WorkerID)
	}
	return &out, nil
}

func (r *workerRepository) GetByWorkerID(ctx context.Context, workerID string) (*entity.Worker, error) {
	row := r.q.QueryRowContext(ctx, rebind(r.driver,
		`SELECT `+workerColumns+` FROM workers WHERE worker_id = ?`), workerID)
	w, err := scanWorker(row)
	if err != nil {
		return nil, dbError(err, "worker %s", workerID)
	}
	return w, nil
}

func (r *workerRepository) Ensure(ctx context.Context, workerID, name string) (*entity.Worker, error) {
	w, err := r.GetByWorkerID(ctx, workerID)
	if err == nil {
		return w, nil
	}
	if !isNotFound(err) {
		return nil, err
	}
	if strings.TrimSpace(name) == "" {
		name = workerID
	}
	created, err := r.Create(ctx, &entity.Worker{WorkerID: workerID, Name: name})
	if isConflict(err) {
		// created concurrently
		return r.GetByWorkerID(ctx, workerID)
	}
	return created, err
}

func (r *workerRepository) List(ctx context.Context) ([]*entity.Worker, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT `+workerColumns+` FROM workers ORDER BY worker_id`)
	if err != nil {
		return nil, dbError(err, "list workers")
	}
	defer rows.Close()

	var out []*entity.Worker
	for rows.Next() {
		w, err := scanWorker(rows)
		if err != nil {
			return nil, dbError(err, "scan worker")
		}
		out = append(out, w)
	}
	return out, dbError(rows.Err(), "list workers")
}

func scanWorker(s rowScanner) (*entity.Worker, error) {
	var (
		w     entity.Worker
		email sql.NullString
	)
	if err := s.Scan(&w.ID, &w.WorkerID, &w.Name, &email, scanTime{&w.CreatedAt}); err != nil {
		return nil, err
	}
	w.Email = email.String
	return &w, nil
}
