package redissync

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/icinga/icinga-redis-sync/database"
	"github.com/icinga/icinga-redis-sync/logging"
	"github.com/icinga/icinga-redis-sync/periodic"
)

// Registry tracks which of potentially several running writer processes is currently responsible
// for dumping and event-routing, using a SQL-backed instance table rather than the full
// database.AutoUpgradeSchema migration machinery (see DESIGN.md): one ad hoc table is all this
// leader-election pattern needs, built on the database/periodic packages.
type Registry struct {
	DB       *database.DB
	Logger   *logging.Logger
	Interval time.Duration

	id           string
	responsible  bool
	becameLeader chan struct{}
}

// NewRegistry returns a Registry that will register a fresh instance row when Start is called.
func NewRegistry(db *database.DB, logger *logging.Logger, interval time.Duration) *Registry {
	if interval <= 0 {
		interval = 15 * time.Second
	}

	return &Registry{
		DB:           db,
		Logger:       logger,
		Interval:     interval,
		id:           uuid.NewString(),
		becameLeader: make(chan struct{}),
	}
}

// EnsureSchema creates the writer_instance table if it does not already exist.
func (r *Registry) EnsureSchema(ctx context.Context) error {
	has, err := r.DB.HasTable(ctx, "writer_instance")
	if err != nil {
		return errors.Wrap(err, "can't check for writer_instance table")
	}

	if has {
		return nil
	}

	_, err = r.DB.ExecContext(ctx, `CREATE TABLE writer_instance (
		id VARCHAR(36) NOT NULL PRIMARY KEY,
		heartbeat_at BIGINT NOT NULL,
		responsible TINYINT NOT NULL DEFAULT 0
	)`)
	if err != nil {
		return errors.Wrap(err, "can't create writer_instance table")
	}

	return nil
}

// Start inserts this process's instance row and launches the heartbeat loop that keeps it fresh
// and periodically re-evaluates leadership. It returns a channel closed exactly once, the moment
// this instance becomes responsible.
func (r *Registry) Start(ctx context.Context) (<-chan struct{}, error) {
	if err := r.EnsureSchema(ctx); err != nil {
		return nil, err
	}

	now := time.Now().Unix()
	if _, err := r.DB.ExecContext(ctx,
		`INSERT INTO writer_instance (id, heartbeat_at, responsible) VALUES (?, ?, 0)`,
		r.id, now,
	); err != nil {
		return nil, errors.Wrap(err, "can't register writer instance")
	}

	periodic.Start(ctx, r.Interval, func(periodic.Tick) {
		r.heartbeat(ctx)
	}, periodic.Immediate())

	return r.becameLeader, nil
}

// heartbeat refreshes this instance's heartbeat_at, reaps instances that have gone stale (missed
// 3 consecutive intervals), and claims responsibility if no other live instance already holds it.
func (r *Registry) heartbeat(ctx context.Context) {
	now := time.Now().Unix()
	staleBefore := now - int64(3*r.Interval/time.Second)

	if _, err := r.DB.ExecContext(ctx,
		`UPDATE writer_instance SET heartbeat_at = ? WHERE id = ?`, now, r.id,
	); err != nil {
		if r.Logger != nil {
			r.Logger.Errorw("can't refresh writer instance heartbeat", "error", err)
		}

		return
	}

	if _, err := r.DB.ExecContext(ctx,
		`DELETE FROM writer_instance WHERE heartbeat_at < ?`, staleBefore,
	); err != nil {
		if r.Logger != nil {
			r.Logger.Errorw("can't reap stale writer instances", "error", err)
		}
	}

	if r.responsible {
		return
	}

	var responsibleCount int
	if err := r.DB.GetContext(ctx, &responsibleCount,
		`SELECT COUNT(*) FROM writer_instance WHERE responsible = 1`,
	); err != nil {
		if r.Logger != nil {
			r.Logger.Errorw("can't query writer instance responsibility", "error", err)
		}

		return
	}

	if responsibleCount > 0 {
		return
	}

	res, err := r.DB.ExecContext(ctx,
		`UPDATE writer_instance SET responsible = 1 WHERE id = ? AND (SELECT COUNT(*) FROM writer_instance WHERE responsible = 1) = 0`,
		r.id,
	)
	if err != nil {
		if r.Logger != nil {
			r.Logger.Errorw("can't claim writer instance responsibility", "error", err)
		}

		return
	}

	affected, err := res.RowsAffected()
	if err != nil || affected == 0 {
		return
	}

	r.responsible = true

	if r.Logger != nil {
		r.Logger.Infow("this writer instance became responsible", "id", r.id)
	}

	close(r.becameLeader)
}

// Stop deletes this instance's row so other instances need not wait out its heartbeat timeout
// before taking over.
func (r *Registry) Stop(ctx context.Context) error {
	if _, err := r.DB.ExecContext(ctx, `DELETE FROM writer_instance WHERE id = ?`, r.id); err != nil {
		return errors.Wrap(err, "can't deregister writer instance")
	}

	return nil
}
