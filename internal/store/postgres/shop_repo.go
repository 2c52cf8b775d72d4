package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"barberbook/internal/domain"
	"barberbook/internal/store"
)

const shopConfigID = 1

var tracer = otel.Tracer("barberbook/internal/store/postgres")

type ShopRepo struct {
	db *bun.DB
}

func NewShopRepo(db *bun.DB) *ShopRepo {
	return &ShopRepo{db: db}
}

type shopTx struct {
	tx bun.Tx
}

// InShopTransaction runs fn inside one database transaction after taking a
// transaction-scoped advisory lock for every key, in sorted order.
func (r *ShopRepo) InShopTransaction(ctx context.Context, locks []store.LockKey, fn func(ctx context.Context, tx store.ShopTx) error) (err error) {
	ctx, span := tracer.Start(ctx, "postgres.InShopTransaction",
		trace.WithAttributes(attribute.Int("barberbook.lock_count", len(locks))),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(otelcodes.Error, err.Error())
		}
		span.End()
	}()

	var fnErr error
	err = r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for _, key := range store.SortedLocks(locks) {
			if err := acquireLock(ctx, tx, key); err != nil {
				return err
			}
		}
		fnErr = fn(ctx, shopTx{tx: tx})
		return fnErr
	})
	if err != nil && fnErr == nil {
		return storeErr(err)
	}
	return err
}

func acquireLock(ctx context.Context, tx bun.Tx, key store.LockKey) error {
	_, err := tx.NewRaw("SELECT pg_advisory_xact_lock(hashtext(?))", string(key)).Exec(ctx)
	return err
}

func (r *ShopRepo) ShopConfig(ctx context.Context) (domain.ShopConfig, error) {
	return getShopConfig(ctx, r.db)
}

func (r *ShopRepo) ListAppointments(ctx context.Context) ([]domain.Appointment, error) {
	return listAppointments(ctx, r.db)
}

func (r *ShopRepo) GetAppointment(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
	return getAppointment(ctx, r.db, id)
}

func (t shopTx) GetShopConfig(ctx context.Context) (domain.ShopConfig, error) {
	return getShopConfig(ctx, t.tx)
}

func (t shopTx) SaveShopConfig(ctx context.Context, cfg domain.ShopConfig) (domain.ShopConfig, error) {
	row := shopConfigRowFrom(cfg)
	row.Version = cfg.Version + 1
	row.UpdatedAt = time.Now().UTC()

	res, err := t.tx.NewUpdate().
		Model(&row).
		WherePK().
		Where("version = ?", cfg.Version).
		Exec(ctx)
	if err != nil {
		return domain.ShopConfig{}, storeErr(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.ShopConfig{}, storeErr(err)
	}
	if affected == 0 {
		return domain.ShopConfig{}, store.ErrConflict
	}
	return row.toDomain()
}

func (t shopTx) ListAppointments(ctx context.Context) ([]domain.Appointment, error) {
	return listAppointments(ctx, t.tx)
}

func (t shopTx) GetAppointment(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
	return getAppointment(ctx, t.tx, id)
}

func (t shopTx) CreateAppointment(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
	m := appt
	if _, err := t.tx.NewInsert().Model(&m).Exec(ctx); err != nil {
		return domain.Appointment{}, storeErr(err)
	}
	return m, nil
}

func (t shopTx) UpdateAppointment(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
	m := appt
	res, err := t.tx.NewUpdate().
		Model(&m).
		Column("client_name", "date", "time", "status", "suggestion_time", "notification_target", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return domain.Appointment{}, storeErr(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.Appointment{}, storeErr(err)
	}
	if affected == 0 {
		return domain.Appointment{}, store.ErrNotFound
	}
	return getAppointment(ctx, t.tx, appt.ID)
}

func getShopConfig(ctx context.Context, db bun.IDB) (domain.ShopConfig, error) {
	var row shopConfigRow
	err := db.NewSelect().
		Model(&row).
		Where("id = ?", shopConfigID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return domain.ShopConfig{}, storeErr(err)
	}
	return row.toDomain()
}

func listAppointments(ctx context.Context, db bun.IDB) ([]domain.Appointment, error) {
	var rows []domain.Appointment
	err := db.NewSelect().
		Model(&rows).
		OrderExpr("created_at ASC, id ASC").
		Scan(ctx)
	if err != nil {
		return nil, storeErr(err)
	}
	return rows, nil
}

func getAppointment(ctx context.Context, db bun.IDB, id uuid.UUID) (domain.Appointment, error) {
	var a domain.Appointment
	err := db.NewSelect().
		Model(&a).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return domain.Appointment{}, storeErr(err)
	}
	return a, nil
}

// storeErr maps driver errors onto the store sentinels. Context errors pass
// through unchanged.
func storeErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		// unique_violation, serialization_failure, deadlock_detected
		case "23505", "40001", "40P01":
			return store.ErrConflict
		}
	}
	return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
}
