package store

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"reconciliation-dashboard/internal/models"
	"reconciliation-dashboard/pkg/errors"
	"reconciliation-dashboard/pkg/logger"
)

const timestampLayout = time.RFC3339Nano

const selectColumns = `id, date, name, car, depositor, value, status, source, payment_method,
	confidence, matched_transaction_id, sheet_order, created_at, deleted_at`

// SQLiteStore provides SQLite database access for transactions
type SQLiteStore struct {
	db     *sql.DB
	logger logger.Logger
	now    func() time.Time
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) the database at path and migrates it
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, storageErr(errors.CodeConnectionFailed, "open", err)
	}

	// sqlite allows one writer at a time
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{
		db:     db,
		logger: logger.WithComponent("store").WithField("driver", DriverSQLite),
		now:    time.Now,
	}

	if err := s.runMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, storageErr(errors.CodeWriteFailed, "migrate", err)
	}

	return s, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTransaction(row rowScanner) (models.Transaction, error) {
	var (
		tx         models.Transaction
		date       string
		value      string
		status     string
		confidence sql.NullInt64
		sheetOrder sql.NullInt64
		createdAt  string
		deletedAt  sql.NullString
	)

	if err := row.Scan(&tx.ID, &date, &tx.Name, &tx.Car, &tx.Depositor, &value, &status, &tx.Source,
		&tx.PaymentMethod, &confidence, &tx.MatchedTransactionID, &sheetOrder, &createdAt, &deletedAt); err != nil {
		return models.Transaction{}, err
	}

	d, err := time.Parse(models.DateLayout, date)
	if err != nil {
		return models.Transaction{}, fmt.Errorf("invalid stored date %q: %w", date, err)
	}
	tx.Date = d

	if tx.Value, err = decimal.NewFromString(value); err != nil {
		return models.Transaction{}, fmt.Errorf("invalid stored value %q: %w", value, err)
	}

	tx.Status = models.Status(status)

	if confidence.Valid {
		c := int(confidence.Int64)
		tx.Confidence = &c
	}
	if sheetOrder.Valid {
		o := int(sheetOrder.Int64)
		tx.SheetOrder = &o
	}

	if tx.CreatedAt, err = time.Parse(timestampLayout, createdAt); err != nil {
		return models.Transaction{}, fmt.Errorf("invalid stored timestamp %q: %w", createdAt, err)
	}
	if deletedAt.Valid {
		t, err := time.Parse(timestampLayout, deletedAt.String)
		if err != nil {
			return models.Transaction{}, fmt.Errorf("invalid stored timestamp %q: %w", deletedAt.String, err)
		}
		tx.DeletedAt = &t
	}

	return tx, nil
}

func nullableInt(v *int) interface{} {
	if v == nil {
		return nil
	}
	return int64(*v)
}

func (s *SQLiteStore) query(ctx context.Context, operation, where string, args ...interface{}) ([]models.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+selectColumns+` FROM transactions WHERE `+where+` ORDER BY seq`, args...)
	if err != nil {
		return nil, storageErr(errors.CodeQueryFailed, operation, err)
	}
	defer func() { _ = rows.Close() }()

	result := make([]models.Transaction, 0)
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, storageErr(errors.CodeQueryFailed, operation, err)
		}
		result = append(result, tx)
	}

	if err := rows.Err(); err != nil {
		return nil, storageErr(errors.CodeQueryFailed, operation, err)
	}
	return result, nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]models.Transaction, error) {
	return s.query(ctx, "list", `deleted_at IS NULL`)
}

func (s *SQLiteStore) ListTrash(ctx context.Context) ([]models.Transaction, error) {
	return s.query(ctx, "list trash", `deleted_at IS NOT NULL`)
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (models.Transaction, error) {
	return s.get(ctx, s.db, id, false)
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func (s *SQLiteStore) get(ctx context.Context, q queryRower, id string, trashed bool) (models.Transaction, error) {
	where := `deleted_at IS NULL`
	if trashed {
		where = `deleted_at IS NOT NULL`
	}

	tx, err := scanTransaction(q.QueryRowContext(ctx,
		`SELECT `+selectColumns+` FROM transactions WHERE id = ? AND `+where, id))
	if stderrors.Is(err, sql.ErrNoRows) {
		return models.Transaction{}, errors.NotFoundError(id)
	}
	if err != nil {
		return models.Transaction{}, storageErr(errors.CodeQueryFailed, "get", err)
	}
	return tx, nil
}

func (s *SQLiteStore) Create(ctx context.Context, tx models.Transaction) (models.Transaction, error) {
	created, err := s.CreateMany(ctx, []models.Transaction{tx})
	if err != nil {
		return models.Transaction{}, err
	}
	return created[0], nil
}

func (s *SQLiteStore) CreateMany(ctx context.Context, txs []models.Transaction) ([]models.Transaction, error) {
	now := s.now()
	prepared := make([]models.Transaction, 0, len(txs))
	for _, tx := range txs {
		p, err := prepare(tx, now)
		if err != nil {
			return nil, err
		}
		prepared = append(prepared, p)
	}

	if len(prepared) == 0 {
		return prepared, nil
	}

	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, storageErr(errors.CodeWriteFailed, "create", err)
	}

	stmt, err := dbTx.PrepareContext(ctx, `
	INSERT INTO transactions
	(id, date, name, car, depositor, value, status, source, payment_method,
	 confidence, matched_transaction_id, sheet_order, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		_ = dbTx.Rollback()
		return nil, storageErr(errors.CodeWriteFailed, "create", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, tx := range prepared {
		_, err := stmt.ExecContext(ctx,
			tx.ID,
			tx.Date.Format(models.DateLayout),
			tx.Name,
			tx.Car,
			tx.Depositor,
			tx.Value.StringFixed(2),
			string(tx.Status),
			tx.Source,
			tx.PaymentMethod,
			nullableInt(tx.Confidence),
			tx.MatchedTransactionID,
			nullableInt(tx.SheetOrder),
			tx.CreatedAt.Format(timestampLayout),
		)
		if err != nil {
			_ = dbTx.Rollback()
			var sqliteErr sqlite3.Error
			if stderrors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
				return nil, duplicateID(tx.ID)
			}
			return nil, storageErr(errors.CodeWriteFailed, "create", err)
		}
	}

	if err := dbTx.Commit(); err != nil {
		return nil, storageErr(errors.CodeWriteFailed, "create", err)
	}

	s.logger.WithField("count", len(prepared)).Debug("Inserted transactions")
	return prepared, nil
}

func (s *SQLiteStore) Update(ctx context.Context, id string, patch Patch) (models.Transaction, error) {
	updated, err := s.UpdateMany(ctx, []Update{{ID: id, Patch: patch}})
	if err != nil {
		return models.Transaction{}, err
	}
	return updated[0], nil
}

func (s *SQLiteStore) UpdateMany(ctx context.Context, updates []Update) ([]models.Transaction, error) {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, storageErr(errors.CodeWriteFailed, "update", err)
	}
	defer func() { _ = dbTx.Rollback() }()

	result := make([]models.Transaction, 0, len(updates))
	for _, u := range updates {
		updated, err := s.update(ctx, dbTx, u.ID, u.Patch)
		if err != nil {
			return nil, err
		}
		result = append(result, updated)
	}

	if err := dbTx.Commit(); err != nil {
		return nil, storageErr(errors.CodeWriteFailed, "update", err)
	}
	return result, nil
}

func (s *SQLiteStore) update(ctx context.Context, dbTx *sql.Tx, id string, patch Patch) (models.Transaction, error) {
	current, err := s.get(ctx, dbTx, id, false)
	if err != nil {
		return models.Transaction{}, err
	}

	patch.Apply(&current)
	if err := validate(current); err != nil {
		return models.Transaction{}, err
	}

	_, err = dbTx.ExecContext(ctx, `
	UPDATE transactions SET
		date = ?, name = ?, car = ?, depositor = ?, value = ?, status = ?, source = ?,
		payment_method = ?, confidence = ?, matched_transaction_id = ?, sheet_order = ?
	WHERE id = ?
	`,
		current.Date.Format(models.DateLayout),
		current.Name,
		current.Car,
		current.Depositor,
		current.Value.StringFixed(2),
		string(current.Status),
		current.Source,
		current.PaymentMethod,
		nullableInt(current.Confidence),
		current.MatchedTransactionID,
		nullableInt(current.SheetOrder),
		id,
	)
	if err != nil {
		return models.Transaction{}, storageErr(errors.CodeWriteFailed, "update", err)
	}
	return current, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE transactions SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`,
		s.now().UTC().Format(timestampLayout), id)
	if err != nil {
		return storageErr(errors.CodeWriteFailed, "delete", err)
	}
	return requireAffected(res, id)
}

func (s *SQLiteStore) Restore(ctx context.Context, id string) (models.Transaction, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE transactions SET deleted_at = NULL WHERE id = ? AND deleted_at IS NOT NULL`, id)
	if err != nil {
		return models.Transaction{}, storageErr(errors.CodeWriteFailed, "restore", err)
	}
	if err := requireAffected(res, id); err != nil {
		return models.Transaction{}, err
	}
	return s.Get(ctx, id)
}

func requireAffected(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return storageErr(errors.CodeWriteFailed, "rows affected", err)
	}
	if n == 0 {
		return errors.NotFoundError(id)
	}
	return nil
}
