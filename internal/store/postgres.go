package store

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"reconciliation-dashboard/internal/models"
	"reconciliation-dashboard/pkg/errors"
	applog "reconciliation-dashboard/pkg/logger"
)

// transactionRecord is the gorm row shape of a transaction
type transactionRecord struct {
	Seq                  uint            `gorm:"column:seq;primaryKey;autoIncrement"`
	ID                   string          `gorm:"column:id;uniqueIndex;size:36;not null"`
	Date                 time.Time       `gorm:"type:date;not null"`
	Name                 string          `gorm:"not null"`
	Car                  string          `gorm:"not null;default:''"`
	Depositor            string          `gorm:"not null;default:''"`
	Value                decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	Status               string          `gorm:"size:32;index;not null;default:'pending-ledger'"`
	Source               string          `gorm:"size:100;not null;default:''"`
	PaymentMethod        string          `gorm:"not null;default:''"`
	Confidence           *int
	MatchedTransactionID string `gorm:"not null;default:''"`
	SheetOrder           *int
	CreatedAt            time.Time  `gorm:"not null"`
	DeletedAt            *time.Time `gorm:"index"`
}

func (transactionRecord) TableName() string {
	return "transactions"
}

func toRecord(tx models.Transaction) transactionRecord {
	tx = tx.Clone()
	return transactionRecord{
		ID:                   tx.ID,
		Date:                 tx.Date,
		Name:                 tx.Name,
		Car:                  tx.Car,
		Depositor:            tx.Depositor,
		Value:                tx.Value,
		Status:               string(tx.Status),
		Source:               tx.Source,
		PaymentMethod:        tx.PaymentMethod,
		Confidence:           tx.Confidence,
		MatchedTransactionID: tx.MatchedTransactionID,
		SheetOrder:           tx.SheetOrder,
		CreatedAt:            tx.CreatedAt,
		DeletedAt:            tx.DeletedAt,
	}
}

func (r transactionRecord) toModel() models.Transaction {
	tx := models.Transaction{
		ID:                   r.ID,
		Date:                 models.NormalizeDate(r.Date),
		Name:                 r.Name,
		Car:                  r.Car,
		Depositor:            r.Depositor,
		Value:                r.Value,
		Status:               models.Status(r.Status),
		Source:               r.Source,
		PaymentMethod:        r.PaymentMethod,
		Confidence:           r.Confidence,
		MatchedTransactionID: r.MatchedTransactionID,
		SheetOrder:           r.SheetOrder,
		CreatedAt:            r.CreatedAt.UTC(),
		DeletedAt:            r.DeletedAt,
	}
	return tx.Clone()
}

// PostgresStore persists transactions in PostgreSQL through gorm
type PostgresStore struct {
	db     *gorm.DB
	logger applog.Logger
	now    func() time.Time
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore connects with dsn and migrates the transactions table
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, storageErr(errors.CodeConnectionFailed, "open", err)
	}

	return newPostgresStore(db)
}

func newPostgresStore(db *gorm.DB) (*PostgresStore, error) {
	if err := db.AutoMigrate(&transactionRecord{}); err != nil {
		return nil, storageErr(errors.CodeWriteFailed, "migrate", err)
	}

	return &PostgresStore{
		db:     db,
		logger: applog.WithComponent("store").WithField("driver", DriverPostgres),
		now:    time.Now,
	}, nil
}

// Close closes the underlying connection pool
func (s *PostgresStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *PostgresStore) find(ctx context.Context, operation string, trashed bool) ([]models.Transaction, error) {
	var rows []transactionRecord

	q := s.db.WithContext(ctx)
	if trashed {
		q = q.Where("deleted_at IS NOT NULL")
	} else {
		q = q.Where("deleted_at IS NULL")
	}

	if err := q.Order("seq").Find(&rows).Error; err != nil {
		return nil, storageErr(errors.CodeQueryFailed, operation, err)
	}

	result := make([]models.Transaction, 0, len(rows))
	for _, r := range rows {
		result = append(result, r.toModel())
	}
	return result, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]models.Transaction, error) {
	return s.find(ctx, "list", false)
}

func (s *PostgresStore) ListTrash(ctx context.Context) ([]models.Transaction, error) {
	return s.find(ctx, "list trash", true)
}

func (s *PostgresStore) first(db *gorm.DB, id string, trashed bool) (transactionRecord, error) {
	var row transactionRecord

	q := db.Where("id = ?", id)
	if trashed {
		q = q.Where("deleted_at IS NOT NULL")
	} else {
		q = q.Where("deleted_at IS NULL")
	}

	err := q.First(&row).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return row, errors.NotFoundError(id)
	}
	if err != nil {
		return row, storageErr(errors.CodeQueryFailed, "get", err)
	}
	return row, nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (models.Transaction, error) {
	row, err := s.first(s.db.WithContext(ctx), id, false)
	if err != nil {
		return models.Transaction{}, err
	}
	return row.toModel(), nil
}

func (s *PostgresStore) Create(ctx context.Context, tx models.Transaction) (models.Transaction, error) {
	created, err := s.CreateMany(ctx, []models.Transaction{tx})
	if err != nil {
		return models.Transaction{}, err
	}
	return created[0], nil
}

func (s *PostgresStore) CreateMany(ctx context.Context, txs []models.Transaction) ([]models.Transaction, error) {
	now := s.now()
	prepared := make([]models.Transaction, 0, len(txs))
	rows := make([]transactionRecord, 0, len(txs))
	for _, tx := range txs {
		p, err := prepare(tx, now)
		if err != nil {
			return nil, err
		}
		prepared = append(prepared, p)
		rows = append(rows, toRecord(p))
	}

	if len(rows) == 0 {
		return prepared, nil
	}

	err := s.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		return db.Create(&rows).Error
	})
	if stderrors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, duplicateID(rows[0].ID)
	}
	if err != nil {
		return nil, storageErr(errors.CodeWriteFailed, "create", err)
	}

	s.logger.WithField("count", len(prepared)).Debug("Inserted transactions")
	return prepared, nil
}

func (s *PostgresStore) Update(ctx context.Context, id string, patch Patch) (models.Transaction, error) {
	updated, err := s.UpdateMany(ctx, []Update{{ID: id, Patch: patch}})
	if err != nil {
		return models.Transaction{}, err
	}
	return updated[0], nil
}

func (s *PostgresStore) UpdateMany(ctx context.Context, updates []Update) ([]models.Transaction, error) {
	result := make([]models.Transaction, 0, len(updates))

	err := s.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		for _, u := range updates {
			row, err := s.first(db, u.ID, false)
			if err != nil {
				return err
			}

			current := row.toModel()
			u.Patch.Apply(&current)
			if err := validate(current); err != nil {
				return err
			}

			next := toRecord(current)
			next.Seq = row.Seq
			if err := db.Save(&next).Error; err != nil {
				return storageErr(errors.CodeWriteFailed, "update", err)
			}
			result = append(result, current)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Model(&transactionRecord{}).
		Where("id = ? AND deleted_at IS NULL", id).
		Update("deleted_at", s.now().UTC())
	if res.Error != nil {
		return storageErr(errors.CodeWriteFailed, "delete", res.Error)
	}
	if res.RowsAffected == 0 {
		return errors.NotFoundError(id)
	}
	return nil
}

func (s *PostgresStore) Restore(ctx context.Context, id string) (models.Transaction, error) {
	res := s.db.WithContext(ctx).Model(&transactionRecord{}).
		Where("id = ? AND deleted_at IS NOT NULL", id).
		Update("deleted_at", gorm.Expr("NULL"))
	if res.Error != nil {
		return models.Transaction{}, storageErr(errors.CodeWriteFailed, "restore", res.Error)
	}
	if res.RowsAffected == 0 {
		return models.Transaction{}, errors.NotFoundError(id)
	}
	return s.Get(ctx, id)
}
