package database

import (
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type IdempotencyRecord struct {
	DedupKey        string `gorm:"primaryKey;column:dedup_key" json:"dedup_key"`
	TimestampMillis int64  `gorm:"column:timestamp_millis;not null" json:"timestamp_millis"`
}

func (IdempotencyRecord) TableName() string {
	return "idempotency_records"
}

type IdempotencyView interface {
	QueryRecord(dedupKey string) (*IdempotencyRecord, error)
}

type IdempotencyDB interface {
	IdempotencyView

	StoreRecord(*IdempotencyRecord) error
}

type idempotencyDB struct {
	gorm *gorm.DB
}

func NewIdempotencyDB(db *gorm.DB) IdempotencyDB {
	return &idempotencyDB{gorm: db}
}

// QueryRecord returns nil, nil when the key has no record.
func (db idempotencyDB) QueryRecord(dedupKey string) (*IdempotencyRecord, error) {
	var record IdempotencyRecord
	result := db.gorm.Table("idempotency_records").
		Where("dedup_key = ?", dedupKey).
		Take(&record)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &record, nil
}

func (db idempotencyDB) StoreRecord(record *IdempotencyRecord) error {
	result := db.gorm.Table("idempotency_records").
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "dedup_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"timestamp_millis"}),
		}).
		Create(record)
	return result.Error
}
