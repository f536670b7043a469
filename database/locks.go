package database

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type RelayLock struct {
	LockKey   string    `gorm:"primaryKey;column:lock_key" json:"lock_key"`
	Token     string    `gorm:"column:token;not null" json:"token"`
	ExpiresAt time.Time `gorm:"column:expires_at;not null" json:"expires_at"`
}

func (RelayLock) TableName() string {
	return "relay_locks"
}

type LocksDB interface {
	// AcquireLock inserts the lock, or takes it over when the previous holder
	// let it expire. It reports whether the caller now owns the lock.
	AcquireLock(lock *RelayLock, now time.Time) (bool, error)
	ReleaseLock(lockKey, token string) error
}

type locksDB struct {
	gorm *gorm.DB
}

func NewLocksDB(db *gorm.DB) LocksDB {
	return &locksDB{gorm: db}
}

func (db locksDB) AcquireLock(lock *RelayLock, now time.Time) (bool, error) {
	result := db.gorm.Table("relay_locks").
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "lock_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"token", "expires_at"}),
			Where: clause.Where{Exprs: []clause.Expression{
				clause.Expr{SQL: "relay_locks.expires_at <= ?", Vars: []interface{}{now}},
			}},
		}).
		Create(lock)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (db locksDB) ReleaseLock(lockKey, token string) error {
	return db.gorm.Table("relay_locks").
		Where("lock_key = ? AND token = ?", lockKey, token).
		Delete(&RelayLock{}).Error
}
