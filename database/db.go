package database

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/dev-protocol/send-transactions/common/retry"
	"github.com/dev-protocol/send-transactions/config"
)

type DB struct {
	gorm *gorm.DB

	Idempotency IdempotencyDB
	Locks       LocksDB
	Submissions SubmissionsDB
}

func NewDB(ctx context.Context, dbConfig config.DBConfig) (*DB, error) {
	dsn := fmt.Sprintf("host=%s dbname=%s sslmode=disable", dbConfig.Host, dbConfig.Name)
	if dbConfig.Port != 0 {
		dsn += fmt.Sprintf(" port=%d", dbConfig.Port)
	}

	if dbConfig.User != "" {
		dsn += fmt.Sprintf(" user=%s", dbConfig.User)
	}

	if dbConfig.Password != "" {
		dsn += fmt.Sprintf(" password=%s", dbConfig.Password)
	}

	newLogger := logger.New(
		log.New(log.Writer(), "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  true,
		},
	)

	gormConfig := &gorm.Config{
		SkipDefaultTransaction: true,
		CreateBatchSize:        3_000,
		Logger:                 newLogger,
	}

	retryStrategy := &retry.ExponentialStrategy{Min: time.Second, Max: 20 * time.Second, MaxJitter: 250 * time.Millisecond}
	gormDbBox, err := retry.Do[*gorm.DB](ctx, 10, retryStrategy, func() (*gorm.DB, error) {
		gormDb, err := gorm.Open(postgres.Open(dsn), gormConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		return gormDb, err
	})

	if err != nil {
		return nil, err
	}

	return newDB(gormDbBox), nil
}

func newDB(gormDb *gorm.DB) *DB {
	return &DB{
		gorm:        gormDb,
		Idempotency: NewIdempotencyDB(gormDb),
		Locks:       NewLocksDB(gormDb),
		Submissions: NewSubmissionsDB(gormDb),
	}
}

func (db *DB) Transaction(fn func(db *DB) error) error {
	return db.gorm.Transaction(func(tx *gorm.DB) error {
		return fn(newDB(tx))
	})
}

func (db *DB) Close() error {
	sql, err := db.gorm.DB()
	if err != nil {
		return err
	}
	return sql.Close()
}

// AutoMigrate creates or updates the relay tables from the model structs.
func (db *DB) AutoMigrate() error {
	return db.gorm.AutoMigrate(&IdempotencyRecord{}, &RelayLock{}, &Submission{})
}

func (db *DB) ExecuteSQLMigration(migrationsFolder string) error {
	err := filepath.Walk(migrationsFolder, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return errors.Wrap(err, fmt.Sprintf("failed to process migration file: %s", path))
		}
		if info.IsDir() {
			return nil
		}
		fileContent, err := os.ReadFile(path)
		if err != nil {
			return errors.Wrap(err, fmt.Sprintf("failed to read file: %s", path))
		}

		execErr := db.gorm.Exec(string(fileContent)).Error
		if execErr != nil {
			return errors.Wrap(execErr, fmt.Sprintf("failed to execute sql: %s", path))
		}
		return nil
	})
	return err
}
