package database

import (
	"context"
	"os"
	"strconv"
	"testing"

	"github.com/dev-protocol/send-transactions/config"
)

// SetupDb connects to the database named by the SEND_TX_TEST_DB_* variables
// and creates the relay tables. Tests are skipped when no host is set.
func SetupDb(t *testing.T) *DB {
	t.Helper()
	host := os.Getenv("SEND_TX_TEST_DB_HOST")
	if host == "" {
		t.Skip("SEND_TX_TEST_DB_HOST not set")
	}
	port, _ := strconv.Atoi(os.Getenv("SEND_TX_TEST_DB_PORT"))
	cfg := config.DBConfig{
		Host:     host,
		Port:     port,
		Name:     os.Getenv("SEND_TX_TEST_DB_NAME"),
		User:     os.Getenv("SEND_TX_TEST_DB_USER"),
		Password: os.Getenv("SEND_TX_TEST_DB_PASSWORD"),
	}
	db, err := NewDB(context.Background(), cfg)
	if err != nil {
		t.Fatalf("connect test database: %v", err)
	}
	if err := db.AutoMigrate(); err != nil {
		t.Fatalf("migrate test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}
