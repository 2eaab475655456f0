package driver

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

var kvSchema = map[string]string{
	DriverPostgres: `CREATE TABLE IF NOT EXISTS kv_store (
		kv_key VARCHAR(191) PRIMARY KEY,
		kv_value TEXT NOT NULL,
		expires_at BIGINT NOT NULL DEFAULT 0
	)`,
	DriverMySQL: `CREATE TABLE IF NOT EXISTS kv_store (
		kv_key VARCHAR(191) PRIMARY KEY,
		kv_value MEDIUMTEXT NOT NULL,
		expires_at BIGINT NOT NULL DEFAULT 0
	)`,
}

// SQLKeyValueDB KeyValueDB backed by a single table in a SQL database
type SQLKeyValueDB struct {
	db     ITransactionalDB
	driver string
	now    func() time.Time
}

var _ KeyValueDB = &SQLKeyValueDB{}

// NewSQLKeyValueDB wrap db, driver must be one of DriverMySQL or DriverPostgres
func NewSQLKeyValueDB(db ITransactionalDB, driver string) (*SQLKeyValueDB, error) {
	if _, ok := kvSchema[driver]; !ok {
		return nil, fmt.Errorf("unsupported driver: %s", driver)
	}
	return &SQLKeyValueDB{db: db, driver: driver, now: time.Now}, nil
}

// EnsureSchema create the backing table if it does not exist
func (s *SQLKeyValueDB) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, kvSchema[s.driver])
	return err
}

// Set implement KeyValueDB
func (s *SQLKeyValueDB) Set(ctx context.Context, key string, value string) error {
	return s.SetEX(ctx, key, value, 0)
}

// SetEX implement KeyValueDB
func (s *SQLKeyValueDB) SetEX(ctx context.Context, key string, value string, expiration time.Duration) (err error) {
	tx, err := s.db.BeginTx(ctx, &TxOptions{Isolation: sql.LevelDefault, AccessMode: AccessReadWrite})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM kv_store WHERE kv_key = $1`, key); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, `INSERT INTO kv_store (kv_key, kv_value, expires_at) VALUES ($1, $2, $3)`,
		key, value, expiresAt(s.now(), expiration)); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Get implement KeyValueDB
func (s *SQLKeyValueDB) Get(ctx context.Context, key string) (string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT kv_value, expires_at FROM kv_store WHERE kv_key = $1`, key)
	if err != nil {
		return "", err
	}
	defer rows.Close()

	if !rows.Next() {
		return "", ErrKeyNotFound
	}
	var (
		value    string
		deadline int64
	)
	if err := rows.Scan(&value, &deadline); err != nil {
		return "", err
	}
	if expired(deadline, s.now()) {
		return "", ErrKeyNotFound
	}
	return value, nil
}

// Exists implement KeyValueDB
func (s *SQLKeyValueDB) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.Get(ctx, key)
	if errors.Is(err, ErrKeyNotFound) {
		return false, nil
	}
	return err == nil, err
}

// Delete implement KeyValueDB
func (s *SQLKeyValueDB) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM kv_store WHERE kv_key = $1`, key)
	return err
}

// Ping implement KeyValueDB
func (s *SQLKeyValueDB) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close implement KeyValueDB
func (s *SQLKeyValueDB) Close() error {
	return s.db.Close(context.Background())
}
