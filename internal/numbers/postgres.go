// internal/numbers/postgres.go
// Postgres-backed record store. Records are written through on every state
// change so still-live allocations survive a process restart.

package numbers

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// PostgresStore implements Store on top of PostgreSQL
type PostgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore connects to PostgreSQL and ensures the schema exists
func NewPostgresStore(databaseURL string) (*PostgresStore, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	store := &PostgresStore{db: db}
	if err := store.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (s *PostgresStore) ensureSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS virtual_numbers (
		phone_number  VARCHAR(32) PRIMARY KEY,
		id            VARCHAR(64) NOT NULL,
		vendor_id     VARCHAR(32) NOT NULL,
		vendor_handle VARCHAR(128) NOT NULL,
		product       VARCHAR(64) NOT NULL,
		country       VARCHAR(64) NOT NULL,
		operator      VARCHAR(64) NOT NULL DEFAULT '',
		otps          JSONB NOT NULL DEFAULT '[]',
		status        VARCHAR(16) NOT NULL,
		created_at    TIMESTAMPTZ NOT NULL,
		expires_at    TIMESTAMPTZ NOT NULL
	)`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create virtual_numbers table: %w", err)
	}

	index := `CREATE INDEX IF NOT EXISTS idx_virtual_numbers_status ON virtual_numbers(status)`
	if _, err := s.db.Exec(index); err != nil {
		return fmt.Errorf("failed to create status index: %w", err)
	}
	return nil
}

// Close releases the connection pool
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

type numberRow struct {
	PhoneNumber  string    `db:"phone_number"`
	ID           string    `db:"id"`
	VendorID     string    `db:"vendor_id"`
	VendorHandle string    `db:"vendor_handle"`
	Product      string    `db:"product"`
	Country      string    `db:"country"`
	Operator     string    `db:"operator"`
	OTPs         []byte    `db:"otps"`
	Status       string    `db:"status"`
	CreatedAt    time.Time `db:"created_at"`
	ExpiresAt    time.Time `db:"expires_at"`
}

func (r *numberRow) toRecord() (*Record, error) {
	var otps []OTP
	if len(r.OTPs) > 0 {
		if err := json.Unmarshal(r.OTPs, &otps); err != nil {
			return nil, fmt.Errorf("failed to decode otps for %s: %w", r.PhoneNumber, err)
		}
	}

	return &Record{
		ID:           r.ID,
		PhoneNumber:  r.PhoneNumber,
		VendorID:     r.VendorID,
		VendorHandle: r.VendorHandle,
		Product:      r.Product,
		Country:      r.Country,
		Operator:     r.Operator,
		OTPs:         otps,
		CreatedAt:    r.CreatedAt,
		ExpiresAt:    r.ExpiresAt,
		Status:       Status(r.Status),
	}, nil
}

// Put inserts or replaces the record for its phone number
func (s *PostgresStore) Put(ctx context.Context, record *Record) error {
	otps, err := json.Marshal(record.OTPs)
	if err != nil {
		return fmt.Errorf("failed to encode otps: %w", err)
	}

	query := `
	INSERT INTO virtual_numbers
		(phone_number, id, vendor_id, vendor_handle, product, country, operator, otps, status, created_at, expires_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	ON CONFLICT (phone_number) DO UPDATE SET
		otps = EXCLUDED.otps,
		status = EXCLUDED.status`

	_, err = s.db.ExecContext(ctx, query,
		record.PhoneNumber, record.ID, record.VendorID, record.VendorHandle,
		record.Product, record.Country, record.Operator, otps,
		string(record.Status), record.CreatedAt, record.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to store record: %w", err)
	}
	return nil
}

// Get returns the record for a phone number, or ErrNotFound
func (s *PostgresStore) Get(ctx context.Context, phoneNumber string) (*Record, error) {
	var row numberRow
	err := s.db.GetContext(ctx, &row,
		`SELECT * FROM virtual_numbers WHERE phone_number = $1`, phoneNumber)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load record: %w", err)
	}
	return row.toRecord()
}

// Delete removes the record for a phone number
func (s *PostgresStore) Delete(ctx context.Context, phoneNumber string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM virtual_numbers WHERE phone_number = $1`, phoneNumber)
	if err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}
	return nil
}

// List returns all stored records
func (s *PostgresStore) List(ctx context.Context) ([]*Record, error) {
	var rows []numberRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT * FROM virtual_numbers ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}

	records := make([]*Record, 0, len(rows))
	for i := range rows {
		record, err := rows[i].toRecord()
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}
