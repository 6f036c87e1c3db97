/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"capture-scheduler-go/internal/models"
	"capture-scheduler-go/internal/store"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// Compile-time checks: *Service must satisfy both store contracts.
var (
	_ store.CaptureStore = (*Service)(nil)
	_ store.LedgerStore  = (*Service)(nil)
)

const defaultLedgerRetries = 5

type Service struct {
	db        *sql.DB
	subledger *SubledgerService
}

func NewService(ctx context.Context, cfg models.DatabaseConfig, ledgerRetries int) (*Service, error) {
	// Validate configuration
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}
	if cfg.MaxOpenConns <= 0 {
		return nil, fmt.Errorf("max open connections must be positive, got %d", cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns < 0 {
		return nil, fmt.Errorf("max idle connections cannot be negative, got %d", cfg.MaxIdleConns)
	}
	if cfg.PingTimeout <= 0 {
		return nil, fmt.Errorf("ping timeout must be positive, got %v", cfg.PingTimeout)
	}

	// _txlock=immediate takes the write lock at BEGIN so same-user ledger writers serialize
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=1000&_busy_timeout=%d&_txlock=immediate",
		cfg.Path, cfg.BusyTimeout.Milliseconds())

	zap.L().Info("Opening SQLite database", zap.String("file", cfg.Path))
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to open database: %w", err)
	}

	// Set connection timeouts and limits
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	// Test connection with timeout
	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, closeErr
		}
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	service := newService(db, ledgerRetries)
	if err := service.initSchema(); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, closeErr
		}
		return nil, fmt.Errorf("unable to initialize schema: %w", err)
	}

	zap.L().Info("Database service initialized successfully")
	return service, nil
}

func newService(db *sql.DB, ledgerRetries int) *Service {
	if ledgerRetries <= 0 {
		ledgerRetries = defaultLedgerRetries
	}
	return &Service{db: db, subledger: NewSubledgerService(db, ledgerRetries)}
}

func (s *Service) Close() {
	if err := s.db.Close(); err != nil {
		zap.L().Warn("Failed to close database connection", zap.Error(err))
	}
}

// Ping checks database connectivity for health probes
func (s *Service) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Service) initSchema() error {
	schema := `
	-- Schedules are soft-deleted only (archived = 1)
	CREATE TABLE IF NOT EXISTS schedules (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT NOT NULL,
		frequency_seconds INTEGER NOT NULL CHECK (frequency_seconds >= 3600),
		active BOOLEAN NOT NULL DEFAULT 1,
		archived BOOLEAN NOT NULL DEFAULT 0,
		notifications_enabled BOOLEAN NOT NULL DEFAULT 1,
		silent_mode BOOLEAN NOT NULL DEFAULT 0,
		last_triggered_at TIMESTAMP,
		trigger_count INTEGER NOT NULL DEFAULT 0,
		paused_at TIMESTAMP,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_schedules_user_id ON schedules(user_id);
	CREATE INDEX IF NOT EXISTS idx_schedules_active ON schedules(active, archived);

	CREATE TABLE IF NOT EXISTS capture_sessions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		schedule_id INTEGER REFERENCES schedules(id),
		status TEXT NOT NULL,
		started_at TIMESTAMP NOT NULL,
		completed_at TIMESTAMP,
		failure_reason TEXT,
		photo_id TEXT,
		earnings_cents INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_capture_sessions_user_started ON capture_sessions(user_id, started_at);
	CREATE INDEX IF NOT EXISTS idx_capture_sessions_status ON capture_sessions(status);
	-- At most one live session per user
	CREATE UNIQUE INDEX IF NOT EXISTS idx_capture_sessions_one_live ON capture_sessions(user_id)
		WHERE status NOT IN ('SUCCEEDED', 'FAILED');

	-- Artifacts are written once; there is no update path
	CREATE TABLE IF NOT EXISTS photo_artifacts (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL UNIQUE REFERENCES capture_sessions(id),
		user_id TEXT NOT NULL,
		storage_key TEXT,
		storage_tier TEXT NOT NULL DEFAULT '',
		size_bytes INTEGER NOT NULL,
		checksum TEXT NOT NULL,
		captured_at TIMESTAMP NOT NULL,
		is_valid BOOLEAN NOT NULL,
		verdict_notes TEXT NOT NULL DEFAULT '',
		consent_version INTEGER,
		monetizable BOOLEAN NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_photo_artifacts_user_captured ON photo_artifacts(user_id, captured_at);

	CREATE TABLE IF NOT EXISTS consent_records (
		user_id TEXT NOT NULL,
		version INTEGER NOT NULL,
		scope TEXT NOT NULL,
		granted_at TIMESTAMP NOT NULL,
		revoked_at TIMESTAMP,
		PRIMARY KEY (user_id, version)
	);

	-- Lease locks for per-user capture exclusivity
	CREATE TABLE IF NOT EXISTS user_locks (
		user_id TEXT PRIMARY KEY,
		holder TEXT NOT NULL,
		expires_at TIMESTAMP NOT NULL
	);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return err
	}

	// Initialize subledger schema
	if err := s.subledger.InitSchema(); err != nil {
		return fmt.Errorf("unable to initialize subledger schema: %w", err)
	}
	return nil
}

// Subledger convenience methods

func (s *Service) AppendEarning(ctx context.Context, params store.AppendEarningParams) (*models.EarningEvent, error) {
	return s.subledger.AppendEarning(ctx, params)
}

func (s *Service) GetBalance(ctx context.Context, userId string) (*models.EarningBalance, error) {
	return s.subledger.GetBalance(ctx, userId)
}

func (s *Service) ListBalances(ctx context.Context) ([]models.EarningBalance, error) {
	return s.subledger.GetAllBalances(ctx)
}

func (s *Service) GetEarningHistory(ctx context.Context, userId string, limit, offset int) ([]models.EarningEvent, error) {
	return s.subledger.GetEarningHistory(ctx, userId, limit, offset)
}

func (s *Service) ReconcileBalance(ctx context.Context, userId string) error {
	return s.subledger.ReconcileBalance(ctx, userId)
}

// closeRows closes a result set, logging failures
func closeRows(rows *sql.Rows) {
	if err := rows.Close(); err != nil {
		zap.L().Warn("Failed to close rows", zap.Error(err))
	}
}

func nullTimePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}

func nullStringPtr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

func nullInt64Ptr(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}
