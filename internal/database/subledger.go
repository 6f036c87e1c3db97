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
	"database/sql"
	"time"
)

// SubledgerService handles the earnings ledger
type SubledgerService struct {
	db         *sql.DB
	maxRetries int
	retryDelay time.Duration
}

func NewSubledgerService(db *sql.DB, maxRetries int) *SubledgerService {
	return &SubledgerService{
		db:         db,
		maxRetries: maxRetries,
		retryDelay: 10 * time.Millisecond,
	}
}

func (s *SubledgerService) InitSchema() error {
	schema := `
	-- Earning Balances Table (Current State - Hot Data)
	CREATE TABLE IF NOT EXISTS earning_balances (
		user_id TEXT PRIMARY KEY,
		balance_cents INTEGER NOT NULL DEFAULT 0,
		last_event_id TEXT,
		version INTEGER NOT NULL DEFAULT 1,
		updated_at TIMESTAMP NOT NULL
	);

	-- Earning Events Table (Append-only Audit Trail - Cold Data)
	CREATE TABLE IF NOT EXISTS earning_events (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		photo_id TEXT UNIQUE,
		session_id TEXT NOT NULL DEFAULT '',
		amount_cents INTEGER NOT NULL,
		balance_before_cents INTEGER NOT NULL,
		balance_after_cents INTEGER NOT NULL,
		reason TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_earning_events_user_id ON earning_events(user_id);
	CREATE INDEX IF NOT EXISTS idx_earning_events_created_at ON earning_events(created_at);

	-- Double-entry journal: user earnings are credited against the incentive expense account
	CREATE TABLE IF NOT EXISTS journal_entries (
		id TEXT PRIMARY KEY,
		event_id TEXT NOT NULL,
		account_type TEXT NOT NULL,
		account_id TEXT NOT NULL,
		debit_cents INTEGER NOT NULL DEFAULT 0,
		credit_cents INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_journal_event_id ON journal_entries(event_id);
	CREATE INDEX IF NOT EXISTS idx_journal_account ON journal_entries(account_type, account_id);
	`

	_, err := s.db.Exec(schema)
	return err
}
