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

const (
	scheduleColumns = `id, user_id, frequency_seconds, active, archived, notifications_enabled, silent_mode,
		last_triggered_at, trigger_count, paused_at, created_at, updated_at`

	sessionColumns = `id, user_id, schedule_id, status, started_at, completed_at, failure_reason, photo_id, earnings_cents`

	artifactColumns = `id, session_id, user_id, storage_key, storage_tier, size_bytes, checksum, captured_at,
		is_valid, verdict_notes, consent_version, monetizable`

	eventColumns = `id, user_id, photo_id, session_id, amount_cents, balance_after_cents, reason, created_at`

	// Schedule queries
	queryInsertSchedule = `
		INSERT INTO schedules (user_id, frequency_seconds, active, archived, notifications_enabled, silent_mode,
			trigger_count, created_at, updated_at)
		VALUES (?, ?, 1, 0, ?, ?, 0, ?, ?)
		RETURNING ` + scheduleColumns

	queryGetSchedule = `
		SELECT ` + scheduleColumns + `
		FROM schedules
		WHERE id = ?`

	queryGetSchedulesByUser = `
		SELECT ` + scheduleColumns + `
		FROM schedules
		WHERE user_id = ?
		ORDER BY id`

	queryGetActiveSchedules = `
		SELECT ` + scheduleColumns + `
		FROM schedules
		WHERE active = 1 AND archived = 0
		ORDER BY id ASC`

	queryUpdateScheduleSettings = `
		UPDATE schedules
		SET frequency_seconds = ?, notifications_enabled = ?, silent_mode = ?, updated_at = ?
		WHERE id = ?`

	queryUpdateScheduleActive = `
		UPDATE schedules
		SET active = ?, paused_at = ?, updated_at = ?
		WHERE id = ? AND archived = 0`

	queryArchiveSchedule = `
		UPDATE schedules
		SET active = 0, archived = 1, updated_at = ?
		WHERE id = ?`

	// last_triggered_at never moves backwards even when completions arrive out of order
	queryRecordTrigger = `
		UPDATE schedules
		SET trigger_count = trigger_count + 1,
		    last_triggered_at = CASE
		        WHEN last_triggered_at IS NULL OR last_triggered_at < ? THEN ?
		        ELSE last_triggered_at
		    END,
		    updated_at = ?
		WHERE id = ?`

	// Session queries
	queryInsertSession = `
		INSERT INTO capture_sessions (id, user_id, schedule_id, status, started_at, earnings_cents)
		VALUES (?, ?, ?, 'PENDING', ?, 0)
		RETURNING ` + sessionColumns

	queryGetSession = `
		SELECT ` + sessionColumns + `
		FROM capture_sessions
		WHERE id = ?`

	queryGetSessionsByUser = `
		SELECT ` + sessionColumns + `
		FROM capture_sessions
		WHERE user_id = ?
		ORDER BY started_at DESC
		LIMIT ? OFFSET ?`

	queryTransitionSession = `
		UPDATE capture_sessions
		SET status = ?,
		    completed_at = ?,
		    failure_reason = NULLIF(?, ''),
		    photo_id = COALESCE(NULLIF(?, ''), photo_id),
		    earnings_cents = ?
		WHERE id = ? AND status NOT IN ('SUCCEEDED', 'FAILED')`

	queryCountSessionsSince = `
		SELECT COUNT(*)
		FROM capture_sessions
		WHERE user_id = ? AND started_at >= ?`

	queryFailStaleSessions = `
		UPDATE capture_sessions
		SET status = 'FAILED', completed_at = ?, failure_reason = ?
		WHERE status NOT IN ('SUCCEEDED', 'FAILED') AND started_at < ?`

	queryAbandonUserSessions = `
		UPDATE capture_sessions
		SET status = 'FAILED', completed_at = ?, failure_reason = ?
		WHERE user_id = ? AND status NOT IN ('SUCCEEDED', 'FAILED')`

	// Artifact queries
	queryInsertArtifact = `
		INSERT INTO photo_artifacts (` + artifactColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	queryGetArtifact = `
		SELECT ` + artifactColumns + `
		FROM photo_artifacts
		WHERE id = ?`

	queryGetArtifactsByUser = `
		SELECT ` + artifactColumns + `
		FROM photo_artifacts
		WHERE user_id = ?
		ORDER BY captured_at DESC
		LIMIT ? OFFSET ?`

	// Consent queries
	queryMaxConsentVersion = `
		SELECT COALESCE(MAX(version), 0)
		FROM consent_records
		WHERE user_id = ?`

	querySupersedeConsent = `
		UPDATE consent_records
		SET revoked_at = ?
		WHERE user_id = ? AND revoked_at IS NULL`

	queryInsertConsent = `
		INSERT INTO consent_records (user_id, version, scope, granted_at)
		VALUES (?, ?, ?, ?)`

	queryRevokeConsent = `
		UPDATE consent_records
		SET revoked_at = ?
		WHERE user_id = ? AND version = ? AND revoked_at IS NULL`

	queryConsentExists = `
		SELECT 1 FROM consent_records WHERE user_id = ? AND version = ?`

	queryCurrentConsent = `
		SELECT user_id, version, scope, granted_at, revoked_at
		FROM consent_records
		WHERE user_id = ? AND revoked_at IS NULL
		ORDER BY version DESC
		LIMIT 1`

	// Balance queries
	queryGetBalance = `
		SELECT user_id, balance_cents, COALESCE(last_event_id, ''), version, updated_at
		FROM earning_balances
		WHERE user_id = ?`

	queryGetAllBalances = `
		SELECT user_id, balance_cents, COALESCE(last_event_id, ''), version, updated_at
		FROM earning_balances
		ORDER BY user_id`

	queryReconcileBalance = `
		SELECT COALESCE(SUM(amount_cents), 0) as calculated_balance
		FROM earning_events
		WHERE user_id = ?`

	// Earning event queries
	queryCheckDuplicateEarning = `
		SELECT id FROM earning_events WHERE photo_id = ? LIMIT 1`

	queryGetBalanceVersion = `
		SELECT balance_cents, version
		FROM earning_balances
		WHERE user_id = ?`

	queryInsertBalance = `
		INSERT INTO earning_balances (user_id, balance_cents, version, updated_at)
		VALUES (?, 0, 1, ?)`

	queryInsertEarningEvent = `
		INSERT INTO earning_events (
			id, user_id, photo_id, session_id, amount_cents, balance_before_cents, balance_after_cents, reason, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING ` + eventColumns

	queryUpdateBalance = `
		UPDATE earning_balances
		SET balance_cents = ?, last_event_id = ?, version = version + 1, updated_at = ?
		WHERE user_id = ? AND version = ?`

	queryInsertJournalEntry = `
		INSERT INTO journal_entries (id, event_id, account_type, account_id, debit_cents, credit_cents, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	queryGetEarningHistory = `
		SELECT ` + eventColumns + `
		FROM earning_events
		WHERE user_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ? OFFSET ?`

	// Lease lock queries
	queryAcquireLease = `
		INSERT INTO user_locks (user_id, holder, expires_at)
		VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE
		SET holder = excluded.holder, expires_at = excluded.expires_at
		WHERE user_locks.expires_at <= ?`

	queryReleaseLease = `
		DELETE FROM user_locks WHERE user_id = ? AND holder = ?`
)
