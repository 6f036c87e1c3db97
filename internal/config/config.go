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

package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"capture-scheduler-go/internal/models"
)

func Load() (*models.Config, error) {
	connMaxLifetime, err := getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute)
	if err != nil {
		return nil, err
	}

	connMaxIdleTime, err := getEnvDuration("DB_CONN_MAX_IDLE_TIME", 30*time.Second)
	if err != nil {
		return nil, err
	}

	pingTimeout, err := getEnvDuration("DB_PING_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, err
	}

	busyTimeout, err := getEnvDuration("DB_BUSY_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, err
	}

	tickInterval, err := getEnvDuration("SCHEDULER_TICK_INTERVAL", 60*time.Second)
	if err != nil {
		return nil, err
	}

	reapInterval, err := getEnvDuration("SCHEDULER_REAP_INTERVAL", 5*time.Minute)
	if err != nil {
		return nil, err
	}

	sessionDeadline, err := getEnvDuration("SESSION_DEADLINE", 2*time.Minute)
	if err != nil {
		return nil, err
	}

	captureTimeout, err := getEnvDuration("CAPTURE_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}

	initialBackoff, err := getEnvDuration("STORAGE_INITIAL_BACKOFF", 200*time.Millisecond)
	if err != nil {
		return nil, err
	}

	maxBackoff, err := getEnvDuration("STORAGE_MAX_BACKOFF", 5*time.Second)
	if err != nil {
		return nil, err
	}

	maxAttemptDuration, err := getEnvDuration("STORAGE_MAX_ATTEMPT_DURATION", 30*time.Second)
	if err != nil {
		return nil, err
	}

	leaseTTL, err := getEnvDuration("LOCK_LEASE_TTL", 5*time.Minute)
	if err != nil {
		return nil, err
	}

	httpReadTimeout, err := getEnvDuration("HTTP_READ_TIMEOUT", 15*time.Second)
	if err != nil {
		return nil, err
	}

	httpWriteTimeout, err := getEnvDuration("HTTP_WRITE_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}

	httpShutdownTimeout, err := getEnvDuration("HTTP_SHUTDOWN_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}

	cfg := &models.Config{
		Database: models.DatabaseConfig{
			Path:            getEnvString("DATABASE_PATH", "captures.db"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: connMaxLifetime,
			ConnMaxIdleTime: connMaxIdleTime,
			PingTimeout:     pingTimeout,
			BusyTimeout:     busyTimeout,
		},
		Scheduler: models.SchedulerConfig{
			TickInterval:     tickInterval,
			ReapInterval:     reapInterval,
			SessionDeadline:  sessionDeadline,
			MaxDailyCaptures: getEnvInt("MAX_DAILY_CAPTURES", 10),
			EnrollmentsFile:  getEnvString("ENROLLMENTS_FILE", "enrollments.yaml"),
		},
		Capture: models.CaptureConfig{
			DeviceURL:      getEnvString("CAPTURE_DEVICE_URL", ""),
			VerdictURL:     getEnvString("VERDICT_URL", ""),
			Timeout:        captureTimeout,
			MinImageWidth:  getEnvInt("MIN_IMAGE_WIDTH", 64),
			MinImageHeight: getEnvInt("MIN_IMAGE_HEIGHT", 64),
		},
		Storage: models.StorageConfig{
			Backend:            getEnvString("STORAGE_BACKEND", "minio"),
			Endpoint:           getEnvString("STORAGE_ENDPOINT", "localhost:9000"),
			AccessKey:          getEnvString("STORAGE_ACCESS_KEY", ""),
			SecretKey:          getEnvString("STORAGE_SECRET_KEY", ""),
			Bucket:             getEnvString("STORAGE_BUCKET", "captured-photos"),
			UseSSL:             getEnvBool("STORAGE_USE_SSL", false),
			FallbackDir:        getEnvString("STORAGE_FALLBACK_DIR", "captured_photos"),
			KeyPrefix:          getEnvString("STORAGE_KEY_PREFIX", "photos"),
			PublicBaseURL:      getEnvString("PHOTO_BASE_URL", ""),
			MaxAttempts:        getEnvInt("STORAGE_MAX_ATTEMPTS", 3),
			InitialBackoff:     initialBackoff,
			MaxBackoff:         maxBackoff,
			MaxAttemptDuration: maxAttemptDuration,
		},
		Lock: models.LockConfig{
			Backend:       getEnvString("LOCK_BACKEND", "sqlite"),
			LeaseTTL:      leaseTTL,
			RedisAddr:     getEnvString("REDIS_ADDR", "localhost:6379"),
			RedisPassword: getEnvString("REDIS_PASSWORD", ""),
			RedisDB:       getEnvInt("REDIS_DB", 0),
			KeyPrefix:     getEnvString("LOCK_KEY_PREFIX", "capture:lock:"),
		},
		Ledger: models.LedgerConfig{
			Backend:          getEnvString("LEDGER_BACKEND", "sqlite"),
			EarningRateCents: int64(getEnvInt("EARNING_RATE_CENTS", 5)),
			MaxRetries:       getEnvInt("LEDGER_MAX_RETRIES", 5),
		},
		Formance: models.FormanceConfig{
			StackURL:     getEnvString("FORMANCE_STACK_URL", ""),
			ClientID:     getEnvString("FORMANCE_CLIENT_ID", ""),
			ClientSecret: getEnvString("FORMANCE_CLIENT_SECRET", ""),
			LedgerName:   getEnvString("FORMANCE_LEDGER", "capture-earnings"),
		},
		Notify: models.NotifyConfig{
			Backend: getEnvString("NOTIFY_BACKEND", "log"),
			NatsURL: getEnvString("NATS_URL", "nats://127.0.0.1:4222"),
			Subject: getEnvString("NOTIFY_SUBJECT", "capture.notifications"),
		},
		HTTP: models.HTTPConfig{
			Addr:            getEnvString("HTTP_ADDR", ":8080"),
			ReadTimeout:     httpReadTimeout,
			WriteTimeout:    httpWriteTimeout,
			ShutdownTimeout: httpShutdownTimeout,
		},
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints between timeouts
func Validate(cfg *models.Config) error {
	if cfg.Scheduler.TickInterval <= 0 {
		return fmt.Errorf("scheduler tick interval must be positive, got %v", cfg.Scheduler.TickInterval)
	}
	if cfg.Capture.Timeout >= cfg.Scheduler.SessionDeadline {
		return fmt.Errorf("capture timeout %v must be shorter than session deadline %v", cfg.Capture.Timeout, cfg.Scheduler.SessionDeadline)
	}
	if cfg.Scheduler.SessionDeadline >= cfg.Lock.LeaseTTL {
		return fmt.Errorf("session deadline %v must be shorter than lock lease ttl %v", cfg.Scheduler.SessionDeadline, cfg.Lock.LeaseTTL)
	}
	if cfg.Storage.MaxAttempts <= 0 {
		return fmt.Errorf("storage max attempts must be positive, got %d", cfg.Storage.MaxAttempts)
	}
	if cfg.Ledger.EarningRateCents < 0 {
		return fmt.Errorf("earning rate cannot be negative, got %d", cfg.Ledger.EarningRateCents)
	}
	return nil
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	if value := os.Getenv(key); value != "" {
		duration, err := time.ParseDuration(value)
		if err != nil {
			return 0, fmt.Errorf("invalid duration for %s: %q (%w)", key, value, err)
		}
		return duration, nil
	}
	return defaultValue, nil
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
