package models

import "time"

// Config represents the application configuration
type Config struct {
	Database  DatabaseConfig
	Scheduler SchedulerConfig
	Capture   CaptureConfig
	Storage   StorageConfig
	Lock      LockConfig
	Ledger    LedgerConfig
	Formance  FormanceConfig
	Notify    NotifyConfig
	HTTP      HTTPConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
	BusyTimeout     time.Duration
}

// SchedulerConfig holds scheduler loop settings
type SchedulerConfig struct {
	TickInterval     time.Duration
	ReapInterval     time.Duration
	SessionDeadline  time.Duration
	MaxDailyCaptures int
	EnrollmentsFile  string
}

// CaptureConfig holds capture device and verdict settings
type CaptureConfig struct {
	DeviceURL      string
	VerdictURL     string
	Timeout        time.Duration
	MinImageWidth  int
	MinImageHeight int
}

// StorageConfig holds object store settings
type StorageConfig struct {
	Backend            string // minio, disk, memory
	Endpoint           string
	AccessKey          string
	SecretKey          string
	Bucket             string
	UseSSL             bool
	FallbackDir        string
	KeyPrefix          string
	PublicBaseURL      string
	MaxAttempts        int
	InitialBackoff     time.Duration
	MaxBackoff         time.Duration
	MaxAttemptDuration time.Duration
}

// LockConfig holds per-user execution lock settings
type LockConfig struct {
	Backend       string // redis, sqlite, local
	LeaseTTL      time.Duration
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	KeyPrefix     string
}

// LedgerConfig holds earnings ledger settings
type LedgerConfig struct {
	Backend          string // sqlite, formance
	EarningRateCents int64
	MaxRetries       int
}

// FormanceConfig holds Formance Stack connection settings
type FormanceConfig struct {
	StackURL     string
	ClientID     string
	ClientSecret string
	LedgerName   string
}

// NotifyConfig holds notification publisher settings
type NotifyConfig struct {
	Backend string // log, nats
	NatsURL string
	Subject string
}

// HTTPConfig holds API server settings
type HTTPConfig struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}
