// Package config holds the runtime configuration of the wallet processes.
// Values come from an optional .env file and the process environment; every
// process validates the whole struct once at startup.
package config

import (
	"errors"
	"strings"
	"time"
)

// Config holds the complete configuration shared by the wallet API and the
// settlement processor.
type Config struct {
	Application ApplicationConfig
	Logging     LoggingConfig
	Server      ServerConfig
	Kafka       KafkaConfig
	Postgres    PostgresConfig
	MongoDB     MongoDBConfig
	Redis       RedisConfig
	Lightning   LightningConfig
	Fees        FeesConfig
	Price       PriceConfig
	Wallet      WalletConfig
	Outbox      OutboxConfig
	Reconciler  ReconcilerConfig
	WorkerPool  WorkerPoolConfig
	Jobs        JobsConfig
}

// ApplicationConfig contains general application configuration
type ApplicationConfig struct {
	Env  string
	Name string
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level string
}

// ServerConfig contains HTTP server configuration settings
type ServerConfig struct {
	Port            int
	ShutdownTimeout time.Duration
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
}

// KafkaConfig contains Kafka configuration
type KafkaConfig struct {
	Brokers            string
	InvoiceTopic       string // invoice settlement events emitted by the node watcher
	OnChainTopic       string // on-chain transactions emitted by the chain watcher
	WalletEventsTopic  string // ledger events published from the outbox
	NotificationsTopic string
	DLQTopic           string
	NumPartitions      int
	ReplicationFactor  int
	ConsumerGroup      string
	MinBytes           int
	MaxBytes           int
	MaxWait            time.Duration
	StartOffset        int64
}

// PostgresConfig contains PostgreSQL configuration
type PostgresConfig struct {
	URL             string
	MaxConns        int32
	MinConns        int32
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	MigrationsPath  string
}

// MongoDBConfig contains MongoDB configuration
type MongoDBConfig struct {
	URI             string
	Database        string
	Timeout         time.Duration
	MaxPoolSize     uint64
	MinPoolSize     uint64
	MaxConnIdleTime time.Duration
}

// RedisConfig contains the redis connection and the keys shared between processes.
type RedisConfig struct {
	URL            string
	Password       string
	PriceKey       string
	PaymentLockTTL time.Duration
}

// LightningConfig contains the LND gRPC connection settings.
type LightningConfig struct {
	Host           string
	TLSCertPath    string
	MacaroonHex    string
	RequestTimeout time.Duration
	PaymentTimeout time.Duration
}

// FeesConfig bounds the routing fee accepted for an outgoing payment.
type FeesConfig struct {
	BaseFeeFloor       int64
	FeeRateBasisPoints int64
	MaxFeeCeiling      int64
}

// PriceConfig configures the spot price source and its refresh schedule.
type PriceConfig struct {
	SourceURL       string
	RefreshSchedule string
	RequestTimeout  time.Duration
	MaxAge          time.Duration // 0 accepts snapshots of any age
}

// WalletConfig contains wallet level business parameters.
type WalletConfig struct {
	MemoSharingThreshold int64
	ActivityThreshold    int64
	ActivityWindow       time.Duration
	FiatInvoiceExpiry    time.Duration // 0 keeps the node default
	DefaultInvoiceExpiry time.Duration // 0 keeps the node default
	BankOwnerWalletID    string
	FunderWalletID       string
}

// OutboxConfig contains outbox pattern configuration
type OutboxConfig struct {
	PollingInterval  time.Duration
	BatchSize        int
	MaxRetryAttempts int
}

// ReconcilerConfig controls the pending payment and invoice sweeps.
type ReconcilerConfig struct {
	Interval  time.Duration
	BatchSize int
}

// WorkerPoolConfig contains worker pool configuration
type WorkerPoolConfig struct {
	Size        int // ants pool capacity
	Concurrency int // workers per scan
}

// JobsConfig holds cron expressions for scheduled jobs.
type JobsConfig struct {
	DailyBalanceSchedule string
	InvoiceSweepSchedule string
}

type validator struct {
	problems []string
}

func (v *validator) check(ok bool, problem string) {
	if !ok {
		v.problems = append(v.problems, problem)
	}
}

// validate collects every invalid value so a misconfigured deployment fails
// with the full list instead of one problem at a time.
func (c *Config) validate() error {
	v := &validator{}

	// Server
	v.check(c.Server.Port > 0, "SERVER_PORT must be greater than 0")
	v.check(c.Server.ShutdownTimeout > 0, "SERVER_SHUTDOWN_TIMEOUT must be greater than 0")
	v.check(c.Server.ReadTimeout > 0, "SERVER_READ_TIMEOUT must be greater than 0")
	v.check(c.Server.WriteTimeout > 0, "SERVER_WRITE_TIMEOUT must be greater than 0")
	v.check(c.Server.IdleTimeout > 0, "SERVER_IDLE_TIMEOUT must be greater than 0")

	// Kafka
	v.check(c.Kafka.Brokers != "", "KAFKA_BROKERS is required")
	v.check(c.Kafka.InvoiceTopic != "", "KAFKA_INVOICE_TOPIC is required")
	v.check(c.Kafka.OnChainTopic != "", "KAFKA_ONCHAIN_TOPIC is required")
	v.check(c.Kafka.WalletEventsTopic != "", "KAFKA_WALLET_EVENTS_TOPIC is required")
	v.check(c.Kafka.NotificationsTopic != "", "KAFKA_NOTIFICATIONS_TOPIC is required")
	v.check(c.Kafka.DLQTopic != "", "KAFKA_DLQ_TOPIC is required")
	v.check(c.Kafka.ConsumerGroup != "", "KAFKA_CONSUMER_GROUP is required")
	v.check(c.Kafka.MinBytes > 0, "KAFKA_CONSUMER_MIN_BYTES must be greater than 0")
	v.check(c.Kafka.MaxBytes > 0, "KAFKA_CONSUMER_MAX_BYTES must be greater than 0")
	v.check(c.Kafka.MaxWait > 0, "KAFKA_CONSUMER_MAX_WAIT must be greater than 0")

	// PostgreSQL
	v.check(c.Postgres.URL != "", "POSTGRES_URL is required")
	v.check(c.Postgres.MaxConns > 0, "POSTGRES_MAX_CONNS must be greater than 0")
	v.check(c.Postgres.MinConns > 0, "POSTGRES_MIN_CONNS must be greater than 0")
	v.check(c.Postgres.ConnMaxLifetime > 0, "POSTGRES_MAX_CONN_LIFETIME must be greater than 0")
	v.check(c.Postgres.ConnMaxIdleTime > 0, "POSTGRES_MAX_CONN_IDLE_TIME must be greater than 0")

	// MongoDB
	v.check(c.MongoDB.URI != "", "MONGO_URI is required")
	v.check(c.MongoDB.Database != "", "MONGO_DATABASE is required")
	v.check(c.MongoDB.Timeout > 0, "MONGO_TIMEOUT must be greater than 0")
	v.check(c.MongoDB.MaxPoolSize > 0, "MONGO_MAX_POOL_SIZE must be greater than 0")
	v.check(c.MongoDB.MinPoolSize > 0, "MONGO_MIN_POOL_SIZE must be greater than 0")

	// Redis
	v.check(c.Redis.URL != "", "REDIS_URL is required")
	v.check(c.Redis.PriceKey != "", "REDIS_PRICE_KEY is required")
	v.check(c.Redis.PaymentLockTTL > 0, "REDIS_PAYMENT_LOCK_TTL must be greater than 0")

	// Lightning
	v.check(c.Lightning.Host != "", "LND_HOST is required")
	v.check(c.Lightning.RequestTimeout > 0, "LND_REQUEST_TIMEOUT must be greater than 0")
	v.check(c.Lightning.PaymentTimeout > 0, "LND_PAYMENT_TIMEOUT must be greater than 0")

	// Fees
	v.check(c.Fees.BaseFeeFloor >= 0, "FEE_BASE_FLOOR must not be negative")
	v.check(c.Fees.FeeRateBasisPoints >= 0, "FEE_RATE_BASIS_POINTS must not be negative")
	v.check(c.Fees.MaxFeeCeiling > 0, "FEE_MAX_CEILING must be greater than 0")

	// Price
	v.check(c.Price.SourceURL != "", "PRICE_SOURCE_URL is required")
	v.check(c.Price.RefreshSchedule != "", "PRICE_REFRESH_SCHEDULE is required")
	v.check(c.Price.RequestTimeout > 0, "PRICE_REQUEST_TIMEOUT must be greater than 0")
	v.check(c.Price.MaxAge >= 0, "PRICE_MAX_AGE must not be negative")

	// Wallet
	v.check(c.Wallet.MemoSharingThreshold >= 0, "WALLET_MEMO_SHARING_THRESHOLD must not be negative")
	v.check(c.Wallet.ActivityThreshold >= 0, "WALLET_ACTIVITY_THRESHOLD must not be negative")
	v.check(c.Wallet.ActivityWindow > 0, "WALLET_ACTIVITY_WINDOW must be greater than 0")
	v.check(c.Wallet.FiatInvoiceExpiry >= 0, "WALLET_FIAT_INVOICE_EXPIRY must not be negative")

	// Outbox and reconciliation
	v.check(c.Outbox.PollingInterval > 0, "OUTBOX_POLLING_INTERVAL must be greater than 0")
	v.check(c.Outbox.BatchSize > 0, "OUTBOX_BATCH_SIZE must be greater than 0")
	v.check(c.Outbox.MaxRetryAttempts > 0, "OUTBOX_MAX_RETRY_ATTEMPTS must be greater than 0")
	v.check(c.Reconciler.Interval > 0, "RECONCILER_INTERVAL must be greater than 0")
	v.check(c.Reconciler.BatchSize > 0, "RECONCILER_BATCH_SIZE must be greater than 0")

	// Workers and jobs
	v.check(c.WorkerPool.Size > 0, "WORKER_POOL_SIZE must be greater than 0")
	v.check(c.WorkerPool.Concurrency > 0, "WORKER_POOL_CONCURRENCY must be greater than 0")
	v.check(c.Jobs.DailyBalanceSchedule != "", "JOBS_DAILY_BALANCE_SCHEDULE is required")
	v.check(c.Jobs.InvoiceSweepSchedule != "", "JOBS_INVOICE_SWEEP_SCHEDULE is required")

	if len(v.problems) > 0 {
		return errors.New(strings.Join(v.problems, ", "))
	}
	return nil
}
