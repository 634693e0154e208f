// Package config provides configuration loading, defaults, and validation for
// the PharmaRef service.
package config

import "time"

const (
	DefaultServerPort = 8080
	DefaultServerMode = "release"

	DefaultDBHost     = "localhost"
	DefaultDBPort     = 5432
	DefaultDBName     = "pharmaref"
	DefaultDBUser     = "pharmaref"
	DefaultDBMaxConns = 25

	DefaultMigrationPath = "migrations"

	DefaultRedisAddr      = "localhost:6379"
	DefaultRedisKeyPrefix = "pharmaref:"
	DefaultRedisTTL       = 5 * time.Minute

	DefaultKafkaBroker = "localhost:9092"

	DefaultMFDSBaseURL = "http://apis.data.go.kr/1471000/DrugPrdtPrmsnInfoService05/getDrugPrdtPrmsnInq05"
	DefaultMFDSPage    = 100

	DefaultPubChemBaseURL = "https://pubchem.ncbi.nlm.nih.gov/rest/pug"

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	DefaultMetricsNamespace = "pharmaref"
)

// ApplyDefaults fills every zero-value field in cfg with the service default.
// Fields that have already been set by the caller (non-zero values) are left
// unchanged so that explicit configuration always wins.  It must be called
// after unmarshalling raw config data and before Validate().
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}

	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultServerPort
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = DefaultServerMode
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 15 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 30 * time.Second
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 30 * time.Second
	}

	if cfg.Database.Host == "" {
		cfg.Database.Host = DefaultDBHost
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = DefaultDBPort
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = DefaultDBName
	}
	if cfg.Database.User == "" {
		cfg.Database.User = DefaultDBUser
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = DefaultDBMaxConns
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MigrationPath == "" {
		cfg.Database.MigrationPath = DefaultMigrationPath
	}

	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = DefaultRedisAddr
	}
	if cfg.Redis.KeyPrefix == "" {
		cfg.Redis.KeyPrefix = DefaultRedisKeyPrefix
	}
	if cfg.Redis.DefaultTTL == 0 {
		cfg.Redis.DefaultTTL = DefaultRedisTTL
	}

	if len(cfg.Kafka.Brokers) == 0 {
		cfg.Kafka.Brokers = []string{DefaultKafkaBroker}
	}
	if cfg.Kafka.Acks == "" {
		cfg.Kafka.Acks = "one"
	}
	if cfg.Kafka.ReplicationFactor == 0 {
		cfg.Kafka.ReplicationFactor = 1
	}
	if cfg.Kafka.NumPartitions == 0 {
		cfg.Kafka.NumPartitions = 3
	}

	if cfg.MFDS.BaseURL == "" {
		cfg.MFDS.BaseURL = DefaultMFDSBaseURL
	}
	if cfg.MFDS.Timeout == 0 {
		cfg.MFDS.Timeout = 30 * time.Second
	}
	if cfg.MFDS.PageSize == 0 {
		cfg.MFDS.PageSize = DefaultMFDSPage
	}

	if cfg.PubChem.BaseURL == "" {
		cfg.PubChem.BaseURL = DefaultPubChemBaseURL
	}
	if cfg.PubChem.Timeout == 0 {
		cfg.PubChem.Timeout = 30 * time.Second
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}

	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = DefaultMetricsNamespace
	}
}

// NewDefaultConfig returns a Config populated entirely with defaults.
// Intended for local development and tests; production deployments should
// load explicit configuration.
func NewDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
