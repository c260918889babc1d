// Package config handles loading of process settings from the environment
// and of the table list file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/BartekS5/tablesync/pkg/database"
	go_ora "github.com/sijms/go-ora/v2"
)

const (
	DefaultChunkSize   = 300000
	DefaultTablesFile  = "tables.yaml"
	DefaultStateFile   = "state.json"
	DefaultRecoveryDir = "failed-artifacts"
)

// Config holds all configuration for the application, loaded once from
// environment variables (populated by the .env file in main.go) and passed
// down explicitly.
type Config struct {
	Source SourceConfig
	Sink   SinkConfig
	State  StateConfig
	Log    LogConfig

	TablesFile  string
	ChunkSize   int
	Workers     int
	TempDir     string
	RecoveryDir string
}

type SourceConfig struct {
	Driver string
	DSN    string
}

type SinkConfig struct {
	Type      string // "s3" or "local"
	Endpoint  string
	Region    string
	Namespace string
	Bucket    string
	Prefix    string
	AccessKey string
	SecretKey string
	UseSSL    bool
	LocalDir  string
}

type StateConfig struct {
	Backend         string // "file" or "mongo"
	FilePath        string
	MongoConnString string
	MongoDatabase   string
	MongoCollection string
}

type LogConfig struct {
	Level  string
	Format string
	File   string
}

// LoadConfig reads and validates the environment.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		TablesFile:  getEnv("TABLES_CONFIG", DefaultTablesFile),
		TempDir:     os.Getenv("TEMP_DIR"),
		RecoveryDir: getEnv("RECOVERY_DIR", DefaultRecoveryDir),
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "console"),
			File:   os.Getenv("LOG_FILE"),
		},
	}

	var err error
	if cfg.ChunkSize, err = getEnvInt("CHUNK_SIZE", DefaultChunkSize); err != nil {
		return nil, err
	}
	if cfg.Workers, err = getEnvInt("SYNC_WORKERS", 1); err != nil {
		return nil, err
	}
	if cfg.Source, err = loadSource(); err != nil {
		return nil, err
	}
	if cfg.Sink, err = loadSink(); err != nil {
		return nil, err
	}
	if cfg.State, err = loadState(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that flags may override after loading.
func (c *Config) Validate() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("chunk size must be positive, got %d", c.ChunkSize)
	}
	if c.Workers <= 0 {
		return fmt.Errorf("worker count must be positive, got %d", c.Workers)
	}
	return nil
}

func loadSource() (SourceConfig, error) {
	src := SourceConfig{
		Driver: strings.ToLower(getEnv("SOURCE_DRIVER", database.DriverOracle)),
		DSN:    os.Getenv("SOURCE_DSN"),
	}
	if src.DSN != "" {
		return src, nil
	}

	switch src.Driver {
	case database.DriverOracle:
		dsn, err := oracleDSN()
		if err != nil {
			return src, err
		}
		src.DSN = dsn
	case database.DriverSQLServer:
		src.DSN = os.Getenv("SQL_CONNECTION_STRING")
		if src.DSN == "" {
			return src, errors.New("SQL_CONNECTION_STRING environment variable not set")
		}
	case database.DriverSQLite:
		return src, errors.New("SOURCE_DSN environment variable not set")
	default:
		return src, fmt.Errorf("unsupported SOURCE_DRIVER %q", src.Driver)
	}
	return src, nil
}

func oracleDSN() (string, error) {
	host := os.Getenv("ORACLE_HOST")
	service := os.Getenv("ORACLE_SERVICE_NAME")
	user := os.Getenv("ORACLE_USER")
	if host == "" || service == "" || user == "" {
		return "", errors.New("ORACLE_HOST, ORACLE_SERVICE_NAME and ORACLE_USER environment variables must be set")
	}
	port, err := getEnvInt("ORACLE_PORT", 1521)
	if err != nil {
		return "", err
	}
	return go_ora.BuildUrl(host, port, service, user, os.Getenv("ORACLE_PASSWORD"), nil), nil
}

func loadSink() (SinkConfig, error) {
	sink := SinkConfig{
		Type:      strings.ToLower(getEnv("SINK_TYPE", "s3")),
		Endpoint:  os.Getenv("S3_ENDPOINT"),
		Region:    os.Getenv("OCI_REGION"),
		Namespace: os.Getenv("OCI_NAMESPACE"),
		Bucket:    os.Getenv("OCI_BUCKET_NAME"),
		Prefix:    os.Getenv("SINK_PREFIX"),
		AccessKey: os.Getenv("S3_ACCESS_KEY"),
		SecretKey: os.Getenv("S3_SECRET_KEY"),
		LocalDir:  getEnv("LOCAL_SINK_DIR", "artifacts"),
	}
	useSSL, err := strconv.ParseBool(getEnv("S3_USE_SSL", "true"))
	if err != nil {
		return sink, fmt.Errorf("S3_USE_SSL: %w", err)
	}
	sink.UseSSL = useSSL

	switch sink.Type {
	case "local":
		return sink, nil
	case "s3":
	default:
		return sink, fmt.Errorf("unsupported SINK_TYPE %q", sink.Type)
	}

	if sink.Bucket == "" {
		return sink, errors.New("OCI_BUCKET_NAME environment variable not set")
	}
	if sink.Endpoint == "" {
		if sink.Namespace == "" || sink.Region == "" {
			return sink, errors.New("S3_ENDPOINT or both OCI_NAMESPACE and OCI_REGION must be set")
		}
		sink.Endpoint = OCIEndpoint(sink.Namespace, sink.Region)
	}
	if sink.AccessKey == "" || sink.SecretKey == "" {
		return sink, errors.New("S3_ACCESS_KEY and S3_SECRET_KEY environment variables must be set")
	}
	return sink, nil
}

// OCIEndpoint is the S3 compatibility endpoint of OCI Object Storage.
func OCIEndpoint(namespace, region string) string {
	return fmt.Sprintf("%s.compat.objectstorage.%s.oraclecloud.com", namespace, region)
}

// LoadStateConfig reads only the watermark store settings, for commands that
// never touch the source or the sink.
func LoadStateConfig() (StateConfig, error) {
	return loadState()
}

func loadState() (StateConfig, error) {
	st := StateConfig{
		Backend:         strings.ToLower(getEnv("STATE_BACKEND", "file")),
		FilePath:        getEnv("STATE_FILE", DefaultStateFile),
		MongoConnString: os.Getenv("MONGO_CONNECTION_STRING"),
		MongoDatabase:   getEnv("MONGO_DATABASE", "tablesync"),
		MongoCollection: getEnv("MONGO_COLLECTION", "watermarks"),
	}
	switch st.Backend {
	case "file":
	case "mongo":
		if st.MongoConnString == "" {
			return st, errors.New("MONGO_CONNECTION_STRING environment variable not set")
		}
	default:
		return st, fmt.Errorf("unsupported STATE_BACKEND %q", st.Backend)
	}
	return st, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}
