package config

import (
	"errors"
	"io/fs"
	"time"

	"github.com/Gobusters/ectoenv"
	"github.com/joho/godotenv"
)

type Config struct {
	AppName                       string   `env:"APP_NAME" env-default:"willow-api"`
	Version                       string   `env:"APP_VERSION" env-default:"dev"`
	Port                          int      `env:"PORT" env-default:"3004"`
	LogLevel                      string   `env:"LOG_LEVEL" env-default:"info"`
	PrettyLogs                    bool     `env:"PRETTY_LOGS" env-default:"false"`
	HttpServerWriteTimeoutSeconds int      `env:"HTTP_SERVER_WRITE_TIMEOUT_SECONDS" env-default:"30"`
	HttpServerReadTimeoutSeconds  int      `env:"HTTP_SERVER_READ_TIMEOUT_SECONDS" env-default:"10"`
	HttpServerIdleTimeoutSeconds  int      `env:"HTTP_SERVER_IDLE_TIMEOUT_SECONDS" env-default:"10"`
	MaxHeaderBytes                int      `env:"HTTP_SERVER_MAX_HEADER_BYTES" env-default:"64000"` // 64KB
	ReadHeaderTimeoutSeconds      int      `env:"HTTP_SERVER_READ_HEADER_TIMEOUT_SECONDS" env-default:"10"`
	AllowOrigins                  []string `env:"HTTP_SERVER_ALLOW_ORIGINS" env-default:"*"`
	AllowMethods                  []string `env:"HTTP_SERVER_ALLOW_METHODS" env-default:"GET,POST,PUT,DELETE"`
	StartupMaxAttempts            int      `env:"STARTUP_MAX_ATTEMPTS" env-default:"5"`
	ShutdownTimeoutSeconds        int      `env:"SHUTDOWN_TIMEOUT_SECONDS" env-default:"15"`

	// PostgreSQL (tenant lineage settings)
	DatabaseDriver              string        `env:"DB_DRIVER" env-default:"postgres"`
	DatabaseHost                string        `env:"DB_HOST" env-default:""`
	DatabasePort                string        `env:"DB_PORT" env-default:"5432"`
	DatabaseUserName            string        `env:"DB_USER_NAME" env-default:""`
	DatabasePassword            string        `env:"DB_PASSWORD" env-default:""`
	DatabaseName                string        `env:"DB_NAME" env-default:"willow"`
	DatabaseSSLMode             string        `env:"DB_SQL_MODE" env-default:"disable"`
	DatabaseMaxOpenConns        int           `env:"DB_MAX_OPEN_CONNS" env-default:"25"`
	DatabaseMaxIdleConns        int           `env:"DB_MAX_IDLE_CONNS" env-default:"10"`
	DatabaseConnMaxLifetime     time.Duration `env:"DB_CONN_MAX_LIFETIME" env-default:"10s"`
	DatabaseMigrationFolderPath string        `env:"DB_MIGRATION_FOLDER_PATH" env-default:"db/pg"`
	DatabaseMigrationVersion    int           `env:"DB_MIGRATION_VERSION" env-default:"0"`
	DatabaseMigrationForce      int           `env:"DB_MIGRATION_FORCE" env-default:"0"`

	// Graph Database (Memgraph or Neo4j, the metadata repository)
	GraphDBHost           string `env:"GRAPH_DB_HOST" env-default:"localhost"`
	GraphDBPort           int    `env:"GRAPH_DB_PORT" env-default:"7687"`
	GraphDBUser           string `env:"GRAPH_DB_USER" env-default:""`
	GraphDBPassword       string `env:"GRAPH_DB_PASSWORD" env-default:""`
	GraphDBName           string `env:"GRAPH_DB_NAME" env-default:""`
	GraphDBMaxConnections int    `env:"GRAPH_DB_MAX_CONNECTIONS" env-default:"50"`

	// Redis (type definition cache and sync locks)
	RedisEnabled     bool          `env:"REDIS_ENABLED" env-default:"true"`
	RedisHost        string        `env:"REDIS_HOST" env-default:"localhost"`
	RedisPort        int           `env:"REDIS_PORT" env-default:"6379"`
	RedisPassword    string        `env:"REDIS_PASSWORD" env-default:""`
	RedisDB          int           `env:"REDIS_DB" env-default:"0"`
	TypeDefCacheTTL  time.Duration `env:"TYPEDEF_CACHE_TTL" env-default:"10m"`
	SyncLockTTL      time.Duration `env:"SYNC_LOCK_TTL" env-default:"15m"`
	RedisLockPrefix  string        `env:"REDIS_LOCK_PREFIX" env-default:"willow:lock:"`

	// Kafka Consumer (entity-change notifications)
	KafkaBrokers         []string `env:"KAFKA_BROKERS" env-default:"localhost:9092"`
	KafkaInputTopic      string   `env:"KAFKA_INPUT_TOPIC" env-default:"entity-notifications"`
	KafkaConsumerGroup   string   `env:"KAFKA_CONSUMER_GROUP" env-default:"willow-consumer"`
	KafkaConsumerEnabled bool     `env:"KAFKA_CONSUMER_ENABLED" env-default:"true"`

	// Kafka Producer settings
	KafkaOutputTopic  string `env:"KAFKA_OUTPUT_TOPIC" env-default:"lineage-events"`
	KafkaBatchSize    int    `env:"KAFKA_BATCH_SIZE" env-default:"100"`
	KafkaBatchTimeout int    `env:"KAFKA_BATCH_TIMEOUT_MS" env-default:"100"`
	KafkaRequiredAcks int    `env:"KAFKA_REQUIRED_ACKS" env-default:"1"`
	KafkaCompression  string `env:"KAFKA_COMPRESSION" env-default:"snappy"`

	// Lineage
	SupportedZones         []string `env:"LINEAGE_SUPPORTED_ZONES"`
	LineageClassifications []string `env:"LINEAGE_CLASSIFICATIONS"`
	MaxPageSize            int      `env:"LINEAGE_MAX_PAGE_SIZE" env-default:"500"`
	SyncConcurrency        int      `env:"LINEAGE_SYNC_CONCURRENCY" env-default:"4"`

	// Tracing
	OTLPEndpoint     string  `env:"OTLP_ENDPOINT" env-default:""`
	OTLPProtocol     string  `env:"OTLP_PROTOCOL" env-default:"grpc"`
	OTLPInsecure     bool    `env:"OTLP_INSECURE" env-default:"true"`
	OTLPHeaders      string  `env:"OTLP_HEADERS" env-default:""`
	TraceSampleRatio float64 `env:"TRACE_SAMPLE_RATIO" env-default:"1"`
}

// Load reads the configuration from the environment. A .env file in the working directory,
// when present, is loaded first without overriding variables already set.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	var cfg Config
	if err := ectoenv.BindEnv(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
