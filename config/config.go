package config

import "time"

type Config struct {
	AppName                       string   `env:"APP_NAME" env-default:"fundraising-api"`
	Port                          int      `env:"PORT" env-default:"3004"`
	LogLevel                      string   `env:"LOG_LEVEL" env-default:"info"`
	PrettyLogs                    bool     `env:"PRETTY_LOGS" env-default:"false"`
	HttpServerWriteTimeoutSeconds int      `env:"HTTP_SERVER_WRITE_TIMEOUT_SECONDS" env-default:"10"`
	HttpServerReadTimeoutSeconds  int      `env:"HTTP_SERVER_READ_TIMEOUT_SECONDS" env-default:"10"`
	HttpServerIdleTimeoutSeconds  int      `env:"HTTP_SERVER_IDLE_TIMEOUT_SECONDS" env-default:"10"`
	MaxHeaderBytes                int      `env:"HTTP_SERVER_MAX_HEADER_BYTES" env-default:"64000"` // 64KB
	AllowOrigins                  []string `env:"HTTP_SERVER_ALLOW_ORIGINS" env-default:"*"`
	AllowMethods                  []string `env:"HTTP_SERVER_ALLOW_METHODS" env-default:"GET,POST,PUT,PATCH,DELETE"`
	StartupMaxAttempts            int      `env:"STARTUP_MAX_ATTEMPTS" env-default:"5"`

	// PostgreSQL
	DatabaseDriver                string        `env:"DB_DRIVER" env-default:"postgres"`
	DatabaseHost                  string        `env:"DB_HOST" env-default:""`
	DatabasePort                  string        `env:"DB_PORT" env-default:"5432"`
	DatabaseUserName              string        `env:"DB_USER_NAME" env-default:""`
	DatabasePassword              string        `env:"DB_PASSWORD" env-default:""`
	DatabaseName                  string        `env:"DB_NAME" env-default:"fundraising"`
	DatabaseSSLMode               string        `env:"DB_SQL_MODE" env-default:"disable"`
	DatabaseMaxOpenConns          int           `env:"DB_MAX_OPEN_CONNS" env-default:"25"`
	DatabaseMaxIdleConns          int           `env:"DB_MAX_IDLE_CONNS" env-default:"10"`
	DatabaseConnMaxLifetime       time.Duration `env:"DB_CONN_MAX_LIFETIME" env-default:"10s"`
	DatabaseMigrationFolderPath   string        `env:"DB_MIGRATION_FOLDER_PATH" env-default:"db/migrations"`
	DatabaseMigrationVersion      int           `env:"DB_MIGRATION_VERSION" env-default:"0"`
	DatabaseMigrationForce        int           `env:"DB_MIGRATION_FORCE" env-default:"0"`
	DatabaseMigrationAutoRollback bool          `env:"DB_MIGRATION_AUTO_ROLLBACK" env-default:"true"`

	// Redis (segment count cache + import locks)
	RedisHost     string `env:"REDIS_HOST" env-default:"localhost"`
	RedisPort     int    `env:"REDIS_PORT" env-default:"6379"`
	RedisPassword string `env:"REDIS_PASSWORD" env-default:""`
	RedisDB       int    `env:"REDIS_DB" env-default:"0"`

	// Graph Database (Memgraph) for donor relationships
	GraphDBEnabled  bool   `env:"GRAPH_DB_ENABLED" env-default:"true"`
	GraphDBHost     string `env:"GRAPH_DB_HOST" env-default:"localhost"`
	GraphDBPort     int    `env:"GRAPH_DB_PORT" env-default:"7687"`
	GraphDBUser     string `env:"GRAPH_DB_USER" env-default:""`
	GraphDBPassword string `env:"GRAPH_DB_PASSWORD" env-default:""`

	// Auth
	AuthEnabled   bool   `env:"AUTH_ENABLED" env-default:"false"`
	AuthIssuerURL string `env:"AUTH_ISSUER_URL" env-default:""`
	AuthClientID  string `env:"AUTH_CLIENT_ID" env-default:""`

	// Tracing
	TracingEnabled      bool   `env:"TRACING_ENABLED" env-default:"false"`
	TracingOTLPEndpoint string `env:"TRACING_OTLP_ENDPOINT" env-default:"localhost:4317"`
	TracingOTLPProtocol string `env:"TRACING_OTLP_PROTOCOL" env-default:"grpc"`
	TracingOTLPInsecure bool   `env:"TRACING_OTLP_INSECURE" env-default:"true"`

	// Kafka Producer
	KafkaBrokers         []string `env:"KAFKA_BROKERS" env-default:"localhost:9092"`
	KafkaDonorTopic      string   `env:"KAFKA_DONOR_TOPIC" env-default:"donor-events"`
	KafkaSegmentTopic    string   `env:"KAFKA_SEGMENT_TOPIC" env-default:"segment-events"`
	KafkaDuplicateTopic  string   `env:"KAFKA_DUPLICATE_TOPIC" env-default:"duplicate-events"`
	KafkaImportTopic     string   `env:"KAFKA_IMPORT_TOPIC" env-default:"import-events"`
	KafkaBatchSize       int      `env:"KAFKA_BATCH_SIZE" env-default:"100"`
	KafkaBatchTimeout    int      `env:"KAFKA_BATCH_TIMEOUT_MS" env-default:"100"`
	KafkaRequiredAcks    int      `env:"KAFKA_REQUIRED_ACKS" env-default:"1"`
	KafkaCompression     string   `env:"KAFKA_COMPRESSION" env-default:"snappy"`
	KafkaConsumerEnabled bool     `env:"KAFKA_CONSUMER_ENABLED" env-default:"true"`
	KafkaConsumerGroup   string   `env:"KAFKA_CONSUMER_GROUP" env-default:"fundraising-segment-cache"`

	// Duplicate detection thresholds and strategy weights. The weights were
	// tuned against real import batches; change them with care.
	DedupeHighThreshold         float64 `env:"DEDUPE_HIGH_THRESHOLD" env-default:"0.9"`
	DedupeMediumThreshold       float64 `env:"DEDUPE_MEDIUM_THRESHOLD" env-default:"0.7"`
	DedupeLowThreshold          float64 `env:"DEDUPE_LOW_THRESHOLD" env-default:"0.5"`
	DedupeWeightExactEmail      float64 `env:"DEDUPE_WEIGHT_EXACT_EMAIL" env-default:"3.0"`
	DedupeWeightExactPhone      float64 `env:"DEDUPE_WEIGHT_EXACT_PHONE" env-default:"2.5"`
	DedupeWeightNameAddress     float64 `env:"DEDUPE_WEIGHT_NAME_ADDRESS" env-default:"2.0"`
	DedupeWeightNamePhone       float64 `env:"DEDUPE_WEIGHT_NAME_PHONE" env-default:"2.2"`
	DedupeWeightFuzzyName       float64 `env:"DEDUPE_WEIGHT_FUZZY_NAME" env-default:"1.5"`
	DedupeWeightStudentName     float64 `env:"DEDUPE_WEIGHT_STUDENT_NAME" env-default:"2.0"`
	DedupeWeightSchoolConn      float64 `env:"DEDUPE_WEIGHT_SCHOOL_CONNECTION" env-default:"1.5"`
	DedupeMaxResults            int     `env:"DEDUPE_MAX_RESULTS" env-default:"25"`
	DedupeCandidateLimit        int     `env:"DEDUPE_CANDIDATE_LIMIT" env-default:"5000"`
	DedupeBlockOnHighConfidence bool    `env:"DEDUPE_BLOCK_ON_HIGH_CONFIDENCE" env-default:"true"`

	// Segments
	SegmentCountCacheTTL time.Duration `env:"SEGMENT_COUNT_CACHE_TTL" env-default:"5m"`
	SegmentPreviewLimit  int           `env:"SEGMENT_PREVIEW_LIMIT" env-default:"25"`

	// CSV import
	ImportLockTTL    time.Duration `env:"IMPORT_LOCK_TTL" env-default:"10m"`
	ImportMaxRows    int           `env:"IMPORT_MAX_ROWS" env-default:"50000"`
	ImportMaxFileMB  int           `env:"IMPORT_MAX_FILE_MB" env-default:"20"`
	ImportSkipBand   string        `env:"IMPORT_SKIP_BAND" env-default:"high"`
	ImportErrorLimit int           `env:"IMPORT_ERROR_LIMIT" env-default:"1000"`
}
