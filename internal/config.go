package internal

import "time"

type Config struct {
	// Instance identity and store wiring
	ServerID     string `env:"SERVER_ID"`
	StoreBackend string `env:"STORE_BACKEND,required=true"`
	NatsURL      string `env:"NATS_URL"`

	// Broadcast relay
	BroadcastTopic string `env:"BROADCAST_TOPIC,required=true"`

	// Session policy
	SessionTTL             time.Duration `env:"SESSION_TTL,required=true"`
	ActivityUpdateInterval time.Duration `env:"ACTIVITY_UPDATE_INTERVAL,required=true"`
	ValidationCacheTTL     time.Duration `env:"VALIDATION_CACHE_TTL,required=true"`

	// Rate limiting
	RateLimitMax    int           `env:"RATE_LIMIT_MAX,required=true"`
	RateLimitWindow time.Duration `env:"RATE_LIMIT_WINDOW,required=true"`

	// Content filtering and persistence
	BannedWordsFile string `env:"BANNED_WORDS_FILE,required=true"`
	BadgerFilepath  string `env:"BADGER_FILEPATH,required=true"`
	MessagePageSize *int   `env:"MESSAGE_PAGE_SIZE"`

	// Transport
	Host      string `env:"HOST,required=true"`
	Port      int    `env:"PORT,required=true"`
	JwtSecret string `env:"JWT_SECRET,required=true"`

	// Background work
	TaskQueueSize int           `env:"TASK_QUEUE_SIZE,required=true"`
	TaskWorkers   int           `env:"TASK_WORKERS,required=true"`
	StatsInterval time.Duration `env:"STATS_INTERVAL,required=true"`

	LogLevel string `env:"LOG_LEVEL,required=true"`
}
