package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Store drivers
const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

type Config struct {
	Port       int
	LogLevel   string
	Env        string
	AdminToken string
	NodeID     int64

	StoreDriver string
	DB          DBConfig
	Redis       RedisConfig
	Kafka       KafkaConfig
	Discord     DiscordConfig
	Tickets     TicketConfig
}

// DBConfig holds the database configuration
type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
}

// RedisConfig enables the Redis ticket counter when Addr is set
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// KafkaConfig enables event publishing when Brokers is non-empty
type KafkaConfig struct {
	Brokers       []string
	OrdersTopic   string
	ConsumerGroup string
}

// DiscordConfig identifies the bot and the guild it serves
type DiscordConfig struct {
	Token         string
	GuildID       string
	Prefix        string
	TutorRoleID   string
	AdminRoleID   string
	TutorChannel  string
	ReviewChannel string
	AdminChannel  string
	AuditChannel  string
	PanelChannel  string
	MainChannel   string
	// HeartbeatChannel receives a liveness message every HeartbeatInterval
	HeartbeatChannel  string
	HeartbeatInterval time.Duration
}

// TicketConfig controls ticket channels and the intake conversation
type TicketConfig struct {
	OrderCategoryID     string
	ReportCategory      string
	ApplicationCategory string
	IntakeTimeout       time.Duration
	MinimumBudget       decimal.Decimal
	RatesFile           string
	DeleteOnComplete    bool
}

// getEnv retrieves the value of an environment variable or returns a default value if not set.
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}

	return defaultValue
}

func getInt(key string, defaultValue int) (int, error) {
	v, err := strconv.Atoi(getEnv(key, strconv.Itoa(defaultValue)))

	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	v, err := time.ParseDuration(getEnv(key, defaultValue.String()))

	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func getBool(key string, defaultValue bool) (bool, error) {
	v, err := strconv.ParseBool(getEnv(key, strconv.FormatBool(defaultValue)))

	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Load reads .env files when present, then the environment
func Load() (*Config, error) {
	// Missing .env files are fine; the environment may already be populated
	_ = godotenv.Load(".env")

	port, err := getInt("PORT", 8080)
	if err != nil {
		return nil, err
	}

	dbPort, err := getInt("DB_PORT", 5432)
	if err != nil {
		return nil, err
	}

	redisDB, err := getInt("REDIS_DB", 0)
	if err != nil {
		return nil, err
	}

	nodeID, err := getInt("NODE_ID", 1)
	if err != nil {
		return nil, err
	}

	intakeTimeout, err := getDuration("INTAKE_TIMEOUT", 120*time.Second)
	if err != nil {
		return nil, err
	}

	heartbeat, err := getDuration("HEARTBEAT_INTERVAL", 5*time.Minute)
	if err != nil {
		return nil, err
	}

	deleteOnComplete, err := getBool("DELETE_ON_COMPLETE", true)
	if err != nil {
		return nil, err
	}

	minBudget, err := decimal.NewFromString(getEnv("MIN_BUDGET", "20"))
	if err != nil {
		return nil, fmt.Errorf("invalid MIN_BUDGET: %w", err)
	}

	return &Config{
		Port:        port,
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		Env:         getEnv("APP_ENV", "development"),
		AdminToken:  getEnv("ADMIN_TOKEN", ""),
		NodeID:      int64(nodeID),
		StoreDriver: getEnv("STORE_DRIVER", StoreDriverPostgres),
		DB: DBConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     dbPort,
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			Name:     getEnv("DB_NAME", "hireatutor"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		Kafka: KafkaConfig{
			Brokers:       splitList(getEnv("KAFKA_BROKERS", "")),
			OrdersTopic:   getEnv("KAFKA_ORDERS_TOPIC", "tutoring-orders"),
			ConsumerGroup: getEnv("KAFKA_CONSUMER_GROUP", "hireatutor-audit"),
		},
		Discord: DiscordConfig{
			Token:             getEnv("DISCORD_BOT_TOKEN", ""),
			GuildID:           getEnv("DISCORD_GUILD_ID", ""),
			Prefix:            getEnv("BOT_PREFIX", "!"),
			TutorRoleID:       getEnv("TUTOR_ROLE_ID", ""),
			AdminRoleID:       getEnv("ADMIN_ROLE_ID", ""),
			TutorChannel:      getEnv("TUTOR_CHANNEL", "tutor-chat"),
			ReviewChannel:     getEnv("REVIEW_CHANNEL", "review"),
			AdminChannel:      getEnv("ADMIN_CHANNEL", "admin"),
			AuditChannel:      getEnv("AUDIT_CHANNEL", "order-log"),
			PanelChannel:      getEnv("PANEL_CHANNEL", "paid-help-test"),
			MainChannel:       getEnv("MAIN_PANEL_CHANNEL", "paid-help"),
			HeartbeatChannel:  getEnv("HEARTBEAT_CHANNEL", ""),
			HeartbeatInterval: heartbeat,
		},
		Tickets: TicketConfig{
			OrderCategoryID:     getEnv("ORDER_CATEGORY_ID", ""),
			ReportCategory:      getEnv("REPORT_CATEGORY", "User Reports"),
			ApplicationCategory: getEnv("APPLICATION_CATEGORY", "Tutor Applications"),
			IntakeTimeout:       intakeTimeout,
			MinimumBudget:       minBudget,
			RatesFile:           getEnv("CURRENCY_RATES_FILE", ""),
			DeleteOnComplete:    deleteOnComplete,
		},
	}, nil
}

// Validate checks the settings the bot cannot start without
func (c *Config) Validate() error {
	if c.Discord.Token == "" {
		return fmt.Errorf("DISCORD_BOT_TOKEN is required")
	}

	if c.Discord.GuildID == "" {
		return fmt.Errorf("DISCORD_GUILD_ID is required")
	}

	if c.Tickets.OrderCategoryID == "" {
		return fmt.Errorf("ORDER_CATEGORY_ID is required")
	}

	if c.Tickets.IntakeTimeout <= 0 {
		return fmt.Errorf("INTAKE_TIMEOUT must be positive")
	}

	switch c.StoreDriver {
	case StoreDriverPostgres, StoreDriverMemory:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}

	return nil
}

// GetDBConnString returns the database connection string
func (c *Config) GetDBConnString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host, c.DB.Port, c.DB.User, c.DB.Password, c.DB.Name, c.DB.SSLMode)
}
