package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"PoscoMonitorAPI/internal/logger"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	MQTT     MQTTConfig
	Redis    RedisConfig
	Alerting AlertingConfig
	SMS      SMSConfig
	Telegram TelegramConfig
	Security SecurityConfig
	Logging  LoggingConfig
}

type ServerConfig struct {
	Host            string
	Port            int
	Environment     string
	PublicBaseURL   string
	ShutdownTimeout time.Duration
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	MaxHeaderBytes  int
	ReportFontPath  string
}

type DatabaseConfig struct {
	Driver          string
	Path            string
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	SeedEquipment   bool
}

type MQTTConfig struct {
	Enabled        bool
	Broker         string
	Port           int
	ClientID       string
	Username       string
	Password       string
	AlertTopic     string
	CommandTopic   string
	QoS            byte
	RetainMessages bool
	KeepAlive      time.Duration
	ConnectTimeout time.Duration
	AutoReconnect  bool
}

type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// AlertingConfig drives the dedup engine, token registry, ledger and cleanup.
type AlertingConfig struct {
	ErrorCooldown        time.Duration
	WarningCooldown      time.Duration
	InfoCooldown         time.Duration
	DebounceWindow       time.Duration
	DuplicateEpsilon     float64
	ValueChangeThreshold float64
	MaxValues            int
	RawCacheSize         int
	RawCacheWindow       int
	MaxLedgerEntries     int
	Retention            time.Duration
	CleanupInterval      time.Duration
	TokenTTL             time.Duration
	StatusBackend        string
}

type SMSConfig struct {
	Enabled        bool
	APIKey         string
	APISecret      string
	Sender         string
	BaseURL        string
	Severities     []string
	ShortenLinks   bool
	ShortenerURL   string
	RequestTimeout time.Duration
}

type TelegramConfig struct {
	BotToken       string
	APIURL         string
	ChatIDs        []int64
	RequestTimeout time.Duration
}

type SecurityConfig struct {
	CORSAllowedOrigins []string
	CORSAllowedMethods []string
	RateLimitPerMinute int
	EnableRateLimit    bool
}

type LoggingConfig struct {
	Level     logger.Level
	Mode      logger.Mode
	FilePath  string
	UseColors bool
}

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"

	BackendMemory = "memory"
	BackendRedis  = "redis"
)

var postgresEnvVars = []string{
	"DB_HOST",
	"DB_USER",
	"DB_PASSWORD",
	"DB_NAME",
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found, using environment variables")
	}

	cfg := &Config{
		Server:   loadServerConfig(),
		Database: loadDatabaseConfig(),
		MQTT:     loadMQTTConfig(),
		Redis:    loadRedisConfig(),
		Alerting: loadAlertingConfig(DefaultAlerting()),
		SMS:      loadSMSConfig(),
		Telegram: loadTelegramConfig(),
		Security: loadSecurityConfig(),
		Logging:  loadLoggingConfig(),
	}

	if cfg.Database.Driver == DriverPostgres {
		if err := validateRequired(postgresEnvVars); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// DefaultAlerting returns the API server tuning.
func DefaultAlerting() AlertingConfig {
	return AlertingConfig{
		ErrorCooldown:        30 * time.Second,
		WarningCooldown:      60 * time.Second,
		InfoCooldown:         120 * time.Second,
		DebounceWindow:       5 * time.Second,
		DuplicateEpsilon:     0.01,
		ValueChangeThreshold: 0.05,
		MaxValues:            20,
		RawCacheSize:         100,
		RawCacheWindow:       20,
		MaxLedgerEntries:     1000,
		Retention:            24 * time.Hour,
		CleanupInterval:      time.Hour,
		TokenTTL:             24 * time.Hour,
		StatusBackend:        BackendMemory,
	}
}

func validateRequired(keys []string) error {
	var missing []string

	for _, key := range keys {
		if os.Getenv(key) == "" {
			missing = append(missing, key)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}

	return nil
}

func loadServerConfig() ServerConfig {
	port := getEnvAsInt("SERVER_PORT", 8000)
	return ServerConfig{
		Host:            getEnv("SERVER_HOST", "0.0.0.0"),
		Port:            port,
		Environment:     getEnv("ENVIRONMENT", "development"),
		PublicBaseURL:   strings.TrimRight(getEnv("PUBLIC_BASE_URL", fmt.Sprintf("http://localhost:%d", port)), "/"),
		ShutdownTimeout: getEnvAsDuration("SHUTDOWN_TIMEOUT", "15s"),
		ReadTimeout:     getEnvAsDuration("READ_TIMEOUT", "10s"),
		WriteTimeout:    getEnvAsDuration("WRITE_TIMEOUT", "30s"),
		MaxHeaderBytes:  getEnvAsInt("MAX_HEADER_BYTES", 1048576),
		ReportFontPath:  getEnv("REPORT_FONT_PATH", ""),
	}
}

func loadDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Driver:          strings.ToLower(getEnv("DB_DRIVER", DriverSQLite)),
		Path:            getEnv("DB_PATH", "posco_iot.db"),
		Host:            getEnv("DB_HOST", "localhost"),
		Port:            getEnvAsInt("DB_PORT", 5432),
		User:            getEnv("DB_USER", "posco"),
		Password:        getEnv("DB_PASSWORD", ""),
		Database:        getEnv("DB_NAME", "posco_iot"),
		SSLMode:         getEnv("DB_SSL_MODE", "disable"),
		MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 10),
		MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", "5m"),
		ConnMaxIdleTime: getEnvAsDuration("DB_CONN_MAX_IDLE_TIME", "5m"),
		SeedEquipment:   getEnvAsBool("DB_SEED_EQUIPMENT", true),
	}
}

func loadMQTTConfig() MQTTConfig {
	return MQTTConfig{
		Enabled:        getEnvAsBool("MQTT_ENABLED", false),
		Broker:         getEnv("MQTT_BROKER", "localhost"),
		Port:           getEnvAsInt("MQTT_PORT", 1883),
		ClientID:       getEnv("MQTT_CLIENT_ID", "posco-alert-api"),
		Username:       getEnv("MQTT_USERNAME", ""),
		Password:       getEnv("MQTT_PASSWORD", ""),
		AlertTopic:     getEnv("MQTT_ALERT_TOPIC", "factory/alerts"),
		CommandTopic:   getEnv("MQTT_COMMAND_TOPIC", "factory/equipment/%s/cmd"),
		QoS:            byte(getEnvAsInt("MQTT_QOS", 1)),
		RetainMessages: getEnvAsBool("MQTT_RETAIN", false),
		KeepAlive:      getEnvAsDuration("MQTT_KEEP_ALIVE", "60s"),
		ConnectTimeout: getEnvAsDuration("MQTT_CONNECT_TIMEOUT", "10s"),
		AutoReconnect:  getEnvAsBool("MQTT_AUTO_RECONNECT", true),
	}
}

func loadRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:      getEnv("REDIS_ADDR", "localhost:6379"),
		Password:  getEnv("REDIS_PASSWORD", ""),
		DB:        getEnvAsInt("REDIS_DB", 0),
		KeyPrefix: getEnv("REDIS_KEY_PREFIX", "posco"),
	}
}

// loadAlertingConfig overlays environment values on the given defaults.
func loadAlertingConfig(def AlertingConfig) AlertingConfig {
	return AlertingConfig{
		ErrorCooldown:        getCooldown("ERROR", def.ErrorCooldown),
		WarningCooldown:      getCooldown("WARNING", def.WarningCooldown),
		InfoCooldown:         getCooldown("INFO", def.InfoCooldown),
		DebounceWindow:       getEnvAsDuration("DEBOUNCE_WINDOW", def.DebounceWindow.String()),
		DuplicateEpsilon:     getEnvAsFloat("DUPLICATE_VALUE_EPSILON", def.DuplicateEpsilon),
		ValueChangeThreshold: getEnvAsFloat("VALUE_CHANGE_THRESHOLD", def.ValueChangeThreshold),
		MaxValues:            getEnvAsInt("MAX_HISTORY_VALUES", def.MaxValues),
		RawCacheSize:         getEnvAsInt("MAX_RAW_ALERTS_HISTORY", def.RawCacheSize),
		RawCacheWindow:       getEnvAsInt("RAW_DUPLICATE_WINDOW", def.RawCacheWindow),
		MaxLedgerEntries:     getEnvAsInt("MAX_ALERTS_IN_MEMORY", def.MaxLedgerEntries),
		Retention:            getEnvAsDuration("ALERT_RETENTION", def.Retention.String()),
		CleanupInterval:      getCleanupInterval(def.CleanupInterval),
		TokenTTL:             getEnvAsDuration("ACTION_TOKEN_TTL", def.TokenTTL.String()),
		StatusBackend:        strings.ToLower(getEnv("STATUS_BACKEND", def.StatusBackend)),
	}
}

func loadSMSConfig() SMSConfig {
	key := getEnv("COOLSMS_API_KEY", "")
	secret := getEnv("COOLSMS_API_SECRET", "")
	sender := getEnv("COOLSMS_SENDER", "")

	return SMSConfig{
		Enabled:        key != "" && secret != "" && sender != "",
		APIKey:         key,
		APISecret:      secret,
		Sender:         sender,
		BaseURL:        getEnv("COOLSMS_BASE_URL", "https://api.coolsms.co.kr"),
		Severities:     getEnvAsList("SMS_SEVERITIES", "error"),
		ShortenLinks:   getEnvAsBool("SMS_SHORTEN_LINKS", true),
		ShortenerURL:   getEnv("SHORTENER_URL", "http://tinyurl.com/api-create.php"),
		RequestTimeout: getEnvAsDuration("SMS_TIMEOUT", "5s"),
	}
}

func loadTelegramConfig() TelegramConfig {
	var chatIDs []int64
	for _, raw := range getEnvAsList("TELEGRAM_CHAT_IDS", "") {
		if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
			chatIDs = append(chatIDs, id)
		}
	}

	return TelegramConfig{
		BotToken:       getEnv("TELEGRAM_BOT_TOKEN", ""),
		APIURL:         getEnv("TELEGRAM_API_URL", "https://api.telegram.org"),
		ChatIDs:        chatIDs,
		RequestTimeout: getEnvAsDuration("TELEGRAM_TIMEOUT", "35s"),
	}
}

func loadSecurityConfig() SecurityConfig {
	return SecurityConfig{
		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", "*"),
		CORSAllowedMethods: getEnvAsList("CORS_ALLOWED_METHODS", "GET,POST,PUT,DELETE,OPTIONS"),
		RateLimitPerMinute: getEnvAsInt("RATE_LIMIT_PER_MINUTE", 600),
		EnableRateLimit:    getEnvAsBool("ENABLE_RATE_LIMIT", false),
	}
}

func loadLoggingConfig() LoggingConfig {
	return LoggingConfig{
		Level:     logger.ParseLevel(getEnv("LOG_LEVEL", "info")),
		Mode:      logger.ParseMode(getEnv("LOG_MODE", "normal")),
		FilePath:  getEnv("LOG_FILE_PATH", ""),
		UseColors: getEnvAsBool("LOG_USE_COLORS", true),
	}
}

// getCooldown reads PREFIX_COOLDOWN_SECONDS, then PREFIX_COOLDOWN_MINUTES.
func getCooldown(prefix string, def time.Duration) time.Duration {
	if v := getEnvAsInt(prefix+"_COOLDOWN_SECONDS", -1); v >= 0 {
		return time.Duration(v) * time.Second
	}
	if v := getEnvAsInt(prefix+"_COOLDOWN_MINUTES", -1); v >= 0 {
		return time.Duration(v) * time.Minute
	}
	return def
}

func getCleanupInterval(def time.Duration) time.Duration {
	if h := getEnvAsFloat("CLEANUP_INTERVAL_HOURS", -1); h > 0 {
		return time.Duration(h * float64(time.Hour))
	}
	return getEnvAsDuration("CLEANUP_INTERVAL", def.String())
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	duration, _ := time.ParseDuration(defaultValue)
	return duration
}

func getEnvAsList(key, defaultValue string) []string {
	raw := getEnv(key, defaultValue)
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// BrokerURL is the paho broker address.
func (m MQTTConfig) BrokerURL() string {
	return fmt.Sprintf("tcp://%s:%d", m.Broker, m.Port)
}

func (c *Config) Validate() error {
	var errors []string

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errors = append(errors, "SERVER_PORT must be between 1 and 65535")
	}

	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.Path == "" {
			errors = append(errors, "DB_PATH cannot be empty for sqlite3")
		}
	case DriverPostgres:
		if c.Database.Port < 1 || c.Database.Port > 65535 {
			errors = append(errors, "DB_PORT must be between 1 and 65535")
		}
	default:
		errors = append(errors, fmt.Sprintf("DB_DRIVER %q is not supported (sqlite3, postgres)", c.Database.Driver))
	}

	if c.MQTT.Enabled && (c.MQTT.Port < 1 || c.MQTT.Port > 65535) {
		errors = append(errors, "MQTT_PORT must be between 1 and 65535")
	}

	errors = append(errors, c.Alerting.problems()...)

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errors, "\n  - "))
	}

	return nil
}

func (a AlertingConfig) problems() []string {
	var errors []string

	if a.ErrorCooldown < 0 || a.WarningCooldown < 0 || a.InfoCooldown < 0 {
		errors = append(errors, "cooldowns cannot be negative")
	}
	if a.ValueChangeThreshold < 0 {
		errors = append(errors, "VALUE_CHANGE_THRESHOLD cannot be negative")
	}
	if a.MaxValues < 1 {
		errors = append(errors, "MAX_HISTORY_VALUES must be at least 1")
	}
	if a.RawCacheSize < 1 {
		errors = append(errors, "MAX_RAW_ALERTS_HISTORY must be at least 1")
	}
	if a.MaxLedgerEntries < 1 {
		errors = append(errors, "MAX_ALERTS_IN_MEMORY must be at least 1")
	}
	if a.CleanupInterval <= 0 {
		errors = append(errors, "CLEANUP_INTERVAL must be positive")
	}
	if a.StatusBackend != BackendMemory && a.StatusBackend != BackendRedis {
		errors = append(errors, fmt.Sprintf("STATUS_BACKEND %q is not supported (memory, redis)", a.StatusBackend))
	}

	return errors
}

func (c *Config) Print() {
	fmt.Println("╔══════════════════════════════════════════════════════════╗")
	fmt.Println("║        POSCO Factory Monitor - Alert API Configuration   ║")
	fmt.Println("╚══════════════════════════════════════════════════════════╝")
	fmt.Printf("Environment:     %s\n", c.Server.Environment)
	fmt.Printf("Server:          %s:%d\n", c.Server.Host, c.Server.Port)
	fmt.Printf("Public URL:      %s\n", c.Server.PublicBaseURL)
	if c.Database.Driver == DriverSQLite {
		fmt.Printf("Database:        sqlite3 %s\n", c.Database.Path)
	} else {
		fmt.Printf("Database:        postgres %s:%d/%s\n", c.Database.Host, c.Database.Port, c.Database.Database)
	}
	if c.MQTT.Enabled {
		fmt.Printf("MQTT Broker:     %s:%d (%s)\n", c.MQTT.Broker, c.MQTT.Port, c.MQTT.AlertTopic)
	} else {
		fmt.Println("MQTT Broker:     disabled")
	}
	fmt.Printf("Cooldowns:       error=%s warning=%s info=%s\n",
		c.Alerting.ErrorCooldown, c.Alerting.WarningCooldown, c.Alerting.InfoCooldown)
	fmt.Printf("Status backend:  %s\n", c.Alerting.StatusBackend)
	fmt.Printf("CoolSMS:         %v\n", c.SMS.Enabled)
	fmt.Println("──────────────────────────────────────────────────────────")
}
