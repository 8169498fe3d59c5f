package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/joho/godotenv"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	StoreDriver string
	DatabaseURL string

	// External API access.
	HTTPTimeout           time.Duration
	FetchMaxAttempts      int
	FetchBaseDelay        time.Duration
	CircuitBreakerEnabled bool
	METClientID           string
	GooglePollenAPIKey    string
	SerpAPIKey            string

	// Job behaviour.
	PredictionRetentionDays  int
	LocalTimezone            *time.Location
	DaylightUTCOffsetMinutes int
	PollenRequestDelay       time.Duration
	TrendsRequestDelay       time.Duration
	WeatherConcurrency       int

	// Alert publishing; disabled when no brokers are set.
	KafkaBrokers    []string
	KafkaAlertTopic string

	SchedulerEnabled bool
	Schedules        map[string]string // job name -> cron expression; empty disables

	Sources *Sources
}

// Store drivers accepted in STORE_DRIVER.
const (
	DriverPostgres = "pgx"
	DriverSQLite   = "sqlite3"
)

// Job names, shared by the HTTP routes, the scheduler, and SCHEDULE_* keys.
const (
	JobWeather     = "weather"
	JobDaylight    = "daylight"
	JobPollen      = "pollen"
	JobVaccination = "vaccination"
	JobMacro       = "macro"
	JobTrends      = "trends"
	JobAlerts      = "alerts"
	JobETL         = "etl"
)

var defaultSchedules = map[string]string{
	JobWeather:     "0 6 * * *",
	JobDaylight:    "15 6 * * *",
	JobPollen:      "0 5 * * *",
	JobVaccination: "0 7 * * 1",
	JobMacro:       "0 8 10 * *",
	JobTrends:      "30 7 * * 1",
	JobAlerts:      "0 9 * * *",
	JobETL:         "0 3 * * *",
}

var scheduleKeys = map[string]string{
	JobWeather:     "SCHEDULE_WEATHER",
	JobDaylight:    "SCHEDULE_DAYLIGHT",
	JobPollen:      "SCHEDULE_POLLEN",
	JobVaccination: "SCHEDULE_VACCINATION",
	JobMacro:       "SCHEDULE_MACRO",
	JobTrends:      "SCHEDULE_TRENDS",
	JobAlerts:      "SCHEDULE_ALERTS",
	JobETL:         "SCHEDULE_ETL",
}

// LoadDotEnv loads a .env file into the environment if one exists. Variables
// already set in the environment win.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	var errs []error
	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		StoreDriver: sharedcfg.EnvOrDefault("STORE_DRIVER", DriverSQLite),
		DatabaseURL: sharedcfg.EnvOrDefault("DATABASE_URL", "file:risk.db?_foreign_keys=on&_busy_timeout=5000"),

		HTTPTimeout:           parseDuration("HTTP_TIMEOUT", "30s", &errs),
		FetchMaxAttempts:      parsePositiveInt("FETCH_MAX_ATTEMPTS", 3, &errs),
		FetchBaseDelay:        parseDuration("FETCH_BASE_DELAY", "1s", &errs),
		CircuitBreakerEnabled: parseBool("CIRCUIT_BREAKER_ENABLED", true, &errs),
		METClientID:           os.Getenv("MET_CLIENT_ID"),
		GooglePollenAPIKey:    os.Getenv("GOOGLE_POLLEN_API_KEY"),
		SerpAPIKey:            os.Getenv("SERPAPI_KEY"),

		PredictionRetentionDays:  parsePositiveInt("PREDICTION_RETENTION_DAYS", 730, &errs),
		DaylightUTCOffsetMinutes: parseInt("DAYLIGHT_UTC_OFFSET_MINUTES", 60, &errs),
		PollenRequestDelay:       parseDuration("POLLEN_REQUEST_DELAY", "1s", &errs),
		TrendsRequestDelay:       parseDuration("TRENDS_REQUEST_DELAY", "1s", &errs),
		WeatherConcurrency:       parsePositiveInt("WEATHER_CONCURRENCY", 4, &errs),

		KafkaAlertTopic: sharedcfg.EnvOrDefault("KAFKA_ALERT_TOPIC", "risk-alerts"),

		SchedulerEnabled: parseBool("SCHEDULER_ENABLED", false, &errs),
		Schedules:        make(map[string]string, len(defaultSchedules)),
	}

	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		cfg.KafkaBrokers = sharedcfg.ParseBrokers(v)
	}

	tzName := sharedcfg.EnvOrDefault("LOCAL_TIMEZONE", "Europe/Oslo")
	loc, err := time.LoadLocation(tzName)
	if err != nil {
		errs = append(errs, fmt.Errorf("invalid LOCAL_TIMEZONE %q: %w", tzName, err))
	}
	cfg.LocalTimezone = loc

	for job, key := range scheduleKeys {
		spec, ok := os.LookupEnv(key)
		if !ok {
			spec = defaultSchedules[job]
		}
		cfg.Schedules[job] = spec
	}

	sources, err := LoadSources(os.Getenv("SOURCES_FILE"))
	if err != nil {
		errs = append(errs, err)
	}
	cfg.Sources = sources

	switch cfg.StoreDriver {
	case DriverPostgres, DriverSQLite:
	default:
		errs = append(errs, fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", DriverPostgres, DriverSQLite, cfg.StoreDriver))
	}
	if cfg.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required"))
	}
	if cfg.KafkaAlertTopic == "" && len(cfg.KafkaBrokers) > 0 {
		errs = append(errs, errors.New("KAFKA_ALERT_TOPIC is required when KAFKA_BROKERS is set"))
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parseDuration(key, def string, errs *[]error) time.Duration {
	s := sharedcfg.EnvOrDefault(key, def)
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		*errs = append(*errs, fmt.Errorf("invalid %s %q", key, s))
		return 0
	}
	return d
}

func parseInt(key string, def int, errs *[]error) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("invalid %s %q", key, s))
		return def
	}
	return n
}

func parsePositiveInt(key string, def int, errs *[]error) int {
	n := parseInt(key, def, errs)
	if n <= 0 {
		*errs = append(*errs, fmt.Errorf("%s must be positive", key))
		return def
	}
	return n
}

func parseBool(key string, def bool, errs *[]error) bool {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("invalid %s %q", key, s))
		return def
	}
	return b
}
