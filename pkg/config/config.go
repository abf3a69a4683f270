package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"time"

	"serveq/pkg/client"
	"serveq/pkg/logger"

	"github.com/joho/godotenv"
)

type Config struct {
	MongoURI          string
	MongoDatabaseName string
	MongoConnTimeout  time.Duration

	Port string

	// Passcode lifecycle.
	OtpTTL    time.Duration
	OtpLength int

	// Slot inventory. Working hours apply identically to every day of the
	// rolling horizon.
	HorizonDays     int
	StartOfDay      string
	EndOfDay        string
	SlotIntervalMin int
	SlotCapacity    int

	// Queue derivation and orchestration.
	ServiceDurationMin int
	ReminderThreshold  time.Duration
	SessionTTL         time.Duration
	SlotLockTTL        time.Duration

	NotificationsTopic string

	// SMTP delivery of passcodes and confirmations. Optional; when the host
	// is unset the service runs in demo mode and only returns the code in
	// the response.
	SMTPHost string
	SMTPPort int
	SMTPUser string
	SMTPPass string
	SMTPFrom string

	RateLimitRequests int
	RateLimitWindow   time.Duration

	RequestTimeout time.Duration
	IdempotencyTTL time.Duration
	MaxRequestSize int

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	Log    *logger.Logger
	Client *client.Client
}

func Load(serviceName string) *Config {
	// Missing .env is fine, the environment may be set by the deployment.
	_ = godotenv.Load()

	cfg := &Config{
		MongoURI:          getEnvStr(EnvMongoURI, DefaultMongoURI),
		MongoDatabaseName: getEnvStr(EnvMongoDatabaseName, DefaultMongoDatabaseName),
		MongoConnTimeout:  getEnvDuration(EnvMongoConnTimeout, DefaultMongoConnTimeout),

		Port: getEnvStr(EnvPort, DefaultPort),

		OtpTTL:    getEnvDuration(EnvOtpTTL, DefaultOtpTTL),
		OtpLength: getEnvNum(EnvOtpLength, DefaultOtpLength),

		HorizonDays:     getEnvNum(EnvHorizonDays, DefaultHorizonDays),
		StartOfDay:      getEnvStr(EnvStartOfDay, DefaultStartOfDay),
		EndOfDay:        getEnvStr(EnvEndOfDay, DefaultEndOfDay),
		SlotIntervalMin: getEnvNum(EnvSlotIntervalMin, DefaultSlotIntervalMin),
		SlotCapacity:    getEnvNum(EnvSlotCapacity, DefaultSlotCapacity),

		ServiceDurationMin: getEnvNum(EnvServiceDurationMin, DefaultServiceDurationMin),
		ReminderThreshold:  getEnvDuration(EnvReminderThreshold, DefaultReminderThreshold),
		SessionTTL:         getEnvDuration(EnvSessionTTL, DefaultSessionTTL),
		SlotLockTTL:        getEnvDuration(EnvSlotLockTTL, DefaultSlotLockTTL),

		NotificationsTopic: getEnvStr(EnvNotificationsTopic, DefaultNotificationsTopic),

		SMTPHost: getEnvStr(EnvSMTPHost, ""),
		SMTPPort: getEnvNum(EnvSMTPPort, DefaultSMTPPort),
		SMTPUser: getEnvStr(EnvSMTPUser, ""),
		SMTPPass: getEnvStr(EnvSMTPPass, ""),
		SMTPFrom: getEnvStr(EnvSMTPFrom, ""),

		RateLimitRequests: getEnvNum(EnvRateLimitRequests, DefaultRateLimitRequests),
		RateLimitWindow:   getEnvDuration(EnvRateLimitWindow, DefaultRateLimitWindow),

		RequestTimeout: getEnvDuration(EnvRequestTimeout, DefaultRequestTimeout),
		IdempotencyTTL: getEnvDuration(EnvIdempotencyTTL, DefaultIdempotencyTTL),
		MaxRequestSize: getEnvNum(EnvMaxRequestSize, DefaultMaxRequestSize),

		ReadTimeout:     getEnvDuration(EnvReadTimeout, DefaultReadTimeout),
		WriteTimeout:    getEnvDuration(EnvWriteTimeout, DefaultWriteTimeout),
		IdleTimeout:     getEnvDuration(EnvIdleTimeout, DefaultIdleTimeout),
		ShutdownTimeout: getEnvDuration(EnvShutdownTimeout, DefaultShutdownTimeout),

		Log: logger.New(logger.Config{
			Level:     getEnvStr(EnvLogLevel, logger.INFO),
			Format:    logger.JSON,
			AddSource: true,
			Service:   serviceName,
		}),
		Client: client.NewClient(),
	}

	if err := cfg.Validate(); err != nil {
		cfg.Log.Fatal(err.Error())
	}
	cfg.LogConfiguration()
	return cfg
}

func (cfg *Config) SetMongo() {
	cfg.Client.SetMongo(cfg.Log, cfg.MongoURI, cfg.MongoConnTimeout)
}

var (
	timeOfDayRegex = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)
	mongoURIRegex  = regexp.MustCompile(`^mongodb(\+srv)?://`)
)

func (cfg *Config) Validate() error {
	var errs []string

	if port, err := strconv.Atoi(cfg.Port); err != nil || port < 1 || port > 65535 {
		errs = append(errs, fmt.Sprintf("Port must be between 1 and 65535, got: %s", cfg.Port))
	}

	if cfg.MongoURI == "" {
		errs = append(errs, "MongoURI cannot be empty")
	} else if !mongoURIRegex.MatchString(cfg.MongoURI) {
		errs = append(errs, fmt.Sprintf("MongoURI must start with 'mongodb://' or 'mongodb+srv://', got: %s", cfg.MongoURI))
	}
	if cfg.MongoDatabaseName == "" {
		errs = append(errs, "MongoDatabaseName cannot be empty")
	}
	if cfg.MongoConnTimeout <= 0 {
		errs = append(errs, fmt.Sprintf("MongoConnTimeout must be positive, got: %s", cfg.MongoConnTimeout))
	}

	if cfg.OtpTTL <= 0 {
		errs = append(errs, fmt.Sprintf("OtpTTL must be positive, got: %s", cfg.OtpTTL))
	}
	if cfg.OtpLength < 4 || cfg.OtpLength > 10 {
		errs = append(errs, fmt.Sprintf("OtpLength must be between 4 and 10, got: %d", cfg.OtpLength))
	}

	if cfg.HorizonDays < 1 || cfg.HorizonDays > 60 {
		errs = append(errs, fmt.Sprintf("HorizonDays must be between 1 and 60, got: %d", cfg.HorizonDays))
	}
	if !timeOfDayRegex.MatchString(cfg.StartOfDay) {
		errs = append(errs, fmt.Sprintf("StartOfDay must be in HH:MM format (00:00-23:59), got: %s", cfg.StartOfDay))
	}
	if !timeOfDayRegex.MatchString(cfg.EndOfDay) {
		errs = append(errs, fmt.Sprintf("EndOfDay must be in HH:MM format (00:00-23:59), got: %s", cfg.EndOfDay))
	}
	if cfg.SlotIntervalMin < 5 || cfg.SlotIntervalMin > 480 {
		errs = append(errs, fmt.Sprintf("SlotIntervalMin must be between 5 and 480, got: %d", cfg.SlotIntervalMin))
	}
	if cfg.SlotCapacity < 1 || cfg.SlotCapacity > 200 {
		errs = append(errs, fmt.Sprintf("SlotCapacity must be between 1 and 200, got: %d", cfg.SlotCapacity))
	}

	if cfg.ServiceDurationMin <= 0 {
		errs = append(errs, fmt.Sprintf("ServiceDurationMin must be positive, got: %d", cfg.ServiceDurationMin))
	}
	if cfg.ReminderThreshold <= 0 {
		errs = append(errs, fmt.Sprintf("ReminderThreshold must be positive, got: %s", cfg.ReminderThreshold))
	}
	if cfg.SessionTTL <= 0 {
		errs = append(errs, fmt.Sprintf("SessionTTL must be positive, got: %s", cfg.SessionTTL))
	}
	if cfg.SlotLockTTL <= 0 {
		errs = append(errs, fmt.Sprintf("SlotLockTTL must be positive, got: %s", cfg.SlotLockTTL))
	}

	if cfg.RateLimitRequests <= 0 {
		errs = append(errs, fmt.Sprintf("RateLimitRequests must be positive, got: %d", cfg.RateLimitRequests))
	}
	if cfg.RateLimitWindow <= 0 {
		errs = append(errs, fmt.Sprintf("RateLimitWindow must be positive, got: %s", cfg.RateLimitWindow))
	}
	if cfg.RequestTimeout <= 0 {
		errs = append(errs, fmt.Sprintf("RequestTimeout must be positive, got: %s", cfg.RequestTimeout))
	}
	if cfg.IdempotencyTTL <= 0 {
		errs = append(errs, fmt.Sprintf("IdempotencyTTL must be positive, got: %s", cfg.IdempotencyTTL))
	}
	if cfg.MaxRequestSize <= 0 {
		errs = append(errs, fmt.Sprintf("MaxRequestSize must be positive, got: %d", cfg.MaxRequestSize))
	}
	if cfg.ReadTimeout <= 0 {
		errs = append(errs, fmt.Sprintf("ReadTimeout must be positive, got: %s", cfg.ReadTimeout))
	}
	if cfg.WriteTimeout <= 0 {
		errs = append(errs, fmt.Sprintf("WriteTimeout must be positive, got: %s", cfg.WriteTimeout))
	}
	if cfg.IdleTimeout <= 0 {
		errs = append(errs, fmt.Sprintf("IdleTimeout must be positive, got: %s", cfg.IdleTimeout))
	}
	if cfg.ShutdownTimeout <= 0 {
		errs = append(errs, fmt.Sprintf("ShutdownTimeout must be positive, got: %s", cfg.ShutdownTimeout))
	}

	if len(errs) > 0 {
		errMsg := "Configuration validation failed:\n"
		for i, e := range errs {
			errMsg += fmt.Sprintf("  %d. %s\n", i+1, e)
		}
		return fmt.Errorf("%s", errMsg)
	}

	return nil
}

func (cfg *Config) LogConfiguration() {
	cfg.Log.Info("Configuration loaded successfully",
		"mongo_uri", redactMongoURI(cfg.MongoURI),
		"mongo_database", cfg.MongoDatabaseName,
		"mongo_conn_timeout", cfg.MongoConnTimeout,
		"port", cfg.Port,
		"otp_ttl", cfg.OtpTTL,
		"otp_length", cfg.OtpLength,
		"horizon_days", cfg.HorizonDays,
		"start_of_day", cfg.StartOfDay,
		"end_of_day", cfg.EndOfDay,
		"slot_interval_min", cfg.SlotIntervalMin,
		"slot_capacity", cfg.SlotCapacity,
		"service_duration_min", cfg.ServiceDurationMin,
		"reminder_threshold", cfg.ReminderThreshold,
		"session_ttl", cfg.SessionTTL,
		"slot_lock_ttl", cfg.SlotLockTTL,
		"notifications_topic", cfg.NotificationsTopic,
		"smtp_configured", cfg.SMTPHost != "",
		"rate_limit_requests", cfg.RateLimitRequests,
		"rate_limit_window", cfg.RateLimitWindow,
		"request_timeout", cfg.RequestTimeout,
		"idempotency_ttl", cfg.IdempotencyTTL,
		"max_request_size", cfg.MaxRequestSize,
		"read_timeout", cfg.ReadTimeout,
		"write_timeout", cfg.WriteTimeout,
		"idle_timeout", cfg.IdleTimeout,
		"shutdown_timeout", cfg.ShutdownTimeout,
	)
}

func redactMongoURI(uri string) string {
	credentialRegex := regexp.MustCompile(`(mongodb(\+srv)?://)[^:]+:[^@]+@`)
	return credentialRegex.ReplaceAllString(uri, "${1}***:***@")
}

func getEnvStr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvNum(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func (cfg *Config) GracefulShutdown() {
	cfg.Client.GracefulShutdown()
}
