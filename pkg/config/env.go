package config

const (
	EnvMongoURI          = "MONGO_URI"
	EnvMongoDatabaseName = "MONGO_DATABASE_NAME"
	EnvMongoConnTimeout  = "MONGO_CONN_TIMEOUT"

	EnvPort     = "PORT"
	EnvLogLevel = "LOG_LEVEL"

	EnvOtpTTL    = "OTP_TTL"
	EnvOtpLength = "OTP_LENGTH"

	EnvHorizonDays     = "HORIZON_DAYS"
	EnvStartOfDay      = "START_OF_DAY"
	EnvEndOfDay        = "END_OF_DAY"
	EnvSlotIntervalMin = "SLOT_INTERVAL_MIN"
	EnvSlotCapacity    = "SLOT_CAPACITY"

	EnvServiceDurationMin = "SERVICE_DURATION_MIN"
	EnvReminderThreshold  = "REMINDER_THRESHOLD"
	EnvSessionTTL         = "SESSION_TTL"
	EnvSlotLockTTL        = "SLOT_LOCK_TTL"

	EnvNotificationsTopic = "NOTIFICATIONS_TOPIC"

	EnvSMTPHost = "SMTP_HOST"
	EnvSMTPPort = "SMTP_PORT"
	EnvSMTPUser = "SMTP_USER"
	EnvSMTPPass = "SMTP_PASSWORD"
	EnvSMTPFrom = "SMTP_FROM"

	EnvRateLimitRequests = "RATE_LIMIT_REQUESTS"
	EnvRateLimitWindow   = "RATE_LIMIT_WINDOW"

	EnvRequestTimeout = "REQUEST_TIMEOUT"
	EnvIdempotencyTTL = "IDEMPOTENCY_TTL"
	EnvMaxRequestSize = "MAX_REQUEST_SIZE"

	EnvReadTimeout     = "READ_TIMEOUT"
	EnvWriteTimeout    = "WRITE_TIMEOUT"
	EnvIdleTimeout     = "IDLE_TIMEOUT"
	EnvShutdownTimeout = "SHUTDOWN_TIMEOUT"
)
