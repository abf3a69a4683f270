package config

import "time"

const (
	DefaultMongoURI          = "mongodb://localhost:27017"
	DefaultMongoDatabaseName = "serveq"
	DefaultMongoConnTimeout  = 10 * time.Second

	DefaultPort = "8080"

	DefaultOtpTTL    = 5 * time.Minute
	DefaultOtpLength = 6

	DefaultHorizonDays     = 7
	DefaultStartOfDay      = "09:00"
	DefaultEndOfDay        = "17:00"
	DefaultSlotIntervalMin = 30
	DefaultSlotCapacity    = 1

	DefaultServiceDurationMin = 30
	DefaultReminderThreshold  = 10 * time.Minute
	DefaultSessionTTL         = 30 * time.Minute
	DefaultSlotLockTTL        = 10 * time.Second

	DefaultNotificationsTopic = "serveq.notifications"

	DefaultSMTPPort = 587

	DefaultRateLimitRequests = 10
	DefaultRateLimitWindow   = 1 * time.Minute

	DefaultRequestTimeout = 30 * time.Second
	DefaultIdempotencyTTL = 24 * time.Hour
	DefaultMaxRequestSize = 1 * 1024 * 1024 // 1MB

	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
)
